package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/systmms/rotor/internal/config"
	"github.com/systmms/rotor/internal/logging"
	"github.com/systmms/rotor/internal/rotation/notifications"
	"github.com/systmms/rotor/internal/rotation/storage"
	"github.com/systmms/rotor/pkg/rotation"
	"github.com/systmms/rotor/pkg/secretstore"
)

// Options carries the global flags into every command.
type Options struct {
	ConfigPath string
	Logger     *logging.Logger
}

// Runtime is the assembled engine: every command builds one from the
// configuration file, uses it, and closes it.
type Runtime struct {
	File      *config.File
	Scheduler *rotation.Scheduler
	Store     rotation.ScheduleStore
	Registry  *rotation.StrategyRegistry
	Notifier  *notifications.Manager

	strategyDB *sql.DB
}

// buildRuntime assembles the schedule store, secret store, strategy
// registry, notification manager and scheduler from configuration.
func buildRuntime(ctx context.Context, opts *Options) (*Runtime, error) {
	file, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	cfg, err := file.SchedulerConfig()
	if err != nil {
		return nil, err
	}

	store, err := buildScheduleStore(ctx, file)
	if err != nil {
		return nil, err
	}

	secrets, err := buildSecretStore(ctx, file)
	if err != nil {
		store.Close()
		return nil, err
	}

	rt := &Runtime{File: file, Store: store}

	registry, err := rt.buildRegistry(file, secrets, opts.Logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Registry = registry

	rt.Notifier = buildNotifier(file, opts.Logger)
	rt.Notifier.Start()

	rt.Scheduler = rotation.NewScheduler(store, registry, rt.Notifier, cfg, opts.Logger)
	return rt, nil
}

// Close releases everything the runtime opened, scheduler first so no
// timer fires against a closed store.
func (rt *Runtime) Close() {
	if rt.Scheduler != nil {
		rt.Scheduler.Close()
	}
	if rt.Notifier != nil {
		rt.Notifier.Stop()
	}
	if rt.strategyDB != nil {
		rt.strategyDB.Close()
	}
	if rt.Store != nil {
		rt.Store.Close()
	}
}

func buildScheduleStore(ctx context.Context, file *config.File) (rotation.ScheduleStore, error) {
	switch file.Store.Driver {
	case "", "memory":
		return rotation.NewMemoryScheduleStore(), nil
	case "postgres":
		return storage.Open(ctx, file.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown schedule store driver '%s'", file.Store.Driver)
	}
}

func buildSecretStore(ctx context.Context, file *config.File) (secretstore.Store, error) {
	switch file.Secrets.Backend {
	case "", "memory":
		return secretstore.NewMemory(), nil
	case "awssm":
		return secretstore.NewAWSSecretsManager(ctx, file.Secrets.Region)
	default:
		return nil, fmt.Errorf("unknown secret store backend '%s'", file.Secrets.Backend)
	}
}

func (rt *Runtime) buildRegistry(file *config.File, secrets secretstore.Store, logger *logging.Logger) (*rotation.StrategyRegistry, error) {
	registry := rotation.NewStrategyRegistry(logger)

	if err := registry.Register(rotation.NewRegenerateStrategy(secrets, 0, logger)); err != nil {
		return nil, err
	}

	validity := time.Duration(0)
	if v := file.Strategies.CertificateValidity; v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid strategies.certificate_validity '%s': %w", v, err)
		}
		validity = parsed
	}
	if err := registry.Register(rotation.NewCertificateStrategy(secrets, validity, logger)); err != nil {
		return nil, err
	}

	if dsn := file.Strategies.Database.DSN; dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("cannot open strategy database: %w", err)
		}
		rt.strategyDB = db
		if err := registry.Register(rotation.NewDatabaseStrategy(db, secrets, logger)); err != nil {
			return nil, err
		}
	}

	if endpoint := file.Strategies.APIKey.Endpoint; endpoint != "" {
		strategy := rotation.NewAPIKeyStrategy(endpoint, file.Strategies.APIKey.Token, secrets, logger)
		if err := registry.Register(strategy); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func buildNotifier(file *config.File, logger *logging.Logger) *notifications.Manager {
	providers := []notifications.Provider{notifications.NewLogProvider(logger)}
	for _, hook := range file.Notify.Webhooks {
		name := hook.Name
		if name == "" {
			name = hook.URL
		}
		providers = append(providers, notifications.NewWebhookProvider(name, hook.URL, hook.Headers, hook.EventTypes()))
	}
	return notifications.NewManager(providers, file.Notify.QueueSize, logger)
}
