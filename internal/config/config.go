// Package config loads the rotor.yaml configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	rotorerrors "github.com/systmms/rotor/internal/errors"
	"github.com/systmms/rotor/pkg/rotation"
)

// DefaultPath is where rotor looks for its configuration when no --config
// flag is given.
const DefaultPath = "rotor.yaml"

// File is the on-disk configuration shape.
type File struct {
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Store      StoreConfig      `yaml:"store"`
	Secrets    SecretsConfig    `yaml:"secrets"`
	Notify     NotifyConfig     `yaml:"notify"`
	Strategies StrategiesConfig `yaml:"strategies"`
}

// SchedulerConfig tunes the rotation engine. Empty fields fall back to the
// engine defaults.
type SchedulerConfig struct {
	MinIntervalDays      int    `yaml:"min_interval_days"`
	MaxRetries           int    `yaml:"max_retries"`
	BaseRetryDelay       string `yaml:"base_retry_delay"`
	MaxRetryDelay        string `yaml:"max_retry_delay"`
	RetentionDays        int    `yaml:"retention_days"`
	OverdueSweepInterval string `yaml:"overdue_sweep_interval"`
	CleanupSweepInterval string `yaml:"cleanup_sweep_interval"`
	Timezone             string `yaml:"timezone"`
}

// StoreConfig selects the schedule store backend.
type StoreConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `yaml:"driver"`

	// DSN is the PostgreSQL connection string. The usual environment
	// expansion applies, so secrets can come from the environment.
	DSN string `yaml:"dsn"`
}

// SecretsConfig selects the secret store backend.
type SecretsConfig struct {
	// Backend is "memory" or "awssm".
	Backend string `yaml:"backend"`

	// Region overrides the AWS region for the awssm backend.
	Region string `yaml:"region"`
}

// StrategiesConfig wires the optional rotation strategies. The regenerate
// and certificate strategies need no configuration and are always
// registered; database and api-key register only when configured here.
type StrategiesConfig struct {
	Database DatabaseStrategyConfig `yaml:"database"`
	APIKey   APIKeyStrategyConfig   `yaml:"api_key"`

	// CertificateValidity overrides the certificate lifetime, as a Go
	// duration string. Empty uses the strategy default.
	CertificateValidity string `yaml:"certificate_validity"`
}

// DatabaseStrategyConfig connects the database strategy to the database
// whose role passwords it rotates.
type DatabaseStrategyConfig struct {
	DSN string `yaml:"dsn"`
}

// APIKeyStrategyConfig points the api-key strategy at its provisioning
// service.
type APIKeyStrategyConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

// NotifyConfig configures notification delivery.
type NotifyConfig struct {
	QueueSize int             `yaml:"queue_size"`
	Webhooks  []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig is one webhook sink.
type WebhookConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Events  []string          `yaml:"events"`
}

// Load reads and parses the configuration file. A missing file at the
// default path is not an error; defaults apply.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			return &File{}, nil
		}
		return nil, &rotorerrors.ConfigError{
			Field:      "config",
			Value:      path,
			Message:    fmt.Sprintf("cannot read configuration file: %v", err),
			Suggestion: "pass --config with the path to your rotor.yaml",
		}
	}

	// Environment references like ${PGPASSWORD} are expanded before
	// parsing so credentials stay out of the file.
	expanded := os.ExpandEnv(string(data))

	var file File
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, &rotorerrors.ConfigError{
			Field:   "config",
			Value:   path,
			Message: fmt.Sprintf("invalid YAML: %v", err),
		}
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

func (f *File) validate() error {
	switch f.Store.Driver {
	case "", "memory":
	case "postgres":
		if f.Store.DSN == "" {
			return &rotorerrors.ConfigError{
				Field:      "store.dsn",
				Message:    "postgres driver requires a connection string",
				Suggestion: "set store.dsn, e.g. postgres://rotor@localhost/rotor?sslmode=disable",
			}
		}
	default:
		return &rotorerrors.ConfigError{
			Field:      "store.driver",
			Value:      f.Store.Driver,
			Message:    "unknown schedule store driver",
			Suggestion: "supported drivers: memory, postgres",
		}
	}

	switch f.Secrets.Backend {
	case "", "memory", "awssm":
	default:
		return &rotorerrors.ConfigError{
			Field:      "secrets.backend",
			Value:      f.Secrets.Backend,
			Message:    "unknown secret store backend",
			Suggestion: "supported backends: memory, awssm",
		}
	}

	for i, hook := range f.Notify.Webhooks {
		if hook.URL == "" {
			return &rotorerrors.ConfigError{
				Field:   fmt.Sprintf("notify.webhooks[%d].url", i),
				Message: "webhook URL is required",
			}
		}
		for _, event := range hook.Events {
			if !validEventType(event) {
				return &rotorerrors.ConfigError{
					Field:      fmt.Sprintf("notify.webhooks[%d].events", i),
					Value:      event,
					Message:    "unknown event type",
					Suggestion: "valid types: scheduled, success, failure, overdue, retries_exhausted",
				}
			}
		}
	}
	return nil
}

func validEventType(s string) bool {
	for _, et := range rotation.AllEventTypes() {
		if string(et) == s {
			return true
		}
	}
	return false
}

// SchedulerConfig materializes a rotation.Config from the file, starting
// from the engine defaults and overriding only what the file sets.
func (f *File) SchedulerConfig() (rotation.Config, error) {
	cfg := rotation.DefaultConfig()

	s := f.Scheduler
	if s.MinIntervalDays > 0 {
		cfg.MinIntervalDays = s.MinIntervalDays
	}
	if s.MaxRetries > 0 {
		cfg.MaxRetries = s.MaxRetries
	}
	if s.RetentionDays > 0 {
		cfg.RetentionDays = s.RetentionDays
	}

	var err error
	if cfg.BaseRetryDelay, err = overrideDuration("scheduler.base_retry_delay", s.BaseRetryDelay, cfg.BaseRetryDelay); err != nil {
		return cfg, err
	}
	if cfg.MaxRetryDelay, err = overrideDuration("scheduler.max_retry_delay", s.MaxRetryDelay, cfg.MaxRetryDelay); err != nil {
		return cfg, err
	}
	if cfg.OverdueSweepInterval, err = overrideDuration("scheduler.overdue_sweep_interval", s.OverdueSweepInterval, cfg.OverdueSweepInterval); err != nil {
		return cfg, err
	}
	if cfg.CleanupSweepInterval, err = overrideDuration("scheduler.cleanup_sweep_interval", s.CleanupSweepInterval, cfg.CleanupSweepInterval); err != nil {
		return cfg, err
	}

	if s.Timezone != "" {
		loc, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return cfg, &rotorerrors.ConfigError{
				Field:      "scheduler.timezone",
				Value:      s.Timezone,
				Message:    "unknown timezone",
				Suggestion: "use an IANA name like UTC or America/New_York",
			}
		}
		cfg.Location = loc
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func overrideDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, &rotorerrors.ConfigError{
			Field:      field,
			Value:      value,
			Message:    "invalid duration",
			Suggestion: "use Go duration syntax, e.g. 30s, 15m, 1h",
		}
	}
	return d, nil
}

// EventTypes converts the configured event names for a webhook.
func (w WebhookConfig) EventTypes() []rotation.EventType {
	out := make([]rotation.EventType, 0, len(w.Events))
	for _, e := range w.Events {
		out = append(out, rotation.EventType(e))
	}
	return out
}
