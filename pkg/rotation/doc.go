// Package rotation implements the secret rotation scheduling and execution
// engine.
//
// The engine decides when a managed secret must be rotated, executes that
// rotation exactly once per due cycle, retries on failure with bounded
// exponential backoff, and recovers its schedule after a process restart.
//
// # Architecture
//
// The Scheduler is an explicitly constructed object holding three injected
// collaborators:
//
//   - ScheduleStore: durable CRUD for schedule records with conditional
//     (compare-and-set) status transitions. The store is the source of
//     truth; every state change is persisted before the corresponding
//     in-memory timer is armed or disarmed.
//   - StrategyRegistry: resolves a policy's strategyKey to a
//     RotationStrategy that knows how to rotate one class of secret.
//   - Notifier: best-effort delivery of lifecycle events. Notification
//     failures never affect scheduler state.
//
// # Concurrency
//
// Each armed schedule corresponds to one timer. Timer callbacks run
// concurrently with each other and with explicit API calls. The only
// mutual-exclusion boundary is per secret id: the CAS transition into
// IN_PROGRESS against the persisted store is the sole synchronization
// primitive, so the design stays correct even with multiple scheduler
// processes sharing one store.
//
// # Usage
//
//	store := rotation.NewMemoryScheduleStore()
//	registry := rotation.NewStrategyRegistry(logger)
//	registry.Register(rotation.NewRegenerateStrategy(secrets, logger))
//
//	sched := rotation.NewScheduler(store, registry, notifier, cfg, logger)
//	if err := sched.Recover(ctx); err != nil {
//	    return err
//	}
//	sched.StartSweepers(ctx)
//	defer sched.Close()
//
//	_, err := sched.ScheduleRotation(ctx, "db-password-1", rotation.Policy{
//	    Mode:         rotation.ModeAutomatic,
//	    IntervalDays: 30,
//	    StrategyKey:  "database",
//	})
package rotation
