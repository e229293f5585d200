package rotation

import (
	"context"
	"time"

	rotorerrors "github.com/systmms/rotor/internal/errors"
)

// StartSweepers launches the overdue monitor and retention cleanup loops.
// Both stop when ctx is cancelled or the scheduler is closed.
func (s *Scheduler) StartSweepers(ctx context.Context) {
	s.wg.Add(2)
	go s.overdueLoop(ctx)
	go s.cleanupLoop(ctx)
}

func (s *Scheduler) overdueLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.OverdueSweepInterval)
	defer ticker.Stop()

	logger := s.logger.WithPrefix("overdue-sweep")
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			caught, err := s.SweepOverdue(ctx)
			if err != nil {
				logger.Error("Overdue sweep failed: %v", err)
				continue
			}
			if caught > 0 {
				logger.Warn("Re-armed %d overdue rotation(s)", caught)
			}
		}
	}
}

func (s *Scheduler) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CleanupSweepInterval)
	defer ticker.Stop()

	logger := s.logger.WithPrefix("retention-sweep")
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			deleted, err := s.SweepRetention(ctx)
			if err != nil {
				logger.Error("Retention sweep failed: %v", err)
				continue
			}
			if deleted > 0 {
				logger.Info("Deleted %d expired schedule record(s)", deleted)
			}
		}
	}
}

// SweepOverdue scans the store for scheduled rows whose due time is already
// past without an armed timer — evidence of a timer lost to a crash — and
// re-arms an immediate execution for each. It raises a warning notification
// distinct from rotation-failure alerts, since an overdue rotation is an
// operational symptom even if the eventual rotation succeeds.
func (s *Scheduler) SweepOverdue(ctx context.Context) (int, error) {
	rows, err := s.store.ListByStatus(ctx, StatusScheduled, s.now())
	if err != nil {
		return 0, &rotorerrors.StoreError{Op: "listByStatus", Err: err}
	}

	caught := 0
	for _, sched := range rows {
		if sched.Policy.Mode != ModeAutomatic || sched.NextRotation.IsZero() {
			continue
		}
		if s.hasTimer(sched.SecretID) {
			// A live timer will fire on its own.
			continue
		}
		s.metrics.RecordOverdue()
		s.notify(EventOverdue, sched.SecretID,
			"rotation was due at "+sched.NextRotation.Format(time.RFC3339), sched.Attempts)
		s.armTimer(sched.SecretID, s.now())
		caught++
	}
	return caught, nil
}

// SweepRetention hard-deletes completed and cancelled schedules older than
// the retention window. Scheduled, in-progress and failed rows are never
// touched.
func (s *Scheduler) SweepRetention(ctx context.Context) (int, error) {
	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)

	deleted := 0
	for _, status := range []Status{StatusCompleted, StatusCancelled} {
		n, err := s.store.DeleteOlderThan(ctx, status, cutoff)
		if err != nil {
			return deleted, &rotorerrors.StoreError{Op: "deleteOlderThan", Err: err}
		}
		deleted += n
	}
	return deleted, nil
}
