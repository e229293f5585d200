// Package storage provides the PostgreSQL-backed schedule store.
//
// Conditional status transitions are expressed as single UPDATE statements
// guarded by the expected status, so the database row lock is the only
// synchronization between competing schedulers.
package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	rotorerrors "github.com/systmms/rotor/internal/errors"
	"github.com/systmms/rotor/pkg/rotation"
)

const schema = `
CREATE TABLE IF NOT EXISTS rotation_schedules (
	id            TEXT PRIMARY KEY,
	secret_id     TEXT NOT NULL,
	mode          TEXT NOT NULL,
	interval_days INTEGER NOT NULL,
	strategy_key  TEXT NOT NULL,
	status        TEXT NOT NULL,
	next_rotation TIMESTAMPTZ,
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_attempt  TIMESTAMPTZ,
	last_success  TIMESTAMPTZ,
	last_error    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS rotation_schedules_active_secret
	ON rotation_schedules (secret_id) WHERE status <> 'cancelled';

CREATE INDEX IF NOT EXISTS rotation_schedules_status_next
	ON rotation_schedules (status, next_rotation);
`

const scheduleColumns = `id, secret_id, mode, interval_days, strategy_key, status,
	next_rotation, attempts, last_attempt, last_success, last_error, created_at, updated_at`

// PostgresStore implements rotation.ScheduleStore on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Open connects to PostgreSQL, verifies the connection, and ensures the
// schema exists.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &rotorerrors.StoreError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &rotorerrors.StoreError{Op: "ping", Err: err}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, &rotorerrors.StoreError{Op: "migrate", Err: err}
	}
	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an existing connection without running migrations.
// Used in tests.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the schedule, cancelling any active row for the same
// secret in the same transaction.
func (p *PostgresStore) Create(ctx context.Context, schedule *rotation.Schedule) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return &rotorerrors.StoreError{Op: "create", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE rotation_schedules SET status = $1, updated_at = $2
		 WHERE secret_id = $3 AND status <> $1`,
		rotation.StatusCancelled, schedule.CreatedAt, schedule.SecretID)
	if err != nil {
		return &rotorerrors.StoreError{Op: "create", Err: err}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rotation_schedules (`+scheduleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		schedule.ID, schedule.SecretID,
		string(schedule.Policy.Mode), schedule.Policy.IntervalDays, schedule.Policy.StrategyKey,
		string(schedule.Status),
		nullableTime(schedule.NextRotation), schedule.Attempts,
		schedule.LastAttempt, schedule.LastSuccess, schedule.LastError,
		schedule.CreatedAt, schedule.UpdatedAt)
	if err != nil {
		return &rotorerrors.StoreError{Op: "create", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &rotorerrors.StoreError{Op: "create", Err: err}
	}
	return nil
}

// GetBySecretID returns the active schedule for a secret, or nil.
func (p *PostgresStore) GetBySecretID(ctx context.Context, secretID string) (*rotation.Schedule, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM rotation_schedules
		 WHERE secret_id = $1 AND status <> $2`,
		secretID, rotation.StatusCancelled)

	schedule, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &rotorerrors.StoreError{Op: "get", Err: err}
	}
	return schedule, nil
}

// CompareAndSetStatus performs the conditional transition as one guarded
// UPDATE. A zero row count means the expected status did not hold.
func (p *PostgresStore) CompareAndSetStatus(ctx context.Context, id string, expected, next rotation.Status, fields rotation.StatusFields) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE rotation_schedules SET
			status        = $1,
			updated_at    = $2,
			next_rotation = COALESCE($3, next_rotation),
			attempts      = COALESCE($4, attempts),
			last_attempt  = COALESCE($5, last_attempt),
			last_success  = COALESCE($6, last_success),
			last_error    = COALESCE($7, last_error)
		 WHERE id = $8 AND status = $9`,
		string(next), time.Now().UTC(),
		fields.NextRotation, nullableInt(fields.Attempts),
		fields.LastAttempt, fields.LastSuccess, fields.LastError,
		id, string(expected))
	if err != nil {
		return false, &rotorerrors.StoreError{Op: "cas", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, &rotorerrors.StoreError{Op: "cas", Err: err}
	}
	return affected == 1, nil
}

// ListByStatus returns schedules in a status due before the cutoff.
// Rows without a fire time are included.
func (p *PostgresStore) ListByStatus(ctx context.Context, status rotation.Status, before time.Time) ([]rotation.Schedule, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM rotation_schedules
		 WHERE status = $1 AND (next_rotation IS NULL OR next_rotation < $2)
		 ORDER BY next_rotation NULLS LAST`,
		string(status), before)
	if err != nil {
		return nil, &rotorerrors.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []rotation.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, &rotorerrors.StoreError{Op: "list", Err: err}
		}
		out = append(out, *schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, &rotorerrors.StoreError{Op: "list", Err: err}
	}
	return out, nil
}

// DeleteOlderThan hard-deletes terminal rows last touched before the cutoff.
func (p *PostgresStore) DeleteOlderThan(ctx context.Context, status rotation.Status, before time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM rotation_schedules WHERE status = $1 AND updated_at < $2`,
		string(status), before)
	if err != nil {
		return 0, &rotorerrors.StoreError{Op: "delete", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &rotorerrors.StoreError{Op: "delete", Err: err}
	}
	return int(affected), nil
}

// Close closes the underlying connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*rotation.Schedule, error) {
	var (
		s            rotation.Schedule
		mode         string
		status       string
		nextRotation sql.NullTime
		lastAttempt  sql.NullTime
		lastSuccess  sql.NullTime
	)
	err := row.Scan(&s.ID, &s.SecretID, &mode, &s.Policy.IntervalDays, &s.Policy.StrategyKey,
		&status, &nextRotation, &s.Attempts, &lastAttempt, &lastSuccess, &s.LastError,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.Policy.Mode = rotation.Mode(mode)
	s.Status = rotation.Status(status)
	if nextRotation.Valid {
		s.NextRotation = nextRotation.Time
	}
	if lastAttempt.Valid {
		t := lastAttempt.Time
		s.LastAttempt = &t
	}
	if lastSuccess.Valid {
		t := lastSuccess.Time
		s.LastSuccess = &t
	}
	return &s, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// nullableInt maps a nil pointer to SQL NULL for COALESCE.
func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
