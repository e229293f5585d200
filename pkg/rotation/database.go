package rotation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	rotorerrors "github.com/systmms/rotor/internal/errors"
	"github.com/systmms/rotor/internal/logging"
	"github.com/systmms/rotor/internal/secure"
	"github.com/systmms/rotor/pkg/secretstore"
)

// DatabaseStrategy rotates a PostgreSQL role password: it generates a new
// credential, applies it with ALTER ROLE, verifies the connection still
// answers, and only then persists the value to the secret store.
//
// The secret id doubles as the role name unless a role mapping is provided.
type DatabaseStrategy struct {
	db      *sql.DB
	secrets secretstore.Store
	logger  *logging.Logger

	// roleFor maps a secret id to the database role it credentials.
	// Defaults to the identity mapping.
	roleFor func(secretID string) string
}

// NewDatabaseStrategy creates a database credential rotation strategy over
// an open admin connection.
func NewDatabaseStrategy(db *sql.DB, secrets secretstore.Store, logger *logging.Logger) *DatabaseStrategy {
	return &DatabaseStrategy{
		db:      db,
		secrets: secrets,
		logger:  logger,
		roleFor: func(secretID string) string { return secretID },
	}
}

// WithRoleMapping overrides how secret ids map to database roles.
func (d *DatabaseStrategy) WithRoleMapping(roleFor func(secretID string) string) *DatabaseStrategy {
	d.roleFor = roleFor
	return d
}

// Key returns the strategy identifier.
func (d *DatabaseStrategy) Key() string {
	return "database"
}

// Execute rotates the role password.
func (d *DatabaseStrategy) Execute(ctx context.Context, secretID string, policy Policy) (*Result, error) {
	fail := func(err error) (*Result, error) {
		return nil, &rotorerrors.StrategyError{Strategy: d.Key(), SecretID: secretID, Err: err}
	}

	oldVersion := ""
	if current, err := d.secrets.Get(ctx, secretID); err == nil {
		oldVersion = current.Version
	}

	cred, err := secure.NewCredential(secure.DefaultLength)
	if err != nil {
		return fail(err)
	}
	defer cred.Destroy()

	role := d.roleFor(secretID)
	// ALTER ROLE cannot take bind parameters; identifier and literal are
	// quoted explicitly.
	stmt := fmt.Sprintf("ALTER ROLE %s WITH PASSWORD %s",
		pq.QuoteIdentifier(role), pq.QuoteLiteral(cred.String()))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fail(fmt.Errorf("failed to update password for role %s: %w", role, err))
	}

	if err := d.db.PingContext(ctx); err != nil {
		return fail(fmt.Errorf("database unreachable after password change: %w", err))
	}

	newVersion, err := d.secrets.Put(ctx, secretID, cred.Bytes())
	if err != nil {
		return fail(fmt.Errorf("password changed but secret store write failed: %w", err))
	}

	d.logger.Info("Rotated database credential for role %s", role)
	return &Result{
		SecretID:   secretID,
		OldVersion: oldVersion,
		NewVersion: newVersion,
		RotatedAt:  nowUTC(),
	}, nil
}

// nowUTC is a tiny shim shared by strategies.
func nowUTC() time.Time {
	return time.Now().UTC()
}
