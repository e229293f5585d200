package rotation

import (
	"context"

	rotorerrors "github.com/systmms/rotor/internal/errors"
	"github.com/systmms/rotor/internal/logging"
	"github.com/systmms/rotor/internal/secure"
	"github.com/systmms/rotor/pkg/secretstore"
)

// RegenerateStrategy is the default strategy: it generates a fresh random
// credential and stores it as the secret's new value. Suitable for opaque
// tokens and passwords with no external system to update.
type RegenerateStrategy struct {
	secrets secretstore.Store
	length  int
	logger  *logging.Logger
}

// NewRegenerateStrategy creates the default regenerate strategy. length 0
// uses the default credential length.
func NewRegenerateStrategy(secrets secretstore.Store, length int, logger *logging.Logger) *RegenerateStrategy {
	return &RegenerateStrategy{secrets: secrets, length: length, logger: logger}
}

// Key returns the strategy identifier.
func (r *RegenerateStrategy) Key() string {
	return "regenerate"
}

// Execute generates and stores a new random value for the secret.
func (r *RegenerateStrategy) Execute(ctx context.Context, secretID string, policy Policy) (*Result, error) {
	oldVersion := ""
	if current, err := r.secrets.Get(ctx, secretID); err == nil {
		oldVersion = current.Version
	}

	cred, err := secure.NewCredential(r.length)
	if err != nil {
		return nil, &rotorerrors.StrategyError{Strategy: r.Key(), SecretID: secretID, Err: err}
	}
	defer cred.Destroy()

	newVersion, err := r.secrets.Put(ctx, secretID, cred.Bytes())
	if err != nil {
		return nil, &rotorerrors.StrategyError{Strategy: r.Key(), SecretID: secretID, Err: err}
	}

	r.logger.Info("Regenerated value for %s", secretID)
	return &Result{
		SecretID:   secretID,
		OldVersion: oldVersion,
		NewVersion: newVersion,
		RotatedAt:  nowUTC(),
	}, nil
}
