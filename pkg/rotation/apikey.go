package rotation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	rotorerrors "github.com/systmms/rotor/internal/errors"
	"github.com/systmms/rotor/internal/logging"
	"github.com/systmms/rotor/pkg/secretstore"
)

// APIKeyStrategy rotates keys issued by an external provisioning service.
// It asks the service to mint a new key for the secret's subject, stores
// the returned key, then asks the service to revoke the previous one.
// Revocation failure is logged but does not fail the rotation: the new key
// is already live.
type APIKeyStrategy struct {
	endpoint string
	token    string
	client   *http.Client
	secrets  secretstore.Store
	logger   *logging.Logger
}

type apiKeyRequest struct {
	Subject string `json:"subject"`
	Action  string `json:"action"`
	KeyID   string `json:"key_id,omitempty"`
}

type apiKeyResponse struct {
	Key   string `json:"key"`
	KeyID string `json:"key_id"`
}

// NewAPIKeyStrategy creates an API key rotation strategy against a
// provisioning endpoint. token is sent as a bearer credential.
func NewAPIKeyStrategy(endpoint, token string, secrets secretstore.Store, logger *logging.Logger) *APIKeyStrategy {
	return &APIKeyStrategy{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
		secrets:  secrets,
		logger:   logger,
	}
}

// Key returns the strategy identifier.
func (a *APIKeyStrategy) Key() string {
	return "api-key"
}

// Execute mints a replacement key and revokes the old one.
func (a *APIKeyStrategy) Execute(ctx context.Context, secretID string, policy Policy) (*Result, error) {
	fail := func(err error) (*Result, error) {
		return nil, &rotorerrors.StrategyError{Strategy: a.Key(), SecretID: secretID, Err: err}
	}

	oldVersion := ""
	oldKeyID := ""
	if current, err := a.secrets.Get(ctx, secretID); err == nil {
		oldVersion = current.Version
		var prev apiKeyResponse
		if json.Unmarshal(current.Data, &prev) == nil {
			oldKeyID = prev.KeyID
		}
	}

	minted, err := a.call(ctx, apiKeyRequest{Subject: secretID, Action: "create"})
	if err != nil {
		return fail(fmt.Errorf("failed to mint new key: %w", err))
	}
	if minted.Key == "" {
		return fail(fmt.Errorf("provisioning service returned an empty key"))
	}

	payload, err := json.Marshal(minted)
	if err != nil {
		return fail(err)
	}
	newVersion, err := a.secrets.Put(ctx, secretID, payload)
	if err != nil {
		return fail(fmt.Errorf("key minted but secret store write failed: %w", err))
	}

	if oldKeyID != "" {
		if _, err := a.call(ctx, apiKeyRequest{Subject: secretID, Action: "revoke", KeyID: oldKeyID}); err != nil {
			a.logger.Warn("Failed to revoke previous key %s for %s: %v", oldKeyID, secretID, err)
		}
	}

	a.logger.Info("Rotated API key for %s", secretID)
	return &Result{
		SecretID:   secretID,
		OldVersion: oldVersion,
		NewVersion: newVersion,
		RotatedAt:  nowUTC(),
	}, nil
}

func (a *APIKeyStrategy) call(ctx context.Context, req apiKeyRequest) (*apiKeyResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("provisioning service returned %d: %s", resp.StatusCode, snippet)
	}

	var out apiKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid response from provisioning service: %w", err)
	}
	return &out, nil
}
