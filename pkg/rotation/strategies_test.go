package rotation

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	rotorerrors "github.com/systmms/rotor/internal/errors"
	"github.com/systmms/rotor/internal/logging"
	"github.com/systmms/rotor/pkg/secretstore"
)

func testLogger() *logging.Logger {
	return logging.NewWithOutput(discard{}, false)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestRegenerateStrategy(t *testing.T) {
	secrets := secretstore.NewMemory()
	strategy := NewRegenerateStrategy(secrets, 24, testLogger())

	result, err := strategy.Execute(context.Background(), "app-token", Policy{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.SecretID != "app-token" {
		t.Errorf("SecretID = %s", result.SecretID)
	}
	if result.OldVersion != "" {
		t.Errorf("first rotation should have no old version, got %s", result.OldVersion)
	}
	if result.NewVersion != "v1" {
		t.Errorf("NewVersion = %s, want v1", result.NewVersion)
	}

	stored, err := secrets.Get(context.Background(), "app-token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Data) != 24 {
		t.Errorf("stored credential length = %d, want 24", len(stored.Data))
	}

	// Second rotation records the prior version and produces a new value.
	first := string(stored.Data)
	result2, err := strategy.Execute(context.Background(), "app-token", Policy{})
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if result2.OldVersion != "v1" || result2.NewVersion != "v2" {
		t.Errorf("versions = %s -> %s, want v1 -> v2", result2.OldVersion, result2.NewVersion)
	}
	stored2, _ := secrets.Get(context.Background(), "app-token")
	if string(stored2.Data) == first {
		t.Error("rotation produced an identical credential")
	}
}

func TestDatabaseStrategy(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`ALTER ROLE "app_rw" WITH PASSWORD`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPing()

	secrets := secretstore.NewMemory()
	strategy := NewDatabaseStrategy(db, secrets, testLogger()).
		WithRoleMapping(func(string) string { return "app_rw" })

	result, err := strategy.Execute(context.Background(), "db-password-1", Policy{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.NewVersion != "v1" {
		t.Errorf("NewVersion = %s, want v1", result.NewVersion)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}

	stored, err := secrets.Get(context.Background(), "db-password-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Data) == 0 {
		t.Error("no credential stored")
	}
}

func TestDatabaseStrategyExecFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`ALTER ROLE`).WillReturnError(context.DeadlineExceeded)

	secrets := secretstore.NewMemory()
	strategy := NewDatabaseStrategy(db, secrets, testLogger())

	_, err = strategy.Execute(context.Background(), "db-password-1", Policy{})
	if err == nil {
		t.Fatal("expected error")
	}
	var strategyErr *rotorerrors.StrategyError
	if !errors.As(err, &strategyErr) {
		t.Fatalf("error type = %T, want *StrategyError", err)
	}
	if strategyErr.Strategy != "database" || strategyErr.SecretID != "db-password-1" {
		t.Errorf("StrategyError = %s/%s", strategyErr.Strategy, strategyErr.SecretID)
	}

	// Nothing must reach the secret store on failure.
	if _, err := secrets.Get(context.Background(), "db-password-1"); err == nil {
		t.Error("secret store should be untouched after a failed rotation")
	}
}

func TestAPIKeyStrategy(t *testing.T) {
	var requests []apiKeyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		var req apiKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		requests = append(requests, req)
		json.NewEncoder(w).Encode(apiKeyResponse{Key: "key-" + req.Action, KeyID: "id-" + req.Action})
	}))
	defer server.Close()

	secrets := secretstore.NewMemory()
	strategy := NewAPIKeyStrategy(server.URL, "tok-123", secrets, testLogger())

	// First rotation: create only, nothing to revoke.
	if _, err := strategy.Execute(context.Background(), "svc-key", Policy{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(requests) != 1 || requests[0].Action != "create" {
		t.Fatalf("requests = %+v, want single create", requests)
	}

	// Second rotation revokes the key minted by the first.
	if _, err := strategy.Execute(context.Background(), "svc-key", Policy{}); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if len(requests) != 3 {
		t.Fatalf("request count = %d, want 3", len(requests))
	}
	if requests[2].Action != "revoke" || requests[2].KeyID != "id-create" {
		t.Errorf("revoke request = %+v", requests[2])
	}
}

func TestAPIKeyStrategyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	secrets := secretstore.NewMemory()
	strategy := NewAPIKeyStrategy(server.URL, "", secrets, testLogger())

	if _, err := strategy.Execute(context.Background(), "svc-key", Policy{}); err == nil {
		t.Fatal("expected error on 429")
	}
	if _, err := secrets.Get(context.Background(), "svc-key"); err == nil {
		t.Error("secret store should be untouched after a failed mint")
	}
}

func TestCertificateStrategy(t *testing.T) {
	secrets := secretstore.NewMemory()
	strategy := NewCertificateStrategy(secrets, 0, testLogger()).
		WithSubjectMapping(func(string) string { return "api.internal.example" })

	result, err := strategy.Execute(context.Background(), "tls-api", Policy{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, err := secrets.Get(context.Background(), "tls-api")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var bundle certificateBundle
	if err := json.Unmarshal(stored.Data, &bundle); err != nil {
		t.Fatalf("bundle: %v", err)
	}

	block, _ := pem.Decode([]byte(bundle.CertPEM))
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatal("stored bundle has no certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	if cert.Subject.CommonName != "api.internal.example" {
		t.Errorf("CN = %s", cert.Subject.CommonName)
	}
	if !cert.NotAfter.After(result.RotatedAt.Add(89 * 24 * time.Hour)) {
		t.Errorf("NotAfter = %s, want ~90 days out", cert.NotAfter)
	}

	keyBlock, _ := pem.Decode([]byte(bundle.KeyPEM))
	if keyBlock == nil || keyBlock.Type != "EC PRIVATE KEY" {
		t.Fatal("stored bundle has no key PEM")
	}
	if _, err := x509.ParseECPrivateKey(keyBlock.Bytes); err != nil {
		t.Fatalf("parse key: %v", err)
	}
}
