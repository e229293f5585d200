package rotation

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	rotorerrors "github.com/systmms/rotor/internal/errors"
	"github.com/systmms/rotor/internal/logging"
	"github.com/systmms/rotor/pkg/secretstore"
)

// CertificateStrategy reissues a TLS certificate and key pair. The secret
// value is a JSON document holding PEM-encoded certificate and private key.
// Certificates are self-signed; the common name is the secret id unless a
// subject mapping is provided.
type CertificateStrategy struct {
	secrets  secretstore.Store
	logger   *logging.Logger
	validity time.Duration

	// subjectFor maps a secret id to the certificate common name.
	subjectFor func(secretID string) string
}

type certificateBundle struct {
	CertPEM   string    `json:"cert_pem"`
	KeyPEM    string    `json:"key_pem"`
	NotAfter  time.Time `json:"not_after"`
	SerialHex string    `json:"serial"`
}

// NewCertificateStrategy creates a certificate reissue strategy. validity 0
// defaults to 90 days.
func NewCertificateStrategy(secrets secretstore.Store, validity time.Duration, logger *logging.Logger) *CertificateStrategy {
	if validity <= 0 {
		validity = 90 * 24 * time.Hour
	}
	return &CertificateStrategy{
		secrets:    secrets,
		logger:     logger,
		validity:   validity,
		subjectFor: func(secretID string) string { return secretID },
	}
}

// WithSubjectMapping overrides how secret ids map to certificate subjects.
func (c *CertificateStrategy) WithSubjectMapping(subjectFor func(secretID string) string) *CertificateStrategy {
	c.subjectFor = subjectFor
	return c
}

// Key returns the strategy identifier.
func (c *CertificateStrategy) Key() string {
	return "certificate"
}

// Execute generates a fresh key pair and certificate and stores the bundle.
func (c *CertificateStrategy) Execute(ctx context.Context, secretID string, policy Policy) (*Result, error) {
	fail := func(err error) (*Result, error) {
		return nil, &rotorerrors.StrategyError{Strategy: c.Key(), SecretID: secretID, Err: err}
	}

	oldVersion := ""
	if current, err := c.secrets.Get(ctx, secretID); err == nil {
		oldVersion = current.Version
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fail(fmt.Errorf("failed to generate key: %w", err))
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fail(err)
	}

	now := nowUTC()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: c.subjectFor(secretID)},
		NotBefore:    now.Add(-5 * time.Minute),
		NotAfter:     now.Add(c.validity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     []string{c.subjectFor(secretID)},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fail(fmt.Errorf("failed to create certificate: %w", err))
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fail(err)
	}

	bundle := certificateBundle{
		CertPEM:   string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		KeyPEM:    string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})),
		NotAfter:  template.NotAfter,
		SerialHex: serial.Text(16),
	}
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fail(err)
	}

	newVersion, err := c.secrets.Put(ctx, secretID, payload)
	if err != nil {
		return fail(fmt.Errorf("certificate issued but secret store write failed: %w", err))
	}

	c.logger.Info("Reissued certificate for %s (serial %s, expires %s)",
		secretID, bundle.SerialHex, bundle.NotAfter.Format(time.RFC3339))
	return &Result{
		SecretID:   secretID,
		OldVersion: oldVersion,
		NewVersion: newVersion,
		RotatedAt:  now,
	}, nil
}
