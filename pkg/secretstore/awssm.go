package secretstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// secretsManagerAPI is the subset of the AWS Secrets Manager client used by
// the store. Narrowed for testability.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// AWSSecretsManager implements Store on AWS Secrets Manager. Versions map
// to Secrets Manager version ids.
type AWSSecretsManager struct {
	client secretsManagerAPI
}

// NewAWSSecretsManager builds a store from the ambient AWS configuration
// (environment, shared config, instance role). Region may be empty to use
// the SDK default resolution.
func NewAWSSecretsManager(ctx context.Context, region string) (*AWSSecretsManager, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return &AWSSecretsManager{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// newAWSSecretsManagerWithClient injects a client. Used in tests.
func newAWSSecretsManagerWithClient(client secretsManagerAPI) *AWSSecretsManager {
	return &AWSSecretsManager{client: client}
}

// Get returns the current (AWSCURRENT) value of a secret.
func (s *AWSSecretsManager) Get(ctx context.Context, key string) (*Value, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", key, err)
	}

	var data []byte
	if out.SecretString != nil {
		data = []byte(*out.SecretString)
	} else {
		data = out.SecretBinary
	}

	value := &Value{Data: data, Updated: time.Now().UTC()}
	if out.VersionId != nil {
		value.Version = *out.VersionId
	}
	return value, nil
}

// Put stores a new version of a secret, creating the secret on first use.
func (s *AWSSecretsManager) Put(ctx context.Context, key string, data []byte) (string, error) {
	out, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(key),
		SecretString: aws.String(string(data)),
	})
	if err == nil {
		if out.VersionId != nil {
			return *out.VersionId, nil
		}
		return "", nil
	}

	// First rotation of a brand-new secret: create it instead.
	created, createErr := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(key),
		SecretString: aws.String(string(data)),
	})
	if createErr != nil {
		return "", fmt.Errorf("failed to put secret %s: %w", key, err)
	}
	if created.VersionId != nil {
		return *created.VersionId, nil
	}
	return "", nil
}
