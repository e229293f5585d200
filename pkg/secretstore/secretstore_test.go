package secretstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

func TestMemoryPutGet(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	v1, err := store.Put(ctx, "db-password-1", []byte("first"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if v1 != "v1" {
		t.Errorf("first version = %s, want v1", v1)
	}

	got, err := store.Get(ctx, "db-password-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data) != "first" || got.Version != "v1" {
		t.Errorf("Get = %q/%s, want first/v1", got.Data, got.Version)
	}
}

func TestMemoryVersionsMonotonic(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	versions := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		v, err := store.Put(ctx, "api-key", []byte{byte(i)})
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		versions = append(versions, v)
	}

	want := []string{"v1", "v2", "v3"}
	for i, v := range versions {
		if v != want[i] {
			t.Errorf("version %d = %s, want %s", i, v, want[i])
		}
	}
}

func TestMemoryGetMissing(t *testing.T) {
	store := NewMemory()
	if _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Error("Get(missing) should fail")
	}
}

type fakeSecretsManager struct {
	getOut    *secretsmanager.GetSecretValueOutput
	getErr    error
	putOut    *secretsmanager.PutSecretValueOutput
	putErr    error
	createOut *secretsmanager.CreateSecretOutput
	createErr error

	created bool
}

func (f *fakeSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return f.getOut, f.getErr
}

func (f *fakeSecretsManager) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	return f.putOut, f.putErr
}

func (f *fakeSecretsManager) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.created = true
	return f.createOut, f.createErr
}

func TestAWSSecretsManagerGet(t *testing.T) {
	client := &fakeSecretsManager{
		getOut: &secretsmanager.GetSecretValueOutput{
			SecretString: aws.String("hunter22"),
			VersionId:    aws.String("abc-123"),
		},
	}
	store := newAWSSecretsManagerWithClient(client)

	got, err := store.Get(context.Background(), "db-password-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data) != "hunter22" || got.Version != "abc-123" {
		t.Errorf("Get = %q/%s", got.Data, got.Version)
	}
}

func TestAWSSecretsManagerPut(t *testing.T) {
	client := &fakeSecretsManager{
		putOut: &secretsmanager.PutSecretValueOutput{VersionId: aws.String("v-9")},
	}
	store := newAWSSecretsManagerWithClient(client)

	version, err := store.Put(context.Background(), "db-password-1", []byte("new"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if version != "v-9" {
		t.Errorf("version = %s, want v-9", version)
	}
	if client.created {
		t.Error("CreateSecret should not be called when PutSecretValue succeeds")
	}
}

func TestAWSSecretsManagerPutCreatesMissing(t *testing.T) {
	client := &fakeSecretsManager{
		putErr:    errors.New("ResourceNotFoundException"),
		createOut: &secretsmanager.CreateSecretOutput{VersionId: aws.String("v-1")},
	}
	store := newAWSSecretsManagerWithClient(client)

	version, err := store.Put(context.Background(), "brand-new", []byte("val"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if version != "v-1" {
		t.Errorf("version = %s, want v-1", version)
	}
	if !client.created {
		t.Error("expected CreateSecret fallback")
	}
}
