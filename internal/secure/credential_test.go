package secure

import (
	"strings"
	"testing"
)

func TestNewCredentialLength(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"explicit length", 48, 48},
		{"default on zero", 0, DefaultLength},
		{"default on negative", -1, DefaultLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := NewCredential(tt.length)
			if err != nil {
				t.Fatalf("NewCredential(%d): %v", tt.length, err)
			}
			defer cred.Destroy()

			if got := len(cred.Bytes()); got != tt.want {
				t.Errorf("length = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewCredentialCharset(t *testing.T) {
	cred, err := NewCredential(64)
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	defer cred.Destroy()

	for _, b := range cred.Bytes() {
		if !strings.ContainsRune(charset, rune(b)) {
			t.Errorf("credential contains byte %q outside charset", b)
		}
	}
}

func TestCredentialsDiffer(t *testing.T) {
	a, err := NewCredential(32)
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	defer a.Destroy()

	b, err := NewCredential(32)
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	defer b.Destroy()

	if a.String() == b.String() {
		t.Error("two generated credentials are identical")
	}
}

func TestDestroyIdempotent(t *testing.T) {
	cred, err := NewCredential(16)
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	cred.Destroy()
	cred.Destroy()
}
