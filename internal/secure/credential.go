// Package secure generates replacement credentials in memory-safe buffers.
//
// Generated values live in memguard locked buffers: mlocked so they cannot
// be swapped to disk, guarded against overflow, and wiped on destruction.
// Callers must Destroy a credential as soon as the value has been handed to
// the secret store.
package secure

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// Alphanumeric charset avoids characters that commonly need escaping in
// connection strings and shell contexts.
const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is the credential length used when callers pass 0.
const DefaultLength = 32

// Credential is a generated secret value held in protected memory.
type Credential struct {
	buf *memguard.LockedBuffer
}

// NewCredential generates a random credential of the given length.
func NewCredential(length int) (*Credential, error) {
	if length <= 0 {
		length = DefaultLength
	}

	buf := memguard.NewBufferRandom(length)
	if buf == nil || !buf.IsAlive() {
		return nil, fmt.Errorf("failed to allocate protected buffer of %d bytes", length)
	}

	// Map the raw random bytes onto the credential charset in place; the
	// intermediate randomness never leaves the locked buffer.
	data := buf.Bytes()
	for i := range data {
		data[i] = charset[int(data[i])%len(charset)]
	}

	return &Credential{buf: buf}, nil
}

// Bytes exposes the credential value. The slice aliases protected memory
// and becomes invalid after Destroy.
func (c *Credential) Bytes() []byte {
	return c.buf.Bytes()
}

// String copies the credential into an ordinary string. Prefer Bytes where
// the consumer accepts a byte slice.
func (c *Credential) String() string {
	return string(c.buf.Bytes())
}

// Destroy wipes and releases the protected buffer. Idempotent.
func (c *Credential) Destroy() {
	if c.buf != nil {
		c.buf.Destroy()
	}
}
