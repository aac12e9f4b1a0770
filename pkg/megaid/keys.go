package megaid

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// keySize is the number of random bytes behind a generated key.
const keySize = 32

// Keys holds the two independent signing secrets.
//
// Admin signs and verifies the immutable block; Shared signs and verifies the
// mutable block. The HMAC key is the UTF-8 encoding of each string as given,
// so keys written by other MEGAID implementations verify unchanged.
type Keys struct {
	Admin  string `json:"admin" yaml:"admin"`
	Shared string `json:"shared" yaml:"shared"`
}

// Validate checks that both keys are present.
func (k Keys) Validate() error {
	switch {
	case k.Admin == "" && k.Shared == "":
		return configErrorf("keys must include both admin and shared keys")
	case k.Admin == "":
		return configErrorf("admin key is missing")
	case k.Shared == "":
		return configErrorf("shared key is missing")
	}
	return nil
}

// String hides key material from logs and fmt output.
func (k Keys) String() string {
	return "megaid.Keys{Admin:<redacted>, Shared:<redacted>}"
}

// GenerateKeys returns a fresh random key pair. Each key is 32 bytes from
// crypto/rand, URL-safe base64 encoded.
func GenerateKeys() (Keys, error) {
	admin, err := randomKey()
	if err != nil {
		return Keys{}, err
	}
	shared, err := randomKey()
	if err != nil {
		return Keys{}, err
	}
	return Keys{Admin: admin, Shared: shared}, nil
}

// DeriveKeys builds a key pair deterministically from adminSecret:
// Admin = base64(secret), Shared = base64(secret + "-shared").
//
// Anyone who knows the secret can recompute both keys, and the shared key is
// derivable from the admin secret. Use it for reproducible fixtures only,
// never for production key material.
func DeriveKeys(adminSecret string) Keys {
	return Keys{
		Admin:  base64.URLEncoding.EncodeToString([]byte(adminSecret)),
		Shared: base64.URLEncoding.EncodeToString([]byte(adminSecret + "-shared")),
	}
}

func randomKey() (string, error) {
	buf := make([]byte, keySize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// KeyProvider supplies key material to NewFromProvider. Implementations may
// read an environment store, a secrets file or a remote store; the engine
// itself never touches the file system or the process environment.
type KeyProvider interface {
	Keys(ctx context.Context) (Keys, error)
}

// StaticKeys is a KeyProvider that returns itself.
type StaticKeys Keys

// Keys implements KeyProvider.
func (s StaticKeys) Keys(context.Context) (Keys, error) {
	return Keys(s), nil
}

func (s StaticKeys) String() string { return Keys(s).String() }
