// Package keystore supplies MEGAID key pairs to the engine from external
// stores: the process environment with an optional .env file, or Redis.
//
// Stores only load and save. Bootstrapper adds the policy of generating a
// fresh random pair when none exists, and implements megaid.KeyProvider.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/megalab/megaid/internal/logging"
	"github.com/megalab/megaid/pkg/megaid"
)

var (
	// ErrNotFound means the store holds no keys at all.
	ErrNotFound = errors.New("no keys found")

	// ErrIncompleteKeys means the store holds only one of the two keys.
	ErrIncompleteKeys = errors.New("incomplete key pair")

	// ErrKeysExist is returned by Save when the store already holds keys.
	ErrKeysExist = errors.New("keys already exist")
)

// Store loads and saves a key pair.
type Store interface {
	// Load returns ErrNotFound when no keys are stored.
	Load(ctx context.Context) (megaid.Keys, error)
	Save(ctx context.Context, keys megaid.Keys) error
	// Describe names the store for messages, e.g. "env file .env".
	Describe() string
}

// Bootstrapper loads keys from a store, generating and saving a random pair
// on first use when Generate is set.
type Bootstrapper struct {
	Store    Store
	Generate bool
	Logger   *slog.Logger
}

// Keys implements megaid.KeyProvider.
func (b *Bootstrapper) Keys(ctx context.Context) (megaid.Keys, error) {
	logger := b.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With(logging.Component("keystore"), slog.String("store", b.Store.Describe()))

	keys, err := b.Store.Load(ctx)
	if err == nil {
		logger.Debug("loaded keys")
		return keys, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return megaid.Keys{}, fmt.Errorf("failed to load keys from %s: %w", b.Store.Describe(), err)
	}
	if !b.Generate {
		return megaid.Keys{}, fmt.Errorf("%s: %w", b.Store.Describe(), ErrNotFound)
	}

	keys, err = megaid.GenerateKeys()
	if err != nil {
		return megaid.Keys{}, err
	}

	if err := b.Store.Save(ctx, keys); err != nil {
		if errors.Is(err, ErrKeysExist) {
			// Another process stored a pair between our load and save.
			logger.Debug("keys appeared concurrently, reloading")
			return b.Store.Load(ctx)
		}
		return megaid.Keys{}, fmt.Errorf("failed to save generated keys to %s: %w", b.Store.Describe(), err)
	}

	logger.Info("generated new key pair")
	return keys, nil
}

func keysFromValues(admin, shared, source string) (megaid.Keys, error) {
	switch {
	case admin == "" && shared == "":
		return megaid.Keys{}, ErrNotFound
	case admin == "" || shared == "":
		return megaid.Keys{}, fmt.Errorf("%s: %w", source, ErrIncompleteKeys)
	}
	return megaid.Keys{Admin: admin, Shared: shared}, nil
}
