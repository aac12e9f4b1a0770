package keystore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/megalab/megaid/pkg/megaid"
)

// Environment variable names holding the key pair.
const (
	AdminKeyVar  = "MEGAID_ADMIN_KEY"
	SharedKeyVar = "MEGAID_SHARED_KEY"
)

type envKeys struct {
	Admin  string `env:"MEGAID_ADMIN_KEY"`
	Shared string `env:"MEGAID_SHARED_KEY"`
}

// EnvStore reads keys from the process environment overlaid on an optional
// .env file. Variables already set in the environment win over the file.
// The process environment is never modified.
type EnvStore struct {
	// Path of the .env file. Empty disables the file.
	Path string

	// Environ returns the process environment. Defaults to os.Environ.
	Environ func() []string
}

// NewEnvStore creates a store backed by the .env file at path.
func NewEnvStore(path string) *EnvStore {
	return &EnvStore{Path: path}
}

// Describe implements Store.
func (s *EnvStore) Describe() string {
	if s.Path == "" {
		return "environment"
	}
	return "env file " + s.Path
}

// Load implements Store.
func (s *EnvStore) Load(_ context.Context) (megaid.Keys, error) {
	environ := os.Environ
	if s.Environ != nil {
		environ = s.Environ
	}
	vars := env.ToMap(environ())

	fileVars, err := s.readFile()
	if err != nil {
		return megaid.Keys{}, err
	}
	for k, v := range fileVars {
		if _, set := vars[k]; !set {
			vars[k] = v
		}
	}

	var cfg envKeys
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return megaid.Keys{}, fmt.Errorf("failed to parse key variables: %w", err)
	}
	return keysFromValues(cfg.Admin, cfg.Shared, s.Describe())
}

// Save writes the keys into the .env file, keeping any other entries, and
// restricts the file to its owner.
func (s *EnvStore) Save(_ context.Context, keys megaid.Keys) error {
	if s.Path == "" {
		return errors.New("no env file configured")
	}
	if err := keys.Validate(); err != nil {
		return err
	}

	vars, err := s.readFile()
	if err != nil {
		return err
	}
	if vars == nil {
		vars = map[string]string{}
	}
	if vars[AdminKeyVar] != "" || vars[SharedKeyVar] != "" {
		return fmt.Errorf("%s: %w", s.Path, ErrKeysExist)
	}
	vars[AdminKeyVar] = keys.Admin
	vars[SharedKeyVar] = keys.Shared

	if err := godotenv.Write(vars, s.Path); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.Path, err)
	}
	if err := os.Chmod(s.Path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict permissions on %s: %w", s.Path, err)
	}
	return nil
}

func (s *EnvStore) readFile() (map[string]string, error) {
	if s.Path == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	return vars, nil
}
