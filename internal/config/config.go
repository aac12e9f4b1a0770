package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/megalab/megaid/pkg/snowflake"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "megaid.yml"

// Key sources
const (
	KeySourceEnv   = "env"
	KeySourceRedis = "redis"
)

// MegaidConfig represents the top-level megaid.yml configuration
type MegaidConfig struct {
	Version         string         `yaml:"version"`
	BitSize         int            `yaml:"bit_size,omitempty"`         // 64, 52 or 32 (default 64)
	DefaultMetadata map[string]any `yaml:"default_metadata,omitempty"` // Immutable data used when none is given
	Keys            *KeysConfig    `yaml:"keys,omitempty"`
}

// KeysConfig specifies where the key pair is loaded from
type KeysConfig struct {
	Source    string `yaml:"source,omitempty"`    // "env" or "redis"
	EnvFile   string `yaml:"env_file,omitempty"`  // .env file for the env source
	RedisURL  string `yaml:"redis_url,omitempty"` // Required for the redis source
	Namespace string `yaml:"namespace,omitempty"` // Redis namespace (default "default")
	Generate  *bool  `yaml:"generate,omitempty"`  // Generate and store a pair when none exists (default true)
}

// EnvOverrides are environment variables that override file settings
type EnvOverrides struct {
	BitSize   int    `env:"MEGAID_BIT_SIZE"`
	KeySource string `env:"MEGAID_KEY_SOURCE"`
	EnvFile   string `env:"MEGAID_ENV_FILE"`
	RedisURL  string `env:"MEGAID_REDIS_URL"`
	Namespace string `env:"MEGAID_NAMESPACE"`
}

// Default returns the configuration used when no file exists
func Default() *MegaidConfig {
	c := &MegaidConfig{Version: "1.0"}
	// Defaults always validate
	_ = c.Validate()
	return c
}

// Validate performs strict validation on the configuration and applies defaults
func (c *MegaidConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.BitSize == 0 {
		c.BitSize = int(snowflake.Bits64)
	}
	if !snowflake.Supported(snowflake.BitSize(c.BitSize)) {
		return fmt.Errorf("invalid bit_size: %d (must be 64, 52 or 32)", c.BitSize)
	}

	if c.Keys == nil {
		c.Keys = &KeysConfig{}
	}
	return c.Keys.Validate()
}

// Validate checks the key source settings and applies defaults
func (k *KeysConfig) Validate() error {
	if k.Source == "" {
		k.Source = KeySourceEnv
	}
	if k.Namespace == "" {
		k.Namespace = "default"
	}
	if k.Generate == nil {
		generate := true
		k.Generate = &generate
	}

	switch k.Source {
	case KeySourceEnv:
		if k.EnvFile == "" {
			k.EnvFile = ".env"
		}
	case KeySourceRedis:
		if k.RedisURL == "" {
			return fmt.Errorf("keys.redis_url is required when keys.source is 'redis'")
		}
	default:
		return fmt.Errorf("invalid keys.source: %s (must be 'env' or 'redis')", k.Source)
	}
	return nil
}

// ShouldGenerate reports whether a missing key pair may be generated
func (k *KeysConfig) ShouldGenerate() bool {
	return k.Generate == nil || *k.Generate
}

// BitWidth returns the configured identifier width
func (c *MegaidConfig) BitWidth() snowflake.BitSize {
	return snowflake.BitSize(c.BitSize)
}

// ApplyEnv overlays MEGAID_* variables from environ (os.Environ() format)
// and re-validates
func (c *MegaidConfig) ApplyEnv(environ []string) error {
	var o EnvOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: env.ToMap(environ)}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	if c.Keys == nil {
		c.Keys = &KeysConfig{}
	}
	if o.BitSize != 0 {
		c.BitSize = o.BitSize
	}
	if o.KeySource != "" {
		c.Keys.Source = o.KeySource
	}
	if o.EnvFile != "" {
		c.Keys.EnvFile = o.EnvFile
	}
	if o.RedisURL != "" {
		c.Keys.RedisURL = o.RedisURL
	}
	if o.Namespace != "" {
		c.Keys.Namespace = o.Namespace
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load reads and validates megaid.yml from the specified path
func Load(path string) (*MegaidConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config MegaidConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOptional loads path, falling back to Default when the file does not
// exist and was not explicitly requested
func LoadOptional(path string, explicit bool) (*MegaidConfig, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}
