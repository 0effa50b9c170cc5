package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML (or JSON) config file and expands environment variables.
// Keys missing from the file keep the values of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Config{Debug: true, EnableWebSocket: true}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadOrCreate behaves like LoadAndValidate but writes Default to path first
// when the file does not exist. created reports whether that happened.
func LoadOrCreate(path string) (cfg *Config, created bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		def := Default()
		if err := Save(path, &def); err != nil {
			return nil, false, err
		}
		created = true
	}

	cfg, err = LoadAndValidate(path)
	return cfg, created, err
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

var windowsEnvRef = regexp.MustCompile(`%([^%]+)%`)

// ExpandPath replaces %VAR% references with the environment value. Unset
// variables expand to the empty string.
func ExpandPath(p string) string {
	return windowsEnvRef.ReplaceAllStringFunc(p, func(m string) string {
		return os.Getenv(m[1 : len(m)-1])
	})
}

// CandidatePaths returns the expanded, non-empty lockfile candidates in order.
func (c *Config) CandidatePaths() []string {
	out := make([]string, 0, len(c.LockfilePaths))
	for _, p := range c.LockfilePaths {
		if e := ExpandPath(p); e != "" {
			out = append(out, e)
		}
	}
	return out
}
