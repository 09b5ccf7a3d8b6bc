package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration.
type Config struct {
	CurrentContext string             `yaml:"currentContext" json:"currentContext"`
	Contexts       map[string]Context `yaml:"contexts" json:"contexts"`
}

// Context holds connection settings for one service deployment.
type Context struct {
	Name    string `yaml:"name" json:"name"`
	Server  string `yaml:"server" json:"server"`
	Token   string `yaml:"token,omitempty" json:"token,omitempty"`
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// RequestTimeout parses the per-call timeout; empty means the client default.
func (c Context) RequestTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("context %q: invalid timeout %q: %w", c.Name, c.Timeout, err)
	}
	return d, nil
}

// LoadConfig reads the config file; a missing file yields an empty config.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Contexts: map[string]Context{},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]Context{}
	}
	return cfg, nil
}

// SaveConfig writes cfg with owner-only permissions since it holds tokens.
func SaveConfig(cfg *Config, path string) error {
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]Context{}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func defaultConfigPath() string {
	if env := os.Getenv("DOCAI_CONFIG"); env != "" {
		return env
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./docai-config.yaml"
	}
	return filepath.Join(dir, "docai", "config.yaml")
}

func setContext(cfg *Config, ctx Context, makeCurrent bool) {
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]Context{}
	}
	cfg.Contexts[ctx.Name] = ctx
	if cfg.CurrentContext == "" || makeCurrent {
		cfg.CurrentContext = ctx.Name
	}
}

func ensureContextExists(cfg *Config, name string) error {
	if _, ok := cfg.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	return nil
}

// updateToken rewrites the token of a saved context.
func updateToken(path, name, token string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	if err := ensureContextExists(cfg, name); err != nil {
		return err
	}
	ctx := cfg.Contexts[name]
	ctx.Token = token
	cfg.Contexts[name] = ctx
	return SaveConfig(cfg, path)
}
