// Package config loads the server configuration.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables prefixed with APEX_ (APEX_PROJECT_DIR,
//     APEX_LOG_LEVEL, APEX_JOURNAL_DATA_DIR, ...)
//  2. YAML config file (--config, or ~/.config/apex-spec/config.yaml when present)
//  3. Built-in defaults
//
// The loaded Config is passed explicitly to every component; nothing below
// the composition root reads the environment on its own.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/apex-spec/internal/logging"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "APEX_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// defaults are loaded first so every later layer only overrides.
const defaults = `
interpreter: bash
validator_timeout: 30s
journal:
  enabled: true
  max_detail_length: 2000
log:
  level: info
  format: json
metrics:
  addr: ""
`

// Config is the full server configuration.
type Config struct {
	// ProjectDir is used when a tool call names no project. Defaults to the
	// working directory at startup.
	ProjectDir string `koanf:"project_dir"`
	// CommandsDir holds the command documents listed by list_commands.
	CommandsDir string `koanf:"commands_dir"`
	// ScriptsDir holds the validator scripts.
	ScriptsDir       string         `koanf:"scripts_dir"`
	Interpreter      string         `koanf:"interpreter"`
	ValidatorTimeout time.Duration  `koanf:"validator_timeout"`
	Journal          JournalConfig  `koanf:"journal"`
	Log              logging.Config `koanf:"log"`
	Metrics          MetricsConfig  `koanf:"metrics"`
}

// JournalConfig controls the operation history database.
type JournalConfig struct {
	Enabled         bool   `koanf:"enabled"`
	DataDir         string `koanf:"data_dir"`
	MaxDetailLength int    `koanf:"max_detail_length"`
}

// MetricsConfig controls the Prometheus listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// For testing: allow overriding filesystem lookups.
var (
	getwd       = os.Getwd
	userHomeDir = os.UserHomeDir
	executable  = os.Executable
)

// sections are the nested blocks env keys may address, e.g.
// APEX_JOURNAL_DATA_DIR -> journal.data_dir.
var sections = []string{"journal", "log", "metrics"}

// DefaultPath returns ~/.config/apex-spec/config.yaml.
func DefaultPath() (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "apex-spec", "config.yaml"), nil
}

// Load reads configuration from defaults, the YAML file at path and the
// environment. An empty path uses DefaultPath, which may be absent; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := loadFile(k, path, explicit); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("config file %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("loading config file %s: %w", path, err)
	}
	return nil
}

// envKey maps APEX_SECTION_FIELD_NAME to section.field_name for known
// sections and APEX_FIELD_NAME to field_name otherwise.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(lower, section+"_"); ok {
			return section + "." + rest
		}
	}
	return lower
}

// applyDefaults fills values that depend on the runtime environment.
func applyDefaults(cfg *Config) error {
	if cfg.ProjectDir == "" {
		wd, err := getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		cfg.ProjectDir = wd
	}

	if cfg.CommandsDir == "" || cfg.ScriptsDir == "" {
		root, err := InstallRoot()
		if err != nil {
			return err
		}
		if cfg.CommandsDir == "" {
			cfg.CommandsDir = filepath.Join(root, "commands")
		}
		if cfg.ScriptsDir == "" {
			cfg.ScriptsDir = filepath.Join(root, "scripts")
		}
	}

	if cfg.Journal.DataDir == "" {
		home, err := userHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		cfg.Journal.DataDir = filepath.Join(home, ".apex-spec")
	}
	return nil
}

// InstallRoot returns the directory that ships commands/ and scripts/: the
// executable's directory, or its parent when the binary lives in bin/.
func InstallRoot() (string, error) {
	exe, err := executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	if filepath.Base(dir) == "bin" {
		dir = filepath.Dir(dir)
	}
	return dir, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.ProjectDir == "" {
		return errors.New("project_dir must not be empty")
	}
	if c.Interpreter == "" {
		return errors.New("interpreter must not be empty")
	}
	if c.ValidatorTimeout <= 0 {
		return fmt.Errorf("validator_timeout must be positive, got %s", c.ValidatorTimeout)
	}
	if c.Journal.MaxDetailLength < 0 {
		return fmt.Errorf("journal.max_detail_length must not be negative, got %d", c.Journal.MaxDetailLength)
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
