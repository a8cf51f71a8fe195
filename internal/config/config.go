package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	TempDir   string `toml:"temp_dir"`
	LogDir    string `toml:"log_dir"`
}

// Workers contains dispatch and completion-polling settings.
type Workers struct {
	// Concurrency caps how many units the worker pool scores at once.
	// Zero means one worker per CPU.
	Concurrency int `toml:"concurrency"`
	// Window is the number of completions awaited per polling cycle.
	Window int `toml:"window"`
	// BatchSize is the number of inputs linked into each batch folder.
	BatchSize          int `toml:"batch_size"`
	PollTimeoutMillis  int `toml:"poll_timeout_ms"`
	PollIntervalMillis int `toml:"poll_interval_ms"`
}

// EngineCommand describes how to invoke one scoring backend.
type EngineCommand struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Report contains defaults for the report and filter collaborators.
type Report struct {
	Enabled bool   `toml:"enabled"`
	CWD     string `toml:"cwd"`
	Prefix  string `toml:"prefix"`
	Preview int    `toml:"preview_rows"`
}

// Config encapsulates all configuration values for openbq.
//
// Configuration sections by subsystem:
//   - Paths: output, scratch and log directories
//   - Workers: pool size, polling window and batch sizing
//   - Engines: external command per scoring backend
//   - Logging: log format and level
//   - Report: report generation defaults and path rewriting hints
type Config struct {
	Paths   Paths                    `toml:"paths"`
	Workers Workers                  `toml:"workers"`
	Engines map[string]EngineCommand `toml:"engines"`
	Logging Logging                  `toml:"logging"`
	Report  Report                   `toml:"report"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/openbq/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("openbq.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the scratch and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.TempDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Engine returns the command configured for the named engine.
func (c *Config) Engine(name string) (EngineCommand, bool) {
	cmd, ok := c.Engines[strings.ToLower(strings.TrimSpace(name))]
	return cmd, ok && strings.TrimSpace(cmd.Command) != ""
}

// PollTimeout is the bounded wait used by per-batch dispatch before sleeping.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Workers.PollTimeoutMillis) * time.Millisecond
}

// PollInterval is the sleep between per-batch completion polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workers.PollIntervalMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
