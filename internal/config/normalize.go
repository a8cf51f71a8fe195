package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkers()
	c.normalizeEngines()
	c.normalizeLogging()
	c.Report.CWD = strings.TrimSpace(c.Report.CWD)
	c.Report.Prefix = strings.TrimSpace(c.Report.Prefix)
	if c.Report.Preview <= 0 {
		c.Report.Preview = defaultPreviewRows
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
			return fmt.Errorf("paths.output_dir: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir()
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkers() {
	if c.Workers.Concurrency <= 0 {
		c.Workers.Concurrency = runtime.NumCPU()
	}
	if c.Workers.Window <= 0 {
		c.Workers.Window = defaultWindow
	}
	if c.Workers.BatchSize <= 0 {
		c.Workers.BatchSize = defaultBatchSize
	}
	if c.Workers.PollTimeoutMillis <= 0 {
		c.Workers.PollTimeoutMillis = defaultPollTimeoutMillis
	}
	if c.Workers.PollIntervalMillis < 0 {
		c.Workers.PollIntervalMillis = defaultPollIntervalMillis
	}
}

func (c *Config) normalizeEngines() {
	normalized := make(map[string]EngineCommand, len(c.Engines)+len(engineNames))
	for name, cmd := range c.Engines {
		key := strings.ToLower(strings.TrimSpace(name))
		cmd.Command = strings.TrimSpace(cmd.Command)
		if value, ok := os.LookupEnv("OPENBQ_" + strings.ToUpper(key) + "_COMMAND"); ok && strings.TrimSpace(value) != "" {
			cmd.Command = strings.TrimSpace(value)
		}
		normalized[key] = cmd
	}
	for _, name := range engineNames {
		if cmd, ok := normalized[name]; !ok || cmd.Command == "" {
			cmd.Command = defaultEngineCommand
			normalized[name] = cmd
		}
	}
	c.Engines = normalized
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
