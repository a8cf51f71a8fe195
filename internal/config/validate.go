package config

import (
	"fmt"
	"slices"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateEngines(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateWorkers() error {
	return ensurePositiveMap(map[string]int{
		"workers.concurrency":     c.Workers.Concurrency,
		"workers.window":          c.Workers.Window,
		"workers.batch_size":      c.Workers.BatchSize,
		"workers.poll_timeout_ms": c.Workers.PollTimeoutMillis,
	})
}

func (c *Config) validateEngines() error {
	for name := range c.Engines {
		if !slices.Contains(engineNames, name) {
			return fmt.Errorf("engines.%s: unknown engine (expected one of %v)", name, engineNames)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
