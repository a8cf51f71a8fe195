package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultLogDir             = "~/.local/share/openbq/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultWindow             = 10
	defaultBatchSize          = 30
	defaultPollTimeoutMillis  = 100
	defaultPollIntervalMillis = 3000
	defaultPreviewRows        = 50
	defaultEngineCommand      = "bqcore"
)

var engineNames = []string{"obqe", "ofiq", "biqt", "fusion"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	engines := make(map[string]EngineCommand, len(engineNames))
	for _, name := range engineNames {
		engines[name] = EngineCommand{Command: defaultEngineCommand}
	}
	return Config{
		Paths: Paths{
			TempDir: defaultTempDir(),
			LogDir:  defaultLogDir,
		},
		Workers: Workers{
			Window:             defaultWindow,
			BatchSize:          defaultBatchSize,
			PollTimeoutMillis:  defaultPollTimeoutMillis,
			PollIntervalMillis: defaultPollIntervalMillis,
		},
		Engines: engines,
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Report: Report{
			Preview: defaultPreviewRows,
		},
	}
}

func defaultTempDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "openbq", "tmp")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/openbq/tmp"
	}
	return filepath.Join(home, ".cache", "openbq", "tmp")
}
