package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const defaultConfigFile = ".config/lastwords/config.toml"

// LoadFromFile decodes a TOML file over cfg. A missing file is not an error.
func LoadFromFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to stat config file %s", path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return errors.Wrapf(err, "failed to decode config file %s", path)
	}
	return nil
}

// DefaultFilePath returns the config file path, honouring LASTWORDS_CONFIG
func DefaultFilePath() string {
	if path := os.Getenv("LASTWORDS_CONFIG"); path != "" {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, defaultConfigFile)
}

// LoadFromEnv loads configuration from environment variables
// Environment variables override default values
func LoadFromEnv(cfg *Config) {
	// Detector configuration
	if graceDelay := os.Getenv("LASTWORDS_GRACE_DELAY"); graceDelay != "" {
		if delay, err := parseDuration(graceDelay); err == nil && delay >= 0 && delay <= cfg.Detector.MaxGraceDelay {
			cfg.Detector.GraceDelay = delay
		}
	}

	if shutdownTimeout := os.Getenv("LASTWORDS_SHUTDOWN_TIMEOUT"); shutdownTimeout != "" {
		if timeout, err := parseDuration(shutdownTimeout); err == nil && timeout >= 0 {
			cfg.Detector.ShutdownTimeout = timeout
		}
	}

	// Database configuration
	if dbPath := os.Getenv("LASTWORDS_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	// Daemon configuration
	if pidFile := os.Getenv("LASTWORDS_PID_FILE"); pidFile != "" {
		cfg.Daemon.PIDFile = pidFile
	}

	if logFile := os.Getenv("LASTWORDS_LOG_FILE"); logFile != "" {
		cfg.Daemon.LogFile = logFile
	}

	// X11 configuration
	if display := os.Getenv("LASTWORDS_DISPLAY"); display != "" {
		cfg.X11.Display = display
	}

	if pid := os.Getenv("LASTWORDS_PID"); pid != "" {
		if val, err := strconv.Atoi(pid); err == nil && val >= 0 {
			cfg.X11.PID = val
		}
	}

	if mode := os.Getenv("LASTWORDS_TERMINATE"); mode != "" {
		cfg.Terminate.Mode = mode
	}

	// Web configuration
	if webHost := os.Getenv("LASTWORDS_WEB_HOST"); webHost != "" {
		cfg.Web.Host = webHost
	}

	if webPort := os.Getenv("LASTWORDS_WEB_PORT"); webPort != "" {
		if port, err := strconv.Atoi(webPort); err == nil && port > 0 && port <= 65535 {
			cfg.Web.Port = port
		}
	}
}

// parseDuration accepts Go durations ("750ms") or plain milliseconds ("750")
func parseDuration(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// New creates a new Config with default values, the config file and the
// environment applied in that order
func New() (*Config, error) {
	cfg := Default()
	if path := DefaultFilePath(); path != "" {
		if err := LoadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}
	LoadFromEnv(cfg)
	return cfg, nil
}
