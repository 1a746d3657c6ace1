package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Detector configuration
	Detector DetectorConfig `toml:"detector"`

	// Database configuration
	Database DatabaseConfig `toml:"database"`

	// Daemon configuration
	Daemon DaemonConfig `toml:"daemon"`

	// X11 integration configuration
	X11 X11Config `toml:"x11"`

	// Termination behaviour once a shutdown sequence finishes
	Terminate TerminateConfig `toml:"terminate"`

	// Web server configuration
	Web WebConfig `toml:"web"`
}

// DetectorConfig holds finish detection configuration
type DetectorConfig struct {
	GraceDelay      time.Duration `toml:"grace_delay"`      // Wait after the last window closed
	MaxGraceDelay   time.Duration `toml:"-"`                // Maximum allowed grace delay
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"` // Grace delay for shutdown requests that name none
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string `toml:"path"` // Path to SQLite database file
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `toml:"pid_file"` // Path to PID file for daemon management
	LogFile string `toml:"log_file"` // Where the daemon child writes its log
}

// X11Config selects which windows are tracked
type X11Config struct {
	Display string `toml:"display"` // Empty means $DISPLAY
	PID     int    `toml:"pid"`     // Only track windows with this _NET_WM_PID; 0 tracks all
}

// Termination modes
const (
	TerminateSignal = "signal" // SIGTERM the tracked client
	TerminateExit   = "exit"   // Stop the daemon
	TerminateNone   = "none"   // Log only
)

// TerminateConfig holds the termination action configuration
type TerminateConfig struct {
	Mode string `toml:"mode"`
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host string `toml:"host"` // Host to bind web server to
	Port int    `toml:"port"` // Port for web server
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			GraceDelay:      5 * time.Second,
			MaxGraceDelay:   5 * time.Minute,
			ShutdownTimeout: 500 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path: "", // Empty means use default ~/.config/lastwords/lastwords.db
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/lastwords-%d.pid", os.Getuid()),
			LogFile: fmt.Sprintf("/tmp/lastwords-%d.log", os.Getuid()),
		},
		Terminate: TerminateConfig{
			Mode: TerminateNone,
		},
		Web: WebConfig{
			Host: "localhost",
			Port: 20000 + os.Getuid()%10000,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Detector.GraceDelay < 0 {
		return fmt.Errorf("grace delay cannot be negative")
	}

	if c.Detector.GraceDelay > c.Detector.MaxGraceDelay {
		return fmt.Errorf("grace delay (%v) cannot be greater than maximum (%v)",
			c.Detector.GraceDelay, c.Detector.MaxGraceDelay)
	}

	if c.Detector.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown timeout cannot be negative")
	}

	if c.X11.PID < 0 {
		return fmt.Errorf("x11 pid cannot be negative, got %d", c.X11.PID)
	}

	switch c.Terminate.Mode {
	case TerminateSignal:
		if c.X11.PID == 0 {
			return fmt.Errorf("terminate mode %q requires an x11 pid", c.Terminate.Mode)
		}
	case TerminateExit, TerminateNone:
	default:
		return fmt.Errorf("unknown terminate mode %q (valid: signal, exit, none)", c.Terminate.Mode)
	}

	// Validate web config
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	// Validate daemon config
	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	return nil
}

// SetGraceDelay sets the grace delay with validation
func (c *Config) SetGraceDelay(delay time.Duration) error {
	if delay < 0 {
		return fmt.Errorf("grace delay cannot be negative")
	}
	if delay > c.Detector.MaxGraceDelay {
		return fmt.Errorf("grace delay cannot be greater than %v", c.Detector.MaxGraceDelay)
	}
	c.Detector.GraceDelay = delay
	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// GraceDelay returns the configured grace delay
func (c *Config) GraceDelay() time.Duration {
	return c.Detector.GraceDelay
}

// ShutdownTimeout returns the default shutdown grace delay
func (c *Config) ShutdownTimeout() time.Duration {
	return c.Detector.ShutdownTimeout
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Detector:
    Grace Delay: %v
    Max Grace Delay: %v
    Shutdown Timeout: %v
  Database:
    Path: %s
  Daemon:
    PID File: %s
    Log File: %s
  X11:
    Display: %s
    PID: %d
  Terminate:
    Mode: %s
  Web:
    Host: %s
    Port: %d`,
		c.Detector.GraceDelay,
		c.Detector.MaxGraceDelay,
		c.Detector.ShutdownTimeout,
		c.Database.Path,
		c.Daemon.PIDFile,
		c.Daemon.LogFile,
		c.X11.Display,
		c.X11.PID,
		c.Terminate.Mode,
		c.Web.Host,
		c.Web.Port,
	)
}
