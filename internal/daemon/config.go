// Package daemon implements the WatcherDaemon (C4, spec.md §4.4): a
// long-lived process combining filesystem watching, single-instance
// discipline, and a local-loopback-only HTTP control API.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for one project's daemon instance.
type Config struct {
	// ProjectID identifies the project; also seeds the deterministic port.
	ProjectID string

	// RootPath is the project root the daemon watches and serves.
	RootPath string

	// StateDir holds the PID file and logs. Default: ~/.devmemory.
	StateDir string

	// Port overrides the deterministic hash (spec.md §4.4: "overridable
	// by env"). Zero means derive from ProjectID.
	Port int

	// Timeout bounds client-daemon HTTP calls. Default: 30s.
	Timeout time.Duration

	// ShutdownGracePeriod bounds graceful HTTP server shutdown.
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults for projectID.
func DefaultConfig(projectID, rootPath string) Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}
	return Config{
		ProjectID:           projectID,
		RootPath:            rootPath,
		StateDir:            filepath.Join(home, ".devmemory"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// EffectivePort returns Config.Port if set, otherwise the deterministic
// hash of ProjectID.
func (c Config) EffectivePort() int {
	if c.Port > 0 {
		return c.Port
	}
	return DerivePort(c.ProjectID)
}

// PIDPath is the singleton file path spec.md §4.4 names:
// "<state_dir>/daemon-<project_id>.pid".
func (c Config) PIDPath() string {
	return filepath.Join(c.StateDir, fmt.Sprintf("daemon-%s.pid", c.ProjectID))
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project id cannot be empty")
	}
	if c.RootPath == "" {
		return fmt.Errorf("root path cannot be empty")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state dir cannot be empty")
	}
	return nil
}

// EnsureStateDir creates StateDir if it doesn't exist.
func (c Config) EnsureStateDir() error {
	return os.MkdirAll(c.StateDir, 0755)
}
