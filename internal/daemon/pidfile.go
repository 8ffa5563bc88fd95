package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrPIDFileNotFound is returned when the PID file doesn't exist.
var ErrPIDFileNotFound = errors.New("PID file not found")

// PIDInfo is the parsed contents of a daemon PID file: spec.md §4.4's
// singleton protocol stores "<pid>\n<port>\n<root_path>" so that a second
// process can discover and (if the owner is dead) reclaim the file without
// re-deriving the port hash or root path.
type PIDInfo struct {
	PID      int
	Port     int
	RootPath string
}

// PIDFile manages a daemon's "<pid>\n<port>\n<root_path>" singleton file.
type PIDFile struct {
	path string
}

// NewPIDFile creates a new PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Write records the current process's PID alongside the port it bound and
// the project root it serves. Creates the directory if needed.
func (p *PIDFile) Write(port int, rootPath string) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	data := fmt.Sprintf("%d\n%d\n%s", os.Getpid(), port, rootPath)
	if err := os.WriteFile(p.path, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read parses the PID file into a PIDInfo.
func (p *PIDFile) Read() (PIDInfo, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return PIDInfo{}, ErrPIDFileNotFound
		}
		return PIDInfo{}, fmt.Errorf("failed to read PID file: %w", err)
	}

	lines := strings.SplitN(strings.TrimRight(string(data), "\n"), "\n", 3)
	pid, err := strconv.Atoi(lines[0])
	if err != nil {
		return PIDInfo{}, fmt.Errorf("invalid PID in file: %w", err)
	}
	info := PIDInfo{PID: pid}
	if len(lines) > 1 {
		if port, err := strconv.Atoi(lines[1]); err == nil {
			info.Port = port
		}
	}
	if len(lines) > 2 {
		info.RootPath = lines[2]
	}
	return info, nil
}

// Remove deletes the PID file. Returns nil if the file doesn't exist.
func (p *PIDFile) Remove() error {
	err := os.Remove(p.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning checks if the recorded PID is alive (spec.md §4.4: "signal 0").
func (p *PIDFile) IsRunning() bool {
	info, err := p.Read()
	if err != nil {
		return false
	}
	return processExists(info.PID)
}

// Signal sends a signal to the recorded process.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	info, err := p.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	process, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", info.PID, err)
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", info.PID, err)
	}
	return nil
}

// processExists checks if a process with the given PID exists. On Unix,
// FindProcess always succeeds, so liveness requires signal 0.
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
