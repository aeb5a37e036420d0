// Package daemon holds process level helpers for long running notifier
// instances.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/anstrom/shodan-notifier/internal/logging"
)

const (
	// DefaultDirPermissions for the PID file directory
	DefaultDirPermissions = 0o750
	// DefaultFilePermissions for the PID file
	DefaultFilePermissions = 0o600
)

// AlreadyRunningError is returned by Acquire when a live process owns the PID file.
type AlreadyRunningError struct {
	PID  int
	Path string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("daemon already running with PID %d (pid file %s)", e.PID, e.Path)
}

// PIDFile keeps a second daemon from working on the same snapshot store.
type PIDFile struct {
	path   string
	logger *logging.Logger
}

// NewPIDFile returns a PID file at path. An empty path disables it.
func NewPIDFile(path string, logger *logging.Logger) *PIDFile {
	if logger == nil {
		logger = logging.Default()
	}
	return &PIDFile{path: path, logger: logger.WithComponent("pidfile")}
}

// Path returns the configured location.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire writes the current PID. Stale or unreadable files left by a dead
// process are replaced.
func (p *PIDFile) Acquire() error {
	if p.path == "" {
		return nil
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	if err := p.checkExisting(); err != nil {
		return err
	}

	pid := os.Getpid()
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(pid)), DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	p.logger.Info("Created PID file", "path", p.path, "pid", pid)
	return nil
}

// Release removes the PID file if it still holds the current PID.
func (p *PIDFile) Release() error {
	if p.path == "" {
		return nil
	}

	pid, err := readPID(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}
	if pid != os.Getpid() {
		p.logger.Warn("PID file owned by another process, leaving it", "path", p.path, "pid", pid)
		return nil
	}

	if err := os.Remove(p.path); err != nil {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	p.logger.Info("Removed PID file", "path", p.path)
	return nil
}

func (p *PIDFile) checkExisting() error {
	pid, err := readPID(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		// Invalid PID file, remove it
		p.logger.Warn("Removing unreadable PID file", "path", p.path, "error", err)
		_ = os.Remove(p.path)
		return nil
	}

	if pid != os.Getpid() && isProcessRunning(pid) {
		return &AlreadyRunningError{PID: pid, Path: p.path}
	}

	// Remove stale PID file
	_ = os.Remove(p.path)
	return nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid PID %q", text)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID %d", pid)
	}
	return pid, nil
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil
}
