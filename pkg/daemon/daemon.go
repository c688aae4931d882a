// Package daemon provides background watch daemon functionality
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/process"
)

// Manager manages a background `gantry watch` process
type Manager struct {
	projectRoot  string
	workflowPath string
	pidFile      string
	logFile      string
	stateDir     string
	logger       logger.Logger
	mu           sync.RWMutex
}

// Config represents daemon configuration
type Config struct {
	ProjectRoot  string
	WorkflowPath string
	LogLevel     string
}

// NewManager creates a new daemon manager
func NewManager(config Config) *Manager {
	stateDir := filepath.Join(config.ProjectRoot, ".gantry")
	pidFile := filepath.Join(stateDir, "daemon.pid")
	logFile := filepath.Join(stateDir, "logs", "daemon.log")

	log := logger.CreateLogger("", config.LogLevel)

	return &Manager{
		projectRoot:  config.ProjectRoot,
		workflowPath: config.WorkflowPath,
		pidFile:      pidFile,
		logFile:      logFile,
		stateDir:     stateDir,
		logger:       log,
	}
}

// Start launches a detached watch process and records its pid
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning() {
		return ErrAlreadyRunning
	}

	if err := os.MkdirAll(filepath.Dir(m.logFile), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve own executable: %w", err)
	}

	logOut, err := os.OpenFile(m.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open daemon log: %w", err)
	}
	defer logOut.Close()

	args := []string{"watch", "--root", m.projectRoot}
	if m.workflowPath != "" {
		args = append(args, "--workflow", m.workflowPath)
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logOut
	cmd.Stderr = logOut
	cmd.Dir = m.projectRoot

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	if err := m.writePIDFile(cmd.Process.Pid); err != nil {
		process.Terminate(cmd.Process.Pid)
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// Reap the child when it exits so it never lingers as a zombie
	go cmd.Wait()

	m.logger.Info(fmt.Sprintf("Daemon started with pid %d", cmd.Process.Pid))
	return nil
}

// Stop terminates the background watch process
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pid, err := m.readPIDFile()
	if err != nil || !process.IsAlive(pid) {
		m.removePIDFile()
		return ErrNotRunning
	}

	m.logger.Info("Stopping daemon...")

	if err := process.Terminate(pid); err != nil {
		return fmt.Errorf("%w: %v", ErrStopFailed, err)
	}

	m.removePIDFile()
	m.logger.Info("Daemon stopped")
	return nil
}

// Restart stops the daemon if running and starts a fresh one
func (m *Manager) Restart() error {
	if err := m.Stop(); err != nil && err != ErrNotRunning {
		return err
	}

	// Give the old process a moment to release its state files
	time.Sleep(2 * time.Second)

	return m.Start()
}

// Status returns the daemon status, nil when not running
func (m *Manager) Status() (*Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pid, err := m.readPIDFile()
	if err != nil {
		return nil, nil
	}

	if !process.IsAlive(pid) {
		return nil, nil
	}

	return &Status{
		Running: true,
		PID:     pid,
		LogFile: m.logFile,
	}, nil
}

// IsRunning checks if the daemon is running
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning()
}

// Private methods

func (m *Manager) isRunning() bool {
	pid, err := m.readPIDFile()
	if err != nil {
		return false
	}
	return process.IsAlive(pid)
}

func (m *Manager) writePIDFile(pid int) error {
	return os.WriteFile(m.pidFile, []byte(fmt.Sprintf("%d", pid)), 0o644)
}

func (m *Manager) readPIDFile() (int, error) {
	data, err := os.ReadFile(m.pidFile)
	if err != nil {
		return 0, err
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}

	return pid, nil
}

func (m *Manager) removePIDFile() {
	os.Remove(m.pidFile)
}

// Status represents daemon status
type Status struct {
	Running bool
	PID     int
	LogFile string
}
