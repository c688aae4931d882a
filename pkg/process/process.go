// Package process provides process liveness and termination utilities
package process

import (
	"os"
	"syscall"
	"time"
)

// Info represents information about a running process
type Info struct {
	PID       int
	IsRunning bool
}

// IsAlive reports whether a process with the given pid exists and can
// receive signals. A pid of 0 never counts as alive.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return proc.Signal(syscall.Signal(0)) == nil
}

// GetInfo returns liveness information about a process
func GetInfo(pid int) (*Info, error) {
	if _, err := os.FindProcess(pid); err != nil {
		return nil, err
	}

	return &Info{
		PID:       pid,
		IsRunning: IsAlive(pid),
	}, nil
}

// Terminate stops a process, trying SIGTERM before SIGKILL
func Terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	// Try graceful shutdown first
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return proc.Kill()
	}

	// Wait a bit for graceful shutdown
	time.Sleep(2 * time.Second)

	if IsAlive(pid) {
		return proc.Kill()
	}

	return nil
}
