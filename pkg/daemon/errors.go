package daemon

import "errors"

// Sentinel errors for background watcher management, checked with
// errors.Is() by the CLI daemon commands.
var (
	// ErrNotRunning indicates no background watcher holds the pidfile
	ErrNotRunning = errors.New("background watcher is not running")

	// ErrAlreadyRunning indicates a live watcher already holds the pidfile
	ErrAlreadyRunning = errors.New("background watcher is already running")

	// ErrStartFailed indicates the watcher process could not be spawned
	ErrStartFailed = errors.New("background watcher failed to start")

	// ErrStopFailed indicates the watcher process did not terminate
	ErrStopFailed = errors.New("background watcher failed to stop")
)
