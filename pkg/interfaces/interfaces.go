// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"time"

	"github.com/gantry/gantry/pkg/cache"
	"github.com/gantry/gantry/pkg/release"
	"github.com/gantry/gantry/pkg/state"
	"github.com/gantry/gantry/pkg/types"
)

// StateManager handles persistent state for matrix cell runs
type StateManager interface {
	InitializeState(runID, workflowName, cellKey string) (*state.CellState, error)
	ReadState(cellKey string) (*state.CellState, error)
	UpdateStatus(cellKey string, status types.CellStatus) error
	RecordStep(cellKey string, result types.StepResult) error
	SetError(cellKey string, message string) error
	RemoveState(cellKey string) error
	IsLocked(cellKey string) (bool, error)
	DiscoverStates() (map[string]*state.CellState, error)
	StartHeartbeat(ctx context.Context)
	StopHeartbeat()
	Cleanup() error
}

// CacheManager handles the dependency cache shared by every cell
type CacheManager interface {
	Restore(key string, restoreKeys []string, workspace string) (cache.RestoreResult, error)
	Save(key string, paths []string, workspace string) error
	List() ([]cache.Entry, error)
	Clear() error
}

// ReleasePublisher stores assembled draft releases
type ReleasePublisher interface {
	Publish(rel *release.Release, workspace string) error
}

// RunNotifier handles workflow run notifications
type RunNotifier interface {
	NotifyRunStart(workflow string, cells int)
	NotifyCellFailure(cellKey string, err error)
	NotifyRunSuccess(workflow string, duration time.Duration)
	NotifyRunFailure(workflow string, err error)
}
