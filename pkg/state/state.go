// Package state provides persistent run state for Gantry
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/process"
	"github.com/gantry/gantry/pkg/types"
)

// CellState represents the persistent state of one matrix cell run
type CellState struct {
	RunID        string                 `json:"runId"`
	WorkflowName string                 `json:"workflowName"`
	CellKey      string                 `json:"cellKey"`
	Status       types.CellStatus       `json:"status"`
	Steps        []types.StepResult     `json:"steps,omitempty"`
	StartedAt    time.Time              `json:"startedAt"`
	Duration     time.Duration          `json:"duration,omitempty"`
	ProcessID    int                    `json:"processId"`
	Heartbeat    time.Time              `json:"heartbeat"`
	LastError    string                 `json:"lastError,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// StateManager handles persistent state files under .gantry/state
type StateManager struct {
	stateDir       string
	logger         logger.Logger
	mu             sync.RWMutex
	states         map[string]*CellState
	heartbeatStop  chan struct{}
	heartbeatTimer *time.Ticker
}

// NewStateManager creates a new state manager
func NewStateManager(rootDir string, log logger.Logger) *StateManager {
	if log == nil {
		log = logger.CreateLogger("", "error")
	}
	stateDir := filepath.Join(rootDir, ".gantry", "state")

	// Ensure state directory exists
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		log.Error("Failed to create state directory", logger.WithField("error", err))
	}

	return &StateManager{
		stateDir: stateDir,
		logger:   log,
		states:   make(map[string]*CellState),
	}
}

// InitializeState creates state for a cell at the start of a run
func (sm *StateManager) InitializeState(runID, workflowName, cellKey string) (*CellState, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state := &CellState{
		RunID:        runID,
		WorkflowName: workflowName,
		CellKey:      cellKey,
		Status:       types.CellStatusPending,
		StartedAt:    time.Now(),
		ProcessID:    os.Getpid(),
		Heartbeat:    time.Now(),
		Metadata:     make(map[string]interface{}),
	}

	if err := sm.saveStateFile(state); err != nil {
		return nil, fmt.Errorf("failed to save initial state: %w", err)
	}

	sm.states[cellKey] = state
	return state, nil
}

// ReadState reads the state for a cell
func (sm *StateManager) ReadState(cellKey string) (*CellState, error) {
	sm.mu.RLock()

	// Check memory cache first
	if state, ok := sm.states[cellKey]; ok {
		sm.mu.RUnlock()
		return state, nil
	}
	sm.mu.RUnlock()

	// Load from file
	return sm.loadStateFile(cellKey)
}

// UpdateStatus updates the run status of a cell
func (sm *StateManager) UpdateStatus(cellKey string, status types.CellStatus) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state, err := sm.stateLocked(cellKey)
	if err != nil {
		return err
	}

	state.Status = status
	if status == types.CellStatusSucceeded || status == types.CellStatusFailed ||
		status == types.CellStatusCancelled {
		state.Duration = time.Since(state.StartedAt)
	}
	state.Heartbeat = time.Now()

	return sm.saveStateFile(state)
}

// RecordStep appends a step result to a cell's state
func (sm *StateManager) RecordStep(cellKey string, result types.StepResult) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state, err := sm.stateLocked(cellKey)
	if err != nil {
		return err
	}

	state.Steps = append(state.Steps, result)
	state.Heartbeat = time.Now()

	return sm.saveStateFile(state)
}

// SetError records a cell-level failure message
func (sm *StateManager) SetError(cellKey string, message string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state, err := sm.stateLocked(cellKey)
	if err != nil {
		return err
	}

	state.LastError = message
	state.Heartbeat = time.Now()

	return sm.saveStateFile(state)
}

// RemoveState removes the state for a cell
func (sm *StateManager) RemoveState(cellKey string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, cellKey)

	stateFile := sm.getStateFilePath(cellKey)
	if err := os.Remove(stateFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}

	return nil
}

// DiscoverStates finds all existing state files
func (sm *StateManager) DiscoverStates() (map[string]*CellState, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	states := make(map[string]*CellState)

	files, err := os.ReadDir(sm.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return states, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(sm.stateDir, file.Name()))
		if err != nil {
			sm.logger.Warn("Failed to read state file",
				logger.WithField("file", file.Name()),
				logger.WithField("error", err))
			continue
		}

		var state CellState
		if err := json.Unmarshal(data, &state); err != nil {
			sm.logger.Warn("Failed to parse state file",
				logger.WithField("file", file.Name()),
				logger.WithField("error", err))
			continue
		}

		states[state.CellKey] = &state
	}

	return states, nil
}

// IsLocked checks if a cell is being run by another live process
func (sm *StateManager) IsLocked(cellKey string) (bool, error) {
	state, err := sm.loadStateFile(cellKey)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	if state.ProcessID == os.Getpid() {
		return false, nil // Our own process
	}

	if !process.IsAlive(state.ProcessID) {
		return false, nil
	}

	// Consider the owner dead if the heartbeat is older than 30 seconds
	if time.Since(state.Heartbeat) > 30*time.Second {
		return false, nil
	}

	if state.Status != types.CellStatusRunning && state.Status != types.CellStatusPending {
		return false, nil
	}

	return true, nil
}

// StartHeartbeat starts the heartbeat updater
func (sm *StateManager) StartHeartbeat(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		return // Already running
	}

	sm.heartbeatStop = make(chan struct{})
	sm.heartbeatTimer = time.NewTicker(10 * time.Second)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sm.heartbeatStop:
				return
			case <-sm.heartbeatTimer.C:
				sm.updateHeartbeats()
			}
		}
	}()
}

// StopHeartbeat stops the heartbeat updater
func (sm *StateManager) StopHeartbeat() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		sm.heartbeatTimer.Stop()
		sm.heartbeatTimer = nil
	}

	if sm.heartbeatStop != nil {
		close(sm.heartbeatStop)
		sm.heartbeatStop = nil
	}
}

// Cleanup marks remaining running cells as cancelled and releases the
// process claim on their state files.
func (sm *StateManager) Cleanup() error {
	sm.StopHeartbeat()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, state := range sm.states {
		if state.Status == types.CellStatusRunning || state.Status == types.CellStatusPending {
			state.Status = types.CellStatusCancelled
		}
		state.ProcessID = 0
		if err := sm.saveStateFile(state); err != nil {
			sm.logger.Warn("Failed to save final state",
				logger.WithField("cell", state.CellKey),
				logger.WithField("error", err))
		}
	}

	return nil
}

// Private methods

func (sm *StateManager) stateLocked(cellKey string) (*CellState, error) {
	state, ok := sm.states[cellKey]
	if ok {
		return state, nil
	}

	state, err := sm.loadStateFile(cellKey)
	if err != nil {
		return nil, fmt.Errorf("cell state not found: %s", cellKey)
	}
	sm.states[cellKey] = state
	return state, nil
}

func (sm *StateManager) getStateFilePath(cellKey string) string {
	return filepath.Join(sm.stateDir, sanitizeCellKey(cellKey)+".json")
}

func (sm *StateManager) loadStateFile(cellKey string) (*CellState, error) {
	data, err := os.ReadFile(sm.getStateFilePath(cellKey))
	if err != nil {
		return nil, err
	}

	var state CellState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	return &state, nil
}

func (sm *StateManager) saveStateFile(state *CellState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Write atomically using temp file
	path := sm.getStateFilePath(state.CellKey)
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempFile, path)
}

func (sm *StateManager) updateHeartbeats() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, state := range sm.states {
		state.Heartbeat = time.Now()
		if err := sm.saveStateFile(state); err != nil {
			sm.logger.Debug("Failed to update heartbeat",
				logger.WithField("cell", state.CellKey))
		}
	}
}

// sanitizeCellKey maps a cell key to a filesystem-safe file name
func sanitizeCellKey(cellKey string) string {
	if cellKey == "" {
		return "default"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_", ",", "+")
	return replacer.Replace(cellKey)
}
