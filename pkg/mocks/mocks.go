// Package mocks provides mock implementations of interfaces for testing.
// These follow Go best practices for test doubles.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/gantry/gantry/pkg/cache"
	"github.com/gantry/gantry/pkg/release"
	"github.com/gantry/gantry/pkg/state"
	"github.com/gantry/gantry/pkg/types"
)

// MockStateManager is a mock implementation of StateManager for testing
type MockStateManager struct {
	mu          sync.RWMutex
	states      map[string]*state.CellState
	initError   error
	updateError error
	heartbeatCh chan struct{}
}

// NewMockStateManager creates a new mock state manager
func NewMockStateManager() *MockStateManager {
	return &MockStateManager{
		states:      make(map[string]*state.CellState),
		heartbeatCh: make(chan struct{}, 1),
	}
}

// InitializeState initializes state for a matrix cell
func (m *MockStateManager) InitializeState(runID, workflowName, cellKey string) (*state.CellState, error) {
	if m.initError != nil {
		return nil, m.initError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cellState := &state.CellState{
		RunID:        runID,
		WorkflowName: workflowName,
		CellKey:      cellKey,
		Status:       types.CellStatusPending,
		StartedAt:    time.Now(),
	}

	m.states[cellKey] = cellState
	return cellState, nil
}

// ReadState retrieves the state for a cell
func (m *MockStateManager) ReadState(cellKey string) (*state.CellState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[cellKey], nil
}

// UpdateStatus updates the status for a cell
func (m *MockStateManager) UpdateStatus(cellKey string, status types.CellStatus) error {
	if m.updateError != nil {
		return m.updateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cellState, ok := m.states[cellKey]; ok {
		cellState.Status = status
	}
	return nil
}

// RecordStep appends a step result to a cell's state
func (m *MockStateManager) RecordStep(cellKey string, result types.StepResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cellState, ok := m.states[cellKey]; ok {
		cellState.Steps = append(cellState.Steps, result)
	}
	return nil
}

// SetError records the last error for a cell
func (m *MockStateManager) SetError(cellKey string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cellState, ok := m.states[cellKey]; ok {
		cellState.LastError = message
	}
	return nil
}

// RemoveState removes a cell's state
func (m *MockStateManager) RemoveState(cellKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, cellKey)
	return nil
}

// IsLocked reports whether another process holds the cell
func (m *MockStateManager) IsLocked(cellKey string) (bool, error) {
	return false, nil
}

// DiscoverStates returns all cell states
func (m *MockStateManager) DiscoverStates() (map[string]*state.CellState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]*state.CellState, len(m.states))
	for key, cellState := range m.states {
		states[key] = cellState
	}
	return states, nil
}

// StartHeartbeat starts the heartbeat mechanism
func (m *MockStateManager) StartHeartbeat(ctx context.Context) {
	select {
	case m.heartbeatCh <- struct{}{}:
	default:
	}
}

// StopHeartbeat stops the heartbeat mechanism
func (m *MockStateManager) StopHeartbeat() {
	// No-op for mock
}

// Cleanup performs cleanup operations
func (m *MockStateManager) Cleanup() error {
	return nil
}

// SetInitError sets the error to return from InitializeState
func (m *MockStateManager) SetInitError(err error) {
	m.initError = err
}

// SetUpdateError sets the error to return from UpdateStatus
func (m *MockStateManager) SetUpdateError(err error) {
	m.updateError = err
}

// StepStatuses returns the recorded step statuses for a cell in order
func (m *MockStateManager) StepStatuses(cellKey string) []types.StepStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cellState, ok := m.states[cellKey]
	if !ok {
		return nil
	}
	statuses := make([]types.StepStatus, len(cellState.Steps))
	for i, step := range cellState.Steps {
		statuses[i] = step.Status
	}
	return statuses
}

// MockCacheManager is a mock implementation of CacheManager for testing
type MockCacheManager struct {
	mu           sync.RWMutex
	entries      map[string]cache.Entry
	restoreError error
	saveError    error
	saveCalls    []string
	restoreCalls []string
}

// NewMockCacheManager creates a new mock cache manager
func NewMockCacheManager() *MockCacheManager {
	return &MockCacheManager{
		entries: make(map[string]cache.Entry),
	}
}

// Restore looks up an entry by exact key, then by restore-key prefix
func (m *MockCacheManager) Restore(key string, restoreKeys []string, workspace string) (cache.RestoreResult, error) {
	if m.restoreError != nil {
		return cache.RestoreResult{}, m.restoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.restoreCalls = append(m.restoreCalls, key)

	if entry, ok := m.entries[key]; ok {
		return cache.RestoreResult{Hit: true, MatchedKey: entry.Key, Exact: true}, nil
	}
	for _, prefix := range restoreKeys {
		for stored, entry := range m.entries {
			if len(stored) >= len(prefix) && stored[:len(prefix)] == prefix {
				return cache.RestoreResult{Hit: true, MatchedKey: entry.Key}, nil
			}
		}
	}
	return cache.RestoreResult{}, nil
}

// Save records an entry under the key
func (m *MockCacheManager) Save(key string, paths []string, workspace string) error {
	if m.saveError != nil {
		return m.saveError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCalls = append(m.saveCalls, key)
	if _, ok := m.entries[key]; ok {
		return nil
	}
	m.entries[key] = cache.Entry{Key: key, Paths: paths, CreatedAt: time.Now()}
	return nil
}

// List returns all entries
func (m *MockCacheManager) List() ([]cache.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]cache.Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry)
	}
	return entries, nil
}

// Clear removes all entries
func (m *MockCacheManager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]cache.Entry)
	return nil
}

// Seed inserts an entry directly, bypassing Save accounting
func (m *MockCacheManager) Seed(key string, paths []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = cache.Entry{Key: key, Paths: paths, CreatedAt: time.Now()}
}

// SetRestoreError sets the error to return from Restore
func (m *MockCacheManager) SetRestoreError(err error) {
	m.restoreError = err
}

// SetSaveError sets the error to return from Save
func (m *MockCacheManager) SetSaveError(err error) {
	m.saveError = err
}

// SaveCalls returns the keys passed to Save in order
func (m *MockCacheManager) SaveCalls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.saveCalls...)
}

// RestoreCalls returns the keys passed to Restore in order
func (m *MockCacheManager) RestoreCalls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.restoreCalls...)
}

// MockPublisher is a mock implementation of ReleasePublisher for testing
type MockPublisher struct {
	mu           sync.RWMutex
	publishError error
	published    []*release.Release
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the release
func (m *MockPublisher) Publish(rel *release.Release, workspace string) error {
	if m.publishError != nil {
		return m.publishError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, rel)
	return nil
}

// Published returns the releases published so far
func (m *MockPublisher) Published() []*release.Release {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*release.Release(nil), m.published...)
}

// SetPublishError sets the error to return from Publish
func (m *MockPublisher) SetPublishError(err error) {
	m.publishError = err
}

// MockNotifier is a mock implementation of RunNotifier for testing
type MockNotifier struct {
	mu       sync.RWMutex
	starts   int
	failures []string
	outcomes []bool
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyRunStart records a run start
func (m *MockNotifier) NotifyRunStart(workflow string, cells int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
}

// NotifyCellFailure records a cell failure
func (m *MockNotifier) NotifyCellFailure(cellKey string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, cellKey)
}

// NotifyRunSuccess records a successful run
func (m *MockNotifier) NotifyRunSuccess(workflow string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, true)
}

// NotifyRunFailure records a failed run
func (m *MockNotifier) NotifyRunFailure(workflow string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, false)
}

// Starts returns the number of run starts observed
func (m *MockNotifier) Starts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.starts
}

// CellFailures returns the cell keys reported as failed
func (m *MockNotifier) CellFailures() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.failures...)
}

// Outcomes returns run outcomes in order, true for success
func (m *MockNotifier) Outcomes() []bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]bool(nil), m.outcomes...)
}
