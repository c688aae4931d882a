// Package config provides workflow management including hot-reload functionality
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/types"
)

// ReloadManager watches a workflow file and reloads it on change. Used
// by watch mode to re-run a workflow whenever its definition changes.
type ReloadManager struct {
	workflowPath   string
	logger         logger.Logger
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	lastModTime    time.Time
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isWatching     bool
}

// ReloadCallback is called when the workflow file changes
type ReloadCallback func(*types.Workflow, error)

// ReloadEventType represents the type of reload event
type ReloadEventType string

const (
	ReloadEventTypeModified ReloadEventType = "modified"
	ReloadEventTypeCreated  ReloadEventType = "created"
	ReloadEventTypeRemoved  ReloadEventType = "removed"
	ReloadEventTypeError    ReloadEventType = "error"
)

// NewReloadManager creates a new workflow reload manager
func NewReloadManager(workflowPath string, log logger.Logger) *ReloadManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &ReloadManager{
		workflowPath:   workflowPath,
		logger:         log,
		debouncePeriod: 500 * time.Millisecond,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// AddCallback adds a reload callback
func (rm *ReloadManager) AddCallback(callback ReloadCallback) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.callbacks = append(rm.callbacks, callback)
}

// StartWatching begins watching the workflow file for changes
func (rm *ReloadManager) StartWatching() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isWatching {
		return fmt.Errorf("already watching workflow file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	rm.watcher = watcher

	// Watch the directory: editors replace files rather than write them
	workflowDir := filepath.Dir(rm.workflowPath)
	if err := rm.watcher.Add(workflowDir); err != nil {
		rm.watcher.Close()
		return fmt.Errorf("failed to watch workflow directory: %w", err)
	}

	if stat, err := os.Stat(rm.workflowPath); err == nil {
		rm.lastModTime = stat.ModTime()
	}

	rm.isWatching = true

	go rm.watchLoop()

	rm.logger.Debug("Started watching workflow file",
		logger.WithField("path", rm.workflowPath))

	return nil
}

// StopWatching stops watching the workflow file
func (rm *ReloadManager) StopWatching() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.isWatching {
		return nil
	}

	rm.cancel()

	if rm.debounceTimer != nil {
		rm.debounceTimer.Stop()
		rm.debounceTimer = nil
	}

	if rm.watcher != nil {
		if err := rm.watcher.Close(); err != nil {
			rm.logger.Warn("Error closing file watcher", logger.WithField("error", err))
		}
		rm.watcher = nil
	}

	rm.isWatching = false

	rm.logger.Debug("Stopped watching workflow file")
	return nil
}

// IsWatching returns whether the manager is currently watching
func (rm *ReloadManager) IsWatching() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.isWatching
}

// TriggerReload manually triggers a workflow reload
func (rm *ReloadManager) TriggerReload() {
	rm.logger.Debug("Manually triggering workflow reload")
	rm.handleWorkflowChange(ReloadEventTypeModified)
}

// SetDebouncePeriod sets the debounce period for file change events
func (rm *ReloadManager) SetDebouncePeriod(period time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.debouncePeriod = period
}

func (rm *ReloadManager) watchLoop() {
	defer func() {
		if r := recover(); r != nil {
			rm.logger.Error("Workflow watcher panic recovered",
				logger.WithField("panic", r))
		}
	}()

	for {
		select {
		case <-rm.ctx.Done():
			return

		case event, ok := <-rm.watcher.Events:
			if !ok {
				return
			}

			if !rm.isWorkflowFileEvent(event.Name) {
				continue
			}

			rm.logger.Debug("Workflow file event received",
				logger.WithField("event", event.String()))

			eventType := rm.mapFsnotifyEvent(event.Op)
			rm.debounceReload(eventType)

		case err, ok := <-rm.watcher.Errors:
			if !ok {
				return
			}

			rm.logger.Error("Workflow file watcher error",
				logger.WithField("error", err))

			rm.notifyCallbacks(nil, err)
		}
	}
}

func (rm *ReloadManager) isWorkflowFileEvent(eventPath string) bool {
	workflowFileName := filepath.Base(rm.workflowPath)
	eventFileName := filepath.Base(eventPath)

	if eventFileName == workflowFileName {
		return true
	}

	// Temporary files that editors create while saving
	return strings.HasPrefix(eventFileName, workflowFileName)
}

func (rm *ReloadManager) mapFsnotifyEvent(op fsnotify.Op) ReloadEventType {
	switch {
	case op&fsnotify.Write == fsnotify.Write:
		return ReloadEventTypeModified
	case op&fsnotify.Create == fsnotify.Create:
		return ReloadEventTypeCreated
	case op&fsnotify.Remove == fsnotify.Remove:
		return ReloadEventTypeRemoved
	default:
		return ReloadEventTypeModified
	}
}

func (rm *ReloadManager) debounceReload(eventType ReloadEventType) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.debounceTimer != nil {
		rm.debounceTimer.Stop()
	}

	rm.debounceTimer = time.AfterFunc(rm.debouncePeriod, func() {
		rm.handleWorkflowChange(eventType)
	})
}

func (rm *ReloadManager) handleWorkflowChange(eventType ReloadEventType) {
	rm.logger.Debug("Processing workflow change",
		logger.WithField("eventType", eventType))

	if eventType == ReloadEventTypeRemoved {
		rm.notifyCallbacks(nil, fmt.Errorf("workflow file was removed: %s", rm.workflowPath))
		return
	}

	stat, err := os.Stat(rm.workflowPath)
	if err != nil {
		rm.logger.Error("Failed to stat workflow file",
			logger.WithField("error", err))
		rm.notifyCallbacks(nil, err)
		return
	}

	rm.mu.Lock()
	if !stat.ModTime().After(rm.lastModTime) {
		rm.mu.Unlock()
		rm.logger.Debug("Workflow file not modified, skipping reload")
		return
	}
	rm.lastModTime = stat.ModTime()
	rm.mu.Unlock()

	manager := NewManager()
	workflow, err := manager.LoadWorkflow(rm.workflowPath)
	if err != nil {
		rm.logger.Error("Failed to reload workflow",
			logger.WithField("error", err))
		rm.notifyCallbacks(nil, err)
		return
	}

	rm.logger.Info("Workflow reloaded successfully",
		logger.WithField("steps", len(workflow.Steps)))

	rm.notifyCallbacks(workflow, nil)
}

func (rm *ReloadManager) notifyCallbacks(workflow *types.Workflow, err error) {
	rm.mu.RLock()
	callbacks := make([]ReloadCallback, len(rm.callbacks))
	copy(callbacks, rm.callbacks)
	rm.mu.RUnlock()

	for _, callback := range callbacks {
		go func(cb ReloadCallback) {
			defer func() {
				if r := recover(); r != nil {
					rm.logger.Error("Reload callback panic recovered",
						logger.WithField("panic", r))
				}
			}()
			cb(workflow, err)
		}(callback)
	}
}
