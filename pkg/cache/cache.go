// Package cache provides the local dependency cache with restore-key
// fallback semantics
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/utils"
)

const metadataFile = "entry.json"

// Entry describes one stored cache entry
type Entry struct {
	Key       string    `json:"key"`
	Paths     []string  `json:"paths"`
	CreatedAt time.Time `json:"createdAt"`
	SizeBytes int64     `json:"sizeBytes,omitempty"`
}

// RestoreResult reports the outcome of a restore attempt
type RestoreResult struct {
	Hit        bool
	MatchedKey string
	Exact      bool
}

// Manager stores and restores path sets keyed by content-derived keys.
// Entries live under the cache directory, one subdirectory per key.
type Manager struct {
	cacheDir string
	logger   logger.Logger
	mu       sync.Mutex
}

// NewManager creates a new cache manager rooted at cacheDir
func NewManager(cacheDir string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.CreateLogger("", "error")
	}
	return &Manager{
		cacheDir: cacheDir,
		logger:   log,
	}
}

// Restore attempts to restore a cache entry into the workspace. The
// exact key is tried first; on miss, each restore-key prefix is tried
// in declared order, taking the newest entry for the first prefix that
// matches anything. A total miss is not an error: the caller proceeds
// with an empty cache.
func (m *Manager) Restore(key string, restoreKeys []string, workspace string) (RestoreResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.loadEntries()
	if err != nil {
		return RestoreResult{}, err
	}

	// Exact match never falls through to restore-keys.
	if entry, ok := entries[key]; ok {
		if err := m.copyOut(entry, workspace); err != nil {
			return RestoreResult{}, fmt.Errorf("failed to restore cache %s: %w", key, err)
		}
		m.logger.Info("Cache restored", logger.WithField("key", key))
		return RestoreResult{Hit: true, MatchedKey: key, Exact: true}, nil
	}

	for _, prefix := range restoreKeys {
		match, ok := newestWithPrefix(entries, prefix)
		if !ok {
			continue
		}
		if err := m.copyOut(match, workspace); err != nil {
			return RestoreResult{}, fmt.Errorf("failed to restore cache %s: %w", match.Key, err)
		}
		m.logger.Info("Cache restored from fallback key",
			logger.WithField("key", match.Key),
			logger.WithField("prefix", prefix))
		return RestoreResult{Hit: true, MatchedKey: match.Key}, nil
	}

	m.logger.Debug("Cache miss", logger.WithField("key", key))
	return RestoreResult{}, nil
}

// Save persists the given workspace paths under key after a successful
// pipeline. Saving an already-present key is a no-op: a key is derived
// from content, so its entry never changes.
func (m *Manager) Save(key string, paths []string, workspace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entryDir := m.entryDir(key)
	if utils.FileExists(filepath.Join(entryDir, metadataFile)) {
		m.logger.Debug("Cache entry already exists, skipping save",
			logger.WithField("key", key))
		return nil
	}

	// Stage into a temp directory first. A copy that fails midway must
	// not leave a metadata-less entry directory shadowing the key.
	if err := utils.EnsureDirectory(m.cacheDir); err != nil {
		return err
	}
	stageDir, err := os.MkdirTemp(m.cacheDir, ".save-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(stageDir)

	var saved []string
	var size int64
	for _, path := range paths {
		src := filepath.Join(workspace, path)
		info, err := os.Stat(src)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}

		dst := filepath.Join(stageDir, "data", path)
		if info.IsDir() {
			if err := utils.CopyTree(src, dst); err != nil {
				return fmt.Errorf("failed to save cache path %s: %w", path, err)
			}
		} else {
			if err := utils.CopyFile(src, dst); err != nil {
				return fmt.Errorf("failed to save cache path %s: %w", path, err)
			}
			size += info.Size()
		}
		saved = append(saved, path)
	}

	if len(saved) == 0 {
		m.logger.Warn("No cache paths present in workspace, nothing saved",
			logger.WithField("key", key))
		return nil
	}

	entry := Entry{
		Key:       key,
		Paths:     saved,
		CreatedAt: time.Now(),
		SizeBytes: size,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(filepath.Join(stageDir, metadataFile), data); err != nil {
		return err
	}

	// Replace any partial directory left by an interrupted save.
	if err := os.RemoveAll(entryDir); err != nil {
		return err
	}
	if err := os.Rename(stageDir, entryDir); err != nil {
		return err
	}

	m.logger.Info("Cache saved",
		logger.WithField("key", key),
		logger.WithField("paths", len(saved)))
	return nil
}

// List returns all stored entries, newest first
func (m *Manager) List() ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.loadEntries()
	if err != nil {
		return nil, err
	}

	list := make([]Entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// Clear removes every cache entry
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.RemoveAll(m.cacheDir); err != nil {
		return err
	}
	return utils.EnsureDirectory(m.cacheDir)
}

// Private methods

func (m *Manager) entryDir(key string) string {
	return filepath.Join(m.cacheDir, sanitizeKey(key))
}

func (m *Manager) loadEntries() (map[string]Entry, error) {
	entries := make(map[string]Entry)

	dirs, err := os.ReadDir(m.cacheDir)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.cacheDir, dir.Name(), metadataFile))
		if err != nil {
			// Entry without metadata is a partial save; ignore it.
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries[entry.Key] = entry
	}
	return entries, nil
}

func (m *Manager) copyOut(entry Entry, workspace string) error {
	dataDir := filepath.Join(m.entryDir(entry.Key), "data")
	for _, path := range entry.Paths {
		src := filepath.Join(dataDir, path)
		dst := filepath.Join(workspace, path)

		info, err := os.Stat(src)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := utils.CopyTree(src, dst); err != nil {
				return err
			}
		} else if err := utils.CopyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

func newestWithPrefix(entries map[string]Entry, prefix string) (Entry, bool) {
	var best Entry
	found := false
	for key, entry := range entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !found || entry.CreatedAt.After(best.CreatedAt) {
			best = entry
			found = true
		}
	}
	return best, found
}

// sanitizeKey maps a cache key to a filesystem-safe directory name
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(key)
}
