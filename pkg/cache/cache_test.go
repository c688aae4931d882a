package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gantry/gantry/pkg/cache"
)

func writeWorkspaceFile(t *testing.T, workspace, relPath, content string) {
	t.Helper()
	path := filepath.Join(workspace, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func newManager(t *testing.T) (*cache.Manager, string) {
	t.Helper()
	tmpDir := t.TempDir()
	m := cache.NewManager(filepath.Join(tmpDir, "cache"), nil)
	workspace := filepath.Join(tmpDir, "workspace")
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	return m, workspace
}

func TestRestore_TotalMissIsNotAnError(t *testing.T) {
	m, workspace := newManager(t)

	result, err := m.Restore("cargo-linux-abc", []string{"cargo-linux-"}, workspace)
	if err != nil {
		t.Fatalf("a cache miss must not fail the step: %v", err)
	}
	if result.Hit {
		t.Error("expected a miss on an empty cache")
	}
}

func TestSaveAndRestore_ExactKey(t *testing.T) {
	m, workspace := newManager(t)
	writeWorkspaceFile(t, workspace, "target/lib.rlib", "artifact")

	if err := m.Save("cargo-linux-abc", []string{"target"}, workspace); err != nil {
		t.Fatalf("failed to save cache: %v", err)
	}

	restoreInto := t.TempDir()
	result, err := m.Restore("cargo-linux-abc", nil, restoreInto)
	if err != nil {
		t.Fatalf("failed to restore cache: %v", err)
	}
	if !result.Hit || !result.Exact {
		t.Fatalf("expected exact hit, got %+v", result)
	}
	if result.MatchedKey != "cargo-linux-abc" {
		t.Errorf("expected matched key cargo-linux-abc, got %s", result.MatchedKey)
	}

	restored, err := os.ReadFile(filepath.Join(restoreInto, "target", "lib.rlib"))
	if err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
	if string(restored) != "artifact" {
		t.Errorf("restored content mismatch: %q", restored)
	}
}

func TestRestore_PrefixFallback(t *testing.T) {
	m, workspace := newManager(t)
	writeWorkspaceFile(t, workspace, "target/old.rlib", "old")

	if err := m.Save("cargo-linux-old", []string{"target"}, workspace); err != nil {
		t.Fatalf("failed to save cache: %v", err)
	}

	restoreInto := t.TempDir()
	result, err := m.Restore("cargo-linux-new", []string{"cargo-linux-"}, restoreInto)
	if err != nil {
		t.Fatalf("failed to restore cache: %v", err)
	}
	if !result.Hit {
		t.Fatal("expected a prefix fallback hit")
	}
	if result.Exact {
		t.Error("a fallback hit must not report exact")
	}
	if result.MatchedKey != "cargo-linux-old" {
		t.Errorf("expected fallback to cargo-linux-old, got %s", result.MatchedKey)
	}
}

func TestRestore_ExactBeatsPrefix(t *testing.T) {
	m, workspace := newManager(t)
	writeWorkspaceFile(t, workspace, "target/a", "a")

	if err := m.Save("cargo-exact", []string{"target"}, workspace); err != nil {
		t.Fatalf("failed to save cache: %v", err)
	}
	if err := m.Save("cargo-other", []string{"target"}, workspace); err != nil {
		t.Fatalf("failed to save cache: %v", err)
	}

	result, err := m.Restore("cargo-exact", []string{"cargo-"}, t.TempDir())
	if err != nil {
		t.Fatalf("failed to restore cache: %v", err)
	}
	if !result.Exact || result.MatchedKey != "cargo-exact" {
		t.Errorf("exact key must win over restore-keys, got %+v", result)
	}
}

func TestRestore_PrefixOrderRespected(t *testing.T) {
	m, workspace := newManager(t)
	writeWorkspaceFile(t, workspace, "target/a", "a")

	if err := m.Save("npm-linux-x", []string{"target"}, workspace); err != nil {
		t.Fatalf("failed to save cache: %v", err)
	}
	if err := m.Save("cargo-linux-x", []string{"target"}, workspace); err != nil {
		t.Fatalf("failed to save cache: %v", err)
	}

	// The first matching prefix wins even when a later prefix also has
	// entries.
	result, err := m.Restore("missing", []string{"cargo-", "npm-"}, t.TempDir())
	if err != nil {
		t.Fatalf("failed to restore cache: %v", err)
	}
	if result.MatchedKey != "cargo-linux-x" {
		t.Errorf("expected first restore key to match, got %s", result.MatchedKey)
	}
}

func TestSave_WriteOnce(t *testing.T) {
	m, workspace := newManager(t)
	writeWorkspaceFile(t, workspace, "target/a", "first")

	if err := m.Save("key", []string{"target"}, workspace); err != nil {
		t.Fatalf("failed to save cache: %v", err)
	}

	// A second save under the same key must not overwrite the entry
	writeWorkspaceFile(t, workspace, "target/a", "second")
	if err := m.Save("key", []string{"target"}, workspace); err != nil {
		t.Fatalf("re-saving an existing key must be a no-op: %v", err)
	}

	restoreInto := t.TempDir()
	if _, err := m.Restore("key", nil, restoreInto); err != nil {
		t.Fatalf("failed to restore cache: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(restoreInto, "target", "a"))
	if err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("expected original content preserved, got %q", data)
	}
}

func TestSave_MissingPathsSkipped(t *testing.T) {
	m, workspace := newManager(t)
	writeWorkspaceFile(t, workspace, "target/a", "a")

	if err := m.Save("key", []string{"target", "does-not-exist"}, workspace); err != nil {
		t.Fatalf("missing paths must be skipped, not fail: %v", err)
	}

	entries, err := m.List()
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if len(entries[0].Paths) != 1 || entries[0].Paths[0] != "target" {
		t.Errorf("expected only present paths recorded, got %v", entries[0].Paths)
	}
}

func TestSave_NothingPresent(t *testing.T) {
	m, workspace := newManager(t)

	if err := m.Save("key", []string{"missing"}, workspace); err != nil {
		t.Fatalf("saving with no present paths must not fail: %v", err)
	}

	entries, err := m.List()
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries recorded, got %d", len(entries))
	}
}

func TestClear(t *testing.T) {
	m, workspace := newManager(t)
	writeWorkspaceFile(t, workspace, "target/a", "a")

	if err := m.Save("key", []string{"target"}, workspace); err != nil {
		t.Fatalf("failed to save cache: %v", err)
	}
	if err := m.Clear(); err != nil {
		t.Fatalf("failed to clear cache: %v", err)
	}

	entries, err := m.List()
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty cache after clear, got %d entries", len(entries))
	}
}

func TestRestore_KeyWithSlashes(t *testing.T) {
	m, workspace := newManager(t)
	writeWorkspaceFile(t, workspace, "target/a", "a")

	if err := m.Save("cargo/linux:v1", []string{"target"}, workspace); err != nil {
		t.Fatalf("failed to save cache: %v", err)
	}

	result, err := m.Restore("cargo/linux:v1", nil, t.TempDir())
	if err != nil {
		t.Fatalf("failed to restore cache: %v", err)
	}
	if !result.Exact {
		t.Error("expected exact hit for sanitized key")
	}
}

func TestSave_ReplacesPartialEntry(t *testing.T) {
	tmpDir := t.TempDir()
	cacheDir := filepath.Join(tmpDir, "cache")
	m := cache.NewManager(cacheDir, nil)
	workspace := filepath.Join(tmpDir, "workspace")
	writeWorkspaceFile(t, workspace, "deps/marker", "fresh")

	// An interrupted save leaves an entry directory with no metadata
	partial := filepath.Join(cacheDir, "cargo-linux-abc", "data", "deps")
	if err := os.MkdirAll(partial, 0o755); err != nil {
		t.Fatalf("failed to create partial entry: %v", err)
	}
	if err := os.WriteFile(filepath.Join(partial, "stale"), []byte("stale"), 0o644); err != nil {
		t.Fatalf("failed to write partial content: %v", err)
	}

	if err := m.Save("cargo-linux-abc", []string{"deps"}, workspace); err != nil {
		t.Fatalf("save over a partial entry failed: %v", err)
	}

	restoreInto := t.TempDir()
	result, err := m.Restore("cargo-linux-abc", nil, restoreInto)
	if err != nil {
		t.Fatalf("failed to restore cache: %v", err)
	}
	if !result.Hit || !result.Exact {
		t.Fatalf("save after a partial entry must produce a restorable key, got %+v", result)
	}

	data, err := os.ReadFile(filepath.Join(restoreInto, "deps", "marker"))
	if err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
	if string(data) != "fresh" {
		t.Errorf("restored content: %q", data)
	}
	if _, err := os.Stat(filepath.Join(restoreInto, "deps", "stale")); !os.IsNotExist(err) {
		t.Error("partial content must be replaced, not merged")
	}
}

func TestSave_NoStagingLeftovers(t *testing.T) {
	tmpDir := t.TempDir()
	cacheDir := filepath.Join(tmpDir, "cache")
	m := cache.NewManager(cacheDir, nil)
	workspace := filepath.Join(tmpDir, "workspace")
	writeWorkspaceFile(t, workspace, "deps/marker", "x")

	if err := m.Save("cargo-linux-abc", []string{"deps"}, workspace); err != nil {
		t.Fatalf("failed to save cache: %v", err)
	}

	dirs, err := os.ReadDir(cacheDir)
	if err != nil {
		t.Fatalf("failed to read cache dir: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Name() != "cargo-linux-abc" {
		names := make([]string, 0, len(dirs))
		for _, d := range dirs {
			names = append(names, d.Name())
		}
		t.Errorf("expected only the entry directory, got %v", names)
	}
}
