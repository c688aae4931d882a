package release_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gantry/gantry/pkg/release"
)

func writeFile(t *testing.T, root, relPath string) {
	t.Helper()
	path := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func TestCollect_MatchesPatterns(t *testing.T) {
	workspace := t.TempDir()
	writeFile(t, workspace, "target/release/drmemd")
	writeFile(t, workspace, "target/release/drmemd.sig")
	writeFile(t, workspace, "docs/readme.txt")

	assets, err := release.Collect(workspace, []string{"target/release/drmemd*"}, nil)
	if err != nil {
		t.Fatalf("failed to collect assets: %v", err)
	}

	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	for _, asset := range assets {
		if asset.Pattern != "target/release/drmemd*" {
			t.Errorf("asset missing source pattern: %+v", asset)
		}
	}
}

func TestCollect_ZeroMatchPatternSkipped(t *testing.T) {
	workspace := t.TempDir()
	writeFile(t, workspace, "dist/app.tar.gz")

	// The first pattern matches nothing; the release still assembles
	// from the second.
	assets, err := release.Collect(workspace, []string{"missing/**", "dist/*.tar.gz"}, nil)
	if err != nil {
		t.Fatalf("failed to collect assets: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(assets))
	}
}

func TestCollect_AllPatternsEmpty(t *testing.T) {
	workspace := t.TempDir()

	_, err := release.Collect(workspace, []string{"missing/**", "*.tar.gz"}, nil)
	if !errors.Is(err, release.ErrNoAssets) {
		t.Fatalf("expected ErrNoAssets, got %v", err)
	}
}

func TestCollect_DeduplicatesAcrossPatterns(t *testing.T) {
	workspace := t.TempDir()
	writeFile(t, workspace, "dist/app.tar.gz")

	assets, err := release.Collect(workspace, []string{"dist/*.tar.gz", "**/*.tar.gz"}, nil)
	if err != nil {
		t.Fatalf("failed to collect assets: %v", err)
	}
	if len(assets) != 1 {
		t.Errorf("expected overlapping patterns to deduplicate, got %d assets", len(assets))
	}
}

func TestDirectoryPublisher_StagesDraft(t *testing.T) {
	workspace := t.TempDir()
	releaseDir := t.TempDir()
	writeFile(t, workspace, "target/release/drmemd")

	assets, err := release.Collect(workspace, []string{"target/release/*"}, nil)
	if err != nil {
		t.Fatalf("failed to collect assets: %v", err)
	}

	rel := &release.Release{
		TagName: "v1.2.3",
		Draft:   true,
		Assets:  assets,
		RunID:   "run_test",
	}

	pub := release.NewDirectoryPublisher(releaseDir, nil)
	if err := pub.Publish(rel, workspace); err != nil {
		t.Fatalf("failed to publish release: %v", err)
	}

	staged := filepath.Join(releaseDir, "v1.2.3", "assets", "drmemd")
	if _, err := os.Stat(staged); err != nil {
		t.Errorf("staged asset missing: %v", err)
	}

	manifestData, err := os.ReadFile(filepath.Join(releaseDir, "v1.2.3", "release.json"))
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}

	var manifest release.Release
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		t.Fatalf("failed to parse manifest: %v", err)
	}
	if !manifest.Draft {
		t.Error("staged release must be marked draft")
	}
	if manifest.TagName != "v1.2.3" {
		t.Errorf("expected tag v1.2.3, got %s", manifest.TagName)
	}
	if len(manifest.Assets) != 1 {
		t.Errorf("expected 1 asset in manifest, got %d", len(manifest.Assets))
	}
}

func TestDirectoryPublisher_EmptyTagRejected(t *testing.T) {
	pub := release.NewDirectoryPublisher(t.TempDir(), nil)
	if err := pub.Publish(&release.Release{Draft: true}, t.TempDir()); err == nil {
		t.Fatal("expected error for empty tag name")
	}
}

func TestDirectoryPublisher_RepublishUpdatesInPlace(t *testing.T) {
	workspace := t.TempDir()
	releaseDir := t.TempDir()
	writeFile(t, workspace, "dist/a")

	assets, err := release.Collect(workspace, []string{"dist/*"}, nil)
	if err != nil {
		t.Fatalf("failed to collect assets: %v", err)
	}
	rel := &release.Release{TagName: "v1", Draft: true, Assets: assets}

	pub := release.NewDirectoryPublisher(releaseDir, nil)
	if err := pub.Publish(rel, workspace); err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	if err := pub.Publish(rel, workspace); err != nil {
		t.Fatalf("republish must update in place: %v", err)
	}
}

func TestCollect_CollidingBaseNamesKeepBoth(t *testing.T) {
	workspace := t.TempDir()
	writeFile(t, workspace, "a/drmemd")
	writeFile(t, workspace, "b/drmemd")

	assets, err := release.Collect(workspace, []string{"**/drmemd"}, nil)
	if err != nil {
		t.Fatalf("failed to collect assets: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	if assets[0].Name == assets[1].Name {
		t.Fatalf("staged names must be unique, both are %q", assets[0].Name)
	}

	releaseDir := t.TempDir()
	pub := release.NewDirectoryPublisher(releaseDir, nil)
	rel := &release.Release{TagName: "v1.0.0", Draft: true, Assets: assets}
	if err := pub.Publish(rel, workspace); err != nil {
		t.Fatalf("failed to publish release: %v", err)
	}

	staged, err := os.ReadDir(filepath.Join(releaseDir, "v1.0.0", "assets"))
	if err != nil {
		t.Fatalf("asset dir missing: %v", err)
	}
	if len(staged) != len(assets) {
		t.Errorf("manifest lists %d assets but %d files staged", len(assets), len(staged))
	}
}
