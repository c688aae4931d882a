// Package release assembles draft releases from build outputs
package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/utils"
)

// ErrNoAssets is returned when no release pattern matched any file
var ErrNoAssets = errors.New("no release assets matched any pattern")

// Asset is one file attached to a release
type Asset struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Pattern string `json:"pattern"`
}

// Release is a draft release object. Draft releases are staged but
// never made visible by this runner; publishing is a separate action.
type Release struct {
	TagName   string    `json:"tagName"`
	Draft     bool      `json:"draft"`
	Assets    []Asset   `json:"assets"`
	RunID     string    `json:"runId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Publisher stores an assembled release
type Publisher interface {
	Publish(rel *Release, workspace string) error
}

// Collect gathers assets for each glob pattern in declared order. A
// pattern that matches nothing logs a warning and contributes no
// assets; a release with zero assets overall is an error.
func Collect(workspace string, patterns []string, log logger.Logger) ([]Asset, error) {
	if log == nil {
		log = logger.CreateLogger("", "error")
	}
	var assets []Asset
	seen := make(map[string]bool)
	names := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := utils.Glob(workspace, pattern)
		if err != nil {
			return nil, fmt.Errorf("bad release pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			log.Warn("Release pattern matched no files",
				logger.WithField("pattern", pattern))
			continue
		}
		for _, match := range matches {
			if seen[match] {
				continue
			}
			seen[match] = true

			// Staged names must be unique or files overwrite each
			// other. On a base-name collision the relative path is
			// flattened into the name instead.
			name := filepath.Base(match)
			if names[name] {
				name = strings.ReplaceAll(filepath.ToSlash(match), "/", "_")
			}
			if names[name] {
				return nil, fmt.Errorf("duplicate asset name %q from pattern %q", name, pattern)
			}
			names[name] = true

			assets = append(assets, Asset{
				Name:    name,
				Source:  match,
				Pattern: pattern,
			})
		}
	}

	if len(assets) == 0 {
		return nil, ErrNoAssets
	}
	return assets, nil
}

// DirectoryPublisher stages releases as local directories with a
// release.json manifest. Uploading to a hosting platform is out of
// scope; the staged directory is the hand-off point.
type DirectoryPublisher struct {
	releaseDir string
	logger     logger.Logger
}

// NewDirectoryPublisher creates a publisher rooted at releaseDir
func NewDirectoryPublisher(releaseDir string, log logger.Logger) *DirectoryPublisher {
	if log == nil {
		log = logger.CreateLogger("", "error")
	}
	return &DirectoryPublisher{
		releaseDir: releaseDir,
		logger:     log,
	}
}

// Publish stages the release under <releaseDir>/<tag>. An existing
// draft for the same tag is updated in place: assets are re-copied and
// the manifest rewritten.
func (p *DirectoryPublisher) Publish(rel *Release, workspace string) error {
	if rel.TagName == "" {
		return fmt.Errorf("release has empty tag name")
	}

	stageDir := filepath.Join(p.releaseDir, rel.TagName)
	assetDir := filepath.Join(stageDir, "assets")

	for _, asset := range rel.Assets {
		src := filepath.Join(workspace, asset.Source)
		dst := filepath.Join(assetDir, asset.Name)
		if err := utils.CopyFile(src, dst); err != nil {
			return fmt.Errorf("failed to stage asset %s: %w", asset.Name, err)
		}
	}

	manifest, err := json.MarshalIndent(rel, "", "  ")
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(filepath.Join(stageDir, "release.json"), manifest); err != nil {
		return fmt.Errorf("failed to write release manifest: %w", err)
	}

	p.logger.Success("Draft release staged",
		logger.WithField("tag", rel.TagName),
		logger.WithField("assets", len(rel.Assets)),
		logger.WithField("draft", rel.Draft))
	return nil
}
