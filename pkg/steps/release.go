package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/gantry/gantry/pkg/release"
	"github.com/gantry/gantry/pkg/types"
)

// ReleasePublisher abstracts the draft release store
type ReleasePublisher interface {
	Publish(rel *release.Release, workspace string) error
}

// ReleaseRunner assembles a draft release from glob-matched build
// outputs. The pipeline executor schedules it only for the final
// matrix cell, so a run publishes at most one release.
type ReleaseRunner struct {
	publisher ReleasePublisher
}

// Type implements Runner
func (r *ReleaseRunner) Type() types.StepType { return types.StepTypeRelease }

// Run implements Runner
func (r *ReleaseRunner) Run(ctx context.Context, step types.Step, sc *StepContext) error {
	releaseStep, ok := step.(*types.ReleaseStep)
	if !ok {
		return fmt.Errorf("unexpected step type for release runner: %T", step)
	}

	tagName, unresolved := sc.Expr.Expand(releaseStep.TagName)
	warnUnresolved(sc, step.GetName(), unresolved)
	if tagName == "" {
		return fmt.Errorf("release step %s resolved to an empty tag name", step.GetName())
	}

	patterns, unresolved := sc.Expr.ExpandAll(releaseStep.Files)
	warnUnresolved(sc, step.GetName(), unresolved)

	assets, err := release.Collect(sc.Workspace, patterns, sc.Logger)
	if err != nil {
		return err
	}

	rel := &release.Release{
		TagName:   tagName,
		Draft:     releaseStep.IsDraft(),
		Assets:    assets,
		RunID:     sc.RunID,
		CreatedAt: time.Now(),
	}
	return r.publisher.Publish(rel, sc.Workspace)
}
