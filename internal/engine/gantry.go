package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	gcontext "github.com/gantry/gantry/pkg/context"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/matrix"
	"github.com/gantry/gantry/pkg/pipeline"
	"github.com/gantry/gantry/pkg/types"
)

// RunSummary reports the outcome of a whole workflow run
type RunSummary struct {
	RunID        string             `json:"runId"`
	WorkflowName string             `json:"workflowName"`
	Trigger      types.TriggerKind  `json:"trigger"`
	Cells        []types.CellResult `json:"cells"`
	Succeeded    bool               `json:"succeeded"`
	Duration     time.Duration      `json:"duration"`
}

// Overrides adjusts strategy values from the command line without
// touching the workflow definition.
type Overrides struct {
	MaxParallel *int
	FailFast    *bool
}

// Gantry is the main workflow run orchestration engine
type Gantry struct {
	workflow  *types.Workflow
	rootDir   string
	logger    logger.Logger
	deps      Dependencies
	overrides Overrides

	pipelineRunner *pipeline.Runner
	mu             sync.Mutex
}

// New creates a new Gantry instance
func New(
	workflow *types.Workflow,
	rootDir string,
	log logger.Logger,
	deps Dependencies,
	overrides Overrides,
) *Gantry {
	absRootDir, err := filepath.Abs(rootDir)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to get absolute path for root: %v", err))
		absRootDir = rootDir
	}

	return &Gantry{
		workflow:  workflow,
		rootDir:   absRootDir,
		logger:    log,
		deps:      deps,
		overrides: overrides,
		pipelineRunner: pipeline.NewRunner(
			deps.Registry,
			deps.StateManager,
			deps.CacheManager,
			log,
		),
	}
}

// Run executes the workflow once for the given trigger. Cells run with
// the strategy's parallelism bound; the final cell runs last so its
// release step observes every build output the run produced.
func (g *Gantry) Run(ctx context.Context, trigger types.Trigger) (*RunSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	startTime := time.Now()
	runID := gcontext.GenerateRunID()
	ctx = gcontext.WithRunID(ctx, runID)

	inputs, err := g.workflow.ResolveInputs(trigger)
	if err != nil {
		return nil, err
	}

	steps, err := types.ParseSteps(g.workflow.Steps)
	if err != nil {
		return nil, err
	}

	cells, err := matrix.Expand(g.workflow.Strategy.Matrix)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		RunID:        runID,
		WorkflowName: g.workflow.Name,
		Trigger:      trigger.Kind,
	}

	g.logger.Info(fmt.Sprintf("Starting run of workflow %q", g.workflow.Name),
		logger.WithField("run_id", runID),
		logger.WithField("cells", len(cells)),
		logger.WithField("trigger", trigger.Kind))
	g.deps.Notifier.NotifyRunStart(g.workflow.Name, len(cells))

	g.deps.StateManager.StartHeartbeat(ctx)
	defer func() {
		if err := g.deps.StateManager.Cleanup(); err != nil {
			g.logger.Warn("State cleanup failed", logger.WithField("error", err))
		}
	}()

	maxParallel := g.workflow.Strategy.GetMaxParallel()
	if g.overrides.MaxParallel != nil && *g.overrides.MaxParallel > 0 {
		maxParallel = *g.overrides.MaxParallel
	}
	failFast := g.workflow.Strategy.GetFailFast()
	if g.overrides.FailFast != nil {
		failFast = *g.overrides.FailFast
	}

	results := make([]types.CellResult, len(cells))
	runErr := g.runCells(ctx, runID, steps, inputs, cells, results, maxParallel, failFast)

	summary.Cells = results
	summary.Duration = time.Since(startTime)
	summary.Succeeded = runErr == nil
	for _, result := range results {
		if result.Status != types.CellStatusSucceeded {
			summary.Succeeded = false
		}
	}

	if summary.Succeeded {
		g.logger.Success(fmt.Sprintf("Run completed in %s", summary.Duration.Round(time.Millisecond)))
		g.deps.Notifier.NotifyRunSuccess(g.workflow.Name, summary.Duration)
		return summary, nil
	}

	if runErr == nil {
		runErr = fmt.Errorf("workflow %q failed", g.workflow.Name)
	}
	g.logger.Error("Run failed", logger.WithField("error", runErr))
	g.deps.Notifier.NotifyRunFailure(g.workflow.Name, runErr)
	return summary, runErr
}

// Private methods

func (g *Gantry) runCells(
	ctx context.Context,
	runID string,
	steps []types.Step,
	inputs map[string]string,
	cells []matrix.Cell,
	results []types.CellResult,
	maxParallel int,
	failFast bool,
) error {
	baseEnv := g.buildBaseEnv()
	runnerInfo := map[string]string{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
		"temp": os.TempDir(),
	}

	gantryDir := filepath.Join(g.rootDir, ".gantry")
	cellOptions := func(i int, finalCell bool) pipeline.CellOptions {
		return pipeline.CellOptions{
			RunID:        runID,
			WorkflowName: g.workflow.Name,
			Steps:        steps,
			Cell:         cells[i],
			Inputs:       inputs,
			WorkflowEnv:  g.workflow.Env,
			BaseEnv:      baseEnv,
			Runner:       runnerInfo,
			SourceDir:    g.rootDir,
			WorkDir:      filepath.Join(gantryDir, "work"),
			LogDir:       filepath.Join(gantryDir, "logs"),
			FinalCell:    finalCell,
		}
	}

	group, groupCtx := NewSafeGroup(ctx, g.logger)
	group.SetLimit(maxParallel)

	// Without fail-fast, a failed cell must not cancel its siblings, so
	// they run against the parent context and errors are only recorded.
	cellCtx := groupCtx
	if !failFast {
		cellCtx = ctx
	}

	var errMu sync.Mutex
	var firstErr error

	final := len(cells) - 1
	for i := 0; i < final; i++ {
		i := i
		group.Go(func() error {
			result, err := g.pipelineRunner.RunCell(cellCtx, cellOptions(i, false))
			results[i] = result
			if err != nil {
				g.deps.Notifier.NotifyCellFailure(cells[i].Key(), err)
				if failFast {
					return err
				}
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		// Remaining cells never started; surface them as cancelled.
		for i := range cells {
			if results[i].StartedAt.IsZero() {
				results[i] = types.CellResult{
					CellKey: cells[i].Key(),
					Status:  types.CellStatusCancelled,
				}
			}
		}
		return err
	}

	// The final cell always runs last. Its release step only executes
	// here, after every other cell's outputs exist.
	result, err := g.pipelineRunner.RunCell(ctx, cellOptions(final, true))
	results[final] = result
	if err != nil {
		g.deps.Notifier.NotifyCellFailure(cells[final].Key(), err)
		return err
	}

	return firstErr
}

// buildBaseEnv merges the workflow's declared env over the host
// environment. Expressions resolve env references against this map;
// commands additionally receive the workflow env explicitly.
func (g *Gantry) buildBaseEnv() map[string]string {
	baseEnv := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			baseEnv[kv[:idx]] = kv[idx+1:]
		}
	}
	for k, v := range g.workflow.Env {
		baseEnv[k] = v
	}
	return baseEnv
}
