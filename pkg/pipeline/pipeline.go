// Package pipeline executes the ordered step sequence of a matrix cell
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gantry/gantry/pkg/expr"
	"github.com/gantry/gantry/pkg/interfaces"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/matrix"
	"github.com/gantry/gantry/pkg/steps"
	"github.com/gantry/gantry/pkg/types"
)

// CellOptions carries the resolved, immutable configuration for one
// cell's pipeline run. It replaces ambient global state: everything a
// step may observe is decided before the first step starts.
type CellOptions struct {
	RunID        string
	WorkflowName string
	Steps        []types.Step
	Cell         matrix.Cell
	Inputs       map[string]string
	WorkflowEnv  map[string]string
	BaseEnv      map[string]string
	Runner       map[string]string
	SourceDir    string
	WorkDir      string
	LogDir       string
	FinalCell    bool
}

// Runner executes cell pipelines against a step registry
type Runner struct {
	registry     *steps.Registry
	stateManager interfaces.StateManager
	cacheManager interfaces.CacheManager
	logger       logger.Logger
}

// NewRunner creates a pipeline runner
func NewRunner(
	registry *steps.Registry,
	stateManager interfaces.StateManager,
	cacheManager interfaces.CacheManager,
	log logger.Logger,
) *Runner {
	return &Runner{
		registry:     registry,
		stateManager: stateManager,
		cacheManager: cacheManager,
		logger:       log,
	}
}

// RunCell executes a cell's steps strictly in order. A hard step
// failure aborts the remaining steps; a continue-on-error failure is
// logged and recorded as soft. After full success, every cache restore
// performed by the pipeline is persisted under its exact key.
func (r *Runner) RunCell(ctx context.Context, opts CellOptions) (types.CellResult, error) {
	cellKey := opts.Cell.Key()
	log := r.logger.WithCell(cellKey)
	startTime := time.Now()

	result := types.CellResult{
		CellKey:   cellKey,
		Status:    types.CellStatusRunning,
		StartedAt: startTime,
	}

	if _, err := r.stateManager.InitializeState(opts.RunID, opts.WorkflowName, cellKey); err != nil {
		result.Status = types.CellStatusFailed
		return result, err
	}
	if err := r.stateManager.UpdateStatus(cellKey, types.CellStatusRunning); err != nil {
		result.Status = types.CellStatusFailed
		return result, err
	}

	sc, err := r.prepareStepContext(opts, log)
	if err != nil {
		result.Status = types.CellStatusFailed
		r.failCell(cellKey, err)
		return result, err
	}

	var cellErr error
	for _, step := range opts.Steps {
		stepResult := types.StepResult{
			Name: step.GetName(),
			Type: step.GetType(),
		}

		if cellErr != nil {
			// A hard failure halts the cell; the rest never execute.
			stepResult.Status = types.StepStatusSkipped
			result.Steps = append(result.Steps, stepResult)
			r.recordStep(cellKey, stepResult)
			continue
		}

		if step.GetType() == types.StepTypeRelease && !opts.FinalCell {
			// The release is published once, after the final cell.
			log.Debug("Skipping release step for non-final cell",
				logger.WithField("step", step.GetName()))
			stepResult.Status = types.StepStatusSkipped
			result.Steps = append(result.Steps, stepResult)
			r.recordStep(cellKey, stepResult)
			continue
		}

		runner, err := r.registry.Get(step.GetType())
		if err != nil {
			stepResult.Status = types.StepStatusFailed
			stepResult.Error = err.Error()
			result.Steps = append(result.Steps, stepResult)
			r.recordStep(cellKey, stepResult)
			cellErr = err
			continue
		}

		log.Info(fmt.Sprintf("Running step: %s", step.GetName()))
		stepStart := time.Now()
		err = runner.Run(ctx, step, sc)
		stepResult.Duration = time.Since(stepStart)

		if err != nil {
			stepResult.Error = err.Error()
			if step.GetContinueOnError() {
				stepResult.Status = types.StepStatusFailed
				stepResult.Soft = true
				log.Warn(fmt.Sprintf("Step failed (continue-on-error): %s", step.GetName()),
					logger.WithField("error", err))
			} else {
				stepResult.Status = types.StepStatusFailed
				cellErr = fmt.Errorf("step %q failed: %w", step.GetName(), err)
				log.Error(fmt.Sprintf("Step failed: %s", step.GetName()),
					logger.WithField("error", err))
			}
		} else {
			stepResult.Status = types.StepStatusSucceeded
			log.Success(fmt.Sprintf("Step completed in %s", stepResult.Duration.Round(time.Millisecond)))
		}

		result.Steps = append(result.Steps, stepResult)
		r.recordStep(cellKey, stepResult)
	}

	result.Duration = time.Since(startTime)

	if cellErr != nil {
		result.Status = types.CellStatusFailed
		r.failCell(cellKey, cellErr)
		return result, cellErr
	}

	// Persist restored caches under their exact keys. Saving an
	// already-present key is a no-op inside the manager.
	for _, pending := range sc.PendingCaches {
		if err := r.cacheManager.Save(pending.Key, pending.Paths, sc.Workspace); err != nil {
			log.Warn("Failed to save cache",
				logger.WithField("key", pending.Key),
				logger.WithField("error", err))
		}
	}

	result.Status = types.CellStatusSucceeded
	if err := r.stateManager.UpdateStatus(cellKey, types.CellStatusSucceeded); err != nil {
		log.Warn("Failed to update cell state", logger.WithField("error", err))
	}
	return result, nil
}

// Private methods

func (r *Runner) prepareStepContext(opts CellOptions, log logger.Logger) (*steps.StepContext, error) {
	workspace := filepath.Join(opts.WorkDir, sanitizeWorkspaceName(opts.Cell.Key()))
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	exprCtx := &expr.Context{
		Inputs: opts.Inputs,
		Matrix: opts.Cell.Map(),
		Env:    opts.BaseEnv,
		Runner: opts.Runner,
	}

	return &steps.StepContext{
		RunID:     opts.RunID,
		Workspace: workspace,
		SourceDir: opts.SourceDir,
		LogDir:    opts.LogDir,
		Cell:      opts.Cell,
		Expr:      exprCtx,
		Env:       opts.WorkflowEnv,
		FinalCell: opts.FinalCell,
		Logger:    log,
	}, nil
}

func (r *Runner) recordStep(cellKey string, result types.StepResult) {
	if err := r.stateManager.RecordStep(cellKey, result); err != nil {
		r.logger.Debug("Failed to record step state",
			logger.WithField("cell", cellKey),
			logger.WithField("error", err))
	}
}

func (r *Runner) failCell(cellKey string, cellErr error) {
	if err := r.stateManager.UpdateStatus(cellKey, types.CellStatusFailed); err != nil {
		r.logger.Warn("Failed to update cell state", logger.WithField("error", err))
	}
	if err := r.stateManager.SetError(cellKey, cellErr.Error()); err != nil {
		r.logger.Debug("Failed to record cell error", logger.WithField("error", err))
	}
}

func sanitizeWorkspaceName(cellKey string) string {
	if cellKey == "" {
		return "default"
	}
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_", ",", "+", "=", "-").Replace(cellKey)
}
