// Package steps provides step capability implementations for the
// pipeline executor
package steps

import (
	"context"
	"fmt"

	"github.com/gantry/gantry/pkg/expr"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/matrix"
	"github.com/gantry/gantry/pkg/types"
)

// ResolvedCache records an executed cache restore so the pipeline can
// persist the same paths under the same key after a successful run.
type ResolvedCache struct {
	Key   string
	Paths []string
}

// StepContext carries the per-cell execution environment. The resolved
// configuration (env, inputs, matrix values) is built once at cell
// start and treated as immutable; runners only append bookkeeping.
type StepContext struct {
	RunID     string
	Workspace string
	SourceDir string
	LogDir    string
	Cell      matrix.Cell
	Expr      *expr.Context
	Env       map[string]string
	FinalCell bool
	Logger    logger.Logger

	// PendingCaches accumulates restores awaiting a post-pipeline save.
	PendingCaches []ResolvedCache
}

// Runner executes one step capability
type Runner interface {
	Type() types.StepType
	Run(ctx context.Context, step types.Step, sc *StepContext) error
}

// Registry maps step types to their runners
type Registry struct {
	runners map[types.StepType]Runner
}

// NewRegistry creates a registry with all built-in runners registered
func NewRegistry(deps Deps) *Registry {
	r := &Registry{runners: make(map[types.StepType]Runner)}
	r.Register(&CheckoutRunner{})
	r.Register(&ShellRunner{})
	r.Register(&CacheRunner{manager: deps.Cache})
	r.Register(&ReleaseRunner{publisher: deps.Publisher})
	return r
}

// Deps holds the collaborators the built-in runners need
type Deps struct {
	Cache     CacheManager
	Publisher ReleasePublisher
}

// Register adds a runner for its step type
func (r *Registry) Register(runner Runner) {
	r.runners[runner.Type()] = runner
}

// Get returns the runner for a step type
func (r *Registry) Get(stepType types.StepType) (Runner, error) {
	runner, ok := r.runners[stepType]
	if !ok {
		return nil, fmt.Errorf("no runner registered for step type: %s", stepType)
	}
	return runner, nil
}

// warnUnresolved logs every dangling expression reference. Execution
// proceeds with empty expansions; validation flags these ahead of time.
func warnUnresolved(sc *StepContext, stepName string, unresolved []string) {
	for _, ref := range unresolved {
		sc.Logger.Warn("Undefined reference expands to empty string",
			logger.WithField("step", stepName),
			logger.WithField("ref", ref))
	}
}
