package steps

import (
	"context"
	"fmt"

	"github.com/gantry/gantry/pkg/cache"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/types"
)

// CacheManager abstracts the dependency cache store
type CacheManager interface {
	Restore(key string, restoreKeys []string, workspace string) (cache.RestoreResult, error)
	Save(key string, paths []string, workspace string) error
}

// CacheRunner restores the dependency cache before build steps run.
// The matching save happens after the whole pipeline succeeds; the
// runner records the resolved key and paths for it.
type CacheRunner struct {
	manager CacheManager
}

// Type implements Runner
func (r *CacheRunner) Type() types.StepType { return types.StepTypeCache }

// Run implements Runner
func (r *CacheRunner) Run(ctx context.Context, step types.Step, sc *StepContext) error {
	cacheStep, ok := step.(*types.CacheStep)
	if !ok {
		return fmt.Errorf("unexpected step type for cache runner: %T", step)
	}
	if len(cacheStep.Paths) == 0 {
		return fmt.Errorf("cache step %s has no paths", step.GetName())
	}

	key, unresolved := sc.Expr.Expand(cacheStep.Key)
	warnUnresolved(sc, step.GetName(), unresolved)
	if key == "" {
		return fmt.Errorf("cache step %s resolved to an empty key", step.GetName())
	}

	restoreKeys, unresolved := sc.Expr.ExpandAll(cacheStep.RestoreKeys)
	warnUnresolved(sc, step.GetName(), unresolved)
	paths, unresolved := sc.Expr.ExpandAll(cacheStep.Paths)
	warnUnresolved(sc, step.GetName(), unresolved)

	result, err := r.manager.Restore(key, restoreKeys, sc.Workspace)
	if err != nil {
		return err
	}
	if !result.Hit {
		sc.Logger.Info("Cache miss, starting with an empty cache",
			logger.WithField("key", key))
	}

	sc.PendingCaches = append(sc.PendingCaches, ResolvedCache{
		Key:   key,
		Paths: paths,
	})
	return nil
}
