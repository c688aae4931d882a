package engine

import (
	"path/filepath"

	"github.com/gantry/gantry/pkg/cache"
	"github.com/gantry/gantry/pkg/interfaces"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/notifier"
	"github.com/gantry/gantry/pkg/release"
	"github.com/gantry/gantry/pkg/state"
	"github.com/gantry/gantry/pkg/steps"
)

// Dependencies holds the collaborators a Gantry engine runs with
type Dependencies struct {
	StateManager interfaces.StateManager
	CacheManager interfaces.CacheManager
	Publisher    interfaces.ReleasePublisher
	Notifier     interfaces.RunNotifier
	Registry     *steps.Registry
}

// DependencyFactory creates default implementations of dependencies.
// This follows the dependency injection pattern and removes hidden
// concrete fallbacks from constructors.
type DependencyFactory struct {
	rootDir       string
	logger        logger.Logger
	notifications notifier.Config
}

// NewDependencyFactory creates a new dependency factory
func NewDependencyFactory(rootDir string, log logger.Logger, notifications notifier.Config) *DependencyFactory {
	return &DependencyFactory{
		rootDir:       rootDir,
		logger:        log,
		notifications: notifications,
	}
}

// CreateDefaults creates all default dependencies for Gantry.
// This centralizes dependency creation and makes it explicit and testable.
func (f *DependencyFactory) CreateDefaults() Dependencies {
	gantryDir := filepath.Join(f.rootDir, ".gantry")

	cacheManager := cache.NewManager(filepath.Join(gantryDir, "cache"), f.logger)
	publisher := release.NewDirectoryPublisher(filepath.Join(gantryDir, "releases"), f.logger)

	return Dependencies{
		StateManager: state.NewStateManager(f.rootDir, f.logger),
		CacheManager: cacheManager,
		Publisher:    publisher,
		Notifier:     notifier.New(f.notifications, f.logger),
		Registry: steps.NewRegistry(steps.Deps{
			Cache:     cacheManager,
			Publisher: publisher,
		}),
	}
}

// CreateWithOverrides creates dependencies with specific overrides.
// This is useful for testing or custom configurations.
func (f *DependencyFactory) CreateWithOverrides(overrides Dependencies) Dependencies {
	deps := f.CreateDefaults()

	if overrides.StateManager != nil {
		deps.StateManager = overrides.StateManager
	}
	if overrides.CacheManager != nil {
		deps.CacheManager = overrides.CacheManager
		deps.Registry = steps.NewRegistry(steps.Deps{
			Cache:     overrides.CacheManager,
			Publisher: deps.Publisher,
		})
	}
	if overrides.Publisher != nil {
		deps.Publisher = overrides.Publisher
		deps.Registry = steps.NewRegistry(steps.Deps{
			Cache:     deps.CacheManager,
			Publisher: overrides.Publisher,
		})
	}
	if overrides.Notifier != nil {
		deps.Notifier = overrides.Notifier
	}
	if overrides.Registry != nil {
		deps.Registry = overrides.Registry
	}

	return deps
}
