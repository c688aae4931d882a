package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gantry/gantry/internal/engine"
	"github.com/gantry/gantry/pkg/config"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/notifier"
	"github.com/gantry/gantry/pkg/types"
)

func newWatchCmd() *cobra.Command {
	var inputs []string
	var notify bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the workflow when its file changes",
		Long: `Start Gantry in watch mode. The workflow runs once, then re-runs
whenever the workflow file is edited. A reload that fails to parse is
reported and the previous definition stays active.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchMode(inputs, notify)
		},
	}

	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "workflow input as name=value (repeatable)")
	cmd.Flags().BoolVar(&notify, "notify", false, "send desktop notifications for run events")

	return cmd
}

func runWatchMode(rawInputs []string, notify bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wf, path, err := loadWorkflow()
	if err != nil {
		return err
	}

	log := logger.CreateLogger("", verbosity)
	factory := engine.NewDependencyFactory(projectRoot, log, notifier.Config{
		Enabled:      notify,
		SuccessSound: notify,
		FailureSound: notify,
	})
	deps := factory.CreateDefaults()

	trigger, err := buildTrigger(wf, rawInputs, false)
	if err != nil {
		return err
	}

	printInfo(fmt.Sprintf("Starting Gantry v%s in watch mode", version))
	printInfo(fmt.Sprintf("Watching workflow: %s", path))

	// Serialize runs; a reload during a run queues exactly one re-run.
	var mu sync.Mutex
	runOnce := func(wf *types.Workflow, trigger types.Trigger) {
		mu.Lock()
		defer mu.Unlock()

		g := engine.New(wf, projectRoot, log, deps, engine.Overrides{})
		summary, runErr := g.Run(ctx, trigger)
		if summary != nil {
			printSummary(summary)
		}
		if runErr != nil {
			printError(fmt.Sprintf("Run failed: %v", runErr))
			return
		}
		printSuccess(fmt.Sprintf("Run %s succeeded", summary.RunID))
	}

	reload := config.NewReloadManager(path, log)
	reload.AddCallback(func(newWorkflow *types.Workflow, reloadErr error) {
		if reloadErr != nil {
			printError(fmt.Sprintf("Workflow reload failed, keeping previous definition: %v", reloadErr))
			return
		}
		newTrigger, triggerErr := buildTrigger(newWorkflow, rawInputs, false)
		if triggerErr != nil {
			printError(fmt.Sprintf("Reloaded workflow rejected: %v", triggerErr))
			return
		}
		printInfo("Workflow changed, re-running")
		go runOnce(newWorkflow, newTrigger)
	})

	if err := reload.StartWatching(); err != nil {
		return fmt.Errorf("failed to watch workflow file: %w", err)
	}

	// Initial run
	go runOnce(wf, trigger)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-sigChan
	printInfo(fmt.Sprintf("Received signal: %s", sig))

	cancel()

	// Give the in-flight run a moment to observe cancellation
	done := make(chan struct{})
	go func() {
		mu.Lock()
		mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		printWarning("Timed out waiting for the current run to stop")
	}

	if err := reload.StopWatching(); err != nil {
		printWarning(fmt.Sprintf("Watcher shutdown error: %v", err))
	}

	printSuccess("Gantry stopped gracefully")
	return nil
}
