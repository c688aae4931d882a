package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gantry/gantry/internal/engine"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/notifier"
	"github.com/gantry/gantry/pkg/types"
)

func newRunCmd() *cobra.Command {
	var inputs []string
	var asCall bool
	var maxParallel int
	var failFast bool
	var notify bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the workflow once",
		Long: `Expand the workflow's matrix and run the step pipeline for every
cell. Inputs are supplied with repeated --input flags and merged over
the defaults the workflow declares.

By default the run uses the dispatch trigger; --call uses the call
trigger instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := engine.Overrides{}
			if cmd.Flags().Changed("max-parallel") {
				overrides.MaxParallel = &maxParallel
			}
			if cmd.Flags().Changed("fail-fast") {
				overrides.FailFast = &failFast
			}
			return runRun(inputs, asCall, overrides, notify)
		},
	}

	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "workflow input as name=value (repeatable)")
	cmd.Flags().BoolVar(&asCall, "call", false, "use the call trigger instead of dispatch")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "override the matrix max-parallel bound")
	cmd.Flags().BoolVar(&failFast, "fail-fast", true, "cancel remaining cells after a failure")
	cmd.Flags().BoolVar(&notify, "notify", false, "send desktop notifications for run events")

	return cmd
}

func runRun(rawInputs []string, asCall bool, overrides engine.Overrides, notify bool) error {
	// Create root context for the entire run
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wf, path, err := loadWorkflow()
	if err != nil {
		return err
	}

	trigger, err := buildTrigger(wf, rawInputs, asCall)
	if err != nil {
		return err
	}

	// Create logger
	log := logger.CreateLogger("", verbosity)

	// Create dependency factory and build dependencies
	factory := engine.NewDependencyFactory(projectRoot, log, notifier.Config{
		Enabled:      notify,
		SuccessSound: notify,
		FailureSound: notify,
	})
	deps := factory.CreateDefaults()

	g := engine.New(wf, projectRoot, log, deps, overrides)

	printInfo(fmt.Sprintf("Starting Gantry v%s", version))
	printInfo(fmt.Sprintf("Workflow: %s (%s)", wf.Name, path))

	// Cancel the run on shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			printWarning(fmt.Sprintf("Received signal: %s, cancelling run", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	summary, runErr := g.Run(ctx, trigger)
	if summary != nil {
		printSummary(summary)
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	printSuccess(fmt.Sprintf("Run %s succeeded", summary.RunID))
	return nil
}

// buildTrigger checks the workflow declares the requested trigger kind
// and parses name=value input flags.
func buildTrigger(wf *types.Workflow, rawInputs []string, asCall bool) (types.Trigger, error) {
	kind := types.TriggerKindDispatch
	if asCall {
		kind = types.TriggerKindCall
	}

	declared := false
	switch kind {
	case types.TriggerKindDispatch:
		declared = wf.On.Dispatch != nil
	case types.TriggerKindCall:
		declared = wf.On.Call != nil
	}
	if !declared {
		return types.Trigger{}, fmt.Errorf("workflow does not declare a %s trigger", kind)
	}

	inputs := make(map[string]string, len(rawInputs))
	for _, raw := range rawInputs {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || name == "" {
			return types.Trigger{}, fmt.Errorf("invalid input %q, expected name=value", raw)
		}
		inputs[name] = value
	}

	return types.Trigger{Kind: kind, Inputs: inputs}, nil
}

func printSummary(summary *engine.RunSummary) {
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CELL\tSTATUS\tSTEPS\tDURATION")
	fmt.Fprintln(w, "----\t------\t-----\t--------")

	for _, cell := range summary.Cells {
		succeeded := 0
		for _, step := range cell.Steps {
			if step.Status == types.StepStatusSucceeded {
				succeeded++
			}
		}

		status := string(cell.Status)
		switch cell.Status {
		case types.CellStatusSucceeded:
			status = color.GreenString(status)
		case types.CellStatusFailed:
			status = color.RedString(status)
		case types.CellStatusCancelled:
			status = color.YellowString(status)
		}

		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\n",
			cell.CellKey,
			status,
			succeeded,
			len(cell.Steps),
			formatRunDuration(cell.Duration),
		)
	}

	w.Flush()
	fmt.Println()
}

func formatRunDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
