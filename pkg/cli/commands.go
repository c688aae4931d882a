package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gantry/gantry/pkg/cache"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/matrix"
	"github.com/gantry/gantry/pkg/state"
	"github.com/gantry/gantry/pkg/validation"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the workflow file",
		Long:  `Check that the workflow file parses, its matrix and steps are well formed, and flag expressions that would expand to empty strings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}
}

func newMatrixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matrix",
		Short: "Show the expanded matrix cells",
		Long:  `Expand the workflow's matrix and print every cell in run order without running anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatrix()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show status of all matrix cells",
		Long:  `Display the recorded state of every matrix cell from the last run, including step outcomes and durations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the step cache",
		Long:  `Inspect and clear the cache entries saved by cache steps.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cache entries",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCacheList()
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove all cache entries",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCacheClear()
			},
		},
	)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Gantry",
		Long:  `Print the version number of Gantry`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("🏗 Gantry v%s\n", version)
		},
	}
}

// Implementation functions

func runValidate() error {
	wf, path, err := loadWorkflow()
	if err != nil {
		printError(fmt.Sprintf("Workflow is invalid: %v", err))
		return err
	}

	result := validation.NewWorkflowValidator().Validate(wf)

	errors := 0
	for _, finding := range result.Errors {
		switch finding.Level {
		case validation.ValidationLevelError:
			errors++
			fmt.Printf("  ✗ %s\n", finding.Error())
		case validation.ValidationLevelWarning:
			fmt.Printf("  ⚠ %s\n", finding.Error())
		default:
			fmt.Printf("  ℹ %s\n", finding.Error())
		}
	}

	if !result.Valid {
		printError(fmt.Sprintf("%s has %d error(s)", path, errors))
		return fmt.Errorf("workflow has %d error(s)", errors)
	}

	printSuccess(fmt.Sprintf("%s is valid", path))
	return nil
}

func runMatrix() error {
	wf, _, err := loadWorkflow()
	if err != nil {
		return err
	}

	cells, err := matrix.Expand(wf.Strategy.Matrix)
	if err != nil {
		return err
	}

	printInfo(fmt.Sprintf("Matrix expands to %d cell(s), max-parallel %d",
		len(cells), wf.Strategy.GetMaxParallel()))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tCELL")
	fmt.Fprintln(w, "-----\t----")
	for i, cell := range cells {
		fmt.Fprintf(w, "%d\t%s\n", i+1, cell.Key())
	}
	w.Flush()
	return nil
}

func runStatus() error {
	sm := state.NewStateManager(projectRoot, logger.CreateLogger("", verbosity))

	states, err := sm.DiscoverStates()
	if err != nil {
		return fmt.Errorf("failed to discover states: %w", err)
	}

	if len(states) == 0 {
		printWarning("No run state found. Run 'gantry run' first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CELL\tSTATUS\tRUN\tSTEPS\tDURATION")
	fmt.Fprintln(w, "----\t------\t---\t-----\t--------")

	for key, cellState := range states {
		status := string(cellState.Status)
		switch cellState.Status {
		case "succeeded":
			status = color.GreenString(status)
		case "failed":
			status = color.RedString(status)
		case "running":
			status = color.YellowString(status)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			key,
			status,
			cellState.RunID,
			len(cellState.Steps),
			cellState.Duration,
		)
	}

	w.Flush()
	return nil
}

func runCacheList() error {
	manager := cache.NewManager(filepath.Join(stateRoot(), "cache"), logger.CreateLogger("", verbosity))

	entries, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}

	if len(entries) == 0 {
		printWarning("Cache is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tPATHS\tSIZE\tCREATED")
	fmt.Fprintln(w, "---\t-----\t----\t-------")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			entry.Key,
			len(entry.Paths),
			formatSize(entry.SizeBytes),
			entry.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()
	return nil
}

func runCacheClear() error {
	manager := cache.NewManager(filepath.Join(stateRoot(), "cache"), logger.CreateLogger("", verbosity))
	if err := manager.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	printSuccess("Cache cleared")
	return nil
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMG"[exp])
}
