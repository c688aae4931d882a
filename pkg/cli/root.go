// Package cli provides the command-line interface for Gantry
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gantry/gantry/pkg/config"
	"github.com/gantry/gantry/pkg/types"
)

var (
	workflowFile string
	projectRoot  string
	verbosity    string
	version      string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gantry",
	Short: "A matrix workflow runner for your project",
	Long: `🏗 Gantry - Matrix pipelines without the hosted CI

Gantry expands a workflow's matrix into cells and runs each cell's step
pipeline locally: checkout, cache restore, shell commands, and a draft
release staged from the build outputs.`,

	Run: func(cmd *cobra.Command, args []string) {
		// Check if version flag is set
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("🏗 Gantry v%s\n", version)
			return
		}
		// If no subcommand, show help
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	// Initialize the root command explicitly (avoiding init())
	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags.
// This replaces the init() function to make initialization explicit and testable.
func initializeRootCommand() {
	// Set up config initialization
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&workflowFile, "workflow", "", "workflow file (default: gantry.workflow.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")

	// Add version flag
	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	// Add subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newMatrixCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newDaemonCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if workflowFile != "" {
		// Use workflow file from flag
		viper.SetConfigFile(workflowFile)
	} else {
		// Search for workflow in project root
		viper.AddConfigPath(projectRoot)
		viper.SetConfigName("gantry.workflow")
		viper.SetConfigType("yaml")
	}

	// Read in environment variables
	viper.SetEnvPrefix("GANTRY")
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		if verbosity == "debug" {
			fmt.Println("Using workflow file:", viper.ConfigFileUsed())
		}
	}
}

// Helper functions

func printSuccess(message string) {
	crane := "🏗"
	fmt.Printf("%s %s %s\n", crane, color.GreenString("[Gantry]"), message)
}

func printError(message string) {
	crane := "🏗"
	fmt.Fprintf(os.Stderr, "%s %s %s\n", crane, color.RedString("[Gantry]"), message)
}

func printInfo(message string) {
	crane := "🏗"
	fmt.Printf("%s %s %s\n", crane, color.CyanString("[Gantry]"), message)
}

func printWarning(message string) {
	crane := "🏗"
	fmt.Printf("%s %s %s\n", crane, color.YellowString("[Gantry]"), message)
}

func getWorkflowPath() (string, error) {
	if workflowFile != "" {
		return workflowFile, nil
	}
	return config.NewManager().FindWorkflowFile(projectRoot)
}

func loadWorkflow() (*types.Workflow, string, error) {
	path, err := getWorkflowPath()
	if err != nil {
		return nil, "", err
	}
	wf, err := config.NewManager().LoadWorkflow(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load workflow: %w", err)
	}
	return wf, path, nil
}

func stateRoot() string {
	return filepath.Join(projectRoot, ".gantry")
}
