package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gantry/gantry/pkg/daemon"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background watch daemon",
		Long:  `Control a background Gantry process that watches the workflow file and re-runs on changes.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start the daemon",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDaemonStart()
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the daemon",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDaemonStop()
			},
		},
		&cobra.Command{
			Use:   "restart",
			Short: "Restart the daemon",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDaemonRestart()
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show daemon status",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDaemonStatus()
			},
		},
	)

	return cmd
}

func daemonManager() *daemon.Manager {
	return daemon.NewManager(daemon.Config{
		ProjectRoot:  projectRoot,
		WorkflowPath: workflowFile,
		LogLevel:     verbosity,
	})
}

func runDaemonStart() error {
	if err := daemonManager().Start(); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			printWarning("Daemon is already running")
			return nil
		}
		return err
	}
	printSuccess("Daemon started")
	return nil
}

func runDaemonStop() error {
	if err := daemonManager().Stop(); err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			printWarning("Daemon is not running")
			return nil
		}
		return err
	}
	printSuccess("Daemon stopped")
	return nil
}

func runDaemonRestart() error {
	if err := daemonManager().Restart(); err != nil {
		return err
	}
	printSuccess("Daemon restarted")
	return nil
}

func runDaemonStatus() error {
	status, err := daemonManager().Status()
	if err != nil {
		return err
	}
	if status == nil {
		printWarning("Daemon is not running")
		return nil
	}
	printInfo(fmt.Sprintf("Daemon running with pid %d, logging to %s", status.PID, status.LogFile))
	return nil
}
