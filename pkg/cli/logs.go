package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs [cell]",
		Short: "Show step logs",
		Long:  `Display step output logs for all matrix cells or a specific cell key.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cellKey := ""
			if len(args) > 0 {
				cellKey = args[0]
			}
			return runLogs(cellKey, follow, lines)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")

	return cmd
}

func runLogs(cellKey string, follow bool, lines int) error {
	logDir := filepath.Join(stateRoot(), "logs")

	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		printWarning("No logs found. Run 'gantry run' first.")
		return nil
	}

	// Cell keys contain "=", log files replace it for the filesystem
	var logFiles []string
	if cellKey != "" {
		sanitized := strings.NewReplacer("/", "_", ",", "+", "=", "-").Replace(cellKey)
		cellLogFile := filepath.Join(logDir, fmt.Sprintf("%s.log", sanitized))
		if _, err := os.Stat(cellLogFile); os.IsNotExist(err) {
			return fmt.Errorf("no logs found for cell: %s", cellKey)
		}
		logFiles = []string{cellLogFile}
		printInfo(fmt.Sprintf("Showing logs for cell: %s", cellKey))
	} else {
		entries, err := os.ReadDir(logDir)
		if err != nil {
			return fmt.Errorf("failed to read log directory: %w", err)
		}

		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".log" {
				logFiles = append(logFiles, filepath.Join(logDir, entry.Name()))
			}
		}

		if len(logFiles) == 0 {
			printWarning("No log files found")
			return nil
		}
		printInfo("Showing all logs")
	}

	for _, logFile := range logFiles {
		if err := displayLogFile(logFile, lines, follow); err != nil {
			printError(fmt.Sprintf("Failed to display %s: %v", filepath.Base(logFile), err))
		}
	}

	return nil
}

func displayLogFile(logFile string, lines int, follow bool) error {
	if follow {
		cmd := exec.Command("tail", "-f", "-n", fmt.Sprintf("%d", lines), logFile)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		// Handle interrupt gracefully
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt)
		go func() {
			<-sigChan
			if cmd.Process != nil {
				cmd.Process.Kill()
			}
		}()

		return cmd.Run()
	}

	content, err := readLastNLines(logFile, lines)
	if err != nil {
		return err
	}

	cellName := strings.TrimSuffix(filepath.Base(logFile), ".log")
	fmt.Printf("\n=== %s ===\n", cellName)
	fmt.Print(content)

	return nil
}

func readLastNLines(filename string, n int) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var allLines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return "", err
	}

	start := 0
	if len(allLines) > n {
		start = len(allLines) - n
	}

	return strings.Join(allLines[start:], "\n") + "\n", nil
}
