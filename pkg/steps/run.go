package steps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/types"
)

// ShellRunner executes run steps as shell commands in the workspace
type ShellRunner struct{}

// Type implements Runner
func (r *ShellRunner) Type() types.StepType { return types.StepTypeRun }

// Run executes the step's command with the cell's resolved environment
func (r *ShellRunner) Run(ctx context.Context, step types.Step, sc *StepContext) error {
	runStep, ok := step.(*types.RunStep)
	if !ok {
		return fmt.Errorf("unexpected step type for shell runner: %T", step)
	}
	if runStep.Command == "" {
		return fmt.Errorf("run step %s has no command", step.GetName())
	}

	command, unresolved := sc.Expr.Expand(runStep.Command)
	warnUnresolved(sc, step.GetName(), unresolved)

	startTime := time.Now()

	// Prepare log file
	logFile, err := prepareLogFile(sc)
	if err != nil {
		sc.Logger.Warn(fmt.Sprintf("Failed to create log file: %v", err))
	}
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	logToFile(logFile, fmt.Sprintf("\n=== Step %q started at %s ===\n", step.GetName(), timestamp))
	logToFile(logFile, fmt.Sprintf("Executing: %s\n", command))

	cmd := createCommand(ctx, command)

	// Resolved config env, then per-step env on top
	cmd.Env = os.Environ()
	for k, v := range sc.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if env := step.GetEnv(); env != nil {
		expanded, unresolved := sc.Expr.ExpandMap(env)
		warnUnresolved(sc, step.GetName(), unresolved)
		for k, v := range expanded {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	// Set working directory
	cmd.Dir = sc.Workspace
	if runStep.WorkingDir != "" {
		workingDir, unresolved := sc.Expr.Expand(runStep.WorkingDir)
		warnUnresolved(sc, step.GetName(), unresolved)
		cmd.Dir = filepath.Join(sc.Workspace, workingDir)
	}

	// Capture output with tee to log file
	var outputBuffer bytes.Buffer
	var multiWriter io.Writer = &outputBuffer
	if logFile != nil {
		multiWriter = io.MultiWriter(&outputBuffer, logFile)
	}
	cmd.Stdout = multiWriter
	cmd.Stderr = multiWriter

	err = cmd.Run()
	output := outputBuffer.Bytes()

	duration := time.Since(startTime)
	if err != nil {
		logToFile(logFile, fmt.Sprintf("\n=== Step FAILED after %s ===\n", duration))
		logToFile(logFile, fmt.Sprintf("Error: %v\n", err))
		return fmt.Errorf("command failed: %w\n%s", err, output)
	}

	if len(output) > 0 {
		sc.Logger.Debug("Command output", logger.WithField("output", string(output)))
	}
	logToFile(logFile, fmt.Sprintf("\n=== Step SUCCEEDED after %s ===\n", duration))

	return nil
}

// createCommand creates an exec.Cmd from a command string
func createCommand(ctx context.Context, command string) *exec.Cmd {
	// Parse command with shell
	var cmd *exec.Cmd
	if strings.Contains(command, "&&") || strings.Contains(command, "||") ||
		strings.Contains(command, "|") || strings.Contains(command, ";") ||
		strings.Contains(command, ">") || strings.Contains(command, "<") {
		// Complex command - use shell
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	} else {
		// Simple command - parse directly
		parts := strings.Fields(command)
		if len(parts) > 0 {
			cmd = exec.CommandContext(ctx, parts[0], parts[1:]...)
		} else {
			cmd = exec.CommandContext(ctx, "sh", "-c", command)
		}
	}

	return cmd
}

// prepareLogFile creates or opens the per-cell log file
func prepareLogFile(sc *StepContext) (*os.File, error) {
	if sc.LogDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(sc.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := strings.NewReplacer("/", "_", ",", "+", "=", "-").Replace(sc.Cell.Key())
	if name == "" {
		name = "default"
	}
	logPath := filepath.Join(sc.LogDir, name+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return logFile, nil
}

// logToFile writes a message to the log file if available
func logToFile(logFile *os.File, message string) {
	if logFile != nil {
		logFile.WriteString(message)
	}
}
