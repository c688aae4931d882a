package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/types"
	"github.com/gantry/gantry/pkg/utils"
)

// CheckoutRunner materializes repository contents into the workspace.
// A local source directory is copied; anything that looks like a git
// URL is cloned.
type CheckoutRunner struct{}

// Type implements Runner
func (r *CheckoutRunner) Type() types.StepType { return types.StepTypeCheckout }

// Run implements Runner
func (r *CheckoutRunner) Run(ctx context.Context, step types.Step, sc *StepContext) error {
	checkout, ok := step.(*types.CheckoutStep)
	if !ok {
		return fmt.Errorf("unexpected step type for checkout runner: %T", step)
	}

	source, unresolved := sc.Expr.Expand(checkout.Source)
	warnUnresolved(sc, step.GetName(), unresolved)
	if source == "" {
		source = sc.SourceDir
	}

	ref, unresolved := sc.Expr.Expand(checkout.Ref)
	warnUnresolved(sc, step.GetName(), unresolved)

	if isGitURL(source) {
		return r.clone(ctx, source, ref, sc)
	}
	return r.copyLocal(source, ref, sc)
}

func (r *CheckoutRunner) clone(ctx context.Context, url, ref string, sc *StepContext) error {
	args := []string{"clone", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, url, sc.Workspace)

	cmd := exec.CommandContext(ctx, "git", args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git clone failed: %w\n%s", err, output.String())
	}

	sc.Logger.Info("Checked out repository",
		logger.WithField("source", url),
		logger.WithField("ref", ref))
	return nil
}

func (r *CheckoutRunner) copyLocal(source, ref string, sc *StepContext) error {
	if ref != "" {
		return fmt.Errorf("ref %q requires a git source, got local directory %s", ref, source)
	}
	if !utils.DirectoryExists(source) {
		return fmt.Errorf("checkout source does not exist: %s", source)
	}

	absSource, err := filepath.Abs(source)
	if err != nil {
		return err
	}
	absWorkspace, err := filepath.Abs(sc.Workspace)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(absSource)
	if err != nil {
		return fmt.Errorf("failed to read checkout source: %w", err)
	}

	for _, entry := range entries {
		// Never copy the runner's own working directories into the cell
		// workspace; the workspace may live under the source tree.
		if entry.Name() == ".gantry" {
			continue
		}
		src := filepath.Join(absSource, entry.Name())
		if src == absWorkspace || strings.HasPrefix(absWorkspace, src+string(os.PathSeparator)) {
			continue
		}

		dst := filepath.Join(absWorkspace, entry.Name())
		if entry.IsDir() {
			if err := utils.CopyTree(src, dst); err != nil {
				return fmt.Errorf("failed to copy %s: %w", entry.Name(), err)
			}
		} else if err := utils.CopyFile(src, dst); err != nil {
			return fmt.Errorf("failed to copy %s: %w", entry.Name(), err)
		}
	}

	sc.Logger.Info("Checked out repository", logger.WithField("source", source))
	return nil
}

func isGitURL(source string) bool {
	return strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "ssh://") ||
		strings.HasSuffix(source, ".git")
}
