package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gantry/gantry/pkg/analyzers"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new workflow file",
		Long: `Initialize a new workflow file in the project root.
This command detects your project's toolchain and writes a starter
workflow with matching lint, test, build, and cache steps.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing workflow file")

	return cmd
}

func runInit(force bool) error {
	workflowPath := filepath.Join(projectRoot, "gantry.workflow.yaml")

	// Check if a workflow already exists
	if _, err := os.Stat(workflowPath); err == nil && !force {
		return fmt.Errorf("workflow already exists. Use --force to overwrite")
	}

	profile, err := analyzers.NewProjectAnalyzer(projectRoot).Analyze()
	if err != nil {
		return fmt.Errorf("failed to analyze project: %w", err)
	}

	if profile.Kind == analyzers.ProjectKindUnknown {
		printWarning("Could not detect project toolchain, writing a generic workflow")
	} else {
		printInfo(fmt.Sprintf("Detected %s project: %s", profile.Kind, profile.Name))
	}

	doc := buildStarterWorkflow(profile)
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	if err := os.WriteFile(workflowPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write workflow: %w", err)
	}

	printSuccess(fmt.Sprintf("Created workflow at %s", workflowPath))
	printInfo("Edit the workflow to customize the matrix and steps")

	return nil
}

// buildStarterWorkflow assembles a workflow document as ordered YAML
// nodes so the generated file reads top to bottom like a hand-written
// one.
func buildStarterWorkflow(profile *analyzers.ProjectProfile) map[string]interface{} {
	steps := []map[string]interface{}{
		{"name": "checkout", "type": "checkout"},
	}

	if len(profile.CachePaths) > 0 {
		key := profile.Kind
		cacheStep := map[string]interface{}{
			"name":  "cache",
			"type":  "cache",
			"paths": profile.CachePaths,
		}
		if profile.Lockfile != "" {
			cacheStep["key"] = fmt.Sprintf("%s-${{ runner.os }}-%s", key, profile.Lockfile)
			cacheStep["restoreKeys"] = []string{fmt.Sprintf("%s-${{ runner.os }}-", key)}
		} else {
			cacheStep["key"] = fmt.Sprintf("%s-${{ runner.os }}", key)
		}
		steps = append(steps, cacheStep)
	}

	for _, suggestion := range profile.Steps {
		steps = append(steps, map[string]interface{}{
			"name": suggestion.Name,
			"run":  suggestion.Command,
		})
	}

	steps = append(steps, map[string]interface{}{
		"name":     "release",
		"type":     "release",
		"tagName": "${{ inputs.tag }}",
		"files":    []string{"dist/**"},
	})

	name := profile.Name
	if name == "" {
		name = "project"
	}

	return map[string]interface{}{
		"version": "1",
		"name":    strings.ToLower(name),
		"on": map[string]interface{}{
			"dispatch": map[string]interface{}{
				"inputs": map[string]interface{}{
					"tag": map[string]interface{}{
						"description": "Release tag to stage",
						"default":     "v0.0.0-dev",
					},
				},
			},
		},
		"strategy": map[string]interface{}{
			"matrix": []map[string]interface{}{
				{"name": "profile", "values": []string{"debug", "release"}},
			},
			"maxParallel": 1,
		},
		"steps": steps,
	}
}
