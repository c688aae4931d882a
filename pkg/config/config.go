// Package config handles workflow loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gantry/gantry/pkg/expr"
	"github.com/gantry/gantry/pkg/matrix"
	"github.com/gantry/gantry/pkg/types"
)

// WorkflowFileNames are the default file names searched for a workflow,
// in preference order.
var WorkflowFileNames = []string{
	"gantry.workflow.yaml",
	"gantry.workflow.yml",
	"gantry.workflow.json",
}

// Manager handles workflow file operations
type Manager struct{}

// NewManager creates a new workflow manager
func NewManager() *Manager {
	return &Manager{}
}

// FindWorkflowFile locates a workflow file under root
func (m *Manager) FindWorkflowFile(root string) (string, error) {
	for _, name := range WorkflowFileNames {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no workflow file found in %s", root)
}

// LoadWorkflow loads a workflow definition from a file
func (m *Manager) LoadWorkflow(path string) (*types.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var wf types.Workflow

	// Try JSON first
	if err := json.Unmarshal(data, &wf); err == nil {
		return m.validateWorkflow(&wf)
	}

	// Try YAML - need special handling for json.RawMessage fields
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err == nil {
		jsonData, err := json.Marshal(yamlData)
		if err == nil {
			if err := json.Unmarshal(jsonData, &wf); err == nil {
				return m.validateWorkflow(&wf)
			}
		}
	}

	return nil, fmt.Errorf("failed to parse workflow as JSON or YAML")
}

// ValidateWorkflow validates a workflow definition
func (m *Manager) ValidateWorkflow(wf *types.Workflow) error {
	// Check version
	if wf.Version != "1" && wf.Version != "1.0" {
		return fmt.Errorf("unsupported workflow version: %s", wf.Version)
	}

	if wf.Name == "" {
		return fmt.Errorf("workflow has no name")
	}

	// At least one trigger surface must be declared
	if wf.On.Dispatch == nil && wf.On.Call == nil {
		return fmt.Errorf("workflow declares no trigger")
	}

	if err := matrix.Validate(wf.Strategy.Matrix); err != nil {
		return err
	}

	// Validate steps
	if len(wf.Steps) == 0 {
		return fmt.Errorf("no steps defined")
	}

	parsed, err := types.ParseSteps(wf.Steps)
	if err != nil {
		return err
	}

	stepNames := make(map[string]bool)
	for _, step := range parsed {
		if step.GetName() == "" {
			return fmt.Errorf("step with empty name")
		}
		if stepNames[step.GetName()] {
			return fmt.Errorf("duplicate step name: %s", step.GetName())
		}
		stepNames[step.GetName()] = true

		if err := m.validateStep(step); err != nil {
			return fmt.Errorf("step '%s': %w", step.GetName(), err)
		}
	}

	return nil
}

// Warnings reports latent problems that do not block execution, most
// importantly expression references with no declared source. A
// workflow referencing an undeclared matrix axis still runs; the
// reference expands to the empty string at execution time.
func (m *Manager) Warnings(wf *types.Workflow) []string {
	parsed, err := types.ParseSteps(wf.Steps)
	if err != nil {
		return nil
	}

	inputs := make(map[string]bool)
	for _, kind := range []types.TriggerKind{types.TriggerKindDispatch, types.TriggerKindCall} {
		for name := range wf.InputSpecs(kind) {
			inputs[name] = true
		}
	}
	axes := make(map[string]bool)
	for _, axis := range wf.Strategy.Matrix {
		axes[axis.Name] = true
	}

	var warnings []string
	seen := make(map[string]bool)
	for _, step := range parsed {
		for _, value := range stepExpressions(step) {
			for _, ref := range expr.References(value) {
				var undefined bool
				switch ref.Scope {
				case "inputs":
					undefined = !inputs[ref.Name]
				case "matrix":
					undefined = !axes[ref.Name]
				case "env", "runner":
					// Resolved from the host environment at run time;
					// not statically checkable.
				default:
					undefined = true
				}
				if undefined && !seen[ref.String()] {
					seen[ref.String()] = true
					warnings = append(warnings, fmt.Sprintf(
						"step %q references undefined %s (expands to empty string)",
						step.GetName(), ref.String()))
				}
			}
		}
	}
	return warnings
}

// Private methods

func (m *Manager) validateWorkflow(wf *types.Workflow) (*types.Workflow, error) {
	if err := m.ValidateWorkflow(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (m *Manager) validateStep(step types.Step) error {
	switch s := step.(type) {
	case *types.RunStep:
		if s.Command == "" {
			return fmt.Errorf("missing run command")
		}
	case *types.CacheStep:
		if s.Key == "" {
			return fmt.Errorf("missing cache key")
		}
		if len(s.Paths) == 0 {
			return fmt.Errorf("no cache paths defined")
		}
	case *types.ReleaseStep:
		if s.TagName == "" {
			return fmt.Errorf("missing tag name")
		}
		if len(s.Files) == 0 {
			return fmt.Errorf("no release file patterns defined")
		}
	case *types.CheckoutStep:
		// Source defaults to the invoking repository.
	}
	return nil
}

// stepExpressions returns every user-supplied string of a step that may
// contain expression references.
func stepExpressions(step types.Step) []string {
	var values []string
	switch s := step.(type) {
	case *types.RunStep:
		values = append(values, s.Command, s.WorkingDir)
	case *types.CacheStep:
		values = append(values, s.Key)
		values = append(values, s.RestoreKeys...)
		values = append(values, s.Paths...)
	case *types.ReleaseStep:
		values = append(values, s.TagName)
		values = append(values, s.Files...)
	case *types.CheckoutStep:
		values = append(values, s.Source, s.Ref)
	}
	for _, v := range step.GetEnv() {
		values = append(values, v)
	}
	return values
}
