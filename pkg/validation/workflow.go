// Package validation provides workflow validation functionality
package validation

import (
	"fmt"
	"strings"

	"github.com/gantry/gantry/pkg/config"
	"github.com/gantry/gantry/pkg/matrix"
	"github.com/gantry/gantry/pkg/types"
)

// ValidationLevel represents finding severity
type ValidationLevel string

const (
	ValidationLevelError   ValidationLevel = "error"
	ValidationLevelWarning ValidationLevel = "warning"
	ValidationLevelInfo    ValidationLevel = "info"
)

// ValidationError represents one validation finding
type ValidationError struct {
	Step    string
	Field   string
	Message string
	Level   ValidationLevel
}

func (e *ValidationError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("[%s] %s: %s", e.Level, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s.%s: %s", e.Level, e.Step, e.Field, e.Message)
}

// ValidationResult contains validation findings
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// AddError adds a finding to the validation result
func (r *ValidationResult) AddError(step, field, message string, level ValidationLevel) {
	r.Errors = append(r.Errors, ValidationError{
		Step:    step,
		Field:   field,
		Message: message,
		Level:   level,
	})
	if level == ValidationLevelError {
		r.Valid = false
	}
}

// WorkflowValidator validates workflow definitions beyond structural
// parsing: ordering conventions, latent expression bugs, and matrix
// shape all surface here.
type WorkflowValidator struct {
	manager *config.Manager
}

// NewWorkflowValidator creates a new workflow validator
func NewWorkflowValidator() *WorkflowValidator {
	return &WorkflowValidator{
		manager: config.NewManager(),
	}
}

// Validate validates a workflow
func (v *WorkflowValidator) Validate(wf *types.Workflow) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if err := v.manager.ValidateWorkflow(wf); err != nil {
		result.AddError("", "workflow", err.Error(), ValidationLevelError)
		return result
	}

	if err := matrix.Validate(wf.Strategy.Matrix); err != nil {
		result.AddError("", "strategy.matrix", err.Error(), ValidationLevelError)
	}

	steps, err := types.ParseSteps(wf.Steps)
	if err != nil {
		result.AddError("", "steps", err.Error(), ValidationLevelError)
		return result
	}

	v.validateStepOrder(steps, result)
	v.validateStepNames(steps, result)

	// Latent expression bugs: references with no declared source run,
	// but expand to empty strings.
	for _, warning := range v.manager.Warnings(wf) {
		result.AddError("", "expressions", warning, ValidationLevelWarning)
	}

	return result
}

// validateStepOrder flags orderings that are valid but almost
// certainly unintended.
func (v *WorkflowValidator) validateStepOrder(steps []types.Step, result *ValidationResult) {
	firstRun := -1
	lastCheckout := -1
	lastCache := -1
	releaseCount := 0

	for i, step := range steps {
		switch step.GetType() {
		case types.StepTypeRun:
			if firstRun == -1 {
				firstRun = i
			}
		case types.StepTypeCheckout:
			lastCheckout = i
		case types.StepTypeCache:
			lastCache = i
		case types.StepTypeRelease:
			releaseCount++
			if i != len(steps)-1 {
				result.AddError(step.GetName(), "type",
					"release step is not last; later steps run before the release is assembled",
					ValidationLevelWarning)
			}
		}
	}

	if firstRun != -1 && lastCheckout > firstRun {
		result.AddError(steps[lastCheckout].GetName(), "type",
			"checkout after a run step overwrites its workspace changes",
			ValidationLevelWarning)
	}
	if firstRun != -1 && lastCache > firstRun {
		result.AddError(steps[lastCache].GetName(), "type",
			"cache restore after a run step restores too late to help it",
			ValidationLevelWarning)
	}
	if releaseCount > 1 {
		result.AddError("", "steps",
			"multiple release steps; each publishes a separate draft",
			ValidationLevelWarning)
	}
}

func (v *WorkflowValidator) validateStepNames(steps []types.Step, result *ValidationResult) {
	for _, step := range steps {
		name := step.GetName()
		if strings.TrimSpace(name) != name {
			result.AddError(name, "name",
				"step name has leading or trailing whitespace",
				ValidationLevelWarning)
		}
	}
}
