// Package types provides core types and configurations for Gantry
package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// StepType represents supported pipeline step capabilities
type StepType string

const (
	StepTypeCheckout StepType = "checkout"
	StepTypeCache    StepType = "cache"
	StepTypeRun      StepType = "run"
	StepTypeRelease  StepType = "release"
)

// TriggerKind represents how a workflow run was started
type TriggerKind string

const (
	TriggerKindDispatch TriggerKind = "dispatch"
	TriggerKindCall     TriggerKind = "call"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// StepStatus represents the current state of a step within a cell
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// CellStatus represents the current state of a matrix cell run
type CellStatus string

const (
	CellStatusPending   CellStatus = "pending"
	CellStatusRunning   CellStatus = "running"
	CellStatusSucceeded CellStatus = "succeeded"
	CellStatusFailed    CellStatus = "failed"
	CellStatusCancelled CellStatus = "cancelled"
)

// InputSpec declares a workflow input parameter
type InputSpec struct {
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Default     string `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    *bool  `json:"required,omitempty" yaml:"required,omitempty"`
}

// TriggerSpec declares one trigger surface of a workflow
type TriggerSpec struct {
	Inputs map[string]InputSpec `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// Triggers declares the trigger surfaces a workflow accepts
type Triggers struct {
	Dispatch *TriggerSpec `json:"dispatch,omitempty" yaml:"dispatch,omitempty"`
	Call     *TriggerSpec `json:"call,omitempty" yaml:"call,omitempty"`
}

// Trigger represents one concrete invocation of a workflow
type Trigger struct {
	Kind   TriggerKind       `json:"kind"`
	Inputs map[string]string `json:"inputs,omitempty"`
}

// Axis represents one matrix dimension with an enumerated domain.
// Axes are declared as an ordered list so the expansion order is
// deterministic regardless of the config encoding.
type Axis struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

// Strategy represents matrix execution strategy
type Strategy struct {
	Matrix      []Axis `json:"matrix,omitempty" yaml:"matrix,omitempty"`
	MaxParallel *int   `json:"maxParallel,omitempty" yaml:"maxParallel,omitempty"`
	FailFast    *bool  `json:"failFast,omitempty" yaml:"failFast,omitempty"`
}

// GetMaxParallel returns the parallelism bound, defaulting to serialized
// execution for parity with the workflows Gantry replaces.
func (s *Strategy) GetMaxParallel() int {
	if s.MaxParallel != nil && *s.MaxParallel > 0 {
		return *s.MaxParallel
	}
	return 1
}

// GetFailFast reports whether a failed cell cancels the remaining cells.
func (s *Strategy) GetFailFast() bool {
	if s.FailFast != nil {
		return *s.FailFast
	}
	return true
}

// Workflow represents the main workflow definition
type Workflow struct {
	Version  string            `json:"version" yaml:"version"`
	Name     string            `json:"name" yaml:"name"`
	On       Triggers          `json:"on" yaml:"on"`
	Env      map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Strategy Strategy          `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Steps    []json.RawMessage `json:"steps" yaml:"steps"`
}

// InputSpecs returns the input declarations for a trigger kind.
func (w *Workflow) InputSpecs(kind TriggerKind) map[string]InputSpec {
	var spec *TriggerSpec
	switch kind {
	case TriggerKindDispatch:
		spec = w.On.Dispatch
	case TriggerKindCall:
		spec = w.On.Call
	}
	if spec == nil {
		return nil
	}
	return spec.Inputs
}

// ResolveInputs merges trigger-supplied inputs over declared defaults.
// Unknown inputs are rejected; omitted inputs take their defaults.
func (w *Workflow) ResolveInputs(trigger Trigger) (map[string]string, error) {
	specs := w.InputSpecs(trigger.Kind)
	if specs == nil && len(trigger.Inputs) > 0 {
		return nil, fmt.Errorf("workflow does not accept %s inputs", trigger.Kind)
	}

	resolved := make(map[string]string, len(specs))
	for name, spec := range specs {
		resolved[name] = spec.Default
	}
	for name, value := range trigger.Inputs {
		if _, ok := specs[name]; !ok {
			return nil, fmt.Errorf("unknown input: %s", name)
		}
		resolved[name] = value
	}
	for name, spec := range specs {
		if spec.Required != nil && *spec.Required && resolved[name] == "" {
			return nil, fmt.Errorf("required input missing: %s", name)
		}
	}
	return resolved, nil
}

// InputNames returns the declared input names for a trigger kind, sorted.
func (w *Workflow) InputNames(kind TriggerKind) []string {
	specs := w.InputSpecs(kind)
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BaseStep represents common fields for all step types
type BaseStep struct {
	Name            string            `json:"name" yaml:"name"`
	Type            StepType          `json:"type" yaml:"type"`
	ContinueOnError *bool             `json:"continueOnError,omitempty" yaml:"continueOnError,omitempty"`
	Env             map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// CheckoutStep fetches repository contents into the workspace
type CheckoutStep struct {
	BaseStep
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Ref    string `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// CacheStep restores the dependency cache before the build steps
type CacheStep struct {
	BaseStep
	Key         string   `json:"key" yaml:"key"`
	RestoreKeys []string `json:"restoreKeys,omitempty" yaml:"restoreKeys,omitempty"`
	Paths       []string `json:"paths" yaml:"paths"`
}

// RunStep executes a shell command in the workspace
type RunStep struct {
	BaseStep
	Command    string `json:"run" yaml:"run"`
	WorkingDir string `json:"workingDir,omitempty" yaml:"workingDir,omitempty"`
}

// ReleaseStep assembles a draft release from build outputs
type ReleaseStep struct {
	BaseStep
	Draft   *bool    `json:"draft,omitempty" yaml:"draft,omitempty"`
	TagName string   `json:"tagName" yaml:"tagName"`
	Files   []string `json:"files" yaml:"files"`
}

// IsDraft reports whether the release is held back from publication.
// Draft is the default; this runner never auto-publishes.
func (s *ReleaseStep) IsDraft() bool {
	return s.Draft == nil || *s.Draft
}

// Step represents any pipeline step (interface)
type Step interface {
	GetName() string
	GetType() StepType
	GetContinueOnError() bool
	GetEnv() map[string]string
}

// ParseStep unmarshals a step from JSON based on its type. A step with
// a "run" key and no explicit type is a run step.
func ParseStep(data []byte) (Step, error) {
	var base struct {
		Type StepType `json:"type"`
		Run  string   `json:"run"`
	}

	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse step type: %w", err)
	}

	if base.Type == "" && base.Run != "" {
		base.Type = StepTypeRun
	}

	switch base.Type {
	case StepTypeCheckout:
		var s CheckoutStep
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil

	case StepTypeCache:
		var s CacheStep
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil

	case StepTypeRun:
		var s RunStep
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		s.Type = StepTypeRun
		return &s, nil

	case StepTypeRelease:
		var s ReleaseStep
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil

	default:
		return nil, fmt.Errorf("unknown step type: %s", base.Type)
	}
}

// ParseSteps unmarshals every step of a workflow in declaration order.
func ParseSteps(raw []json.RawMessage) ([]Step, error) {
	steps := make([]Step, 0, len(raw))
	for i, data := range raw {
		step, err := ParseStep(data)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// StepResult records the outcome of one executed step
type StepResult struct {
	Name     string        `json:"name"`
	Type     StepType      `json:"type"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
	Soft     bool          `json:"soft,omitempty"`
}

// CellResult records the outcome of one executed matrix cell
type CellResult struct {
	CellKey   string        `json:"cellKey"`
	Status    CellStatus    `json:"status"`
	Steps     []StepResult  `json:"steps"`
	Duration  time.Duration `json:"duration,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
}

// Step interface implementations

func (s *BaseStep) GetName() string   { return s.Name }
func (s *BaseStep) GetType() StepType { return s.Type }
func (s *BaseStep) GetContinueOnError() bool {
	return s.ContinueOnError != nil && *s.ContinueOnError
}
func (s *BaseStep) GetEnv() map[string]string { return s.Env }
