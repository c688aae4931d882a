package types_test

import (
	"encoding/json"
	"testing"

	"github.com/gantry/gantry/pkg/types"
)

func TestParseStep_Dispatch(t *testing.T) {
	tests := []struct {
		name string
		data string
		want types.StepType
	}{
		{"checkout", `{"name": "checkout", "type": "checkout"}`, types.StepTypeCheckout},
		{"cache", `{"name": "cache", "type": "cache", "key": "k", "paths": ["target"]}`, types.StepTypeCache},
		{"run explicit", `{"name": "build", "type": "run", "run": "make"}`, types.StepTypeRun},
		{"release", `{"name": "release", "type": "release", "tagName": "v1", "files": ["dist/*"]}`, types.StepTypeRelease},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := types.ParseStep([]byte(tt.data))
			if err != nil {
				t.Fatalf("failed to parse step: %v", err)
			}
			if step.GetType() != tt.want {
				t.Errorf("expected type %s, got %s", tt.want, step.GetType())
			}
		})
	}
}

func TestParseStep_InfersRunType(t *testing.T) {
	step, err := types.ParseStep([]byte(`{"name": "test", "run": "cargo test"}`))
	if err != nil {
		t.Fatalf("failed to parse step: %v", err)
	}

	if step.GetType() != types.StepTypeRun {
		t.Errorf("expected run type to be inferred, got %s", step.GetType())
	}

	runStep, ok := step.(*types.RunStep)
	if !ok {
		t.Fatalf("expected *RunStep, got %T", step)
	}
	if runStep.Command != "cargo test" {
		t.Errorf("expected command 'cargo test', got %q", runStep.Command)
	}
}

func TestParseStep_UnknownType(t *testing.T) {
	if _, err := types.ParseStep([]byte(`{"name": "x", "type": "deploy"}`)); err == nil {
		t.Fatal("expected error for unknown step type")
	}
}

func TestParseSteps_PreservesOrder(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"name": "checkout", "type": "checkout"}`),
		json.RawMessage(`{"name": "lint", "run": "cargo clippy"}`),
		json.RawMessage(`{"name": "test", "run": "cargo test"}`),
	}

	steps, err := types.ParseSteps(raw)
	if err != nil {
		t.Fatalf("failed to parse steps: %v", err)
	}

	names := []string{"checkout", "lint", "test"}
	for i, step := range steps {
		if step.GetName() != names[i] {
			t.Errorf("step %d: expected %q, got %q", i, names[i], step.GetName())
		}
	}
}

func TestStrategy_Defaults(t *testing.T) {
	s := &types.Strategy{}

	if got := s.GetMaxParallel(); got != 1 {
		t.Errorf("expected default max-parallel 1, got %d", got)
	}
	if !s.GetFailFast() {
		t.Error("expected fail-fast to default to true")
	}

	two := 2
	off := false
	s = &types.Strategy{MaxParallel: &two, FailFast: &off}
	if got := s.GetMaxParallel(); got != 2 {
		t.Errorf("expected max-parallel 2, got %d", got)
	}
	if s.GetFailFast() {
		t.Error("expected fail-fast false when set")
	}
}

func TestReleaseStep_DraftDefaultsTrue(t *testing.T) {
	step := &types.ReleaseStep{}
	if !step.IsDraft() {
		t.Error("release steps must default to draft")
	}

	// Draft stays true even when explicitly disabled; releases are
	// never auto-published.
	published := false
	step = &types.ReleaseStep{Draft: &published}
	if step.IsDraft() {
		t.Error("expected IsDraft to honor explicit false")
	}
}

func TestContinueOnError_DefaultsFalse(t *testing.T) {
	step, err := types.ParseStep([]byte(`{"name": "lint", "run": "cargo clippy"}`))
	if err != nil {
		t.Fatalf("failed to parse step: %v", err)
	}
	if step.GetContinueOnError() {
		t.Error("continue-on-error must default to false")
	}

	step, err = types.ParseStep([]byte(`{"name": "lint", "run": "x", "continueOnError": true}`))
	if err != nil {
		t.Fatalf("failed to parse step: %v", err)
	}
	if !step.GetContinueOnError() {
		t.Error("expected continue-on-error true when set")
	}
}

func workflowWithInputs() *types.Workflow {
	return &types.Workflow{
		Version: "1",
		Name:    "test",
		On: types.Triggers{
			Dispatch: &types.TriggerSpec{
				Inputs: map[string]types.InputSpec{
					"rust-version": {Default: "stable"},
				},
			},
		},
	}
}

func TestResolveInputs_Defaults(t *testing.T) {
	wf := workflowWithInputs()

	resolved, err := wf.ResolveInputs(types.Trigger{Kind: types.TriggerKindDispatch})
	if err != nil {
		t.Fatalf("failed to resolve inputs: %v", err)
	}
	if resolved["rust-version"] != "stable" {
		t.Errorf("expected default 'stable', got %q", resolved["rust-version"])
	}
}

func TestResolveInputs_SuppliedOverridesDefault(t *testing.T) {
	wf := workflowWithInputs()

	resolved, err := wf.ResolveInputs(types.Trigger{
		Kind:   types.TriggerKindDispatch,
		Inputs: map[string]string{"rust-version": "nightly"},
	})
	if err != nil {
		t.Fatalf("failed to resolve inputs: %v", err)
	}
	if resolved["rust-version"] != "nightly" {
		t.Errorf("expected 'nightly', got %q", resolved["rust-version"])
	}
}

func TestResolveInputs_UnknownInputRejected(t *testing.T) {
	wf := workflowWithInputs()

	_, err := wf.ResolveInputs(types.Trigger{
		Kind:   types.TriggerKindDispatch,
		Inputs: map[string]string{"typo": "x"},
	})
	if err == nil {
		t.Fatal("expected error for unknown input")
	}
}

func TestResolveInputs_RequiredMissing(t *testing.T) {
	required := true
	wf := &types.Workflow{
		On: types.Triggers{
			Dispatch: &types.TriggerSpec{
				Inputs: map[string]types.InputSpec{
					"tag": {Required: &required},
				},
			},
		},
	}

	if _, err := wf.ResolveInputs(types.Trigger{Kind: types.TriggerKindDispatch}); err == nil {
		t.Fatal("expected error for missing required input")
	}
}
