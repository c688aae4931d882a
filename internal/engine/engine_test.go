package engine_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gantry/gantry/internal/engine"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/mocks"
	"github.com/gantry/gantry/pkg/notifier"
	"github.com/gantry/gantry/pkg/steps"
	"github.com/gantry/gantry/pkg/types"
)

type fixture struct {
	state     *mocks.MockStateManager
	cache     *mocks.MockCacheManager
	publisher *mocks.MockPublisher
	notifier  *mocks.MockNotifier
	deps      engine.Dependencies
	rootDir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:     mocks.NewMockStateManager(),
		cache:     mocks.NewMockCacheManager(),
		publisher: mocks.NewMockPublisher(),
		notifier:  mocks.NewMockNotifier(),
		rootDir:   t.TempDir(),
	}
	f.deps = engine.Dependencies{
		StateManager: f.state,
		CacheManager: f.cache,
		Publisher:    f.publisher,
		Notifier:     f.notifier,
		Registry: steps.NewRegistry(steps.Deps{
			Cache:     f.cache,
			Publisher: f.publisher,
		}),
	}
	return f
}

func rawSteps(t *testing.T, defs ...string) []json.RawMessage {
	t.Helper()
	raw := make([]json.RawMessage, len(defs))
	for i, def := range defs {
		raw[i] = json.RawMessage(def)
	}
	return raw
}

func testWorkflow(t *testing.T, stepDefs ...string) *types.Workflow {
	t.Helper()
	return &types.Workflow{
		Version: "1",
		Name:    "ci",
		Strategy: types.Strategy{
			Matrix: []types.Axis{
				{Name: "backend", Values: []string{"redis", "simple"}},
			},
		},
		Steps: rawSteps(t, stepDefs...),
	}
}

func newEngine(f *fixture, wf *types.Workflow, overrides engine.Overrides) *engine.Gantry {
	return engine.New(wf, f.rootDir, logger.CreateLogger("", "error"), f.deps, overrides)
}

func TestRun_AllCellsSucceed(t *testing.T) {
	f := newFixture(t)
	wf := testWorkflow(t, `{"name": "noop", "run": "true"}`)

	summary, err := newEngine(f, wf, engine.Overrides{}).Run(
		context.Background(),
		types.Trigger{Kind: types.TriggerKindDispatch},
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !summary.Succeeded {
		t.Error("summary should report success")
	}
	if len(summary.Cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(summary.Cells))
	}
	for _, cell := range summary.Cells {
		if cell.Status != types.CellStatusSucceeded {
			t.Errorf("cell %s: status %s", cell.CellKey, cell.Status)
		}
	}
	if summary.RunID == "" {
		t.Error("run id missing from summary")
	}

	if f.notifier.Starts() != 1 {
		t.Errorf("expected 1 start notification, got %d", f.notifier.Starts())
	}
	outcomes := f.notifier.Outcomes()
	if len(outcomes) != 1 || !outcomes[0] {
		t.Errorf("expected a single success notification, got %v", outcomes)
	}
}

func TestRun_CellOrderPreserved(t *testing.T) {
	f := newFixture(t)
	wf := testWorkflow(t, `{"name": "noop", "run": "true"}`)

	summary, err := newEngine(f, wf, engine.Overrides{}).Run(
		context.Background(),
		types.Trigger{Kind: types.TriggerKindDispatch},
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Cells[0].CellKey != "backend=redis" {
		t.Errorf("first cell: %s", summary.Cells[0].CellKey)
	}
	if summary.Cells[1].CellKey != "backend=simple" {
		t.Errorf("final cell: %s", summary.Cells[1].CellKey)
	}
}

func TestRun_ReleaseOnlyInFinalCell(t *testing.T) {
	f := newFixture(t)
	wf := testWorkflow(t,
		`{"name": "build", "run": "echo asset > notes.txt"}`,
		`{"name": "publish", "type": "release", "tagName": "v1.0.0", "files": ["*.txt"]}`,
	)

	summary, err := newEngine(f, wf, engine.Overrides{}).Run(
		context.Background(),
		types.Trigger{Kind: types.TriggerKindDispatch},
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !summary.Succeeded {
		t.Fatal("run should succeed")
	}

	published := f.publisher.Published()
	if len(published) != 1 {
		t.Fatalf("release must publish exactly once, got %d", len(published))
	}
	if !published[0].Draft {
		t.Error("release must stay a draft")
	}

	firstCell := summary.Cells[0]
	if firstCell.Steps[1].Status != types.StepStatusSkipped {
		t.Errorf("release in non-final cell: %s", firstCell.Steps[1].Status)
	}
	finalCell := summary.Cells[1]
	if finalCell.Steps[1].Status != types.StepStatusSucceeded {
		t.Errorf("release in final cell: %s", finalCell.Steps[1].Status)
	}
}

func TestRun_FailFastCancelsRemainingCells(t *testing.T) {
	f := newFixture(t)
	wf := testWorkflow(t, `{"name": "broken", "run": "false"}`)

	summary, err := newEngine(f, wf, engine.Overrides{}).Run(
		context.Background(),
		types.Trigger{Kind: types.TriggerKindDispatch},
	)
	if err == nil {
		t.Fatal("run should fail")
	}
	if summary.Succeeded {
		t.Error("summary should report failure")
	}

	if summary.Cells[0].Status != types.CellStatusFailed {
		t.Errorf("first cell: %s", summary.Cells[0].Status)
	}
	if summary.Cells[1].Status != types.CellStatusCancelled {
		t.Errorf("final cell should be cancelled, got %s", summary.Cells[1].Status)
	}

	failures := f.notifier.CellFailures()
	if len(failures) != 1 || failures[0] != "backend=redis" {
		t.Errorf("unexpected cell failures: %v", failures)
	}
	outcomes := f.notifier.Outcomes()
	if len(outcomes) != 1 || outcomes[0] {
		t.Errorf("expected a single failure notification, got %v", outcomes)
	}
}

func TestRun_NoFailFastRunsEveryCell(t *testing.T) {
	f := newFixture(t)
	failFast := false
	wf := testWorkflow(t, `{"name": "broken", "run": "false"}`)
	wf.Strategy.FailFast = &failFast

	summary, err := newEngine(f, wf, engine.Overrides{}).Run(
		context.Background(),
		types.Trigger{Kind: types.TriggerKindDispatch},
	)
	if err == nil {
		t.Fatal("run should surface the cell failure")
	}

	for _, cell := range summary.Cells {
		if cell.Status != types.CellStatusFailed {
			t.Errorf("cell %s should have run and failed, got %s", cell.CellKey, cell.Status)
		}
	}
	if len(f.notifier.CellFailures()) != 2 {
		t.Errorf("expected 2 cell failures, got %v", f.notifier.CellFailures())
	}
}

func TestRun_FailFastOverride(t *testing.T) {
	f := newFixture(t)
	failFast := false
	wf := testWorkflow(t, `{"name": "broken", "run": "false"}`)

	summary, err := newEngine(f, wf, engine.Overrides{FailFast: &failFast}).Run(
		context.Background(),
		types.Trigger{Kind: types.TriggerKindDispatch},
	)
	if err == nil {
		t.Fatal("run should fail")
	}

	// The override disables fail-fast, so the final cell still runs.
	if summary.Cells[1].Status != types.CellStatusFailed {
		t.Errorf("final cell should have run, got %s", summary.Cells[1].Status)
	}
}

func TestRun_SingleCellWithoutMatrix(t *testing.T) {
	f := newFixture(t)
	wf := testWorkflow(t, `{"name": "noop", "run": "true"}`)
	wf.Strategy.Matrix = nil

	summary, err := newEngine(f, wf, engine.Overrides{}).Run(
		context.Background(),
		types.Trigger{Kind: types.TriggerKindDispatch},
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(summary.Cells) != 1 {
		t.Fatalf("expected 1 cell, got %d", len(summary.Cells))
	}
	if summary.Cells[0].CellKey != "" {
		t.Errorf("empty matrix should produce the default cell, got %q", summary.Cells[0].CellKey)
	}
}

func TestRun_RequiredInputMissing(t *testing.T) {
	f := newFixture(t)
	wf := testWorkflow(t, `{"name": "noop", "run": "true"}`)
	wf.On = types.Triggers{
		Dispatch: &types.TriggerSpec{
			Inputs: map[string]types.InputSpec{
				"tag": {Required: true},
			},
		},
	}

	_, err := newEngine(f, wf, engine.Overrides{}).Run(
		context.Background(),
		types.Trigger{Kind: types.TriggerKindDispatch},
	)
	if err == nil {
		t.Fatal("missing required input must fail the run before any cell starts")
	}
	if f.notifier.Starts() != 0 {
		t.Error("no start notification should fire for a rejected trigger")
	}
}

func TestDependencyFactory_CreateWithOverrides(t *testing.T) {
	f := newFixture(t)
	factory := engine.NewDependencyFactory(f.rootDir, logger.CreateLogger("", "error"), notifier.Config{})

	deps := factory.CreateWithOverrides(engine.Dependencies{
		StateManager: f.state,
		Publisher:    f.publisher,
	})

	if deps.StateManager != f.state {
		t.Error("state manager override not applied")
	}
	if deps.Publisher != f.publisher {
		t.Error("publisher override not applied")
	}
	if deps.CacheManager == nil || deps.Notifier == nil || deps.Registry == nil {
		t.Error("defaults should fill the remaining dependencies")
	}
}
