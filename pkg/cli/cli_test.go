package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gantry/gantry/pkg/types"
)

func dispatchWorkflow() *types.Workflow {
	return &types.Workflow{
		Version: "1",
		Name:    "ci",
		On:      types.Triggers{Dispatch: &types.TriggerSpec{}},
	}
}

func TestBuildTrigger_Dispatch(t *testing.T) {
	trigger, err := buildTrigger(dispatchWorkflow(), []string{"tag=v1.0.0", "rust-version=stable"}, false)
	if err != nil {
		t.Fatalf("buildTrigger failed: %v", err)
	}
	if trigger.Kind != types.TriggerKindDispatch {
		t.Errorf("kind: %s", trigger.Kind)
	}
	if trigger.Inputs["tag"] != "v1.0.0" || trigger.Inputs["rust-version"] != "stable" {
		t.Errorf("inputs not parsed: %v", trigger.Inputs)
	}
}

func TestBuildTrigger_ValuePreservesEquals(t *testing.T) {
	trigger, err := buildTrigger(dispatchWorkflow(), []string{"flags=-D warnings=deny"}, false)
	if err != nil {
		t.Fatalf("buildTrigger failed: %v", err)
	}
	if trigger.Inputs["flags"] != "-D warnings=deny" {
		t.Errorf("value should keep everything after the first equals: %q", trigger.Inputs["flags"])
	}
}

func TestBuildTrigger_MalformedInput(t *testing.T) {
	for _, raw := range []string{"noequals", "=value"} {
		if _, err := buildTrigger(dispatchWorkflow(), []string{raw}, false); err == nil {
			t.Errorf("input %q should be rejected", raw)
		}
	}
}

func TestBuildTrigger_UndeclaredKindRejected(t *testing.T) {
	if _, err := buildTrigger(dispatchWorkflow(), nil, true); err == nil {
		t.Error("call trigger should be rejected when only dispatch is declared")
	}

	wf := &types.Workflow{
		Version: "1",
		Name:    "ci",
		On:      types.Triggers{Call: &types.TriggerSpec{}},
	}
	if _, err := buildTrigger(wf, nil, true); err != nil {
		t.Errorf("declared call trigger should be accepted: %v", err)
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tc := range cases {
		if got := formatSize(tc.bytes); got != tc.want {
			t.Errorf("formatSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}

func TestFormatRunDuration(t *testing.T) {
	if got := formatRunDuration(450 * time.Millisecond); got != "450ms" {
		t.Errorf("sub-second: %q", got)
	}
	if got := formatRunDuration(2*time.Second + 340*time.Millisecond); got != "2.3s" {
		t.Errorf("seconds: %q", got)
	}
}

func TestReadLastNLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cell.log")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0o644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	content, err := readLastNLines(path, 2)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if content != "three\nfour\n" {
		t.Errorf("unexpected tail: %q", content)
	}

	content, err = readLastNLines(path, 100)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if content != "one\ntwo\nthree\nfour\n" {
		t.Errorf("asking for more lines than exist should return the whole file: %q", content)
	}
}
