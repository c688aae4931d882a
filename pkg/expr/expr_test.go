package expr_test

import (
	"testing"

	"github.com/gantry/gantry/pkg/expr"
)

func testContext() *expr.Context {
	return &expr.Context{
		Inputs: map[string]string{"rust-version": "stable"},
		Matrix: map[string]string{"backend": "redis", "client": "enabled"},
		Env:    map[string]string{"CARGO_TERM_COLOR": "always"},
		Runner: map[string]string{"os": "linux"},
	}
}

func TestExpand_AllScopes(t *testing.T) {
	ctx := testContext()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"inputs", "cargo +${{ inputs.rust-version }} build", "cargo +stable build"},
		{"matrix", "--features ${{ matrix.backend }}", "--features redis"},
		{"env", "color=${{ env.CARGO_TERM_COLOR }}", "color=always"},
		{"runner", "cache-${{ runner.os }}", "cache-linux"},
		{"multiple", "${{ matrix.backend }}-${{ matrix.client }}", "redis-enabled"},
		{"no refs", "plain string", "plain string"},
		{"whitespace", "${{  matrix.backend  }}", "redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unresolved := ctx.Expand(tt.input)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if len(unresolved) != 0 {
				t.Errorf("unexpected unresolved refs: %v", unresolved)
			}
		})
	}
}

func TestExpand_UndefinedReference(t *testing.T) {
	ctx := testContext()

	got, unresolved := ctx.Expand("target=${{ matrix.job.target }}")
	if got != "target=" {
		t.Errorf("undefined reference should expand to empty string, got %q", got)
	}
	if len(unresolved) != 1 || unresolved[0] != "matrix.job.target" {
		t.Errorf("expected unresolved [matrix.job.target], got %v", unresolved)
	}
}

func TestExpand_UnknownScope(t *testing.T) {
	ctx := testContext()

	got, unresolved := ctx.Expand("${{ secrets.TOKEN }}")
	if got != "" {
		t.Errorf("unknown scope should expand to empty string, got %q", got)
	}
	if len(unresolved) != 1 || unresolved[0] != "secrets.TOKEN" {
		t.Errorf("expected unresolved [secrets.TOKEN], got %v", unresolved)
	}
}

func TestExpand_MixedResolvedAndUnresolved(t *testing.T) {
	ctx := testContext()

	got, unresolved := ctx.Expand("${{ matrix.backend }}:${{ matrix.missing }}")
	if got != "redis:" {
		t.Errorf("expected \"redis:\", got %q", got)
	}
	if len(unresolved) != 1 {
		t.Errorf("expected one unresolved ref, got %v", unresolved)
	}
}

func TestExpandAll(t *testing.T) {
	ctx := testContext()

	expanded, unresolved := ctx.ExpandAll([]string{
		"cargo-${{ runner.os }}-${{ matrix.backend }}",
		"cargo-${{ runner.arch }}-",
	})

	if expanded[0] != "cargo-linux-redis" {
		t.Errorf("expected cargo-linux-redis, got %q", expanded[0])
	}
	if expanded[1] != "cargo--" {
		t.Errorf("expected cargo--, got %q", expanded[1])
	}
	if len(unresolved) != 1 || unresolved[0] != "runner.arch" {
		t.Errorf("expected unresolved [runner.arch], got %v", unresolved)
	}
}

func TestExpandMap(t *testing.T) {
	ctx := testContext()

	expanded, unresolved := ctx.ExpandMap(map[string]string{
		"DRMEM_CLIENT": "${{ matrix.client }}",
		"PLAIN":        "value",
	})

	if expanded["DRMEM_CLIENT"] != "enabled" {
		t.Errorf("expected enabled, got %q", expanded["DRMEM_CLIENT"])
	}
	if expanded["PLAIN"] != "value" {
		t.Errorf("expected value, got %q", expanded["PLAIN"])
	}
	if len(unresolved) != 0 {
		t.Errorf("unexpected unresolved refs: %v", unresolved)
	}

	nilExpanded, _ := ctx.ExpandMap(nil)
	if nilExpanded != nil {
		t.Error("expected nil map to stay nil")
	}
}

func TestReferences(t *testing.T) {
	refs := expr.References("key-${{ runner.os }}-${{ matrix.backend }}")

	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d", len(refs))
	}
	if refs[0].Scope != "runner" || refs[0].Name != "os" {
		t.Errorf("unexpected first reference: %+v", refs[0])
	}
	if refs[1].String() != "matrix.backend" {
		t.Errorf("expected matrix.backend, got %s", refs[1].String())
	}
}

func TestReferences_DottedName(t *testing.T) {
	refs := expr.References("${{ matrix.job.target }}")

	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if refs[0].Scope != "matrix" || refs[0].Name != "job.target" {
		t.Errorf("unexpected reference: %+v", refs[0])
	}
}
