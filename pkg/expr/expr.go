// Package expr resolves ${{ scope.name }} references in step parameters
package expr

import (
	"regexp"
	"strings"
)

var refPattern = regexp.MustCompile(`\$\{\{\s*([a-zA-Z_][a-zA-Z0-9_-]*)\.([a-zA-Z0-9_][a-zA-Z0-9_.-]*)\s*\}\}`)

// Ref is one parsed reference inside an expression string
type Ref struct {
	Scope string
	Name  string
	Raw   string
}

// String returns the canonical scope.name form of the reference.
func (r Ref) String() string {
	return r.Scope + "." + r.Name
}

// References extracts every ${{ ... }} reference from a string in
// appearance order. Used by validation to flag references that have no
// declared source before anything executes.
func References(s string) []Ref {
	matches := refPattern.FindAllStringSubmatch(s, -1)
	refs := make([]Ref, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, Ref{Scope: m[1], Name: m[2], Raw: m[0]})
	}
	return refs
}

// Context carries the values a cell's expressions may reference. It is
// built once per cell and never mutated during execution.
type Context struct {
	Inputs map[string]string
	Matrix map[string]string
	Env    map[string]string
	Runner map[string]string
}

// Lookup resolves a reference against the context. The second return
// value is false when the scope or name has no declared source.
func (c *Context) Lookup(ref Ref) (string, bool) {
	var scope map[string]string
	switch ref.Scope {
	case "inputs":
		scope = c.Inputs
	case "matrix":
		scope = c.Matrix
	case "env":
		scope = c.Env
	case "runner":
		scope = c.Runner
	default:
		return "", false
	}
	value, ok := scope[ref.Name]
	return value, ok
}

// Expand replaces every reference in s with its resolved value. An
// undefined reference expands to the empty string and is returned in
// the unresolved list so the caller can warn; execution proceeds, which
// matches how hosted runners treat dangling references.
func (c *Context) Expand(s string) (string, []string) {
	if !strings.Contains(s, "${{") {
		return s, nil
	}

	var unresolved []string
	expanded := refPattern.ReplaceAllStringFunc(s, func(raw string) string {
		m := refPattern.FindStringSubmatch(raw)
		ref := Ref{Scope: m[1], Name: m[2], Raw: raw}
		value, ok := c.Lookup(ref)
		if !ok {
			unresolved = append(unresolved, ref.String())
			return ""
		}
		return value
	})
	return expanded, unresolved
}

// ExpandAll expands a slice of strings, collecting every unresolved
// reference across them.
func (c *Context) ExpandAll(values []string) ([]string, []string) {
	expanded := make([]string, 0, len(values))
	var unresolved []string
	for _, v := range values {
		e, u := c.Expand(v)
		expanded = append(expanded, e)
		unresolved = append(unresolved, u...)
	}
	return expanded, unresolved
}

// ExpandMap expands every value of a map, collecting unresolved
// references. Keys are never expanded.
func (c *Context) ExpandMap(values map[string]string) (map[string]string, []string) {
	if values == nil {
		return nil, nil
	}
	expanded := make(map[string]string, len(values))
	var unresolved []string
	for k, v := range values {
		e, u := c.Expand(v)
		expanded[k] = e
		unresolved = append(unresolved, u...)
	}
	return expanded, unresolved
}
