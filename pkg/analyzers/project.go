// Package analyzers provides project toolchain analysis functionality
package analyzers

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProjectKind identifies the toolchain a project builds with
type ProjectKind string

const (
	ProjectKindRust    ProjectKind = "rust"
	ProjectKindGo      ProjectKind = "go"
	ProjectKindNode    ProjectKind = "node"
	ProjectKindPython  ProjectKind = "python"
	ProjectKindUnknown ProjectKind = "unknown"
)

// ProjectAnalyzer inspects a project tree and suggests workflow steps
type ProjectAnalyzer struct {
	projectRoot string
}

// NewProjectAnalyzer creates a new project analyzer
func NewProjectAnalyzer(projectRoot string) *ProjectAnalyzer {
	return &ProjectAnalyzer{
		projectRoot: projectRoot,
	}
}

// StepSuggestion is one suggested pipeline step for a detected project
type StepSuggestion struct {
	Name    string
	Command string
}

// ProjectProfile is the result of analyzing a project tree
type ProjectProfile struct {
	Name       string
	Kind       ProjectKind
	Lockfile   string
	CachePaths []string
	Steps      []StepSuggestion
}

// markerFiles maps toolchain marker files to project kinds, checked in
// order so a mixed tree resolves to the first match.
var markerFiles = []struct {
	file string
	kind ProjectKind
}{
	{"Cargo.toml", ProjectKindRust},
	{"go.mod", ProjectKindGo},
	{"package.json", ProjectKindNode},
	{"pyproject.toml", ProjectKindPython},
}

// Analyze inspects the project root and builds a profile
func (a *ProjectAnalyzer) Analyze() (*ProjectProfile, error) {
	for _, marker := range markerFiles {
		path := filepath.Join(a.projectRoot, marker.file)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return a.profileFor(marker.kind, path)
	}

	return &ProjectProfile{
		Name: filepath.Base(a.projectRoot),
		Kind: ProjectKindUnknown,
		Steps: []StepSuggestion{
			{Name: "build", Command: "make"},
		},
	}, nil
}

func (a *ProjectAnalyzer) profileFor(kind ProjectKind, markerPath string) (*ProjectProfile, error) {
	profile := &ProjectProfile{
		Name: filepath.Base(a.projectRoot),
		Kind: kind,
	}

	switch kind {
	case ProjectKindRust:
		if name, err := parseTomlName(markerPath); err == nil && name != "" {
			profile.Name = name
		}
		profile.Lockfile = "Cargo.lock"
		profile.CachePaths = []string{"target", ".cargo/registry"}
		profile.Steps = []StepSuggestion{
			{Name: "lint", Command: "cargo clippy -- -D warnings"},
			{Name: "test", Command: "cargo test"},
			{Name: "build", Command: "cargo build --release"},
		}
	case ProjectKindGo:
		if name, err := parseGoModuleName(markerPath); err == nil && name != "" {
			profile.Name = filepath.Base(name)
		}
		profile.Lockfile = "go.sum"
		profile.CachePaths = []string{".cache/go-build"}
		profile.Steps = []StepSuggestion{
			{Name: "lint", Command: "go vet ./..."},
			{Name: "test", Command: "go test ./..."},
			{Name: "build", Command: "go build ./..."},
		}
	case ProjectKindNode:
		profile.Lockfile = "package-lock.json"
		profile.CachePaths = []string{"node_modules"}
		profile.Steps = []StepSuggestion{
			{Name: "lint", Command: "npm run lint"},
			{Name: "test", Command: "npm test"},
			{Name: "build", Command: "npm run build"},
		}
	case ProjectKindPython:
		profile.Lockfile = "poetry.lock"
		profile.CachePaths = []string{".venv"}
		profile.Steps = []StepSuggestion{
			{Name: "lint", Command: "ruff check ."},
			{Name: "test", Command: "pytest"},
		}
	default:
		return nil, fmt.Errorf("no profile for project kind %q", kind)
	}

	// A missing lockfile means nothing stable to key the cache on
	if profile.Lockfile != "" {
		if _, err := os.Stat(filepath.Join(a.projectRoot, profile.Lockfile)); err != nil {
			profile.Lockfile = ""
		}
	}

	return profile, nil
}

// parseTomlName extracts the package name from a Cargo.toml [package] block
func parseTomlName(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	inPackage := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inPackage = line == "[package]"
			continue
		}
		if !inPackage {
			continue
		}
		if name, ok := strings.CutPrefix(line, "name"); ok {
			name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "="))
			return strings.Trim(name, `"`), nil
		}
	}
	return "", scanner.Err()
}

// parseGoModuleName extracts the module path from a go.mod file
func parseGoModuleName(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if module, ok := strings.CutPrefix(line, "module "); ok {
			return strings.TrimSpace(module), nil
		}
	}
	return "", scanner.Err()
}
