package clicmd

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func mustParsePreCommitConfig(t *testing.T, doc string) preCommitConfig {
	t.Helper()
	var src preCommitConfig
	if err := yaml.Unmarshal([]byte(doc), &src); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return src
}

func TestMigratePreCommitTranslatesHooksToSteps(t *testing.T) {
	src := mustParsePreCommitConfig(t, `
repos:
  - repo: https://github.com/psf/black
    hooks:
      - id: black
        entry: black
        types: [python]
        exclude: migrations/
        args: ["--check"]
`)

	doc := migratePreCommit(src)

	step, ok := doc.Steps["black"]
	if !ok {
		t.Fatalf("expected a \"black\" step, got %v", doc.Steps)
	}
	if step.Check != "black --check" {
		t.Fatalf("Check = %q, want %q", step.Check, "black --check")
	}
	if step.Fix != "black --check" {
		t.Fatalf("Fix = %q, want %q", step.Fix, "black --check")
	}
	if len(step.Types) != 1 || step.Types[0] != "python" {
		t.Fatalf("Types = %v", step.Types)
	}
	if len(step.Exclude) != 1 || step.Exclude[0] != "migrations/" {
		t.Fatalf("Exclude = %v", step.Exclude)
	}
}

func TestMigratePreCommitFallsBackToNameWhenIDMissing(t *testing.T) {
	src := mustParsePreCommitConfig(t, `
repos:
  - repo: local
    hooks:
      - name: custom-lint
        entry: lint.sh
`)

	doc := migratePreCommit(src)
	if _, ok := doc.Steps["custom-lint"]; !ok {
		t.Fatalf("expected step keyed by name when id is empty, got %v", doc.Steps)
	}
}

func TestMigratePreCommitHandlesMultipleReposAndHooks(t *testing.T) {
	src := mustParsePreCommitConfig(t, `
repos:
  - repo: https://github.com/psf/black
    hooks:
      - id: black
        entry: black
  - repo: https://github.com/pycqa/flake8
    hooks:
      - id: flake8
        entry: flake8
      - id: flake8-docstrings
        entry: flake8 --select=D
`)

	doc := migratePreCommit(src)
	if len(doc.Steps) != 3 {
		t.Fatalf("got %d steps, want 3: %v", len(doc.Steps), doc.Steps)
	}
}
