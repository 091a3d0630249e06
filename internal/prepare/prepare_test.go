package prepare

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaiso/stagerun/internal/recipe"
)

type allowAll struct{}

func (allowAll) Has(string, string) bool { return true }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

// writeRecipe пишет рецепт с order = [A, B] и одной молекулой.
func writeRecipe(t *testing.T, dir, projectDir, molecule string) string {
	t.Helper()
	path := filepath.Join(dir, "recipe.toml")
	writeFile(t, path, `
[input]
order = ["A", "B"]
project_dir = "`+projectDir+`"

[input.molecules]
m1 = "`+molecule+`"

[stage.A]
[stage.B]
`)
	return path
}

func TestSetupRun_Scenario(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "in", "m1.pdb")
	writeFile(t, src, "ATOM      1  N   ALA A   1       0.000   0.000   0.000\n")

	projectDir := filepath.Join(tmp, "run1")
	recipePath := writeRecipe(t, tmp, projectDir, src)

	staged, err := SetupRun(recipePath, allowAll{}, Options{Logger: quiet})
	if err != nil {
		t.Fatalf("SetupRun: %v", err)
	}

	original := readFile(t, src)
	dataCopy := readFile(t, filepath.Join(projectDir, "data", "m1.pdb"))
	beginCopy := readFile(t, filepath.Join(projectDir, "begin", "m1.pdb"))

	if !bytes.Equal(original, dataCopy) {
		t.Error("data copy differs from original")
	}
	if !bytes.Equal(original, beginCopy) {
		t.Error("begin copy differs from original")
	}

	want := filepath.Join(projectDir, "begin", "m1.pdb")
	if got := staged.Workflow.Molecules()["m1"]; got != want {
		t.Errorf("molecule m1 should point at %s, got %s", want, got)
	}
	if staged.Sources["m1"] != src {
		t.Errorf("sources should keep the original path, got %s", staged.Sources["m1"])
	}

	models := staged.BeginModels()
	if len(models) != 1 || models[0].Molecule != "m1" || models[0].Path != want {
		t.Errorf("unexpected begin models: %+v", models)
	}
}

func TestSetupRun_MissingOrderTouchesNothing(t *testing.T) {
	tmp := t.TempDir()
	projectDir := filepath.Join(tmp, "run1")
	recipePath := filepath.Join(tmp, "recipe.toml")
	writeFile(t, recipePath, `
[input]
project_dir = "`+projectDir+`"
`)

	_, err := SetupRun(recipePath, allowAll{}, Options{Logger: quiet})
	if !errors.Is(err, recipe.ErrMissingOrder) {
		t.Fatalf("expected ErrMissingOrder, got %v", err)
	}
	if _, err := os.Stat(projectDir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("project_dir must not be created on invalid configuration, stat err: %v", err)
	}
}

func TestSetupRun_ReplacesPreviousRun(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "m1.pdb")
	writeFile(t, src, "first\n")

	projectDir := filepath.Join(tmp, "run1")
	recipePath := writeRecipe(t, tmp, projectDir, src)

	if _, err := SetupRun(recipePath, allowAll{}, Options{Logger: quiet}); err != nil {
		t.Fatalf("first SetupRun: %v", err)
	}

	// Следы прошлого запуска
	stale := filepath.Join(projectDir, "00_A", "io.json")
	writeFile(t, stale, "{}")
	writeFile(t, src, "second\n")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	if _, err := SetupRun(recipePath, allowAll{}, Options{Logger: logger}); err != nil {
		t.Fatalf("second SetupRun: %v", err)
	}

	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Error("stale stage output should be removed")
	}
	if got := string(readFile(t, filepath.Join(projectDir, "begin", "m1.pdb"))); got != "second\n" {
		t.Errorf("begin copy should come from the new source, got %q", got)
	}
	if !strings.Contains(logs.String(), "REMOVED") {
		t.Errorf("removal should be logged, got %q", logs.String())
	}

	entries, err := os.ReadDir(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected only data/ and begin/, got %d entries", len(entries))
	}
}

func TestSetupRun_ForeignDirectory(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "m1.pdb")
	writeFile(t, src, "x\n")

	projectDir := filepath.Join(tmp, "important")
	precious := filepath.Join(projectDir, "thesis.tex")
	writeFile(t, precious, "do not delete")

	recipePath := writeRecipe(t, tmp, projectDir, src)

	_, err := SetupRun(recipePath, allowAll{}, Options{Logger: quiet})
	if !errors.Is(err, ErrForeignProjectDir) || !errors.Is(err, recipe.ErrConfiguration) {
		t.Fatalf("expected foreign project dir configuration error, got %v", err)
	}
	if _, err := os.Stat(precious); err != nil {
		t.Errorf("foreign directory must be left intact: %v", err)
	}

	// С Force каталог удаляется
	if _, err := SetupRun(recipePath, allowAll{}, Options{Logger: quiet, Force: true}); err != nil {
		t.Fatalf("forced SetupRun: %v", err)
	}
	if _, err := os.Stat(precious); !errors.Is(err, os.ErrNotExist) {
		t.Error("forced run should remove the directory")
	}
}

func TestSetupRun_MissingMolecule(t *testing.T) {
	tmp := t.TempDir()
	projectDir := filepath.Join(tmp, "run1")
	recipePath := writeRecipe(t, tmp, projectDir, filepath.Join(tmp, "nope.pdb"))

	_, err := SetupRun(recipePath, allowAll{}, Options{Logger: quiet})
	if !errors.Is(err, ErrMissingMolecule) {
		t.Fatalf("expected ErrMissingMolecule, got %v", err)
	}
	if _, err := os.Stat(projectDir); !errors.Is(err, os.ErrNotExist) {
		t.Error("project_dir must not be created when inputs are missing")
	}
}

func TestSetupRun_Restart(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "m1.pdb")
	writeFile(t, src, "x\n")

	projectDir := filepath.Join(tmp, "run1")
	recipePath := writeRecipe(t, tmp, projectDir, src)

	// Рестарт без прошлого запуска невозможен
	if _, err := SetupRun(recipePath, allowAll{}, Options{Logger: quiet, Restart: 1}); !errors.Is(err, ErrNotRestartable) {
		t.Fatalf("expected ErrNotRestartable, got %v", err)
	}

	if _, err := SetupRun(recipePath, allowAll{}, Options{Logger: quiet}); err != nil {
		t.Fatalf("SetupRun: %v", err)
	}
	kept := filepath.Join(projectDir, "00_A", "io.json")
	writeFile(t, kept, "{}")

	staged, err := SetupRun(recipePath, allowAll{}, Options{Logger: quiet, Restart: 1})
	if err != nil {
		t.Fatalf("restart SetupRun: %v", err)
	}
	if !staged.Reused {
		t.Error("restart should reuse the project directory")
	}
	if _, err := os.Stat(kept); err != nil {
		t.Errorf("restart must keep previous stage outputs: %v", err)
	}
}

func TestResolvePaths_Pure(t *testing.T) {
	raw := map[string]any{
		"input": map[string]any{
			"order":       []any{"A"},
			"project_dir": "run1",
			"molecules":   map[string]any{"m1": "in/m1.pdb", "m2": "/abs/m2.pdb"},
		},
		"stage": map[string]any{"A": map[string]any{}},
	}
	wf, err := recipe.Validate(raw, allowAll{})
	if err != nil {
		t.Fatal(err)
	}

	base := filepath.Join(t.TempDir(), "work")
	resolved := ResolvePaths(wf, base)
	again := ResolvePaths(resolved, "/elsewhere")

	if resolved.ProjectDir() != filepath.Join(base, "run1") {
		t.Errorf("unexpected project dir %s", resolved.ProjectDir())
	}
	if resolved.Molecules()["m1"] != filepath.Join(base, "in", "m1.pdb") {
		t.Errorf("unexpected m1 path %s", resolved.Molecules()["m1"])
	}
	if resolved.Molecules()["m2"] != "/abs/m2.pdb" {
		t.Errorf("absolute path should stay, got %s", resolved.Molecules()["m2"])
	}
	if again.ProjectDir() != resolved.ProjectDir() {
		t.Error("resolving absolute paths again must be a no-op")
	}
	if wf.ProjectDir() != "run1" {
		t.Error("input workflow was modified")
	}
	if _, err := os.Stat(base); !errors.Is(err, os.ErrNotExist) {
		t.Error("ResolvePaths must not touch the filesystem")
	}
}
