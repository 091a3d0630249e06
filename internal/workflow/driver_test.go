package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shaiso/stagerun/internal/artifact"
	"github.com/shaiso/stagerun/internal/domain"
	"github.com/shaiso/stagerun/internal/modules"
	"github.com/shaiso/stagerun/internal/pdb"
	"github.com/shaiso/stagerun/internal/prepare"
	"github.com/shaiso/stagerun/internal/recipe"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// behaviour — поведение тестовой стадии.
type behaviour struct {
	fail        bool
	installFail bool
	panic       bool
	lazy        bool
}

// harness регистрирует тестовые стадии и считает вызовы Init и входы.
type harness struct {
	mu      sync.Mutex
	created map[string]int
	inputs  map[string][]string
}

func newHarness() *harness {
	return &harness{created: make(map[string]int), inputs: make(map[string][]string)}
}

func (h *harness) register(reg *modules.Registry, name string, b behaviour) {
	reg.MustRegister(func() modules.Module {
		return &fakeStage{Base: modules.NewBase(name, "default", "test"), h: h, b: b}
	}, nil)
}

func (h *harness) createdCount(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.created[name]
}

func (h *harness) input(name string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inputs[name]
}

type fakeStage struct {
	modules.Base
	h *harness
	b behaviour
}

func (s *fakeStage) Init(setup modules.Setup) error {
	s.h.mu.Lock()
	s.h.created[s.Info().Name]++
	s.h.mu.Unlock()
	return s.Base.Init(setup)
}

func (s *fakeStage) ConfirmInstallation(context.Context) error {
	if s.b.installFail {
		return s.InstallationError(errors.New("tool not found"))
	}
	return nil
}

func (s *fakeStage) Execute(_ context.Context, prev artifact.Set) error {
	if s.b.panic {
		panic("unexpected state")
	}
	if s.b.fail {
		return s.FinishWithError(errors.New("boom"))
	}

	models, err := artifact.Drain(prev)
	if err != nil {
		return s.FinishWithError(err)
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.FileName)
	}
	s.h.mu.Lock()
	s.h.inputs[s.Info().Name] = names
	s.h.mu.Unlock()

	out := append(models, artifact.Model{FileName: s.Info().Name + ".pdb"})
	if s.b.lazy {
		s.SetOutput(artifact.StreamOf(out))
	} else {
		s.SetOutput(artifact.Collection(out))
	}
	return nil
}

// stagedFor собирает Staged для рецепта из стадий names без записи begin/.
func stagedFor(t *testing.T, reg *modules.Registry, names ...string) *prepare.Staged {
	t.Helper()

	var b strings.Builder
	fmt.Fprintf(&b, "[input]\norder = [")
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", name)
	}
	fmt.Fprintf(&b, "]\nproject_dir = %q\n\n[input.molecules]\nm1 = \"m1.pdb\"\n", t.TempDir())
	for _, name := range names {
		fmt.Fprintf(&b, "\n[stage.%s]\n", name)
	}

	raw, err := recipe.Parse([]byte(b.String()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	wf, err := recipe.Validate(raw, reg)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return &prepare.Staged{Workflow: wf}
}

func stageDir(staged *prepare.Staged, position int) string {
	ref := staged.Workflow.Stages()[position]
	return filepath.Join(staged.Workflow.ProjectDir(), ref.DirName())
}

func TestDriver_FullRun(t *testing.T) {
	reg := modules.NewRegistry()
	h := newHarness()
	h.register(reg, "a", behaviour{})
	h.register(reg, "b", behaviour{lazy: true})
	h.register(reg, "c", behaviour{})

	staged := stagedFor(t, reg, "a", "b", "c")
	d := New(Config{Registry: reg, Logger: discardLogger()})

	if d.State() != NotStarted() {
		t.Errorf("expected NotStarted, got %s", d.State())
	}

	run := d.Run(context.Background(), domain.NewRun("recipe.toml", staged.Workflow.ProjectDir(), 0), staged)

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s (%s)", run.Status, run.Error)
	}
	if d.State() != Completed() {
		t.Errorf("expected Completed, got %s", d.State())
	}

	// вход первой стадии — begin-модели
	if got := h.input("a"); len(got) != 1 || got[0] != "m1.pdb" {
		t.Errorf("unexpected input of stage a: %v", got)
	}
	// каждая следующая стадия видит выход предыдущей
	if got := h.input("c"); strings.Join(got, ",") != "m1.pdb,a.pdb,b.pdb" {
		t.Errorf("unexpected input of stage c: %v", got)
	}

	// io.json каждой стадии сохраняет форму набора
	set, err := artifact.Load(stageDir(staged, 1))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Kind() != artifact.KindStream {
		t.Errorf("expected stream in 01_b/io.json, got %s", set.Kind())
	}

	stages := d.Stages()
	if len(stages) != 3 {
		t.Fatalf("expected 3 stage records, got %d", len(stages))
	}
	if stages[2].Status != domain.StageStatusSucceeded || stages[2].Artifacts != 4 {
		t.Errorf("unexpected last stage record %+v", stages[2])
	}
}

func TestDriver_Restart(t *testing.T) {
	reg := modules.NewRegistry()
	h := newHarness()
	names := []string{"s0", "s1", "s2", "s3", "s4"}
	for _, name := range names {
		h.register(reg, name, behaviour{})
	}

	staged := stagedFor(t, reg, names...)

	// результат стадии 1 от прошлого запуска
	prev := stageDir(staged, 1)
	if err := os.MkdirAll(prev, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := artifact.Save(prev, artifact.Collection{{FileName: "from_disk.pdb"}}); err != nil {
		t.Fatal(err)
	}

	d := New(Config{Registry: reg, Logger: discardLogger()})
	run := d.Run(context.Background(), domain.NewRun("recipe.toml", staged.Workflow.ProjectDir(), 2), staged)

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s (%s)", run.Status, run.Error)
	}

	// стадии 0 и 1 не создавались
	for _, name := range []string{"s0", "s1"} {
		if n := h.createdCount(name); n != 0 {
			t.Errorf("stage %s should not be instantiated, created %d times", name, n)
		}
	}
	for _, name := range []string{"s2", "s3", "s4"} {
		if n := h.createdCount(name); n != 1 {
			t.Errorf("stage %s should be instantiated once, created %d times", name, n)
		}
	}

	// стадия 2 получила то, что лежало на диске
	if got := h.input("s2"); len(got) != 1 || got[0] != "from_disk.pdb" {
		t.Errorf("unexpected input of stage 2: %v", got)
	}

	stages := d.Stages()
	if len(stages) != 5 || stages[0].Status != domain.StageStatusSkipped || stages[1].Status != domain.StageStatusSkipped {
		t.Errorf("expected stages 0 and 1 skipped, got %+v", stages)
	}
}

func TestDriver_RestartMissingInput(t *testing.T) {
	reg := modules.NewRegistry()
	h := newHarness()
	for _, name := range []string{"s0", "s1", "s2"} {
		h.register(reg, name, behaviour{})
	}
	staged := stagedFor(t, reg, "s0", "s1", "s2")

	d := New(Config{Registry: reg, Logger: discardLogger()})
	run := d.Run(context.Background(), domain.NewRun("recipe.toml", staged.Workflow.ProjectDir(), 2), staged)

	if run.Status != domain.RunStatusFailed || !strings.Contains(run.Error, ErrMissingRestartInput.Error()) {
		t.Errorf("expected missing restart input failure, got %s (%s)", run.Status, run.Error)
	}
	if d.State() != AbortedOnError(2) {
		t.Errorf("expected AbortedOnError(2), got %s", d.State())
	}
	if h.createdCount("s2") != 0 {
		t.Error("stage 2 should not be instantiated without input")
	}
}

func TestDriver_RestartOutOfRange(t *testing.T) {
	reg := modules.NewRegistry()
	h := newHarness()
	h.register(reg, "a", behaviour{})
	staged := stagedFor(t, reg, "a")

	d := New(Config{Registry: reg, Logger: discardLogger()})
	run := d.Run(context.Background(), domain.NewRun("recipe.toml", staged.Workflow.ProjectDir(), 3), staged)

	if run.Status != domain.RunStatusFailed || !strings.Contains(run.Error, ErrRestartOutOfRange.Error()) {
		t.Errorf("expected out of range failure, got %s (%s)", run.Status, run.Error)
	}
	if h.createdCount("a") != 0 {
		t.Error("no stage should be instantiated")
	}
}

func TestDriver_AbortOnStageError(t *testing.T) {
	tests := []struct {
		name string
		b    behaviour
		want string
	}{
		{"execution error", behaviour{fail: true}, "boom"},
		{"installation error", behaviour{installFail: true}, "installation error"},
		{"panic", behaviour{panic: true}, ErrStagePanicked.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := modules.NewRegistry()
			h := newHarness()
			h.register(reg, "ok", behaviour{})
			h.register(reg, "bad", tt.b)
			h.register(reg, "never", behaviour{})

			staged := stagedFor(t, reg, "ok", "bad", "never")
			d := New(Config{Registry: reg, Logger: discardLogger()})
			run := d.Run(context.Background(), domain.NewRun("recipe.toml", staged.Workflow.ProjectDir(), 0), staged)

			if run.Status != domain.RunStatusFailed {
				t.Fatalf("expected FAILED, got %s", run.Status)
			}
			if run.FailedStage == nil || *run.FailedStage != 1 {
				t.Errorf("expected failed stage 1, got %v", run.FailedStage)
			}
			if !strings.Contains(run.Error, tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, run.Error)
			}
			if d.State() != AbortedOnError(1) {
				t.Errorf("expected AbortedOnError(1), got %s", d.State())
			}
			if h.createdCount("never") != 0 {
				t.Error("stages after the failed one must not be instantiated")
			}

			// результат завершённой стадии остаётся на диске
			if _, err := os.Stat(artifact.IOPath(stageDir(staged, 0))); err != nil {
				t.Errorf("output of stage 0 should stay on disk: %v", err)
			}
		})
	}
}

// recordingObserver запоминает события.
type recordingObserver struct {
	events []string
	err    error
}

func (o *recordingObserver) RunStarted(_ context.Context, run *domain.Run) error {
	o.events = append(o.events, "run:"+string(run.Status))
	return o.err
}

func (o *recordingObserver) StageStarted(_ context.Context, _ *domain.Run, s *domain.StageRecord) error {
	o.events = append(o.events, fmt.Sprintf("start:%d", s.Position))
	return o.err
}

func (o *recordingObserver) StageFinished(_ context.Context, _ *domain.Run, s *domain.StageRecord) error {
	o.events = append(o.events, fmt.Sprintf("finish:%d:%s", s.Position, s.Status))
	return o.err
}

func (o *recordingObserver) RunFinished(_ context.Context, run *domain.Run) error {
	o.events = append(o.events, "end:"+string(run.Status))
	return o.err
}

func TestDriver_Observers(t *testing.T) {
	reg := modules.NewRegistry()
	h := newHarness()
	h.register(reg, "a", behaviour{})
	h.register(reg, "b", behaviour{fail: true})

	staged := stagedFor(t, reg, "a", "b")

	failing := &recordingObserver{err: errors.New("broker down")}
	rec := &recordingObserver{}
	d := New(Config{Registry: reg, Observers: []Observer{failing, rec}, Logger: discardLogger()})

	d.Run(context.Background(), domain.NewRun("recipe.toml", staged.Workflow.ProjectDir(), 0), staged)

	want := []string{
		"run:RUNNING",
		"start:0", "finish:0:SUCCEEDED",
		"start:1", "finish:1:FAILED",
		"end:FAILED",
	}
	if strings.Join(rec.events, " ") != strings.Join(want, " ") {
		t.Errorf("expected events %v, got %v", want, rec.events)
	}
	// ошибка observer не прерывает run и не мешает следующим observer
	if len(failing.events) != len(want) {
		t.Errorf("failing observer should still see every event, got %v", failing.events)
	}
}

func TestDriver_Interrupted(t *testing.T) {
	reg := modules.NewRegistry()
	h := newHarness()
	h.register(reg, "a", behaviour{})
	staged := stagedFor(t, reg, "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(Config{Registry: reg, Logger: discardLogger()})
	run := d.Run(ctx, domain.NewRun("recipe.toml", staged.Workflow.ProjectDir(), 0), staged)

	if run.Status != domain.RunStatusFailed || !strings.Contains(run.Error, ErrInterrupted.Error()) {
		t.Errorf("expected interrupted run, got %s (%s)", run.Status, run.Error)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		NotStarted():      "NotStarted",
		RunningStage(3):   "RunningStage(3)",
		Completed():       "Completed",
		AbortedOnError(1): "AbortedOnError(1)",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("expected %s, got %s", want, s.String())
		}
	}
	if !Completed().IsTerminal() || RunningStage(0).IsTerminal() {
		t.Error("unexpected IsTerminal")
	}
}

// writeComplex пишет двухцепочечную модель с тремя контактами.
func writeComplex(t *testing.T, path string) {
	t.Helper()

	var atoms []pdb.Atom
	for i := 0; i < 3; i++ {
		atoms = append(atoms,
			pdb.Atom{Serial: i + 1, Name: "CA", ResName: "ALA", Chain: "A", ResSeq: i + 1, X: float64(i) * 10, Element: "C"},
			pdb.Atom{Serial: i + 4, Name: "CA", ResName: "GLY", Chain: "B", ResSeq: i + 1, X: float64(i) * 10, Y: 3, Element: "C"},
		)
	}
	// цепи идут подряд
	var ordered []pdb.Atom
	for _, chain := range []string{"A", "B"} {
		for _, a := range atoms {
			if a.Chain == chain {
				ordered = append(ordered, a)
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := pdb.Write(f, &pdb.Structure{Atoms: ordered}); err != nil {
		t.Fatal(err)
	}
}

func writeRecipe(t *testing.T, dir, order, extra string) string {
	t.Helper()

	writeComplex(t, filepath.Join(dir, "c1.pdb"))
	writeComplex(t, filepath.Join(dir, "c2.pdb"))

	src := fmt.Sprintf(`[input]
order = [%s]
project_dir = "run1"

[input.molecules]
c1 = "c1.pdb"
c2 = "c2.pdb"
%s`, order, extra)

	path := filepath.Join(dir, "recipe.toml")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDriver_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, `"topoaa", "emscoring", "seletop", "clustfcc", "contactmap"`, `
[stage.topoaa]

[stage.emscoring]
ncores = 2

[stage.seletop]
select = 2

[stage.clustfcc]
min_population = 2

[stage.contactmap]
topX = 3
ncores = 4
`)

	reg := modules.DefaultRegistry()
	staged, err := prepare.SetupRun(path, reg, prepare.Options{WorkDir: dir, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("SetupRun: %v", err)
	}

	d := New(Config{Registry: reg, Logger: discardLogger()})
	run := d.Run(context.Background(), domain.NewRun(path, staged.Workflow.ProjectDir(), 0), staged)

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s (%s)", run.Status, run.Error)
	}

	report, err := os.ReadFile(filepath.Join(dir, "run1", "04_contactmap", modules.ContactMapReport))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(report), "cluster1_contmap\tCluster_1\t2\t") {
		t.Errorf("unexpected report:\n%s", report)
	}

	for i, name := range []string{"00_topoaa", "01_emscoring", "02_seletop", "03_clustfcc", "04_contactmap"} {
		if _, err := os.Stat(filepath.Join(dir, "run1", name, artifact.IOFile)); err != nil {
			t.Errorf("stage %d: io.json missing: %v", i, err)
		}
	}
}

func TestDriver_StreamIntoCollectionStage(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, `"topoaa", "emscoring", "contactmap"`, `
[stage.topoaa]

[stage.emscoring]

[stage.contactmap]
`)

	reg := modules.DefaultRegistry()
	staged, err := prepare.SetupRun(path, reg, prepare.Options{WorkDir: dir, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("SetupRun: %v", err)
	}

	d := New(Config{Registry: reg, Logger: discardLogger()})
	run := d.Run(context.Background(), domain.NewRun(path, staged.Workflow.ProjectDir(), 0), staged)

	if run.Status != domain.RunStatusFailed || run.FailedStage == nil || *run.FailedStage != 2 {
		t.Fatalf("expected failure at stage 2, got %s (%v)", run.Status, run.FailedStage)
	}
	if !strings.Contains(run.Error, modules.ErrLazyInput.Error()) {
		t.Errorf("expected lazy input error, got %q", run.Error)
	}
}
