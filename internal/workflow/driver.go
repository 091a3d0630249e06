package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/shaiso/stagerun/internal/artifact"
	"github.com/shaiso/stagerun/internal/domain"
	"github.com/shaiso/stagerun/internal/modules"
	"github.com/shaiso/stagerun/internal/prepare"
	"github.com/shaiso/stagerun/internal/recipe"
	"github.com/shaiso/stagerun/internal/scheduler"
	"github.com/shaiso/stagerun/internal/telemetry"
)

// Driver выполняет стадии рецепта строго по порядку.
//
// Для каждой стадии начиная с индекса рестарта Driver:
//   - создаёт экземпляр модуля из реестра
//   - собирает параметры (глобальные < варианта < рецепт)
//   - вызывает Init, ConfirmInstallation, Execute, Export
//   - сохраняет экспортированный набор в io.json каталога стадии
//   - передаёт набор следующей стадии
//
// Ошибка стадии переводит Driver в AbortedOnError(i); следующие стадии
// не запускаются, результаты завершённых остаются на диске.
// Driver — одноразовый: один Driver на один run.
type Driver struct {
	registry  *modules.Registry
	observers Observers
	jobHook   scheduler.Hook
	logger    *slog.Logger

	mu     sync.RWMutex
	state  State
	stages []*domain.StageRecord
}

// Config — конфигурация Driver.
type Config struct {
	// Registry — реестр модулей (обязателен).
	Registry *modules.Registry

	// Observers — получатели событий run (метрики, история, события).
	Observers []Observer

	// JobHook — наблюдатель за jobs внутри стадий.
	JobHook scheduler.Hook

	// Logger — логгер (по умолчанию slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Driver.
func New(cfg Config) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{
		registry:  cfg.Registry,
		observers: Observers(cfg.Observers),
		jobHook:   cfg.JobHook,
		logger:    logger,
		state:     NotStarted(),
	}
}

// State возвращает текущее состояние.
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Stages возвращает копии записей о выполненных стадиях.
func (d *Driver) Stages() []domain.StageRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.StageRecord, len(d.stages))
	for i, s := range d.stages {
		out[i] = *s
	}
	return out
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Run выполняет стадии staged начиная с run.RestartFrom.
//
// Ошибки стадий не возвращаются: они логируются, фиксируются в run
// (FAILED, FailedStage) и в состоянии AbortedOnError. Возвращает run
// в финальном статусе.
func (d *Driver) Run(ctx context.Context, run *domain.Run, staged *prepare.Staged) *domain.Run {
	wf := staged.Workflow
	stages := wf.Stages()
	restart := run.RestartFrom

	logger := telemetry.WithRunID(d.logger, run.ID.String())

	run.MarkRunning()
	d.notify(ctx, logger, "run started", func(ctx context.Context) error {
		return d.observers.RunStarted(ctx, run)
	})

	if restart < 0 || restart >= len(stages) {
		err := fmt.Errorf("%w: %d (stages: %d)", ErrRestartOutOfRange, restart, len(stages))
		return d.abort(ctx, logger, run, restart, err)
	}

	d.setState(RunningStage(restart))

	input, err := d.restartInput(staged, stages, restart)
	if err != nil {
		return d.abort(ctx, logger, run, restart, err)
	}

	if restart > 0 {
		logger.Info("restarting run", "from", restart)
		d.skip(ctx, logger, run, wf.ProjectDir(), stages[:restart])
	}

	for _, ref := range stages[restart:] {
		if err := ctx.Err(); err != nil {
			return d.abort(ctx, logger, run, ref.Position, fmt.Errorf("%w: %w", ErrInterrupted, err))
		}

		d.setState(RunningStage(ref.Position))

		rec := &domain.StageRecord{
			RunID:    run.ID,
			Position: ref.Position,
			Name:     ref.Name,
			Method:   ref.Method,
			Dir:      filepath.Join(wf.ProjectDir(), ref.DirName()),
			Status:   domain.StageStatusPending,
		}
		d.mu.Lock()
		d.stages = append(d.stages, rec)
		d.mu.Unlock()

		stageLogger := telemetry.WithStage(logger, ref.Position, ref.Key())
		stageLogger.Info("running stage", "dir", rec.Dir)

		rec.MarkRunning()
		d.notify(ctx, stageLogger, "stage started", func(ctx context.Context) error {
			return d.observers.StageStarted(ctx, run, rec)
		})

		out, count, err := d.runStage(ctx, stageLogger, ref, rec.Dir, input)
		if err != nil {
			rec.MarkFailed(err.Error())
			d.notify(ctx, stageLogger, "stage finished", func(ctx context.Context) error {
				return d.observers.StageFinished(ctx, run, rec)
			})
			return d.abort(ctx, logger, run, ref.Position, err)
		}

		rec.MarkSucceeded(count)
		d.notify(ctx, stageLogger, "stage finished", func(ctx context.Context) error {
			return d.observers.StageFinished(ctx, run, rec)
		})
		stageLogger.Info("stage completed",
			"artifacts", count,
			"kind", out.Kind(),
			"duration", rec.Duration(),
		)

		input = out
	}

	d.setState(Completed())
	run.MarkSucceeded()
	logger.Info("run completed", "stages", len(stages)-restart, "duration", run.Duration())

	d.notify(ctx, logger, "run finished", func(ctx context.Context) error {
		return d.observers.RunFinished(ctx, run)
	})
	return run
}

// skip записывает пропущенные при рестарте стадии. Модули не создаются.
func (d *Driver) skip(ctx context.Context, logger *slog.Logger, run *domain.Run, projectDir string, refs []recipe.StageRef) {
	for _, ref := range refs {
		rec := &domain.StageRecord{
			RunID:    run.ID,
			Position: ref.Position,
			Name:     ref.Name,
			Method:   ref.Method,
			Dir:      filepath.Join(projectDir, ref.DirName()),
		}
		rec.MarkSkipped()

		d.mu.Lock()
		d.stages = append(d.stages, rec)
		d.mu.Unlock()

		d.notify(ctx, logger, "stage skipped", func(ctx context.Context) error {
			return d.observers.StageFinished(ctx, run, rec)
		})
	}
}

// restartInput возвращает вход первой выполняемой стадии:
// начальные молекулы при restart == 0, иначе io.json стадии restart-1.
func (d *Driver) restartInput(staged *prepare.Staged, stages []recipe.StageRef, restart int) (artifact.Set, error) {
	if restart == 0 {
		return staged.BeginModels(), nil
	}

	prevDir := filepath.Join(staged.Workflow.ProjectDir(), stages[restart-1].DirName())
	set, err := artifact.Load(prevDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingRestartInput, err)
	}
	return set, nil
}

// runStage проводит одну стадию через её жизненный цикл и сохраняет результат.
func (d *Driver) runStage(ctx context.Context, logger *slog.Logger, ref recipe.StageRef, dir string, input artifact.Set) (out artifact.Set, count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &modules.StageError{
				Position: ref.Position,
				Stage:    ref.Key(),
				Kind:     modules.ErrStageExecution,
				Err:      fmt.Errorf("%w: %v", ErrStagePanicked, r),
			}
		}
	}()

	mod, err := d.registry.New(ref.Name, ref.Method)
	if err != nil {
		return nil, 0, err
	}

	params, err := d.registry.ResolveParams(ref.Name, ref.Method, ref.Params)
	if err != nil {
		return nil, 0, err
	}

	setup := modules.Setup{
		Position: ref.Position,
		Dir:      dir,
		Params:   params,
		Logger:   logger,
		JobHook:  d.jobHook,
	}
	if err := mod.Init(setup); err != nil {
		return nil, 0, err
	}

	if err := mod.ConfirmInstallation(ctx); err != nil {
		return nil, 0, err
	}

	if err := mod.Execute(ctx, input); err != nil {
		return nil, 0, err
	}

	exported, err := mod.Export()
	if err != nil {
		return nil, 0, err
	}

	return persist(dir, exported)
}

// persist сохраняет набор в io.json и возвращает набор той же формы,
// который можно читать повторно. Каталог стадии создаётся, если стадия
// его не создала.
func persist(dir string, set artifact.Set) (artifact.Set, int, error) {
	models, err := artifact.Drain(set)
	if err != nil {
		return nil, 0, err
	}

	var out artifact.Set = artifact.Collection(models)
	if set.Kind() == artifact.KindStream {
		out = artifact.StreamOf(models)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, 0, fmt.Errorf("create stage directory: %w", err)
	}
	if err := artifact.Save(dir, out); err != nil {
		return nil, 0, err
	}
	return out, len(models), nil
}

// abort переводит run в FAILED на стадии position.
func (d *Driver) abort(ctx context.Context, logger *slog.Logger, run *domain.Run, position int, err error) *domain.Run {
	d.setState(AbortedOnError(position))
	run.MarkFailed(position, err.Error())

	kind := "stage error"
	switch {
	case errors.Is(err, modules.ErrInstallation):
		kind = "installation error"
	case errors.Is(err, recipe.ErrConfiguration):
		kind = "configuration error"
	}
	logger.Error("run aborted",
		"position", position,
		"kind", kind,
		"error", err,
	)

	d.notify(ctx, logger, "run finished", func(ctx context.Context) error {
		return d.observers.RunFinished(ctx, run)
	})
	return run
}

// notify вызывает observers; ошибки только логируются.
// События отправляются и после отмены ctx, чтобы финальный статус дошёл до получателей.
func (d *Driver) notify(ctx context.Context, logger *slog.Logger, event string, fn func(context.Context) error) {
	if len(d.observers) == 0 {
		return
	}
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("observer failed", "event", event, "error", err)
	}
}
