package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shaiso/stagerun/internal/artifact"
	"github.com/shaiso/stagerun/internal/domain"
	"github.com/shaiso/stagerun/internal/scheduler"
)

// Info — описание варианта модуля.
type Info struct {
	Name     string
	Method   string
	Category string
}

// Key возвращает пару name:method.
func (i Info) Key() string {
	return i.Name + ":" + i.Method
}

// Setup — привязка экземпляра стадии к месту в пайплайне.
type Setup struct {
	// Position — позиция стадии в order.
	Position int

	// Dir — рабочий каталог стадии (создаётся стадией).
	Dir string

	// Params — итоговые параметры (глобальные < варианта < пользовательские).
	Params map[string]any

	// Logger — логгер стадии.
	Logger *slog.Logger

	// JobHook — наблюдатель за jobs планировщика (опционально).
	JobHook scheduler.Hook
}

// Module — контракт стадии пайплайна.
//
// Драйвер вызывает методы в порядке:
//
//	Init → ConfirmInstallation → Execute → Export
//
// Ошибка любого метода прерывает run на этой стадии.
type Module interface {
	// Info возвращает имя, вариант и категорию.
	Info() Info

	// Init привязывает стадию к позиции, каталогу и параметрам.
	Init(setup Setup) error

	// ConfirmInstallation проверяет внешние зависимости.
	// Возвращает ошибку с ErrInstallation.
	ConfirmInstallation(ctx context.Context) error

	// Execute выполняет работу стадии над набором предыдущей стадии.
	Execute(ctx context.Context, prev artifact.Set) error

	// Export возвращает набор для следующей стадии.
	Export() (artifact.Set, error)
}

// Base — общая часть стадий.
//
// По умолчанию ConfirmInstallation ничего не проверяет,
// а Export возвращает входной набор без изменений.
type Base struct {
	info   Info
	setup  Setup
	input  artifact.Set
	output artifact.Set
}

// NewBase создаёт Base для варианта модуля.
func NewBase(name, method, category string) Base {
	return Base{info: Info{Name: name, Method: method, Category: category}}
}

// Info реализует Module.
func (b *Base) Info() Info { return b.info }

// Init реализует Module.
func (b *Base) Init(setup Setup) error {
	if setup.Logger == nil {
		setup.Logger = slog.Default()
	}
	if setup.Params == nil {
		setup.Params = make(map[string]any)
	}
	b.setup = setup
	return nil
}

// ConfirmInstallation реализует Module: внешних зависимостей нет.
func (b *Base) ConfirmInstallation(context.Context) error { return nil }

// Export реализует Module: выход стадии или, если его нет, вход без изменений.
func (b *Base) Export() (artifact.Set, error) {
	if b.output != nil {
		return b.output, nil
	}
	if b.input != nil {
		return b.input, nil
	}
	return nil, b.FinishWithError(errors.New("nothing to export"))
}

// Keep запоминает входной набор для сквозного Export.
func (b *Base) Keep(prev artifact.Set) { b.input = prev }

// SetOutput задаёт набор для Export.
func (b *Base) SetOutput(s artifact.Set) { b.output = s }

// Position возвращает позицию стадии.
func (b *Base) Position() int { return b.setup.Position }

// Dir возвращает рабочий каталог стадии.
func (b *Base) Dir() string { return b.setup.Dir }

// Params возвращает параметры стадии.
func (b *Base) Params() map[string]any { return b.setup.Params }

// Logger возвращает логгер стадии.
func (b *Base) Logger() *slog.Logger { return b.setup.Logger }

// FinishWithError — единственный канал, которым стадия сообщает о неустранимой ошибке.
func (b *Base) FinishWithError(err error) error {
	return &StageError{
		Position: b.setup.Position,
		Stage:    b.info.Key(),
		Kind:     ErrStageExecution,
		Err:      err,
	}
}

// InstallationError оборачивает ошибку проверки зависимостей.
func (b *Base) InstallationError(err error) error {
	return &StageError{
		Position: b.setup.Position,
		Stage:    b.info.Key(),
		Kind:     ErrInstallation,
		Err:      err,
	}
}

// Collection материализует входной набор или возвращает ошибку стадии.
func (b *Base) Collection(prev artifact.Set) ([]artifact.Model, error) {
	models, err := artifact.Materialize(prev)
	if errors.Is(err, artifact.ErrLazySet) {
		return nil, b.FinishWithError(fmt.Errorf("%w: %v", ErrLazyInput, err))
	}
	if err != nil {
		return nil, b.FinishWithError(err)
	}
	return models, nil
}

// NewScheduler создаёт планировщик на ncores слотов для fan-out внутри стадии.
func (b *Base) NewScheduler(ncores int) *scheduler.Scheduler {
	return scheduler.New(scheduler.Config{
		NCores: ncores,
		Logger: b.setup.Logger,
		Hook:   b.setup.JobHook,
	})
}

// MakeDir создаёт рабочий каталог стадии.
func (b *Base) MakeDir() error {
	if b.setup.Dir == "" {
		return b.FinishWithError(errors.New("stage directory is not set"))
	}
	if err := os.MkdirAll(b.setup.Dir, 0o755); err != nil {
		return b.FinishWithError(fmt.Errorf("create stage directory: %w", err))
	}
	return nil
}

// RunJobs выполняет батч jobs на ncores слотах стадии.
func (b *Base) RunJobs(ctx context.Context, jobs []*domain.Job) *scheduler.Result {
	result := b.NewScheduler(b.NCores()).Run(ctx, jobs)
	b.setup.Logger.Info("jobs finished",
		"total", result.Total(),
		"completed", result.Completed,
		"failed", result.Failed,
	)
	return result
}

// NewJob создаёт job, помеченный именем стадии.
func (b *Base) NewJob(name string, fn domain.JobFunc) *domain.Job {
	job := domain.NewJob(name, fn)
	job.Stage = b.info.Name
	return job
}
