package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — один запуск рецепта.
//
// Run создаётся командой `stagerun run` после успешной подготовки
// каталога проекта и проходит по стадиям строго последовательно.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Recipe — абсолютный путь к файлу рецепта.
	Recipe string `json:"recipe"`

	// ProjectDir — абсолютный путь к каталогу проекта.
	ProjectDir string `json:"project_dir"`

	// RestartFrom — индекс стадии, с которой начато выполнение (0 — с начала).
	RestartFrom int `json:"restart_from"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// FailedStage — позиция стадии, на которой run прерван.
	// Nil, если run не падал.
	FailedStage *int `json:"failed_stage,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(recipe, projectDir string, restartFrom int) *Run {
	return &Run{
		ID:          uuid.New(),
		Recipe:      recipe,
		ProjectDir:  projectDir,
		RestartFrom: restartFrom,
		Status:      RunStatusPending,
		CreatedAt:   time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED на стадии position.
func (r *Run) MarkFailed(position int, err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.FailedStage = &position
	r.Error = err
}
