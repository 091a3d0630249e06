package domain

import (
	"time"

	"github.com/google/uuid"
)

// StageRecord — запись о выполнении одной стадии внутри run.
type StageRecord struct {
	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// Position — позиция стадии в order (с нуля).
	Position int `json:"position"`

	// Name — имя модуля (topoaa, contactmap, ...).
	Name string `json:"name"`

	// Method — вариант модуля.
	Method string `json:"method"`

	// Dir — рабочий каталог стадии.
	Dir string `json:"dir"`

	// Status — текущий статус стадии.
	Status StageStatus `json:"status"`

	// Artifacts — сколько моделей стадия передала дальше.
	Artifacts int `json:"artifacts"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`
}

// Duration возвращает продолжительность выполнения стадии.
func (s *StageRecord) Duration() time.Duration {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}

// MarkRunning переводит стадию в статус RUNNING.
func (s *StageRecord) MarkRunning() {
	now := time.Now()
	s.Status = StageStatusRunning
	s.StartedAt = &now
}

// MarkSucceeded переводит стадию в статус SUCCEEDED.
func (s *StageRecord) MarkSucceeded(artifacts int) {
	now := time.Now()
	s.Status = StageStatusSucceeded
	s.FinishedAt = &now
	s.Artifacts = artifacts
}

// MarkFailed переводит стадию в статус FAILED с ошибкой.
func (s *StageRecord) MarkFailed(err string) {
	now := time.Now()
	s.Status = StageStatusFailed
	s.FinishedAt = &now
	s.Error = err
}

// MarkSkipped помечает стадию, пропущенную при рестарте.
func (s *StageRecord) MarkSkipped() {
	s.Status = StageStatusSkipped
}
