package repo

import (
	"context"

	"github.com/shaiso/stagerun/internal/domain"
)

// RunStore — запись runs. Реализуется RunRepo.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
}

// StageStore — запись стадий. Реализуется StageRepo.
type StageStore interface {
	Upsert(ctx context.Context, s *domain.StageRecord) error
}

// Recorder сохраняет историю run в БД по событиям драйвера.
type Recorder struct {
	runs   RunStore
	stages StageStore
}

// NewRecorder создаёт Recorder.
func NewRecorder(runs RunStore, stages StageStore) *Recorder {
	return &Recorder{runs: runs, stages: stages}
}

// RunStarted вставляет run.
func (r *Recorder) RunStarted(ctx context.Context, run *domain.Run) error {
	return r.runs.Create(ctx, run)
}

// StageStarted сохраняет стадию в статусе RUNNING.
func (r *Recorder) StageStarted(ctx context.Context, _ *domain.Run, s *domain.StageRecord) error {
	return r.stages.Upsert(ctx, s)
}

// StageFinished сохраняет финальный статус стадии.
func (r *Recorder) StageFinished(ctx context.Context, _ *domain.Run, s *domain.StageRecord) error {
	return r.stages.Upsert(ctx, s)
}

// RunFinished обновляет финальный статус run.
func (r *Recorder) RunFinished(ctx context.Context, run *domain.Run) error {
	return r.runs.Update(ctx, run)
}
