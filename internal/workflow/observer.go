package workflow

import (
	"context"
	"errors"

	"github.com/shaiso/stagerun/internal/domain"
)

// Observer получает события жизненного цикла run.
//
// Ошибка observer логируется драйвером и не прерывает run.
type Observer interface {
	RunStarted(ctx context.Context, run *domain.Run) error
	StageStarted(ctx context.Context, run *domain.Run, stage *domain.StageRecord) error
	StageFinished(ctx context.Context, run *domain.Run, stage *domain.StageRecord) error
	RunFinished(ctx context.Context, run *domain.Run) error
}

// Observers рассылает события нескольким observer по порядку.
// Ошибки объединяются; следующий observer вызывается даже после ошибки.
type Observers []Observer

// RunStarted реализует Observer.
func (o Observers) RunStarted(ctx context.Context, run *domain.Run) error {
	return o.each(func(obs Observer) error { return obs.RunStarted(ctx, run) })
}

// StageStarted реализует Observer.
func (o Observers) StageStarted(ctx context.Context, run *domain.Run, stage *domain.StageRecord) error {
	return o.each(func(obs Observer) error { return obs.StageStarted(ctx, run, stage) })
}

// StageFinished реализует Observer.
func (o Observers) StageFinished(ctx context.Context, run *domain.Run, stage *domain.StageRecord) error {
	return o.each(func(obs Observer) error { return obs.StageFinished(ctx, run, stage) })
}

// RunFinished реализует Observer.
func (o Observers) RunFinished(ctx context.Context, run *domain.Run) error {
	return o.each(func(obs Observer) error { return obs.RunFinished(ctx, run) })
}

func (o Observers) each(fn func(Observer) error) error {
	var errs []error
	for _, obs := range o {
		if obs == nil {
			continue
		}
		if err := fn(obs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
