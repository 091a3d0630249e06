package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/shaiso/stagerun/internal/domain"
)

// Hook получает уведомления о жизненном цикле job.
// Вызывается из горутин планировщика, реализация должна быть потокобезопасной.
type Hook interface {
	JobStarted(job *domain.Job)
	JobFinished(job *domain.Job)
}

// Scheduler — исполнитель батча независимых jobs с ограничением параллелизма.
//
// Scheduler не хранит состояния между вызовами Run.
type Scheduler struct {
	ncores int
	logger *slog.Logger
	hook   Hook
}

// Config — конфигурация Scheduler.
type Config struct {
	// NCores — максимум одновременно выполняемых jobs (default: 1).
	NCores int

	// Logger — логгер (по умолчанию slog.Default()).
	Logger *slog.Logger

	// Hook — опциональный наблюдатель за jobs (например, метрики).
	Hook Hook
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	ncores := cfg.NCores
	if ncores <= 0 {
		ncores = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		ncores: ncores,
		logger: logger,
		hook:   cfg.Hook,
	}
}

// NCores возвращает ограничение параллелизма.
func (s *Scheduler) NCores() int {
	return s.ncores
}

// Result — итог батча.
type Result struct {
	// Jobs — выполненные jobs в порядке подачи, все в финальном статусе.
	Jobs []*domain.Job

	// Rejected — jobs, не допущенные к запуску: уже не PENDING
	// или повторно поданные в том же батче. Сами jobs не изменяются.
	Rejected []Rejection

	Completed int
	// Failed включает отклонённые jobs.
	Failed int
}

// Rejection — job, отклонённый планировщиком, и причина.
type Rejection struct {
	Job *domain.Job
	Err error
}

// Total возвращает размер батча с учётом отклонённых jobs.
func (r *Result) Total() int {
	return len(r.Jobs) + len(r.Rejected)
}

// AllFailed возвращает true, если батч не пуст и ни один job не завершился успешно.
func (r *Result) AllFailed() bool {
	return r.Total() > 0 && r.Completed == 0
}

// Err объединяет ошибки упавших и отклонённых jobs. Nil, если таких нет.
func (r *Result) Err() error {
	var errs []error
	for _, job := range r.Jobs {
		if job.Status == domain.JobStatusFailed {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrJobFailed, job.Name, job.Err))
		}
	}
	for _, rej := range r.Rejected {
		errs = append(errs, rej.Err)
	}
	return errors.Join(errs...)
}

// Run выполняет все jobs и возвращается, когда каждый достиг финального статуса.
//
// Jobs запускаются в порядке подачи: следующий job стартует только
// после освобождения слота. При NCores == 1 порядок выполнения совпадает
// с порядком подачи. Падение одного job не отменяет остальные.
// ctx передаётся jobs, но не прерывает раздачу батча.
//
// Job, который не PENDING или уже встречался в батче, не запускается
// и попадает в Result.Rejected без изменения статуса.
func (s *Scheduler) Run(ctx context.Context, jobs []*domain.Job) *Result {
	result := &Result{}
	if len(jobs) == 0 {
		return result
	}

	// отбор до старта горутин: статусы читаются без гонок
	seen := make(map[*domain.Job]struct{}, len(jobs))
	accepted := make([]*domain.Job, 0, len(jobs))
	for _, job := range jobs {
		if _, dup := seen[job]; dup {
			result.Rejected = append(result.Rejected, Rejection{
				Job: job,
				Err: fmt.Errorf("%w: %s submitted twice", ErrJobNotPending, job.Name),
			})
			continue
		}
		seen[job] = struct{}{}

		if job.Status != domain.JobStatusPending {
			result.Rejected = append(result.Rejected, Rejection{
				Job: job,
				Err: fmt.Errorf("%w: %s is %s", ErrJobNotPending, job.Name, job.Status),
			})
			continue
		}
		accepted = append(accepted, job)
	}
	result.Jobs = accepted

	for _, rej := range result.Rejected {
		s.logger.Warn("job rejected", "job", rej.Job.Name, "error", rej.Err)
	}

	s.logger.Debug("scheduling jobs", "jobs", len(accepted), "ncores", s.ncores)

	sem := semaphore.NewWeighted(int64(s.ncores))
	dispatchCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for _, job := range accepted {
		// Acquire с контекстом без отмены не возвращает ошибку
		_ = sem.Acquire(dispatchCtx, 1)

		wg.Add(1)
		go func(job *domain.Job) {
			defer wg.Done()
			defer sem.Release(1)
			s.execute(ctx, job)
		}(job)
	}
	wg.Wait()

	for _, job := range accepted {
		if job.Status == domain.JobStatusCompleted {
			result.Completed++
		} else {
			result.Failed++
		}
	}
	result.Failed += len(result.Rejected)

	s.logger.Debug("jobs finished",
		"completed", result.Completed,
		"failed", result.Failed,
		"rejected", len(result.Rejected),
	)

	return result
}

// execute выполняет один job и переводит его в финальный статус.
func (s *Scheduler) execute(ctx context.Context, job *domain.Job) {
	job.MarkRunning()
	if s.hook != nil {
		s.hook.JobStarted(job)
	}

	output, err := runSafe(ctx, job)
	if err != nil {
		job.MarkFailed(err)
		s.logger.Warn("job failed", "job", job.Name, "error", err)
	} else {
		job.MarkCompleted(output)
	}

	if s.hook != nil {
		s.hook.JobFinished(job)
	}
}

// runSafe превращает панику job в ошибку.
func runSafe(ctx context.Context, job *domain.Job) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return job.Run(ctx)
}
