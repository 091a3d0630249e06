package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobFunc — исполняемая часть job.
// Возвращает результат, который сохраняется в Job.Output.
type JobFunc func(ctx context.Context) (any, error)

// Job — независимая единица работы, которую стадия отдаёт планировщику.
//
// Job внутри одного батча не зависят друг от друга.
// Статус меняет только планировщик; после финального статуса
// job не запускается повторно.
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя (например, "cluster1_contmap").
	Name string `json:"name"`

	// Stage — имя стадии-владельца, используется в метриках и логах.
	Stage string `json:"stage,omitempty"`

	// Status — текущий статус job.
	Status JobStatus `json:"status"`

	// Output — результат успешного выполнения.
	Output any `json:"output,omitempty"`

	// Err — ошибка выполнения (только для FAILED).
	Err error `json:"-"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	run JobFunc
}

// NewJob создаёт job в статусе PENDING.
func NewJob(name string, fn JobFunc) *Job {
	return &Job{
		ID:     uuid.New(),
		Name:   name,
		Status: JobStatusPending,
		run:    fn,
	}
}

// Run выполняет исполняемую часть job.
func (j *Job) Run(ctx context.Context) (any, error) {
	return j.run(ctx)
}

// Duration возвращает продолжительность выполнения.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// IsFinished возвращает true, если job завершён.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkRunning переводит job в статус RUNNING.
func (j *Job) MarkRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// MarkCompleted переводит job в статус COMPLETED с результатом.
func (j *Job) MarkCompleted(output any) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.FinishedAt = &now
	j.Output = output
}

// MarkFailed переводит job в статус FAILED с ошибкой.
func (j *Job) MarkFailed(err error) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.FinishedAt = &now
	j.Err = err
}

// ErrorString возвращает текст ошибки или пустую строку.
func (j *Job) ErrorString() string {
	if j.Err == nil {
		return ""
	}
	return j.Err.Error()
}
