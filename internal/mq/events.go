package mq

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/stagerun/internal/domain"
)

// RunEvent — событие уровня run.
type RunEvent struct {
	RunID       uuid.UUID        `json:"run_id"`
	Recipe      string           `json:"recipe"`
	ProjectDir  string           `json:"project_dir"`
	RestartFrom int              `json:"restart_from"`
	Status      domain.RunStatus `json:"status"`
	FailedStage *int             `json:"failed_stage,omitempty"`
	Error       string           `json:"error,omitempty"`
	DurationMS  int64            `json:"duration_ms,omitempty"`
}

// StageEvent — событие уровня стадии.
type StageEvent struct {
	RunID      uuid.UUID          `json:"run_id"`
	Position   int                `json:"position"`
	Stage      string             `json:"stage"`
	Status     domain.StageStatus `json:"status"`
	Artifacts  int                `json:"artifacts"`
	Error      string             `json:"error,omitempty"`
	DurationMS int64              `json:"duration_ms,omitempty"`
}

func newRunEvent(run *domain.Run) RunEvent {
	return RunEvent{
		RunID:       run.ID,
		Recipe:      run.Recipe,
		ProjectDir:  run.ProjectDir,
		RestartFrom: run.RestartFrom,
		Status:      run.Status,
		FailedStage: run.FailedStage,
		Error:       run.Error,
		DurationMS:  run.Duration().Milliseconds(),
	}
}

func newStageEvent(run *domain.Run, s *domain.StageRecord) StageEvent {
	return StageEvent{
		RunID:      run.ID,
		Position:   s.Position,
		Stage:      s.Name + ":" + s.Method,
		Status:     s.Status,
		Artifacts:  s.Artifacts,
		Error:      s.Error,
		DurationMS: s.Duration().Milliseconds(),
	}
}

// stageFinishedKey выбирает ключ по финальному статусу стадии.
// Пропущенные при рестарте стадии идут как stage.completed.
func stageFinishedKey(status domain.StageStatus) RoutingKey {
	if status == domain.StageStatusFailed {
		return RoutingKeyStageFailed
	}
	return RoutingKeyStageCompleted
}

// MessagePublisher публикует сообщения. Реализуется Publisher.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// EventObserver публикует события драйвера в брокер.
type EventObserver struct {
	pub     MessagePublisher
	timeout time.Duration
}

// NewEventObserver создаёт EventObserver. Каждая публикация ограничена 5 секундами.
func NewEventObserver(pub MessagePublisher) *EventObserver {
	return &EventObserver{pub: pub, timeout: 5 * time.Second}
}

func (o *EventObserver) publish(ctx context.Context, key RoutingKey, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.pub.Publish(ctx, NewMessage(key, payload))
}

// RunStarted публикует run.started.
func (o *EventObserver) RunStarted(ctx context.Context, run *domain.Run) error {
	return o.publish(ctx, RoutingKeyRunStarted, newRunEvent(run))
}

// StageStarted публикует stage.started.
func (o *EventObserver) StageStarted(ctx context.Context, run *domain.Run, s *domain.StageRecord) error {
	return o.publish(ctx, RoutingKeyStageStarted, newStageEvent(run, s))
}

// StageFinished публикует stage.completed или stage.failed.
func (o *EventObserver) StageFinished(ctx context.Context, run *domain.Run, s *domain.StageRecord) error {
	return o.publish(ctx, stageFinishedKey(s.Status), newStageEvent(run, s))
}

// RunFinished публикует run.finished.
func (o *EventObserver) RunFinished(ctx context.Context, run *domain.Run) error {
	return o.publish(ctx, RoutingKeyRunFinished, newRunEvent(run))
}
