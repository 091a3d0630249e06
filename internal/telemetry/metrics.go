package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/stagerun/internal/domain"
)

// Metrics — Prometheus метрики выполнения.
//
// Подключается к драйверу как observer (стадии и runs)
// и к планировщику как hook (jobs).
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	StagesTotal   *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	JobsTotal     *prometheus.CounterVec
	JobsRunning   prometheus.Gauge
	JobDuration   *prometheus.HistogramVec
}

// NewMetrics регистрирует метрики в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stagerun",
			Name:      "runs_total",
			Help:      "Finished runs by final status.",
		}, []string{"status"}),
		StagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stagerun",
			Name:      "stages_total",
			Help:      "Finished stages by module and status.",
		}, []string{"stage", "status"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stagerun",
			Name:      "stage_duration_seconds",
			Help:      "Stage wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
		JobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stagerun",
			Name:      "jobs_total",
			Help:      "Finished scheduler jobs by stage and status.",
		}, []string{"stage", "status"}),
		JobsRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "stagerun",
			Name:      "jobs_running",
			Help:      "Jobs currently executing.",
		}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stagerun",
			Name:      "job_duration_seconds",
			Help:      "Scheduler job wall time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

// JobStarted вызывается планировщиком перед запуском job.
func (m *Metrics) JobStarted(*domain.Job) {
	m.JobsRunning.Inc()
}

// JobFinished вызывается планировщиком после перехода job в финальный статус.
func (m *Metrics) JobFinished(job *domain.Job) {
	m.JobsRunning.Dec()
	m.JobsTotal.WithLabelValues(job.Stage, string(job.Status)).Inc()
	m.JobDuration.WithLabelValues(job.Stage).Observe(job.Duration().Seconds())
}

// RunStarted ничего не считает: runs учитываются по завершении.
func (m *Metrics) RunStarted(context.Context, *domain.Run) error { return nil }

// StageStarted ничего не считает.
func (m *Metrics) StageStarted(context.Context, *domain.Run, *domain.StageRecord) error {
	return nil
}

// StageFinished учитывает завершённую стадию.
func (m *Metrics) StageFinished(_ context.Context, _ *domain.Run, stage *domain.StageRecord) error {
	m.StagesTotal.WithLabelValues(stage.Name, string(stage.Status)).Inc()
	if stage.Status != domain.StageStatusSkipped {
		m.StageDuration.WithLabelValues(stage.Name).Observe(stage.Duration().Seconds())
	}
	return nil
}

// RunFinished учитывает завершённый run.
func (m *Metrics) RunFinished(_ context.Context, run *domain.Run) error {
	m.RunsTotal.WithLabelValues(string(run.Status)).Inc()
	return nil
}
