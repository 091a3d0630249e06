// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики по runs, стадиям и jobs
//
// Метрики экспортируются на /metrics, если при запуске указан --metrics-addr.
package telemetry
