package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogOptions — параметры логгера.
//
// Пустые поля заполняются из окружения (LOG_LEVEL, LOG_FORMAT),
// затем значениями по умолчанию.
type LogOptions struct {
	// Level — DEBUG, INFO, WARN (WARNING), ERROR.
	Level string

	// Format — "text" (по умолчанию) или "json".
	Format string

	// Writer — куда писать логи (по умолчанию os.Stderr).
	Writer io.Writer
}

// ParseLevel переводит имя уровня в slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR", "CRITICAL":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// LogLevel определяет уровень логирования из переменной окружения LOG_LEVEL.
// По умолчанию: INFO
func LogLevel() slog.Level {
	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger создаёт логгер без установки его глобальным.
func NewLogger(opts LogOptions) (*slog.Logger, error) {
	levelName := opts.Level
	if levelName == "" {
		levelName = os.Getenv("LOG_LEVEL")
	}
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	format := opts.Format
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch format {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return slog.New(handler), nil
}

// SetupLogger инициализирует глобальный логгер.
//
// Формат вывода:
//   - "text" (по умолчанию) — человекочитаемый формат для терминала
//   - "json" — для сбора логов
func SetupLogger(opts LogOptions) (*slog.Logger, error) {
	logger, err := NewLogger(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithStage возвращает логгер с позицией и именем стадии.
func WithStage(logger *slog.Logger, position int, name string) *slog.Logger {
	return logger.With("position", position, "stage", name)
}

// WithJob возвращает логгер с именем job.
func WithJob(logger *slog.Logger, job string) *slog.Logger {
	return logger.With("job", job)
}
