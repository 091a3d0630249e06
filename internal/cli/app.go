package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/shaiso/stagerun/internal/modules"
	"github.com/shaiso/stagerun/internal/telemetry"
)

// ErrRunFailed — run завершился с ошибкой стадии. main выходит с кодом 1.
var ErrRunFailed = errors.New("run failed")

// ErrNoDatabase — команде нужна БД, а адрес не задан.
var ErrNoDatabase = errors.New("database url is not set (use --db-url or DB_URL)")

// ErrNoBroker — команде нужен брокер, а адрес не задан.
var ErrNoBroker = errors.New("broker url is not set (use --amqp-url or RABBITMQ_URL)")

// Settings — глобальные флаги командной строки.
type Settings struct {
	LogLevel    string
	LogFormat   string
	JSON        bool
	DBURL       string
	AMQPURL     string
	MetricsAddr string
}

// App связывает команды с настройками и общими зависимостями.
//
// Logger и Output создаются лениво, после разбора флагов cobra.
type App struct {
	Settings *Settings
	Version  string

	// Registry — реестр модулей (по умолчанию modules.DefaultRegistry()).
	Registry *modules.Registry

	// NewOutput создаёт Output (по умолчанию stdout/stderr).
	NewOutput func(jsonMode bool) *Output

	// LogWriter — куда писать логи (по умолчанию stderr).
	LogWriter io.Writer

	logger *slog.Logger
}

// NewApp создаёт App с реестром по умолчанию.
func NewApp(settings *Settings, version string) *App {
	return &App{
		Settings:  settings,
		Version:   version,
		Registry:  modules.DefaultRegistry(),
		NewOutput: NewOutput,
	}
}

// Logger возвращает логгер по флагам --log-level и --log-format.
func (a *App) Logger() (*slog.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}
	logger, err := telemetry.SetupLogger(telemetry.LogOptions{
		Level:  a.Settings.LogLevel,
		Format: a.Settings.LogFormat,
		Writer: a.LogWriter,
	})
	if err != nil {
		return nil, err
	}
	a.logger = logger
	return logger, nil
}

// Output возвращает Output по флагу --json.
func (a *App) Output() *Output {
	return a.NewOutput(a.Settings.JSON)
}
