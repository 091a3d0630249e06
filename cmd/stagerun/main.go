// stagerun — запуск staged-пайплайнов над моделями PDB.
//
// Использование:
//
//	stagerun [--log-level L] [--log-format F] [--json] <command> [flags]
//
// Команды:
//
//	run       Подготовка каталога проекта и запуск рецепта
//	cfg       Параметры модуля по умолчанию
//	modules   Список модулей
//	history   История запусков (PostgreSQL)
//	events    События запусков (RabbitMQ)
//	pp        Очистка PDB-файлов
//
// Переменные окружения: LOG_LEVEL, LOG_FORMAT, DB_URL, RABBITMQ_URL, METRICS_ADDR.
// Флаги имеют приоритет над окружением.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/stagerun/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	settings := &cli.Settings{
		LogLevel:    os.Getenv("LOG_LEVEL"),
		LogFormat:   os.Getenv("LOG_FORMAT"),
		DBURL:       os.Getenv("DB_URL"),
		AMQPURL:     os.Getenv("RABBITMQ_URL"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}

	app := cli.NewApp(settings, version)
	root := cli.NewRootCmd(app)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
