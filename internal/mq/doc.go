// Package mq публикует события жизненного цикла run в RabbitMQ и читает их.
//
// Структура:
//   - connection.go — соединение с переподключением
//   - topology.go   — обменник stagerun.events и очередь для чтения
//   - publisher.go  — публикация сообщений
//   - events.go     — EventObserver для драйвера
//   - consumer.go   — чтение событий (`stagerun events`)
//
// Ключи маршрутизации:
//   - run.started, run.finished
//   - stage.started, stage.completed, stage.failed
package mq
