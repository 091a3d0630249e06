package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingKey — ключ маршрутизации события.
type RoutingKey string

// ExchangeEvents — topic-обменник событий жизненного цикла run.
const ExchangeEvents = "stagerun.events"

// Ключи маршрутизации событий.
const (
	RoutingKeyRunStarted     RoutingKey = "run.started"
	RoutingKeyStageStarted   RoutingKey = "stage.started"
	RoutingKeyStageCompleted RoutingKey = "stage.completed"
	RoutingKeyStageFailed    RoutingKey = "stage.failed"
	RoutingKeyRunFinished    RoutingKey = "run.finished"
)

// PatternAll — привязка ко всем событиям.
const PatternAll = "#"

// DeclareEvents объявляет обменник событий.
func DeclareEvents(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		ExchangeEvents, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}
	return nil
}

// DeclareTail объявляет эксклюзивную очередь для чтения событий
// и привязывает её к ExchangeEvents по pattern. Очередь удаляется
// вместе с соединением. Возвращает имя очереди.
func DeclareTail(ch *amqp.Channel, pattern string) (string, error) {
	if err := DeclareEvents(ch); err != nil {
		return "", err
	}
	if pattern == "" {
		pattern = PatternAll
	}

	q, err := ch.QueueDeclare(
		"",    // name (сгенерирует брокер)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare tail queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, pattern, ExchangeEvents, false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s to %s: %w", q.Name, ExchangeEvents, err)
	}
	return q.Name, nil
}
