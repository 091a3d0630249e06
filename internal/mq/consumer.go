package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно событие. Ошибка приводит к nack без повтора.
type Handler func(ctx context.Context, msg *Message) error

// Consumer читает события из очереди, которую объявляет Declare.
//
// Declare вызывается заново после каждого переподключения: эксклюзивная
// очередь живёт только вместе с соединением.
type Consumer struct {
	conn    *Connection
	logger  *slog.Logger
	declare func(ch *amqp.Channel) (string, error)
	handler Handler
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Declare объявляет очередь и возвращает её имя.
	Declare func(ch *amqp.Channel) (string, error)

	// Handler — обработчик событий.
	Handler Handler
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:    conn,
		logger:  logger,
		declare: cfg.Declare,
		handler: cfg.Handler,
	}
}

// TailConfig — конфигурация для чтения всех событий по pattern.
func TailConfig(pattern string, handler Handler) ConsumerConfig {
	return ConsumerConfig{
		Declare: func(ch *amqp.Channel) (string, error) {
			return DeclareTail(ch, pattern)
		},
		Handler: handler,
	}
}

// Run читает события до отмены ctx.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, queue, err := c.setup()
		if err != nil {
			c.logger.Error("failed to setup consume", "error", err)
		} else {
			c.logger.Info("consumer started", "queue", queue)
			err = c.process(ctx, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect", "queue", queue, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

func (c *Consumer) setup() (<-chan amqp.Delivery, string, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, "", err
	}

	queue, err := c.declare(ch)
	if err != nil {
		return nil, "", err
	}

	deliveries, err := ch.Consume(
		queue, // queue
		"",    // consumer tag
		false, // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, "", fmt.Errorf("consume: %w", err)
	}
	return deliveries, queue, nil
}

func (c *Consumer) process(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handle(ctx, raw)
		}
	}
}

// handle разбирает и обрабатывает одну доставку.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message",
			"error", err,
			"body", string(raw.Body),
		)
		raw.Nack(false, false)
		return
	}

	if err := c.handler(ctx, &msg); err != nil {
		c.logger.Error("handler failed",
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		raw.Nack(false, false)
		return
	}

	raw.Ack(false)
}

// ParsePayload разбирает payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// после json.Unmarshal payload — map[string]any
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
