package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message — конверт события в обменнике.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — ключ маршрутизации события.
	Type RoutingKey `json:"type"`

	// Payload — RunEvent или StageEvent.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(key RoutingKey, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      key,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Publisher публикует события в ExchangeEvents.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher и объявляет обменник событий.
func NewPublisher(conn *Connection, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := DeclareEvents(ch); err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, logger: logger}, nil
}

// Publish публикует сообщение с ключом msg.Type.
func (p *Publisher) Publish(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx,
		ExchangeEvents,   // exchange
		string(msg.Type), // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   msg.ID,
			Timestamp:   msg.Timestamp,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}

	p.logger.Debug("published event",
		"routing_key", msg.Type,
		"message_id", msg.ID,
	)
	return nil
}
