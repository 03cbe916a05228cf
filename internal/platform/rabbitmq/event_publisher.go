package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"prepai/internal/model"
)

// TurnEventPublisher enqueues interview turn audit events for the audit
// worker to persist out of the request path.
type TurnEventPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewTurnEventPublisher(conn *amqp.Connection, queueName string) *TurnEventPublisher {
	return &TurnEventPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *TurnEventPublisher) Publish(ctx context.Context, event model.TurnEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal turn event failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish turn event failed: %w", err)
	}
	return nil
}
