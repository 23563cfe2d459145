// Package service holds outbound integrations invoked from handlers.
// Publish errors are logged and returned so callers can ignore broker
// trouble without interrupting the request flow.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	q "github.com/autoparc/fleet-reservation/internal/queue"
)

// PublishReservationDecided publishes a ReservationDecidedEvent to the
// durable "reservation.decided" queue.  Messages are persistent so they
// survive broker restarts.  The function never panics; any error is
// logged and returned.
func PublishReservationDecided(ctx context.Context, event q.ReservationDecidedEvent) error {
	conn, err := amqp.Dial(q.BrokerURL())
	if err != nil {
		zap.S().Warnw("rabbitmq: dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		zap.S().Warnw("rabbitmq: channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		"reservation.decided",
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		zap.S().Warnw("rabbitmq: queue declare failed", "error", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		zap.S().Warnw("rabbitmq: marshal event failed", "error", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",                    // default exchange
		"reservation.decided", // routing key = queue name
		false,                 // mandatory
		false,                 // immediate
		pub,
	); err != nil {
		zap.S().Warnw("rabbitmq: publish failed", "error", err)
		return err
	}

	return nil
}
