package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// ReservationPaidEvent is published once a reservation is settled
type ReservationPaidEvent struct {
	ReservationID   int64     `json:"reservation_id"`
	UserID          string    `json:"user_id"`
	ItemID          int64     `json:"item_id"`
	ItemKind        string    `json:"item_kind"`
	Participants    int       `json:"participants"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	PaymentIntentID string    `json:"payment_intent_id"`
	PaidAt          time.Time `json:"paid_at"`
}

// EventPublisher publishes reservation domain events. Publishing is best
// effort: callers log failures and carry on.
type EventPublisher interface {
	PublishReservationPaid(ctx context.Context, event ReservationPaidEvent) error
}

// AMQPPublisher publishes events to a durable RabbitMQ queue
type AMQPPublisher struct {
	url    string
	queue  string
	logger *logrus.Logger
}

// NewAMQPPublisher creates a RabbitMQ publisher
func NewAMQPPublisher(url, queue string, logger *logrus.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		url:    url,
		queue:  queue,
		logger: logger,
	}
}

// PublishReservationPaid publishes a persistent reservation.paid message
func (p *AMQPPublisher) PublishReservationPaid(ctx context.Context, event ReservationPaidEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel open failed: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return fmt.Errorf("rabbitmq queue declare failed: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         "reservation.paid",
		MessageId:    fmt.Sprintf("reservation-%d-paid", event.ReservationID),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish failed: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"reservation_id": event.ReservationID,
		"queue":          p.queue,
	}).Debug("Reservation paid event published")

	return nil
}

// LogPublisher writes events to the log; used when no broker is configured
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher creates a log-only publisher
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// PublishReservationPaid logs the event
func (p *LogPublisher) PublishReservationPaid(ctx context.Context, event ReservationPaidEvent) error {
	p.logger.WithFields(logrus.Fields{
		"reservation_id": event.ReservationID,
		"item_id":        event.ItemID,
		"item_kind":      event.ItemKind,
	}).Info("Reservation paid")
	return nil
}
