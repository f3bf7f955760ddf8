package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	QueueBookingConfirmed = "booking.confirmed"
	QueuePaymentCancelled = "payment.cancelled"
)

type Publisher struct {
	url string
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

func (p *Publisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	const op = "events.Publisher.PublishBookingConfirmed"

	if err := p.publish(ctx, QueueBookingConfirmed, ev); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *Publisher) PublishPaymentCancelled(ctx context.Context, ev PaymentCancelledEvent) error {
	const op = "events.Publisher.PublishPaymentCancelled"

	if err := p.publish(ctx, QueuePaymentCancelled, ev); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// publish dials per call and declares the queue idempotently. Messages are
// persistent so they survive broker restarts.
func (p *Publisher) publish(ctx context.Context, queue string, payload any) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}
