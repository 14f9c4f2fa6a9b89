// Package queue publishes booking events to RabbitMQ. Publishing is best
// effort: callers log the returned error and carry on.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published once a booking reaches CONFIRMED
type BookingConfirmedEvent struct {
	BookingID          string   `json:"booking_id"`
	BookingReferenceID string   `json:"booking_reference_id"`
	UserID             string   `json:"user_id"`
	Supplier           string   `json:"supplier"`
	JourneyType        string   `json:"journey_type"`
	PNR                string   `json:"pnr"`
	TicketNumbers      []string `json:"ticket_numbers"`
	Origin             []string `json:"origin"`
	Destination        []string `json:"destination"`
	Checkin            string   `json:"checkin"`
	Total              float64  `json:"total"`
	Currency           string   `json:"currency"`
	ConfirmedAt        string   `json:"confirmed_at"`
}

type Publisher struct {
	url string
	log *logrus.Logger
}

func NewPublisher(url string, log *logrus.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// PublishBookingConfirmed sends event to the durable booking.confirmed queue
// as a persistent message
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		BookingConfirmedQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    event.BookingID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", BookingConfirmedQueue, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	p.log.WithField("bookingId", event.BookingID).Debug("booking.confirmed published")
	return nil
}
