package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aimerfeng/StarReviews/internal/models"
	"github.com/aimerfeng/StarReviews/internal/monitoring"
	"github.com/aimerfeng/StarReviews/internal/review"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// ReviewSubmitted is published for every accepted review
type ReviewSubmitted struct {
	ID          uuid.UUID     `json:"id"`
	Review      models.Review `json:"review"`
	Count       int           `json:"count"`
	Average     float64       `json:"average"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// NewReviewSubmitted builds the event for r
func NewReviewSubmitted(r models.Review, summary review.Summary) ReviewSubmitted {
	return ReviewSubmitted{
		ID:          uuid.New(),
		Review:      r,
		Count:       summary.Count,
		Average:     summary.Average,
		SubmittedAt: time.Now().UTC(),
	}
}

// Publisher sends review events to a broker.
// It implements review.Notifier.
type Publisher interface {
	Publish(ctx context.Context, event ReviewSubmitted) error
	Notify(ctx context.Context, r models.Review, summary review.Summary) error
	Close() error
}

// Noop drops every event
type Noop struct{}

func (Noop) Publish(context.Context, ReviewSubmitted) error { return nil }

func (Noop) Notify(context.Context, models.Review, review.Summary) error { return nil }

func (Noop) Close() error { return nil }

// AMQP publishes events as JSON to a durable queue
type AMQP struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	timeout time.Duration
}

// NewAMQP dials the broker and declares the queue
func NewAMQP(url, queue string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("error declaring queue %s: %w", queue, err)
	}

	log.Info().Str("queue", queue).Msg("Review event publisher connected")

	return &AMQP{conn: conn, ch: ch, queue: queue, timeout: 5 * time.Second}, nil
}

// Publish sends one event
func (p *AMQP) Publish(ctx context.Context, event ReviewSubmitted) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error encoding event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		"",
		p.queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID.String(),
			Timestamp:    event.SubmittedAt,
			Body:         body,
		})
	if err != nil {
		monitoring.RecordEventPublished("error")
		return fmt.Errorf("error sending message: %w", err)
	}

	monitoring.RecordEventPublished("ok")
	return nil
}

// Notify publishes the event for an accepted review
func (p *AMQP) Notify(ctx context.Context, r models.Review, summary review.Summary) error {
	return p.Publish(ctx, NewReviewSubmitted(r, summary))
}

// Close closes the channel and the connection
func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// New returns an AMQP publisher when url is set, Noop otherwise
func New(url, queue string) (Publisher, error) {
	if url == "" {
		return Noop{}, nil
	}
	return NewAMQP(url, queue)
}
