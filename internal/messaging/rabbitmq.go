// Package messaging publishes integration events to the message broker.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/finvolt/ledgercore/internal/config"
)

// EventPublisher delivers one integration event to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventID, aggregateID, eventType string, payload []byte, occurredAt time.Time) error
	Close() error
}

// RabbitMQPublisher publishes events to a durable topic exchange with
// persistent delivery. The channel is opened lazily and reopened after a
// broker failure.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	conn     *amqp.Connection
	channel  *amqp.Channel
	logger   *slog.Logger
}

var _ EventPublisher = (*RabbitMQPublisher)(nil)

// NewRabbitMQPublisher creates a publisher for the configured exchange. No
// connection is made until the first publish.
func NewRabbitMQPublisher(cfg *config.RabbitMQConfig, logger *slog.Logger) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		url:      cfg.URL,
		exchange: cfg.Exchange,
		logger:   logger,
	}
}

// Publish sends one event, keyed by event type, with the event identity in
// the headers so consumers can dedupe.
func (p *RabbitMQPublisher) Publish(ctx context.Context, eventID, aggregateID, eventType string, payload []byte, occurredAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	channel, err := p.ensureChannel()
	if err != nil {
		return err
	}

	err = channel.PublishWithContext(ctx, p.exchange, eventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    eventID,
		Timestamp:    occurredAt,
		Type:         eventType,
		Body:         payload,
		Headers: amqp.Table{
			"event_id":     eventID,
			"aggregate_id": aggregateID,
			"occurred_at":  occurredAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("failed to publish event %s: %w", eventID, err)
	}

	return nil
}

// ensureChannel opens the connection, channel and exchange on first use and
// after a reset. Callers must hold the mutex.
func (p *RabbitMQPublisher) ensureChannel() (*amqp.Channel, error) {
	if p.channel != nil {
		return p.channel, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close() //nolint:errcheck // close error is not critical here
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close() //nolint:errcheck // close error is not critical here
		_ = conn.Close()    //nolint:errcheck // close error is not critical here
		return nil, fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}

	p.logger.Info("connected to message broker", "exchange", p.exchange)

	p.conn = conn
	p.channel = channel
	return p.channel, nil
}

func (p *RabbitMQPublisher) reset() {
	if p.channel != nil {
		_ = p.channel.Close() //nolint:errcheck // close error is not critical here
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close() //nolint:errcheck // close error is not critical here
		p.conn = nil
	}
}

// Close tears down the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
