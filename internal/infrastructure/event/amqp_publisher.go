package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/infrastructure/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange is the topic exchange order events are published to
const DefaultExchange = "canteen.orders"

const publishTimeout = 10 * time.Second

// channel is the subset of *amqp.Channel the publisher uses
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes domain events to a RabbitMQ topic exchange.
// It is both an EventPublisher and a wildcard EventHandler, so it can be
// subscribed to the in-memory bus as a forwarder.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *zap.Logger
	now      func() time.Time
}

// AMQPConfig holds broker connection settings
type AMQPConfig struct {
	URL      string
	Exchange string
	// MaxRetries bounds dial attempts. Default: 5
	MaxRetries int
	// RetryBackoff grows linearly per attempt. Default: 2s
	RetryBackoff time.Duration
}

// NewAMQPPublisher dials the broker, retrying with linear backoff, and declares the exchange
func NewAMQPPublisher(ctx context.Context, cfg AMQPConfig, log *zap.Logger) (*AMQPPublisher, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			break
		}
		if attempt == cfg.MaxRetries {
			return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", cfg.MaxRetries, err)
		}
		wait := time.Duration(attempt) * cfg.RetryBackoff
		log.Warn("RabbitMQ connection failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	p, err := newAMQPPublisher(ch, cfg.Exchange, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// newAMQPPublisher wraps an open channel and declares the exchange on it
func newAMQPPublisher(ch channel, exchange string, log *zap.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if log == nil {
		log = zap.NewNop()
	}
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange, logger: log, now: time.Now}, nil
}

// Publish sends each event as a persistent JSON envelope.
// It stops at the first failure.
func (p *AMQPPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	correlationID := logger.GetRequestID(ctx)
	for _, event := range events {
		env, err := NewEnvelope(event, correlationID)
		if err != nil {
			return err
		}
		body, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to marshal envelope: %w", err)
		}

		msg := amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     env.EventID.String(),
			CorrelationId: correlationID,
			Type:          env.EventType,
			Timestamp:     p.now(),
			Body:          body,
		}

		if err := p.publish(ctx, env.RoutingKey(), msg); err != nil {
			p.logger.Error("Failed to publish event",
				zap.String("exchange", p.exchange),
				zap.String("routing_key", env.RoutingKey()),
				zap.String("event_id", env.EventID.String()),
				zap.Error(err),
			)
			return fmt.Errorf("failed to publish %s: %w", env.EventType, err)
		}
		p.logger.Debug("Event published",
			zap.String("routing_key", env.RoutingKey()),
			zap.Int("size", len(body)),
		)
	}
	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, key string, msg amqp.Publishing) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishes
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
}

// Handle forwards a bus event to the broker
func (p *AMQPPublisher) Handle(ctx context.Context, event shared.DomainEvent) error {
	return p.Publish(ctx, event)
}

// EventTypes subscribes the forwarder to every event
func (p *AMQPPublisher) EventTypes() []string {
	return nil
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func routingKey(aggregateType, eventType string) string {
	return strings.ToLower(aggregateType) + "." + strings.ToLower(eventType)
}

var (
	_ shared.EventPublisher = (*AMQPPublisher)(nil)
	_ shared.EventHandler   = (*AMQPPublisher)(nil)
)
