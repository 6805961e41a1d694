package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jnst/storefront-sync/internal/model"
)

// Exchange is the topic exchange sync records are published to.
const Exchange = "storefront.sync"

const confirmTimeout = 10 * time.Second

// ErrBrokerClosed is returned when publishing on a lost connection.
var ErrBrokerClosed = fmt.Errorf("%w: broker connection is closed", model.ErrPublisherUnavailable)

// RabbitMQPublisher publishes sync records with publisher confirms.
type RabbitMQPublisher struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	closeOnce sync.Once
	healthy   atomic.Bool
	done      chan struct{}
}

// NewRabbitMQPublisher connects, declares the exchange and enables confirms.
func NewRabbitMQPublisher(url string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", Exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	p := &RabbitMQPublisher{
		conn:    conn,
		channel: ch,
		done:    make(chan struct{}),
	}
	p.healthy.Store(true)

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chanClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	go func() {
		select {
		case err := <-connClosed:
			p.healthy.Store(false)
			slog.Warn("RabbitMQ connection closed", slog.Any("error", err))
		case err := <-chanClosed:
			p.healthy.Store(false)
			slog.Warn("RabbitMQ channel closed", slog.Any("error", err))
		case <-p.done:
		}
	}()

	return p, nil
}

// Publish sends the record and waits for the broker to confirm it.
func (p *RabbitMQPublisher) Publish(ctx context.Context, record *model.SyncRecord) error {
	if !p.healthy.Load() {
		return ErrBrokerClosed
	}

	publishing, err := NewPublishing(record)
	if err != nil {
		return err
	}

	routingKey := RoutingKey(record.Subject, record.Action)

	deferred, err := p.channel.PublishWithDeferredConfirmWithContext(ctx, Exchange, routingKey, false, false, publishing)
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			return fmt.Errorf("%w: %w", model.ErrPublisherUnavailable, err)
		}
		return fmt.Errorf("failed to publish record %d: %w", record.ID, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("record %d was nacked by the broker", record.ID)
		}

		return nil
	case <-time.After(confirmTimeout):
		return fmt.Errorf("publisher confirm timeout for record %d", record.ID)
	}
}

// IsHealthy reports whether the connection and channel are still open.
func (p *RabbitMQPublisher) IsHealthy() bool {
	return p.healthy.Load()
}

// Close shuts the channel and connection down once.
func (p *RabbitMQPublisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.channel != nil {
			p.channel.Close()
		}
		if p.conn != nil {
			p.conn.Close()
		}
	})

	return nil
}

// NewPublishing builds the persistent JSON message of a record.
func NewPublishing(record *model.SyncRecord) (amqp.Publishing, error) {
	body, err := json.Marshal(NewMessage(record))
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode record %d: %w", record.ID, err)
	}

	return amqp.Publishing{
		Headers: amqp.Table{
			"subject": record.Subject.String(),
			"action":  string(record.Action),
		},
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s-%d", record.Subject, record.ID),
		Timestamp:    record.CreatedAt,
		Body:         body,
	}, nil
}

// ReconnectingRabbitMQPublisher redials RabbitMQ on the first publish after the link was lost.
type ReconnectingRabbitMQPublisher struct {
	url string

	mu      sync.Mutex
	current *RabbitMQPublisher
}

// NewReconnectingRabbitMQPublisher creates a publisher that connects lazily.
func NewReconnectingRabbitMQPublisher(url string) *ReconnectingRabbitMQPublisher {
	return &ReconnectingRabbitMQPublisher{url: url}
}

// Publish implements the relay publisher. A failed dial is reported as model.ErrPublisherUnavailable.
func (p *ReconnectingRabbitMQPublisher) Publish(ctx context.Context, record *model.SyncRecord) error {
	pub, err := p.connection()
	if err != nil {
		return err
	}

	return pub.Publish(ctx, record)
}

func (p *ReconnectingRabbitMQPublisher) connection() (*RabbitMQPublisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && p.current.IsHealthy() {
		return p.current, nil
	}

	if p.current != nil {
		_ = p.current.Close()
		p.current = nil
	}

	pub, err := NewRabbitMQPublisher(p.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrPublisherUnavailable, err)
	}

	slog.Info("RabbitMQ link established")
	p.current = pub

	return pub, nil
}

// Close closes the current connection, if any.
func (p *ReconnectingRabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil
	}

	err := p.current.Close()
	p.current = nil

	return err
}
