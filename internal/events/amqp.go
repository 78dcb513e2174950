package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"clipstream/internal/logging"
	"clipstream/internal/metrics"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "catalog.events"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event publisher closed")

// AMQPPublisher publishes events to a RabbitMQ topic exchange.
type AMQPPublisher struct {
	url      string
	exchange string

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// NewAMQPPublisher connects to url and declares exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &AMQPPublisher{url: url, exchange: exchange}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	logging.Info("Catalog events: publishing to exchange %q", exchange)
	return p, nil
}

// connect must be called with mu held.
func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// Publish sends ev, reconnecting once if the connection was lost.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	if p.conn == nil || p.conn.IsClosed() {
		logging.Warn("Catalog events: broker connection lost, reconnecting")
		if err = p.connect(); err != nil {
			metrics.EventsPublishedTotal.WithLabelValues(ev.Type, "error").Inc()
			return err
		}
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.JobID,
		Timestamp:    time.Now(),
		Type:         ev.Type,
		Body:         body,
	})

	status := "success"
	if err != nil {
		status = "error"
		err = fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	metrics.EventsPublishedTotal.WithLabelValues(ev.Type, status).Inc()
	return err
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
