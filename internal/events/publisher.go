package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	Exchange = "inventory.events"

	publishAttempts = 3
	firstBackoff    = 100 * time.Millisecond
	backoffCap      = 5 * time.Second
	confirmTimeout  = 5 * time.Second
)

var (
	errNotAcked        = errors.New("broker nacked the message")
	errPublisherClosed = errors.New("rabbitmq connection closed")
)

// Publisher is the relay's Sender over a RabbitMQ topic exchange. Every
// message is confirmed by the broker before Publish returns.
type Publisher struct {
	conn *amqp.Connection
	log  *zap.Logger

	mu sync.Mutex // guards ch; confirm-mode channels are single-writer
	ch *amqp.Channel
}

// NewPublisher dials url, declares the durable exchange and puts the
// channel in confirm mode.
func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := openConfirmChannel(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	log.Info("Connected to RabbitMQ", zap.String("exchange", Exchange))
	return &Publisher{conn: conn, ch: ch, log: log}, nil
}

func openConfirmChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	return ch, nil
}

// Publish routes body by eventType and waits for the broker ack, retrying
// with capped exponential backoff.
func (p *Publisher) Publish(ctx context.Context, eventType, eventID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	wait := firstBackoff
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		if err = p.publishOnce(ctx, eventType, eventID, body); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == publishAttempts {
			break
		}

		p.log.Warn("Publish attempt failed",
			zap.String("event_id", eventID),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, backoffCap)
	}
	return fmt.Errorf("publish %s after %d attempts: %w", eventID, publishAttempts, err)
}

func (p *Publisher) publishOnce(ctx context.Context, eventType, eventID string, body []byte) error {
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, Exchange, eventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    eventID,
		Timestamp:    time.Now().UTC(),
		Type:         eventType,
		Headers:      amqp.Table{"event_version": EventVersion},
		Body:         body,
	})
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	acked, err := confirm.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("wait for confirm: %w", err)
	}
	if !acked {
		return errNotAcked
	}
	return nil
}

// Ping fails once the broker connection has dropped.
func (p *Publisher) Ping(context.Context) error {
	if p == nil || p.conn == nil || p.conn.IsClosed() {
		return errPublisherClosed
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			p.log.Warn("Failed to close channel", zap.Error(err))
		}
	}
	if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("close rabbitmq connection: %w", err)
	}
	p.log.Info("Publisher closed")
	return nil
}
