// Package service holds integrations the handlers call after a write has
// been committed.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/churchfinder/internal/queue"
)

const (
	dialTimeout   = 2 * time.Second
	redialBackoff = 15 * time.Second
)

// ErrBrokerUnavailable is returned without dialing while a failed dial is
// still inside its backoff window.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// Publisher sends domain events to the RabbitMQ topic exchange.  It keeps
// one connection and channel, guarded by mu, and redials after a failure.
// A failed dial holds off further dials for backoff, so writes are
// not stalled on an unreachable broker.  Messages are persistent.
type Publisher struct {
	url string
	log *zap.Logger

	dialTimeout time.Duration
	backoff     time.Duration
	now         func() time.Time

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	nextDial time.Time
}

// NewPublisher returns a publisher for url.  No connection is made until the
// first Publish.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{
		url:         url,
		log:         log,
		dialTimeout: dialTimeout,
		backoff:     redialBackoff,
		now:         time.Now,
	}
}

func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	if p.now().Before(p.nextDial) {
		return nil, fmt.Errorf("rabbitmq dial: %w", ErrBrokerUnavailable)
	}

	timeout := p.dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("rabbitmq dial: %w", context.DeadlineExceeded)
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		p.nextDial = p.now().Add(p.backoff)
		p.log.Warn("rabbitmq dial failed", zap.Error(err), zap.Duration("retry_in", p.backoff))
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := queue.Declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	p.nextDial = time.Time{}
	p.log.Info("rabbitmq publisher connected", zap.String("exchange", queue.Exchange))
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Publish sends ev with its type as routing key.  A failed publish drops
// the connection so the next call redials.
func (p *Publisher) Publish(ctx context.Context, ev queue.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, queue.Exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close shuts the connection down.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// Nop discards events.  It stands in when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, queue.Event) error { return nil }
