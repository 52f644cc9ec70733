package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AuditQueue receives every domain event.
const AuditQueue = "churchfinder.audit"

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, ev Event) error

// AuditLogger returns a Handler that writes each event as one structured
// log line.
func AuditLogger(log *zap.Logger) Handler {
	return func(_ context.Context, ev Event) error {
		log.Info("domain event",
			zap.String("type", ev.Type),
			zap.Time("occurred_at", ev.OccurredAt),
			zap.Uint64("church_id", ev.ChurchID),
			zap.String("church", ev.ChurchName),
			zap.Uint64("user_id", ev.UserID),
			zap.Uint64("claim_id", ev.ClaimID),
			zap.String("visited_on", ev.VisitedOn),
		)
		return nil
	}
}

// Consumer binds AuditQueue to every event type and feeds deliveries to
// Handle.  Run keeps reconnecting until its context is cancelled.
type Consumer struct {
	URL    string
	Handle Handler
	Log    *zap.Logger
}

// Run connects, consumes and reconnects with exponential backoff between
// 1s and 30s.  It returns nil once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("event consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = minBackoff // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.Log.Warn("event consumer: loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// sleep waits d or until ctx is done; it reports whether the wait completed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Declare creates the exchange, the audit queue and its binding.  Both
// publisher and consumer call it, so either may start first.
func Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(AuditQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(AuditQueue, "#", Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("event consumer: set QoS failed", zap.Error(err))
	}
	if err := Declare(ch); err != nil {
		return err
	}

	msgs, err := ch.ConsumeWithContext(ctx, AuditQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.handleMessage(ctx, d.Body); err != nil {
			c.Log.Warn("event consumer: handle message failed", zap.Error(err))
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	return c.Handle(ctx, ev)
}
