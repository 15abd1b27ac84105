package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const maxBackoff = 30 * time.Second

// AuditConsumer reads reservation events from the queue and appends one
// line per event to w. Malformed messages are rejected without requeue.
type AuditConsumer struct {
	url   string
	queue string
	log   *slog.Logger

	mu sync.Mutex
	w  io.Writer
}

func NewAuditConsumer(url, queue string, w io.Writer, logger *slog.Logger) *AuditConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditConsumer{url: url, queue: queue, w: w, log: logger}
}

// Run connects, consumes, and reconnects with exponential backoff until
// ctx is cancelled.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		// Dial; on failure wait and double the delay up to maxBackoff.
		conn, err := amqp.DialConfig(c.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
		if err != nil {
			c.log.Warn("audit consumer: dial failed", "err", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		// Consume until the channel closes or ctx is cancelled.
		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("audit consumer: consume loop ended, reconnecting", "err", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// At most 50 unacknowledged deliveries in flight.
	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("audit consumer: set QoS failed", "err", err)
	}
	if err := declareQueue(ch, c.queue); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("audit consumer started", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			// Malformed events are dropped, not requeued.
			if err := c.HandleMessage(d.Body); err != nil {
				c.log.Error("audit consumer: handle message failed", "err", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event body and writes its audit line.
func (c *AuditConsumer) HandleMessage(body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ReservationID == 0 {
		return errors.New("event is missing type or reservation_id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.w, FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single newline-terminated line.
func FormatAuditLine(ev ReservationEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | reservation_id=%d | user_id=%d | game_id=%d | game=%q | date=%s",
		ev.OccurredAt, auditVerb(ev.Type), ev.ReservationID, ev.UserID, ev.GameID, ev.GameName, ev.ReservationDate)
	if ev.ReturnDate != "" {
		fmt.Fprintf(&b, " | return=%s", ev.ReturnDate)
	}
	fmt.Fprintf(&b, " | status=%s | total=%s | event_id=%s\n", ev.Status, ev.TotalPrice, ev.EventID)
	return b.String()
}

func auditVerb(typ string) string {
	switch typ {
	case EventReservationCreated:
		return "Reservation created"
	case EventReservationUpdated:
		return "Reservation updated"
	case EventReservationCancelled:
		return "Reservation cancelled"
	case EventReservationCompleted:
		return "Reservation completed"
	}
	return "Reservation event " + typ
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
