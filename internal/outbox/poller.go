package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fbarrios/storefront-backend/internal/inventory"
	"github.com/fbarrios/storefront-backend/internal/notify"
)

const fetchBatchSize = 100

// Poller drains pending side effects on a ticker. A failed delivery is
// logged and the row stays unprocessed for the next tick; nothing here
// ever touches an order's status or propagates to a caller.
type Poller struct {
	tick      time.Duration
	repo      Repository
	inventory inventory.Service
	notifier  notify.Notifier
	writer    KafkaWriter
	logger    *slog.Logger
}

// KafkaWriter is the subset of kafka.Writer the poller uses.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter builds the lifecycle-events writer. Returns nil when no
// brokers are configured, which disables event publishing.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	if len(brokers) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

func NewPoller(tick time.Duration, repo Repository, inv inventory.Service, notifier notify.Notifier, writer KafkaWriter, logger *slog.Logger) *Poller {
	return &Poller{tick: tick, repo: repo, inventory: inv, notifier: notifier, writer: writer, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnprocessed(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) processUnprocessed(ctx context.Context) {
	events, err := p.repo.Unprocessed(ctx, fetchBatchSize)
	if err != nil {
		p.logger.Error("failed to fetch outbox events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.dispatch(ctx, event); err != nil {
			p.logger.Error("outbox dispatch failed",
				"event_id", event.ID, "event_type", event.EventType,
				"attempts", event.Attempts, "error", err)
			if err := p.repo.MarkFailed(ctx, event.ID); err != nil {
				p.logger.Error("failed to record outbox failure", "event_id", event.ID, "error", err)
			}
			continue
		}
		if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
			p.logger.Error("failed to mark outbox event processed", "event_id", event.ID, "error", err)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, event Event) error {
	switch event.EventType {
	case EventTypeStockSync:
		var payload StockSyncPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("invalid stock sync payload: %w", err)
		}
		return p.inventory.DecrementStock(ctx, payload.SKU, payload.Quantity, decrementKey(event))

	case EventTypeOrderEmail:
		var payload EmailPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("invalid email payload: %w", err)
		}
		subject, html := RenderOrderConfirmation(payload)
		return p.notifier.Send(payload.To, subject, html)

	case EventTypeOperatorEmail:
		var payload EmailPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("invalid email payload: %w", err)
		}
		subject, html := RenderOperatorAlert(payload)
		return p.notifier.Send(payload.To, subject, html)

	case EventTypeOrderPlaced, EventTypeOrderSettled, EventTypeOrderCanceled:
		if p.writer == nil {
			// no brokers configured, drop the event
			return nil
		}
		return p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(event.AggregateID), // buy order for per-order ordering
			Value: event.Payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
			},
		})

	default:
		p.logger.Warn("unknown outbox event type, dropping", "event_id", event.ID, "event_type", event.EventType)
		return nil
	}
}

// decrementKey is stable per outbox event, so a redelivered stock sync
// reuses the same idempotency key and the inventory service can
// deduplicate it.
func decrementKey(event Event) string {
	return fmt.Sprintf("%s-%d", event.AggregateID, event.ID)
}
