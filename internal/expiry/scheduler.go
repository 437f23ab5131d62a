package expiry

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fbarrios/storefront-backend/internal/order"
	"github.com/fbarrios/storefront-backend/internal/outbox"
	"github.com/fbarrios/storefront-backend/internal/stock"
)

const sweepBatchSize = 50

// Scheduler compensates reservations whose payment never arrived. Each
// placed order gets an in-process timer; a periodic sweep over the
// durable expiry records covers timers lost to a restart. Firing is
// idempotent: the conditional pending->cancelled update decides who
// acts, so a timer racing the settlement handler can never undo it.
type Scheduler struct {
	db       *sql.DB
	orders   order.Repository
	stocks   stock.Repository
	expiries Repository
	outbox   outbox.Repository
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[int]*time.Timer
}

func NewScheduler(db *sql.DB, orders order.Repository, stocks stock.Repository, expiries Repository, ob outbox.Repository, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:       db,
		orders:   orders,
		stocks:   stocks,
		expiries: expiries,
		outbox:   ob,
		logger:   logger,
		timers:   make(map[int]*time.Timer),
	}
}

// Arm schedules compensation for an order at now + ttl.
func (s *Scheduler) Arm(orderID int, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.timers[orderID]; exists {
		return
	}
	s.timers[orderID] = time.AfterFunc(ttl, func() {
		s.fire(orderID)
		s.forget(orderID)
	})
}

func (s *Scheduler) forget(orderID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, orderID)
}

// Run sweeps overdue expiry records until the context is cancelled. This
// is the durable half of the scheduler: it compensates reservations
// whose in-process timer never fired because the process restarted.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			s.stopAll()
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	due, err := s.expiries.ListDue(ctx, time.Now().UTC(), sweepBatchSize)
	if err != nil {
		s.logger.Error("failed to list due reservations", "error", err)
		return
	}
	for _, res := range due {
		s.fire(res.OrderID)
	}
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// fire reverts the reservation if the order is still pending. Errors are
// terminal for this attempt; the sweep retries as long as the expiry
// record exists.
func (s *Scheduler) fire(orderID int) {
	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Error("compensation could not open transaction", "order_id", orderID, "error", err)
		return
	}
	defer tx.Rollback()

	cancelled, err := s.orders.MarkCancelledTx(tx, orderID)
	if err != nil {
		s.logger.Error("compensation status update failed", "order_id", orderID, "error", err)
		return
	}

	if !cancelled {
		// settled (or already compensated by the sweep): drop the
		// expiry record and leave the order alone
		if err := s.expiries.DeleteTx(tx, orderID); err != nil {
			s.logger.Error("failed to drop expiry record", "order_id", orderID, "error", err)
			return
		}
		if err := tx.Commit(); err != nil {
			s.logger.Error("compensation no-op commit failed", "order_id", orderID, "error", err)
		}
		return
	}

	items, err := s.orders.ItemsByOrderIDTx(tx, orderID)
	if err != nil {
		s.logger.Error("compensation could not load order items", "order_id", orderID, "error", err)
		return
	}

	for _, item := range items {
		if err := s.stocks.IncrementTx(tx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("compensation stock restore failed",
				"order_id", orderID, "product_id", item.ProductID, "error", err)
			return
		}
	}

	if err := s.expiries.DeleteTx(tx, orderID); err != nil {
		s.logger.Error("failed to drop expiry record", "order_id", orderID, "error", err)
		return
	}

	payload, err := json.Marshal(outbox.LifecyclePayload{
		OrderID:    orderID,
		Status:     order.StatusCancelled,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("could not encode cancellation event", "order_id", orderID, "error", err)
		return
	}
	if err := s.outbox.InsertTx(tx, orderIDKey(orderID), outbox.EventTypeOrderCanceled, payload); err != nil {
		s.logger.Error("failed to enqueue cancellation event", "order_id", orderID, "error", err)
		return
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("compensation commit failed", "order_id", orderID, "error", err)
		return
	}

	s.logger.Info("reservation compensated", "order_id", orderID, "items", len(items))
}

func orderIDKey(orderID int) string {
	return "order-" + strconv.Itoa(orderID)
}
