package settlement

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/fbarrios/storefront-backend/internal/customer"
	"github.com/fbarrios/storefront-backend/internal/expiry"
	"github.com/fbarrios/storefront-backend/internal/order"
	"github.com/fbarrios/storefront-backend/internal/outbox"
	"github.com/fbarrios/storefront-backend/internal/product"
)

type fakeGateway struct {
	createTx     Transaction
	createErr    error
	confirmation Confirmation
	commitErr    error
	commits      int
}

func (g *fakeGateway) Create(_ context.Context, _, _ string, _ int, _ string) (Transaction, error) {
	return g.createTx, g.createErr
}

func (g *fakeGateway) Commit(_ context.Context, _ string) (Confirmation, error) {
	g.commits++
	return g.confirmation, g.commitErr
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[int]*order.Order
	items  map[int][]order.Item
}

func newMemOrderRepo(seed ...order.Order) *memOrderRepo {
	r := &memOrderRepo{orders: make(map[int]*order.Order), items: make(map[int][]order.Item)}
	for i := range seed {
		o := seed[i]
		r.orders[o.ID] = &o
	}
	return r
}

func (r *memOrderRepo) CreateTx(_ *sql.Tx, ord order.Order) (order.Order, error) { return ord, nil }
func (r *memOrderRepo) AddItemsTx(_ *sql.Tx, _ []order.Item) error               { return nil }

func (r *memOrderRepo) GetByID(id int) (order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		return *o, nil
	}
	return order.Order{}, order.ErrNotFound
}

func (r *memOrderRepo) GetByBuyOrder(buyOrder string) (order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.BuyOrder == buyOrder {
			return *o, nil
		}
	}
	return order.Order{}, order.ErrNotFound
}

func (r *memOrderRepo) ItemsByOrderID(orderID int) ([]order.Item, error) {
	return r.ItemsByOrderIDTx(nil, orderID)
}

func (r *memOrderRepo) ItemsByOrderIDTx(_ *sql.Tx, orderID int) ([]order.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[orderID], nil
}

func (r *memOrderRepo) ListByCustomer(_ int) ([]order.Order, error) { return nil, nil }

func (r *memOrderRepo) GetStatusTx(_ *sql.Tx, orderID int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderID]; ok {
		return o.Status, nil
	}
	return "", order.ErrNotFound
}

func (r *memOrderRepo) MarkProcessingTx(_ *sql.Tx, orderID int) (bool, error) {
	return r.transition(orderID, order.StatusProcessing)
}

func (r *memOrderRepo) MarkCancelledTx(_ *sql.Tx, orderID int) (bool, error) {
	return r.transition(orderID, order.StatusCancelled)
}

func (r *memOrderRepo) transition(orderID int, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || !order.CanTransition(o.Status, to) {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type memConfirmations struct {
	mu   sync.Mutex
	rows map[string]ConfirmationRecord
}

func newMemConfirmations() *memConfirmations {
	return &memConfirmations{rows: make(map[string]ConfirmationRecord)}
}

func (r *memConfirmations) InsertTx(_ *sql.Tx, rec ConfirmationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// same conflict behavior as the table: first row wins
	if _, exists := r.rows[rec.BuyOrder]; !exists {
		r.rows[rec.BuyOrder] = rec
	}
	return nil
}

func (r *memConfirmations) GetByBuyOrder(buyOrder string) (ConfirmationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.rows[buyOrder]; ok {
		return rec, nil
	}
	return ConfirmationRecord{}, sql.ErrNoRows
}

type settleFixture struct {
	mock          sqlmock.Sqlmock
	gateway       *fakeGateway
	orders        *memOrderRepo
	confirmations *memConfirmations
	expiries      *expiry.InMemoryRepository
	outbox        *outbox.InMemoryRepository
	service       *Service
}

func newSettleFixture(t *testing.T, ord order.Order, items []order.Item, gw *fakeGateway) *settleFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	orders := newMemOrderRepo(ord)
	orders.items[ord.ID] = items

	f := &settleFixture{
		mock:          mock,
		gateway:       gw,
		orders:        orders,
		confirmations: newMemConfirmations(),
		expiries:      expiry.NewInMemoryRepository(),
		outbox:        outbox.NewInMemoryRepository(),
	}
	customers := customer.NewInMemoryRepository([]customer.Customer{
		{ID: 42, Email: "buyer@example.com", FirstName: "Ana", LastName: "Rojas"},
	})
	products := product.NewInMemoryRepository([]product.Product{
		{ID: 7, SKU: "SKU-7", Name: "Dry food 3kg", Price: 1000},
	})
	f.service = NewService(db, gw, orders, customers, products, f.confirmations,
		f.expiries, f.outbox, "ops@example.com", slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func pendingOrder() order.Order {
	return order.Order{
		ID:           1,
		BuyOrder:     "ORD-1",
		CustomerID:   42,
		Subtotal:     2000,
		ShippingCost: 500,
		Total:        2500,
		Status:       order.StatusPending,
	}
}

func TestSettle_TransitionsAndQueuesSideEffects(t *testing.T) {
	gw := &fakeGateway{confirmation: Confirmation{
		BuyOrder: "ORD-1", Amount: 2500, Status: "AUTHORIZED", AuthorizationCode: "1213", CardLast4: "6623",
	}}
	f := newSettleFixture(t, pendingOrder(), []order.Item{{OrderID: 1, ProductID: 7, Quantity: 2, UnitPrice: 1000}}, gw)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	ord, err := f.service.Settle(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ord.Status != order.StatusProcessing {
		t.Fatalf("expected processing, got %s", ord.Status)
	}

	if _, err := f.confirmations.GetByBuyOrder("ORD-1"); err != nil {
		t.Fatal("confirmation row must be stored")
	}

	byType := map[string]int{}
	for _, e := range f.outbox.All() {
		byType[e.EventType]++
	}
	if byType[outbox.EventTypeStockSync] != 1 {
		t.Fatalf("expected one stock sync event, got %d", byType[outbox.EventTypeStockSync])
	}
	if byType[outbox.EventTypeOrderEmail] != 1 || byType[outbox.EventTypeOperatorEmail] != 1 {
		t.Fatalf("expected customer and operator emails, got %+v", byType)
	}
	if byType[outbox.EventTypeOrderSettled] != 1 {
		t.Fatalf("expected lifecycle event, got %+v", byType)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSettle_DuplicateConfirmationIsIdempotent(t *testing.T) {
	gw := &fakeGateway{confirmation: Confirmation{BuyOrder: "ORD-1", Amount: 2500, Status: "AUTHORIZED"}}
	f := newSettleFixture(t, pendingOrder(), []order.Item{{OrderID: 1, ProductID: 7, Quantity: 2, UnitPrice: 1000}}, gw)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	if _, err := f.service.Settle(context.Background(), "tok-1"); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	firstCount := len(f.outbox.All())

	ord, err := f.service.Settle(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("duplicate settle must succeed, got %v", err)
	}
	if ord.Status != order.StatusProcessing {
		t.Fatalf("expected processing, got %s", ord.Status)
	}
	if len(f.outbox.All()) != firstCount {
		t.Fatalf("duplicate settle must not enqueue more events: %d vs %d", len(f.outbox.All()), firstCount)
	}
}

func TestSettle_GatewayFailureLeavesOrderPending(t *testing.T) {
	gw := &fakeGateway{commitErr: errors.New("gateway timeout")}
	f := newSettleFixture(t, pendingOrder(), nil, gw)

	_, err := f.service.Settle(context.Background(), "tok-1")
	if !errors.Is(err, ErrPaymentConfirmation) {
		t.Fatalf("expected ErrPaymentConfirmation, got %v", err)
	}

	ord, _ := f.orders.GetByID(1)
	if ord.Status != order.StatusPending {
		t.Fatalf("order must stay pending, got %s", ord.Status)
	}
	if len(f.outbox.All()) != 0 {
		t.Fatal("no side effect may be queued on gateway failure")
	}
}

func TestSettle_UnauthorizedPayment(t *testing.T) {
	gw := &fakeGateway{confirmation: Confirmation{BuyOrder: "ORD-1", Status: "FAILED"}}
	f := newSettleFixture(t, pendingOrder(), nil, gw)

	_, err := f.service.Settle(context.Background(), "tok-1")
	if !errors.Is(err, ErrPaymentConfirmation) {
		t.Fatalf("expected ErrPaymentConfirmation, got %v", err)
	}
	ord, _ := f.orders.GetByID(1)
	if ord.Status != order.StatusPending {
		t.Fatalf("order must stay pending, got %s", ord.Status)
	}
}

func TestSettle_CancelledOrderLosesRace(t *testing.T) {
	cancelled := pendingOrder()
	cancelled.Status = order.StatusCancelled
	gw := &fakeGateway{confirmation: Confirmation{BuyOrder: "ORD-1", Amount: 2500, Status: "AUTHORIZED"}}
	f := newSettleFixture(t, cancelled, nil, gw)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.service.Settle(context.Background(), "tok-1")
	if !errors.Is(err, ErrOrderCancelled) {
		t.Fatalf("expected ErrOrderCancelled, got %v", err)
	}

	ord, _ := f.orders.GetByID(1)
	if ord.Status != order.StatusCancelled {
		t.Fatalf("order must stay cancelled, got %s", ord.Status)
	}
	if len(f.outbox.All()) != 0 {
		t.Fatal("no side effect may be queued for a cancelled order")
	}
	// the transaction commits with only the payment row in it: the
	// captured funds need a reconciliation record even though the order
	// stays cancelled
	if _, err := f.confirmations.GetByBuyOrder("ORD-1"); err != nil {
		t.Fatal("confirmation row must survive for reconciliation")
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateTransaction_OnlyPendingOrdersArePayable(t *testing.T) {
	processing := pendingOrder()
	processing.Status = order.StatusProcessing
	gw := &fakeGateway{createTx: Transaction{Token: "tok-1", RedirectURL: "https://pay.example/tok-1"}}
	f := newSettleFixture(t, processing, nil, gw)

	if _, err := f.service.CreateTransaction(context.Background(), "ORD-1", "sess", "http://return"); err == nil {
		t.Fatal("expected error for a non-pending order")
	}
}

func TestCreateTransaction_ReturnsGatewayRedirect(t *testing.T) {
	gw := &fakeGateway{createTx: Transaction{Token: "tok-1", RedirectURL: "https://pay.example/tok-1"}}
	f := newSettleFixture(t, pendingOrder(), nil, gw)

	tx, err := f.service.CreateTransaction(context.Background(), "ORD-1", "sess", "http://return")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Token != "tok-1" || tx.RedirectURL == "" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
}
