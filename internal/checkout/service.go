package checkout

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fbarrios/storefront-backend/internal/address"
	"github.com/fbarrios/storefront-backend/internal/cart"
	"github.com/fbarrios/storefront-backend/internal/customer"
	"github.com/fbarrios/storefront-backend/internal/expiry"
	"github.com/fbarrios/storefront-backend/internal/order"
	"github.com/fbarrios/storefront-backend/internal/outbox"
	"github.com/fbarrios/storefront-backend/internal/stock"
)

// Armer schedules the compensation timer for a placed order.
type Armer interface {
	Arm(orderID int, ttl time.Duration)
}

// GuestInfo carries the contact and shipping details for an
// unauthenticated checkout.
type GuestInfo struct {
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	AddressDesc string
	AddressName string
}

// PlaceOrderRequest is the saga input. CustomerID zero means guest.
type PlaceOrderRequest struct {
	Lines        []cart.Line
	ShippingCost int
	CustomerID   int
	Guest        *GuestInfo
}

// Service runs the order placement saga: validate stock, reserve it and
// persist the order in one transaction, then arm the compensation timer.
type Service struct {
	db        *sql.DB
	orders    order.Repository
	stocks    stock.Repository
	customers customer.Repository
	addresses address.Repository
	expiries  expiry.Repository
	outbox    outbox.Repository
	scheduler Armer
	ttl       time.Duration
	logger    *slog.Logger
}

func NewService(db *sql.DB, orders order.Repository, stocks stock.Repository,
	customers customer.Repository, addresses address.Repository, expiries expiry.Repository,
	ob outbox.Repository, scheduler Armer, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		orders:    orders,
		stocks:    stocks,
		customers: customers,
		addresses: addresses,
		expiries:  expiries,
		outbox:    ob,
		scheduler: scheduler,
		ttl:       ttl,
		logger:    logger,
	}
}

// PlaceOrder validates the cart against live stock, then commits the
// order row, its items, the stock decrements and the expiry record as
// one transaction. Nothing persists if any step fails. On success the
// compensation timer is armed and the pending order returned.
func (s *Service) PlaceOrder(req PlaceOrderRequest) (order.Order, error) {
	if len(req.Lines) == 0 {
		return order.Order{}, ErrEmptyCart
	}
	for _, line := range req.Lines {
		if line.ProductID <= 0 || line.Quantity <= 0 || line.UnitPrice < 0 {
			return order.Order{}, fmt.Errorf("%w: product %d", ErrInvalidLine, line.ProductID)
		}
	}

	// fail fast before opening a transaction; the decrement below is
	// the real guard
	if err := s.precheckStock(req.Lines); err != nil {
		return order.Order{}, err
	}

	subtotal := 0
	for i := range req.Lines {
		req.Lines[i].TotalPrice = req.Lines[i].Quantity * req.Lines[i].UnitPrice
		subtotal += req.Lines[i].TotalPrice
	}
	total := subtotal + req.ShippingCost

	tx, err := s.db.Begin()
	if err != nil {
		return order.Order{}, err
	}
	defer tx.Rollback()

	cust, addressID, err := s.resolvePartyTx(tx, req)
	if err != nil {
		return order.Order{}, err
	}

	ord := order.Order{
		BuyOrder:     newBuyOrder(),
		CustomerID:   cust.ID,
		AddressID:    addressID,
		Subtotal:     subtotal,
		ShippingCost: req.ShippingCost,
		Total:        total,
		Status:       order.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	ord, err = s.orders.CreateTx(tx, ord)
	if err != nil {
		return order.Order{}, err
	}

	items := make([]order.Item, 0, len(req.Lines))
	for _, line := range req.Lines {
		items = append(items, order.Item{
			OrderID:    ord.ID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			TotalPrice: line.TotalPrice,
		})
	}
	if err := s.orders.AddItemsTx(tx, items); err != nil {
		return order.Order{}, err
	}

	// this is the reservation: a concurrent placement that drained the
	// stock makes the conditional decrement fail and the whole
	// transaction roll back
	for _, line := range req.Lines {
		if err := s.stocks.DecrementTx(tx, line.ProductID, line.Quantity); err != nil {
			return order.Order{}, err
		}
	}

	expiresAt := time.Now().UTC().Add(s.ttl)
	if err := s.expiries.InsertTx(tx, ord.ID, expiresAt); err != nil {
		return order.Order{}, err
	}

	payload, err := json.Marshal(outbox.LifecyclePayload{
		OrderID:    ord.ID,
		BuyOrder:   ord.BuyOrder,
		CustomerID: ord.CustomerID,
		Total:      ord.Total,
		Status:     order.StatusPending,
		OccurredAt: ord.CreatedAt,
	})
	if err != nil {
		return order.Order{}, err
	}
	if err := s.outbox.InsertTx(tx, ord.BuyOrder, outbox.EventTypeOrderPlaced, payload); err != nil {
		return order.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return order.Order{}, err
	}

	s.scheduler.Arm(ord.ID, s.ttl)
	s.logger.Info("order placed", "order_id", ord.ID, "buy_order", ord.BuyOrder,
		"total", ord.Total, "guest", cust.IsGuest(), "expires_at", expiresAt)
	return ord, nil
}

func (s *Service) precheckStock(lines []cart.Line) error {
	ids := make([]int, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	records, err := s.stocks.GetByProductIDs(ids)
	if err != nil {
		return err
	}
	byID := make(map[int]stock.Record, len(records))
	for _, rec := range records {
		byID[rec.ProductID] = rec
	}

	for _, line := range lines {
		rec, ok := byID[line.ProductID]
		if !ok || rec.Status != stock.StatusInStock || rec.AvailableQuantity < line.Quantity {
			return &stock.InsufficientStockError{ProductID: line.ProductID}
		}
	}
	return nil
}

// resolvePartyTx returns the customer (and shipping address for guests)
// the order belongs to. Guest rows are inserted in the saga transaction
// so a failed placement leaves nothing behind.
func (s *Service) resolvePartyTx(tx *sql.Tx, req PlaceOrderRequest) (customer.Customer, *int, error) {
	if req.CustomerID > 0 {
		cust, err := s.customers.GetByID(req.CustomerID)
		if err != nil {
			return customer.Customer{}, nil, err
		}
		return cust, nil, nil
	}

	if req.Guest == nil || req.Guest.Email == "" {
		return customer.Customer{}, nil, ErrGuestInfoMissing
	}

	guest, err := s.customers.CreateTx(tx, customer.Customer{
		Email:     req.Guest.Email,
		FirstName: req.Guest.FirstName,
		LastName:  req.Guest.LastName,
		Phone:     req.Guest.Phone,
	})
	if err != nil {
		return customer.Customer{}, nil, err
	}

	addr, err := s.addresses.CreateTx(tx, address.Address{
		CustomerID:  guest.ID,
		AddressDesc: req.Guest.AddressDesc,
		Phone:       req.Guest.Phone,
		AddressName: req.Guest.AddressName,
	})
	if err != nil {
		return customer.Customer{}, nil, err
	}

	return guest, &addr.AddressID, nil
}

func newBuyOrder() string {
	// gateway buy orders are capped in length, a trimmed uuid is enough
	id := uuid.NewString()
	return "ORD-" + id[:18]
}
