package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fbarrios/storefront-backend/internal/customer"
	"github.com/fbarrios/storefront-backend/internal/expiry"
	"github.com/fbarrios/storefront-backend/internal/order"
	"github.com/fbarrios/storefront-backend/internal/outbox"
	"github.com/fbarrios/storefront-backend/internal/product"
)

var (
	// ErrPaymentConfirmation means the gateway round-trip failed or the
	// payment was not authorized. The order stays pending and remains
	// eligible for a later retry or for compensation.
	ErrPaymentConfirmation = errors.New("payment confirmation failed")
	// ErrOrderCancelled means the compensation timer won the race: the
	// reservation was already reverted when the confirmation arrived.
	ErrOrderCancelled = errors.New("order was cancelled before settlement")
)

// Service consumes the gateway's payment confirmation, flips the order to
// processing and queues the downstream propagation. The response to the
// gateway callback never waits for the propagation.
type Service struct {
	db            *sql.DB
	gateway       Gateway
	orders        order.Repository
	customers     customer.Repository
	products      product.Repository
	confirmations ConfirmationRepository
	expiries      expiry.Repository
	outbox        outbox.Repository
	operatorEmail string
	logger        *slog.Logger
}

func NewService(db *sql.DB, gateway Gateway, orders order.Repository, customers customer.Repository,
	products product.Repository, confirmations ConfirmationRepository, expiries expiry.Repository,
	ob outbox.Repository, operatorEmail string, logger *slog.Logger) *Service {
	return &Service{
		db:            db,
		gateway:       gateway,
		orders:        orders,
		customers:     customers,
		products:      products,
		confirmations: confirmations,
		expiries:      expiries,
		outbox:        ob,
		operatorEmail: operatorEmail,
		logger:        logger,
	}
}

// CreateTransaction opens a gateway payment for a pending order and
// returns the token plus the redirect URL the customer must visit.
func (s *Service) CreateTransaction(ctx context.Context, buyOrder, sessionID, returnURL string) (Transaction, error) {
	ord, err := s.orders.GetByBuyOrder(buyOrder)
	if err != nil {
		return Transaction{}, err
	}
	if ord.Status != order.StatusPending {
		return Transaction{}, fmt.Errorf("order %s is not payable in status %s", buyOrder, ord.Status)
	}
	return s.gateway.Create(ctx, ord.BuyOrder, sessionID, ord.Total, returnURL)
}

// Settle exchanges the gateway return token for a confirmation and
// transitions the order from pending to processing. A second call for an
// already-processing order is a harmless duplicate: the confirmation row
// upsert is a no-op and no downstream propagation is re-queued.
func (s *Service) Settle(ctx context.Context, token string) (order.Order, error) {
	conf, err := s.gateway.Commit(ctx, token)
	if err != nil {
		return order.Order{}, fmt.Errorf("%w: %v", ErrPaymentConfirmation, err)
	}

	ord, err := s.orders.GetByBuyOrder(conf.BuyOrder)
	if err != nil {
		return order.Order{}, err
	}

	if !conf.Authorized() {
		s.logger.Warn("payment not authorized", "buy_order", conf.BuyOrder, "gateway_status", conf.Status)
		return ord, ErrPaymentConfirmation
	}

	tx, err := s.db.Begin()
	if err != nil {
		return order.Order{}, err
	}
	defer tx.Rollback()

	if err := s.confirmations.InsertTx(tx, ConfirmationRecord{
		BuyOrder:          conf.BuyOrder,
		OrderID:           ord.ID,
		Amount:            conf.Amount,
		AuthorizationCode: conf.AuthorizationCode,
		CardLast4:         conf.CardLast4,
		GatewayStatus:     conf.Status,
	}); err != nil {
		return order.Order{}, err
	}

	transitioned, err := s.orders.MarkProcessingTx(tx, ord.ID)
	if err != nil {
		return order.Order{}, err
	}

	if !transitioned {
		status, err := s.orders.GetStatusTx(tx, ord.ID)
		if err != nil {
			return order.Order{}, err
		}
		switch status {
		case order.StatusProcessing, order.StatusFulfilled:
			// duplicate confirmation, keep the stored row and move on
			if err := tx.Commit(); err != nil {
				return order.Order{}, err
			}
			ord.Status = status
			s.logger.Info("duplicate settlement ignored", "buy_order", ord.BuyOrder)
			return ord, nil
		default:
			// the compensation timer won the race. The gateway has
			// already captured the funds, so the confirmation row must
			// survive for reconciliation and refund.
			if err := tx.Commit(); err != nil {
				return order.Order{}, err
			}
			s.logger.Warn("confirmation arrived for a cancelled order",
				"buy_order", ord.BuyOrder, "amount", conf.Amount)
			return order.Order{}, ErrOrderCancelled
		}
	}

	if err := s.enqueueSideEffectsTx(tx, ord, conf); err != nil {
		return order.Order{}, err
	}

	if err := s.expiries.DeleteTx(tx, ord.ID); err != nil {
		return order.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return order.Order{}, err
	}

	ord.Status = order.StatusProcessing
	s.logger.Info("order settled", "buy_order", ord.BuyOrder, "order_id", ord.ID, "amount", conf.Amount)
	return ord, nil
}

// enqueueSideEffectsTx writes the downstream propagation intent in the
// settlement transaction: one stock sync per item, the customer and
// operator emails, and the lifecycle event. The poller delivers them
// after commit, off the request path.
func (s *Service) enqueueSideEffectsTx(tx *sql.Tx, ord order.Order, conf Confirmation) error {
	items, err := s.orders.ItemsByOrderIDTx(tx, ord.ID)
	if err != nil {
		return err
	}

	ids := make([]int, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	prods, err := s.products.ListByIDs(ids)
	if err != nil {
		return err
	}
	byID := make(map[int]product.Product, len(prods))
	for _, p := range prods {
		byID[p.ID] = p
	}

	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			s.logger.Warn("no catalog entry for ordered product, skipping sync",
				"order_id", ord.ID, "product_id", item.ProductID)
			continue
		}
		payload, err := json.Marshal(outbox.StockSyncPayload{OrderID: ord.ID, SKU: p.SKU, Quantity: item.Quantity})
		if err != nil {
			return err
		}
		if err := s.outbox.InsertTx(tx, ord.BuyOrder, outbox.EventTypeStockSync, payload); err != nil {
			return err
		}
	}

	email := s.buildEmailPayload(ord, items, byID)
	if email.To != "" {
		payload, err := json.Marshal(email)
		if err != nil {
			return err
		}
		if err := s.outbox.InsertTx(tx, ord.BuyOrder, outbox.EventTypeOrderEmail, payload); err != nil {
			return err
		}
	}
	if s.operatorEmail != "" {
		operator := email
		operator.To = s.operatorEmail
		payload, err := json.Marshal(operator)
		if err != nil {
			return err
		}
		if err := s.outbox.InsertTx(tx, ord.BuyOrder, outbox.EventTypeOperatorEmail, payload); err != nil {
			return err
		}
	}

	lifecycle, err := json.Marshal(outbox.LifecyclePayload{
		OrderID:    ord.ID,
		BuyOrder:   ord.BuyOrder,
		CustomerID: ord.CustomerID,
		Total:      ord.Total,
		Status:     order.StatusProcessing,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.outbox.InsertTx(tx, ord.BuyOrder, outbox.EventTypeOrderSettled, lifecycle)
}

func (s *Service) buildEmailPayload(ord order.Order, items []order.Item, byID map[int]product.Product) outbox.EmailPayload {
	email := outbox.EmailPayload{
		BuyOrder:     ord.BuyOrder,
		Subtotal:     ord.Subtotal,
		ShippingCost: ord.ShippingCost,
		Total:        ord.Total,
	}

	cust, err := s.customers.GetByID(ord.CustomerID)
	if err != nil {
		s.logger.Warn("could not load customer for notification", "order_id", ord.ID, "error", err)
	} else {
		email.To = cust.Email
		email.CustomerName = cust.FullName()
	}

	for _, item := range items {
		name := fmt.Sprintf("product %d", item.ProductID)
		if p, ok := byID[item.ProductID]; ok {
			name = p.Name
		}
		email.Lines = append(email.Lines, outbox.EmailLine{
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return email
}
