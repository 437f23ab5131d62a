package order

import (
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("order not found")

// Repository defines persistence operations for orders. The Tx variants
// run inside the caller's transaction: order row, items, stock decrements
// and the expiry record commit as one unit during placement, and the
// compensation path reads items and flips the status under the same
// transaction that restores stock.
type Repository interface {
	CreateTx(tx *sql.Tx, ord Order) (Order, error)
	AddItemsTx(tx *sql.Tx, items []Item) error

	GetByID(id int) (Order, error)
	GetByBuyOrder(buyOrder string) (Order, error)
	ItemsByOrderID(orderID int) ([]Item, error)
	ItemsByOrderIDTx(tx *sql.Tx, orderID int) ([]Item, error)
	ListByCustomer(customerID int) ([]Order, error)

	// GetStatusTx reads the current status under the caller's
	// transaction, used to tell a duplicate settlement apart from a
	// lost race against the compensation timer.
	GetStatusTx(tx *sql.Tx, orderID int) (string, error)

	// MarkProcessingTx performs the conditional settlement transition.
	// It reports false when the order was not pending anymore, which the
	// caller must treat as "someone else already acted on this order".
	MarkProcessingTx(tx *sql.Tx, orderID int) (bool, error)
	// MarkCancelledTx is the compensation counterpart, also guarded by
	// status = pending.
	MarkCancelledTx(tx *sql.Tx, orderID int) (bool, error)
}
