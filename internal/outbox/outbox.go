package outbox

import "time"

// Event types drained by the poller. Stock syncs and emails call external
// collaborators; the order.* types are lifecycle events for the broker.
const (
	EventTypeStockSync     = "stock_sync"
	EventTypeOrderEmail    = "order_email"
	EventTypeOperatorEmail = "operator_email"
	EventTypeOrderPlaced   = "order.placed"
	EventTypeOrderSettled  = "order.settled"
	EventTypeOrderCanceled = "order.cancelled"
)

// Event is one pending side effect, written in the same transaction as
// the state change that caused it and delivered at least once afterwards.
type Event struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	Attempts    int
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

// StockSyncPayload replays a confirmed decrement to the external
// inventory service, joined by SKU.
type StockSyncPayload struct {
	OrderID  int    `json:"order_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// EmailLine is one denormalized order line for notification rendering.
type EmailLine struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int    `json:"unit_price"`
}

// EmailPayload carries everything needed to render and send the order
// confirmation without touching the database again.
type EmailPayload struct {
	To           string      `json:"to"`
	CustomerName string      `json:"customer_name"`
	BuyOrder     string      `json:"buy_order"`
	Subtotal     int         `json:"subtotal"`
	ShippingCost int         `json:"shipping_cost"`
	Total        int         `json:"total"`
	Lines        []EmailLine `json:"lines"`
}

// LifecyclePayload is published to the order-events topic.
type LifecyclePayload struct {
	OrderID    int       `json:"order_id"`
	BuyOrder   string    `json:"buy_order"`
	CustomerID int       `json:"customer_id"`
	Total      int       `json:"total"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}
