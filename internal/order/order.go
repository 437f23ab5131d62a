package order

import "time"

// Order status values. Transitions only move forward:
// pending -> processing -> fulfilled, or pending -> cancelled.
// A cancelled timer fire never overrides processing; the conditional
// updates in the repository enforce that.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCancelled  = "cancelled"
	StatusFulfilled  = "fulfilled"
)

// CanTransition reports whether an order may move between two statuses.
func CanTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusFulfilled
	default:
		return false
	}
}

// Order is a purchase placed by a customer. BuyOrder is the external
// reference handed to the payment gateway.
type Order struct {
	ID           int       `json:"orderId"`
	BuyOrder     string    `json:"buyOrder"`
	CustomerID   int       `json:"customerId"`
	AddressID    *int      `json:"addressId,omitempty"`
	Subtotal     int       `json:"subtotal"`
	ShippingCost int       `json:"shippingCost"`
	Total        int       `json:"total"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Item is one product line of an order. Immutable once written.
type Item struct {
	OrderID    int `json:"orderId"`
	ProductID  int `json:"productId"`
	Quantity   int `json:"quantity"`
	UnitPrice  int `json:"unitPrice"`
	TotalPrice int `json:"totalPrice"`
}
