package stock

import "fmt"

// Stock status values. Status is derived from the quantity on every
// mutation, never set independently.
const (
	StatusInStock    = "instock"
	StatusOutOfStock = "outofstock"
)

// Record is the authoritative available-quantity counter for a product.
type Record struct {
	ProductID         int    `json:"productId"`
	SKU               string `json:"sku"`
	AvailableQuantity int    `json:"availableQuantity"`
	Status            string `json:"status"`
}

// StatusFor recomputes the status for a quantity.
func StatusFor(qty int) string {
	if qty > 0 {
		return StatusInStock
	}
	return StatusOutOfStock
}

// InsufficientStockError reports which product could not cover the
// requested quantity.
type InsufficientStockError struct {
	ProductID int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}
