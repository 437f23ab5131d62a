package cart

import "sort"

// Line is one product in a cart. TotalPrice is always recomputed from
// quantity and unit price, never trusted from the client.
type Line struct {
	ProductID  int `json:"productId"`
	Quantity   int `json:"quantity"`
	UnitPrice  int `json:"unitPrice"`
	TotalPrice int `json:"totalPrice"`
}

// Cart holds the line items for one customer. A persisted cart is never
// deleted, only emptied; guest carts live in redis with a TTL.
type Cart struct {
	ID            int    `json:"cartId,omitempty"`
	CustomerID    int    `json:"customerId,omitempty"`
	Lines         []Line `json:"lines"`
	QuantityTotal int    `json:"quantityTotal"`
	AmountTotal   int    `json:"amountTotal"`
}

// Recompute refreshes line totals and cart aggregates.
func (c *Cart) Recompute() {
	qty, amount := 0, 0
	for i := range c.Lines {
		c.Lines[i].TotalPrice = c.Lines[i].Quantity * c.Lines[i].UnitPrice
		qty += c.Lines[i].Quantity
		amount += c.Lines[i].TotalPrice
	}
	c.QuantityTotal = qty
	c.AmountTotal = amount
}

// Merge unions the ephemeral cart into the persisted one, keyed by product
// id. Quantities add up for shared products; the persisted line's unit
// price wins because it is the source of truth once a customer
// authenticates. The result does not depend on iteration order.
func Merge(persisted, ephemeral Cart) Cart {
	byProduct := make(map[int]Line, len(persisted.Lines)+len(ephemeral.Lines))
	for _, line := range persisted.Lines {
		byProduct[line.ProductID] = line
	}
	for _, line := range ephemeral.Lines {
		if existing, ok := byProduct[line.ProductID]; ok {
			existing.Quantity += line.Quantity
			byProduct[line.ProductID] = existing
			continue
		}
		byProduct[line.ProductID] = line
	}

	merged := Cart{
		ID:         persisted.ID,
		CustomerID: persisted.CustomerID,
		Lines:      make([]Line, 0, len(byProduct)),
	}
	for _, line := range byProduct {
		merged.Lines = append(merged.Lines, line)
	}
	sort.Slice(merged.Lines, func(i, j int) bool {
		return merged.Lines[i].ProductID < merged.Lines[j].ProductID
	})
	merged.Recompute()
	return merged
}
