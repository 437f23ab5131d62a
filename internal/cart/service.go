package cart

import (
	"context"
	"errors"

	"github.com/fbarrios/storefront-backend/internal/product"
	"github.com/fbarrios/storefront-backend/internal/stock"
)

// Service orchestrates cart operations. Prices always come from the
// catalog and availability from the stock ledger; the client only sends
// product ids and quantities.
type Service struct {
	repo     Repository
	guests   GuestStore
	products product.Repository
	stocks   stock.Repository
}

func NewService(repo Repository, guests GuestStore, products product.Repository, stocks stock.Repository) *Service {
	return &Service{repo: repo, guests: guests, products: products, stocks: stocks}
}

func (s *Service) Get(customerID int) (Cart, error) {
	if customerID <= 0 {
		return Cart{}, ErrNotFound
	}
	return s.repo.GetOrCreate(customerID)
}

// AddLine adjusts a product's quantity by delta (negative removes). The
// new quantity is validated against live availability before anything is
// written.
func (s *Service) AddLine(customerID, productID, delta int) (Cart, error) {
	if customerID <= 0 || productID <= 0 {
		return Cart{}, ErrNotFound
	}

	c, err := s.repo.GetOrCreate(customerID)
	if err != nil {
		return Cart{}, err
	}
	if delta == 0 {
		return c, nil
	}

	p, err := s.products.GetByID(productID)
	if err != nil {
		return Cart{}, err
	}

	idx := -1
	for i, line := range c.Lines {
		if line.ProductID == productID {
			idx = i
			break
		}
	}

	newQty := delta
	if idx >= 0 {
		newQty = c.Lines[idx].Quantity + delta
	}

	switch {
	case newQty <= 0:
		if idx >= 0 {
			c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
		}
	default:
		rec, err := s.stocks.GetByProductID(productID)
		if err != nil && !errors.Is(err, stock.ErrNotFound) {
			return Cart{}, err
		}
		if err != nil || rec.Status != stock.StatusInStock || newQty > rec.AvailableQuantity {
			return Cart{}, &stock.InsufficientStockError{ProductID: productID}
		}
		line := Line{ProductID: productID, Quantity: newQty, UnitPrice: p.Price}
		if idx >= 0 {
			c.Lines[idx] = line
		} else {
			c.Lines = append(c.Lines, line)
		}
	}

	return s.repo.ReplaceLines(c)
}

// MergeGuest folds the session's redis cart into the customer's persisted
// cart and drops the guest copy. Called on the first authenticated
// interaction after login.
func (s *Service) MergeGuest(ctx context.Context, customerID int, sessionID string) (Cart, error) {
	if customerID <= 0 {
		return Cart{}, ErrNotFound
	}

	persisted, err := s.repo.GetOrCreate(customerID)
	if err != nil {
		return Cart{}, err
	}

	guest, err := s.guests.Get(ctx, sessionID)
	if errors.Is(err, ErrNoGuestCart) {
		return persisted, nil
	}
	if err != nil {
		return Cart{}, err
	}

	merged := Merge(persisted, guest)
	stored, err := s.repo.ReplaceLines(merged)
	if err != nil {
		return Cart{}, err
	}

	// best effort: a stale guest cart expires on its own anyway
	_ = s.guests.Delete(ctx, sessionID)
	return stored, nil
}

// Clear empties a customer's cart (after successful order placement).
func (s *Service) Clear(customerID int) error {
	if customerID <= 0 {
		return ErrNotFound
	}
	return s.repo.Clear(customerID)
}
