package cart

import (
	"errors"
	"sync"
)

var ErrNotFound = errors.New("cart not found")

// Repository provides access to persisted carts. GetOrCreate has upsert
// semantics: one cart per customer, created lazily on first use.
type Repository interface {
	GetOrCreate(customerID int) (Cart, error)
	// ReplaceLines swaps the cart's whole line set in one transaction
	// (delete-then-reinsert) so an interrupted write never leaves a
	// partial cart behind.
	ReplaceLines(c Cart) (Cart, error)
	Clear(customerID int) error
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu     sync.RWMutex
	carts  map[int]Cart // customerID -> cart
	nextID int
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{carts: make(map[int]Cart), nextID: 1}
}

func (r *InMemoryRepository) GetOrCreate(customerID int) (Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.carts[customerID]; ok {
		return c, nil
	}
	c := Cart{ID: r.nextID, CustomerID: customerID, Lines: []Line{}}
	r.nextID++
	r.carts[customerID] = c
	return c, nil
}

func (r *InMemoryRepository) ReplaceLines(c Cart) (Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.carts[c.CustomerID]
	if !ok {
		return Cart{}, ErrNotFound
	}
	stored.Lines = append([]Line(nil), c.Lines...)
	stored.Recompute()
	r.carts[c.CustomerID] = stored
	return stored, nil
}

func (r *InMemoryRepository) Clear(customerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.carts[customerID]
	if !ok {
		return ErrNotFound
	}
	stored.Lines = []Line{}
	stored.Recompute()
	r.carts[customerID] = stored
	return nil
}
