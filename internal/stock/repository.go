package stock

import (
	"database/sql"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("stock record not found")

// Repository provides access to the stock ledger. Decrement and Increment
// run inside the caller's transaction so a reservation and its order are
// committed (or rolled back) as one unit.
type Repository interface {
	GetByProductID(productID int) (Record, error)
	GetByProductIDs(productIDs []int) ([]Record, error)
	DecrementTx(tx *sql.Tx, productID, qty int) error
	IncrementTx(tx *sql.Tx, productID, qty int) error
}

// InMemoryRepository is used for tests and local scenarios. The tx argument
// is ignored; mutations are guarded by the mutex instead.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[int]Record
}

func NewInMemoryRepository(seed []Record) *InMemoryRepository {
	r := &InMemoryRepository{records: make(map[int]Record, len(seed))}
	for _, rec := range seed {
		rec.Status = StatusFor(rec.AvailableQuantity)
		r.records[rec.ProductID] = rec
	}
	return r
}

func (r *InMemoryRepository) GetByProductID(productID int) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[productID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *InMemoryRepository) GetByProductIDs(productIDs []int) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(productIDs))
	for _, id := range productIDs {
		if rec, ok := r.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) DecrementTx(_ *sql.Tx, productID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[productID]
	if !ok {
		return ErrNotFound
	}
	if rec.AvailableQuantity < qty {
		return &InsufficientStockError{ProductID: productID}
	}
	rec.AvailableQuantity -= qty
	rec.Status = StatusFor(rec.AvailableQuantity)
	r.records[productID] = rec
	return nil
}

func (r *InMemoryRepository) IncrementTx(_ *sql.Tx, productID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[productID]
	if !ok {
		return ErrNotFound
	}
	rec.AvailableQuantity += qty
	rec.Status = StatusFor(rec.AvailableQuantity)
	r.records[productID] = rec
	return nil
}
