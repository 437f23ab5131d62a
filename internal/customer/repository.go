package customer

import (
	"database/sql"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("customer not found")

type Repository interface {
	GetByID(id int) (Customer, error)
	GetByUserID(userID int) (Customer, error)
	// CreateTx inserts a customer inside the caller's transaction so a
	// guest row never outlives a failed order placement.
	CreateTx(tx *sql.Tx, c Customer) (Customer, error)
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu        sync.RWMutex
	customers []Customer
	nextID    int
}

func NewInMemoryRepository(seed []Customer) *InMemoryRepository {
	repo := &InMemoryRepository{customers: make([]Customer, 0, len(seed)), nextID: 1}
	maxID := 0
	for _, c := range seed {
		repo.customers = append(repo.customers, c)
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	repo.nextID = maxID + 1
	return repo
}

func (r *InMemoryRepository) GetByID(id int) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (r *InMemoryRepository) GetByUserID(userID int) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.customers {
		if c.UserID != nil && *c.UserID == userID {
			return c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (r *InMemoryRepository) CreateTx(_ *sql.Tx, c Customer) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	}
	r.customers = append(r.customers, c)
	return c, nil
}
