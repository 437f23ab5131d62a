package expiry

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// Reservation is the durable expiry record for a pending order. It is
// written in the placement transaction, so a crash before the in-process
// timer is armed cannot strand a reservation: the sweep will find it.
type Reservation struct {
	OrderID   int
	ExpiresAt time.Time
}

type Repository interface {
	InsertTx(tx *sql.Tx, orderID int, expiresAt time.Time) error
	DeleteTx(tx *sql.Tx, orderID int) error
	// ListDue returns reservations whose deadline has passed.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Reservation, error)
}

type PostgresRepository struct {
	db *sql.DB
}

const (
	insertExpiryQuery = `INSERT INTO reservation_expiries (order_id, expires_at) VALUES ($1,$2)`
	deleteExpiryQuery = `DELETE FROM reservation_expiries WHERE order_id = $1`
	listDueQuery      = `
        SELECT order_id, expires_at FROM reservation_expiries
        WHERE expires_at <= $1 ORDER BY expires_at LIMIT $2
    `
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) InsertTx(tx *sql.Tx, orderID int, expiresAt time.Time) error {
	_, err := tx.Exec(insertExpiryQuery, orderID, expiresAt)
	return err
}

func (r *PostgresRepository) DeleteTx(tx *sql.Tx, orderID int) error {
	_, err := tx.Exec(deleteExpiryQuery, orderID)
	return err
}

func (r *PostgresRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]Reservation, error) {
	rows, err := r.db.QueryContext(ctx, listDueQuery, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Reservation, 0)
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.OrderID, &res.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// InMemoryRepository is used for tests.
type InMemoryRepository struct {
	mu           sync.Mutex
	reservations map[int]time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{reservations: make(map[int]time.Time)}
}

func (r *InMemoryRepository) InsertTx(_ *sql.Tx, orderID int, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations[orderID] = expiresAt
	return nil
}

func (r *InMemoryRepository) DeleteTx(_ *sql.Tx, orderID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reservations, orderID)
	return nil
}

func (r *InMemoryRepository) ListDue(_ context.Context, now time.Time, limit int) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reservation, 0)
	for id, at := range r.reservations {
		if !at.After(now) {
			out = append(out, Reservation{OrderID: id, ExpiresAt: at})
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
