package outbox

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// Repository persists pending side effects. InsertTx runs inside the
// transaction that produced the side effect, so intent is never lost
// between a commit and the dispatch.
type Repository interface {
	InsertTx(tx *sql.Tx, aggregateID, eventType string, payload []byte) error
	Unprocessed(ctx context.Context, limit int) ([]Event, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

type PostgresRepository struct {
	db *sql.DB
}

const (
	insertEventQuery = `
        INSERT INTO outbox_events (aggregate_id, event_type, payload)
        VALUES ($1,$2,$3)
    `
	unprocessedQuery = `
        SELECT id, aggregate_id, event_type, payload, attempts, created_at
        FROM outbox_events
        WHERE processed_at IS NULL
        ORDER BY created_at
        LIMIT $1
    `
	markProcessedQuery = `UPDATE outbox_events SET processed_at = $2 WHERE id = $1`
	markFailedQuery    = `UPDATE outbox_events SET attempts = attempts + 1 WHERE id = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) InsertTx(tx *sql.Tx, aggregateID, eventType string, payload []byte) error {
	_, err := tx.Exec(insertEventQuery, aggregateID, eventType, payload)
	return err
}

func (r *PostgresRepository) Unprocessed(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, unprocessedQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *PostgresRepository) MarkProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, markProcessedQuery, id, time.Now().UTC())
	return err
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, markFailedQuery, id)
	return err
}

// InMemoryRepository is used for tests.
type InMemoryRepository struct {
	mu     sync.Mutex
	events []Event
	nextID int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

func (r *InMemoryRepository) InsertTx(_ *sql.Tx, aggregateID, eventType string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		ID:          r.nextID,
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	})
	r.nextID++
	return nil
}

func (r *InMemoryRepository) Unprocessed(_ context.Context, limit int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, limit)
	for _, e := range r.events {
		if e.ProcessedAt == nil {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *InMemoryRepository) MarkProcessed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].ID == id {
			now := time.Now().UTC()
			r.events[i].ProcessedAt = &now
			return nil
		}
	}
	return nil
}

func (r *InMemoryRepository) MarkFailed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].ID == id {
			r.events[i].Attempts++
			return nil
		}
	}
	return nil
}

// All returns a copy of every stored event (test helper).
func (r *InMemoryRepository) All() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
