package cart

import (
	"database/sql"
	"time"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	upsertCartQuery = `
        INSERT INTO carts (customer_id) VALUES ($1)
        ON CONFLICT (customer_id) DO UPDATE SET customer_id = EXCLUDED.customer_id
        RETURNING cart_id
    `
	selectLinesQuery = `
        SELECT product_id, quantity, unit_price, total_price
        FROM cart_lines WHERE cart_id = $1 ORDER BY product_id
    `
	deleteLinesQuery = `DELETE FROM cart_lines WHERE cart_id = $1`
	insertLineQuery  = `
        INSERT INTO cart_lines (cart_id, product_id, quantity, unit_price, total_price)
        VALUES ($1,$2,$3,$4,$5)
    `
	updateTotalsQuery = `
        UPDATE carts SET quantity_total = $2, amount_total = $3, updated_at = $4
        WHERE cart_id = $1
    `
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetOrCreate(customerID int) (Cart, error) {
	c := Cart{CustomerID: customerID, Lines: []Line{}}
	if err := r.db.QueryRow(upsertCartQuery, customerID).Scan(&c.ID); err != nil {
		return Cart{}, err
	}

	rows, err := r.db.Query(selectLinesQuery, c.ID)
	if err != nil {
		return Cart{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.UnitPrice, &line.TotalPrice); err != nil {
			return Cart{}, err
		}
		c.Lines = append(c.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Cart{}, err
	}
	c.Recompute()
	return c, nil
}

// ReplaceLines rewrites the full line set inside one transaction. The
// delete-then-reinsert avoids partial-write inconsistency if the process
// dies mid-update.
func (r *PostgresRepository) ReplaceLines(c Cart) (Cart, error) {
	c.Recompute()

	tx, err := r.db.Begin()
	if err != nil {
		return Cart{}, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(deleteLinesQuery, c.ID); err != nil {
		return Cart{}, err
	}
	for _, line := range c.Lines {
		if _, err := tx.Exec(insertLineQuery, c.ID, line.ProductID, line.Quantity, line.UnitPrice, line.TotalPrice); err != nil {
			return Cart{}, err
		}
	}
	if _, err := tx.Exec(updateTotalsQuery, c.ID, c.QuantityTotal, c.AmountTotal, time.Now().UTC()); err != nil {
		return Cart{}, err
	}

	if err := tx.Commit(); err != nil {
		return Cart{}, err
	}
	return c, nil
}

func (r *PostgresRepository) Clear(customerID int) error {
	c, err := r.GetOrCreate(customerID)
	if err != nil {
		return err
	}
	c.Lines = []Line{}
	_, err = r.ReplaceLines(c)
	return err
}
