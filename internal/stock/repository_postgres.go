package stock

import (
	"database/sql"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	// The quantity guard makes the decrement a single atomic
	// read-modify-write: two reservations racing for the last unit
	// cannot both match the WHERE clause.
	decrementQuery = `
        UPDATE stock
        SET available_quantity = available_quantity - $2,
            status = CASE WHEN available_quantity - $2 > 0 THEN 'instock' ELSE 'outofstock' END
        WHERE product_id = $1 AND available_quantity >= $2
    `
	incrementQuery = `
        UPDATE stock
        SET available_quantity = available_quantity + $2,
            status = CASE WHEN available_quantity + $2 > 0 THEN 'instock' ELSE 'outofstock' END
        WHERE product_id = $1
    `
	getQuery = `
        SELECT product_id, sku, available_quantity, status
        FROM stock
        WHERE product_id = ANY($1::int[])
        ORDER BY array_position($1::int[], product_id)
    `
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByProductID(productID int) (Record, error) {
	var rec Record
	err := r.db.QueryRow(`SELECT product_id, sku, available_quantity, status FROM stock WHERE product_id = $1`, productID).
		Scan(&rec.ProductID, &rec.SKU, &rec.AvailableQuantity, &rec.Status)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r *PostgresRepository) GetByProductIDs(productIDs []int) ([]Record, error) {
	if len(productIDs) == 0 {
		return []Record{}, nil
	}

	rows, err := r.db.Query(getQuery, pq.Array(productIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0, len(productIDs))
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ProductID, &rec.SKU, &rec.AvailableQuantity, &rec.Status); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) DecrementTx(tx *sql.Tx, productID, qty int) error {
	res, err := tx.Exec(decrementQuery, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &InsufficientStockError{ProductID: productID}
	}
	return nil
}

func (r *PostgresRepository) IncrementTx(tx *sql.Tx, productID, qty int) error {
	res, err := tx.Exec(incrementQuery, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
