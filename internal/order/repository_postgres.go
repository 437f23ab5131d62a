package order

import (
	"database/sql"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	insertOrderQuery = `
        INSERT INTO orders (buy_order, customer_id, address_id, subtotal, shipping_cost, total, status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING order_id
    `
	insertItemQuery = `
        INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
        VALUES ($1,$2,$3,$4,$5)
    `
	selectOrderQuery = `
        SELECT order_id, buy_order, customer_id, address_id, subtotal, shipping_cost, total, status, created_at
        FROM orders
    `
	selectItemsQuery = `
        SELECT order_id, product_id, quantity, unit_price, total_price
        FROM order_items WHERE order_id = $1 ORDER BY product_id
    `
	// Both transitions are conditional on the current status so the
	// settlement handler and the compensation timer can never both act
	// on the same order.
	markProcessingQuery = `UPDATE orders SET status = 'processing' WHERE order_id = $1 AND status = 'pending'`
	markCancelledQuery  = `UPDATE orders SET status = 'cancelled' WHERE order_id = $1 AND status = 'pending'`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateTx(tx *sql.Tx, ord Order) (Order, error) {
	err := tx.QueryRow(insertOrderQuery,
		ord.BuyOrder, ord.CustomerID, ord.AddressID, ord.Subtotal, ord.ShippingCost, ord.Total, ord.Status, ord.CreatedAt).
		Scan(&ord.ID)
	if err != nil {
		return Order{}, err
	}
	return ord, nil
}

func (r *PostgresRepository) AddItemsTx(tx *sql.Tx, items []Item) error {
	for _, item := range items {
		if _, err := tx.Exec(insertItemQuery, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(id int) (Order, error) {
	return scanOrder(r.db.QueryRow(selectOrderQuery+` WHERE order_id = $1`, id))
}

func (r *PostgresRepository) GetByBuyOrder(buyOrder string) (Order, error) {
	return scanOrder(r.db.QueryRow(selectOrderQuery+` WHERE buy_order = $1`, buyOrder))
}

func (r *PostgresRepository) ItemsByOrderID(orderID int) ([]Item, error) {
	rows, err := r.db.Query(selectItemsQuery, orderID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func (r *PostgresRepository) ItemsByOrderIDTx(tx *sql.Tx, orderID int) ([]Item, error) {
	rows, err := tx.Query(selectItemsQuery, orderID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func (r *PostgresRepository) ListByCustomer(customerID int) ([]Order, error) {
	rows, err := r.db.Query(selectOrderQuery+` WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var ord Order
		var addressID sql.NullInt64
		if err := rows.Scan(&ord.ID, &ord.BuyOrder, &ord.CustomerID, &addressID,
			&ord.Subtotal, &ord.ShippingCost, &ord.Total, &ord.Status, &ord.CreatedAt); err != nil {
			return nil, err
		}
		if addressID.Valid {
			v := int(addressID.Int64)
			ord.AddressID = &v
		}
		orders = append(orders, ord)
	}
	return orders, rows.Err()
}

func (r *PostgresRepository) GetStatusTx(tx *sql.Tx, orderID int) (string, error) {
	var status string
	err := tx.QueryRow(`SELECT status FROM orders WHERE order_id = $1`, orderID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return status, err
}

func (r *PostgresRepository) MarkProcessingTx(tx *sql.Tx, orderID int) (bool, error) {
	return execConditional(tx, markProcessingQuery, orderID)
}

func (r *PostgresRepository) MarkCancelledTx(tx *sql.Tx, orderID int) (bool, error) {
	return execConditional(tx, markCancelledQuery, orderID)
}

func execConditional(tx *sql.Tx, query string, orderID int) (bool, error) {
	res, err := tx.Exec(query, orderID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func scanOrder(row *sql.Row) (Order, error) {
	var ord Order
	var addressID sql.NullInt64
	err := row.Scan(&ord.ID, &ord.BuyOrder, &ord.CustomerID, &addressID,
		&ord.Subtotal, &ord.ShippingCost, &ord.Total, &ord.Status, &ord.CreatedAt)
	if err == sql.ErrNoRows {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if addressID.Valid {
		v := int(addressID.Int64)
		ord.AddressID = &v
	}
	return ord, nil
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	defer rows.Close()
	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
