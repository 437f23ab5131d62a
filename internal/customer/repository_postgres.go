package customer

import "database/sql"

type PostgresRepository struct {
	db *sql.DB
}

const (
	getByIDQuery = `
        SELECT customer_id, user_id, email, first_name, last_name, phone
        FROM customers WHERE customer_id = $1
    `
	getByUserIDQuery = `
        SELECT customer_id, user_id, email, first_name, last_name, phone
        FROM customers WHERE user_id = $1
    `
	insertQuery = `
        INSERT INTO customers (user_id, email, first_name, last_name, phone)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING customer_id
    `
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(id int) (Customer, error) {
	return r.scanOne(r.db.QueryRow(getByIDQuery, id))
}

func (r *PostgresRepository) GetByUserID(userID int) (Customer, error) {
	return r.scanOne(r.db.QueryRow(getByUserIDQuery, userID))
}

func (r *PostgresRepository) CreateTx(tx *sql.Tx, c Customer) (Customer, error) {
	err := tx.QueryRow(insertQuery, c.UserID, c.Email, c.FirstName, c.LastName, c.Phone).Scan(&c.ID)
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (Customer, error) {
	var c Customer
	var userID sql.NullInt64
	err := row.Scan(&c.ID, &userID, &c.Email, &c.FirstName, &c.LastName, &c.Phone)
	if err == sql.ErrNoRows {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, err
	}
	if userID.Valid {
		v := int(userID.Int64)
		c.UserID = &v
	}
	return c, nil
}
