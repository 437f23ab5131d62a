package address

import "database/sql"

// Postgres repository stores shipping addresses with a foreign key to
// customers.
type PostgresRepository struct {
	db *sql.DB
}

const (
	insertAddressQuery = `
        INSERT INTO address (customer_id, address_desc, phone, address_name)
        VALUES ($1,$2,$3,$4)
        RETURNING address_id
    `
	getAddressQuery = `
        SELECT address_id, customer_id, address_desc, phone, address_name
        FROM address WHERE address_id = $1
    `
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(id int) (Address, error) {
	var a Address
	err := r.db.QueryRow(getAddressQuery, id).
		Scan(&a.AddressID, &a.CustomerID, &a.AddressDesc, &a.Phone, &a.AddressName)
	if err == sql.ErrNoRows {
		return Address{}, ErrNotFound
	}
	if err != nil {
		return Address{}, err
	}
	return a, nil
}

func (r *PostgresRepository) CreateTx(tx *sql.Tx, a Address) (Address, error) {
	err := tx.QueryRow(insertAddressQuery, a.CustomerID, a.AddressDesc, a.Phone, a.AddressName).
		Scan(&a.AddressID)
	if err != nil {
		return Address{}, err
	}
	return a, nil
}
