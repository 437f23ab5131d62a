package settlement

import (
	"database/sql"
	"time"
)

// ConfirmationRecord is the persisted payment confirmation, keyed by buy
// order so a duplicate gateway callback lands on the same row.
type ConfirmationRecord struct {
	BuyOrder          string    `json:"buyOrder"`
	OrderID           int       `json:"orderId"`
	Amount            int       `json:"amount"`
	AuthorizationCode string    `json:"authorizationCode"`
	CardLast4         string    `json:"cardLast4"`
	GatewayStatus     string    `json:"gatewayStatus"`
	CreatedAt         time.Time `json:"createdAt"`
}

type ConfirmationRepository interface {
	InsertTx(tx *sql.Tx, rec ConfirmationRecord) error
	GetByBuyOrder(buyOrder string) (ConfirmationRecord, error)
}

type PostgresConfirmationRepository struct {
	db *sql.DB
}

const (
	insertConfirmationQuery = `
        INSERT INTO payment_confirmations (buy_order, order_id, amount, authorization_code, card_last4, gateway_status)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (buy_order) DO NOTHING
    `
	getConfirmationQuery = `
        SELECT buy_order, order_id, amount, authorization_code, card_last4, gateway_status, created_at
        FROM payment_confirmations WHERE buy_order = $1
    `
)

func NewPostgresConfirmationRepository(db *sql.DB) *PostgresConfirmationRepository {
	return &PostgresConfirmationRepository{db: db}
}

func (r *PostgresConfirmationRepository) InsertTx(tx *sql.Tx, rec ConfirmationRecord) error {
	_, err := tx.Exec(insertConfirmationQuery,
		rec.BuyOrder, rec.OrderID, rec.Amount, rec.AuthorizationCode, rec.CardLast4, rec.GatewayStatus)
	return err
}

func (r *PostgresConfirmationRepository) GetByBuyOrder(buyOrder string) (ConfirmationRecord, error) {
	var rec ConfirmationRecord
	err := r.db.QueryRow(getConfirmationQuery, buyOrder).
		Scan(&rec.BuyOrder, &rec.OrderID, &rec.Amount, &rec.AuthorizationCode, &rec.CardLast4, &rec.GatewayStatus, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return ConfirmationRecord{}, sql.ErrNoRows
	}
	if err != nil {
		return ConfirmationRecord{}, err
	}
	return rec, nil
}
