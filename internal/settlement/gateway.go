package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Transaction is the gateway's answer to a payment creation: the token
// identifies the payment attempt, the URL is where the customer is
// redirected to pay.
type Transaction struct {
	Token       string `json:"token"`
	RedirectURL string `json:"url"`
}

// Confirmation is the gateway's commit response for a token.
type Confirmation struct {
	BuyOrder          string `json:"buy_order"`
	Amount            int    `json:"amount"`
	Status            string `json:"status"`
	AuthorizationCode string `json:"authorization_code"`
	CardLast4         string `json:"card_last4"`
}

// Authorized reports whether the gateway accepted the payment.
func (c Confirmation) Authorized() bool {
	return c.Status == "AUTHORIZED"
}

// Gateway is the payment collaborator. Create opens a payment for a buy
// order; Commit exchanges the return token for the confirmation record.
type Gateway interface {
	Create(ctx context.Context, buyOrder, sessionID string, amount int, returnURL string) (Transaction, error)
	Commit(ctx context.Context, token string) (Confirmation, error)
}

// Client implements Gateway against the gateway's REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type createRequest struct {
	BuyOrder  string `json:"buy_order"`
	SessionID string `json:"session_id"`
	Amount    int    `json:"amount"`
	ReturnURL string `json:"return_url"`
}

func (c *Client) Create(ctx context.Context, buyOrder, sessionID string, amount int, returnURL string) (Transaction, error) {
	body, err := json.Marshal(createRequest{BuyOrder: buyOrder, SessionID: sessionID, Amount: amount, ReturnURL: returnURL})
	if err != nil {
		return Transaction{}, fmt.Errorf("error marshaling create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rswebpaytransaction/api/webpay/v1.2/transactions", bytes.NewReader(body))
	if err != nil {
		return Transaction{}, fmt.Errorf("error creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Transaction{}, fmt.Errorf("error creating payment transaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Transaction{}, fmt.Errorf("payment create returned %d", resp.StatusCode)
	}

	var tx Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return Transaction{}, fmt.Errorf("error decoding create response: %w", err)
	}
	return tx, nil
}

func (c *Client) Commit(ctx context.Context, token string) (Confirmation, error) {
	url := fmt.Sprintf("%s/rswebpaytransaction/api/webpay/v1.2/transactions/%s", c.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, nil)
	if err != nil {
		return Confirmation{}, fmt.Errorf("error creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Confirmation{}, fmt.Errorf("error committing payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Confirmation{}, fmt.Errorf("payment commit returned %d", resp.StatusCode)
	}

	var conf Confirmation
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return Confirmation{}, fmt.Errorf("error decoding commit response: %w", err)
	}
	return conf, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Tbk-Api-Key-Secret", c.apiKey)
	}
}
