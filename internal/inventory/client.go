package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Service is the external inventory system the confirmed stock decrement
// is replayed to. SKU strings are the cross-system join key. The caller
// supplies the idempotency key; it must be stable across redeliveries of
// the same decrement so the remote side can deduplicate.
type Service interface {
	VariantIDBySKU(ctx context.Context, sku string) (int64, error)
	DecrementStock(ctx context.Context, sku string, quantity int, idempotencyKey string) error
}

// Client talks to the inventory service over HTTP. Decrements carry the
// caller's idempotency key so at-least-once delivery cannot
// double-decrement.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type variantResponse struct {
	ID int64 `json:"id"`
}

func (c *Client) VariantIDBySKU(ctx context.Context, sku string) (int64, error) {
	url := fmt.Sprintf("%s/variants?sku=%s", c.baseURL, sku)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error fetching variant for sku %s: %w", sku, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("variant lookup for sku %s returned %d", sku, resp.StatusCode)
	}

	var v variantResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return 0, fmt.Errorf("error decoding variant response: %w", err)
	}
	return v.ID, nil
}

type decrementRequest struct {
	VariantID int64  `json:"variant_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
}

func (c *Client) DecrementStock(ctx context.Context, sku string, quantity int, idempotencyKey string) error {
	variantID, err := c.VariantIDBySKU(ctx, sku)
	if err != nil {
		return err
	}

	body, err := json.Marshal(decrementRequest{VariantID: variantID, SKU: sku, Quantity: quantity})
	if err != nil {
		return fmt.Errorf("error marshaling decrement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stock/decrement", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error calling stock decrement for sku %s: %w", sku, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("stock decrement for sku %s returned %d", sku, resp.StatusCode)
	}
	return nil
}
