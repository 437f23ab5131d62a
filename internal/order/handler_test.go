package order

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"github.com/fbarrios/storefront-backend/internal/customer"
)

type memRepo struct {
	mu     sync.Mutex
	orders []Order
	items  map[int][]Item
}

func (r *memRepo) CreateTx(_ *sql.Tx, ord Order) (Order, error) { return ord, nil }
func (r *memRepo) AddItemsTx(_ *sql.Tx, _ []Item) error         { return nil }

func (r *memRepo) GetByID(id int) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *memRepo) GetByBuyOrder(_ string) (Order, error) { return Order{}, ErrNotFound }

func (r *memRepo) ItemsByOrderID(orderID int) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[orderID], nil
}

func (r *memRepo) ItemsByOrderIDTx(_ *sql.Tx, orderID int) ([]Item, error) {
	return r.ItemsByOrderID(orderID)
}

func (r *memRepo) ListByCustomer(customerID int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memRepo) GetStatusTx(_ *sql.Tx, _ int) (string, error)    { return "", ErrNotFound }
func (r *memRepo) MarkProcessingTx(_ *sql.Tx, _ int) (bool, error) { return false, nil }
func (r *memRepo) MarkCancelledTx(_ *sql.Tx, _ int) (bool, error)  { return false, nil }

// user 9 owns customer row 42; the ids differ on purpose
func testResolver() *customer.Resolver {
	userID := 9
	return customer.NewResolver(nil, customer.NewInMemoryRepository([]customer.Customer{
		{ID: 42, UserID: &userID, Email: "buyer@example.com"},
	}))
}

func makeAppWithOrderHandler(h *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				claims := jwt.MapClaims{"user_id": id}
				c.Locals("user", &jwt.Token{Claims: claims})
			}
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	return app
}

func TestGetOrders_ListsOwnOrdersOnly(t *testing.T) {
	repo := &memRepo{
		orders: []Order{
			{ID: 1, BuyOrder: "ORD-1", CustomerID: 42, Total: 2500, Status: StatusProcessing},
			{ID: 2, BuyOrder: "ORD-2", CustomerID: 7, Total: 900, Status: StatusPending},
		},
		items: map[int][]Item{},
	}
	app := makeAppWithOrderHandler(NewHandler(repo, testResolver()))

	req := httptest.NewRequest("GET", "/api/v1/orders", nil)
	req.Header.Set("X-User-ID", "9")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	body, _ := io.ReadAll(res.Body)
	var out []Order
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(out) != 1 || out[0].BuyOrder != "ORD-1" {
		t.Fatalf("expected only customer 42's orders, got %+v", out)
	}
}

func TestGetOrder_HidesOtherCustomersOrders(t *testing.T) {
	repo := &memRepo{
		orders: []Order{{ID: 1, BuyOrder: "ORD-1", CustomerID: 7, Total: 900}},
		items:  map[int][]Item{},
	}
	app := makeAppWithOrderHandler(NewHandler(repo, testResolver()))

	req := httptest.NewRequest("GET", "/api/v1/orders/1", nil)
	req.Header.Set("X-User-ID", "9")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for another customer's order, got %d", res.StatusCode)
	}
}

func TestGetOrders_Unauthenticated(t *testing.T) {
	repo := &memRepo{items: map[int][]Item{}}
	app := makeAppWithOrderHandler(NewHandler(repo, testResolver()))

	req := httptest.NewRequest("GET", "/api/v1/orders", nil)
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}
