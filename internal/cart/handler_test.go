package cart

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"github.com/fbarrios/storefront-backend/internal/customer"
	"github.com/fbarrios/storefront-backend/internal/product"
	"github.com/fbarrios/storefront-backend/internal/stock"
)

func makeAppWithCartHandler(h *Handler) *fiber.App {
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

func newHandlerFixture() (*Handler, *memGuestStore) {
	products := product.NewInMemoryRepository([]product.Product{
		{ID: 7, SKU: "SKU-7", Name: "Dry food 3kg", Price: 1000},
	})
	stocks := stock.NewInMemoryRepository([]stock.Record{
		{ProductID: 7, SKU: "SKU-7", AvailableQuantity: 5},
	})
	guests := newMemGuestStore()

	// user 9 owns customer row 42; the ids differ on purpose
	userID := 9
	resolver := customer.NewResolver(nil, customer.NewInMemoryRepository([]customer.Customer{
		{ID: 42, UserID: &userID, Email: "buyer@example.com"},
	}))
	return NewHandler(NewService(NewInMemoryRepository(), guests, products, stocks), resolver), guests
}

func TestCartRoutes_RequireAuth(t *testing.T) {
	h, _ := newHandlerFixture()
	app := makeAppWithCartHandler(h)

	req := httptest.NewRequest("GET", "/api/v1/cart", nil)
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated GET, got %d", res.StatusCode)
	}
}

func TestCartRoutes_AddAndGet(t *testing.T) {
	h, _ := newHandlerFixture()
	app := makeAppWithCartHandler(h)

	req := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(`{"productId":7,"quantity":2}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "9")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for add, got %d", res.StatusCode)
	}

	req2 := httptest.NewRequest("GET", "/api/v1/cart", nil)
	req2.Header.Set("X-User-ID", "9")
	res2, _ := app.Test(req2)
	body, _ := io.ReadAll(res2.Body)
	var c Cart
	if err := json.Unmarshal(body, &c); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if c.AmountTotal != 2000 || c.QuantityTotal != 2 {
		t.Fatalf("unexpected cart %+v", c)
	}
}

func TestCartRoutes_InsufficientStock(t *testing.T) {
	h, _ := newHandlerFixture()
	app := makeAppWithCartHandler(h)

	req := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(`{"productId":7,"quantity":9}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "9")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}

	body, _ := io.ReadAll(res.Body)
	var out map[string]any
	json.Unmarshal(body, &out)
	if out["productId"] != float64(7) {
		t.Fatalf("expected offending product id, got %+v", out)
	}
}

func TestCartRoutes_MergeGuestSession(t *testing.T) {
	h, guests := newHandlerFixture()
	app := makeAppWithCartHandler(h)

	guests.carts["sess-1"] = Cart{Lines: []Line{{ProductID: 7, Quantity: 2, UnitPrice: 1000}}}

	req := httptest.NewRequest("POST", "/api/v1/cart/merge", nil)
	req.Header.Set("X-User-ID", "9")
	req.Header.Set("X-Cart-Session", "sess-1")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	body, _ := io.ReadAll(res.Body)
	var c Cart
	if err := json.Unmarshal(body, &c); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 2 {
		t.Fatalf("expected merged guest lines, got %+v", c.Lines)
	}
}

func TestCartRoutes_Clear(t *testing.T) {
	h, _ := newHandlerFixture()
	app := makeAppWithCartHandler(h)

	add := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(`{"productId":7,"quantity":2}`))
	add.Header.Set("Content-Type", "application/json")
	add.Header.Set("X-User-ID", "9")
	app.Test(add)

	req := httptest.NewRequest("DELETE", "/api/v1/cart", nil)
	req.Header.Set("X-User-ID", "9")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.StatusCode)
	}
}
