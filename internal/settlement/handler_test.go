package settlement

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/fbarrios/storefront-backend/internal/order"
)

func makeAppWithHandler(h *Handler) *fiber.App {
	app := fiber.New()
	h.RegisterPublicRoutes(app)
	return app
}

func TestPaymentReturn_MissingTokenMeansCanceled(t *testing.T) {
	gw := &fakeGateway{}
	f := newSettleFixture(t, pendingOrder(), nil, gw)
	app := makeAppWithHandler(NewHandler(f.service, "http://localhost/webpay/return"))

	req := httptest.NewRequest("GET", "/webpay/return", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(res.Body)
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if out["status"] != "canceled" {
		t.Fatalf("expected canceled status, got %v", out["status"])
	}
	if gw.commits != 0 {
		t.Fatal("gateway must not be called without a token")
	}
}

func TestPaymentReturn_SuccessfulSettlement(t *testing.T) {
	gw := &fakeGateway{confirmation: Confirmation{BuyOrder: "ORD-1", Amount: 2500, Status: "AUTHORIZED"}}
	f := newSettleFixture(t, pendingOrder(), []order.Item{{OrderID: 1, ProductID: 7, Quantity: 2, UnitPrice: 1000}}, gw)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	app := makeAppWithHandler(NewHandler(f.service, "http://localhost/webpay/return"))

	req := httptest.NewRequest("GET", "/webpay/return?token_ws=tok-1", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	body, _ := io.ReadAll(res.Body)
	var out struct {
		Status string `json:"status"`
		Data   struct {
			BuyOrder string `json:"buyOrder"`
			Total    int    `json:"total"`
			Status   string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if out.Status != "success" || out.Data.BuyOrder != "ORD-1" || out.Data.Status != order.StatusProcessing {
		t.Fatalf("unexpected response %+v", out)
	}
}

func TestPaymentReturn_GatewayFailure(t *testing.T) {
	gw := &fakeGateway{confirmation: Confirmation{BuyOrder: "ORD-1", Status: "FAILED"}}
	f := newSettleFixture(t, pendingOrder(), nil, gw)
	app := makeAppWithHandler(NewHandler(f.service, "http://localhost/webpay/return"))

	req := httptest.NewRequest("GET", "/webpay/return?token_ws=tok-1", nil)
	res, _ := app.Test(req)
	body, _ := io.ReadAll(res.Body)
	var out map[string]any
	json.Unmarshal(body, &out)
	if out["status"] != "failure" {
		t.Fatalf("expected failure status, got %v", out["status"])
	}
}

func TestCreateTransactionEndpoint(t *testing.T) {
	gw := &fakeGateway{createTx: Transaction{Token: "tok-1", RedirectURL: "https://pay.example/tok-1"}}
	f := newSettleFixture(t, pendingOrder(), nil, gw)
	app := makeAppWithHandler(NewHandler(f.service, "http://localhost/webpay/return"))

	req := httptest.NewRequest("POST", "/webpay/create", strings.NewReader(`{"buyOrder":"ORD-1"}`))
	req.Header.Set("Content-Type", "application/json")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	body, _ := io.ReadAll(res.Body)
	var out map[string]string
	json.Unmarshal(body, &out)
	if out["token"] != "tok-1" || out["url"] == "" {
		t.Fatalf("unexpected response %+v", out)
	}
}

func TestCreateTransactionEndpoint_UnknownOrder(t *testing.T) {
	gw := &fakeGateway{}
	f := newSettleFixture(t, pendingOrder(), nil, gw)
	app := makeAppWithHandler(NewHandler(f.service, "http://localhost/webpay/return"))

	req := httptest.NewRequest("POST", "/webpay/create", strings.NewReader(`{"buyOrder":"ORD-404"}`))
	req.Header.Set("Content-Type", "application/json")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
}
