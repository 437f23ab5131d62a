package outbox

import (
	"strings"
	"testing"
)

func TestRenderOrderConfirmation(t *testing.T) {
	subject, html := RenderOrderConfirmation(EmailPayload{
		To:           "buyer@example.com",
		CustomerName: "Ana Rojas",
		BuyOrder:     "ORD-1",
		Subtotal:     2000,
		ShippingCost: 500,
		Total:        2500,
		Lines:        []EmailLine{{Name: "Dry food 3kg", Quantity: 2, UnitPrice: 1000}},
	})

	if !strings.Contains(subject, "ORD-1") {
		t.Fatalf("subject must reference the buy order, got %q", subject)
	}
	for _, want := range []string{"Ana Rojas", "Dry food 3kg", "2500"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in body:\n%s", want, html)
		}
	}
}

func TestRenderOperatorAlert(t *testing.T) {
	subject, html := RenderOperatorAlert(EmailPayload{
		BuyOrder:     "ORD-1",
		CustomerName: "Ana Rojas",
		Total:        2500,
		Lines:        []EmailLine{{Name: "Dry food 3kg", Quantity: 2, UnitPrice: 1000}},
	})

	if !strings.Contains(subject, "ORD-1") {
		t.Fatalf("subject must reference the buy order, got %q", subject)
	}
	if !strings.Contains(html, "2500") {
		t.Fatalf("expected total in body:\n%s", html)
	}
}
