package outbox

import (
	"fmt"
	"strings"
)

// RenderOrderConfirmation builds the confirmation email body from the
// denormalized payload captured at settlement time.
func RenderOrderConfirmation(p EmailPayload) (subject, html string) {
	subject = fmt.Sprintf("Order confirmation %s", p.BuyOrder)

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<p>Hi %s,</p>", p.CustomerName)
	fmt.Fprintf(&b, "<p>Thank you for your purchase. Your order <b>%s</b> is being processed.</p>", p.BuyOrder)
	b.WriteString("<table><tr><th>Product</th><th>Qty</th><th>Unit</th></tr>")
	for _, line := range p.Lines {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>%d</td></tr>", line.Name, line.Quantity, line.UnitPrice)
	}
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Subtotal: %d<br>Shipping: %d<br><b>Total: %d</b></p>", p.Subtotal, p.ShippingCost, p.Total)
	b.WriteString("</body></html>")

	return subject, b.String()
}

// RenderOperatorAlert builds the internal copy sent to the operator
// address for every settled order.
func RenderOperatorAlert(p EmailPayload) (subject, html string) {
	subject = fmt.Sprintf("New paid order %s", p.BuyOrder)
	html = fmt.Sprintf("<html><body><p>Order %s settled for %s (total %d, %d lines).</p></body></html>",
		p.BuyOrder, p.CustomerName, p.Total, len(p.Lines))
	return subject, html
}
