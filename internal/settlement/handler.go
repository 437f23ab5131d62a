package settlement

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fbarrios/storefront-backend/internal/order"
)

// Handler exposes the payment-gateway return endpoint and the
// transaction-creation endpoint.
type Handler struct {
	service   *Service
	returnURL string
}

func NewHandler(s *Service, returnURL string) *Handler {
	return &Handler{service: s, returnURL: returnURL}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	// the gateway redirects back with GET or POST depending on the
	// outcome, both land here
	app.Get("/webpay/return", h.paymentReturn)
	app.Post("/webpay/return", h.paymentReturn)
	app.Post("/webpay/create", h.createTransaction)
}

type createTransactionRequest struct {
	BuyOrder string `json:"buyOrder"`
}

func (h *Handler) createTransaction(c *fiber.Ctx) error {
	payload := new(createTransactionRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.BuyOrder == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "buyOrder is required"})
	}

	tx, err := h.service.CreateTransaction(c.Context(), payload.BuyOrder, uuid.NewString(), h.returnURL)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not start payment"})
	}

	return c.JSON(fiber.Map{"token": tx.Token, "url": tx.RedirectURL})
}

func (h *Handler) paymentReturn(c *fiber.Ctx) error {
	token := c.Query("token_ws")
	if token == "" {
		token = c.FormValue("token_ws")
	}
	// an aborted payment comes back with TBK_TOKEN instead of token_ws
	if token == "" {
		return c.JSON(fiber.Map{"status": "canceled"})
	}

	ord, err := h.service.Settle(c.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrPaymentConfirmation):
			return c.JSON(fiber.Map{"status": "failure"})
		case errors.Is(err, ErrOrderCancelled):
			return c.JSON(fiber.Map{"status": "canceled"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "failure"})
		}
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data": fiber.Map{
			"buyOrder": ord.BuyOrder,
			"total":    ord.Total,
			"status":   ord.Status,
		},
	})
}
