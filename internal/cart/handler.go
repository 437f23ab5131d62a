package cart

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/fbarrios/storefront-backend/internal/customer"
	"github.com/fbarrios/storefront-backend/internal/stock"
)

// Handler delegates cart operations to the cart service.
type Handler struct {
	service   *Service
	customers *customer.Resolver
}

func NewHandler(s *Service, customers *customer.Resolver) *Handler {
	return &Handler{service: s, customers: customers}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/cart", h.getCart)
	app.Post("/api/v1/cart/items", h.addLine)
	app.Post("/api/v1/cart/merge", h.mergeGuest)
	app.Delete("/api/v1/cart", h.clearCart)
}

type addLineRequest struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	cust, err := h.customers.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	crt, err := h.service.Get(cust.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not load cart"})
	}
	return c.JSON(crt)
}

func (h *Handler) addLine(c *fiber.Ctx) error {
	payload := new(addLineRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.ProductID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid productId"})
	}

	cust, err := h.customers.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	crt, err := h.service.AddLine(cust.ID, payload.ProductID, payload.Quantity)
	if err != nil {
		var insufficient *stock.InsufficientStockError
		switch {
		case errors.As(err, &insufficient):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message":   "insufficient stock",
				"productId": insufficient.ProductID,
			})
		case errors.Is(err, ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "not found"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not update cart"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(crt)
}

func (h *Handler) mergeGuest(c *fiber.Ctx) error {
	cust, err := h.customers.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	sessionID := c.Get("X-Cart-Session")
	if sessionID == "" {
		crt, err := h.service.Get(cust.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not load cart"})
		}
		return c.JSON(crt)
	}

	crt, err := h.service.MergeGuest(c.Context(), cust.ID, sessionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not merge cart"})
	}
	return c.JSON(crt)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	cust, err := h.customers.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	if err := h.service.Clear(cust.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not clear cart"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
