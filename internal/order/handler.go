package order

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fbarrios/storefront-backend/internal/customer"
)

// Handler exposes the authenticated customer's order history.
type Handler struct {
	repo      Repository
	customers *customer.Resolver
}

func NewHandler(repo Repository, customers *customer.Resolver) *Handler {
	return &Handler{repo: repo, customers: customers}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/orders", h.getOrders)
	app.Get("/api/v1/orders/:id<[0-9]+>", h.getOrder)
}

func (h *Handler) getOrders(c *fiber.Ctx) error {
	cust, err := h.customers.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	orders, err := h.repo.ListByCustomer(cust.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not load orders"})
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	cust, err := h.customers.FromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid id"})
	}

	ord, err := h.repo.GetByID(id)
	if err != nil || ord.CustomerID != cust.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
	}

	items, err := h.repo.ItemsByOrderID(ord.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not load order"})
	}

	return c.JSON(fiber.Map{"order": ord, "items": items})
}
