package checkout

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/fbarrios/storefront-backend/internal/cart"
	"github.com/fbarrios/storefront-backend/internal/customer"
	"github.com/fbarrios/storefront-backend/internal/stock"
)

// Handler exposes order placement. The route is public: guests check out
// with contact details in the payload, authenticated customers are
// recognised from the JWT when one is present.
type Handler struct {
	service   *Service
	customers *customer.Resolver
	validate  *validator.Validate
}

func NewHandler(s *Service, customers *customer.Resolver) *Handler {
	return &Handler{service: s, customers: customers, validate: validator.New()}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Post("/api/v1/order/generate-order", h.generateOrder)
}

type orderLineRequest struct {
	ProductID int `json:"productId" validate:"required,gt=0"`
	Quantity  int `json:"quantity" validate:"required,gt=0"`
	UnitPrice int `json:"unitPrice" validate:"gte=0"`
}

type guestRequest struct {
	Email       string `json:"email" validate:"required,email"`
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	Phone       string `json:"phone"`
	AddressDesc string `json:"addressDesc" validate:"required"`
	AddressName string `json:"addressName"`
}

type generateOrderRequest struct {
	Lines        []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingCost int                `json:"shippingCost" validate:"gte=0"`
	Guest        *guestRequest      `json:"guest,omitempty" validate:"omitempty"`
}

type orderResponse struct {
	BuyOrder     string `json:"buyOrder"`
	OrderDate    string `json:"order_date"`
	Subtotal     int    `json:"subtotal"`
	ShippingCost int    `json:"shipping_cost"`
	Total        int    `json:"total"`
}

func (h *Handler) generateOrder(c *fiber.Ctx) error {
	payload := new(generateOrderRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if err := h.validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order payload"})
	}

	req := PlaceOrderRequest{
		Lines:        make([]cart.Line, 0, len(payload.Lines)),
		ShippingCost: payload.ShippingCost,
	}
	for _, line := range payload.Lines {
		req.Lines = append(req.Lines, cart.Line{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	cust, err := h.customers.FromCtx(c)
	switch {
	case err == nil:
		req.CustomerID = cust.ID
	case errors.Is(err, customer.ErrNoToken):
		if payload.Guest != nil {
			req.Guest = &GuestInfo{
				Email:       payload.Guest.Email,
				FirstName:   payload.Guest.FirstName,
				LastName:    payload.Guest.LastName,
				Phone:       payload.Guest.Phone,
				AddressDesc: payload.Guest.AddressDesc,
				AddressName: payload.Guest.AddressName,
			}
		}
	case errors.Is(err, fiber.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not place order"})
	}

	ord, err := h.service.PlaceOrder(req)
	if err != nil {
		var insufficient *stock.InsufficientStockError
		switch {
		case errors.As(err, &insufficient):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message":   "insufficient stock",
				"productId": insufficient.ProductID,
			})
		case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrInvalidLine), errors.Is(err, ErrGuestInfoMissing):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not place order"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order": orderResponse{
			BuyOrder:     ord.BuyOrder,
			OrderDate:    ord.CreatedAt.Format("2006-01-02 15:04:05"),
			Subtotal:     ord.Subtotal,
			ShippingCost: ord.ShippingCost,
			Total:        ord.Total,
		},
	})
}
