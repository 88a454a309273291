package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/services"
	"github.com/example/flourish/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db     *gorm.DB
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, orders *services.OrderService) *OrderHandler {
	return &OrderHandler{db: db, orders: orders}
}

type createOrderRequest struct {
	ShippingAddress *addressRequest `json:"shippingAddress" validate:"required_without=AddressID"`
	AddressID       *uuid.UUID      `json:"addressId"`
	BillingAddress  *addressRequest `json:"billingAddress" validate:"omitempty"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required,oneof=card cod"`
	ShippingMethod  string          `json:"shippingMethod" validate:"required,oneof=standard express overnight"`
	Notes           string          `json:"notes" validate:"max=500"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CreateOrder checks out the caller's cart. The shipping address is given
// inline or picked from the address book with addressId.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	in := services.CheckoutInput{
		PaymentMethod:  req.PaymentMethod,
		ShippingMethod: req.ShippingMethod,
		Notes:          req.Notes,
	}
	if req.ShippingAddress != nil {
		in.ShippingAddress = req.ShippingAddress.toAddress()
	} else {
		var saved models.UserAddress
		err := h.db.WithContext(c.UserContext()).
			First(&saved, "id = ? AND user_id = ?", *req.AddressID, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Address not found")
		}
		if err != nil {
			return err
		}
		in.ShippingAddress = saved.ToAddress()
	}
	if req.BillingAddress != nil {
		billing := req.BillingAddress.toAddress()
		in.BillingAddress = &billing
	}

	order, err := h.orders.Create(c.UserContext(), userID, in)
	if err != nil {
		return err
	}
	return created(c, order)
}

// ListOrders returns the caller's orders.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.List(c.UserContext(), services.OrderFilter{
		UserID: &userID,
		Status: c.Query("status"),
		Page:   pg,
	})
	if err != nil {
		return err
	}
	return paginated(c, orders, pg, total)
}

// AdminListOrders returns every order, filtered by status and order number.
func (h *OrderHandler) AdminListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := services.OrderFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   pg,
	}
	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return utils.NewValidationError("user_id", "must be a valid id")
		}
		filter.UserID = &id
	}

	orders, total, err := h.orders.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return paginated(c, orders, pg, total)
}

// Stats aggregates the caller's orders.
func (h *OrderHandler) Stats(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	stats, err := h.orders.Stats(c.UserContext(), &userID)
	if err != nil {
		return err
	}
	return success(c, stats)
}

// GetOrder returns one order. Customers only see their own.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.Get(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return success(c, order)
}

// CancelOrder cancels a pending or confirmed order. The body is optional.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req cancelOrderRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	note := req.Reason
	if note == "" {
		note = "Cancelled by customer"
		if actor.Admin {
			note = "Cancelled by admin"
		}
	}

	order, err := h.orders.Cancel(c.UserContext(), actor, id, note)
	if err != nil {
		return err
	}
	return okMessage(c, "Order cancelled", order)
}

// UpdateStatus lets admins move an order through fulfilment.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req updateStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.orders.UpdateStatus(c.UserContext(), actor, id, req.Status, req.Note)
	if err != nil {
		return err
	}
	return okMessage(c, "Order status updated", order)
}

// RegisterOrderRoutes attaches customer order routes behind auth. The
// stats route comes before /:id.
func (h *OrderHandler) RegisterOrderRoutes(router fiber.Router, admin fiber.Handler) {
	router.Post("/", h.CreateOrder)
	router.Get("/", h.ListOrders)
	router.Get("/stats", h.Stats)
	router.Get("/:id", h.GetOrder)
	router.Put("/:id/cancel", h.CancelOrder)
	router.Put("/:id/status", admin, h.UpdateStatus)
}
