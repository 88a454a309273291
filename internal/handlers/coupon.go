package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/flourish/internal/middleware"
	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/services"
	"github.com/example/flourish/internal/utils"
)

// CouponHandler serves coupon validation and administration.
type CouponHandler struct {
	coupons *services.CouponService
}

// NewCouponHandler constructs CouponHandler.
func NewCouponHandler(coupons *services.CouponService) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

type validateCouponRequest struct {
	Code        string          `json:"code" validate:"required,max=50"`
	OrderAmount decimal.Decimal `json:"orderAmount"`
}

type couponRequest struct {
	Code           string              `json:"code" validate:"required,max=50"`
	Description    string              `json:"description"`
	DiscountType   string              `json:"discount_type" validate:"required,oneof=percentage fixed"`
	Value          decimal.Decimal     `json:"value"`
	MaxDiscount    decimal.NullDecimal `json:"max_discount"`
	MinOrderAmount decimal.Decimal     `json:"min_order_amount"`
	MaxUses        *int                `json:"max_uses" validate:"omitempty,min=1"`
	UserLimit      *int                `json:"user_limit" validate:"omitempty,min=1"`
	ValidFrom      time.Time           `json:"valid_from" validate:"required"`
	ValidUntil     time.Time           `json:"valid_until" validate:"required"`
	IsActive       *bool               `json:"is_active"`
}

func (r couponRequest) toCoupon() *models.Coupon {
	coupon := &models.Coupon{
		Code:           r.Code,
		Description:    r.Description,
		DiscountType:   r.DiscountType,
		Value:          r.Value,
		MaxDiscount:    r.MaxDiscount,
		MinOrderAmount: r.MinOrderAmount,
		MaxUses:        r.MaxUses,
		UserLimit:      r.UserLimit,
		ValidFrom:      r.ValidFrom,
		ValidUntil:     r.ValidUntil,
		IsActive:       true,
	}
	if r.IsActive != nil {
		coupon.IsActive = *r.IsActive
	}
	return coupon
}

// Validate quotes a coupon against an order amount. Signed-in callers also
// get their personal usage limit checked.
func (h *CouponHandler) Validate(c *fiber.Ctx) error {
	var req validateCouponRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.OrderAmount.IsNegative() {
		return utils.NewValidationError("orderAmount", "must not be negative")
	}

	var userID *uuid.UUID
	if id, ok := middleware.GetCurrentUserID(c); ok {
		userID = &id
	}

	quote, err := h.coupons.Validate(c.UserContext(), req.Code, userID, req.OrderAmount)
	if err != nil {
		return err
	}
	return okMessage(c, "Coupon is valid", quote)
}

func (h *CouponHandler) List(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	coupons, total, err := h.coupons.List(c.UserContext(), pg)
	if err != nil {
		return err
	}
	return paginated(c, coupons, pg, total)
}

func (h *CouponHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	coupon, err := h.coupons.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return success(c, coupon)
}

func (h *CouponHandler) Create(c *fiber.Ctx) error {
	var req couponRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	coupon := req.toCoupon()
	if err := h.coupons.Create(c.UserContext(), coupon); err != nil {
		return err
	}
	return created(c, coupon)
}

func (h *CouponHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req couponRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	coupon, err := h.coupons.Update(c.UserContext(), id, req.toCoupon())
	if err != nil {
		return err
	}
	return success(c, coupon)
}

func (h *CouponHandler) Toggle(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	coupon, err := h.coupons.Toggle(c.UserContext(), id)
	if err != nil {
		return err
	}
	return success(c, coupon)
}

func (h *CouponHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.coupons.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return okMessage(c, "coupon deleted", nil)
}

// RegisterCouponRoutes attaches coupon routes. optional resolves the caller
// when a token is present; admin routes need auth and admin.
func (h *CouponHandler) RegisterCouponRoutes(router fiber.Router, optional, auth, admin fiber.Handler) {
	router.Post("/validate", optional, h.Validate)

	router.Get("/", auth, admin, h.List)
	router.Get("/:id", auth, admin, h.Get)
	router.Post("/", auth, admin, h.Create)
	router.Put("/:id", auth, admin, h.Update)
	router.Put("/:id/toggle", auth, admin, h.Toggle)
	router.Delete("/:id", auth, admin, h.Delete)
}
