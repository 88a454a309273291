package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/services"
	"github.com/example/flourish/internal/utils"
)

// CartHandler exposes the current user's cart.
type CartHandler struct {
	carts *services.CartService
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(carts *services.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type addCartItemRequest struct {
	ProductID           uuid.UUID  `json:"productId" validate:"required"`
	Quantity            int        `json:"quantity" validate:"required,min=1,max=999"`
	Variant             *uuid.UUID `json:"variant"`
	SelectedBundleItems []string   `json:"selectedBundleItems"`
}

type updateCartItemRequest struct {
	Quantity            *int       `json:"quantity" validate:"required,min=0,max=999"`
	Variant             *uuid.UUID `json:"variant"`
	SelectedBundleItems []string   `json:"selectedBundleItems"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=50"`
}

// GetCart returns the cart with its summary.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	view, err := h.carts.GetCart(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return success(c, view)
}

// AddItem adds a product line or increases an existing one.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req addCartItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	view, err := h.carts.AddItem(c.UserContext(), userID, services.AddItemInput{
		ProductID:           req.ProductID,
		Quantity:            req.Quantity,
		VariantID:           req.Variant,
		SelectedBundleItems: req.SelectedBundleItems,
	})
	if err != nil {
		return err
	}
	return okMessage(c, "Item added to cart", view)
}

// UpdateItem sets the quantity of the line identified by the product in
// the path and the variant and bundle selection in the body.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		return err
	}

	var req updateCartItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	key := models.KeyFor(productID, req.Variant, req.SelectedBundleItems)
	view, err := h.carts.UpdateItem(c.UserContext(), userID, key, *req.Quantity)
	if err != nil {
		return err
	}
	return okMessage(c, "Cart updated", view)
}

// RemoveItem drops a line. The variant and bundle selection come from the
// query string: ?variant=<id>&selectedBundleItems=a,b
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		return err
	}

	var variantID *uuid.UUID
	if v := c.Query("variant"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return utils.NewValidationError("variant", "must be a valid id")
		}
		variantID = &id
	}
	var selection []string
	if v := c.Query("selectedBundleItems"); v != "" {
		selection = strings.Split(v, ",")
	}

	view, err := h.carts.RemoveItem(c.UserContext(), userID, models.KeyFor(productID, variantID, selection))
	if err != nil {
		return err
	}
	return okMessage(c, "Item removed from cart", view)
}

// Clear empties the cart.
func (h *CartHandler) Clear(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	view, err := h.carts.Clear(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return okMessage(c, "Cart cleared", view)
}

// ApplyCoupon attaches a coupon to the cart.
func (h *CartHandler) ApplyCoupon(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req applyCouponRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	view, err := h.carts.ApplyCoupon(c.UserContext(), userID, req.Code)
	if err != nil {
		return err
	}
	return okMessage(c, "Coupon applied", view)
}

// RemoveCoupon detaches the coupon.
func (h *CartHandler) RemoveCoupon(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	view, err := h.carts.RemoveCoupon(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return okMessage(c, "Coupon removed", view)
}

// RegisterCartRoutes attaches cart routes. Coupon routes come first so
// "coupon" is never read as a product id.
func (h *CartHandler) RegisterCartRoutes(router fiber.Router) {
	router.Get("/", h.GetCart)
	router.Post("/", h.AddItem)
	router.Delete("/", h.Clear)
	router.Post("/coupon", h.ApplyCoupon)
	router.Delete("/coupon", h.RemoveCoupon)
	router.Put("/:productId", h.UpdateItem)
	router.Delete("/:productId", h.RemoveItem)
}
