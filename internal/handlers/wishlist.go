package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/flourish/internal/services"
)

// WishlistHandler exposes the current user's saved products.
type WishlistHandler struct {
	wishlist *services.WishlistService
}

// NewWishlistHandler constructs WishlistHandler.
func NewWishlistHandler(wishlist *services.WishlistService) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist}
}

type wishlistRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
}

type moveToCartRequest struct {
	Quantity            int        `json:"quantity" validate:"min=0,max=999"`
	Variant             *uuid.UUID `json:"variant"`
	SelectedBundleItems []string   `json:"selectedBundleItems"`
}

func (h *WishlistHandler) List(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	items, err := h.wishlist.List(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return success(c, items)
}

func (h *WishlistHandler) Add(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req wishlistRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	item, err := h.wishlist.Add(c.UserContext(), userID, req.ProductID)
	if err != nil {
		return err
	}
	return created(c, item)
}

func (h *WishlistHandler) Remove(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		return err
	}

	if err := h.wishlist.Remove(c.UserContext(), userID, productID); err != nil {
		return err
	}
	return okMessage(c, "Removed from wishlist", nil)
}

// MoveToCart puts the saved product in the cart. The body is optional.
func (h *WishlistHandler) MoveToCart(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		return err
	}

	var req moveToCartRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}

	view, err := h.wishlist.MoveToCart(c.UserContext(), userID, productID, services.AddItemInput{
		Quantity:            req.Quantity,
		VariantID:           req.Variant,
		SelectedBundleItems: req.SelectedBundleItems,
	})
	if err != nil {
		return err
	}
	return okMessage(c, "Moved to cart", view)
}

// RegisterWishlistRoutes attaches wishlist routes.
func (h *WishlistHandler) RegisterWishlistRoutes(router fiber.Router) {
	router.Get("/", h.List)
	router.Post("/", h.Add)
	router.Delete("/:productId", h.Remove)
	router.Post("/:productId/move-to-cart", h.MoveToCart)
}
