package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/utils"
)

// CartView is the cart as returned to clients: items, coupon snapshot and
// a freshly computed summary.
type CartView struct {
	*models.Cart
	Coupon  *models.AppliedCoupon `json:"coupon"`
	Summary models.CartSummary    `json:"summary"`
}

func newCartView(cart *models.Cart) *CartView {
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &CartView{Cart: cart, Coupon: cart.CouponSnapshot(), Summary: cart.Summary()}
}

// AddItemInput describes a cart add request.
type AddItemInput struct {
	ProductID           uuid.UUID
	Quantity            int
	VariantID           *uuid.UUID
	SelectedBundleItems []string
}

// CartService loads, mutates and persists carts. Every mutation runs in a
// transaction and is saved under an optimistic version check.
type CartService struct {
	db      *gorm.DB
	coupons *CouponService
	now     func() time.Time
}

// NewCartService constructs CartService.
func NewCartService(db *gorm.DB, coupons *CouponService) *CartService {
	return &CartService{db: db, coupons: coupons, now: time.Now}
}

// GetCart returns the user's cart, creating it on first access. Lines for
// deleted or inactive products are dropped and the pruned cart persisted.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	var view *CartView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, pruned, err := s.load(tx, userID)
		if err != nil {
			return err
		}
		if pruned > 0 {
			if err := s.save(tx, cart); err != nil {
				return err
			}
		}
		view = newCartView(cart)
		return nil
	})
	return view, err
}

// AddItem prices the line and merges it into the cart.
func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, in AddItemInput) (*CartView, error) {
	if in.Quantity < 1 {
		return nil, utils.NewValidationError("quantity", "must be at least 1")
	}
	return s.mutate(ctx, userID, true, func(tx *gorm.DB, cart *models.Cart) error {
		product, err := getProduct(tx, in.ProductID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return models.Reject(models.RejectUnavailable, "%s is not available", product.Name)
		}

		price, err := product.ResolvePrice(in.VariantID, in.SelectedBundleItems)
		if err != nil {
			return err
		}

		key := models.KeyFor(in.ProductID, in.VariantID, in.SelectedBundleItems)
		wanted := in.Quantity
		if line := cart.FindItem(key); line != nil {
			wanted += line.Quantity
		}
		if err := checkStock(cart, product, key, in.VariantID, wanted); err != nil {
			return err
		}

		cart.AddItem(product.ID, in.Quantity, in.VariantID, price, in.SelectedBundleItems)
		cart.FindItem(models.KeyFor(product.ID, in.VariantID, in.SelectedBundleItems)).Product = product
		return nil
	})
}

// UpdateItem overwrites a line's quantity. Zero or less removes the line;
// an unknown line is left alone.
func (s *CartService) UpdateItem(ctx context.Context, userID uuid.UUID, key models.LineKey, quantity int) (*CartView, error) {
	return s.mutate(ctx, userID, true, func(tx *gorm.DB, cart *models.Cart) error {
		line := cart.FindItem(key)
		if line != nil && quantity > 0 && line.Product != nil {
			if err := checkStock(cart, line.Product, key, line.VariantID, quantity); err != nil {
				return err
			}
		}
		cart.UpdateItemQuantity(key, quantity)
		return nil
	})
}

// RemoveItem drops a line if present.
func (s *CartService) RemoveItem(ctx context.Context, userID uuid.UUID, key models.LineKey) (*CartView, error) {
	return s.mutate(ctx, userID, true, func(tx *gorm.DB, cart *models.Cart) error {
		cart.RemoveItem(key)
		return nil
	})
}

// Clear empties the cart and removes its coupon.
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	return s.mutate(ctx, userID, false, func(tx *gorm.DB, cart *models.Cart) error {
		cart.Clear()
		return nil
	})
}

// ApplyCoupon validates the code for the user and stores a snapshot of the
// discount it yields on the current subtotal. Only one coupon may be
// applied at a time.
func (s *CartService) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*CartView, error) {
	return s.mutate(ctx, userID, false, func(tx *gorm.DB, cart *models.Cart) error {
		if len(cart.Items) == 0 {
			return models.Reject(models.RejectEmptyCart, "Cart is empty")
		}
		if cart.HasCoupon() {
			if cart.Coupon.Code == models.NormalizeCode(code) {
				return models.Reject(models.RejectCouponApplied, "Coupon is already applied")
			}
			return models.Reject(models.RejectCouponApplied, "Remove the applied coupon before applying another")
		}

		coupon, err := s.coupons.findValid(tx, code, &userID, s.now())
		if err != nil {
			return err
		}
		discount, err := coupon.CalculateDiscount(cart.Summary().Subtotal)
		if err != nil {
			return err
		}
		cart.ApplyCoupon(coupon.Code, discount, coupon.DiscountType)
		return nil
	})
}

// RemoveCoupon clears the coupon snapshot.
func (s *CartService) RemoveCoupon(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	return s.mutate(ctx, userID, false, func(tx *gorm.DB, cart *models.Cart) error {
		cart.RemoveCoupon()
		return nil
	})
}

// mutate loads the cart, applies fn and saves. When linesChanged is set the
// coupon snapshot is recomputed against the new subtotal.
func (s *CartService) mutate(ctx context.Context, userID uuid.UUID, linesChanged bool, fn func(tx *gorm.DB, cart *models.Cart) error) (*CartView, error) {
	var view *CartView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, _, err := s.load(tx, userID)
		if err != nil {
			return err
		}
		if err := fn(tx, cart); err != nil {
			return err
		}
		if linesChanged {
			if err := s.refreshCoupon(tx, cart); err != nil {
				return err
			}
		}
		if err := s.save(tx, cart); err != nil {
			return err
		}
		view = newCartView(cart)
		return nil
	})
	return view, err
}

// refreshCoupon re-prices the applied coupon after the lines changed and
// drops it when the cart no longer qualifies.
func (s *CartService) refreshCoupon(tx *gorm.DB, cart *models.Cart) error {
	if !cart.HasCoupon() {
		return nil
	}
	if len(cart.Items) == 0 {
		cart.RemoveCoupon()
		return nil
	}
	coupon, err := s.coupons.findValid(tx, cart.Coupon.Code, &cart.UserID, s.now())
	if err == nil {
		var discount decimal.Decimal
		if discount, err = coupon.CalculateDiscount(cart.Summary().Subtotal); err == nil {
			cart.ApplyCoupon(coupon.Code, discount, coupon.DiscountType)
			return nil
		}
	}

	var rejection *models.Rejection
	if !errors.As(err, &rejection) {
		return err
	}
	log.Printf("[Cart] Dropping coupon %s from cart %s: %s", cart.Coupon.Code, cart.ID, rejection.Message)
	cart.RemoveCoupon()
	return nil
}

// load fetches or lazily creates the cart and prunes stale lines. It
// returns the number of lines pruned.
func (s *CartService) load(tx *gorm.DB, userID uuid.UUID) (*models.Cart, int, error) {
	cart, err := findCart(tx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fresh := models.Cart{UserID: userID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
			return nil, 0, err
		}
		cart, err = findCart(tx, userID)
	}
	if err != nil {
		return nil, 0, err
	}

	products, err := loadProducts(tx, cart.ProductIDs())
	if err != nil {
		return nil, 0, err
	}
	pruned := cart.PruneInvalid(products)
	if pruned > 0 {
		log.Printf("[Cart] Pruned %d unavailable line(s) from cart %s", pruned, cart.ID)
	}
	return cart, pruned, nil
}

func findCart(tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	}).Where("user_id = ?", userID).First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// save writes the cart row under a version check and replaces its lines.
func (s *CartService) save(tx *gorm.DB, cart *models.Cart) error {
	res := tx.Model(&models.Cart{}).
		Where("id = ? AND version = ?", cart.ID, cart.Version).
		UpdateColumns(map[string]interface{}{
			"coupon_code":            cart.Coupon.Code,
			"coupon_discount_amount": cart.Coupon.DiscountAmount,
			"coupon_discount_type":   cart.Coupon.DiscountType,
			"version":                cart.Version + 1,
			"updated_at":             s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCartConflict
	}
	cart.Version++

	if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	for i := range cart.Items {
		item := &cart.Items[i]
		item.ID = uuid.Nil
		item.CartID = cart.ID
		item.Position = i
		if err := tx.Create(item).Error; err != nil {
			return err
		}
	}
	return nil
}

// checkStock verifies that quantity units on the line identified by key,
// together with the cart's other lines of the same product, fit the
// product stock, and the variant stock when a variant is chosen.
func checkStock(cart *models.Cart, product *models.Product, key models.LineKey, variantID *uuid.UUID, quantity int) error {
	productDemand, variantDemand := quantity, quantity
	for _, item := range cart.Items {
		if item.ProductID != product.ID || item.Key() == key {
			continue
		}
		productDemand += item.Quantity
		if variantID != nil && item.VariantID != nil && *item.VariantID == *variantID {
			variantDemand += item.Quantity
		}
	}

	if productDemand > product.Stock {
		return models.Reject(models.RejectInsufficientStock, "Only %d of %s available", product.Stock, product.Name)
	}
	if variantID != nil {
		if available := product.AvailableStock(variantID); variantDemand > available {
			return models.Reject(models.RejectInsufficientStock, "Only %d of %s available", available, product.Name)
		}
	}
	return nil
}
