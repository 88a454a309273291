package models

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the per-user mutable basket. The summary is never stored; it is
// recomputed from the items and the coupon snapshot on every read.
type Cart struct {
	BaseModel
	UserID  uuid.UUID     `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	Items   []CartItem    `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	Coupon  AppliedCoupon `gorm:"embedded;embeddedPrefix:coupon_" json:"-"`
	Version int           `json:"-"`
}

// AppliedCoupon is a snapshot of the coupon at apply time, not a live
// reference to the Coupon row.
type AppliedCoupon struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount_amount"`
	DiscountType   string          `json:"discount_type"`
}

type CartItem struct {
	BaseModel
	CartID              uuid.UUID       `gorm:"type:uuid;index" json:"-"`
	ProductID           uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	VariantID           *uuid.UUID      `gorm:"type:uuid" json:"variant_id"`
	Quantity            int             `json:"quantity"`
	Price               decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	SelectedBundleItems []string        `gorm:"serializer:json;type:text" json:"selected_bundle_items"`
	Position            int             `json:"-"`
	Product             *Product        `gorm:"-" json:"product,omitempty"`
}

// CartSummary is derived from the cart; see Cart.Summary.
type CartSummary struct {
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
}

// LineKey identifies a cart line. Two adds with equal keys merge into one
// line.
type LineKey struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	Bundle    string
}

// KeyFor builds the line key for a product, optional variant and bundle
// selection. The selection order does not matter.
func KeyFor(productID uuid.UUID, variantID *uuid.UUID, selection []string) LineKey {
	key := LineKey{ProductID: productID}
	if variantID != nil {
		key.VariantID = *variantID
	}
	key.Bundle = strings.Join(NormalizeSelection(selection), ",")
	return key
}

// Key returns the line key of the item.
func (i CartItem) Key() LineKey {
	return KeyFor(i.ProductID, i.VariantID, i.SelectedBundleItems)
}

// LineTotal is price times quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (c *Cart) lineIndex() map[LineKey]int {
	index := make(map[LineKey]int, len(c.Items))
	for i, item := range c.Items {
		index[item.Key()] = i
	}
	return index
}

// AddItem merges into an existing line with the same key or appends a new
// line priced at price. Stock and bundle checks belong to the caller.
func (c *Cart) AddItem(productID uuid.UUID, quantity int, variantID *uuid.UUID, price decimal.Decimal, selection []string) {
	key := KeyFor(productID, variantID, selection)
	if i, ok := c.lineIndex()[key]; ok {
		c.Items[i].Quantity += quantity
		return
	}

	c.Items = append(c.Items, CartItem{
		CartID:              c.ID,
		ProductID:           productID,
		VariantID:           variantID,
		Quantity:            quantity,
		Price:               price,
		SelectedBundleItems: NormalizeSelection(selection),
	})
}

// UpdateItemQuantity overwrites the quantity of the line with key. A
// quantity of zero or less removes the line. Missing lines are ignored.
func (c *Cart) UpdateItemQuantity(key LineKey, quantity int) {
	i, ok := c.lineIndex()[key]
	if !ok {
		return
	}
	if quantity <= 0 {
		c.removeAt(i)
		return
	}
	c.Items[i].Quantity = quantity
}

// RemoveItem drops the line with key if present.
func (c *Cart) RemoveItem(key LineKey) {
	if i, ok := c.lineIndex()[key]; ok {
		c.removeAt(i)
	}
}

// FindItem returns the line with key, or nil.
func (c *Cart) FindItem(key LineKey) *CartItem {
	if i, ok := c.lineIndex()[key]; ok {
		return &c.Items[i]
	}
	return nil
}

func (c *Cart) removeAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// Clear empties the cart and drops the coupon.
func (c *Cart) Clear() {
	c.Items = nil
	c.RemoveCoupon()
}

// ApplyCoupon stores a coupon snapshot, replacing any previous one.
func (c *Cart) ApplyCoupon(code string, discount decimal.Decimal, discountType string) {
	c.Coupon = AppliedCoupon{Code: code, DiscountAmount: discount, DiscountType: discountType}
}

// RemoveCoupon clears the coupon snapshot.
func (c *Cart) RemoveCoupon() {
	c.Coupon = AppliedCoupon{}
}

// HasCoupon reports whether a coupon snapshot is present.
func (c *Cart) HasCoupon() bool {
	return c.Coupon.Code != ""
}

// CouponSnapshot returns the snapshot or nil when no coupon is applied.
func (c *Cart) CouponSnapshot() *AppliedCoupon {
	if !c.HasCoupon() {
		return nil
	}
	coupon := c.Coupon
	return &coupon
}

// Summary computes item count, subtotal, discount and total. The total is
// clamped at zero.
func (c *Cart) Summary() CartSummary {
	summary := CartSummary{Subtotal: decimal.Zero, Discount: decimal.Zero}
	for _, item := range c.Items {
		summary.ItemCount += item.Quantity
		summary.Subtotal = summary.Subtotal.Add(item.LineTotal())
	}
	if c.HasCoupon() {
		summary.Discount = c.Coupon.DiscountAmount
	}
	summary.Total = decimal.Max(decimal.Zero, summary.Subtotal.Sub(summary.Discount))
	return summary
}

// PruneInvalid drops lines whose product is missing from products or is no
// longer active, and attaches the product to the remaining lines. It
// returns the number of lines removed.
func (c *Cart) PruneInvalid(products map[uuid.UUID]*Product) int {
	kept := c.Items[:0]
	removed := 0
	for _, item := range c.Items {
		product, ok := products[item.ProductID]
		if !ok || product == nil || !product.IsActive {
			removed++
			continue
		}
		item.Product = product
		kept = append(kept, item)
	}
	c.Items = kept
	return removed
}

// ProductIDs lists the distinct products referenced by the cart.
func (c *Cart) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(c.Items))
	ids := make([]uuid.UUID, 0, len(c.Items))
	for _, item := range c.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
