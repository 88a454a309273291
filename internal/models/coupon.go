package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

var hundred = decimal.NewFromInt(100)

// ErrNegativeAmount is returned by CalculateDiscount for amounts below zero.
var ErrNegativeAmount = errors.New("order amount cannot be negative")

// Coupon is a discount definition plus its usage ledger. Codes are stored
// uppercase.
type Coupon struct {
	BaseModel
	Code           string              `gorm:"uniqueIndex" json:"code"`
	Description    string              `json:"description"`
	DiscountType   string              `json:"discount_type"`
	Value          decimal.Decimal     `gorm:"type:decimal(12,2)" json:"value"`
	MaxDiscount    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_discount"`
	MinOrderAmount decimal.Decimal     `gorm:"type:decimal(12,2)" json:"min_order_amount"`
	MaxUses        *int                `json:"max_uses"`
	UserLimit      *int                `json:"user_limit"`
	UsedCount      int                 `json:"used_count"`
	ValidFrom      time.Time           `json:"valid_from"`
	ValidUntil     time.Time           `json:"valid_until"`
	IsActive       bool                `json:"is_active"`
	Usages         []CouponUsage       `gorm:"constraint:OnDelete:CASCADE" json:"usages,omitempty"`
}

// CouponUsage is one ledger entry, written when an order using the coupon
// is placed.
type CouponUsage struct {
	BaseModel
	CouponID uuid.UUID  `gorm:"type:uuid;index" json:"coupon_id"`
	UserID   uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	OrderID  *uuid.UUID `gorm:"type:uuid" json:"order_id"`
	UsedAt   time.Time  `json:"used_at"`
}

// NormalizeCode trims and uppercases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// BeforeSave normalizes the code and re-checks the definition.
func (c *Coupon) BeforeSave(tx *gorm.DB) error {
	c.Code = NormalizeCode(c.Code)
	return c.Validate()
}

// Validate checks the coupon definition.
func (c *Coupon) Validate() error {
	switch {
	case c.Code == "":
		return Reject(RejectInvalidCoupon, "Coupon code is required")
	case c.DiscountType != DiscountPercentage && c.DiscountType != DiscountFixed:
		return Reject(RejectInvalidCoupon, "Discount type must be percentage or fixed")
	case !c.Value.IsPositive():
		return Reject(RejectInvalidCoupon, "Discount value must be greater than zero")
	case c.DiscountType == DiscountPercentage && c.Value.GreaterThan(hundred):
		return Reject(RejectInvalidCoupon, "Percentage discount cannot exceed 100")
	case !c.ValidFrom.Before(c.ValidUntil):
		return Reject(RejectInvalidCoupon, "Valid from date must be before valid until date")
	case c.MaxDiscount.Valid && c.MaxDiscount.Decimal.IsNegative():
		return Reject(RejectInvalidCoupon, "Maximum discount cannot be negative")
	case c.MinOrderAmount.IsNegative():
		return Reject(RejectInvalidCoupon, "Minimum order amount cannot be negative")
	case c.MaxUses != nil && *c.MaxUses < 1:
		return Reject(RejectInvalidCoupon, "Maximum uses must be at least 1")
	case c.UserLimit != nil && *c.UserLimit < 1:
		return Reject(RejectInvalidCoupon, "Per-user limit must be at least 1")
	}
	return nil
}

// IsValid reports whether the coupon is active, inside its validity window
// and below its total use limit.
func (c *Coupon) IsValid(now time.Time) bool {
	return c.Check(now) == nil
}

// Check is IsValid with the reason for the refusal.
func (c *Coupon) Check(now time.Time) *Rejection {
	switch {
	case !c.IsActive:
		return Reject(RejectCouponInactive, "Coupon is inactive")
	case now.Before(c.ValidFrom):
		return Reject(RejectCouponNotStarted, "Coupon is not yet valid")
	case now.After(c.ValidUntil):
		return Reject(RejectCouponExpired, "Coupon has expired")
	case c.MaxUses != nil && c.UsedCount >= *c.MaxUses:
		return Reject(RejectCouponUsageLimit, "Coupon usage limit reached")
	}
	return nil
}

// CanUserUse runs Check and then the per-user limit against the loaded
// usage ledger.
func (c *Coupon) CanUserUse(userID uuid.UUID, now time.Time) *Rejection {
	if r := c.Check(now); r != nil {
		return r
	}
	if c.UserLimit == nil {
		return nil
	}
	if c.UsesBy(userID) >= *c.UserLimit {
		return Reject(RejectCouponUserLimit, "You have already used this coupon the maximum number of times")
	}
	return nil
}

// UsesBy counts ledger entries for userID.
func (c *Coupon) UsesBy(userID uuid.UUID) int {
	n := 0
	for _, usage := range c.Usages {
		if usage.UserID == userID {
			n++
		}
	}
	return n
}

// CalculateDiscount returns the discount for an order amount. Ineligible
// amounts yield a *Rejection; the discount never exceeds the amount.
func (c *Coupon) CalculateDiscount(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	if amount.LessThan(c.MinOrderAmount) {
		return decimal.Zero, Reject(RejectCouponMinimum, "Minimum order amount of %s required", c.MinOrderAmount.StringFixed(2))
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = amount.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.Valid && discount.GreaterThan(c.MaxDiscount.Decimal) {
			discount = c.MaxDiscount.Decimal
		}
	case DiscountFixed:
		discount = c.Value
	default:
		return decimal.Zero, errors.New("unknown discount type " + c.DiscountType)
	}

	return decimal.Min(discount, amount).Round(2), nil
}
