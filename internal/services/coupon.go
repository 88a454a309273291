package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/utils"
)

// CouponService looks up, validates, records and administers coupons.
type CouponService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCouponService constructs CouponService.
func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{db: db, now: time.Now}
}

// CouponQuote is the answer to a validate request.
type CouponQuote struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discount_type"`
	Discount     decimal.Decimal `json:"discount"`
	FinalAmount  decimal.Decimal `json:"final_amount"`
}

// FindValidCoupon returns the coupon for code if it can be used right now,
// by userID when one is given. Otherwise the error is a *models.Rejection
// naming the reason.
func (s *CouponService) FindValidCoupon(ctx context.Context, code string, userID *uuid.UUID) (*models.Coupon, error) {
	return s.findValid(s.db.WithContext(ctx), code, userID, s.now())
}

func (s *CouponService) findValid(tx *gorm.DB, code string, userID *uuid.UUID, now time.Time) (*models.Coupon, error) {
	code = models.NormalizeCode(code)
	if code == "" {
		return nil, models.Reject(models.RejectCouponNotFound, "Coupon code is required")
	}

	query := tx
	if userID != nil {
		query = query.Preload("Usages", "user_id = ?", *userID)
	}

	var coupon models.Coupon
	if err := query.Where("code = ?", code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.Reject(models.RejectCouponNotFound, "Invalid coupon code")
		}
		return nil, err
	}

	if userID != nil {
		if r := coupon.CanUserUse(*userID, now); r != nil {
			return nil, r
		}
	} else if r := coupon.Check(now); r != nil {
		return nil, r
	}
	return &coupon, nil
}

// Validate quotes the discount code would give on amount.
func (s *CouponService) Validate(ctx context.Context, code string, userID *uuid.UUID, amount decimal.Decimal) (*CouponQuote, error) {
	coupon, err := s.FindValidCoupon(ctx, code, userID)
	if err != nil {
		return nil, err
	}
	discount, err := coupon.CalculateDiscount(amount)
	if err != nil {
		return nil, err
	}
	return &CouponQuote{
		Code:         coupon.Code,
		DiscountType: coupon.DiscountType,
		Discount:     discount,
		FinalAmount:  amount.Sub(discount),
	}, nil
}

// UseCoupon records one use by userID for orderID. The counter increment
// is guarded so concurrent checkouts cannot push it past MaxUses.
func (s *CouponService) UseCoupon(tx *gorm.DB, couponID, userID, orderID uuid.UUID) error {
	res := tx.Model(&models.Coupon{}).
		Where("id = ? AND (max_uses IS NULL OR used_count < max_uses)", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.Reject(models.RejectCouponUsageLimit, "Coupon usage limit reached")
	}

	usage := models.CouponUsage{
		CouponID: couponID,
		UserID:   userID,
		OrderID:  &orderID,
		UsedAt:   s.now(),
	}
	return tx.Create(&usage).Error
}

// List returns one page of coupons, newest first.
func (s *CouponService) List(ctx context.Context, page utils.Pagination) ([]models.Coupon, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Coupon{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var coupons []models.Coupon
	err := query.Order("created_at desc").Limit(page.Limit).Offset(page.Offset).Find(&coupons).Error
	return coupons, total, err
}

// Get loads a coupon with its usage ledger.
func (s *CouponService) Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.WithContext(ctx).
		Preload("Usages", func(db *gorm.DB) *gorm.DB { return db.Order("used_at desc") }).
		First(&coupon, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err, "Coupon")
	}
	return &coupon, nil
}

// Create inserts a coupon. The save hook normalizes and validates it.
func (s *CouponService) Create(ctx context.Context, coupon *models.Coupon) error {
	coupon.UsedCount = 0
	coupon.Usages = nil
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCodeFree(tx, coupon.Code, uuid.Nil); err != nil {
			return err
		}
		return tx.Create(coupon).Error
	})
}

// Update replaces the coupon definition. The use counter and ledger are
// left untouched.
func (s *CouponService) Update(ctx context.Context, id uuid.UUID, input *models.Coupon) (*models.Coupon, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Coupon
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			return mapNotFound(err, "Coupon")
		}

		merged := existing
		merged.Code = models.NormalizeCode(input.Code)
		merged.Description = input.Description
		merged.DiscountType = input.DiscountType
		merged.Value = input.Value
		merged.MaxDiscount = input.MaxDiscount
		merged.MinOrderAmount = input.MinOrderAmount
		merged.MaxUses = input.MaxUses
		merged.UserLimit = input.UserLimit
		merged.ValidFrom = input.ValidFrom
		merged.ValidUntil = input.ValidUntil
		merged.IsActive = input.IsActive
		if err := merged.Validate(); err != nil {
			return err
		}
		if err := ensureCodeFree(tx, merged.Code, id); err != nil {
			return err
		}

		return tx.Model(&models.Coupon{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
			"code":             merged.Code,
			"description":      merged.Description,
			"discount_type":    merged.DiscountType,
			"value":            merged.Value,
			"max_discount":     merged.MaxDiscount,
			"min_order_amount": merged.MinOrderAmount,
			"max_uses":         merged.MaxUses,
			"user_limit":       merged.UserLimit,
			"valid_from":       merged.ValidFrom,
			"valid_until":      merged.ValidUntil,
			"is_active":        merged.IsActive,
			"updated_at":       s.now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Toggle flips the active flag.
func (s *CouponService) Toggle(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	res := s.db.WithContext(ctx).Model(&models.Coupon{}).Where("id = ?", id).
		UpdateColumn("is_active", gorm.Expr("NOT is_active"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, notFound("Coupon")
	}
	return s.Get(ctx, id)
}

// Delete removes a coupon and its ledger. Orders keep their copy of the code.
func (s *CouponService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("coupon_id = ?", id).Delete(&models.CouponUsage{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Coupon{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("Coupon")
		}
		return nil
	})
}

func ensureCodeFree(tx *gorm.DB, code string, except uuid.UUID) error {
	var count int64
	err := tx.Model(&models.Coupon{}).
		Where("code = ? AND id <> ?", models.NormalizeCode(code), except).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return models.Reject(models.RejectInvalidCoupon, "Coupon code %s already exists", models.NormalizeCode(code))
	}
	return nil
}
