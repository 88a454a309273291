package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/utils"
)

func TestFindValidCoupon(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.createCoupon(t, models.Coupon{Code: "LIVE", Value: dec("10")})
	f.createCoupon(t, models.Coupon{Code: "PAST", Value: dec("10"), ValidFrom: now.Add(-48 * time.Hour), ValidUntil: now.Add(-time.Minute)})
	f.createCoupon(t, models.Coupon{Code: "SOON", Value: dec("10"), ValidFrom: now.Add(time.Hour), ValidUntil: now.Add(48 * time.Hour)})

	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "active", code: "live"},
		{name: "expired but active flag set", code: "PAST", want: models.RejectCouponExpired},
		{name: "not started", code: "SOON", want: models.RejectCouponNotStarted},
		{name: "unknown", code: "GHOST", want: models.RejectCouponNotFound},
		{name: "blank", code: "  ", want: models.RejectCouponNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coupon, err := f.coupons.FindValidCoupon(f.ctx, tt.code, &f.user.ID)
			if tt.want == "" {
				require.NoError(t, err)
				assert.Equal(t, "LIVE", coupon.Code)
				return
			}
			assertRejected(t, err, tt.want)
		})
	}
}

func TestUseCouponEnforcesLimits(t *testing.T) {
	f := newFixture(t)
	one := 1
	global := f.createCoupon(t, models.Coupon{Code: "SINGLE", Value: dec("10"), MaxUses: &one})
	perUser := f.createCoupon(t, models.Coupon{Code: "PERUSER", Value: dec("10"), UserLimit: &one})

	require.NoError(t, f.coupons.UseCoupon(f.db, global.ID, f.user.ID, uuid.New()))
	err := f.coupons.UseCoupon(f.db, global.ID, f.user.ID, uuid.New())
	assertRejected(t, err, models.RejectCouponUsageLimit)

	_, err = f.coupons.FindValidCoupon(f.ctx, "SINGLE", nil)
	assertRejected(t, err, models.RejectCouponUsageLimit)

	require.NoError(t, f.coupons.UseCoupon(f.db, perUser.ID, f.user.ID, uuid.New()))
	_, err = f.coupons.FindValidCoupon(f.ctx, "PERUSER", &f.user.ID)
	assertRejected(t, err, models.RejectCouponUserLimit)

	other := f.createUser(t, "eve@example.com")
	_, err = f.coupons.FindValidCoupon(f.ctx, "PERUSER", &other.ID)
	assert.NoError(t, err)
}

func TestValidateCouponQuote(t *testing.T) {
	f := newFixture(t)
	f.createCoupon(t, models.Coupon{Code: "PCT", Value: dec("20"), MaxDiscount: decimal.NewNullDecimal(dec("50"))})
	f.createCoupon(t, models.Coupon{Code: "FLAT", DiscountType: models.DiscountFixed, Value: dec("100")})

	tests := []struct {
		code         string
		amount       string
		wantDiscount string
		wantFinal    string
	}{
		{code: "PCT", amount: "1000", wantDiscount: "50", wantFinal: "950"},
		{code: "PCT", amount: "100", wantDiscount: "20", wantFinal: "80"},
		{code: "FLAT", amount: "50", wantDiscount: "50", wantFinal: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.code+" on "+tt.amount, func(t *testing.T) {
			quote, err := f.coupons.Validate(f.ctx, tt.code, nil, dec(tt.amount))
			require.NoError(t, err)
			assertAmount(t, tt.wantDiscount, quote.Discount)
			assertAmount(t, tt.wantFinal, quote.FinalAmount)
		})
	}
}

func TestCouponAdmin(t *testing.T) {
	f := newFixture(t)
	coupon := f.createCoupon(t, models.Coupon{Code: " welcome ", Value: dec("15")})
	assert.Equal(t, "WELCOME", coupon.Code)

	dup := models.Coupon{Code: "welcome", DiscountType: models.DiscountFixed, Value: dec("5"),
		ValidFrom: time.Now(), ValidUntil: time.Now().Add(time.Hour)}
	assertRejected(t, f.coupons.Create(f.ctx, &dup), models.RejectInvalidCoupon)

	input := *coupon
	input.Code = "welcome20"
	input.Value = dec("20")
	updated, err := f.coupons.Update(f.ctx, coupon.ID, &input)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME20", updated.Code)
	assertAmount(t, "20", updated.Value)

	input.Value = dec("120")
	_, err = f.coupons.Update(f.ctx, coupon.ID, &input)
	assertRejected(t, err, models.RejectInvalidCoupon)

	toggled, err := f.coupons.Toggle(f.ctx, coupon.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)
	_, err = f.coupons.FindValidCoupon(f.ctx, "WELCOME20", nil)
	assertRejected(t, err, models.RejectCouponInactive)

	list, total, err := f.coupons.List(f.ctx, utils.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	require.NoError(t, f.coupons.Delete(f.ctx, coupon.ID))
	assert.ErrorIs(t, f.coupons.Delete(f.ctx, coupon.ID), ErrNotFound)
	_, err = f.coupons.Toggle(f.ctx, coupon.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
