package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/flourish/internal/models"
)

func TestCreateOrderFromCart(t *testing.T) {
	f := newFixture(t)
	listener := &recordingListener{}
	f.orders.Subscribe(listener)

	a := f.createProduct(t, "rose", "100", 5)
	b := f.createProduct(t, "tulip", "50", 3)
	f.createCoupon(t, models.Coupon{
		Code:        "spring10",
		Value:       dec("10"),
		MaxDiscount: decimal.NewNullDecimal(dec("20")),
	})

	f.addToCart(t, a, 2)
	f.addToCart(t, b, 1)
	_, err := f.carts.ApplyCoupon(f.ctx, f.user.ID, "SPRING10")
	require.NoError(t, err)

	order := f.checkout(t, models.PaymentMethodCOD)

	assertAmount(t, "250", order.Subtotal)
	assertAmount(t, "45", order.Tax)
	assertAmount(t, "150", order.ShippingCost)
	assertAmount(t, "20", order.Discount)
	assertAmount(t, "425", order.Total)
	assert.Equal(t, "SPRING10", order.CouponCode)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, testAddress(), order.BillingAddress)

	require.Len(t, order.Items, 2)
	assert.Equal(t, "rose", order.Items[0].Name)
	assert.Equal(t, "SKU-rose", order.Items[0].SKU)
	assert.Equal(t, "https://img.example.com/rose.jpg", order.Items[0].Image)
	assertAmount(t, "200", order.Items[0].LineTotal)

	require.Len(t, order.StatusHistory, 1)
	assert.Equal(t, models.OrderStatusPending, order.StatusHistory[0].Status)

	assert.True(t, strings.HasPrefix(order.OrderNumber, "FL"))
	assert.Len(t, order.OrderNumber, 12)
	assert.True(t, strings.HasSuffix(order.OrderNumber, "0001"))

	assert.Equal(t, 3, f.reloadProduct(t, a.ID).Stock)
	assert.Equal(t, 2, f.reloadProduct(t, a.ID).SoldCount)
	assert.Equal(t, 2, f.reloadProduct(t, b.ID).Stock)

	cart, err := f.carts.GetCart(f.ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Nil(t, cart.Coupon)

	var coupon models.Coupon
	require.NoError(t, f.db.Preload("Usages").First(&coupon, "code = ?", "SPRING10").Error)
	assert.Equal(t, 1, coupon.UsedCount)
	require.Len(t, coupon.Usages, 1)
	assert.Equal(t, order.ID, *coupon.Usages[0].OrderID)

	require.Len(t, listener.events, 1)
	assert.Equal(t, EventOrderCreated, listener.events[0].Type)
	assert.Equal(t, order.OrderNumber, listener.events[0].Order.OrderNumber)
}

func TestOrderNumbersIncrementWithinDay(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "lily", "10", 10)

	f.addToCart(t, p, 1)
	first := f.checkout(t, models.PaymentMethodCOD)
	f.addToCart(t, p, 1)
	second := f.checkout(t, models.PaymentMethodCOD)

	assert.Equal(t, first.OrderNumber[:8], second.OrderNumber[:8])
	assert.True(t, strings.HasSuffix(first.OrderNumber, "0001"))
	assert.True(t, strings.HasSuffix(second.OrderNumber, "0002"))
}

func TestCreateOrderInsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	a := f.createProduct(t, "rose", "100", 5)
	b := f.createProduct(t, "tulip", "50", 3)
	f.addToCart(t, a, 2)
	f.addToCart(t, b, 2)

	// Stock drops after the items were carted.
	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", b.ID).UpdateColumn("stock", 1).Error)

	_, err := f.orders.Create(f.ctx, f.user.ID, CheckoutInput{
		ShippingAddress: testAddress(),
		PaymentMethod:   models.PaymentMethodCOD,
		ShippingMethod:  models.ShippingStandard,
	})
	assertRejected(t, err, models.RejectInsufficientStock)

	var orders int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)

	assert.Equal(t, 5, f.reloadProduct(t, a.ID).Stock)
	assert.Equal(t, 0, f.reloadProduct(t, a.ID).SoldCount)
	assert.Equal(t, 1, f.reloadProduct(t, b.ID).Stock)

	cart, err := f.carts.GetCart(f.ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestCreateOrderRejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input CheckoutInput
		code  string
	}{
		{
			name:  "empty cart",
			input: CheckoutInput{PaymentMethod: models.PaymentMethodCOD, ShippingMethod: models.ShippingStandard},
			code:  models.RejectEmptyCart,
		},
		{
			name:  "unknown payment method",
			input: CheckoutInput{PaymentMethod: "barter", ShippingMethod: models.ShippingStandard},
			code:  models.RejectInvalidPayment,
		},
		{
			name:  "unknown shipping method",
			input: CheckoutInput{PaymentMethod: models.PaymentMethodCard, ShippingMethod: "pigeon"},
			code:  models.RejectInvalidShipping,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.Create(f.ctx, f.user.ID, tt.input)
			assertRejected(t, err, tt.code)
		})
	}
}

func TestCreateOrderRevalidatesCoupon(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "rose", "100", 5)
	coupon := f.createCoupon(t, models.Coupon{Code: "ONCE", Value: dec("10")})
	f.addToCart(t, p, 1)
	_, err := f.carts.ApplyCoupon(f.ctx, f.user.ID, "ONCE")
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Coupon{}).Where("id = ?", coupon.ID).UpdateColumn("is_active", false).Error)

	_, err = f.orders.Create(f.ctx, f.user.ID, CheckoutInput{
		ShippingAddress: testAddress(),
		PaymentMethod:   models.PaymentMethodCOD,
		ShippingMethod:  models.ShippingStandard,
	})
	assertRejected(t, err, models.RejectCouponInactive)
	assert.Equal(t, 5, f.reloadProduct(t, p.ID).Stock)
}

func TestCancelPendingOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	listener := &recordingListener{}
	f.orders.Subscribe(listener)

	a := f.createProduct(t, "rose", "100", 5)
	b := f.createProduct(t, "tulip", "50", 3)
	f.addToCart(t, a, 2)
	f.addToCart(t, b, 1)
	order := f.checkout(t, models.PaymentMethodCOD)

	cancelled, err := f.orders.Cancel(f.ctx, Actor{UserID: f.user.ID}, order.ID, "")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	require.Len(t, cancelled.StatusHistory, 2)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.StatusHistory[1].Status)

	for _, p := range []*models.Product{a, b} {
		got := f.reloadProduct(t, p.ID)
		assert.Equal(t, p.Stock, got.Stock, p.Name)
		assert.Equal(t, 0, got.SoldCount, p.Name)
	}

	require.Len(t, listener.events, 2)
	assert.Equal(t, EventOrderCancelled, listener.events[1].Type)
	assert.Equal(t, models.OrderStatusPending, listener.events[1].PreviousStatus)

	_, err = f.orders.Cancel(f.ctx, Actor{UserID: f.user.ID}, order.ID, "")
	assertRejected(t, err, models.RejectNotCancellable)
	assert.Equal(t, 5, f.reloadProduct(t, a.ID).Stock)
}

func TestCancelRejectedOnceShipped(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "rose", "100", 5)
	f.addToCart(t, p, 2)
	order := f.checkout(t, models.PaymentMethodCOD)

	admin := Actor{UserID: uuid.New(), Admin: true}
	_, err := f.orders.UpdateStatus(f.ctx, admin, order.ID, models.OrderStatusShipped, "Dispatched")
	require.NoError(t, err)

	_, err = f.orders.Cancel(f.ctx, Actor{UserID: f.user.ID}, order.ID, "")
	assertRejected(t, err, models.RejectNotCancellable)
	assert.Equal(t, 3, f.reloadProduct(t, p.ID).Stock)
}

func TestCancelOtherUsersOrderIsNotFound(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "rose", "100", 5)
	f.addToCart(t, p, 1)
	order := f.checkout(t, models.PaymentMethodCOD)

	stranger := f.createUser(t, "eve@example.com")
	_, err := f.orders.Cancel(f.ctx, Actor{UserID: stranger.ID}, order.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.orders.Get(f.ctx, Actor{UserID: stranger.ID}, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.orders.Get(f.ctx, Actor{UserID: stranger.ID, Admin: true}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "rose", "100", 5)
	f.addToCart(t, p, 1)
	order := f.checkout(t, models.PaymentMethodCOD)
	admin := Actor{UserID: uuid.New(), Admin: true}

	_, err := f.orders.UpdateStatus(f.ctx, admin, order.ID, "teleported", "")
	assertRejected(t, err, models.RejectInvalidStatus)

	delivered, err := f.orders.UpdateStatus(f.ctx, admin, order.ID, models.OrderStatusDelivered, "Left at door")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)
	assert.Equal(t, models.PaymentStatusPaid, delivered.PaymentStatus)
	require.Len(t, delivered.StatusHistory, 2)
	assert.Equal(t, "Left at door", delivered.StatusHistory[1].Note)
	assert.Equal(t, admin.UserID, *delivered.StatusHistory[1].UpdatedBy)

	// Any status may follow any other outside the cancel path.
	back, err := f.orders.UpdateStatus(f.ctx, admin, order.ID, models.OrderStatusProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, back.Status)
}

func TestUpdateStatusCancelledGoesThroughCancel(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "rose", "100", 5)
	f.addToCart(t, p, 2)
	order := f.checkout(t, models.PaymentMethodCOD)

	admin := Actor{UserID: uuid.New(), Admin: true}
	cancelled, err := f.orders.UpdateStatus(f.ctx, admin, order.ID, models.OrderStatusCancelled, "Out of area")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 5, f.reloadProduct(t, p.ID).Stock)
}

func TestUpdatePaymentStatusConfirmsOrder(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "rose", "100", 5)
	f.addToCart(t, p, 1)
	order := f.checkout(t, models.PaymentMethodCard)

	paid, err := f.orders.UpdatePaymentStatus(f.ctx, order.ID, models.PaymentStatusPaid, "Payment received")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, paid.Status)
	assert.NotNil(t, paid.PaidAt)
}

func TestUpdatePaymentStatusKeepsPaidOrder(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "rose", "100", 5)
	f.addToCart(t, p, 1)
	order := f.checkout(t, models.PaymentMethodCard)

	_, err := f.orders.UpdatePaymentStatus(f.ctx, order.ID, models.PaymentStatusPaid, "Payment received")
	require.NoError(t, err)

	got, err := f.orders.UpdatePaymentStatus(f.ctx, order.ID, models.PaymentStatusFailed, "Payment failed")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)
	assert.NotNil(t, got.PaidAt)
	assert.Len(t, got.StatusHistory, 2)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `FL\_2024\%\\`, escapeLike(`FL_2024%\`))
	assert.Equal(t, "0002", escapeLike("0002"))
}

func TestOrderStats(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "rose", "100", 10)

	stats, err := f.orders.Stats(f.ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalOrders)
	assertAmount(t, "0", stats.AverageOrder)

	f.addToCart(t, p, 1)
	first := f.checkout(t, models.PaymentMethodCOD)
	f.addToCart(t, p, 2)
	f.checkout(t, models.PaymentMethodCOD)

	admin := Actor{UserID: uuid.New(), Admin: true}
	_, err = f.orders.UpdateStatus(f.ctx, admin, first.ID, models.OrderStatusDelivered, "")
	require.NoError(t, err)

	// 100 + 18 + 150 and 200 + 36 + 150
	stats, err = f.orders.Stats(f.ctx, &f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assertAmount(t, "654", stats.TotalSpent)
	assertAmount(t, "327", stats.AverageOrder)
	assert.Equal(t, int64(1), stats.PendingOrders)
	assert.Equal(t, int64(1), stats.DeliveredOrders)

	other := uuid.New()
	stats, err = f.orders.Stats(f.ctx, &other)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalOrders)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "rose", "100", 10)
	f.addToCart(t, p, 1)
	f.checkout(t, models.PaymentMethodCOD)
	f.addToCart(t, p, 1)
	f.checkout(t, models.PaymentMethodCard)

	other := f.createUser(t, "eve@example.com")

	tests := []struct {
		name   string
		filter OrderFilter
		want   int64
	}{
		{name: "own orders", filter: OrderFilter{UserID: &f.user.ID}, want: 2},
		{name: "other user", filter: OrderFilter{UserID: &other.ID}, want: 0},
		{name: "all for admin", filter: OrderFilter{}, want: 2},
		{name: "by status", filter: OrderFilter{Status: models.OrderStatusPending}, want: 2},
		{name: "by number", filter: OrderFilter{Search: "0002"}, want: 1},
		{name: "percent is literal", filter: OrderFilter{Search: "%"}, want: 0},
		{name: "underscore is literal", filter: OrderFilter{Search: "FL_"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Page.Limit = 10
			orders, total, err := f.orders.List(f.ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
			assert.Len(t, orders, int(tt.want))
		})
	}
}
