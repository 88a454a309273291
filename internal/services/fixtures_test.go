package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/testutil"
)

type fixture struct {
	db      *gorm.DB
	catalog *CatalogService
	coupons *CouponService
	carts   *CartService
	orders  *OrderService
	user    *models.User
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	coupons := NewCouponService(db)
	carts := NewCartService(db, coupons)
	f := &fixture{
		db:      db,
		catalog: NewCatalogService(db),
		coupons: coupons,
		carts:   carts,
		orders:  NewOrderService(db, carts, coupons, "inr"),
		ctx:     context.Background(),
	}
	f.user = f.createUser(t, "ada@example.com")
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got.String())
}

func assertRejected(t *testing.T, err error, code string) {
	t.Helper()
	var rejection *models.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, code, rejection.Code)
}

func (f *fixture) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{FirstName: "Ada", LastName: "Lovelace", Email: email, Role: models.RoleCustomer, IsActive: true}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) createProduct(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:     name,
		Slug:     uuid.NewString(),
		SKU:      "SKU-" + name,
		Price:    decimal.NewNullDecimal(dec(price)),
		Stock:    stock,
		Images:   []string{"https://img.example.com/" + name + ".jpg"},
		IsActive: true,
	}
	require.NoError(t, f.catalog.CreateProduct(f.ctx, product))
	return product
}

func (f *fixture) createCoupon(t *testing.T, c models.Coupon) *models.Coupon {
	t.Helper()
	if c.ValidFrom.IsZero() {
		c.ValidFrom = time.Now().Add(-24 * time.Hour)
	}
	if c.ValidUntil.IsZero() {
		c.ValidUntil = time.Now().Add(24 * time.Hour)
	}
	if c.DiscountType == "" {
		c.DiscountType = models.DiscountPercentage
	}
	c.IsActive = true
	require.NoError(t, f.coupons.Create(f.ctx, &c))
	return &c
}

func (f *fixture) addToCart(t *testing.T, product *models.Product, qty int) *CartView {
	t.Helper()
	view, err := f.carts.AddItem(f.ctx, f.user.ID, AddItemInput{ProductID: product.ID, Quantity: qty})
	require.NoError(t, err)
	return view
}

func (f *fixture) reloadProduct(t *testing.T, id uuid.UUID) models.Product {
	t.Helper()
	var product models.Product
	require.NoError(t, f.db.First(&product, "id = ?", id).Error)
	return product
}

func (f *fixture) checkout(t *testing.T, method string) *models.Order {
	t.Helper()
	order, err := f.orders.Create(f.ctx, f.user.ID, CheckoutInput{
		ShippingAddress: testAddress(),
		PaymentMethod:   method,
		ShippingMethod:  models.ShippingExpress,
	})
	require.NoError(t, err)
	return order
}

func testAddress() models.Address {
	return models.Address{
		FullName:   "Ada Lovelace",
		Phone:      "+91 98765 43210",
		Line1:      "12 Garden Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "IN",
	}
}

type recordingListener struct {
	events []OrderEvent
}

func (r *recordingListener) OnOrderEvent(event OrderEvent) {
	r.events = append(r.events, event)
}
