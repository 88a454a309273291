package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/utils"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
)

// OrderEvent is emitted after an order change has been committed.
type OrderEvent struct {
	Type           string       `json:"type"`
	Order          models.Order `json:"order"`
	PreviousStatus string       `json:"previous_status,omitempty"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

// OrderListener receives committed order events. Implementations that do
// network I/O must not block the caller.
type OrderListener interface {
	OnOrderEvent(event OrderEvent)
}

// Actor is the authenticated caller of an order operation.
type Actor struct {
	UserID uuid.UUID
	Admin  bool
}

// CheckoutInput carries the customer's checkout choices.
type CheckoutInput struct {
	ShippingAddress models.Address
	BillingAddress  *models.Address
	PaymentMethod   string
	ShippingMethod  string
	Notes           string
}

// OrderFilter narrows List.
type OrderFilter struct {
	UserID *uuid.UUID
	Status string
	Search string
	Page   utils.Pagination
}

// OrderStats aggregates orders, optionally for one user.
type OrderStats struct {
	TotalOrders     int64           `json:"totalOrders"`
	TotalSpent      decimal.Decimal `json:"totalSpent"`
	AverageOrder    decimal.Decimal `json:"averageOrderValue"`
	PendingOrders   int64           `json:"pendingOrders"`
	DeliveredOrders int64           `json:"deliveredOrders"`
}

// OrderService turns carts into orders and manages their lifecycle.
type OrderService struct {
	db        *gorm.DB
	carts     *CartService
	coupons   *CouponService
	stock     StockLedger
	currency  string
	now       func() time.Time
	listeners []OrderListener
}

// NewOrderService constructs OrderService.
func NewOrderService(db *gorm.DB, carts *CartService, coupons *CouponService, currency string) *OrderService {
	return &OrderService{db: db, carts: carts, coupons: coupons, currency: currency, now: time.Now}
}

// Subscribe registers a listener for committed order events.
func (s *OrderService) Subscribe(l OrderListener) {
	s.listeners = append(s.listeners, l)
}

func (s *OrderService) emit(eventType string, order *models.Order, previous string) {
	event := OrderEvent{Type: eventType, Order: *order, PreviousStatus: previous, OccurredAt: s.now()}
	for _, l := range s.listeners {
		l.OnOrderEvent(event)
	}
}

// Create checks out the user's cart. Pruning, coupon revalidation, stock
// reservation, the order insert, the coupon ledger and clearing the cart
// all happen in one transaction: either every effect lands or none does.
func (s *OrderService) Create(ctx context.Context, userID uuid.UUID, in CheckoutInput) (*models.Order, error) {
	if in.PaymentMethod != models.PaymentMethodCard && in.PaymentMethod != models.PaymentMethodCOD {
		return nil, models.Reject(models.RejectInvalidPayment, "Unsupported payment method %q", in.PaymentMethod)
	}
	if _, err := models.ShippingCost(in.ShippingMethod); err != nil {
		return nil, err
	}

	now := s.now()
	var orderID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, _, err := s.carts.load(tx, userID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return models.Reject(models.RejectEmptyCart, "Cart is empty")
		}

		var coupon *models.Coupon
		if cart.HasCoupon() {
			coupon, err = s.coupons.findValid(tx, cart.Coupon.Code, &userID, now)
			if err != nil {
				return err
			}
			discount, err := coupon.CalculateDiscount(cart.Summary().Subtotal)
			if err != nil {
				return err
			}
			cart.ApplyCoupon(coupon.Code, discount, coupon.DiscountType)
		}

		totals, err := models.ComputeTotals(cart.Summary(), in.ShippingMethod)
		if err != nil {
			return err
		}

		order := models.Order{
			UserID:          userID,
			ShippingAddress: in.ShippingAddress,
			BillingAddress:  in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
			PaymentStatus:   models.PaymentStatusPending,
			ShippingMethod:  in.ShippingMethod,
			Currency:        s.currency,
			Notes:           in.Notes,
		}
		order.ID = uuid.New()
		if in.BillingAddress != nil && !in.BillingAddress.IsZero() {
			order.BillingAddress = *in.BillingAddress
		}
		order.ApplyTotals(totals)
		if coupon != nil {
			order.CouponCode = cart.Coupon.Code
			order.CouponDiscountType = cart.Coupon.DiscountType
		}

		for _, line := range cart.Items {
			order.Items = append(order.Items, snapshotLine(line))
			if err := s.stock.Reserve(tx, StockLine{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
				Name:      line.Product.Name,
			}); err != nil {
				return err
			}
		}

		day := models.SequenceDay(now)
		seq, err := nextOrderSequence(tx, day)
		if err != nil {
			return err
		}
		order.OrderNumber = models.FormatOrderNumber(day, seq)
		order.UpdateStatus(models.OrderStatusPending, "Order placed", &userID, now)

		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if coupon != nil {
			if err := s.coupons.UseCoupon(tx, coupon.ID, userID, order.ID); err != nil {
				return err
			}
		}

		cart.Clear()
		if err := s.carts.save(tx, cart); err != nil {
			return err
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := loadOrder(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	log.Printf("[Order] Created %s for user %s, total %s", order.OrderNumber, userID, order.Total.StringFixed(2))
	s.emit(EventOrderCreated, order, "")
	return order, nil
}

// snapshotLine copies the catalog data the order must keep even if the
// product later changes or disappears.
func snapshotLine(line models.CartItem) models.OrderItem {
	item := models.OrderItem{
		ProductID:           line.ProductID,
		VariantID:           line.VariantID,
		SelectedBundleItems: line.SelectedBundleItems,
		Price:               line.Price,
		Quantity:            line.Quantity,
		LineTotal:           line.LineTotal(),
	}
	if p := line.Product; p != nil {
		item.Name = p.Name
		item.SKU = p.SKU
		if len(p.Images) > 0 {
			item.Image = p.Images[0]
		}
		if line.VariantID != nil {
			if v := p.FindVariant(*line.VariantID); v != nil {
				item.VariantLabel = v.Label()
				if v.SKU != "" {
					item.SKU = v.SKU
				}
			}
		}
	}
	return item
}

// nextOrderSequence atomically bumps and returns the counter for day.
func nextOrderSequence(tx *gorm.DB, day string) (int, error) {
	seq := models.OrderSequence{Day: day, Counter: 1}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"counter": gorm.Expr("order_sequences.counter + 1"),
		}),
	}).Create(&seq).Error
	if err != nil {
		return 0, err
	}
	if err := tx.First(&seq, "day = ?", day).Error; err != nil {
		return 0, err
	}
	return seq.Counter, nil
}

func loadOrder(tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := tx.Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("at asc, created_at asc") }).
		Preload("User").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err, "Order")
	}
	return &order, nil
}

// Get returns an order the actor may see. Other users' orders read as
// not found.
func (s *OrderService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	order, err := loadOrder(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !order.IsOwnedBy(actor.UserID) {
		return nil, notFound("Order")
	}
	return order, nil
}

// List returns one page of orders, newest first.
func (s *OrderService) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		query = query.Where("order_number LIKE ? ESCAPE '\\'", "%"+escapeLike(f.Search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	q := query.Preload("Items")
	if f.UserID == nil {
		q = q.Preload("User")
	}
	err := q.Order("created_at desc").Limit(f.Page.Limit).Offset(f.Page.Offset).Find(&orders).Error
	return orders, total, err
}

// Cancel moves a pending or confirmed order to cancelled and returns its
// stock. The status flip is conditional, so stock is restored once even
// under concurrent cancels.
func (s *OrderService) Cancel(ctx context.Context, actor Actor, id uuid.UUID, note string) (*models.Order, error) {
	now := s.now()
	var previous string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(tx, id)
		if err != nil {
			return err
		}
		if !actor.Admin && !order.IsOwnedBy(actor.UserID) {
			return notFound("Order")
		}
		if !order.CanCancel() {
			return models.Reject(models.RejectNotCancellable, "Order cannot be cancelled once it is %s", order.Status)
		}
		previous = order.Status

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status IN ?", id, []string{models.OrderStatusPending, models.OrderStatusConfirmed}).
			UpdateColumns(map[string]interface{}{
				"status":       models.OrderStatusCancelled,
				"cancelled_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.Reject(models.RejectNotCancellable, "Order was changed by another request")
		}

		if note == "" {
			note = "Order cancelled"
		}
		entry := order.UpdateStatus(models.OrderStatusCancelled, note, &actor.UserID, now)
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		for _, item := range order.Items {
			if err := s.stock.Release(tx, StockLine{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
				Name:      item.Name,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := loadOrder(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	log.Printf("[Order] Cancelled %s (was %s)", order.OrderNumber, previous)
	s.emit(EventOrderCancelled, order, previous)
	return order, nil
}

// UpdateStatus sets any known status and appends it to the history.
// Cancellation is routed through Cancel so its guard and stock return
// apply.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, status, note string) (*models.Order, error) {
	if !models.IsOrderStatus(status) {
		return nil, models.Reject(models.RejectInvalidStatus, "Unknown order status %q", status)
	}
	if status == models.OrderStatusCancelled {
		return s.Cancel(ctx, actor, id, note)
	}

	now := s.now()
	var previous string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(tx, id)
		if err != nil {
			return err
		}
		previous = order.Status

		entry := order.UpdateStatus(status, note, &actor.UserID, now)
		updates := map[string]interface{}{
			"status":     order.Status,
			"updated_at": now,
		}
		if status == models.OrderStatusDelivered {
			updates["delivered_at"] = now
			if order.PaymentMethod == models.PaymentMethodCOD && order.PaymentStatus == models.PaymentStatusPending {
				updates["payment_status"] = models.PaymentStatusPaid
				updates["paid_at"] = now
			}
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", id).UpdateColumns(updates).Error; err != nil {
			return err
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	order, err := loadOrder(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	log.Printf("[Order] %s moved from %s to %s", order.OrderNumber, previous, status)
	s.emit(EventOrderStatusChanged, order, previous)
	return order, nil
}

// UpdatePaymentStatus records a gateway outcome. A successful payment
// confirms a pending order; once paid, later outcomes leave the order as is.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, paymentStatus, note string) (*models.Order, error) {
	now := s.now()
	var previous string
	ignored := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(tx, id)
		if err != nil {
			return err
		}
		previous = order.Status
		if order.PaymentStatus == models.PaymentStatusPaid {
			ignored = true
			return nil
		}

		updates := map[string]interface{}{
			"payment_status": paymentStatus,
			"updated_at":     now,
		}
		if paymentStatus == models.PaymentStatusPaid {
			updates["paid_at"] = now
			if order.Status == models.OrderStatusPending {
				entry := order.UpdateStatus(models.OrderStatusConfirmed, note, nil, now)
				updates["status"] = order.Status
				if err := tx.Create(&entry).Error; err != nil {
					return err
				}
			}
		}
		return tx.Model(&models.Order{}).Where("id = ?", id).UpdateColumns(updates).Error
	})
	if err != nil {
		return nil, err
	}

	order, err := loadOrder(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if ignored {
		log.Printf("[Order] %s is already paid; ignoring %s", order.OrderNumber, paymentStatus)
		return order, nil
	}
	log.Printf("[Order] %s payment is now %s", order.OrderNumber, paymentStatus)
	if order.Status != previous {
		s.emit(EventOrderStatusChanged, order, previous)
	}
	return order, nil
}

// Stats aggregates count, spend and status counts over all orders, or one
// user's orders when userID is set.
func (s *OrderService) Stats(ctx context.Context, userID *uuid.UUID) (*OrderStats, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var row struct {
		TotalOrders     int64
		TotalSpent      decimal.NullDecimal
		PendingOrders   int64
		DeliveredOrders int64
	}
	err := query.Select(
		"COUNT(*) AS total_orders, "+
			"SUM(total) AS total_spent, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending_orders, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS delivered_orders",
		models.OrderStatusPending, models.OrderStatusDelivered,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &OrderStats{
		TotalOrders:     row.TotalOrders,
		TotalSpent:      decimal.Zero,
		AverageOrder:    decimal.Zero,
		PendingOrders:   row.PendingOrders,
		DeliveredOrders: row.DeliveredOrders,
	}
	if row.TotalSpent.Valid {
		stats.TotalSpent = row.TotalSpent.Decimal.Round(2)
	}
	if stats.TotalOrders > 0 {
		stats.AverageOrder = stats.TotalSpent.Div(decimal.NewFromInt(stats.TotalOrders)).Round(2)
	}
	return stats, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern using '\' as
// the escape character.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
