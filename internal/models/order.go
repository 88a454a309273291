package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusReturned   = "returned"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

const (
	PaymentMethodCard = "card"
	PaymentMethodCOD  = "cod"
)

const (
	ShippingStandard  = "standard"
	ShippingExpress   = "express"
	ShippingOvernight = "overnight"
)

// TaxRate is the flat GST rate applied to the order subtotal.
var TaxRate = decimal.RequireFromString("0.18")

var shippingRates = map[string]decimal.Decimal{
	ShippingStandard:  decimal.NewFromInt(50),
	ShippingExpress:   decimal.NewFromInt(150),
	ShippingOvernight: decimal.NewFromInt(300),
}

var orderStatuses = map[string]bool{
	OrderStatusPending:    true,
	OrderStatusConfirmed:  true,
	OrderStatusProcessing: true,
	OrderStatusShipped:    true,
	OrderStatusDelivered:  true,
	OrderStatusCancelled:  true,
	OrderStatusReturned:   true,
}

// ShippingCost looks up the flat rate for a shipping method.
func ShippingCost(method string) (decimal.Decimal, error) {
	cost, ok := shippingRates[method]
	if !ok {
		return decimal.Zero, Reject(RejectInvalidShipping, "Unknown shipping method %q", method)
	}
	return cost, nil
}

// IsOrderStatus reports whether status is one of the known order statuses.
func IsOrderStatus(status string) bool {
	return orderStatuses[status]
}

// IsTerminalStatus reports whether no further fulfilment happens after status.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled || status == OrderStatusReturned
}

// Address is a postal address copied into an order.
type Address struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// IsZero reports whether the address carries no data.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Order is the checkout snapshot. Items and amounts are copied at creation
// and never re-derived from the catalog.
type Order struct {
	BaseModel
	OrderNumber        string             `gorm:"uniqueIndex" json:"order_number"`
	UserID             uuid.UUID          `gorm:"type:uuid;index" json:"user_id"`
	User               *User              `json:"user,omitempty"`
	Items              []OrderItem        `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	ShippingAddress    Address            `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingAddress     Address            `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`
	PaymentMethod      string             `json:"payment_method"`
	PaymentStatus      string             `gorm:"index" json:"payment_status"`
	ShippingMethod     string             `json:"shipping_method"`
	Status             string             `gorm:"index" json:"status"`
	Subtotal           decimal.Decimal    `gorm:"type:decimal(12,2)" json:"subtotal"`
	Tax                decimal.Decimal    `gorm:"type:decimal(12,2)" json:"tax"`
	ShippingCost       decimal.Decimal    `gorm:"type:decimal(12,2)" json:"shipping_cost"`
	Discount           decimal.Decimal    `gorm:"type:decimal(12,2)" json:"discount"`
	Total              decimal.Decimal    `gorm:"type:decimal(12,2)" json:"total"`
	Currency           string             `json:"currency"`
	CouponCode         string             `json:"coupon_code,omitempty"`
	CouponDiscountType string             `json:"coupon_discount_type,omitempty"`
	Notes              string             `json:"notes"`
	StatusHistory      []OrderStatusEntry `gorm:"constraint:OnDelete:CASCADE" json:"status_history"`
	DeliveredAt        *time.Time         `json:"delivered_at"`
	CancelledAt        *time.Time         `json:"cancelled_at"`
	PaidAt             *time.Time         `json:"paid_at"`
}

type OrderItem struct {
	BaseModel
	OrderID             uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID           uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	VariantID           *uuid.UUID      `gorm:"type:uuid" json:"variant_id"`
	Name                string          `json:"name"`
	SKU                 string          `json:"sku"`
	Image               string          `json:"image"`
	VariantLabel        string          `json:"variant_label"`
	SelectedBundleItems []string        `gorm:"serializer:json;type:text" json:"selected_bundle_items"`
	Price               decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	Quantity            int             `json:"quantity"`
	LineTotal           decimal.Decimal `gorm:"type:decimal(12,2)" json:"line_total"`
}

// OrderStatusEntry is one append-only row of the status history.
type OrderStatusEntry struct {
	BaseModel
	OrderID   uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	Status    string     `json:"status"`
	Note      string     `json:"note"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid" json:"updated_by"`
	At        time.Time  `json:"at"`
}

// OrderSequence holds the per-day order counter.
type OrderSequence struct {
	Day     string `gorm:"primaryKey;size:6"`
	Counter int
}

// SequenceDay formats the day component used by order numbers.
func SequenceDay(t time.Time) string {
	return t.Format("060102")
}

// FormatOrderNumber renders FL + yyMMdd + four digit daily sequence.
func FormatOrderNumber(day string, seq int) string {
	return fmt.Sprintf("FL%s%04d", day, seq)
}

// OrderTotals is the price breakdown of a checkout.
type OrderTotals struct {
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	ShippingCost decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
}

// ComputeTotals applies tax and shipping to a cart summary.
func ComputeTotals(summary CartSummary, shippingMethod string) (OrderTotals, error) {
	shipping, err := ShippingCost(shippingMethod)
	if err != nil {
		return OrderTotals{}, err
	}
	totals := OrderTotals{
		Subtotal:     summary.Subtotal,
		Tax:          summary.Subtotal.Mul(TaxRate).Round(2),
		ShippingCost: shipping,
		Discount:     summary.Discount,
	}
	total := totals.Subtotal.Add(totals.Tax).Add(totals.ShippingCost).Sub(totals.Discount)
	totals.Total = decimal.Max(decimal.Zero, total)
	return totals, nil
}

// ApplyTotals copies the breakdown onto the order.
func (o *Order) ApplyTotals(t OrderTotals) {
	o.Subtotal = t.Subtotal
	o.Tax = t.Tax
	o.ShippingCost = t.ShippingCost
	o.Discount = t.Discount
	o.Total = t.Total
}

// UpdateStatus moves the order to status and appends a history entry. Any
// status may follow any other; the cancel guard lives in CanCancel.
func (o *Order) UpdateStatus(status, note string, by *uuid.UUID, at time.Time) OrderStatusEntry {
	o.Status = status
	entry := OrderStatusEntry{
		OrderID:   o.ID,
		Status:    status,
		Note:      note,
		UpdatedBy: by,
		At:        at,
	}
	o.StatusHistory = append(o.StatusHistory, entry)

	switch status {
	case OrderStatusDelivered:
		o.DeliveredAt = &at
	case OrderStatusCancelled:
		o.CancelledAt = &at
	}
	return entry
}

// CanCancel reports whether the order may still be cancelled.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}

// IsOwnedBy reports whether userID placed the order.
func (o *Order) IsOwnedBy(userID uuid.UUID) bool {
	return o.UserID == userID
}
