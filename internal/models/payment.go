package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const PaymentProviderStripe = "stripe"

// Payment tracks a gateway payment attempt for an order.
type Payment struct {
	BaseModel
	OrderID  uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	Provider string          `json:"provider"`
	IntentID string          `gorm:"uniqueIndex" json:"intent_id"`
	Amount   decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	Failure  string          `json:"failure,omitempty"`
}
