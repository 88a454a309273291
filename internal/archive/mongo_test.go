package archive

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/flourish/internal/models"
)

func TestNewOrderDocument(t *testing.T) {
	order := models.Order{
		OrderNumber:   "FL2501070001",
		UserID:        uuid.New(),
		Status:        models.OrderStatusPending,
		PaymentMethod: models.PaymentMethodCOD,
		Total:         decimal.RequireFromString("425"),
		User:          &models.User{Email: "ana@example.com"},
		Items: []models.OrderItem{
			{Name: "Rose", Price: decimal.RequireFromString("100"), Quantity: 2, LineTotal: decimal.RequireFromString("200")},
		},
		StatusHistory: []models.OrderStatusEntry{
			{Status: models.OrderStatusPending, Note: "Order placed", At: time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC)},
		},
	}
	order.ID = uuid.New()

	doc := NewOrderDocument(order)

	assert.Equal(t, order.ID.String(), doc.ID)
	assert.Equal(t, "ana@example.com", doc.CustomerEmail)
	assert.Equal(t, "425.00", doc.Total.String())
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "200.00", doc.Items[0].LineTotal.String())
	require.Len(t, doc.History, 1)
	assert.Equal(t, models.OrderStatusPending, doc.History[0].Status)
}
