package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals(t *testing.T) {
	summary := CartSummary{ItemCount: 3, Subtotal: dec("250"), Discount: dec("20"), Total: dec("230")}

	totals, err := ComputeTotals(summary, ShippingExpress)
	require.NoError(t, err)

	assertAmount(t, "250", totals.Subtotal)
	assertAmount(t, "45", totals.Tax)
	assertAmount(t, "150", totals.ShippingCost)
	assertAmount(t, "20", totals.Discount)
	assertAmount(t, "425", totals.Total)
}

func TestComputeTotalsUnknownShipping(t *testing.T) {
	_, err := ComputeTotals(CartSummary{Subtotal: dec("10")}, "teleport")
	var rejection *Rejection
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, RejectInvalidShipping, rejection.Code)
}

func TestShippingCostTable(t *testing.T) {
	for method, want := range map[string]string{
		ShippingStandard:  "50",
		ShippingExpress:   "150",
		ShippingOvernight: "300",
	} {
		got, err := ShippingCost(method)
		require.NoError(t, err)
		assertAmount(t, want, got)
	}
}

func TestOrderUpdateStatusAppendsHistory(t *testing.T) {
	order := &Order{Status: OrderStatusPending}
	admin := uuid.New()
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	order.UpdateStatus(OrderStatusShipped, "handed to courier", &admin, at)
	assert.Nil(t, order.DeliveredAt)

	order.UpdateStatus(OrderStatusDelivered, "", &admin, at.Add(time.Hour))

	require.Len(t, order.StatusHistory, 2)
	assert.Equal(t, OrderStatusShipped, order.StatusHistory[0].Status)
	assert.Equal(t, "handed to courier", order.StatusHistory[0].Note)
	assert.Equal(t, OrderStatusDelivered, order.Status)
	require.NotNil(t, order.DeliveredAt)
	assert.Equal(t, at.Add(time.Hour), *order.DeliveredAt)
}

func TestOrderCanCancel(t *testing.T) {
	for status, want := range map[string]bool{
		OrderStatusPending:    true,
		OrderStatusConfirmed:  true,
		OrderStatusProcessing: false,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  false,
		OrderStatusCancelled:  false,
	} {
		order := Order{Status: status}
		assert.Equal(t, want, order.CanCancel(), status)
	}
}

func TestFormatOrderNumber(t *testing.T) {
	day := SequenceDay(time.Date(2025, 1, 7, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "250107", day)
	assert.Equal(t, "FL2501070042", FormatOrderNumber(day, 42))
}
