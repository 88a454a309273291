package services

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/example/flourish/internal/models"
)

const testWebhookSecret = "whsec_test"

func newTestPayments(f *fixture) (*PaymentService, *[]*stripe.PaymentIntentParams) {
	var calls []*stripe.PaymentIntentParams
	s := NewPaymentService(f.db, f.orders, "", testWebhookSecret)
	s.newIntent = func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		calls = append(calls, params)
		return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret"}, nil
	}
	return s, &calls
}

func signedEvent(t *testing.T, eventType stripe.EventType, intent map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-01-01",
		"data":        map[string]interface{}{"object": intent},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestCreatePaymentIntent(t *testing.T) {
	f := newFixture(t)
	payments, calls := newTestPayments(f)
	p := f.createProduct(t, "rose", "100", 5)
	f.addToCart(t, p, 1)
	order := f.checkout(t, models.PaymentMethodCard)

	result, err := payments.CreateIntent(f.ctx, Actor{UserID: f.user.ID}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_123_secret", result.ClientSecret)
	assertAmount(t, "268", result.Amount)

	require.Len(t, *calls, 1)
	params := (*calls)[0]
	assert.Equal(t, int64(26800), *params.Amount)
	assert.Equal(t, "inr", *params.Currency)
	assert.Equal(t, order.ID.String(), params.Metadata["order_id"])

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "intent_id = ?", "pi_123").Error)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
}

func TestCreatePaymentIntentRejections(t *testing.T) {
	f := newFixture(t)
	payments, _ := newTestPayments(f)
	p := f.createProduct(t, "rose", "100", 5)
	f.addToCart(t, p, 1)
	cod := f.checkout(t, models.PaymentMethodCOD)

	_, err := payments.CreateIntent(f.ctx, Actor{UserID: f.user.ID}, cod.ID)
	assertRejected(t, err, models.RejectInvalidPayment)

	disabled := NewPaymentService(f.db, f.orders, "", "")
	_, err = disabled.CreateIntent(f.ctx, Actor{UserID: f.user.ID}, cod.ID)
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
}

func TestWebhookMarksOrderPaid(t *testing.T) {
	f := newFixture(t)
	payments, _ := newTestPayments(f)
	p := f.createProduct(t, "rose", "100", 5)
	f.addToCart(t, p, 1)
	order := f.checkout(t, models.PaymentMethodCard)
	_, err := payments.CreateIntent(f.ctx, Actor{UserID: f.user.ID}, order.ID)
	require.NoError(t, err)

	payload, header := signedEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]interface{}{
		"id":       "pi_123",
		"object":   "payment_intent",
		"metadata": map[string]string{"order_id": order.ID.String()},
	})
	require.NoError(t, payments.HandleWebhook(f.ctx, payload, header))
	// Replays are harmless.
	require.NoError(t, payments.HandleWebhook(f.ctx, payload, header))

	got, err := f.orders.Get(f.ctx, Actor{UserID: f.user.ID}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)
	assert.Len(t, got.StatusHistory, 2)

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "intent_id = ?", "pi_123").Error)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
}

func TestWebhookPaymentFailed(t *testing.T) {
	f := newFixture(t)
	payments, _ := newTestPayments(f)
	p := f.createProduct(t, "rose", "100", 5)
	f.addToCart(t, p, 1)
	order := f.checkout(t, models.PaymentMethodCard)
	_, err := payments.CreateIntent(f.ctx, Actor{UserID: f.user.ID}, order.ID)
	require.NoError(t, err)

	payload, header := signedEvent(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]interface{}{
		"id":                 "pi_123",
		"object":             "payment_intent",
		"last_payment_error": map[string]string{"message": "Your card was declined."},
	})
	require.NoError(t, payments.HandleWebhook(f.ctx, payload, header))

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "intent_id = ?", "pi_123").Error)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "Your card was declined.", payment.Failure)

	got, err := f.orders.Get(f.ctx, Actor{UserID: f.user.ID}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestLateFailureOfSecondIntentKeepsOrderPaid(t *testing.T) {
	f := newFixture(t)
	payments, _ := newTestPayments(f)
	n := 0
	payments.newIntent = func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		n++
		id := fmt.Sprintf("pi_%d", n)
		return &stripe.PaymentIntent{ID: id, ClientSecret: id + "_secret"}, nil
	}
	p := f.createProduct(t, "rose", "100", 5)
	f.addToCart(t, p, 1)
	order := f.checkout(t, models.PaymentMethodCard)

	first, err := payments.CreateIntent(f.ctx, Actor{UserID: f.user.ID}, order.ID)
	require.NoError(t, err)
	second, err := payments.CreateIntent(f.ctx, Actor{UserID: f.user.ID}, order.ID)
	require.NoError(t, err)

	payload, header := signedEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]interface{}{
		"id":     first.IntentID,
		"object": "payment_intent",
	})
	require.NoError(t, payments.HandleWebhook(f.ctx, payload, header))

	payload, header = signedEvent(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]interface{}{
		"id":                 second.IntentID,
		"object":             "payment_intent",
		"last_payment_error": map[string]string{"message": "Your card was declined."},
	})
	require.NoError(t, payments.HandleWebhook(f.ctx, payload, header))

	got, err := f.orders.Get(f.ctx, Actor{UserID: f.user.ID}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "intent_id = ?", second.IntentID).Error)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	payments, _ := newTestPayments(f)

	payload, _ := signedEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]interface{}{"id": "pi_1"})
	err := payments.HandleWebhook(f.ctx, payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
