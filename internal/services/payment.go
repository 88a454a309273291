package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/models"
)

// IntentCreator creates a PaymentIntent at the gateway.
type IntentCreator func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

// PaymentIntentResult is what the storefront needs to confirm a card payment.
type PaymentIntentResult struct {
	IntentID     string          `json:"intent_id"`
	ClientSecret string          `json:"client_secret"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

// PaymentService takes card payments for orders through Stripe.
type PaymentService struct {
	db            *gorm.DB
	orders        *OrderService
	webhookSecret string
	newIntent     IntentCreator
}

// NewPaymentService wires Stripe with secretKey. An empty key leaves
// payments disabled.
func NewPaymentService(db *gorm.DB, orders *OrderService, secretKey, webhookSecret string) *PaymentService {
	s := &PaymentService{db: db, orders: orders, webhookSecret: webhookSecret}
	if secretKey != "" {
		client := paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
		s.newIntent = client.New
	}
	return s
}

// Enabled reports whether a gateway key is configured.
func (s *PaymentService) Enabled() bool {
	return s.newIntent != nil
}

// minorUnits converts an amount to the gateway's smallest currency unit.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// CreateIntent opens a PaymentIntent for an unpaid card order.
func (s *PaymentService) CreateIntent(ctx context.Context, actor Actor, orderID uuid.UUID) (*PaymentIntentResult, error) {
	if !s.Enabled() {
		return nil, ErrPaymentsDisabled
	}

	order, err := s.orders.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case order.PaymentMethod != models.PaymentMethodCard:
		return nil, models.Reject(models.RejectInvalidPayment, "Order %s is not paid by card", order.OrderNumber)
	case order.PaymentStatus == models.PaymentStatusPaid:
		return nil, models.Reject(models.RejectInvalidPayment, "Order %s is already paid", order.OrderNumber)
	case order.Status == models.OrderStatusCancelled:
		return nil, models.Reject(models.RejectInvalidPayment, "Order %s is cancelled", order.OrderNumber)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(order.Total)),
		Currency: stripe.String(order.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String("Order " + order.OrderNumber),
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("order_number", order.OrderNumber)
	params.AddMetadata("user_id", order.UserID.String())

	intent, err := s.newIntent(params)
	if err != nil {
		log.Printf("[Stripe] Failed to create intent for %s: %v", order.OrderNumber, err)
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	payment := models.Payment{
		OrderID:  order.ID,
		Provider: models.PaymentProviderStripe,
		IntentID: intent.ID,
		Amount:   order.Total,
		Currency: order.Currency,
		Status:   models.PaymentStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}

	log.Printf("[Stripe] Created intent %s for %s", intent.ID, order.OrderNumber)
	return &PaymentIntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       order.Total,
		Currency:     order.Currency,
	}, nil
}

// HandleWebhook verifies and applies a Stripe event. Replayed events for an
// already settled payment are ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return ErrPaymentsDisabled
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		log.Printf("[Stripe] Rejected webhook: %v", err)
		return ErrInvalidSignature
	}

	var status string
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		status = models.PaymentStatusPaid
	case stripe.EventTypePaymentIntentPaymentFailed:
		status = models.PaymentStatusFailed
	default:
		log.Printf("[Stripe] Ignoring event %s", event.Type)
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("decode payment intent: %w", err)
	}

	failure := ""
	if intent.LastPaymentError != nil {
		failure = intent.LastPaymentError.Msg
	}
	return s.settle(ctx, intent.ID, intent.Metadata["order_id"], status, failure)
}

func (s *PaymentService) settle(ctx context.Context, intentID, orderRef, status, failure string) error {
	var payment models.Payment
	err := s.db.WithContext(ctx).Where("intent_id = ?", intentID).First(&payment).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		orderID, parseErr := uuid.Parse(orderRef)
		if parseErr != nil {
			log.Printf("[Stripe] Intent %s has no matching payment or order", intentID)
			return nil
		}
		payment = models.Payment{OrderID: orderID, Provider: models.PaymentProviderStripe, IntentID: intentID}
	case err != nil:
		return err
	}

	if payment.Status == status || payment.Status == models.PaymentStatusPaid {
		return nil
	}

	payment.Status = status
	payment.Failure = failure
	if err := s.db.WithContext(ctx).Save(&payment).Error; err != nil {
		return err
	}

	note := "Payment received"
	if status == models.PaymentStatusFailed {
		note = "Payment failed"
	}
	if _, err := s.orders.UpdatePaymentStatus(ctx, payment.OrderID, status, note); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Printf("[Stripe] Intent %s references unknown order %s", intentID, payment.OrderID)
			return nil
		}
		return err
	}
	log.Printf("[Stripe] Intent %s settled as %s", intentID, status)
	return nil
}
