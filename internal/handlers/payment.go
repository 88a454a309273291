package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/flourish/internal/services"
)

// PaymentHandler serves card payment endpoints.
type PaymentHandler struct {
	payments *services.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreateIntent opens a card payment for the order in the path and returns
// the client secret the storefront confirms with.
func (h *PaymentHandler) CreateIntent(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.payments.CreateIntent(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return created(c, result)
}

// Webhook receives gateway events. The raw body is needed for signature
// verification.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	if err := h.payments.HandleWebhook(c.UserContext(), payload, c.Get("Stripe-Signature")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"received": true})
}
