package services

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/example/flourish/internal/models"
)

// EmailService sends order mails to customers through SendGrid.
type EmailService struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewEmailService creates an EmailService. It returns nil when apiKey is
// empty so callers can skip subscribing it.
func NewEmailService(apiKey, from string) *EmailService {
	if apiKey == "" {
		return nil
	}
	return &EmailService{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("Flourish", from),
	}
}

// OrderEmail is a rendered customer message.
type OrderEmail struct {
	Subject string
	Text    string
	HTML    string
}

// RenderOrderEmail builds the customer message for event. ok is false for
// events customers are not mailed about.
func RenderOrderEmail(event OrderEvent) (msg OrderEmail, ok bool) {
	order := event.Order
	name := "there"
	if order.User != nil && order.User.FirstName != "" {
		name = order.User.FirstName
	}

	var headline string
	switch {
	case event.Type == EventOrderCreated:
		msg.Subject = fmt.Sprintf("Your Flourish order %s", order.OrderNumber)
		headline = "Thank you for your order! We have received it and will let you know when it ships."
	case event.Type == EventOrderCancelled:
		msg.Subject = fmt.Sprintf("Order %s cancelled", order.OrderNumber)
		headline = "Your order has been cancelled. If you paid by card, the refund is on its way."
	case event.Type == EventOrderStatusChanged && order.Status == models.OrderStatusShipped:
		msg.Subject = fmt.Sprintf("Order %s has shipped", order.OrderNumber)
		headline = "Good news, your order is on its way."
	case event.Type == EventOrderStatusChanged && order.Status == models.OrderStatusDelivered:
		msg.Subject = fmt.Sprintf("Order %s delivered", order.OrderNumber)
		headline = "Your order has been delivered. We hope you love it."
	default:
		return OrderEmail{}, false
	}

	var text, body strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n%s\n\n", name, headline)
	fmt.Fprintf(&body, "<p>Hi %s,</p><p>%s</p><table>", html.EscapeString(name), html.EscapeString(headline))
	for _, item := range order.Items {
		label := item.Name
		if item.VariantLabel != "" {
			label += " (" + item.VariantLabel + ")"
		}
		line := FormatPrice(item.LineTotal, order.Currency)
		fmt.Fprintf(&text, "%d x %s  %s\n", item.Quantity, label, line)
		fmt.Fprintf(&body, "<tr><td>%d x %s</td><td>%s</td></tr>", item.Quantity, html.EscapeString(label), line)
	}
	total := FormatPrice(order.Total, order.Currency)
	fmt.Fprintf(&text, "\nTotal: %s\nOrder number: %s\n", total, order.OrderNumber)
	fmt.Fprintf(&body, "</table><p><b>Total:</b> %s<br><b>Order number:</b> %s</p>", total, order.OrderNumber)

	msg.Text = text.String()
	msg.HTML = body.String()
	return msg, true
}

// OnOrderEvent mails the customer in the background.
func (s *EmailService) OnOrderEvent(event OrderEvent) {
	if event.Order.User == nil || event.Order.User.Email == "" {
		return
	}
	msg, ok := RenderOrderEmail(event)
	if !ok {
		return
	}
	to := mail.NewEmail(event.Order.User.DisplayName(), event.Order.User.Email)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.send(ctx, to, msg); err != nil {
			log.Printf("[Email] %v", err)
		}
	}()
}

// SendPasswordReset mails a one-time reset code.
func (s *EmailService) SendPasswordReset(ctx context.Context, user models.User, code string, ttl time.Duration) error {
	minutes := int(ttl.Minutes())
	msg := OrderEmail{
		Subject: "Your Flourish password reset code",
		Text:    fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, minutes),
		HTML: fmt.Sprintf("<p>Your password reset code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>",
			html.EscapeString(code), minutes),
	}
	return s.send(ctx, mail.NewEmail(user.DisplayName(), user.Email), msg)
}

func (s *EmailService) send(ctx context.Context, to *mail.Email, msg OrderEmail) error {
	resp, err := s.client.SendWithContext(ctx, mail.NewSingleEmail(s.from, msg.Subject, to, msg.Text, msg.HTML))
	if err != nil {
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned %d for %q", resp.StatusCode, msg.Subject)
	}
	log.Printf("[Email] Sent %q to %s", msg.Subject, to.Address)
	return nil
}
