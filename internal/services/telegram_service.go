package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/flourish/internal/models"
)

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// FormatPrice renders an amount with thousand separators, two decimals and
// an upper-case currency code.
func FormatPrice(amount decimal.Decimal, currency string) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var result strings.Builder
	if amount.IsNegative() {
		result.WriteString("-")
	}
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	result.WriteString("." + frac)

	if currency != "" {
		result.WriteString(" " + strings.ToUpper(currency))
	}
	return result.String()
}

// OnOrderEvent posts new orders, cancellations and status changes to the
// admin chat. Delivery happens on its own goroutine.
func (s *TelegramService) OnOrderEvent(event OrderEvent) {
	if s.botToken == "" || s.adminChatID == "" {
		return
	}

	var text string
	switch event.Type {
	case EventOrderCreated:
		text = FormatNewOrder(event.Order)
	case EventOrderCancelled:
		text = fmt.Sprintf("<b>Order cancelled</b>\n<b>Order:</b> %s\n<b>Was:</b> %s\n<b>Total:</b> %s",
			event.Order.OrderNumber, event.PreviousStatus, FormatPrice(event.Order.Total, event.Order.Currency))
	case EventOrderStatusChanged:
		text = fmt.Sprintf("<b>Order update</b>\n<b>Order:</b> %s\n<b>Status:</b> %s → %s",
			event.Order.OrderNumber, event.PreviousStatus, event.Order.Status)
	default:
		return
	}

	go func() {
		if err := s.SendToAdmin(text); err != nil {
			log.Printf("[Telegram] Notification for %s failed: %v", event.Order.OrderNumber, err)
		}
	}()
}

// FormatNewOrder builds the admin alert for a freshly placed order.
func FormatNewOrder(order models.Order) string {
	var items strings.Builder
	for i, item := range order.Items {
		name := html.EscapeString(item.Name)
		if item.VariantLabel != "" {
			name += " (" + html.EscapeString(item.VariantLabel) + ")"
		}
		items.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			name,
			item.Quantity,
			FormatPrice(item.Price, order.Currency),
			FormatPrice(item.LineTotal, order.Currency),
		))
	}

	customer := ""
	if order.User != nil {
		customer = html.EscapeString(order.User.DisplayName())
	}

	paymentText := "Cash on delivery"
	if order.PaymentMethod == models.PaymentMethodCard {
		paymentText = "Card"
	}

	var discount string
	if order.Discount.IsPositive() {
		discount = fmt.Sprintf("<b>Discount:</b> -%s (%s)\n", FormatPrice(order.Discount, order.Currency), order.CouponCode)
	}

	message := fmt.Sprintf(`<b>NEW ORDER</b>
<b>Order:</b> %s
<b>Customer:</b> %s
<b>Phone:</b> %s
<b>Ship to:</b> %s, %s
<b>Items:</b>
%s
%s<b>Total:</b> %s
<b>Payment:</b> %s
<b>Shipping:</b> %s`,
		order.OrderNumber,
		customer,
		html.EscapeString(order.ShippingAddress.Phone),
		html.EscapeString(order.ShippingAddress.City),
		html.EscapeString(order.ShippingAddress.PostalCode),
		items.String(),
		discount,
		FormatPrice(order.Total, order.Currency),
		paymentText,
		order.ShippingMethod,
	)

	return strings.TrimSpace(message)
}
