package models

import "fmt"

// Rejection codes for expected business outcomes.
const (
	RejectInvalidProduct    = "invalid_product"
	RejectUnavailable       = "not_available"
	RejectInsufficientStock = "insufficient_stock"
	RejectInvalidVariant    = "invalid_variant"
	RejectInvalidBundle     = "invalid_bundle"
	RejectEmptyCart         = "empty_cart"

	RejectCouponNotFound   = "coupon_not_found"
	RejectCouponInactive   = "coupon_inactive"
	RejectCouponNotStarted = "coupon_not_started"
	RejectCouponExpired    = "coupon_expired"
	RejectCouponUsageLimit = "coupon_usage_limit"
	RejectCouponUserLimit  = "coupon_user_limit"
	RejectCouponMinimum    = "coupon_min_order"
	RejectCouponApplied    = "coupon_already_applied"
	RejectInvalidCoupon    = "invalid_coupon"

	RejectNotCancellable  = "not_cancellable"
	RejectInvalidStatus   = "invalid_status"
	RejectInvalidPayment  = "invalid_payment"
	RejectInvalidShipping = "invalid_shipping"
)

// Rejection is an expected refusal of a business operation. It is returned
// as a value and surfaces to clients as a 400 with Message.
type Rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *Rejection) Error() string {
	return r.Message
}

// Reject builds a Rejection with a formatted message.
func Reject(code, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}
