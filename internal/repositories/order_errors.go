package repositories

import "fmt"

// OrderErrorCode enumerates repository error causes for order operations.
type OrderErrorCode string

const (
	// OrderErrorUnknown represents an unspecified failure.
	OrderErrorUnknown OrderErrorCode = "order_unknown"
	// OrderErrorNotFound indicates the order document is missing.
	OrderErrorNotFound OrderErrorCode = "order_not_found"
	// OrderErrorLineNotFound indicates the addressed line item does not exist on the order.
	OrderErrorLineNotFound OrderErrorCode = "order_line_not_found"
	// OrderErrorPaymentNotFound indicates the addressed payment record does not exist on the order.
	OrderErrorPaymentNotFound OrderErrorCode = "order_payment_not_found"
	// OrderErrorInvalidState indicates the order status forbids the requested transition.
	OrderErrorInvalidState OrderErrorCode = "order_invalid_state"
	// OrderErrorInsufficientStock indicates an order line exceeds product availability.
	OrderErrorInsufficientStock OrderErrorCode = "order_insufficient_stock"
	// OrderErrorOverFulfillment indicates a fulfilment exceeds a line's remaining quantity.
	OrderErrorOverFulfillment OrderErrorCode = "order_over_fulfillment"
	// OrderErrorPaymentExceedsTotal indicates a payment would overshoot the order total.
	OrderErrorPaymentExceedsTotal OrderErrorCode = "order_payment_exceeds_total"
	// OrderErrorPaymentNotAccepted indicates the order status rejects new payments under the active policy.
	OrderErrorPaymentNotAccepted OrderErrorCode = "order_payment_not_accepted"
)

// OrderError wraps order-specific failures with machine readable codes.
type OrderError struct {
	Op      string
	Code    OrderErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOrderError constructs a typed order error.
func NewOrderError(code OrderErrorCode, message string, err error) *OrderError {
	if message == "" {
		message = string(code)
	}
	return &OrderError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
