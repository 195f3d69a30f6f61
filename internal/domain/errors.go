package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InvalidTransitionError reports a status-guard violation: the requested
// operation is not reachable from the order's current status.
type InvalidTransitionError struct {
	Op     string
	Status OrderStatus
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an order in status %q", e.Op, e.Status)
}

// InsufficientInventoryError names the first product whose availability falls
// short of the ordered quantity. Reservation is all-or-nothing, so a single
// shortfall aborts the whole issue transition.
type InsufficientInventoryError struct {
	ProductID string
	Available int
	Required  int
}

// Error implements the error interface.
func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for product %s: available %d, required %d", e.ProductID, e.Available, e.Required)
}

// OverFulfillmentError reports an attempt to fulfil more than the line item's
// remaining quantity.
type OverFulfillmentError struct {
	LineItemID string
	Requested  int
	Remaining  int
}

// Error implements the error interface.
func (e *OverFulfillmentError) Error() string {
	return fmt.Sprintf("cannot fulfil %d on line %s: only %d remaining", e.Requested, e.LineItemID, e.Remaining)
}

// PaymentExceedsTotalError reports a payment that would push the cumulative
// paid amount above the order total.
type PaymentExceedsTotalError struct {
	OrderID   string
	Total     decimal.Decimal
	Paid      decimal.Decimal
	Attempted decimal.Decimal
}

// Error implements the error interface.
func (e *PaymentExceedsTotalError) Error() string {
	return fmt.Sprintf("payment of %s exceeds order %s total %s (already paid %s)",
		e.Attempted.StringFixed(2), e.OrderID, e.Total.StringFixed(2), e.Paid.StringFixed(2))
}

// PaymentNotAcceptedError reports a payment rejected because the order's
// status forbids new ledger entries under the active acceptance policy.
type PaymentNotAcceptedError struct {
	OrderID string
	Status  OrderStatus
}

// Error implements the error interface.
func (e *PaymentNotAcceptedError) Error() string {
	return fmt.Sprintf("order %s is %s and does not accept payments", e.OrderID, e.Status)
}
