package domain

import (
	"fmt"
	"time"
)

// StockDelta describes an inventory adjustment the store must apply atomically
// with the order mutation that produced it. Negative deltas reserve stock,
// positive deltas release it.
type StockDelta struct {
	ProductID string
	Delta     int
}

// AvailabilityFunc reports a product's current inventory quantity. The second
// return value is false when the product does not exist.
type AvailabilityFunc func(productID string) (int, bool)

// IssueOrder validates the unissued → issued transition and computes the
// inventory reservation. Every line item is checked against availability
// before any delta is emitted; a single shortfall fails the whole transition
// with no partial reservation. The caller applies the returned deltas in the
// same transaction as the order update.
func IssueOrder(order *Order, available AvailabilityFunc, now time.Time) ([]StockDelta, error) {
	if order.Status != OrderStatusUnissued {
		return nil, &InvalidTransitionError{Op: "issue", Status: order.Status}
	}

	reserved := make(map[string]int, len(order.Lines))
	deltas := make([]StockDelta, 0, len(order.Lines))
	for _, line := range order.Lines {
		qty, ok := available(line.ProductID)
		if !ok {
			return nil, fmt.Errorf("product %s not found", line.ProductID)
		}
		// Earlier lines of the same order may already claim part of the stock.
		left := qty - reserved[line.ProductID]
		if left < line.Quantity {
			return nil, &InsufficientInventoryError{
				ProductID: line.ProductID,
				Available: left,
				Required:  line.Quantity,
			}
		}
		if reserved[line.ProductID] == 0 {
			deltas = append(deltas, StockDelta{ProductID: line.ProductID})
		}
		reserved[line.ProductID] += line.Quantity
	}
	for i := range deltas {
		deltas[i].Delta = -reserved[deltas[i].ProductID]
	}

	order.Status = OrderStatusIssued
	order.UpdatedAt = now
	return deltas, nil
}

// VoidOrder validates the void transition and computes the inventory release.
// Terminal orders cannot be voided. Voiding an unissued order releases
// nothing (nothing was reserved); voiding an issued order returns each line's
// remaining unfulfilled quantity to stock.
func VoidOrder(order *Order, now time.Time) ([]StockDelta, error) {
	if order.Status.Terminal() {
		return nil, &InvalidTransitionError{Op: "void", Status: order.Status}
	}

	var deltas []StockDelta
	if order.Status == OrderStatusIssued {
		deltas = make([]StockDelta, 0, len(order.Lines))
		for _, line := range order.Lines {
			if remaining := line.Remaining(); remaining > 0 {
				deltas = append(deltas, StockDelta{ProductID: line.ProductID, Delta: remaining})
			}
		}
	}

	order.Status = OrderStatusVoided
	order.UpdatedAt = now
	return deltas, nil
}

// CompleteOrder validates the issued → complete transition and bulk-fulfils
// every line item still untouched: lines in unfulfilled status are treated as
// shipped in full, while partially fulfilled lines keep their recorded
// quantities.
func CompleteOrder(order *Order, now time.Time) error {
	if order.Status != OrderStatusIssued {
		return &InvalidTransitionError{Op: "complete", Status: order.Status}
	}

	for i := range order.Lines {
		if order.Lines[i].FulfillmentStatus == FulfillmentStatusUnfulfilled {
			order.Lines[i].FulfillmentStatus = FulfillmentStatusFulfilled
			order.Lines[i].FulfilledQuantity = order.Lines[i].Quantity
		}
	}

	order.Status = OrderStatusComplete
	order.UpdatedAt = now
	return nil
}

// FulfillLine records quantity as delivered on one line item and recomputes
// that line's status. When every line of the order reaches fulfilled status
// the order auto-transitions to complete — a documented side effect, reported
// through the boolean return. Unlike CompleteOrder this never touches lines
// other than the one addressed.
func FulfillLine(order *Order, lineItemID string, quantity int, now time.Time) (bool, error) {
	if order.Status != OrderStatusIssued {
		return false, &InvalidTransitionError{Op: "fulfil", Status: order.Status}
	}

	line := order.Line(lineItemID)
	if line == nil {
		return false, fmt.Errorf("line item %s not found", lineItemID)
	}
	if quantity > line.Remaining() {
		return false, &OverFulfillmentError{
			LineItemID: lineItemID,
			Requested:  quantity,
			Remaining:  line.Remaining(),
		}
	}

	line.FulfilledQuantity += quantity
	if line.FulfilledQuantity == line.Quantity {
		line.FulfillmentStatus = FulfillmentStatusFulfilled
	} else if line.FulfilledQuantity > 0 {
		line.FulfillmentStatus = FulfillmentStatusPartial
	}
	order.UpdatedAt = now

	for _, l := range order.Lines {
		if l.FulfillmentStatus != FulfillmentStatusFulfilled {
			return false, nil
		}
	}
	order.Status = OrderStatusComplete
	return true, nil
}

// ApplyPayment appends a payment to the ledger, enforcing the no-overpayment
// invariant, and recomputes the derived paid amount and payment status. The
// caller persists order and payment together. When allowTerminal is false,
// completed and voided orders reject new payments; the check runs here so it
// holds inside the same transactional boundary as the append.
func ApplyPayment(order *Order, payment Payment, allowTerminal bool) error {
	if !allowTerminal && (order.Status == OrderStatusComplete || order.Status == OrderStatusVoided) {
		return &PaymentNotAcceptedError{OrderID: order.ID, Status: order.Status}
	}
	newPaid := order.AmountPaid.Add(payment.Amount)
	if newPaid.GreaterThan(order.TotalAmount) {
		return &PaymentExceedsTotalError{
			OrderID:   order.ID,
			Total:     order.TotalAmount,
			Paid:      order.AmountPaid,
			Attempted: payment.Amount,
		}
	}

	order.Payments = append(order.Payments, payment)
	order.AmountPaid = newPaid
	order.PaymentStatus = PaymentStatusFor(newPaid, order.TotalAmount)
	return nil
}

// RemovePayment deletes a payment from the ledger and recomputes the derived
// payment state from the remaining records.
func RemovePayment(order *Order, paymentID string) (Payment, error) {
	idx := -1
	for i, p := range order.Payments {
		if p.ID == paymentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Payment{}, fmt.Errorf("payment %s not found", paymentID)
	}

	removed := order.Payments[idx]
	order.Payments = append(order.Payments[:idx], order.Payments[idx+1:]...)
	order.AmountPaid = order.AmountPaid.Sub(removed.Amount)
	order.PaymentStatus = PaymentStatusFor(order.AmountPaid, order.TotalAmount)
	return removed, nil
}
