package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusUnissued OrderStatus = "unissued"
	OrderStatusIssued   OrderStatus = "issued"
	OrderStatusComplete OrderStatus = "complete"
	OrderStatusVoided   OrderStatus = "voided"
)

// Terminal reports whether the status permits no further lifecycle transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusComplete || s == OrderStatusVoided
}

// PaymentStatus is derived from the cumulative paid amount versus the order total.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// FulfillmentStatus tracks per-line delivery progress.
type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentStatusPartial     FulfillmentStatus = "partially_fulfilled"
	FulfillmentStatusFulfilled   FulfillmentStatus = "fulfilled"
)

// Customer is a buyer account referenced by orders.
type Customer struct {
	ID             string
	CompanyName    string
	ContactPerson  string
	Email          string
	Phone          string
	BillingAddress string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Product is a catalog entry with a finite inventory count. InventoryQuantity
// is mutated only by the inventory allocator during issue/void transitions and
// by direct catalog edits; it never goes negative.
type Product struct {
	ID                string
	SKU               string
	Name              string
	Description       string
	UnitPrice         decimal.Decimal
	InventoryQuantity int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LineItem belongs to exactly one order and snapshots the product price at
// order creation. FulfilledQuantity never exceeds Quantity and stays zero
// until the owning order is issued.
type LineItem struct {
	ID                string
	ProductID         string
	Quantity          int
	UnitPrice         decimal.Decimal
	LineTotal         decimal.Decimal
	FulfillmentStatus FulfillmentStatus
	FulfilledQuantity int
}

// Remaining returns the quantity not yet fulfilled.
func (l LineItem) Remaining() int {
	return l.Quantity - l.FulfilledQuantity
}

// Payment is an append-only ledger record against an order. Deleting one is a
// compensating action that triggers a payment-status recompute.
type Payment struct {
	ID          string
	OrderID     string
	Amount      decimal.Decimal
	Method      string
	Reference   string
	PaymentDate time.Time
	CreatedAt   time.Time
}

// Order is the aggregate root owning its line items and payments. TotalAmount
// is fixed at creation; AmountPaid is the stored derivation of the payment
// ledger so the exceeds-total guard stays a single-document check.
type Order struct {
	ID              string
	OrderNumber     string
	CustomerID      string
	OrderDate       time.Time
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	TotalAmount     decimal.Decimal
	AmountPaid      decimal.Decimal
	DeliveryAddress string
	Lines           []LineItem
	Payments        []Payment
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Line returns a pointer to the line item with the given id, or nil.
func (o *Order) Line(lineItemID string) *LineItem {
	for i := range o.Lines {
		if o.Lines[i].ID == lineItemID {
			return &o.Lines[i]
		}
	}
	return nil
}

// Pagination carries cursor paging inputs shared across list queries.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results with the continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
