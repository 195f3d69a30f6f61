package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/orderdesk/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination = domain.Pagination
	Customer   = domain.Customer
	Product    = domain.Product
	Order      = domain.Order
	LineItem   = domain.LineItem
	Payment    = domain.Payment
)

// OrderService orchestrates the order lifecycle: creation, issue, void,
// completion, and order queries.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListQuery) (domain.CursorPage[Order], error)
	UpdateDeliveryAddress(ctx context.Context, cmd UpdateDeliveryAddressCommand) (Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
	IssueOrder(ctx context.Context, orderID string) (Order, error)
	VoidOrder(ctx context.Context, orderID string) (Order, error)
	CompleteOrder(ctx context.Context, orderID string) (Order, error)
}

// CreateOrderCommand captures the inputs for creating an unissued order.
type CreateOrderCommand struct {
	CustomerID      string
	DeliveryAddress string
	OrderDate       *time.Time
	Lines           []CreateOrderLine
}

// CreateOrderLine names a product and quantity for a new order line. A nil
// UnitPrice snapshots the product's current catalog price; a non-nil value
// overrides it for this line.
type CreateOrderLine struct {
	ProductID string
	Quantity  int
	UnitPrice *decimal.Decimal
}

// OrderListQuery filters and pages order listings.
type OrderListQuery struct {
	Status     string
	CustomerID string
	Pagination Pagination
}

// UpdateDeliveryAddressCommand updates the order's delivery address.
type UpdateDeliveryAddressCommand struct {
	OrderID         string
	DeliveryAddress string
}

// FulfillmentService records deliveries against issued order lines.
type FulfillmentService interface {
	FulfillLine(ctx context.Context, cmd FulfillLineCommand) (FulfillLineResult, error)
}

// FulfillLineCommand records quantity delivered on one line item.
type FulfillLineCommand struct {
	OrderID    string
	LineItemID string
	Quantity   int
}

// FulfillLineResult reports the updated order and whether the fulfilment completed it.
type FulfillLineResult struct {
	Order     Order
	Completed bool
}

// PaymentService maintains the append-only payment ledger per order.
type PaymentService interface {
	RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (Order, error)
	DeletePayment(ctx context.Context, orderID string, paymentID string) (Order, error)
	ListPayments(ctx context.Context, orderID string) ([]Payment, error)
}

// RecordPaymentCommand captures a manual payment record against an order.
type RecordPaymentCommand struct {
	OrderID     string
	Amount      decimal.Decimal
	Method      string
	Reference   string
	PaymentDate *time.Time
}

// CatalogService manages products and customers.
type CatalogService interface {
	CreateProduct(ctx context.Context, cmd ProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, productID string, cmd UpdateProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context, filter ProductListQuery) (domain.CursorPage[Product], error)

	CreateCustomer(ctx context.Context, cmd CustomerCommand) (Customer, error)
	UpdateCustomer(ctx context.Context, customerID string, cmd UpdateCustomerCommand) (Customer, error)
	DeleteCustomer(ctx context.Context, customerID string) error
	GetCustomer(ctx context.Context, customerID string) (Customer, error)
	ListCustomers(ctx context.Context, filter CustomerListQuery) (domain.CursorPage[Customer], error)
}

// ProductCommand carries the writable product fields.
type ProductCommand struct {
	SKU               string
	Name              string
	Description       string
	UnitPrice         decimal.Decimal
	InventoryQuantity int
}

// UpdateProductCommand carries a partial product update. Nil fields keep
// their stored value.
type UpdateProductCommand struct {
	SKU               *string
	Name              *string
	Description       *string
	UnitPrice         *decimal.Decimal
	InventoryQuantity *int
}

// ProductListQuery filters and pages product listings.
type ProductListQuery struct {
	Search        string
	LowStockBelow *int
	Pagination    Pagination
}

// CustomerCommand carries the writable customer fields.
type CustomerCommand struct {
	CompanyName    string
	ContactPerson  string
	Email          string
	Phone          string
	BillingAddress string
}

// UpdateCustomerCommand carries a partial customer update. Nil fields keep
// their stored value.
type UpdateCustomerCommand struct {
	CompanyName    *string
	ContactPerson  *string
	Email          *string
	Phone          *string
	BillingAddress *string
}

// CustomerListQuery filters and pages customer listings.
type CustomerListQuery struct {
	Search     string
	Pagination Pagination
}

// SystemService reports service health.
type SystemService interface {
	Health(ctx context.Context) error
}

// OrderEventMessage is the payload published for order lifecycle events.
type OrderEventMessage struct {
	Event         string    `json:"event"`
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	CustomerID    string    `json:"customerId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus,omitempty"`
	LineItemID    string    `json:"lineItemId,omitempty"`
	PaymentID     string    `json:"paymentId,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// OrderEventPublisher delivers order lifecycle events to interested consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}
