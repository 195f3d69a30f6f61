package repositories

import (
	"context"
	"time"

	domain "github.com/orderdesk/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Customers() CustomerRepository
	Products() ProductRepository
	Orders() OrderRepository
	Counters() CounterRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CustomerRepository persists buyer accounts.
type CustomerRepository interface {
	Insert(ctx context.Context, customer domain.Customer) error
	Update(ctx context.Context, customer domain.Customer) error
	Delete(ctx context.Context, customerID string) error
	FindByID(ctx context.Context, customerID string) (domain.Customer, error)
	List(ctx context.Context, filter CustomerListFilter) (domain.CursorPage[domain.Customer], error)
}

// CustomerListFilter controls pagination and search for customer listings.
type CustomerListFilter struct {
	Search    string
	PageSize  int
	PageToken string
}

// ProductRepository persists catalog entries together with their inventory
// counts. Inventory quantities are mutated only inside order lifecycle
// transactions or by explicit catalog edits.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySKU(ctx context.Context, sku string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
}

// ProductListFilter controls pagination and threshold filtering for product listings.
type ProductListFilter struct {
	Search        string
	LowStockBelow *int
	PageSize      int
	PageToken     string
}

// OrderRepository persists order aggregates and executes lifecycle transitions
// atomically. Each transition method loads the order, applies the state
// machine, and writes the order together with any inventory adjustment in one
// transactional boundary; on contention the whole operation retries or fails,
// never half-applies.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	UpdateDeliveryAddress(ctx context.Context, orderID string, address string, now time.Time) (domain.Order, error)
	Delete(ctx context.Context, orderID string) error

	Issue(ctx context.Context, orderID string, now time.Time) (domain.Order, error)
	Void(ctx context.Context, orderID string, now time.Time) (domain.Order, error)
	Complete(ctx context.Context, orderID string, now time.Time) (domain.Order, error)
	FulfillLine(ctx context.Context, orderID string, lineItemID string, quantity int, now time.Time) (OrderFulfillResult, error)

	AddPayment(ctx context.Context, orderID string, payment domain.Payment, allowTerminal bool) (domain.Order, error)
	DeletePayment(ctx context.Context, orderID string, paymentID string) (OrderPaymentRemoval, error)
}

// OrderFulfillResult reports the order after a fulfilment and whether the
// fulfilment auto-completed it.
type OrderFulfillResult struct {
	Order     domain.Order
	Completed bool
}

// OrderPaymentRemoval reports the order after a payment deletion together with
// the removed record.
type OrderPaymentRemoval struct {
	Order   domain.Order
	Payment domain.Payment
}

// OrderListFilter controls pagination and filtering for order listings.
type OrderListFilter struct {
	Status     *domain.OrderStatus
	CustomerID string
	PageSize   int
	PageToken  string
}

// CounterRepository issues monotonically increasing sequence values used for
// human-readable order numbers.
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// HealthRepository verifies connectivity with the backing datastore.
type HealthRepository interface {
	Check(ctx context.Context) error
}
