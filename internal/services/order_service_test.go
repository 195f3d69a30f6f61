package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

type stubOrderRepo struct {
	insertFn        func(context.Context, domain.Order) error
	findFn          func(context.Context, string) (domain.Order, error)
	listFn          func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	updateAddressFn func(context.Context, string, string, time.Time) (domain.Order, error)
	deleteFn        func(context.Context, string) error
	issueFn         func(context.Context, string, time.Time) (domain.Order, error)
	voidFn          func(context.Context, string, time.Time) (domain.Order, error)
	completeFn      func(context.Context, string, time.Time) (domain.Order, error)
	fulfillFn       func(context.Context, string, string, int, time.Time) (repositories.OrderFulfillResult, error)
	addPaymentFn    func(context.Context, string, domain.Payment, bool) (domain.Order, error)
	deletePaymentFn func(context.Context, string, string) (repositories.OrderPaymentRemoval, error)
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderRepo) UpdateDeliveryAddress(ctx context.Context, orderID string, address string, now time.Time) (domain.Order, error) {
	if s.updateAddressFn != nil {
		return s.updateAddressFn(ctx, orderID, address, now)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) Delete(ctx context.Context, orderID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, orderID)
	}
	return nil
}

func (s *stubOrderRepo) Issue(ctx context.Context, orderID string, now time.Time) (domain.Order, error) {
	if s.issueFn != nil {
		return s.issueFn(ctx, orderID, now)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) Void(ctx context.Context, orderID string, now time.Time) (domain.Order, error) {
	if s.voidFn != nil {
		return s.voidFn(ctx, orderID, now)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) Complete(ctx context.Context, orderID string, now time.Time) (domain.Order, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, orderID, now)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) FulfillLine(ctx context.Context, orderID string, lineItemID string, quantity int, now time.Time) (repositories.OrderFulfillResult, error) {
	if s.fulfillFn != nil {
		return s.fulfillFn(ctx, orderID, lineItemID, quantity, now)
	}
	return repositories.OrderFulfillResult{}, errors.New("not implemented")
}

func (s *stubOrderRepo) AddPayment(ctx context.Context, orderID string, payment domain.Payment, allowTerminal bool) (domain.Order, error) {
	if s.addPaymentFn != nil {
		return s.addPaymentFn(ctx, orderID, payment, allowTerminal)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) DeletePayment(ctx context.Context, orderID string, paymentID string) (repositories.OrderPaymentRemoval, error) {
	if s.deletePaymentFn != nil {
		return s.deletePaymentFn(ctx, orderID, paymentID)
	}
	return repositories.OrderPaymentRemoval{}, errors.New("not implemented")
}

type stubProductRepo struct {
	insertFn    func(context.Context, domain.Product) error
	updateFn    func(context.Context, domain.Product) error
	deleteFn    func(context.Context, string) error
	findFn      func(context.Context, string) (domain.Product, error)
	findBySKUFn func(context.Context, string) (domain.Product, error)
	listFn      func(context.Context, repositories.ProductListFilter) (domain.CursorPage[domain.Product], error)
}

func (s *stubProductRepo) Insert(ctx context.Context, product domain.Product) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepo) Update(ctx context.Context, product domain.Product) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepo) Delete(ctx context.Context, productID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, productID)
	}
	return nil
}

func (s *stubProductRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findFn != nil {
		return s.findFn(ctx, productID)
	}
	return domain.Product{}, errors.New("not implemented")
}

func (s *stubProductRepo) FindBySKU(ctx context.Context, sku string) (domain.Product, error) {
	if s.findBySKUFn != nil {
		return s.findBySKUFn(ctx, sku)
	}
	return domain.Product{}, errors.New("not implemented")
}

func (s *stubProductRepo) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Product]{}, nil
}

type stubCustomerRepo struct {
	insertFn func(context.Context, domain.Customer) error
	updateFn func(context.Context, domain.Customer) error
	deleteFn func(context.Context, string) error
	findFn   func(context.Context, string) (domain.Customer, error)
	listFn   func(context.Context, repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error)
}

func (s *stubCustomerRepo) Insert(ctx context.Context, customer domain.Customer) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, customer)
	}
	return nil
}

func (s *stubCustomerRepo) Update(ctx context.Context, customer domain.Customer) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, customer)
	}
	return nil
}

func (s *stubCustomerRepo) Delete(ctx context.Context, customerID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, customerID)
	}
	return nil
}

func (s *stubCustomerRepo) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	if s.findFn != nil {
		return s.findFn(ctx, customerID)
	}
	return domain.Customer{}, errors.New("not implemented")
}

func (s *stubCustomerRepo) List(ctx context.Context, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Customer]{}, nil
}

type stubCounterRepo struct {
	nextFn func(context.Context, string) (int64, error)
}

func (s *stubCounterRepo) Next(ctx context.Context, name string) (int64, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, name)
	}
	return 1, nil
}

type captureOrderEvents struct {
	messages []OrderEventMessage
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, message OrderEventMessage) (string, error) {
	c.messages = append(c.messages, message)
	return "msg-1", nil
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestOrderService(t *testing.T, deps OrderServiceDeps) OrderService {
	t.Helper()
	if deps.Orders == nil {
		deps.Orders = &stubOrderRepo{}
	}
	if deps.Products == nil {
		deps.Products = &stubProductRepo{}
	}
	if deps.Customers == nil {
		deps.Customers = &stubCustomerRepo{}
	}
	if deps.Counters == nil {
		deps.Counters = &stubCounterRepo{}
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	return svc
}

func TestOrderServiceCreateOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	inserted := make([]domain.Order, 0, 1)
	events := &captureOrderEvents{}

	products := map[string]domain.Product{
		"prd_widget": {ID: "prd_widget", SKU: "WID-1", Name: "Widget", UnitPrice: amount("19.99"), InventoryQuantity: 10},
		"prd_gadget": {ID: "prd_gadget", SKU: "GAD-1", Name: "Gadget", UnitPrice: amount("5.00"), InventoryQuantity: 4},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			insertFn: func(_ context.Context, order domain.Order) error {
				inserted = append(inserted, order)
				return nil
			},
		},
		Products: &stubProductRepo{
			findFn: func(_ context.Context, id string) (domain.Product, error) {
				product, ok := products[id]
				if !ok {
					return domain.Product{}, repositories.NewCatalogError(repositories.CatalogErrorProductNotFound, "", nil)
				}
				return product, nil
			},
		},
		Customers: &stubCustomerRepo{
			findFn: func(_ context.Context, id string) (domain.Customer, error) {
				if id != "cus_acme" {
					return domain.Customer{}, repositories.NewCatalogError(repositories.CatalogErrorCustomerNotFound, "", nil)
				}
				return domain.Customer{ID: id, CompanyName: "Acme"}, nil
			},
		},
		Counters: &stubCounterRepo{
			nextFn: func(_ context.Context, name string) (int64, error) {
				if name != "orders" {
					t.Fatalf("unexpected counter name %s", name)
				}
				return 42, nil
			},
		},
		Events:      events,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "000TEST" },
	})

	order, err := svc.CreateOrder(ctx, CreateOrderCommand{
		CustomerID:      "cus_acme",
		DeliveryAddress: "1 Main St",
		Lines: []CreateOrderLine{
			{ProductID: "prd_widget", Quantity: 2},
			{ProductID: "prd_gadget", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if order.ID != "ord_000TEST" {
		t.Fatalf("unexpected order id %s", order.ID)
	}
	if order.OrderNumber != "SO-2026-000042" {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if order.Status != domain.OrderStatusUnissued {
		t.Fatalf("expected status unissued got %s", order.Status)
	}
	if order.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Fatalf("expected unpaid got %s", order.PaymentStatus)
	}
	if got := order.TotalAmount.StringFixed(2); got != "44.98" {
		t.Fatalf("expected total 44.98 got %s", got)
	}
	if len(order.Lines) != 2 {
		t.Fatalf("expected 2 lines got %d", len(order.Lines))
	}
	if got := order.Lines[0].UnitPrice.StringFixed(2); got != "19.99" {
		t.Fatalf("expected snapshotted unit price 19.99 got %s", got)
	}
	if got := order.Lines[0].LineTotal.StringFixed(2); got != "39.98" {
		t.Fatalf("expected line total 39.98 got %s", got)
	}
	if order.Lines[0].FulfillmentStatus != domain.FulfillmentStatusUnfulfilled {
		t.Fatalf("expected unfulfilled line got %s", order.Lines[0].FulfillmentStatus)
	}
	if len(inserted) != 1 {
		t.Fatalf("expected 1 inserted order got %d", len(inserted))
	}
	if len(events.messages) != 1 || events.messages[0].Event != "order.created" {
		t.Fatalf("expected order.created event got %+v", events.messages)
	}
}

func TestOrderServiceCreateOrderUnitPriceOverride(t *testing.T) {
	ctx := context.Background()
	inserted := make([]domain.Order, 0, 1)

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			insertFn: func(_ context.Context, order domain.Order) error {
				inserted = append(inserted, order)
				return nil
			},
		},
		Products: &stubProductRepo{
			findFn: func(_ context.Context, id string) (domain.Product, error) {
				return domain.Product{ID: id, SKU: "WID-1", Name: "Widget", UnitPrice: amount("19.99"), InventoryQuantity: 10}, nil
			},
		},
		Customers: &stubCustomerRepo{
			findFn: func(_ context.Context, id string) (domain.Customer, error) {
				return domain.Customer{ID: id, CompanyName: "Acme"}, nil
			},
		},
		Events: &captureOrderEvents{},
	})

	negotiated := amount("15.50")
	order, err := svc.CreateOrder(ctx, CreateOrderCommand{
		CustomerID: "cus_acme",
		Lines: []CreateOrderLine{
			{ProductID: "prd_widget", Quantity: 2, UnitPrice: &negotiated},
			{ProductID: "prd_widget", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if got := order.Lines[0].UnitPrice.StringFixed(2); got != "15.50" {
		t.Fatalf("expected negotiated unit price 15.50 got %s", got)
	}
	if got := order.Lines[1].UnitPrice.StringFixed(2); got != "19.99" {
		t.Fatalf("expected catalog unit price 19.99 got %s", got)
	}
	if got := order.TotalAmount.StringFixed(2); got != "50.99" {
		t.Fatalf("expected total 50.99 got %s", got)
	}
	if len(inserted) != 1 {
		t.Fatalf("expected 1 inserted order got %d", len(inserted))
	}

	negative := amount("-1.00")
	_, err = svc.CreateOrder(ctx, CreateOrderCommand{
		CustomerID: "cus_acme",
		Lines:      []CreateOrderLine{{ProductID: "prd_widget", Quantity: 1, UnitPrice: &negative}},
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for negative override got %v", err)
	}
}

func TestOrderServiceCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestOrderService(t, OrderServiceDeps{})

	cases := []struct {
		name string
		cmd  CreateOrderCommand
	}{
		{"missing customer", CreateOrderCommand{Lines: []CreateOrderLine{{ProductID: "prd_x", Quantity: 1}}}},
		{"no lines", CreateOrderCommand{CustomerID: "cus_1"}},
		{"zero quantity", CreateOrderCommand{CustomerID: "cus_1", Lines: []CreateOrderLine{{ProductID: "prd_x", Quantity: 0}}}},
		{"missing product id", CreateOrderCommand{CustomerID: "cus_1", Lines: []CreateOrderLine{{Quantity: 1}}}},
	}
	for _, tc := range cases {
		if _, err := svc.CreateOrder(ctx, tc.cmd); !errors.Is(err, ErrOrderInvalidInput) {
			t.Fatalf("%s: expected invalid input got %v", tc.name, err)
		}
	}
}

func TestOrderServiceCreateOrderUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	svc := newTestOrderService(t, OrderServiceDeps{
		Customers: &stubCustomerRepo{
			findFn: func(context.Context, string) (domain.Customer, error) {
				return domain.Customer{}, repositories.NewCatalogError(repositories.CatalogErrorCustomerNotFound, "customer missing", nil)
			},
		},
	})

	_, err := svc.CreateOrder(ctx, CreateOrderCommand{
		CustomerID: "cus_ghost",
		Lines:      []CreateOrderLine{{ProductID: "prd_x", Quantity: 1}},
	})
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected customer not found got %v", err)
	}
}

func TestOrderServiceIssueMapsInsufficientStock(t *testing.T) {
	ctx := context.Background()
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			issueFn: func(context.Context, string, time.Time) (domain.Order, error) {
				return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInsufficientStock, "product prd_x has 1, requires 3", nil)
			},
		},
		Events: events,
	})

	_, err := svc.IssueOrder(ctx, "ord_1")
	if !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("expected insufficient inventory got %v", err)
	}
	if len(events.messages) != 0 {
		t.Fatalf("expected no events on failure got %d", len(events.messages))
	}
}

func TestOrderServiceIssuePublishesEvent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			issueFn: func(_ context.Context, orderID string, ts time.Time) (domain.Order, error) {
				return domain.Order{
					ID:          orderID,
					OrderNumber: "SO-2026-000007",
					CustomerID:  "cus_acme",
					Status:      domain.OrderStatusIssued,
					UpdatedAt:   ts,
				}, nil
			},
		},
		Events: events,
		Clock:  func() time.Time { return now },
	})

	order, err := svc.IssueOrder(ctx, "ord_1")
	if err != nil {
		t.Fatalf("issue order: %v", err)
	}
	if order.Status != domain.OrderStatusIssued {
		t.Fatalf("expected issued got %s", order.Status)
	}
	if len(events.messages) != 1 {
		t.Fatalf("expected 1 event got %d", len(events.messages))
	}
	msg := events.messages[0]
	if msg.Event != "order.issued" || msg.OrderID != "ord_1" || msg.OrderNumber != "SO-2026-000007" {
		t.Fatalf("unexpected event %+v", msg)
	}
}

func TestOrderServiceDeleteRejectsIssuedOrder(t *testing.T) {
	ctx := context.Background()
	deleted := false
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			findFn: func(_ context.Context, orderID string) (domain.Order, error) {
				return domain.Order{ID: orderID, Status: domain.OrderStatusIssued}, nil
			},
			deleteFn: func(context.Context, string) error {
				deleted = true
				return nil
			},
		},
	})

	if err := svc.DeleteOrder(ctx, "ord_1"); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state got %v", err)
	}
	if deleted {
		t.Fatalf("delete must not reach the repository")
	}
}

func TestOrderServiceListValidatesStatus(t *testing.T) {
	ctx := context.Background()
	var captured repositories.OrderListFilter
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			listFn: func(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
				captured = filter
				return domain.CursorPage[domain.Order]{}, nil
			},
		},
	})

	if _, err := svc.ListOrders(ctx, OrderListQuery{Status: "shipped"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for unknown status got %v", err)
	}

	if _, err := svc.ListOrders(ctx, OrderListQuery{Status: "issued", CustomerID: "cus_1"}); err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if captured.Status == nil || *captured.Status != domain.OrderStatusIssued {
		t.Fatalf("expected issued status filter got %+v", captured.Status)
	}
	if captured.CustomerID != "cus_1" {
		t.Fatalf("expected customer filter cus_1 got %s", captured.CustomerID)
	}
}

func TestOrderServiceMapsRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			findFn: func(context.Context, string) (domain.Order, error) {
				return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, "order ord_ghost not found", nil)
			},
		},
	})

	if _, err := svc.GetOrder(ctx, "ord_ghost"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}
