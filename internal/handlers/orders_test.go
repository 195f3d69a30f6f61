package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/services"
)

type stubOrderService struct {
	createFn        func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFn           func(context.Context, string) (services.Order, error)
	listFn          func(context.Context, services.OrderListQuery) (domain.CursorPage[services.Order], error)
	updateAddressFn func(context.Context, services.UpdateDeliveryAddressCommand) (services.Order, error)
	deleteFn        func(context.Context, string) error
	issueFn         func(context.Context, string) (services.Order, error)
	voidFn          func(context.Context, string) (services.Order, error)
	completeFn      func(context.Context, string) (services.Order, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListQuery) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) UpdateDeliveryAddress(ctx context.Context, cmd services.UpdateDeliveryAddressCommand) (services.Order, error) {
	if s.updateAddressFn != nil {
		return s.updateAddressFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, orderID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, orderID)
	}
	return errors.New("not implemented")
}

func (s *stubOrderService) IssueOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.issueFn != nil {
		return s.issueFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) VoidOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.voidFn != nil {
		return s.voidFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) CompleteOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

type stubFulfillmentService struct {
	fulfillFn func(context.Context, services.FulfillLineCommand) (services.FulfillLineResult, error)
}

func (s *stubFulfillmentService) FulfillLine(ctx context.Context, cmd services.FulfillLineCommand) (services.FulfillLineResult, error) {
	if s.fulfillFn != nil {
		return s.fulfillFn(ctx, cmd)
	}
	return services.FulfillLineResult{}, errors.New("not implemented")
}

type stubPaymentService struct {
	recordFn func(context.Context, services.RecordPaymentCommand) (services.Order, error)
	deleteFn func(context.Context, string, string) (services.Order, error)
	listFn   func(context.Context, string) ([]services.Payment, error)
}

func (s *stubPaymentService) RecordPayment(ctx context.Context, cmd services.RecordPaymentCommand) (services.Order, error) {
	if s.recordFn != nil {
		return s.recordFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubPaymentService) DeletePayment(ctx context.Context, orderID string, paymentID string) (services.Order, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, orderID, paymentID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubPaymentService) ListPayments(ctx context.Context, orderID string) ([]services.Payment, error) {
	if s.listFn != nil {
		return s.listFn(ctx, orderID)
	}
	return nil, errors.New("not implemented")
}

func orderRouter(orders services.OrderService, fulfillments services.FulfillmentService, payments services.PaymentService) chi.Router {
	handler := NewOrderHandlers(orders, fulfillments, payments, PageLimits{})
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)
	return router
}

func sampleOrder(now time.Time) services.Order {
	return services.Order{
		ID:            "ord_123",
		OrderNumber:   "SO-2026-000123",
		CustomerID:    "cus_acme",
		OrderDate:     now,
		Status:        domain.OrderStatusUnissued,
		PaymentStatus: domain.PaymentStatusUnpaid,
		TotalAmount:   decimal.RequireFromString("44.98"),
		AmountPaid:    decimal.Zero,
		Lines: []services.LineItem{
			{
				ID:                "li_1",
				ProductID:         "prd_widget",
				Quantity:          2,
				UnitPrice:         decimal.RequireFromString("19.99"),
				LineTotal:         decimal.RequireFromString("39.98"),
				FulfillmentStatus: domain.FulfillmentStatusUnfulfilled,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderHandlersCreateOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var captured services.CreateOrderCommand
	service := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(now), nil
		},
	}
	router := orderRouter(service, nil, nil)

	body := `{"customer_id":"cus_acme","delivery_address":"1 Main St","line_items":[{"product_id":"prd_widget","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerID != "cus_acme" || len(captured.Lines) != 1 || captured.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.ID != "ord_123" || resp.Order.OrderNumber != "SO-2026-000123" {
		t.Fatalf("unexpected order payload %+v", resp.Order)
	}
	if resp.Order.TotalAmount != "44.98" {
		t.Fatalf("expected total 44.98 got %s", resp.Order.TotalAmount)
	}
	if len(resp.Order.LineItems) != 1 || resp.Order.LineItems[0].LineTotal != "39.98" {
		t.Fatalf("unexpected lines %+v", resp.Order.LineItems)
	}
}

func TestOrderHandlersCreateOrderUnitPriceOverride(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var captured services.CreateOrderCommand
	service := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(now), nil
		},
	}
	router := orderRouter(service, nil, nil)

	body := `{"customer_id":"cus_acme","line_items":[{"product_id":"prd_widget","quantity":2,"unit_price":"15.50"}]}`
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(captured.Lines) != 1 || captured.Lines[0].UnitPrice == nil {
		t.Fatalf("expected unit price override in command %+v", captured)
	}
	if got := captured.Lines[0].UnitPrice.StringFixed(2); got != "15.50" {
		t.Fatalf("expected override 15.50 got %s", got)
	}

	body = `{"customer_id":"cus_acme","line_items":[{"product_id":"prd_widget","quantity":2,"unit_price":"fifteen"}]}`
	req = httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersCreateOrderRejectsEmptyBody(t *testing.T) {
	router := orderRouter(&stubOrderService{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersListOrders(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var captured services.OrderListQuery
	service := &stubOrderService{
		listFn: func(_ context.Context, query services.OrderListQuery) (domain.CursorPage[services.Order], error) {
			captured = query
			return domain.CursorPage[services.Order]{
				Items:         []services.Order{sampleOrder(now)},
				NextPageToken: "tok-next",
			}, nil
		},
	}
	router := orderRouter(service, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders?status=issued&customer_id=cus_acme&page_size=10&page_token=tok123", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Status != "issued" || captured.CustomerID != "cus_acme" {
		t.Fatalf("unexpected query %+v", captured)
	}
	if captured.Pagination.PageSize != 10 || captured.Pagination.PageToken != "tok123" {
		t.Fatalf("unexpected pagination %+v", captured.Pagination)
	}

	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "ord_123" {
		t.Fatalf("unexpected items %+v", resp.Items)
	}
	if resp.NextPageToken != "tok-next" {
		t.Fatalf("expected next page token tok-next, got %s", resp.NextPageToken)
	}
}

func TestOrderHandlersListOrdersConfiguredPageLimits(t *testing.T) {
	var captured services.OrderListQuery
	service := &stubOrderService{
		listFn: func(_ context.Context, query services.OrderListQuery) (domain.CursorPage[services.Order], error) {
			captured = query
			return domain.CursorPage[services.Order]{}, nil
		},
	}
	handler := NewOrderHandlers(service, nil, nil, PageLimits{Default: 5, Max: 8})
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Pagination.PageSize != 5 {
		t.Fatalf("expected configured default 5, got %d", captured.Pagination.PageSize)
	}

	req = httptest.NewRequest(http.MethodGet, "/orders?page_size=50", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if captured.Pagination.PageSize != 8 {
		t.Fatalf("expected clamp to configured max 8, got %d", captured.Pagination.PageSize)
	}
}

func TestOrderHandlersListOrdersInvalidPageSize(t *testing.T) {
	router := orderRouter(&stubOrderService{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders?page_size=abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersIssueOrderInsufficientInventory(t *testing.T) {
	service := &stubOrderService{
		issueFn: func(context.Context, string) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: product prd_widget has 1, requires 2", services.ErrInsufficientInventory)
		},
	}
	router := orderRouter(service, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:issue", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["error"] != "insufficient_inventory" {
		t.Fatalf("unexpected error code %v", resp["error"])
	}
}

func TestOrderHandlersVoidOrderSuccess(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	service := &stubOrderService{
		voidFn: func(_ context.Context, orderID string) (services.Order, error) {
			order := sampleOrder(now)
			order.ID = orderID
			order.Status = domain.OrderStatusVoided
			return order, nil
		},
	}
	router := orderRouter(service, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:void", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.Status != "voided" {
		t.Fatalf("expected voided got %s", resp.Order.Status)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getFn: func(context.Context, string) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}
	router := orderRouter(service, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_ghost", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersFulfillLine(t *testing.T) {
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
	var captured services.FulfillLineCommand
	fulfillments := &stubFulfillmentService{
		fulfillFn: func(_ context.Context, cmd services.FulfillLineCommand) (services.FulfillLineResult, error) {
			captured = cmd
			order := sampleOrder(now)
			order.Status = domain.OrderStatusComplete
			return services.FulfillLineResult{Order: order, Completed: true}, nil
		},
	}
	router := orderRouter(&stubOrderService{}, fulfillments, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123/lines/li_1:fulfill", bytes.NewBufferString(`{"quantity":2}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_123" || captured.LineItemID != "li_1" || captured.Quantity != 2 {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp fulfillLineResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Completed {
		t.Fatalf("expected completed response")
	}
}

func TestOrderHandlersFulfillLineOverFulfillment(t *testing.T) {
	fulfillments := &stubFulfillmentService{
		fulfillFn: func(context.Context, services.FulfillLineCommand) (services.FulfillLineResult, error) {
			return services.FulfillLineResult{}, services.ErrOverFulfillment
		},
	}
	router := orderRouter(&stubOrderService{}, fulfillments, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123/lines/li_1:fulfill", bytes.NewBufferString(`{"quantity":99}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersRecordPayment(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	var captured services.RecordPaymentCommand
	payments := &stubPaymentService{
		recordFn: func(_ context.Context, cmd services.RecordPaymentCommand) (services.Order, error) {
			captured = cmd
			order := sampleOrder(now)
			order.PaymentStatus = domain.PaymentStatusPartial
			order.AmountPaid = decimal.RequireFromString("40.00")
			return order, nil
		},
	}
	router := orderRouter(&stubOrderService{}, nil, payments)

	body := `{"payment_amount":"40.00","payment_method":"bank_transfer","reference_number":"TRX-991"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123/payments", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_123" || captured.Amount.StringFixed(2) != "40.00" || captured.Method != "bank_transfer" {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.PaymentStatus != "partial" || resp.Order.AmountPaid != "40.00" {
		t.Fatalf("unexpected payload %+v", resp.Order)
	}
}

func TestOrderHandlersRecordPaymentInvalidAmount(t *testing.T) {
	router := orderRouter(&stubOrderService{}, nil, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123/payments", bytes.NewBufferString(`{"payment_amount":"forty"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersDeletePayment(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	payments := &stubPaymentService{
		deleteFn: func(_ context.Context, orderID, paymentID string) (services.Order, error) {
			if paymentID != "pay_1" {
				return services.Order{}, services.ErrPaymentNotFound
			}
			return sampleOrder(now), nil
		},
	}
	router := orderRouter(&stubOrderService{}, nil, payments)

	req := httptest.NewRequest(http.MethodDelete, "/orders/ord_123/payments/pay_1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/orders/ord_123/payments/pay_ghost", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersDeleteOrderInvalidState(t *testing.T) {
	service := &stubOrderService{
		deleteFn: func(context.Context, string) error {
			return services.ErrOrderInvalidState
		},
	}
	router := orderRouter(service, nil, nil)

	req := httptest.NewRequest(http.MethodDelete, "/orders/ord_123", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
