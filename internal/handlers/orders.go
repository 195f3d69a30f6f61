package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/platform/httpx"
	"github.com/orderdesk/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
)

type createOrderRequest struct {
	CustomerID      string                   `json:"customer_id"`
	DeliveryAddress string                   `json:"delivery_address"`
	OrderDate       string                   `json:"order_date"`
	LineItems       []createOrderLineRequest `json:"line_items"`
}

type createOrderLineRequest struct {
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
}

type updateOrderRequest struct {
	DeliveryAddress string `json:"delivery_address"`
}

type fulfillLineRequest struct {
	Quantity int `json:"quantity"`
}

type recordPaymentRequest struct {
	PaymentAmount   json.Number `json:"payment_amount"`
	PaymentMethod   string      `json:"payment_method"`
	ReferenceNumber string      `json:"reference_number"`
	PaymentDate     string      `json:"payment_date"`
}

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	orders       services.OrderService
	fulfillments services.FulfillmentService
	payments     services.PaymentService
	limits       PageLimits
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, fulfillments services.FulfillmentService, payments services.PaymentService, limits PageLimits) *OrderHandlers {
	return &OrderHandlers{
		orders:       orders,
		fulfillments: fulfillments,
		payments:     payments,
		limits:       limits,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}", h.updateOrder)
	r.Delete("/{orderID}", h.deleteOrder)
	r.Post("/{orderID}:issue", h.issueOrder)
	r.Post("/{orderID}:void", h.voidOrder)
	r.Post("/{orderID}:complete", h.completeOrder)
	r.Post("/{orderID}/lines/{lineItemID}:fulfill", h.fulfillLine)
	r.Get("/{orderID}/payments", h.listPayments)
	r.Post("/{orderID}/payments", h.recordPayment)
	r.Delete("/{orderID}/payments/{paymentID}", h.deletePayment)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	cmd := services.CreateOrderCommand{
		CustomerID:      strings.TrimSpace(req.CustomerID),
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
	}
	if raw := strings.TrimSpace(req.OrderDate); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.OrderDate = &ts
	}
	for _, line := range req.LineItems {
		cl := services.CreateOrderLine{
			ProductID: strings.TrimSpace(line.ProductID),
			Quantity:  line.Quantity,
		}
		if line.UnitPrice != "" {
			price, err := parseMoney(line.UnitPrice)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unit_price must be a decimal number", http.StatusBadRequest))
				return
			}
			cl.UnitPrice = &price
		}
		cmd.Lines = append(cmd.Lines, cl)
	}

	order, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	defaultSize, maxSize := h.limits.resolve(defaultOrderPageSize, maxOrderPageSize)
	pagination, httpErr := parsePagination(r, defaultSize, maxSize)
	if httpErr != nil {
		httpx.WriteError(ctx, w, *httpErr)
		return
	}

	query := r.URL.Query()
	page, err := h.orders.ListOrders(ctx, services.OrderListQuery{
		Status:     strings.TrimSpace(query.Get("status")),
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		Pagination: pagination,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	var req updateOrderRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.UpdateDeliveryAddress(ctx, services.UpdateDeliveryAddressCommand{
		OrderID:         orderID,
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(ctx, orderID); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandlers) issueOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, orderID string) (services.Order, error) {
		return h.orders.IssueOrder(ctx, orderID)
	})
}

func (h *OrderHandlers) voidOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, orderID string) (services.Order, error) {
		return h.orders.VoidOrder(ctx, orderID)
	})
}

func (h *OrderHandlers) completeOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, orderID string) (services.Order, error) {
		return h.orders.CompleteOrder(ctx, orderID)
	})
}

func (h *OrderHandlers) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (services.Order, error)) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	order, err := fn(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) fulfillLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.fulfillments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("fulfillment_service_unavailable", "fulfillment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	lineItemID := strings.TrimSpace(chi.URLParam(r, "lineItemID"))
	if lineItemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "line item id is required", http.StatusBadRequest))
		return
	}

	var req fulfillLineRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	result, err := h.fulfillments.FulfillLine(ctx, services.FulfillLineCommand{
		OrderID:    orderID,
		LineItemID: lineItemID,
		Quantity:   req.Quantity,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, fulfillLineResponse{
		Order:     buildOrderPayload(result.Order),
		Completed: result.Completed,
	})
}

func (h *OrderHandlers) listPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	payments, err := h.payments.ListPayments(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	items := make([]paymentPayload, 0, len(payments))
	for _, payment := range payments {
		items = append(items, buildPaymentPayload(payment))
	}
	writeJSONResponse(w, http.StatusOK, paymentListResponse{Items: items})
}

func (h *OrderHandlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	var req recordPaymentRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	amount, err := parseMoney(req.PaymentAmount)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment_amount must be a decimal number", http.StatusBadRequest))
		return
	}

	cmd := services.RecordPaymentCommand{
		OrderID:   orderID,
		Amount:    amount,
		Method:    strings.TrimSpace(req.PaymentMethod),
		Reference: strings.TrimSpace(req.ReferenceNumber),
	}
	if raw := strings.TrimSpace(req.PaymentDate); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.PaymentDate = &ts
	}

	order, err := h.payments.RecordPayment(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) deletePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	paymentID := strings.TrimSpace(chi.URLParam(r, "paymentID"))
	if paymentID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment id is required", http.StatusBadRequest))
		return
	}

	order, err := h.payments.DeletePayment(ctx, orderID, paymentID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func orderIDParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func decodeRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, target any) bool {
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrLineItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("line_item_not_found", "line item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_found", "payment not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCustomerNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("customer_not_found", "customer not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInsufficientInventory):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_inventory", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOverFulfillment):
		httpx.WriteError(ctx, w, httpx.NewError("over_fulfillment", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentExceedsTotal):
		httpx.WriteError(ctx, w, httpx.NewError("payment_exceeds_total", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotAccepted):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_accepted", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently; retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID            string      `json:"id"`
	OrderNumber   string      `json:"order_number"`
	CustomerID    string      `json:"customer_id"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	TotalAmount   json.Number `json:"total_amount"`
	AmountPaid    json.Number `json:"amount_paid"`
	OrderDate     string      `json:"order_date"`
	CreatedAt     string      `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type fulfillLineResponse struct {
	Order     orderPayload `json:"order"`
	Completed bool         `json:"completed"`
}

type orderPayload struct {
	ID              string            `json:"id"`
	OrderNumber     string            `json:"order_number"`
	CustomerID      string            `json:"customer_id"`
	OrderDate       string            `json:"order_date"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	TotalAmount     json.Number       `json:"total_amount"`
	AmountPaid      json.Number       `json:"amount_paid"`
	DeliveryAddress string            `json:"delivery_address,omitempty"`
	LineItems       []lineItemPayload `json:"line_items"`
	Payments        []paymentPayload  `json:"payments,omitempty"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at,omitempty"`
}

type lineItemPayload struct {
	ID                string      `json:"id"`
	ProductID         string      `json:"product_id"`
	Quantity          int         `json:"quantity"`
	UnitPrice         json.Number `json:"unit_price"`
	LineTotal         json.Number `json:"line_total"`
	FulfillmentStatus string      `json:"fulfillment_status"`
	FulfilledQuantity int         `json:"fulfilled_quantity"`
}

type paymentListResponse struct {
	Items []paymentPayload `json:"items"`
}

type paymentPayload struct {
	ID              string      `json:"id"`
	PaymentAmount   json.Number `json:"payment_amount"`
	PaymentMethod   string      `json:"payment_method,omitempty"`
	ReferenceNumber string      `json:"reference_number,omitempty"`
	PaymentDate     string      `json:"payment_date"`
	CreatedAt       string      `json:"created_at"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   domain.MoneyJSON(order.TotalAmount),
		AmountPaid:    domain.MoneyJSON(order.AmountPaid),
		OrderDate:     formatTime(order.OrderDate),
		CreatedAt:     formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	lines := make([]lineItemPayload, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, lineItemPayload{
			ID:                line.ID,
			ProductID:         line.ProductID,
			Quantity:          line.Quantity,
			UnitPrice:         domain.MoneyJSON(line.UnitPrice),
			LineTotal:         domain.MoneyJSON(line.LineTotal),
			FulfillmentStatus: string(line.FulfillmentStatus),
			FulfilledQuantity: line.FulfilledQuantity,
		})
	}
	payments := make([]paymentPayload, 0, len(order.Payments))
	for _, payment := range order.Payments {
		payments = append(payments, buildPaymentPayload(payment))
	}
	return orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		OrderDate:       formatTime(order.OrderDate),
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		TotalAmount:     domain.MoneyJSON(order.TotalAmount),
		AmountPaid:      domain.MoneyJSON(order.AmountPaid),
		DeliveryAddress: order.DeliveryAddress,
		LineItems:       lines,
		Payments:        payments,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}
}

func buildPaymentPayload(payment services.Payment) paymentPayload {
	return paymentPayload{
		ID:              payment.ID,
		PaymentAmount:   domain.MoneyJSON(payment.Amount),
		PaymentMethod:   payment.Method,
		ReferenceNumber: payment.Reference,
		PaymentDate:     formatTime(payment.PaymentDate),
		CreatedAt:       formatTime(payment.CreatedAt),
	}
}
