package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

const (
	orderIDPrefix    = "ord_"
	lineItemIDPrefix = "li_"

	eventOrderCreated   = "order.created"
	eventOrderIssued    = "order.issued"
	eventOrderVoided    = "order.voided"
	eventOrderCompleted = "order.completed"

	defaultOrderNumberPrefix = "SO"
	defaultOrderCounterName  = "orders"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid arguments.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates a concurrent modification collided with this one.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderInvalidState indicates the order status forbids the requested transition.
	ErrOrderInvalidState = errors.New("order: invalid state")
	// ErrInsufficientInventory indicates an order line exceeds product availability.
	ErrInsufficientInventory = errors.New("order: insufficient inventory")
)

// OrderServiceDeps bundles the collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders    repositories.OrderRepository
	Products  repositories.ProductRepository
	Customers repositories.CustomerRepository
	Counters  repositories.CounterRepository
	Events    OrderEventPublisher

	NumberPrefix string
	CounterName  string

	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	products  repositories.ProductRepository
	customers repositories.CustomerRepository
	counters  repositories.CounterRepository
	events    OrderEventPublisher

	numberPrefix string
	counterName  string

	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Customers == nil {
		return nil, errors.New("order service: customer repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	numberPrefix := strings.TrimSpace(deps.NumberPrefix)
	if numberPrefix == "" {
		numberPrefix = defaultOrderNumberPrefix
	}
	counterName := strings.TrimSpace(deps.CounterName)
	if counterName == "" {
		counterName = defaultOrderCounterName
	}

	return &orderService{
		orders:       deps.Orders,
		products:     deps.Products,
		customers:    deps.Customers,
		counters:     deps.Counters,
		events:       deps.Events,
		numberPrefix: numberPrefix,
		counterName:  counterName,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if err := validateCreateOrder(cmd); err != nil {
		return Order{}, err
	}

	customerID := strings.TrimSpace(cmd.CustomerID)
	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		return Order{}, s.mapCustomerLookupError(err)
	}

	now := s.now()
	orderDate := now
	if cmd.OrderDate != nil && !cmd.OrderDate.IsZero() {
		orderDate = cmd.OrderDate.UTC()
	}

	total := decimal.Zero
	lines := make([]domain.LineItem, 0, len(cmd.Lines))
	for _, cl := range cmd.Lines {
		product, err := s.products.FindByID(ctx, strings.TrimSpace(cl.ProductID))
		if err != nil {
			return Order{}, s.mapProductLookupError(err)
		}
		// Prices are snapshotted at creation; later catalog edits do not
		// reprice existing orders. A caller-supplied unit price takes
		// precedence over the catalog price.
		unitPrice := product.UnitPrice
		if cl.UnitPrice != nil {
			unitPrice = *cl.UnitPrice
		}
		lineTotal := domain.LineTotal(cl.Quantity, unitPrice)
		lines = append(lines, domain.LineItem{
			ID:                lineItemIDPrefix + s.newID(),
			ProductID:         product.ID,
			Quantity:          cl.Quantity,
			UnitPrice:         unitPrice,
			LineTotal:         lineTotal,
			FulfillmentStatus: domain.FulfillmentStatusUnfulfilled,
		})
		total = total.Add(lineTotal)
	}

	orderNumber, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	order := domain.Order{
		ID:              orderIDPrefix + s.newID(),
		OrderNumber:     orderNumber,
		CustomerID:      customerID,
		OrderDate:       orderDate,
		Status:          domain.OrderStatusUnissued,
		PaymentStatus:   domain.PaymentStatusUnpaid,
		TotalAmount:     total,
		AmountPaid:      decimal.Zero,
		DeliveryAddress: strings.TrimSpace(cmd.DeliveryAddress),
		Lines:           lines,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.created", map[string]any{
		"order":    order.ID,
		"number":   order.OrderNumber,
		"customer": order.CustomerID,
		"total":    order.TotalAmount.StringFixed(2),
	})
	s.publishEvent(ctx, OrderEventMessage{
		Event:       eventOrderCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		OccurredAt:  now,
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListQuery) (domain.CursorPage[Order], error) {
	repoFilter := repositories.OrderListFilter{
		CustomerID: strings.TrimSpace(filter.CustomerID),
		PageSize:   filter.Pagination.PageSize,
		PageToken:  strings.TrimSpace(filter.Pagination.PageToken),
	}
	if raw := strings.TrimSpace(filter.Status); raw != "" {
		status := domain.OrderStatus(raw)
		switch status {
		case domain.OrderStatusUnissued, domain.OrderStatusIssued, domain.OrderStatusComplete, domain.OrderStatusVoided:
			repoFilter.Status = &status
		default:
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, raw)
		}
	}

	page, err := s.orders.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) UpdateDeliveryAddress(ctx context.Context, cmd UpdateDeliveryAddressCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.UpdateDeliveryAddress(ctx, orderID, strings.TrimSpace(cmd.DeliveryAddress), s.now())
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

// DeleteOrder removes an order that has not yet touched inventory. Anything
// past unissued is rejected; callers void those instead so stock accounting
// stays intact.
func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if order.Status != domain.OrderStatusUnissued {
		return fmt.Errorf("%w: only unissued orders can be deleted", ErrOrderInvalidState)
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *orderService) IssueOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.Issue(ctx, orderID, s.now())
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.issued", map[string]any{
		"order":  order.ID,
		"number": order.OrderNumber,
	})
	s.publishEvent(ctx, OrderEventMessage{
		Event:       eventOrderIssued,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		OccurredAt:  order.UpdatedAt,
	})
	return order, nil
}

func (s *orderService) VoidOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.Void(ctx, orderID, s.now())
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.voided", map[string]any{
		"order":  order.ID,
		"number": order.OrderNumber,
	})
	s.publishEvent(ctx, OrderEventMessage{
		Event:       eventOrderVoided,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		OccurredAt:  order.UpdatedAt,
	})
	return order, nil
}

func (s *orderService) CompleteOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.Complete(ctx, orderID, s.now())
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.completed", map[string]any{
		"order":  order.ID,
		"number": order.OrderNumber,
	})
	s.publishEvent(ctx, OrderEventMessage{
		Event:       eventOrderCompleted,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		OccurredAt:  order.UpdatedAt,
	})
	return order, nil
}

func validateCreateOrder(cmd CreateOrderCommand) error {
	if strings.TrimSpace(cmd.CustomerID) == "" {
		return fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrOrderInvalidInput)
	}
	for i, line := range cmd.Lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return fmt.Errorf("%w: line %d: product id is required", ErrOrderInvalidInput, i)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d: quantity must be positive", ErrOrderInvalidInput, i)
		}
		if line.UnitPrice != nil && (line.UnitPrice.IsNegative() || !domain.ValidAmount(*line.UnitPrice)) {
			return fmt.Errorf("%w: line %d: unit price must not be negative and uses at most two decimal places", ErrOrderInvalidInput, i)
		}
	}
	return nil
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, s.counterName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d-%06d", s.numberPrefix, now.Year(), seq), nil
}

func (s *orderService) mapCustomerLookupError(err error) error {
	var catalogErr *repositories.CatalogError
	if errors.As(err, &catalogErr) && catalogErr.Code == repositories.CatalogErrorCustomerNotFound {
		return fmt.Errorf("%w: %s", ErrCustomerNotFound, catalogErr.Message)
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrCustomerNotFound, err)
	}
	return s.mapRepositoryError(err)
}

func (s *orderService) mapProductLookupError(err error) error {
	var catalogErr *repositories.CatalogError
	if errors.As(err, &catalogErr) && catalogErr.Code == repositories.CatalogErrorProductNotFound {
		return fmt.Errorf("%w: %s", ErrProductNotFound, catalogErr.Message)
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrProductNotFound, err)
	}
	return s.mapRepositoryError(err)
}

func (s *orderService) mapRepositoryError(err error) error {
	return mapOrderRepositoryError(err)
}

// mapOrderRepositoryError converts typed repository failures into service
// sentinels shared by the order, fulfilment, and payment services.
func mapOrderRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		switch orderErr.Code {
		case repositories.OrderErrorNotFound:
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderErr.Message)
		case repositories.OrderErrorLineNotFound:
			return fmt.Errorf("%w: %s", ErrLineItemNotFound, orderErr.Message)
		case repositories.OrderErrorPaymentNotFound:
			return fmt.Errorf("%w: %s", ErrPaymentNotFound, orderErr.Message)
		case repositories.OrderErrorInvalidState:
			return fmt.Errorf("%w: %s", ErrOrderInvalidState, orderErr.Message)
		case repositories.OrderErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrInsufficientInventory, orderErr.Message)
		case repositories.OrderErrorOverFulfillment:
			return fmt.Errorf("%w: %s", ErrOverFulfillment, orderErr.Message)
		case repositories.OrderErrorPaymentExceedsTotal:
			return fmt.Errorf("%w: %s", ErrPaymentExceedsTotal, orderErr.Message)
		case repositories.OrderErrorPaymentNotAccepted:
			return fmt.Errorf("%w: %s", ErrPaymentNotAccepted, orderErr.Message)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	publishOrderEvent(ctx, s.events, s.logger, message)
}

func publishOrderEvent(ctx context.Context, events OrderEventPublisher, logger func(context.Context, string, map[string]any), message OrderEventMessage) {
	if events == nil {
		return
	}
	if _, err := events.PublishOrderEvent(ctx, message); err != nil {
		logger(ctx, "order.event.publish.failed", map[string]any{
			"event": message.Event,
			"order": message.OrderID,
			"error": err.Error(),
		})
	}
}
