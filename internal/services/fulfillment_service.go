package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orderdesk/api/internal/repositories"
)

const (
	eventOrderLineFulfilled = "order.line.fulfilled"
)

var (
	// ErrLineItemNotFound indicates the order has no line with the given id.
	ErrLineItemNotFound = errors.New("fulfillment: line item not found")
	// ErrOverFulfillment indicates the quantity would exceed what the line ordered.
	ErrOverFulfillment = errors.New("fulfillment: quantity exceeds remaining")
)

// FulfillmentServiceDeps bundles the collaborators for the fulfilment service.
type FulfillmentServiceDeps struct {
	Orders repositories.OrderRepository
	Events OrderEventPublisher

	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type fulfillmentService struct {
	orders repositories.OrderRepository
	events OrderEventPublisher

	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewFulfillmentService wires dependencies into a FulfillmentService.
func NewFulfillmentService(deps FulfillmentServiceDeps) (FulfillmentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("fulfillment service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &fulfillmentService{
		orders: deps.Orders,
		events: deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *fulfillmentService) FulfillLine(ctx context.Context, cmd FulfillLineCommand) (FulfillLineResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	lineItemID := strings.TrimSpace(cmd.LineItemID)
	if orderID == "" {
		return FulfillLineResult{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if lineItemID == "" {
		return FulfillLineResult{}, fmt.Errorf("%w: line item id is required", ErrOrderInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return FulfillLineResult{}, fmt.Errorf("%w: quantity must be positive", ErrOrderInvalidInput)
	}

	result, err := s.orders.FulfillLine(ctx, orderID, lineItemID, cmd.Quantity, s.clock())
	if err != nil {
		return FulfillLineResult{}, mapOrderRepositoryError(err)
	}

	order := result.Order
	s.logger(ctx, "order.line.fulfilled", map[string]any{
		"order":     order.ID,
		"line":      lineItemID,
		"quantity":  cmd.Quantity,
		"completed": result.Completed,
	})
	s.publishEvent(ctx, OrderEventMessage{
		Event:       eventOrderLineFulfilled,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		LineItemID:  lineItemID,
		OccurredAt:  order.UpdatedAt,
	})
	if result.Completed {
		s.publishEvent(ctx, OrderEventMessage{
			Event:       eventOrderCompleted,
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID,
			Status:      string(order.Status),
			OccurredAt:  order.UpdatedAt,
		})
	}

	return FulfillLineResult{Order: order, Completed: result.Completed}, nil
}

func (s *fulfillmentService) publishEvent(ctx context.Context, message OrderEventMessage) {
	publishOrderEvent(ctx, s.events, s.logger, message)
}
