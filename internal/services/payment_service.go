package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

const (
	paymentIDPrefix = "pay_"

	eventPaymentRecorded = "order.payment.recorded"
	eventPaymentDeleted  = "order.payment.deleted"
)

var (
	// ErrPaymentNotFound indicates the order ledger has no payment with the given id.
	ErrPaymentNotFound = errors.New("payment: not found")
	// ErrPaymentExceedsTotal indicates the payment would overpay the order.
	ErrPaymentExceedsTotal = errors.New("payment: amount exceeds order total")
	// ErrPaymentNotAccepted indicates the order status does not accept payments.
	ErrPaymentNotAccepted = errors.New("payment: order does not accept payments")
)

// PaymentServiceDeps bundles the collaborators for the payment service.
type PaymentServiceDeps struct {
	Orders repositories.OrderRepository
	Events OrderEventPublisher

	// AcceptTerminalPayments allows recording payments against completed and
	// voided orders, settling invoices that arrive after delivery.
	AcceptTerminalPayments bool

	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders repositories.OrderRepository
	events OrderEventPublisher

	acceptTerminal bool

	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewPaymentService wires dependencies into a PaymentService.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
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

	return &paymentService{
		orders:         deps.Orders,
		events:         deps.Events,
		acceptTerminal: deps.AcceptTerminalPayments,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *paymentService) RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Amount.IsPositive() || !domain.ValidAmount(cmd.Amount) {
		return Order{}, fmt.Errorf("%w: amount must be positive with at most two decimal places", ErrOrderInvalidInput)
	}

	now := s.clock()
	paymentDate := now
	if cmd.PaymentDate != nil && !cmd.PaymentDate.IsZero() {
		paymentDate = cmd.PaymentDate.UTC()
	}

	payment := domain.Payment{
		ID:          paymentIDPrefix + s.newID(),
		OrderID:     orderID,
		Amount:      cmd.Amount,
		Method:      strings.TrimSpace(cmd.Method),
		Reference:   strings.TrimSpace(cmd.Reference),
		PaymentDate: paymentDate,
		CreatedAt:   now,
	}

	// The terminal-status policy is enforced inside the repository
	// transaction so a concurrent complete or void cannot slip a payment
	// past the gate.
	order, err := s.orders.AddPayment(ctx, orderID, payment, s.acceptTerminal)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}

	s.logger(ctx, "order.payment.recorded", map[string]any{
		"order":          order.ID,
		"payment":        payment.ID,
		"amount":         payment.Amount.StringFixed(2),
		"payment_status": string(order.PaymentStatus),
	})
	s.publishEvent(ctx, OrderEventMessage{
		Event:         eventPaymentRecorded,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		PaymentID:     payment.ID,
		Amount:        payment.Amount.StringFixed(2),
		OccurredAt:    now,
	})
	return order, nil
}

func (s *paymentService) DeletePayment(ctx context.Context, orderID string, paymentID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if paymentID == "" {
		return Order{}, fmt.Errorf("%w: payment id is required", ErrOrderInvalidInput)
	}

	removal, err := s.orders.DeletePayment(ctx, orderID, paymentID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}

	order := removal.Order
	s.logger(ctx, "order.payment.deleted", map[string]any{
		"order":          order.ID,
		"payment":        paymentID,
		"amount":         removal.Payment.Amount.StringFixed(2),
		"payment_status": string(order.PaymentStatus),
	})
	s.publishEvent(ctx, OrderEventMessage{
		Event:         eventPaymentDeleted,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		PaymentID:     paymentID,
		Amount:        removal.Payment.Amount.StringFixed(2),
		OccurredAt:    order.UpdatedAt,
	})
	return order, nil
}

func (s *paymentService) ListPayments(ctx context.Context, orderID string) ([]Payment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapOrderRepositoryError(err)
	}
	payments := make([]Payment, len(order.Payments))
	copy(payments, order.Payments)
	return payments, nil
}

func (s *paymentService) publishEvent(ctx context.Context, message OrderEventMessage) {
	publishOrderEvent(ctx, s.events, s.logger, message)
}
