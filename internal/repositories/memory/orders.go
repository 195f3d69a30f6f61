package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

type orderStore Store

// Insert stores a new order. The ID must be unique.
func (o *orderStore) Insert(ctx context.Context, order domain.Order) error {
	s := (*Store)(o)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return repositories.NewOrderError(repositories.OrderErrorUnknown, fmt.Sprintf("order %s already exists", order.ID), nil)
	}
	s.orders[order.ID] = cloneOrder(order)
	s.orderSeq = append(s.orderSeq, order.ID)
	return nil
}

// FindByID fetches a single order aggregate.
func (o *orderStore) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	s := (*Store)(o)
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, orderNotFound(orderID)
	}
	return cloneOrder(order), nil
}

// List returns orders newest first with optional status and customer filters.
func (o *orderStore) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	s := (*Store)(o)
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.Order, 0, len(s.orders))
	// orderSeq preserves insertion order; iterate newest first.
	for i := len(s.orderSeq) - 1; i >= 0; i-- {
		order, ok := s.orders[s.orderSeq[i]]
		if !ok {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if customerID := strings.TrimSpace(filter.CustomerID); customerID != "" && order.CustomerID != customerID {
			continue
		}
		items = append(items, cloneOrder(order))
	}
	return paginate(items, filter.PageSize, filter.PageToken, func(o domain.Order) string { return o.ID })
}

// UpdateDeliveryAddress replaces the delivery address on the order.
func (o *orderStore) UpdateDeliveryAddress(ctx context.Context, orderID string, address string, now time.Time) (domain.Order, error) {
	return o.mutate(orderID, func(order *domain.Order) error {
		if order.Status != domain.OrderStatusUnissued {
			return repositories.NewOrderError(repositories.OrderErrorInvalidState, fmt.Sprintf("order %s is %s; the delivery address is frozen once issued", orderID, order.Status), nil)
		}
		order.DeliveryAddress = address
		order.UpdatedAt = now.UTC()
		return nil
	})
}

// Delete removes the order.
func (o *orderStore) Delete(ctx context.Context, orderID string) error {
	s := (*Store)(o)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[orderID]; !ok {
		return orderNotFound(orderID)
	}
	delete(s.orders, orderID)
	for i, id := range s.orderSeq {
		if id == orderID {
			s.orderSeq = append(s.orderSeq[:i], s.orderSeq[i+1:]...)
			break
		}
	}
	return nil
}

// Issue transitions the order to issued and decrements product inventory under the store lock.
func (o *orderStore) Issue(ctx context.Context, orderID string, now time.Time) (domain.Order, error) {
	s := (*Store)(o)
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, orderNotFound(orderID)
	}
	working := cloneOrder(order)

	deltas, err := domain.IssueOrder(&working, func(productID string) (int, bool) {
		product, ok := s.products[productID]
		if !ok {
			return 0, false
		}
		return product.InventoryQuantity, true
	}, now.UTC())
	if err != nil {
		return domain.Order{}, wrapLifecycleError("orders.issue", err)
	}

	s.applyDeltasLocked(deltas, now)
	s.orders[orderID] = working
	return cloneOrder(working), nil
}

// Void transitions the order to voided and releases remaining stock under the store lock.
func (o *orderStore) Void(ctx context.Context, orderID string, now time.Time) (domain.Order, error) {
	s := (*Store)(o)
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, orderNotFound(orderID)
	}
	working := cloneOrder(order)

	deltas, err := domain.VoidOrder(&working, now.UTC())
	if err != nil {
		return domain.Order{}, wrapLifecycleError("orders.void", err)
	}

	s.applyDeltasLocked(deltas, now)
	s.orders[orderID] = working
	return cloneOrder(working), nil
}

// Complete bulk-fulfils untouched lines and transitions the order to complete.
func (o *orderStore) Complete(ctx context.Context, orderID string, now time.Time) (domain.Order, error) {
	return o.mutate(orderID, func(order *domain.Order) error {
		return domain.CompleteOrder(order, now.UTC())
	})
}

// FulfillLine records delivered quantity on one line item.
func (o *orderStore) FulfillLine(ctx context.Context, orderID string, lineItemID string, quantity int, now time.Time) (repositories.OrderFulfillResult, error) {
	var completed bool
	order, err := o.mutate(orderID, func(order *domain.Order) error {
		if order.Status == domain.OrderStatusIssued && order.Line(lineItemID) == nil {
			return repositories.NewOrderError(repositories.OrderErrorLineNotFound, fmt.Sprintf("line item %s not found", lineItemID), nil)
		}
		var err error
		completed, err = domain.FulfillLine(order, lineItemID, quantity, now.UTC())
		return err
	})
	if err != nil {
		return repositories.OrderFulfillResult{}, err
	}
	return repositories.OrderFulfillResult{Order: order, Completed: completed}, nil
}

// AddPayment appends a payment record and recomputes the derived payment state.
func (o *orderStore) AddPayment(ctx context.Context, orderID string, payment domain.Payment, allowTerminal bool) (domain.Order, error) {
	return o.mutate(orderID, func(order *domain.Order) error {
		return domain.ApplyPayment(order, payment, allowTerminal)
	})
}

// DeletePayment removes a payment record and recomputes the derived payment state.
func (o *orderStore) DeletePayment(ctx context.Context, orderID string, paymentID string) (repositories.OrderPaymentRemoval, error) {
	var removed domain.Payment
	order, err := o.mutate(orderID, func(order *domain.Order) error {
		var err error
		removed, err = domain.RemovePayment(order, paymentID)
		if err != nil {
			return repositories.NewOrderError(repositories.OrderErrorPaymentNotFound, err.Error(), err)
		}
		return nil
	})
	if err != nil {
		return repositories.OrderPaymentRemoval{}, err
	}
	return repositories.OrderPaymentRemoval{Order: order, Payment: removed}, nil
}

func (o *orderStore) mutate(orderID string, apply func(order *domain.Order) error) (domain.Order, error) {
	s := (*Store)(o)
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, orderNotFound(orderID)
	}
	working := cloneOrder(order)
	if err := apply(&working); err != nil {
		return domain.Order{}, wrapLifecycleError("orders.mutate", err)
	}
	s.orders[orderID] = working
	return cloneOrder(working), nil
}

func (s *Store) applyDeltasLocked(deltas []domain.StockDelta, now time.Time) {
	for _, delta := range deltas {
		product, ok := s.products[delta.ProductID]
		if !ok {
			continue
		}
		product.InventoryQuantity += delta.Delta
		product.UpdatedAt = now.UTC()
		s.products[delta.ProductID] = product
	}
}

func wrapLifecycleError(op string, err error) error {
	if err == nil {
		return nil
	}

	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return &repositories.OrderError{Op: op, Code: repositories.OrderErrorInvalidState, Message: transitionErr.Error(), Err: err}
	}
	var insufficientErr *domain.InsufficientInventoryError
	if errors.As(err, &insufficientErr) {
		return &repositories.OrderError{Op: op, Code: repositories.OrderErrorInsufficientStock, Message: insufficientErr.Error(), Err: err}
	}
	var overErr *domain.OverFulfillmentError
	if errors.As(err, &overErr) {
		return &repositories.OrderError{Op: op, Code: repositories.OrderErrorOverFulfillment, Message: overErr.Error(), Err: err}
	}
	var exceedsErr *domain.PaymentExceedsTotalError
	if errors.As(err, &exceedsErr) {
		return &repositories.OrderError{Op: op, Code: repositories.OrderErrorPaymentExceedsTotal, Message: exceedsErr.Error(), Err: err}
	}
	var notAcceptedErr *domain.PaymentNotAcceptedError
	if errors.As(err, &notAcceptedErr) {
		return &repositories.OrderError{Op: op, Code: repositories.OrderErrorPaymentNotAccepted, Message: notAcceptedErr.Error(), Err: err}
	}
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		return err
	}
	return repositories.NewOrderError(repositories.OrderErrorUnknown, err.Error(), err)
}

func orderNotFound(orderID string) error {
	return repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", orderID), nil)
}
