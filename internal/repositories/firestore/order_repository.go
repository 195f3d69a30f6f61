package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/orderdesk/api/internal/domain"
	pfirestore "github.com/orderdesk/api/internal/platform/firestore"
	"github.com/orderdesk/api/internal/repositories"
)

// OrderRepository implements repositories.OrderRepository backed by Firestore.
// Lifecycle transitions run inside transactions so the order mutation and any
// inventory adjustment land atomically; contended transactions retry via the
// provider's attempt budget.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
	products *pfirestore.BaseRepository[productDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	return &OrderRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection),
	}, nil
}

// Insert stores a new order document. The ID must be unique.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	return r.base.Create(ctx, orderID, encodeOrderDocument(order))
}

// FindByID fetches a single order aggregate.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(doc.ID, doc.Data)
}

// List returns orders ordered by most recent creation with optional status and customer filters.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.PageToken); token != "" {
		tokenTime, tokenID, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		if customerID := strings.TrimSpace(filter.CustomerID); customerID != "" {
			q = q.Where("customerId", "==", customerID)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeListToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := decodeOrderDocument(doc.ID, doc.Data)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		items = append(items, order)
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// UpdateDeliveryAddress replaces the delivery address on the order.
func (r *OrderRepository) UpdateDeliveryAddress(ctx context.Context, orderID string, address string, now time.Time) (domain.Order, error) {
	var result domain.Order
	err := r.mutate(ctx, "orders.update_address", orderID, func(order *domain.Order) error {
		if order.Status != domain.OrderStatusUnissued {
			return repositories.NewOrderError(repositories.OrderErrorInvalidState, fmt.Sprintf("order %s is %s; the delivery address is frozen once issued", orderID, order.Status), nil)
		}
		order.DeliveryAddress = address
		order.UpdatedAt = now.UTC()
		result = *order
		return nil
	})
	return result, err
}

// Delete removes the order document. Callers enforce that only unissued
// orders are deleted so no reserved stock leaks.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	return r.base.Delete(ctx, orderID)
}

// Issue transitions the order to issued and decrements product inventory in
// the same transaction. Availability is checked against the transactional
// snapshot, so two orders racing for the same stock serialise.
func (r *OrderRepository) Issue(ctx context.Context, orderID string, now time.Time) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	const op = "orders.issue"
	var result domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		order, orderRef, err := r.readOrder(ctx, tx, op, orderID)
		if err != nil {
			return err
		}

		productIDs := make([]string, 0, len(order.Lines))
		seen := make(map[string]struct{}, len(order.Lines))
		for _, line := range order.Lines {
			if _, ok := seen[line.ProductID]; ok {
				continue
			}
			seen[line.ProductID] = struct{}{}
			productIDs = append(productIDs, line.ProductID)
		}

		refs := make(map[string]*firestore.DocumentRef, len(productIDs))
		quantities := make(map[string]int, len(productIDs))
		for _, productID := range productIDs {
			ref, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				return pfirestore.WrapError(op, err)
			}
			doc, err := r.products.DecodeSnapshot(snap)
			if err != nil {
				return fmt.Errorf("%s: decode product %s: %w", op, productID, err)
			}
			refs[productID] = ref
			quantities[productID] = doc.InventoryQuantity
		}

		deltas, err := domain.IssueOrder(&order, func(productID string) (int, bool) {
			qty, ok := quantities[productID]
			return qty, ok
		}, now.UTC())
		if err != nil {
			return wrapLifecycleError(op, err)
		}

		for _, delta := range deltas {
			updates := []firestore.Update{
				{Path: "inventoryQuantity", Value: quantities[delta.ProductID] + delta.Delta},
				{Path: "updatedAt", Value: now.UTC()},
			}
			if err := tx.Update(refs[delta.ProductID], updates); err != nil {
				return pfirestore.WrapError(op, err)
			}
		}
		if err := tx.Set(orderRef, encodeOrderDocument(order)); err != nil {
			return pfirestore.WrapError(op, err)
		}
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

// Void transitions the order to voided and returns any remaining reserved
// stock to inventory in the same transaction.
func (r *OrderRepository) Void(ctx context.Context, orderID string, now time.Time) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	const op = "orders.void"
	var result domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		order, orderRef, err := r.readOrder(ctx, tx, op, orderID)
		if err != nil {
			return err
		}

		// Reads must precede writes, so snapshot the candidate products first.
		refs := make(map[string]*firestore.DocumentRef, len(order.Lines))
		quantities := make(map[string]int, len(order.Lines))
		if order.Status == domain.OrderStatusIssued {
			for _, line := range order.Lines {
				if _, ok := refs[line.ProductID]; ok {
					continue
				}
				ref, err := r.products.DocumentRef(ctx, line.ProductID)
				if err != nil {
					return err
				}
				snap, err := tx.Get(ref)
				if err != nil {
					return pfirestore.WrapError(op, err)
				}
				doc, err := r.products.DecodeSnapshot(snap)
				if err != nil {
					return fmt.Errorf("%s: decode product %s: %w", op, line.ProductID, err)
				}
				refs[line.ProductID] = ref
				quantities[line.ProductID] = doc.InventoryQuantity
			}
		}

		deltas, err := domain.VoidOrder(&order, now.UTC())
		if err != nil {
			return wrapLifecycleError(op, err)
		}

		released := make(map[string]int, len(deltas))
		for _, delta := range deltas {
			released[delta.ProductID] += delta.Delta
		}
		for productID, delta := range released {
			updates := []firestore.Update{
				{Path: "inventoryQuantity", Value: quantities[productID] + delta},
				{Path: "updatedAt", Value: now.UTC()},
			}
			if err := tx.Update(refs[productID], updates); err != nil {
				return pfirestore.WrapError(op, err)
			}
		}
		if err := tx.Set(orderRef, encodeOrderDocument(order)); err != nil {
			return pfirestore.WrapError(op, err)
		}
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

// Complete bulk-fulfils untouched lines and transitions the order to complete.
func (r *OrderRepository) Complete(ctx context.Context, orderID string, now time.Time) (domain.Order, error) {
	var result domain.Order
	err := r.mutate(ctx, "orders.complete", orderID, func(order *domain.Order) error {
		if err := domain.CompleteOrder(order, now.UTC()); err != nil {
			return err
		}
		result = *order
		return nil
	})
	return result, err
}

// FulfillLine records delivered quantity on one line item and auto-completes
// the order when every line is fulfilled.
func (r *OrderRepository) FulfillLine(ctx context.Context, orderID string, lineItemID string, quantity int, now time.Time) (repositories.OrderFulfillResult, error) {
	var result repositories.OrderFulfillResult
	err := r.mutate(ctx, "orders.fulfill_line", orderID, func(order *domain.Order) error {
		if order.Status == domain.OrderStatusIssued && order.Line(lineItemID) == nil {
			return repositories.NewOrderError(repositories.OrderErrorLineNotFound, fmt.Sprintf("line item %s not found", lineItemID), nil)
		}
		completed, err := domain.FulfillLine(order, lineItemID, quantity, now.UTC())
		if err != nil {
			return err
		}
		result = repositories.OrderFulfillResult{Order: *order, Completed: completed}
		return nil
	})
	return result, err
}

// AddPayment appends a payment record and recomputes the derived payment state.
func (r *OrderRepository) AddPayment(ctx context.Context, orderID string, payment domain.Payment, allowTerminal bool) (domain.Order, error) {
	var result domain.Order
	err := r.mutate(ctx, "orders.add_payment", orderID, func(order *domain.Order) error {
		if err := domain.ApplyPayment(order, payment, allowTerminal); err != nil {
			return err
		}
		result = *order
		return nil
	})
	return result, err
}

// DeletePayment removes a payment record and recomputes the derived payment state.
func (r *OrderRepository) DeletePayment(ctx context.Context, orderID string, paymentID string) (repositories.OrderPaymentRemoval, error) {
	var result repositories.OrderPaymentRemoval
	err := r.mutate(ctx, "orders.delete_payment", orderID, func(order *domain.Order) error {
		removed, err := domain.RemovePayment(order, paymentID)
		if err != nil {
			return repositories.NewOrderError(repositories.OrderErrorPaymentNotFound, err.Error(), err)
		}
		result = repositories.OrderPaymentRemoval{Order: *order, Payment: removed}
		return nil
	})
	return result, err
}

// mutate runs a single-document order transformation inside a transaction.
func (r *OrderRepository) mutate(ctx context.Context, op string, orderID string, apply func(order *domain.Order) error) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		order, orderRef, err := r.readOrder(ctx, tx, op, orderID)
		if err != nil {
			return err
		}
		if err := apply(&order); err != nil {
			return wrapLifecycleError(op, err)
		}
		if err := tx.Set(orderRef, encodeOrderDocument(order)); err != nil {
			return pfirestore.WrapError(op, err)
		}
		return nil
	})
}

func (r *OrderRepository) readOrder(ctx context.Context, tx *firestore.Transaction, op string, orderID string) (domain.Order, *firestore.DocumentRef, error) {
	orderRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	snap, err := tx.Get(orderRef)
	if err != nil {
		return domain.Order{}, nil, pfirestore.WrapError(op, err)
	}
	doc, err := r.base.DecodeSnapshot(snap)
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("%s: decode order %s: %w", op, orderID, err)
	}
	order, err := decodeOrderDocument(orderID, doc)
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, orderRef, nil
}

// wrapLifecycleError converts state machine violations into typed repository
// errors while keeping the domain error reachable through Unwrap.
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
	return pfirestore.WrapError(op, err)
}
