package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/orderdesk/api/internal/domain"
	pfirestore "github.com/orderdesk/api/internal/platform/firestore"
	"github.com/orderdesk/api/internal/repositories"
)

// CustomerRepository implements repositories.CustomerRepository backed by Firestore.
type CustomerRepository struct {
	base   *pfirestore.BaseRepository[customerDocument]
	orders *pfirestore.BaseRepository[orderDocument]
}

// NewCustomerRepository constructs a Firestore-backed customer repository.
func NewCustomerRepository(provider *pfirestore.Provider) (*CustomerRepository, error) {
	if provider == nil {
		return nil, errors.New("customer repository: firestore provider is required")
	}
	return &CustomerRepository{
		base:   pfirestore.NewBaseRepository[customerDocument](provider, customersCollection),
		orders: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
	}, nil
}

// Insert stores a new customer document. The ID must be unique.
func (r *CustomerRepository) Insert(ctx context.Context, customer domain.Customer) error {
	if r == nil || r.base == nil {
		return errors.New("customer repository not initialised")
	}
	customerID := strings.TrimSpace(customer.ID)
	if customerID == "" {
		return errors.New("customer repository: customer id is required")
	}
	return r.base.Create(ctx, customerID, encodeCustomerDocument(customer))
}

// Update replaces the persisted customer state with the provided snapshot.
func (r *CustomerRepository) Update(ctx context.Context, customer domain.Customer) error {
	if r == nil || r.base == nil {
		return errors.New("customer repository not initialised")
	}
	customerID := strings.TrimSpace(customer.ID)
	if customerID == "" {
		return errors.New("customer repository: customer id is required")
	}
	return r.base.Set(ctx, customerID, encodeCustomerDocument(customer))
}

// Delete removes the customer document unless an order still references it.
func (r *CustomerRepository) Delete(ctx context.Context, customerID string) error {
	if r == nil || r.base == nil {
		return errors.New("customer repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return errors.New("customer repository: customer id is required")
	}
	refs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customerId", "==", customerID).Limit(1)
	})
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return repositories.NewCatalogError(repositories.CatalogErrorInUse, fmt.Sprintf("customer %s is referenced by order %s", customerID, refs[0].ID), nil)
	}
	return r.base.Delete(ctx, customerID)
}

// FindByID fetches a single customer.
func (r *CustomerRepository) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	if r == nil || r.base == nil {
		return domain.Customer{}, errors.New("customer repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.Customer{}, errors.New("customer repository: customer id is required")
	}
	doc, err := r.base.Get(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return decodeCustomerDocument(doc.ID, doc.Data), nil
}

// List returns customers ordered by most recent creation.
func (r *CustomerRepository) List(ctx context.Context, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Customer]{}, errors.New("customer repository not initialised")
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
			return domain.CursorPage[domain.Customer]{}, fmt.Errorf("customer repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
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
		return domain.CursorPage[domain.Customer]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeListToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	items := make([]domain.Customer, 0, len(docs))
	for _, doc := range docs {
		customer := decodeCustomerDocument(doc.ID, doc.Data)
		if search != "" && !customerMatches(customer, search) {
			continue
		}
		items = append(items, customer)
	}

	return domain.CursorPage[domain.Customer]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// Firestore has no substring queries; search filters the fetched page.
func customerMatches(customer domain.Customer, search string) bool {
	return strings.Contains(strings.ToLower(customer.CompanyName), search) ||
		strings.Contains(strings.ToLower(customer.ContactPerson), search) ||
		strings.Contains(strings.ToLower(customer.Email), search)
}
