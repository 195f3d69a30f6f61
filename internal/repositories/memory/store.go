package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

// Store keeps the full dataset in process memory behind one mutex. Every
// repository operation runs while holding the lock, which gives the same
// all-or-nothing semantics as the Firestore transactions without a backend.
// Intended for local runs and tests.
type Store struct {
	mu        sync.Mutex
	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]domain.Order
	counters  map[string]int64
	orderSeq  []string
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
		orders:    make(map[string]domain.Order),
		counters:  make(map[string]int64),
	}
}

// Close implements repositories.Registry. The store holds no external resources.
func (s *Store) Close(ctx context.Context) error { return nil }

// Customers returns the customer repository view of the store.
func (s *Store) Customers() repositories.CustomerRepository { return (*customerStore)(s) }

// Products returns the product repository view of the store.
func (s *Store) Products() repositories.ProductRepository { return (*productStore)(s) }

// Orders returns the order repository view of the store.
func (s *Store) Orders() repositories.OrderRepository { return (*orderStore)(s) }

// Counters returns the counter repository view of the store.
func (s *Store) Counters() repositories.CounterRepository { return (*counterStore)(s) }

// Health returns an always-healthy check.
func (s *Store) Health() repositories.HealthRepository { return (*healthStore)(s) }

type healthStore Store

func (h *healthStore) Check(ctx context.Context) error { return nil }

type counterStore Store

// Next increments the named counter, starting missing counters at one.
func (c *counterStore) Next(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter name is required", nil)
	}
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name]++
	return s.counters[name], nil
}

// cloneOrder deep-copies the aggregate so callers never alias store state.
func cloneOrder(order domain.Order) domain.Order {
	out := order
	out.Lines = append([]domain.LineItem(nil), order.Lines...)
	out.Payments = append([]domain.Payment(nil), order.Payments...)
	return out
}

func paginate[T any](items []T, pageSize int, pageToken string, key func(T) string) (domain.CursorPage[T], error) {
	start := 0
	if token := strings.TrimSpace(pageToken); token != "" {
		found := false
		for i, item := range items {
			if key(item) == token {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			return domain.CursorPage[T]{Items: []T{}}, nil
		}
	}

	rest := items[start:]
	nextToken := ""
	if pageSize > 0 && len(rest) > pageSize {
		rest = rest[:pageSize]
		nextToken = key(rest[len(rest)-1])
	}
	return domain.CursorPage[T]{Items: rest, NextPageToken: nextToken}, nil
}

func sortedByCreatedDesc[T any](items []T, createdAt func(T) int64, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := createdAt(items[i]), createdAt(items[j])
		if ti != tj {
			return ti > tj
		}
		return id(items[i]) > id(items[j])
	})
}
