package memory

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

type customerStore Store

// Insert stores a new customer. The ID must be unique.
func (c *customerStore) Insert(ctx context.Context, customer domain.Customer) error {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[customer.ID]; ok {
		return repositories.NewCatalogError(repositories.CatalogErrorUnknown, fmt.Sprintf("customer %s already exists", customer.ID), nil)
	}
	s.customers[customer.ID] = customer
	return nil
}

// Update replaces the stored customer.
func (c *customerStore) Update(ctx context.Context, customer domain.Customer) error {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[customer.ID]; !ok {
		return customerNotFound(customer.ID)
	}
	s.customers[customer.ID] = customer
	return nil
}

// Delete removes the customer unless an order still references it.
func (c *customerStore) Delete(ctx context.Context, customerID string) error {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[customerID]; !ok {
		return customerNotFound(customerID)
	}
	for _, order := range s.orders {
		if order.CustomerID == customerID {
			return repositories.NewCatalogError(repositories.CatalogErrorInUse, fmt.Sprintf("customer %s is referenced by order %s", customerID, order.ID), nil)
		}
	}
	delete(s.customers, customerID)
	return nil
}

// FindByID fetches a single customer.
func (c *customerStore) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[customerID]
	if !ok {
		return domain.Customer{}, customerNotFound(customerID)
	}
	return customer, nil
}

// List returns customers ordered by most recent creation.
func (c *customerStore) List(ctx context.Context, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	items := make([]domain.Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		if search != "" &&
			!strings.Contains(strings.ToLower(customer.CompanyName), search) &&
			!strings.Contains(strings.ToLower(customer.ContactPerson), search) &&
			!strings.Contains(strings.ToLower(customer.Email), search) {
			continue
		}
		items = append(items, customer)
	}
	sortedByCreatedDesc(items,
		func(c domain.Customer) int64 { return c.CreatedAt.UnixNano() },
		func(c domain.Customer) string { return c.ID },
	)
	return paginate(items, filter.PageSize, filter.PageToken, func(c domain.Customer) string { return c.ID })
}

type productStore Store

// Insert stores a new product after checking SKU uniqueness.
func (p *productStore) Insert(ctx context.Context, product domain.Product) error {
	s := (*Store)(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; ok {
		return repositories.NewCatalogError(repositories.CatalogErrorUnknown, fmt.Sprintf("product %s already exists", product.ID), nil)
	}
	if err := s.checkSKULocked(product.SKU, product.ID); err != nil {
		return err
	}
	s.products[product.ID] = product
	return nil
}

// Update replaces the stored product.
func (p *productStore) Update(ctx context.Context, product domain.Product) error {
	s := (*Store)(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return productNotFound(product.ID)
	}
	if err := s.checkSKULocked(product.SKU, product.ID); err != nil {
		return err
	}
	s.products[product.ID] = product
	return nil
}

// Delete removes the product unless an order line still references it.
func (p *productStore) Delete(ctx context.Context, productID string) error {
	s := (*Store)(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return productNotFound(productID)
	}
	for _, order := range s.orders {
		for _, line := range order.Lines {
			if line.ProductID == productID {
				return repositories.NewCatalogError(repositories.CatalogErrorInUse, fmt.Sprintf("product %s is referenced by order %s", productID, order.ID), nil)
			}
		}
	}
	delete(s.products, productID)
	return nil
}

// FindByID fetches a single product.
func (p *productStore) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	s := (*Store)(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, productNotFound(productID)
	}
	return product, nil
}

// FindBySKU fetches the product carrying the given SKU.
func (p *productStore) FindBySKU(ctx context.Context, sku string) (domain.Product, error) {
	s := (*Store)(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, product := range s.products {
		if product.SKU == sku {
			return product, nil
		}
	}
	return domain.Product{}, repositories.NewCatalogError(repositories.CatalogErrorProductNotFound, fmt.Sprintf("product with sku %s not found", sku), nil)
}

// List returns products ordered by most recent creation.
func (p *productStore) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	s := (*Store)(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	items := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		if filter.LowStockBelow != nil && product.InventoryQuantity >= *filter.LowStockBelow {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(product.Name), search) &&
			!strings.Contains(strings.ToLower(product.SKU), search) {
			continue
		}
		items = append(items, product)
	}
	sortedByCreatedDesc(items,
		func(p domain.Product) int64 { return p.CreatedAt.UnixNano() },
		func(p domain.Product) string { return p.ID },
	)
	return paginate(items, filter.PageSize, filter.PageToken, func(p domain.Product) string { return p.ID })
}

func (s *Store) checkSKULocked(sku string, selfID string) error {
	if strings.TrimSpace(sku) == "" {
		return nil
	}
	for id, product := range s.products {
		if id != selfID && product.SKU == sku {
			return repositories.NewCatalogError(repositories.CatalogErrorDuplicateSKU, fmt.Sprintf("sku %s is already in use", sku), nil)
		}
	}
	return nil
}

func customerNotFound(customerID string) error {
	return repositories.NewCatalogError(repositories.CatalogErrorCustomerNotFound, fmt.Sprintf("customer %s not found", customerID), nil)
}

func productNotFound(productID string) error {
	return repositories.NewCatalogError(repositories.CatalogErrorProductNotFound, fmt.Sprintf("product %s not found", productID), nil)
}
