package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

func newTestCatalogService(t *testing.T, deps CatalogServiceDeps) CatalogService {
	t.Helper()
	if deps.Products == nil {
		deps.Products = &stubProductRepo{}
	}
	if deps.Customers == nil {
		deps.Customers = &stubCustomerRepo{}
	}
	svc, err := NewCatalogService(deps)
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc
}

func TestCatalogServiceCreateProduct(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	var inserted domain.Product

	svc := newTestCatalogService(t, CatalogServiceDeps{
		Products: &stubProductRepo{
			insertFn: func(_ context.Context, product domain.Product) error {
				inserted = product
				return nil
			},
		},
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "000TEST" },
	})

	product, err := svc.CreateProduct(ctx, ProductCommand{
		SKU:               "  WID-1 ",
		Name:              "Widget",
		UnitPrice:         amount("19.99"),
		InventoryQuantity: 25,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.ID != "prd_000TEST" {
		t.Fatalf("unexpected product id %s", product.ID)
	}
	if product.SKU != "WID-1" {
		t.Fatalf("expected trimmed sku got %q", product.SKU)
	}
	if !product.CreatedAt.Equal(now) || !product.UpdatedAt.Equal(now) {
		t.Fatalf("expected timestamps %s got %s / %s", now, product.CreatedAt, product.UpdatedAt)
	}
	if inserted.ID != product.ID {
		t.Fatalf("insert not invoked with created product")
	}
}

func TestCatalogServiceProductValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestCatalogService(t, CatalogServiceDeps{})

	cases := []struct {
		name string
		cmd  ProductCommand
	}{
		{"missing sku", ProductCommand{Name: "Widget", UnitPrice: amount("1.00")}},
		{"missing name", ProductCommand{SKU: "WID-1", UnitPrice: amount("1.00")}},
		{"negative price", ProductCommand{SKU: "WID-1", Name: "Widget", UnitPrice: amount("-1.00")}},
		{"sub-cent price", ProductCommand{SKU: "WID-1", Name: "Widget", UnitPrice: amount("1.005")}},
		{"negative inventory", ProductCommand{SKU: "WID-1", Name: "Widget", UnitPrice: amount("1.00"), InventoryQuantity: -1}},
	}
	for _, tc := range cases {
		if _, err := svc.CreateProduct(ctx, tc.cmd); !errors.Is(err, ErrCatalogInvalidInput) {
			t.Fatalf("%s: expected invalid input got %v", tc.name, err)
		}
	}
}

func TestCatalogServiceUpdateProductMapsDuplicateSKU(t *testing.T) {
	ctx := context.Background()
	svc := newTestCatalogService(t, CatalogServiceDeps{
		Products: &stubProductRepo{
			findFn: func(_ context.Context, productID string) (domain.Product, error) {
				return domain.Product{ID: productID, SKU: "WID-1", Name: "Widget", UnitPrice: amount("1.00")}, nil
			},
			updateFn: func(context.Context, domain.Product) error {
				return repositories.NewCatalogError(repositories.CatalogErrorDuplicateSKU, "sku GAD-1 already in use", nil)
			},
		},
	})

	sku := "GAD-1"
	_, err := svc.UpdateProduct(ctx, "prd_1", UpdateProductCommand{SKU: &sku})
	if !errors.Is(err, ErrDuplicateSKU) {
		t.Fatalf("expected duplicate sku got %v", err)
	}
}

func TestCatalogServiceUpdateProductPartial(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	var updated domain.Product

	svc := newTestCatalogService(t, CatalogServiceDeps{
		Products: &stubProductRepo{
			findFn: func(_ context.Context, productID string) (domain.Product, error) {
				return domain.Product{
					ID:                productID,
					SKU:               "WID-1",
					Name:              "Widget",
					Description:       "A widget",
					UnitPrice:         amount("19.99"),
					InventoryQuantity: 5,
				}, nil
			},
			updateFn: func(_ context.Context, product domain.Product) error {
				updated = product
				return nil
			},
		},
		Clock: func() time.Time { return now },
	})

	stock := 42
	product, err := svc.UpdateProduct(ctx, "prd_1", UpdateProductCommand{InventoryQuantity: &stock})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if product.InventoryQuantity != 42 {
		t.Fatalf("expected inventory 42 got %d", product.InventoryQuantity)
	}
	if product.SKU != "WID-1" || product.Name != "Widget" {
		t.Fatalf("omitted fields must keep stored values, got %q / %q", product.SKU, product.Name)
	}
	if got := product.UnitPrice.StringFixed(2); got != "19.99" {
		t.Fatalf("expected stored unit price 19.99 got %s", got)
	}
	if !product.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated at %s got %s", now, product.UpdatedAt)
	}
	if updated.InventoryQuantity != 42 {
		t.Fatalf("update not invoked with merged product")
	}

	blank := "  "
	if _, err := svc.UpdateProduct(ctx, "prd_1", UpdateProductCommand{SKU: &blank}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input for blank sku got %v", err)
	}
	negative := amount("-1.00")
	if _, err := svc.UpdateProduct(ctx, "prd_1", UpdateProductCommand{UnitPrice: &negative}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input for negative price got %v", err)
	}
}

func TestCatalogServiceListProductsRejectsNegativeThreshold(t *testing.T) {
	ctx := context.Background()
	svc := newTestCatalogService(t, CatalogServiceDeps{})

	threshold := -1
	if _, err := svc.ListProducts(ctx, ProductListQuery{LowStockBelow: &threshold}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input got %v", err)
	}
}

func TestCatalogServiceCreateCustomer(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	var inserted domain.Customer

	svc := newTestCatalogService(t, CatalogServiceDeps{
		Customers: &stubCustomerRepo{
			insertFn: func(_ context.Context, customer domain.Customer) error {
				inserted = customer
				return nil
			},
		},
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "000TEST" },
	})

	customer, err := svc.CreateCustomer(ctx, CustomerCommand{
		CompanyName:   "Acme Pty Ltd",
		ContactPerson: "Jo Bloggs",
		Email:         "jo@acme.example",
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if customer.ID != "cus_000TEST" {
		t.Fatalf("unexpected customer id %s", customer.ID)
	}
	if inserted.CompanyName != "Acme Pty Ltd" {
		t.Fatalf("insert not invoked with created customer")
	}
}

func TestCatalogServiceCustomerValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestCatalogService(t, CatalogServiceDeps{})

	if _, err := svc.CreateCustomer(ctx, CustomerCommand{Email: "jo@acme.example"}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input for missing company got %v", err)
	}
	if _, err := svc.CreateCustomer(ctx, CustomerCommand{CompanyName: "Acme", Email: "not-an-email"}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input for bad email got %v", err)
	}
}

func TestCatalogServiceUpdateCustomerPartial(t *testing.T) {
	ctx := context.Background()
	var updated domain.Customer

	svc := newTestCatalogService(t, CatalogServiceDeps{
		Customers: &stubCustomerRepo{
			findFn: func(_ context.Context, customerID string) (domain.Customer, error) {
				return domain.Customer{
					ID:            customerID,
					CompanyName:   "Acme Pty Ltd",
					ContactPerson: "Jo Bloggs",
					Email:         "jo@acme.example",
				}, nil
			},
			updateFn: func(_ context.Context, customer domain.Customer) error {
				updated = customer
				return nil
			},
		},
	})

	phone := "+61 2 5550 1234"
	customer, err := svc.UpdateCustomer(ctx, "cus_1", UpdateCustomerCommand{Phone: &phone})
	if err != nil {
		t.Fatalf("update customer: %v", err)
	}
	if customer.Phone != phone {
		t.Fatalf("expected phone %q got %q", phone, customer.Phone)
	}
	if customer.CompanyName != "Acme Pty Ltd" || customer.Email != "jo@acme.example" {
		t.Fatalf("omitted fields must keep stored values, got %+v", customer)
	}
	if updated.Phone != phone {
		t.Fatalf("update not invoked with merged customer")
	}

	badEmail := "not-an-email"
	if _, err := svc.UpdateCustomer(ctx, "cus_1", UpdateCustomerCommand{Email: &badEmail}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input for bad email got %v", err)
	}
}

func TestCatalogServiceGetCustomerMapsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestCatalogService(t, CatalogServiceDeps{
		Customers: &stubCustomerRepo{
			findFn: func(context.Context, string) (domain.Customer, error) {
				return domain.Customer{}, repositories.NewCatalogError(repositories.CatalogErrorCustomerNotFound, "", nil)
			},
		},
	})

	if _, err := svc.GetCustomer(ctx, "cus_ghost"); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected customer not found got %v", err)
	}
}
