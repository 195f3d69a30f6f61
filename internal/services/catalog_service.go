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
	productIDPrefix  = "prd_"
	customerIDPrefix = "cus_"
)

var (
	// ErrCatalogInvalidInput signals the caller provided invalid catalog arguments.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrProductNotFound indicates the product could not be located.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrCustomerNotFound indicates the customer could not be located.
	ErrCustomerNotFound = errors.New("catalog: customer not found")
	// ErrDuplicateSKU indicates another product already carries the SKU.
	ErrDuplicateSKU = errors.New("catalog: duplicate sku")
	// ErrCatalogInUse indicates the record is referenced by existing orders.
	ErrCatalogInUse = errors.New("catalog: record in use")
	// ErrCatalogConflict indicates a concurrent modification collided with this one.
	ErrCatalogConflict = errors.New("catalog: conflict")
)

// CatalogServiceDeps bundles the collaborators for the catalog service.
type CatalogServiceDeps struct {
	Products  repositories.ProductRepository
	Customers repositories.CustomerRepository

	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products  repositories.ProductRepository
	customers repositories.CustomerRepository

	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a CatalogService.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Customers == nil {
		return nil, errors.New("catalog service: customer repository is required")
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

	return &catalogService{
		products:  deps.Products,
		customers: deps.Customers,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd ProductCommand) (Product, error) {
	cmd = normalizeProductCommand(cmd)
	if err := validateProductCommand(cmd); err != nil {
		return Product{}, err
	}

	now := s.clock()
	product := domain.Product{
		ID:                productIDPrefix + s.newID(),
		SKU:               cmd.SKU,
		Name:              cmd.Name,
		Description:       cmd.Description,
		UnitPrice:         cmd.UnitPrice,
		InventoryQuantity: cmd.InventoryQuantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.products.Insert(ctx, product); err != nil {
		return Product{}, s.mapCatalogError(err)
	}

	s.logger(ctx, "catalog.product.created", map[string]any{
		"product": product.ID,
		"sku":     product.SKU,
	})
	return product, nil
}

// UpdateProduct applies a partial update. Omitted fields keep their stored
// value, so a caller can adjust the inventory count without restating the SKU.
func (s *catalogService) UpdateProduct(ctx context.Context, productID string, cmd UpdateProductCommand) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapCatalogError(err)
	}

	if cmd.SKU != nil {
		product.SKU = strings.TrimSpace(*cmd.SKU)
	}
	if cmd.Name != nil {
		product.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Description != nil {
		product.Description = strings.TrimSpace(*cmd.Description)
	}
	if cmd.UnitPrice != nil {
		product.UnitPrice = *cmd.UnitPrice
	}
	if cmd.InventoryQuantity != nil {
		product.InventoryQuantity = *cmd.InventoryQuantity
	}
	if err := validateProductCommand(ProductCommand{
		SKU:               product.SKU,
		Name:              product.Name,
		Description:       product.Description,
		UnitPrice:         product.UnitPrice,
		InventoryQuantity: product.InventoryQuantity,
	}); err != nil {
		return Product{}, err
	}
	product.UpdatedAt = s.clock()

	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, s.mapCatalogError(err)
	}

	s.logger(ctx, "catalog.product.updated", map[string]any{
		"product": product.ID,
		"sku":     product.SKU,
	})
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if err := s.products.Delete(ctx, productID); err != nil {
		return s.mapCatalogError(err)
	}
	s.logger(ctx, "catalog.product.deleted", map[string]any{"product": productID})
	return nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapCatalogError(err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListQuery) (domain.CursorPage[Product], error) {
	if filter.LowStockBelow != nil && *filter.LowStockBelow < 0 {
		return domain.CursorPage[Product]{}, fmt.Errorf("%w: low stock threshold must not be negative", ErrCatalogInvalidInput)
	}
	page, err := s.products.List(ctx, repositories.ProductListFilter{
		Search:        strings.TrimSpace(filter.Search),
		LowStockBelow: filter.LowStockBelow,
		PageSize:      filter.Pagination.PageSize,
		PageToken:     strings.TrimSpace(filter.Pagination.PageToken),
	})
	if err != nil {
		return domain.CursorPage[Product]{}, s.mapCatalogError(err)
	}
	return page, nil
}

func (s *catalogService) CreateCustomer(ctx context.Context, cmd CustomerCommand) (Customer, error) {
	cmd = normalizeCustomerCommand(cmd)
	if err := validateCustomerCommand(cmd); err != nil {
		return Customer{}, err
	}

	now := s.clock()
	customer := domain.Customer{
		ID:             customerIDPrefix + s.newID(),
		CompanyName:    cmd.CompanyName,
		ContactPerson:  cmd.ContactPerson,
		Email:          cmd.Email,
		Phone:          cmd.Phone,
		BillingAddress: cmd.BillingAddress,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.customers.Insert(ctx, customer); err != nil {
		return Customer{}, s.mapCatalogError(err)
	}

	s.logger(ctx, "catalog.customer.created", map[string]any{
		"customer": customer.ID,
		"company":  customer.CompanyName,
	})
	return customer, nil
}

// UpdateCustomer applies a partial update. Omitted fields keep their stored
// value.
func (s *catalogService) UpdateCustomer(ctx context.Context, customerID string, cmd UpdateCustomerCommand) (Customer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return Customer{}, fmt.Errorf("%w: customer id is required", ErrCatalogInvalidInput)
	}

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return Customer{}, s.mapCatalogError(err)
	}

	if cmd.CompanyName != nil {
		customer.CompanyName = strings.TrimSpace(*cmd.CompanyName)
	}
	if cmd.ContactPerson != nil {
		customer.ContactPerson = strings.TrimSpace(*cmd.ContactPerson)
	}
	if cmd.Email != nil {
		customer.Email = strings.TrimSpace(*cmd.Email)
	}
	if cmd.Phone != nil {
		customer.Phone = strings.TrimSpace(*cmd.Phone)
	}
	if cmd.BillingAddress != nil {
		customer.BillingAddress = strings.TrimSpace(*cmd.BillingAddress)
	}
	if err := validateCustomerCommand(CustomerCommand{
		CompanyName:    customer.CompanyName,
		ContactPerson:  customer.ContactPerson,
		Email:          customer.Email,
		Phone:          customer.Phone,
		BillingAddress: customer.BillingAddress,
	}); err != nil {
		return Customer{}, err
	}
	customer.UpdatedAt = s.clock()

	if err := s.customers.Update(ctx, customer); err != nil {
		return Customer{}, s.mapCatalogError(err)
	}

	s.logger(ctx, "catalog.customer.updated", map[string]any{
		"customer": customer.ID,
		"company":  customer.CompanyName,
	})
	return customer, nil
}

func (s *catalogService) DeleteCustomer(ctx context.Context, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return fmt.Errorf("%w: customer id is required", ErrCatalogInvalidInput)
	}
	if err := s.customers.Delete(ctx, customerID); err != nil {
		return s.mapCatalogError(err)
	}
	s.logger(ctx, "catalog.customer.deleted", map[string]any{"customer": customerID})
	return nil
}

func (s *catalogService) GetCustomer(ctx context.Context, customerID string) (Customer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return Customer{}, fmt.Errorf("%w: customer id is required", ErrCatalogInvalidInput)
	}
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return Customer{}, s.mapCatalogError(err)
	}
	return customer, nil
}

func (s *catalogService) ListCustomers(ctx context.Context, filter CustomerListQuery) (domain.CursorPage[Customer], error) {
	page, err := s.customers.List(ctx, repositories.CustomerListFilter{
		Search:    strings.TrimSpace(filter.Search),
		PageSize:  filter.Pagination.PageSize,
		PageToken: strings.TrimSpace(filter.Pagination.PageToken),
	})
	if err != nil {
		return domain.CursorPage[Customer]{}, s.mapCatalogError(err)
	}
	return page, nil
}

func normalizeProductCommand(cmd ProductCommand) ProductCommand {
	cmd.SKU = strings.TrimSpace(cmd.SKU)
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Description = strings.TrimSpace(cmd.Description)
	return cmd
}

func validateProductCommand(cmd ProductCommand) error {
	if cmd.SKU == "" {
		return fmt.Errorf("%w: sku is required", ErrCatalogInvalidInput)
	}
	if cmd.Name == "" {
		return fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if cmd.UnitPrice.IsNegative() || cmd.UnitPrice.Exponent() < -2 {
		return fmt.Errorf("%w: unit price must not be negative and uses at most two decimal places", ErrCatalogInvalidInput)
	}
	if cmd.InventoryQuantity < 0 {
		return fmt.Errorf("%w: inventory quantity must not be negative", ErrCatalogInvalidInput)
	}
	return nil
}

func normalizeCustomerCommand(cmd CustomerCommand) CustomerCommand {
	cmd.CompanyName = strings.TrimSpace(cmd.CompanyName)
	cmd.ContactPerson = strings.TrimSpace(cmd.ContactPerson)
	cmd.Email = strings.TrimSpace(cmd.Email)
	cmd.Phone = strings.TrimSpace(cmd.Phone)
	cmd.BillingAddress = strings.TrimSpace(cmd.BillingAddress)
	return cmd
}

func validateCustomerCommand(cmd CustomerCommand) error {
	if cmd.CompanyName == "" {
		return fmt.Errorf("%w: company name is required", ErrCatalogInvalidInput)
	}
	if cmd.Email != "" && !strings.Contains(cmd.Email, "@") {
		return fmt.Errorf("%w: email is malformed", ErrCatalogInvalidInput)
	}
	return nil
}

func (s *catalogService) mapCatalogError(err error) error {
	if err == nil {
		return nil
	}

	var catalogErr *repositories.CatalogError
	if errors.As(err, &catalogErr) {
		switch catalogErr.Code {
		case repositories.CatalogErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrProductNotFound, catalogErr.Message)
		case repositories.CatalogErrorCustomerNotFound:
			return fmt.Errorf("%w: %s", ErrCustomerNotFound, catalogErr.Message)
		case repositories.CatalogErrorDuplicateSKU:
			return fmt.Errorf("%w: %s", ErrDuplicateSKU, catalogErr.Message)
		case repositories.CatalogErrorInUse:
			return fmt.Errorf("%w: %s", ErrCatalogInUse, catalogErr.Message)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("catalog: repository unavailable: %w", err)
		}
	}

	return err
}
