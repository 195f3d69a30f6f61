package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/platform/httpx"
	"github.com/orderdesk/api/internal/services"
)

const (
	defaultProductPageSize = 20
	maxProductPageSize     = 100
)

type productRequest struct {
	SKU               string      `json:"sku"`
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	UnitPrice         json.Number `json:"unit_price"`
	InventoryQuantity int         `json:"inventory_quantity"`
}

// updateProductRequest carries a partial update; absent fields stay untouched.
type updateProductRequest struct {
	SKU               *string      `json:"sku"`
	Name              *string      `json:"name"`
	Description       *string      `json:"description"`
	UnitPrice         *json.Number `json:"unit_price"`
	InventoryQuantity *int         `json:"inventory_quantity"`
}

type updateInventoryRequest struct {
	InventoryQuantity *int `json:"inventory_quantity"`
}

// ProductHandlers exposes the product catalog endpoints.
type ProductHandlers struct {
	catalog services.CatalogService
	limits  PageLimits
}

// NewProductHandlers constructs a new ProductHandlers instance.
func NewProductHandlers(catalog services.CatalogService, limits PageLimits) *ProductHandlers {
	return &ProductHandlers{catalog: catalog, limits: limits}
}

// Routes registers the /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createProduct)
	r.Get("/", h.listProducts)
	r.Get("/{productID}", h.getProduct)
	r.Put("/{productID}", h.updateProduct)
	r.Put("/{productID}/inventory", h.updateInventory)
	r.Delete("/{productID}", h.deleteProduct)
}

func (h *ProductHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	cmd, ok := decodeProductCommand(ctx, w, r)
	if !ok {
		return
	}
	product, err := h.catalog.CreateProduct(ctx, cmd)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, productResponse{Product: buildProductPayload(product)})
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	defaultSize, maxSize := h.limits.resolve(defaultProductPageSize, maxProductPageSize)
	pagination, httpErr := parsePagination(r, defaultSize, maxSize)
	if httpErr != nil {
		httpx.WriteError(ctx, w, *httpErr)
		return
	}

	query := r.URL.Query()
	filter := services.ProductListQuery{
		Search:     strings.TrimSpace(query.Get("search")),
		Pagination: pagination,
	}
	if raw := strings.TrimSpace(query.Get("low_stock_below")); raw != "" {
		threshold, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "low_stock_below must be an integer", http.StatusBadRequest))
			return
		}
		filter.LowStockBelow = &threshold
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID, ok := productIDParam(ctx, w, r)
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *ProductHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID, ok := productIDParam(ctx, w, r)
	if !ok {
		return
	}

	var req updateProductRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	cmd := services.UpdateProductCommand{
		SKU:               req.SKU,
		Name:              req.Name,
		Description:       req.Description,
		InventoryQuantity: req.InventoryQuantity,
	}
	if req.UnitPrice != nil {
		price, err := parseMoney(*req.UnitPrice)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unit_price must be a decimal number", http.StatusBadRequest))
			return
		}
		cmd.UnitPrice = &price
	}

	product, err := h.catalog.UpdateProduct(ctx, productID, cmd)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

// updateInventory adjusts only the stock count, leaving the rest of the
// product untouched.
func (h *ProductHandlers) updateInventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID, ok := productIDParam(ctx, w, r)
	if !ok {
		return
	}
	var req updateInventoryRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	if req.InventoryQuantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "inventory_quantity is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, productID, services.UpdateProductCommand{
		InventoryQuantity: req.InventoryQuantity,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *ProductHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID, ok := productIDParam(ctx, w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(ctx, productID); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func productIDParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return "", false
	}
	return productID, true
}

func decodeProductCommand(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.ProductCommand, bool) {
	var req productRequest
	if !decodeRequest(ctx, w, r, &req) {
		return services.ProductCommand{}, false
	}

	price, err := parseMoney(req.UnitPrice)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unit_price must be a decimal number", http.StatusBadRequest))
		return services.ProductCommand{}, false
	}
	return services.ProductCommand{
		SKU:               strings.TrimSpace(req.SKU),
		Name:              strings.TrimSpace(req.Name),
		Description:       strings.TrimSpace(req.Description),
		UnitPrice:         price,
		InventoryQuantity: req.InventoryQuantity,
	}, true
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCustomerNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("customer_not_found", "customer not found", http.StatusNotFound))
	case errors.Is(err, services.ErrDuplicateSKU):
		httpx.WriteError(ctx, w, httpx.NewError("duplicate_sku", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCatalogInUse):
		httpx.WriteError(ctx, w, httpx.NewError("record_in_use", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_conflict", "record was modified concurrently; retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}

type productListResponse struct {
	Items         []productPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productPayload struct {
	ID                string      `json:"id"`
	SKU               string      `json:"sku"`
	Name              string      `json:"name"`
	Description       string      `json:"description,omitempty"`
	UnitPrice         json.Number `json:"unit_price"`
	InventoryQuantity int         `json:"inventory_quantity"`
	CreatedAt         string      `json:"created_at"`
	UpdatedAt         string      `json:"updated_at,omitempty"`
}

func buildProductPayload(product services.Product) productPayload {
	return productPayload{
		ID:                product.ID,
		SKU:               product.SKU,
		Name:              product.Name,
		Description:       product.Description,
		UnitPrice:         domain.MoneyJSON(product.UnitPrice),
		InventoryQuantity: product.InventoryQuantity,
		CreatedAt:         formatTime(product.CreatedAt),
		UpdatedAt:         formatTime(product.UpdatedAt),
	}
}
