package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orderdesk/api/internal/platform/httpx"
	"github.com/orderdesk/api/internal/services"
)

const (
	defaultCustomerPageSize = 20
	maxCustomerPageSize     = 100
)

type customerRequest struct {
	CompanyName    string `json:"company_name"`
	ContactPerson  string `json:"contact_person"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	BillingAddress string `json:"billing_address"`
}

// updateCustomerRequest carries a partial update; absent fields stay untouched.
type updateCustomerRequest struct {
	CompanyName    *string `json:"company_name"`
	ContactPerson  *string `json:"contact_person"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	BillingAddress *string `json:"billing_address"`
}

// CustomerHandlers exposes the customer endpoints.
type CustomerHandlers struct {
	catalog services.CatalogService
	limits  PageLimits
}

// NewCustomerHandlers constructs a new CustomerHandlers instance.
func NewCustomerHandlers(catalog services.CatalogService, limits PageLimits) *CustomerHandlers {
	return &CustomerHandlers{catalog: catalog, limits: limits}
}

// Routes registers the /customers endpoints.
func (h *CustomerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createCustomer)
	r.Get("/", h.listCustomers)
	r.Get("/{customerID}", h.getCustomer)
	r.Put("/{customerID}", h.updateCustomer)
	r.Delete("/{customerID}", h.deleteCustomer)
}

func (h *CustomerHandlers) createCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req customerRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	customer, err := h.catalog.CreateCustomer(ctx, buildCustomerCommand(req))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, customerResponse{Customer: buildCustomerPayload(customer)})
}

func (h *CustomerHandlers) listCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	defaultSize, maxSize := h.limits.resolve(defaultCustomerPageSize, maxCustomerPageSize)
	pagination, httpErr := parsePagination(r, defaultSize, maxSize)
	if httpErr != nil {
		httpx.WriteError(ctx, w, *httpErr)
		return
	}

	page, err := h.catalog.ListCustomers(ctx, services.CustomerListQuery{
		Search:     strings.TrimSpace(r.URL.Query().Get("search")),
		Pagination: pagination,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]customerPayload, 0, len(page.Items))
	for _, customer := range page.Items {
		items = append(items, buildCustomerPayload(customer))
	}
	writeJSONResponse(w, http.StatusOK, customerListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *CustomerHandlers) getCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	customerID, ok := customerIDParam(ctx, w, r)
	if !ok {
		return
	}
	customer, err := h.catalog.GetCustomer(ctx, customerID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, customerResponse{Customer: buildCustomerPayload(customer)})
}

func (h *CustomerHandlers) updateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	customerID, ok := customerIDParam(ctx, w, r)
	if !ok {
		return
	}
	var req updateCustomerRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	customer, err := h.catalog.UpdateCustomer(ctx, customerID, services.UpdateCustomerCommand{
		CompanyName:    req.CompanyName,
		ContactPerson:  req.ContactPerson,
		Email:          req.Email,
		Phone:          req.Phone,
		BillingAddress: req.BillingAddress,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, customerResponse{Customer: buildCustomerPayload(customer)})
}

func (h *CustomerHandlers) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	customerID, ok := customerIDParam(ctx, w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteCustomer(ctx, customerID); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func customerIDParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	customerID := strings.TrimSpace(chi.URLParam(r, "customerID"))
	if customerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "customer id is required", http.StatusBadRequest))
		return "", false
	}
	return customerID, true
}

func buildCustomerCommand(req customerRequest) services.CustomerCommand {
	return services.CustomerCommand{
		CompanyName:    strings.TrimSpace(req.CompanyName),
		ContactPerson:  strings.TrimSpace(req.ContactPerson),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		BillingAddress: strings.TrimSpace(req.BillingAddress),
	}
}

type customerListResponse struct {
	Items         []customerPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type customerResponse struct {
	Customer customerPayload `json:"customer"`
}

type customerPayload struct {
	ID             string `json:"id"`
	CompanyName    string `json:"company_name"`
	ContactPerson  string `json:"contact_person,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	BillingAddress string `json:"billing_address,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

func buildCustomerPayload(customer services.Customer) customerPayload {
	return customerPayload{
		ID:             customer.ID,
		CompanyName:    customer.CompanyName,
		ContactPerson:  customer.ContactPerson,
		Email:          customer.Email,
		Phone:          customer.Phone,
		BillingAddress: customer.BillingAddress,
		CreatedAt:      formatTime(customer.CreatedAt),
		UpdatedAt:      formatTime(customer.UpdatedAt),
	}
}
