package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrServiceNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrInvalidUptime, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the catalog module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/services", func(r chi.Router) {
		r.Get("/", h.ListServices)
		r.Post("/", h.CreateService)
		r.Get("/{id}", h.GetService)
		r.Patch("/{id}", h.UpdateService)
		r.Put("/{id}", h.UpdateService)
		r.Delete("/{id}", h.DeleteService)
	})
}

// CreateServiceRequest represents the request body for creating a service.
type CreateServiceRequest struct {
	Name           string `json:"name" validate:"required,min=1,max=255"`
	Description    string `json:"description" validate:"required"`
	Status         string `json:"status" validate:"omitempty,oneof=operational degraded partial major"`
	OrganizationID string `json:"organizationId" validate:"max=255"`
	TenantID       string `json:"tenantId" validate:"max=255"`
}

// ToInput converts the request to service input.
func (r *CreateServiceRequest) ToInput() CreateServiceInput {
	return CreateServiceInput{
		Name:           r.Name,
		Description:    r.Description,
		Status:         domain.ServiceStatus(r.Status),
		OrganizationID: r.OrganizationID,
		TenantID:       r.TenantID,
	}
}

// UpdateServiceRequest represents a partial update of a service.
type UpdateServiceRequest struct {
	Name           *string  `json:"name" validate:"omitempty,max=255"`
	Description    *string  `json:"description"`
	Status         *string  `json:"status" validate:"omitempty,oneof=operational degraded partial major"`
	Uptime         *float64 `json:"uptime" validate:"omitempty,gte=0,lte=100"`
	OrganizationID *string  `json:"organizationId" validate:"omitempty,max=255"`
	TenantID       *string  `json:"tenantId" validate:"omitempty,max=255"`
}

// ToInput converts the request to service input.
func (r *UpdateServiceRequest) ToInput() UpdateServiceInput {
	input := UpdateServiceInput{
		Name:           r.Name,
		Description:    r.Description,
		Uptime:         r.Uptime,
		OrganizationID: r.OrganizationID,
		TenantID:       r.TenantID,
	}
	if r.Status != nil {
		status := domain.ServiceStatus(*r.Status)
		input.Status = &status
	}
	return input
}

// ListServices handles GET /services request.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ServiceFilter{
		Scope: domain.Scope{
			OrganizationID: q.Get("organizationId"),
			TenantID:       q.Get("tenantId"),
		},
	}

	if s := q.Get("status"); s != "" {
		status := domain.ServiceStatus(s)
		if !status.IsValid() {
			httputil.Error(w, http.StatusBadRequest, ErrInvalidStatus.Error())
			return
		}
		filter.Status = &status
	}

	services, err := h.service.ListServices(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, services)
}

// GetService handles GET /services/{id} request.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	service, err := h.service.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// CreateService handles POST /services request.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service, err := h.service.CreateService(r.Context(), req.ToInput())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, service)
}

// UpdateService handles PATCH /services/{id} request.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var req UpdateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service, err := h.service.UpdateService(r.Context(), chi.URLParam(r, "id"), req.ToInput())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// DeleteService handles DELETE /services/{id} request.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteService(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
