package incidents

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrMessageRequired, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the incidents module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the incidents module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/incidents", func(r chi.Router) {
		r.Get("/", h.ListIncidents)
		r.Post("/", h.CreateIncident)
		r.Get("/{id}", h.GetIncident)
		r.Patch("/{id}", h.UpdateIncident)
		r.Put("/{id}", h.UpdateIncident)
		r.Delete("/{id}", h.DeleteIncident)
		r.Post("/{id}/updates", h.AddUpdate)
	})
}

// CreateIncidentRequest represents the request body for creating an incident.
type CreateIncidentRequest struct {
	Title            string   `json:"title" validate:"required,min=1,max=500"`
	Description      string   `json:"description" validate:"required"`
	Impact           string   `json:"impact" validate:"max=50"`
	AffectedServices []string `json:"affectedServices"`
	OrganizationID   string   `json:"organizationId" validate:"max=255"`
	TenantID         string   `json:"tenantId" validate:"max=255"`
}

// ToInput converts the request to service input.
func (r *CreateIncidentRequest) ToInput() CreateIncidentInput {
	return CreateIncidentInput{
		Title:            r.Title,
		Description:      r.Description,
		Impact:           domain.IncidentImpact(r.Impact),
		AffectedServices: r.AffectedServices,
		OrganizationID:   r.OrganizationID,
		TenantID:         r.TenantID,
	}
}

// UpdateIncidentRequest represents a partial update of an incident.
type UpdateIncidentRequest struct {
	Title            *string   `json:"title" validate:"omitempty,max=500"`
	Description      *string   `json:"description"`
	Status           *string   `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
	Message          *string   `json:"message"`
	Impact           *string   `json:"impact" validate:"omitempty,max=50"`
	AffectedServices *[]string `json:"affectedServices"`
	OrganizationID   *string   `json:"organizationId" validate:"omitempty,max=255"`
	TenantID         *string   `json:"tenantId" validate:"omitempty,max=255"`
}

// ToInput converts the request to service input.
func (r *UpdateIncidentRequest) ToInput() UpdateIncidentInput {
	input := UpdateIncidentInput{
		Title:            r.Title,
		Description:      r.Description,
		Message:          r.Message,
		AffectedServices: r.AffectedServices,
		OrganizationID:   r.OrganizationID,
		TenantID:         r.TenantID,
	}
	if r.Status != nil {
		status := domain.IncidentStatus(*r.Status)
		input.Status = &status
	}
	if r.Impact != nil {
		impact := domain.IncidentImpact(*r.Impact)
		input.Impact = &impact
	}
	return input
}

// AddUpdateRequest represents the request body for appending an update.
type AddUpdateRequest struct {
	Status  string `json:"status" validate:"required,oneof=investigating identified monitoring resolved"`
	Message string `json:"message" validate:"required"`
}

// ListIncidents handles GET /incidents request.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := IncidentFilter{
		Scope: domain.Scope{
			OrganizationID: q.Get("organizationId"),
			TenantID:       q.Get("tenantId"),
		},
		ActiveOnly: q.Get("active") == "true",
	}

	if s := q.Get("status"); s != "" {
		status := domain.IncidentStatus(s)
		if !status.IsValid() {
			httputil.Error(w, http.StatusBadRequest, ErrInvalidStatus.Error())
			return
		}
		filter.Status = &status
	}

	list, err := h.service.ListIncidents(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, list)
}

// GetIncident handles GET /incidents/{id} request.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// CreateIncident handles POST /incidents request.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.CreateIncident(r.Context(), req.ToInput())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// UpdateIncident handles PATCH /incidents/{id} request.
func (h *Handler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	var req UpdateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.UpdateIncident(r.Context(), chi.URLParam(r, "id"), req.ToInput())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// AddUpdate handles POST /incidents/{id}/updates request.
func (h *Handler) AddUpdate(w http.ResponseWriter, r *http.Request) {
	var req AddUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	update, err := h.service.AddUpdate(r.Context(), chi.URLParam(r, "id"), AddUpdateInput{
		Status:  domain.IncidentStatus(req.Status),
		Message: req.Message,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, update)
}

// DeleteIncident handles DELETE /incidents/{id} request.
func (h *Handler) DeleteIncident(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteIncident(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
