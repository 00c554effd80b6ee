package status

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bissquit/statusrelay/internal/catalog"
	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/feed"
	"github.com/bissquit/statusrelay/internal/incidents"
	"github.com/bissquit/statusrelay/internal/pkg/ctxlog"
	"github.com/bissquit/statusrelay/internal/pkg/httputil"
)

// ServiceLister reads services.
type ServiceLister interface {
	ListServices(ctx context.Context, filter catalog.ServiceFilter) ([]domain.Service, error)
}

// IncidentLister reads incidents.
type IncidentLister interface {
	ListIncidents(ctx context.Context, filter incidents.IncidentFilter) ([]domain.Incident, error)
}

// Service computes snapshots over the current stored state. Nothing is cached.
type Service struct {
	services  ServiceLister
	incidents IncidentLister
	now       func() time.Time
}

// NewService creates a new status service.
func NewService(services ServiceLister, incidents IncidentLister) *Service {
	return &Service{
		services:  services,
		incidents: incidents,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns the status snapshot for scope.
func (s *Service) Snapshot(ctx context.Context, scope domain.Scope) (domain.StatusSnapshot, error) {
	services, err := s.services.ListServices(ctx, catalog.ServiceFilter{Scope: scope})
	if err != nil {
		return domain.StatusSnapshot{}, fmt.Errorf("list services: %w", err)
	}

	list, err := s.incidents.ListIncidents(ctx, incidents.IncidentFilter{Scope: scope})
	if err != nil {
		return domain.StatusSnapshot{}, fmt.Errorf("list incidents: %w", err)
	}

	return Compute(services, list, scope, s.now()), nil
}

// Handler serves GET /status.
type Handler struct {
	service *Service
}

// NewHandler creates a new status handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the status route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.GetStatus)
}

// GetStatus handles GET /status request.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := domain.Scope{
		OrganizationID: q.Get("organizationId"),
		TenantID:       q.Get("tenantId"),
	}

	snapshot, err := h.service.Snapshot(r.Context(), scope)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, snapshot)
}

// Publisher recomputes the snapshot for the scope of every service or
// incident change and republishes it as a status-update.
type Publisher struct {
	service *Service
	out     feed.Publisher
}

// NewPublisher creates a publisher that emits to out.
func NewPublisher(service *Service, out feed.Publisher) *Publisher {
	return &Publisher{service: service, out: out}
}

// Handle implements feed.Handler.
func (p *Publisher) Handle(ctx context.Context, event feed.Event) {
	if event.Kind != feed.KindServiceUpdate && event.Kind != feed.KindIncidentUpdate {
		return
	}

	snapshot, err := p.service.Snapshot(ctx, event.Scope)
	if err != nil {
		ctxlog.FromContext(ctx).Error("failed to compute status snapshot",
			"error", err,
			"organization_id", event.Scope.OrganizationID,
			"tenant_id", event.Scope.TenantID,
		)
		return
	}

	p.out.Publish(ctx, feed.Event{
		Kind:    feed.KindStatusUpdate,
		Payload: snapshot,
		Scope:   event.Scope,
	})
}
