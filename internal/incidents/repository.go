package incidents

import (
	"context"

	"github.com/bissquit/statusrelay/internal/domain"
)

// Repository defines the interface for incident data operations.
type Repository interface {
	CreateIncident(ctx context.Context, incident *domain.Incident) error
	GetIncidentByID(ctx context.Context, id string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error)
	// UpdateIncident stores the top-level fields of incident and, when added is
	// not nil, appends it to the timeline in the same write.
	UpdateIncident(ctx context.Context, incident *domain.Incident, added *domain.IncidentUpdate) error
	DeleteIncident(ctx context.Context, id string) error
}

// IncidentFilter represents filter criteria for listing incidents.
type IncidentFilter struct {
	Scope      domain.Scope
	Status     *domain.IncidentStatus
	ActiveOnly bool
}

// Matches reports whether incident passes the filter.
func (f IncidentFilter) Matches(incident *domain.Incident) bool {
	switch {
	case f.Scope.OrganizationID != "":
		if incident.OrganizationID != f.Scope.OrganizationID {
			return false
		}
	case f.Scope.TenantID != "":
		if incident.TenantID != f.Scope.TenantID {
			return false
		}
	}
	if f.Status != nil && incident.Status != *f.Status {
		return false
	}
	if f.ActiveOnly && !incident.IsActive() {
		return false
	}
	return true
}
