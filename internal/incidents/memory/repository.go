// Package memory provides an in-memory implementation of the incident repository.
package memory

import (
	"context"
	"sync"

	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/incidents"
)

// Repository keeps incidents in insertion order. Stored incidents are never
// shared with callers.
type Repository struct {
	mu        sync.RWMutex
	incidents []*domain.Incident
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{}
}

// CreateIncident stores a new incident.
func (r *Repository) CreateIncident(_ context.Context, incident *domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents = append(r.incidents, incident.Clone())
	return nil
}

// GetIncidentByID returns a copy of the incident with id.
func (r *Repository) GetIncidentByID(_ context.Context, id string) (*domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return r.incidents[i].Clone(), nil
	}
	return nil, incidents.ErrIncidentNotFound
}

// ListIncidents returns copies of the incidents matching filter.
func (r *Repository) ListIncidents(_ context.Context, filter incidents.IncidentFilter) ([]domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Incident, 0, len(r.incidents))
	for _, inc := range r.incidents {
		if filter.Matches(inc) {
			out = append(out, *inc.Clone())
		}
	}
	return out, nil
}

// UpdateIncident replaces the stored incident. The timeline is append-only:
// stored entries are kept and added, if any, goes last.
func (r *Repository) UpdateIncident(_ context.Context, incident *domain.Incident, added *domain.IncidentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(incident.ID)
	if i < 0 {
		return incidents.ErrIncidentNotFound
	}

	stored := incident.Clone()
	stored.Updates = append(make([]domain.IncidentUpdate, 0, len(r.incidents[i].Updates)+1), r.incidents[i].Updates...)
	if added != nil {
		stored.Updates = append(stored.Updates, *added)
	}
	r.incidents[i] = stored
	return nil
}

// DeleteIncident removes the incident with id.
func (r *Repository) DeleteIncident(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return incidents.ErrIncidentNotFound
	}
	r.incidents = append(r.incidents[:i], r.incidents[i+1:]...)
	return nil
}

func (r *Repository) indexOf(id string) int {
	for i, inc := range r.incidents {
		if inc.ID == id {
			return i
		}
	}
	return -1
}
