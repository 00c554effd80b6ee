// Package memory provides an in-memory implementation of the catalog repository.
package memory

import (
	"context"
	"sync"

	"github.com/bissquit/statusrelay/internal/catalog"
	"github.com/bissquit/statusrelay/internal/domain"
)

// Repository keeps services in insertion order.
type Repository struct {
	mu       sync.RWMutex
	services []domain.Service
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{}
}

// CreateService stores a new service.
func (r *Repository) CreateService(_ context.Context, service *domain.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = append(r.services, *service)
	return nil
}

// GetServiceByID returns a copy of the service with id.
func (r *Repository) GetServiceByID(_ context.Context, id string) (*domain.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		s := r.services[i]
		return &s, nil
	}
	return nil, catalog.ErrServiceNotFound
}

// ListServices returns copies of the services matching filter.
func (r *Repository) ListServices(_ context.Context, filter catalog.ServiceFilter) ([]domain.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Service, 0, len(r.services))
	for i := range r.services {
		if filter.Matches(&r.services[i]) {
			out = append(out, r.services[i])
		}
	}
	return out, nil
}

// UpdateService replaces the stored service with the same id.
func (r *Repository) UpdateService(_ context.Context, service *domain.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(service.ID)
	if i < 0 {
		return catalog.ErrServiceNotFound
	}
	r.services[i] = *service
	return nil
}

// DeleteService removes the service with id.
func (r *Repository) DeleteService(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return catalog.ErrServiceNotFound
	}
	r.services = append(r.services[:i], r.services[i+1:]...)
	return nil
}

func (r *Repository) indexOf(id string) int {
	for i := range r.services {
		if r.services[i].ID == id {
			return i
		}
	}
	return -1
}
