package catalog

import (
	"context"

	"github.com/bissquit/statusrelay/internal/domain"
)

// Repository defines the interface for catalog data operations.
type Repository interface {
	CreateService(ctx context.Context, service *domain.Service) error
	GetServiceByID(ctx context.Context, id string) (*domain.Service, error)
	ListServices(ctx context.Context, filter ServiceFilter) ([]domain.Service, error)
	UpdateService(ctx context.Context, service *domain.Service) error
	DeleteService(ctx context.Context, id string) error
}

// ServiceFilter represents filter criteria for listing services.
// Scope follows the usual precedence: organization over tenant.
type ServiceFilter struct {
	Scope  domain.Scope
	Status *domain.ServiceStatus
}

// Matches reports whether service passes the filter.
func (f ServiceFilter) Matches(service *domain.Service) bool {
	switch {
	case f.Scope.OrganizationID != "":
		if service.OrganizationID != f.Scope.OrganizationID {
			return false
		}
	case f.Scope.TenantID != "":
		if service.TenantID != f.Scope.TenantID {
			return false
		}
	}
	if f.Status != nil && service.Status != *f.Status {
		return false
	}
	return true
}
