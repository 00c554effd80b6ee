// Package catalog provides HTTP handlers and business logic for managing monitored services.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/feed"
)

// DefaultUptime is the uptime of a newly created service.
const DefaultUptime = 100.0

// Service implements catalog business logic. Every successful mutation is
// followed by exactly one service-update event scoped to the service itself.
type Service struct {
	repo      Repository
	publisher feed.Publisher
	now       func() time.Time
}

// NewService creates a new catalog service.
func NewService(repo Repository, publisher feed.Publisher) *Service {
	if publisher == nil {
		publisher = feed.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateServiceInput holds data for creating a service.
type CreateServiceInput struct {
	Name           string
	Description    string
	Status         domain.ServiceStatus
	OrganizationID string
	TenantID       string
}

// UpdateServiceInput holds a partial update. Nil fields are left unchanged.
type UpdateServiceInput struct {
	Name           *string
	Description    *string
	Status         *domain.ServiceStatus
	Uptime         *float64
	OrganizationID *string
	TenantID       *string
}

// CreateService creates a service with default status and uptime.
func (s *Service) CreateService(ctx context.Context, input CreateServiceInput) (*domain.Service, error) {
	status := input.Status
	if status == "" {
		status = domain.ServiceStatusOperational
	}
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	service := &domain.Service{
		ID:             uuid.NewString(),
		Name:           input.Name,
		Description:    input.Description,
		Status:         status,
		Uptime:         DefaultUptime,
		OrganizationID: input.OrganizationID,
		TenantID:       input.TenantID,
		LastUpdated:    s.now(),
	}

	if err := s.repo.CreateService(ctx, service); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	s.publish(ctx, *service, service.Scope())
	return service, nil
}

// GetService returns a service by id.
func (s *Service) GetService(ctx context.Context, id string) (*domain.Service, error) {
	return s.repo.GetServiceByID(ctx, id)
}

// ListServices returns services matching filter.
func (s *Service) ListServices(ctx context.Context, filter ServiceFilter) ([]domain.Service, error) {
	return s.repo.ListServices(ctx, filter)
}

// UpdateService applies a partial update and refreshes lastUpdated.
func (s *Service) UpdateService(ctx context.Context, id string, input UpdateServiceInput) (*domain.Service, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if input.Uptime != nil && (*input.Uptime < 0 || *input.Uptime > 100) {
		return nil, ErrInvalidUptime
	}

	service, err := s.repo.GetServiceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil && *input.Name != "" {
		service.Name = *input.Name
	}
	if input.Description != nil && *input.Description != "" {
		service.Description = *input.Description
	}
	if input.Status != nil {
		service.Status = *input.Status
	}
	if input.Uptime != nil {
		service.Uptime = *input.Uptime
	}
	if input.OrganizationID != nil && *input.OrganizationID != "" {
		service.OrganizationID = *input.OrganizationID
	}
	if input.TenantID != nil && *input.TenantID != "" {
		service.TenantID = *input.TenantID
	}
	service.LastUpdated = s.now()

	if err := s.repo.UpdateService(ctx, service); err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}

	s.publish(ctx, *service, service.Scope())
	return service, nil
}

// DeleteService removes a service and broadcasts its last known state
// flagged as deleted.
func (s *Service) DeleteService(ctx context.Context, id string) error {
	service, err := s.repo.GetServiceByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteService(ctx, id); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}

	s.publish(ctx, domain.DeletedService{Service: *service, Deleted: true}, service.Scope())
	return nil
}

func (s *Service) publish(ctx context.Context, payload any, scope domain.Scope) {
	s.publisher.Publish(ctx, feed.Event{
		Kind:    feed.KindServiceUpdate,
		Payload: payload,
		Scope:   scope,
	})
}
