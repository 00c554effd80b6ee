// Package incidents provides HTTP handlers and business logic for incidents
// and their append-only update timeline.
package incidents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/feed"
)

// Service implements incident business logic. Every successful mutation is
// followed by exactly one incident-update event scoped to the incident.
type Service struct {
	repo      Repository
	publisher feed.Publisher
	now       func() time.Time
}

// NewService creates a new incident service.
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

// CreateIncidentInput holds data for creating an incident.
type CreateIncidentInput struct {
	Title            string
	Description      string
	Impact           domain.IncidentImpact
	AffectedServices []string
	OrganizationID   string
	TenantID         string
}

// UpdateIncidentInput holds a partial update. Nil fields are left unchanged.
// A Status different from the current one appends a timeline entry carrying
// Message, or a generated message when Message is empty.
type UpdateIncidentInput struct {
	Title            *string
	Description      *string
	Status           *domain.IncidentStatus
	Message          *string
	Impact           *domain.IncidentImpact
	AffectedServices *[]string
	OrganizationID   *string
	TenantID         *string
}

// AddUpdateInput holds data for a new timeline entry.
type AddUpdateInput struct {
	Status  domain.IncidentStatus
	Message string
}

// CreateIncident creates an incident in the investigating state with an
// empty timeline.
func (s *Service) CreateIncident(ctx context.Context, input CreateIncidentInput) (*domain.Incident, error) {
	impact := input.Impact
	if impact == "" {
		impact = domain.IncidentImpactMinor
	}

	affected := input.AffectedServices
	if affected == nil {
		affected = make([]string, 0)
	}

	now := s.now()
	incident := &domain.Incident{
		ID:               uuid.NewString(),
		Title:            input.Title,
		Description:      input.Description,
		Status:           domain.IncidentStatusInvestigating,
		Impact:           impact,
		AffectedServices: affected,
		OrganizationID:   input.OrganizationID,
		TenantID:         input.TenantID,
		CreatedAt:        now,
		UpdatedAt:        now,
		Updates:          make([]domain.IncidentUpdate, 0),
	}

	if err := s.repo.CreateIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	s.publish(ctx, incident.Clone(), incident.Scope())
	return incident, nil
}

// GetIncident returns an incident by id.
func (s *Service) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return s.repo.GetIncidentByID(ctx, id)
}

// ListIncidents returns incidents matching filter.
func (s *Service) ListIncidents(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	return s.repo.ListIncidents(ctx, filter)
}

// UpdateIncident applies a partial update.
func (s *Service) UpdateIncident(ctx context.Context, id string, input UpdateIncidentInput) (*domain.Incident, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	incident, err := s.repo.GetIncidentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil && *input.Title != "" {
		incident.Title = *input.Title
	}
	if input.Description != nil && *input.Description != "" {
		incident.Description = *input.Description
	}
	if input.Impact != nil && *input.Impact != "" {
		incident.Impact = *input.Impact
	}
	if input.AffectedServices != nil {
		incident.AffectedServices = append(make([]string, 0, len(*input.AffectedServices)), *input.AffectedServices...)
	}
	if input.OrganizationID != nil && *input.OrganizationID != "" {
		incident.OrganizationID = *input.OrganizationID
	}
	if input.TenantID != nil && *input.TenantID != "" {
		incident.TenantID = *input.TenantID
	}

	now := s.now()
	incident.UpdatedAt = now

	var added *domain.IncidentUpdate
	if input.Status != nil && *input.Status != incident.Status {
		message := fmt.Sprintf("Status changed to %s", *input.Status)
		if input.Message != nil && *input.Message != "" {
			message = *input.Message
		}
		added = &domain.IncidentUpdate{
			ID:        uuid.NewString(),
			Status:    *input.Status,
			Message:   message,
			CreatedAt: now,
		}
		incident.AppendUpdate(*added)
	}

	if err := s.repo.UpdateIncident(ctx, incident, added); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	s.publish(ctx, incident.Clone(), incident.Scope())
	return incident, nil
}

// AddUpdate appends a timeline entry and makes the incident status mirror it.
func (s *Service) AddUpdate(ctx context.Context, id string, input AddUpdateInput) (*domain.IncidentUpdate, error) {
	if !input.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if input.Message == "" {
		return nil, ErrMessageRequired
	}

	incident, err := s.repo.GetIncidentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	update := domain.IncidentUpdate{
		ID:        uuid.NewString(),
		Status:    input.Status,
		Message:   input.Message,
		CreatedAt: s.now(),
	}
	incident.AppendUpdate(update)

	if err := s.repo.UpdateIncident(ctx, incident, &update); err != nil {
		return nil, fmt.Errorf("add incident update: %w", err)
	}

	s.publish(ctx, incident.Clone(), incident.Scope())
	return &update, nil
}

// DeleteIncident removes an incident and broadcasts its last known state
// flagged as deleted.
func (s *Service) DeleteIncident(ctx context.Context, id string) error {
	incident, err := s.repo.GetIncidentByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteIncident(ctx, id); err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}

	s.publish(ctx, domain.DeletedIncident{Incident: *incident, Deleted: true}, incident.Scope())
	return nil
}

func (s *Service) publish(ctx context.Context, payload any, scope domain.Scope) {
	s.publisher.Publish(ctx, feed.Event{
		Kind:    feed.KindIncidentUpdate,
		Payload: payload,
		Scope:   scope,
	})
}
