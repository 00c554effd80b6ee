// Package postgres provides PostgreSQL implementation of the catalog repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bissquit/statusrelay/internal/catalog"
	"github.com/bissquit/statusrelay/internal/domain"
)

const serviceColumns = `
	id, name, description, status, uptime,
	COALESCE(organization_id, ''), COALESCE(tenant_id, ''), last_updated
`

// Repository implements the catalog.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateService creates a new service in the database.
func (r *Repository) CreateService(ctx context.Context, service *domain.Service) error {
	query := `
		INSERT INTO services (id, name, description, status, uptime, organization_id, tenant_id, last_updated)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
	`
	_, err := r.db.Exec(ctx, query,
		service.ID,
		service.Name,
		service.Description,
		service.Status,
		service.Uptime,
		service.OrganizationID,
		service.TenantID,
		service.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// GetServiceByID retrieves a service by its ID.
func (r *Repository) GetServiceByID(ctx context.Context, id string) (*domain.Service, error) {
	if !isUUID(id) {
		return nil, catalog.ErrServiceNotFound
	}
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

	service, err := scanService(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service by id: %w", err)
	}
	return service, nil
}

// ListServices retrieves services matching filter in insertion order.
func (r *Repository) ListServices(ctx context.Context, filter catalog.ServiceFilter) ([]domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE 1=1`
	args := make([]interface{}, 0, 2)

	switch {
	case filter.Scope.OrganizationID != "":
		args = append(args, filter.Scope.OrganizationID)
		query += fmt.Sprintf(" AND organization_id = $%d", len(args))
	case filter.Scope.TenantID != "":
		args = append(args, filter.Scope.TenantID)
		query += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY seq"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	for rows.Next() {
		service, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, *service)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}

	return services, nil
}

// UpdateService updates an existing service.
func (r *Repository) UpdateService(ctx context.Context, service *domain.Service) error {
	query := `
		UPDATE services
		SET name = $2, description = $3, status = $4, uptime = $5,
		    organization_id = NULLIF($6, ''), tenant_id = NULLIF($7, ''), last_updated = $8
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		service.ID,
		service.Name,
		service.Description,
		service.Status,
		service.Uptime,
		service.OrganizationID,
		service.TenantID,
		service.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}

	if result.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}

// DeleteService deletes a service by ID.
func (r *Repository) DeleteService(ctx context.Context, id string) error {
	if !isUUID(id) {
		return catalog.ErrServiceNotFound
	}
	result, err := r.db.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}

	if result.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}

func scanService(row pgx.Row) (*domain.Service, error) {
	var s domain.Service
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Description,
		&s.Status,
		&s.Uptime,
		&s.OrganizationID,
		&s.TenantID,
		&s.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	s.LastUpdated = s.LastUpdated.UTC()
	return &s, nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
