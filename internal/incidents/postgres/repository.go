// Package postgres provides PostgreSQL implementation of the incident repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/incidents"
)

const incidentColumns = `
	id, title, description, status, impact, affected_services,
	COALESCE(organization_id, ''), COALESCE(tenant_id, ''), created_at, updated_at
`

// Repository implements the incidents.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateIncident inserts an incident together with its timeline.
func (r *Repository) CreateIncident(ctx context.Context, incident *domain.Incident) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO incidents (id, title, description, status, impact, affected_services,
			                       organization_id, tenant_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)
		`
		_, err := tx.Exec(ctx, query,
			incident.ID,
			incident.Title,
			incident.Description,
			incident.Status,
			incident.Impact,
			incident.AffectedServices,
			incident.OrganizationID,
			incident.TenantID,
			incident.CreatedAt,
			incident.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create incident: %w", err)
		}

		for i := range incident.Updates {
			if err := insertUpdate(ctx, tx, incident.ID, &incident.Updates[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetIncidentByID retrieves an incident and its timeline.
func (r *Repository) GetIncidentByID(ctx context.Context, id string) (*domain.Incident, error) {
	if !isUUID(id) {
		return nil, incidents.ErrIncidentNotFound
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident by id: %w", err)
	}

	updates, err := r.listUpdates(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	incident.Updates = updates[id]
	if incident.Updates == nil {
		incident.Updates = make([]domain.IncidentUpdate, 0)
	}

	return incident, nil
}

// ListIncidents retrieves incidents matching filter in insertion order.
func (r *Repository) ListIncidents(ctx context.Context, filter incidents.IncidentFilter) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE 1=1`
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

	if filter.ActiveOnly {
		query += " AND status <> 'resolved'"
	}

	query += " ORDER BY seq"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Incident, 0)
	ids := make([]string, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		result = append(result, *incident)
		ids = append(ids, incident.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	if len(ids) == 0 {
		return result, nil
	}

	updates, err := r.listUpdates(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Updates = updates[result[i].ID]
		if result[i].Updates == nil {
			result[i].Updates = make([]domain.IncidentUpdate, 0)
		}
	}

	return result, nil
}

// UpdateIncident stores the top-level fields and appends added, if any, in
// one transaction.
func (r *Repository) UpdateIncident(ctx context.Context, incident *domain.Incident, added *domain.IncidentUpdate) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE incidents
			SET title = $2, description = $3, status = $4, impact = $5, affected_services = $6,
			    organization_id = NULLIF($7, ''), tenant_id = NULLIF($8, ''), updated_at = $9
			WHERE id = $1
		`
		result, err := tx.Exec(ctx, query,
			incident.ID,
			incident.Title,
			incident.Description,
			incident.Status,
			incident.Impact,
			incident.AffectedServices,
			incident.OrganizationID,
			incident.TenantID,
			incident.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update incident: %w", err)
		}

		if result.RowsAffected() == 0 {
			return incidents.ErrIncidentNotFound
		}

		if added != nil {
			return insertUpdate(ctx, tx, incident.ID, added)
		}
		return nil
	})
}

// DeleteIncident deletes an incident. Its timeline goes with it.
func (r *Repository) DeleteIncident(ctx context.Context, id string) error {
	if !isUUID(id) {
		return incidents.ErrIncidentNotFound
	}

	result, err := r.db.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}

	if result.RowsAffected() == 0 {
		return incidents.ErrIncidentNotFound
	}
	return nil
}

func (r *Repository) listUpdates(ctx context.Context, incidentIDs []string) (map[string][]domain.IncidentUpdate, error) {
	query := `
		SELECT incident_id, id, status, message, created_at
		FROM incident_updates
		WHERE incident_id = ANY($1::uuid[])
		ORDER BY seq
	`
	rows, err := r.db.Query(ctx, query, incidentIDs)
	if err != nil {
		return nil, fmt.Errorf("list incident updates: %w", err)
	}
	defer rows.Close()

	updates := make(map[string][]domain.IncidentUpdate, len(incidentIDs))
	for rows.Next() {
		var incidentID string
		var u domain.IncidentUpdate
		if err := rows.Scan(&incidentID, &u.ID, &u.Status, &u.Message, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incident update: %w", err)
		}
		u.CreatedAt = u.CreatedAt.UTC()
		updates[incidentID] = append(updates[incidentID], u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incident updates: %w", err)
	}

	return updates, nil
}

func (r *Repository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertUpdate(ctx context.Context, tx pgx.Tx, incidentID string, u *domain.IncidentUpdate) error {
	query := `
		INSERT INTO incident_updates (id, incident_id, status, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, query, u.ID, incidentID, u.Status, u.Message, u.CreatedAt); err != nil {
		return fmt.Errorf("insert incident update: %w", err)
	}
	return nil
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	err := row.Scan(
		&inc.ID,
		&inc.Title,
		&inc.Description,
		&inc.Status,
		&inc.Impact,
		&inc.AffectedServices,
		&inc.OrganizationID,
		&inc.TenantID,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if inc.AffectedServices == nil {
		inc.AffectedServices = make([]string, 0)
	}
	inc.CreatedAt = inc.CreatedAt.UTC()
	inc.UpdatedAt = inc.UpdatedAt.UTC()
	return &inc, nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
