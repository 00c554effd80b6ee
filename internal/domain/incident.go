package domain

import "time"

// IncidentStatus represents the lifecycle stage of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusIdentified    IncidentStatus = "identified"
	IncidentStatusMonitoring    IncidentStatus = "monitoring"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusInvestigating, IncidentStatusIdentified,
		IncidentStatusMonitoring, IncidentStatusResolved:
		return true
	}
	return false
}

// IncidentImpact is the customer-facing impact level.
type IncidentImpact string

// Incident impacts.
const (
	IncidentImpactMinor    IncidentImpact = "minor"
	IncidentImpactMajor    IncidentImpact = "major"
	IncidentImpactCritical IncidentImpact = "critical"
)

// Incident represents an incident affecting one or more services.
type Incident struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Status           IncidentStatus   `json:"status"`
	Impact           IncidentImpact   `json:"impact"`
	AffectedServices []string         `json:"affectedServices"`
	OrganizationID   string           `json:"organizationId,omitempty"`
	TenantID         string           `json:"tenantId,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	Updates          []IncidentUpdate `json:"updates"`
}

// IncidentUpdate is a single entry of an incident's append-only timeline.
type IncidentUpdate struct {
	ID        string         `json:"id"`
	Status    IncidentStatus `json:"status"`
	Message   string         `json:"message"`
	CreatedAt time.Time      `json:"createdAt"`
}

// IsActive reports whether the incident is not yet resolved.
func (i *Incident) IsActive() bool {
	return i.Status != IncidentStatusResolved
}

// Scope returns the organization/tenant scope the incident belongs to.
func (i *Incident) Scope() Scope {
	return Scope{OrganizationID: i.OrganizationID, TenantID: i.TenantID}
}

// AppendUpdate adds an update to the timeline and makes the incident status
// mirror it.
func (i *Incident) AppendUpdate(u IncidentUpdate) {
	i.Updates = append(i.Updates, u)
	i.Status = u.Status
	i.UpdatedAt = u.CreatedAt
}

// Clone returns a deep copy so callers can't mutate stored slices.
func (i *Incident) Clone() *Incident {
	c := *i
	c.AffectedServices = append(make([]string, 0, len(i.AffectedServices)), i.AffectedServices...)
	c.Updates = append(make([]IncidentUpdate, 0, len(i.Updates)), i.Updates...)
	return &c
}

// DeletedIncident is the last known state of a removed incident.
type DeletedIncident struct {
	Incident
	Deleted bool `json:"deleted"`
}
