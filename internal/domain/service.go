package domain

import "time"

// ServiceStatus represents the operational status of a service.
type ServiceStatus string

// Service statuses.
const (
	ServiceStatusOperational ServiceStatus = "operational"
	ServiceStatusDegraded    ServiceStatus = "degraded"
	ServiceStatusPartial     ServiceStatus = "partial"
	ServiceStatusMajor       ServiceStatus = "major"
)

// IsValid checks if the service status is valid.
func (s ServiceStatus) IsValid() bool {
	switch s {
	case ServiceStatusOperational, ServiceStatusDegraded,
		ServiceStatusPartial, ServiceStatusMajor:
		return true
	}
	return false
}

// IsDown reports whether the status counts as an outage.
func (s ServiceStatus) IsDown() bool {
	return s == ServiceStatusPartial || s == ServiceStatusMajor
}

// Service represents a monitored service.
type Service struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Status         ServiceStatus `json:"status"`
	Uptime         float64       `json:"uptime"`
	OrganizationID string        `json:"organizationId,omitempty"`
	TenantID       string        `json:"tenantId,omitempty"`
	LastUpdated    time.Time     `json:"lastUpdated"`
}

// Scope returns the organization/tenant scope the service belongs to.
func (s *Service) Scope() Scope {
	return Scope{OrganizationID: s.OrganizationID, TenantID: s.TenantID}
}

// DeletedService is the last known state of a removed service, flagged so
// subscribers can drop it from local caches.
type DeletedService struct {
	Service
	Deleted bool `json:"deleted"`
}
