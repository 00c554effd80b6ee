package domain

import "time"

// OverallStatus is the single health bucket of a status snapshot.
type OverallStatus string

// Overall statuses.
const (
	OverallOperational OverallStatus = "operational"
	OverallDegraded    OverallStatus = "degraded"
	OverallMajor       OverallStatus = "major"
)

// StatusSnapshot is the derived health summary over services and incidents.
type StatusSnapshot struct {
	OverallStatus       OverallStatus `json:"overallStatus"`
	TotalServices       int           `json:"totalServices"`
	OperationalServices int           `json:"operationalServices"`
	DegradedServices    int           `json:"degradedServices"`
	DownServices        int           `json:"downServices"`
	ActiveIncidents     int           `json:"activeIncidents"`
	AverageUptime       float64       `json:"averageUptime"`
	LastUpdated         time.Time     `json:"lastUpdated"`
	OrganizationID      string        `json:"organizationId,omitempty"`
	TenantID            string        `json:"tenantId,omitempty"`
}

// ConnectionInfo is the claimed identity of a live viewer connection.
type ConnectionInfo struct {
	SocketID       string    `json:"socketId"`
	UserID         string    `json:"userId,omitempty"`
	OrganizationID string    `json:"organizationId,omitempty"`
	TenantID       string    `json:"tenantId,omitempty"`
	UserRole       string    `json:"userRole,omitempty"`
	ConnectedAt    time.Time `json:"connectedAt"`
	LastActivity   time.Time `json:"lastActivity"`
}
