// Package domain contains the core entities shared across modules.
package domain

// Scope narrows records and broadcasts to an organization or a tenant.
// OrganizationID takes precedence when both are set.
type Scope struct {
	OrganizationID string `json:"organizationId,omitempty"`
	TenantID       string `json:"tenantId,omitempty"`
}

// IsEmpty reports whether no scope filter is set.
func (s Scope) IsEmpty() bool {
	return s.OrganizationID == "" && s.TenantID == ""
}
