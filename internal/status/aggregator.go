// Package status computes the aggregated health summary of services and incidents.
package status

import (
	"math"
	"time"

	"github.com/bissquit/statusrelay/internal/domain"
)

// Compute builds a StatusSnapshot over the given services and incidents,
// restricted to scope. It has no side effects; now becomes LastUpdated.
func Compute(services []domain.Service, incidents []domain.Incident, scope domain.Scope, now time.Time) domain.StatusSnapshot {
	snapshot := domain.StatusSnapshot{
		LastUpdated:    now,
		OrganizationID: scope.OrganizationID,
		TenantID:       scope.TenantID,
	}

	var uptimeSum float64
	for i := range services {
		s := &services[i]
		if !inScope(s.OrganizationID, s.TenantID, scope) {
			continue
		}
		snapshot.TotalServices++
		uptimeSum += s.Uptime

		switch {
		case s.Status == domain.ServiceStatusOperational:
			snapshot.OperationalServices++
		case s.Status == domain.ServiceStatusDegraded:
			snapshot.DegradedServices++
		case s.Status.IsDown():
			snapshot.DownServices++
		}
	}

	for i := range incidents {
		inc := &incidents[i]
		if !inScope(inc.OrganizationID, inc.TenantID, scope) {
			continue
		}
		if inc.IsActive() {
			snapshot.ActiveIncidents++
		}
	}

	// Nothing to report counts as fully healthy.
	snapshot.AverageUptime = 100
	if snapshot.TotalServices > 0 {
		snapshot.AverageUptime = roundTo2(uptimeSum / float64(snapshot.TotalServices))
	}

	snapshot.OverallStatus = overall(snapshot)
	return snapshot
}

// overall ranks a single down service above any number of degraded ones.
func overall(s domain.StatusSnapshot) domain.OverallStatus {
	if s.DownServices > 0 {
		return domain.OverallMajor
	}
	if s.DegradedServices > 0 || s.ActiveIncidents > 0 {
		return domain.OverallDegraded
	}
	return domain.OverallOperational
}

func inScope(orgID, tenantID string, scope domain.Scope) bool {
	if scope.OrganizationID != "" {
		return orgID == scope.OrganizationID
	}
	if scope.TenantID != "" {
		return tenantID == scope.TenantID
	}
	return true
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
