// Package seed loads demo services and incidents from YAML into storage.
//
// Example file:
//
//	services:
//	  - name: API Gateway
//	    description: Core API services and routing
//	    status: operational
//	    uptime: 99.98
//
//	incidents:
//	  - title: Slow uploads
//	    description: Users experiencing slow upload speeds
//	    impact: minor
//	    affected_services: [API Gateway]
//	    age: 2h
//	    updates:
//	      - status: investigating
//	        message: Looking into it.
//	        age: 2h
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/bissquit/statusrelay/internal/catalog"
	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/incidents"
)

//go:embed default.yaml
var defaultData []byte

// File is the root structure of a seed file.
type File struct {
	Services  []Service  `yaml:"services"`
	Incidents []Incident `yaml:"incidents"`
}

// Service is a seeded service. Uptime defaults to 100.
type Service struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Status         string   `yaml:"status"`
	Uptime         *float64 `yaml:"uptime"`
	OrganizationID string   `yaml:"organization_id"`
	TenantID       string   `yaml:"tenant_id"`
}

// Incident is a seeded incident. Its status is taken from the last update.
type Incident struct {
	Title            string   `yaml:"title"`
	Description      string   `yaml:"description"`
	Impact           string   `yaml:"impact"`
	AffectedServices []string `yaml:"affected_services"`
	OrganizationID   string   `yaml:"organization_id"`
	TenantID         string   `yaml:"tenant_id"`
	Age              Duration `yaml:"age"`
	Updates          []Update `yaml:"updates"`
}

// Update is a seeded timeline entry. Entries are listed oldest first.
type Update struct {
	Status  string   `yaml:"status"`
	Message string   `yaml:"message"`
	Age     Duration `yaml:"age"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in demo data.
func Default() (*File, error) {
	return Parse(defaultData)
}

// Load reads and parses a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates seed data. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate reports every problem in the file at once.
func (f *File) Validate() error {
	var errs []error

	for i, s := range f.Services {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("services[%d]: name is required", i))
		}
		if s.Status != "" && !domain.ServiceStatus(s.Status).IsValid() {
			errs = append(errs, fmt.Errorf("services[%d] (%s): invalid status %q", i, s.Name, s.Status))
		}
		if s.Uptime != nil && (*s.Uptime < 0 || *s.Uptime > 100) {
			errs = append(errs, fmt.Errorf("services[%d] (%s): uptime must be between 0 and 100", i, s.Name))
		}
	}

	for i, inc := range f.Incidents {
		if inc.Title == "" {
			errs = append(errs, fmt.Errorf("incidents[%d]: title is required", i))
		}
		if inc.Age.Duration() < 0 {
			errs = append(errs, fmt.Errorf("incidents[%d] (%s): age must not be negative", i, inc.Title))
		}
		for j, u := range inc.Updates {
			if !domain.IncidentStatus(u.Status).IsValid() {
				errs = append(errs, fmt.Errorf("incidents[%d].updates[%d]: invalid status %q", i, j, u.Status))
			}
			if u.Message == "" {
				errs = append(errs, fmt.Errorf("incidents[%d].updates[%d]: message is required", i, j))
			}
			if j > 0 && u.Age.Duration() > inc.Updates[j-1].Age.Duration() {
				errs = append(errs, fmt.Errorf("incidents[%d].updates[%d]: updates must be listed oldest first", i, j))
			}
		}
	}

	return errors.Join(errs...)
}

// Result summarizes an Apply call.
type Result struct {
	Services  int
	Incidents int
	Skipped   bool
}

// Apply writes the file into the repositories. Nothing is written when any
// service already exists, so restarting against persistent storage does not
// duplicate the data. No change events are published.
func Apply(ctx context.Context, f *File, services catalog.Repository, list incidents.Repository, now time.Time) (Result, error) {
	existing, err := services.ListServices(ctx, catalog.ServiceFilter{})
	if err != nil {
		return Result{}, fmt.Errorf("list services: %w", err)
	}
	if len(existing) > 0 {
		return Result{Skipped: true}, nil
	}

	var res Result
	for _, s := range f.Services {
		if err := services.CreateService(ctx, s.toDomain(now)); err != nil {
			return res, fmt.Errorf("seed service %q: %w", s.Name, err)
		}
		res.Services++
	}

	for _, inc := range f.Incidents {
		if err := list.CreateIncident(ctx, inc.toDomain(now)); err != nil {
			return res, fmt.Errorf("seed incident %q: %w", inc.Title, err)
		}
		res.Incidents++
	}

	return res, nil
}

func (s Service) toDomain(now time.Time) *domain.Service {
	status := domain.ServiceStatus(s.Status)
	if status == "" {
		status = domain.ServiceStatusOperational
	}
	uptime := catalog.DefaultUptime
	if s.Uptime != nil {
		uptime = *s.Uptime
	}
	return &domain.Service{
		ID:             uuid.NewString(),
		Name:           s.Name,
		Description:    s.Description,
		Status:         status,
		Uptime:         uptime,
		OrganizationID: s.OrganizationID,
		TenantID:       s.TenantID,
		LastUpdated:    now,
	}
}

func (inc Incident) toDomain(now time.Time) *domain.Incident {
	impact := domain.IncidentImpact(inc.Impact)
	if impact == "" {
		impact = domain.IncidentImpactMinor
	}
	affected := append(make([]string, 0, len(inc.AffectedServices)), inc.AffectedServices...)

	created := now.Add(-inc.Age.Duration())
	out := &domain.Incident{
		ID:               uuid.NewString(),
		Title:            inc.Title,
		Description:      inc.Description,
		Status:           domain.IncidentStatusInvestigating,
		Impact:           impact,
		AffectedServices: affected,
		OrganizationID:   inc.OrganizationID,
		TenantID:         inc.TenantID,
		CreatedAt:        created,
		UpdatedAt:        created,
		Updates:          make([]domain.IncidentUpdate, 0, len(inc.Updates)),
	}

	for _, u := range inc.Updates {
		out.AppendUpdate(domain.IncidentUpdate{
			ID:        uuid.NewString(),
			Status:    domain.IncidentStatus(u.Status),
			Message:   u.Message,
			CreatedAt: now.Add(-u.Age.Duration()),
		})
	}

	return out
}
