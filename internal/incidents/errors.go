package incidents

import "errors"

// Incident errors.
var (
	ErrIncidentNotFound = errors.New("incident not found")
	ErrInvalidStatus    = errors.New("invalid incident status")
	ErrMessageRequired  = errors.New("update message is required")
)
