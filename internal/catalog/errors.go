package catalog

import "errors"

// Catalog errors.
var (
	ErrServiceNotFound = errors.New("service not found")
	ErrInvalidStatus   = errors.New("invalid service status")
	ErrInvalidUptime   = errors.New("uptime must be between 0 and 100")
)
