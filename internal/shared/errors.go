package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Remote service errors
	ErrRemoteUnavailable = fmt.Errorf("remote service unavailable")
	ErrRateLimited       = fmt.Errorf("rate limited")
	ErrAuthFailed        = fmt.Errorf("authentication failed")

	// Catalog and filesystem errors
	ErrNotFound  = fmt.Errorf("not found")
	ErrConflict  = fmt.Errorf("conflict")
	ErrIntegrity = fmt.Errorf("integrity check failed")

	// Request lifecycle errors
	ErrCancelled      = fmt.Errorf("operation cancelled")
	ErrTimeout        = fmt.Errorf("operation timed out")
	ErrInvalidRequest = fmt.Errorf("invalid request")
	ErrUnexpected     = fmt.Errorf("unexpected error")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
