package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrStatus             = fmt.Errorf("unexpected response status")
	ErrDecode             = fmt.Errorf("malformed response")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotPaginated       = fmt.Errorf("response carries no page count")
	ErrNoSizes            = fmt.Errorf("no usable source size")

	// Store errors
	ErrNotFound     = fmt.Errorf("document not found")
	ErrInvalidKey   = fmt.Errorf("invalid document key")
	ErrStoreBackend = fmt.Errorf("unknown store backend")

	// Pipeline errors
	ErrInconsistentSource = fmt.Errorf("album references an item missing from the library listing")
	ErrAlbumNotCreated    = fmt.Errorf("destination album has not been created")
	ErrRetriesExhausted   = fmt.Errorf("stage did not converge")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
