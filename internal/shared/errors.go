package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Document errors
	ErrUnsupportedFormat = fmt.Errorf("unsupported format")
	ErrMalformedDocument = fmt.Errorf("malformed document")

	// Catalog errors
	ErrTrackNotFound              = fmt.Errorf("track not found")
	ErrAuditEntryNotFound         = fmt.Errorf("audit entry not found")
	ErrValidation                 = fmt.Errorf("validation failed")
	ErrConflictRequiresResolution = fmt.Errorf("conflict requires resolution")
	ErrCatalogLocked              = fmt.Errorf("catalog is locked by another process")

	// Playlist source errors
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrAPIRequest       = fmt.Errorf("playlist source request failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
