package retrieval

import "errors"

// Common errors for pipeline operations. Callers discriminate with errors.Is.
var (
	ErrPermissionDenied    = errors.New("permission denied for department")
	ErrInvalidDepartment   = errors.New("invalid department")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrStorage             = errors.New("storage failure")
	ErrFilterRequired      = errors.New("department filter required")
	ErrNotFound            = errors.New("not found")
	ErrInvalidConfig       = errors.New("invalid configuration")
)
