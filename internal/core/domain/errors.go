package domain

import (
	"errors"
	"fmt"
)

// DomainError is an error carrying a stable code.
// Codes have the form HG-<AREA>-<NNNN>; the last four digits follow the
// closest HTTP status where one applies.
type DomainError struct {
	Code    string // e.g. "HG-ROUTE-4040"
	Message string
	Details string
	Cause   error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a DomainError.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy of the error with details attached.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of the error wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// GetErrorCode returns the code of the first DomainError in err's chain,
// or "" when there is none.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Configuration errors (CONF).
var (
	ErrConfigMissing   = NewDomainError("HG-CONF-4040", "configuration file missing")
	ErrConfigMalformed = NewDomainError("HG-CONF-4000", "configuration malformed")
	ErrConfigPersist   = NewDomainError("HG-CONF-5000", "configuration could not be persisted")
)

// Routing errors (ROUTE).
var (
	ErrUnknownHost = NewDomainError("HG-ROUTE-4040", "unknown host")
)

// Handler errors (HNDL).
var (
	// ErrUnitNotFound means no source knows the unit id.
	ErrUnitNotFound = NewDomainError("HG-HNDL-4040", "handler unit not found")

	// ErrHandlerLoad means a unit failed to load or did not yield a handler.
	ErrHandlerLoad = NewDomainError("HG-HNDL-5020", "handler load failed")

	// ErrDependencyCycle means a unit transitively requires itself.
	ErrDependencyCycle = NewDomainError("HG-HNDL-5080", "unit dependency cycle")

	// ErrHandlerRuntime means a loaded handler failed while serving.
	ErrHandlerRuntime = NewDomainError("HG-HNDL-5000", "handler failed")
)

// Cache errors (CACHE).
var (
	ErrNothingToEvict = NewDomainError("HG-CACHE-4040", "nothing to evict")
)

// TLS errors (TLS).
var (
	ErrTLSDisabled            = NewDomainError("HG-TLS-4000", "tls not configured")
	ErrTLSNotServing          = NewDomainError("HG-TLS-4090", "secure listener not running")
	ErrTLSMaterialUnavailable = NewDomainError("HG-TLS-5030", "tls material unavailable")
)

// Path errors (PATH).
var (
	ErrPathOutsideRoot = NewDomainError("HG-PATH-4030", "path escapes server root")
)

// Admin and argument errors.
var (
	ErrAdminUnknownCommand = NewDomainError("HG-ADMIN-4000", "unrecognized command")
	ErrAdminRateLimited    = NewDomainError("HG-ADMIN-4290", "rate limited")
	ErrInvalidArgument     = NewDomainError("HG-ARG-1001", "invalid argument")
)
