package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
// Codes follow the format GM-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "GM-CONF-4001")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
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

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Configuration and connection policy errors (CONF).
var (
	// ErrInvalidConfig indicates a configuration value failed verification.
	ErrInvalidConfig = NewDomainError("GM-CONF-4000", "invalid configuration")

	// ErrConnectToSelf indicates an attempt to open a member connection to
	// this node's own address.
	ErrConnectToSelf = NewDomainError("GM-CONF-4001", "connecting to self")

	// ErrMalformedPort indicates an outbound port token that is neither a
	// number, a range nor a wildcard.
	ErrMalformedPort = NewDomainError("GM-CONF-4002", "malformed outbound port definition")

	// ErrUnsupported indicates a capability that this node does not offer.
	ErrUnsupported = NewDomainError("GM-CONF-4003", "unsupported capability")
)

// Network errors (NET).
var (
	// ErrInvalidAddress indicates an address that cannot be parsed.
	ErrInvalidAddress = NewDomainError("GM-NET-4000", "invalid address")

	// ErrFrameTooLarge indicates a member frame above the configured limit.
	ErrFrameTooLarge = NewDomainError("GM-NET-4130", "frame too large")

	// ErrConnectionRejected indicates the socket interceptor refused a peer.
	ErrConnectionRejected = NewDomainError("GM-NET-4030", "connection rejected")

	// ErrNodeInactive indicates the node is not accepting work.
	ErrNodeInactive = NewDomainError("GM-NET-5030", "node is not active")
)

// Command errors (CMD).
var (
	// ErrUnknownOperation indicates a command frame naming no registered handler.
	ErrUnknownOperation = NewDomainError("GM-CMD-4040", "unknown operation")

	// ErrMissingArgument indicates a required command argument is missing.
	ErrMissingArgument = NewDomainError("GM-CMD-4001", "missing required argument")

	// ErrInvalidArgument indicates a command argument with an invalid value.
	ErrInvalidArgument = NewDomainError("GM-CMD-4002", "invalid argument")

	// ErrDuplicateHandler indicates a second registration under the same name.
	ErrDuplicateHandler = NewDomainError("GM-CMD-4090", "handler already registered")

	// ErrRateLimited indicates too many commands from one client.
	ErrRateLimited = NewDomainError("GM-CMD-4290", "too many requests")
)

// System errors (SYS).
var (
	// ErrInternal indicates an internal error, for example a recovered panic.
	ErrInternal = NewDomainError("GM-SYS-5000", "internal error")

	// ErrResourceExhausted indicates the process ran out of memory or descriptors.
	ErrResourceExhausted = NewDomainError("GM-SYS-5070", "resource exhausted")
)
