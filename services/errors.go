package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeUnavailable  ErrorType = "unavailable"
)

// Machine-readable error codes carried by DomainError.Code
const (
	CodeEventTypeRequired    = "event_type_required"
	CodeUnknownEventType     = "unknown_event_type"
	CodeSubjectIDRequired    = "subject_id_required"
	CodeCaseIDRequired       = "case_id_required"
	CodeEventIDRequired      = "event_id_required"
	CodeRequesterIDRequired  = "requester_id_required"
	CodeInvalidPayload       = "invalid_payload"
	CodeBackendNotRegistered = "not_registered"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Type, and on Code as well when the target carries one
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code != "" && e.Code != t.Code {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// NewValidationError creates a validation error carrying a machine-readable code
func NewValidationError(code, message string) *DomainError {
	e := NewDomainError(ErrorTypeValidation, message, nil)
	e.Code = code
	return e
}

// Domain error variables. Compare with errors.Is; never mutate these.

var (
	ErrEventNotFound = NewDomainError(ErrorTypeNotFound, "event not found", nil)

	ErrEventTypeRequired = &DomainError{Type: ErrorTypeValidation, Code: CodeEventTypeRequired, Message: "event type is required"}
	ErrUnknownEventType  = &DomainError{Type: ErrorTypeValidation, Code: CodeUnknownEventType, Message: "unknown event type"}
	ErrSubjectIDRequired = &DomainError{Type: ErrorTypeValidation, Code: CodeSubjectIDRequired, Message: "case events require a subject id"}
	ErrCaseIDRequired    = &DomainError{Type: ErrorTypeValidation, Code: CodeCaseIDRequired, Message: "case id is required"}
	ErrEventIDRequired   = &DomainError{Type: ErrorTypeValidation, Code: CodeEventIDRequired, Message: "event id is required"}
	ErrRequesterRequired = &DomainError{Type: ErrorTypeValidation, Code: CodeRequesterIDRequired, Message: "requester id is required"}
	ErrInvalidPayload    = &DomainError{Type: ErrorTypeValidation, Code: CodeInvalidPayload, Message: "payload is not serializable"}

	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrForbidden    = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)

	ErrBackendNotRegistered = &DomainError{Type: ErrorTypeUnavailable, Code: CodeBackendNotRegistered, Message: "event store not registered"}
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// IsUnavailableError checks if an error reports a missing dependency
func IsUnavailableError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnavailable
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorCode returns the machine-readable code of a domain error, if any
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
