package response

import (
	"errors"
	"fmt"
	"net/http"

	"petfolio/internal/validation"
)

// ===============================
// ERROR TYPES
// ===============================

// Error types carried in ErrorDetail.Type
const (
	TypeValidation  = "VALIDATION_ERROR"
	TypeNotFound    = "NOT_FOUND"
	TypeMethod      = "METHOD_NOT_ALLOWED"
	TypeUnavailable = "SERVICE_UNAVAILABLE"
	TypeInternal    = "INTERNAL_ERROR"
)

// APIError is an error with a client-facing type and HTTP status
type APIError struct {
	Type       string
	Message    string
	Code       string
	Fields     []FieldError
	StatusCode int
	Cause      error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.Cause
}

// GetStatusCode returns the HTTP status code for this error
func (e *APIError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// ===============================
// ERROR CONSTRUCTORS
// ===============================

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *APIError {
	apiErr := &APIError{
		Type:       TypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}

	var verr *validation.Error
	if errors.As(cause, &verr) {
		for _, v := range verr.Violations {
			apiErr.Fields = append(apiErr.Fields, FieldError{
				Field:   v.Field,
				Message: v.Message(),
				Code:    v.Tag,
			})
		}
	}
	return apiErr
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:       TypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewMethodNotAllowedError reports a known path hit with the wrong method
func NewMethodNotAllowedError(method string) *APIError {
	return &APIError{
		Type:       TypeMethod,
		Message:    fmt.Sprintf("method %s is not allowed", method),
		StatusCode: http.StatusMethodNotAllowed,
	}
}

// NewUnavailableError reports a dependency that cannot serve requests
func NewUnavailableError(message string, cause error) *APIError {
	return &APIError{
		Type:       TypeUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *APIError {
	return &APIError{
		Type:       TypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// AsAPIError extracts an APIError from an error chain
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
