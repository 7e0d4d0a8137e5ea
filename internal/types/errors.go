package types

import (
	"fmt"
)

// NetworkFailureMessage is the message carried by every APIError that did not
// come from an HTTP status (unreachable host, malformed body, open circuit).
const NetworkFailureMessage = "network failure"

// APIError is the single error shape produced by the advisor API client.
// Status is nil when no HTTP status was received.
type APIError struct {
	Message string `json:"message"`
	Status  *int   `json:"status,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != nil {
		return fmt.Sprintf("api error (status %d): %s", *e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("api error: %s: %v", e.Message, e.Err)
	}
	return "api error: " + e.Message
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status, or 0 for transport-level failures.
func (e *APIError) StatusCode() int {
	if e.Status == nil {
		return 0
	}
	return *e.Status
}

// NewStatusError creates an APIError for a non-success HTTP response.
// An empty message falls back to the generic status text.
func NewStatusError(status int, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}
	return &APIError{
		Message: message,
		Status:  &status,
	}
}

// NewNetworkError creates an APIError for a transport-level failure.
func NewNetworkError(err error) *APIError {
	return &APIError{
		Message: NetworkFailureMessage,
		Err:     err,
	}
}

// ValidationErrorKind categorizes local form validation failures.
type ValidationErrorKind string

const (
	ValidationNotANumber  ValidationErrorKind = "not_a_number"
	ValidationMissingCity ValidationErrorKind = "missing_city"
)

// ValidationError reports a form field that cannot be submitted.
// It is produced locally and never reaches the network.
type ValidationError struct {
	Kind  ValidationErrorKind `json:"kind"`
	Field string              `json:"field"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch e.Kind {
	case ValidationMissingCity:
		return "city is required"
	case ValidationNotANumber:
		return fmt.Sprintf("%s must be a number", e.Field)
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

// NotANumber creates a ValidationError for a non-numeric field.
func NotANumber(field string) *ValidationError {
	return &ValidationError{Kind: ValidationNotANumber, Field: field}
}

// MissingCity creates the ValidationError for an empty city.
func MissingCity() *ValidationError {
	return &ValidationError{Kind: ValidationMissingCity, Field: FieldCity}
}
