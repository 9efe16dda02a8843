package errors

import (
	"net/http"
	"time"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"
	ErrInvalidJSON      ErrorCode = "40003"

	// Resource errors (404xx)
	ErrNotFound ErrorCode = "40401"

	// Rate limit errors (429xx)
	ErrRateLimited ErrorCode = "42901"

	// Server errors (500xx)
	ErrInternalServer     ErrorCode = "50001"
	ErrStorageUnavailable ErrorCode = "50301"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	Timestamp  string    `json:"timestamp,omitempty"`
	Path       string    `json:"path,omitempty"`
	Method     string    `json:"method,omitempty"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error         APIError `json:"error"`
	RequestID     string   `json:"request_id"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// NewErrorResponse stamps err with request context
func NewErrorResponse(err *APIError, requestID, correlationID, path, method string) ErrorResponse {
	e := *err
	e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	e.Path = path
	e.Method = method
	if e.HTTPStatus == 0 {
		e.HTTPStatus = GetHTTPStatusFromCode(e.Code)
	}
	if correlationID == "" {
		correlationID = requestID
	}
	return ErrorResponse{
		Error:         e,
		RequestID:     requestID,
		CorrelationID: correlationID,
	}
}

// GetHTTPStatusFromCode maps an error code to its HTTP status
func GetHTTPStatusFromCode(code ErrorCode) int {
	switch code {
	case ErrInvalidRequest, ErrValidationFailed, ErrInvalidJSON:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common errors
var (
	ErrNotFoundError = &APIError{
		Code:       ErrNotFound,
		Message:    "Resource not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrStorageUnavailableError = &APIError{
		Code:       ErrStorageUnavailable,
		Message:    "Review storage unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidJSONError creates an error for an unparseable request body
func NewInvalidJSONError(details any) *APIError {
	return &APIError{
		Code:       ErrInvalidJSON,
		Message:    "Invalid JSON body",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}
