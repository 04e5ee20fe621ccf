// Package apierrors defines the engine error taxonomy and its HTTP rendering.
package apierrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finopsmind/costengine/internal/correlation"
)

// Engine error taxonomy. Callers wrap these with fmt.Errorf("...: %w", err)
// and test with errors.Is.
var (
	ErrCredentialNotFound   = errors.New("credential not found")
	ErrIdentityLookupFailed = errors.New("identity lookup failed")
	ErrProviderQueryFailed  = errors.New("provider query failed")
	ErrValidation           = errors.New("validation error")
	ErrPartialFailure       = errors.New("partial failure")
)

// APIError represents a structured API error.
type APIError struct {
	Success    bool   `json:"success"`
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Details    any    `json:"details,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Write writes the error response.
func (e *APIError) Write(w http.ResponseWriter, r *http.Request) {
	e.RequestID = correlation.GetID(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	json.NewEncoder(w).Encode(e)
}

func NewBadRequestError(message string) *APIError {
	return &APIError{
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		StatusCode: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

func NewValidationError(message string, details any) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func NewInternalError(message string) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func NewBadGatewayError(message string) *APIError {
	return &APIError{
		Code:       "PROVIDER_ERROR",
		Message:    message,
		StatusCode: http.StatusBadGateway,
	}
}

// FromError converts an engine error to an APIError.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, ErrValidation):
		return NewValidationError(err.Error(), nil)
	case errors.Is(err, ErrCredentialNotFound):
		return &APIError{
			Code:       "CREDENTIAL_NOT_FOUND",
			Message:    err.Error(),
			StatusCode: http.StatusNotFound,
		}
	case errors.Is(err, ErrIdentityLookupFailed), errors.Is(err, ErrProviderQueryFailed):
		return NewBadGatewayError(err.Error())
	}

	return NewInternalError("An unexpected error occurred")
}

// ErrorHandler is middleware that turns panics into an internal error response.
func ErrorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				NewInternalError("Internal server error").Write(w, r)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
