package errors

import (
	"errors"
	"net/http"

	"github.com/sceneforge/core/internal/domain"
)

// APIError represents a standardized error response from the `serve`
// operational HTTP surface.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Status  int                    `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) WithDetails(details map[string]interface{}) *APIError {
	newErr := *e
	newErr.Details = details
	return &newErr
}

// Common error definitions, one per domain.ErrorKind (§7) plus the
// generic request/server failures every handler needs regardless of the
// domain taxonomy.
var (
	ErrInvalidRequest = &APIError{Code: "INVALID_REQUEST", Message: "invalid request body", Status: http.StatusBadRequest}
	ErrValidation     = &APIError{Code: "VALIDATION_ERROR", Message: "request failed validation", Status: http.StatusBadRequest}
	ErrNotFound       = &APIError{Code: "NOT_FOUND", Message: "resource not found", Status: http.StatusNotFound}
	ErrConflict       = &APIError{Code: "CONFLICT", Message: "resource conflict", Status: http.StatusConflict}
	ErrProvider       = &APIError{Code: "PROVIDER_ERROR", Message: "upstream AI provider failed", Status: http.StatusBadGateway}
	ErrQuota          = &APIError{Code: "QUOTA_EXCEEDED", Message: "upstream provider quota exceeded", Status: http.StatusTooManyRequests}
	ErrContentPolicy  = &APIError{Code: "CONTENT_POLICY", Message: "provider refused content", Status: http.StatusUnprocessableEntity}
	ErrTimeout        = &APIError{Code: "TIMEOUT", Message: "operation timed out", Status: http.StatusGatewayTimeout}
	ErrIncomplete     = &APIError{Code: "INCOMPLETE_MATERIALS", Message: "required artifacts are missing", Status: http.StatusUnprocessableEntity}
	ErrMalformed      = &APIError{Code: "MALFORMED_RESPONSE", Message: "provider response could not be parsed", Status: http.StatusBadGateway}
	ErrCancelled      = &APIError{Code: "CANCELLED", Message: "operation was cancelled", Status: http.StatusConflict}

	ErrInternalServer   = &APIError{Code: "INTERNAL_SERVER_ERROR", Message: "an internal server error occurred", Status: http.StatusInternalServerError}
	ErrDatabaseError    = &APIError{Code: "DATABASE_ERROR", Message: "database operation failed", Status: http.StatusInternalServerError}
	ErrStorageError     = &APIError{Code: "STORAGE_ERROR", Message: "blob store operation failed", Status: http.StatusInternalServerError}
	ErrServiceUnavailable = &APIError{Code: "SERVICE_UNAVAILABLE", Message: "service temporarily unavailable", Status: http.StatusServiceUnavailable}
)

// ErrorResponse is the JSON body for every failed `serve` request.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

func NewAPIError(base *APIError, message string, details map[string]interface{}) *APIError {
	err := *base
	if message != "" {
		err.Message = message
	}
	if details != nil {
		err.Details = details
	}
	return &err
}

// kindToBase maps a domain.ErrorKind to the APIError template the `serve`
// boundary renders it as (§7 propagation policy: "the Task Runtime
// consumes them to decide retry... the Executor observes only terminal
// task outcomes"; this table is the third consumer — the HTTP layer).
var kindToBase = map[domain.ErrorKind]*APIError{
	domain.KindValidation:          ErrValidation,
	domain.KindNotFound:            ErrNotFound,
	domain.KindConflict:            ErrConflict,
	domain.KindProvider:            ErrProvider,
	domain.KindQuota:               ErrQuota,
	domain.KindContentPolicy:       ErrContentPolicy,
	domain.KindTimeout:             ErrTimeout,
	domain.KindIncompleteMaterials: ErrIncomplete,
	domain.KindMalformedResponse:   ErrMalformed,
	domain.KindCancelled:           ErrCancelled,
}

// FromDomain translates a domain.Error (or domain.IncompleteMaterialsError)
// into the APIError the HTTP handlers render, preserving the message and,
// for incomplete-materials, the list of gaps as Details.
func FromDomain(err error) *APIError {
	var incomplete *domain.IncompleteMaterialsError
	if errors.As(err, &incomplete) {
		return NewAPIError(ErrIncomplete, incomplete.Message, map[string]interface{}{
			"missing": incomplete.Missing,
		})
	}

	var de *domain.Error
	if errors.As(err, &de) {
		base, ok := kindToBase[de.Kind]
		if !ok {
			base = ErrInternalServer
		}
		return NewAPIError(base, de.Message, nil)
	}

	return NewAPIError(ErrInternalServer, err.Error(), nil)
}
