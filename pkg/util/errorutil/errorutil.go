package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

// Error codes rendered in the error envelope.
const (
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeIncompleteEvidence     = "INCOMPLETE_EVIDENCE"
	CodeLocationVerification   = "LOCATION_VERIFICATION_FAILED"
	CodeUnknownPriorityLevel   = "UNKNOWN_PRIORITY_LEVEL"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeTicketStillActive      = "TICKET_STILL_ACTIVE"
	CodeNotFound               = "NOT_FOUND"
	CodePersistence            = "PERSISTENCE_ERROR"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeValidation             = "VALIDATION_FAILED"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts lifecycle and generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var (
		invalid    *domain.InvalidTransitionError
		evidence   *domain.IncompleteEvidenceError
		location   *domain.LocationVerificationFailedError
		priority   *domain.UnknownPriorityLevelError
		active     *domain.TicketStillActiveError
		persistErr *domain.PersistenceError
	)
	switch {
	case errors.As(err, &invalid):
		allowed := make([]string, 0, len(invalid.Allowed))
		for _, s := range invalid.Allowed {
			allowed = append(allowed, string(s))
		}
		return &DomainError{
			Code:       CodeInvalidTransition,
			Message:    invalid.Error(),
			HTTPStatus: http.StatusConflict,
			Details: map[string]any{
				"from":    string(invalid.From),
				"to":      string(invalid.To),
				"allowed": allowed,
			},
			Err: err,
		}
	case errors.As(err, &evidence):
		return &DomainError{
			Code:       CodeIncompleteEvidence,
			Message:    evidence.Error(),
			HTTPStatus: http.StatusUnprocessableEntity,
			Details:    map[string]any{"missing_fields": evidence.Missing},
			Err:        err,
		}
	case errors.As(err, &location):
		details := map[string]any{
			"distance_meters":  location.DistanceMeters,
			"tolerance_meters": location.ToleranceMeters,
		}
		if location.Reason != "" {
			details["reason"] = location.Reason
		}
		return &DomainError{
			Code:       CodeLocationVerification,
			Message:    location.Error(),
			HTTPStatus: http.StatusUnprocessableEntity,
			Details:    details,
			Err:        err,
		}
	case errors.As(err, &priority):
		return &DomainError{
			Code:       CodeUnknownPriorityLevel,
			Message:    priority.Error(),
			HTTPStatus: http.StatusBadRequest,
			Details:    map[string]any{"priority_level": priority.Level},
			Err:        err,
		}
	case errors.As(err, &active):
		return &DomainError{
			Code:       CodeTicketStillActive,
			Message:    active.Error(),
			HTTPStatus: http.StatusConflict,
			Details:    map[string]any{"status": string(active.Status)},
			Err:        err,
		}
	case errors.Is(err, domain.ErrConcurrentModification):
		return &DomainError{
			Code:       CodeConcurrentModification,
			Message:    "ticket was modified by another request; reload and retry",
			HTTPStatus: http.StatusConflict,
			Err:        err,
		}
	case errors.Is(err, domain.ErrAssigneeRequired):
		return &DomainError{
			Code:       CodeValidation,
			Message:    err.Error(),
			HTTPStatus: http.StatusUnprocessableEntity,
			Details:    map[string]any{"missing_fields": []string{"assignedToId"}},
			Err:        err,
		}
	case errors.Is(err, domain.ErrUnauthorized):
		return &DomainError{
			Code:       CodeUnauthorized,
			Message:    err.Error(),
			HTTPStatus: http.StatusUnauthorized,
			Err:        err,
		}
	case errors.Is(err, domain.ErrForbidden):
		return &DomainError{
			Code:       CodeForbidden,
			Message:    err.Error(),
			HTTPStatus: http.StatusForbidden,
			Err:        err,
		}
	case errors.As(err, &persistErr):
		return &DomainError{
			Code:       CodePersistence,
			Message:    persistErr.Error(),
			HTTPStatus: http.StatusInternalServerError,
			Details:    map[string]any{"operation": persistErr.Op},
			Err:        err,
		}
	case errors.Is(err, domain.ErrNotFound):
		return &DomainError{
			Code:       CodeNotFound,
			Message:    "ticket not found",
			HTTPStatus: http.StatusNotFound,
			Details:    map[string]any{},
			Err:        err,
		}
	}

	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts err into a DomainError, keeping nil as nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
