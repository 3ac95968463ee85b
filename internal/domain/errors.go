package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports a missing or retired ticket.
	ErrNotFound = errors.New("not found")
	// ErrConcurrentModification reports a lost optimistic-concurrency race.
	ErrConcurrentModification = errors.New("ticket was modified concurrently")
	// ErrUnauthorized reports a request with no actor identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden reports an actor whose role does not permit the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrAssigneeRequired reports a move into assigned with nobody to assign.
	ErrAssigneeRequired = errors.New("an assignee is required to enter assigned")
)

// InvalidTransitionError is returned when to is not reachable from from.
type InvalidTransitionError struct {
	From    TicketStatus
	To      TicketStatus
	Allowed []TicketStatus
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		allowed = append(allowed, string(s))
	}
	return fmt.Sprintf("invalid transition %s -> %s (allowed: [%s])", e.From, e.To, strings.Join(allowed, ", "))
}

// IncompleteEvidenceError lists the completion evidence fields that are absent.
type IncompleteEvidenceError struct {
	Missing []string
}

func (e *IncompleteEvidenceError) Error() string {
	return "incomplete completion evidence: missing " + strings.Join(e.Missing, ", ")
}

// LocationVerificationFailedError reports a work location outside the geofence.
type LocationVerificationFailedError struct {
	DistanceMeters  float64
	ToleranceMeters float64
	Reason          string
}

func (e *LocationVerificationFailedError) Error() string {
	if e.Reason != "" {
		return "location verification failed: " + e.Reason
	}
	return fmt.Sprintf("location verification failed: %.1fm from site (tolerance %.1fm)", e.DistanceMeters, e.ToleranceMeters)
}

// UnknownPriorityLevelError reports a priority with no SLA definition.
type UnknownPriorityLevelError struct {
	Level int
}

func (e *UnknownPriorityLevelError) Error() string {
	return fmt.Sprintf("unknown priority level %d", e.Level)
}

// TicketStillActiveError is returned when retiring a ticket that is still in play.
type TicketStillActiveError struct {
	Status TicketStatus
}

func (e *TicketStillActiveError) Error() string {
	return fmt.Sprintf("ticket still active in status %s", e.Status)
}

// PersistenceError wraps storage-layer faults.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
