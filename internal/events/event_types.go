package events

import (
	"time"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated           EventType = "ticket_created"
	EventTicketStatusChanged     EventType = "ticket_status_changed"
	EventTicketAssigned          EventType = "ticket_assigned"
	EventTicketLocationOverride  EventType = "ticket_location_overridden"
	EventTicketRetired           EventType = "ticket_retired"
	EventTicketHistoryCorrection EventType = "ticket_history_corrected"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Name string      `json:"name,omitempty"`
	Role domain.Role `json:"role"`
}

// ActorFrom copies the acting identity into event form.
func ActorFrom(a domain.Actor) Actor {
	return Actor{ID: a.ID, Name: a.Name, Role: a.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID            string      `json:"id"`
	Type          EventType   `json:"type"`
	TicketID      string      `json:"ticket_id"`
	ReferenceCode string      `json:"reference_code"`
	Actor         Actor       `json:"actor"`
	Timestamp     time.Time   `json:"timestamp"`
	Payload       interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category           domain.Category     `json:"category"`
	PriorityLevel      int                 `json:"priority_level"`
	Status             domain.TicketStatus `json:"status"`
	Title              string              `json:"title"`
	ResponseDeadline   time.Time           `json:"response_deadline"`
	ResolutionDeadline time.Time           `json:"resolution_deadline"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID   string  `json:"assignee_id"`
	AssigneeName *string `json:"assignee_name,omitempty"`
}

// TicketLocationOverriddenPayload payload.
type TicketLocationOverriddenPayload struct {
	DistanceMeters  *float64 `json:"distance_meters,omitempty"`
	ToleranceMeters float64  `json:"tolerance_meters"`
	Reason          string   `json:"reason,omitempty"`
}

// TicketRetiredPayload payload.
type TicketRetiredPayload struct {
	Status domain.TicketStatus `json:"status"`
}

// TicketHistoryCorrectedPayload payload.
type TicketHistoryCorrectedPayload struct {
	EntryID string `json:"entry_id"`
	Reason  string `json:"reason"`
}
