// Package workflow holds the ticket status transition tables.
package workflow

import (
	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

// Table is an adjacency list of legal status transitions.
type Table map[domain.TicketStatus][]domain.TicketStatus

var commonTransitions = Table{
	domain.StatusOpen:          {domain.StatusAssigned, domain.StatusCancelled},
	domain.StatusAssigned:      {domain.StatusAcknowledged, domain.StatusCancelled},
	domain.StatusAcknowledged:  {domain.StatusOnProgress, domain.StatusRejected, domain.StatusCancelled},
	domain.StatusOnProgress:    {domain.StatusPendingReview, domain.StatusCancelled},
	domain.StatusPendingReview: {domain.StatusApproved, domain.StatusRejected},
	domain.StatusRejected:      {domain.StatusAcknowledged, domain.StatusCancelled},
	domain.StatusApproved:      {domain.StatusClosed},
	domain.StatusClosed:        {},
	domain.StatusCancelled:     {},
}

// DefaultTables returns the transition tables per category. Preventive tickets
// may be drafted by planners before they are opened; corrective tickets can not.
func DefaultTables() map[domain.Category]Table {
	pm := commonTransitions.clone()
	pm[domain.StatusDraft] = []domain.TicketStatus{domain.StatusOpen, domain.StatusCancelled}
	return map[domain.Category]Table{
		domain.CategoryPM: pm,
		domain.CategoryCM: commonTransitions.clone(),
	}
}

func (t Table) clone() Table {
	out := make(Table, len(t))
	for from, to := range t {
		out[from] = append([]domain.TicketStatus{}, to...)
	}
	return out
}

// Machine validates status transitions per category.
type Machine struct {
	tables map[domain.Category]Table
}

// NewMachine builds a machine from the given tables, or the defaults when nil.
func NewMachine(tables map[domain.Category]Table) *Machine {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Machine{tables: tables}
}

// ValidStatus reports whether status belongs to the category's state set.
func (m *Machine) ValidStatus(category domain.Category, status domain.TicketStatus) bool {
	table, ok := m.tables[category]
	if !ok {
		return false
	}
	_, ok = table[status]
	return ok
}

// Allowed returns the statuses reachable from from in one step.
func (m *Machine) Allowed(category domain.Category, from domain.TicketStatus) []domain.TicketStatus {
	table, ok := m.tables[category]
	if !ok {
		return []domain.TicketStatus{}
	}
	return append([]domain.TicketStatus{}, table[from]...)
}

// ValidateTransition fails with *domain.InvalidTransitionError when to is not
// adjacent to from. It has no side effects.
func (m *Machine) ValidateTransition(category domain.Category, from, to domain.TicketStatus) error {
	allowed := m.Allowed(category, from)
	if m.ValidStatus(category, to) {
		for _, candidate := range allowed {
			if candidate == to {
				return nil
			}
		}
	}
	return &domain.InvalidTransitionError{From: from, To: to, Allowed: allowed}
}

// IsTerminal reports whether status has no outgoing transitions.
func IsTerminal(status domain.TicketStatus) bool {
	return status == domain.StatusClosed || status == domain.StatusCancelled
}

// IsRetirable reports whether a ticket in status may be hidden from listings.
func IsRetirable(status domain.TicketStatus) bool {
	return IsTerminal(status) || status == domain.StatusDraft
}

// InitialStatus picks the creation status for a new ticket.
func (m *Machine) InitialStatus(category domain.Category, assigned, draft bool) domain.TicketStatus {
	switch {
	case assigned:
		return domain.StatusAssigned
	case draft && m.ValidStatus(category, domain.StatusDraft):
		return domain.StatusDraft
	default:
		return domain.StatusOpen
	}
}
