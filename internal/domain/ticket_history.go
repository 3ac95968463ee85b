package domain

import "time"

// HistoryKind distinguishes accepted transitions from administrative corrections.
type HistoryKind string

const (
	HistoryKindTransition HistoryKind = "transition"
	HistoryKindCorrection HistoryKind = "correction"
)

// StatusHistoryEntry is an immutable ledger record.
type StatusHistoryEntry struct {
	ID         string
	TicketID   string
	FromStatus TicketStatus
	ToStatus   TicketStatus
	ActorID    string
	ActorName  string
	Kind       HistoryKind
	Reason     string
	CreatedAt  time.Time
}

// SortOrder selects ledger read ordering.
type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)
