package domain

import "time"

// Category separates preventive from corrective maintenance work.
type Category string

const (
	CategoryPM Category = "pm"
	CategoryCM Category = "cm"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryPM || c == CategoryCM
}

// Prefix returns the reference-code prefix for the category.
func (c Category) Prefix() string {
	switch c {
	case CategoryPM:
		return "PM"
	case CategoryCM:
		return "CM"
	default:
		return "TK"
	}
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	StatusDraft         TicketStatus = "draft"
	StatusOpen          TicketStatus = "open"
	StatusAssigned      TicketStatus = "assigned"
	StatusAcknowledged  TicketStatus = "acknowledged"
	StatusOnProgress    TicketStatus = "on_progress"
	StatusPendingReview TicketStatus = "pending_review"
	StatusRejected      TicketStatus = "rejected"
	StatusApproved      TicketStatus = "approved"
	StatusClosed        TicketStatus = "closed"
	StatusCancelled     TicketStatus = "cancelled"
)

// AllStatuses lists every lifecycle state in workflow order.
var AllStatuses = []TicketStatus{
	StatusDraft,
	StatusOpen,
	StatusAssigned,
	StatusAcknowledged,
	StatusOnProgress,
	StatusPendingReview,
	StatusRejected,
	StatusApproved,
	StatusClosed,
	StatusCancelled,
}

// SLAHealth classifies how a ticket stands against its commitments.
type SLAHealth string

const (
	SLAOnTime   SLAHealth = "on_time"
	SLAAtRisk   SLAHealth = "at_risk"
	SLABreached SLAHealth = "breached"
)

// Severity ranks health values so the worse of two can be picked.
func (h SLAHealth) Severity() int {
	switch h {
	case SLABreached:
		return 2
	case SLAAtRisk:
		return 1
	default:
		return 0
	}
}

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SLADeadlines are the commitments fixed at ticket creation.
type SLADeadlines struct {
	StartedAt          time.Time
	ResponseDeadline   time.Time
	ResolutionDeadline time.Time
}

// Ticket is the aggregate for field maintenance work.
type Ticket struct {
	ID            string
	ReferenceCode string
	Category      Category
	PriorityLevel int
	Severity      *string
	Title         string
	Description   string

	RequesterID   string
	RequesterName string

	LocationRef          string
	ExpectedLocation     *Coordinate
	WorkLocation         *Coordinate
	WorkLocationAccuracy *float64
	LocationVerified     bool
	LocationDistance     *float64
	LocationOverride     bool
	LocationOverrideBy   *string

	Status          TicketStatus
	PreviousStatus  *TicketStatus
	StatusChangedAt time.Time

	SLAResponseDeadline   time.Time
	SLAResolutionDeadline time.Time
	ActualResponseAt      *time.Time
	ActualResolutionAt    *time.Time

	AssignedToID   *string
	AssignedToName *string
	AssignedAt     *time.Time
	AcknowledgedAt *time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	ClosedAt       *time.Time

	BeforePhoto         *string
	AfterPhoto          *string
	TechnicianSignature *string
	TechnicianNotes     *string

	LaborCost      *float64
	MaterialCost   *float64
	SparePartsCost *float64
	TotalCost      *float64

	RejectionCount      int
	LastRejectionReason *string
	CompletionRecordID  *string

	Retired   bool
	RetiredAt *time.Time
	RetiredBy *string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Deadlines returns the SLA commitments recorded on the ticket.
func (t *Ticket) Deadlines() SLADeadlines {
	return SLADeadlines{
		StartedAt:          t.CreatedAt,
		ResponseDeadline:   t.SLAResponseDeadline,
		ResolutionDeadline: t.SLAResolutionDeadline,
	}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.Severity = cloneString(t.Severity)
	c.ExpectedLocation = cloneCoordinate(t.ExpectedLocation)
	c.WorkLocation = cloneCoordinate(t.WorkLocation)
	c.WorkLocationAccuracy = cloneFloat(t.WorkLocationAccuracy)
	c.LocationDistance = cloneFloat(t.LocationDistance)
	c.LocationOverrideBy = cloneString(t.LocationOverrideBy)
	if t.PreviousStatus != nil {
		prev := *t.PreviousStatus
		c.PreviousStatus = &prev
	}
	c.ActualResponseAt = cloneTime(t.ActualResponseAt)
	c.ActualResolutionAt = cloneTime(t.ActualResolutionAt)
	c.AssignedToID = cloneString(t.AssignedToID)
	c.AssignedToName = cloneString(t.AssignedToName)
	c.AssignedAt = cloneTime(t.AssignedAt)
	c.AcknowledgedAt = cloneTime(t.AcknowledgedAt)
	c.StartedAt = cloneTime(t.StartedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.ClosedAt = cloneTime(t.ClosedAt)
	c.BeforePhoto = cloneString(t.BeforePhoto)
	c.AfterPhoto = cloneString(t.AfterPhoto)
	c.TechnicianSignature = cloneString(t.TechnicianSignature)
	c.TechnicianNotes = cloneString(t.TechnicianNotes)
	c.LaborCost = cloneFloat(t.LaborCost)
	c.MaterialCost = cloneFloat(t.MaterialCost)
	c.SparePartsCost = cloneFloat(t.SparePartsCost)
	c.TotalCost = cloneFloat(t.TotalCost)
	c.LastRejectionReason = cloneString(t.LastRejectionReason)
	c.CompletionRecordID = cloneString(t.CompletionRecordID)
	c.RetiredAt = cloneTime(t.RetiredAt)
	c.RetiredBy = cloneString(t.RetiredBy)
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneCoordinate(v *Coordinate) *Coordinate {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
