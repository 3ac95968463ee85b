package dto

import (
	"time"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Category            domain.Category `json:"category" validate:"required,oneof=pm cm"`
	PriorityLevel       int             `json:"priorityLevel" validate:"required,min=1"`
	Severity            *string         `json:"severity" validate:"omitempty,max=50"`
	Title               string          `json:"title" validate:"required,notblank,max=200"`
	Description         string          `json:"description" validate:"max=5000"`
	LocationRef         string          `json:"locationRef" validate:"max=200"`
	ExpectedLocationLat *float64        `json:"expectedLocationLat" validate:"omitempty,latitude"`
	ExpectedLocationLng *float64        `json:"expectedLocationLng" validate:"omitempty,longitude"`
	AssignedToID        *string         `json:"assignedToId" validate:"omitempty,notblank"`
	AssignedToName      *string         `json:"assignedToName"`
	Draft               bool            `json:"draft"`
}

// TransitionRequest carries a requested status plus any evidence, costs or
// assignment delivered alongside it. Every field is optional.
type TransitionRequest struct {
	Status               domain.TicketStatus `json:"status" validate:"omitempty,ticket_status"`
	AssignedToID         *string             `json:"assignedToId" validate:"omitempty,notblank"`
	AssignedToName       *string             `json:"assignedToName"`
	LaborCost            *float64            `json:"laborCost" validate:"omitempty,gte=0"`
	MaterialCost         *float64            `json:"materialCost" validate:"omitempty,gte=0"`
	SparePartsCost       *float64            `json:"sparePartsCost" validate:"omitempty,gte=0"`
	WorkLocationLat      *float64            `json:"workLocationLat"`
	WorkLocationLng      *float64            `json:"workLocationLng"`
	WorkLocationAccuracy *float64            `json:"workLocationAccuracy" validate:"omitempty,gte=0"`
	BeforePhoto          *string             `json:"beforePhoto"`
	AfterPhoto           *string             `json:"afterPhoto"`
	TechnicianSignature  *string             `json:"technicianSignature"`
	TechnicianNotes      *string             `json:"technicianNotes"`
	Reason               string              `json:"reason" validate:"max=1000"`
	ForceLocation        bool                `json:"forceLocation"`
}

// CorrectionRequest payload.
type CorrectionRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}

// TicketListQuery captures query filters for the list endpoint.
type TicketListQuery struct {
	Category       *domain.Category
	Statuses       []domain.TicketStatus
	PriorityLevels []int
	AssigneeID     *string
	RequesterID    *string
	Search         *string
	Page           int
	PageSize       int
}

// SLAResponse reports commitments and their health at read time.
type SLAResponse struct {
	ResponseDeadline         time.Time        `json:"responseDeadline"`
	ResolutionDeadline       time.Time        `json:"resolutionDeadline"`
	ActualResponseAt         *time.Time       `json:"actualResponseAt"`
	ActualResolutionAt       *time.Time       `json:"actualResolutionAt"`
	ResponseHealth           domain.SLAHealth `json:"responseHealth"`
	ResolutionHealth         domain.SLAHealth `json:"resolutionHealth"`
	Health                   domain.SLAHealth `json:"health"`
	ResponseHoursRemaining   *float64         `json:"responseHoursRemaining"`
	ResolutionHoursRemaining *float64         `json:"resolutionHoursRemaining"`
}

// LocationResponse describes expected and reported work locations.
type LocationResponse struct {
	Ref            string             `json:"ref"`
	Expected       *domain.Coordinate `json:"expected"`
	Work           *domain.Coordinate `json:"work"`
	WorkAccuracy   *float64           `json:"workAccuracy"`
	Verified       bool               `json:"verified"`
	DistanceMeters *float64           `json:"distanceMeters"`
	Overridden     bool               `json:"overridden"`
	OverriddenBy   *string            `json:"overriddenBy"`
}

// CostResponse groups cost components.
type CostResponse struct {
	Labor      *float64 `json:"labor"`
	Material   *float64 `json:"material"`
	SpareParts *float64 `json:"spareParts"`
	Total      *float64 `json:"total"`
}

// EvidenceResponse groups completion evidence references.
type EvidenceResponse struct {
	BeforePhoto         *string `json:"beforePhoto"`
	AfterPhoto          *string `json:"afterPhoto"`
	TechnicianSignature *string `json:"technicianSignature"`
	TechnicianNotes     *string `json:"technicianNotes"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID                  string                 `json:"id"`
	ReferenceCode       string                 `json:"referenceCode"`
	Category            domain.Category        `json:"category"`
	PriorityLevel       int                    `json:"priorityLevel"`
	Severity            *string                `json:"severity"`
	Title               string                 `json:"title"`
	Description         string                 `json:"description"`
	RequesterID         string                 `json:"requesterId"`
	RequesterName       string                 `json:"requesterName"`
	Status              domain.TicketStatus    `json:"status"`
	PreviousStatus      *domain.TicketStatus   `json:"previousStatus"`
	StatusChangedAt     time.Time              `json:"statusChangedAt"`
	AssignedToID        *string                `json:"assignedToId"`
	AssignedToName      *string                `json:"assignedToName"`
	AssignedAt          *time.Time             `json:"assignedAt"`
	AcknowledgedAt      *time.Time             `json:"acknowledgedAt"`
	StartedAt           *time.Time             `json:"startedAt"`
	CompletedAt         *time.Time             `json:"completedAt"`
	ClosedAt            *time.Time             `json:"closedAt"`
	Location            LocationResponse       `json:"location"`
	Evidence            EvidenceResponse       `json:"evidence"`
	Costs               CostResponse           `json:"costs"`
	RejectionCount      int                    `json:"rejectionCount"`
	LastRejectionReason *string                `json:"lastRejectionReason"`
	CompletionRecordID  *string                `json:"completionRecordId"`
	SLA                 SLAResponse            `json:"sla"`
	CanReopen           bool                   `json:"canReopen"`
	CanClose            bool                   `json:"canClose"`
	AllowedTransitions  []domain.TicketStatus  `json:"allowedTransitions"`
	Retired             bool                   `json:"retired"`
	RetiredAt           *time.Time             `json:"retiredAt,omitempty"`
	RetiredBy           *string                `json:"retiredBy,omitempty"`
	Version             int64                  `json:"version"`
	CreatedAt           time.Time              `json:"createdAt"`
	UpdatedAt           time.Time              `json:"updatedAt"`
	History             []HistoryEntryResponse `json:"history,omitempty"`
}

// HistoryEntryResponse is one ledger record.
type HistoryEntryResponse struct {
	ID         string              `json:"id"`
	TicketID   string              `json:"ticketId"`
	FromStatus domain.TicketStatus `json:"fromStatus"`
	ToStatus   domain.TicketStatus `json:"toStatus"`
	ActorID    string              `json:"actorId"`
	ActorName  string              `json:"actorName"`
	Kind       domain.HistoryKind  `json:"kind"`
	Reason     string              `json:"reason,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// TransitionResponse reports the outcome of a transition request.
type TransitionResponse struct {
	Ticket  TicketResponse        `json:"ticket"`
	Entry   *HistoryEntryResponse `json:"entry"`
	Changed bool                  `json:"changed"`
}

// WorkflowTransitionsResponse lists reachable statuses for a category.
type WorkflowTransitionsResponse struct {
	Category domain.Category       `json:"category"`
	From     domain.TicketStatus   `json:"from"`
	Allowed  []domain.TicketStatus `json:"allowed"`
}

// Pagination metadata for list envelopes.
type Pagination struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPagination derives page counts from a total.
func NewPagination(page, pageSize, total int) Pagination {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return Pagination{
		Page:        page,
		PageSize:    pageSize,
		TotalCount:  total,
		TotalPages:  pages,
		HasNext:     page < pages,
		HasPrevious: page > 1,
	}
}
