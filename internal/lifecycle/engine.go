// Package lifecycle applies transition requests to tickets.
//
// Apply is pure: it validates a request against a ticket snapshot and returns
// the mutated copy plus the ledger entry to append. Persisting both atomically
// is the caller's job.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
	"github.com/fieldops/maintenance-ticketing/internal/geofence"
	"github.com/fieldops/maintenance-ticketing/internal/workflow"
)

// DefaultToleranceMeters is the geofence radius used when none is configured.
const DefaultToleranceMeters = 50.0

var completionNamespace = uuid.MustParse("5b7e2c1a-8f0d-4c5e-9a36-2d1f0e4b7c90")

// Evidence is the completion and location proof delivered with a request.
type Evidence struct {
	BeforePhoto          *string
	AfterPhoto           *string
	TechnicianSignature  *string
	TechnicianNotes      *string
	WorkLocation         *domain.Coordinate
	WorkLocationAccuracy *float64
}

// Assignment names the technician a ticket is handed to.
type Assignment struct {
	ID   string
	Name string
}

// CostUpdate carries cost components; nil fields are left untouched.
type CostUpdate struct {
	Labor      *float64
	Material   *float64
	SpareParts *float64
}

func (c *CostUpdate) any() bool {
	return c != nil && (c.Labor != nil || c.Material != nil || c.SpareParts != nil)
}

// TransitionRequest is one requested change to a ticket.
type TransitionRequest struct {
	// Status is the requested status; empty keeps the current one.
	Status        domain.TicketStatus
	Actor         domain.Actor
	Evidence      *Evidence
	Assignment    *Assignment
	Costs         *CostUpdate
	Reason        string
	ForceLocation bool
}

// Outcome is the result of applying a request.
type Outcome struct {
	Ticket *domain.Ticket
	// Entry is the ledger record for a status change, nil otherwise.
	Entry *domain.StatusHistoryEntry
	// Changed is false for idempotent re-submissions that need no write.
	Changed            bool
	Reassigned         bool
	LocationOverridden bool
	Geofence           *geofence.Result
}

// Engine validates and applies transition requests.
type Engine struct {
	Machine         *workflow.Machine
	ToleranceMeters float64
	Now             func() time.Time
}

// New constructs an engine.
func New(machine *workflow.Machine, toleranceMeters float64) *Engine {
	if machine == nil {
		machine = workflow.NewMachine(nil)
	}
	if toleranceMeters <= 0 {
		toleranceMeters = DefaultToleranceMeters
	}
	return &Engine{Machine: machine, ToleranceMeters: toleranceMeters, Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// Apply runs every gate in order and returns the new ticket state. The input
// ticket is never modified; the first failing gate aborts the whole request.
func (e *Engine) Apply(current *domain.Ticket, req TransitionRequest) (*Outcome, error) {
	if current == nil {
		return nil, domain.ErrNotFound
	}
	t := current.Clone()
	from := t.Status

	assignment := req.Assignment
	if assignment != nil && strings.TrimSpace(assignment.ID) == "" {
		assignment = nil
	}

	target := req.Status
	if target == "" {
		target = from
	}
	if assignment != nil && from == domain.StatusOpen && target == domain.StatusOpen {
		target = domain.StatusAssigned
	}

	statusChange := target != from
	if !statusChange && assignment == nil && !req.Costs.any() {
		return &Outcome{Ticket: t}, nil
	}

	if workflow.IsTerminal(from) {
		return nil, &domain.InvalidTransitionError{From: from, To: target, Allowed: []domain.TicketStatus{}}
	}
	if statusChange {
		if err := e.Machine.ValidateTransition(t.Category, from, target); err != nil {
			return nil, err
		}
	}

	out := &Outcome{Ticket: t, Changed: true}
	now := e.now()

	if statusChange {
		if target == domain.StatusAssigned && assignment == nil && blank(t.AssignedToID) {
			return nil, domain.ErrAssigneeRequired
		}
		if target == domain.StatusPendingReview {
			if missing := missingEvidence(req.Evidence); len(missing) > 0 {
				return nil, &domain.IncompleteEvidenceError{Missing: missing}
			}
		}
		if req.Evidence != nil && req.Evidence.WorkLocation != nil {
			if err := e.verifyLocation(t, req, out); err != nil {
				return nil, err
			}
		}
		applyEvidence(t, req.Evidence)
	}

	if assignment != nil {
		if t.AssignedToID == nil || *t.AssignedToID != assignment.ID {
			out.Reassigned = true
			t.AssignedAt = &now
		}
		id := assignment.ID
		t.AssignedToID = &id
		if name := strings.TrimSpace(assignment.Name); name != "" {
			t.AssignedToName = &name
		}
	}

	if statusChange {
		stampTransition(t, target, req.Reason, now)
		prev := from
		t.PreviousStatus = &prev
		t.Status = target
		t.StatusChangedAt = now
		out.Entry = &domain.StatusHistoryEntry{
			ID:         uuid.NewString(),
			TicketID:   t.ID,
			FromStatus: from,
			ToStatus:   target,
			ActorID:    req.Actor.ID,
			ActorName:  req.Actor.Name,
			Kind:       domain.HistoryKindTransition,
			Reason:     strings.TrimSpace(req.Reason),
			CreatedAt:  now,
		}
	}

	applyCosts(t, req.Costs)
	t.UpdatedAt = now
	return out, nil
}

func (e *Engine) verifyLocation(t *domain.Ticket, req TransitionRequest, out *Outcome) error {
	res := geofence.Verify(t.ExpectedLocation, req.Evidence.WorkLocation, req.Evidence.WorkLocationAccuracy, e.ToleranceMeters)
	out.Geofence = &res
	if !res.IsValid {
		if !req.ForceLocation {
			failure := &domain.LocationVerificationFailedError{
				DistanceMeters:  res.DistanceMeters,
				ToleranceMeters: res.ToleranceMeters,
			}
			if res.Reason != geofence.ReasonOutsideTolerance {
				failure.Reason = res.Reason
			}
			return failure
		}
		if !req.Actor.Role.CanOverride() {
			return fmt.Errorf("%w: location override requires supervisor or admin", domain.ErrForbidden)
		}
	}

	loc := *req.Evidence.WorkLocation
	t.WorkLocation = &loc
	t.WorkLocationAccuracy = req.Evidence.WorkLocationAccuracy
	t.LocationDistance = nil
	if res.Reason == "" || res.Reason == geofence.ReasonOutsideTolerance {
		distance := res.DistanceMeters
		t.LocationDistance = &distance
	}
	t.LocationVerified = true
	if res.IsValid {
		t.LocationOverride = false
		t.LocationOverrideBy = nil
		return nil
	}
	actorID := req.Actor.ID
	t.LocationOverride = true
	t.LocationOverrideBy = &actorID
	out.LocationOverridden = true
	return nil
}

func missingEvidence(ev *Evidence) []string {
	if ev == nil {
		ev = &Evidence{}
	}
	var missing []string
	if blank(ev.BeforePhoto) {
		missing = append(missing, "beforePhoto")
	}
	if blank(ev.AfterPhoto) {
		missing = append(missing, "afterPhoto")
	}
	if blank(ev.TechnicianNotes) {
		missing = append(missing, "technicianNotes")
	}
	if blank(ev.TechnicianSignature) {
		missing = append(missing, "technicianSignature")
	}
	return missing
}

func blank(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}

func applyEvidence(t *domain.Ticket, ev *Evidence) {
	if ev == nil {
		return
	}
	if !blank(ev.BeforePhoto) {
		t.BeforePhoto = ev.BeforePhoto
	}
	if !blank(ev.AfterPhoto) {
		t.AfterPhoto = ev.AfterPhoto
	}
	if !blank(ev.TechnicianSignature) {
		t.TechnicianSignature = ev.TechnicianSignature
	}
	if !blank(ev.TechnicianNotes) {
		t.TechnicianNotes = ev.TechnicianNotes
	}
}

func stampTransition(t *domain.Ticket, target domain.TicketStatus, reason string, now time.Time) {
	switch target {
	case domain.StatusAssigned:
		t.AssignedAt = &now
	case domain.StatusAcknowledged:
		t.AcknowledgedAt = &now
		if t.ActualResponseAt == nil {
			t.ActualResponseAt = &now
		}
	case domain.StatusOnProgress:
		t.StartedAt = &now
	case domain.StatusPendingReview:
		t.CompletedAt = &now
		t.ActualResolutionAt = &now
	case domain.StatusRejected:
		t.RejectionCount++
		if r := strings.TrimSpace(reason); r != "" {
			t.LastRejectionReason = &r
		}
		t.ActualResolutionAt = nil
	case domain.StatusClosed:
		t.ClosedAt = &now
		id := CompletionRecordID(t.ID, now)
		t.CompletionRecordID = &id
	}
}

// CompletionRecordID derives the job-card identifier for a ticket closed at
// closedAt. The same inputs always yield the same identifier.
func CompletionRecordID(ticketID string, closedAt time.Time) string {
	sum := uuid.NewSHA1(completionNamespace, []byte(ticketID+"|"+closedAt.UTC().Format(time.RFC3339Nano)))
	return "JC-" + strings.ToUpper(strings.ReplaceAll(sum.String(), "-", "")[:12])
}

func applyCosts(t *domain.Ticket, costs *CostUpdate) {
	if costs.any() {
		if costs.Labor != nil {
			v := *costs.Labor
			t.LaborCost = &v
		}
		if costs.Material != nil {
			v := *costs.Material
			t.MaterialCost = &v
		}
		if costs.SpareParts != nil {
			v := *costs.SpareParts
			t.SparePartsCost = &v
		}
	}
	t.TotalCost = TotalCost(t.LaborCost, t.MaterialCost, t.SparePartsCost)
}

// TotalCost sums the components, or returns nil when none is set.
func TotalCost(labor, material, spareParts *float64) *float64 {
	if labor == nil && material == nil && spareParts == nil {
		return nil
	}
	var total float64
	for _, v := range []*float64{labor, material, spareParts} {
		if v != nil {
			total += *v
		}
	}
	return &total
}
