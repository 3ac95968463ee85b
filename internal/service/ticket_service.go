package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
	"github.com/fieldops/maintenance-ticketing/internal/events"
	"github.com/fieldops/maintenance-ticketing/internal/geofence"
	"github.com/fieldops/maintenance-ticketing/internal/lifecycle"
	"github.com/fieldops/maintenance-ticketing/internal/observability"
	"github.com/fieldops/maintenance-ticketing/internal/refcode"
	"github.com/fieldops/maintenance-ticketing/internal/repository"
	"github.com/fieldops/maintenance-ticketing/internal/sla"
	"github.com/fieldops/maintenance-ticketing/internal/workflow"
	apperrors "github.com/fieldops/maintenance-ticketing/pkg/util/errorutil"
)

const maxReferenceAttempts = 3

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.StatusHistoryRepository
	references *refcode.Generator
	engine     *lifecycle.Engine
	clock      *sla.Clock
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.StatusHistoryRepository
	References  *refcode.Generator
	Engine      *lifecycle.Engine
	Clock       *sla.Clock
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	// Now overrides the wall clock; the engine keeps its own.
	Now func() time.Time
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Category         domain.Category
	PriorityLevel    int
	Severity         *string
	Title            string
	Description      string
	LocationRef      string
	ExpectedLocation *domain.Coordinate
	Assignment       *lifecycle.Assignment
	Draft            bool
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Category       *domain.Category
	Statuses       []domain.TicketStatus
	PriorityLevels []int
	AssigneeID     *string
	RequesterID    *string
	SearchTerm     *string
	Limit          int
	Offset         int
}

// TicketView is a ticket plus the values derived from it at read time.
type TicketView struct {
	Ticket                   *domain.Ticket
	Health                   sla.Health
	ResponseHoursRemaining   *float64
	ResolutionHoursRemaining *float64
	CanReopen                bool
	CanClose                 bool
	AllowedTransitions       []domain.TicketStatus
	History                  []domain.StatusHistoryEntry
}

// TransitionResult reports what a transition request did.
type TransitionResult struct {
	View    *TicketView
	Entry   *domain.StatusHistoryEntry
	Changed bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	engine := deps.Engine
	if engine == nil {
		engine = lifecycle.New(nil, 0)
	}
	clock := deps.Clock
	if clock == nil {
		clock = sla.NewClock(nil, 0)
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		references: deps.References,
		engine:     engine,
		clock:      clock,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        now,
	}
}

// CreateTicket opens a ticket with its SLA commitments fixed at creation.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input CreateTicketInput) (*TicketView, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, apperrors.NewUnauthorized("actor identity required")
	}
	if !input.Category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": string(input.Category)})
	}
	if input.ExpectedLocation != nil && !geofence.ValidCoordinate(*input.ExpectedLocation) {
		return nil, apperrors.NewValidationError("expected location is not a valid coordinate", map[string]any{
			"lat": input.ExpectedLocation.Lat,
			"lng": input.ExpectedLocation.Lng,
		})
	}

	now := s.now().UTC()
	deadlines, err := s.clock.ComputeDeadlines(input.PriorityLevel, now)
	if err != nil {
		return nil, err
	}

	assignment := input.Assignment
	if assignment != nil && strings.TrimSpace(assignment.ID) == "" {
		assignment = nil
	}

	ticket := &domain.Ticket{
		ID:                    uuid.NewString(),
		Category:              input.Category,
		PriorityLevel:         input.PriorityLevel,
		Severity:              input.Severity,
		Title:                 strings.TrimSpace(input.Title),
		Description:           strings.TrimSpace(input.Description),
		RequesterID:           actor.ID,
		RequesterName:         actor.Name,
		LocationRef:           strings.TrimSpace(input.LocationRef),
		ExpectedLocation:      input.ExpectedLocation,
		Status:                s.engine.Machine.InitialStatus(input.Category, assignment != nil, input.Draft),
		StatusChangedAt:       now,
		SLAResponseDeadline:   deadlines.ResponseDeadline,
		SLAResolutionDeadline: deadlines.ResolutionDeadline,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if assignment != nil {
		id := assignment.ID
		ticket.AssignedToID = &id
		if name := strings.TrimSpace(assignment.Name); name != "" {
			ticket.AssignedToName = &name
		}
		ticket.AssignedAt = &now
	}

	if err := s.insertWithReference(ctx, ticket, now); err != nil {
		return nil, err
	}

	s.metrics.RecordTicketCreated(string(ticket.Category))
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("reference_code", ticket.ReferenceCode),
		zap.String("status", string(ticket.Status)),
		zap.Int("priority_level", ticket.PriorityLevel))

	s.publishEvent(ctx, ticket, actor, events.EventTicketCreated, events.TicketCreatedPayload{
		Category:           ticket.Category,
		PriorityLevel:      ticket.PriorityLevel,
		Status:             ticket.Status,
		Title:              ticket.Title,
		ResponseDeadline:   ticket.SLAResponseDeadline,
		ResolutionDeadline: ticket.SLAResolutionDeadline,
	})
	if ticket.AssignedToID != nil {
		s.publishEvent(ctx, ticket, actor, events.EventTicketAssigned, events.TicketAssignedPayload{
			AssigneeID:   *ticket.AssignedToID,
			AssigneeName: ticket.AssignedToName,
		})
	}

	return s.buildView(ctx, ticket, false)
}

func (s *TicketService) insertWithReference(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
	if s.references == nil {
		return errors.New("reference generator not configured")
	}
	var lastErr error
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		ref, err := s.references.Next(ctx, ticket.Category, now)
		if err != nil {
			return &domain.PersistenceError{Op: "reserve reference code", Err: err}
		}
		ticket.ReferenceCode = ref
		err = s.tickets.Create(ctx, ticket)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateReference) {
			return err
		}
		lastErr = err
		s.logger.Warn("reference code collision; retrying",
			zap.String("reference_code", ref),
			zap.Int("attempt", attempt))
	}
	return &domain.PersistenceError{
		Op:  "reserve reference code",
		Err: fmt.Errorf("gave up after %d attempts: %w", maxReferenceAttempts, lastErr),
	}
}

// Transition applies one request to a ticket under optimistic concurrency.
func (s *TicketService) Transition(ctx context.Context, ticketID string, req lifecycle.TransitionRequest) (*TransitionResult, error) {
	result, err := s.transition(ctx, ticketID, req)
	if err != nil {
		code := apperrors.ToDomainError(err).Code
		s.metrics.RecordTransitionFailure(code)
		s.logger.Info("transition refused",
			zap.String("ticket_id", ticketID),
			zap.String("requested_status", string(req.Status)),
			zap.String("actor_id", req.Actor.ID),
			zap.String("code", code),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (s *TicketService) transition(ctx context.Context, ticketID string, req lifecycle.TransitionRequest) (*TransitionResult, error) {
	if strings.TrimSpace(req.Actor.ID) == "" {
		return nil, fmt.Errorf("%w: actor identity required", domain.ErrUnauthorized)
	}
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	out, err := s.engine.Apply(current, req)
	if err != nil {
		return nil, err
	}
	if !out.Changed {
		view, err := s.buildView(ctx, current, false)
		if err != nil {
			return nil, err
		}
		return &TransitionResult{View: view}, nil
	}

	if err := s.tickets.Save(ctx, out.Ticket, current.Version, out.Entry); err != nil {
		return nil, err
	}

	next := out.Ticket
	if out.Entry != nil {
		s.metrics.RecordTransition(string(next.Category), string(out.Entry.FromStatus), string(out.Entry.ToStatus))
		s.logger.Info("ticket transitioned",
			zap.String("ticket_id", next.ID),
			zap.String("from", string(out.Entry.FromStatus)),
			zap.String("to", string(out.Entry.ToStatus)),
			zap.String("actor_id", req.Actor.ID),
			zap.Int64("version", next.Version))
		s.publishEvent(ctx, next, req.Actor, events.EventTicketStatusChanged, events.TicketStatusChangedPayload{
			OldStatus: out.Entry.FromStatus,
			NewStatus: out.Entry.ToStatus,
			Reason:    out.Entry.Reason,
		})
	}
	if out.Reassigned && next.AssignedToID != nil {
		s.publishEvent(ctx, next, req.Actor, events.EventTicketAssigned, events.TicketAssignedPayload{
			AssigneeID:   *next.AssignedToID,
			AssigneeName: next.AssignedToName,
		})
	}
	if out.LocationOverridden && out.Geofence != nil {
		s.logger.Warn("work location accepted by override",
			zap.String("ticket_id", next.ID),
			zap.String("actor_id", req.Actor.ID),
			zap.Float64("distance_meters", out.Geofence.DistanceMeters),
			zap.String("reason", out.Geofence.Reason))
		s.publishEvent(ctx, next, req.Actor, events.EventTicketLocationOverride, events.TicketLocationOverriddenPayload{
			DistanceMeters:  next.LocationDistance,
			ToleranceMeters: out.Geofence.ToleranceMeters,
			Reason:          out.Geofence.Reason,
		})
	}

	view, err := s.buildView(ctx, next, false)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{View: view, Entry: out.Entry, Changed: true}, nil
}

// GetTicket loads a visible ticket with its derived SLA fields.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string, includeHistory bool) (*TicketView, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, ticket, includeHistory)
}

// ListTickets returns one page of visible tickets and the total match count.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]TicketView, int, error) {
	tickets, total, err := s.tickets.List(ctx, repository.TicketFilter{
		Category:       filter.Category,
		Statuses:       filter.Statuses,
		PriorityLevels: filter.PriorityLevels,
		AssigneeID:     filter.AssigneeID,
		RequesterID:    filter.RequesterID,
		SearchTerm:     filter.SearchTerm,
		Limit:          filter.Limit,
		Offset:         filter.Offset,
	})
	if err != nil {
		return nil, 0, err
	}
	now := s.now().UTC()
	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		views = append(views, s.deriveView(now, &tickets[i]))
	}
	return views, total, nil
}

// Retire hides a finished or abandoned ticket and returns its final state.
// The row and its ledger stay.
func (s *TicketService) Retire(ctx context.Context, ticketID string, actor domain.Actor) (*TicketView, error) {
	if !actor.Role.CanOverride() {
		return nil, apperrors.NewForbidden("retiring tickets requires supervisor or admin")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !workflow.IsRetirable(ticket.Status) {
		return nil, &domain.TicketStillActiveError{Status: ticket.Status}
	}

	expected := ticket.Version
	now := s.now().UTC()
	by := actor.ID
	ticket.Retired = true
	ticket.RetiredAt = &now
	ticket.RetiredBy = &by
	ticket.UpdatedAt = now
	if err := s.tickets.Save(ctx, ticket, expected, nil); err != nil {
		return nil, err
	}

	s.metrics.RecordTicketRetired()
	s.logger.Info("ticket retired",
		zap.String("ticket_id", ticket.ID),
		zap.String("status", string(ticket.Status)),
		zap.String("actor_id", actor.ID))
	s.publishEvent(ctx, ticket, actor, events.EventTicketRetired, events.TicketRetiredPayload{Status: ticket.Status})
	return s.buildView(ctx, ticket, false)
}

// ListHistory reads the status ledger of a visible ticket.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string, order domain.SortOrder) ([]domain.StatusHistoryEntry, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	if order != domain.SortAsc {
		order = domain.SortDesc
	}
	return s.history.ListByTicket(ctx, ticketID, order)
}

// AppendCorrection records an administrative note against the ledger. The
// status does not change; the entry repeats the current status on both sides.
func (s *TicketService) AppendCorrection(ctx context.Context, ticketID string, actor domain.Actor, reason string) (*domain.StatusHistoryEntry, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("ledger corrections require admin")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("correction reason is required", map[string]any{"field": "reason"})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	entry := &domain.StatusHistoryEntry{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		FromStatus: ticket.Status,
		ToStatus:   ticket.Status,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Kind:       domain.HistoryKindCorrection,
		Reason:     reason,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("ledger correction appended",
		zap.String("ticket_id", ticket.ID),
		zap.String("entry_id", entry.ID),
		zap.String("actor_id", actor.ID))
	s.publishEvent(ctx, ticket, actor, events.EventTicketHistoryCorrection, events.TicketHistoryCorrectedPayload{
		EntryID: entry.ID,
		Reason:  reason,
	})
	return entry, nil
}

// AllowedTransitions lists the statuses reachable from from for UI hinting.
func (s *TicketService) AllowedTransitions(category domain.Category, from domain.TicketStatus) ([]domain.TicketStatus, error) {
	if !category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": string(category)})
	}
	if !s.engine.Machine.ValidStatus(category, from) {
		return nil, apperrors.NewValidationError("unknown status for category", map[string]any{
			"category": string(category),
			"status":   string(from),
		})
	}
	return s.engine.Machine.Allowed(category, from), nil
}

func (s *TicketService) buildView(ctx context.Context, ticket *domain.Ticket, includeHistory bool) (*TicketView, error) {
	view := s.deriveView(s.now().UTC(), ticket)
	if includeHistory {
		history, err := s.history.ListByTicket(ctx, ticket.ID, domain.SortDesc)
		if err != nil {
			return nil, err
		}
		view.History = history
	}
	return &view, nil
}

func (s *TicketService) deriveView(now time.Time, ticket *domain.Ticket) TicketView {
	return TicketView{
		Ticket:                   ticket,
		Health:                   s.clock.ClassifyTicket(now, ticket),
		ResponseHoursRemaining:   sla.HoursRemaining(now, ticket.SLAResponseDeadline, ticket.ActualResponseAt),
		ResolutionHoursRemaining: sla.HoursRemaining(now, ticket.SLAResolutionDeadline, ticket.ActualResolutionAt),
		CanReopen:                ticket.Status == domain.StatusRejected,
		CanClose:                 ticket.Status == domain.StatusApproved,
		AllowedTransitions:       s.engine.Machine.Allowed(ticket.Category, ticket.Status),
	}
}

func (s *TicketService) publishEvent(ctx context.Context, ticket *domain.Ticket, actor domain.Actor, eventType events.EventType, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		TicketID:      ticket.ID,
		ReferenceCode: ticket.ReferenceCode,
		Actor:         events.ActorFrom(actor),
		Timestamp:     s.now().UTC(),
		Payload:       payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(eventType)),
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
}
