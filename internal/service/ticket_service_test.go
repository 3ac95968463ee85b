package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
	"github.com/fieldops/maintenance-ticketing/internal/events"
	"github.com/fieldops/maintenance-ticketing/internal/lifecycle"
	"github.com/fieldops/maintenance-ticketing/internal/observability"
	"github.com/fieldops/maintenance-ticketing/internal/refcode"
	"github.com/fieldops/maintenance-ticketing/internal/repository"
	"github.com/fieldops/maintenance-ticketing/internal/sla"
	"github.com/fieldops/maintenance-ticketing/internal/workflow"
	apperrors "github.com/fieldops/maintenance-ticketing/pkg/util/errorutil"
)

var (
	requester  = domain.Actor{ID: "req-1", Name: "Rina", Role: domain.RoleRequester}
	technician = domain.Actor{ID: "tech-1", Name: "Tono", Role: domain.RoleTechnician}
	supervisor = domain.Actor{ID: "sup-1", Name: "Sari", Role: domain.RoleSupervisor}
	admin      = domain.Actor{ID: "adm-1", Name: "Adi", Role: domain.RoleAdmin}
	site       = domain.Coordinate{Lat: -6.2000, Lng: 106.8166}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc    *TicketService
	store  *repository.MemoryStore
	clock  *fakeClock
	engine *lifecycle.Engine
	events *eventRecorder
	deps   TicketDependencies
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	store := repository.NewMemoryStore()
	engine := lifecycle.New(workflow.NewMachine(nil), 50)
	engine.Now = clock.Now

	recorder := &eventRecorder{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketAssigned,
		events.EventTicketLocationOverride,
		events.EventTicketRetired,
		events.EventTicketHistoryCorrection,
	} {
		dispatcher.Subscribe(et, recorder.handle)
	}

	deps := TicketDependencies{
		TicketRepo:  store,
		HistoryRepo: store,
		References:  refcode.NewGenerator(refcode.NewMemorySequencer()),
		Engine:      engine,
		Clock:       sla.NewClock(sla.DefaultMatrix(), 0.2),
		Dispatcher:  dispatcher,
		Metrics:     observability.NewMetrics(),
		Now:         clock.Now,
	}
	return &testEnv{
		svc:    NewTicketService(deps),
		store:  store,
		clock:  clock,
		engine: engine,
		events: recorder,
		deps:   deps,
	}
}

func (e *testEnv) createCM(t *testing.T, assigned bool) *domain.Ticket {
	t.Helper()
	loc := site
	input := CreateTicketInput{
		Category:         domain.CategoryCM,
		PriorityLevel:    1,
		Title:            "Chiller leaking",
		LocationRef:      "Tower A / Level 3",
		ExpectedLocation: &loc,
	}
	if assigned {
		input.Assignment = &lifecycle.Assignment{ID: technician.ID, Name: technician.Name}
	}
	view, err := e.svc.CreateTicket(context.Background(), requester, input)
	require.NoError(t, err)
	return view.Ticket
}

func (e *testEnv) move(t *testing.T, id string, actor domain.Actor, status domain.TicketStatus) *TransitionResult {
	t.Helper()
	res, err := e.svc.Transition(context.Background(), id, lifecycle.TransitionRequest{Status: status, Actor: actor})
	require.NoError(t, err)
	return res
}

func strPtr(s string) *string { return &s }

func TestCreateTicketComputesDeadlinesAndReference(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.createCM(t, false)

	assert.Equal(t, "CM-20240301-0001", ticket.ReferenceCode)
	assert.Equal(t, domain.StatusOpen, ticket.Status)
	assert.Equal(t, env.clock.Now().Add(time.Hour), ticket.SLAResponseDeadline)
	assert.Equal(t, env.clock.Now().Add(4*time.Hour), ticket.SLAResolutionDeadline)
	assert.Equal(t, int64(1), ticket.Version)
	assert.Equal(t, requester.ID, ticket.RequesterID)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, env.events.types())

	second := env.createCM(t, false)
	assert.Equal(t, "CM-20240301-0002", second.ReferenceCode)
}

func TestCreateTicketInitialStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assigned := env.createCM(t, true)
	assert.Equal(t, domain.StatusAssigned, assigned.Status)
	require.NotNil(t, assigned.AssignedAt)
	assert.Equal(t, technician.ID, *assigned.AssignedToID)

	pmDraft, err := env.svc.CreateTicket(ctx, requester, CreateTicketInput{Category: domain.CategoryPM, PriorityLevel: 4, Draft: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, pmDraft.Ticket.Status)
	assert.Equal(t, "PM-20240301-0001", pmDraft.Ticket.ReferenceCode)

	cmDraft, err := env.svc.CreateTicket(ctx, requester, CreateTicketInput{Category: domain.CategoryCM, PriorityLevel: 4, Draft: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, cmDraft.Ticket.Status)
}

func TestCreateTicketRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateTicket(ctx, requester, CreateTicketInput{Category: domain.CategoryCM, PriorityLevel: 7})
	var unknown *domain.UnknownPriorityLevelError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 7, unknown.Level)

	_, err = env.svc.CreateTicket(ctx, requester, CreateTicketInput{Category: "xx", PriorityLevel: 1})
	assert.Equal(t, apperrors.CodeValidation, apperrors.ToDomainError(err).Code)

	bad := domain.Coordinate{Lat: 120, Lng: 0}
	_, err = env.svc.CreateTicket(ctx, requester, CreateTicketInput{Category: domain.CategoryCM, PriorityLevel: 1, ExpectedLocation: &bad})
	assert.Equal(t, apperrors.CodeValidation, apperrors.ToDomainError(err).Code)

	_, err = env.svc.CreateTicket(ctx, domain.Actor{}, CreateTicketInput{Category: domain.CategoryCM, PriorityLevel: 1})
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.ToDomainError(err).Code)
}

type collidingRepo struct {
	repository.TicketRepository
	failures int
	calls    int
}

func (r *collidingRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.calls++
	if r.calls <= r.failures {
		return repository.ErrDuplicateReference
	}
	return r.TicketRepository.Create(ctx, ticket)
}

func TestCreateTicketRetriesReferenceCollisions(t *testing.T) {
	env := newTestEnv(t)
	repo := &collidingRepo{TicketRepository: env.store, failures: 2}
	deps := env.deps
	deps.TicketRepo = repo
	svc := NewTicketService(deps)

	view, err := svc.CreateTicket(context.Background(), requester, CreateTicketInput{Category: domain.CategoryCM, PriorityLevel: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls)
	assert.Equal(t, "CM-20240301-0003", view.Ticket.ReferenceCode)

	repo.calls, repo.failures = 0, 3
	_, err = svc.CreateTicket(context.Background(), requester, CreateTicketInput{Category: domain.CategoryCM, PriorityLevel: 2})
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, repository.ErrDuplicateReference)
	assert.Equal(t, maxReferenceAttempts, repo.calls)
}

func TestFullLifecycleWritesLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createCM(t, false)

	res, err := env.svc.Transition(ctx, ticket.ID, lifecycle.TransitionRequest{
		Actor:      supervisor,
		Assignment: &lifecycle.Assignment{ID: technician.ID, Name: technician.Name},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, res.View.Ticket.Status)

	env.clock.Advance(20 * time.Minute)
	env.move(t, ticket.ID, technician, domain.StatusAcknowledged)
	env.move(t, ticket.ID, technician, domain.StatusOnProgress)

	env.clock.Advance(time.Hour)
	res, err = env.svc.Transition(ctx, ticket.ID, lifecycle.TransitionRequest{
		Status: domain.StatusPendingReview,
		Actor:  technician,
		Evidence: &lifecycle.Evidence{
			BeforePhoto:         strPtr("before.jpg"),
			AfterPhoto:          strPtr("after.jpg"),
			TechnicianNotes:     strPtr("replaced gasket"),
			TechnicianSignature: strPtr("sig"),
			WorkLocation:        &domain.Coordinate{Lat: site.Lat + 0.0001, Lng: site.Lng},
		},
		Costs: &lifecycle.CostUpdate{Labor: floatPtr(100), SpareParts: floatPtr(25.5)},
	})
	require.NoError(t, err)
	assert.True(t, res.View.Ticket.LocationVerified)
	require.NotNil(t, res.View.Ticket.TotalCost)
	assert.InDelta(t, 125.5, *res.View.Ticket.TotalCost, 1e-9)

	approved := env.move(t, ticket.ID, supervisor, domain.StatusApproved)
	assert.True(t, approved.View.CanClose)
	assert.False(t, approved.View.CanReopen)

	closed := env.move(t, ticket.ID, supervisor, domain.StatusClosed)
	require.NotNil(t, closed.View.Ticket.CompletionRecordID)
	assert.Empty(t, closed.View.AllowedTransitions)
	assert.Equal(t, int64(7), closed.View.Ticket.Version)

	view, err := env.svc.GetTicket(ctx, ticket.ID, true)
	require.NoError(t, err)
	require.Len(t, view.History, 6)
	assert.Equal(t, domain.StatusApproved, view.History[0].FromStatus)
	assert.Equal(t, domain.StatusClosed, view.History[0].ToStatus)
	assert.Equal(t, domain.StatusOpen, view.History[5].FromStatus)

	asc, err := env.svc.ListHistory(ctx, ticket.ID, domain.SortAsc)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, asc[0].ToStatus)
	for i := 1; i < len(asc); i++ {
		assert.Equal(t, asc[i-1].ToStatus, asc[i].FromStatus, "ledger chain broken at %d", i)
	}

	assert.Equal(t, domain.SLAOnTime, view.Health.Response)
	assert.Nil(t, view.ResponseHoursRemaining)
}

func floatPtr(v float64) *float64 { return &v }

func TestTransitionToCurrentStatusIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createCM(t, true)

	res, err := env.svc.Transition(ctx, ticket.ID, lifecycle.TransitionRequest{Status: domain.StatusAssigned, Actor: technician})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Nil(t, res.Entry)

	history, err := env.svc.ListHistory(ctx, ticket.ID, domain.SortDesc)
	require.NoError(t, err)
	assert.Empty(t, history)

	stored, err := env.store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestInvalidTransitionLeavesTicketUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createCM(t, false)

	_, err := env.svc.Transition(ctx, ticket.ID, lifecycle.TransitionRequest{Status: domain.StatusClosed, Actor: supervisor})
	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []domain.TicketStatus{domain.StatusAssigned, domain.StatusCancelled}, invalid.Allowed)

	stored, err := env.store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	history, err := env.svc.ListHistory(ctx, ticket.ID, domain.SortDesc)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTransitionUnknownTicket(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Transition(context.Background(), "missing", lifecycle.TransitionRequest{Status: domain.StatusAssigned, Actor: supervisor})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransitionRequiresActor(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.createCM(t, false)
	_, err := env.svc.Transition(context.Background(), ticket.ID, lifecycle.TransitionRequest{Status: domain.StatusCancelled})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.ToDomainError(err).Code)
}

func TestTransitionToAssignedRequiresAssignee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createCM(t, false)

	_, err := env.svc.Transition(ctx, ticket.ID, lifecycle.TransitionRequest{Status: domain.StatusAssigned, Actor: supervisor})
	assert.ErrorIs(t, err, domain.ErrAssigneeRequired)

	stored, err := env.store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, stored.Status)
	assert.Nil(t, stored.AssignedAt)
	assert.Nil(t, stored.AssignedToID)

	res, err := env.svc.Transition(ctx, ticket.ID, lifecycle.TransitionRequest{
		Status:     domain.StatusAssigned,
		Actor:      supervisor,
		Assignment: &lifecycle.Assignment{ID: technician.ID, Name: technician.Name},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, res.View.Ticket.Status)
	assert.Equal(t, technician.ID, *res.View.Ticket.AssignedToID)
}

func TestLocationOverrideIsRecordedAndPublished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createCM(t, true)
	far := &domain.Coordinate{Lat: site.Lat + 0.01, Lng: site.Lng}

	_, err := env.svc.Transition(ctx, ticket.ID, lifecycle.TransitionRequest{
		Status:   domain.StatusAcknowledged,
		Actor:    technician,
		Evidence: &lifecycle.Evidence{WorkLocation: far},
	})
	var locErr *domain.LocationVerificationFailedError
	require.ErrorAs(t, err, &locErr)

	_, err = env.svc.Transition(ctx, ticket.ID, lifecycle.TransitionRequest{
		Status:        domain.StatusAcknowledged,
		Actor:         technician,
		Evidence:      &lifecycle.Evidence{WorkLocation: far},
		ForceLocation: true,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.ToDomainError(err).Code)

	res, err := env.svc.Transition(ctx, ticket.ID, lifecycle.TransitionRequest{
		Status:        domain.StatusAcknowledged,
		Actor:         supervisor,
		Evidence:      &lifecycle.Evidence{WorkLocation: far},
		ForceLocation: true,
	})
	require.NoError(t, err)
	assert.True(t, res.View.Ticket.LocationOverride)
	assert.Equal(t, supervisor.ID, *res.View.Ticket.LocationOverrideBy)
	assert.Contains(t, env.events.types(), events.EventTicketLocationOverride)
}

// barrierRepo holds every reader until all expected readers have loaded the
// ticket, so each validates against the same version.
type barrierRepo struct {
	repository.TicketRepository
	reads sync.WaitGroup
}

func (b *barrierRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := b.TicketRepository.GetByID(ctx, id)
	b.reads.Done()
	b.reads.Wait()
	return t, err
}

func TestConcurrentTransitionsExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.createCM(t, true)

	barrier := &barrierRepo{TicketRepository: env.store}
	barrier.reads.Add(2)
	deps := env.deps
	deps.TicketRepo = barrier
	svc := NewTicketService(deps)

	targets := []domain.TicketStatus{domain.StatusAcknowledged, domain.StatusCancelled}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target domain.TicketStatus) {
			defer wg.Done()
			_, errs[i] = svc.Transition(context.Background(), ticket.ID, lifecycle.TransitionRequest{Status: target, Actor: supervisor})
		}(i, target)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrConcurrentModification):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	history, err := env.store.ListByTicket(context.Background(), ticket.ID, domain.SortAsc)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusAssigned, history[0].FromStatus)

	stored, err := env.store.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, history[0].ToStatus, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestSLAHealthChangesWithoutWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createCM(t, false)

	env.clock.Advance(30 * time.Minute)
	view, err := env.svc.GetTicket(ctx, ticket.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAOnTime, view.Health.Response)
	require.NotNil(t, view.ResponseHoursRemaining)
	assert.InDelta(t, 0.5, *view.ResponseHoursRemaining, 1e-9)

	env.clock.Advance(20 * time.Minute)
	view, err = env.svc.GetTicket(ctx, ticket.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAAtRisk, view.Health.Response)

	env.clock.Advance(70 * time.Minute)
	view, err = env.svc.GetTicket(ctx, ticket.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.SLABreached, view.Health.Response)
	assert.Equal(t, domain.SLABreached, view.Health.Overall)
	assert.InDelta(t, -1.0, *view.ResponseHoursRemaining, 1e-9)

	stored, err := env.store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestRetireOnlyFinishedTickets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	active := env.createCM(t, true)

	_, err := env.svc.Retire(ctx, active.ID, supervisor)
	var still *domain.TicketStillActiveError
	require.ErrorAs(t, err, &still)
	assert.Equal(t, domain.StatusAssigned, still.Status)

	_, err = env.svc.Retire(ctx, active.ID, technician)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.ToDomainError(err).Code)

	env.move(t, active.ID, supervisor, domain.StatusCancelled)
	retired, err := env.svc.Retire(ctx, active.ID, admin)
	require.NoError(t, err)
	assert.True(t, retired.Ticket.Retired)
	assert.Equal(t, admin.ID, *retired.Ticket.RetiredBy)
	assert.Equal(t, domain.StatusCancelled, retired.Ticket.Status)

	_, err = env.svc.GetTicket(ctx, active.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.svc.ListHistory(ctx, active.ID, domain.SortDesc)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, total, err := env.svc.ListTickets(ctx, TicketListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	history, err := env.store.ListByTicket(ctx, active.ID, domain.SortAsc)
	require.NoError(t, err)
	assert.Len(t, history, 1, "retirement writes no ledger entry and deletes nothing")
	assert.Contains(t, env.events.types(), events.EventTicketRetired)
}

func TestAppendCorrection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createCM(t, true)

	_, err := env.svc.AppendCorrection(ctx, ticket.ID, supervisor, "wrong technician recorded")
	assert.Equal(t, apperrors.CodeForbidden, apperrors.ToDomainError(err).Code)

	_, err = env.svc.AppendCorrection(ctx, ticket.ID, admin, "   ")
	assert.Equal(t, apperrors.CodeValidation, apperrors.ToDomainError(err).Code)

	entry, err := env.svc.AppendCorrection(ctx, ticket.ID, admin, "wrong technician recorded")
	require.NoError(t, err)
	assert.Equal(t, domain.HistoryKindCorrection, entry.Kind)
	assert.Equal(t, domain.StatusAssigned, entry.FromStatus)
	assert.Equal(t, domain.StatusAssigned, entry.ToStatus)

	history, err := env.svc.ListHistory(ctx, ticket.ID, domain.SortDesc)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)

	stored, err := env.store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestListTicketsFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createCM(t, false)
	env.clock.Advance(time.Minute)
	assigned := env.createCM(t, true)
	env.clock.Advance(time.Minute)
	_, err := env.svc.CreateTicket(ctx, requester, CreateTicketInput{Category: domain.CategoryPM, PriorityLevel: 3, Title: "Quarterly AHU service"})
	require.NoError(t, err)

	all, total, err := env.svc.ListTickets(ctx, TicketListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 2)
	assert.Equal(t, domain.CategoryPM, all[0].Ticket.Category)

	assignee := technician.ID
	mine, total, err := env.svc.ListTickets(ctx, TicketListFilter{AssigneeID: &assignee})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, assigned.ID, mine[0].Ticket.ID)
	assert.Equal(t, domain.SLAOnTime, mine[0].Health.Overall)

	cm := domain.CategoryCM
	cms, total, err := env.svc.ListTickets(ctx, TicketListFilter{Category: &cm, PriorityLevels: []int{1}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, cms, 2)

	search := "ahu"
	found, _, err := env.svc.ListTickets(ctx, TicketListFilter{SearchTerm: &search})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "PM-20240301-0001", found[0].Ticket.ReferenceCode)
}

func TestAllowedTransitions(t *testing.T) {
	env := newTestEnv(t)

	allowed, err := env.svc.AllowedTransitions(domain.CategoryPM, domain.StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, []domain.TicketStatus{domain.StatusOpen, domain.StatusCancelled}, allowed)

	_, err = env.svc.AllowedTransitions(domain.CategoryCM, domain.StatusDraft)
	assert.Equal(t, apperrors.CodeValidation, apperrors.ToDomainError(err).Code)

	_, err = env.svc.AllowedTransitions("zz", domain.StatusOpen)
	assert.Error(t, err)
}
