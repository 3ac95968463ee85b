package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

const (
	uniqueViolation        = "23505"
	referenceCodeUniqueKey = "tickets_reference_code_key"
)

// ErrDuplicateReference is returned when a reference code is already taken.
var ErrDuplicateReference = errors.New("reference code already in use")

// TicketFilter captures list parameters.
type TicketFilter struct {
	Category       *domain.Category
	Statuses       []domain.TicketStatus
	PriorityLevels []int
	AssigneeID     *string
	RequesterID    *string
	SearchTerm     *string
	IncludeRetired bool
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	// Save writes ticket only if the stored version still equals
	// expectedVersion, appending entry (when non-nil) in the same transaction.
	// On success ticket.Version is advanced.
	Save(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, entry *domain.StatusHistoryEntry) error
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var ticketColumns = []string{
	"id", "reference_code", "category", "priority_level", "severity", "title", "description",
	"requester_id", "requester_name", "location_ref",
	"expected_lat", "expected_lng", "work_lat", "work_lng", "work_accuracy",
	"location_verified", "location_distance", "location_override", "location_override_by",
	"status", "previous_status", "status_changed_at",
	"sla_response_deadline", "sla_resolution_deadline", "actual_response_at", "actual_resolution_at",
	"assigned_to_id", "assigned_to_name", "assigned_at", "acknowledged_at", "started_at", "completed_at", "closed_at",
	"before_photo", "after_photo", "technician_signature", "technician_notes",
	"labor_cost", "material_cost", "spare_parts_cost", "total_cost",
	"rejection_count", "last_rejection_reason", "completion_record_id",
	"retired", "retired_at", "retired_by",
	"version", "created_at", "updated_at",
}

// Columns never rewritten by Save. version is bumped by the statement itself.
var immutableTicketColumns = map[string]bool{
	"id":                      true,
	"reference_code":          true,
	"category":                true,
	"requester_id":            true,
	"sla_response_deadline":   true,
	"sla_resolution_deadline": true,
	"version":                 true,
	"created_at":              true,
}

var (
	selectTicketSQL = "SELECT " + strings.Join(ticketColumns, ", ") + " FROM tickets"
	insertTicketSQL = buildInsertTicketSQL()
	updateTicketSQL = buildUpdateTicketSQL()
)

func buildInsertTicketSQL() string {
	placeholders := make([]string, len(ticketColumns))
	for i := range ticketColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO tickets (%s) VALUES (%s)",
		strings.Join(ticketColumns, ", "), strings.Join(placeholders, ","))
}

func buildUpdateTicketSQL() string {
	sets := []string{}
	n := 0
	for _, col := range ticketColumns {
		if immutableTicketColumns[col] {
			continue
		}
		n++
		sets = append(sets, fmt.Sprintf("%s=$%d", col, n))
	}
	sets = append(sets, "version = version + 1")
	return fmt.Sprintf("UPDATE tickets SET %s WHERE id=$%d AND version=$%d AND NOT retired",
		strings.Join(sets, ", "), n+1, n+2)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if _, err := r.pool.Exec(ctx, insertTicketSQL, ticketArgs(ticket)...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == referenceCodeUniqueKey {
			return ErrDuplicateReference
		}
		return &domain.PersistenceError{Op: "insert ticket", Err: err}
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !validTicketID(id) {
		return nil, domain.ErrNotFound
	}
	ticket, err := scanTicket(r.pool.QueryRow(ctx, selectTicketSQL+" WHERE id=$1 AND NOT retired", id))
	if err != nil {
		return nil, wrapQueryErr("get ticket", err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if !filter.IncludeRetired {
		clauses = append(clauses, "NOT retired")
	}
	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assigned_to_id=$%d", len(args)))
	}
	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.PriorityLevels) > 0 {
		placeholders := make([]string, len(filter.PriorityLevels))
		for i, level := range filter.PriorityLevels {
			args = append(args, level)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority_level IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(reference_code) LIKE %s OR LOWER(title) LIKE %s)", placeholder, placeholder))
	}

	where := strings.Join(clauses, " AND ")

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC, id LIMIT %d OFFSET %d`,
		selectTicketSQL, where, limit, offset)

	var (
		total  int
		result []domain.Ticket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.pool.QueryRow(gctx, "SELECT COUNT(*) FROM tickets WHERE "+where, args...).Scan(&total); err != nil {
			return &domain.PersistenceError{Op: "count tickets", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, query, args...)
		if err != nil {
			return &domain.PersistenceError{Op: "list tickets", Err: err}
		}
		defer rows.Close()

		for rows.Next() {
			ticket, err := scanTicket(rows)
			if err != nil {
				return &domain.PersistenceError{Op: "scan ticket", Err: err}
			}
			result = append(result, *ticket)
		}
		if err := rows.Err(); err != nil {
			return &domain.PersistenceError{Op: "list tickets", Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *ticketRepository) Save(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, entry *domain.StatusHistoryEntry) error {
	if !validTicketID(ticket.ID) {
		return domain.ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &domain.PersistenceError{Op: "begin save", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	args := make([]any, 0, len(ticketColumns)+2)
	for i, value := range ticketArgs(ticket) {
		if immutableTicketColumns[ticketColumns[i]] {
			continue
		}
		args = append(args, value)
	}
	args = append(args, ticket.ID, expectedVersion)

	cmd, err := tx.Exec(ctx, updateTicketSQL, args...)
	if err != nil {
		return &domain.PersistenceError{Op: "update ticket", Err: err}
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1 AND NOT retired)`, ticket.ID).Scan(&exists); err != nil {
			return &domain.PersistenceError{Op: "check ticket", Err: err}
		}
		return staleSaveError(exists)
	}

	if entry != nil {
		if err := insertHistory(ctx, tx, entry); err != nil {
			return &domain.PersistenceError{Op: "append history", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.PersistenceError{Op: "commit save", Err: err}
	}
	ticket.Version = expectedVersion + 1
	return nil
}

// staleSaveError explains a version-guarded update that matched no row.
func staleSaveError(exists bool) error {
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConcurrentModification
}

// validTicketID reports whether id can match the UUID primary key. Anything
// else would be rejected by Postgres with invalid_text_representation.
func validTicketID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func ticketArgs(t *domain.Ticket) []any {
	var previous *string
	if t.PreviousStatus != nil {
		p := string(*t.PreviousStatus)
		previous = &p
	}
	expLat, expLng := coordinateParts(t.ExpectedLocation)
	workLat, workLng := coordinateParts(t.WorkLocation)
	return []any{
		t.ID, t.ReferenceCode, string(t.Category), t.PriorityLevel, t.Severity, t.Title, t.Description,
		t.RequesterID, t.RequesterName, t.LocationRef,
		expLat, expLng, workLat, workLng, t.WorkLocationAccuracy,
		t.LocationVerified, t.LocationDistance, t.LocationOverride, t.LocationOverrideBy,
		string(t.Status), previous, t.StatusChangedAt,
		t.SLAResponseDeadline, t.SLAResolutionDeadline, t.ActualResponseAt, t.ActualResolutionAt,
		t.AssignedToID, t.AssignedToName, t.AssignedAt, t.AcknowledgedAt, t.StartedAt, t.CompletedAt, t.ClosedAt,
		t.BeforePhoto, t.AfterPhoto, t.TechnicianSignature, t.TechnicianNotes,
		t.LaborCost, t.MaterialCost, t.SparePartsCost, t.TotalCost,
		t.RejectionCount, t.LastRejectionReason, t.CompletionRecordID,
		t.Retired, t.RetiredAt, t.RetiredBy,
		t.Version, t.CreatedAt, t.UpdatedAt,
	}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t                domain.Ticket
		category, status string
		previous         *string
		expLat, expLng   *float64
		workLat, workLng *float64
	)
	if err := row.Scan(
		&t.ID, &t.ReferenceCode, &category, &t.PriorityLevel, &t.Severity, &t.Title, &t.Description,
		&t.RequesterID, &t.RequesterName, &t.LocationRef,
		&expLat, &expLng, &workLat, &workLng, &t.WorkLocationAccuracy,
		&t.LocationVerified, &t.LocationDistance, &t.LocationOverride, &t.LocationOverrideBy,
		&status, &previous, &t.StatusChangedAt,
		&t.SLAResponseDeadline, &t.SLAResolutionDeadline, &t.ActualResponseAt, &t.ActualResolutionAt,
		&t.AssignedToID, &t.AssignedToName, &t.AssignedAt, &t.AcknowledgedAt, &t.StartedAt, &t.CompletedAt, &t.ClosedAt,
		&t.BeforePhoto, &t.AfterPhoto, &t.TechnicianSignature, &t.TechnicianNotes,
		&t.LaborCost, &t.MaterialCost, &t.SparePartsCost, &t.TotalCost,
		&t.RejectionCount, &t.LastRejectionReason, &t.CompletionRecordID,
		&t.Retired, &t.RetiredAt, &t.RetiredBy,
		&t.Version, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Category = domain.Category(category)
	t.Status = domain.TicketStatus(status)
	if previous != nil {
		p := domain.TicketStatus(*previous)
		t.PreviousStatus = &p
	}
	t.ExpectedLocation = coordinateFrom(expLat, expLng)
	t.WorkLocation = coordinateFrom(workLat, workLng)
	return &t, nil
}

func coordinateParts(c *domain.Coordinate) (*float64, *float64) {
	if c == nil {
		return nil, nil
	}
	lat, lng := c.Lat, c.Lng
	return &lat, &lng
}

func coordinateFrom(lat, lng *float64) *domain.Coordinate {
	if lat == nil || lng == nil {
		return nil
	}
	return &domain.Coordinate{Lat: *lat, Lng: *lng}
}

func wrapQueryErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
