package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

// StatusHistoryRepository is the append-only status ledger. It deliberately
// has no update or delete operation.
type StatusHistoryRepository interface {
	Append(ctx context.Context, entry *domain.StatusHistoryEntry) error
	ListByTicket(ctx context.Context, ticketID string, order domain.SortOrder) ([]domain.StatusHistoryEntry, error)
}

type statusHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewStatusHistoryRepository builds repository.
func NewStatusHistoryRepository(pool *pgxpool.Pool) StatusHistoryRepository {
	return &statusHistoryRepository{pool: pool}
}

func (r *statusHistoryRepository) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	if !validTicketID(entry.TicketID) {
		return &domain.PersistenceError{Op: "append history", Err: domain.ErrNotFound}
	}
	if err := insertHistory(ctx, r.pool, entry); err != nil {
		return &domain.PersistenceError{Op: "append history", Err: err}
	}
	return nil
}

func (r *statusHistoryRepository) ListByTicket(ctx context.Context, ticketID string, order domain.SortOrder) ([]domain.StatusHistoryEntry, error) {
	query := `
        SELECT id, ticket_id, from_status, to_status, actor_id, actor_name, kind, reason, created_at
        FROM status_history WHERE ticket_id=$1 ORDER BY created_at DESC, seq DESC`
	if order == domain.SortAsc {
		query = `
        SELECT id, ticket_id, from_status, to_status, actor_id, actor_name, kind, reason, created_at
        FROM status_history WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	}
	if !validTicketID(ticketID) {
		return []domain.StatusHistoryEntry{}, nil
	}
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list history", Err: err}
	}
	defer rows.Close()

	result := []domain.StatusHistoryEntry{}
	for rows.Next() {
		var (
			entry          domain.StatusHistoryEntry
			from, to, kind string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&from,
			&to,
			&entry.ActorID,
			&entry.ActorName,
			&kind,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, &domain.PersistenceError{Op: "scan history", Err: err}
		}
		entry.FromStatus = domain.TicketStatus(from)
		entry.ToStatus = domain.TicketStatus(to)
		entry.Kind = domain.HistoryKind(kind)
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list history", Err: err}
	}
	return result, nil
}

func insertHistory(ctx context.Context, q querier, entry *domain.StatusHistoryEntry) error {
	const query = `
        INSERT INTO status_history (id, ticket_id, from_status, to_status, actor_id, actor_name, kind, reason, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := q.Exec(ctx, query,
		entry.ID,
		entry.TicketID,
		string(entry.FromStatus),
		string(entry.ToStatus),
		entry.ActorID,
		entry.ActorName,
		string(entry.Kind),
		entry.Reason,
		entry.CreatedAt,
	)
	return err
}
