package repository

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

// MemoryStore implements TicketRepository and StatusHistoryRepository in
// process. It is used when no database is configured and in tests.
type MemoryStore struct {
	mu         sync.Mutex
	tickets    map[string]*domain.Ticket
	references map[string]string
	history    map[string][]domain.StatusHistoryEntry
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:    make(map[string]*domain.Ticket),
		references: make(map[string]string),
		history:    make(map[string][]domain.StatusHistoryEntry),
	}
}

var errDuplicateID = errors.New("duplicate ticket id")

var (
	_ TicketRepository        = (*MemoryStore)(nil)
	_ StatusHistoryRepository = (*MemoryStore)(nil)
)

func (s *MemoryStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.references[ticket.ReferenceCode]; taken {
		return ErrDuplicateReference
	}
	if _, exists := s.tickets[ticket.ID]; exists {
		return &domain.PersistenceError{Op: "insert ticket", Err: errDuplicateID}
	}
	s.tickets[ticket.ID] = ticket.Clone()
	s.references[ticket.ReferenceCode] = ticket.ID
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tickets[id]
	if !ok || stored.Retired {
		return nil, domain.ErrNotFound
	}
	return stored.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	s.mu.Lock()
	matched := make([]domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		if matchesFilter(t, filter) {
			matched = append(matched, *t.Clone())
		}
	}
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.Ticket{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *MemoryStore) Save(_ context.Context, ticket *domain.Ticket, expectedVersion int64, entry *domain.StatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tickets[ticket.ID]
	if !ok || stored.Retired {
		return domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrConcurrentModification
	}

	next := ticket.Clone()
	next.Version = expectedVersion + 1
	s.tickets[ticket.ID] = next
	if entry != nil {
		s.history[ticket.ID] = append(s.history[ticket.ID], *entry)
	}
	ticket.Version = next.Version
	return nil
}

func (s *MemoryStore) Append(_ context.Context, entry *domain.StatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[entry.TicketID]; !ok {
		return &domain.PersistenceError{Op: "append history", Err: domain.ErrNotFound}
	}
	s.history[entry.TicketID] = append(s.history[entry.TicketID], *entry)
	return nil
}

func (s *MemoryStore) ListByTicket(_ context.Context, ticketID string, order domain.SortOrder) ([]domain.StatusHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.history[ticketID]
	result := make([]domain.StatusHistoryEntry, len(entries))
	if order == domain.SortAsc {
		copy(result, entries)
		return result, nil
	}
	for i, entry := range entries {
		result[len(entries)-1-i] = entry
	}
	return result, nil
}

func matchesFilter(t *domain.Ticket, filter TicketFilter) bool {
	if t.Retired && !filter.IncludeRetired {
		return false
	}
	if filter.Category != nil && t.Category != *filter.Category {
		return false
	}
	if filter.AssigneeID != nil && (t.AssignedToID == nil || *t.AssignedToID != *filter.AssigneeID) {
		return false
	}
	if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
		return false
	}
	if len(filter.PriorityLevels) > 0 && !slices.Contains(filter.PriorityLevels, t.PriorityLevel) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(t.ReferenceCode), term) &&
			!strings.Contains(strings.ToLower(t.Title), term) {
			return false
		}
	}
	return true
}
