package sla

import (
	"time"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

// DefaultAtRiskFraction marks the final 20% of a budget as at risk.
const DefaultAtRiskFraction = 0.2

// Health is the classification of both checkpoints plus the worse of the two.
type Health struct {
	Response   domain.SLAHealth `json:"response"`
	Resolution domain.SLAHealth `json:"resolution"`
	Overall    domain.SLAHealth `json:"overall"`
}

// Clock derives deadlines and evaluates SLA health against wall-clock time.
type Clock struct {
	matrix         *Matrix
	atRiskFraction float64
}

// NewClock builds a clock; fractions outside (0,1) fall back to the default.
func NewClock(matrix *Matrix, atRiskFraction float64) *Clock {
	if matrix == nil {
		matrix = DefaultMatrix()
	}
	if atRiskFraction <= 0 || atRiskFraction >= 1 {
		atRiskFraction = DefaultAtRiskFraction
	}
	return &Clock{matrix: matrix, atRiskFraction: atRiskFraction}
}

// Matrix exposes the priority matrix backing the clock.
func (c *Clock) Matrix() *Matrix {
	return c.matrix
}

// ComputeDeadlines adds the level's budgets to createdAt.
func (c *Clock) ComputeDeadlines(level int, createdAt time.Time) (domain.SLADeadlines, error) {
	def, err := c.matrix.Lookup(level)
	if err != nil {
		return domain.SLADeadlines{}, err
	}
	return domain.SLADeadlines{
		StartedAt:          createdAt,
		ResponseDeadline:   createdAt.Add(time.Duration(def.ResponseHours) * time.Hour),
		ResolutionDeadline: createdAt.Add(time.Duration(def.ResolutionHours) * time.Hour),
	}, nil
}

// ClassifyCheckpoint evaluates one checkpoint.
func (c *Clock) ClassifyCheckpoint(now, start, deadline time.Time, actual *time.Time) domain.SLAHealth {
	if actual != nil {
		if actual.After(deadline) {
			return domain.SLABreached
		}
		return domain.SLAOnTime
	}
	if now.After(deadline) {
		return domain.SLABreached
	}
	budget := deadline.Sub(start)
	window := time.Duration(float64(budget) * c.atRiskFraction)
	if !now.Before(deadline.Add(-window)) {
		return domain.SLAAtRisk
	}
	return domain.SLAOnTime
}

// Classify evaluates both checkpoints at now.
func (c *Clock) Classify(now time.Time, deadlines domain.SLADeadlines, actualResponseAt, actualResolutionAt *time.Time) Health {
	response := c.ClassifyCheckpoint(now, deadlines.StartedAt, deadlines.ResponseDeadline, actualResponseAt)
	resolution := c.ClassifyCheckpoint(now, deadlines.StartedAt, deadlines.ResolutionDeadline, actualResolutionAt)
	overall := response
	if resolution.Severity() > overall.Severity() {
		overall = resolution
	}
	return Health{Response: response, Resolution: resolution, Overall: overall}
}

// ClassifyTicket evaluates the ticket's recorded commitments at now.
func (c *Clock) ClassifyTicket(now time.Time, ticket *domain.Ticket) Health {
	return c.Classify(now, ticket.Deadlines(), ticket.ActualResponseAt, ticket.ActualResolutionAt)
}

// HoursRemaining returns hours until deadline, negative once overdue, or nil
// when the checkpoint has already been met.
func HoursRemaining(now, deadline time.Time, actual *time.Time) *float64 {
	if actual != nil {
		return nil
	}
	hours := deadline.Sub(now).Hours()
	return &hours
}
