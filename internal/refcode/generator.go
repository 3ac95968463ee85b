package refcode

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

const dateLayout = "20060102"

// Generator renders human-readable ticket references such as CM-20240301-0007.
type Generator struct {
	seq Sequencer
}

// NewGenerator wires a generator to its counter backend.
func NewGenerator(seq Sequencer) *Generator {
	return &Generator{seq: seq}
}

// Next reserves the next reference for category on the UTC day of at.
func (g *Generator) Next(ctx context.Context, category domain.Category, at time.Time) (string, error) {
	prefix := category.Prefix()
	day := at.UTC().Format(dateLayout)
	n, err := g.seq.Next(ctx, prefix+":"+day)
	if err != nil {
		return "", fmt.Errorf("reserve reference code: %w", err)
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, day, n), nil
}
