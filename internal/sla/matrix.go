// Package sla maps priorities to time budgets and classifies SLA health.
package sla

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

// DefaultDefinitions is the built-in priority matrix.
var DefaultDefinitions = []domain.PrioritySLADefinition{
	{Level: 1, ResponseHours: 1, ResolutionHours: 4},
	{Level: 2, ResponseHours: 4, ResolutionHours: 24},
	{Level: 3, ResponseHours: 8, ResolutionHours: 48},
	{Level: 4, ResponseHours: 24, ResolutionHours: 72},
}

// Matrix is a read-only priority level lookup.
type Matrix struct {
	levels map[int]domain.PrioritySLADefinition
}

type matrixFile struct {
	Levels []domain.PrioritySLADefinition `yaml:"levels"`
}

// NewMatrix validates and indexes the definitions.
func NewMatrix(defs []domain.PrioritySLADefinition) (*Matrix, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("sla matrix: no priority levels defined")
	}
	levels := make(map[int]domain.PrioritySLADefinition, len(defs))
	for _, def := range defs {
		if def.Level < 1 {
			return nil, fmt.Errorf("sla matrix: invalid level %d", def.Level)
		}
		if def.ResponseHours <= 0 || def.ResolutionHours <= 0 {
			return nil, fmt.Errorf("sla matrix: level %d must have positive hours", def.Level)
		}
		if def.ResponseHours > def.ResolutionHours {
			return nil, fmt.Errorf("sla matrix: level %d response hours exceed resolution hours", def.Level)
		}
		if _, dup := levels[def.Level]; dup {
			return nil, fmt.Errorf("sla matrix: duplicate level %d", def.Level)
		}
		levels[def.Level] = def
	}
	return &Matrix{levels: levels}, nil
}

// DefaultMatrix returns the built-in matrix.
func DefaultMatrix() *Matrix {
	m, err := NewMatrix(DefaultDefinitions)
	if err != nil {
		panic(err)
	}
	return m
}

// LoadMatrix reads a YAML matrix from path, or returns the defaults when path is empty.
func LoadMatrix(path string) (*Matrix, error) {
	if path == "" {
		return DefaultMatrix(), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sla matrix: %w", err)
	}
	var file matrixFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse sla matrix: %w", err)
	}
	return NewMatrix(file.Levels)
}

// Lookup returns the definition for level.
func (m *Matrix) Lookup(level int) (domain.PrioritySLADefinition, error) {
	def, ok := m.levels[level]
	if !ok {
		return domain.PrioritySLADefinition{}, &domain.UnknownPriorityLevelError{Level: level}
	}
	return def, nil
}

// Definitions returns all levels ordered by urgency.
func (m *Matrix) Definitions() []domain.PrioritySLADefinition {
	out := make([]domain.PrioritySLADefinition, 0, len(m.levels))
	for _, def := range m.levels {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}
