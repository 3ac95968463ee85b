package domain

// PrioritySLADefinition holds the time budgets for one priority level.
type PrioritySLADefinition struct {
	Level           int `yaml:"level" json:"level"`
	ResponseHours   int `yaml:"response_hours" json:"response_hours"`
	ResolutionHours int `yaml:"resolution_hours" json:"resolution_hours"`
}
