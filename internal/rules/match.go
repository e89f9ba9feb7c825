package rules

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/jobs"
)

// Match is one swap rule. Unset filters always pass.
type Match struct {
	ClassJob        jobs.CategoryID `yaml:"classJob,omitempty" json:"classJob,omitempty"`
	Status          Status          `yaml:"status,omitempty" json:"status,omitempty"`
	CustomCondition string          `yaml:"customCondition,omitempty" json:"customCondition,omitempty"`
	LayoutID        uuid.UUID       `yaml:"layout" json:"layout"`
	IsLayer         bool            `yaml:"isLayer,omitempty" json:"isLayer,omitempty"`
}

// Describe renders the rule's filters for logs and the inspector.
func (m Match) Describe() string {
	var parts []string
	if m.ClassJob != 0 {
		parts = append(parts, "job="+m.ClassJob.String())
	}
	if m.Status != StatusNone {
		parts = append(parts, "status="+m.Status.String())
	}
	if m.CustomCondition != "" {
		parts = append(parts, fmt.Sprintf("condition=%q", m.CustomCondition))
	}
	if len(parts) == 0 {
		parts = append(parts, "always")
	}
	if m.IsLayer {
		parts = append(parts, "layer")
	}
	return strings.Join(parts, " ")
}

// Selection is the outcome of swap selection: the first matching base rule
// and every matching layer rule before it, as indexes into the rule list.
type Selection struct {
	Active int
	Layers []int
}

// HasActive reports whether a base rule matched.
func (s Selection) HasActive() bool {
	return s.Active >= 0
}

// LayoutIDs maps the selection onto layout ids.
func (s Selection) LayoutIDs(matches []Match) (uuid.UUID, []uuid.UUID) {
	var active uuid.UUID
	if s.Active >= 0 && s.Active < len(matches) {
		active = matches[s.Active].LayoutID
	}
	layers := make([]uuid.UUID, 0, len(s.Layers))
	for _, idx := range s.Layers {
		if idx >= 0 && idx < len(matches) {
			layers = append(layers, matches[idx].LayoutID)
		}
	}
	return active, layers
}
