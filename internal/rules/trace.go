package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hudman/hudman/internal/state"
)

// PredicateTrace captures how a rule or condition evaluated.
type PredicateTrace struct {
	Kind     string            `json:"kind"`
	Result   bool              `json:"result"`
	Details  map[string]any    `json:"details,omitempty"`
	Children []*PredicateTrace `json:"children,omitempty"`
}

// ClonePredicateTrace performs a deep copy of the predicate trace tree.
func ClonePredicateTrace(src *PredicateTrace) *PredicateTrace {
	if src == nil {
		return nil
	}
	clone := &PredicateTrace{
		Kind:   src.Kind,
		Result: src.Result,
	}
	if len(src.Details) > 0 {
		clone.Details = make(map[string]any, len(src.Details))
		for k, v := range src.Details {
			clone.Details[k] = v
		}
	}
	if len(src.Children) > 0 {
		clone.Children = make([]*PredicateTrace, len(src.Children))
		for i, child := range src.Children {
			clone.Children[i] = ClonePredicateTrace(child)
		}
	}
	return clone
}

// TraceMatch evaluates a rule like EvaluateMatch and records each filter.
// It does not touch transition history or hold timers.
func (s *Statuses) TraceMatch(m Match, w *state.World) (bool, *PredicateTrace) {
	root := &PredicateTrace{Kind: "rule", Result: true, Details: map[string]any{"layout": m.LayoutID.String()}}
	if m.IsLayer {
		root.Details["layer"] = true
	}
	add := func(child *PredicateTrace) {
		root.Children = append(root.Children, child)
		if !child.Result {
			root.Result = false
		}
	}
	if m.ClassJob != 0 {
		job := w.JobID()
		add(&PredicateTrace{
			Kind:    "job",
			Result:  s.table.IsActivated(m.ClassJob, job),
			Details: map[string]any{"category": s.table.DisplayName(m.ClassJob), "job": job},
		})
	}
	if m.Status != StatusNone {
		add(&PredicateTrace{Kind: "status", Result: m.Status.Evaluate(w), Details: map[string]any{"status": m.Status.String()}})
	}
	if m.CustomCondition != "" {
		add(s.traceCondition(m.CustomCondition, w, 0))
	}
	return root.Result, root
}

func (s *Statuses) traceCondition(name string, w *state.World, depth int) *PredicateTrace {
	node := &PredicateTrace{Kind: "condition", Details: map[string]any{"name": name}}
	idx := FindCondition(s.conditions, name)
	if idx < 0 || depth > maxConditionDepth {
		v, err := s.evaluateCondition(name, w, depth)
		node.Result = v
		if err != nil {
			node.Details["error"] = err.Error()
		}
		return node
	}
	c := s.conditions[idx]
	node.Details["type"] = string(c.Kind)
	if c.HoldTime > 0 {
		node.Details["hold"] = c.HoldTime
	}
	switch c.Kind {
	case KindHoldToActivate:
		node.Details["keybind"] = c.Keybind.String()
	case KindInZone:
		if w != nil {
			node.Details["map"] = w.MapID
		}
	case KindProvider:
		st := s.tracker.State(c.ProviderIndex)
		node.Details["index"] = c.ProviderIndex
		node.Details["state"] = st.String()
	case KindMulti:
		acc := false
		for i, item := range c.Items {
			child := s.traceOperand(item.Operand, w, depth+1)
			v := child.Result
			if item.Negate {
				v = !v
				child.Details["negate"] = true
			}
			if i > 0 {
				child.Details["junction"] = item.Junction.String()
			}
			node.Children = append(node.Children, child)
			switch {
			case i == 0:
				acc = v
			case item.Junction == Or:
				acc = acc || v
			default:
				acc = acc && v
			}
		}
		node.Result = acc
		return node
	}
	v, err := s.evaluateCondition(name, w, depth)
	node.Result = v
	if err != nil {
		node.Details["error"] = err.Error()
	}
	return node
}

func (s *Statuses) traceOperand(o Operand, w *state.World, depth int) *PredicateTrace {
	switch o.Kind {
	case OperandStatus:
		return &PredicateTrace{Kind: "status", Result: o.Status.Evaluate(w), Details: map[string]any{"status": o.Status.String()}}
	case OperandCondition:
		return s.traceCondition(o.Condition, w, depth)
	case OperandCategory:
		return &PredicateTrace{
			Kind:    "job",
			Result:  s.table.IsActivated(o.Category, w.JobID()),
			Details: map[string]any{"category": s.table.DisplayName(o.Category)},
		}
	}
	return &PredicateTrace{Kind: "operand", Details: map[string]any{"error": "operand has no kind"}}
}

// SummarizePredicateTrace renders a predicate trace as human-readable lines including captured values.
func SummarizePredicateTrace(trace *PredicateTrace) []string {
	if trace == nil {
		return nil
	}
	lines := make([]string, 0)
	var walk func(prefix string, node *PredicateTrace)
	walk = func(prefix string, node *PredicateTrace) {
		if node == nil {
			return
		}
		detail := formatTraceDetails(node.Details)
		line := fmt.Sprintf("%s%s => %t", prefix, node.Kind, node.Result)
		if detail != "" {
			line = fmt.Sprintf("%s %s", line, detail)
		}
		lines = append(lines, line)
		childPrefix := prefix + "  "
		for _, child := range node.Children {
			walk(childPrefix, child)
		}
	}
	walk("", trace)
	return lines
}

func formatTraceDetails(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, details[key]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
