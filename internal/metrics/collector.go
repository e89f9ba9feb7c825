package metrics

import (
	"sort"
	"sync"
	"time"
)

// Collector aggregates in-process counters for swap rules and layout writes.
type Collector struct {
	mu      sync.RWMutex
	enabled bool
	started time.Time
	rules   map[string]*RuleMetrics
	writes  map[string]*WriteMetrics
}

// RuleMetrics captures how often a swap rule selected a layout.
type RuleMetrics struct {
	Rule        string    `json:"rule"`
	Layout      string    `json:"layout"`
	Matched     uint64    `json:"matched"`
	LastMatched time.Time `json:"lastMatched,omitempty"`
}

// WriteMetrics counts write attempts per outcome and force reason.
type WriteMetrics struct {
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason"`
	Count     uint64    `json:"count"`
	LastWrite time.Time `json:"lastWrite,omitempty"`
}

// Totals aggregates counters across a snapshot.
type Totals struct {
	Matched     uint64 `json:"matched"`
	FullWrites  uint64 `json:"fullWrites"`
	GaugeWrites uint64 `json:"gaugeWrites"`
	Skipped     uint64 `json:"skipped"`
	Failed      uint64 `json:"failed"`
}

// Snapshot is the serializable view of the current metrics state.
type Snapshot struct {
	Enabled bool           `json:"enabled"`
	Started time.Time      `json:"started,omitempty"`
	Totals  Totals         `json:"totals"`
	Rules   []RuleMetrics  `json:"rules,omitempty"`
	Writes  []WriteMetrics `json:"writes,omitempty"`
}

// NewCollector returns a collector with the provided opt-in state.
func NewCollector(enabled bool) *Collector {
	c := &Collector{}
	c.SetEnabled(enabled)
	return c
}

// Enabled reports whether collection is currently active.
func (c *Collector) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles collection, resetting counters when enabling.
func (c *Collector) SetEnabled(enabled bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.rules = nil
		c.writes = nil
		c.started = time.Time{}
		return
	}
	c.started = time.Now()
	c.rules = make(map[string]*RuleMetrics)
	c.writes = make(map[string]*WriteMetrics)
}

// RecordMatch increments the matched counter for a swap rule.
func (c *Collector) RecordMatch(rule, layout string) {
	if c == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if c.rules == nil {
		c.rules = make(map[string]*RuleMetrics)
	}
	key := rule + "|" + layout
	metrics, exists := c.rules[key]
	if !exists {
		metrics = &RuleMetrics{Rule: rule, Layout: layout}
		c.rules[key] = metrics
	}
	metrics.Matched++
	metrics.LastMatched = now
}

// RecordWrite counts one pass through the layout writer.
func (c *Collector) RecordWrite(outcome, reason string) {
	if c == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if c.writes == nil {
		c.writes = make(map[string]*WriteMetrics)
	}
	key := outcome + "|" + reason
	metrics, exists := c.writes[key]
	if !exists {
		metrics = &WriteMetrics{Outcome: outcome, Reason: reason}
		c.writes[key] = metrics
	}
	metrics.Count++
	metrics.LastWrite = now
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Enabled: c.enabled}
	if !c.enabled {
		return snap
	}
	snap.Started = c.started
	for _, metrics := range c.rules {
		clone := *metrics
		snap.Rules = append(snap.Rules, clone)
		snap.Totals.Matched += clone.Matched
	}
	for _, metrics := range c.writes {
		clone := *metrics
		snap.Writes = append(snap.Writes, clone)
		switch clone.Outcome {
		case "full":
			snap.Totals.FullWrites += clone.Count
		case "gauges":
			snap.Totals.GaugeWrites += clone.Count
		case "skipped":
			snap.Totals.Skipped += clone.Count
		case "failed":
			snap.Totals.Failed += clone.Count
		}
	}
	sort.Slice(snap.Rules, func(i, j int) bool {
		if snap.Rules[i].Rule == snap.Rules[j].Rule {
			return snap.Rules[i].Layout < snap.Rules[j].Layout
		}
		return snap.Rules[i].Rule < snap.Rules[j].Rule
	})
	sort.Slice(snap.Writes, func(i, j int) bool {
		if snap.Writes[i].Outcome == snap.Writes[j].Outcome {
			return snap.Writes[i].Reason < snap.Writes[j].Reason
		}
		return snap.Writes[i].Outcome < snap.Writes[j].Outcome
	})
	return snap
}
