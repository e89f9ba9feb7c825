package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/hudman/hudman/internal/provider"
	"github.com/hudman/hudman/internal/rules"
	"github.com/hudman/hudman/internal/staging"
	"github.com/hudman/hudman/internal/state"
)

const inspectorHistoryLimit = 128

// Evaluation records one pass that reached the layout writer.
type Evaluation struct {
	Timestamp time.Time       `json:"timestamp"`
	Rule      int             `json:"rule"`
	Match     string          `json:"match,omitempty"`
	Layout    string          `json:"layout,omitempty"`
	Layers    []string        `json:"layers,omitempty"`
	Outcome   staging.Outcome `json:"outcome"`
	Reason    string          `json:"reason,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type evaluationLog struct {
	mu      sync.Mutex
	entries []Evaluation
	limit   int
}

func newEvaluationLog(limit int) *evaluationLog {
	if limit <= 0 {
		limit = inspectorHistoryLimit
	}
	return &evaluationLog{limit: limit}
}

func (l *evaluationLog) record(entry Evaluation) {
	if l == nil {
		return
	}
	entry.Layers = append([]string(nil), entry.Layers...)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit > 0 && len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.limit-1]
	}
	l.entries = append(l.entries, entry)
}

func (l *evaluationLog) snapshot() []Evaluation {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	out := make([]Evaluation, len(l.entries))
	for i, entry := range l.entries {
		out[i] = entry
		out[i].Layers = append([]string(nil), entry.Layers...)
	}
	return out
}

// Status is a short summary of the swapper.
type Status struct {
	SwapsEnabled      bool                `json:"swapsEnabled"`
	UnderstandsRisks  bool                `json:"understandsRisks"`
	AdvancedSwapMode  bool                `json:"advancedSwapMode"`
	Locked            bool                `json:"locked"`
	Suspended         string              `json:"suspended,omitempty"`
	StagingSlot       int                 `json:"stagingSlot"`
	PendingForce      staging.ForceReason `json:"pendingForce"`
	ActiveLayout      string              `json:"activeLayout,omitempty"`
	Layers            []string            `json:"layers,omitempty"`
	Fingerprint       string              `json:"fingerprint,omitempty"`
	StagedJob         uint32              `json:"stagedJob,omitempty"`
	ProviderAvailable bool                `json:"providerAvailable"`
	LastTick          time.Time           `json:"lastTick,omitempty"`
}

// RuleState shows how one swap rule evaluates against the last snapshot.
type RuleState struct {
	Index   int                   `json:"index"`
	Match   string                `json:"match"`
	Layout  string                `json:"layout"`
	IsLayer bool                  `json:"isLayer,omitempty"`
	Matched bool                  `json:"matched"`
	Holding float64               `json:"holding,omitempty"`
	Trace   *rules.PredicateTrace `json:"trace,omitempty"`
}

// ConditionState is the value of one custom condition.
type ConditionState struct {
	Name     string                   `json:"name"`
	Kind     rules.ConditionKind      `json:"kind"`
	Value    bool                     `json:"value"`
	Provider *provider.ConditionState `json:"provider,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// Inspection is the full inspector view.
type Inspection struct {
	Status     Status           `json:"status"`
	World      *state.World     `json:"world,omitempty"`
	Statuses   map[string]bool  `json:"statuses,omitempty"`
	Rules      []RuleState      `json:"rules"`
	Conditions []ConditionState `json:"conditions,omitempty"`
	Providers  []string         `json:"providers,omitempty"`
	History    []Evaluation     `json:"history,omitempty"`
}

// Status returns the current summary.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	st := Status{
		SwapsEnabled:      e.cfg.SwapsEnabled,
		UnderstandsRisks:  e.cfg.UnderstandsRisks,
		AdvancedSwapMode:  e.cfg.AdvancedSwapMode,
		Locked:            e.locked,
		Suspended:         e.gate,
		StagingSlot:       e.writer.Slot(),
		PendingForce:      e.writer.PendingForce(),
		ProviderAvailable: e.tracker.Available(),
		LastTick:          e.lastTick,
	}
	if staged, ok := e.writer.Staged(); ok {
		st.ActiveLayout = e.cfg.LayoutName(staged.LayoutID)
		st.Layers = e.layoutNames(staged.LayerIDs)
		st.StagedJob = staged.JobID
		st.Fingerprint = staged.Fingerprint
	}
	return st
}

// Inspect evaluates every rule and condition against the last snapshot
// without touching hold timers or rule history.
func (e *Engine) Inspect() Inspection {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := Inspection{
		Status:    e.statusLocked(),
		World:     state.CloneWorld(e.lastWorld),
		Providers: e.tracker.Sets(),
		History:   e.evalLog.snapshot(),
	}
	world := e.lastWorld
	if world == nil {
		world = &state.World{}
	}
	out.Statuses = make(map[string]bool)
	for _, st := range rules.AllStatuses() {
		out.Statuses[st.String()] = st.Evaluate(world)
	}
	timers := e.statuses.Timers()
	out.Rules = make([]RuleState, 0, len(e.cfg.Swaps))
	for i, m := range e.cfg.Swaps {
		matched, trace := e.statuses.TraceMatch(m, world)
		out.Rules = append(out.Rules, RuleState{
			Index:   i,
			Match:   m.Describe(),
			Layout:  e.cfg.LayoutName(m.LayoutID),
			IsLayer: m.IsLayer,
			Matched: matched,
			Holding: timers[i],
			Trace:   trace,
		})
	}
	for _, c := range e.cfg.CustomConditions {
		cs := ConditionState{Name: c.Name, Kind: c.Kind}
		value, err := e.statuses.EvaluateCondition(c.Name, world)
		cs.Value = value
		if err != nil {
			cs.Error = err.Error()
		}
		if c.Kind == rules.KindProvider {
			if ps, ok := e.statuses.ProviderState(c.Name); ok {
				cs.Provider = &ps
			}
		}
		out.Conditions = append(out.Conditions, cs)
	}
	sort.SliceStable(out.Conditions, func(i, j int) bool { return out.Conditions[i].Name < out.Conditions[j].Name })
	return out
}
