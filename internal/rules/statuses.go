package rules

import (
	"fmt"
	"time"

	"github.com/hudman/hudman/internal/jobs"
	"github.com/hudman/hudman/internal/provider"
	"github.com/hudman/hudman/internal/state"
	"github.com/hudman/hudman/internal/util"
)

// maxConditionDepth bounds multi-condition nesting at evaluation time.
const maxConditionDepth = 32

// Options configures a Statuses engine.
type Options struct {
	Table    *jobs.Table
	Tracker  *provider.Tracker
	Manual   *ManualStates
	Keybinds *Keybinds
	Clock    func() time.Time
	Logger   *util.Logger
}

// Statuses is the condition engine. It caches every status predicate,
// tracks hold timers per rule and selects the active rules.
type Statuses struct {
	table    *jobs.Table
	tracker  *provider.Tracker
	manual   *ManualStates
	keybinds *Keybinds
	now      func() time.Time
	logger   *util.Logger

	conditions     []CustomCondition
	cache          map[Status]bool
	providerStates map[string]provider.ConditionState
	jobID          uint32
	mapID          uint32
	primed         bool
	timers         map[int]float64
	last           map[int]bool
	lastUpdate     time.Time
}

func NewStatuses(opts Options) *Statuses {
	s := &Statuses{
		table:    opts.Table,
		tracker:  opts.Tracker,
		manual:   opts.Manual,
		keybinds: opts.Keybinds,
		now:      opts.Clock,
		logger:   opts.Logger,
	}
	if s.table == nil {
		s.table = jobs.MustDefault()
	}
	if s.manual == nil {
		s.manual = NewManualStates()
	}
	if s.keybinds == nil {
		s.keybinds = NewKeybinds()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.Reset()
	return s
}

// SetConditions replaces the custom condition list.
func (s *Statuses) SetConditions(conds []CustomCondition) {
	s.conditions = make([]CustomCondition, len(conds))
	for i, c := range conds {
		s.conditions[i] = c.Clone()
	}
}

// Conditions returns the current custom conditions.
func (s *Statuses) Conditions() []CustomCondition {
	return s.conditions
}

// Manual exposes the console toggle container.
func (s *Statuses) Manual() *ManualStates {
	return s.manual
}

// Table exposes the class/job lookup table.
func (s *Statuses) Table() *jobs.Table {
	return s.table
}

// Reset drops hold timers and per-rule history. Call it when the rule list
// changes, since both are keyed by rule index.
func (s *Statuses) Reset() {
	s.timers = make(map[int]float64)
	s.last = make(map[int]bool)
	s.cache = make(map[Status]bool)
	s.providerStates = make(map[string]provider.ConditionState)
	s.primed = false
}

// Update ticks hold timers and refreshes the status cache. It reports true
// when a timer expired or, with a player present, when any status, the job,
// the map, a keybind, a console toggle or a provider condition changed.
func (s *Statuses) Update(w *state.World) bool {
	expired := s.tickTimers()
	if w == nil || w.Player == nil {
		return expired
	}

	changed := !s.primed || w.Player.JobID != s.jobID || w.MapID != s.mapID
	for _, st := range AllStatuses() {
		v := st.Evaluate(w)
		if s.cache[st] != v {
			changed = true
		}
		s.cache[st] = v
	}
	s.jobID = w.Player.JobID
	s.mapID = w.MapID
	s.primed = true

	if s.keybinds.Update(w, s.conditions) {
		changed = true
	}
	if s.manual.TakeUpdated() {
		changed = true
	}
	for _, c := range s.conditions {
		if c.Kind != KindProvider {
			continue
		}
		st := s.tracker.State(c.ProviderIndex)
		if prev, ok := s.providerStates[c.Name]; !ok || prev != st {
			changed = true
		}
		s.providerStates[c.Name] = st
	}
	return changed || expired
}

func (s *Statuses) tickTimers() bool {
	now := s.now()
	var elapsed float64
	if !s.lastUpdate.IsZero() {
		elapsed = now.Sub(s.lastUpdate).Seconds()
	}
	s.lastUpdate = now
	expired := false
	for idx, remaining := range s.timers {
		remaining -= elapsed
		if remaining <= 0 {
			delete(s.timers, idx)
			expired = true
			continue
		}
		s.timers[idx] = remaining
	}
	return expired
}

// Cached returns the status value from the last Update.
func (s *Statuses) Cached(st Status) bool {
	return s.cache[st]
}

// Timers returns the remaining hold seconds per rule index.
func (s *Statuses) Timers() map[int]float64 {
	out := make(map[int]float64, len(s.timers))
	for k, v := range s.timers {
		out[k] = v
	}
	return out
}

// ProviderState returns the last polled state of a provider condition.
func (s *Statuses) ProviderState(name string) (provider.ConditionState, bool) {
	st, ok := s.providerStates[name]
	return st, ok
}

// CalculateActive scans rules in order. A true layer rule in advanced mode
// is collected and the scan continues; any other true rule ends the scan.
// A rule whose condition just turned false starts its hold timer, and a
// rule with a running timer still counts as true.
func (s *Statuses) CalculateActive(matches []Match, w *state.World, advanced bool) Selection {
	sel := Selection{Active: -1}
	for i, m := range matches {
		value, err := s.EvaluateMatch(m, w)
		if err != nil && s.logger != nil {
			s.logger.Debugf("rule %d (%s): %v", i, m.Describe(), err)
		}
		transitioned := s.last[i] != value
		s.last[i] = value

		if value {
			delete(s.timers, i)
		} else if transitioned {
			if hold := s.holdTime(m); hold > 0 {
				s.timers[i] = hold
			}
		}
		if _, holding := s.timers[i]; !value && !holding {
			continue
		}
		if m.IsLayer && advanced {
			sel.Layers = append(sel.Layers, i)
			continue
		}
		sel.Active = i
		return sel
	}
	return sel
}

func (s *Statuses) holdTime(m Match) float64 {
	if m.CustomCondition == "" {
		return 0
	}
	if idx := FindCondition(s.conditions, m.CustomCondition); idx >= 0 {
		return s.conditions[idx].HoldTime
	}
	return 0
}

// EvaluateMatch reports job filter and status filter and custom filter for
// one rule. Errors describe filters that could not be evaluated; the result
// is false in that case.
func (s *Statuses) EvaluateMatch(m Match, w *state.World) (bool, error) {
	result := true
	if m.ClassJob != 0 && !s.table.IsActivated(m.ClassJob, w.JobID()) {
		result = false
	}
	if m.Status != StatusNone && !m.Status.Evaluate(w) {
		result = false
	}
	if m.CustomCondition != "" {
		ok, err := s.EvaluateCondition(m.CustomCondition, w)
		if err != nil {
			return false, err
		}
		if !ok {
			result = false
		}
	}
	return result, nil
}

// EvaluateCondition evaluates a custom condition by name.
func (s *Statuses) EvaluateCondition(name string, w *state.World) (bool, error) {
	return s.evaluateCondition(name, w, 0)
}

func (s *Statuses) evaluateCondition(name string, w *state.World, depth int) (bool, error) {
	if depth > maxConditionDepth {
		return false, fmt.Errorf("%w: %q nests too deeply", ErrConditionCycle, name)
	}
	idx := FindCondition(s.conditions, name)
	if idx < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownCondition, name)
	}
	c := s.conditions[idx]
	switch c.Kind {
	case KindConsoleToggle:
		return s.manual.Get(c.Name), nil
	case KindHoldToActivate:
		return c.Keybind.Pressed(w), nil
	case KindInZone:
		if w == nil {
			return false, nil
		}
		for _, id := range c.MapIDs {
			if id == w.MapID {
				return true, nil
			}
		}
		return false, nil
	case KindProvider:
		return s.tracker.State(c.ProviderIndex).Bool(), nil
	case KindMulti:
		return s.evaluateMulti(c, w, depth)
	}
	return false, fmt.Errorf("%w: %q has unknown kind %q", ErrInvalidCondition, c.Name, c.Kind)
}

// evaluateMulti folds items left to right. Every operand is evaluated.
func (s *Statuses) evaluateMulti(c CustomCondition, w *state.World, depth int) (bool, error) {
	var firstErr error
	acc := false
	for i, item := range c.Items {
		v, err := s.evaluateOperand(item.Operand, w, depth+1)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if item.Negate {
			v = !v
		}
		switch {
		case i == 0:
			acc = v
		case item.Junction == Or:
			acc = acc || v
		default:
			acc = acc && v
		}
	}
	return acc, firstErr
}

func (s *Statuses) evaluateOperand(o Operand, w *state.World, depth int) (bool, error) {
	switch o.Kind {
	case OperandStatus:
		return o.Status.Evaluate(w), nil
	case OperandCondition:
		return s.evaluateCondition(o.Condition, w, depth)
	case OperandCategory:
		return s.table.IsActivated(o.Category, w.JobID()), nil
	}
	return false, fmt.Errorf("%w: operand has no kind", ErrInvalidCondition)
}
