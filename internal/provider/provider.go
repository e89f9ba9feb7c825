package provider

import (
	"errors"
	"fmt"
	"sync"
)

// Stored condition set indexes use these sentinels when they do not point
// at a set.
const (
	IndexUnset   = -1
	IndexRemoved = -2
)

// ConditionState is the outcome of querying a condition set. Every state
// other than True counts as false for swap selection.
type ConditionState int

const (
	False ConditionState = iota
	True
	ErrorPluginUnavailable
	ErrorConditionRemoved
	ErrorConditionNotSet
	ErrorConditionNotFound
	ErrorUnknown
)

var stateNames = map[ConditionState]string{
	False:                  "false",
	True:                   "true",
	ErrorPluginUnavailable: "provider unavailable",
	ErrorConditionRemoved:  "condition set removed",
	ErrorConditionNotSet:   "condition set not chosen",
	ErrorConditionNotFound: "condition set not found",
	ErrorUnknown:           "unknown error",
}

func (s ConditionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Bool reports whether the state is True.
func (s ConditionState) Bool() bool {
	return s == True
}

// IsError reports whether the state is one of the error values.
func (s ConditionState) IsError() bool {
	return s >= ErrorPluginUnavailable
}

// ErrUnavailable is returned by providers that are not loaded.
var ErrUnavailable = errors.New("condition provider unavailable")

// Provider is an out-of-process source of named boolean condition sets.
type Provider interface {
	Available() bool
	ConditionSets() ([]string, error)
	CheckConditionSet(index int) (bool, error)
}

// Tracker caches the condition set list of a Provider and maps queries to
// ConditionState values. A nil provider is permanently unavailable.
type Tracker struct {
	mu        sync.Mutex
	provider  Provider
	sets      []string
	available bool
}

func NewTracker(p Provider) *Tracker {
	return &Tracker{provider: p}
}

// Refresh reloads the condition set list. It is called on start-up and
// whenever the provider reports it was loaded or changed.
func (t *Tracker) Refresh() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sets = nil
	t.available = false
	if t.provider == nil || !t.provider.Available() {
		return ErrUnavailable
	}
	sets, err := t.provider.ConditionSets()
	if err != nil {
		return fmt.Errorf("list condition sets: %w", err)
	}
	t.sets = append([]string(nil), sets...)
	t.available = true
	return nil
}

// Unloaded marks the provider unavailable until the next Refresh.
func (t *Tracker) Unloaded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.available = false
	t.sets = nil
}

// Available reports whether the last Refresh reached the provider.
func (t *Tracker) Available() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.available
}

// Sets returns the cached condition set names.
func (t *Tracker) Sets() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sets...)
}

// Name returns the cached name of the set at index.
func (t *Tracker) Name(index int) (string, bool) {
	if t == nil {
		return "", false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.sets) {
		return "", false
	}
	return t.sets[index], true
}

// State queries the set at index.
func (t *Tracker) State(index int) ConditionState {
	switch index {
	case IndexUnset:
		return ErrorConditionNotSet
	case IndexRemoved:
		return ErrorConditionRemoved
	}
	if t == nil {
		return ErrorPluginUnavailable
	}
	t.mu.Lock()
	p, available, count := t.provider, t.available, len(t.sets)
	t.mu.Unlock()
	if p == nil || !available {
		return ErrorPluginUnavailable
	}
	if index < 0 || index >= count {
		return ErrorConditionNotFound
	}
	ok, err := p.CheckConditionSet(index)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return ErrorPluginUnavailable
		}
		return ErrorUnknown
	}
	if ok {
		return True
	}
	return False
}

// RemapMoved returns the new value of a stored index after the sets at
// from and to swapped places.
func RemapMoved(index, from, to int) int {
	switch {
	case index < 0:
		return index
	case index == from:
		return to
	case index == to:
		return from
	}
	return index
}

// RemapRemoved returns the new value of a stored index after the set at
// removed was deleted. Other indexes are left alone.
func RemapRemoved(index, removed int) int {
	if index >= 0 && index == removed {
		return IndexRemoved
	}
	return index
}
