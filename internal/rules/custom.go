package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hudman/hudman/internal/jobs"
	"github.com/hudman/hudman/internal/provider"
	"github.com/hudman/hudman/internal/state"
)

var (
	// ErrConditionCycle rejects a condition that would reference itself.
	ErrConditionCycle = errors.New("condition would reference itself")
	// ErrUnknownCondition is returned for references to a missing condition.
	ErrUnknownCondition = errors.New("unknown custom condition")
	// ErrInvalidCondition is returned for malformed custom conditions.
	ErrInvalidCondition = errors.New("invalid custom condition")
)

// ConditionKind selects the payload of a CustomCondition.
type ConditionKind string

const (
	KindConsoleToggle  ConditionKind = "toggle"
	KindHoldToActivate ConditionKind = "keybind"
	KindInZone         ConditionKind = "zone"
	KindProvider       ConditionKind = "provider"
	KindMulti          ConditionKind = "multi"
)

func (k ConditionKind) valid() bool {
	switch k {
	case KindConsoleToggle, KindHoldToActivate, KindInZone, KindProvider, KindMulti:
		return true
	}
	return false
}

// ParseConditionKind accepts a kind name such as "toggle" or "multi".
func ParseConditionKind(s string) (ConditionKind, error) {
	k := ConditionKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidCondition, s)
	}
	return k, nil
}

// Junction combines a multi-condition item with the accumulated value.
type Junction uint8

const (
	And Junction = iota
	Or
)

func (j Junction) String() string {
	if j == Or {
		return "or"
	}
	return "and"
}

func (j Junction) MarshalText() ([]byte, error) {
	return []byte(j.String()), nil
}

func (j *Junction) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "and", "&&":
		*j = And
	case "or", "||":
		*j = Or
	default:
		return fmt.Errorf("unknown junction %q", text)
	}
	return nil
}

// OperandKind tags the variant held by an Operand.
type OperandKind uint8

const (
	OperandStatus OperandKind = iota + 1
	OperandCondition
	OperandCategory
)

// Operand is one term of a multi-condition: a status, another custom
// condition by name, or a job category.
type Operand struct {
	Kind      OperandKind
	Status    Status
	Condition string
	Category  jobs.CategoryID
}

func StatusOperand(s Status) Operand { return Operand{Kind: OperandStatus, Status: s} }

func ConditionOperand(name string) Operand { return Operand{Kind: OperandCondition, Condition: name} }

func CategoryOperand(c jobs.CategoryID) Operand { return Operand{Kind: OperandCategory, Category: c} }

// ParseOperand reads "status:<name>", "condition:<name>" or "job:<category>".
func ParseOperand(s string) (Operand, error) {
	prefix, value, ok := strings.Cut(strings.TrimSpace(s), ":")
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return Operand{}, fmt.Errorf("%w: operand %q needs a status:, condition: or job: prefix", ErrInvalidCondition, s)
	}
	switch strings.ToLower(prefix) {
	case "status":
		st, err := ParseStatus(value)
		if err != nil {
			return Operand{}, err
		}
		return StatusOperand(st), nil
	case "condition":
		return ConditionOperand(value), nil
	case "job":
		cat, err := jobs.ParseCategory(value)
		if err != nil {
			return Operand{}, err
		}
		return CategoryOperand(cat), nil
	}
	return Operand{}, fmt.Errorf("%w: unknown operand prefix %q", ErrInvalidCondition, prefix)
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandStatus:
		return o.Status.String()
	case OperandCondition:
		return strconv.Quote(o.Condition)
	case OperandCategory:
		return o.Category.String()
	}
	return "<unset>"
}

type rawOperand struct {
	Status    *Status          `yaml:"status,omitempty"`
	Condition *string          `yaml:"condition,omitempty"`
	Category  *jobs.CategoryID `yaml:"category,omitempty"`
}

func (o Operand) MarshalYAML() (interface{}, error) {
	var raw rawOperand
	switch o.Kind {
	case OperandStatus:
		raw.Status = &o.Status
	case OperandCondition:
		raw.Condition = &o.Condition
	case OperandCategory:
		raw.Category = &o.Category
	default:
		return nil, fmt.Errorf("%w: operand has no kind", ErrInvalidCondition)
	}
	return raw, nil
}

func (o *Operand) UnmarshalYAML(value *yaml.Node) error {
	var raw rawOperand
	if err := value.Decode(&raw); err != nil {
		return err
	}
	set := 0
	if raw.Status != nil {
		*o = StatusOperand(*raw.Status)
		set++
	}
	if raw.Condition != nil {
		*o = ConditionOperand(*raw.Condition)
		set++
	}
	if raw.Category != nil {
		*o = CategoryOperand(*raw.Category)
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: operand needs exactly one of status, condition or category (line %d)", ErrInvalidCondition, value.Line)
	}
	return nil
}

// MultiItem is one (junction, negate, operand) term. The junction of the
// first item is ignored.
type MultiItem struct {
	Junction Junction `yaml:"junction"`
	Negate   bool     `yaml:"negate,omitempty"`
	Operand  Operand  `yaml:"operand"`
}

// Keybind is a modifier plus key chord.
type Keybind struct {
	Modifier state.VirtualKey `yaml:"modifier"`
	Key      state.VirtualKey `yaml:"key"`
}

// Pressed reports whether the chord is held. With neither key set it is
// never pressed; otherwise every key that is set must be down.
func (k Keybind) Pressed(w *state.World) bool {
	if k.Modifier == state.NoKey && k.Key == state.NoKey {
		return false
	}
	if k.Modifier != state.NoKey && !w.KeyDown(k.Modifier) {
		return false
	}
	if k.Key != state.NoKey && !w.KeyDown(k.Key) {
		return false
	}
	return true
}

func (k Keybind) String() string {
	switch {
	case k.Modifier == state.NoKey && k.Key == state.NoKey:
		return "unbound"
	case k.Modifier == state.NoKey:
		return k.Key.String()
	case k.Key == state.NoKey:
		return k.Modifier.String()
	}
	return k.Modifier.String() + "+" + k.Key.String()
}

// CustomCondition is a user-defined predicate usable wherever a status is.
type CustomCondition struct {
	Name          string        `yaml:"name"`
	Kind          ConditionKind `yaml:"kind"`
	HoldTime      float64       `yaml:"holdTime,omitempty"`
	Keybind       Keybind       `yaml:"keybind,omitempty"`
	MapIDs        []uint32      `yaml:"mapIds,omitempty"`
	ProviderIndex int           `yaml:"providerIndex"`
	Items         []MultiItem   `yaml:"items,omitempty"`
}

// UnmarshalYAML defaults the provider index to unset.
func (c *CustomCondition) UnmarshalYAML(value *yaml.Node) error {
	type rawCondition CustomCondition
	raw := rawCondition{ProviderIndex: provider.IndexUnset}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = CustomCondition(raw)
	return nil
}

// NewCondition returns an empty condition of kind.
func NewCondition(name string, kind ConditionKind) CustomCondition {
	return CustomCondition{Name: name, Kind: kind, ProviderIndex: provider.IndexUnset}
}

// Clone returns a deep copy.
func (c CustomCondition) Clone() CustomCondition {
	out := c
	out.MapIDs = append([]uint32(nil), c.MapIDs...)
	out.Items = append([]MultiItem(nil), c.Items...)
	return out
}

// ValidateName checks a condition name in isolation.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidCondition)
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("%w: name %q has surrounding whitespace", ErrInvalidCondition, name)
	}
	if strings.ContainsAny(name, "\"") {
		return fmt.Errorf("%w: name %q must not contain quotes", ErrInvalidCondition, name)
	}
	return nil
}

// Validate checks a condition without regard to its siblings.
func (c CustomCondition) Validate() error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if !c.Kind.valid() {
		return fmt.Errorf("%w: %q has unknown kind %q", ErrInvalidCondition, c.Name, c.Kind)
	}
	if c.HoldTime < 0 {
		return fmt.Errorf("%w: %q hold time must not be negative", ErrInvalidCondition, c.Name)
	}
	if c.Kind == KindMulti {
		for i, item := range c.Items {
			if item.Operand.Kind == 0 {
				return fmt.Errorf("%w: %q item %d has no operand", ErrInvalidCondition, c.Name, i)
			}
		}
	}
	return nil
}

// FindCondition returns the index of name, or -1.
func FindCondition(conds []CustomCondition, name string) int {
	for i, c := range conds {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// DefaultConditionName returns the first free "Condition<N>" name.
func DefaultConditionName(conds []CustomCondition) string {
	for n := len(conds) + 1; ; n++ {
		name := "Condition" + strconv.Itoa(n)
		if FindCondition(conds, name) < 0 {
			return name
		}
	}
}

// ValidateOperand checks that adding operand to the condition named editing
// keeps the reference graph acyclic.
func ValidateOperand(conds []CustomCondition, editing string, operand Operand) error {
	if operand.Kind != OperandCondition {
		return nil
	}
	if FindCondition(conds, operand.Condition) < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownCondition, operand.Condition)
	}
	seen := map[string]bool{}
	queue := []string{operand.Condition}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if name == editing {
			return fmt.Errorf("%w: %q reaches %q", ErrConditionCycle, operand.Condition, editing)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		idx := FindCondition(conds, name)
		if idx < 0 || conds[idx].Kind != KindMulti {
			continue
		}
		for _, item := range conds[idx].Items {
			if item.Operand.Kind == OperandCondition {
				queue = append(queue, item.Operand.Condition)
			}
		}
	}
	return nil
}

// ValidateConditions checks a full condition list: each condition, unique
// names, resolvable references and an acyclic reference graph.
func ValidateConditions(conds []CustomCondition) error {
	names := make(map[string]bool, len(conds))
	for _, c := range conds {
		if err := c.Validate(); err != nil {
			return err
		}
		if names[c.Name] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidCondition, c.Name)
		}
		names[c.Name] = true
	}
	for _, c := range conds {
		if c.Kind != KindMulti {
			continue
		}
		for _, item := range c.Items {
			if err := ValidateOperand(conds, c.Name, item.Operand); err != nil {
				return fmt.Errorf("condition %q: %w", c.Name, err)
			}
		}
	}
	return nil
}

// ManualStates holds the on/off values of console toggle conditions.
type ManualStates struct {
	mu      sync.Mutex
	values  map[string]bool
	updated bool
}

func NewManualStates() *ManualStates {
	return &ManualStates{values: make(map[string]bool)}
}

// Get returns the value for name, false when never set.
func (m *ManualStates) Get(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[name]
}

// Set stores a value and marks the container updated when it changed.
func (m *ManualStates) Set(name string, value bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[name] != value {
		m.updated = true
	}
	m.values[name] = value
}

// Toggle flips name and returns the new value.
func (m *ManualStates) Toggle(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = !m.values[name]
	m.updated = true
	return m.values[name]
}

// Rename moves a stored value to a new condition name.
func (m *ManualStates) Rename(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[from]; ok {
		delete(m.values, from)
		m.values[to] = v
	}
}

// Delete forgets name.
func (m *ManualStates) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[name] {
		m.updated = true
	}
	delete(m.values, name)
}

// TakeUpdated reports whether any value changed since the last call.
func (m *ManualStates) TakeUpdated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated := m.updated
	m.updated = false
	return updated
}

// Keybinds tracks the pressed state of every keybind condition so a press
// or release triggers re-evaluation.
type Keybinds struct {
	last map[string]bool
}

func NewKeybinds() *Keybinds {
	return &Keybinds{last: make(map[string]bool)}
}

// Update refreshes the pressed states and reports whether any changed.
func (k *Keybinds) Update(w *state.World, conds []CustomCondition) bool {
	changed := false
	next := make(map[string]bool, len(k.last))
	for _, c := range conds {
		if c.Kind != KindHoldToActivate {
			continue
		}
		pressed := c.Keybind.Pressed(w)
		next[c.Name] = pressed
		if k.last[c.Name] != pressed {
			changed = true
		}
	}
	for name, pressed := range k.last {
		if _, ok := next[name]; !ok && pressed {
			changed = true
		}
	}
	k.last = next
	return changed
}
