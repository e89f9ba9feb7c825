package hud

import (
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ElementComponent is the per-field enable mask of an Element.
type ElementComponent uint32

const (
	ComponentX ElementComponent = 1 << iota
	ComponentY
	ComponentScale
	ComponentVisibility
	ComponentOpacity
	ComponentOptions
)

// AllEnabled marks an element as a full override.
const AllEnabled = ComponentX | ComponentY | ComponentScale | ComponentVisibility | ComponentOpacity | ComponentOptions

var componentNames = []struct {
	bit  ElementComponent
	name string
}{
	{ComponentX, "x"},
	{ComponentY, "y"},
	{ComponentScale, "scale"},
	{ComponentVisibility, "visibility"},
	{ComponentOpacity, "opacity"},
	{ComponentOptions, "options"},
}

func (c ElementComponent) Has(bit ElementComponent) bool {
	return c&bit != 0
}

func (c ElementComponent) String() string {
	if c == AllEnabled {
		return "all"
	}
	parts := make([]string, 0, len(componentNames))
	for _, entry := range componentNames {
		if c.Has(entry.bit) {
			parts = append(parts, entry.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// MarshalYAML writes the mask as "all" or a list of field names.
func (c ElementComponent) MarshalYAML() (interface{}, error) {
	if c == AllEnabled {
		return "all", nil
	}
	names := make([]string, 0, len(componentNames))
	for _, entry := range componentNames {
		if c.Has(entry.bit) {
			names = append(names, entry.name)
		}
	}
	return names, nil
}

// UnmarshalYAML accepts "all", a list of field names, or a raw bitmask.
func (c *ElementComponent) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if strings.EqualFold(value.Value, "all") {
			*c = AllEnabled
			return nil
		}
		var raw uint32
		if err := value.Decode(&raw); err != nil {
			return fmt.Errorf("enabled must be \"all\", a list, or a bitmask: %w", err)
		}
		*c = ElementComponent(raw) & AllEnabled
		return nil
	case yaml.SequenceNode:
		var mask ElementComponent
		for _, item := range value.Content {
			bit, ok := componentByName(item.Value)
			if !ok {
				return fmt.Errorf("unknown element component %q", item.Value)
			}
			mask |= bit
		}
		*c = mask
		return nil
	default:
		return fmt.Errorf("enabled must be a scalar or a list")
	}
}

func componentByName(name string) (ElementComponent, bool) {
	for _, entry := range componentNames {
		if strings.EqualFold(entry.name, name) {
			return entry.bit, true
		}
	}
	return 0, false
}

// VisibilityFlags selects the input modes an element is shown in.
type VisibilityFlags uint8

const (
	VisibleKeyboard VisibilityFlags = 1 << iota
	VisibleGamepad
)

// MeasuredFrom is the anchor corner an element position is measured from.
type MeasuredFrom uint8

const (
	MeasuredTopLeft MeasuredFrom = iota
	MeasuredTopMiddle
	MeasuredTopRight
	MeasuredMiddleLeft
	MeasuredMiddle
	MeasuredMiddleRight
	MeasuredBottomLeft
	MeasuredBottomMiddle
	MeasuredBottomRight
)

// LayoutFlags tune how an element is written into a live slot.
type LayoutFlags uint32

const (
	// ClobberTransientOptions overwrites transient option bytes such as the
	// hotbar cycling state instead of keeping the live value.
	ClobberTransientOptions LayoutFlags = 1 << iota
)

// Blob is an opaque byte field stored as hex text.
type Blob []byte

func (b Blob) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

func (b *Blob) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*b = nil
		return nil
	}
	out, err := hex.DecodeString(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("decode blob: %w", err)
	}
	*b = out
	return nil
}

func (b Blob) Clone() Blob {
	if b == nil {
		return nil
	}
	return append(Blob(nil), b...)
}

// Element is one HUD widget override. Only fields whose bit is set in
// Enabled are authoritative when layouts are merged.
type Element struct {
	Kind         ElementKind      `yaml:"-" json:"kind"`
	Enabled      ElementComponent `yaml:"enabled" json:"enabled"`
	LayoutFlags  LayoutFlags      `yaml:"layoutFlags,omitempty" json:"layoutFlags,omitempty"`
	X            float32          `yaml:"x" json:"x"`
	Y            float32          `yaml:"y" json:"y"`
	Scale        float32          `yaml:"scale" json:"scale"`
	Options      Blob             `yaml:"options,omitempty" json:"options,omitempty"`
	Width        uint16           `yaml:"width,omitempty" json:"width,omitempty"`
	Height       uint16           `yaml:"height,omitempty" json:"height,omitempty"`
	MeasuredFrom MeasuredFrom     `yaml:"measuredFrom,omitempty" json:"measuredFrom,omitempty"`
	Visibility   VisibilityFlags  `yaml:"visibility" json:"visibility"`
	Unknown6     uint8            `yaml:"unknown6,omitempty" json:"unknown6,omitempty"`
	Opacity      uint8            `yaml:"opacity" json:"opacity"`
	Unknown8     Blob             `yaml:"unknown8,omitempty" json:"unknown8,omitempty"`
}

// UnmarshalYAML defaults a missing enabled mask to a full override.
func (e *Element) UnmarshalYAML(value *yaml.Node) error {
	type rawElement Element
	raw := rawElement{Enabled: AllEnabled}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*e = Element(raw)
	return nil
}

// NewElement returns a full override element for kind.
func NewElement(kind ElementKind) Element {
	return Element{Kind: kind, Enabled: AllEnabled, Scale: 1, Opacity: 255, Visibility: VisibleKeyboard | VisibleGamepad}
}

func (e Element) Clone() Element {
	out := e
	out.Options = e.Options.Clone()
	out.Unknown8 = e.Unknown8.Clone()
	return out
}

// Visible reports whether the element is shown for any of the given modes.
func (e Element) Visible(mode VisibilityFlags) bool {
	return e.Visibility&mode != 0
}

// UpdateEnabled copies the fields other enables. Derived metadata is always
// taken from other.
func (e *Element) UpdateEnabled(other Element) {
	if other.Enabled.Has(ComponentX) {
		e.X = other.X
	}
	if other.Enabled.Has(ComponentY) {
		e.Y = other.Y
	}
	if other.Enabled.Has(ComponentScale) {
		e.Scale = other.Scale
	}
	if other.Enabled.Has(ComponentVisibility) {
		e.Visibility = other.Visibility
	}
	if other.Enabled.Has(ComponentOpacity) {
		e.Opacity = other.Opacity
	}
	if other.Enabled.Has(ComponentOptions) {
		e.Options = other.Options.Clone()
	}
	e.Width = other.Width
	e.Height = other.Height
	e.MeasuredFrom = other.MeasuredFrom
	e.Unknown6 = other.Unknown6
	e.Unknown8 = other.Unknown8.Clone()
}
