package hud

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"github.com/google/uuid"
)

// ExternalConfig is an opaque JSON document handed to an external plugin.
// It is merged wholesale, the last layout applied wins.
type ExternalConfig []byte

func (c ExternalConfig) MarshalText() ([]byte, error) {
	return append([]byte(nil), c...), nil
}

func (c *ExternalConfig) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = nil
		return nil
	}
	if !json.Valid(text) {
		return fmt.Errorf("external config must be valid JSON")
	}
	*c = append(ExternalConfig(nil), text...)
	return nil
}

func (c ExternalConfig) Clone() ExternalConfig {
	if c == nil {
		return nil
	}
	return append(ExternalConfig(nil), c...)
}

// SavedLayout is a node of the layout tree. Parent is uuid.Nil for roots.
type SavedLayout struct {
	Name     string                  `yaml:"name" json:"name"`
	Parent   uuid.UUID               `yaml:"parent" json:"parent"`
	Elements map[ElementKind]Element `yaml:"elements,omitempty" json:"elements,omitempty"`
	Windows  map[string]Window       `yaml:"windows,omitempty" json:"windows,omitempty"`
	Overlays []Overlay               `yaml:"overlays,omitempty" json:"overlays,omitempty"`
	External ExternalConfig          `yaml:"external,omitempty" json:"external,omitempty"`
}

// Normalize fills element kinds from their map keys.
func (l *SavedLayout) Normalize() {
	for kind, el := range l.Elements {
		if el.Kind != kind {
			el.Kind = kind
			l.Elements[kind] = el
		}
	}
}

// HasParent reports whether the layout declares a parent.
func (l SavedLayout) HasParent() bool {
	return l.Parent != uuid.Nil
}

// Clone returns a deep copy.
func (l SavedLayout) Clone() SavedLayout {
	out := l
	if l.Elements != nil {
		out.Elements = make(map[ElementKind]Element, len(l.Elements))
		for k, el := range l.Elements {
			out.Elements[k] = el.Clone()
		}
	}
	if l.Windows != nil {
		out.Windows = make(map[string]Window, len(l.Windows))
		for k, w := range l.Windows {
			out.Windows[k] = w
		}
	}
	if l.Overlays != nil {
		out.Overlays = append([]Overlay(nil), l.Overlays...)
	}
	out.External = l.External.Clone()
	return out
}

// LayoutFromElements builds a root layout holding full overrides of elements.
func LayoutFromElements(name string, elements []Element) SavedLayout {
	out := SavedLayout{Name: name, Elements: make(map[ElementKind]Element, len(elements))}
	for _, el := range elements {
		if !el.Kind.IsReal() {
			continue
		}
		el = el.Clone()
		el.Enabled = AllEnabled
		out.Elements[el.Kind] = el
	}
	return out
}

// EffectiveLayout is a fully merged, non-hierarchical layout.
type EffectiveLayout struct {
	Name     string                  `json:"name"`
	Elements map[ElementKind]Element `json:"elements"`
	Windows  map[string]Window       `json:"windows"`
	Overlays []Overlay               `json:"overlays,omitempty"`
	External ExternalConfig          `json:"external,omitempty"`
}

func NewEffectiveLayout() *EffectiveLayout {
	return &EffectiveLayout{
		Elements: make(map[ElementKind]Element),
		Windows:  make(map[string]Window),
	}
}

// SortedKinds returns the element kinds ordered by sheet row.
func (l *EffectiveLayout) SortedKinds() []ElementKind {
	kinds := make([]ElementKind, 0, len(l.Elements))
	for kind := range l.Elements {
		kinds = append(kinds, kind)
	}
	sortKinds(kinds)
	return kinds
}

// SortedWindows returns the window names in lexical order.
func (l *EffectiveLayout) SortedWindows() []string {
	names := make([]string, 0, len(l.Windows))
	for name := range l.Windows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fingerprint hashes the merged content. Equal layouts share a fingerprint.
func (l *EffectiveLayout) Fingerprint() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:4], v)
		h.Write(buf[:4])
	}
	putBytes := func(b []byte) {
		putU32(uint32(len(b)))
		h.Write(b)
	}
	for _, kind := range l.SortedKinds() {
		el := l.Elements[kind]
		putU32(uint32(kind))
		putU32(uint32(el.Enabled))
		putU32(uint32(el.LayoutFlags))
		putU32(math.Float32bits(el.X))
		putU32(math.Float32bits(el.Y))
		putU32(math.Float32bits(el.Scale))
		putBytes(el.Options)
		putU32(uint32(el.Width)<<16 | uint32(el.Height))
		h.Write([]byte{byte(el.MeasuredFrom), byte(el.Visibility), el.Unknown6, el.Opacity})
		putBytes(el.Unknown8)
	}
	for _, name := range l.SortedWindows() {
		w := l.Windows[name]
		putBytes([]byte(name))
		putU32(uint32(uint16(w.Position.X))<<16 | uint32(uint16(w.Position.Y)))
		h.Write([]byte{byte(w.Enabled)})
	}
	for _, o := range l.Overlays {
		putBytes([]byte(o.CommandName))
		h.Write([]byte{byte(o.Enabled), boolByte(o.Hidden), boolByte(o.Locked), boolByte(o.Typethrough), boolByte(o.Clickthrough)})
	}
	putBytes(l.External)
	return h.Sum64()
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func sortKinds(kinds []ElementKind) {
	sort.Slice(kinds, func(i, j int) bool {
		ri, rj := kinds[i].RowID(), kinds[j].RowID()
		if ri == rj {
			return kinds[i] < kinds[j]
		}
		return ri < rj
	})
}
