package staging

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/hud"
)

// ForceReason is why the next write bypasses change detection.
type ForceReason int

const (
	ForceNone ForceReason = iota
	ForceNoActiveLayout
	ForceSwapSettingChanged
	ForceEditLockRemoved
	ForceConfigReloaded
	ForceManual
)

var forceNames = map[ForceReason]string{
	ForceNone:               "none",
	ForceNoActiveLayout:     "no-active-layout",
	ForceSwapSettingChanged: "swap-setting-changed",
	ForceEditLockRemoved:    "edit-lock-removed",
	ForceConfigReloaded:     "config-reloaded",
	ForceManual:             "manual",
}

func (r ForceReason) String() string {
	if name, ok := forceNames[r]; ok {
		return name
	}
	return fmt.Sprintf("force(%d)", int(r))
}

func (r ForceReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *ForceReason) UnmarshalText(text []byte) error {
	for reason, name := range forceNames {
		if name == string(text) {
			*r = reason
			return nil
		}
	}
	return fmt.Errorf("unknown force reason %q", text)
}

// State is the last applied (job, layout, layers) triple.
type State struct {
	JobID    uint32      `json:"jobId"`
	LayoutID uuid.UUID   `json:"layoutId"`
	LayerIDs []uuid.UUID `json:"layerIds,omitempty"`
	// Fingerprint identifies the merged content that was written.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// SameLayouts reports whether layout and layers equal the staged ones.
func (s State) SameLayouts(layout uuid.UUID, layers []uuid.UUID) bool {
	if s.LayoutID != layout || len(s.LayerIDs) != len(layers) {
		return false
	}
	for i := range layers {
		if s.LayerIDs[i] != layers[i] {
			return false
		}
	}
	return true
}

// Sink applies layouts to the live client. WriteLayout with reload set
// selects slot and makes the client reload it.
type Sink interface {
	ActiveSlot() (int, error)
	ReadSlot(slot int) ([]hud.Element, error)
	WriteLayout(slot int, elements []hud.Element, reload bool) error
	ApplyJobGaugeVisibility(kind hud.ElementKind, visible bool) error
	SetWindowPosition(name string, window hud.Window) error
	ApplyOverlay(overlay hud.Overlay) error
	ApplyExternalConfig(config hud.ExternalConfig) error
}

// Resolver computes the effective layout for a selection.
type Resolver interface {
	Resolve(target uuid.UUID, layers []uuid.UUID) (*hud.EffectiveLayout, error)
}

// Recorder receives write outcomes.
type Recorder interface {
	RecordWrite(outcome string, reason string)
}

// MergeIntoSlot overlays an effective layout onto the live slot contents.
// Elements the layout does not define keep their live values. The minimap
// keeps its live options, and the first hotbar keeps its live cycling byte
// unless the element clobbers transient options.
func MergeIntoSlot(live []hud.Element, layout *hud.EffectiveLayout) []hud.Element {
	out := make([]hud.Element, len(live))
	for i, current := range live {
		out[i] = current.Clone()
		incoming, ok := layout.Elements[current.Kind]
		if !ok {
			continue
		}
		liveOptions := current.Options.Clone()
		merged := current.Clone()
		if incoming.Enabled == hud.AllEnabled {
			merged = incoming.Clone()
		} else {
			merged.UpdateEnabled(incoming)
		}
		merged.Kind = current.Kind
		switch {
		case current.Kind == hud.Minimap:
			merged.Options = liveOptions
		case current.Kind == hud.Hotbar1 && incoming.LayoutFlags&hud.ClobberTransientOptions == 0:
			if len(liveOptions) > 0 && len(merged.Options) > 0 {
				merged.Options = merged.Options.Clone()
				merged.Options[0] = liveOptions[0]
			}
		}
		out[i] = merged
	}
	return out
}
