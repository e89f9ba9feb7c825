package hud

import (
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// WindowComponent is the enable mask of a Window.
type WindowComponent uint8

const (
	WindowX WindowComponent = 1 << iota
	WindowY
)

const WindowAllEnabled = WindowX | WindowY

// Position is a window position in screen pixels.
type Position struct {
	X int16 `yaml:"x" json:"x"`
	Y int16 `yaml:"y" json:"y"`
}

// Window is a positioned auxiliary game window keyed by addon name.
type Window struct {
	Enabled  WindowComponent `yaml:"enabled" json:"enabled"`
	Position Position        `yaml:"position" json:"position"`
}

// UnmarshalYAML defaults a missing enabled mask to both axes.
func (w *Window) UnmarshalYAML(value *yaml.Node) error {
	type rawWindow Window
	raw := rawWindow{Enabled: WindowAllEnabled}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*w = Window(raw)
	return nil
}

func NewWindow(x, y int16) Window {
	return Window{Enabled: WindowAllEnabled, Position: Position{X: x, Y: y}}
}

func (w Window) Clone() Window {
	return w
}

func (w *Window) UpdateEnabled(other Window) {
	if other.Enabled&WindowX != 0 {
		w.Position.X = other.Position.X
	}
	if other.Enabled&WindowY != 0 {
		w.Position.Y = other.Position.Y
	}
}

// OverlayComponent is the enable mask of an Overlay.
type OverlayComponent uint8

const (
	OverlayHidden OverlayComponent = 1 << iota
	OverlayLocked
	OverlayTypethrough
	OverlayClickthrough
)

const OverlayAllEnabled = OverlayHidden | OverlayLocked | OverlayTypethrough | OverlayClickthrough

// Overlay toggles an external browser overlay identified by its command name.
type Overlay struct {
	CommandName  string           `yaml:"commandName" json:"commandName"`
	Enabled      OverlayComponent `yaml:"enabled" json:"enabled"`
	Hidden       bool             `yaml:"hidden" json:"hidden"`
	Locked       bool             `yaml:"locked" json:"locked"`
	Typethrough  bool             `yaml:"typethrough" json:"typethrough"`
	Clickthrough bool             `yaml:"clickthrough" json:"clickthrough"`
}

func (o *Overlay) UnmarshalYAML(value *yaml.Node) error {
	type rawOverlay Overlay
	raw := rawOverlay{Enabled: OverlayHidden}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*o = Overlay(raw)
	return nil
}

func NewOverlay(command string) Overlay {
	return Overlay{CommandName: command, Enabled: OverlayHidden}
}

func (o Overlay) Clone() Overlay {
	return o
}

func (o *Overlay) UpdateEnabled(other Overlay) {
	if other.Enabled&OverlayHidden != 0 {
		o.Hidden = other.Hidden
	}
	if other.Enabled&OverlayLocked != 0 {
		o.Locked = other.Locked
	}
	if other.Enabled&OverlayTypethrough != 0 {
		o.Typethrough = other.Typethrough
	}
	if other.Enabled&OverlayClickthrough != 0 {
		o.Clickthrough = other.Clickthrough
	}
}

// Commands returns the chat commands that apply the enabled toggles. An
// empty or whitespace-containing command name yields nothing.
func (o Overlay) Commands() []string {
	if o.CommandName == "" || strings.IndexFunc(o.CommandName, unicode.IsSpace) >= 0 {
		return nil
	}
	var out []string
	add := func(bit OverlayComponent, param string, value bool) {
		if o.Enabled&bit == 0 {
			return
		}
		state := "off"
		if value {
			state = "on"
		}
		out = append(out, "/bw inlay "+o.CommandName+" "+param+" "+state)
	}
	add(OverlayHidden, "hidden", o.Hidden)
	add(OverlayLocked, "locked", o.Locked)
	add(OverlayTypethrough, "typethrough", o.Typethrough)
	add(OverlayClickthrough, "clickthrough", o.Clickthrough)
	return out
}
