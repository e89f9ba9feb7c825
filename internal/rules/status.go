package rules

import (
	"fmt"
	"strings"

	"github.com/hudman/hudman/internal/state"
)

// Status is a built-in game state predicate. Names are persisted in the
// configuration and must not change.
type Status uint8

const (
	StatusNone Status = iota
	InCombat
	WeaponDrawn
	InInstance
	Crafting
	Gathering
	Fishing
	Mounted
	Roleplaying
	PlayingMusic
	InPvp
	InDialogue
	InFate
	InFateLevelSynced
	InSanctuary
	ChatFocused
	InputModeKbm
	InputModeGamepad
	Windowed
	FullScreen
)

type statusInfo struct {
	key           string
	display       string
	requirePlayer bool
	eval          func(w *state.World) bool
}

var statuses = map[Status]statusInfo{
	InCombat: {"InCombat", "In combat", false, func(w *state.World) bool { return w.InCombat }},
	WeaponDrawn: {"WeaponDrawn", "Weapon drawn", true, func(w *state.World) bool {
		return w.Player.WeaponDrawn
	}},
	InInstance: {"InInstance", "In instance", false, func(w *state.World) bool { return w.BoundByDuty }},
	Crafting:   {"Crafting", "Crafting", false, func(w *state.World) bool { return w.Crafting }},
	Gathering:  {"Gathering", "Gathering", false, func(w *state.World) bool { return w.Gathering }},
	Fishing:    {"Fishing", "Fishing", false, func(w *state.World) bool { return w.Fishing }},
	Mounted:    {"Mounted", "Mounted", false, func(w *state.World) bool { return w.Mounted }},
	Roleplaying: {"Roleplaying", "Roleplaying", true, func(w *state.World) bool {
		return w.Player.OnlineStatus == state.OnlineStatusRoleplaying
	}},
	PlayingMusic:      {"PlayingMusic", "Performing music", false, func(w *state.World) bool { return w.Performing }},
	InPvp:             {"InPvp", "In PvP", false, func(w *state.World) bool { return w.InPvp }},
	InDialogue:        {"InDialogue", "In dialogue", false, func(w *state.World) bool { return w.InDialogue }},
	InFate:            {"InFate", "In FATE area", false, func(w *state.World) bool { return w.InFate }},
	InFateLevelSynced: {"InFateLevelSynced", "Level-synced for FATE", false, func(w *state.World) bool { return w.FateLevelSynced }},
	InSanctuary:       {"InSanctuary", "In a sanctuary", false, func(w *state.World) bool { return w.InSanctuary }},
	ChatFocused:       {"ChatFocused", "Chat focused", false, func(w *state.World) bool { return w.ChatFocused }},
	InputModeKbm:      {"InputModeKbm", "Keyboard/mouse mode", false, func(w *state.World) bool { return w.InputMode == state.InputKeyboard }},
	InputModeGamepad:  {"InputModeGamepad", "Gamepad mode", false, func(w *state.World) bool { return w.InputMode == state.InputGamepad }},
	Windowed:          {"Windowed", "Windowed", false, func(w *state.World) bool { return !w.FullScreen }},
	FullScreen:        {"FullScreen", "Full Screen", false, func(w *state.World) bool { return w.FullScreen }},
}

// AllStatuses returns every predicate in declaration order.
func AllStatuses() []Status {
	out := make([]Status, 0, len(statuses))
	for s := InCombat; s <= FullScreen; s++ {
		out = append(out, s)
	}
	return out
}

// Evaluate reports the predicate for w. Predicates that need the player are
// false without one.
func (s Status) Evaluate(w *state.World) bool {
	info, ok := statuses[s]
	if !ok || w == nil {
		return false
	}
	if info.requirePlayer && w.Player == nil {
		return false
	}
	return info.eval(w)
}

// RequiresPlayer reports whether the predicate reads player fields.
func (s Status) RequiresPlayer() bool {
	return statuses[s].requirePlayer
}

// DisplayName is the user-facing name.
func (s Status) DisplayName() string {
	if info, ok := statuses[s]; ok {
		return info.display
	}
	return s.String()
}

func (s Status) String() string {
	if info, ok := statuses[s]; ok {
		return info.key
	}
	if s == StatusNone {
		return "None"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// ParseStatus accepts a persisted name, case-insensitive.
func ParseStatus(name string) (Status, error) {
	trimmed := strings.TrimSpace(name)
	for s, info := range statuses {
		if strings.EqualFold(info.key, trimmed) {
			return s, nil
		}
	}
	return StatusNone, fmt.Errorf("unknown status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = StatusNone
		return nil
	}
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
