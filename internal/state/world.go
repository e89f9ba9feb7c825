package state

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// InputMode is the control scheme the client is currently using.
type InputMode uint8

const (
	InputKeyboard InputMode = iota
	InputGamepad
)

func (m InputMode) String() string {
	if m == InputGamepad {
		return "gamepad"
	}
	return "keyboard"
}

// OnlineStatusRoleplaying is the online status row for "Role-playing".
const OnlineStatusRoleplaying = 22

// Player is the local character. It is absent while logged out or zoning.
type Player struct {
	JobID        uint32 `json:"jobId"`
	Level        uint8  `json:"level"`
	WeaponDrawn  bool   `json:"weaponDrawn"`
	OnlineStatus uint32 `json:"onlineStatus"`
}

// World is a snapshot of the game state the swapper reacts to.
type World struct {
	Player *Player `json:"player,omitempty"`

	InCombat        bool `json:"inCombat"`
	BoundByDuty     bool `json:"boundByDuty"`
	Crafting        bool `json:"crafting"`
	Gathering       bool `json:"gathering"`
	Fishing         bool `json:"fishing"`
	Mounted         bool `json:"mounted"`
	Performing      bool `json:"performing"`
	InPvp           bool `json:"inPvp"`
	InDialogue      bool `json:"inDialogue"`
	InFate          bool `json:"inFate"`
	FateLevelSynced bool `json:"fateLevelSynced"`
	InSanctuary     bool `json:"inSanctuary"`
	ChatFocused     bool `json:"chatFocused"`

	InputMode  InputMode `json:"inputMode"`
	FullScreen bool      `json:"fullScreen"`

	TerritoryID uint32 `json:"territoryId"`
	MapID       uint32 `json:"mapId"`

	KeysDown []VirtualKey `json:"keysDown,omitempty"`

	CharacterConfigOpen bool `json:"characterConfigOpen"`
	InCutscene          bool `json:"inCutscene"`
	BetweenAreas        bool `json:"betweenAreas"`
}

// DataSource reads game state snapshots. Reads are cheap and never block
// on the game.
type DataSource interface {
	Snapshot(ctx context.Context) (*World, error)
}

// JobID returns the player's class/job, 0 without a player.
func (w *World) JobID() uint32 {
	if w == nil || w.Player == nil {
		return 0
	}
	return w.Player.JobID
}

// KeyDown reports whether key is held. NoKey is never down.
func (w *World) KeyDown(key VirtualKey) bool {
	if w == nil || key == NoKey {
		return false
	}
	for _, k := range w.KeysDown {
		if k == key {
			return true
		}
	}
	return false
}

// Busy reports whether the client is in a state where the HUD must not be
// touched: a cutscene, a zone transition or the character configuration.
func (w *World) Busy() bool {
	return w.InCutscene || w.BetweenAreas || w.CharacterConfigOpen
}

// CloneWorld returns a deep copy of the provided world snapshot.
func CloneWorld(src *World) *World {
	if src == nil {
		return nil
	}
	copyWorld := *src
	if src.Player != nil {
		p := *src.Player
		copyWorld.Player = &p
	}
	if len(src.KeysDown) > 0 {
		copyWorld.KeysDown = append([]VirtualKey(nil), src.KeysDown...)
	}
	return &copyWorld
}

// VirtualKey is a Windows virtual key code as reported by the client.
type VirtualKey uint16

const (
	NoKey   VirtualKey = 0
	Shift   VirtualKey = 0x10
	Control VirtualKey = 0x11
	Menu    VirtualKey = 0x12
)

var keyNames = map[VirtualKey]string{
	NoKey:   "NO_KEY",
	Shift:   "SHIFT",
	Control: "CONTROL",
	Menu:    "MENU",
	0x08:    "BACK",
	0x09:    "TAB",
	0x0D:    "RETURN",
	0x14:    "CAPITAL",
	0x1B:    "ESCAPE",
	0x20:    "SPACE",
	0xC0:    "OEM_3",
}

func init() {
	for c := '0'; c <= '9'; c++ {
		keyNames[VirtualKey(c)] = "KEY_" + string(c)
	}
	for c := 'A'; c <= 'Z'; c++ {
		keyNames[VirtualKey(c)] = string(c)
	}
	for i := 1; i <= 12; i++ {
		keyNames[VirtualKey(0x70+i-1)] = "F" + strconv.Itoa(i)
	}
	for i := 0; i <= 9; i++ {
		keyNames[VirtualKey(0x60+i)] = "NUMPAD" + strconv.Itoa(i)
	}
}

// ModifierKeys are the keys offered as the modifier of a keybind.
var ModifierKeys = []VirtualKey{NoKey, Shift, Control, Menu}

func (k VirtualKey) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", uint16(k))
}

// ParseVirtualKey accepts a key name (case-insensitive), "0x" hex or a
// decimal code.
func ParseVirtualKey(s string) (VirtualKey, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	for k, name := range keyNames {
		if name == trimmed {
			return k, nil
		}
	}
	if strings.HasPrefix(trimmed, "0X") {
		v, err := strconv.ParseUint(trimmed[2:], 16, 16)
		if err == nil {
			return VirtualKey(v), nil
		}
	}
	if v, err := strconv.ParseUint(trimmed, 10, 16); err == nil {
		return VirtualKey(v), nil
	}
	return NoKey, fmt.Errorf("unknown key %q", s)
}

func (k VirtualKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *VirtualKey) UnmarshalText(text []byte) error {
	v, err := ParseVirtualKey(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// SortKeys orders keys by code.
func SortKeys(keys []VirtualKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}
