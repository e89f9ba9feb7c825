package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/provider"
	"github.com/hudman/hudman/internal/staging"
	"github.com/hudman/hudman/internal/state"
)

var (
	_ state.DataSource  = (*Client)(nil)
	_ staging.Sink      = (*Client)(nil)
	_ provider.Provider = (*Client)(nil)
)

// ErrBridge wraps errors reported by the bridge itself.
var ErrBridge = errors.New("bridge error")

const defaultTimeout = 2 * time.Second

// Client talks to the in-game bridge over its request socket. Each call
// opens a connection, writes one JSON line and reads one JSON line back.
type Client struct {
	path    string
	timeout time.Duration
}

// NewClient returns a client for path, or for SocketPath when path is empty.
func NewClient(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = SocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{path: path, timeout: defaultTimeout}, nil
}

// Path returns the socket the client dials.
func (c *Client) Path() string {
	return c.path
}

func envelope(op string) []byte {
	out, _ := sjson.SetBytes([]byte(`{}`), "op", op)
	return out
}

func (c *Client) call(ctx context.Context, req []byte) (gjson.Result, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	op := gjson.GetBytes(req, "op").String()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("connect bridge: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(append(req, '\n')); err != nil {
		return gjson.Result{}, fmt.Errorf("%s: write request: %w", op, err)
	}
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return gjson.Result{}, fmt.Errorf("%s: read response: %w", op, err)
	}
	if !gjson.ValidBytes(line) {
		return gjson.Result{}, fmt.Errorf("%s: invalid response %q", op, strings.TrimSpace(string(line)))
	}
	res := gjson.ParseBytes(line)
	if !res.Get("ok").Bool() {
		msg := res.Get("error").String()
		if msg == "" {
			msg = "request failed"
		}
		return res, fmt.Errorf("%s: %w: %s", op, ErrBridge, msg)
	}
	return res, nil
}

// Snapshot reads the current game state.
func (c *Client) Snapshot(ctx context.Context) (*state.World, error) {
	res, err := c.call(ctx, envelope("state"))
	if err != nil {
		return nil, err
	}
	return decodeWorld(res.Get("state")), nil
}

func decodeWorld(v gjson.Result) *state.World {
	w := &state.World{
		InCombat:            v.Get("inCombat").Bool(),
		BoundByDuty:         v.Get("boundByDuty").Bool(),
		Crafting:            v.Get("crafting").Bool(),
		Gathering:           v.Get("gathering").Bool(),
		Fishing:             v.Get("fishing").Bool(),
		Mounted:             v.Get("mounted").Bool(),
		Performing:          v.Get("performing").Bool(),
		InPvp:               v.Get("inPvp").Bool(),
		InDialogue:          v.Get("inDialogue").Bool(),
		InFate:              v.Get("inFate").Bool(),
		FateLevelSynced:     v.Get("fateLevelSynced").Bool(),
		InSanctuary:         v.Get("inSanctuary").Bool(),
		ChatFocused:         v.Get("chatFocused").Bool(),
		FullScreen:          v.Get("fullScreen").Bool(),
		TerritoryID:         uint32(v.Get("territoryId").Uint()),
		MapID:               uint32(v.Get("mapId").Uint()),
		CharacterConfigOpen: v.Get("characterConfigOpen").Bool(),
		InCutscene:          v.Get("inCutscene").Bool(),
		BetweenAreas:        v.Get("betweenAreas").Bool(),
	}
	if strings.EqualFold(v.Get("inputMode").String(), "gamepad") || v.Get("inputMode").Int() == int64(state.InputGamepad) {
		w.InputMode = state.InputGamepad
	}
	if p := v.Get("player"); p.Exists() && p.Type != gjson.Null {
		w.Player = &state.Player{
			JobID:        uint32(p.Get("jobId").Uint()),
			Level:        uint8(p.Get("level").Uint()),
			WeaponDrawn:  p.Get("weaponDrawn").Bool(),
			OnlineStatus: uint32(p.Get("onlineStatus").Uint()),
		}
	}
	v.Get("keysDown").ForEach(func(_, k gjson.Result) bool {
		if k.Type == gjson.String {
			if key, err := state.ParseVirtualKey(k.String()); err == nil {
				w.KeysDown = append(w.KeysDown, key)
			}
			return true
		}
		w.KeysDown = append(w.KeysDown, state.VirtualKey(k.Uint()))
		return true
	})
	return w
}

// ActiveSlot returns the layout slot the client currently shows.
func (c *Client) ActiveSlot() (int, error) {
	res, err := c.call(context.Background(), envelope("slot.active"))
	if err != nil {
		return 0, err
	}
	return int(res.Get("slot").Int()), nil
}

// ReadSlot returns the stored elements of slot.
func (c *Client) ReadSlot(slot int) ([]hud.Element, error) {
	req, _ := sjson.SetBytes(envelope("slot.read"), "slot", slot)
	res, err := c.call(context.Background(), req)
	if err != nil {
		return nil, err
	}
	var elements []hud.Element
	var decodeErr error
	res.Get("elements").ForEach(func(_, v gjson.Result) bool {
		var el hud.Element
		if err := json.Unmarshal([]byte(v.Raw), &el); err != nil {
			decodeErr = fmt.Errorf("decode element: %w", err)
			return false
		}
		elements = append(elements, el)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return elements, nil
}

// WriteLayout stores elements in slot. With reload the client selects slot
// and re-reads it so the change is shown immediately.
func (c *Client) WriteLayout(slot int, elements []hud.Element, reload bool) error {
	raw, err := json.Marshal(elements)
	if err != nil {
		return fmt.Errorf("encode elements: %w", err)
	}
	req := envelope("slot.write")
	req, _ = sjson.SetBytes(req, "slot", slot)
	req, _ = sjson.SetBytes(req, "reload", reload)
	req, err = sjson.SetRawBytes(req, "elements", raw)
	if err != nil {
		return fmt.Errorf("compose slot.write: %w", err)
	}
	_, err = c.call(context.Background(), req)
	return err
}

// ApplyJobGaugeVisibility shows or hides a job gauge addon.
func (c *Client) ApplyJobGaugeVisibility(kind hud.ElementKind, visible bool) error {
	req := envelope("gauge.visibility")
	req, _ = sjson.SetBytes(req, "kind", kind.String())
	req, _ = sjson.SetBytes(req, "addon", kind.GaugeAddon())
	req, _ = sjson.SetBytes(req, "visible", visible)
	_, err := c.call(context.Background(), req)
	return err
}

// SetWindowPosition moves an auxiliary window. Axes missing from the
// window's enable mask are not sent.
func (c *Client) SetWindowPosition(name string, window hud.Window) error {
	req := envelope("window.position")
	req, _ = sjson.SetBytes(req, "name", name)
	if window.Enabled&hud.WindowX != 0 {
		req, _ = sjson.SetBytes(req, "x", window.Position.X)
	}
	if window.Enabled&hud.WindowY != 0 {
		req, _ = sjson.SetBytes(req, "y", window.Position.Y)
	}
	_, err := c.call(context.Background(), req)
	return err
}

// ApplyOverlay sends the chat commands that toggle an overlay.
func (c *Client) ApplyOverlay(overlay hud.Overlay) error {
	commands := overlay.Commands()
	if len(commands) == 0 {
		return nil
	}
	req := envelope("overlay.apply")
	req, _ = sjson.SetBytes(req, "commandName", overlay.CommandName)
	req, _ = sjson.SetBytes(req, "commands", commands)
	_, err := c.call(context.Background(), req)
	return err
}

// ApplyExternalConfig hands an opaque JSON document to the external
// plugin. It is embedded in the request verbatim.
func (c *Client) ApplyExternalConfig(config hud.ExternalConfig) error {
	if len(config) == 0 {
		return nil
	}
	req, err := sjson.SetRawBytes(envelope("external.apply"), "config", config)
	if err != nil {
		return fmt.Errorf("compose external.apply: %w", err)
	}
	_, err = c.call(context.Background(), req)
	return err
}

// Available reports whether the condition provider is loaded.
func (c *Client) Available() bool {
	res, err := c.call(context.Background(), envelope("provider.sets"))
	if err != nil {
		return false
	}
	return res.Get("available").Bool()
}

// ConditionSets lists the provider's condition sets in index order.
func (c *Client) ConditionSets() ([]string, error) {
	res, err := c.call(context.Background(), envelope("provider.sets"))
	if err != nil {
		return nil, err
	}
	if !res.Get("available").Bool() {
		return nil, provider.ErrUnavailable
	}
	var sets []string
	res.Get("sets").ForEach(func(_, v gjson.Result) bool {
		sets = append(sets, v.String())
		return true
	})
	return sets, nil
}

// CheckConditionSet evaluates the set at index.
func (c *Client) CheckConditionSet(index int) (bool, error) {
	req, _ := sjson.SetBytes(envelope("provider.check"), "index", index)
	res, err := c.call(context.Background(), req)
	if err != nil {
		if res.Get("unavailable").Bool() {
			return false, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
		}
		return false, err
	}
	return res.Get("value").Bool(), nil
}
