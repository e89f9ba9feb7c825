package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/hudman/hudman/internal/control"
	"github.com/hudman/hudman/internal/engine"
	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/metrics"
)

const (
	// defaultTimeout is used when the caller does not provide a context deadline.
	defaultTimeout = 3 * time.Second
)

// Client talks to the running hudman daemon over its control socket.
type Client struct {
	socketPath string
}

type (
	// Status is the daemon's swapper summary.
	Status = engine.Status
	// Inspection is the daemon's full inspector payload.
	Inspection = engine.Inspection
	// ImportResult names the layout a slot was imported into.
	ImportResult = control.ImportResult
	// MetricsSnapshot mirrors the telemetry payload returned by the daemon.
	MetricsSnapshot = metrics.Snapshot
)

// New creates a client that connects to the provided socket path. When path is
// empty, the default runtime path is used.
func New(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = control.DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{socketPath: path}, nil
}

// Status retrieves the swapper summary.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	if err := c.do(ctx, control.Request{Action: control.ActionStatus}, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// Inspect retrieves the last snapshot, per-rule traces and the write log.
func (c *Client) Inspect(ctx context.Context) (Inspection, error) {
	var insp Inspection
	if err := c.do(ctx, control.Request{Action: control.ActionInspect}, &insp); err != nil {
		return Inspection{}, err
	}
	return insp, nil
}

// Command runs a chat command such as "swap Crafting" and returns the reply.
func (c *Client) Command(ctx context.Context, input string) (string, error) {
	if input == "" {
		return "", errors.New("command cannot be empty")
	}
	var result control.CommandResult
	req := control.Request{Action: control.ActionCommand, Params: map[string]any{"input": input}}
	if err := c.do(ctx, req, &result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// Lock suspends swapping while the HUD is being edited.
func (c *Client) Lock(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionLock}, nil)
}

// Unlock releases the edit lock.
func (c *Client) Unlock(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionUnlock}, nil)
}

// Reload asks the daemon to reload its configuration.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionReload}, nil)
}

// Resolve asks the daemon for the effective layout of a layout and layers.
func (c *Client) Resolve(ctx context.Context, layout string, layers []string) (*hud.EffectiveLayout, error) {
	if layout == "" {
		return nil, errors.New("layout cannot be empty")
	}
	params := map[string]any{"layout": layout}
	if len(layers) > 0 {
		params["layers"] = layers
	}
	eff := hud.NewEffectiveLayout()
	if err := c.do(ctx, control.Request{Action: control.ActionResolve, Params: params}, eff); err != nil {
		return nil, err
	}
	return eff, nil
}

// Import stores a live HUD slot as a saved layout.
func (c *Client) Import(ctx context.Context, name string, slot int) (ImportResult, error) {
	if name == "" {
		return ImportResult{}, errors.New("layout name cannot be empty")
	}
	var result ImportResult
	params := map[string]any{"name": name, "slot": slot}
	if err := c.do(ctx, control.Request{Action: control.ActionImport, Params: params}, &result); err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

// Edit sends a configuration edit such as control.ActionSwapAdd and returns
// the daemon's summary of the change.
func (c *Client) Edit(ctx context.Context, action string, params map[string]any) (string, error) {
	var result control.CommandResult
	if err := c.do(ctx, control.Request{Action: action, Params: params}, &result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// Metrics retrieves the telemetry counters.
func (c *Client) Metrics(ctx context.Context) (MetricsSnapshot, error) {
	var snap MetricsSnapshot
	if err := c.do(ctx, control.Request{Action: control.ActionMetrics}, &snap); err != nil {
		return MetricsSnapshot{}, err
	}
	return snap, nil
}

func (c *Client) do(ctx context.Context, req control.Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var resp struct {
		Status string          `json:"status"`
		Error  string          `json:"error,omitempty"`
		Data   json.RawMessage `json:"data,omitempty"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != control.StatusOK {
		if resp.Error == "" {
			resp.Error = "unknown control error"
		}
		return errors.New(resp.Error)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
