package control

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/config"
	"github.com/hudman/hudman/internal/engine"
	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/metrics"
	"github.com/hudman/hudman/internal/rules"
	"github.com/hudman/hudman/internal/state"
	"github.com/hudman/hudman/internal/util"
)

var rootID = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")

type fakeSource struct{}

func (fakeSource) Snapshot(context.Context) (*state.World, error) {
	return &state.World{Player: &state.Player{JobID: 19}}, nil
}

type fakeSink struct {
	mu     sync.Mutex
	writes int
}

func (s *fakeSink) ActiveSlot() (int, error) { return 1, nil }
func (s *fakeSink) ReadSlot(int) ([]hud.Element, error) {
	return []hud.Element{hud.NewElement(hud.PartyList)}, nil
}
func (s *fakeSink) WriteLayout(int, []hud.Element, bool) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return nil
}
func (s *fakeSink) ApplyJobGaugeVisibility(hud.ElementKind, bool) error { return nil }
func (s *fakeSink) SetWindowPosition(string, hud.Window) error          { return nil }
func (s *fakeSink) ApplyOverlay(hud.Overlay) error                      { return nil }
func (s *fakeSink) ApplyExternalConfig(hud.ExternalConfig) error        { return nil }

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func newTestServer(t *testing.T, reload func(string) error) (*Server, *engine.Engine, *fakeSink) {
	t.Helper()
	cfg := config.Default()
	cfg.UnderstandsRisks = true
	cfg.SwapsEnabled = true
	cfg.Telemetry.Enabled = true
	cfg.Layouts[rootID] = hud.SavedLayout{Name: "Root", Elements: map[hud.ElementKind]hud.Element{hud.PartyList: hud.NewElement(hud.PartyList)}}
	cfg.Swaps = []rules.Match{{LayoutID: rootID}}
	cfg.CustomConditions = []rules.CustomCondition{rules.NewCondition("Manual", rules.KindConsoleToggle)}
	sink := &fakeSink{}
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	collector := metrics.NewCollector(true)
	eng := engine.New(engine.Options{Config: cfg, Source: fakeSource{}, Sink: sink, Logger: logger, Metrics: collector})
	srv, err := NewServer(ServerOptions{SocketPath: "unused", Engine: eng, Metrics: collector, Logger: logger, Reload: reload})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	return srv, eng, sink
}

func roundTrip(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	var resp Response
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := json.NewEncoder(clientConn).Encode(req); err != nil {
			t.Errorf("encode request: %v", err)
			return
		}
		if err := json.NewDecoder(clientConn).Decode(&resp); err != nil {
			t.Errorf("decode response: %v", err)
		}
	}()
	srv.handle(context.Background(), serverConn)
	wg.Wait()
	return resp
}

func decodeData(t *testing.T, resp Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func TestCommandActionExecutesChatCommand(t *testing.T) {
	srv, eng, _ := newTestServer(t, nil)
	resp := roundTrip(t, srv, Request{Action: ActionCommand, Params: map[string]any{"input": "/hudman condition Manual on"}})
	if resp.Status != StatusOK {
		t.Fatalf("expected ok, got %s (%s)", resp.Status, resp.Error)
	}
	var result CommandResult
	decodeData(t, resp, &result)
	if !strings.Contains(result.Message, "Manual") {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if insp := eng.Inspect(); len(insp.Conditions) != 1 || !insp.Conditions[0].Value {
		t.Fatalf("expected condition set, got %+v", insp.Conditions)
	}

	resp = roundTrip(t, srv, Request{Action: ActionCommand, Params: map[string]any{"input": "dance now"}})
	if resp.Status != StatusError || resp.Error == "" {
		t.Fatalf("expected parse error, got %+v", resp)
	}
}

func TestLockAndStatus(t *testing.T) {
	srv, eng, sink := newTestServer(t, nil)
	if _, err := eng.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if resp := roundTrip(t, srv, Request{Action: ActionLock}); resp.Status != StatusOK {
		t.Fatalf("lock failed: %s", resp.Error)
	}
	resp := roundTrip(t, srv, Request{Action: ActionStatus})
	var status engine.Status
	decodeData(t, resp, &status)
	if !status.Locked || status.ActiveLayout != "Root" {
		t.Fatalf("unexpected status %+v", status)
	}
	roundTrip(t, srv, Request{Action: ActionUnlock})
	if _, err := eng.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sink.count() != 2 {
		t.Fatalf("expected unlock to force a second write, got %d", sink.count())
	}
}

func TestReloadAction(t *testing.T) {
	var reasons []string
	srv, _, _ := newTestServer(t, func(reason string) error {
		reasons = append(reasons, reason)
		return nil
	})
	if resp := roundTrip(t, srv, Request{Action: ActionReload}); resp.Status != StatusOK {
		t.Fatalf("reload failed: %s", resp.Error)
	}
	if len(reasons) != 1 || reasons[0] != "control request" {
		t.Fatalf("unexpected reload reasons %v", reasons)
	}

	bare, _, _ := newTestServer(t, nil)
	if resp := roundTrip(t, bare, Request{Action: ActionReload}); resp.Status != StatusError {
		t.Fatalf("expected reload to be unsupported")
	}
}

func TestResolveAndImport(t *testing.T) {
	srv, eng, _ := newTestServer(t, nil)
	resp := roundTrip(t, srv, Request{Action: ActionResolve, Params: map[string]any{"layout": "Root"}})
	var eff hud.EffectiveLayout
	decodeData(t, resp, &eff)
	if eff.Name != "Root" {
		t.Fatalf("unexpected effective layout %+v", eff)
	}
	if _, ok := eff.Elements[hud.PartyList]; !ok {
		t.Fatalf("expected party list in effective layout")
	}

	resp = roundTrip(t, srv, Request{Action: ActionImport, Params: map[string]any{"name": "Slot1", "slot": 1}})
	if resp.Status != StatusOK {
		t.Fatalf("import failed: %s", resp.Error)
	}
	var imported ImportResult
	decodeData(t, resp, &imported)
	if _, ok := eng.Config().Layouts[imported.ID]; !ok {
		t.Fatalf("imported layout %s missing", imported.ID)
	}

	if resp := roundTrip(t, srv, Request{Action: ActionImport, Params: map[string]any{"name": "x"}}); resp.Status != StatusError {
		t.Fatalf("expected missing slot error")
	}
}

func TestMetricsAndUnknownAction(t *testing.T) {
	srv, eng, _ := newTestServer(t, nil)
	if _, err := eng.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	resp := roundTrip(t, srv, Request{Action: ActionMetrics})
	var snap metrics.Snapshot
	decodeData(t, resp, &snap)
	if !snap.Enabled || snap.Totals.Matched != 1 || snap.Totals.FullWrites != 1 {
		t.Fatalf("unexpected metrics %+v", snap)
	}
	if resp := roundTrip(t, srv, Request{Action: "bogus"}); resp.Status != StatusError {
		t.Fatalf("expected unknown action error")
	}
}
