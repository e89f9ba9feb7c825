package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/command"
	"github.com/hudman/hudman/internal/config"
	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/ipc"
	"github.com/hudman/hudman/internal/jobs"
	"github.com/hudman/hudman/internal/provider"
	"github.com/hudman/hudman/internal/rules"
	"github.com/hudman/hudman/internal/staging"
	"github.com/hudman/hudman/internal/state"
	"github.com/hudman/hudman/internal/util"
)

var (
	rootID  = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	craftID = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
)

const (
	paladinJob   = 19
	carpenterJob = 8
)

type fakeSource struct {
	mu    sync.Mutex
	world *state.World
	calls int
}

func (f *fakeSource) Snapshot(context.Context) (*state.World, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return state.CloneWorld(f.world), nil
}

func (f *fakeSource) set(w *state.World) {
	f.mu.Lock()
	f.world = w
	f.mu.Unlock()
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu      sync.Mutex
	active  int
	writes  []string
	reloads []bool
	slots   map[int][]hud.Element
}

func newFakeSink() *fakeSink {
	party := hud.NewElement(hud.PartyList)
	return &fakeSink{active: 4, slots: map[int][]hud.Element{1: {party}, 4: {party}}}
}

func (s *fakeSink) ActiveSlot() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, nil
}

func (s *fakeSink) ReadSlot(slot int) ([]hud.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]hud.Element(nil), s.slots[slot]...), nil
}

func (s *fakeSink) WriteLayout(slot int, elements []hud.Element, reload bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, "layout")
	s.reloads = append(s.reloads, reload)
	s.slots[slot] = append([]hud.Element(nil), elements...)
	if reload {
		s.active = slot
	}
	return nil
}

func (s *fakeSink) lastReload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reloads) > 0 && s.reloads[len(s.reloads)-1]
}

func (s *fakeSink) setActive(slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = slot
}

func (s *fakeSink) ApplyJobGaugeVisibility(hud.ElementKind, bool) error { return nil }
func (s *fakeSink) SetWindowPosition(string, hud.Window) error          { return nil }
func (s *fakeSink) ApplyOverlay(hud.Overlay) error                      { return nil }
func (s *fakeSink) ApplyExternalConfig(hud.ExternalConfig) error        { return nil }

func (s *fakeSink) layoutWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *fakeSink) partyX(slot int) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, el := range s.slots[slot] {
		if el.Kind == hud.PartyList {
			return el.X
		}
	}
	return -1
}

type fakeProvider struct {
	sets []string
}

func (p *fakeProvider) Available() bool                     { return true }
func (p *fakeProvider) ConditionSets() ([]string, error)    { return p.sets, nil }
func (p *fakeProvider) CheckConditionSet(int) (bool, error) { return true, nil }

type manualTicker struct {
	ch chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time, 1)}
}

func (t *manualTicker) C() <-chan time.Time {
	return t.ch
}

func (t *manualTicker) Stop() {}

func (t *manualTicker) Tick() {
	t.ch <- time.Now()
}

func waitForCondition(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func element(x float32) hud.Element {
	el := hud.NewElement(hud.PartyList)
	el.X = x
	return el
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.UnderstandsRisks = true
	cfg.SwapsEnabled = true
	cfg.Layouts[rootID] = hud.SavedLayout{Name: "Root", Elements: map[hud.ElementKind]hud.Element{hud.PartyList: element(10)}}
	cfg.Layouts[craftID] = hud.SavedLayout{Name: "Crafting", Parent: rootID, Elements: map[hud.ElementKind]hud.Element{hud.PartyList: element(50)}}
	cfg.CustomConditions = []rules.CustomCondition{rules.NewCondition("Manual", rules.KindConsoleToggle)}
	cfg.Swaps = []rules.Match{
		{ClassJob: jobs.DoH, Status: rules.Crafting, LayoutID: craftID},
		{CustomCondition: "Manual", LayoutID: craftID},
		{LayoutID: rootID},
	}
	return cfg
}

func player(job uint32) *state.World {
	return &state.World{Player: &state.Player{JobID: job}}
}

func newTestEngine(t *testing.T, cfg *config.Config, world *state.World) (*Engine, *fakeSource, *fakeSink) {
	t.Helper()
	source := &fakeSource{world: world}
	sink := newFakeSink()
	eng := New(Options{Config: cfg, Source: source, Sink: sink})
	return eng, source, sink
}

func mustTick(t *testing.T, eng *Engine) staging.Result {
	t.Helper()
	res, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	return res
}

func TestTickWritesOnceAndSkipsUnchanged(t *testing.T) {
	eng, _, sink := newTestEngine(t, testConfig(), player(paladinJob))
	res := mustTick(t, eng)
	if res.Outcome != staging.OutcomeFull || res.Name != "Root" {
		t.Fatalf("expected full write of Root, got %+v", res)
	}
	if got := sink.partyX(4); got != 10 {
		t.Fatalf("expected party list at 10, got %v", got)
	}
	res = mustTick(t, eng)
	if res.Outcome != staging.OutcomeSkipped || sink.layoutWrites() != 1 {
		t.Fatalf("expected unchanged tick to skip, got %+v after %d writes", res, sink.layoutWrites())
	}
}

func TestCraftingSwapsToChildLayout(t *testing.T) {
	eng, source, sink := newTestEngine(t, testConfig(), player(carpenterJob))
	mustTick(t, eng)
	crafting := player(carpenterJob)
	crafting.Crafting = true
	source.set(crafting)
	res := mustTick(t, eng)
	if res.Outcome != staging.OutcomeFull || res.Name != "Crafting" {
		t.Fatalf("expected Crafting write, got %+v", res)
	}
	if got := sink.partyX(4); got != 50 {
		t.Fatalf("expected child override, got %v", got)
	}
	source.set(player(carpenterJob))
	if res := mustTick(t, eng); res.Name != "Root" {
		t.Fatalf("expected swap back to Root, got %+v", res)
	}
}

func TestGatingSuspendsSwaps(t *testing.T) {
	busy := player(paladinJob)
	busy.InCutscene = true
	tests := []struct {
		name   string
		mutate func(*config.Config)
		world  *state.World
		lock   bool
	}{
		{name: "disabled", mutate: func(c *config.Config) { c.SwapsEnabled = false }, world: player(paladinJob)},
		{name: "risks", mutate: func(c *config.Config) { c.UnderstandsRisks = false }, world: player(paladinJob)},
		{name: "no player", world: &state.World{}},
		{name: "busy", world: busy},
		{name: "locked", world: player(paladinJob), lock: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			eng, _, sink := newTestEngine(t, cfg, tt.world)
			if tt.lock {
				eng.Lock()
			}
			res := mustTick(t, eng)
			if res.Outcome != staging.OutcomeSkipped || sink.layoutWrites() != 0 {
				t.Fatalf("expected gated tick, got %+v with %d writes", res, sink.layoutWrites())
			}
			if eng.Status().Suspended == "" {
				t.Fatalf("expected suspension reason")
			}
		})
	}
}

func TestUnlockForcesFullWrite(t *testing.T) {
	eng, _, sink := newTestEngine(t, testConfig(), player(paladinJob))
	mustTick(t, eng)
	eng.Lock()
	mustTick(t, eng)
	eng.Unlock()
	res := mustTick(t, eng)
	if res.Outcome != staging.OutcomeFull || res.Reason != staging.ForceEditLockRemoved {
		t.Fatalf("expected forced write after unlock, got %+v", res)
	}
	if sink.layoutWrites() != 2 {
		t.Fatalf("expected two layout writes, got %d", sink.layoutWrites())
	}
}

func TestNoActiveLayoutForcesNextWrite(t *testing.T) {
	cfg := testConfig()
	cfg.Swaps = cfg.Swaps[:1]
	eng, source, _ := newTestEngine(t, cfg, player(carpenterJob))
	res := mustTick(t, eng)
	if res.Reason != staging.ForceNoActiveLayout {
		t.Fatalf("expected no-active-layout, got %+v", res)
	}
	crafting := player(carpenterJob)
	crafting.Crafting = true
	source.set(crafting)
	res = mustTick(t, eng)
	if res.Outcome != staging.OutcomeFull || res.Reason != staging.ForceNoActiveLayout {
		t.Fatalf("expected forced write, got %+v", res)
	}
}

func TestSetSwapsEnabledPersistsAndForces(t *testing.T) {
	var saved *config.Config
	eng := New(Options{Config: testConfig(), Sink: newFakeSink(), Persist: func(c *config.Config) error {
		saved = c
		return nil
	}})
	if err := eng.SetSwapsEnabled(false); err != nil {
		t.Fatalf("SetSwapsEnabled: %v", err)
	}
	if saved == nil || saved.SwapsEnabled {
		t.Fatalf("expected persisted disabled config, got %+v", saved)
	}
	if got := eng.Status().PendingForce; got != staging.ForceSwapSettingChanged {
		t.Fatalf("expected swap-setting force, got %s", got)
	}
}

func TestApplyConfigForcesReload(t *testing.T) {
	eng, _, _ := newTestEngine(t, testConfig(), player(paladinJob))
	mustTick(t, eng)
	next := testConfig()
	el := element(99)
	next.Layouts[rootID].Elements[hud.PartyList] = el
	eng.ApplyConfig(next)
	res := mustTick(t, eng)
	if res.Outcome != staging.OutcomeFull || res.Reason != staging.ForceConfigReloaded {
		t.Fatalf("expected reload write, got %+v", res)
	}
}

func TestExecuteCommands(t *testing.T) {
	eng, _, sink := newTestEngine(t, testConfig(), player(paladinJob))
	ctx := context.Background()
	mustTick(t, eng)

	msg, err := eng.Execute(ctx, command.Command{Kind: command.KindCondition, Name: "Manual", Switch: command.SwitchOn})
	if err != nil || !strings.Contains(msg, "on") {
		t.Fatalf("condition command: %q %v", msg, err)
	}
	if res := mustTick(t, eng); res.Name != "Crafting" {
		t.Fatalf("expected toggle to select Crafting, got %+v", res)
	}

	if _, err := eng.Execute(ctx, command.Command{Kind: command.KindSwap, Name: "Root"}); !errors.Is(err, ErrSwapsEnabled) {
		t.Fatalf("expected manual swap refusal, got %v", err)
	}
	if _, err := eng.Execute(ctx, command.Command{Kind: command.KindSwapper, Switch: command.SwitchToggle}); err != nil {
		t.Fatalf("swapper toggle: %v", err)
	}
	if eng.Config().SwapsEnabled {
		t.Fatalf("expected swapper disabled")
	}
	before := sink.layoutWrites()
	if _, err := eng.Execute(ctx, command.Command{Kind: command.KindSwap, Name: "Root"}); err != nil {
		t.Fatalf("manual swap: %v", err)
	}
	if sink.layoutWrites() != before+1 || sink.partyX(4) != 10 {
		t.Fatalf("expected manual write of Root")
	}
	if _, err := eng.Execute(ctx, command.Command{Kind: command.KindSwap, Name: "Missing"}); err == nil {
		t.Fatalf("expected unknown layout error")
	}
}

func TestManualSwapSelectsStagingSlot(t *testing.T) {
	cfg := testConfig()
	cfg.SwapsEnabled = false
	eng, _, sink := newTestEngine(t, cfg, player(paladinJob))
	sink.setActive(1)
	if _, err := eng.Execute(context.Background(), command.Command{Kind: command.KindSwap, Name: "Crafting"}); err != nil {
		t.Fatalf("manual swap: %v", err)
	}
	if !sink.lastReload() {
		t.Fatalf("manual swap must select and reload the staging slot")
	}
	if slot, _ := sink.ActiveSlot(); slot != 4 {
		t.Fatalf("expected staging slot 4 active, got %d", slot)
	}
	if sink.partyX(4) != 50 {
		t.Fatalf("expected Crafting in the staging slot, got X=%v", sink.partyX(4))
	}
}

func TestSetConditionRejectsNonToggle(t *testing.T) {
	cfg := testConfig()
	cfg.CustomConditions = append(cfg.CustomConditions, rules.NewCondition("Zone", rules.KindInZone))
	eng, _, _ := newTestEngine(t, cfg, player(paladinJob))
	if _, err := eng.SetCondition("Zone", command.SwitchOn); !errors.Is(err, ErrNotToggle) {
		t.Fatalf("expected ErrNotToggle, got %v", err)
	}
	if _, err := eng.SetCondition("Nope", command.SwitchOn); !errors.Is(err, rules.ErrUnknownCondition) {
		t.Fatalf("expected unknown condition, got %v", err)
	}
}

func TestImportSlotReusesLayoutID(t *testing.T) {
	eng, _, _ := newTestEngine(t, testConfig(), player(paladinJob))
	id, err := eng.ImportSlot("Crafting", 1)
	if err != nil {
		t.Fatalf("ImportSlot: %v", err)
	}
	if id != craftID {
		t.Fatalf("expected existing id %s, got %s", craftID, id)
	}
	fresh, err := eng.ImportSlot("Imported", 1)
	if err != nil || fresh == craftID {
		t.Fatalf("expected new layout, got %s %v", fresh, err)
	}
	if _, ok := eng.Config().Layouts[fresh]; !ok {
		t.Fatalf("imported layout missing from config")
	}
	if _, err := eng.ImportSlot("Bad", 7); err == nil {
		t.Fatalf("expected slot range error")
	}
}

func TestResolveByName(t *testing.T) {
	eng, _, _ := newTestEngine(t, testConfig(), nil)
	eff, err := eng.Resolve("Crafting", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if eff.Elements[hud.PartyList].X != 50 {
		t.Fatalf("unexpected effective layout %+v", eff.Elements[hud.PartyList])
	}
	if _, err := eng.Resolve("Root", []string{"Ghost"}); err == nil {
		t.Fatalf("expected missing layer error")
	}
}

func TestProviderEventsRemapIndexes(t *testing.T) {
	cfg := testConfig()
	cond := rules.NewCondition("Raid", rules.KindProvider)
	cond.ProviderIndex = 2
	other := rules.NewCondition("Party", rules.KindProvider)
	other.ProviderIndex = 0
	cfg.CustomConditions = append(cfg.CustomConditions, cond, other)
	var saves int
	eng := New(Options{
		Config:   cfg,
		Sink:     newFakeSink(),
		Provider: &fakeProvider{sets: []string{"a", "b"}},
		Persist:  func(*config.Config) error { saves++; return nil },
	})
	ctx := context.Background()
	if err := eng.HandleEvent(ctx, ipc.Event{Kind: ipc.EventConditionMoved, Payload: "2,0"}); err != nil {
		t.Fatalf("moved: %v", err)
	}
	if got := eng.Config().CustomConditions[1].ProviderIndex; got != 0 {
		t.Fatalf("expected index 0 after move, got %d", got)
	}
	if got := eng.Config().CustomConditions[2].ProviderIndex; got != 2 {
		t.Fatalf("expected swapped index 2, got %d", got)
	}
	if err := eng.HandleEvent(ctx, ipc.Event{Kind: ipc.EventConditionRemoved, Payload: "0"}); err != nil {
		t.Fatalf("removed: %v", err)
	}
	if got := eng.Config().CustomConditions[1].ProviderIndex; got != provider.IndexRemoved {
		t.Fatalf("expected removed index, got %d", got)
	}
	if got := eng.Config().CustomConditions[2].ProviderIndex; got != 2 {
		t.Fatalf("higher index must not shift on removal, got %d", got)
	}
	if saves != 2 {
		t.Fatalf("expected two saves, got %d", saves)
	}
	if err := eng.HandleEvent(ctx, ipc.Event{Kind: ipc.EventConditionRemoved, Payload: "x"}); err == nil {
		t.Fatalf("expected malformed payload error")
	}
}

func TestInspectReportsRulesAndHistory(t *testing.T) {
	eng, _, _ := newTestEngine(t, testConfig(), player(paladinJob))
	mustTick(t, eng)
	insp := eng.Inspect()
	if len(insp.Rules) != 3 {
		t.Fatalf("expected three rules, got %d", len(insp.Rules))
	}
	if insp.Rules[0].Matched || !insp.Rules[2].Matched {
		t.Fatalf("unexpected rule states %+v", insp.Rules)
	}
	if insp.Rules[0].Trace == nil || len(insp.Rules[0].Trace.Children) != 2 {
		t.Fatalf("expected job and status trace, got %+v", insp.Rules[0].Trace)
	}
	if insp.Status.ActiveLayout != "Root" || len(insp.History) != 1 {
		t.Fatalf("unexpected status %+v history %d", insp.Status, len(insp.History))
	}
	if len(insp.Conditions) != 1 || insp.Conditions[0].Value {
		t.Fatalf("unexpected conditions %+v", insp.Conditions)
	}
}

func TestTraceLogsSelection(t *testing.T) {
	var logs bytes.Buffer
	logger := util.NewLoggerWithWriter(util.LevelTrace, &logs)
	eng := New(Options{Config: testConfig(), Source: &fakeSource{world: player(paladinJob)}, Sink: newFakeSink(), Logger: logger})
	mustTick(t, eng)
	var payload map[string]any
	for _, line := range strings.Split(logs.String(), "\n") {
		idx := strings.Index(line, "swap.selected ")
		if idx < 0 {
			continue
		}
		if err := json.Unmarshal([]byte(line[idx+len("swap.selected "):]), &payload); err != nil {
			t.Fatalf("decode trace payload: %v", err)
		}
	}
	if payload == nil {
		t.Fatalf("expected swap.selected trace, got %q", logs.String())
	}
	if payload["layout"] != "Root" || payload["rule"] != float64(2) {
		t.Fatalf("unexpected trace payload %v", payload)
	}
}

func TestRunTicksOnTimerAndEvents(t *testing.T) {
	eng, source, _ := newTestEngine(t, testConfig(), player(paladinJob))
	tick := newManualTicker()
	eng.tickerFactory = func(time.Duration) ticker { return tick }
	events := make(chan ipc.Event, 1)
	eng.subscribe = func(context.Context, *util.Logger) (<-chan ipc.Event, error) {
		return events, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- eng.Run(ctx)
	}()

	waitForCondition(t, time.Second, func() bool { return source.callCount() >= 1 })
	tick.Tick()
	waitForCondition(t, time.Second, func() bool { return source.callCount() >= 2 })
	events <- ipc.Event{Kind: ipc.EventTerritory, Payload: "132"}
	waitForCondition(t, time.Second, func() bool { return source.callCount() >= 3 })

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("engine Run did not exit after cancel")
	}
}
