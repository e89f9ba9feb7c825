package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/command"
	"github.com/hudman/hudman/internal/config"
	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/ipc"
	"github.com/hudman/hudman/internal/jobs"
	"github.com/hudman/hudman/internal/layout"
	"github.com/hudman/hudman/internal/metrics"
	"github.com/hudman/hudman/internal/provider"
	"github.com/hudman/hudman/internal/rules"
	"github.com/hudman/hudman/internal/staging"
	"github.com/hudman/hudman/internal/state"
	"github.com/hudman/hudman/internal/util"
)

var (
	ErrSwapsEnabled = errors.New("manual swaps require the swapper to be disabled")
	ErrNotToggle    = errors.New("condition is not a console toggle")
	ErrNoWorld      = errors.New("no game state available")
)

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	*time.Ticker
}

func (t realTicker) C() <-chan time.Time {
	return t.Ticker.C
}

type subscribeFunc func(ctx context.Context, logger *util.Logger) (<-chan ipc.Event, error)

// Options wires an Engine to its collaborators.
type Options struct {
	Config   *config.Config
	Source   state.DataSource
	Sink     staging.Sink
	Provider provider.Provider
	Table    *jobs.Table
	Logger   *util.Logger
	Metrics  *metrics.Collector
	Clock    func() time.Time
	// Persist stores configuration edits made at runtime. Nil keeps them
	// in memory only.
	Persist func(*config.Config) error
}

// Engine is the swapper: on each tick it reads the game state, updates the
// condition engine, selects the active rules and hands the selection to
// the layout writer.
type Engine struct {
	source  state.DataSource
	sink    staging.Sink
	logger  *util.Logger
	metrics *metrics.Collector
	persist func(*config.Config) error
	now     func() time.Time

	mu        sync.Mutex
	cfg       *config.Config
	tracker   *provider.Tracker
	statuses  *rules.Statuses
	writer    *staging.Writer
	resolver  *layout.Resolver
	locked    bool
	lastWorld *state.World
	lastSel   rules.Selection
	lastTick  time.Time
	gate      string
	evalLog   *evaluationLog

	reconfigured  chan struct{}
	tickerFactory func(time.Duration) ticker
	subscribe     subscribeFunc
}

// New creates an engine and applies opts.Config.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	table := opts.Table
	if table == nil {
		table = jobs.MustDefault()
	}
	tracker := provider.NewTracker(opts.Provider)
	e := &Engine{
		source:  opts.Source,
		sink:    opts.Sink,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		persist: opts.Persist,
		now:     clock,
		tracker: tracker,
		statuses: rules.NewStatuses(rules.Options{
			Table:   table,
			Tracker: tracker,
			Clock:   clock,
			Logger:  opts.Logger,
		}),
		writer: staging.NewWriter(staging.WriterOptions{
			Sink:     opts.Sink,
			Table:    table,
			Logger:   opts.Logger,
			Recorder: opts.Metrics,
			Slot:     cfg.StagingSlot,
		}),
		lastSel:      rules.Selection{Active: -1},
		evalLog:      newEvaluationLog(0),
		reconfigured: make(chan struct{}, 1),
		tickerFactory: func(d time.Duration) ticker {
			return realTicker{time.NewTicker(d)}
		},
		subscribe: ipc.Subscribe,
	}
	e.applyConfigLocked(cfg)
	return e
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Clone()
}

// ApplyConfig replaces the configuration. Hold timers and rule history are
// dropped and the next tick performs a full write.
func (e *Engine) ApplyConfig(cfg *config.Config) {
	e.mu.Lock()
	e.applyConfigLocked(cfg)
	e.writer.Force(staging.ForceConfigReloaded)
	e.mu.Unlock()
	select {
	case e.reconfigured <- struct{}{}:
	default:
	}
	e.logf(util.LevelInfo, "applied configuration: %d layouts, %d swap rules, %d conditions", len(cfg.Layouts), len(cfg.Swaps), len(cfg.CustomConditions))
}

func (e *Engine) applyConfigLocked(cfg *config.Config) {
	e.cfg = cfg.Clone()
	e.statuses.SetConditions(e.cfg.CustomConditions)
	e.statuses.Reset()
	e.resolver = layout.NewResolver(e.cfg.Layouts, e.cfg.AdvancedSwapMode, e.logger)
	e.writer.SetSlot(e.cfg.StagingSlot)
	e.metrics.SetEnabled(e.cfg.Telemetry.Enabled)
	e.lastSel = rules.Selection{Active: -1}
}

func (e *Engine) tickInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Duration(e.cfg.TickIntervalMs) * time.Millisecond
}

// Lock suspends swapping while layouts are being edited.
func (e *Engine) Lock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.locked {
		e.locked = true
		e.logf(util.LevelInfo, "edit lock engaged")
	}
}

// Unlock releases the edit lock. The next tick rewrites the layout since
// the slot may have been edited in the meantime.
func (e *Engine) Unlock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.locked {
		e.locked = false
		e.writer.Force(staging.ForceEditLockRemoved)
		e.logf(util.LevelInfo, "edit lock released")
	}
}

// Locked reports whether the edit lock is held.
func (e *Engine) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked
}

// SetSwapsEnabled turns the swapper on or off and persists the setting.
func (e *Engine) SetSwapsEnabled(enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.SwapsEnabled == enabled {
		return nil
	}
	e.cfg.SwapsEnabled = enabled
	e.writer.Force(staging.ForceSwapSettingChanged)
	e.logf(util.LevelInfo, "swapper %s", onOff(enabled))
	return e.persistLocked()
}

func (e *Engine) persistLocked() error {
	if e.persist == nil {
		return nil
	}
	if err := e.persist(e.cfg.Clone()); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	return nil
}

// Run ticks until ctx is cancelled. Bridge events trigger an immediate
// tick; the event stream is optional and the loop keeps ticking without it.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.tracker.Refresh(); err != nil {
		e.logf(util.LevelDebug, "condition provider: %v", err)
	}
	if _, err := e.Tick(ctx); err != nil {
		e.logf(util.LevelWarn, "initial tick failed: %v", err)
	}
	tick := e.tickerFactory(e.tickInterval())
	defer func() { tick.Stop() }()

	events, err := e.subscribe(ctx, e.logger)
	if err != nil {
		e.logf(util.LevelWarn, "bridge events unavailable: %v", err)
		events = nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.reconfigured:
			tick.Stop()
			tick = e.tickerFactory(e.tickInterval())
		case <-tick.C():
			if _, err := e.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					e.logf(util.LevelDebug, "tick aborted: %v", err)
				} else {
					e.logf(util.LevelDebug, "tick failed: %v", err)
				}
			}
		case ev, ok := <-events:
			if !ok {
				e.logf(util.LevelWarn, "bridge event stream closed")
				events = nil
				continue
			}
			e.trace("event.received", map[string]any{"kind": ev.Kind, "payload": ev.Payload})
			if err := e.HandleEvent(ctx, ev); err != nil {
				e.logf(util.LevelError, "handle %s: %v", ev.Kind, err)
			}
		}
	}
}

// HandleEvent reacts to one bridge event.
func (e *Engine) HandleEvent(ctx context.Context, ev ipc.Event) error {
	switch ev.Kind {
	case ipc.EventTerritory:
		_, err := e.Tick(ctx)
		return err
	case ipc.EventProviderLoaded:
		if err := e.tracker.Refresh(); err != nil {
			return err
		}
		e.logf(util.LevelInfo, "condition provider loaded with %d sets", len(e.tracker.Sets()))
		return nil
	case ipc.EventProviderUnloaded:
		e.tracker.Unloaded()
		e.logf(util.LevelInfo, "condition provider unloaded")
		return nil
	case ipc.EventConditionMoved:
		from, to, err := ipc.ParseMoved(ev.Payload)
		if err != nil {
			return err
		}
		return e.remapProvider(func(cfg *config.Config) bool { return cfg.RemapProviderMoved(from, to) })
	case ipc.EventConditionRemoved:
		removed, err := ipc.ParseRemoved(ev.Payload)
		if err != nil {
			return err
		}
		return e.remapProvider(func(cfg *config.Config) bool { return cfg.RemapProviderRemoved(removed) })
	}
	return nil
}

func (e *Engine) remapProvider(remap func(*config.Config) bool) error {
	if err := e.tracker.Refresh(); err != nil {
		e.logf(util.LevelDebug, "condition provider: %v", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !remap(e.cfg) {
		return nil
	}
	e.statuses.SetConditions(e.cfg.CustomConditions)
	e.logf(util.LevelInfo, "updated provider condition indexes")
	return e.persistLocked()
}

// Tick reads a snapshot and runs one evaluation.
func (e *Engine) Tick(ctx context.Context) (staging.Result, error) {
	if e.source == nil {
		return staging.Result{}, ErrNoWorld
	}
	world, err := e.source.Snapshot(ctx)
	if err != nil {
		return staging.Result{}, fmt.Errorf("read game state: %w", err)
	}
	return e.Evaluate(world)
}

// Evaluate runs one evaluation against world.
func (e *Engine) Evaluate(world *state.World) (staging.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	e.lastTick = now
	e.lastWorld = state.CloneWorld(world)

	reason := e.gateLocked(world)
	if reason != e.gate {
		if reason != "" {
			e.logf(util.LevelDebug, "swapping suspended: %s", reason)
		} else {
			e.logf(util.LevelDebug, "swapping resumed")
		}
		e.gate = reason
	}
	if reason != "" {
		return staging.Result{Outcome: staging.OutcomeSkipped, Reason: e.writer.PendingForce()}, nil
	}

	updated := e.statuses.Update(world)
	if !updated && e.writer.PendingForce() == staging.ForceNone {
		return staging.Result{Outcome: staging.OutcomeSkipped}, nil
	}

	sel := e.statuses.CalculateActive(e.cfg.Swaps, world, e.cfg.AdvancedSwapMode)
	changed := !sameSelection(sel, e.lastSel)
	e.lastSel = sel
	if !sel.HasActive() {
		e.writer.Force(staging.ForceNoActiveLayout)
		if changed {
			e.trace("swap.none", map[string]any{"layers": sel.Layers})
			e.logf(util.LevelDebug, "no swap rule matched")
		}
		e.record(Evaluation{Timestamp: now, Outcome: staging.OutcomeSkipped, Reason: staging.ForceNoActiveLayout.String()})
		return staging.Result{Outcome: staging.OutcomeSkipped, Reason: staging.ForceNoActiveLayout}, nil
	}

	active, layers := sel.LayoutIDs(e.cfg.Swaps)
	rule := e.cfg.Swaps[sel.Active]
	if changed {
		e.metrics.RecordMatch(fmt.Sprintf("#%d %s", sel.Active, rule.Describe()), e.cfg.LayoutName(active))
		e.trace("swap.selected", map[string]any{
			"rule":   sel.Active,
			"match":  rule.Describe(),
			"layout": e.cfg.LayoutName(active),
			"layers": e.layoutNames(layers),
		})
	}
	result, err := e.writer.WriteIfChanged(e.resolver, active, layers, world)
	if result.Outcome != staging.OutcomeSkipped {
		e.record(Evaluation{
			Timestamp: now,
			Rule:      sel.Active,
			Match:     rule.Describe(),
			Layout:    e.cfg.LayoutName(active),
			Layers:    e.layoutNames(layers),
			Outcome:   result.Outcome,
			Reason:    result.Reason.String(),
			Error:     result.Error,
		})
	}
	if err != nil {
		e.logf(util.LevelError, "write layout %s: %v", e.cfg.LayoutName(active), err)
	}
	return result, err
}

// gateLocked returns why swapping is suspended, or "".
func (e *Engine) gateLocked(world *state.World) string {
	switch {
	case e.locked:
		return "edit lock held"
	case !e.cfg.SwapsEnabled:
		return "swaps disabled"
	case !e.cfg.UnderstandsRisks:
		return "risks not acknowledged"
	case world == nil || world.Player == nil:
		return "no player"
	case world.Busy():
		return "client busy"
	}
	return ""
}

func sameSelection(a, b rules.Selection) bool {
	if a.Active != b.Active || len(a.Layers) != len(b.Layers) {
		return false
	}
	for i := range a.Layers {
		if a.Layers[i] != b.Layers[i] {
			return false
		}
	}
	return true
}

func (e *Engine) layoutNames(ids []uuid.UUID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, e.cfg.LayoutName(id))
	}
	return names
}

func (e *Engine) record(entry Evaluation) {
	e.evalLog.record(entry)
}

// Execute runs a parsed chat command and returns a message for the user.
func (e *Engine) Execute(ctx context.Context, cmd command.Command) (string, error) {
	switch cmd.Kind {
	case command.KindSwap:
		return e.SwapTo(ctx, cmd.Name)
	case command.KindCondition:
		value, err := e.SetCondition(cmd.Name, cmd.Switch)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("condition %q is now %s", cmd.Name, onOff(value)), nil
	case command.KindSwapper:
		enabled := cmd.Switch.Apply(e.Config().SwapsEnabled)
		if err := e.SetSwapsEnabled(enabled); err != nil {
			return "", err
		}
		return "swapper " + onOff(enabled), nil
	case command.KindLock:
		e.Lock()
		return "edit lock engaged", nil
	case command.KindUnlock:
		e.Unlock()
		return "edit lock released", nil
	}
	return "", fmt.Errorf("unsupported command %q", cmd.Kind)
}

// SwapTo writes the layout named ref to the staging slot. It is refused
// while the swapper is enabled.
func (e *Engine) SwapTo(ctx context.Context, ref string) (string, error) {
	var world *state.World
	if e.source != nil {
		w, err := e.source.Snapshot(ctx)
		if err != nil {
			return "", fmt.Errorf("read game state: %w", err)
		}
		world = w
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.SwapsEnabled {
		return "", ErrSwapsEnabled
	}
	id, ok := e.cfg.FindLayout(ref)
	if !ok {
		return "", fmt.Errorf("%w: %q", layout.ErrNotFound, ref)
	}
	if world == nil {
		world = e.lastWorld
	}
	result, err := e.writer.Write(staging.ForceManual, e.resolver, id, nil, world)
	e.record(Evaluation{
		Timestamp: e.now(),
		Rule:      -1,
		Match:     "manual",
		Layout:    e.cfg.LayoutName(id),
		Outcome:   result.Outcome,
		Reason:    result.Reason.String(),
		Error:     result.Error,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("swapped to %s", result.Name), nil
}

// SetCondition changes a console toggle condition and returns its new value.
func (e *Engine) SetCondition(name string, sw command.Switch) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := rules.FindCondition(e.cfg.CustomConditions, name)
	if idx < 0 {
		return false, fmt.Errorf("%w: %q", rules.ErrUnknownCondition, name)
	}
	if e.cfg.CustomConditions[idx].Kind != rules.KindConsoleToggle {
		return false, fmt.Errorf("%w: %q", ErrNotToggle, name)
	}
	manual := e.statuses.Manual()
	value := sw.Apply(manual.Get(name))
	manual.Set(name, value)
	return value, nil
}

// Resolve computes the effective layout of ref with the given layers.
func (e *Engine) Resolve(ref string, layerRefs []string) (*hud.EffectiveLayout, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.cfg.FindLayout(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %q", layout.ErrNotFound, ref)
	}
	layers := make([]uuid.UUID, 0, len(layerRefs))
	for _, l := range layerRefs {
		lid, ok := e.cfg.FindLayout(l)
		if !ok {
			return nil, fmt.Errorf("%w: layer %q", layout.ErrNotFound, l)
		}
		layers = append(layers, lid)
	}
	return e.resolver.Resolve(id, layers)
}

// EvaluationHistory returns the recent write records, oldest first.
func (e *Engine) EvaluationHistory() []Evaluation {
	return e.evalLog.snapshot()
}

func (e *Engine) logf(level util.LogLevel, format string, args ...interface{}) {
	if e.logger == nil {
		return
	}
	switch level {
	case util.LevelTrace:
		e.logger.Tracef(format, args...)
	case util.LevelDebug:
		e.logger.Debugf(format, args...)
	case util.LevelInfo:
		e.logger.Infof(format, args...)
	case util.LevelWarn:
		e.logger.Warnf(format, args...)
	default:
		e.logger.Errorf(format, args...)
	}
}

func (e *Engine) trace(event string, fields map[string]any) {
	if e.logger == nil {
		return
	}
	e.logger.Tracef("%s %s", event, formatTraceFields(fields))
}

func formatTraceFields(fields map[string]any) string {
	if len(fields) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		val, err := json.Marshal(fields[k])
		if err != nil {
			b.WriteString(strconv.Quote(fmt.Sprintf("<marshal error: %v>", err)))
			continue
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
