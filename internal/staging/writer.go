package staging

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/jobs"
	"github.com/hudman/hudman/internal/state"
	"github.com/hudman/hudman/internal/util"
)

// Outcome classifies one pass through the write path.
type Outcome string

const (
	OutcomeFull    Outcome = "full"
	OutcomeGauges  Outcome = "gauges"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Result describes what a write did.
type Result struct {
	Outcome Outcome     `json:"outcome"`
	Name    string      `json:"name,omitempty"`
	Reason  ForceReason `json:"reason"`
	Error   string      `json:"error,omitempty"`
}

// Writer is the change detector in front of a Sink. It remembers the last
// applied selection and only writes when the selection, the job or a
// pending force says so.
type Writer struct {
	mu       sync.Mutex
	sink     Sink
	table    *jobs.Table
	logger   *util.Logger
	recorder Recorder
	slot     int
	staged   *State
	name     string
	force    ForceReason
}

// WriterOptions configures NewWriter.
type WriterOptions struct {
	Sink     Sink
	Table    *jobs.Table
	Logger   *util.Logger
	Recorder Recorder
	Slot     int
}

func NewWriter(opts WriterOptions) *Writer {
	table := opts.Table
	if table == nil {
		table = jobs.MustDefault()
	}
	return &Writer{sink: opts.Sink, table: table, logger: opts.Logger, recorder: opts.Recorder, slot: opts.Slot}
}

// SetSlot changes the staging slot. The staged state is dropped so the next
// write is a full one.
func (w *Writer) SetSlot(slot int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.slot != slot {
		w.slot = slot
		w.staged = nil
		w.name = ""
	}
}

// Slot returns the staging slot.
func (w *Writer) Slot() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.slot
}

// Force makes the next write a full one. The first pending reason wins.
func (w *Writer) Force(reason ForceReason) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.force == ForceNone {
		w.force = reason
	}
}

// PendingForce returns the reason the next write will be forced, if any.
func (w *Writer) PendingForce() ForceReason {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.force
}

// Staged returns the last applied state.
func (w *Writer) Staged() (State, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.staged == nil {
		return State{}, false
	}
	out := *w.staged
	out.LayerIDs = append([]uuid.UUID(nil), w.staged.LayerIDs...)
	return out, true
}

// Reset forgets the staged state.
func (w *Writer) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.staged = nil
	w.name = ""
}

// WriteIfChanged writes layout and layers unless they match the staged state.
// When only the job changed, only job gauge visibility is reapplied. A pending
// force always produces a full write.
func (w *Writer) WriteIfChanged(res Resolver, layout uuid.UUID, layers []uuid.UUID, world *state.World) (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	reason := w.force
	w.force = ForceNone
	jobID := world.JobID()

	if reason == ForceNone && w.staged != nil && w.staged.SameLayouts(layout, layers) {
		if w.staged.JobID == jobID {
			w.debugf("skipped layout %s (state unchanged)", w.name)
			return w.finish(Result{Outcome: OutcomeSkipped, Name: w.name, Reason: reason}, nil)
		}
		return w.writeGauges(res, layout, layers, world)
	}
	return w.writeFull(res, layout, layers, world, reason, false)
}

// Write performs a full write regardless of the staged state and makes the
// staging slot the active one.
func (w *Writer) Write(reason ForceReason, res Resolver, layout uuid.UUID, layers []uuid.UUID, world *state.World) (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.force = ForceNone
	if reason == ForceNone {
		reason = ForceManual
	}
	return w.writeFull(res, layout, layers, world, reason, true)
}

func (w *Writer) writeGauges(res Resolver, layout uuid.UUID, layers []uuid.UUID, world *state.World) (Result, error) {
	eff, err := res.Resolve(layout, layers)
	if err != nil {
		return w.finish(Result{Outcome: OutcomeFailed}, fmt.Errorf("resolve %s: %w", layout, err))
	}
	result := Result{Outcome: OutcomeGauges, Name: eff.Name}
	if err := w.applyGauges(eff, world); err != nil {
		return w.finish(result, err)
	}
	w.staged.JobID = world.JobID()
	w.debugf("applied job gauges of %s for job %d", eff.Name, world.JobID())
	return w.finish(result, nil)
}

func (w *Writer) writeFull(res Resolver, layout uuid.UUID, layers []uuid.UUID, world *state.World, reason ForceReason, selectSlot bool) (Result, error) {
	eff, err := res.Resolve(layout, layers)
	if err != nil {
		return w.finish(Result{Outcome: OutcomeFailed, Reason: reason}, fmt.Errorf("resolve %s: %w", layout, err))
	}
	result := Result{Outcome: OutcomeFull, Name: eff.Name, Reason: reason}
	if err := w.writeElements(eff, selectSlot); err != nil {
		if reason != ForceNone && w.force == ForceNone {
			w.force = reason
		}
		return w.finish(result, err)
	}
	if err := w.applyGauges(eff, world); err != nil {
		w.warnf("apply job gauges for %s: %v", eff.Name, err)
	}
	for _, name := range eff.SortedWindows() {
		if err := w.sink.SetWindowPosition(name, eff.Windows[name]); err != nil {
			w.warnf("position window %s: %v", name, err)
		}
	}
	for _, overlay := range eff.Overlays {
		if err := w.sink.ApplyOverlay(overlay); err != nil {
			w.warnf("apply overlay %s: %v", overlay.CommandName, err)
		}
	}
	if len(eff.External) > 0 {
		if err := w.sink.ApplyExternalConfig(eff.External); err != nil {
			w.warnf("apply external config: %v", err)
		}
	}
	w.staged = &State{
		JobID:       world.JobID(),
		LayoutID:    layout,
		LayerIDs:    append([]uuid.UUID(nil), layers...),
		Fingerprint: fmt.Sprintf("%016x", eff.Fingerprint()),
	}
	w.name = eff.Name
	if reason != ForceNone {
		w.infof("wrote layout %s (forced: %s)", eff.Name, reason)
	} else {
		w.infof("wrote layout %s", eff.Name)
	}
	return w.finish(result, nil)
}

// writeElements writes the staging slot. The slot is reloaded when it is
// already active or when selectSlot asks for it to become active.
func (w *Writer) writeElements(eff *hud.EffectiveLayout, selectSlot bool) error {
	live, err := w.sink.ReadSlot(w.slot)
	if err != nil {
		return fmt.Errorf("read slot %d: %w", w.slot, err)
	}
	active, err := w.sink.ActiveSlot()
	if err != nil {
		return fmt.Errorf("query active slot: %w", err)
	}
	elements := MergeIntoSlot(live, eff)
	if err := w.sink.WriteLayout(w.slot, elements, selectSlot || active == w.slot); err != nil {
		return fmt.Errorf("write slot %d: %w", w.slot, err)
	}
	return nil
}

// applyGauges shows or hides the gauges of the player's job whose
// visibility is part of the layout, for the current input mode.
func (w *Writer) applyGauges(eff *hud.EffectiveLayout, world *state.World) error {
	jobIndex := w.table.JobIndex(world.JobID())
	if jobIndex == 0 {
		return nil
	}
	mode := hud.VisibleKeyboard
	if world != nil && world.InputMode == state.InputGamepad {
		mode = hud.VisibleGamepad
	}
	for _, kind := range eff.SortedKinds() {
		el := eff.Elements[kind]
		if kind.GaugeJobIndex() != jobIndex || !el.Enabled.Has(hud.ComponentVisibility) {
			continue
		}
		if err := w.sink.ApplyJobGaugeVisibility(kind, el.Visible(mode)); err != nil {
			return fmt.Errorf("gauge %s: %w", kind, err)
		}
	}
	return nil
}

func (w *Writer) finish(result Result, err error) (Result, error) {
	if err != nil {
		result.Error = err.Error()
		if result.Outcome != OutcomeFailed {
			result.Outcome = OutcomeFailed
		}
	}
	if w.recorder != nil {
		w.recorder.RecordWrite(string(result.Outcome), result.Reason.String())
	}
	return result, err
}

func (w *Writer) debugf(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Debugf(format, args...)
	}
}

func (w *Writer) infof(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Infof(format, args...)
	}
}

func (w *Writer) warnf(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Warnf(format, args...)
	}
}
