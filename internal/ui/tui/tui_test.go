package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hudman/hudman/internal/engine"
	"github.com/hudman/hudman/internal/rules"
	"github.com/hudman/hudman/internal/staging"
	"github.com/hudman/hudman/internal/state"
)

type stubInspector struct {
	insp engine.Inspection
	err  error
}

func (s stubInspector) Inspect(context.Context) (engine.Inspection, error) {
	return s.insp, s.err
}

func sampleInspection() engine.Inspection {
	return engine.Inspection{
		Status: engine.Status{
			SwapsEnabled: true,
			StagingSlot:  4,
			Locked:       true,
			Suspended:    "edit lock held",
			ActiveLayout: "Crafting",
			Fingerprint:  "00c0ffee00c0ffee",
			PendingForce: staging.ForceEditLockRemoved,
		},
		World:    &state.World{Player: &state.Player{JobID: 8, Level: 90}, Crafting: true},
		Statuses: map[string]bool{rules.Crafting.String(): true},
		Rules: []engine.RuleState{
			{Index: 0, Match: "DoH + Crafting", Layout: "Crafting", Matched: true, Trace: &rules.PredicateTrace{Kind: "rule", Result: true}},
			{Index: 1, Match: "always", Layout: "Root", Holding: 1.5},
		},
		Conditions: []engine.ConditionState{{Name: "Manual", Kind: rules.KindConsoleToggle}},
		History: []engine.Evaluation{
			{Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), Layout: "Crafting", Outcome: staging.OutcomeFull, Reason: "none"},
		},
	}
}

func TestRenderInspection(t *testing.T) {
	r := New(stubInspector{}, nil)
	r.Traces = true
	out := r.Render(sampleInspection())
	for _, want := range []string{
		"Suspended: edit lock held",
		"Active layout: Crafting",
		"Next write forced: edit-lock-removed",
		"#00c0ffee00c0ffee",
		rules.Crafting.String(),
		"DoH + Crafting",
		"holding 1.5s",
		"#0 rule => true",
		"Manual",
		"12:00:00",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderWithoutWorld(t *testing.T) {
	out := New(stubInspector{}, nil).Render(engine.Inspection{})
	if !strings.Contains(out, "Waiting for the first game state snapshot") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Active layout: (none)") {
		t.Fatalf("expected empty active layout:\n%s", out)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	r := New(stubInspector{err: errors.New("dial control socket: refused")}, &buf)
	r.Refresh = time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !strings.Contains(buf.String(), "dial control socket: refused") {
		t.Fatalf("expected error in output")
	}
}
