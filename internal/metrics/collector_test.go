package metrics

import (
	"testing"
	"time"
)

func TestCollectorRecordsCounters(t *testing.T) {
	c := NewCollector(true)
	c.RecordMatch("DoH + Crafting", "Crafting")
	c.RecordMatch("DoH + Crafting", "Crafting")
	c.RecordWrite("full", "none")
	c.RecordWrite("full", "config-reloaded")
	c.RecordWrite("skipped", "none")
	c.RecordWrite("failed", "none")
	snap := c.Snapshot()
	if !snap.Enabled {
		t.Fatalf("expected snapshot to be enabled")
	}
	want := Totals{Matched: 2, FullWrites: 2, Skipped: 1, Failed: 1}
	if snap.Totals != want {
		t.Fatalf("unexpected totals: %#v", snap.Totals)
	}
	if len(snap.Rules) != 1 {
		t.Fatalf("expected one rule in snapshot, got %d", len(snap.Rules))
	}
	rule := snap.Rules[0]
	if rule.Rule != "DoH + Crafting" || rule.Layout != "Crafting" || rule.Matched != 2 {
		t.Fatalf("unexpected rule: %#v", rule)
	}
	if rule.LastMatched.IsZero() {
		t.Fatalf("expected timestamp to be recorded: %#v", rule)
	}
	if len(snap.Writes) != 4 || snap.Writes[0].Outcome != "failed" || snap.Writes[1].Reason != "config-reloaded" {
		t.Fatalf("unexpected write ordering: %#v", snap.Writes)
	}
}

func TestCollectorToggle(t *testing.T) {
	c := NewCollector(false)
	c.RecordMatch("rule", "Layout")
	c.RecordWrite("full", "none")
	if snap := c.Snapshot(); snap.Enabled || len(snap.Rules) != 0 || len(snap.Writes) != 0 {
		t.Fatalf("expected disabled snapshot: %#v", snap)
	}
	c.SetEnabled(true)
	c.RecordMatch("rule", "Layout")
	snap := c.Snapshot()
	if !snap.Enabled || snap.Totals.Matched != 1 {
		t.Fatalf("unexpected enabled snapshot: %#v", snap)
	}
	c.SetEnabled(false)
	snap = c.Snapshot()
	if snap.Enabled || !snap.Started.IsZero() {
		t.Fatalf("expected disabled snapshot with reset start, got %#v", snap)
	}
	time.Sleep(10 * time.Millisecond)
	c.SetEnabled(true)
	c.RecordMatch("rule", "Layout")
	if snap = c.Snapshot(); snap.Totals.Matched != 1 {
		t.Fatalf("expected counters to reset after re-enable: %#v", snap)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordMatch("rule", "Layout")
	c.RecordWrite("full", "none")
	if c.Enabled() || c.Snapshot().Enabled {
		t.Fatalf("nil collector must report disabled")
	}
}
