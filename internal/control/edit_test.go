package control

import (
	"context"
	"strings"
	"testing"

	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/jobs"
	"github.com/hudman/hudman/internal/rules"
)

func mustEdit(t *testing.T, srv *Server, action string, params map[string]any) string {
	t.Helper()
	resp := roundTrip(t, srv, Request{Action: action, Params: params})
	if resp.Status != StatusOK {
		t.Fatalf("%s failed: %s", action, resp.Error)
	}
	var result CommandResult
	decodeData(t, resp, &result)
	return result.Message
}

func TestLayoutEditActions(t *testing.T) {
	srv, eng, _ := newTestServer(t, nil)
	if _, err := eng.ImportSlot("Child", 1); err != nil {
		t.Fatalf("import: %v", err)
	}

	mustEdit(t, srv, ActionLayoutParent, map[string]any{"layout": "Child", "parent": "Root"})
	childID, ok := eng.Config().FindLayout("Child")
	if !ok || eng.Config().Layouts[childID].Parent != rootID {
		t.Fatalf("expected Child under Root")
	}

	resp := roundTrip(t, srv, Request{Action: ActionLayoutParent, Params: map[string]any{"layout": "Root", "parent": "Child"}})
	if resp.Status != StatusError {
		t.Fatalf("expected cycle to be rejected")
	}

	mustEdit(t, srv, ActionLayoutRename, map[string]any{"layout": "Child", "name": "Combat"})
	if _, ok := eng.Config().FindLayout("Combat"); !ok {
		t.Fatalf("rename not applied")
	}
	resp = roundTrip(t, srv, Request{Action: ActionLayoutRename, Params: map[string]any{"layout": "Combat", "name": "Root"}})
	if resp.Status != StatusError {
		t.Fatalf("expected duplicate name to be rejected")
	}

	msg := mustEdit(t, srv, ActionLayoutElement, map[string]any{
		"layout": "Combat", "element": "PartyList", "x": 120, "opacity": 200, "visibility": "gamepad",
	})
	if !strings.Contains(msg, "PartyList") {
		t.Fatalf("unexpected message %q", msg)
	}
	el := eng.Config().Layouts[childID].Elements[hud.PartyList]
	if el.X != 120 || el.Opacity != 200 || el.Visibility != hud.VisibleGamepad {
		t.Fatalf("unexpected element %+v", el)
	}
	if el.Enabled&hud.ComponentX == 0 || el.Enabled&hud.ComponentOpacity == 0 || el.Enabled&hud.ComponentVisibility == 0 {
		t.Fatalf("expected edited components enabled, got %v", el.Enabled)
	}

	for _, params := range []map[string]any{
		{"layout": "Combat", "element": "PartyList"},
		{"layout": "Combat", "element": "PartyList", "opacity": 300},
		{"layout": "Combat", "element": "PartyList", "visibility": "sideways"},
		{"layout": "Nowhere", "element": "PartyList", "x": 1},
	} {
		if resp := roundTrip(t, srv, Request{Action: ActionLayoutElement, Params: params}); resp.Status != StatusError {
			t.Fatalf("expected %v to be rejected", params)
		}
	}

	mustEdit(t, srv, ActionLayoutDelete, map[string]any{"layout": "Combat"})
	if _, ok := eng.Config().FindLayout("Combat"); ok {
		t.Fatalf("expected layout deleted")
	}
}

func TestSwapAddAction(t *testing.T) {
	srv, eng, _ := newTestServer(t, nil)
	mustEdit(t, srv, ActionSwapAdd, map[string]any{"layout": "Root", "job": "Tank", "status": "InCombat", "condition": "Manual", "layer": true})
	swaps := eng.Config().Swaps
	if len(swaps) != 2 {
		t.Fatalf("expected two swap rules, got %d", len(swaps))
	}
	got := swaps[1]
	if got.LayoutID != rootID || got.ClassJob != jobs.Tank || got.Status != rules.InCombat || got.CustomCondition != "Manual" || !got.IsLayer {
		t.Fatalf("unexpected rule %+v", got)
	}

	for _, params := range []map[string]any{
		{"layout": "Nowhere"},
		{"layout": "Root", "condition": "Missing"},
		{"layout": "Root", "job": "Bard"},
		{"layout": "Root", "status": "Dancing"},
	} {
		if resp := roundTrip(t, srv, Request{Action: ActionSwapAdd, Params: params}); resp.Status != StatusError {
			t.Fatalf("expected %v to be rejected", params)
		}
	}
	if len(eng.Config().Swaps) != 2 {
		t.Fatalf("rejected rules must not be stored")
	}
}

func TestConditionEditActions(t *testing.T) {
	srv, eng, _ := newTestServer(t, nil)
	mustEdit(t, srv, ActionConditionAdd, map[string]any{"name": "Hold", "kind": "keybind", "holdTime": 0.5, "modifier": "Shift", "key": "F1"})
	mustEdit(t, srv, ActionConditionAdd, map[string]any{"name": "Both", "kind": "multi"})
	mustEdit(t, srv, ActionConditionOperand, map[string]any{"name": "Both", "operand": "condition:Manual"})
	mustEdit(t, srv, ActionConditionOperand, map[string]any{"name": "Both", "operand": "status:InCombat", "junction": "or", "negate": true})

	conds := eng.Config().CustomConditions
	hold := conds[rules.FindCondition(conds, "Hold")]
	if hold.Kind != rules.KindHoldToActivate || hold.HoldTime != 0.5 {
		t.Fatalf("unexpected keybind condition %+v", hold)
	}
	both := conds[rules.FindCondition(conds, "Both")]
	if len(both.Items) != 2 || both.Items[1].Junction != rules.Or || !both.Items[1].Negate {
		t.Fatalf("unexpected multi items %+v", both.Items)
	}

	resp := roundTrip(t, srv, Request{Action: ActionConditionOperand, Params: map[string]any{"name": "Both", "operand": "condition:Both"}})
	if resp.Status != StatusError {
		t.Fatalf("expected self reference to be rejected")
	}
	resp = roundTrip(t, srv, Request{Action: ActionConditionRemove, Params: map[string]any{"name": "Manual"}})
	if resp.Status != StatusError {
		t.Fatalf("expected in-use condition removal to be rejected")
	}

	mustEdit(t, srv, ActionConditionUpdate, map[string]any{"name": "Manual", "rename": "Toggle"})
	conds = eng.Config().CustomConditions
	if rules.FindCondition(conds, "Toggle") < 0 {
		t.Fatalf("rename not applied: %+v", conds)
	}
	if op := conds[rules.FindCondition(conds, "Both")].Items[0].Operand; op.Condition != "Toggle" {
		t.Fatalf("expected reference to follow rename, got %+v", op)
	}

	mustEdit(t, srv, ActionConditionRemove, map[string]any{"name": "Hold"})
	if rules.FindCondition(eng.Config().CustomConditions, "Hold") >= 0 {
		t.Fatalf("expected Hold removed")
	}
	if resp := roundTrip(t, srv, Request{Action: ActionConditionUpdate, Params: map[string]any{"name": "Both"}}); resp.Status != StatusError {
		t.Fatalf("expected empty update to be rejected")
	}
	if resp := roundTrip(t, srv, Request{Action: ActionConditionAdd, Params: map[string]any{"kind": "weather"}}); resp.Status != StatusError {
		t.Fatalf("expected unknown kind to be rejected")
	}
}

func TestEditForcesFullWrite(t *testing.T) {
	srv, eng, sink := newTestServer(t, nil)
	ctx := context.Background()
	if _, err := eng.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if _, err := eng.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("expected a single write before the edit, got %d", sink.count())
	}
	mustEdit(t, srv, ActionLayoutElement, map[string]any{"layout": "Root", "element": "PartyList", "x": 10})
	if _, err := eng.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sink.count() != 2 {
		t.Fatalf("expected the edit to force a write, got %d", sink.count())
	}
}
