package layout

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/hud"
)

func sampleLayouts() map[uuid.UUID]hud.SavedLayout {
	return map[uuid.UUID]hud.SavedLayout{
		rootID:  {Name: "Root"},
		childID: {Name: "Child", Parent: rootID},
		grandID: {Name: "Grandchild", Parent: childID},
		layer1:  {Name: "Orphan", Parent: uuid.MustParse("00000000-0000-0000-0000-0000000000aa")},
	}
}

func TestBuildTreeRoots(t *testing.T) {
	f := BuildTree(sampleLayouts())
	var names []string
	for _, r := range f.Roots {
		names = append(names, r.Value.Name)
	}
	if diff := cmp.Diff([]string{"Orphan", "Root"}, names); diff != "" {
		t.Fatalf("roots mismatch (-want +got):\n%s", diff)
	}
}

func TestAncestorsOrderParentFirst(t *testing.T) {
	f := BuildTree(sampleLayouts())
	node, ok := f.Find(grandID)
	if !ok {
		t.Fatalf("grandchild not found")
	}
	var ids []uuid.UUID
	for _, a := range node.Ancestors() {
		ids = append(ids, a.ID)
	}
	if diff := cmp.Diff([]uuid.UUID{childID, rootID}, ids); diff != "" {
		t.Fatalf("ancestors mismatch (-want +got):\n%s", diff)
	}
}

func TestTraverseWithDepth(t *testing.T) {
	f := BuildTree(sampleLayouts())
	root, _ := f.Find(rootID)
	nds := root.TraverseWithDepth()
	if len(nds) != 3 || nds[2].Node.ID != grandID || nds[2].Depth != 2 {
		t.Fatalf("unexpected traversal %+v", nds)
	}
	if len(f.Walk()) != 4 {
		t.Fatalf("expected walk over every node")
	}
}

func TestValidParentsExcludesSelfAndDescendants(t *testing.T) {
	f := BuildTree(sampleLayouts())
	got := f.ValidParents(childID)
	if diff := cmp.Diff([]uuid.UUID{layer1, rootID}, got); diff != "" {
		t.Fatalf("valid parents mismatch (-want +got):\n%s", diff)
	}
	if !f.IsDescendant(rootID, grandID) || f.IsDescendant(grandID, rootID) {
		t.Fatalf("unexpected descendant relation")
	}
}

func TestOrphanListsChildren(t *testing.T) {
	f := BuildTree(sampleLayouts())
	if diff := cmp.Diff([]uuid.UUID{childID}, f.Orphan(rootID)); diff != "" {
		t.Fatalf("orphan mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTreeBreaksCycles(t *testing.T) {
	layouts := map[uuid.UUID]hud.SavedLayout{
		rootID:  {Name: "A", Parent: childID},
		childID: {Name: "B", Parent: rootID},
		grandID: {Name: "Self", Parent: grandID},
	}
	f := BuildTree(layouts)
	if len(f.Walk()) != 3 {
		t.Fatalf("expected every node reachable, got %d", len(f.Walk()))
	}
	for _, nd := range f.Walk() {
		if len(nd.Node.Ancestors()) > 1 {
			t.Fatalf("cycle survived for %s", nd.Node.Value.Name)
		}
	}
	if _, err := NewResolver(layouts, false, nil).Resolve(childID, nil); err != nil {
		t.Fatalf("resolve on broken cycle: %v", err)
	}
}
