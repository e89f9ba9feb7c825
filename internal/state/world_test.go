package state

import "testing"

func TestCloneWorldIsDeep(t *testing.T) {
	src := &World{Player: &Player{JobID: 19}, KeysDown: []VirtualKey{Shift}}
	clone := CloneWorld(src)
	clone.Player.JobID = 20
	clone.KeysDown[0] = Control
	if src.Player.JobID != 19 || src.KeysDown[0] != Shift {
		t.Fatalf("clone shares state with source")
	}
	if CloneWorld(nil) != nil {
		t.Fatalf("expected nil clone of nil world")
	}
}

func TestKeyDownIgnoresNoKey(t *testing.T) {
	w := &World{KeysDown: []VirtualKey{NoKey, 'A'}}
	if w.KeyDown(NoKey) {
		t.Fatalf("NO_KEY must never be down")
	}
	if !w.KeyDown('A') {
		t.Fatalf("expected A down")
	}
}

func TestParseVirtualKey(t *testing.T) {
	cases := map[string]VirtualKey{
		"shift": Shift,
		"F1":    0x70,
		"q":     'Q',
		"key_1": '1',
		"0x12":  Menu,
		"13":    0x0D,
	}
	for in, want := range cases {
		got, err := ParseVirtualKey(in)
		if err != nil {
			t.Fatalf("ParseVirtualKey(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseVirtualKey(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseVirtualKey("hyper"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestJobIDWithoutPlayer(t *testing.T) {
	if (&World{}).JobID() != 0 {
		t.Fatalf("expected zero job without player")
	}
}
