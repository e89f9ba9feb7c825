package command

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Command
	}{
		{"swap Crafting", Command{Kind: KindSwap, Name: "Crafting"}},
		{"swap My Raid Layout", Command{Kind: KindSwap, Name: "My Raid Layout"}},
		{`swap "Quoted Name"`, Command{Kind: KindSwap, Name: "Quoted Name"}},
		{`condition "In Town" on`, Command{Kind: KindCondition, Name: "In Town", Switch: SwitchOn}},
		{`condition Manual false`, Command{Kind: KindCondition, Name: "Manual", Switch: SwitchOff}},
		{`condition "Manual"`, Command{Kind: KindCondition, Name: "Manual", Switch: SwitchToggle}},
		{"/hudman swapper off", Command{Kind: KindSwapper, Switch: SwitchOff}},
		{"SWAPPER toggle", Command{Kind: KindSwapper, Switch: SwitchToggle}},
		{"lock", Command{Kind: KindLock}},
		{"  unlock ", Command{Kind: KindUnlock}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	if _, err := Parse("   "); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	for _, input := range []string{"swap", "dance now", "swapper maybe", `condition "x" on extra`} {
		if _, err := Parse(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestSwitchApply(t *testing.T) {
	if !SwitchOn.Apply(false) || SwitchOff.Apply(true) || SwitchToggle.Apply(true) {
		t.Fatalf("unexpected switch semantics")
	}
}
