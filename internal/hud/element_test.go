package hud

import (
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestUpdateEnabledCopiesOnlyMaskedFields(t *testing.T) {
	base := Element{Kind: PartyList, Enabled: AllEnabled, X: 1, Y: 2, Scale: 1, Opacity: 200, Visibility: VisibleKeyboard, Options: Blob{1, 2, 3, 4}}
	incoming := Element{
		Kind:         PartyList,
		Enabled:      ComponentX | ComponentOpacity,
		X:            50,
		Y:            60,
		Scale:        2,
		Opacity:      10,
		Visibility:   VisibleGamepad,
		Options:      Blob{9, 9, 9, 9},
		Width:        320,
		Height:       180,
		MeasuredFrom: MeasuredBottomRight,
		Unknown6:     7,
		Unknown8:     Blob{8},
	}

	base.UpdateEnabled(incoming)

	if base.X != 50 || base.Opacity != 10 {
		t.Fatalf("expected enabled fields to be copied, got X=%v opacity=%d", base.X, base.Opacity)
	}
	if base.Y != 2 || base.Scale != 1 || base.Visibility != VisibleKeyboard {
		t.Fatalf("expected disabled fields to be kept, got %+v", base)
	}
	if !reflect.DeepEqual(base.Options, Blob{1, 2, 3, 4}) {
		t.Fatalf("expected options to be kept, got %v", base.Options)
	}
	if base.Width != 320 || base.Height != 180 || base.MeasuredFrom != MeasuredBottomRight || base.Unknown6 != 7 {
		t.Fatalf("expected metadata to always be copied, got %+v", base)
	}
	if !reflect.DeepEqual(base.Unknown8, Blob{8}) {
		t.Fatalf("expected unknown8 to be copied, got %v", base.Unknown8)
	}
}

func TestCloneDoesNotShareBlobs(t *testing.T) {
	el := Element{Kind: Hotbar1, Options: Blob{1, 2}, Unknown8: Blob{3}}
	clone := el.Clone()
	clone.Options[0] = 99
	clone.Unknown8[0] = 99
	if el.Options[0] != 1 || el.Unknown8[0] != 3 {
		t.Fatalf("clone mutated original: %+v", el)
	}
}

func TestElementYAMLEnabledForms(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want ElementComponent
	}{
		{name: "missing defaults to all", doc: "x: 1\n", want: AllEnabled},
		{name: "all keyword", doc: "enabled: all\n", want: AllEnabled},
		{name: "list", doc: "enabled: [x, opacity]\n", want: ComponentX | ComponentOpacity},
		{name: "bitmask", doc: "enabled: 3\n", want: ComponentX | ComponentY},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var el Element
			if err := yaml.Unmarshal([]byte(tt.doc), &el); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if el.Enabled != tt.want {
				t.Fatalf("enabled = %s, want %s", el.Enabled, tt.want)
			}
		})
	}

	var el Element
	if err := yaml.Unmarshal([]byte("enabled: [x, bogus]\n"), &el); err == nil {
		t.Fatalf("expected unknown component to be rejected")
	}
}

func TestElementYAMLRoundTripKeepsOptions(t *testing.T) {
	layout := SavedLayout{
		Name: "Base",
		Elements: map[ElementKind]Element{
			Minimap: {Enabled: ComponentX | ComponentY, X: 10, Y: 20, Options: Blob{0xde, 0xad}},
		},
	}
	data, err := yaml.Marshal(layout)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded SavedLayout
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, data)
	}
	decoded.Normalize()
	got := decoded.Elements[Minimap]
	if got.Kind != Minimap || got.Enabled != ComponentX|ComponentY {
		t.Fatalf("unexpected element after round trip: %+v", got)
	}
	if !reflect.DeepEqual(got.Options, Blob{0xde, 0xad}) {
		t.Fatalf("options lost in round trip: %v\n%s", got.Options, data)
	}
}

func TestParseElementKind(t *testing.T) {
	kind, err := ParseElementKind("hotbar1")
	if err != nil || kind != Hotbar1 {
		t.Fatalf("ParseElementKind(hotbar1) = %v, %v", kind, err)
	}
	kind, err = ParseElementKind("0x7159021B")
	if err != nil || kind != Minimap {
		t.Fatalf("ParseElementKind(hex) = %v, %v", kind, err)
	}
	if _, err := ParseElementKind("NotAThing"); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
}

func TestGaugeCatalog(t *testing.T) {
	tests := []struct {
		kind  ElementKind
		job   uint8
		addon string
	}{
		{OathGauge, 1, "JobHudPLD0"},
		{MastersGauge, 2, "JobHudMNK0"},
		{AstralGauge, 7, "JobHudBLM1"},
		{Kazematoi, 10, "JobHudNIN1v70"},
		{PaletteGauge, 22, "JobHudRPM1"},
		{Minimap, 0, ""},
	}
	for _, tt := range tests {
		if got := tt.kind.GaugeJobIndex(); got != tt.job {
			t.Fatalf("%s gauge job = %d, want %d", tt.kind, got, tt.job)
		}
		if got := tt.kind.GaugeAddon(); got != tt.addon {
			t.Fatalf("%s addon = %q, want %q", tt.kind, got, tt.addon)
		}
	}
	if HutonGauge.IsReal() {
		t.Fatalf("expected removed gauge to have no slot row")
	}
	for _, kind := range AllKinds() {
		if kind == Timers {
			t.Fatalf("immutable kind listed in AllKinds")
		}
	}
}

func TestOverlayCommands(t *testing.T) {
	o := Overlay{CommandName: "raid", Enabled: OverlayHidden | OverlayClickthrough, Hidden: true, Locked: true}
	got := o.Commands()
	want := []string{"/bw inlay raid hidden on", "/bw inlay raid clickthrough off"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	if cmds := (Overlay{CommandName: "has space", Enabled: OverlayAllEnabled}).Commands(); cmds != nil {
		t.Fatalf("expected no commands for invalid name, got %v", cmds)
	}
}

func TestFingerprintStable(t *testing.T) {
	a := NewEffectiveLayout()
	a.Elements[Hotbar1] = Element{Kind: Hotbar1, Enabled: AllEnabled, X: 1}
	a.Windows["Inventory"] = NewWindow(3, 4)
	b := NewEffectiveLayout()
	b.Windows["Inventory"] = NewWindow(3, 4)
	b.Elements[Hotbar1] = Element{Kind: Hotbar1, Enabled: AllEnabled, X: 1}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("expected equal layouts to share a fingerprint")
	}
	b.Elements[Hotbar1] = Element{Kind: Hotbar1, Enabled: AllEnabled, X: 2}
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("expected fingerprint to change with content")
	}
}
