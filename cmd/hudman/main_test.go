package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/config"
	"github.com/hudman/hudman/internal/hud"
)

var childID = uuid.MustParse("00000000-0000-0000-0000-0000000000c2")

func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTreeConfig(t *testing.T, mutate ...func(*config.Config)) string {
	t.Helper()
	cfg := sampleConfig()
	for _, m := range mutate {
		m(cfg)
	}
	child := hud.NewElement(hud.PartyList)
	child.X = 25
	cfg.Layouts[childID] = hud.SavedLayout{Name: "Crafting", Parent: rootID, Elements: map[hud.ElementKind]hud.Element{hud.PartyList: child}}
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, cfg)
	return path
}

func TestCheckAcceptsValidConfig(t *testing.T) {
	path := writeTreeConfig(t)
	stdout, _, err := runRoot(t, "check", path)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(stdout, "Configuration OK: 2 layouts") {
		t.Fatalf("unexpected output %q", stdout)
	}
}

func TestCheckReportsIssues(t *testing.T) {
	cfg := sampleConfig()
	cfg.StagingSlot = 9
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, cfg)
	_, stderr, err := runRoot(t, "--config", path, "check")
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	if !strings.Contains(stderr, "stagingSlot") {
		t.Fatalf("expected stagingSlot issue, got %q", stderr)
	}
}

func TestLayoutsPrintsTree(t *testing.T) {
	path := writeTreeConfig(t)
	stdout, _, err := runRoot(t, "--config", path, "layouts")
	if err != nil {
		t.Fatalf("layouts: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "Root") || !strings.HasPrefix(lines[1], "  Crafting") {
		t.Fatalf("unexpected tree:\n%s", stdout)
	}
}

func TestResolveOfflineMergesParent(t *testing.T) {
	path := writeTreeConfig(t)
	stdout, _, err := runRoot(t, "--config", path, "resolve", "Crafting")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	eff := hud.NewEffectiveLayout()
	if err := json.Unmarshal([]byte(stdout), eff); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout)
	}
	if eff.Name != "Crafting" || eff.Elements[hud.PartyList].X != 25 {
		t.Fatalf("unexpected effective layout %+v", eff)
	}
	if _, _, err := runRoot(t, "--config", path, "resolve", "Crafting", "--layer", "Ghost"); err == nil {
		t.Fatalf("expected missing layer error")
	}
}

func TestResolveScreenTableUsesPositioningMode(t *testing.T) {
	path := writeTreeConfig(t, func(c *config.Config) { c.PositioningMode = config.PositionPixels })
	stdout, _, err := runRoot(t, "--config", path, "resolve", "Crafting", "--screen", "1920x1080")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(stdout, "Crafting (pixels) fingerprint ") || !strings.Contains(stdout, "480px") {
		t.Fatalf("unexpected table:\n%s", stdout)
	}
	if _, _, err := runRoot(t, "--config", path, "resolve", "Crafting", "--screen", "wide"); err == nil {
		t.Fatalf("expected screen parse error")
	}
}

func TestRemoteCommandsNeedDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	if _, _, err := runRoot(t, "--socket", socket, "status"); err == nil || !strings.Contains(err.Error(), "dial control socket") {
		t.Fatalf("expected dial error, got %v", err)
	}
}
