package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hudman/hudman/internal/hud"
)

// Diff describes a configuration document against the last applied one.
// Changes is only filled when both documents parse.
type Diff struct {
	Changes []string
	Lines   string
}

// Empty reports whether the documents are identical.
func (d Diff) Empty() bool {
	return len(d.Changes) == 0 && d.Lines == ""
}

func (d Diff) String() string {
	var b strings.Builder
	for _, c := range d.Changes {
		b.WriteString("  * ")
		b.WriteString(c)
		b.WriteByte('\n')
	}
	b.WriteString(d.Lines)
	return b.String()
}

// DiffSerialized compares two serialized documents line by line and, when
// both parse, by layout, swap rule, condition and setting.
func DiffSerialized(previous, current []byte) Diff {
	d := Diff{Lines: cmp.Diff(splitLines(previous), splitLines(current))}
	prev, err := Parse(previous)
	if err != nil {
		return d
	}
	curr, err := Parse(current)
	if err != nil {
		return d
	}
	d.Changes = Changes(prev, curr)
	return d
}

// Changes lists what differs between two configurations, settings first,
// then layouts by name, swap rules by position and conditions by name.
func Changes(prev, curr *Config) []string {
	var out []string
	setting := func(name string, a, b any) {
		if a != b {
			out = append(out, fmt.Sprintf("%s: %v -> %v", name, a, b))
		}
	}
	setting("understandsRisks", prev.UnderstandsRisks, curr.UnderstandsRisks)
	setting("swapsEnabled", prev.SwapsEnabled, curr.SwapsEnabled)
	setting("advancedSwapMode", prev.AdvancedSwapMode, curr.AdvancedSwapMode)
	setting("stagingSlot", prev.StagingSlot, curr.StagingSlot)
	setting("positioningMode", prev.PositioningMode, curr.PositioningMode)
	setting("tickIntervalMs", prev.TickIntervalMs, curr.TickIntervalMs)
	setting("telemetry.enabled", prev.Telemetry.Enabled, curr.Telemetry.Enabled)

	out = append(out, layoutChanges(prev, curr)...)

	for i := 0; i < len(prev.Swaps) || i < len(curr.Swaps); i++ {
		switch {
		case i >= len(curr.Swaps):
			out = append(out, fmt.Sprintf("swaps[%d] removed: %s", i, describeSwap(prev, i)))
		case i >= len(prev.Swaps):
			out = append(out, fmt.Sprintf("swaps[%d] added: %s", i, describeSwap(curr, i)))
		case prev.Swaps[i] != curr.Swaps[i]:
			out = append(out, fmt.Sprintf("swaps[%d] changed: %s -> %s", i, describeSwap(prev, i), describeSwap(curr, i)))
		}
	}

	prevConds := make(map[string][]byte, len(prev.CustomConditions))
	for _, c := range prev.CustomConditions {
		prevConds[c.Name] = marshalled(c)
	}
	seen := make(map[string]bool, len(curr.CustomConditions))
	for _, c := range curr.CustomConditions {
		seen[c.Name] = true
		old, ok := prevConds[c.Name]
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("condition %q added", c.Name))
		case !bytes.Equal(old, marshalled(c)):
			out = append(out, fmt.Sprintf("condition %q changed", c.Name))
		}
	}
	for _, c := range prev.CustomConditions {
		if !seen[c.Name] {
			out = append(out, fmt.Sprintf("condition %q removed", c.Name))
		}
	}
	return out
}

func layoutChanges(prev, curr *Config) []string {
	ids := make(map[uuid.UUID]struct{}, len(prev.Layouts)+len(curr.Layouts))
	for id := range prev.Layouts {
		ids[id] = struct{}{}
	}
	for id := range curr.Layouts {
		ids[id] = struct{}{}
	}
	var out []string
	for id := range ids {
		before, hadBefore := prev.Layouts[id]
		after, hasAfter := curr.Layouts[id]
		switch {
		case !hadBefore:
			out = append(out, fmt.Sprintf("layout %q added", after.Name))
		case !hasAfter:
			out = append(out, fmt.Sprintf("layout %q removed", before.Name))
		default:
			out = append(out, compareLayout(prev, curr, before, after)...)
		}
	}
	sort.Strings(out)
	return out
}

func compareLayout(prev, curr *Config, before, after hud.SavedLayout) []string {
	var out []string
	if before.Name != after.Name {
		out = append(out, fmt.Sprintf("layout %q renamed to %q", before.Name, after.Name))
	}
	if before.Parent != after.Parent {
		out = append(out, fmt.Sprintf("layout %q parent: %s -> %s", after.Name, parentName(prev, before.Parent), parentName(curr, after.Parent)))
	}
	if n := len(after.Elements) - len(before.Elements); n != 0 {
		out = append(out, fmt.Sprintf("layout %q elements: %d -> %d", after.Name, len(before.Elements), len(after.Elements)))
	} else {
		before.Name, before.Parent = after.Name, after.Parent
		if !bytes.Equal(marshalled(before), marshalled(after)) {
			out = append(out, fmt.Sprintf("layout %q contents changed", after.Name))
		}
	}
	return out
}

func parentName(cfg *Config, id uuid.UUID) string {
	if id == uuid.Nil {
		return "none"
	}
	return cfg.LayoutName(id)
}

func describeSwap(cfg *Config, i int) string {
	m := cfg.Swaps[i]
	return fmt.Sprintf("%s -> %s", m.Describe(), cfg.LayoutName(m.LayoutID))
}

func marshalled(v any) []byte {
	data, err := yaml.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%#v", v))
	}
	return data
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}
