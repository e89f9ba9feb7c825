package tui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hudman/hudman/internal/engine"
	"github.com/hudman/hudman/internal/jobs"
	"github.com/hudman/hudman/internal/rules"
	"github.com/hudman/hudman/internal/state"
)

const (
	defaultRefresh = 500 * time.Millisecond
	historyRows    = 8
	matchWidth     = 48
)

// Inspector returns the daemon's inspector view.
type Inspector interface {
	Inspect(ctx context.Context) (engine.Inspection, error)
}

// Renderer periodically polls the daemon and renders a textual dashboard.
type Renderer struct {
	Source  Inspector
	Writer  io.Writer
	Refresh time.Duration
	// Traces expands the predicate trace of every rule.
	Traces bool

	table *jobs.Table
	theme theme
}

// New returns a renderer configured with sensible defaults.
func New(src Inspector, w io.Writer) *Renderer {
	return &Renderer{Source: src, Writer: w, Refresh: defaultRefresh, table: jobs.MustDefault(), theme: defaultTheme()}
}

// Run starts the render loop until the context is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.Writer == nil {
		r.Writer = os.Stdout
	}
	if r.Source == nil {
		return fmt.Errorf("tui renderer requires an inspector source")
	}

	refresh := r.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	fmt.Fprint(r.Writer, "\033[?25l")
	defer fmt.Fprint(r.Writer, "\033[?25h")

	r.render(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.render(ctx)
		}
	}
}

func (r *Renderer) render(ctx context.Context) {
	insp, err := r.Source.Inspect(ctx)

	var buf bytes.Buffer
	buf.WriteString("\033[H\033[2J")
	buf.WriteString(r.theme.Header.Render("hudman inspector") + r.theme.Muted.Render("  Ctrl+C to exit"))
	buf.WriteByte('\n')
	buf.WriteString(time.Now().Format(time.RFC1123))
	buf.WriteString("\n\n")
	if err != nil {
		buf.WriteString(r.theme.Danger.Render(fmt.Sprintf("error: %v", err)))
		buf.WriteByte('\n')
	} else {
		buf.WriteString(r.Render(insp))
	}
	fmt.Fprint(r.Writer, buf.String())
}

// Render formats one inspection without terminal control sequences.
func (r *Renderer) Render(insp engine.Inspection) string {
	if r.table == nil {
		r.table = jobs.MustDefault()
		r.theme = defaultTheme()
	}
	var b strings.Builder
	b.WriteString(r.renderStatus(insp.Status))
	if insp.World == nil {
		b.WriteString(r.theme.Muted.Render("Waiting for the first game state snapshot..."))
		b.WriteByte('\n')
		return b.String()
	}
	b.WriteString(r.renderWorld(insp.World, insp.Statuses))
	b.WriteString(r.renderRules(insp.Rules))
	b.WriteString(r.renderConditions(insp.Conditions))
	b.WriteString(r.renderHistory(insp.History))
	return b.String()
}

func (r *Renderer) renderStatus(st engine.Status) string {
	var b strings.Builder
	swapper := r.theme.Success.Render("enabled")
	if !st.SwapsEnabled {
		swapper = r.theme.Alert.Render("disabled")
	}
	fmt.Fprintf(&b, "Swapper: %s  Slot: %d", swapper, st.StagingSlot)
	if st.AdvancedSwapMode {
		b.WriteString("  advanced")
	}
	if st.Locked {
		b.WriteString("  " + r.theme.Alert.Render("edit lock held"))
	}
	b.WriteByte('\n')
	if st.Suspended != "" {
		b.WriteString(r.theme.Alert.Render("Suspended: " + st.Suspended))
		b.WriteByte('\n')
	}
	active := st.ActiveLayout
	if active == "" {
		active = "(none)"
	}
	fmt.Fprintf(&b, "Active layout: %s", active)
	if len(st.Layers) > 0 {
		fmt.Fprintf(&b, " + %s", strings.Join(st.Layers, ", "))
	}
	if st.Fingerprint != "" {
		b.WriteString("  " + r.theme.Muted.Render("#"+st.Fingerprint))
	}
	b.WriteByte('\n')
	if st.PendingForce.String() != "none" {
		fmt.Fprintf(&b, "Next write forced: %s\n", st.PendingForce)
	}
	b.WriteByte('\n')
	return b.String()
}

func (r *Renderer) renderWorld(w *state.World, statuses map[string]bool) string {
	var b strings.Builder
	b.WriteString(r.theme.Section.Render("Player"))
	b.WriteByte('\n')
	if w.Player == nil {
		b.WriteString("  (not logged in)\n\n")
	} else {
		job := fmt.Sprintf("%d", w.Player.JobID)
		if cj, ok := r.table.Job(w.Player.JobID); ok {
			job = fmt.Sprintf("%s (%s)", cj.Abbreviation, cj.Name)
		}
		fmt.Fprintf(&b, "  Job: %s  Level: %d  Map: %d  Territory: %d  Input: %s\n\n", job, w.Player.Level, w.MapID, w.TerritoryID, w.InputMode)
	}
	var active []string
	for _, st := range rules.AllStatuses() {
		if statuses[st.String()] {
			active = append(active, st.String())
		}
	}
	b.WriteString(r.theme.Section.Render("Statuses"))
	b.WriteByte('\n')
	if len(active) == 0 {
		b.WriteString("  (none)\n\n")
	} else {
		b.WriteString("  " + strings.Join(active, ", ") + "\n\n")
	}
	return b.String()
}

func (r *Renderer) renderRules(ruleStates []engine.RuleState) string {
	var b strings.Builder
	b.WriteString(r.theme.Section.Render("Swap rules"))
	b.WriteByte('\n')
	if len(ruleStates) == 0 {
		b.WriteString("  (none)\n\n")
		return b.String()
	}
	var tb strings.Builder
	tw := tabwriter.NewWriter(&tb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tMatch\tLayout\tState")
	for _, rs := range ruleStates {
		layout := rs.Layout
		if rs.IsLayer {
			layout += " (layer)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", rs.Index, truncate(rs.Match, matchWidth), layout, ruleState(rs))
	}
	tw.Flush()
	b.WriteString(tb.String())
	if r.Traces {
		for _, rs := range ruleStates {
			for _, line := range rules.SummarizePredicateTrace(rs.Trace) {
				fmt.Fprintf(&b, "  #%d %s\n", rs.Index, line)
			}
		}
	}
	b.WriteByte('\n')
	return b.String()
}

func ruleState(rs engine.RuleState) string {
	switch {
	case rs.Matched:
		return "matched"
	case rs.Holding > 0:
		return fmt.Sprintf("holding %.1fs", rs.Holding)
	}
	return "-"
}

func (r *Renderer) renderConditions(conds []engine.ConditionState) string {
	if len(conds) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(r.theme.Section.Render("Custom conditions"))
	b.WriteByte('\n')
	var tb strings.Builder
	tw := tabwriter.NewWriter(&tb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Name\tKind\tValue")
	for _, c := range conds {
		value := fmt.Sprintf("%t", c.Value)
		switch {
		case c.Error != "":
			value = "error: " + c.Error
		case c.Provider != nil && c.Provider.IsError():
			value = c.Provider.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Kind, value)
	}
	tw.Flush()
	b.WriteString(tb.String())
	b.WriteByte('\n')
	return b.String()
}

func (r *Renderer) renderHistory(history []engine.Evaluation) string {
	var b strings.Builder
	b.WriteString(r.theme.Section.Render("Recent writes"))
	b.WriteByte('\n')
	if len(history) == 0 {
		b.WriteString("  (none)\n")
		return b.String()
	}
	if len(history) > historyRows {
		history = history[len(history)-historyRows:]
	}
	var tb strings.Builder
	tw := tabwriter.NewWriter(&tb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Time\tLayout\tOutcome\tReason")
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		outcome := string(entry.Outcome)
		if entry.Error != "" {
			outcome += ": " + entry.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", entry.Timestamp.Format("15:04:05"), entry.Layout, outcome, entry.Reason)
	}
	tw.Flush()
	b.WriteString(tb.String())
	return b.String()
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
