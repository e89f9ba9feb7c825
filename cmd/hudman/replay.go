package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hudman/hudman/internal/command"
	"github.com/hudman/hudman/internal/config"
	"github.com/hudman/hudman/internal/engine"
	"github.com/hudman/hudman/internal/hud"
	"github.com/hudman/hudman/internal/metrics"
	"github.com/hudman/hudman/internal/staging"
	"github.com/hudman/hudman/internal/state"
	"github.com/hudman/hudman/internal/util"
)

// replayFixture is a scripted sequence of game states and chat commands.
type replayFixture struct {
	Name  string       `json:"name"`
	Steps []replayStep `json:"steps"`
}

// replayStep runs Command when set, then evaluates World. A step without a
// world re-evaluates the previous one, which lets hold timers run out.
type replayStep struct {
	World   *state.World `json:"world,omitempty"`
	Command string       `json:"command,omitempty"`
	Note    string       `json:"note,omitempty"`
}

type replayLatencyStats struct {
	Min    float64 `json:"minMs"`
	Mean   float64 `json:"meanMs"`
	Median float64 `json:"medianMs"`
	P95    float64 `json:"p95Ms"`
	Max    float64 `json:"maxMs"`
}

type replayAllocationStats struct {
	Total         uint64  `json:"totalAllocations"`
	PerStep       float64 `json:"allocationsPerStep"`
	BytesTotal    uint64  `json:"bytesTotal"`
	BytesPerStep  float64 `json:"bytesPerStep"`
	HeapAllocDiff int64   `json:"heapAllocDeltaBytes"`
}

type replayWriteStats struct {
	Total        int     `json:"total"`
	PerIteration float64 `json:"perIteration"`
	PerStep      float64 `json:"perStep"`
}

type replaySummary struct {
	Fixture           string                `json:"fixture"`
	Iterations        int                   `json:"iterations"`
	WarmupIterations  int                   `json:"warmupIterations"`
	StepsPerIteration int                   `json:"stepsPerIteration"`
	TotalSteps        int                   `json:"totalSteps"`
	Writes            replayWriteStats      `json:"writes"`
	Latency           replayLatencyStats    `json:"latency"`
	IterationDuration replayLatencyStats    `json:"iterationDuration"`
	Allocations       replayAllocationStats `json:"allocations"`
	TotalDurationMs   float64               `json:"totalDurationMs"`
	StepsPerSecond    float64               `json:"stepsPerSecond"`
}

// replayOutcome is what one step of the first iteration did.
type replayOutcome struct {
	Index      int     `json:"index"`
	Note       string  `json:"note,omitempty"`
	Command    string  `json:"command,omitempty"`
	Message    string  `json:"message,omitempty"`
	Layout     string  `json:"layout,omitempty"`
	Outcome    string  `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMs float64 `json:"durationMs"`
}

type replayReport struct {
	Summary replaySummary    `json:"summary"`
	Steps   []replayOutcome  `json:"steps"`
	Metrics metrics.Snapshot `json:"metrics"`
}

// replaySink keeps slots in memory.
type replaySink struct {
	mu     sync.Mutex
	slots  map[int][]hud.Element
	writes int
}

func newReplaySink() *replaySink {
	return &replaySink{slots: make(map[int][]hud.Element)}
}

func (s *replaySink) ActiveSlot() (int, error) { return 1, nil }

func (s *replaySink) ReadSlot(slot int) ([]hud.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]hud.Element(nil), s.slots[slot]...), nil
}

func (s *replaySink) WriteLayout(slot int, elements []hud.Element, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = append([]hud.Element(nil), elements...)
	s.writes++
	return nil
}

func (s *replaySink) ApplyJobGaugeVisibility(hud.ElementKind, bool) error { return nil }
func (s *replaySink) SetWindowPosition(string, hud.Window) error          { return nil }
func (s *replaySink) ApplyOverlay(hud.Overlay) error                      { return nil }
func (s *replaySink) ApplyExternalConfig(hud.ExternalConfig) error        { return nil }

func (s *replaySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		iterations int
		warmup     int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "replay <fixture.json>",
		Short: "Replay scripted game states against the configuration",
		Long: `Replay evaluates a JSON fixture of game states and chat commands with an
in-memory HUD and reports the layout chosen at every step together with
evaluation latency.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations <= 0 {
				return errors.New("iterations must be positive")
			}
			if warmup < 0 {
				return errors.New("warmup must be zero or positive")
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fixture, err := loadFixture(args[0])
			if err != nil {
				return fmt.Errorf("load fixture: %w", err)
			}
			level := util.LevelWarn
			if f := cmd.Flag("log-level"); f != nil && f.Changed {
				level = util.ParseLogLevel(opts.logLevel)
			}
			logger := util.NewLoggerWithWriter(level, cmd.ErrOrStderr())
			report, err := runReplay(cmd.Context(), cfg, fixture, logger, iterations, warmup)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, report)
			}
			return printReplay(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().IntVar(&iterations, "iterations", 1, "number of times to replay the fixture")
	cmd.Flags().IntVar(&warmup, "warmup", 0, "number of untimed warm-up iterations")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the JSON report")
	return cmd
}

func loadFixture(path string) (replayFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return replayFixture{}, err
	}
	var fixture replayFixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return replayFixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	if len(fixture.Steps) == 0 {
		return replayFixture{}, errors.New("fixture contains no steps")
	}
	if fixture.Name == "" {
		fixture.Name = path
	}
	return fixture, nil
}

func runReplay(ctx context.Context, cfg *config.Config, fixture replayFixture, logger *util.Logger, iterations, warmup int) (replayReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	for i := 0; i < warmup; i++ {
		if _, _, _, err := replayIteration(ctx, cfg, fixture, logger, nil); err != nil {
			return replayReport{}, fmt.Errorf("warmup iteration %d: %w", i+1, err)
		}
	}

	runtime.GC()
	var startMem runtime.MemStats
	runtime.ReadMemStats(&startMem)

	var (
		durations          []time.Duration
		iterationDurations []time.Duration
		totalWrites        int
		steps              []replayOutcome
		snapshot           metrics.Snapshot
	)
	for i := 0; i < iterations; i++ {
		collector := metrics.NewCollector(true)
		start := time.Now()
		stepDurations, writes, outcomes, err := replayIteration(ctx, cfg, fixture, logger, collector)
		if err != nil {
			return replayReport{}, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		iterationDurations = append(iterationDurations, time.Since(start))
		durations = append(durations, stepDurations...)
		totalWrites += writes
		if i == 0 {
			steps = outcomes
			snapshot = collector.Snapshot()
		}
	}

	runtime.GC()
	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)

	totalSteps := len(fixture.Steps) * iterations
	latency, total := buildLatencyStats(durations)
	iterationStats, _ := buildLatencyStats(iterationDurations)
	allocs := endMem.Mallocs - startMem.Mallocs
	bytesAllocated := endMem.TotalAlloc - startMem.TotalAlloc
	summary := replaySummary{
		Fixture:           fixture.Name,
		Iterations:        iterations,
		WarmupIterations:  warmup,
		StepsPerIteration: len(fixture.Steps),
		TotalSteps:        totalSteps,
		Writes: replayWriteStats{
			Total:        totalWrites,
			PerIteration: safeDivide(totalWrites, iterations),
			PerStep:      safeDivide(totalWrites, totalSteps),
		},
		Latency:           latency,
		IterationDuration: iterationStats,
		Allocations: replayAllocationStats{
			Total:         allocs,
			PerStep:       safeDivide(int(allocs), totalSteps),
			BytesTotal:    bytesAllocated,
			BytesPerStep:  safeDivide(int(bytesAllocated), totalSteps),
			HeapAllocDiff: int64(endMem.HeapAlloc) - int64(startMem.HeapAlloc),
		},
		TotalDurationMs: toMillis(total),
		StepsPerSecond:  stepsPerSecond(total, totalSteps),
	}
	return replayReport{Summary: summary, Steps: steps, Metrics: snapshot}, nil
}

func replayIteration(ctx context.Context, cfg *config.Config, fixture replayFixture, logger *util.Logger, collector *metrics.Collector) ([]time.Duration, int, []replayOutcome, error) {
	sink := newReplaySink()
	run := cfg.Clone()
	// Replays always run with the swapper armed; commands may still turn it off.
	run.UnderstandsRisks = true
	run.SwapsEnabled = true
	run.Telemetry.Enabled = collector != nil
	eng := engine.New(engine.Options{Config: run, Sink: sink, Logger: logger, Metrics: collector})

	durations := make([]time.Duration, 0, len(fixture.Steps))
	outcomes := make([]replayOutcome, 0, len(fixture.Steps))
	var world *state.World
	for i, step := range fixture.Steps {
		if err := ctx.Err(); err != nil {
			return nil, 0, nil, err
		}
		out := replayOutcome{Index: i, Note: step.Note, Command: step.Command}
		start := time.Now()
		if step.Command != "" {
			cmd, err := command.Parse(step.Command)
			if err != nil {
				return nil, 0, nil, fmt.Errorf("step %d: %w", i, err)
			}
			msg, err := eng.Execute(ctx, cmd)
			out.Message = msg
			if err != nil {
				out.Error = err.Error()
			}
		}
		if step.World != nil {
			world = step.World
		}
		result, err := eng.Evaluate(world)
		elapsed := time.Since(start)
		durations = append(durations, elapsed)
		out.Layout = result.Name
		out.Outcome = string(result.Outcome)
		if result.Reason != staging.ForceNone {
			out.Reason = result.Reason.String()
		}
		if err != nil && out.Error == "" {
			out.Error = err.Error()
		}
		out.DurationMs = toMillis(elapsed)
		outcomes = append(outcomes, out)
	}
	return durations, sink.count(), outcomes, nil
}

func printReplay(w io.Writer, report replayReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Step\tInput\tLayout\tOutcome\tReason")
	for _, step := range report.Steps {
		input := step.Note
		if step.Command != "" {
			input = "/" + step.Command
		}
		if input == "" {
			input = "-"
		}
		layout := step.Layout
		if layout == "" {
			layout = "-"
		}
		outcome := step.Outcome
		if step.Error != "" {
			outcome += ": " + step.Error
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", step.Index, input, layout, outcome, fallback(step.Reason, "-"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return printHumanSummary(report.Summary, w)
}

func printHumanSummary(summary replaySummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Fixture:\t%s\n", summary.Fixture)
	fmt.Fprintf(tw, "Iterations:\t%d (+%d warm-up)\n", summary.Iterations, summary.WarmupIterations)
	fmt.Fprintf(tw, "Steps:\t%d per iteration, %d total\n", summary.StepsPerIteration, summary.TotalSteps)
	fmt.Fprintf(tw, "Layout writes:\t%d (%.2f / iter, %.2f / step)\n", summary.Writes.Total, summary.Writes.PerIteration, summary.Writes.PerStep)
	latency := summary.Latency
	fmt.Fprintf(tw, "Latency (ms):\tmin %.2f | mean %.2f | median %.2f | p95 %.2f | max %.2f\n", latency.Min, latency.Mean, latency.Median, latency.P95, latency.Max)
	fmt.Fprintf(tw, "Allocations:\t%d total (%.2f / step)\n", summary.Allocations.Total, summary.Allocations.PerStep)
	fmt.Fprintf(tw, "Steps/sec:\t%.2f\n", summary.StepsPerSecond)
	return tw.Flush()
}

func buildLatencyStats(durations []time.Duration) (replayLatencyStats, time.Duration) {
	stats := replayLatencyStats{}
	if len(durations) == 0 {
		return stats, 0
	}
	total := time.Duration(0)
	for _, d := range durations {
		total += d
	}
	mean := total / time.Duration(len(durations))
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	stats.Min = toMillis(sorted[0])
	stats.Mean = toMillis(mean)
	stats.Median = toMillis(percentile(sorted, 0.50))
	stats.P95 = toMillis(percentile(sorted, 0.95))
	stats.Max = toMillis(sorted[len(sorted)-1])
	return stats, total
}

func safeDivide(total int, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func stepsPerSecond(total time.Duration, steps int) float64 {
	if total <= 0 || steps == 0 {
		return 0
	}
	return float64(steps) / total.Seconds()
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(p*float64(len(sorted)-1) + 0.5)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
