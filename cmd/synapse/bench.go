package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/synapse-dev/synapse/pkg/synapse"
)

const gib = int64(1024 * 1024 * 1024)

// profile is a named workload shape. Each writer goroutine owns one
// instance of the selected scenario graph and drives it at the target
// rate.
type profile struct {
	Name          string
	Writers       int
	Duration      time.Duration
	Rate          float64
	Fanout        int
	MaxProcs      int
	MemLimitBytes int64
}

var profiles = map[string]profile{
	"fast": {
		Name:     "fast",
		Writers:  4,
		Duration: 5 * time.Second,
		Rate:     200,
		Fanout:   8,
	},
	"standard": {
		Name:     "standard",
		Writers:  16,
		Duration: 15 * time.Second,
		Rate:     500,
		Fanout:   16,
	},
	"stress": {
		Name:          "stress",
		Writers:       64,
		Duration:      30 * time.Second,
		Rate:          1000,
		Fanout:        32,
		MaxProcs:      4,
		MemLimitBytes: 2 * gib,
	},
}

type benchFlags struct {
	Scenario string
	Profile  string
	Writers  int
	Duration time.Duration
	Rate     float64
	Fanout   int
	Debug    bool
	MaxProcs int
	MemLimit string
	JSON     string
}

type benchConfig struct {
	Scenario      string
	Profile       string
	Writers       int
	Duration      time.Duration
	Rate          float64
	Fanout        int
	DebugMode     bool
	MaxProcs      int
	MemLimitBytes int64
	JSONOutput    string
}

type benchCounters struct {
	writes      atomic.Uint64
	effectRuns  atomic.Uint64
	sampleDrops atomic.Uint64
}

// discardSink swallows diagnostic records. With --debug the benchmark
// measures emission overhead, not sink cost.
type discardSink struct{}

func (discardSink) Emit(synapse.Record) {}

func benchCmd() *cobra.Command {
	var flags benchFlags

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run reactive engine micro benchmarks",
		Long: `Run micro benchmarks against the reactive engine.

Each writer goroutine owns one instance of the selected scenario graph
and writes to its source signal at the target rate. The settle time of
a write covers the full synchronous propagation: memo recomputation
plus every subscribed effect run.

Scenarios:
  fanout   one source signal fanned out to --fanout effects
  diamond  a source forked through two memos, joined by a third,
           with --fanout effects on the join
  retrack  one effect selecting among --fanout branch signals, forced
           to drop and re-establish its subscription on every write

A human summary goes to stderr; the JSON report goes to stdout or the
--json path.

Examples:
  synapse bench
  synapse bench --scenario=diamond --profile=fast
  synapse bench --scenario=retrack --writers=8 --rate=2000 --json=report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(flags)
		},
	}

	cmd.Flags().StringVar(&flags.Scenario, "scenario", "fanout", "Scenario: fanout|diamond|retrack")
	cmd.Flags().StringVar(&flags.Profile, "profile", "standard", "Profile: fast|standard|stress")
	cmd.Flags().IntVar(&flags.Writers, "writers", -1, "Writer goroutines (-1 = profile default)")
	cmd.Flags().DurationVar(&flags.Duration, "duration", 0, "Benchmark duration (0 = profile default)")
	cmd.Flags().Float64Var(&flags.Rate, "rate", -1, "Target writes/sec per writer (-1 = profile default)")
	cmd.Flags().IntVar(&flags.Fanout, "fanout", -1, "Effects or branches per graph (-1 = profile default)")
	cmd.Flags().BoolVar(&flags.Debug, "debug", false, "Enable diagnostic emission into a discard sink")
	cmd.Flags().IntVar(&flags.MaxProcs, "max-procs", -1, "GOMAXPROCS cap (-1 = profile default, 0 = unchanged)")
	cmd.Flags().StringVar(&flags.MemLimit, "mem-limit", "", "GOMEMLIMIT (e.g. 2GiB)")
	cmd.Flags().StringVar(&flags.JSON, "json", "-", "JSON output path ('-' for stdout)")

	return cmd
}

func resolveBenchConfig(flags benchFlags) (benchConfig, error) {
	name := strings.ToLower(strings.TrimSpace(flags.Profile))
	if name == "" {
		name = "standard"
	}

	base, ok := profiles[name]
	if !ok {
		return benchConfig{}, fmt.Errorf("unknown profile %q", name)
	}

	cfg := benchConfig{
		Scenario:      strings.ToLower(strings.TrimSpace(flags.Scenario)),
		Profile:       base.Name,
		Writers:       base.Writers,
		Duration:      base.Duration,
		Rate:          base.Rate,
		Fanout:        base.Fanout,
		DebugMode:     flags.Debug,
		MaxProcs:      base.MaxProcs,
		MemLimitBytes: base.MemLimitBytes,
		JSONOutput:    strings.TrimSpace(flags.JSON),
	}

	if flags.Writers != -1 {
		cfg.Writers = flags.Writers
	}
	if flags.Duration != 0 {
		cfg.Duration = flags.Duration
	}
	if flags.Rate != -1 {
		cfg.Rate = flags.Rate
	}
	if flags.Fanout != -1 {
		cfg.Fanout = flags.Fanout
	}
	if flags.MaxProcs != -1 {
		cfg.MaxProcs = flags.MaxProcs
	}
	if flags.MemLimit != "" {
		limit, err := parseBytes(flags.MemLimit)
		if err != nil {
			return benchConfig{}, fmt.Errorf("invalid --mem-limit: %w", err)
		}
		cfg.MemLimitBytes = limit
	}
	if cfg.JSONOutput == "" {
		cfg.JSONOutput = "-"
	}

	switch cfg.Scenario {
	case "fanout", "diamond", "retrack":
	default:
		return benchConfig{}, fmt.Errorf("unknown scenario %q", cfg.Scenario)
	}

	if cfg.Writers <= 0 {
		return benchConfig{}, errors.New("--writers must be > 0")
	}
	if cfg.Duration <= 0 {
		return benchConfig{}, errors.New("--duration must be > 0")
	}
	if cfg.Rate <= 0 {
		return benchConfig{}, errors.New("--rate must be > 0")
	}
	if cfg.Fanout <= 0 {
		return benchConfig{}, errors.New("--fanout must be > 0")
	}
	if cfg.MaxProcs < 0 {
		return benchConfig{}, errors.New("--max-procs must be >= 0")
	}
	if cfg.MemLimitBytes < 0 {
		return benchConfig{}, errors.New("--mem-limit must be >= 0")
	}

	return cfg, nil
}

func runBench(flags benchFlags) error {
	cfg, err := resolveBenchConfig(flags)
	if err != nil {
		return err
	}

	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
	if cfg.MemLimitBytes > 0 {
		debug.SetMemoryLimit(cfg.MemLimitBytes)
	}

	debug.SetGCPercent(100)

	if cfg.DebugMode {
		synapse.SetSink(discardSink{})
		synapse.SetDebugMode(true)
	}

	var counters benchCounters
	graphs := make([]scenarioGraph, cfg.Writers)
	for i := range graphs {
		graphs[i] = buildScenario(cfg.Scenario, i, cfg.Fanout, &counters.effectRuns)
	}
	// Effects run once at creation; only runs during the timed window count.
	baselineRuns := counters.effectRuns.Load()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	samplesCh := make(chan time.Duration, sampleBuffer(cfg.Writers))
	var samples []time.Duration
	var samplesMu sync.Mutex
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for settle := range samplesCh {
			samplesMu.Lock()
			samples = append(samples, settle)
			samplesMu.Unlock()
		}
	}()

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(cfg.Writers)
	for _, g := range graphs {
		go func(write func(int)) {
			defer wg.Done()
			runWriter(ctx, write, cfg.Rate, &counters, samplesCh)
		}(g.write)
	}

	wg.Wait()
	close(samplesCh)
	<-collectorDone

	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	for _, g := range graphs {
		g.dispose()
	}
	if cfg.DebugMode {
		synapse.SetDebugMode(false)
		synapse.SetSink(nil)
	}

	samplesMu.Lock()
	latencies := append([]time.Duration(nil), samples...)
	samplesMu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	report := buildReport(cfg, elapsed, latencies, &counters, baselineRuns, before, after, beforeMetrics, afterMetrics)

	writeSummary(os.Stderr, report)
	if err := writeJSON(cfg.JSONOutput, report); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// scenarioGraph is one writer's slice of the workload: write drives one
// iteration, dispose tears the graph down.
type scenarioGraph struct {
	write   func(i int)
	dispose func()
}

func buildScenario(scenario string, id, fanout int, runs *atomic.Uint64) scenarioGraph {
	switch scenario {
	case "diamond":
		return buildDiamond(id, fanout, runs)
	case "retrack":
		return buildRetrack(id, fanout, runs)
	default:
		return buildFanout(id, fanout, runs)
	}
}

// buildFanout wires one source signal read by fanout effects. A write
// costs one notification pass over the whole subscriber list.
func buildFanout(id, fanout int, runs *atomic.Uint64) scenarioGraph {
	source := synapse.NewSignal(0).WithName(fmt.Sprintf("fanout-src-%d", id))

	effects := make([]*synapse.Effect, 0, fanout)
	for f := 0; f < fanout; f++ {
		effects = append(effects, synapse.CreateEffect(func() synapse.Cleanup {
			_ = source.Get()
			runs.Add(1)
			return nil
		}))
	}

	return scenarioGraph{
		write: func(i int) { source.Set(i) },
		dispose: func() {
			for _, e := range effects {
				e.Dispose()
			}
		},
	}
}

// buildDiamond forks the source through two memos joined by a third,
// with fanout effects on the join. The join recomputes once per arm, so
// runs per write exceed fanout; that redundancy is what the scenario
// measures.
func buildDiamond(id, fanout int, runs *atomic.Uint64) scenarioGraph {
	source := synapse.NewSignal(0).WithName(fmt.Sprintf("diamond-src-%d", id))
	left := synapse.NewMemo(func() int { return source.Get() * 2 })
	right := synapse.NewMemo(func() int { return source.Get() + 1 })
	join := synapse.NewMemo(func() int { return left.Get() + right.Get() })

	effects := make([]*synapse.Effect, 0, fanout)
	for f := 0; f < fanout; f++ {
		effects = append(effects, synapse.CreateEffect(func() synapse.Cleanup {
			_ = join.Get()
			runs.Add(1)
			return nil
		}))
	}

	return scenarioGraph{
		write: func(i int) { source.Set(i) },
		dispose: func() {
			for _, e := range effects {
				e.Dispose()
			}
			join.Dispose()
			right.Dispose()
			left.Dispose()
		},
	}
}

// buildRetrack wires one effect reading a selector signal and then one
// of fanout branch signals. Every write moves the selector, so each run
// drops the old branch subscription and establishes a new one.
func buildRetrack(id, branches int, runs *atomic.Uint64) scenarioGraph {
	selector := synapse.NewSignal(0).WithName(fmt.Sprintf("retrack-sel-%d", id))
	data := make([]*synapse.Signal[int], branches)
	for b := range data {
		data[b] = synapse.NewSignal(b)
	}

	effect := synapse.CreateEffect(func() synapse.Cleanup {
		_ = data[selector.Get()%len(data)].Get()
		runs.Add(1)
		return nil
	})

	return scenarioGraph{
		write:   func(i int) { selector.Set(i) },
		dispose: effect.Dispose,
	}
}

// runWriter drives one graph at the target rate until the context ends.
func runWriter(ctx context.Context, write func(int), rate float64, counters *benchCounters, samples chan<- time.Duration) {
	period := time.Duration(float64(time.Second) / rate)
	value := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		value++
		start := time.Now()
		write(value)
		settle := time.Since(start)

		counters.writes.Add(1)
		select {
		case samples <- settle:
		default:
			counters.sampleDrops.Add(1)
		}

		if sleep := period - settle; sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

func sampleBuffer(writers int) int {
	if writers < 1 {
		return 4096
	}
	buf := writers * 256
	if buf < 4096 {
		buf = 4096
	}
	return buf
}

func parseBytes(input string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return 0, errors.New("empty size")
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "tib"):
		multiplier, s = 1024*gib, strings.TrimSuffix(s, "tib")
	case strings.HasSuffix(s, "gib"):
		multiplier, s = gib, strings.TrimSuffix(s, "gib")
	case strings.HasSuffix(s, "mib"):
		multiplier, s = 1024*1024, strings.TrimSuffix(s, "mib")
	case strings.HasSuffix(s, "kib"):
		multiplier, s = 1024, strings.TrimSuffix(s, "kib")
	case strings.HasSuffix(s, "tb"):
		multiplier, s = 1e12, strings.TrimSuffix(s, "tb")
	case strings.HasSuffix(s, "gb"):
		multiplier, s = 1e9, strings.TrimSuffix(s, "gb")
	case strings.HasSuffix(s, "mb"):
		multiplier, s = 1e6, strings.TrimSuffix(s, "mb")
	case strings.HasSuffix(s, "kb"):
		multiplier, s = 1e3, strings.TrimSuffix(s, "kb")
	case strings.HasSuffix(s, "b"):
		s = strings.TrimSuffix(s, "b")
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid size %q", input)
	}

	return int64(value*float64(multiplier) + 0.5), nil
}

type runtimeMetricsSnapshot struct {
	cpuTotalSeconds float64
	cpuGCSeconds    float64

	heapAllocsBytes   uint64
	heapAllocsObjects uint64
}

func readRuntimeMetrics() runtimeMetricsSnapshot {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
		{Name: "/cpu/classes/gc/total:cpu-seconds"},
		{Name: "/gc/heap/allocs:bytes"},
		{Name: "/gc/heap/allocs:objects"},
	}
	metrics.Read(samples)

	var out runtimeMetricsSnapshot
	for _, s := range samples {
		switch s.Name {
		case "/cpu/classes/total:cpu-seconds":
			out.cpuTotalSeconds = s.Value.Float64()
		case "/cpu/classes/gc/total:cpu-seconds":
			out.cpuGCSeconds = s.Value.Float64()
		case "/gc/heap/allocs:bytes":
			out.heapAllocsBytes = s.Value.Uint64()
		case "/gc/heap/allocs:objects":
			out.heapAllocsObjects = s.Value.Uint64()
		}
	}
	return out
}

func cpuFraction(after, before runtimeMetricsSnapshot) float64 {
	total := after.cpuTotalSeconds - before.cpuTotalSeconds
	if total <= 0 {
		return 0
	}
	gc := after.cpuGCSeconds - before.cpuGCSeconds
	if gc < 0 {
		return 0
	}
	return gc / total
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
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func avgPause(after, before runtime.MemStats) time.Duration {
	gcCount := after.NumGC - before.NumGC
	if gcCount == 0 {
		return 0
	}
	return time.Duration((after.PauseTotalNs - before.PauseTotalNs) / uint64(gcCount))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func us(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}

type benchReport struct {
	Version    string         `json:"version"`
	Run        runInfo        `json:"run"`
	Workload   workloadInfo   `json:"workload"`
	LatencyUS  latencyInfo    `json:"latency_us"`
	Throughput throughputInfo `json:"throughput"`
	GC         gcInfo         `json:"gc"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
	GitCommit string `json:"git_commit,omitempty"`
}

type workloadInfo struct {
	Scenario      string  `json:"scenario"`
	Profile       string  `json:"profile"`
	Writers       int     `json:"writers"`
	DurationMS    int64   `json:"duration_ms"`
	RatePerWriter float64 `json:"rate_per_writer"`
	Fanout        int     `json:"fanout"`
	DebugMode     bool    `json:"debug_mode"`
	MaxProcs      int     `json:"max_procs"`
	MemLimitBytes int64   `json:"mem_limit_bytes"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type throughputInfo struct {
	WritesTotal        uint64  `json:"writes_total"`
	WritesPerSec       float64 `json:"writes_per_sec"`
	WritesPerSecWriter float64 `json:"writes_per_sec_per_writer"`
	EffectRunsTotal    uint64  `json:"effect_runs_total"`
	EffectRunsPerSec   float64 `json:"effect_runs_per_sec"`
	RunsPerWrite       float64 `json:"runs_per_write"`
	SampleDrops        uint64  `json:"sample_drops"`
}

type gcInfo struct {
	AllocMB       float64 `json:"alloc_mb"`
	HeapLiveMB    float64 `json:"heap_live_mb"`
	NumGC         uint32  `json:"num_gc"`
	PauseTotalMS  float64 `json:"pause_total_ms"`
	PauseAvgMS    float64 `json:"pause_avg_ms"`
	GCCPUFraction float64 `json:"gc_cpu_fraction"`
	AllocsObjects uint64  `json:"allocs_objects"`
}

func buildReport(
	cfg benchConfig,
	elapsed time.Duration,
	latencies []time.Duration,
	counters *benchCounters,
	baselineRuns uint64,
	before runtime.MemStats,
	after runtime.MemStats,
	beforeMetrics runtimeMetricsSnapshot,
	afterMetrics runtimeMetricsSnapshot,
) benchReport {
	writesTotal := counters.writes.Load()
	effectRuns := counters.effectRuns.Load() - baselineRuns

	elapsedSeconds := math.Max(0.001, elapsed.Seconds())
	writesPerSec := float64(writesTotal) / elapsedSeconds
	writesPerSecWriter := writesPerSec / float64(cfg.Writers)
	runsPerSec := float64(effectRuns) / elapsedSeconds

	runsPerWrite := 0.0
	if writesTotal > 0 {
		runsPerWrite = float64(effectRuns) / float64(writesTotal)
	}

	latency := latencyInfo{}
	if len(latencies) > 0 {
		latency = latencyInfo{
			Min: us(latencies[0]),
			P50: us(percentile(latencies, 0.50)),
			P95: us(percentile(latencies, 0.95)),
			P99: us(percentile(latencies, 0.99)),
			Max: us(latencies[len(latencies)-1]),
		}
	}

	pauseTotal := time.Duration(after.PauseTotalNs - before.PauseTotalNs)
	pauseAvg := avgPause(after, before)

	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
			GitCommit: gitCommit(),
		},
		Workload: workloadInfo{
			Scenario:      cfg.Scenario,
			Profile:       cfg.Profile,
			Writers:       cfg.Writers,
			DurationMS:    cfg.Duration.Milliseconds(),
			RatePerWriter: cfg.Rate,
			Fanout:        cfg.Fanout,
			DebugMode:     cfg.DebugMode,
			MaxProcs:      cfg.MaxProcs,
			MemLimitBytes: cfg.MemLimitBytes,
		},
		LatencyUS: latency,
		Throughput: throughputInfo{
			WritesTotal:        writesTotal,
			WritesPerSec:       writesPerSec,
			WritesPerSecWriter: writesPerSecWriter,
			EffectRunsTotal:    effectRuns,
			EffectRunsPerSec:   runsPerSec,
			RunsPerWrite:       runsPerWrite,
			SampleDrops:        counters.sampleDrops.Load(),
		},
		GC: gcInfo{
			AllocMB:       float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB:    float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:         after.NumGC - before.NumGC,
			PauseTotalMS:  ms(pauseTotal),
			PauseAvgMS:    ms(pauseAvg),
			GCCPUFraction: cpuFraction(afterMetrics, beforeMetrics),
			AllocsObjects: afterMetrics.heapAllocsObjects - beforeMetrics.heapAllocsObjects,
		},
	}
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== Synapse Engine Benchmark ===")
	fmt.Fprintf(w, "Scenario: %s\n", report.Workload.Scenario)
	fmt.Fprintf(w, "Profile: %s\n", report.Workload.Profile)
	fmt.Fprintf(w, "Writers: %d\n", report.Workload.Writers)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(report.Workload.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Target per-writer rate: %.2f writes/s\n", report.Workload.RatePerWriter)
	fmt.Fprintf(w, "Fanout: %d\n", report.Workload.Fanout)
	if report.Workload.DebugMode {
		fmt.Fprintln(w, "Diagnostic emission: on (discard sink)")
	}
	if report.Workload.MaxProcs > 0 {
		fmt.Fprintf(w, "GOMAXPROCS cap: %d\n", report.Workload.MaxProcs)
	}
	if report.Workload.MemLimitBytes > 0 {
		fmt.Fprintf(w, "GOMEMLIMIT cap: %.2f GiB\n", float64(report.Workload.MemLimitBytes)/float64(gib))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total writes: %d\n", report.Throughput.WritesTotal)
	fmt.Fprintf(w, "Throughput: %.1f writes/s (%.2f per writer)\n", report.Throughput.WritesPerSec, report.Throughput.WritesPerSecWriter)
	fmt.Fprintf(w, "Effect runs: %d (%.1f/s, %.2f per write)\n", report.Throughput.EffectRunsTotal, report.Throughput.EffectRunsPerSec, report.Throughput.RunsPerWrite)
	if report.Throughput.SampleDrops > 0 {
		fmt.Fprintf(w, "Latency samples dropped: %d\n", report.Throughput.SampleDrops)
	}
	fmt.Fprintln(w)

	if report.LatencyUS.Max == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "Settle time (Set return = memos recomputed + effects run):")
		fmt.Fprintf(w, "  min: %.2f us\n", report.LatencyUS.Min)
		fmt.Fprintf(w, "  p50: %.2f us\n", report.LatencyUS.P50)
		fmt.Fprintf(w, "  p95: %.2f us\n", report.LatencyUS.P95)
		fmt.Fprintf(w, "  p99: %.2f us\n", report.LatencyUS.P99)
		fmt.Fprintf(w, "  max: %.2f us\n", report.LatencyUS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", report.GC.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (total)\n", report.GC.PauseTotalMS)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (avg)\n", report.GC.PauseAvgMS)
	fmt.Fprintf(w, "  gc_cpu:    %.2f%%\n", report.GC.GCCPUFraction*100)
}

func writeJSON(path string, report benchReport) error {
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func gitCommit() string {
	if commit != "none" && commit != "" {
		return commit
	}
	if val := strings.TrimSpace(os.Getenv("SYNAPSE_GIT_COMMIT")); val != "" {
		return val
	}
	return strings.TrimSpace(os.Getenv("GIT_COMMIT"))
}
