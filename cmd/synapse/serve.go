package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/synapse-dev/synapse/internal/telemetry"
	"github.com/synapse-dev/synapse/pkg/devtools"
	"github.com/synapse-dev/synapse/pkg/instrument"
	"github.com/synapse-dev/synapse/pkg/resource"
	"github.com/synapse-dev/synapse/pkg/synapse"
)

func serveCmd() *cobra.Command {
	var (
		addr       string
		recordPath string
		tick       time.Duration
		flaky      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a demo reactive graph with the live inspector",
		Long: `Run a demo reactive graph and serve the devtools inspector.

The demo drives a small graph (a ticking signal, a memo chain derived
from it, a periodically refetched resource, and a logging effect) and
streams every diagnostic record to connected inspector clients.

Endpoints:
  • GET /api/stream   websocket feed of live records
  • GET /api/records  recorded history (with --record)
  • GET /metrics      Prometheus metrics
  • GET /healthz      liveness probe

Examples:
  synapse serve
  synapse serve --addr=127.0.0.1:7000 --tick=250ms
  synapse serve --record=synapse.db --flaky`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, recordPath, tick, flaky)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from SYNAPSE_DEVTOOLS_ADDR)")
	cmd.Flags().StringVarP(&recordPath, "record", "r", "", "Persist records to this file for replay")
	cmd.Flags().DurationVarP(&tick, "tick", "t", time.Second, "Interval between demo writes")
	cmd.Flags().BoolVar(&flaky, "flaky", false, "Add an effect that panics occasionally to show retries")

	return cmd
}

func runServe(addr, recordPath string, tick time.Duration, flaky bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := devtools.ConfigFromEnv()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if recordPath != "" {
		cfg.RecordPath = recordPath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Setup(ctx, "synapse-demo")
	if err != nil {
		return err
	}

	srv, err := devtools.NewServer(cfg, logger)
	if err != nil {
		return err
	}

	metrics := instrument.NewMetricsSink()
	synapse.SetSink(synapse.NewMultiSink(srv, metrics))
	synapse.SetDebugMode(true)

	if err := srv.Start(); err != nil {
		return err
	}

	// Print banner
	printBanner()
	fmt.Println("  serve")
	fmt.Println()

	success("Inspector listening on http://%s", srv.Addr())
	info("stream:  ws://%s/api/stream", srv.Addr())
	info("metrics: http://%s/metrics", srv.Addr())
	if cfg.RecordPath != "" {
		info("records: http://%s/api/records", srv.Addr())
	} else {
		warn("not recording; pass --record to persist the timeline")
	}
	fmt.Println()

	graph := newDemoGraph(logger, flaky)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				graph.tick()
			}
		}
	}()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\n\n  Shutting down...")
	cancel()

	synapse.SetDebugMode(false)
	graph.dispose()

	if err := srv.Shutdown(context.Background()); err != nil {
		errorMsg("shutdown: %s", err)
	}
	if err := shutdownTelemetry(context.Background()); err != nil {
		errorMsg("telemetry shutdown: %s", err)
	}
	synapse.SetSink(nil)

	success("Goodbye")
	return nil
}

// demoGraph is a small reactive graph the serve command drives so the
// inspector has something to show: a tick counter, a memo chain derived
// from it, a periodically refetched resource, and a logging effect.
type demoGraph struct {
	ticks   *synapse.Signal[int]
	doubled *synapse.Memo[int]
	label   *synapse.Memo[string]
	clock   *resource.Resource[string]
	logging *synapse.Effect
	refetch *synapse.Effect
	flaky   *synapse.Effect
}

func newDemoGraph(logger *slog.Logger, flaky bool) *demoGraph {
	g := &demoGraph{}

	g.ticks = synapse.NewSignal(0).WithName("ticks")
	g.doubled = synapse.NewMemo(func() int {
		return g.ticks.Get() * 2
	}).WithName("doubled")
	g.label = synapse.NewMemo(func() string {
		return fmt.Sprintf("tick %d, doubled %d", g.ticks.Get(), g.doubled.Get())
	}).WithName("label")

	g.clock = resource.New(func() (string, error) {
		return time.Now().Format(time.RFC3339), nil
	}, resource.WithName[string]("clock"))

	g.logging = synapse.CreateEffect(func() synapse.Cleanup {
		logger.Info("demo", "label", g.label.Get(), "clock", g.clock.DataOr("pending"))
		return nil
	}, synapse.WithEffectName("logger"))

	// Refetch the clock every fifth tick. The deps pass decides the
	// watched set; the callback runs untracked.
	g.refetch = synapse.Watch(
		func() { g.ticks.Get() },
		func() {
			if g.ticks.Peek()%5 == 0 {
				g.clock.Refetch()
			}
		},
		synapse.WithEffectName("clock-refetch"),
	)

	if flaky {
		g.flaky = synapse.CreateEffect(func() synapse.Cleanup {
			if n := g.ticks.Get(); n%7 == 3 {
				panic(fmt.Sprintf("flaky demo failure at tick %d", n))
			}
			return nil
		}, synapse.WithEffectName("flaky"), synapse.WithLogger(logger))
	}

	return g
}

func (g *demoGraph) tick() {
	g.ticks.Update(func(n int) int { return n + 1 })
}

func (g *demoGraph) dispose() {
	if g.flaky != nil {
		g.flaky.Dispose()
	}
	g.refetch.Dispose()
	g.logging.Dispose()
	g.clock.Close()
	g.label.Dispose()
	g.doubled.Dispose()
}
