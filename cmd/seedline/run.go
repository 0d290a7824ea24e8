package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/banshee-data/seedline/internal/config"
	"github.com/banshee-data/seedline/internal/httputil"
	"github.com/banshee-data/seedline/internal/reco/monitor"
	"github.com/banshee-data/seedline/internal/reco/pipeline"
	"github.com/banshee-data/seedline/internal/reco/storage/sqlite"
	"github.com/banshee-data/seedline/internal/reco/synth"
)

type runOptions struct {
	events         int
	tracks         int
	noise          int
	seed           uint64
	workers        int
	configPath     string
	dbPath         string
	plotDir        string
	reportPath     string
	metricsListen  string
	failOnMismatch bool
}

func newRunCmd() *cobra.Command {
	gen := synth.DefaultConfig()
	o := runOptions{events: gen.Events, tracks: gen.Tracks, noise: gen.NoiseCells, seed: gen.Seed, workers: -1}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconstruct synthetic events with both variants and validate them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runEvents(ctx, cmd, o)
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.events, "events", o.events, "Number of events to generate")
	f.IntVar(&o.tracks, "tracks", o.tracks, "Tracks per event")
	f.IntVar(&o.noise, "noise", o.noise, "Noise cells per event")
	f.Uint64Var(&o.seed, "seed", o.seed, "Generator seed")
	f.IntVar(&o.workers, "workers", o.workers, "Override the worker count (0 = GOMAXPROCS, negative = from config)")
	f.StringVar(&o.configPath, "config", "", "Tuning file (.json, .yaml or .yml); built-in defaults when empty")
	f.StringVar(&o.dbPath, "db", "", "SQLite database to record the run in")
	f.StringVar(&o.plotDir, "plot-dir", "", "Directory for per-event PNG plots")
	f.StringVar(&o.reportPath, "report", "", "Write an HTML validation report to this file")
	f.StringVar(&o.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	f.BoolVar(&o.failOnMismatch, "fail-on-mismatch", false, "Exit non-zero if any candidate disagrees with the reference")
	return cmd
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func runEvents(ctx context.Context, cmd *cobra.Command, o runOptions) error {
	tuning, err := loadTuning(o.configPath)
	if err != nil {
		return err
	}
	settings := pipeline.SettingsFromTuning(tuning)
	if o.workers >= 0 {
		settings.Workers = o.workers
	}

	gcfg := synth.DefaultConfig()
	gcfg.Events = o.events
	gcfg.Tracks = o.tracks
	gcfg.NoiseCells = o.noise
	gcfg.Seed = o.seed
	gcfg.BField = settings.Finder.BField
	gen, err := synth.NewGenerator(gcfg, synth.DefaultBarrel())
	if err != nil {
		return err
	}

	reference := pipeline.NewReference(settings, gen.Geometry())
	accelerated, err := pipeline.NewAccelerated(settings, gen.Geometry(), settings.Device())
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(reference, []pipeline.Variant{accelerated}, settings.Tolerance)

	if o.metricsListen != "" {
		reg := prometheus.NewRegistry()
		runner.SetMetrics(pipeline.NewMetrics(reg))
		shutdown := serveMetrics(o.metricsListen, reg, func() any { return runner.Stats() })
		defer shutdown()
	}

	runID := ""
	if o.dbPath != "" {
		db, err := sqlite.Open(o.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		run, err := db.CreateRun(ctx, tuning)
		if err != nil {
			return err
		}
		runID = run.RunID
		logrus.Infof("recording run %s in %s", runID, o.dbPath)
		runner.OnOutcome(func(ctx context.Context, out *pipeline.Outcome) error {
			for _, rep := range out.Reports {
				if err := db.InsertReport(ctx, runID, rep); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if o.plotDir != "" {
		runner.OnOutcome(func(ctx context.Context, out *pipeline.Outcome) error {
			_, err := monitor.PlotEvent(out.Reference, o.plotDir)
			return err
		})
	}

	start := time.Now()
	err = runner.Run(ctx, gen)
	if errors.Is(err, context.Canceled) {
		logrus.Warn("interrupted; stopping after the current event")
		err = nil
	}
	if err != nil {
		return err
	}

	stats := runner.Stats()
	logrus.Infof("processed %d events in %s: measurements=%d seeds=%d problems=%d forced_cuts=%d max_rounds=%d",
		stats.Events, time.Since(start).Round(time.Millisecond), stats.Measurements, stats.Seeds,
		stats.Problems, stats.ForcedCuts, stats.MaxClusterIter)

	summaries := runner.Summary()
	printSummaries(cmd.OutOrStdout(), summaries)

	if o.reportPath != "" {
		title := "seedline run"
		if runID != "" {
			title = "run " + runID
		}
		if err := monitor.WriteReport(o.reportPath, title, summaries); err != nil {
			return err
		}
		logrus.Infof("wrote report %s", o.reportPath)
	}

	if o.failOnMismatch && stats.Problems > 0 {
		return fmt.Errorf("%d entries disagree with the reference", stats.Problems)
	}
	return nil
}

// serveMetrics exposes reg and the runner status on addr and returns a
// shutdown func.
func serveMetrics(addr string, reg *prometheus.Registry, status func() any) func() {
	srv := &http.Server{Addr: addr, Handler: httputil.NewMux(reg, status), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logrus.Infof("serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server: %v", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logrus.Warnf("metrics server shutdown: %v", err)
		}
	}
}
