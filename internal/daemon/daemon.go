// Package daemon implements watch mode: it reconverts the input document on
// file change or on a fixed interval, and optionally publishes completion
// events to NATS and serves Prometheus metrics.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/madebyaris/wp-block-to-html/internal/metrics"
)

// RebuildFunc performs one conversion pass and returns a summary of the run
// for event publishing.
type RebuildFunc func(ctx context.Context) (*RunSummary, error)

// RunSummary describes one completed conversion for subscribers.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Nodes     int       `json:"nodes"`
	Targets   int       `json:"targets"`
	Bytes     int       `json:"bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// Options configures the daemon.
type Options struct {
	// InputPath is the block document to watch and reconvert.
	InputPath string
	// Interval, when non-zero, additionally reconverts on a fixed schedule.
	Interval time.Duration
	// Debounce coalesces rapid file change bursts. Zero means 2s.
	Debounce time.Duration
	// MetricsAddr, when non-empty, serves Prometheus metrics there.
	MetricsAddr string
	// Publisher, when non-nil, receives a RunSummary after each rebuild.
	Publisher *Publisher
}

// Daemon coordinates the watcher, the schedule, and the publisher around a
// rebuild function.
type Daemon struct {
	opts    Options
	rebuild RebuildFunc
	logger  *slog.Logger
	rec     *metrics.PrometheusRecorder

	scheduler gocron.Scheduler
	watcher   *Watcher
}

// New builds a daemon. rec may be nil when no metrics endpoint is wanted.
func New(opts Options, rebuild RebuildFunc, rec *metrics.PrometheusRecorder, logger *slog.Logger) (*Daemon, error) {
	if opts.InputPath == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if rebuild == nil {
		return nil, fmt.Errorf("rebuild function is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Debounce == 0 {
		opts.Debounce = 2 * time.Second
	}
	return &Daemon{opts: opts, rebuild: rebuild, rec: rec, logger: logger}, nil
}

// Run blocks until ctx is canceled, rebuilding on input changes and on the
// configured interval. The initial rebuild runs immediately.
func (d *Daemon) Run(ctx context.Context) error {
	d.runOnce(ctx, "startup")

	watcher, err := NewWatcher(d.opts.InputPath, d.opts.Debounce, func() {
		d.runOnce(ctx, "file_change")
	})
	if err != nil {
		return fmt.Errorf("create input watcher: %w", err)
	}
	d.watcher = watcher
	if err := d.watcher.Start(ctx); err != nil {
		return err
	}
	defer d.watcher.Stop()

	if d.opts.Interval > 0 {
		s, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		d.scheduler = s
		_, err = s.NewJob(
			gocron.DurationJob(d.opts.Interval),
			gocron.NewTask(func() { d.runOnce(ctx, "schedule") }),
			gocron.WithName("reconvert"),
		)
		if err != nil {
			return fmt.Errorf("register scheduled job: %w", err)
		}
		s.Start()
		defer func() { _ = s.Shutdown() }()
	}

	if d.opts.MetricsAddr != "" && d.rec != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", d.rec.Handler())
		srv := &http.Server{Addr: d.opts.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			d.logger.Info("metrics endpoint listening", "addr", d.opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.logger.Error("metrics endpoint failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	return ctx.Err()
}

func (d *Daemon) runOnce(ctx context.Context, reason string) {
	start := time.Now()
	summary, err := d.rebuild(ctx)
	if err != nil {
		d.logger.Error("rebuild failed", "reason", reason, "error", err)
		return
	}
	d.logger.Info("rebuild completed",
		"reason", reason,
		"run_id", summary.RunID,
		"nodes", summary.Nodes,
		"targets", summary.Targets,
		"bytes", summary.Bytes,
		"duration", time.Since(start))
	if d.opts.Publisher != nil {
		if err := d.opts.Publisher.PublishRun(summary); err != nil {
			d.logger.Warn("publish run summary", "error", err)
		}
	}
}
