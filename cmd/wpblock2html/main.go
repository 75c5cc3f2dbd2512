package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/madebyaris/wp-block-to-html/internal/blocks"
	"github.com/madebyaris/wp-block-to-html/internal/classmap"
	"github.com/madebyaris/wp-block-to-html/internal/config"
	"github.com/madebyaris/wp-block-to-html/internal/daemon"
	"github.com/madebyaris/wp-block-to-html/internal/engine"
	"github.com/madebyaris/wp-block-to-html/internal/eventstore"
	"github.com/madebyaris/wp-block-to-html/internal/hydration"
	"github.com/madebyaris/wp-block-to-html/internal/markupscan"
	"github.com/madebyaris/wp-block-to-html/internal/metrics"
	"github.com/madebyaris/wp-block-to-html/internal/observability"
	"github.com/madebyaris/wp-block-to-html/internal/ssropt"
	"github.com/madebyaris/wp-block-to-html/internal/version"
)

var CLI struct {
	Config    string `short:"c" help:"Options file path (YAML)"`
	Verbose   bool   `short:"v" help:"Enable verbose logging"`
	LogFormat string `help:"Log format: text or json" default:"text"`

	Convert struct {
		Input      string `arg:"" optional:"" help:"Block document JSON file (default: stdin)"`
		Output     string `short:"o" help:"Output markup file (default: stdout)"`
		Framework  string `short:"f" help:"Target CSS framework: none|tailwind|bootstrap|custom"`
		Mode       string `short:"m" help:"Content handling mode: raw|rendered|hybrid"`
		Level      string `short:"l" help:"SSR optimization level: minimal|balanced|maximum"`
		NoSSR      bool   `help:"Skip SSR optimization"`
		TargetsOut string `help:"Write hydration targets JSON to this file"`
		EventsDB   string `help:"Append run events to this SQLite database"`
	} `cmd:"" help:"Convert a block document to markup"`

	Watch struct {
		Input       string        `arg:"" help:"Block document JSON file to watch"`
		Output      string        `short:"o" required:"" help:"Output markup file"`
		Interval    time.Duration `help:"Additionally reconvert on this interval (0 disables)"`
		MetricsAddr string        `help:"Serve Prometheus metrics on this address"`
		NatsURL     string        `name:"nats-url" help:"Publish run summaries to this NATS server"`
		NatsSubject string        `name:"nats-subject" help:"NATS subject for run summaries"`
	} `cmd:"" help:"Watch a block document and reconvert on change"`

	Verify struct {
		Input   string `arg:"" help:"Markup file to inspect"`
		Targets string `help:"Hydration targets JSON file to verify against"`
	} `cmd:"" help:"Inspect markup for hydration markers and media optimization"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := observability.Setup(logLevel, CLI.LogFormat)
	config.LoadEnvFiles()

	var err error
	switch ctx.Command() {
	case "convert", "convert <input>":
		err = runConvert(logger)
	case "watch <input>":
		err = runWatch(logger)
	case "verify <input>":
		err = runVerify()
	case "version":
		fmt.Printf("wpblock2html %s\n", version.Version)
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func loadOptions(logger *slog.Logger) (*config.Options, error) {
	var opts *config.Options
	if CLI.Config != "" {
		loaded, err := config.Load(CLI.Config)
		if err != nil {
			return nil, err
		}
		opts = loaded
	} else {
		opts = config.Default()
	}
	opts.ApplyEnv()
	if CLI.Convert.Framework != "" {
		opts.Framework = classmap.Framework(CLI.Convert.Framework)
	}
	if CLI.Convert.Mode != "" {
		opts.ContentMode = config.ContentMode(CLI.Convert.Mode)
	}
	if CLI.Convert.Level != "" {
		opts.SSR.Level = config.OptimizationLevel(CLI.Convert.Level)
	}
	if CLI.Convert.NoSSR {
		opts.SSR.Enabled = false
	}
	opts.Logger = logger
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// convertDocument runs the full pipeline over one input document.
func convertDocument(input string, opts *config.Options) (string, *engine.Result, error) {
	var data []byte
	var err error
	if input == "" || input == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return "", nil, fmt.Errorf("read block document: %w", err)
	}
	roots, err := blocks.DecodeBytes(data)
	if err != nil {
		return "", nil, err
	}
	res, err := engine.Convert(roots, opts)
	if err != nil {
		return "", nil, err
	}
	markup := res.Markup
	if opts.SSR.Enabled {
		p, err := ssropt.New(&opts.SSR,
			ssropt.WithLogger(opts.ErrorLogger()),
			ssropt.WithRecorder(opts.Recorder()))
		if err != nil {
			return "", nil, err
		}
		markup = p.Run(markup, res.HydrationTargets)
	}
	return markup, res, nil
}

func runConvert(logger *slog.Logger) error {
	opts, err := loadOptions(logger)
	if err != nil {
		return err
	}

	var store eventstore.Store
	if CLI.Convert.EventsDB != "" {
		store, err = eventstore.NewSQLiteStore(CLI.Convert.EventsDB)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	markup, res, err := convertDocument(CLI.Convert.Input, opts)
	if err != nil {
		return err
	}

	if store != nil {
		ctx := observability.WithRunID(context.Background(), res.RunID)
		recordRun(ctx, store, res, len(markup))
	}

	if CLI.Convert.TargetsOut != "" {
		payload, err := json.MarshalIndent(res.HydrationTargets, "", "  ")
		if err != nil {
			return fmt.Errorf("encode hydration targets: %w", err)
		}
		if err := os.WriteFile(CLI.Convert.TargetsOut, payload, 0o644); err != nil {
			return fmt.Errorf("write hydration targets: %w", err)
		}
	}

	if CLI.Convert.Output == "" || CLI.Convert.Output == "-" {
		_, err = os.Stdout.WriteString(markup)
		return err
	}
	if err := os.WriteFile(CLI.Convert.Output, []byte(markup), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Info("converted",
		"run_id", res.RunID,
		"nodes", res.Nodes,
		"targets", len(res.HydrationTargets),
		"bytes", len(markup),
		"output", CLI.Convert.Output)
	return nil
}

func recordRun(ctx context.Context, store eventstore.Store, res *engine.Result, bytes int) {
	logger := observability.LoggerFromContext(ctx)
	summary, err := json.Marshal(map[string]any{
		"nodes":   res.Nodes,
		"targets": len(res.HydrationTargets),
		"bytes":   bytes,
	})
	if err != nil {
		logger.Warn("encode run summary", "error", err)
		return
	}
	if err := store.Append(ctx, res.RunID, eventstore.TypeConversionCompleted, summary, nil); err != nil {
		logger.Warn("record conversion event", "error", err)
	}
}

func runWatch(logger *slog.Logger) error {
	opts, err := loadOptions(logger)
	if err != nil {
		return err
	}

	var rec *metrics.PrometheusRecorder
	if CLI.Watch.MetricsAddr != "" {
		rec = metrics.NewPrometheusRecorder(nil)
		opts.Metrics = rec
	}

	var publisher *daemon.Publisher
	if CLI.Watch.NatsURL != "" {
		publisher, err = daemon.NewPublisher(CLI.Watch.NatsURL, CLI.Watch.NatsSubject)
		if err != nil {
			return err
		}
		defer publisher.Close()
	}

	rebuild := func(ctx context.Context) (*daemon.RunSummary, error) {
		markup, res, err := convertDocument(CLI.Watch.Input, opts)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(CLI.Watch.Output, []byte(markup), 0o644); err != nil {
			return nil, fmt.Errorf("write output: %w", err)
		}
		return &daemon.RunSummary{
			RunID:     res.RunID,
			Input:     CLI.Watch.Input,
			Output:    CLI.Watch.Output,
			Nodes:     res.Nodes,
			Targets:   len(res.HydrationTargets),
			Bytes:     len(markup),
			Timestamp: time.Now(),
		}, nil
	}

	d, err := daemon.New(daemon.Options{
		InputPath:   CLI.Watch.Input,
		Interval:    CLI.Watch.Interval,
		MetricsAddr: CLI.Watch.MetricsAddr,
		Publisher:   publisher,
	}, rebuild, rec, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := d.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runVerify() error {
	data, err := os.ReadFile(CLI.Verify.Input)
	if err != nil {
		return fmt.Errorf("read markup: %w", err)
	}
	rep, err := markupscan.Scan(string(data))
	if err != nil {
		return err
	}
	if CLI.Verify.Targets != "" {
		var targets []*hydration.Target
		payload, err := os.ReadFile(CLI.Verify.Targets)
		if err != nil {
			return fmt.Errorf("read targets: %w", err)
		}
		if err := json.Unmarshal(payload, &targets); err != nil {
			return fmt.Errorf("decode targets: %w", err)
		}
		if err := markupscan.Verify(string(data), targets); err != nil {
			return err
		}
		fmt.Printf("all %d hydration markers verified\n", len(targets))
	}
	fmt.Printf("markers: %d, media: %d, scripts: %d, styles: %d\n",
		len(rep.Markers), len(rep.Media), rep.Scripts, rep.Styles)
	for _, m := range rep.Media {
		fmt.Printf("  media %-6s lazy=%-5v high_priority=%-5v dimensions=%v\n",
			m.Kind, m.Lazy, m.HighPriority, m.HasDimensions)
	}
	return nil
}
