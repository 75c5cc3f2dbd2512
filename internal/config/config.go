// Package config defines the conversion options surface: content mode,
// target framework, SSR optimization, and hydration tuning. Options are
// immutable for the duration of one conversion call.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/madebyaris/wp-block-to-html/internal/classmap"
	"github.com/madebyaris/wp-block-to-html/internal/errors"
	"github.com/madebyaris/wp-block-to-html/internal/metrics"
	"github.com/madebyaris/wp-block-to-html/internal/retry"
)

// ContentMode selects how raw content fragments and transformers combine.
type ContentMode string

const (
	// ModeRaw ignores raw fragments; every node goes through its transformer.
	ModeRaw ContentMode = "raw"
	// ModeRendered splices raw fragments verbatim; transformers are ignored.
	ModeRendered ContentMode = "rendered"
	// ModeHybrid uses raw fragments for structure but merges resolved
	// classes into each block's first element.
	ModeHybrid ContentMode = "hybrid"
)

// OptimizationLevel selects which SSR optimization stages run by default.
type OptimizationLevel string

const (
	LevelMinimal  OptimizationLevel = "minimal"
	LevelBalanced OptimizationLevel = "balanced"
	LevelMaximum  OptimizationLevel = "maximum"
)

// Strategy names a hydration scheduling strategy.
type Strategy string

const (
	StrategyImmediate   Strategy = "immediate"
	StrategyViewport    Strategy = "viewport"
	StrategyInteraction Strategy = "interaction"
	StrategyIdle        Strategy = "idle"
)

// SSRConfig tunes the optimization pipeline. Per-stage pointers override the
// level default when non-nil.
type SSRConfig struct {
	Enabled bool              `yaml:"enabled"`
	Level   OptimizationLevel `yaml:"level"`

	ReduceWhitespace   *bool    `yaml:"reduce_whitespace,omitempty"`
	StripScripts       *bool    `yaml:"strip_scripts,omitempty"`
	ScriptAllowList    []string `yaml:"script_allow_list,omitempty"`
	LazyMedia          *bool    `yaml:"lazy_media,omitempty"`
	PreserveDimensions *bool    `yaml:"preserve_dimensions,omitempty"`
	CriticalPath       *bool    `yaml:"critical_path,omitempty"`
	DeferNonCritical   bool     `yaml:"defer_non_critical"`
	CriticalPathOnly   bool     `yaml:"critical_path_only"`
	// CriticalSizeRatio is the fraction of markup bytes kept above the fold
	// when no explicit fold marker is present.
	CriticalSizeRatio float64 `yaml:"critical_size_ratio"`
	DedupeStyles      *bool   `yaml:"dedupe_styles,omitempty"`
	Minify            *bool   `yaml:"minify,omitempty"`
}

// HydrationConfig tunes the client-side hydration scheduler.
type HydrationConfig struct {
	Strategy          Strategy            `yaml:"strategy"`
	PriorityBlocks    []string            `yaml:"priority_blocks,omitempty"`
	StrategyOverrides map[string]Strategy `yaml:"strategy_overrides,omitempty"`
	// DecideStrategy, when set, is consulted once per target after the
	// override table and before the global default.
	DecideStrategy func(id, blockType string, index int) Strategy `yaml:"-"`

	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`

	IdleTimeout time.Duration `yaml:"idle_timeout"`

	AutoCleanup  bool          `yaml:"auto_cleanup"`
	CleanupDelay time.Duration `yaml:"cleanup_delay"`

	RetryAttempts int               `yaml:"retry_attempts"`
	RetryDelay    time.Duration     `yaml:"retry_delay"`
	RetryBackoff  retry.BackoffMode `yaml:"retry_backoff"`
	RetryMaxDelay time.Duration     `yaml:"retry_max_delay"`
}

// RetryPolicy builds the backoff policy for failed activations.
func (h *HydrationConfig) RetryPolicy() retry.Policy {
	return retry.NewPolicy(h.RetryBackoff, h.RetryDelay, h.RetryMaxDelay, h.RetryAttempts)
}

// Options is the full option surface for one conversion call. The engine
// never mutates it.
type Options struct {
	Framework   classmap.Framework `yaml:"framework"`
	ContentMode ContentMode        `yaml:"content_mode"`

	// InteractiveBlocks lists block types flagged interactive beyond the
	// built-in convention set; each occurrence emits a hydration target.
	InteractiveBlocks []string `yaml:"interactive_blocks,omitempty"`

	// ClassOverrides is the custom class-map layer; it wins key-by-key over
	// the framework and default tables.
	ClassOverrides *classmap.Table `yaml:"class_overrides,omitempty"`

	SSR       SSRConfig       `yaml:"ssr"`
	Hydration HydrationConfig `yaml:"hydration"`

	// Logger is the error channel for recovered per-node failures.
	// Defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`
	// Metrics receives observability callbacks. Defaults to NoopRecorder.
	Metrics metrics.Recorder `yaml:"-"`
}

// ErrorLogger returns the configured error channel, never nil.
func (o *Options) ErrorLogger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Recorder returns the configured metrics recorder, never nil.
func (o *Options) Recorder() metrics.Recorder {
	if o.Metrics != nil {
		return o.Metrics
	}
	return metrics.NoopRecorder{}
}

// Load reads options from a YAML file, applies defaults for unset fields,
// and validates the result.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "read options file")
	}
	opts := Default()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "parse options file")
	}
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Normalize fills zero-valued tuning fields with documented defaults.
func (o *Options) Normalize() {
	if o.Framework == "" {
		o.Framework = classmap.FrameworkNone
	}
	if o.ContentMode == "" {
		o.ContentMode = ModeRaw
	}
	if o.SSR.Level == "" {
		o.SSR.Level = LevelBalanced
	}
	if o.SSR.CriticalSizeRatio == 0 {
		o.SSR.CriticalSizeRatio = DefaultCriticalSizeRatio
	}
	h := &o.Hydration
	if h.Strategy == "" {
		h.Strategy = StrategyViewport
	}
	if h.BatchSize == 0 {
		h.BatchSize = DefaultBatchSize
	}
	if h.BatchDelay == 0 {
		h.BatchDelay = DefaultBatchDelay
	}
	if h.IdleTimeout == 0 {
		h.IdleTimeout = DefaultIdleTimeout
	}
	if h.CleanupDelay == 0 {
		h.CleanupDelay = DefaultCleanupDelay
	}
	if h.RetryAttempts == 0 {
		h.RetryAttempts = DefaultRetryAttempts
	}
	if h.RetryDelay == 0 {
		h.RetryDelay = DefaultRetryDelay
	}
	if h.RetryBackoff == "" {
		h.RetryBackoff = retry.BackoffFixed
	}
	if h.RetryMaxDelay == 0 {
		h.RetryMaxDelay = DefaultRetryMaxDelay
	}
}

// Validate rejects invalid or contradictory options. Errors are fatal to the
// call the options were built for.
func (o *Options) Validate() error {
	switch o.ContentMode {
	case ModeRaw, ModeRendered, ModeHybrid:
	default:
		return errors.NewConfigurationError(fmt.Sprintf("unknown content mode %q", o.ContentMode))
	}
	if !classmap.Known(o.Framework) {
		if o.Framework != classmap.FrameworkCustom {
			return errors.NewConfigurationError(fmt.Sprintf("unknown framework %q", o.Framework))
		}
		if o.ClassOverrides == nil {
			return errors.NewConfigurationError("framework \"custom\" requires class_overrides")
		}
	}
	switch o.SSR.Level {
	case LevelMinimal, LevelBalanced, LevelMaximum:
	default:
		return errors.NewConfigurationError(fmt.Sprintf("unknown optimization level %q", o.SSR.Level))
	}
	if o.SSR.CriticalPathOnly && o.SSR.DeferNonCritical {
		return errors.NewConfigurationError("critical_path_only and defer_non_critical are mutually exclusive")
	}
	if o.SSR.CriticalSizeRatio < 0 || o.SSR.CriticalSizeRatio > 1 {
		return errors.NewConfigurationError("critical_size_ratio must be within (0,1]")
	}
	h := &o.Hydration
	switch h.Strategy {
	case StrategyImmediate, StrategyViewport, StrategyInteraction, StrategyIdle:
	default:
		return errors.NewConfigurationError(fmt.Sprintf("unknown hydration strategy %q", h.Strategy))
	}
	for block, s := range h.StrategyOverrides {
		switch s {
		case StrategyImmediate, StrategyViewport, StrategyInteraction, StrategyIdle:
		default:
			return errors.NewConfigurationError(fmt.Sprintf("unknown strategy %q for block %q", s, block))
		}
	}
	if h.BatchSize < 1 {
		return errors.NewConfigurationError("batch_size must be >= 1")
	}
	if h.BatchDelay < 0 || h.IdleTimeout < 0 || h.CleanupDelay < 0 || h.RetryDelay < 0 {
		return errors.NewConfigurationError("durations must be non-negative")
	}
	if h.RetryAttempts < 0 {
		return errors.NewConfigurationError("retry_attempts must be >= 0")
	}
	return nil
}
