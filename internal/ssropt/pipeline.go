// Package ssropt post-processes converted markup for server-rendered
// delivery: whitespace reduction, script stripping, media lazy-marking,
// dimension preservation, critical-path extraction, style deduplication, and
// minification. Stages are independently toggleable but always run in fixed
// order, and every stage is idempotent.
package ssropt

import (
	"log/slog"
	"time"

	"github.com/madebyaris/wp-block-to-html/internal/config"
	"github.com/madebyaris/wp-block-to-html/internal/hydration"
	"github.com/madebyaris/wp-block-to-html/internal/metrics"
)

// stageInput carries the conversion byproducts a stage may consult.
type stageInput struct {
	targets []*hydration.Target
	cfg     *config.SSRConfig
}

type stage struct {
	name string
	// minLevel gates the stage by optimization level when no explicit
	// override is configured.
	minLevel int
	// override returns the stage's fine-grained toggle, or nil when the
	// level default applies.
	override func(*config.SSRConfig) *bool
	// extraGate adds stage-specific enablement conditions on top of level
	// and override (nil means none).
	extraGate func(*config.SSRConfig) bool
	apply     func(markup string, in *stageInput) string
}

const (
	levelMinimalRank = iota + 1
	levelBalancedRank
	levelMaximumRank
)

func levelRank(l config.OptimizationLevel) int {
	switch l {
	case config.LevelMinimal:
		return levelMinimalRank
	case config.LevelMaximum:
		return levelMaximumRank
	default:
		return levelBalancedRank
	}
}

// stages is the fixed pipeline order. Later stages assume earlier ones
// already ran; the order never changes regardless of which subset is
// enabled.
var stages = []stage{
	{
		name:     "reduce_whitespace",
		minLevel: levelMinimalRank,
		override: func(c *config.SSRConfig) *bool { return c.ReduceWhitespace },
		apply:    applyReduceWhitespace,
	},
	{
		name:     "strip_scripts",
		minLevel: levelBalancedRank,
		override: func(c *config.SSRConfig) *bool { return c.StripScripts },
		apply:    applyStripScripts,
	},
	{
		name:     "lazy_media",
		minLevel: levelBalancedRank,
		override: func(c *config.SSRConfig) *bool { return c.LazyMedia },
		apply:    applyLazyMedia,
	},
	{
		name:     "preserve_dimensions",
		minLevel: levelBalancedRank,
		override: func(c *config.SSRConfig) *bool { return c.PreserveDimensions },
		apply:    applyPreserveDimensions,
	},
	{
		name:     "critical_path",
		minLevel: levelMaximumRank,
		override: func(c *config.SSRConfig) *bool { return c.CriticalPath },
		extraGate: func(c *config.SSRConfig) bool {
			return c.DeferNonCritical || c.CriticalPathOnly
		},
		apply: applyCriticalPath,
	},
	{
		name:     "dedupe_styles",
		minLevel: levelMaximumRank,
		override: func(c *config.SSRConfig) *bool { return c.DedupeStyles },
		apply:    applyDedupeStyles,
	},
	{
		name:     "minify",
		minLevel: levelMaximumRank,
		override: func(c *config.SSRConfig) *bool { return c.Minify },
		apply:    applyMinify,
	},
}

// Pipeline runs the configured optimization stages over converted markup.
type Pipeline struct {
	cfg    *config.SSRConfig
	rec    metrics.Recorder
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(p *Pipeline) { p.rec = rec }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New validates cfg and builds a pipeline.
func New(cfg *config.SSRConfig, opts ...Option) (*Pipeline, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, rec: metrics.NoopRecorder{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run applies the enabled stages in fixed order. Disabled pipelines return
// the markup unchanged.
func (p *Pipeline) Run(markup string, targets []*hydration.Target) string {
	if !p.cfg.Enabled {
		return markup
	}
	in := &stageInput{targets: targets, cfg: p.cfg}
	rank := levelRank(p.cfg.Level)
	for _, st := range stages {
		if !stageEnabled(&st, p.cfg, rank) {
			continue
		}
		start := time.Now()
		before := len(markup)
		markup = st.apply(markup, in)
		p.rec.ObserveOptimizeStageDuration(st.name, time.Since(start))
		if len(markup) != before {
			p.logger.Debug("optimization stage applied",
				"stage", st.name, "bytes_before", before, "bytes_after", len(markup))
		}
	}
	return markup
}

func stageEnabled(st *stage, cfg *config.SSRConfig, rank int) bool {
	enabled := rank >= st.minLevel
	if ov := st.override(cfg); ov != nil {
		enabled = *ov
	}
	if enabled && st.extraGate != nil {
		enabled = st.extraGate(cfg)
	}
	return enabled
}

// Optimize is the one-shot convenience entry point:
// optimize(markup, hydrationTargets, ssrConfig) -> optimizedMarkup.
func Optimize(markup string, targets []*hydration.Target, cfg *config.SSRConfig) (string, error) {
	p, err := New(cfg)
	if err != nil {
		return "", err
	}
	return p.Run(markup, targets), nil
}
