package config

import (
	"time"

	"github.com/madebyaris/wp-block-to-html/internal/classmap"
	"github.com/madebyaris/wp-block-to-html/internal/retry"
)

// Tuning defaults. The documented choices for values the public behavior
// depends on:
//
//   - DefaultRetryAttempts 2: a target that always fails hydrates through
//     exactly 3 total attempts before it is left permanently failed.
//   - DefaultRetryDelay 250ms fixed: long enough to let a transient DOM
//     race settle, short enough to stay inside one perceived page load.
//   - DefaultCleanupDelay 10s: a viewport/interaction target still pending
//     after this long has scrolled out of plausible reach; its observer is
//     torn down and it returns to Pending.
//   - DefaultIdleTimeout 2s: idle-strategy targets hydrate at the first
//     idle period or after this fallback, whichever comes first.
//   - DefaultCriticalSizeRatio 0.2: without an explicit fold marker the
//     above-the-fold segment is the smallest top-level prefix covering at
//     least 20% of markup bytes.
const (
	DefaultBatchSize         = 10
	DefaultBatchDelay        = 50 * time.Millisecond
	DefaultIdleTimeout       = 2 * time.Second
	DefaultCleanupDelay      = 10 * time.Second
	DefaultRetryAttempts     = 2
	DefaultRetryDelay        = 250 * time.Millisecond
	DefaultRetryMaxDelay     = 5 * time.Second
	DefaultCriticalSizeRatio = 0.2
)

// FoldMarker is the explicit critical-path boundary comment. When present in
// markup it wins over the size heuristic.
const FoldMarker = "<!--wpb:fold-->"

// Default returns a fully-populated Options value.
func Default() *Options {
	return &Options{
		Framework:   classmap.FrameworkNone,
		ContentMode: ModeRaw,
		SSR: SSRConfig{
			Enabled:           true,
			Level:             LevelBalanced,
			CriticalSizeRatio: DefaultCriticalSizeRatio,
		},
		Hydration: HydrationConfig{
			Strategy:      StrategyViewport,
			BatchSize:     DefaultBatchSize,
			BatchDelay:    DefaultBatchDelay,
			IdleTimeout:   DefaultIdleTimeout,
			AutoCleanup:   true,
			CleanupDelay:  DefaultCleanupDelay,
			RetryAttempts: DefaultRetryAttempts,
			RetryDelay:    DefaultRetryDelay,
			RetryBackoff:  retry.BackoffFixed,
			RetryMaxDelay: DefaultRetryMaxDelay,
		},
	}
}
