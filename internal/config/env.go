package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/madebyaris/wp-block-to-html/internal/classmap"
)

// LoadEnvFiles loads environment variables from .env/.env.local without
// overwriting the existing process environment. Missing files are fine.
func LoadEnvFiles() {
	for _, path := range []string{".env", ".env.local"} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

// ApplyEnv overlays WPB2H_* environment variables onto the options. Only
// variables that are set and parse cleanly take effect.
func (o *Options) ApplyEnv() {
	if v := os.Getenv("WPB2H_FRAMEWORK"); v != "" {
		o.Framework = classmap.Framework(v)
	}
	if v := os.Getenv("WPB2H_CONTENT_MODE"); v != "" {
		o.ContentMode = ContentMode(v)
	}
	if v := os.Getenv("WPB2H_SSR_LEVEL"); v != "" {
		o.SSR.Level = OptimizationLevel(v)
	}
	if v := os.Getenv("WPB2H_HYDRATION_STRATEGY"); v != "" {
		o.Hydration.Strategy = Strategy(v)
	}
	if v := os.Getenv("WPB2H_BATCH_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			o.Hydration.BatchDelay = d
		}
	}
	if v := os.Getenv("WPB2H_CLEANUP_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			o.Hydration.CleanupDelay = d
		}
	}
}
