package retry

import (
	"time"

	"github.com/niels/rawhttpd/pkg/config"
	"github.com/rs/zerolog"
)

// FromConfig creates retry options for accept errors from the application configuration
func FromConfig(cfg *config.Config) Options {
	// If retry is disabled, return options with no retries
	if !cfg.Retry.Enabled {
		return Options{
			MaxRetries:      0,
			IsRetryableFunc: IsTemporary,
		}
	}

	return Options{
		MaxRetries:      cfg.Retry.MaxRetries,
		InitialDelay:    time.Duration(cfg.Retry.InitialDelay) * time.Millisecond,
		MaxDelay:        time.Duration(cfg.Retry.MaxDelay) * time.Millisecond,
		BackoffFactor:   cfg.Retry.BackoffFactor,
		JitterFactor:    cfg.Retry.JitterFactor,
		IsRetryableFunc: IsTemporary,
	}
}

// LogTo returns a Logger function writing retry attempts at warn level
func LogTo(logger zerolog.Logger) func(format string, args ...interface{}) {
	return func(format string, args ...interface{}) {
		logger.Warn().Msgf(format, args...)
	}
}
