// Package retry runs remote operations with exponential backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Config controls attempts and backoff between them.
type Config struct {
	// Attempts is the total number of tries, the first one included.
	Attempts int `yaml:"attempts" json:"attempts"`

	// Backoff is the delay before the first retry, doubled (by Multiplier)
	// up to MaxBackoff.
	Backoff    time.Duration `yaml:"backoff" json:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`

	// Jitter is the random spread applied to each delay as a fraction of it.
	Jitter float64 `yaml:"jitter" json:"jitter"`

	// ShouldRetry overrides IsTransient.
	ShouldRetry func(err error) bool `yaml:"-" json:"-"`

	// OnRetry is called before sleeping with the number of the failed attempt.
	OnRetry func(attempt int, err error) `yaml:"-" json:"-"`
}

// Default returns the settings used for tile downloads.
func Default() Config {
	return Config{
		Attempts:   3,
		Backoff:    time.Second,
		MaxBackoff: 30 * time.Second,
		Multiplier: 2,
		Jitter:     0.25,
	}
}

// Do calls fn until it succeeds, returns a non-transient error, the attempts
// run out or ctx is done. The last error is returned.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions returning a value.
func DoVal[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) || attempt == cfg.Attempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(cfg.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// LogRetries returns an OnRetry callback that logs a warning per retry.
func LogRetries(operation, target string) func(int, error) {
	return func(attempt int, err error) {
		log.Warn().
			Str("operation", operation).
			Str("target", target).
			Int("attempt", attempt).
			Err(err).
			Msg("Retrying")
	}
}

func (c Config) withDefaults() Config {
	d := Default()
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.Backoff <= 0 {
		c.Backoff = d.Backoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

func (c Config) delay(attempt int) time.Duration {
	d := float64(c.Backoff) * math.Pow(c.Multiplier, float64(attempt))
	d = math.Min(d, float64(c.MaxBackoff))

	if c.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * c.Jitter
	}

	return time.Duration(math.Max(d, 0))
}
