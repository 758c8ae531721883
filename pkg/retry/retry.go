// Package retry provides bounded exponential backoff for operations
// against the database and opsline-central. Callers choose between
// unconditional retries (Do, DoWithResult) and transient-only retries
// with same-failure escalation (DoIfRetryable).
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	JitterFactor     float64 // 0.0-1.0; spreads delays to avoid synchronized retries
	MaxSameErrorType int     // consecutive same-class failures before escalating to permanent
}

// DefaultConfig returns sensible defaults for database and HTTP
// operations: 3 retries starting at 100ms, doubling to a 5s cap, with
// 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 5,
	}
}

// backoff tracks the delay progression across attempts.
type backoff struct {
	cfg   *Config
	delay time.Duration
}

func newBackoff(cfg *Config) *backoff {
	return &backoff{cfg: cfg, delay: cfg.InitialDelay}
}

// wait sleeps for the current jittered delay or until ctx is done, then
// advances the delay toward cfg.MaxDelay.
func (b *backoff) wait(ctx context.Context) error {
	d := b.delay
	if f := b.cfg.JitterFactor; f > 0 {
		d += time.Duration(float64(d) * f * (rand.Float64()*2 - 1))
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
		return ctx.Err()
	}

	b.delay = time.Duration(float64(b.delay) * b.cfg.Multiplier)
	if b.delay > b.cfg.MaxDelay {
		b.delay = b.cfg.MaxDelay
	}
	return nil
}

// Do runs fn until it succeeds or the retry budget is spent. The last
// error is returned when all attempts fail; context cancellation during
// a wait aborts immediately.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for operations that produce a value, like
// pgxpool.New.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	bo := newBackoff(cfg)
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if attempt == cfg.MaxRetries {
			break
		}
		if err := bo.wait(ctx); err != nil {
			return result, err
		}
	}

	return result, lastErr
}

// transientPatterns marks error text worth retrying: connection-level
// failures plus the HTTP statuses central returns under load.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"connection timed out",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"deadlock",
	"429",
	"500",
	"502",
	"503",
	"504",
	"rate limit",
	"service busy",
	"service unavailable",
	"too many requests",
}

// IsRetryable reports whether err is transient. Errors implementing
// IsRetryable() bool decide for themselves; everything else is matched
// against transientPatterns. Permanent failures (auth, validation) must
// not burn retry budget.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	type retryable interface{ IsRetryable() bool }
	if r, ok := err.(retryable); ok {
		return r.IsRetryable()
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// errorClasses orders the buckets used to detect the same failure
// repeating across attempts. First match wins.
var errorClasses = []struct {
	class    string
	keywords []string
}{
	{"503", []string{"503"}},
	{"502", []string{"502"}},
	{"504", []string{"504"}},
	{"500", []string{"500"}},
	{"429", []string{"429"}},
	{"404", []string{"404"}},
	{"403", []string{"403"}},
	{"401", []string{"401"}},
	{"400", []string{"400"}},
	{"connection", []string{"connection refused", "connection reset"}},
	{"timeout", []string{"timeout", "timed out"}},
	{"broken_pipe", []string{"broken pipe"}},
	{"rate_limit", []string{"rate limit", "too many requests"}},
}

func classify(err error) string {
	if err == nil {
		return "nil"
	}

	msg := strings.ToLower(err.Error())
	for _, c := range errorClasses {
		for _, kw := range c.keywords {
			if strings.Contains(msg, kw) {
				return c.class
			}
		}
	}
	return "unknown"
}

// DoIfRetryable runs fn, retrying only transient errors. A non-retryable
// error returns immediately. When the same failure class repeats
// cfg.MaxSameErrorType times in a row, the loop escalates to a permanent
// error instead of spending the rest of the budget on an endpoint that
// is down.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	bo := newBackoff(cfg)
	var lastErr error
	var lastClass string
	repeats := 0

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}

		class := classify(lastErr)
		if class == lastClass {
			repeats++
			if cfg.MaxSameErrorType > 0 && repeats >= cfg.MaxSameErrorType {
				return fmt.Errorf("repeated error (%d times, type=%s): %w", repeats, class, lastErr)
			}
		} else {
			repeats = 1
			lastClass = class
		}

		if attempt == cfg.MaxRetries {
			break
		}
		if err := bo.wait(ctx); err != nil {
			return err
		}
	}

	return lastErr
}
