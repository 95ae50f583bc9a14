// Package retrylimit paces calls against a rate-limited API and retries the
// ones that are safe to repeat. The limiter slows down when the API pushes
// back (429, 5xx) and recovers gradually after a quiet period.
//
// Example:
//
//	lim := retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
//	err := retrylimit.Do(ctx, lim, retrylimit.DefaultConfig(), func(ctx context.Context) error {
//	    return registerCommand(ctx)
//	})
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// quietPeriod is how long the limiter waits after a pushback before it
// starts raising the rate again.
const quietPeriod = 10 * time.Second

// AdaptiveLimiter is a token bucket whose rate moves between its bounds:
// up by stepUp after successes, multiplied by stepDown after pushback.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
	now       func() time.Time
}

// NewAdaptiveLimiter starts at initial requests per second. Rates below one
// per second are raised to one.
func NewAdaptiveLimiter(initial, minRate, maxRate, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	minRate = max(minRate, 1)
	maxRate = max(maxRate, minRate)
	initial = min(max(initial, minRate), maxRate)
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burstFor(initial)),
		minLimit: minRate,
		maxLimit: maxRate,
		stepUp:   stepUp,
		stepDown: stepDown,
		now:      time.Now,
	}
}

// Wait blocks until a token is available or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success raises the rate unless the API pushed back recently.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.now().Sub(a.lastError) > quietPeriod {
		a.setLimit(a.limiter.Limit() + a.stepUp)
	}
}

// Pushback lowers the rate after a 429 or a server error.
func (a *AdaptiveLimiter) Pushback() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = a.now()
	a.setLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// Limit returns the current rate in requests per second.
func (a *AdaptiveLimiter) Limit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) setLimit(l rate.Limit) {
	l = min(max(l, a.minLimit), a.maxLimit)
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
		a.limiter.SetBurst(burstFor(l))
	}
}

func burstFor(l rate.Limit) int {
	return max(1, int(l))
}

// Permanent marks an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Config controls Do.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// StatusOf extracts an HTTP status from an error, 0 if none. Nil uses
	// StatusCoder.
	StatusOf func(error) int
	Logger   zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		Logger:       zerolog.Nop(),
	}
}

// Do calls fn until it succeeds, returns a Permanent error, a 4xx other
// than 429, ctx ends or MaxAttempts is reached. Every attempt first waits on
// lim when lim is not nil.
func Do(ctx context.Context, lim *AdaptiveLimiter, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.StatusOf == nil {
		cfg.StatusOf = statusCode
	}

	delay := cfg.InitialDelay
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lim != nil {
			if werr := lim.Wait(ctx); werr != nil {
				return werr
			}
		}

		if err = fn(ctx); err == nil {
			if lim != nil {
				lim.Success()
			}
			return nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}

		status := cfg.StatusOf(err)
		pushback := status == http.StatusTooManyRequests || status >= 500
		if pushback && lim != nil {
			lim.Pushback()
		}
		if status >= 400 && !pushback {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := jitter(delay)
		cfg.Logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("status", status).
			Dur("retry_in", wait).
			Msg("Request failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
	}
	return fmt.Errorf("gave up after %d attempts: %w", cfg.MaxAttempts, err)
}

// jitter adds up to 25% to d.
func jitter(d time.Duration) time.Duration {
	if d < 4 {
		return d
	}
	return d + rand.N(d/4)
}

func statusCode(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
