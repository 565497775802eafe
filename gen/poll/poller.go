// Package poll drives any asynchronous provider task to completion with a
// capped exponential backoff. It is vendor-agnostic: providers supply a
// status-check closure and kind-appropriate tuning.
package poll

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/types"
)

// Config tunes one poll loop.
type Config struct {
	MaxAttempts  int           // hard ceiling on status checks
	InitialDelay time.Duration // delay before the first check
	MaxDelay     time.Duration // backoff cap
	Multiplier   float64       // delay growth factor
	Timeout      time.Duration // overall wall-clock ceiling
}

// DefaultConfig suits fast kinds (image, TTS).
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  60,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   1.5,
		Timeout:      4 * time.Minute,
	}
}

// SlowConfig suits slow kinds (video, music), which take minutes per task.
func SlowConfig() Config {
	return Config{
		MaxAttempts:  120,
		InitialDelay: 5 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   1.5,
		Timeout:      10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 1 {
		c.Multiplier = d.Multiplier
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// CheckFunc reports the current task status. Returned errors abort the loop
// immediately; transient probe faults should be absorbed by the provider
// and reported as a pending status instead.
type CheckFunc func(ctx context.Context) (*gen.TaskStatus, error)

// Observer receives the status-check count of a finished poll loop,
// however the loop ended. Used to feed metrics.
type Observer func(provider string, attempts int)

type observerKey struct{}

// WithObserver returns a context whose poll loops report their final
// attempt count to fn.
func WithObserver(ctx context.Context, fn Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, fn)
}

func observerFrom(ctx context.Context) Observer {
	fn, _ := ctx.Value(observerKey{}).(Observer)
	return fn
}

// Wait polls check until the task reaches a terminal status or the
// configured ceilings are hit.
//
// complete            -> the final TaskStatus is returned.
// error / cancelled   -> a GENERATION_FAILED error carrying the vendor's
//                        message is returned at once; no further polls.
// ceilings exceeded   -> a TIMEOUT error is returned.
func Wait(ctx context.Context, provider string, cfg Config, check CheckFunc, logger *zap.Logger) (*gen.TaskStatus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	delay := cfg.InitialDelay
	start := time.Now()

	checks := 0
	if fn := observerFrom(ctx); fn != nil {
		defer func() { fn(provider, checks) }()
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, timeoutError(provider, attempt-1, time.Since(start), ctx.Err())
		case <-time.After(delay):
		}

		checks++
		status, err := check(ctx)
		if err != nil {
			return nil, types.WrapProviderError(provider, err)
		}

		switch status.Status {
		case types.StatusComplete:
			logger.Debug("task complete",
				zap.String("provider", provider),
				zap.Int("attempts", attempt),
				zap.Duration("elapsed", time.Since(start)))
			return status, nil

		case types.StatusError, types.StatusCancelled:
			msg := status.Error
			if msg == "" {
				msg = status.Message
			}
			if msg == "" {
				msg = fmt.Sprintf("task %s", status.Status)
			}
			return nil, types.NewError(types.ErrGenerationFailed, msg).WithProvider(provider)
		}

		// pending/processing: back off, bounded by the cap.
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return nil, timeoutError(provider, cfg.MaxAttempts, time.Since(start), nil)
}

func timeoutError(provider string, attempts int, elapsed time.Duration, cause error) *types.Error {
	err := types.NewError(types.ErrTimeout,
		fmt.Sprintf("%s task did not complete after %d polls in %s", provider, attempts, elapsed.Round(time.Millisecond))).
		WithProvider(provider).
		WithRetryable(true)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}
