package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval with the tick's wall-clock time.
type TickFunc func(ctx context.Context, now time.Time) error

// Options tune loop behaviour.
type Options struct {
	Name         string
	Interval     time.Duration
	AlignToClock bool
	StartupDelay time.Duration
}

// Loop drives a periodic sweep until its context is cancelled. Tick errors are
// logged and swallowed so one bad sweep never stops the loop.
type Loop struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Loop instance.
func New(opts Options, logger zerolog.Logger) *Loop {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	name := opts.Name
	if name == "" {
		name = "loop"
	}
	return &Loop{opts: opts, logger: logger.With().Str("component", "scheduler").Str("loop", name).Logger()}
}

// Run blocks, invoking the tick function at each interval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, tick TickFunc) error {
	if l.opts.StartupDelay > 0 {
		timer := time.NewTimer(l.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := l.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = l.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		l.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		now := time.Now().UTC()
		if err := tick(ctx, now); err != nil {
			l.logger.Error().Err(err).Msg("tick execution failed")
		}

		next = next.Add(l.opts.Interval)
	}
}

func (l *Loop) nextTick(now time.Time) time.Time {
	if !l.opts.AlignToClock {
		return now.Add(l.opts.Interval)
	}
	aligned := now.Truncate(l.opts.Interval)
	if !aligned.After(now) {
		aligned = aligned.Add(l.opts.Interval)
	}
	return aligned
}
