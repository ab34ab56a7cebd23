// Package schedule holds the wall-clock waits that line the pipeline up with
// the external directory sync cadence.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/jonboulle/clockwork"
)

// DefaultGrace is how close to the target a wait may start and still be skipped.
const DefaultGrace = 5 * time.Second

// Barrier blocks until a given minute of the hour.
type Barrier struct {
	Clock clockwork.Clock
	Grace time.Duration
}

// NewBarrier creates a barrier on the given clock.
func NewBarrier(clock clockwork.Clock, grace time.Duration) *Barrier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Barrier{Clock: clock, Grace: grace}
}

// DurationUntilMinute returns how long to wait from now until hh:MM:00. A
// target that has already passed this hour moves to the next hour. A target
// no further away than grace, or a negative minute, needs no wait at all.
func DurationUntilMinute(now time.Time, minute int, grace time.Duration) time.Duration {
	if minute < 0 {
		return 0
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), minute, 0, 0, now.Location())
	wait := target.Sub(now)
	if wait < 0 {
		wait += time.Hour
	}
	if wait <= grace {
		return 0
	}
	return wait
}

// WaitUntilMinute blocks until the wall clock reaches minute past the hour,
// or ctx is done.
func (b *Barrier) WaitUntilMinute(ctx context.Context, minute int) error {
	if minute > 59 {
		return fmt.Errorf("invalid minute of hour: %d", minute)
	}
	if minute < 0 {
		logging.Debug("schedule barrier disabled")
		return nil
	}

	now := b.Clock.Now()
	wait := DurationUntilMinute(now, minute, b.Grace)
	if wait == 0 {
		logging.Debug("schedule barrier already reached",
			"minute", minute)
		return nil
	}

	logging.Info("waiting for scheduled minute",
		"minute", minute,
		"wait", wait.Round(time.Second).String(),
		"until", now.Add(wait).Format(time.TimeOnly))

	return Sleep(ctx, b.Clock, wait)
}

// Sleep waits for d on clock, returning early with ctx's error.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}
