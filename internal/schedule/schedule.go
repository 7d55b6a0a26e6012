// Package schedule runs jobs on an interval or once per day on calendar
// predicates. All waiting goes through a clock.Clock so tests can drive
// time with testclock.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"
)

// Job is one scheduled unit of work. now is the clock time the job fired at.
type Job func(ctx context.Context, now time.Time)

// Predicate selects the days a daily job runs on.
type Predicate func(day time.Time) bool

// Every runs job immediately and then every interval until ctx is done.
// Runs never overlap: the next wait starts when the job returns, so a slow
// job delays the schedule instead of piling up.
func Every(ctx context.Context, clk clock.Clock, interval time.Duration, name string, job Job) error {
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		run(ctx, name, job, clk.Now())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(interval):
		}
	}
}

// Daily runs job at hour:00 local to the clock's time zone on every day
// due accepts, at most once per day. A nil due means every day.
func Daily(ctx context.Context, clk clock.Clock, hour int, due Predicate, name string, job Job) error {
	for {
		now := clk.Now()
		next := NextAt(now, hour)
		slog.Debug("daily job waiting", "job", name, "next", next)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(next.Sub(now)):
		}
		fired := clk.Now()
		if due == nil || due(fired) {
			run(ctx, name, job, fired)
		}
	}
}

// NextAt returns the first hour:00 strictly after now.
func NextAt(now time.Time, hour int) time.Time {
	y, m, d := now.Date()
	at := time.Date(y, m, d, hour, 0, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// OnMonthDay is due on the given day of every month. Days past the end of
// a short month fall on its last day.
func OnMonthDay(day int) Predicate {
	return func(t time.Time) bool {
		last := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
		return t.Day() == min(day, last)
	}
}

// OnWeekday is due on the given weekday.
func OnWeekday(wd time.Weekday) Predicate {
	return func(t time.Time) bool { return t.Weekday() == wd }
}

// run calls job, containing panics so one bad run never stops the loop.
func run(ctx context.Context, name string, job Job, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled job panicked", "job", name, "panic", r)
		}
	}()
	job(ctx, now)
}
