package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/roach88/sheetwatch/internal/journal"
	"github.com/roach88/sheetwatch/internal/ledger"
	"github.com/roach88/sheetwatch/internal/metrics"
	"github.com/roach88/sheetwatch/internal/normalize"
	"github.com/roach88/sheetwatch/internal/notify"
	"github.com/roach88/sheetwatch/internal/route"
	"github.com/roach88/sheetwatch/internal/snapshot"
	"github.com/roach88/sheetwatch/internal/source"
)

// Fetch defaults.
const (
	DefaultFetchAttempts = 3
	DefaultFetchDelay    = 5 * time.Second
	DefaultFetchTimeout  = 30 * time.Second
)

// Config wires an Engine. Source, Store, Monthly, Weekly and Sink are
// required; the rest default.
type Config struct {
	Source  source.Source
	Store   *snapshot.Store
	Monthly *ledger.Monthly
	Weekly  *ledger.Weekly
	Sink    notify.Sink

	Table   *normalize.Table // defaults to normalize.Default()
	Router  *route.Router    // defaults to route.New(Table)
	Journal *journal.Journal // optional
	Metrics *metrics.Metrics // optional
	Clock   clock.Clock      // defaults to clock.WallClock
	IDs     IDGenerator      // defaults to UUIDv7Generator

	FetchAttempts int
	FetchDelay    time.Duration
	FetchTimeout  time.Duration // per attempt

	// DryRun diffs and routes without committing or recording anything.
	// Notifications still go to Sink, which should be a notify.LogSink.
	DryRun bool
}

// Engine runs diff cycles and dispatches their notifications.
//
// Thread-safety model:
//   - Tick(): safe from any goroutine; cycles are serialized
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Engine struct {
	cfg   Config
	mu    sync.Mutex // serializes Tick
	queue *dispatchQueue
}

// New validates cfg and returns an Engine. Run must be started for queued
// notifications to be delivered.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("engine: source is required")
	case cfg.Store == nil:
		return nil, errors.New("engine: snapshot store is required")
	case cfg.Monthly == nil || cfg.Weekly == nil:
		return nil, errors.New("engine: ledgers are required")
	case cfg.Sink == nil:
		return nil, errors.New("engine: sink is required")
	}
	if cfg.Table == nil {
		cfg.Table = normalize.Default()
	}
	if cfg.Router == nil {
		cfg.Router = route.New(cfg.Table)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.IDs == nil {
		cfg.IDs = UUIDv7Generator{}
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = DefaultFetchAttempts
	}
	if cfg.FetchDelay <= 0 {
		cfg.FetchDelay = DefaultFetchDelay
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Engine{cfg: cfg, queue: newDispatchQueue()}, nil
}

// Enqueue queues a notification that did not come from a diff, such as a
// scheduled report. Returns false after Close.
func (e *Engine) Enqueue(n notify.Notification) bool {
	return e.queue.Enqueue(n)
}

// Pending returns the number of notifications waiting for delivery.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Close stops accepting notifications. Run delivers what is queued and
// returns.
func (e *Engine) Close() {
	e.queue.Close()
}

// Run delivers queued notifications in order until Close has been called
// and the queue is empty, or ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	for {
		e.drain(ctx)
		select {
		case <-ctx.Done():
			if n := e.queue.Len(); n > 0 {
				slog.Warn("dispatcher stopped with pending notifications", "pending", n)
			}
			return ctx.Err()
		case _, ok := <-e.queue.Wait():
			if !ok {
				e.drain(ctx)
				return nil
			}
		}
	}
}

func (e *Engine) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		e.dispatch(ctx, n)
	}
}

func (e *Engine) dispatch(ctx context.Context, n notify.Notification) {
	err := e.cfg.Sink.Send(ctx, n)
	e.cfg.Metrics.Dispatched(string(n.Kind), err)

	attrs := []any{"kind", n.Kind, "destination", n.Destination, "entity", n.EntityID}
	if err != nil {
		slog.Error("notification failed", append(attrs, "error", err)...)
	} else {
		slog.Info("notification sent", attrs...)
	}

	if e.cfg.Journal == nil || e.cfg.DryRun {
		return
	}
	d := journal.Dispatch{
		ChangeID:    n.ID,
		Kind:        string(n.Kind),
		Destination: string(n.Destination),
		EntityID:    n.EntityID,
		At:          e.cfg.Clock.Now(),
		OK:          err == nil,
	}
	if err != nil {
		d.Error = err.Error()
	}
	if jerr := e.cfg.Journal.RecordDispatch(ctx, d); jerr != nil {
		slog.Error("journal dispatch failed", "error", jerr)
	}
}
