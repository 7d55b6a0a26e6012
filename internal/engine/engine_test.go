package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetwatch/internal/entity"
	"github.com/roach88/sheetwatch/internal/journal"
	"github.com/roach88/sheetwatch/internal/ledger"
	"github.com/roach88/sheetwatch/internal/notify"
	"github.com/roach88/sheetwatch/internal/snapshot"
	"github.com/roach88/sheetwatch/internal/source"
	"github.com/roach88/sheetwatch/internal/testutil"
)

// Monday of ISO week 2025-W11.
var cycleNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	engine  *Engine
	source  *testutil.Source
	store   *snapshot.Store
	monthly *ledger.Monthly
	weekly  *ledger.Weekly
	journal *journal.Journal
	sink    *notify.MemorySink
	clock   *testclock.Clock
	dir     string
}

func newHarness(t *testing.T, configure ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		source: testutil.NewSource(),
		sink:   &notify.MemorySink{},
		clock:  testclock.NewClock(cycleNow),
		dir:    t.TempDir(),
	}

	var err error
	h.store, err = snapshot.Open(snapshot.Options{Path: filepath.Join(h.dir, "snapshot.json"), Clock: h.clock})
	require.NoError(t, err)
	h.monthly, err = ledger.OpenMonthly(filepath.Join(h.dir, "monthly.json"))
	require.NoError(t, err)
	h.weekly, err = ledger.OpenWeekly(filepath.Join(h.dir, "weekly.json"))
	require.NoError(t, err)
	h.journal, err = journal.Open(filepath.Join(h.dir, "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = h.monthly.Close()
		_ = h.weekly.Close()
		_ = h.journal.Close()
	})

	cfg := Config{
		Source:        h.source,
		Store:         h.store,
		Monthly:       h.monthly,
		Weekly:        h.weekly,
		Journal:       h.journal,
		Sink:          h.sink,
		Clock:         h.clock,
		IDs:           &SequenceGenerator{Prefix: "id"},
		FetchAttempts: 3,
		FetchDelay:    time.Millisecond,
		FetchTimeout:  time.Second,
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	h.engine, err = New(cfg)
	require.NoError(t, err)
	return h
}

// seed commits records as the prior snapshot.
func (h *harness) seed(t *testing.T, records map[string]entity.Record, warm bool) {
	t.Helper()
	snap := entity.NewSnapshot()
	for id, r := range records {
		snap.Records[id] = r
	}
	require.NoError(t, h.store.Commit(snap))
	if warm {
		require.NoError(t, h.store.MarkWarm())
	}
}

// deliver closes the dispatcher, drains it and returns what was sent.
func (h *harness) deliver(t *testing.T) []notify.Notification {
	t.Helper()
	h.engine.Close()
	require.NoError(t, h.engine.Run(context.Background()))
	return h.sink.Sent()
}

func acme(status, regime string) map[string]entity.Record {
	return map[string]entity.Record{"100": {Status: status, Regime: regime}}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestTick_InactiveAlertGoesToDefault(t *testing.T) {
	h := newHarness(t)
	h.seed(t, acme("ATIVA", "SN"), true)
	h.source.Push(testutil.Table(testutil.Row("100", "Acme", "INATIVO", "SN")))

	rep, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, journal.OutcomeCommitted, rep.Outcome)

	require.Len(t, rep.Events, 1)
	assert.Equal(t, entity.EventStatusChange, rep.Events[0].Type)
	assert.Equal(t, "INATIVA", rep.Events[0].After.Status)

	sent := h.deliver(t)
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindAlert, sent[0].Kind)
	assert.Equal(t, notify.DestDefault, sent[0].Destination)
	assert.Equal(t, "ATIVA", sent[0].Previous)
	assert.Equal(t, "INATIVA", sent[0].Current)

	entry, ok := h.monthly.Get("2025-03")
	require.True(t, ok)
	assert.Equal(t, 1, entry.StatusCount)
	assert.Equal(t, "ATIVA", entry.Events[0].Previous)
	assert.Equal(t, "INATIVA", entry.Events[0].New)
	assert.NotEmpty(t, entry.Events[0].ID)

	_, ok = h.weekly.Get("2025-W11")
	assert.False(t, ok, "only suspensions enter the roster")
}

func TestTick_SuspensionAlertsAndRosters(t *testing.T) {
	h := newHarness(t)
	h.seed(t, acme("ATIVA", "SN"), true)
	h.source.Push(testutil.Table(testutil.Row("100", "Acme", "SUSPENSA", "SN")))

	_, err := h.engine.Tick(context.Background())
	require.NoError(t, err)

	sent := h.deliver(t)
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindAlert, sent[0].Kind)
	assert.Equal(t, notify.DestSuspended, sent[0].Destination)

	roster, ok := h.weekly.Get("2025-W11")
	require.True(t, ok)
	assert.Equal(t, 1, roster.Count)
	assert.True(t, roster.Has("100"))
}

func TestTick_StaleEmptyRegimeRetained(t *testing.T) {
	h := newHarness(t)
	h.seed(t, map[string]entity.Record{"200": {Status: "ATIVA", Regime: "SN"}}, true)
	h.source.Push(testutil.Table(testutil.Row("200", "Beta", "ATIVA", "")))

	rep, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Events)
	assert.Equal(t, "SN", h.store.Current().Records["200"].Regime)
	assert.Empty(t, h.deliver(t))
}

func TestTick_GuardDiscardsCycle(t *testing.T) {
	h := newHarness(t)
	prior := make(map[string]entity.Record)
	for _, row := range testutil.Entities(100, "ATIVA", "SN")[1:] {
		prior[row[0]] = entity.Record{Status: "ATIVA", Regime: "SN"}
	}
	h.seed(t, prior, true)

	// 40 valid rows, all status changes, plus 60 malformed ones.
	raw := testutil.Entities(40, "BAIXADA", "SN")
	for i := 0; i < 60; i++ {
		raw = append(raw, []string{"", "", ""})
	}
	h.source.Push(raw)

	rep, err := h.engine.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, IsGuardError(err))
	assert.True(t, snapshot.IsGuardError(err), "store error is wrapped")
	assert.Equal(t, journal.OutcomeGuardTripped, rep.Outcome)
	assert.Equal(t, 60, rep.Skipped)

	assert.Equal(t, 100, h.store.Len())
	assert.Equal(t, "ATIVA", h.store.Current().Records["1"].Status)
	assert.Empty(t, h.deliver(t), "refused cycle dispatches nothing")
	assert.Empty(t, h.monthly.Periods(), "refused cycle records nothing")

	last, ok, err := h.journal.LastCycle(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, journal.OutcomeGuardTripped, last.Outcome)

	history, err := h.journal.History(context.Background(), "1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTick_SecondIdenticalCycleIsQuiet(t *testing.T) {
	h := newHarness(t)
	h.seed(t, acme("ATIVA", "SN"), true)
	h.source.Push(testutil.Table(
		testutil.Row("100", "Acme", "SUSPENSA", "LP"),
		testutil.Row("300", "Gamma", "ATIVA", "MEI"),
	))

	first, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, first.Events)

	second, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Events)
	assert.Zero(t, second.Queued)
}

func TestTick_WarmUpIsSilent(t *testing.T) {
	h := newHarness(t)
	const k = 25
	h.source.Push(testutil.Entities(k, "ATIVA", "SN"))

	rep, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Warm)
	assert.Len(t, rep.Events, k)
	assert.Zero(t, rep.Queued)

	assert.Equal(t, k, h.store.Len())
	assert.True(t, h.store.Warm(), "first non-empty commit completes warm-up")
	assert.Empty(t, h.monthly.Periods(), "new entities have no ledger form")
	assert.Empty(t, h.deliver(t))
}

func TestTick_ChangesDuringWarmUpAreRecordedNotSent(t *testing.T) {
	h := newHarness(t)
	h.seed(t, acme("ATIVA", "SN"), false)
	h.source.Push(testutil.Table(testutil.Row("100", "Acme", "SUSPENSA", "SN")))

	_, err := h.engine.Tick(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.deliver(t))
	_, ok := h.monthly.Get("2025-03")
	assert.True(t, ok)
	_, ok = h.weekly.Get("2025-W11")
	assert.True(t, ok)

	history, err := h.journal.History(context.Background(), "100", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Notified)
	assert.Equal(t, "warm-up", history[0].Reason)
}

func TestTick_NewEntityAfterWarmUp(t *testing.T) {
	h := newHarness(t)
	h.seed(t, acme("ATIVA", "SN"), true)
	h.source.Push(testutil.Table(
		testutil.Row("100", "Acme", "ATIVA", "SN"),
		testutil.Row("400", "Delta", "ATIVA", "LP"),
		testutil.Row("500", "Epsilon", "BAIXADA", "LP"),
	))

	_, err := h.engine.Tick(context.Background())
	require.NoError(t, err)

	sent := h.deliver(t)
	require.Len(t, sent, 1, "flagged newcomers are recorded, not announced")
	assert.Equal(t, notify.KindNewEntity, sent[0].Kind)
	assert.Equal(t, notify.DestGeneral, sent[0].Destination)
	assert.Equal(t, "400", sent[0].EntityID)
	assert.Equal(t, "LP", sent[0].Regime)

	history, err := h.journal.History(context.Background(), "500", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "initial-status-flagged", history[0].Reason)
}

func TestTick_HeaderOnlyIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.seed(t, acme("ATIVA", "SN"), true)
	h.source.Push(testutil.Table())

	rep, err := h.engine.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrCodeEmptyFetch, CodeOf(err))
	assert.True(t, IsTransient(err))
	assert.Equal(t, journal.OutcomeEmpty, rep.Outcome)
	assert.Equal(t, 1, h.store.Len())
	assert.Equal(t, 1, h.source.Calls(), "an empty table is not retried")
}

func TestTick_RetriesTransientFetch(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Clock = clock.WallClock })
	h.seed(t, acme("ATIVA", "SN"), true)
	h.source.PushError(&source.FetchError{Class: source.ClassTransport, Err: errors.New("reset by peer")})
	h.source.PushError(&source.FetchError{Class: source.ClassRateLimit, Err: errors.New("429")})
	h.source.Push(testutil.Table(testutil.Row("100", "Acme", "ATIVA", "SN")))

	_, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, h.source.Calls())
}

func TestTick_GivesUpAfterAttempts(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Clock = clock.WallClock })
	h.seed(t, acme("ATIVA", "SN"), true)
	for i := 0; i < 5; i++ {
		h.source.PushError(&source.FetchError{Class: source.ClassTransport, Err: errors.New("timeout")})
	}

	rep, err := h.engine.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrCodeTransientFetch, CodeOf(err))
	assert.Equal(t, journal.OutcomeFetchFailed, rep.Outcome)
	assert.Equal(t, 3, h.source.Calls())
	assert.Equal(t, source.ClassTransport, source.ClassOf(err))
}

func TestTick_AuthFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Clock = clock.WallClock })
	h.source.PushError(&source.FetchError{Class: source.ClassAuth, Err: errors.New("403")})

	_, err := h.engine.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, h.source.Calls())
	assert.Equal(t, source.ClassAuth, source.ClassOf(err))
}

func TestTick_FatalFetchErrorKeepsItsType(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Clock = clock.WallClock })
	cause := &source.FetchError{Class: source.ClassNotFound, Err: errors.New("404")}
	h.source.PushError(cause)

	_, err := h.engine.Tick(context.Background())
	require.Error(t, err)

	var fe *source.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Same(t, cause, fe)
	assert.Equal(t, source.ClassNotFound, source.ClassOf(err))
}

func TestTick_EmptyFirstLoadStaysInWarmUp(t *testing.T) {
	h := newHarness(t)
	h.source.Push(testutil.Table(testutil.Row("", "", "", "")))

	rep, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Zero(t, h.store.Len())
	assert.False(t, h.store.Warm(), "a load without valid rows is no baseline")

	h.source.Push(testutil.Entities(5, "ATIVA", "SN"))
	rep, err = h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Warm)
	assert.Len(t, rep.Events, 5)
	assert.Zero(t, rep.Queued)
	assert.True(t, h.store.Warm())
	assert.Empty(t, h.deliver(t))
}

func TestTick_PersistFailureKeepsCycle(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		dir := t.TempDir()
		store, err := snapshot.Open(snapshot.Options{
			Path:      filepath.Join(dir, "snapshot.json"),
			BackupDir: filepath.Join(dir, "backups"),
		})
		require.NoError(t, err)
		require.NoError(t, store.Commit(func() entity.Snapshot {
			s := entity.NewSnapshot()
			s.Records["100"] = entity.Record{Status: "ATIVA", Regime: "SN"}
			return s
		}()))
		require.NoError(t, store.MarkWarm())
		// A file where the backup directory should be breaks every backup.
		require.NoError(t, removeAndBlock(filepath.Join(dir, "backups")))
		c.Store = store
	})
	h.source.Push(testutil.Table(testutil.Row("100", "Acme", "DEVOLVIDA", "SN")))

	rep, err := h.engine.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, IsPersistError(err))
	assert.Equal(t, journal.OutcomePersistFailed, rep.Outcome)

	sent := h.deliver(t)
	require.Len(t, sent, 1, "in-memory commit still dispatches")
	assert.Equal(t, notify.KindAlert, sent[0].Kind)
	_, ok := h.monthly.Get("2025-03")
	assert.True(t, ok)
}

func TestTick_DryRunChangesNothing(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.DryRun = true })
	h.seed(t, acme("ATIVA", "SN"), true)
	h.source.Push(testutil.Table(testutil.Row("100", "Acme", "SUSPENSA", "SN")))

	rep, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, journal.OutcomeDryRun, rep.Outcome)
	assert.Equal(t, 1, rep.Queued)

	assert.Equal(t, "ATIVA", h.store.Current().Records["100"].Status)
	assert.Empty(t, h.monthly.Periods())
	assert.Empty(t, h.weekly.Weeks())
	assert.Len(t, h.deliver(t), 1)

	_, ok, err := h.journal.LastCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "dry runs are not journaled")
}

func TestTick_DepartedEntitiesDropped(t *testing.T) {
	h := newHarness(t)
	h.seed(t, map[string]entity.Record{
		"1": {Status: "ATIVA"}, "2": {Status: "ATIVA"}, "3": {Status: "ATIVA"},
	}, true)
	h.source.Push(testutil.Table(
		testutil.Row("1", "One", "ATIVA", ""),
		testutil.Row("2", "Two", "ATIVA", ""),
	))

	rep, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, rep.Departed)
	assert.Empty(t, rep.Events)
	_, still := h.store.Current().Get("3")
	assert.False(t, still)
}

func TestRun_RecordsDispatchOutcome(t *testing.T) {
	h := newHarness(t)
	h.sink.Fail = func(n notify.Notification) error {
		if n.EntityID == "100" {
			return errors.New("discord down")
		}
		return nil
	}
	h.seed(t, acme("ATIVA", "SN"), true)
	h.source.Push(testutil.Table(testutil.Row("100", "Acme", "BAIXADA", "SN")))

	_, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.deliver(t))

	dispatches, err := h.journal.Dispatches(context.Background(), "100")
	require.NoError(t, err)
	require.Len(t, dispatches, 1)
	assert.False(t, dispatches[0].OK)
	assert.Equal(t, "discord down", dispatches[0].Error)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	require.True(t, h.engine.Enqueue(notify.Notification{Kind: notify.KindReport}))
	require.Eventually(t, func() bool { return len(h.sink.Sent()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
