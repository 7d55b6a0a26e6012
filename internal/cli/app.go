package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/roach88/sheetwatch/internal/config"
	"github.com/roach88/sheetwatch/internal/engine"
	"github.com/roach88/sheetwatch/internal/journal"
	"github.com/roach88/sheetwatch/internal/ledger"
	"github.com/roach88/sheetwatch/internal/metrics"
	"github.com/roach88/sheetwatch/internal/normalize"
	"github.com/roach88/sheetwatch/internal/notify"
	"github.com/roach88/sheetwatch/internal/snapshot"
	"github.com/roach88/sheetwatch/internal/source"
)

// app is the state every command works against.
type app struct {
	cfg     config.Config
	table   *normalize.Table
	store   *snapshot.Store
	monthly *ledger.Monthly
	weekly  *ledger.Weekly
	journal *journal.Journal
}

// loadConfig loads configuration, mapping failures to ExitCommandError.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigDir)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// openApp opens the synonym table, the snapshot store, both ledgers and the
// journal under cfg.State.Dir. A corrupt snapshot is refused: continuing
// with an empty one would announce every entity as new.
func openApp(cfg config.Config) (*app, error) {
	return openState(cfg, false)
}

// openState is openApp; with tolerateCorrupt a corrupt snapshot is logged
// and replaced by an empty one, which is what reset needs.
func openState(cfg config.Config, tolerateCorrupt bool) (*app, error) {
	a := &app{cfg: cfg, table: normalize.Default()}

	if cfg.State.Synonyms != "" {
		t, err := normalize.LoadFile(cfg.State.Path(cfg.State.Synonyms))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load synonym table", err)
		}
		a.table = t
	}

	snapPath := cfg.State.Path(cfg.State.Snapshot)
	store, err := snapshot.Open(snapshot.Options{
		Path:      snapPath,
		BackupDir: filepath.Join(cfg.State.Dir, "backups"),
	})
	switch {
	case err == nil:
	case snapshot.IsCorrupt(err) && tolerateCorrupt:
		slog.Warn("ignoring corrupt snapshot", "path", snapPath, "error", err)
	case snapshot.IsCorrupt(err):
		return nil, WrapExitError(ExitCommandError,
			"snapshot is corrupt; inspect it or run 'sheetwatch reset'", err)
	default:
		return nil, WrapExitError(ExitCommandError, "failed to open snapshot", err)
	}
	a.store = store

	if a.monthly, err = ledger.OpenMonthly(cfg.State.Path(cfg.State.Monthly)); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open monthly ledger", err)
	}
	if a.weekly, err = ledger.OpenWeekly(cfg.State.Path(cfg.State.Weekly)); err != nil {
		_ = a.monthly.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open weekly roster", err)
	}
	if a.journal, err = journal.Open(cfg.State.Path(cfg.State.Journal)); err != nil {
		_ = a.monthly.Close()
		_ = a.weekly.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}

	slog.Debug("state opened", "dir", cfg.State.Dir, "entities", store.Len(), "warm", store.Warm())
	return a, nil
}

// Close flushes the ledgers and closes the journal.
func (a *app) Close() error {
	return errors.Join(a.monthly.Close(), a.weekly.Close(), a.journal.Close())
}

// newSource builds the configured row source.
func newSource(ctx context.Context, cfg config.Config) (source.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceSheets:
		return source.NewSheets(ctx, source.SheetsConfig{
			SpreadsheetID:   cfg.Source.SheetID,
			Range:           cfg.Source.Range,
			CredentialsFile: cfg.Source.CredentialsFile,
		})
	case config.SourceXLSX:
		return &source.XLSX{Path: cfg.Source.Path, Sheet: cfg.Source.Sheet}, nil
	case config.SourceCSV:
		return &source.CSV{Path: cfg.Source.Path}, nil
	}
	return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
}

// newSink builds the Discord sink, or a log sink for dry runs.
func newSink(cfg config.Config) (notify.Sink, error) {
	if cfg.DryRun {
		return notify.LogSink{}, nil
	}
	channels := map[notify.Destination]string{notify.DestDefault: cfg.Discord.Default}
	for dest, id := range map[notify.Destination]string{
		notify.DestSuspended: cfg.Discord.Suspended,
		notify.DestGeneral:   cfg.Discord.General,
		notify.DestReports:   cfg.Discord.Reports,
	} {
		if id != "" {
			channels[dest] = id
		}
	}
	return notify.NewDiscord(notify.DiscordConfig{
		Token:         cfg.Discord.Token,
		Channels:      channels,
		Footer:        cfg.Discord.Footer,
		RatePerSecond: cfg.Discord.RatePerSecond,
	})
}

// newEngine wires the engine over the app state.
func (a *app) newEngine(src source.Source, sink notify.Sink, m *metrics.Metrics) (*engine.Engine, error) {
	return engine.New(engine.Config{
		Source:        src,
		Store:         a.store,
		Monthly:       a.monthly,
		Weekly:        a.weekly,
		Sink:          sink,
		Table:         a.table,
		Journal:       a.journal,
		Metrics:       m,
		FetchAttempts: a.cfg.Monitor.FetchAttempts,
		FetchDelay:    a.cfg.Monitor.FetchDelay,
		FetchTimeout:  a.cfg.Monitor.FetchTimeout,
		DryRun:        a.cfg.DryRun,
	})
}
