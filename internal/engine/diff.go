package engine

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/sheetwatch/internal/entity"
	"github.com/roach88/sheetwatch/internal/normalize"
)

// Positional columns of the source table.
const (
	colID = iota
	colName
	colStatus
	colRegime

	minColumns = colStatus + 1
)

// Row is one well-formed source row, canonicalized.
type Row struct {
	Line   int // 1-based; the header is line 1
	ID     string
	Name   string
	Status string
	Regime string
}

// ParseRows skips the header and every row lacking a non-empty id, name
// and status, and canonicalizes the rest. skipped counts malformed rows.
func ParseRows(raw [][]string, table *normalize.Table) (rows []Row, skipped int) {
	if len(raw) <= 1 {
		return nil, 0
	}
	rows = make([]Row, 0, len(raw)-1)
	for i, cells := range raw[1:] {
		line := i + 2
		if len(cells) < minColumns {
			skipped++
			slog.Debug("malformed row skipped", "line", line, "cells", len(cells))
			continue
		}
		r := Row{
			Line:   line,
			ID:     strings.TrimSpace(cells[colID]),
			Name:   strings.Join(strings.Fields(cells[colName]), " "),
			Status: table.Normalize(entity.KindStatus, cells[colStatus]),
		}
		if len(cells) > colRegime {
			r.Regime = table.Normalize(entity.KindRegime, cells[colRegime])
		}
		if r.ID == "" || r.Name == "" || r.Status == "" {
			skipped++
			slog.Debug("malformed row skipped", "line", line, "id", r.ID)
			continue
		}
		rows = append(rows, r)
	}
	return rows, skipped
}

// DiffResult is the outcome of diffing one fetch against the prior snapshot.
type DiffResult struct {
	Candidate entity.Snapshot
	Events    []entity.Event

	Rows       int // data rows in the fetch, header excluded
	Skipped    int // malformed rows
	Duplicates int // rows repeating an id already seen in this fetch

	// Departed lists, sorted, the prior entities absent from the fetch.
	Departed []string
}

// Diff classifies raw against prior. It is pure: prior is not modified and
// the result depends only on its arguments.
//
// Events keep source row order; for one row a status event precedes a
// regime event. The first row wins when an id repeats.
func Diff(prior entity.Snapshot, raw [][]string, table *normalize.Table, now time.Time) DiffResult {
	rows, skipped := ParseRows(raw, table)
	res := DiffResult{
		Candidate: entity.NewSnapshot(),
		Skipped:   skipped,
	}
	if len(raw) > 1 {
		res.Rows = len(raw) - 1
	}

	for _, r := range rows {
		if _, dup := res.Candidate.Records[r.ID]; dup {
			res.Duplicates++
			slog.Debug("duplicate id ignored", "line", r.Line, "id", r.ID)
			continue
		}

		before, known := prior.Get(r.ID)
		if !known {
			after := entity.Record{Status: r.Status, Regime: r.Regime}
			res.Candidate.Records[r.ID] = after
			res.Events = append(res.Events, entity.Event{
				Type: entity.EventNewEntity, EntityID: r.ID, Name: r.Name, After: after, At: now,
			})
			continue
		}

		// Older state files may hold tokens written before a synonym was
		// added; compare canonical forms only.
		before = entity.Record{
			Status: table.Normalize(entity.KindStatus, before.Status),
			Regime: table.Normalize(entity.KindRegime, before.Regime),
		}

		after := entity.Record{Status: r.Status, Regime: r.Regime}
		if after.Regime == "" && before.Regime != "" {
			// An empty cell over a known regime is a read taken mid-edit.
			after.Regime = before.Regime
		}
		res.Candidate.Records[r.ID] = after

		if after.Status != before.Status {
			res.Events = append(res.Events, entity.Event{
				Type: entity.EventStatusChange, EntityID: r.ID, Name: r.Name,
				Before: before, After: after, At: now,
			})
		}
		if after.Regime != before.Regime {
			typ := entity.EventRegimeChange
			if before.Regime == "" {
				typ = entity.EventRegimeDefined
			}
			res.Events = append(res.Events, entity.Event{
				Type: typ, EntityID: r.ID, Name: r.Name,
				Before: before, After: after, At: now,
			})
		}
	}

	for id := range prior.Records {
		if _, ok := res.Candidate.Records[id]; !ok {
			res.Departed = append(res.Departed, id)
		}
	}
	sort.Strings(res.Departed)
	return res
}
