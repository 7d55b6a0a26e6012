// Package report answers period lookups against the history ledgers and
// turns them into rendered reports.
//
// Lookups distinguish "nothing recorded for this period" (ErrNoData) from
// failures, and rendering is an optional capability: a Reporter built
// without a Renderer reports ErrRendererUnavailable instead of failing
// somewhere deeper.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/sheetwatch/internal/entity"
	"github.com/roach88/sheetwatch/internal/ledger"
	"github.com/roach88/sheetwatch/internal/notify"
)

var (
	// ErrNoData means the ledger holds nothing for the requested key.
	ErrNoData = errors.New("report: no data for period")

	// ErrRendererUnavailable means no renderer is configured.
	ErrRendererUnavailable = errors.New("report: renderer unavailable")
)

// Renderer formats ledger contents for people.
type Renderer interface {
	RenderMonthly(period string, entry ledger.MonthlyEntry) (string, error)
	RenderWeekly(week string, roster ledger.WeeklyRoster) (string, error)
}

// Reporter reads the ledgers. It never writes to them.
type Reporter struct {
	monthly  *ledger.Monthly
	weekly   *ledger.Weekly
	renderer Renderer
}

// New returns a Reporter. renderer may be nil.
func New(monthly *ledger.Monthly, weekly *ledger.Weekly, renderer Renderer) *Reporter {
	return &Reporter{monthly: monthly, weekly: weekly, renderer: renderer}
}

// CanRender reports whether a renderer is configured.
func (r *Reporter) CanRender() bool {
	return r.renderer != nil
}

// Monthly returns the ledger entry for period ("YYYY-MM").
func (r *Reporter) Monthly(period string) (ledger.MonthlyEntry, error) {
	if _, err := entity.ParsePeriod(period); err != nil {
		return ledger.MonthlyEntry{}, fmt.Errorf("report: %w", err)
	}
	entry, ok := r.monthly.Get(period)
	if !ok || entry.Total == 0 {
		return ledger.MonthlyEntry{}, ErrNoData
	}
	return entry, nil
}

// Weekly returns the suspended roster for week ("YYYY-Www").
func (r *Reporter) Weekly(week string) (ledger.WeeklyRoster, error) {
	if _, _, err := entity.ParseWeekKey(week); err != nil {
		return ledger.WeeklyRoster{}, fmt.Errorf("report: %w", err)
	}
	roster, ok := r.weekly.Get(week)
	if !ok || roster.Count == 0 {
		return ledger.WeeklyRoster{}, ErrNoData
	}
	return roster, nil
}

// RenderMonthly looks up and renders period.
func (r *Reporter) RenderMonthly(period string) (string, error) {
	if !r.CanRender() {
		return "", ErrRendererUnavailable
	}
	entry, err := r.Monthly(period)
	if err != nil {
		return "", err
	}
	return r.renderer.RenderMonthly(period, entry)
}

// RenderWeekly looks up and renders week.
func (r *Reporter) RenderWeekly(week string) (string, error) {
	if !r.CanRender() {
		return "", ErrRendererUnavailable
	}
	roster, err := r.Weekly(week)
	if err != nil {
		return "", err
	}
	return r.renderer.RenderWeekly(week, roster)
}

// MonthlyNotification renders the period before now as a report notification.
func (r *Reporter) MonthlyNotification(now time.Time) (notify.Notification, error) {
	period := entity.PreviousPeriod(now)
	body, err := r.RenderMonthly(period)
	if err != nil {
		return notify.Notification{}, err
	}
	return notify.Notification{
		Kind:        notify.KindReport,
		Destination: notify.DestReports,
		Title:       "Relatório mensal " + period,
		Body:        body,
		At:          now,
	}, nil
}

// WeeklyNotification renders the ISO week before now as a report notification.
func (r *Reporter) WeeklyNotification(now time.Time) (notify.Notification, error) {
	week := entity.PreviousWeekKey(now)
	body, err := r.RenderWeekly(week)
	if err != nil {
		return notify.Notification{}, err
	}
	return notify.Notification{
		Kind:        notify.KindReport,
		Destination: notify.DestReports,
		Title:       "Empresas suspensas " + week,
		Body:        body,
		At:          now,
	}, nil
}
