package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetwatch/internal/entity"
	"github.com/roach88/sheetwatch/internal/ledger"
	"github.com/roach88/sheetwatch/internal/notify"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

func change(id, name string, kind entity.ChangeKind, from, to string, ts time.Time) entity.ChangeEvent {
	return entity.ChangeEvent{
		ID:        id + ts.Format("0215"),
		EntityID:  id,
		Name:      name,
		Kind:      kind,
		Previous:  from,
		New:       to,
		Timestamp: ts,
	}
}

// newReporter returns a Reporter over ledgers holding March 2025 and ISO
// week 2025-W11.
func newReporter(t *testing.T, renderer Renderer) *Reporter {
	t.Helper()
	dir := t.TempDir()
	monthly, err := ledger.OpenMonthly(filepath.Join(dir, "monthly.json"))
	require.NoError(t, err)
	weekly, err := ledger.OpenWeekly(filepath.Join(dir, "weekly.json"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = monthly.Close()
		_ = weekly.Close()
	})

	monthly.RecordChange(change("100", "Acme Comércio Ltda", entity.KindStatus, "ATIVA", "INATIVA", at(3, 10, 15)))
	monthly.RecordChange(change("200", "Beta Serviços", entity.KindStatus, "ATIVA", "SUSPENSA", at(5, 14, 0)))
	monthly.RecordChange(change("100", "Acme Comércio Ltda", entity.KindStatus, "INATIVA", "ATIVA", at(12, 8, 30)))
	monthly.RecordChange(change("300", "Companhia Gamma de Transportes Rodoviários", entity.KindRegime, "SN", "LP", at(20, 16, 45)))

	weekly.RecordFlagged("200", "Beta Serviços", at(11, 9, 0))
	weekly.RecordFlagged("400", "Delta Indústria", at(10, 9, 5))

	return New(monthly, weekly, renderer)
}

func TestReporter_Monthly(t *testing.T) {
	r := newReporter(t, nil)

	entry, err := r.Monthly("2025-03")
	require.NoError(t, err)
	assert.Equal(t, 4, entry.Total)

	_, err = r.Monthly("2025-02")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = r.Monthly("March")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData, "bad keys are errors, not empty periods")
}

func TestReporter_Weekly(t *testing.T) {
	r := newReporter(t, nil)

	roster, err := r.Weekly("2025-W11")
	require.NoError(t, err)
	assert.Equal(t, 2, roster.Count)

	_, err = r.Weekly("2025-W12")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = r.Weekly("2025-11")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestReporter_RendererUnavailable(t *testing.T) {
	r := newReporter(t, nil)
	assert.False(t, r.CanRender())

	_, err := r.RenderMonthly("2025-03")
	assert.ErrorIs(t, err, ErrRendererUnavailable)
	_, err = r.RenderWeekly("2025-W11")
	assert.ErrorIs(t, err, ErrRendererUnavailable)
	_, err = r.MonthlyNotification(at(31, 9, 0))
	assert.ErrorIs(t, err, ErrRendererUnavailable)
}

func TestReporter_NoDataBeatsRendering(t *testing.T) {
	r := newReporter(t, TextRenderer{})
	_, err := r.RenderMonthly("2024-12")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestTextRenderer_Golden(t *testing.T) {
	r := newReporter(t, TextRenderer{})
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	monthly, err := r.RenderMonthly("2025-03")
	require.NoError(t, err)
	g.Assert(t, "monthly_2025-03", []byte(monthly))

	weekly, err := r.RenderWeekly("2025-W11")
	require.NoError(t, err)
	g.Assert(t, "weekly_2025-W11", []byte(weekly))
}

func TestMonthlyNotification_PreviousPeriod(t *testing.T) {
	r := newReporter(t, TextRenderer{})
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	n, err := r.MonthlyNotification(now)
	require.NoError(t, err)
	assert.Equal(t, notify.KindReport, n.Kind)
	assert.Equal(t, notify.DestReports, n.Destination)
	assert.Equal(t, "Relatório mensal 2025-03", n.Title)
	assert.Contains(t, n.Body, "Alterações:         4")
}

func TestWeeklyNotification_PreviousWeek(t *testing.T) {
	r := newReporter(t, TextRenderer{})

	// Monday of 2025-W12.
	n, err := r.WeeklyNotification(time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "Empresas suspensas 2025-W11", n.Title)
	assert.Contains(t, n.Body, "Delta Indústria")

	_, err = r.WeeklyNotification(time.Date(2025, 3, 24, 9, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "Acme", clip("Acme", 24))
	assert.Equal(t, "Companh…", clip("Companhia", 8))
}
