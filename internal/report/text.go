package report

import (
	"fmt"
	"strings"

	"github.com/roach88/sheetwatch/internal/entity"
	"github.com/roach88/sheetwatch/internal/ledger"
	"github.com/roach88/sheetwatch/internal/normalize"
)

const textTimeLayout = "02/01/2006 15:04"

// TextRenderer renders plain-text reports with fixed-width columns.
type TextRenderer struct{}

var _ Renderer = TextRenderer{}

// RenderMonthly implements Renderer.
func (TextRenderer) RenderMonthly(period string, entry ledger.MonthlyEntry) (string, error) {
	st := entry.Stats()
	var b strings.Builder

	fmt.Fprintf(&b, "Relatório mensal %s\n\n", period)
	fmt.Fprintf(&b, "Alterações:         %d\n", st.Total)
	fmt.Fprintf(&b, "  de status:        %d\n", st.StatusChanges)
	fmt.Fprintf(&b, "  de regime:        %d\n", st.RegimeChanges)
	fmt.Fprintf(&b, "Empresas afetadas:  %d\n", st.DistinctEntities)
	fmt.Fprintf(&b, "Novas pendências:   %d\n", st.IntoFlagged)
	fmt.Fprintf(&b, "Regularizações:     %d\n", st.Resolved)

	if len(st.ByNewStatus) > 0 {
		b.WriteString("\nNovo status:\n")
		for _, c := range ledger.Ranked(st.ByNewStatus) {
			fmt.Fprintf(&b, "  %-28s %3d\n", c.Value, c.N)
		}
	}
	if len(st.ByNewRegime) > 0 {
		b.WriteString("\nNovo regime:\n")
		for _, c := range ledger.Ranked(st.ByNewRegime) {
			fmt.Fprintf(&b, "  %-28s %3d\n", normalize.RegimeLabel(c.Value), c.N)
		}
	}

	b.WriteString("\nEventos:\n")
	for _, ev := range entry.Events {
		kind := "status"
		previous, current := ev.Previous, ev.New
		if ev.Kind == entity.KindRegime {
			kind = "regime"
			previous, current = normalize.RegimeLabel(previous), normalize.RegimeLabel(current)
		}
		fmt.Fprintf(&b, "  %s  %-8s %-24s %-6s %s → %s\n",
			ev.Timestamp.Format(textTimeLayout), ev.EntityID, clip(ev.Name, 24), kind, previous, current)
	}
	return b.String(), nil
}

// RenderWeekly implements Renderer.
func (TextRenderer) RenderWeekly(week string, roster ledger.WeeklyRoster) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Empresas suspensas %s\n\n", week)
	fmt.Fprintf(&b, "Total: %d\n\n", roster.Count)
	for _, e := range roster.Sorted() {
		fmt.Fprintf(&b, "  %s  %-8s %s\n", e.Timestamp.Format(textTimeLayout), e.EntityID, e.Name)
	}
	return b.String(), nil
}

// clip shortens s to n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
