package normalize

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetwatch/internal/entity"
)

func TestNormalize_Status(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"INATIVO", StatusInactive},
		{"  inativa ", StatusInactive},
		{"Ativo", StatusActive},
		{"ATIVA (OK)", StatusActive},
		{"ativa (regular)", StatusActive},
		{"SUSPENSÃO", StatusSuspended},
		{"suspenso", StatusSuspended},
		{"Baixa (cancelada)", StatusWrittenOff},
		{"baixa de ofício", StatusWrittenOff},
		{"DEVOLUÇÃO", StatusReturned},
		{"em-abertura", "EM ABERTURA"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(entity.KindStatus, tt.raw))
		})
	}
}

func TestNormalize_Regime(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"SN", "SN"},
		{"s.n.", "SN"},
		{"Simples-Nacional", "SN"},
		{"simples nacional", "SN"},
		{"Lucro Presumido", "LP"},
		{"L.P.", "LP"},
		{"Organização Religiosa", "IGREJA"},
		{"mei", "MEI"},
		{"imune", "ISENTO"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(entity.KindRegime, tt.raw))
		})
	}
}

func TestNormalize_UnknownPassesThrough(t *testing.T) {
	assert.Equal(t, "EM ANÁLISE", Normalize(entity.KindStatus, " em análise "))
	assert.Equal(t, "LUCRO ARBITRADO", Normalize(entity.KindRegime, "lucro arbitrado"))
}

func TestNormalize_KindsAreSeparate(t *testing.T) {
	// A regime spelling is not a status synonym.
	assert.Equal(t, "SIMPLES", Normalize(entity.KindStatus, "simples"))
	assert.Equal(t, "SN", Normalize(entity.KindRegime, "simples"))
}

func TestIsFlagged(t *testing.T) {
	for _, s := range []string{"INATIVA", "inativo", "BAIXA", "cancelada", "DEVOLVIDA", "SUSPENSA", "suspenso"} {
		assert.True(t, IsFlagged(s), s)
	}
	for _, s := range []string{"ATIVA", "ativo", "PARALISADA", "EM ABERTURA", "", "DESCONHECIDA"} {
		assert.False(t, IsFlagged(s), s)
	}
}

func TestFlaggedStatuses_AllCanonical(t *testing.T) {
	for _, s := range FlaggedStatuses() {
		assert.Equal(t, s, Normalize(entity.KindStatus, s))
		assert.True(t, IsFlagged(s))
	}
}

func TestRegimeLabel(t *testing.T) {
	assert.Equal(t, "Simples Nacional", RegimeLabel("SN"))
	assert.Equal(t, "Organização Religiosa", RegimeLabel("IGREJA"))
	assert.Equal(t, "XPTO", RegimeLabel("XPTO"))
	assert.Equal(t, "—", RegimeLabel(""))
}

func TestParse_RejectsAmbiguousVariant(t *testing.T) {
	_, err := Parse([]byte(`
status:
  ATIVA: [REGULAR]
  INATIVA: [REGULAR]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REGULAR")
}

func TestParse_RejectsAmbiguousFold(t *testing.T) {
	_, err := Parse([]byte(`
regime:
  SN: ["S.N."]
  SIMPLES: ["sn."]
`))
	require.Error(t, err)
}

func TestParse_CustomTable(t *testing.T) {
	table, err := Parse([]byte(`
status:
  OPEN: [ABERTA]
`))
	require.NoError(t, err)
	assert.Equal(t, "OPEN", table.Normalize(entity.KindStatus, "aberta"))
	assert.Equal(t, "SN", table.Normalize(entity.KindRegime, "sn"))
	assert.Equal(t, "SIMPLES", table.Normalize(entity.KindRegime, "simples"))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("/nonexistent/synonyms.yaml")
	assert.Error(t, err)
}

func TestNormalize_IdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	kinds := []entity.ChangeKind{entity.KindStatus, entity.KindRegime}

	properties.Property("normalize(normalize(x)) == normalize(x) for any input", prop.ForAll(
		func(k int, raw string) bool {
			kind := kinds[k]
			once := Normalize(kind, raw)
			return Normalize(kind, once) == once
		},
		gen.IntRange(0, 1),
		gen.AnyString(),
	))

	properties.Property("idempotent for decorated table variants", prop.ForAll(
		func(k int, variant, suffix string) bool {
			kind := kinds[k]
			raw := "  " + variant + " (" + suffix + ")  "
			once := Normalize(kind, raw)
			return Normalize(kind, once) == once
		},
		gen.IntRange(0, 1),
		gen.OneConstOf("inativo", "Suspensão", "S.N.", "lucro-presumido", "BAIXA", "ativa"),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
