package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sheetwatch/internal/entity"
)

//go:embed synonyms.yaml
var defaultSynonyms []byte

// Canonical status tokens referenced by routing.
const (
	StatusActive     = "ATIVA"
	StatusInactive   = "INATIVA"
	StatusWrittenOff = "BAIXADA"
	StatusReturned   = "DEVOLVIDA"
	StatusSuspended  = "SUSPENSA"
)

// flaggedStatuses is the set of canonical statuses that require attention.
var flaggedStatuses = map[string]bool{
	StatusInactive:   true,
	StatusWrittenOff: true,
	StatusReturned:   true,
	StatusSuspended:  true,
}

var regimeLabels = map[string]string{
	"SN":     "Simples Nacional",
	"LP":     "Lucro Presumido",
	"LR":     "Lucro Real",
	"MEI":    "Microempreendedor Individual",
	"IGREJA": "Organização Religiosa",
	"ISENTO": "Regime Isento",
}

// tableFile is the on-disk shape of a synonym table.
type tableFile struct {
	Status map[string][]string `yaml:"status"`
	Regime map[string][]string `yaml:"regime"`
}

// Table is an immutable synonym table. Safe for concurrent use.
type Table struct {
	exact  map[entity.ChangeKind]map[string]string
	folded map[entity.ChangeKind]map[string]string
}

// Parse builds a Table from YAML. Two canonical tokens whose variants fold
// to the same key are rejected, since lookups would become order dependent.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse synonym table: %w", err)
	}

	t := &Table{
		exact:  make(map[entity.ChangeKind]map[string]string),
		folded: make(map[entity.ChangeKind]map[string]string),
	}
	for kind, entries := range map[entity.ChangeKind]map[string][]string{
		entity.KindStatus: f.Status,
		entity.KindRegime: f.Regime,
	} {
		exact := make(map[string]string)
		folded := make(map[string]string)
		for canonical, variants := range entries {
			canonical = upperTrim(canonical)
			if canonical == "" {
				return nil, fmt.Errorf("parse synonym table: empty %s token", kind)
			}
			for _, v := range append([]string{canonical}, variants...) {
				key := upperTrim(v)
				if prev, ok := exact[key]; ok && prev != canonical {
					return nil, fmt.Errorf("parse synonym table: %s variant %q maps to both %q and %q", kind, key, prev, canonical)
				}
				exact[key] = canonical

				fk := fold(key)
				if prev, ok := folded[fk]; ok && prev != canonical {
					return nil, fmt.Errorf("parse synonym table: %s variant %q folds into %q and %q", kind, key, prev, canonical)
				}
				folded[fk] = canonical
			}
		}
		t.exact[kind] = exact
		t.folded[kind] = folded
	}
	return t, nil
}

// LoadFile reads a synonym table from a YAML file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load synonym table: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded synonym table.
func Default() *Table {
	return defaultTable
}

var defaultTable = mustParse(defaultSynonyms)

func mustParse(data []byte) *Table {
	t, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return t
}

// Normalize maps raw to its canonical token for kind.
func (t *Table) Normalize(kind entity.ChangeKind, raw string) string {
	key := upperTrim(raw)
	if key == "" {
		return ""
	}
	if c, ok := t.exact[kind][key]; ok {
		return c
	}
	if c, ok := t.folded[kind][fold(key)]; ok {
		return c
	}
	return key
}

// IsFlagged reports whether status, once normalized, is one of the statuses
// that must be surfaced proactively. This is the single predicate used by
// routing and by listings.
func (t *Table) IsFlagged(status string) bool {
	return flaggedStatuses[t.Normalize(entity.KindStatus, status)]
}

// Normalize maps raw with the default table.
func Normalize(kind entity.ChangeKind, raw string) string {
	return defaultTable.Normalize(kind, raw)
}

// IsFlagged applies the flagged-status predicate with the default table.
func IsFlagged(status string) bool {
	return defaultTable.IsFlagged(status)
}

// FlaggedStatuses returns the flagged canonical statuses in a stable order.
func FlaggedStatuses() []string {
	return []string{StatusInactive, StatusWrittenOff, StatusReturned, StatusSuspended}
}

// RegimeLabel returns the display name of a regime token, or the token
// itself when unknown. The empty regime renders as an em dash placeholder.
func RegimeLabel(regime string) string {
	if regime == "" {
		return "—"
	}
	if label, ok := regimeLabels[regime]; ok {
		return label
	}
	return regime
}

func upperTrim(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	separators    = strings.NewReplacer(".", "", "-", " ", "_", " ", "/", " ")
)

// fold reduces s to a lookup key: no combining marks, no parenthetical
// groups, dots removed, other separators turned into single spaces.
func fold(s string) string {
	// A fresh chain per call; transform.Transformer is not safe for
	// concurrent use.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = parenthetical.ReplaceAllString(stripped, " ")
	stripped = separators.Replace(stripped)
	return strings.Join(strings.Fields(strings.ToUpper(stripped)), " ")
}
