// Package normalize maps free-text status and regime cells to a canonical
// vocabulary.
//
// Lookup runs in two passes over a synonym table: an exact match on the
// upper-cased, trimmed input, then a match on its folded form (accents
// removed, parenthetical suffixes dropped, separators unified). Unknown
// inputs pass through upper-cased and trimmed; the table normalizes, it does
// not validate.
//
// Normalize is idempotent: every canonical token maps to itself, and an
// input that matches nothing is returned in a form that still matches
// nothing.
package normalize
