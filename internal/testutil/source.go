// Package testutil provides scripted collaborators for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
)

// Response is one scripted fetch result.
type Response struct {
	Rows [][]string
	Err  error
}

// Source is a scripted source.Source.
//
// Fetch returns queued responses in order. Once the queue is empty it keeps
// returning the rows of the last successful response, which models an
// unchanged table.
//
// Thread-safety: all methods are safe for concurrent use.
type Source struct {
	mu    sync.Mutex
	queue []Response
	last  [][]string
	calls int
}

// NewSource returns a source that serves each table once, then the last
// table forever.
func NewSource(tables ...[][]string) *Source {
	s := &Source{}
	for _, t := range tables {
		s.Push(t)
	}
	return s
}

// Push queues a successful fetch.
func (s *Source) Push(rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, Response{Rows: rows})
}

// PushError queues a failed fetch.
func (s *Source) PushError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, Response{Err: err})
}

// Fetch implements source.Source.
func (s *Source) Fetch(ctx context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.queue) == 0 {
		return s.last, nil
	}
	r := s.queue[0]
	s.queue = s.queue[1:]
	if r.Err != nil {
		return nil, r.Err
	}
	s.last = r.Rows
	return r.Rows, nil
}

// Describe implements source.Source.
func (s *Source) Describe() string {
	return "scripted"
}

// Calls returns how many times Fetch was called.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Header is the header row used by Table.
var Header = []string{"Código", "Empresa", "Status", "Regime Tributário"}

// Table returns Header followed by rows.
func Table(rows ...[]string) [][]string {
	return append([][]string{Header}, rows...)
}

// Row builds one source row; an empty regime produces a 3-column row.
func Row(id, name, status, regime string) []string {
	if regime == "" {
		return []string{id, name, status}
	}
	return []string{id, name, status, regime}
}

// Entities returns a table of n entities with ids "1".."n".
func Entities(n int, status, regime string) [][]string {
	rows := make([][]string, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, Row(fmt.Sprint(i), fmt.Sprintf("Empresa %d", i), status, regime))
	}
	return Table(rows...)
}
