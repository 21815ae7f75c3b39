package memory

import (
	"context"
	"fmt"
	"sync"

	"finance/internal/core"
	ports "finance/internal/sheets"
)

var _ ports.TransactionWriter = (*Store)(nil)

// Store keeps the last exported sheet in memory.
type Store struct {
	mu     sync.Mutex
	rows   [][]any
	writes int
	err    error
}

func New() *Store {
	return &Store{}
}

// FailWith makes subsequent writes fail with err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ReplaceAll stores the rows and returns a synthetic range reference.
func (s *Store) ReplaceAll(_ context.Context, txs []core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.rows = ports.Rows(txs)
	s.writes++
	return fmt.Sprintf("mem!A1:E%d", len(s.rows)), nil
}

// Rows returns a copy of the last written rows, header included.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// Writes counts successful ReplaceAll calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
