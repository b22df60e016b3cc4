package executor

import (
	"context"
	"sync"

	"github.com/insanalamin/mechaway/pkg/types"
)

// fakeProjectStore is an in-memory ProjectStore for table-node tests,
// standing in for pkg/storage's SQLite-backed implementation.
type fakeProjectStore struct {
	mu      sync.Mutex
	rows    map[string][]map[string]types.Value
	nextID  map[string]int64
	err     error
	where   string
	args    []types.Value
	limit   int
	orderBy string
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{
		rows:   make(map[string][]map[string]types.Value),
		nextID: make(map[string]int64),
	}
}

func (s *fakeProjectStore) WriteRow(ctx context.Context, table string, row map[string]types.Value) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID[table]++
	id := s.nextID[table]
	s.rows[table] = append(s.rows[table], row)
	return id, nil
}

func (s *fakeProjectStore) ReadRows(ctx context.Context, table string, limit, offset int, orderBy string) ([]map[string]types.Value, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderBy = orderBy
	all := s.rows[table]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]map[string]types.Value, end-offset)
	copy(out, all[offset:end])
	return out, nil
}

func (s *fakeProjectStore) QueryRows(ctx context.Context, table, where string, args []types.Value, limit int, orderBy string) ([]map[string]types.Value, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.where, s.args, s.limit, s.orderBy = where, args, limit, orderBy
	return s.rows[table], nil
}
