package analysis

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory result store.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]*Result
}

// NewMemoryStore creates a new in-memory result store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results: make(map[string]*Result),
	}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) SaveResult(ctx context.Context, res *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *res
	m.results[res.ID] = &cp
	return nil
}

func (m *MemoryStore) GetResult(ctx context.Context, id string) (*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res, ok := m.results[id]
	if !ok {
		return nil, ErrResultNotFound
	}
	cp := *res
	return &cp, nil
}

func (m *MemoryStore) ListResults(ctx context.Context, graphID string, limit int) ([]*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	results := make([]*Result, 0)
	for _, res := range m.results {
		if res.GraphID == graphID {
			cp := *res
			results = append(results, &cp)
		}
	}
	sortResults(results)

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemoryStore) Prune(ctx context.Context, cutoff time.Time, keepPerGraph int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, res := range m.results {
		if res.AnalysisTimestamp.Before(cutoff) {
			delete(m.results, id)
			removed++
		}
	}

	if keepPerGraph > 0 {
		byGraph := make(map[string][]*Result)
		for _, res := range m.results {
			byGraph[res.GraphID] = append(byGraph[res.GraphID], res)
		}
		for _, results := range byGraph {
			if len(results) <= keepPerGraph {
				continue
			}
			sortResults(results)
			for _, res := range results[keepPerGraph:] {
				delete(m.results, res.ID)
				removed++
			}
		}
	}

	return removed, nil
}

// sortResults orders newest first, id as tie-break.
func sortResults(results []*Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].AnalysisTimestamp.Equal(results[j].AnalysisTimestamp) {
			return results[i].ID > results[j].ID
		}
		return results[i].AnalysisTimestamp.After(results[j].AnalysisTimestamp)
	})
}
