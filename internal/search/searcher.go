package search

import (
	"context"
	"sync"

	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/selector"
)

// Searcher keeps an index over a registry. The registry is append-only, so a
// changed record count is enough to detect a stale index.
type Searcher struct {
	reg *registry.Registry

	mu    sync.Mutex
	index *Index
	count int
}

func NewSearcher(reg *registry.Registry) *Searcher {
	return &Searcher{reg: reg, count: -1}
}

// Search answers a hex selector with an exact lookup and anything else with
// a ranked text search.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if selector.IsHex(query) {
		sel, err := selector.ParseHex(query)
		if err != nil {
			return nil, err
		}
		matches, err := s.reg.FindBySelector(ctx, sel)
		if err != nil {
			return nil, err
		}
		results := make([]Result, 0, len(matches))
		for _, sig := range matches {
			results = append(results, Result{ID: sig.ID, TextSignature: sig.TextSignature, Score: 1})
		}
		if limit > 0 && len(results) > limit {
			results = results[:limit]
		}
		return results, nil
	}

	index, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return Search(index, query, limit), nil
}

func (s *Searcher) current(ctx context.Context) (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.reg.Count(ctx)
	if err != nil {
		return nil, err
	}
	if s.index != nil && count == s.count {
		return s.index, nil
	}

	sigs, err := s.reg.List(ctx, registry.ListOptions{})
	if err != nil {
		return nil, err
	}
	s.index = Build(sigs)
	s.count = count
	return s.index, nil
}
