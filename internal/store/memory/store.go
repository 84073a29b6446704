// Package memory provides a process-local signature store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/selector"
)

var _ registry.Store = (*Store)(nil)

type Store struct {
	mu         sync.RWMutex
	byText     map[string]registry.Signature
	bySelector map[selector.Selector][]string
}

func New() *Store {
	return &Store{
		byText:     make(map[string]registry.Signature),
		bySelector: make(map[selector.Selector][]string),
	}
}

func (s *Store) FindByText(_ context.Context, text string) (registry.Signature, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.byText[text]
	return sig, ok, nil
}

func (s *Store) FindBySelector(_ context.Context, sel selector.Selector) ([]registry.Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	texts := s.bySelector[sel]
	out := make([]registry.Signature, 0, len(texts))
	for _, text := range texts {
		out = append(out, s.byText[text])
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TextSignature < out[j].TextSignature
	})
	return out, nil
}

// InsertUnique performs the uniqueness check and the insert under one lock.
func (s *Store) InsertUnique(_ context.Context, sig registry.Signature) (registry.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byText[sig.TextSignature]; exists {
		return registry.Signature{}, registry.ErrAlreadyExists
	}
	s.byText[sig.TextSignature] = sig
	sel := sig.Selector()
	s.bySelector[sel] = append(s.bySelector[sel], sig.TextSignature)
	return sig, nil
}

func (s *Store) List(_ context.Context, opts registry.ListOptions) ([]registry.Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	texts := make([]string, 0, len(s.byText))
	for text := range s.byText {
		texts = append(texts, text)
	}
	sort.Strings(texts)
	texts = Page(texts, opts)

	out := make([]registry.Signature, 0, len(texts))
	for _, text := range texts {
		out = append(out, s.byText[text])
	}
	return out, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byText), nil
}

func (s *Store) Close() error {
	return nil
}

// Page applies offset/limit to an already ordered slice.
func Page[T any](items []T, opts registry.ListOptions) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return items[:0]
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}
