// Package filestore keeps the registry in a JSON snapshot on disk.
//
// Every operation holds an OS lock on "<path>.lock" (shared for reads,
// exclusive for inserts) and reloads the snapshot when another process has
// changed it, so several processes can share one file.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/selector"
	"github.com/skelly-dev/sigreg/internal/store/memory"
)

const lockRetryDelay = 10 * time.Millisecond

var _ registry.Store = (*Store)(nil)

// stamp identifies the snapshot version held in memory. The snapshot only
// grows, so a changed size or mtime means another writer got in.
type stamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

func (a stamp) equal(b stamp) bool {
	return a.exists == b.exists && a.size == b.size && a.modTime.Equal(b.modTime)
}

type Store struct {
	path  string
	lock  *flock.Flock
	mu    sync.Mutex
	state *State
	seen  stamp
}

// Open loads the snapshot at path, creating an empty registry if the file
// does not exist yet.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("registry snapshot path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	s := &Store{path: path, lock: flock.New(path + ".lock")}
	if err := s.withLock(context.Background(), false, func() error { return nil }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

// withLock runs fn on an up-to-date snapshot while holding the file lock.
func (s *Store) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acquire := s.lock.TryRLockContext
	if exclusive {
		acquire = s.lock.TryLockContext
	}
	locked, err := acquire(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock registry snapshot %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("failed to lock registry snapshot %s", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := s.reload(); err != nil {
		return err
	}
	return fn()
}

func (s *Store) reload() error {
	current, err := s.stat()
	if err != nil {
		return fmt.Errorf("failed to stat registry snapshot %s: %w", s.path, err)
	}
	if s.state != nil && current.equal(s.seen) {
		return nil
	}
	state, err := LoadState(s.path)
	if err != nil {
		return fmt.Errorf("failed to load registry snapshot %s: %w", s.path, err)
	}
	s.state = state
	s.seen = current
	return nil
}

func (s *Store) stat() (stamp, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return stamp{}, nil
	}
	if err != nil {
		return stamp{}, err
	}
	return stamp{exists: true, size: info.Size(), modTime: info.ModTime()}, nil
}

func (s *Store) FindByText(ctx context.Context, text string) (registry.Signature, bool, error) {
	var (
		sig   registry.Signature
		found bool
	)
	err := s.withLock(ctx, false, func() error {
		sig, found = s.state.Signatures[text]
		return nil
	})
	return sig, found, err
}

func (s *Store) FindBySelector(ctx context.Context, sel selector.Selector) ([]registry.Signature, error) {
	out := make([]registry.Signature, 0)
	err := s.withLock(ctx, false, func() error {
		for _, sig := range s.state.Signatures {
			if sig.Selector() == sel {
				out = append(out, sig)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TextSignature < out[j].TextSignature
	})
	return out, nil
}

// InsertUnique reloads, checks, inserts and persists under the exclusive
// file lock. A failed write rolls the in-memory insert back.
func (s *Store) InsertUnique(ctx context.Context, sig registry.Signature) (registry.Signature, error) {
	err := s.withLock(ctx, true, func() error {
		if _, exists := s.state.Signatures[sig.TextSignature]; exists {
			return registry.ErrAlreadyExists
		}
		s.state.Signatures[sig.TextSignature] = sig
		if err := s.state.Save(s.path); err != nil {
			delete(s.state.Signatures, sig.TextSignature)
			return fmt.Errorf("failed to persist registry snapshot: %w", err)
		}
		current, err := s.stat()
		if err != nil {
			// Force a reload next time.
			s.seen = stamp{}
			return nil
		}
		s.seen = current
		return nil
	})
	if err != nil {
		return registry.Signature{}, err
	}
	return sig, nil
}

func (s *Store) List(ctx context.Context, opts registry.ListOptions) ([]registry.Signature, error) {
	var out []registry.Signature
	err := s.withLock(ctx, false, func() error {
		texts := make([]string, 0, len(s.state.Signatures))
		for text := range s.state.Signatures {
			texts = append(texts, text)
		}
		sort.Strings(texts)
		texts = memory.Page(texts, opts)

		out = make([]registry.Signature, 0, len(texts))
		for _, text := range texts {
			out = append(out, s.state.Signatures[text])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.withLock(ctx, false, func() error {
		n = len(s.state.Signatures)
		return nil
	})
	return n, err
}

func (s *Store) Close() error {
	return s.lock.Close()
}
