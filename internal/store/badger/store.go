// Package badger stores signatures in a BadgerDB key space:
//
//	sig/text/<canonical text>            -> JSON record
//	sig/sel/<4 selector bytes><text>     -> empty, selector index
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/selector"
)

var (
	textPrefix     = []byte("sig/text/")
	selectorPrefix = []byte("sig/sel/")
)

var _ registry.Store = (*Store)(nil)

// Options configures the BadgerDB instance.
type Options struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *zap.Logger
}

type Store struct {
	db     *badgerdb.DB
	logger *zap.Logger
}

func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var badgerOpts badgerdb.Options
	if opts.InMemory {
		badgerOpts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("badger store requires a path")
		}
		if err := os.MkdirAll(opts.Path, 0700); err != nil {
			return nil, fmt.Errorf("failed to create badger directory %s: %w", opts.Path, err)
		}
		badgerOpts = badgerdb.DefaultOptions(opts.Path)
	}
	badgerOpts = badgerOpts.
		WithSyncWrites(opts.SyncWrites).
		WithLogger(newBadgerLogger(logger)).
		WithNumCompactors(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badgerdb.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	logger.Info("badger store opened", zap.String("path", opts.Path), zap.Bool("in_memory", opts.InMemory))
	return &Store{db: db, logger: logger}, nil
}

func textKey(text string) []byte {
	key := make([]byte, 0, len(textPrefix)+len(text))
	key = append(key, textPrefix...)
	return append(key, text...)
}

func selectorKey(sel selector.Selector, text string) []byte {
	key := make([]byte, 0, len(selectorPrefix)+selector.Size+len(text))
	key = append(key, selectorPrefix...)
	key = append(key, sel[:]...)
	return append(key, text...)
}

func (s *Store) FindByText(_ context.Context, text string) (registry.Signature, bool, error) {
	var (
		sig   registry.Signature
		found bool
	)
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		sig, found, err = getRecord(txn, text)
		return err
	})
	if err != nil {
		return registry.Signature{}, false, fmt.Errorf("badger lookup failed: %w", err)
	}
	return sig, found, nil
}

func getRecord(txn *badgerdb.Txn, text string) (registry.Signature, bool, error) {
	item, err := txn.Get(textKey(text))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return registry.Signature{}, false, nil
	}
	if err != nil {
		return registry.Signature{}, false, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return registry.Signature{}, false, err
	}
	var sig registry.Signature
	if err := json.Unmarshal(data, &sig); err != nil {
		return registry.Signature{}, false, fmt.Errorf("corrupt record for %q: %w", text, err)
	}
	return sig, true, nil
}

func (s *Store) FindBySelector(_ context.Context, sel selector.Selector) ([]registry.Signature, error) {
	prefix := selectorKey(sel, "")
	out := make([]registry.Signature, 0)

	err := s.db.View(func(txn *badgerdb.Txn) error {
		iterOpts := badgerdb.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			text := string(it.Item().Key()[len(prefix):])
			sig, found, err := getRecord(txn, text)
			if err != nil {
				return err
			}
			if found {
				out = append(out, sig)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger selector scan failed: %w", err)
	}
	return out, nil
}

// InsertUnique reads and writes the text key in one transaction. Badger's
// conflict detection aborts a concurrent writer of the same key with
// ErrConflict, which is reported as ErrAlreadyExists.
func (s *Store) InsertUnique(_ context.Context, sig registry.Signature) (registry.Signature, error) {
	data, err := json.Marshal(sig)
	if err != nil {
		return registry.Signature{}, err
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(textKey(sig.TextSignature))
		if err == nil {
			return registry.ErrAlreadyExists
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(textKey(sig.TextSignature), data); err != nil {
			return err
		}
		return txn.Set(selectorKey(sig.Selector(), sig.TextSignature), nil)
	})
	switch {
	case err == nil:
		return sig, nil
	case errors.Is(err, registry.ErrAlreadyExists), errors.Is(err, badgerdb.ErrConflict):
		return registry.Signature{}, registry.ErrAlreadyExists
	default:
		return registry.Signature{}, fmt.Errorf("badger insert failed: %w", err)
	}
}

func (s *Store) List(_ context.Context, opts registry.ListOptions) ([]registry.Signature, error) {
	out := make([]registry.Signature, 0)

	err := s.db.View(func(txn *badgerdb.Txn) error {
		iterOpts := badgerdb.DefaultIteratorOptions
		iterOpts.Prefix = textPrefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		skipped := 0
		for it.Seek(textPrefix); it.ValidForPrefix(textPrefix); it.Next() {
			if skipped < opts.Offset {
				skipped++
				continue
			}
			if opts.Limit > 0 && len(out) >= opts.Limit {
				return nil
			}
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var sig registry.Signature
			if err := json.Unmarshal(data, &sig); err != nil {
				return fmt.Errorf("corrupt record %q: %w", it.Item().Key(), err)
			}
			out = append(out, sig)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list failed: %w", err)
	}
	return out, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badgerdb.Txn) error {
		iterOpts := badgerdb.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = textPrefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(textPrefix); it.ValidForPrefix(textPrefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger count failed: %w", err)
	}
	return count, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger forwards badger's internal logging to zap.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func newBadgerLogger(logger *zap.Logger) *badgerLogger {
	return &badgerLogger{sugar: logger.Named("badger").Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}
