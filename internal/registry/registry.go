// Package registry owns the canonicalize, hash and insert-once pipeline for
// function signatures on top of a pluggable Store.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skelly-dev/sigreg/internal/abitype"
	"github.com/skelly-dev/sigreg/internal/observability"
	"github.com/skelly-dev/sigreg/internal/selector"
)

type Registry struct {
	store     Store
	normalize Normalizer
	logger    *zap.Logger
	cache     *bigcache.BigCache
	metrics   *observability.Metrics
	now       func() time.Time
	newID     func() string
}

// Normalizer turns raw signature text into its canonical form.
type Normalizer func(raw string) (string, error)

type Option func(*Registry)

// WithNormalizer replaces abitype.Normalize as the canonicalization step.
func WithNormalizer(normalize Normalizer) Option {
	return func(r *Registry) {
		if normalize != nil {
			r.normalize = normalize
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCache enables a read-through cache of committed records keyed by
// canonical text. Records are immutable so entries never go stale.
func WithCache(cache *bigcache.BigCache) Option {
	return func(r *Registry) {
		r.cache = cache
	}
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		normalize: abitype.Normalize,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewCache builds a bigcache instance suitable for WithCache.
func NewCache(ctx context.Context, lifeWindow time.Duration) (*bigcache.BigCache, error) {
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.Shards = 64
	cfg.MaxEntrySize = 256
	cfg.Verbose = false
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create signature cache: %w", err)
	}
	return cache, nil
}

// Canonicalize normalizes raw text with abitype.Normalize and applies the
// idempotence guard.
func Canonicalize(raw string) (string, error) {
	return canonicalize(abitype.Normalize, raw)
}

// canonicalize rejects raw when normalize fails, and when normalizing the
// result again does not return it unchanged.
func canonicalize(normalize Normalizer, raw string) (string, error) {
	canonical, err := normalize(raw)
	if err != nil {
		return "", invalid(raw, ReasonUnknownFormat, err)
	}
	if again, err := normalize(canonical); err != nil || again != canonical {
		return "", invalid(raw, ReasonNotNormalized, nil)
	}
	return canonical, nil
}

// ImportOne canonicalizes raw and persists it unless the canonical text is
// already known. created reports whether this call inserted the record.
// Invalid input fails with an *InvalidSignatureError.
func (r *Registry) ImportOne(ctx context.Context, raw string) (Signature, bool, error) {
	canonical, err := canonicalize(r.normalize, raw)
	if err != nil {
		r.metrics.ObserveImport(OutcomeUnparseable.String())
		return Signature{}, false, err
	}
	sig, created, err := r.insertCanonical(ctx, canonical)
	if err != nil {
		return Signature{}, false, err
	}
	if created {
		r.metrics.ObserveImport(OutcomeImported.String())
	} else {
		r.metrics.ObserveImport(OutcomeDuplicate.String())
	}
	return sig, created, nil
}

// Classify is the batch-safe form of ImportOne: invalid input is reported
// as OutcomeUnparseable instead of an error. Only storage failures return
// a non-nil error.
func (r *Registry) Classify(ctx context.Context, raw string) (Outcome, Signature, error) {
	sig, created, err := r.ImportOne(ctx, raw)
	switch {
	case errors.Is(err, ErrInvalidSignature):
		r.logger.Debug("skipping unparseable candidate", zap.String("raw", raw), zap.Error(err))
		return OutcomeUnparseable, Signature{}, nil
	case err != nil:
		return OutcomeUnparseable, Signature{}, err
	case created:
		return OutcomeImported, sig, nil
	default:
		return OutcomeDuplicate, sig, nil
	}
}

// Lookup canonicalizes raw and returns the stored record, if any.
func (r *Registry) Lookup(ctx context.Context, raw string) (Signature, bool, error) {
	canonical, err := canonicalize(r.normalize, raw)
	if err != nil {
		return Signature{}, false, err
	}
	return r.find(ctx, canonical)
}

func (r *Registry) FindBySelector(ctx context.Context, sel selector.Selector) ([]Signature, error) {
	return r.store.FindBySelector(ctx, sel)
}

func (r *Registry) List(ctx context.Context, opts ListOptions) ([]Signature, error) {
	return r.store.List(ctx, opts)
}

func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

func (r *Registry) insertCanonical(ctx context.Context, canonical string) (Signature, bool, error) {
	existing, found, err := r.find(ctx, canonical)
	if err != nil {
		return Signature{}, false, err
	}
	if found {
		return existing, false, nil
	}

	candidate := Signature{
		ID:            r.newID(),
		TextSignature: canonical,
		CreatedAt:     r.now().UTC(),
	}
	stored, err := r.store.InsertUnique(ctx, candidate)
	if errors.Is(err, ErrAlreadyExists) {
		winner, found, findErr := r.store.FindByText(ctx, canonical)
		if findErr != nil {
			return Signature{}, false, findErr
		}
		if !found {
			return Signature{}, false, fmt.Errorf("signature %q reported as existing but not found", canonical)
		}
		r.remember(winner)
		return winner, false, nil
	}
	if err != nil {
		return Signature{}, false, err
	}

	r.remember(stored)
	r.logger.Debug("signature imported",
		zap.String("id", stored.ID),
		zap.String("text_signature", stored.TextSignature),
		zap.String("hex_signature", stored.HexSignature()),
	)
	return stored, true, nil
}

func (r *Registry) find(ctx context.Context, canonical string) (Signature, bool, error) {
	if sig, ok := r.recall(canonical); ok {
		return sig, true, nil
	}
	sig, found, err := r.store.FindByText(ctx, canonical)
	if err != nil {
		return Signature{}, false, err
	}
	if found {
		r.remember(sig)
	}
	return sig, found, nil
}

func (r *Registry) recall(canonical string) (Signature, bool) {
	if r.cache == nil {
		return Signature{}, false
	}
	data, err := r.cache.Get(canonical)
	if err != nil {
		return Signature{}, false
	}
	var sig Signature
	if err := json.Unmarshal(data, &sig); err != nil {
		return Signature{}, false
	}
	return sig, true
}

func (r *Registry) remember(sig Signature) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(sig)
	if err != nil {
		return
	}
	if err := r.cache.Set(sig.TextSignature, data); err != nil {
		r.logger.Warn("failed to cache signature", zap.String("text_signature", sig.TextSignature), zap.Error(err))
	}
}
