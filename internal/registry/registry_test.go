package registry_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/sigreg/internal/abitype"
	"github.com/skelly-dev/sigreg/internal/observability"
	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/selector"
	"github.com/skelly-dev/sigreg/internal/store/memory"
)

func TestImportOneCreatesOnceAndReturnsExisting(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	reg := registry.New(memory.New(), registry.WithClock(func() time.Time { return fixed }))

	first, created, err := reg.ImportOne(ctx, "transfer(address to, uint amount)")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "transfer(address,uint256)", first.TextSignature)
	assert.Equal(t, "0xa9059cbb", first.HexSignature())
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, first.BytesSignature())
	assert.Equal(t, fixed, first.CreatedAt)
	assert.NotEmpty(t, first.ID)

	second, created, err := reg.ImportOne(ctx, "transfer ( address , uint256 )")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportOneRejectsMalformedInput(t *testing.T) {
	reg := registry.New(memory.New())

	_, _, err := reg.ImportOne(context.Background(), "transfer(address,")
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrInvalidSignature)
	assert.ErrorIs(t, err, abitype.ErrMalformedSignature)

	var invalid *registry.InvalidSignatureError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, registry.FieldTextSignature, invalid.Field)
	assert.Equal(t, registry.ReasonUnknownFormat, invalid.Reason)

	count, err := reg.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImportOneRejectsUnstableNormalization(t *testing.T) {
	ctx := context.Background()
	drifting := func(raw string) (string, error) { return raw + "_", nil }
	reg := registry.New(memory.New(), registry.WithNormalizer(drifting))

	_, _, err := reg.ImportOne(ctx, "pause()")
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrInvalidSignature)

	var invalid *registry.InvalidSignatureError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, registry.ReasonNotNormalized, invalid.Reason)
	assert.Equal(t, "pause()", invalid.Raw)

	outcome, _, err := reg.Classify(ctx, "pause()")
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeUnparseable, outcome)

	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestClassifyOutcomes(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics()
	reg := registry.New(memory.New(), registry.WithMetrics(metrics))

	outcome, _, err := reg.Classify(ctx, "approve(address,uint256)")
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeImported, outcome)

	outcome, sig, err := reg.Classify(ctx, "approve(address spender, uint value)")
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeDuplicate, outcome)
	assert.Equal(t, "approve(address,uint256)", sig.TextSignature)

	outcome, _, err = reg.Classify(ctx, "definitely not")
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeUnparseable, outcome)

	outcomes := metrics.ImportOutcomes()
	assert.Equal(t, 1.0, testutil.ToFloat64(outcomes.WithLabelValues("imported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(outcomes.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(outcomes.WithLabelValues("unparseable")))

	assert.Equal(t, "unparseable", registry.OutcomeUnparseable.String())
	assert.Equal(t, "unknown", registry.Outcome(42).String())
}

func TestLookupAndFindBySelector(t *testing.T) {
	ctx := context.Background()
	reg := registry.New(memory.New())

	_, _, err := reg.ImportOne(ctx, "balanceOf(address)")
	require.NoError(t, err)

	sig, found, err := reg.Lookup(ctx, "balanceOf( address owner )")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "balanceOf(address)", sig.TextSignature)

	_, found, err = reg.Lookup(ctx, "totalSupply()")
	require.NoError(t, err)
	assert.False(t, found)

	matches, err := reg.FindBySelector(ctx, selector.Compute("balanceOf(address)"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, sig.ID, matches[0].ID)

	_, _, err = reg.Lookup(ctx, "(")
	assert.ErrorIs(t, err, registry.ErrInvalidSignature)
}

func TestConcurrentImportsStoreOneRecord(t *testing.T) {
	ctx := context.Background()
	reg := registry.New(memory.New())

	const workers = 16
	var createdCount atomic.Int32
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, created, err := reg.ImportOne(ctx, "mint(address,uint256)")
			if err != nil {
				t.Errorf("ImportOne failed: %v", err)
				return
			}
			if created {
				createdCount.Add(1)
			}
			ids[i] = sig.ID
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), createdCount.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// lateStore hides an existing record from the first FindByText so the
// registry hits the InsertUnique conflict path.
type lateStore struct {
	*memory.Store
	misses atomic.Int32
}

func (s *lateStore) FindByText(ctx context.Context, text string) (registry.Signature, bool, error) {
	if s.misses.Add(1) == 1 {
		return registry.Signature{}, false, nil
	}
	return s.Store.FindByText(ctx, text)
}

func TestImportOneReturnsWinnerOnInsertConflict(t *testing.T) {
	ctx := context.Background()
	store := &lateStore{Store: memory.New()}
	winner, err := store.InsertUnique(ctx, registry.Signature{ID: "winner", TextSignature: "pause()"})
	require.NoError(t, err)

	sig, created, err := registry.New(store).ImportOne(ctx, "pause()")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, sig.ID)
}

// countingStore counts FindByText calls reaching storage.
type countingStore struct {
	*memory.Store
	finds atomic.Int32
}

func (s *countingStore) FindByText(ctx context.Context, text string) (registry.Signature, bool, error) {
	s.finds.Add(1)
	return s.Store.FindByText(ctx, text)
}

func TestCacheServesRepeatedLookups(t *testing.T) {
	ctx := context.Background()
	cache, err := registry.NewCache(ctx, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	store := &countingStore{Store: memory.New()}
	reg := registry.New(store, registry.WithCache(cache))

	created, isNew, err := reg.ImportOne(ctx, "unpause()")
	require.NoError(t, err)
	require.True(t, isNew)
	before := store.finds.Load()

	for range 3 {
		sig, found, err := reg.Lookup(ctx, "unpause()")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, created.ID, sig.ID)
	}
	_, isNew, err = reg.ImportOne(ctx, "unpause()")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, before, store.finds.Load())
}

type brokenStore struct {
	*memory.Store
}

var errStorage = errors.New("storage unavailable")

func (brokenStore) InsertUnique(context.Context, registry.Signature) (registry.Signature, error) {
	return registry.Signature{}, errStorage
}

func TestStorageErrorsPropagate(t *testing.T) {
	reg := registry.New(brokenStore{Store: memory.New()})

	_, _, err := reg.ImportOne(context.Background(), "burn(uint256)")
	assert.ErrorIs(t, err, errStorage)

	_, _, err = reg.Classify(context.Background(), "burn(uint256)")
	assert.ErrorIs(t, err, errStorage)
}
