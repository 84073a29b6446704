// Package storetest holds the behaviour every registry.Store must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/selector"
)

// Factory returns a fresh, empty store. Cleanup is registered through t.
type Factory func(t *testing.T) registry.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAndFind", func(t *testing.T) { testInsertAndFind(t, newStore(t)) })
	t.Run("InsertUniqueRejectsDuplicate", func(t *testing.T) { testInsertUniqueRejectsDuplicate(t, newStore(t)) })
	t.Run("FindBySelector", func(t *testing.T) { testFindBySelector(t, newStore(t)) })
	t.Run("ListOrderedAndPaged", func(t *testing.T) { testListOrderedAndPaged(t, newStore(t)) })
	t.Run("ConcurrentInsertUnique", func(t *testing.T) { testConcurrentInsertUnique(t, newStore(t)) })
	t.Run("ConcurrentImportOne", func(t *testing.T) { testConcurrentImportOne(t, newStore(t)) })
}

func record(id, text string) registry.Signature {
	return registry.Signature{
		ID:            id,
		TextSignature: text,
		CreatedAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func testInsertAndFind(t *testing.T, store registry.Store) {
	ctx := context.Background()

	_, found, err := store.FindByText(ctx, "transfer(address,uint256)")
	require.NoError(t, err)
	assert.False(t, found)

	stored, err := store.InsertUnique(ctx, record("id-1", "transfer(address,uint256)"))
	require.NoError(t, err)
	assert.Equal(t, "id-1", stored.ID)

	got, found, err := store.FindByText(ctx, "transfer(address,uint256)")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "transfer(address,uint256)", got.TextSignature)
	assert.True(t, got.CreatedAt.Equal(stored.CreatedAt))
	assert.Equal(t, "0xa9059cbb", got.HexSignature())

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testInsertUniqueRejectsDuplicate(t *testing.T, store registry.Store) {
	ctx := context.Background()

	_, err := store.InsertUnique(ctx, record("id-1", "foo(uint256)"))
	require.NoError(t, err)

	_, err = store.InsertUnique(ctx, record("id-2", "foo(uint256)"))
	require.ErrorIs(t, err, registry.ErrAlreadyExists)

	got, found, err := store.FindByText(ctx, "foo(uint256)")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "id-1", got.ID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testFindBySelector(t *testing.T, store registry.Store) {
	ctx := context.Background()

	for i, text := range []string{"transfer(address,uint256)", "balanceOf(address)"} {
		_, err := store.InsertUnique(ctx, record(fmt.Sprintf("id-%d", i), text))
		require.NoError(t, err)
	}

	matches, err := store.FindBySelector(ctx, selector.Compute("balanceOf(address)"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "balanceOf(address)", matches[0].TextSignature)

	sel, err := selector.ParseHex("0xdeadbeef")
	require.NoError(t, err)
	matches, err = store.FindBySelector(ctx, sel)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func testListOrderedAndPaged(t *testing.T, store registry.Store) {
	ctx := context.Background()

	texts := []string{"c()", "a()", "d()", "b()"}
	for i, text := range texts {
		_, err := store.InsertUnique(ctx, record(fmt.Sprintf("id-%d", i), text))
		require.NoError(t, err)
	}

	all, err := store.List(ctx, registry.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a()", "b()", "c()", "d()"}, textsOf(all))

	page, err := store.List(ctx, registry.ListOptions{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b()", "c()"}, textsOf(page))

	empty, err := store.List(ctx, registry.ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testConcurrentInsertUnique(t *testing.T, store registry.Store) {
	ctx := context.Background()
	const workers = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
		other   []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.InsertUnique(ctx, record(fmt.Sprintf("id-%d", i), "race(uint256)"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, registry.ErrAlreadyExists):
				losers++
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 1, winners)
	assert.Equal(t, workers-1, losers)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testConcurrentImportOne(t *testing.T, store registry.Store) {
	ctx := context.Background()
	reg := registry.New(store)
	const workers = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[string]bool)
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, isNew, err := reg.ImportOne(ctx, "approve (address spender, uint amount)")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if isNew {
				created++
			}
			ids[sig.ID] = true
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func textsOf(sigs []registry.Signature) []string {
	out := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		out = append(out, sig.TextSignature)
	}
	return out
}
