package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedResult(id, graphID string, ts time.Time) *Result {
	return &Result{
		ID:                id,
		GraphID:           graphID,
		AnalysisType:      AnalysisTypeComprehensive,
		AnalysisTimestamp: ts,
	}
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	res := storedResult("analysis-1", "graph-1", time.Now().UTC())
	res.Recommendations = []string{"Regular graph analysis recommended"}
	require.NoError(t, store.SaveResult(ctx, res))

	got, err := store.GetResult(ctx, "analysis-1")
	require.NoError(t, err)
	assert.Equal(t, "graph-1", got.GraphID)
	assert.Equal(t, res.Recommendations, got.Recommendations)

	// Returned copy is detached from the stored one.
	got.GraphID = "mutated"
	again, err := store.GetResult(ctx, "analysis-1")
	require.NoError(t, err)
	assert.Equal(t, "graph-1", again.GraphID)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetResult(context.Background(), "analysis-missing")
	assert.True(t, errors.Is(err, ErrResultNotFound))
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, store.SaveResult(ctx, storedResult("analysis-old", "graph-1", base.Add(-2*time.Hour))))
	require.NoError(t, store.SaveResult(ctx, storedResult("analysis-new", "graph-1", base)))
	require.NoError(t, store.SaveResult(ctx, storedResult("analysis-mid", "graph-1", base.Add(-time.Hour))))
	require.NoError(t, store.SaveResult(ctx, storedResult("analysis-other", "graph-2", base)))

	results, err := store.ListResults(ctx, "graph-1", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "analysis-new", results[0].ID)
	assert.Equal(t, "analysis-mid", results[1].ID)
	assert.Equal(t, "analysis-old", results[2].ID)

	capped, err := store.ListResults(ctx, "graph-1", 2)
	require.NoError(t, err)
	require.Len(t, capped, 2)
	assert.Equal(t, "analysis-new", capped[0].ID)
}

func TestMemoryStore_PruneByAge(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveResult(ctx, storedResult("analysis-stale", "graph-1", now.Add(-48*time.Hour))))
	require.NoError(t, store.SaveResult(ctx, storedResult("analysis-fresh", "graph-1", now)))

	removed, err := store.Prune(ctx, now.Add(-24*time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.GetResult(ctx, "analysis-stale")
	assert.True(t, errors.Is(err, ErrResultNotFound))
	_, err = store.GetResult(ctx, "analysis-fresh")
	assert.NoError(t, err)
}

func TestMemoryStore_PrunePerGraphCap(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		ts := now.Add(-time.Duration(i) * time.Minute)
		id := "analysis-" + string(rune('a'+i))
		require.NoError(t, store.SaveResult(ctx, storedResult(id, "graph-1", ts)))
	}
	require.NoError(t, store.SaveResult(ctx, storedResult("analysis-z", "graph-2", now)))

	removed, err := store.Prune(ctx, time.Time{}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	kept, err := store.ListResults(ctx, "graph-1", 10)
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, "analysis-a", kept[0].ID)
	assert.Equal(t, "analysis-b", kept[1].ID)

	// The other graph's single result is untouched.
	other, err := store.ListResults(ctx, "graph-2", 10)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
