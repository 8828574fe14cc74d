package analysis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_SweepRemovesStaleResults(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveResult(ctx, storedResult("analysis-stale", "graph-1", now.Add(-72*time.Hour))))
	require.NoError(t, store.SaveResult(ctx, storedResult("analysis-fresh", "graph-1", now)))

	sweeper := NewSweeper(store, Retention{MaxAge: 24 * time.Hour}, slog.Default())
	sweeper.Sweep(ctx)

	results, err := store.ListResults(ctx, "graph-1", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "analysis-fresh", results[0].ID)
}

func TestSweeper_SweepEnforcesPerGraphCap(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 4; i++ {
		id := "analysis-" + string(rune('a'+i))
		ts := now.Add(-time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveResult(ctx, storedResult(id, "graph-1", ts)))
	}

	sweeper := NewSweeper(store, Retention{MaxAge: 24 * time.Hour, KeepPerGraph: 1}, slog.Default())
	sweeper.Sweep(ctx)

	results, err := store.ListResults(ctx, "graph-1", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "analysis-a", results[0].ID)
}

func TestSweeper_StartStop(t *testing.T) {
	sweeper := NewSweeper(NewMemoryStore(), Retention{MaxAge: time.Hour}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	// Wait for the loop to come up, then stop it.
	deadline := time.After(2 * time.Second)
	for !sweeper.Running() {
		select {
		case <-deadline:
			t.Fatal("sweeper never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sweeper.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.False(t, sweeper.Running())
}
