//go:build integration

package analysis

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/mbd888/ringtrace/internal/graph"
	"github.com/mbd888/ringtrace/internal/risk"
)

func setupTestDB(t *testing.T) (*PostgresStore, *sql.DB, func()) {
	t.Helper()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		db.ExecContext(ctx, "DELETE FROM analysis_results")
		db.Close()
	}

	return store, db, cleanup
}

func makeResult(id, graphID string, ts time.Time) *Result {
	return &Result{
		ID:           id,
		GraphID:      graphID,
		AnalysisType: AnalysisTypeComprehensive,
		Statistics: Statistics{
			NodeCount:      3,
			EdgeCount:      3,
			Density:        1,
			LastCalculated: ts,
		},
		FraudRings: []Ring{{
			ID:         "ring-1",
			Name:       "Fraud Ring 1",
			NodeIDs:    []string{"a", "b", "c"},
			EdgeIDs:    []string{"e1", "e2", "e3"},
			RiskScore:  0.9,
			Confidence: 1,
			RingType:   RingTypeSuspiciousCluster,
			Metadata:   map[string]any{"size": 3},
		}},
		RiskAssessment: risk.Assessment{
			OverallRisk:  0.9,
			CombinedRisk: 0.9,
			RiskLevel:    graph.RiskLevelCritical,
		},
		Recommendations:   []string{"Investigate 1 detected fraud rings"},
		AnalysisTimestamp: ts,
		ProcessingTimeMS:  12,
	}
}

func TestPostgresAnalysis_SaveAndGet(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if err := store.SaveResult(ctx, makeResult("analysis-pg001", "graph-1", now)); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	got, err := store.GetResult(ctx, "analysis-pg001")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if got.GraphID != "graph-1" {
		t.Errorf("GraphID: got %s, want graph-1", got.GraphID)
	}
	if len(got.FraudRings) != 1 || got.FraudRings[0].Name != "Fraud Ring 1" {
		t.Errorf("FraudRings did not round-trip: %+v", got.FraudRings)
	}
	if got.RiskAssessment.RiskLevel != graph.RiskLevelCritical {
		t.Errorf("RiskLevel: got %s, want critical", got.RiskAssessment.RiskLevel)
	}
	if got.Statistics.NodeCount != 3 {
		t.Errorf("NodeCount: got %d, want 3", got.Statistics.NodeCount)
	}
	if len(got.Recommendations) != 1 {
		t.Errorf("Recommendations: got %v", got.Recommendations)
	}
}

func TestPostgresAnalysis_GetNotFound(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.GetResult(context.Background(), "analysis-nonexistent")
	if !errors.Is(err, ErrResultNotFound) {
		t.Errorf("Expected ErrResultNotFound, got %v", err)
	}
}

func TestPostgresAnalysis_ListNewestFirst(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i, id := range []string{"analysis-pg-a", "analysis-pg-b", "analysis-pg-c"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		if err := store.SaveResult(ctx, makeResult(id, "graph-list", ts)); err != nil {
			t.Fatalf("SaveResult %s failed: %v", id, err)
		}
	}
	if err := store.SaveResult(ctx, makeResult("analysis-pg-other", "graph-other", base)); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	results, err := store.ListResults(ctx, "graph-list", 10)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].ID != "analysis-pg-c" {
		t.Errorf("Expected analysis-pg-c first, got %s", results[0].ID)
	}

	page, err := store.ListResults(ctx, "graph-list", 2)
	if err != nil {
		t.Fatalf("ListResults with limit failed: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("Expected 2 results, got %d", len(page))
	}
}

func TestPostgresAnalysis_Prune(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if err := store.SaveResult(ctx, makeResult("analysis-pg-stale", "graph-prune", now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}
	for i, id := range []string{"analysis-pg-1", "analysis-pg-2", "analysis-pg-3"} {
		ts := now.Add(time.Duration(i) * time.Minute)
		if err := store.SaveResult(ctx, makeResult(id, "graph-prune", ts)); err != nil {
			t.Fatalf("SaveResult %s failed: %v", id, err)
		}
	}

	// Age sweep plus a keep-2 cap: stale goes by age, analysis-pg-1 by cap.
	removed, err := store.Prune(ctx, now.Add(-24*time.Hour), 2)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}

	results, err := store.ListResults(ctx, "graph-prune", 10)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 surviving results, got %d", len(results))
	}
	if results[0].ID != "analysis-pg-3" || results[1].ID != "analysis-pg-2" {
		t.Errorf("Unexpected survivors: %s, %s", results[0].ID, results[1].ID)
	}
}
