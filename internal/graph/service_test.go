package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/ringtrace/internal/syncutil"
)

func newTestService(limits Limits) *Service {
	return NewService(NewMemoryStore(), syncutil.NewContextShardedMutex(), limits)
}

type stubScorer struct {
	score float64
	err   error
	calls int
}

func (s *stubScorer) Score(ctx context.Context, entityID, entityType string, properties map[string]interface{}) (float64, error) {
	s.calls++
	return s.score, s.err
}

type captureEvents struct {
	created []string
	deleted []string
}

func (c *captureEvents) EmitGraphCreated(graphID, name string) {
	c.created = append(c.created, graphID)
}

func (c *captureEvents) EmitGraphDeleted(graphID string) {
	c.deleted = append(c.deleted, graphID)
}

func TestService_CreateGraph(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{
		Name:        "payments-eu",
		Description: "EU payment network",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(g.ID, "graph-"))
	assert.Equal(t, StatusActive, g.Status)
	assert.Equal(t, DefaultDomain, g.Metadata.Domain)
	assert.Equal(t, RiskLevelLow, g.Metadata.RiskLevel)
	assert.Nil(t, g.Metadata.LastAnalysisAt)
	assert.NotZero(t, g.CreatedAt)

	// Persisted with the same defaults
	stored, err := svc.GetGraph(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "payments-eu", stored.Name)
	assert.Equal(t, DefaultDomain, stored.Metadata.Domain)
}

func TestService_ListGraphs_Pagination(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()

	created := make(map[string]bool)
	for i := 0; i < 5; i++ {
		g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "g"})
		require.NoError(t, err)
		created[g.ID] = true
	}

	seen := make(map[string]bool)
	cursor := ""
	pages := 0
	for {
		page, next, hasMore, err := svc.ListGraphs(ctx, ListRequest{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		pages++
		for _, g := range page {
			assert.False(t, seen[g.ID], "graph %s returned twice", g.ID)
			seen[g.ID] = true
		}
		if !hasMore {
			break
		}
		require.NotEmpty(t, next)
		cursor = next
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, created, seen)
}

func TestService_ListGraphs_BadCursor(t *testing.T) {
	svc := newTestService(Limits{})

	_, _, _, err := svc.ListGraphs(context.Background(), ListRequest{Cursor: "not base64!!"})
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestService_UpdateGraph_PartialApply(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "orig", Description: "orig desc"})
	require.NoError(t, err)

	status := StatusInactive
	updated, err := svc.UpdateGraph(ctx, g.ID, UpdateGraphRequest{Status: &status})
	require.NoError(t, err)

	// Untouched fields survive
	assert.Equal(t, "orig", updated.Name)
	assert.Equal(t, "orig desc", updated.Description)
	assert.Equal(t, StatusInactive, updated.Status)

	_, err = svc.UpdateGraph(ctx, "graph-missing", UpdateGraphRequest{Status: &status})
	assert.ErrorIs(t, err, ErrGraphNotFound)
}

func TestService_DeleteGraph(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "doomed"})
	require.NoError(t, err)

	deleted, err := svc.DeleteGraph(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Second delete reports absence without an error
	deleted, err = svc.DeleteGraph(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestService_AddNode_GeneratesID(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "test"})
	require.NoError(t, err)

	node, err := svc.AddNode(ctx, g.ID, AddNodeRequest{Type: NodeTypeAccount})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(node.ID, "node-"))
	assert.Zero(t, node.RiskScore)

	// Caller-supplied ids are kept
	node, err = svc.AddNode(ctx, g.ID, AddNodeRequest{ID: "acct-77", Type: NodeTypeAccount})
	require.NoError(t, err)
	assert.Equal(t, "acct-77", node.ID)
}

func TestService_AddNode_ScorerFillsMissingScore(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()
	scorer := &stubScorer{score: 0.83}
	svc.SetScorer(scorer)

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "test"})
	require.NoError(t, err)

	// No score in request: scorer fills it
	node, err := svc.AddNode(ctx, g.ID, AddNodeRequest{Type: NodeTypeAccount})
	require.NoError(t, err)
	assert.Equal(t, 0.83, node.RiskScore)
	assert.Equal(t, 1, scorer.calls)

	// Explicit score: scorer not consulted
	score := 0.25
	node, err = svc.AddNode(ctx, g.ID, AddNodeRequest{Type: NodeTypeAccount, RiskScore: &score})
	require.NoError(t, err)
	assert.Equal(t, 0.25, node.RiskScore)
	assert.Equal(t, 1, scorer.calls)
}

func TestService_AddNode_ScorerFailureLeavesUnscored(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()
	svc.SetScorer(&stubScorer{err: errors.New("connection refused")})

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "test"})
	require.NoError(t, err)

	// Scorer down must not block ingest
	node, err := svc.AddNode(ctx, g.ID, AddNodeRequest{Type: NodeTypeAccount})
	require.NoError(t, err)
	assert.Zero(t, node.RiskScore)
}

func TestService_AddNode_ScoreClamped(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()
	svc.SetScorer(&stubScorer{score: 1.7})

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "test"})
	require.NoError(t, err)

	node, err := svc.AddNode(ctx, g.ID, AddNodeRequest{Type: NodeTypeAccount})
	require.NoError(t, err)
	assert.Equal(t, 1.0, node.RiskScore)
}

func TestService_AddNode_Limit(t *testing.T) {
	svc := newTestService(Limits{MaxNodesPerGraph: 2})
	ctx := context.Background()

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "small"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.AddNode(ctx, g.ID, AddNodeRequest{Type: NodeTypeUser})
		require.NoError(t, err)
	}

	_, err = svc.AddNode(ctx, g.ID, AddNodeRequest{Type: NodeTypeUser})
	assert.ErrorIs(t, err, ErrNodeLimit)
}

func TestService_UpdateNode_PartialApply(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "test"})
	require.NoError(t, err)

	score := 0.3
	node, err := svc.AddNode(ctx, g.ID, AddNodeRequest{
		ID: "a", Type: NodeTypeAccount, RiskScore: &score,
		Properties: map[string]interface{}{"country": "DE"},
	})
	require.NoError(t, err)

	newScore := 0.95
	updated, err := svc.UpdateNode(ctx, g.ID, node.ID, UpdateNodeRequest{RiskScore: &newScore})
	require.NoError(t, err)
	assert.Equal(t, 0.95, updated.RiskScore)
	assert.Equal(t, NodeTypeAccount, updated.Type)
	assert.Equal(t, "DE", updated.Properties["country"])

	_, err = svc.UpdateNode(ctx, g.ID, "missing", UpdateNodeRequest{RiskScore: &newScore})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestService_DeleteNode(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "test"})
	require.NoError(t, err)
	node, err := svc.AddNode(ctx, g.ID, AddNodeRequest{Type: NodeTypeUser})
	require.NoError(t, err)

	deleted, err := svc.DeleteNode(ctx, g.ID, node.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.DeleteNode(ctx, g.ID, node.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	// Missing graph is an error, not a false
	_, err = svc.DeleteNode(ctx, "graph-missing", node.ID)
	assert.ErrorIs(t, err, ErrGraphNotFound)
}

func TestService_AddEdge(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "test"})
	require.NoError(t, err)

	// Default weight
	edge, err := svc.AddEdge(ctx, g.ID, AddEdgeRequest{
		SourceNodeID: "a", TargetNodeID: "b", Type: EdgeTypeTransfer,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(edge.ID, "edge-"))
	assert.Equal(t, 1.0, edge.Weight)

	// Explicit weight
	w := 3.5
	edge, err = svc.AddEdge(ctx, g.ID, AddEdgeRequest{
		SourceNodeID: "a", TargetNodeID: "c", Type: EdgeTypeTransfer, Weight: &w,
	})
	require.NoError(t, err)
	assert.Equal(t, 3.5, edge.Weight)
}

func TestService_AddEdge_Limit(t *testing.T) {
	svc := newTestService(Limits{MaxEdgesPerGraph: 1})
	ctx := context.Background()

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "small"})
	require.NoError(t, err)

	_, err = svc.AddEdge(ctx, g.ID, AddEdgeRequest{SourceNodeID: "a", TargetNodeID: "b", Type: EdgeTypeTransfer})
	require.NoError(t, err)

	_, err = svc.AddEdge(ctx, g.ID, AddEdgeRequest{SourceNodeID: "b", TargetNodeID: "c", Type: EdgeTypeTransfer})
	assert.ErrorIs(t, err, ErrEdgeLimit)
}

func TestService_Events(t *testing.T) {
	svc := newTestService(Limits{})
	ctx := context.Background()
	events := &captureEvents{}
	svc.SetEvents(events)

	g, err := svc.CreateGraph(ctx, CreateGraphRequest{Name: "watched"})
	require.NoError(t, err)
	require.Len(t, events.created, 1)
	assert.Equal(t, g.ID, events.created[0])

	_, err = svc.DeleteGraph(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, events.deleted, 1)
	assert.Equal(t, g.ID, events.deleted[0])

	// A miss emits nothing
	_, err = svc.DeleteGraph(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, events.deleted, 1)
}
