package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbd888/ringtrace/internal/idgen"
	"github.com/mbd888/ringtrace/internal/logging"
	"github.com/mbd888/ringtrace/internal/metrics"
	"github.com/mbd888/ringtrace/internal/pagination"
	"github.com/mbd888/ringtrace/internal/syncutil"
)

// DefaultDomain is stamped on graph metadata at creation.
const DefaultDomain = "Banking"

// Scorer supplies a risk score for nodes added without one. Implementations
// return a score in [0,1].
type Scorer interface {
	Score(ctx context.Context, entityID string, entityType string, properties map[string]interface{}) (float64, error)
}

// EventEmitter receives graph lifecycle notifications for streaming to
// connected clients. Implementations must not block.
type EventEmitter interface {
	EmitGraphCreated(graphID, name string)
	EmitGraphDeleted(graphID string)
}

// Limits bounds graph growth.
type Limits struct {
	MaxNodesPerGraph int
	MaxEdgesPerGraph int
}

// Service implements graph business logic: id generation, growth limits,
// per-graph write serialization, and cascading deletes.
type Service struct {
	store  Store
	locks  *syncutil.ContextShardedMutex
	limits Limits
	scorer Scorer       // optional
	events EventEmitter // optional
}

// NewService creates a graph service. The sharded mutex is shared with the
// analysis service so mutation and analysis of one graph never interleave.
func NewService(store Store, locks *syncutil.ContextShardedMutex, limits Limits) *Service {
	return &Service{
		store:  store,
		locks:  locks,
		limits: limits,
	}
}

// SetScorer installs an upstream scorer used to fill missing node risk scores.
func (s *Service) SetScorer(sc Scorer) { s.scorer = sc }

// SetEvents installs the lifecycle event emitter.
func (s *Service) SetEvents(e EventEmitter) { s.events = e }

// Store exposes the underlying store for read-side composition.
func (s *Service) Store() Store { return s.store }

// -----------------------------------------------------------------------------
// Graph Operations
// -----------------------------------------------------------------------------

// CreateGraph creates an empty graph in active status.
func (s *Service) CreateGraph(ctx context.Context, req CreateGraphRequest) (*Graph, error) {
	g := &Graph{
		ID:          idgen.WithPrefix("graph-"),
		Name:        req.Name,
		Description: req.Description,
		Status:      StatusActive,
		Metadata: Metadata{
			Domain:    DefaultDomain,
			RiskLevel: RiskLevelLow,
		},
	}

	if err := s.store.CreateGraph(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}

	metrics.GraphsTotal.WithLabelValues("created").Inc()
	logging.L(ctx).Info("graph created", "graph_id", g.ID, "name", g.Name)
	if s.events != nil {
		s.events.EmitGraphCreated(g.ID, g.Name)
	}
	return g, nil
}

// GetGraph returns a graph with its full node and edge collections.
func (s *Service) GetGraph(ctx context.Context, id string) (*Graph, error) {
	return s.store.GetGraph(ctx, id)
}

// ListRequest selects a page of graphs.
type ListRequest struct {
	Status Status
	Limit  int
	Cursor string
}

// ListGraphs returns graph summaries newest first, plus the cursor for the
// next page and whether one exists.
func (s *Service) ListGraphs(ctx context.Context, req ListRequest) ([]*Graph, string, bool, error) {
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	q := ListQuery{Status: req.Status, Limit: limit + 1}
	if req.Cursor != "" {
		c, err := pagination.Decode(req.Cursor)
		if err != nil {
			return nil, "", false, ErrInvalidCursor
		}
		q.After = &Pos{CreatedAt: c.CreatedAt, ID: c.ID}
	}

	graphs, err := s.store.ListGraphs(ctx, q)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to list graphs: %w", err)
	}

	page, next, hasMore := pagination.ComputePage(graphs, limit, func(g *Graph) (time.Time, string) {
		return g.CreatedAt, g.ID
	})
	return page, next, hasMore, nil
}

// UpdateGraph applies a partial update to graph attributes.
func (s *Service) UpdateGraph(ctx context.Context, id string, req UpdateGraphRequest) (*Graph, error) {
	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	g, err := s.store.GetGraph(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		g.Name = *req.Name
	}
	if req.Description != nil {
		g.Description = *req.Description
	}
	if req.Status != nil {
		g.Status = *req.Status
	}

	if err := s.store.UpdateGraph(ctx, g); err != nil {
		return nil, err
	}
	g.LastUpdatedAt = time.Now().UTC()

	logging.L(ctx).Info("graph updated", "graph_id", id)
	return g, nil
}

// DeleteGraph removes a graph and everything in it. Returns false when the
// graph did not exist.
func (s *Service) DeleteGraph(ctx context.Context, id string) (bool, error) {
	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	if err := s.store.DeleteGraph(ctx, id); err != nil {
		if errors.Is(err, ErrGraphNotFound) {
			return false, nil
		}
		return false, err
	}

	metrics.GraphsTotal.WithLabelValues("deleted").Inc()
	logging.L(ctx).Info("graph deleted", "graph_id", id)
	if s.events != nil {
		s.events.EmitGraphDeleted(id)
	}
	return true, nil
}

// -----------------------------------------------------------------------------
// Node Operations
// -----------------------------------------------------------------------------

// AddNode adds a node, generating an id when the request omits one. When the
// request carries no risk score the configured scorer fills it; without a
// scorer the node starts unscored at 0.
func (s *Service) AddNode(ctx context.Context, graphID string, req AddNodeRequest) (*Node, error) {
	unlock, err := s.locks.LockContext(ctx, graphID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	nodes, _, err := s.store.Counts(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if s.limits.MaxNodesPerGraph > 0 && nodes >= s.limits.MaxNodesPerGraph {
		return nil, ErrNodeLimit
	}

	n := &Node{
		ID:         req.ID,
		Type:       req.Type,
		Properties: req.Properties,
	}
	if n.ID == "" {
		n.ID = idgen.WithPrefix("node-")
	}

	switch {
	case req.RiskScore != nil:
		n.RiskScore = *req.RiskScore
	case s.scorer != nil:
		score, err := s.scorer.Score(ctx, n.ID, string(n.Type), n.Properties)
		if err != nil {
			metrics.ScorerRequestsTotal.WithLabelValues("error").Inc()
			logging.L(ctx).Warn("scorer unavailable, node starts unscored",
				"graph_id", graphID, "node_id", n.ID, "error", err)
		} else {
			metrics.ScorerRequestsTotal.WithLabelValues("ok").Inc()
			n.RiskScore = clampScore(score)
		}
	}

	if err := s.store.AddNode(ctx, graphID, n); err != nil {
		return nil, err
	}

	metrics.GraphElementsTotal.WithLabelValues("node").Inc()
	logging.L(ctx).Info("node added", "graph_id", graphID, "node_id", n.ID, "type", n.Type)
	return n, nil
}

// GetNode returns a single node.
func (s *Service) GetNode(ctx context.Context, graphID, nodeID string) (*Node, error) {
	return s.store.GetNode(ctx, graphID, nodeID)
}

// ListNodes returns all nodes in a graph in insertion order.
func (s *Service) ListNodes(ctx context.Context, graphID string) ([]*Node, error) {
	return s.store.ListNodes(ctx, graphID)
}

// UpdateNode applies a partial update to a node and touches its activity
// timestamp.
func (s *Service) UpdateNode(ctx context.Context, graphID, nodeID string, req UpdateNodeRequest) (*Node, error) {
	unlock, err := s.locks.LockContext(ctx, graphID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	n, err := s.store.GetNode(ctx, graphID, nodeID)
	if err != nil {
		return nil, err
	}

	if req.Type != nil {
		n.Type = *req.Type
	}
	if req.RiskScore != nil {
		n.RiskScore = *req.RiskScore
	}
	if req.Properties != nil {
		n.Properties = req.Properties
	}

	if err := s.store.UpdateNode(ctx, graphID, n); err != nil {
		return nil, err
	}

	logging.L(ctx).Info("node updated", "graph_id", graphID, "node_id", nodeID)
	return n, nil
}

// DeleteNode removes a node and every edge referencing it. Returns false
// when the node did not exist.
func (s *Service) DeleteNode(ctx context.Context, graphID, nodeID string) (bool, error) {
	unlock, err := s.locks.LockContext(ctx, graphID)
	if err != nil {
		return false, err
	}
	defer unlock()

	if err := s.store.DeleteNode(ctx, graphID, nodeID); err != nil {
		if errors.Is(err, ErrNodeNotFound) {
			return false, nil
		}
		return false, err
	}

	logging.L(ctx).Info("node deleted", "graph_id", graphID, "node_id", nodeID)
	return true, nil
}

// -----------------------------------------------------------------------------
// Edge Operations
// -----------------------------------------------------------------------------

// AddEdge adds an edge between two node ids. Endpoints are not validated:
// ingest pipelines routinely see relationships before the entities they
// connect, and analysis skips whatever never resolves.
func (s *Service) AddEdge(ctx context.Context, graphID string, req AddEdgeRequest) (*Edge, error) {
	unlock, err := s.locks.LockContext(ctx, graphID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	_, edges, err := s.store.Counts(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if s.limits.MaxEdgesPerGraph > 0 && edges >= s.limits.MaxEdgesPerGraph {
		return nil, ErrEdgeLimit
	}

	e := &Edge{
		ID:           req.ID,
		SourceNodeID: req.SourceNodeID,
		TargetNodeID: req.TargetNodeID,
		Type:         req.Type,
		Weight:       1,
		Properties:   req.Properties,
	}
	if e.ID == "" {
		e.ID = idgen.WithPrefix("edge-")
	}
	if req.Weight != nil {
		e.Weight = *req.Weight
	}

	if err := s.store.AddEdge(ctx, graphID, e); err != nil {
		return nil, err
	}

	metrics.GraphElementsTotal.WithLabelValues("edge").Inc()
	logging.L(ctx).Info("edge added",
		"graph_id", graphID, "edge_id", e.ID,
		"source", e.SourceNodeID, "target", e.TargetNodeID)
	return e, nil
}

// GetEdge returns a single edge.
func (s *Service) GetEdge(ctx context.Context, graphID, edgeID string) (*Edge, error) {
	return s.store.GetEdge(ctx, graphID, edgeID)
}

// ListEdges returns all edges in a graph in insertion order.
func (s *Service) ListEdges(ctx context.Context, graphID string) ([]*Edge, error) {
	return s.store.ListEdges(ctx, graphID)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
