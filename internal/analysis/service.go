package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/mbd888/ringtrace/internal/graph"
	"github.com/mbd888/ringtrace/internal/idgen"
	"github.com/mbd888/ringtrace/internal/logging"
	"github.com/mbd888/ringtrace/internal/risk"
	"github.com/mbd888/ringtrace/internal/syncutil"
	"github.com/mbd888/ringtrace/internal/traces"
)

// EventEmitter receives analysis notifications for streaming to connected
// clients. Implementations must not block.
type EventEmitter interface {
	EmitAnalysisCompleted(graphID, analysisID string, combinedRisk float64, ringCount, communityCount int)
	EmitRingDetected(graphID string, ring Ring)
}

// Service orchestrates detection passes: statistics, ring detection,
// community detection, risk assessment, and recommendations, bundled into
// a stored Result.
type Service struct {
	graphs  graph.Store
	results Store
	locks   *syncutil.ContextShardedMutex
	events  EventEmitter // optional
}

// NewService creates an analysis service. The sharded mutex must be the
// same instance the graph service locks with, so analysis never observes a
// graph mid-mutation. Lock acquisition honors the request context: a caller
// that gives up while a long pass holds the graph's shard does not queue.
func NewService(graphs graph.Store, results Store, locks *syncutil.ContextShardedMutex) *Service {
	return &Service{
		graphs:  graphs,
		results: results,
		locks:   locks,
	}
}

// SetEvents installs the analysis event emitter.
func (s *Service) SetEvents(e EventEmitter) { s.events = e }

// Results exposes the result store for the retention sweeper.
func (s *Service) Results() Store { return s.results }

// Analyze runs the comprehensive pass over one graph. It fails only when
// the graph is unknown or the result cannot be persisted; detector
// failures inside the pass degrade to empty slices.
func (s *Service) Analyze(ctx context.Context, graphID string) (*Result, error) {
	done := observeAnalysis()

	unlock, err := s.locks.LockContext(ctx, graphID)
	if err != nil {
		done("cancelled")
		return nil, err
	}
	defer unlock()

	ctx, span := traces.StartSpan(ctx, "analysis.analyze", traces.GraphID(graphID))
	defer span.End()

	start := time.Now()
	g, err := s.graphs.GetGraph(ctx, graphID)
	if err != nil {
		done("graph_not_found")
		return nil, err
	}

	v := newView(g.Nodes, g.Edges)

	stats := computeStatistics(v, g.Edges)
	rings := detectRings(v, g.Edges)
	communities := detectCommunities(ctx, v)
	assessment := assess(g.Nodes, rings, communities)

	result := &Result{
		ID:                idgen.WithPrefix("analysis-"),
		GraphID:           graphID,
		AnalysisType:      AnalysisTypeComprehensive,
		Statistics:        stats,
		FraudRings:        rings,
		Communities:       communities,
		RiskAssessment:    assessment,
		Recommendations:   generateRecommendations(rings, communities, assessment),
		AnalysisTimestamp: time.Now().UTC(),
		ProcessingTimeMS:  time.Since(start).Milliseconds(),
	}
	span.SetAttributes(traces.AnalysisID(result.ID))

	if err := s.results.SaveResult(ctx, result); err != nil {
		done("store_error")
		return nil, fmt.Errorf("failed to save analysis result: %w", err)
	}

	s.stampGraph(ctx, g, assessment)

	done("completed")
	RingsDetectedTotal.Add(float64(len(rings)))
	CommunitiesDetectedTotal.Add(float64(len(communities)))

	logging.L(ctx).Info("graph analysis completed",
		"graph_id", graphID,
		"analysis_id", result.ID,
		"rings", len(rings),
		"communities", len(communities),
		"combined_risk", assessment.CombinedRisk,
		"duration_ms", result.ProcessingTimeMS,
	)

	if s.events != nil {
		s.events.EmitAnalysisCompleted(graphID, result.ID, assessment.CombinedRisk, len(rings), len(communities))
		for _, r := range rings {
			s.events.EmitRingDetected(graphID, r)
		}
	}

	return result, nil
}

// DetectRings runs the ring pass alone, without persisting anything.
func (s *Service) DetectRings(ctx context.Context, graphID string) ([]Ring, error) {
	unlock, err := s.locks.LockContext(ctx, graphID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := traces.StartSpan(ctx, "analysis.detect_rings", traces.GraphID(graphID))
	defer span.End()

	g, err := s.graphs.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}

	v := newView(g.Nodes, g.Edges)
	rings := detectRings(v, g.Edges)

	logging.L(ctx).Info("fraud ring detection completed",
		"graph_id", graphID, "rings", len(rings))
	return rings, nil
}

// DetectCommunities runs the community pass alone, without persisting
// anything.
func (s *Service) DetectCommunities(ctx context.Context, graphID string) ([]Community, error) {
	unlock, err := s.locks.LockContext(ctx, graphID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := traces.StartSpan(ctx, "analysis.detect_communities", traces.GraphID(graphID))
	defer span.End()

	g, err := s.graphs.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}

	v := newView(g.Nodes, g.Edges)
	communities := detectCommunities(ctx, v)

	logging.L(ctx).Info("community detection completed",
		"graph_id", graphID, "communities", len(communities))
	return communities, nil
}

// Stats computes the descriptive statistics block without running the
// detectors.
func (s *Service) Stats(ctx context.Context, graphID string) (Statistics, error) {
	unlock, err := s.locks.LockContext(ctx, graphID)
	if err != nil {
		return Statistics{}, err
	}
	defer unlock()

	g, err := s.graphs.GetGraph(ctx, graphID)
	if err != nil {
		return Statistics{}, err
	}

	v := newView(g.Nodes, g.Edges)
	return computeStatistics(v, g.Edges), nil
}

// GetResult retrieves a stored analysis result by id.
func (s *Service) GetResult(ctx context.Context, analysisID string) (*Result, error) {
	return s.results.GetResult(ctx, analysisID)
}

// ListResults returns stored results for a graph, newest first. The graph
// must exist even when it has no results yet.
func (s *Service) ListResults(ctx context.Context, graphID string, limit int) ([]*Result, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if _, _, err := s.graphs.Counts(ctx, graphID); err != nil {
		return nil, err
	}
	return s.results.ListResults(ctx, graphID, limit)
}

// assess folds the three signals into one Assessment. Overall risk averages
// every stored node, ring risk averages detected rings, and community risk
// averages suspicious communities only.
func assess(nodes []*graph.Node, rings []Ring, communities []Community) risk.Assessment {
	nodeScores := make([]float64, 0, len(nodes))
	for _, n := range nodes {
		nodeScores = append(nodeScores, n.RiskScore)
	}
	ringScores := make([]float64, 0, len(rings))
	for _, r := range rings {
		ringScores = append(ringScores, r.RiskScore)
	}
	var communityScores []float64
	for _, c := range communities {
		if c.IsSuspicious {
			communityScores = append(communityScores, c.RiskScore)
		}
	}
	return risk.Assess(nodeScores, ringScores, communityScores)
}

// stampGraph writes the risk level and analysis timestamp back onto the
// graph metadata. Best effort: the result is already persisted, so a
// failed stamp is only logged.
func (s *Service) stampGraph(ctx context.Context, g *graph.Graph, assessment risk.Assessment) {
	now := time.Now().UTC()
	g.Metadata.RiskLevel = assessment.RiskLevel
	g.Metadata.LastAnalysisAt = &now
	if err := s.graphs.UpdateGraph(ctx, g); err != nil {
		logging.L(ctx).Warn("failed to stamp graph metadata",
			"graph_id", g.ID, "error", err)
	}
}
