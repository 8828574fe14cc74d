// Package analysis runs fraud detection passes over stored graphs.
//
// A pass computes descriptive statistics, finds fraud rings (connected
// clusters of high-risk nodes), partitions the graph into communities,
// folds the signals into a risk assessment, and renders operator-facing
// recommendations. Detection is read-only with respect to graph structure;
// the only write-back is a risk-level stamp on the graph metadata. Results
// are persisted and retrievable by analysis id.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/ringtrace/internal/risk"
)

// ErrResultNotFound is returned when an analysis id is unknown.
var ErrResultNotFound = errors.New("analysis: result not found")

// AnalysisTypeComprehensive is the analysis type recorded on full passes.
const AnalysisTypeComprehensive = "comprehensive"

// RingTypeSuspiciousCluster tags every detected ring. Rings are high-risk
// by construction; the tag leaves room for future detectors that find
// rings by other means.
const RingTypeSuspiciousCluster = "suspicious_cluster"

// Ring is a connected cluster of high-risk nodes.
type Ring struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	NodeIDs     []string       `json:"nodeIds"`
	EdgeIDs     []string       `json:"edgeIds"`
	RiskScore   float64        `json:"riskScore"`
	Confidence  float64        `json:"confidence"`
	RingType    string         `json:"ringType"`
	DetectedAt  time.Time      `json:"detectedAt"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Community is a detected partition of the graph, suspicious or not.
type Community struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         risk.Category  `json:"type"`
	NodeIDs      []string       `json:"nodeIds"`
	Size         int            `json:"size"`
	Density      float64        `json:"density"`
	RiskScore    float64        `json:"riskScore"`
	IsSuspicious bool           `json:"isSuspicious"`
	DetectedAt   time.Time      `json:"detectedAt"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Statistics describes the graph shape at analysis time. Purely
// descriptive; nothing here feeds back into detection. Counts reflect the
// structural view (dangling edges skipped, parallels collapsed, self-loops
// ignored), so EdgeCount can be lower than the stored edge total.
type Statistics struct {
	NodeCount                    int            `json:"nodeCount"`
	EdgeCount                    int            `json:"edgeCount"`
	Density                      float64        `json:"density"`
	AverageClusteringCoefficient float64        `json:"averageClusteringCoefficient"`
	AveragePathLength            float64        `json:"averagePathLength"`
	ConnectedComponents          int            `json:"connectedComponents"`
	NodeTypeDistribution         map[string]int `json:"nodeTypeDistribution"`
	EdgeTypeDistribution         map[string]int `json:"edgeTypeDistribution"`
	TopCentralNodes              []string       `json:"topCentralNodes"`
	GraphDiameter                int            `json:"graphDiameter"`
	LastCalculated               time.Time      `json:"lastCalculated"`
}

// Result bundles everything one analysis pass produced.
type Result struct {
	ID                string          `json:"id"`
	GraphID           string          `json:"graphId"`
	AnalysisType      string          `json:"analysisType"`
	Statistics        Statistics      `json:"statistics"`
	FraudRings        []Ring          `json:"fraudRings"`
	Communities       []Community     `json:"communities"`
	RiskAssessment    risk.Assessment `json:"riskAssessment"`
	Recommendations   []string        `json:"recommendations"`
	AnalysisTimestamp time.Time       `json:"analysisTimestamp"`
	ProcessingTimeMS  int64           `json:"processingTimeMs"`
}

// Store persists analysis results.
type Store interface {
	SaveResult(ctx context.Context, res *Result) error
	GetResult(ctx context.Context, id string) (*Result, error)
	// ListResults returns results for a graph, newest first.
	ListResults(ctx context.Context, graphID string, limit int) ([]*Result, error)
	// Prune removes results older than cutoff and trims each graph to at
	// most keepPerGraph results (0 disables the per-graph cap). Returns the
	// number of results removed.
	Prune(ctx context.Context, cutoff time.Time, keepPerGraph int) (int, error)
}
