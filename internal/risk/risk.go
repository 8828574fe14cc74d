// Package risk holds the fixed scoring policy for fraud graph analysis.
//
// Scores range from 0.0 (benign) to 1.0 (certain fraud). Thresholds are
// deliberately not configurable: analysts compare results across graphs
// and over time, and moving boundaries would invalidate those comparisons.
package risk

import (
	"math"

	"github.com/mbd888/ringtrace/internal/graph"
)

// Category classifies a detected cluster by its aggregate risk score.
type Category string

const (
	CategoryFraudRing         Category = "fraud_ring"
	CategorySuspiciousCluster Category = "suspicious_cluster"
	CategoryLegitimateGroup   Category = "legitimate_group"
)

// Classification thresholds.
const (
	// HighRiskThreshold marks the fraud-ring boundary. Ring detection also
	// uses it to pick candidate nodes, but strictly above.
	HighRiskThreshold = 0.7
	// SuspiciousThreshold marks the suspicious-cluster boundary.
	SuspiciousThreshold = 0.4
	// MonitorThreshold drives the isSuspicious flag on communities.
	// A score exactly at the boundary is not suspicious.
	MonitorThreshold = 0.5
)

// Classify buckets an aggregate cluster score into a category.
func Classify(score float64) Category {
	switch {
	case score >= HighRiskThreshold:
		return CategoryFraudRing
	case score >= SuspiciousThreshold:
		return CategorySuspiciousCluster
	default:
		return CategoryLegitimateGroup
	}
}

// IsSuspicious reports whether a cluster score is high enough to flag for
// monitoring.
func IsSuspicious(score float64) bool {
	return score > MonitorThreshold
}

// LevelFor maps a combined risk score onto the graph metadata scale.
func LevelFor(score float64) graph.RiskLevel {
	switch {
	case score >= 0.8:
		return graph.RiskLevelCritical
	case score >= 0.6:
		return graph.RiskLevelHigh
	case score >= 0.4:
		return graph.RiskLevelMedium
	default:
		return graph.RiskLevelLow
	}
}

// Mean returns the arithmetic mean of scores. An empty slice means "no
// signal" and yields 0 rather than an error.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// Confidence derives ring confidence from induced-subgraph density.
// Density doubles into confidence and saturates at 1, so a cluster at half
// density already counts as fully confident.
func Confidence(density float64) float64 {
	return math.Min(density*2, 1)
}

// Assessment summarizes graph-level risk after one analysis run.
type Assessment struct {
	OverallRisk   float64         `json:"overallRisk"`
	FraudRingRisk float64         `json:"fraudRingRisk"`
	CommunityRisk float64         `json:"communityRisk"`
	CombinedRisk  float64         `json:"combinedRisk"`
	RiskLevel     graph.RiskLevel `json:"riskLevel"`
}

// Assess folds the per-signal score lists into a single Assessment.
// Combined risk takes the worst of the three signals so a clean overall
// average cannot mask a hot ring. communityScores should carry suspicious
// communities only; including legitimate ones would dilute the signal.
func Assess(nodeScores, ringScores, communityScores []float64) Assessment {
	a := Assessment{
		OverallRisk:   Mean(nodeScores),
		FraudRingRisk: Mean(ringScores),
		CommunityRisk: Mean(communityScores),
	}
	a.CombinedRisk = math.Max(a.OverallRisk, math.Max(a.FraudRingRisk, a.CommunityRisk))
	a.RiskLevel = LevelFor(a.CombinedRisk)
	return a
}
