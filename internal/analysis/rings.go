package analysis

import (
	"fmt"
	"time"

	"github.com/mbd888/ringtrace/internal/graph"
	"github.com/mbd888/ringtrace/internal/idgen"
	"github.com/mbd888/ringtrace/internal/risk"
)

// MinRingSize is the smallest cluster reported as a fraud ring. Two
// high-risk entities sharing an edge are an ordinary pair; rings start
// at three.
const MinRingSize = 3

// detectRings finds connected clusters of high-risk nodes.
//
// Nodes scoring strictly above the high-risk threshold are selected, the
// subgraph they induce is split into connected components, and every
// component of at least MinRingSize becomes a ring. The full stored edge
// list is consulted for member edge ids so parallels and self-loops inside
// the cluster are reported too. A ring containing one low-risk mule is
// split or missed entirely; that is a known limit of the heuristic, not a
// defect to paper over.
func detectRings(v *view, edges []*graph.Edge) []Ring {
	rings := []Ring{}

	if v.nodeCount() < MinRingSize {
		return rings
	}

	var candidates []string
	for _, id := range v.ids {
		if v.risk[id] > risk.HighRiskThreshold {
			candidates = append(candidates, id)
		}
	}

	for _, comp := range v.components(candidates) {
		if len(comp) < MinRingSize {
			continue
		}

		members := make(map[string]bool, len(comp))
		for _, id := range comp {
			members[id] = true
		}
		edgeIDs := []string{}
		for _, e := range edges {
			if members[e.SourceNodeID] && members[e.TargetNodeID] {
				edgeIDs = append(edgeIDs, e.ID)
			}
		}

		density := v.density(comp)
		rings = append(rings, Ring{
			ID:          idgen.WithPrefix("ring-"),
			Name:        fmt.Sprintf("Fraud Ring %d", len(rings)+1),
			Description: fmt.Sprintf("Suspicious activity ring with %d nodes", len(comp)),
			NodeIDs:     comp,
			EdgeIDs:     edgeIDs,
			RiskScore:   risk.Mean(v.riskScores(comp)),
			Confidence:  risk.Confidence(density),
			RingType:    RingTypeSuspiciousCluster,
			DetectedAt:  time.Now().UTC(),
			Metadata: map[string]any{
				"density":          density,
				"size":             len(comp),
				"detection_method": "risk_based_clustering",
			},
		})
	}

	return rings
}
