package analysis

import (
	"fmt"

	"github.com/mbd888/ringtrace/internal/risk"
)

// generateRecommendations renders the operator-facing summary lines for one
// analysis pass. These are templated strings keyed off counts and
// thresholds, nothing more; the structured result carries the real data.
func generateRecommendations(rings []Ring, communities []Community, assessment risk.Assessment) []string {
	var recs []string

	if len(rings) > 0 {
		recs = append(recs, fmt.Sprintf("Investigate %d detected fraud rings", len(rings)))
		highRisk := 0
		for _, r := range rings {
			if r.RiskScore > 0.8 {
				highRisk++
			}
		}
		if highRisk > 0 {
			recs = append(recs, fmt.Sprintf("Immediate attention required for %d high-risk fraud rings", highRisk))
		}
	}

	suspicious := 0
	for _, c := range communities {
		if c.IsSuspicious {
			suspicious++
		}
	}
	if suspicious > 0 {
		recs = append(recs, fmt.Sprintf("Monitor %d suspicious communities", suspicious))
	}

	switch {
	case assessment.CombinedRisk > 0.8:
		recs = append(recs, "High risk detected - consider enhanced monitoring")
	case assessment.CombinedRisk > 0.5:
		recs = append(recs, "Medium risk detected - continue regular monitoring")
	default:
		recs = append(recs, "Low risk - standard monitoring sufficient")
	}

	recs = append(recs,
		"Regular graph analysis recommended",
		"Update fraud detection models based on new patterns",
	)

	return recs
}
