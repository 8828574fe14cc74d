package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/mbd888/ringtrace/internal/idgen"
	"github.com/mbd888/ringtrace/internal/logging"
	"github.com/mbd888/ringtrace/internal/risk"
)

// MinCommunitySize is the smallest partition reported as a community.
const MinCommunitySize = 2

// communityStrategy is one partitioning attempt in the ordered fallback
// chain. Strategies return raw partitions plus metadata stamped on every
// community they produce; panics and empty outputs both mean "try the
// next one".
type communityStrategy struct {
	name string
	run  func(v *view) ([][]string, map[string]any)
}

func communityStrategies() []communityStrategy {
	return []communityStrategy{
		{
			name: "greedy_modularity",
			run: func(v *view) ([][]string, map[string]any) {
				parts, q := partitionGreedyModularity(v)
				return parts, map[string]any{
					"detection_algorithm": "greedy_modularity",
					"modularity":          q,
				}
			},
		},
		{
			name: "label_propagation",
			run: func(v *view) ([][]string, map[string]any) {
				return partitionLabelPropagation(v), map[string]any{
					"detection_algorithm": "label_propagation",
				}
			},
		},
	}
}

// detectCommunities partitions the whole view and classifies each partition
// by its members' average risk. Strategies are tried in order; one that
// panics or yields nothing of reportable size passes control to the next,
// and if every strategy comes up empty the result is an empty list, never
// an error. Analysis degrades, it does not abort.
func detectCommunities(ctx context.Context, v *view) []Community {
	communities := []Community{}

	if v.nodeCount() < MinCommunitySize {
		return communities
	}

	for _, strat := range communityStrategies() {
		parts, meta, err := runStrategy(strat, v)
		if err != nil {
			logging.L(ctx).Warn("community detection strategy failed",
				"algorithm", strat.name, "error", err)
			continue
		}

		usable := parts[:0]
		for _, p := range parts {
			if len(p) >= MinCommunitySize {
				usable = append(usable, p)
			}
		}
		if len(usable) == 0 {
			continue
		}

		for i, part := range usable {
			score := risk.Mean(v.riskScores(part))
			md := make(map[string]any, len(meta))
			for k, val := range meta {
				md[k] = val
			}
			communities = append(communities, Community{
				ID:           idgen.WithPrefix("community-"),
				Name:         fmt.Sprintf("Community %d", i+1),
				Type:         risk.Classify(score),
				NodeIDs:      part,
				Size:         len(part),
				Density:      v.density(part),
				RiskScore:    score,
				IsSuspicious: risk.IsSuspicious(score),
				DetectedAt:   time.Now().UTC(),
				Metadata:     md,
			})
		}
		return communities
	}

	return communities
}

// runStrategy executes one strategy with a panic guard so an algorithmic
// blowup degrades into fallback instead of killing the analysis.
func runStrategy(strat communityStrategy, v *view) (parts [][]string, meta map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			parts, meta = nil, nil
			err = fmt.Errorf("analysis: %s panicked: %v", strat.name, r)
		}
	}()
	parts, meta = strat.run(v)
	return parts, meta, nil
}
