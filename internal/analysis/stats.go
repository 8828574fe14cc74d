package analysis

import (
	"sort"
	"time"

	"github.com/mbd888/ringtrace/internal/graph"
)

const topCentralNodeCount = 10

// computeStatistics derives the descriptive statistics block from the
// structural view. Path length and diameter are only meaningful on a
// connected graph and report 0 otherwise.
func computeStatistics(v *view, edges []*graph.Edge) Statistics {
	stats := Statistics{
		NodeTypeDistribution: map[string]int{},
		EdgeTypeDistribution: map[string]int{},
		TopCentralNodes:      []string{},
		LastCalculated:       time.Now().UTC(),
	}

	n := v.nodeCount()
	if n == 0 {
		return stats
	}

	stats.NodeCount = n
	stats.EdgeCount = v.edgeCount
	if n >= 2 {
		stats.Density = float64(2*v.edgeCount) / float64(n*(n-1))
	}
	stats.AverageClusteringCoefficient = averageClustering(v)

	comps := v.components(nil)
	stats.ConnectedComponents = len(comps)
	if len(comps) == 1 && n > 1 {
		stats.AveragePathLength, stats.GraphDiameter = pathMetrics(v)
	}

	for _, id := range v.ids {
		stats.NodeTypeDistribution[string(v.nodeTypes[id])]++
	}
	for _, e := range edges {
		if !v.has(e.SourceNodeID) || !v.has(e.TargetNodeID) || e.SourceNodeID == e.TargetNodeID {
			continue
		}
		stats.EdgeTypeDistribution[string(e.Type)]++
	}

	stats.TopCentralNodes = topByDegree(v, topCentralNodeCount)

	return stats
}

// averageClustering is the mean local clustering coefficient over every
// node. Nodes with fewer than two neighbors contribute 0.
func averageClustering(v *view) float64 {
	if v.nodeCount() == 0 {
		return 0
	}

	total := 0.0
	for _, id := range v.ids {
		neighbors := v.neighbors(id)
		k := len(neighbors)
		if k < 2 {
			continue
		}
		links := 0
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				if v.adj[neighbors[i]][neighbors[j]] {
					links++
				}
			}
		}
		total += float64(2*links) / float64(k*(k-1))
	}
	return total / float64(v.nodeCount())
}

// pathMetrics computes average shortest path length and diameter via BFS
// from every node. Callers only invoke this on a connected view.
func pathMetrics(v *view) (avgPath float64, diameter int) {
	n := v.nodeCount()
	totalDist := 0
	for _, id := range v.ids {
		for _, d := range v.bfsDistances(id) {
			totalDist += d
			if d > diameter {
				diameter = d
			}
		}
	}
	// Every ordered pair counted once; distances to self are 0.
	avgPath = float64(totalDist) / float64(n*(n-1))
	return avgPath, diameter
}

// topByDegree returns up to limit node ids by descending degree, ids
// ascending on equal degree.
func topByDegree(v *view, limit int) []string {
	ids := append([]string(nil), v.ids...)
	sort.Slice(ids, func(i, j int) bool {
		di, dj := v.degree(ids[i]), v.degree(ids[j])
		if di == dj {
			return ids[i] < ids[j]
		}
		return di > dj
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}
