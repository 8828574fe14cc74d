package analysis

import (
	"sort"

	"github.com/mbd888/ringtrace/internal/graph"
)

// view is the structural form the detectors work on: an undirected simple
// graph over the nodes that actually exist. Edges whose endpoints never
// resolved are dropped, self-loops are ignored, and parallel edges collapse
// into one adjacency. Node ids are kept sorted so every traversal is
// deterministic.
type view struct {
	ids       []string // sorted
	risk      map[string]float64
	nodeTypes map[string]graph.NodeType
	adj       map[string]map[string]bool
	edgeCount int // structural (simple) edge count
}

// newView builds the structural view from stored nodes and edges.
func newView(nodes []*graph.Node, edges []*graph.Edge) *view {
	v := &view{
		risk:      make(map[string]float64, len(nodes)),
		nodeTypes: make(map[string]graph.NodeType, len(nodes)),
		adj:       make(map[string]map[string]bool, len(nodes)),
	}

	for _, n := range nodes {
		if _, dup := v.adj[n.ID]; dup {
			continue
		}
		v.ids = append(v.ids, n.ID)
		v.risk[n.ID] = n.RiskScore
		v.nodeTypes[n.ID] = n.Type
		v.adj[n.ID] = make(map[string]bool)
	}
	sort.Strings(v.ids)

	for _, e := range edges {
		if !v.has(e.SourceNodeID) || !v.has(e.TargetNodeID) {
			continue // dangling endpoint, skip
		}
		if e.SourceNodeID == e.TargetNodeID {
			continue // self-loops carry no structure
		}
		if v.adj[e.SourceNodeID][e.TargetNodeID] {
			continue // parallel edge, already connected
		}
		v.adj[e.SourceNodeID][e.TargetNodeID] = true
		v.adj[e.TargetNodeID][e.SourceNodeID] = true
		v.edgeCount++
	}

	return v
}

func (v *view) has(id string) bool {
	_, ok := v.adj[id]
	return ok
}

func (v *view) nodeCount() int { return len(v.ids) }

// neighbors returns the adjacent node ids in sorted order.
func (v *view) neighbors(id string) []string {
	out := make([]string, 0, len(v.adj[id]))
	for n := range v.adj[id] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (v *view) degree(id string) int { return len(v.adj[id]) }

// components returns the connected components over the given node subset,
// each sorted by id, ordered by their smallest member. A nil subset means
// the whole view.
func (v *view) components(subset []string) [][]string {
	if subset == nil {
		subset = v.ids
	}
	in := make(map[string]bool, len(subset))
	for _, id := range subset {
		in[id] = true
	}

	visited := make(map[string]bool, len(subset))
	var comps [][]string

	for _, start := range subset {
		if visited[start] {
			continue
		}
		// BFS restricted to the subset
		comp := []string{}
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			comp = append(comp, id)
			for _, n := range v.neighbors(id) {
				if in[n] && !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
		sort.Strings(comp)
		comps = append(comps, comp)
	}

	return comps
}

// subsetEdges counts structural edges with both endpoints in the subset.
func (v *view) subsetEdges(subset []string) int {
	in := make(map[string]bool, len(subset))
	for _, id := range subset {
		in[id] = true
	}
	count := 0
	for _, id := range subset {
		for n := range v.adj[id] {
			if in[n] && id < n { // each pair once
				count++
			}
		}
	}
	return count
}

// density is actual over possible edges within the subset. A subset with
// fewer than two nodes has no possible edges and density 0.
func (v *view) density(subset []string) float64 {
	k := len(subset)
	if k < 2 {
		return 0
	}
	possible := float64(k*(k-1)) / 2
	return float64(v.subsetEdges(subset)) / possible
}

// riskScores collects member risk scores in id order.
func (v *view) riskScores(subset []string) []float64 {
	scores := make([]float64, 0, len(subset))
	for _, id := range subset {
		scores = append(scores, v.risk[id])
	}
	return scores
}

// bfsDistances returns hop counts from start to every reachable node.
func (v *view) bfsDistances(start string) map[string]int {
	dist := map[string]int{start: 0}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, n := range v.neighbors(id) {
			if _, seen := dist[n]; !seen {
				dist[n] = dist[id] + 1
				queue = append(queue, n)
			}
		}
	}
	return dist
}
