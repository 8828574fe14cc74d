package analysis

import "sort"

// partitionGreedyModularity is agglomerative modularity maximization in the
// Clauset-Newman-Moore style. Every node starts in its own community and
// the connected pair whose merge gains the most modularity is folded
// together until no merge improves the score.
//
// Q = sum over communities c of [l_c/m - (d_c/2m)^2], with m the total edge
// count, l_c the intra-community edge count, and d_c the community degree
// sum. Merging communities a and b changes Q by l_ab/m - d_a*d_b/(2m^2).
//
// Communities are labeled by their smallest member id and candidate merges
// are scanned in label order, so equal gains always resolve the same way.
// Returns the partition and its final modularity. An edgeless view stays
// all singletons, which callers treat as "no usable partition".
func partitionGreedyModularity(v *view) ([][]string, float64) {
	m := float64(v.edgeCount)
	if m == 0 {
		return nil, 0
	}

	labelOf := make(map[string]string, v.nodeCount()) // node -> community label
	members := make(map[string][]string)              // label -> member ids
	degSum := make(map[string]float64)                // label -> degree sum
	intra := make(map[string]float64)                 // label -> intra-community edges
	between := make(map[string]map[string]float64)    // label pair -> edges between

	for _, id := range v.ids {
		labelOf[id] = id
		members[id] = []string{id}
		degSum[id] = float64(v.degree(id))
		between[id] = make(map[string]float64)
	}
	for _, id := range v.ids {
		for n := range v.adj[id] {
			if id < n {
				between[id][n]++
				between[n][id]++
			}
		}
	}

	labels := append([]string(nil), v.ids...)

	for len(labels) > 1 {
		bestGain := 0.0
		var bestA, bestB string

		for _, a := range labels {
			row := between[a]
			bs := make([]string, 0, len(row))
			for b := range row {
				if a < b {
					bs = append(bs, b)
				}
			}
			sort.Strings(bs)
			for _, b := range bs {
				gain := row[b]/m - degSum[a]*degSum[b]/(2*m*m)
				if gain > bestGain {
					bestGain = gain
					bestA, bestB = a, b
				}
			}
		}

		if bestA == "" {
			break // no merge improves modularity
		}

		// Fold bestB into bestA. bestA sorts first, so the merged label is
		// still the smallest member id.
		for _, id := range members[bestB] {
			labelOf[id] = bestA
		}
		members[bestA] = append(members[bestA], members[bestB]...)
		intra[bestA] += intra[bestB] + between[bestA][bestB]
		degSum[bestA] += degSum[bestB]
		for other, cnt := range between[bestB] {
			if other == bestA {
				continue
			}
			between[bestA][other] += cnt
			between[other][bestA] += cnt
			delete(between[other], bestB)
		}
		delete(between[bestA], bestB)
		delete(members, bestB)
		delete(degSum, bestB)
		delete(intra, bestB)
		delete(between, bestB)

		next := labels[:0]
		for _, l := range labels {
			if l != bestB {
				next = append(next, l)
			}
		}
		labels = next
	}

	q := 0.0
	for _, l := range labels {
		half := degSum[l] / (2 * m)
		q += intra[l]/m - half*half
	}

	return groupByLabel(v.ids, labelOf), q
}

// groupByLabel turns a node -> label assignment into sorted partitions
// ordered by their smallest member.
func groupByLabel(ids []string, labelOf map[string]string) [][]string {
	byLabel := make(map[string][]string)
	for _, id := range ids {
		l := labelOf[id]
		byLabel[l] = append(byLabel[l], id)
	}

	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	parts := make([][]string, 0, len(labels))
	for _, l := range labels {
		part := byLabel[l]
		sort.Strings(part)
		parts = append(parts, part)
	}
	return parts
}
