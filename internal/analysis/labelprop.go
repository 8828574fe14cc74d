package analysis

import "sort"

// maxLabelPropagationSweeps bounds the propagation loop. Real inputs settle
// in a handful of sweeps; the cap only guards against label oscillation.
const maxLabelPropagationSweeps = 100

// partitionLabelPropagation partitions the view by iterative label
// spreading. Every node starts with its own id as label and repeatedly
// adopts the label held by most of its neighbors, with ties broken toward
// the smallest label. Sweeps run over nodes in id order and updates apply
// immediately, so the outcome is deterministic for a given view.
func partitionLabelPropagation(v *view) [][]string {
	labelOf := make(map[string]string, v.nodeCount())
	for _, id := range v.ids {
		labelOf[id] = id
	}

	for sweep := 0; sweep < maxLabelPropagationSweeps; sweep++ {
		changed := false
		for _, id := range v.ids {
			if v.degree(id) == 0 {
				continue // isolated nodes keep their own label
			}

			counts := make(map[string]int)
			for n := range v.adj[id] {
				counts[labelOf[n]]++
			}

			best := ""
			bestCount := 0
			labels := make([]string, 0, len(counts))
			for l := range counts {
				labels = append(labels, l)
			}
			sort.Strings(labels)
			for _, l := range labels {
				if counts[l] > bestCount {
					best = l
					bestCount = counts[l]
				}
			}

			if best != labelOf[id] {
				labelOf[id] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	return groupByLabel(v.ids, labelOf)
}
