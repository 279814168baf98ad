package aggregate

import (
	"sort"

	"github.com/calgarydata/communityatlas/internal/types"
)

// Rankings sorts the given stats descending per countable metric and
// records each boundary's 1-based rank, keyed by boundary name. Ties keep
// the input order (which callers supply in original boundary order). Pure
// function: the input records are not modified.
func Rankings(stats []*types.CommunityStats) map[string]map[string]int {
	out := make(map[string]map[string]int, len(stats))

	for _, metric := range types.RankedMetrics {
		idx := make([]int, len(stats))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return stats[idx[a]].Metric(metric) > stats[idx[b]].Metric(metric)
		})

		for rank, si := range idx {
			name := stats[si].Name
			if out[name] == nil {
				out[name] = make(map[string]int, len(types.RankedMetrics))
			}
			out[name][metric] = rank + 1
		}
	}
	return out
}
