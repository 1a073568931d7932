package strategy

import "github.com/seenimoa/openrank/pkg/utils"

// Dedupe keeps one entry per underlying company, identified by ticker root.
// The survivor takes the slot of the group's first entry, so an already
// sorted slice stays sorted by its best member. replace reports whether
// candidate should displace current.
func Dedupe[T any](items []T, ticker func(T) string, replace func(current, candidate T) bool) []T {
	slot := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		root := utils.TickerRoot(ticker(it))
		if i, seen := slot[root]; seen {
			if replace(out[i], it) {
				out[i] = it
			}
			continue
		}
		slot[root] = len(out)
		out = append(out, it)
	}
	return out
}
