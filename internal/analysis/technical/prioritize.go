package technical

import "sort"

// Prioritize reorders items so oversold names come first and overbought names
// last. Order within each group is preserved and no item is added or dropped.
func Prioritize[T any](items []T, closes func(T) []float64) []T {
	if len(items) < 2 {
		return items
	}
	conds := make([]Condition, len(items))
	for i, it := range items {
		conds[i] = Classify(closes(it))
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return conds[idx[a]] < conds[idx[b]]
	})

	out := make([]T, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}
