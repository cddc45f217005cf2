package ctxengine

import (
	"cmp"
	"slices"
)

// Timestamped exposes a timestamp that may be missing or unparseable.
type Timestamped interface {
	// Float returns the parsed timestamp and whether parsing succeeded.
	Float() (float64, bool)
}

// RecencyOrder returns the indices of items sorted by resolved timestamp,
// newest first. An item whose timestamp does not parse resolves to its own
// index. Ties keep their original relative order.
func RecencyOrder[T Timestamped](items []T) []int {
	type keyed struct {
		index int
		value float64
	}
	keys := make([]keyed, len(items))
	for i, item := range items {
		v, ok := item.Float()
		if !ok {
			v = float64(i)
		}
		keys[i] = keyed{index: i, value: v}
	}

	slices.SortStableFunc(keys, func(a, b keyed) int {
		return cmp.Compare(b.value, a.value)
	})

	order := make([]int, len(keys))
	for i, k := range keys {
		order[i] = k.index
	}
	return order
}

// Permute returns s reordered by order. Indices outside s yield the zero value.
func Permute[T any](s []T, order []int) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(order))
	for i, idx := range order {
		if idx >= 0 && idx < len(s) {
			out[i] = s[idx]
		}
	}
	return out
}
