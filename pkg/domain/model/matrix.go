package model

import (
	"maps"
	"slices"
	"sort"
	"strings"
)

// Matrix maps parameter names to their candidate values. The pipeline's
// matrixed steps run once per combination of values.
type Matrix map[string][]string

// Combination is one concrete assignment of matrix parameters.
type Combination map[string]string

// Key renders the combination as "k=v,k=v" with sorted keys. It is used as
// the stable identifier in logs and step records.
func (x Combination) Key() string {
	if len(x) == 0 {
		return ""
	}
	keys := slices.Sorted(maps.Keys(x))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+x[k])
	}
	return strings.Join(parts, ",")
}

// Expand enumerates every combination in deterministic order: keys are
// sorted and values keep their declared order, with the last key varying
// fastest. An empty matrix yields a single empty combination so pipelines
// without a matrix still run their steps once.
func (x Matrix) Expand() []Combination {
	keys := make([]string, 0, len(x))
	for k := range x {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []Combination{{}}
	for _, key := range keys {
		values := x[key]
		next := make([]Combination, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, v := range values {
				c := maps.Clone(combo)
				c[key] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}
