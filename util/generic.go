// util/generic.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import "golang.org/x/exp/constraints"

func Select[T any](sel bool, a, b T) T {
	if sel {
		return a
	}
	return b
}

// MapSlice applies xform to each element of from.
func MapSlice[F, T any](from []F, xform func(F) T) []T {
	to := make([]T, len(from))
	for i, item := range from {
		to[i] = xform(item)
	}
	return to
}

// FilterSlice returns the elements of s that satisfy pred, in order. s is
// not modified.
func FilterSlice[V any](s []V, pred func(V) bool) []V {
	var kept []V
	for _, item := range s {
		if pred(item) {
			kept = append(kept, item)
		}
	}
	return kept
}

// ArgMax returns the index of the element of s with the largest score,
// skipping elements for which ok returns false. Ties go to the earliest
// element; -1 is returned if no element qualifies.
func ArgMax[V any, S constraints.Ordered](s []V, ok func(V) bool, score func(V) S) int {
	best := -1
	var bestScore S
	for i, v := range s {
		if !ok(v) {
			continue
		}
		if sc := score(v); best == -1 || sc > bestScore {
			best, bestScore = i, sc
		}
	}
	return best
}
