// deconflict/overlap.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package deconflict

import (
	"github.com/golang/geo/s2"

	"github.com/sarplan/deconflict/sar"
	"github.com/sarplan/deconflict/util"
)

// OverlapFinder is the default sar.NestFinder: PVs whose exclusion regions
// overlap, directly or through other PVs, form a nest.
type OverlapFinder struct{}

func (OverlapFinder) FindNests(c *sar.Case, placements sar.Placements) []sar.Nest {
	n := len(placements)
	loops := make([]*s2.Loop, n)
	for i, p := range placements {
		if i < c.PVs.Len() {
			loops[i] = p.Loop(c.PVs.At(i).ExclusionBuffer)
		}
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for i := range n {
		if loops[i] == nil {
			continue
		}
		for j := i + 1; j < n; j++ {
			if loops[j] != nil && find(i) != find(j) && loops[i].Intersects(loops[j]) {
				// Root at the smaller ordinal so nests come out in order.
				ri, rj := find(i), find(j)
				parent[max(ri, rj)] = min(ri, rj)
			}
		}
	}

	var nests []sar.Nest
	index := make(map[int]int)
	for i := range n {
		if loops[i] == nil {
			continue
		}
		r := find(i)
		k, ok := index[r]
		if !ok {
			k = len(nests)
			index[r] = k
			nests = append(nests, make(sar.Nest, n))
		}
		nests[k][i] = true
	}

	// Only clusters of two or more are nests.
	return util.FilterSlice(nests, func(nst sar.Nest) bool { return nst.Count() >= 2 })
}
