// loop/bearings.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package loop

import (
	"sort"

	"github.com/golang/geo/s2"

	"github.com/sarplan/deconflict/math"
)

// Edge is one side of a loop.
type Edge struct {
	From, To s2.LatLng
	// Heading is the undirected line angle in [0,180).
	Heading float64
	Length  float64 // nm
}

func Edges(l *s2.Loop) []Edge {
	v := Vertices(l)
	edges := make([]Edge, 0, len(v))
	for i := range v {
		a, b := v[i], v[(i+1)%len(v)]
		d := math.NMDistance(a, b)
		if d == 0 {
			continue
		}
		edges = append(edges, Edge{
			From:    a,
			To:      b,
			Heading: math.LineAngle(math.Heading(a, b)),
			Length:  d,
		})
	}
	return edges
}

// CriticalBearings returns up to maxBearings candidate bearings taken from
// the loop's longest edges. Edges whose headings are within mergeDeg of a
// longer edge's heading are folded into it.
func CriticalBearings(l *s2.Loop, mergeDeg float64, maxBearings int) []float64 {
	edges := Edges(l)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Length > edges[j].Length })

	var bearings []float64
	for _, e := range edges {
		if len(bearings) == maxBearings {
			break
		}
		distinct := true
		for _, b := range bearings {
			if math.LineAngleDifference(b, e.Heading) < mergeDeg {
				distinct = false
				break
			}
		}
		if distinct {
			bearings = append(bearings, e.Heading)
		}
	}
	return bearings
}

// EvenBearings returns n bearings evenly spaced over [0,180).
func EvenBearings(n int) []float64 {
	b := make([]float64, n)
	for i := range b {
		b[i] = 180 * float64(i) / float64(n)
	}
	return b
}
