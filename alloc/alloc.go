// alloc/alloc.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package alloc turns a simple polygon in twisted coordinates into an
// area-proportional cumulative allocator along the u axis: a weight
// interval [lo,hi] maps to the slice of the polygon between the two u
// positions that split off those fractions of its area.
package alloc

import (
	"errors"
	gomath "math"

	"github.com/mmp/earcut-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

var (
	ErrDegeneratePolygon = errors.New("polygon has no area")
	ErrBadInterval       = errors.New("invalid allocation interval")
	ErrEmptyRegion       = errors.New("allocation interval covers no part of the polygon")
)

// bisection steps for UAt; enough to resolve well below a meter over any
// plausible search area.
const bisectSteps = 64

type Allocator struct {
	ring  orb.Ring
	bound orb.Bound
	tris  [][3]orb.Point
	area  float64
}

// New builds an allocator for the given ring, which may be open or closed
// and in either orientation.
func New(ring orb.Ring) (*Allocator, error) {
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(append(orb.Ring(nil), ring...), ring[0])
	}
	if len(ring) < 4 {
		return nil, ErrDegeneratePolygon
	}

	a := &Allocator{ring: ring, bound: ring.Bound()}

	vertices := make([]earcut.Vertex, len(ring)-1)
	for i := range vertices {
		vertices[i].P = [2]float64{ring[i][0], ring[i][1]}
	}
	for _, tri := range earcut.Triangulate(earcut.Polygon{Rings: [][]earcut.Vertex{vertices}}) {
		var t [3]orb.Point
		for i, v := range tri.Vertices {
			t[i] = orb.Point{v.P[0], v.P[1]}
		}
		a.tris = append(a.tris, t)
		a.area += triangleArea(t)
	}

	if a.area <= 0 || gomath.Abs(planar.Area(ring)) <= 0 {
		return nil, ErrDegeneratePolygon
	}
	return a, nil
}

// Area returns the polygon's area.
func (a *Allocator) Area() float64 { return a.area }

// Bound returns the polygon's bounding box.
func (a *Allocator) Bound() orb.Bound { return a.bound }

// FractionAt returns the fraction of the polygon's area with u
// coordinate less than u.
func (a *Allocator) FractionAt(u float64) float64 {
	if u <= a.bound.Min[0] {
		return 0
	} else if u >= a.bound.Max[0] {
		return 1
	}

	var left float64
	for _, t := range a.tris {
		left += areaLeftOf(t, u)
	}
	return min(1, max(0, left/a.area))
}

// UAt is the inverse of FractionAt.
func (a *Allocator) UAt(f float64) float64 {
	lo, hi := a.bound.Min[0], a.bound.Max[0]
	if f <= 0 {
		return lo
	} else if f >= 1 {
		return hi
	}
	for range bisectSteps {
		mid := (lo + hi) / 2
		if a.FractionAt(mid) < f {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// Query returns the bounding box of the part of the polygon allocated to
// the weight interval [lo,hi].
func (a *Allocator) Query(lo, hi float64) (orb.Bound, error) {
	const eps = 1e-9
	if gomath.IsNaN(lo) || gomath.IsNaN(hi) || lo < -eps || hi > 1+eps || hi-lo <= eps {
		return orb.Bound{}, ErrBadInterval
	}

	u0, u1 := a.UAt(lo), a.UAt(hi)
	strip := orb.Bound{
		Min: orb.Point{u0, a.bound.Min[1] - 1},
		Max: orb.Point{u1, a.bound.Max[1] + 1},
	}
	clipped := clip.Polygon(strip, orb.Polygon{a.ring})
	if len(clipped) == 0 || len(clipped[0]) == 0 {
		return orb.Bound{}, ErrEmptyRegion
	}

	b := clipped.Bound()
	if b.Max[0]-b.Min[0] <= 0 || b.Max[1]-b.Min[1] <= 0 {
		return orb.Bound{}, ErrEmptyRegion
	}
	return b, nil
}

func triangleArea(t [3]orb.Point) float64 {
	return gomath.Abs((t[1][0]-t[0][0])*(t[2][1]-t[0][1])-(t[2][0]-t[0][0])*(t[1][1]-t[0][1])) / 2
}

// areaLeftOf clips the triangle against the half-plane x <= u and returns
// the area of what remains.
func areaLeftOf(t [3]orb.Point, u float64) float64 {
	var poly [4]orb.Point
	n := 0
	for i := range 3 {
		p, q := t[i], t[(i+1)%3]
		pin, qin := p[0] <= u, q[0] <= u
		if pin {
			poly[n] = p
			n++
		}
		if pin != qin {
			s := (u - p[0]) / (q[0] - p[0])
			poly[n] = orb.Point{u, p[1] + s*(q[1]-p[1])}
			n++
		}
	}

	var a float64
	for i := range n {
		p, q := poly[i], poly[(i+1)%n]
		a += p[0]*q[1] - q[0]*p[1]
	}
	return gomath.Abs(a) / 2
}
