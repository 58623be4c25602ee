// loop/loop.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package loop provides the spherical polygon operations used to bound
// birds nests: construction, merging, and edge analysis.
package loop

import (
	"errors"
	"slices"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"

	"github.com/sarplan/deconflict/math"
	"github.com/sarplan/deconflict/twist"
)

var (
	ErrTooFewVertices = errors.New("loop needs at least three vertices")
	ErrBeyondHorizon  = errors.New("loop spans more than a hemisphere")
)

// minArea is the smallest loop area (steradians) treated as non-empty;
// about 1e-4 square nautical miles.
const minArea = 1e-14

// FromLatLngs returns a counter-clockwise loop through the given vertices,
// which may be given in either orientation.
func FromLatLngs(pts []s2.LatLng) (*s2.Loop, error) {
	if len(pts) < 3 {
		return nil, ErrTooFewVertices
	}

	tw := twist.New(centroid(pts), 90) // u east, v north
	var signedArea float64
	for i := range pts {
		u0, v0, ok0 := tw.Convert(pts[i])
		u1, v1, ok1 := tw.Convert(pts[(i+1)%len(pts)])
		if !ok0 || !ok1 {
			return nil, ErrBeyondHorizon
		}
		signedArea += u0*v1 - u1*v0
	}

	points := make([]s2.Point, len(pts))
	for i, p := range pts {
		points[i] = s2.PointFromLatLng(p)
	}
	if signedArea < 0 {
		slices.Reverse(points)
	}
	return s2.LoopFromPoints(points), nil
}

// Rectangle returns the loop of an along x across rectangle centered at
// center whose along axis has the given orientation.
func Rectangle(center s2.LatLng, orientation, along, across float64) *s2.Loop {
	tw := twist.New(center, orientation)
	a, c := along/2, across/2
	return s2.LoopFromPoints([]s2.Point{
		s2.PointFromLatLng(tw.Unconvert(-a, -c)),
		s2.PointFromLatLng(tw.Unconvert(a, -c)),
		s2.PointFromLatLng(tw.Unconvert(a, c)),
		s2.PointFromLatLng(tw.Unconvert(-a, c)),
	})
}

// Merge returns a single outer loop enclosing all of the given loops. nil
// entries and degenerate loops are ignored; nil is returned if nothing
// with positive area remains.
func Merge(loops []*s2.Loop) *s2.Loop {
	q := s2.NewConvexHullQuery()
	n := 0
	for _, l := range loops {
		if l == nil || l.IsEmpty() || l.NumVertices() < 3 {
			continue
		}
		q.AddLoop(l)
		n++
	}
	if n == 0 {
		return nil
	}

	hull := q.ConvexHull()
	if hull == nil || hull.IsEmpty() || hull.IsFull() || hull.NumVertices() < 3 || hull.Area() < minArea {
		return nil
	}
	return hull
}

// Vertices returns the loop's vertices as lat/longs.
func Vertices(l *s2.Loop) []s2.LatLng {
	v := make([]s2.LatLng, l.NumVertices())
	for i := range v {
		v[i] = s2.LatLngFromPoint(l.Vertex(i))
	}
	return v
}

// Centroid returns the normalized mean of the loop's vertices.
func Centroid(l *s2.Loop) s2.LatLng {
	return centroid(Vertices(l))
}

func centroid(pts []s2.LatLng) s2.LatLng {
	var c r3.Vector
	for _, p := range pts {
		c = c.Add(s2.PointFromLatLng(p).Vector)
	}
	if c.Norm2() == 0 {
		return s2.LatLng{}
	}
	return s2.LatLngFromPoint(s2.Point{Vector: c.Normalize()})
}

// Contains reports whether the loop contains the given position.
func Contains(l *s2.Loop, ll s2.LatLng) bool {
	return l != nil && l.ContainsPoint(s2.PointFromLatLng(ll))
}

// AreaNM2 returns the loop's area in square nautical miles.
func AreaNM2(l *s2.Loop) float64 {
	return l.Area() * math.Sqr(math.EarthRadiusNM)
}
