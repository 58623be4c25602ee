// twist/twist.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package twist converts between lat/long and a local Cartesian plane
// whose first axis is aligned with a chosen bearing.
package twist

import (
	gomath "math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"

	"github.com/sarplan/deconflict/math"
)

// Twister projects points onto the plane tangent to the earth at Origin
// (gnomonic projection, nautical miles) and rotates the result so that +u
// points along Bearing and +v is 90 degrees counter-clockwise of +u.
// A point is only guaranteed to round-trip through the Twister that
// produced it.
type Twister struct {
	Origin  s2.LatLng
	Bearing float64

	up, east, north r3.Vector
	sinB, cosB      float64
}

func New(origin s2.LatLng, bearing float64) *Twister {
	lat, lng := origin.Lat.Radians(), origin.Lng.Radians()
	sinLat, cosLat := gomath.Sincos(lat)
	sinLng, cosLng := gomath.Sincos(lng)

	b := math.NormalizeHeading(bearing)
	sinB, cosB := gomath.Sincos(math.Radians(b))

	return &Twister{
		Origin:  origin,
		Bearing: b,
		up:      s2.PointFromLatLng(origin).Vector,
		east:    r3.Vector{X: -sinLng, Y: cosLng, Z: 0},
		north:   r3.Vector{X: -sinLat * cosLng, Y: -sinLat * sinLng, Z: cosLat},
		sinB:    sinB,
		cosB:    cosB,
	}
}

// Convert returns the twisted coordinates of ll. The returned bool is
// false for points on or beyond the origin's horizon, which have no
// image in the tangent plane.
func (t *Twister) Convert(ll s2.LatLng) (u, v float64, ok bool) {
	p := s2.PointFromLatLng(ll).Vector
	d := p.Dot(t.up)
	if d <= 1e-9 {
		return 0, 0, false
	}

	e := math.EarthRadiusNM * p.Dot(t.east) / d
	n := math.EarthRadiusNM * p.Dot(t.north) / d
	return e*t.sinB + n*t.cosB, -e*t.cosB + n*t.sinB, true
}

// ConvertPoint is Convert returning an orb.Point; points beyond the
// horizon map to the origin.
func (t *Twister) ConvertPoint(ll s2.LatLng) orb.Point {
	u, v, _ := t.Convert(ll)
	return orb.Point{u, v}
}

// Unconvert is the exact inverse of Convert.
func (t *Twister) Unconvert(u, v float64) s2.LatLng {
	e := u*t.sinB - v*t.cosB
	n := u*t.cosB + v*t.sinB

	p := t.up.Add(t.east.Mul(e / math.EarthRadiusNM)).Add(t.north.Mul(n / math.EarthRadiusNM))
	return s2.LatLngFromPoint(s2.Point{Vector: p.Normalize()})
}

// UnconvertPoint is Unconvert for an orb.Point.
func (t *Twister) UnconvertPoint(p orb.Point) s2.LatLng {
	return t.Unconvert(p[0], p[1])
}

// Ring twists each vertex of the given loop into a closed orb.Ring.
// Vertices beyond the horizon are reported via the returned bool.
func (t *Twister) Ring(l *s2.Loop) (orb.Ring, bool) {
	n := l.NumVertices()
	r := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		u, v, ok := t.Convert(s2.LatLngFromPoint(l.Vertex(i)))
		if !ok {
			return nil, false
		}
		r = append(r, orb.Point{u, v})
	}
	if n > 0 {
		r = append(r, r[0])
	}
	return r, true
}
