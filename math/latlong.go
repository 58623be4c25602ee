// math/latlong.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"fmt"
	gomath "math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusNM is the mean earth radius in nautical miles.
const EarthRadiusNM = 3440.065

const NMPerLatitude = 60

const NMToMeters = 1852

// LatLng returns the s2 lat/long for the given coordinates in degrees.
func LatLng(lat, lng float64) s2.LatLng {
	return s2.LatLngFromDegrees(lat, lng)
}

// DDString returns the position in decimal degrees, e.g.:
// (39.860901, -75.274864)
func DDString(p s2.LatLng) string {
	return fmt.Sprintf("(%f, %f)", p.Lat.Degrees(), p.Lng.Degrees())
}

// NMDistance returns the great-circle distance in nautical miles between
// two lat-long coordinates.
func NMDistance(a, b s2.LatLng) float64 {
	return AngleToNM(a.Distance(b))
}

// AngleToNM converts an arc on the earth's surface to nautical miles.
func AngleToNM(a s1.Angle) float64 {
	return a.Radians() * EarthRadiusNM
}

// Heading returns the initial great-circle heading from |from| to |to| in
// degrees clockwise from true north, in [0,360).
func Heading(from, to s2.LatLng) float64 {
	lat1, lat2 := from.Lat.Radians(), to.Lat.Radians()
	dlng := to.Lng.Radians() - from.Lng.Radians()

	// atan2(east, north) measures clockwise from +north.
	y := gomath.Sin(dlng) * gomath.Cos(lat2)
	x := gomath.Cos(lat1)*gomath.Sin(lat2) - gomath.Sin(lat1)*gomath.Cos(lat2)*gomath.Cos(dlng)
	return NormalizeHeading(Degrees(gomath.Atan2(y, x)))
}

// Offset returns the point at great-circle distance dist (nautical miles)
// along the given heading from p.
func Offset(p s2.LatLng, hdg float64, dist float64) s2.LatLng {
	lat1, lng1 := p.Lat.Radians(), p.Lng.Radians()
	d := dist / EarthRadiusNM
	h := Radians(hdg)

	lat2 := gomath.Asin(gomath.Sin(lat1)*gomath.Cos(d) + gomath.Cos(lat1)*gomath.Sin(d)*gomath.Cos(h))
	lng2 := lng1 + gomath.Atan2(gomath.Sin(h)*gomath.Sin(d)*gomath.Cos(lat1),
		gomath.Cos(d)-gomath.Sin(lat1)*gomath.Sin(lat2))
	return s2.LatLng{Lat: s1.Angle(lat2), Lng: s1.Angle(lng2)}.Normalized()
}
