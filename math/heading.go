// math/heading.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"
)

///////////////////////////////////////////////////////////////////////////
// headings and directions

// Reduces it to [0,360).
func NormalizeHeading(h float64) float64 {
	h = gomath.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		// -tiny + 360 rounds to 360
		h = 0
	}
	return h
}

// HeadingDifference returns the minimum difference between two
// headings. (i.e., the result is always in the range [0,180].)
func HeadingDifference(a float64, b float64) float64 {
	d := Abs(NormalizeHeading(a) - NormalizeHeading(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// LineAngle reduces a heading to the undirected angle of the line it
// lies along, in [0,180).
func LineAngle(h float64) float64 {
	h = NormalizeHeading(h)
	if h >= 180 {
		h -= 180
	}
	return h
}

// LineAngleDifference is the smallest angle between two undirected lines,
// in [0,90].
func LineAngleDifference(a, b float64) float64 {
	d := Abs(LineAngle(a) - LineAngle(b))
	if d > 90 {
		d = 180 - d
	}
	return d
}
