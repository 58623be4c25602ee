// detangle/weights.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package detangle

import (
	gomath "math"

	"github.com/golang/geo/s2"
	"gonum.org/v1/gonum/floats"

	"github.com/sarplan/deconflict/sar"
)

// Weights normalizes raw to sum to one, then raises every positive entry
// to at least minShare/n, where n is the number of positive entries, and
// normalizes again. Non-positive entries get zero weight; if no entry is
// positive the result is all zeros.
func Weights(raw []float64, minShare float64) []float64 {
	w := make([]float64, len(raw))
	var sum float64
	relevant := 0
	for i, r := range raw {
		if r > 0 && !gomath.IsInf(r, 1) {
			w[i] = r
			sum += r
			relevant++
		}
	}
	if relevant == 0 {
		return w
	}

	floats.Scale(1/sum, w)
	floor := minShare / float64(relevant)
	for i := range w {
		if w[i] > 0 && w[i] < floor {
			w[i] = floor
		}
	}
	floats.Scale(1/floats.Sum(w), w)
	return w
}

// RawWeight returns the unnormalized weight of a PV: over the sampled
// stages, the sum of prior times sweep width for the particles inside top
// whose type the PV can detect, times the PV's path length.
func RawWeight(pv *sar.PV, stages [][]sar.Sample, top *s2.Loop, priors []float64) float64 {
	var w float64
	for _, samples := range stages {
		for j, s := range samples {
			if j >= len(priors) || priors[j] <= 0 {
				continue
			}
			if sw := pv.SweepWidth(s.Type); sw > 0 && top.ContainsPoint(s2.PointFromLatLng(s.Pos)) {
				w += priors[j] * sw
			}
		}
	}
	return w * pv.PathLength
}

// Interval is a sub-interval of [0,1] of cumulative weight.
type Interval struct {
	Lo, Hi float64
}

func (iv Interval) Width() float64 { return iv.Hi - iv.Lo }

// Overlaps reports whether the two intervals share more than an endpoint.
func (iv Interval) Overlaps(o Interval) bool {
	const eps = 1e-12
	return iv.Lo < o.Hi-eps && o.Lo < iv.Hi-eps
}

// Intervals assigns each entry of weights, given in axis order, a
// contiguous interval of cumulative weight. The walk starts at anchor
// (the midpoint if anchor is negative) and proceeds outward in both
// directions, so that each interval abuts its neighbors.
func Intervals(weights []float64, anchor int) []Interval {
	n := len(weights)
	iv := make([]Interval, n)
	if n == 0 {
		return iv
	}
	if anchor < 0 || anchor >= n {
		anchor = n / 2
	}

	lo := floats.Sum(weights[:anchor])
	hi := lo + weights[anchor]
	iv[anchor] = Interval{Lo: lo, Hi: hi}
	for i := anchor + 1; i < n; i++ {
		iv[i] = Interval{Lo: hi, Hi: hi + weights[i]}
		hi = iv[i].Hi
	}
	for i := anchor - 1; i >= 0; i-- {
		iv[i] = Interval{Lo: lo - weights[i], Hi: lo}
		lo = iv[i].Lo
	}
	return iv
}
