// twist/twist_test.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package twist

import (
	gomath "math"
	"testing"

	"github.com/sarplan/deconflict/math"
	"github.com/sarplan/deconflict/rand"
)

func TestRoundTrip(t *testing.T) {
	r := rand.Make(1234)
	const kmToNM = 1000. / math.NMToMeters

	for range 200 {
		origin := math.LatLng(r.Range(-70, 70), r.Range(-180, 180))
		tw := New(origin, r.Range(0, 360))

		for range 50 {
			dist := r.Range(0, 1000*kmToNM)
			p := math.Offset(origin, r.Range(0, 360), dist)

			u, v, ok := tw.Convert(p)
			if !ok {
				t.Fatalf("%s: unexpectedly beyond horizon of %s", math.DDString(p), math.DDString(origin))
			}
			back := tw.Unconvert(u, v)
			if d := math.NMDistance(p, back); d > 1e-6 {
				t.Errorf("%s -> (%f,%f) -> %s: round trip error %gnm", math.DDString(p), u, v,
					math.DDString(back), d)
			}
		}
	}
}

func TestAxisAlignment(t *testing.T) {
	origin := math.LatLng(35, -120)
	for _, bearing := range []float64{0, 30, 90, 200, 315} {
		tw := New(origin, bearing)

		// A point straight down the bearing lands on +u.
		u, v, _ := tw.Convert(math.Offset(origin, bearing, 10))
		if u < 9.9 || gomath.Abs(v) > 1e-6 {
			t.Errorf("bearing %v: along-axis point at (%f,%f)", bearing, u, v)
		}

		// 90 degrees counter-clockwise of the bearing lands on +v.
		u, v, _ = tw.Convert(math.Offset(origin, bearing-90, 10))
		if v < 9.9 || gomath.Abs(u) > 1e-6 {
			t.Errorf("bearing %v: left-of-axis point at (%f,%f)", bearing, u, v)
		}
	}

	if u, v, _ := New(origin, 45).Convert(origin); u != 0 || v != 0 {
		t.Errorf("origin twisted to (%f,%f)", u, v)
	}
}

func TestHorizon(t *testing.T) {
	tw := New(math.LatLng(0, 0), 0)
	if _, _, ok := tw.Convert(math.LatLng(0, 180)); ok {
		t.Errorf("antipode should not convert")
	}
	if _, _, ok := tw.Convert(math.LatLng(0, 95)); ok {
		t.Errorf("point beyond the horizon should not convert")
	}
}
