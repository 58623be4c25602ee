// accordion/accordion_test.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package accordion

import (
	"context"
	"errors"
	gomath "math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/sarplan/deconflict/config"
	"github.com/sarplan/deconflict/math"
	"github.com/sarplan/deconflict/rand"
	"github.com/sarplan/deconflict/sar"
	"github.com/sarplan/deconflict/twist"
)

// unitPOD detects everything inside the footprint.
type unitPOD struct{}

func (unitPOD) POD(sw, w, h float64) float64 { return 1 }

// coveragePOD falls off as the footprint grows past the effort available.
type coveragePOD struct{ effort float64 }

func (c coveragePOD) POD(sw, w, h float64) float64 {
	return 1 - gomath.Exp(-sw*c.effort/(w*h))
}

func uniformSamples(r *rand.Rand, n int, b orb.Bound) []Sample {
	s := make([]Sample, n)
	for i := range s {
		s[i] = Sample{
			U:      r.Range(b.Min[0], b.Max[0]),
			V:      r.Range(b.Min[1], b.Max[1]),
			Weight: 1 / float64(n),
		}
	}
	return s
}

func problem(kind sar.Kind, b orb.Bound, samples []Sample, minArea float64, curve sar.FootprintPOD) *Problem {
	return &Problem{
		Bound:       b,
		Kind:        kind,
		Samples:     samples,
		SweepWidths: []float64{1},
		Curve:       curve,
		MinArea:     minArea,
		Twister:     twist.New(math.LatLng(40, -70), 0),
		Tunables:    config.Default(),
	}
}

func TestGridSetup(t *testing.T) {
	tun := config.Default()

	g, err := newGrid(orb.Bound{Max: orb.Point{24, 12}}, false, tun)
	if err != nil {
		t.Fatal(err)
	}
	if g.nCols <= g.nRows || g.nCols > tun.MaxCells || g.nRows < tun.MinCells {
		t.Errorf("ladder grid %dx%d", g.nCols, g.nRows)
	}
	if !math.NearlyEqual(float64(g.nCols)*g.cellW, 24, 1e-9) {
		t.Errorf("ladder grid does not span the box")
	}

	g, err = newGrid(orb.Bound{Max: orb.Point{100, 1}}, true, tun)
	if err != nil {
		t.Fatal(err)
	}
	if g.cellW != g.cellH || g.nCols > tun.MaxCells || g.nRows < tun.MinCells {
		t.Errorf("square grid %dx%d cells %vx%v", g.nCols, g.nRows, g.cellW, g.cellH)
	}

	if _, err := newGrid(orb.Bound{Max: orb.Point{10, 0}}, false, tun); !errors.Is(err, ErrEmptyBound) {
		t.Errorf("expected ErrEmptyBound, got %v", err)
	}

	g = &grid{nCols: 5, nRows: 4}
	for _, tc := range []struct {
		r     Rect
		legal bool
	}{
		{Rect{0, 0, 1, 1}, true},
		{Rect{0, 0, 4, 3}, true},
		{Rect{0, 0, 5, 3}, false},
		{Rect{1, 0, 4, 1}, false},
		{Rect{-1, 0, 1, 1}, false},
		{Rect{2, 2, 0, 1}, false},
	} {
		if g.legal(tc.r) != tc.legal {
			t.Errorf("%s: legal %v, expected %v", tc.r, !tc.legal, tc.legal)
		}
	}
}

func TestSummedArea(t *testing.T) {
	g := &grid{nCols: 4, nRows: 4, cellW: 1, cellH: 1}
	g.populate([]Sample{
		{U: 0.5, V: 0.5, Weight: 1},
		{U: 2.5, V: 1.5, Weight: 2},
		{U: 2.5, V: 1.5, Type: 1, Weight: 8}, // no sweep width
		{U: 9, V: 1, Weight: 16},             // off the grid
		{U: 3.5, V: 3.5, Weight: 4},
	}, []float64{1, 0})

	for _, tc := range []struct {
		r    Rect
		mass float64
	}{
		{Rect{0, 0, 4, 4}, 7},
		{Rect{0, 0, 1, 1}, 1},
		{Rect{1, 1, 2, 2}, 2},
		{Rect{3, 3, 1, 1}, 4},
		{Rect{1, 0, 1, 4}, 0},
	} {
		if m := g.mass(tc.r, 0); m != tc.mass {
			t.Errorf("%s: mass %v, expected %v", tc.r, m, tc.mass)
		}
	}
	if g.mass(Rect{0, 0, 4, 4}, 1) != 0 {
		t.Errorf("type without sweep width accumulated mass")
	}
}

func TestLegalAndMonotone(t *testing.T) {
	r := rand.Make(7)
	for i := range 60 {
		w, h := r.Range(1, 40), r.Range(1, 40)
		b := orb.Bound{Min: orb.Point{-w / 2, -h / 2}, Max: orb.Point{w / 2, h / 2}}
		// Samples spill past the box; those are skipped.
		wide := orb.Bound{Min: orb.Point{-w, -h}, Max: orb.Point{w, h}}
		kind := []sar.Kind{sar.Ladder, sar.Sector, sar.Track}[i%3]
		minArea := r.Range(0, 1.5) * w * h

		res, err := Optimize(context.Background(),
			problem(kind, b, uniformSamples(&r, 300, wide), minArea, coveragePOD{effort: w * h / 4}))
		if err != nil {
			t.Fatalf("%d: %v", i, err)
		}

		g, _ := newGrid(b, kind.SquareCells(), config.Default())
		if !g.legal(res.Rect) {
			t.Errorf("%d %s: illegal result %s in %dx%d grid", i, kind, res.Rect, g.nCols, g.nRows)
		}
		for j := 1; j < len(res.Trace); j++ {
			if res.Trace[j] < res.Trace[j-1] {
				t.Errorf("%d %s: trace decreases at %d: %v", i, kind, j, res.Trace)
				break
			}
		}
		if res.Trace[len(res.Trace)-1] != res.Score {
			t.Errorf("%d %s: final trace %v != score %v", i, kind, res.Trace[len(res.Trace)-1], res.Score)
		}
		if kind.SquareCells() && !math.NearlyEqual(res.Width, res.Height, 1e-9) {
			t.Errorf("%d %s: not square: %v x %v", i, kind, res.Width, res.Height)
		}
		if res.Evaluations == 0 {
			t.Errorf("%d %s: no evaluations", i, kind)
		}
	}
}

func within(inner, outer orb.Bound) bool {
	eps := 1e-9 * (1 + outer.Max[0] - outer.Min[0] + outer.Max[1] - outer.Min[1])
	return inner.Min[0] >= outer.Min[0]-eps && inner.Min[1] >= outer.Min[1]-eps &&
		inner.Max[0] <= outer.Max[0]+eps && inner.Max[1] <= outer.Max[1]+eps
}

func TestResultInsideBound(t *testing.T) {
	tun := config.Default()
	r := rand.Make(23)
	for i := range 90 {
		w, h := r.Range(0.5, 60), r.Range(0.5, 60)
		b := orb.Bound{Min: orb.Point{r.Range(-20, 20), r.Range(-20, 20)}}
		b.Max = orb.Point{b.Min[0] + w, b.Min[1] + h}
		wide := b.Pad(max(w, h))
		kind := []sar.Kind{sar.Ladder, sar.Sector, sar.Track}[i%3]

		g, err := newGrid(b, kind.SquareCells(), tun)
		if err != nil {
			t.Fatal(err)
		}
		if full := g.bound(Rect{Cols: g.nCols, Rows: g.nRows}); !within(full, b) {
			t.Errorf("%d %s: grid %v extends past %v", i, kind, full, b)
		}
		if g.nCols < tun.MinCells || g.nRows < tun.MinCells || g.nCols > tun.MaxCells || g.nRows > tun.MaxCells {
			t.Errorf("%d %s: grid %dx%d", i, kind, g.nCols, g.nRows)
		}

		res, err := Optimize(context.Background(),
			problem(kind, b, uniformSamples(&r, 300, wide), r.Range(0, 1.5)*w*h, coveragePOD{effort: w * h / 4}))
		if err != nil {
			t.Fatalf("%d: %v", i, err)
		}
		if !within(res.Bound, b) {
			t.Errorf("%d %s: result %v extends past %v", i, kind, res.Bound, b)
		}
	}

	// All of the mass sits just outside a tall narrow box; a square
	// footprint must not reach over the edge to claim it.
	b := orb.Bound{Min: orb.Point{-1, -20}, Max: orb.Point{1, 20}}
	outside := orb.Bound{Min: orb.Point{-3, -20}, Max: orb.Point{-1.0001, 20}}
	for _, kind := range []sar.Kind{sar.Sector, sar.Track} {
		res, err := Optimize(context.Background(),
			problem(kind, b, uniformSamples(&r, 500, outside), 1, unitPOD{}))
		if err != nil {
			t.Fatal(err)
		}
		if !within(res.Bound, b) {
			t.Errorf("%s: result %v extends past %v", kind, res.Bound, b)
		}
		if res.Score != 0 {
			t.Errorf("%s: scored %v of mass outside the box", kind, res.Score)
		}
	}
}

func TestCapturesCluster(t *testing.T) {
	r := rand.Make(3)
	b := orb.Bound{Max: orb.Point{12, 12}}
	cluster := orb.Bound{Min: orb.Point{4.2, 4.2}, Max: orb.Point{7.8, 7.8}}
	samples := uniformSamples(&r, 2000, cluster)

	res, err := Optimize(context.Background(), problem(sar.Ladder, b, samples, 0.01, unitPOD{}))
	if err != nil {
		t.Fatal(err)
	}
	if !math.NearlyEqual(res.Score, 1, 1e-9) {
		t.Errorf("score %v, expected all of the mass", res.Score)
	}
	if !res.Bound.Contains(cluster.Min) || !res.Bound.Contains(cluster.Max) {
		t.Errorf("result %v does not cover cluster %v", res.Bound, cluster)
	}
}

func TestSquareGrowth(t *testing.T) {
	r := rand.Make(11)
	b := orb.Bound{Max: orb.Point{20, 10}}
	for _, kind := range []sar.Kind{sar.Sector, sar.Track} {
		res, err := Optimize(context.Background(),
			problem(kind, b, uniformSamples(&r, 500, b), 16, coveragePOD{effort: 10}))
		if err != nil {
			t.Fatal(err)
		}
		if res.Width < 4*(1-1e-9) || !math.NearlyEqual(res.Width, res.Height, 1e-9) {
			t.Errorf("%s: %v x %v, expected a square of side >= 4", kind, res.Width, res.Height)
		}
	}

	// A long thin box caps the square at the rows the grid can hold; the
	// undersized square is accepted rather than stretched along the box.
	b = orb.Bound{Max: orb.Point{30, 3}}
	g, err := newGrid(b, true, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	side := float64(g.nRows-1) * g.cellH
	for _, kind := range []sar.Kind{sar.Sector, sar.Track} {
		res, err := Optimize(context.Background(),
			problem(kind, b, uniformSamples(&r, 500, b), 100, coveragePOD{effort: 10}))
		if err != nil {
			t.Fatal(err)
		}
		if !math.NearlyEqual(res.Width, side, 1e-9) || !math.NearlyEqual(res.Height, side, 1e-9) {
			t.Errorf("%s: %v x %v, expected the largest legal square of side %v", kind, res.Width, res.Height, side)
		}
		if !within(res.Bound, b) {
			t.Errorf("%s: result %v extends past %v", kind, res.Bound, b)
		}
	}
}

func TestErrors(t *testing.T) {
	b := orb.Bound{Max: orb.Point{10, 10}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res, err := Optimize(ctx, problem(sar.Ladder, b, nil, 0, unitPOD{})); res != nil || !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: got %v, %v", res, err)
	}

	if _, err := Optimize(context.Background(), problem(sar.TrackLine, b, nil, 0, unitPOD{})); !errors.Is(err, ErrImmovable) {
		t.Errorf("expected ErrImmovable, got %v", err)
	}
	if _, err := Optimize(context.Background(), problem(sar.Ladder, b, nil, 0, nil)); !errors.Is(err, ErrNoCurve) {
		t.Errorf("expected ErrNoCurve, got %v", err)
	}
}
