// deconflict/deconflict_test.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package deconflict

import (
	"context"
	"errors"
	gomath "math"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/s2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/sarplan/deconflict/config"
	"github.com/sarplan/deconflict/math"
	"github.com/sarplan/deconflict/metrics"
	"github.com/sarplan/deconflict/rand"
	"github.com/sarplan/deconflict/sar"
	"github.com/sarplan/deconflict/scenario"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ladder(id string) *sar.PV {
	return &sar.PV{
		ID:              sar.PVID(id),
		Kind:            sar.Ladder,
		Start:           epoch,
		End:             epoch.Add(3 * time.Hour),
		MinTrackSpacing: 0.5,
		PathLength:      20,
		ExclusionBuffer: 0.5,
		SweepWidths:     []float64{1},
		Curve:           scenario.ExponentialPOD{PathLength: 20},
	}
}

func uniformField(center s2.LatLng, n int, radius float64) *scenario.Field {
	r := rand.Make(5)
	f := &scenario.Field{Epoch: epoch}
	for range n {
		f.Particles = append(f.Particles, scenario.Particle{
			Start:  math.Offset(center, r.Range(0, 360), radius*gomath.Sqrt(r.Float64())),
			Weight: 1,
		})
	}
	return f
}

func newCase(t *testing.T, pvs []*sar.PV, field *scenario.Field, nests sar.NestFinder) *sar.Case {
	t.Helper()
	tbl, err := sar.NewTable(pvs...)
	if err != nil {
		t.Fatal(err)
	}
	c, err := sar.NewCase(tbl, field, scenario.NewEvaluator(tbl, field, field.Weights(), 3), nests, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

type staticNests []sar.Nest

func (s staticNests) FindNests(*sar.Case, sar.Placements) []sar.Nest { return s }

// cancelingNests cancels the run while the nests are being found.
type cancelingNests struct {
	cancel context.CancelFunc
}

func (c cancelingNests) FindNests(cs *sar.Case, p sar.Placements) []sar.Nest {
	c.cancel()
	return OverlapFinder{}.FindNests(cs, p)
}

func TestOverlapFinder(t *testing.T) {
	center := math.LatLng(42, -70)
	pvs := []*sar.PV{ladder("a"), ladder("b"), ladder("c"), ladder("d"), ladder("e")}
	c := newCase(t, pvs, uniformField(center, 10, 5), OverlapFinder{})

	placements := sar.Placements{
		sar.NewPlacement(center, 0, 6, 4),
		sar.NewPlacement(math.Offset(center, 90, 4), 0, 6, 4),
		sar.NewPlacement(math.Offset(center, 90, 8), 0, 6, 4),
		sar.NewPlacement(math.Offset(center, 0, 60), 0, 6, 4),
		nil,
	}
	nests := c.Nests.FindNests(c, placements)
	if len(nests) != 1 {
		t.Fatalf("found %d nests, expected 1", len(nests))
	}
	if m := nests[0].Members(); len(m) != 3 || m[0] != 0 || m[1] != 1 || m[2] != 2 {
		t.Errorf("nest members %v, expected [0 1 2]", m)
	}
}

func TestNoNestsIsIdentity(t *testing.T) {
	center := math.LatLng(42, -70)
	c := newCase(t, []*sar.PV{ladder("a"), ladder("b")}, uniformField(center, 100, 10), staticNests(nil))
	placements := sar.Placements{
		sar.NewPlacement(center, 0, 6, 4),
		sar.NewPlacement(center, 0, 6, 4),
	}

	out, err := New(nil).Run(context.Background(), c, placements)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(placements) || &out[0] != &placements[0] {
		t.Errorf("expected the input array back")
	}
}

func TestFrozenNestIsIdentity(t *testing.T) {
	center := math.LatLng(42, -70)
	a, b := ladder("a"), ladder("b")
	placements := sar.Placements{
		sar.NewPlacement(center, 0, 6, 4),
		sar.NewPlacement(math.Offset(center, 90, 1), 0, 6, 4),
	}
	a.Frozen = placements[0]
	b.Initial = sar.NewPlacement(math.Offset(center, 90, 1), 0, 6, 4) // same value, different pointer
	c := newCase(t, []*sar.PV{a, b}, uniformField(center, 100, 10), OverlapFinder{})

	out, err := New(nil).Run(context.Background(), c, placements)
	if err != nil {
		t.Fatal(err)
	}
	if &out[0] != &placements[0] {
		t.Errorf("nest without floaters changed the placements")
	}
}

func TestFrozenStaysPut(t *testing.T) {
	center := math.LatLng(42, -70)
	a, b := ladder("a"), ladder("b")
	placements := sar.Placements{
		sar.NewPlacement(center, 0, 10, 6),
		sar.NewPlacement(math.Offset(center, 90, 2), 0, 10, 6),
	}
	b.Frozen = placements[1]
	c := newCase(t, []*sar.PV{a, b}, uniformField(center, 400, 12), OverlapFinder{})

	reg := prometheus.NewRegistry()
	m, err := metrics.NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}

	out, err := New(config.Default(), WithMetrics(m)).Run(context.Background(), c, placements)
	if err != nil {
		t.Fatal(err)
	}
	if out[1] != placements[1] {
		t.Errorf("frozen placement replaced")
	}
	if out[0] == nil || out[0] == placements[0] || out[0].Parked {
		t.Errorf("floater not repositioned: %v", out[0])
	}
	if placements[0].Orientation != 0 || placements[0].Along != 10 {
		t.Errorf("input placements modified")
	}
	if n := testutil.ToFloat64(m.Nests); n != 1 {
		t.Errorf("nests solved = %v", n)
	}
	if n := testutil.ToFloat64(m.Runs.WithLabelValues(resultChanged)); n != 1 {
		t.Errorf("changed runs = %v", n)
	}
}

func TestGeneratedCase(t *testing.T) {
	f := scenario.Generate(9, 4, 300)
	c, placements, err := f.Build(3, OverlapFinder{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	out, err := New(nil).Run(context.Background(), c, placements)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(placements) {
		t.Fatalf("%d placements back for %d", len(out), len(placements))
	}
	for i, p := range out {
		pv := c.PVs.At(i)
		if pv.Frozen != nil && p != placements[i] {
			t.Errorf("%s: frozen placement replaced", pv)
		}
		if p == nil {
			t.Errorf("%s: placement dropped", pv)
		}
	}
}

// recordingEvaluator notes, in order, each failure probability vector the
// engine asks for.
type recordingEvaluator struct {
	*scenario.Evaluator
	mu    sync.Mutex
	calls []failureCall
}

type failureCall struct {
	id sar.PVID
	p  *sar.Placement
}

func (r *recordingEvaluator) FailureProbabilities(pv *sar.PV, p *sar.Placement) []float64 {
	r.mu.Lock()
	r.calls = append(r.calls, failureCall{id: pv.ID, p: p})
	r.mu.Unlock()
	return r.Evaluator.FailureProbabilities(pv, p)
}

// Nests are solved in turn: each is scored without the detections of the
// later nests' floaters, and its winners are folded into the priors the
// next nest sees.
func TestNestSequencing(t *testing.T) {
	west, east := math.LatLng(42, -70), math.LatLng(42, -69)
	field := uniformField(west, 400, 10)
	field.Particles = append(field.Particles, uniformField(east, 400, 10).Particles...)

	frozen := ladder("e")
	pvs := []*sar.PV{ladder("a"), ladder("b"), ladder("c"), ladder("d"), frozen}
	placements := sar.Placements{
		sar.NewPlacement(west, 0, 10, 6),
		sar.NewPlacement(west, 0, 10, 6),
		sar.NewPlacement(east, 0, 10, 6),
		sar.NewPlacement(east, 0, 10, 6),
		sar.NewPlacement(math.Offset(west, 0, 30), 0, 10, 6),
	}
	frozen.Frozen = placements[4]

	tbl, err := sar.NewTable(pvs...)
	if err != nil {
		t.Fatal(err)
	}
	eval := &recordingEvaluator{Evaluator: scenario.NewEvaluator(tbl, field, field.Weights(), 3)}
	nests := staticNests{
		{true, true, false, false, false},
		{false, false, true, true, false},
	}
	c, err := sar.NewCase(tbl, field, eval, nests, nil)
	if err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	out, err := New(nil, WithMetrics(m)).Run(context.Background(), c, placements)
	if err != nil {
		t.Fatal(err)
	}
	if n := testutil.ToFloat64(m.Nests); n != 2 {
		t.Errorf("nests solved = %v, expected 2", n)
	}
	for i := range 4 {
		if out[i] == nil || out[i].Parked || out[i].Equal(placements[i]) {
			t.Errorf("%s: not repositioned: %v", pvs[i], out[i])
		}
	}

	expected := []failureCall{
		{"e", placements[4]}, // not moving: settled up front
		{"c", placements[2]}, // second nest's floaters, discounted from the first
		{"d", placements[3]},
		{"a", out[0]}, // first nest's winners folded in
		{"b", out[1]},
		{"c", out[2]}, // second nest's winners
		{"d", out[3]},
	}
	if len(eval.calls) != len(expected) {
		t.Fatalf("failure probabilities requested %d times, expected %d: %v", len(eval.calls), len(expected), eval.calls)
	}
	for i, e := range expected {
		if got := eval.calls[i]; got.id != e.id || !got.p.Equal(e.p) {
			t.Errorf("call %d: %s at %v, expected %s at %v", i, got.id, got.p, e.id, e.p)
		}
	}
}

func TestCancellation(t *testing.T) {
	center := math.LatLng(42, -70)
	placements := sar.Placements{
		sar.NewPlacement(center, 0, 10, 6),
		sar.NewPlacement(center, 0, 10, 6),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newCase(t, []*sar.PV{ladder("a"), ladder("b")}, uniformField(center, 100, 10), OverlapFinder{})
	if out, err := New(nil).Run(ctx, c, placements); out != nil || !errors.Is(err, context.Canceled) {
		t.Errorf("pre-canceled: got %v, %v", out, err)
	}

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	c = newCase(t, []*sar.PV{ladder("a"), ladder("b")}, uniformField(center, 100, 10), cancelingNests{cancel: cancel})
	if out, err := New(nil).Run(ctx, c, placements); out != nil || !errors.Is(err, context.Canceled) {
		t.Errorf("canceled mid-run: got %v, %v", out, err)
	}
}

func TestBadPlacementCount(t *testing.T) {
	center := math.LatLng(42, -70)
	c := newCase(t, []*sar.PV{ladder("a")}, uniformField(center, 10, 10), OverlapFinder{})
	if _, err := New(nil).Run(context.Background(), c, sar.Placements{}); !errors.Is(err, sar.ErrPlacementCount) {
		t.Errorf("expected ErrPlacementCount, got %v", err)
	}
}
