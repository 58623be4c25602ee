// detangle/detangle.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package detangle repositions the members of one birds nest. The nest's
// exclusion regions are merged into a top loop; for each candidate bearing
// the top loop is twisted so that the bearing's perpendicular is the u
// axis, PVs are given contiguous slices of the loop in proportion to their
// weights, and each movable PV's slice is refined by the Accordion
// optimizer. The best-scoring bearing wins.
package detangle

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"

	"github.com/brunoga/deep"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/sarplan/deconflict/accordion"
	"github.com/sarplan/deconflict/alloc"
	"github.com/sarplan/deconflict/config"
	"github.com/sarplan/deconflict/log"
	"github.com/sarplan/deconflict/loop"
	"github.com/sarplan/deconflict/math"
	"github.com/sarplan/deconflict/metrics"
	"github.com/sarplan/deconflict/sar"
	"github.com/sarplan/deconflict/twist"
	"github.com/sarplan/deconflict/util"
)

var (
	ErrEmptyNest     = errors.New("nest has no members")
	ErrNestSize      = errors.New("nest and placements differ in size")
	ErrBeyondHorizon = errors.New("top loop does not fit in the tangent plane")
)

// Candidate is the outcome of one bearing trial. Per-PV slices are indexed
// by ordinal and hold zero values for PVs that were not moved.
type Candidate struct {
	Bearing float64
	// Order lists the nest's members by increasing twisted u.
	Order     []int
	Intervals []Interval
	// Big is the bounding box of each moved PV's slice of the top loop,
	// in the trial's twisted coordinates.
	Big       []orb.Bound
	Accordion []*accordion.Result
	// Placements is the full placement array with the moved PVs
	// replaced.
	Placements sar.Placements
	// Score is the probability of success of the nest's floaters alone
	// against the priors Solve was given.
	Score float64
}

type Detangler struct {
	tun     *config.Tunables
	metrics *metrics.Collector
}

func New(tun *config.Tunables, m *metrics.Collector) *Detangler {
	if tun == nil {
		tun = config.Default()
	}
	return &Detangler{tun: tun, metrics: m}
}

// nest holds the read-only state shared by a nest's bearing trials.
type nest struct {
	*Detangler
	c          *sar.Case
	lg         *log.Logger
	top        *s2.Loop
	centroid   s2.LatLng
	members    []int
	floating   []bool
	movable    []bool
	placements sar.Placements
	weights    []float64
	// samples[ord][stage][particle] for movable members.
	samples [][][]sar.Sample
}

// Solve runs a trial per candidate bearing for the nest's members and
// returns the best-scoring candidate. floating marks, by ordinal, the PVs
// that may be moved; priors are the per-particle weights to score with
// and are not modified. A candidate is scored on the nest's floaters
// alone, so priors must already be discounted by the detections of every
// other PV that is to count. A nil candidate with a nil error means no
// bearing produced a usable result. If ctx is canceled, ctx.Err() is
// returned.
func (d *Detangler) Solve(ctx context.Context, c *sar.Case, nst sar.Nest, placements sar.Placements,
	floating []bool, priors []float64) (*Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(nst) != len(placements) || len(floating) != len(placements) {
		return nil, ErrNestSize
	}
	members := nst.Members()
	if len(members) == 0 {
		return nil, ErrEmptyNest
	}

	ctx, span := metrics.StartSpan(ctx, "detangle.Solve", attribute.Int("members", len(members)))
	defer span.End()

	n := &nest{
		Detangler:  d,
		c:          c,
		lg:         c.Log.With("nest", members),
		members:    members,
		floating:   floating,
		movable:    make([]bool, len(placements)),
		placements: placements,
		samples:    make([][][]sar.Sample, len(placements)),
	}

	var loops []*s2.Loop
	for _, i := range members {
		pv := c.PVs.At(i)
		if l := placements[i].Loop(pv.ExclusionBuffer); l != nil {
			loops = append(loops, l)
		}
		n.movable[i] = floating[i] && pv.Kind.Moves()
	}
	if n.top = loop.Merge(loops); n.top == nil {
		n.lg.Warn("nest has a degenerate top loop")
		return nil, nil
	}
	n.centroid = loop.Centroid(n.top)

	raw := make([]float64, len(placements))
	for _, i := range members {
		pv := c.PVs.At(i)
		s := c.Samples(pv, d.tun.Stages)
		raw[i] = RawWeight(pv, s, n.top, priors)
		if n.movable[i] {
			n.samples[i] = s
		}
	}
	n.weights = Weights(raw, d.tun.MinShare)

	bearings := d.bearings(n.top)
	n.lg.Debug("detangling", "bearings", bearings, "weights", n.weights)

	cands := make([]*Candidate, len(bearings))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(d.parallelism())
	for k, b := range bearings {
		eg.Go(func() error {
			cand, err := runTrial(n, gctx, b, deep.MustCopy(priors))
			switch {
			case err == nil:
				cands[k] = cand
				d.metrics.BearingTried(metrics.OutcomeScored)
			case gctx.Err() != nil:
				d.metrics.BearingTried(metrics.OutcomeCanceled)
				return gctx.Err()
			default:
				n.lg.Warnf("bearing %.1f dropped: %v", b, err)
				d.metrics.BearingTried(metrics.OutcomeDropped)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	k := util.ArgMax(cands, func(cd *Candidate) bool { return cd != nil },
		func(cd *Candidate) float64 { return cd.Score })
	if k == -1 {
		n.lg.Warn("no bearing produced a candidate")
		return nil, nil
	}
	best := cands[k]
	n.lg.Debugf("best bearing %.1f score %.4f", best.Bearing, best.Score)
	span.SetAttributes(attribute.Float64("bearing", best.Bearing), attribute.Float64("score", best.Score))
	return best, nil
}

func (d *Detangler) bearings(top *s2.Loop) []float64 {
	if !d.tun.EvenBearings {
		if b := loop.CriticalBearings(top, d.tun.BearingMergeDeg, d.tun.MaxBearings); len(b) > 0 {
			return b
		}
	}
	return loop.EvenBearings(max(1, d.tun.NumEvenBearings))
}

func (d *Detangler) parallelism() int {
	if d.tun.Parallelism > 0 {
		return d.tun.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// runTrial runs one bearing's trial; tests substitute failing trials.
var runTrial = (*nest).trial

// trial lays the nest's members out across the top loop along one
// bearing. priors is the trial's private copy.
func (n *nest) trial(ctx context.Context, bearing float64, priors []float64) (*Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := metrics.StartSpan(ctx, "detangle.trial", attribute.Float64("bearing", bearing))
	defer span.End()

	tw := twist.New(n.centroid, bearing+90)
	ring, ok := tw.Ring(n.top)
	if !ok {
		return nil, ErrBeyondHorizon
	}
	al, err := alloc.New(ring)
	if err != nil {
		return nil, err
	}

	type keyed struct {
		ord  int
		u, v float64
	}
	order := make([]keyed, len(n.members))
	for k, i := range n.members {
		order[k].ord = i
		if p := n.placements[i]; p != nil && !p.Parked {
			order[k].u, order[k].v, _ = tw.Convert(p.Center)
		}
	}
	slices.SortFunc(order, func(a, b keyed) int {
		return cmp.Or(cmp.Compare(a.u, b.u), cmp.Compare(a.v, b.v), cmp.Compare(a.ord, b.ord))
	})

	anchor := -1
	w := make([]float64, len(order))
	for k, o := range order {
		w[k] = n.weights[o.ord]
		if anchor == -1 && !n.movable[o.ord] {
			anchor = k
		}
	}
	ivs := Intervals(w, anchor)

	np := len(n.placements)
	cand := &Candidate{
		Bearing:    bearing,
		Order:      util.MapSlice(order, func(o keyed) int { return o.ord }),
		Intervals:  make([]Interval, np),
		Big:        make([]orb.Bound, np),
		Accordion:  make([]*accordion.Result, np),
		Placements: n.placements.Clone(),
	}
	for k, o := range order {
		cand.Intervals[o.ord] = ivs[k]
	}

	for _, i := range cand.Order {
		if !n.movable[i] {
			continue
		}
		pv := n.c.PVs.At(i)
		if n.weights[i] <= 0 {
			cand.Placements[i] = sar.OnMars()
			continue
		}

		iv := cand.Intervals[i]
		big, err := al.Query(max(0, iv.Lo), min(1, iv.Hi))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pv, err)
		}
		cand.Big[i] = big

		res, err := accordion.Optimize(ctx, &accordion.Problem{
			Bound:       big,
			Kind:        pv.Kind,
			Samples:     twistSamples(tw, pv, n.samples[i], priors),
			SweepWidths: pv.SweepWidths,
			Curve:       pv.Curve,
			MinArea:     pv.MinFootprint() * n.tun.MinFootprintScale,
			Twister:     tw,
			Tunables:    n.tun,
			Log:         n.lg,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pv, err)
		}
		n.metrics.AccordionEvaluations(res.Evaluations)

		cand.Accordion[i] = res
		cand.Placements[i] = sar.NewPlacement(res.Center, math.NormalizeHeading(bearing+90), res.Width, res.Height)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Only the nest's floaters are scored; frozen members and PVs outside
	// the nest are already reflected in priors.
	scored := make(sar.Placements, np)
	for _, i := range n.members {
		if n.floating[i] {
			scored[i] = cand.Placements[i]
		}
	}
	cand.Score = n.c.Evaluator.Evaluate(priors, scored)
	return cand, nil
}

// twistSamples converts a PV's stage samples to weighted twisted samples
// for the Accordion optimizer, dropping particles it cannot detect.
func twistSamples(tw *twist.Twister, pv *sar.PV, stages [][]sar.Sample, priors []float64) []accordion.Sample {
	var out []accordion.Sample
	for _, samples := range stages {
		for j, s := range samples {
			if j >= len(priors) || priors[j] <= 0 || pv.SweepWidth(s.Type) <= 0 {
				continue
			}
			if u, v, ok := tw.Convert(s.Pos); ok {
				out = append(out, accordion.Sample{U: u, V: v, Type: s.Type, Weight: priors[j]})
			}
		}
	}
	return out
}
