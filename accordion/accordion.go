// accordion/accordion.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package accordion implements the grid-based local optimizer that fits a
// PV's footprint inside the region allocated to it. The region's bounding
// box is tiled with cells holding sampled particle mass; a rectangle of
// cells is seeded at the center, grown to the PV's minimum footprint, and
// then hill-climbed using the PV kind's adjacency moves.
package accordion

import (
	"context"
	"errors"
	"fmt"
	gomath "math"

	"github.com/golang/geo/s2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"

	"github.com/sarplan/deconflict/config"
	"github.com/sarplan/deconflict/log"
	"github.com/sarplan/deconflict/sar"
	"github.com/sarplan/deconflict/twist"
)

var (
	ErrEmptyBound = errors.New("bounding box has no area")
	ErrImmovable  = errors.New("PV kind is never repositioned")
	ErrNoCurve    = errors.New("PV has no POD curve")
	ErrNoTwister  = errors.New("no twister for output coordinates")
)

// Sample is one particle at one stage, in twisted coordinates.
type Sample struct {
	U, V   float64
	Type   sar.ObjectType
	Weight float64
}

type Problem struct {
	// Bound is the region to search, in twisted coordinates (nm).
	Bound orb.Bound
	Kind  sar.Kind
	// Samples holds every particle at every stage; mass accumulates
	// across stages.
	Samples     []Sample
	SweepWidths []float64 // indexed by ObjectType
	Curve       sar.FootprintPOD
	// MinArea is the footprint area (nm^2) the rectangle is grown to
	// before hill-climbing.
	MinArea float64
	// Twister converts the result back to lat/long.
	Twister  *twist.Twister
	Tunables *config.Tunables
	Log      *log.Logger
}

type Result struct {
	Rect  Rect
	Bound orb.Bound // twisted
	// Center of the rectangle; Width is along the twisted u axis and
	// Height along v.
	Center        s2.LatLng
	Width, Height float64
	Score         float64
	// Trace holds the best score after seeding and after each hill-climb
	// iteration.
	Trace       []float64
	Evaluations int
}

type optimizer struct {
	p       *Problem
	g       *grid
	memo    *lru.Cache[Rect, float64]
	evals   int
	minArea float64
}

// Optimize runs the Accordion optimizer. It returns ctx.Err() if the
// context is canceled before it finishes.
func Optimize(ctx context.Context, p *Problem) (*Result, error) {
	if !p.Kind.Moves() {
		return nil, fmt.Errorf("%s: %w", p.Kind, ErrImmovable)
	} else if p.Curve == nil {
		return nil, ErrNoCurve
	} else if p.Twister == nil {
		return nil, ErrNoTwister
	}

	tun := p.Tunables
	if tun == nil {
		tun = config.Default()
	}

	g, err := newGrid(p.Bound, p.Kind.SquareCells(), tun)
	if err != nil {
		return nil, err
	}
	g.populate(p.Samples, p.SweepWidths)

	memo, err := lru.New[Rect, float64](max(1, tun.ScoreCacheSize))
	if err != nil {
		return nil, err
	}
	o := &optimizer{p: p, g: g, memo: memo, minArea: max(0, p.MinArea)}

	r := g.center()
	switch p.Kind.GrowthMode() {
	case sar.GrowSquare:
		r, err = o.growSquare(ctx, r)
	default:
		r, err = o.growBest(ctx, r)
	}
	if err != nil {
		return nil, err
	}
	if area := g.area(r); area < o.minArea {
		p.Log.Debugf("%s: accepting undersized %s, %.3f of %.3f nm^2", p.Kind, r, area, o.minArea)
	}

	r, score, trace, err := o.climb(ctx, r)
	if err != nil {
		return nil, err
	}

	b := g.bound(r)
	c := b.Center()
	res := &Result{
		Rect:        r,
		Bound:       b,
		Center:      p.Twister.Unconvert(c[0], c[1]),
		Width:       g.width(r),
		Height:      g.height(r),
		Score:       score,
		Trace:       trace,
		Evaluations: o.evals,
	}
	p.Log.Debug("accordion", "kind", p.Kind, "grid_cols", g.nCols, "grid_rows", g.nRows,
		"rect", r.String(), "score", score, "evaluations", o.evals)
	return res, nil
}

// score returns POD(average sweep width, width, height) times the
// particle mass inside r.
func (o *optimizer) score(r Rect) float64 {
	if s, ok := o.memo.Get(r); ok {
		return s
	}
	o.evals++

	var mass, swMass float64
	for t, sw := range o.p.SweepWidths {
		if sw <= 0 {
			continue
		}
		m := o.g.mass(r, t)
		mass += m
		swMass += m * sw
	}
	var s float64
	if mass > 0 {
		s = mass * o.p.Curve.POD(swMass/mass, o.g.width(r), o.g.height(r))
	}
	o.memo.Add(r, s)
	return s
}

// growBest repeatedly applies the best-scoring legal expansion until the
// rectangle reaches the minimum area or can grow no further.
func (o *optimizer) growBest(ctx context.Context, r Rect) (Rect, error) {
	for o.g.area(r) < o.minArea {
		if err := ctx.Err(); err != nil {
			return r, err
		}

		best, bestScore, found := r, 0., false
		for _, m := range o.p.Kind.Adjacency() {
			if !m.Grows() {
				continue
			}
			nr := r.apply(m)
			if !o.g.legal(nr) {
				continue
			}
			if s := o.score(nr); !found || s > bestScore {
				best, bestScore, found = nr, s, true
			}
		}
		if !found {
			break
		}
		r = best
	}
	return r, nil
}

// growSquare grows a square rectangle by alternately pulling in its low
// corner and extending from it, falling back to whichever growth step is
// legal, until its side reaches the minimum. Every step adds one cell on
// both axes; growth stops when none is legal.
func (o *optimizer) growSquare(ctx context.Context, r Rect) (Rect, error) {
	side := gomath.Sqrt(o.minArea)
	pullLow := true
	for o.g.width(r) < side {
		if err := ctx.Err(); err != nil {
			return r, err
		}

		low := Rect{Col: r.Col - 1, Row: r.Row - 1, Cols: r.Cols + 1, Rows: r.Rows + 1}
		high := Rect{Col: r.Col, Row: r.Row, Cols: r.Cols + 1, Rows: r.Rows + 1}
		steps := []Rect{low, high,
			{Col: r.Col - 1, Row: r.Row, Cols: r.Cols + 1, Rows: r.Rows + 1},
			{Col: r.Col, Row: r.Row - 1, Cols: r.Cols + 1, Rows: r.Rows + 1},
		}
		if !pullLow {
			steps[0], steps[1] = high, low
		}

		grown := false
		for _, s := range steps {
			if o.g.legal(s) {
				r, grown = s, true
				break
			}
		}
		if !grown {
			break
		}
		pullLow = !pullLow
	}
	return r, nil
}

// climb hill-climbs from r. Each iteration evaluates the untried legal
// neighbors of the current base; an improvement on the best score that
// keeps the footprint large enough becomes both base and best, otherwise
// the best untried neighbor becomes the base and counts as a failure.
func (o *optimizer) climb(ctx context.Context, r Rect) (Rect, float64, []float64, error) {
	moves := o.p.Kind.Adjacency()
	threshold := min(o.minArea, o.g.area(r)) * (1 - 1e-9)

	best, base := r, r
	bestScore := o.score(r)
	trace := []float64{bestScore}
	tried := map[Rect]struct{}{r: {}}

	for failures := 0; failures < len(moves); {
		if err := ctx.Err(); err != nil {
			return Rect{}, 0, nil, err
		}

		var next, improved Rect
		nextScore, improvedScore := gomath.Inf(-1), bestScore
		haveNext, haveImproved := false, false
		for _, m := range moves {
			nr := base.apply(m)
			if _, ok := tried[nr]; ok || !o.g.legal(nr) {
				continue
			}
			tried[nr] = struct{}{}

			s := o.score(nr)
			if s > nextScore {
				next, nextScore, haveNext = nr, s, true
			}
			if s > improvedScore && o.g.area(nr) >= threshold {
				improved, improvedScore, haveImproved = nr, s, true
			}
		}
		if !haveNext {
			break
		}

		if haveImproved {
			best, bestScore, base = improved, improvedScore, improved
			failures = 0
		} else {
			base = next
			failures++
		}
		trace = append(trace, bestScore)
	}
	return best, bestScore, trace, nil
}
