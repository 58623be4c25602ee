// deconflict/deconflict.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package deconflict is the top-level driver of birds-nest deconfliction:
// it finds the nests among the current placements and detangles them one
// at a time, threading the residual detection probabilities from nest to
// nest.
package deconflict

import (
	"context"
	"slices"
	"time"

	"github.com/brunoga/deep"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/floats"

	"github.com/sarplan/deconflict/config"
	"github.com/sarplan/deconflict/detangle"
	"github.com/sarplan/deconflict/metrics"
	"github.com/sarplan/deconflict/sar"
)

// Run results, as recorded in metrics.
const (
	resultChanged   = "changed"
	resultUnchanged = "unchanged"
	resultCanceled  = "canceled"
	resultError     = "error"
)

type Deconflicter struct {
	tun       *config.Tunables
	metrics   *metrics.Collector
	detangler *detangle.Detangler
}

type Option func(*Deconflicter)

func WithMetrics(m *metrics.Collector) Option {
	return func(d *Deconflicter) { d.metrics = m }
}

func New(tun *config.Tunables, opts ...Option) *Deconflicter {
	if tun == nil {
		tun = config.Default()
	}
	d := &Deconflicter{tun: tun}
	for _, opt := range opts {
		opt(d)
	}
	d.detangler = detangle.New(tun, d.metrics)
	return d
}

// Run deconflicts the given placements, indexed by PV ordinal, and returns
// the updated array; the input is never modified. If there is nothing to
// do, the input itself is returned. If ctx is canceled at any point, Run
// returns nil and ctx.Err().
func (d *Deconflicter) Run(ctx context.Context, c *sar.Case, placements sar.Placements) (sar.Placements, error) {
	start := time.Now()
	if err := c.PVs.Check(placements); err != nil {
		d.metrics.RunFinished(resultError, time.Since(start))
		return nil, err
	}

	ctx, span := metrics.StartSpan(ctx, "deconflict.Run", attribute.Int("pvs", c.PVs.Len()))
	defer span.End()

	out, changed, err := d.run(ctx, c, placements)
	switch {
	case err != nil && ctx.Err() != nil:
		d.metrics.RunFinished(resultCanceled, time.Since(start))
		return nil, ctx.Err()
	case err != nil:
		d.metrics.RunFinished(resultError, time.Since(start))
		return nil, err
	case changed:
		d.metrics.RunFinished(resultChanged, time.Since(start))
	default:
		d.metrics.RunFinished(resultUnchanged, time.Since(start))
	}
	return out, nil
}

// notMoving reports whether the PV keeps its placement regardless of any
// nest it is in.
func notMoving(pv *sar.PV, p *sar.Placement) bool {
	return pv.Frozen != nil || !pv.Kind.Moves() || (pv.Initial != nil && p.Equal(pv.Initial))
}

func (d *Deconflicter) run(ctx context.Context, c *sar.Case, placements sar.Placements) (sar.Placements, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	lg := c.Log

	nests := c.Nests.FindNests(c, placements)
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	n := len(placements)
	inNest := make([]bool, n)
	for _, nst := range nests {
		for _, i := range nst.Members() {
			if i < n {
				inNest[i] = true
			}
		}
	}
	floating := make([]bool, n)
	for i, p := range placements {
		floating[i] = p != nil && inNest[i] && !notMoving(c.PVs.At(i), p)
	}

	var work []sar.Nest
	for _, nst := range nests {
		if len(nst) == n && slices.ContainsFunc(nst.Members(), func(i int) bool { return floating[i] }) {
			work = append(work, nst)
		} else {
			lg.Debugf("skipping nest %v without floaters", nst.Members())
		}
	}
	if len(work) == 0 {
		return placements, false, nil
	}
	lg.Infof("deconflicting %d of %d nests", len(work), len(nests))

	fc, err := newFailureCache(c, d.tun.FailureCacheSize)
	if err != nil {
		return nil, false, err
	}

	// The not-moving PVs' detections are settled; take them out of the
	// priors up front.
	priors := deep.MustCopy(c.Evaluator.Priors())
	for i, p := range placements {
		if !floating[i] {
			fc.apply(priors, i, p)
		}
	}

	out := placements.Clone()
	for k, nst := range work {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		// Don't credit this nest with detections that the PVs of later
		// nests will be making.
		working := slices.Clone(priors)
		for _, later := range work[k+1:] {
			for _, i := range later.Members() {
				if floating[i] && !nst[i] {
					fc.apply(working, i, out[i])
				}
			}
		}
		if s := floats.Sum(working); s > 0 {
			floats.Scale(1/s, working)
		}

		cand, err := d.detangler.Solve(ctx, c, nst, out, floating, working)
		if err != nil {
			return nil, false, err
		}
		if cand == nil {
			lg.Warnf("nest %v left as is", nst.Members())
		} else {
			for _, i := range nst.Members() {
				if floating[i] {
					out[i] = cand.Placements[i]
				}
			}
			d.metrics.NestSolved()
		}

		for _, i := range nst.Members() {
			if floating[i] {
				fc.apply(priors, i, out[i])
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

type failureKey struct {
	ord int
	p   sar.Placement
}

// failureCache memoizes per-PV failure probability vectors for one call.
type failureCache struct {
	c     *sar.Case
	cache *lru.Cache[failureKey, []float64]
}

func newFailureCache(c *sar.Case, size int) (*failureCache, error) {
	cache, err := lru.New[failureKey, []float64](max(1, size))
	if err != nil {
		return nil, err
	}
	return &failureCache{c: c, cache: cache}, nil
}

func (f *failureCache) get(ord int, p *sar.Placement) []float64 {
	key := failureKey{ord: ord, p: *p}
	if pf, ok := f.cache.Get(key); ok {
		return pf
	}
	pf := f.c.Evaluator.FailureProbabilities(f.c.PVs.At(ord), p)
	f.cache.Add(key, pf)
	return pf
}

// apply multiplies priors by the failure probabilities of PV ord at p.
func (f *failureCache) apply(priors []float64, ord int, p *sar.Placement) {
	if p == nil || p.Parked {
		return
	}
	if pf := f.get(ord, p); len(pf) == len(priors) {
		floats.Mul(priors, pf)
	}
}
