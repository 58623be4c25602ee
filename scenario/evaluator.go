// scenario/evaluator.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scenario

import (
	gomath "math"

	"gonum.org/v1/gonum/floats"

	"github.com/sarplan/deconflict/sar"
)

// Evaluator scores placements by the prior-weighted probability that at
// least one PV detects each particle. It implements sar.Evaluator and is
// safe for concurrent use.
type Evaluator struct {
	pvs       *sar.Table
	particles sar.ParticleProvider
	priors    []float64
	stages    int
}

func NewEvaluator(pvs *sar.Table, particles sar.ParticleProvider, weights []float64, stages int) *Evaluator {
	priors := append([]float64(nil), weights...)
	if s := floats.Sum(priors); s > 0 {
		floats.Scale(1/s, priors)
	}
	return &Evaluator{pvs: pvs, particles: particles, priors: priors, stages: max(1, stages)}
}

func (e *Evaluator) Priors() []float64 { return e.priors }

// FailureProbabilities returns, per particle, the probability that the PV
// misses it. Each stage contributes an equal share of the PV's effort.
func (e *Evaluator) FailureProbabilities(pv *sar.PV, p *sar.Placement) []float64 {
	n := e.particles.NumParticles()
	pf := make([]float64, n)
	floats.AddConst(1, pf)
	if p == nil || p.Parked || pv.Curve == nil {
		return pf
	}

	fp := p.Footprint()
	share := 1 / float64(e.stages)
	for _, t := range pv.Stages(e.stages) {
		for j := range n {
			pos, typ := e.particles.PositionAndType(t, j)
			sw := pv.SweepWidth(typ)
			if sw <= 0 || !fp.Contains(pos) {
				continue
			}
			pod := pv.Curve.POD(sw, p.Along, p.Across)
			pf[j] *= gomath.Pow(max(0, 1-pod), share)
		}
	}
	return pf
}

// Evaluate returns the probability of success of the placements against
// the given priors.
func (e *Evaluator) Evaluate(priors []float64, placements sar.Placements) float64 {
	total := floats.Sum(priors)
	if total <= 0 {
		return 0
	}

	pf := make([]float64, len(priors))
	floats.AddConst(1, pf)
	for i, p := range placements {
		if p == nil || p.Parked || i >= e.pvs.Len() {
			continue
		}
		f := e.FailureProbabilities(e.pvs.At(i), p)
		for j := range min(len(pf), len(f)) {
			pf[j] *= f[j]
		}
	}

	var pos float64
	for j, pr := range priors {
		pos += pr * (1 - pf[j])
	}
	return pos / total
}
