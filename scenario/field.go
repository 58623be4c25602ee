// scenario/field.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package scenario provides reference implementations of the collaborators
// the deconfliction engine consumes (a drifting particle field, POD
// curves, and a probability-of-success evaluator) along with scenario
// files and a synthetic scenario generator.
package scenario

import (
	gomath "math"
	"time"

	"github.com/golang/geo/s2"
	"gonum.org/v1/gonum/floats"

	"github.com/sarplan/deconflict/math"
	"github.com/sarplan/deconflict/sar"
)

// Particle drifts in a straight line at constant speed from Start.
type Particle struct {
	Start   s2.LatLng
	Speed   float64 // knots
	Heading float64 // degrees true
	Type    sar.ObjectType
	Weight  float64
}

// Field is a set of drifting particles; it implements
// sar.ParticleProvider.
type Field struct {
	Epoch     time.Time
	Particles []Particle
}

func (f *Field) NumParticles() int { return len(f.Particles) }

func (f *Field) PositionAndType(t time.Time, i int) (s2.LatLng, sar.ObjectType) {
	p := f.Particles[i]
	if p.Speed == 0 {
		return p.Start, p.Type
	}
	return math.Offset(p.Start, p.Heading, p.Speed*t.Sub(f.Epoch).Hours()), p.Type
}

// Weights returns the particles' weights normalized to sum to one.
func (f *Field) Weights() []float64 {
	w := make([]float64, len(f.Particles))
	for i, p := range f.Particles {
		w[i] = max(0, p.Weight)
	}
	if s := floats.Sum(w); s > 0 {
		floats.Scale(1/s, w)
	}
	return w
}

// ExponentialPOD is the random-search detection model: a track of
// PathLength nm with the given sweep width spread evenly over a w x h
// footprint.
type ExponentialPOD struct {
	PathLength float64
}

func (e ExponentialPOD) POD(sweepWidth, w, h float64) float64 {
	if w <= 0 || h <= 0 || sweepWidth <= 0 {
		return 0
	}
	return 1 - gomath.Exp(-sweepWidth*e.PathLength/(w*h))
}
