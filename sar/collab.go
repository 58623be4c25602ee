// sar/collab.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sar

import (
	"time"

	"github.com/golang/geo/s2"
)

// ParticleProvider gives the simulated position and object type of each
// particle over time.
type ParticleProvider interface {
	NumParticles() int
	PositionAndType(t time.Time, particle int) (s2.LatLng, ObjectType)
}

// Evaluator scores placements by probability of success against a
// weighted particle sample.
type Evaluator interface {
	// Priors returns the per-particle weights the evaluator works from;
	// callers must not modify the returned slice.
	Priors() []float64
	// FailureProbabilities returns, per particle, the probability that a
	// PV flown at the given placement fails to detect it.
	FailureProbabilities(pv *PV, p *Placement) []float64
	// Evaluate returns the probability of success of the placements
	// given the per-particle priors. Nil and parked placements detect
	// nothing.
	Evaluate(priors []float64, placements Placements) float64
}

// FootprintPOD gives a PV's probability of detection as a function of the
// sweep width and the footprint's extents.
type FootprintPOD interface {
	POD(sweepWidth, width, height float64) float64
}

// NestFinder finds clusters of overlapping placements.
type NestFinder interface {
	FindNests(c *Case, placements Placements) []Nest
}

// Sample is one particle's state at one time.
type Sample struct {
	Pos  s2.LatLng
	Type ObjectType
}

// SampleStages returns samples[stage][particle] for the given times.
func SampleStages(pp ParticleProvider, times []time.Time) [][]Sample {
	n := pp.NumParticles()
	s := make([][]Sample, len(times))
	for i, t := range times {
		s[i] = make([]Sample, n)
		for j := range n {
			s[i][j].Pos, s[i][j].Type = pp.PositionAndType(t, j)
		}
	}
	return s
}
