// rand/rand.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package rand provides small, seedable random number generators so that
// synthetic scenarios and tests are reproducible.
package rand

import (
	gomath "math"

	"github.com/MichaelTJones/pcg"
)

///////////////////////////////////////////////////////////////////////////
// Random numbers.

type Rand struct {
	r *pcg.PCG32
}

func New() Rand {
	return Rand{r: pcg.NewPCG32()}
}

// Make returns a generator seeded with s.
func Make(s int64) Rand {
	r := New()
	r.Seed(s)
	return r
}

func (r *Rand) Seed(s int64) {
	r.r.Seed(uint64(s), 0xda3e39cb94b95bdb)
}

func (r *Rand) Intn(n int) int {
	return int(r.r.Bounded(uint32(n)))
}

// Float64 returns a value in [0,1].
func (r *Rand) Float64() float64 {
	return float64(r.r.Random()) / (1<<32 - 1)
}

// Range returns a uniformly distributed value in [lo,hi].
func (r *Rand) Range(lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

// Normal returns a normally distributed value with the given mean and
// standard deviation (Box-Muller).
func (r *Rand) Normal(mean, stddev float64) float64 {
	u1 := max(r.Float64(), 1e-12)
	u2 := r.Float64()
	return mean + stddev*gomath.Sqrt(-2*gomath.Log(u1))*gomath.Cos(2*gomath.Pi*u2)
}

// SampleWeighted randomly samples an element from the given slice with the
// probability of choosing each element proportional to the value returned
// by the provided callback.
func SampleWeighted[T any](r *Rand, slice []T, weight func(T) float64) int {
	// Weighted reservoir sampling...
	idx := -1
	sumWt := 0.
	for i, v := range slice {
		w := weight(v)
		if w <= 0 {
			continue
		}

		sumWt += w
		if r.Float64() < w/sumWt {
			idx = i
		}
	}
	return idx
}
