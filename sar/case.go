// sar/case.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sar

import (
	"fmt"

	"github.com/sarplan/deconflict/log"
)

// Case bundles everything the deconfliction engine may consult for one
// search case. It is built once per call and handed down by pointer; the
// engine never reaches for collaborators any other way.
type Case struct {
	PVs       *Table
	Particles ParticleProvider
	Evaluator Evaluator
	Nests     NestFinder
	Log       *log.Logger
}

func NewCase(pvs *Table, particles ParticleProvider, eval Evaluator, nests NestFinder, lg *log.Logger) (*Case, error) {
	switch {
	case pvs == nil:
		return nil, fmt.Errorf("PV table: %w", ErrMissingCollaborator)
	case particles == nil:
		return nil, fmt.Errorf("particle provider: %w", ErrMissingCollaborator)
	case eval == nil:
		return nil, fmt.Errorf("evaluator: %w", ErrMissingCollaborator)
	case nests == nil:
		return nil, fmt.Errorf("nest finder: %w", ErrMissingCollaborator)
	}
	return &Case{PVs: pvs, Particles: particles, Evaluator: eval, Nests: nests, Log: lg}, nil
}

// Samples returns samples[stage][particle] at nStages evenly spaced
// times through the PV's window.
func (c *Case) Samples(pv *PV, nStages int) [][]Sample {
	return SampleStages(c.Particles, pv.Stages(nStages))
}
