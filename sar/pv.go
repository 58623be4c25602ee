// sar/pv.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sar

import (
	"fmt"
	"time"
)

// PVID is the stable identifier of a pattern variable.
type PVID string

// ObjectType indexes the kinds of search object (person in water, life
// raft, ...) that particles represent.
type ObjectType int

///////////////////////////////////////////////////////////////////////////
// PV

// PV is a pattern variable: one resource's schedulable search effort.
type PV struct {
	ID   PVID
	Name string
	Kind Kind

	Start, End time.Time

	MinTrackSpacing float64 // nm
	TrackSpacing    float64 // nm, achievable
	PathLength      float64 // nm of track flown during the window
	ExclusionBuffer float64 // nm kept clear around the footprint

	// SweepWidths is indexed by ObjectType; missing entries are zero.
	SweepWidths []float64

	Curve FootprintPOD

	// Frozen is a user-fixed placement; a PV with one is never moved.
	Frozen *Placement
	// Initial is the pristine placement the PV was created with, if any.
	Initial *Placement
}

func (pv *PV) SweepWidth(t ObjectType) float64 {
	if t < 0 || int(t) >= len(pv.SweepWidths) {
		return 0
	}
	return pv.SweepWidths[t]
}

// MinSweepWidth returns the smallest positive sweep width, or 0 if the PV
// can detect nothing.
func (pv *PV) MinSweepWidth() float64 {
	m := 0.
	for _, sw := range pv.SweepWidths {
		if sw > 0 && (m == 0 || sw < m) {
			m = sw
		}
	}
	return m
}

// MinFootprint returns the smallest area (nm^2) the PV's track can be
// spread over: tracks are no closer than the narrowest sweep width, the
// minimum track spacing, or the spacing the resource can actually fly.
func (pv *PV) MinFootprint() float64 {
	return pv.PathLength * max(pv.MinTrackSpacing, pv.TrackSpacing, pv.MinSweepWidth())
}

// Stages returns n times evenly spaced through the PV's window, each at
// the middle of its share of the window.
func (pv *PV) Stages(n int) []time.Time {
	d := pv.End.Sub(pv.Start)
	t := make([]time.Time, n)
	for i := range t {
		t[i] = pv.Start.Add(time.Duration((float64(i) + 0.5) / float64(n) * float64(d)))
	}
	return t
}

// Movable reports whether the PV may be repositioned at all.
func (pv *PV) Movable() bool {
	return pv.Frozen == nil && pv.Kind.Moves()
}

func (pv *PV) String() string {
	return fmt.Sprintf("%s(%s)", pv.ID, pv.Kind)
}

///////////////////////////////////////////////////////////////////////////
// Table

// Table is the arena of PVs for one case. Each PV is addressed by a
// dense ordinal that indexes Placements and Nest slices; ordinals are
// assigned once at construction and validated on lookup.
type Table struct {
	pvs   []*PV
	index map[PVID]int
}

func NewTable(pvs ...*PV) (*Table, error) {
	t := &Table{index: make(map[PVID]int, len(pvs))}
	for _, pv := range pvs {
		if pv == nil {
			return nil, ErrNilPV
		} else if pv.ID == "" {
			return nil, ErrEmptyPVID
		} else if _, ok := t.index[pv.ID]; ok {
			return nil, fmt.Errorf("%s: %w", pv.ID, ErrDuplicatePV)
		} else if pv.End.Before(pv.Start) {
			return nil, fmt.Errorf("%s: %w", pv.ID, ErrInvalidTimeWindow)
		}
		t.index[pv.ID] = len(t.pvs)
		t.pvs = append(t.pvs, pv)
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.pvs) }

func (t *Table) At(ord int) *PV { return t.pvs[ord] }

func (t *Table) Ordinal(id PVID) (int, error) {
	if ord, ok := t.index[id]; ok {
		return ord, nil
	}
	return -1, fmt.Errorf("%s: %w", id, ErrUnknownPV)
}

// All returns the PVs in ordinal order. The returned slice must not be
// modified.
func (t *Table) All() []*PV { return t.pvs }

// NewPlacements returns an empty placement array sized for the table.
func (t *Table) NewPlacements() Placements {
	return make(Placements, len(t.pvs))
}

// Check validates that p can be used with this table.
func (t *Table) Check(p Placements) error {
	if len(p) != len(t.pvs) {
		return fmt.Errorf("%d placements for %d PVs: %w", len(p), len(t.pvs), ErrPlacementCount)
	}
	return nil
}
