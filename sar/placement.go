// sar/placement.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sar

import (
	"fmt"
	gomath "math"

	"github.com/golang/geo/s2"

	"github.com/sarplan/deconflict/loop"
	"github.com/sarplan/deconflict/math"
	"github.com/sarplan/deconflict/twist"
)

// Placement is where a PV's footprint lies: a rectangle centered at
// Center whose Along extent points at Orientation (degrees true) and
// whose Across extent is perpendicular to it. Placements are values;
// they are replaced, never modified.
type Placement struct {
	Center      s2.LatLng
	Orientation float64
	Along       float64 // nm
	Across      float64 // nm

	// Parked placements ("on Mars") are inert: they cover nothing and
	// detect nothing.
	Parked bool
}

func NewPlacement(center s2.LatLng, orientation, along, across float64) *Placement {
	return &Placement{
		Center:      center,
		Orientation: math.NormalizeHeading(orientation),
		Along:       max(0, along),
		Across:      max(0, across),
	}
}

// OnMars returns an inert placement.
func OnMars() *Placement {
	return &Placement{Parked: true}
}

func (p *Placement) Area() float64 {
	if p == nil || p.Parked {
		return 0
	}
	return p.Along * p.Across
}

// Loop returns the footprint grown by buffer nm on every side, or nil for
// a parked placement.
func (p *Placement) Loop(buffer float64) *s2.Loop {
	if p == nil || p.Parked || p.Along+2*buffer <= 0 || p.Across+2*buffer <= 0 {
		return nil
	}
	return loop.Rectangle(p.Center, p.Orientation, p.Along+2*buffer, p.Across+2*buffer)
}

// Equal reports whether two placements describe the same footprint.
func (p *Placement) Equal(o *Placement) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.Parked || o.Parked {
		return p.Parked == o.Parked
	}
	const eps = 1e-9
	return p.Center.ApproxEqual(o.Center) &&
		math.HeadingDifference(p.Orientation, o.Orientation) < eps &&
		gomath.Abs(p.Along-o.Along) < eps && gomath.Abs(p.Across-o.Across) < eps
}

func (p *Placement) String() string {
	if p == nil {
		return "<none>"
	} else if p.Parked {
		return "<parked>"
	}
	return fmt.Sprintf("%s %.1f° %.2fx%.2fnm", math.DDString(p.Center), p.Orientation, p.Along, p.Across)
}

// Footprint is a placement prepared for repeated containment tests.
type Footprint struct {
	tw           *twist.Twister
	halfA, halfC float64
	parked       bool
}

func (p *Placement) Footprint() Footprint {
	if p == nil || p.Parked {
		return Footprint{parked: true}
	}
	return Footprint{
		tw:    twist.New(p.Center, p.Orientation),
		halfA: p.Along / 2,
		halfC: p.Across / 2,
	}
}

func (f Footprint) Contains(ll s2.LatLng) bool {
	if f.parked {
		return false
	}
	u, v, ok := f.tw.Convert(ll)
	return ok && gomath.Abs(u) <= f.halfA && gomath.Abs(v) <= f.halfC
}

// Placements holds one entry per PV ordinal of a Table; nil entries are
// unassigned PVs.
type Placements []*Placement

// Clone returns a new slice sharing the (immutable) placements.
func (p Placements) Clone() Placements {
	return append(Placements(nil), p...)
}

// Nest is a birds nest: a membership table indexed by PV ordinal.
type Nest []bool

func (n Nest) Members() []int {
	var m []int
	for i, in := range n {
		if in {
			m = append(m, i)
		}
	}
	return m
}

func (n Nest) Count() int {
	c := 0
	for _, in := range n {
		if in {
			c++
		}
	}
	return c
}
