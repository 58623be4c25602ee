// accordion/grid.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package accordion

import (
	"fmt"
	gomath "math"

	"github.com/paulmach/orb"

	"github.com/sarplan/deconflict/config"
	"github.com/sarplan/deconflict/math"
	"github.com/sarplan/deconflict/sar"
)

// Rect is a rectangle of grid cells: its left column, low row, and
// column and row counts.
type Rect struct {
	Col, Row   int
	Cols, Rows int
}

func (r Rect) apply(m sar.Move) Rect {
	return Rect{Col: r.Col + m.DCol, Row: r.Row + m.DRow, Cols: r.Cols + m.DCols, Rows: r.Rows + m.DRows}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d %dx%d]", r.Col, r.Row, r.Cols, r.Rows)
}

// grid tiles a twisted bounding box with cells and holds, per object
// type, a summed-area table of the particle mass binned into them.
type grid struct {
	origin       orb.Point
	cellW, cellH float64
	nCols, nRows int

	// sat[t][r*(nCols+1)+c] is the mass of type t in rows [0,r) and
	// columns [0,c); nil for types with no sweep width.
	sat [][]float64
}

func newGrid(b orb.Bound, square bool, t *config.Tunables) (*grid, error) {
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	if !(w > 0 && h > 0) || gomath.IsInf(w*h, 0) {
		return nil, ErrEmptyBound
	}

	count := func(x float64) int {
		return math.Clamp(int(x), t.MinCells, t.MaxCells)
	}
	// Nominal cell size for about GridTargetCells cells along each axis
	// of a square box.
	s := gomath.Sqrt(w*h) / float64(t.GridTargetCells)
	cols, rows := count(gomath.Round(w/s)), count(gomath.Round(h/s))

	g := &grid{}
	if !square {
		g.nCols, g.nRows = cols, rows
		g.cellW, g.cellH = w/float64(cols), h/float64(rows)
		g.origin = b.Min
	} else {
		// The smaller per-axis cell fits at least cols by rows whole
		// cells in the box; the grid is centered in it and never extends
		// past its edges.
		cell := min(w/float64(cols), h/float64(rows))
		fit := func(d float64) int { return min(t.MaxCells, int(gomath.Floor(d/cell+1e-9))) }
		g.nCols, g.nRows = fit(w), fit(h)
		g.cellW, g.cellH = cell, cell
		c := b.Center()
		g.origin = orb.Point{c[0] - float64(g.nCols)*cell/2, c[1] - float64(g.nRows)*cell/2}
	}
	return g, nil
}

// legal reports whether r lies inside the grid without touching its
// outermost column or row.
func (g *grid) legal(r Rect) bool {
	return r.Col >= 0 && r.Row >= 0 && r.Cols >= 1 && r.Rows >= 1 &&
		r.Col+r.Cols < g.nCols && r.Row+r.Rows < g.nRows
}

func (g *grid) center() Rect {
	return Rect{Col: g.nCols / 2, Row: g.nRows / 2, Cols: 1, Rows: 1}
}

func (g *grid) width(r Rect) float64  { return float64(r.Cols) * g.cellW }
func (g *grid) height(r Rect) float64 { return float64(r.Rows) * g.cellH }
func (g *grid) area(r Rect) float64   { return g.width(r) * g.height(r) }

func (g *grid) bound(r Rect) orb.Bound {
	lo := orb.Point{g.origin[0] + float64(r.Col)*g.cellW, g.origin[1] + float64(r.Row)*g.cellH}
	return orb.Bound{Min: lo, Max: orb.Point{lo[0] + g.width(r), lo[1] + g.height(r)}}
}

// cell returns the cell holding (u,v), if any.
func (g *grid) cell(u, v float64) (col, row int, ok bool) {
	fc := gomath.Floor((u - g.origin[0]) / g.cellW)
	fr := gomath.Floor((v - g.origin[1]) / g.cellH)
	if fc < 0 || fr < 0 || fc >= float64(g.nCols) || fr >= float64(g.nRows) {
		return 0, 0, false
	}
	return int(fc), int(fr), true
}

// populate bins the samples of object types with positive sweep width
// and builds the summed-area tables. Samples outside the grid are
// skipped.
func (g *grid) populate(samples []Sample, sweepWidths []float64) {
	stride := g.nCols + 1
	g.sat = make([][]float64, len(sweepWidths))
	for t, sw := range sweepWidths {
		if sw > 0 {
			g.sat[t] = make([]float64, stride*(g.nRows+1))
		}
	}

	for _, s := range samples {
		if s.Type < 0 || int(s.Type) >= len(g.sat) || g.sat[s.Type] == nil || s.Weight <= 0 {
			continue
		}
		if c, r, ok := g.cell(s.U, s.V); ok {
			g.sat[s.Type][(r+1)*stride+c+1] += s.Weight
		}
	}

	for _, sat := range g.sat {
		if sat == nil {
			continue
		}
		for r := 1; r <= g.nRows; r++ {
			for c := 1; c <= g.nCols; c++ {
				sat[r*stride+c] += sat[(r-1)*stride+c] + sat[r*stride+c-1] - sat[(r-1)*stride+c-1]
			}
		}
	}
}

// mass returns the mass of object type t inside r.
func (g *grid) mass(r Rect, t int) float64 {
	sat := g.sat[t]
	if sat == nil {
		return 0
	}
	stride := g.nCols + 1
	c0, c1 := r.Col, r.Col+r.Cols
	r0, r1 := r.Row, r.Row+r.Rows
	return sat[r1*stride+c1] - sat[r0*stride+c1] - sat[r1*stride+c0] + sat[r0*stride+c0]
}
