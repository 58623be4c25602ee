// sar/kind.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sar

import (
	"fmt"
	"strings"
)

// Kind is the pattern family of a PV. Everything that differs between
// families during deconfliction (whether it moves, cell shape, the
// Accordion adjacency table and growth rule) hangs off the Kind so that
// it is selected once per PV.
type Kind int

const (
	// Ladder is a parallel-sweep (LP) pattern; rectangular footprint.
	Ladder Kind = iota
	// Sector is a sector search (SS); square footprint that can shift and
	// grow or shrink from a corner.
	Sector
	// Track is a track-like (VS) pattern; square footprint that only shifts.
	Track
	// TrackLine follows a fixed track and is never repositioned.
	TrackLine

	numKinds
)

// GrowthMode selects how the Accordion optimizer reaches a PV's minimum
// footprint.
type GrowthMode int

const (
	// GrowBestExpansion repeatedly applies the best-scoring legal
	// single-side expansion.
	GrowBestExpansion GrowthMode = iota
	// GrowSquare alternately pulls in the low bounds and grows the side
	// count, keeping the rectangle square.
	GrowSquare
)

// Move is one Accordion adjacency operation, applied to a rectangle of
// grid cells given as (left column, low row, column count, row count).
type Move struct {
	DCol, DRow, DCols, DRows int
}

// Grows reports whether the move only enlarges the rectangle.
func (m Move) Grows() bool {
	return m.DCols >= 0 && m.DRows >= 0 && m.DCols+m.DRows > 0
}

var (
	ladderMoves = []Move{
		{-1, 0, 1, 0}, {1, 0, -1, 0}, // left side out, in
		{0, 0, 1, 0}, {0, 0, -1, 0}, // right side out, in
		{0, -1, 0, 1}, {0, 1, 0, -1}, // low side out, in
		{0, 0, 0, 1}, {0, 0, 0, -1}, // high side out, in
	}

	shiftMoves = []Move{
		{0, 1, 0, 0}, {1, 1, 0, 0}, {1, 0, 0, 0}, {1, -1, 0, 0},
		{0, -1, 0, 0}, {-1, -1, 0, 0}, {-1, 0, 0, 0}, {-1, 1, 0, 0},
	}

	// Uniform expansion/contraction anchored at each of the four corners.
	cornerMoves = []Move{
		{0, 0, 1, 1}, {0, 0, -1, -1}, // low-left corner fixed
		{-1, 0, 1, 1}, {1, 0, -1, -1}, // low-right corner fixed
		{0, -1, 1, 1}, {0, 1, -1, -1}, // high-left corner fixed
		{-1, -1, 1, 1}, {1, 1, -1, -1}, // high-right corner fixed
	}
)

type kindInfo struct {
	name      string
	moves     bool
	square    bool
	growth    GrowthMode
	adjacency []Move
}

var kinds = [numKinds]kindInfo{
	Ladder:    {name: "LP", moves: true, growth: GrowBestExpansion, adjacency: ladderMoves},
	Sector:    {name: "SS", moves: true, square: true, growth: GrowSquare, adjacency: append(append([]Move(nil), shiftMoves...), cornerMoves...)},
	Track:     {name: "VS", moves: true, square: true, growth: GrowSquare, adjacency: shiftMoves},
	TrackLine: {name: "TS"},
}

func (k Kind) info() kindInfo {
	if k < 0 || k >= numKinds {
		panic(fmt.Sprintf("%d: invalid PV kind", int(k)))
	}
	return kinds[k]
}

func (k Kind) String() string { return k.info().name }

// Moves reports whether PVs of this kind may ever be repositioned.
func (k Kind) Moves() bool { return k.info().moves }

// SquareCells reports whether the Accordion grid must use square cells
// because the final footprint must be square.
func (k Kind) SquareCells() bool { return k.info().square }

func (k Kind) GrowthMode() GrowthMode { return k.info().growth }

// Adjacency returns the Accordion adjacency table for the kind. The
// returned slice must not be modified.
func (k Kind) Adjacency() []Move { return k.info().adjacency }

func ParseKind(s string) (Kind, error) {
	for k := range numKinds {
		if strings.EqualFold(s, kinds[k].name) {
			return k, nil
		}
	}
	return Kind(0), fmt.Errorf("%s: %w", s, ErrUnknownKind)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	kk, err := ParseKind(string(b))
	if err == nil {
		*k = kk
	}
	return err
}
