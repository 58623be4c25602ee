// scenario/generate.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scenario

import (
	"fmt"
	gomath "math"
	"time"

	"github.com/sarplan/deconflict/math"
	"github.com/sarplan/deconflict/rand"
	"github.com/sarplan/deconflict/sar"
)

// Generate returns a synthetic case of nPVs PVs piled up around a datum
// with a drifting particle field, so that their footprints overlap.
// Scenarios are reproducible for a given seed.
func Generate(seed int64, nPVs, nParticles int) *File {
	r := rand.Make(seed)
	datum := math.LatLng(41.2+r.Range(-0.5, 0.5), -69.8+r.Range(-0.5, 0.5))
	epoch := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	f := &File{
		Name:  fmt.Sprintf("synthetic-%d", seed),
		Epoch: epoch,
	}

	kinds := []sar.Kind{sar.Ladder, sar.Ladder, sar.Sector, sar.Track}
	for i := range nPVs {
		kind := kinds[i%len(kinds)]
		center := math.Offset(datum, r.Range(0, 360), r.Range(0, 3))
		along, across := r.Range(8, 16), r.Range(6, 10)
		if kind.SquareCells() {
			across = along
		}
		sw := r.Range(0.8, 2)

		f.PVs = append(f.PVs, PVRecord{
			ID:              fmt.Sprintf("pv%02d", i+1),
			Name:            fmt.Sprintf("%s search %d", kind, i+1),
			Kind:            kind.String(),
			Start:           epoch.Add(time.Duration(r.Intn(60)) * time.Minute),
			End:             epoch.Add(time.Duration(180+r.Intn(120)) * time.Minute),
			MinTrackSpacing: 0.5,
			TrackSpacing:    sw,
			PathLength:      along * across / sw,
			ExclusionBuffer: 0.25,
			SweepWidths:     []float64{sw, sw / 2},
			// One PV stays put so there is something to work around.
			Frozen: nPVs > 2 && i == nPVs-1,
			Placement: &PlacementRecord{
				Center:      Point{Lat: center.Lat.Degrees(), Lng: center.Lng.Degrees()},
				Orientation: r.Range(0, 180),
				Along:       along,
				Across:      across,
			},
		})
	}

	// Leeway drift spread about a common set direction; mostly persons in
	// the water with some life rafts.
	drift := r.Range(0, 360)
	objectMix := []float64{0.7, 0.3}
	for range nParticles {
		start := math.Offset(datum, r.Range(0, 360), gomath.Abs(r.Normal(0, 4)))
		f.Particles = append(f.Particles, ParticleRecord{
			Start:   Point{Lat: start.Lat.Degrees(), Lng: start.Lng.Degrees()},
			Speed:   r.Range(0.2, 1.5),
			Heading: math.NormalizeHeading(r.Normal(drift, 20)),
			Type:    rand.SampleWeighted(&r, objectMix, func(w float64) float64 { return w }),
			Weight:  1,
		})
	}
	return f
}
