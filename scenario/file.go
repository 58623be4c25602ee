// scenario/file.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunoga/deep"
	"gopkg.in/yaml.v3"

	"github.com/sarplan/deconflict/log"
	"github.com/sarplan/deconflict/math"
	"github.com/sarplan/deconflict/sar"
	"github.com/sarplan/deconflict/util"
)

var (
	ErrUnknownFormat = errors.New("unknown scenario file format")
	ErrInvalidFile   = errors.New("invalid scenario")
)

// File is the on-disk form of a search case: its PVs with their current
// placements and the particle field. It is stored as YAML or as
// zstd-compressed msgpack.
type File struct {
	Name      string           `yaml:"name" msgpack:"name"`
	Epoch     time.Time        `yaml:"epoch" msgpack:"epoch"`
	PVs       []PVRecord       `yaml:"pvs" msgpack:"pvs"`
	Particles []ParticleRecord `yaml:"particles" msgpack:"particles"`
}

type Point struct {
	Lat float64 `yaml:"lat" msgpack:"lat"`
	Lng float64 `yaml:"lng" msgpack:"lng"`
}

type PlacementRecord struct {
	Center      Point   `yaml:"center" msgpack:"center"`
	Orientation float64 `yaml:"orientation" msgpack:"orientation"`
	Along       float64 `yaml:"along" msgpack:"along"`
	Across      float64 `yaml:"across" msgpack:"across"`
	// Parked records a PV that was deliberately given no area.
	Parked bool `yaml:"parked,omitempty" msgpack:"parked"`
}

type PVRecord struct {
	ID              string    `yaml:"id" msgpack:"id"`
	Name            string    `yaml:"name,omitempty" msgpack:"name"`
	Kind            string    `yaml:"kind" msgpack:"kind"`
	Start           time.Time `yaml:"start" msgpack:"start"`
	End             time.Time `yaml:"end" msgpack:"end"`
	MinTrackSpacing float64   `yaml:"min_track_spacing" msgpack:"min_track_spacing"`
	TrackSpacing    float64   `yaml:"track_spacing" msgpack:"track_spacing"`
	PathLength      float64   `yaml:"path_length" msgpack:"path_length"`
	ExclusionBuffer float64   `yaml:"exclusion_buffer" msgpack:"exclusion_buffer"`
	SweepWidths     []float64 `yaml:"sweep_widths" msgpack:"sweep_widths"`
	Frozen          bool      `yaml:"frozen,omitempty" msgpack:"frozen"`

	Placement *PlacementRecord `yaml:"placement,omitempty" msgpack:"placement"`
	Initial   *PlacementRecord `yaml:"initial,omitempty" msgpack:"initial"`
}

type ParticleRecord struct {
	Start   Point   `yaml:"start" msgpack:"start"`
	Speed   float64 `yaml:"speed" msgpack:"speed"`
	Heading float64 `yaml:"heading" msgpack:"heading"`
	Type    int     `yaml:"type" msgpack:"type"`
	Weight  float64 `yaml:"weight" msgpack:"weight"`
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func isObject(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}

// Load reads a scenario from a .yaml/.yml or .msgpack.zst file.
func Load(path string) (*File, error) {
	var f File
	switch {
	case isYAML(path):
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case isObject(path):
		if err := util.RetrieveObject(path, &f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	return &f, nil
}

func (f *File) Save(path string) error {
	switch {
	case isYAML(path):
		b, err := yaml.Marshal(f)
		if err != nil {
			return err
		}
		return os.WriteFile(path, b, 0644)
	case isObject(path):
		return util.StoreObject(path, f)
	default:
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

func (p *PlacementRecord) placement() *sar.Placement {
	if p == nil {
		return nil
	} else if p.Parked {
		return sar.OnMars()
	}
	return sar.NewPlacement(math.LatLng(p.Center.Lat, p.Center.Lng), p.Orientation, p.Along, p.Across)
}

func record(p *sar.Placement) *PlacementRecord {
	if p == nil {
		return nil
	} else if p.Parked {
		return &PlacementRecord{Parked: true}
	}
	return &PlacementRecord{
		Center:      Point{Lat: p.Center.Lat.Degrees(), Lng: p.Center.Lng.Degrees()},
		Orientation: p.Orientation,
		Along:       p.Along,
		Across:      p.Across,
	}
}

// Build validates the file and assembles the search case it describes,
// returning it along with the current placements. Every problem found is
// reported in the returned error.
func (f *File) Build(stages int, nests sar.NestFinder, lg *log.Logger) (*sar.Case, sar.Placements, error) {
	var e util.ErrorLogger

	var pvs []*sar.PV
	var placements sar.Placements
	for i, r := range f.PVs {
		e.Push(fmt.Sprintf("PV %d (%s)", i, r.ID))

		kind, err := sar.ParseKind(r.Kind)
		if err != nil {
			e.Error(err)
		}
		for t, sw := range r.SweepWidths {
			if sw < 0 {
				e.ErrorString("negative sweep width %f for object type %d", sw, t)
			}
		}
		if r.PathLength < 0 || r.MinTrackSpacing < 0 || r.TrackSpacing < 0 || r.ExclusionBuffer < 0 {
			e.ErrorString("negative path length, track spacing, or exclusion buffer")
		}
		if r.Frozen && r.Placement == nil {
			e.ErrorString("frozen without a placement")
		}

		pv := &sar.PV{
			ID:              sar.PVID(r.ID),
			Name:            r.Name,
			Kind:            kind,
			Start:           r.Start,
			End:             r.End,
			MinTrackSpacing: r.MinTrackSpacing,
			TrackSpacing:    r.TrackSpacing,
			PathLength:      r.PathLength,
			ExclusionBuffer: r.ExclusionBuffer,
			SweepWidths:     append([]float64(nil), r.SweepWidths...),
			Curve:           ExponentialPOD{PathLength: r.PathLength},
			Initial:         r.Initial.placement(),
		}
		p := r.Placement.placement()
		if r.Frozen {
			pv.Frozen = p
		}
		pvs = append(pvs, pv)
		placements = append(placements, p)

		e.Pop()
	}

	field := &Field{Epoch: f.Epoch, Particles: make([]Particle, len(f.Particles))}
	for i, r := range f.Particles {
		if r.Weight < 0 || r.Type < 0 {
			e.ErrorString("particle %d: negative weight or object type", i)
		}
		field.Particles[i] = Particle{
			Start:   math.LatLng(r.Start.Lat, r.Start.Lng),
			Speed:   r.Speed,
			Heading: r.Heading,
			Type:    sar.ObjectType(r.Type),
			Weight:  r.Weight,
		}
	}

	if e.HaveErrors() {
		e.LogErrors(lg)
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidFile, e.Err())
	}

	tbl, err := sar.NewTable(pvs...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	eval := NewEvaluator(tbl, field, field.Weights(), stages)
	c, err := sar.NewCase(tbl, field, eval, nests, lg)
	if err != nil {
		return nil, nil, err
	}
	return c, placements, nil
}

// WithPlacements returns a copy of the file with the PVs' placements
// replaced by the given ones, indexed by PV ordinal.
func (f *File) WithPlacements(placements sar.Placements) *File {
	nf := deep.MustCopy(f)
	for i := range nf.PVs {
		if i < len(placements) {
			nf.PVs[i].Placement = record(placements[i])
		}
	}
	return nf
}
