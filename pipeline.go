/*
Copyright © 2026 the dustgrid authors.
This file is part of dustgrid.

dustgrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

dustgrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with dustgrid.  If not, see <http://www.gnu.org/licenses/>.
*/

package dustgrid

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Variables names the arrays read from each granule.
type Variables struct {
	Longitude, Latitude string

	AOD string // aerosol optical depth
	AE  string // Ångström exponent
	SSA string // single-scattering albedo, (channel, y, x) or (y, x)

	// SSAChannel is the index along the first dimension of a 3-D SSA
	// array of the channel used for quality screening.
	SSAChannel int
}

// DeepBlueVariables returns the variable names of the MODIS level-2 aerosol
// product's Deep Blue land retrieval, screening on SSA at 470 nm.
func DeepBlueVariables() Variables {
	return Variables{
		Longitude:  "Longitude",
		Latitude:   "Latitude",
		AOD:        "Deep_Blue_Aerosol_Optical_Depth_550_Land",
		AE:         "Deep_Blue_Angstrom_Exponent_Land",
		SSA:        "Deep_Blue_Spectral_Single_Scattering_Albedo_Land",
		SSAChannel: 1,
	}
}

// Pipeline selects the granules in a directory that intersect a region of
// interest and writes one gridded dust optical depth file for each.
type Pipeline struct {
	Box  BoundingBox
	Grid *TargetGrid
	Vars Variables

	// Open opens granule files. OpenNetCDF is used if it is nil.
	Open Opener

	OutputDir string
	GzipLevel int // 0 for uncompressed output

	// Workers is the number of granules processed concurrently.
	// Values below 1 mean 1.
	Workers int

	Log logrus.FieldLogger
}

// ListGranules returns the sorted paths of the files in dir whose names end
// in suffix, descending into subdirectories if recursive is true.
func ListGranules(dir, suffix string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dustgrid: input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dustgrid: input path %s is not a directory", dir)
	}
	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), suffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dustgrid: listing %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Run processes the granules in files. Failures of individual granules are
// recorded in the returned Report and do not stop the run; the returned
// error is non-nil only if the pipeline is misconfigured or ctx is
// cancelled.
func (p *Pipeline) Run(ctx context.Context, inputDir string, files []string) (*Report, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Report{
		RunID:     uuid.New().String(),
		InputDir:  inputDir,
		OutputDir: p.OutputDir,
		Started:   time.Now().UTC(),
		Granules:  make([]GranuleStatus, len(files)),
	}
	log = log.WithField("run", r.RunID)
	log.WithFields(logrus.Fields{
		"count": len(files),
		"dir":   inputDir,
	}).Info("found granule files")

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		s := &r.Granules[i]
		s.Path = f
		s.InBoxPixels, s.Err = p.countInBox(f)
		s.Selected = s.Err == nil && s.InBoxPixels > 0
		if s.Err != nil {
			log.WithError(s.Err).WithField("file", f).Error("reading granule geolocation")
		}
	}
	selected := r.Selected()
	log.WithField("indices", selected).Info("found swath data within lon/lat box")

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, i := range selected {
		if ctx.Err() != nil {
			break
		}
		s := &r.Granules[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				s.Err = err
				return nil
			}
			s.Err = p.process(log.WithField("file", s.Path), s)
			if s.Err != nil {
				log.WithError(s.Err).WithField("file", s.Path).Error("processing granule")
			}
			return nil
		})
	}
	g.Wait()
	r.Finished = time.Now().UTC()

	log.WithFields(logrus.Fields{
		"files":    len(files),
		"selected": len(selected),
		"written":  r.Written(),
		"failed":   len(r.Failed()),
		"duration": r.Finished.Sub(r.Started).Round(time.Millisecond),
	}).Info("finished")
	return r, ctx.Err()
}

func (p *Pipeline) check() error {
	if err := p.Box.Check(); err != nil {
		return err
	}
	if p.Grid == nil {
		return fmt.Errorf("dustgrid: no target grid")
	}
	if p.OutputDir == "" {
		return fmt.Errorf("dustgrid: no output directory")
	}
	if p.GzipLevel < 0 || p.GzipLevel > 9 {
		return fmt.Errorf("dustgrid: invalid gzip level %d", p.GzipLevel)
	}
	return nil
}

func (p *Pipeline) open(path string) (Swath, error) {
	if p.Open != nil {
		return p.Open(path)
	}
	return OpenNetCDF(path)
}

// countInBox returns the number of pixels of the granule at path that lie
// inside the pipeline's bounding box.
func (p *Pipeline) countInBox(path string) (int, error) {
	sw, err := p.open(path)
	if err != nil {
		return 0, err
	}
	defer sw.Close()
	g, err := p.loadGranule(sw, path)
	if err != nil {
		return 0, err
	}
	return CountInBox(g, p.Box)
}

func (p *Pipeline) loadGranule(sw Swath, path string) (*Granule, error) {
	lon, err := sw.Var(p.Vars.Longitude)
	if err != nil {
		return nil, err
	}
	lat, err := sw.Var(p.Vars.Latitude)
	if err != nil {
		return nil, err
	}
	return &Granule{Path: path, Lon: lon, Lat: lat}, nil
}

// process computes, regrids and saves the dust optical depth of one
// granule, filling in s.
func (p *Pipeline) process(log logrus.FieldLogger, s *GranuleStatus) error {
	name, err := ParseGranuleName(s.Path)
	if err != nil {
		return err
	}
	log.Info("processing file")

	sw, err := p.open(s.Path)
	if err != nil {
		return err
	}
	defer sw.Close()
	g, err := p.loadGranule(sw, s.Path)
	if err != nil {
		return err
	}
	g.Name = name
	aod, err := sw.Var(p.Vars.AOD)
	if err != nil {
		return err
	}
	ae, err := sw.Var(p.Vars.AE)
	if err != nil {
		return err
	}
	ssa, err := sw.Var(p.Vars.SSA)
	if err != nil {
		return err
	}
	if len(ssa.Shape) == 3 {
		if ssa, err = Channel(ssa, p.Vars.SSAChannel); err != nil {
			return err
		}
	}

	dod, err := DustOpticalDepth(aod, ae, ssa)
	if err != nil {
		return err
	}
	m, err := BuildMapping(g.Lon, g.Lat, p.Grid)
	if err != nil {
		return err
	}
	gridded, err := m.Regrid(dod)
	if err != nil {
		return err
	}
	s.MappedPixels = m.Len()
	s.ValidPixels = countValid(dod.Elements)
	vals := validValues(gridded.Elements)
	s.FilledCells = len(vals)
	s.MeanDOD = math.NaN()
	if len(vals) > 0 {
		s.MeanDOD = floats.Sum(vals) / float64(len(vals))
	}

	path := name.OutputPath(p.OutputDir, p.Grid.Suffix())
	log.WithField("output", filepath.Base(path)).Info("saving file")
	s.Output, err = WriteOutput(path, &OutputRecord{
		Time: name.Time(),
		Grid: p.Grid,
		DOD:  gridded,
	}, p.GzipLevel)
	return err
}

func countValid(v []float64) int {
	n := 0
	for _, x := range v {
		if !math.IsNaN(x) {
			n++
		}
	}
	return n
}

func validValues(v []float64) []float64 {
	o := make([]float64, 0, countValid(v))
	for _, x := range v {
		if !math.IsNaN(x) {
			o = append(o, x)
		}
	}
	return o
}
