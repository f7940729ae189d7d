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
	"io"
	"time"

	"github.com/BurntSushi/toml"
)

// Report records the outcome of a Pipeline run.
type Report struct {
	RunID     string
	InputDir  string
	OutputDir string
	Started   time.Time
	Finished  time.Time

	Granules []GranuleStatus
}

// GranuleStatus is the outcome for one input file.
type GranuleStatus struct {
	Path        string
	InBoxPixels int
	Selected    bool

	Output       string `toml:",omitempty"` // path written
	ValidPixels  int    // pixels with a valid dust optical depth
	MappedPixels int    // pixels assigned to a grid node
	FilledCells  int    // grid cells with a value
	MeanDOD      float64

	Err   error  `toml:"-"`
	Error string `toml:",omitempty"`
}

// Selected returns the indices of the granules that intersect the region
// of interest.
func (r *Report) Selected() []int {
	o := []int{}
	for i, s := range r.Granules {
		if s.Selected {
			o = append(o, i)
		}
	}
	return o
}

// Written returns the number of output files written.
func (r *Report) Written() int {
	n := 0
	for _, s := range r.Granules {
		if s.Output != "" && s.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the granules whose processing failed.
func (r *Report) Failed() []GranuleStatus {
	var o []GranuleStatus
	for _, s := range r.Granules {
		if s.Err != nil {
			o = append(o, s)
		}
	}
	return o
}

// WriteTOML writes r to w in TOML format.
func (r *Report) WriteTOML(w io.Writer) error {
	out := *r
	out.Granules = make([]GranuleStatus, len(r.Granules))
	for i, s := range r.Granules {
		if s.Err != nil {
			s.Error = s.Err.Error()
		}
		out.Granules[i] = s
	}
	return toml.NewEncoder(w).Encode(struct {
		Report Report `toml:"report"`
	}{out})
}
