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
	"fmt"
	"math"
	"strconv"
)

// TargetGrid is a regular latitude-longitude grid whose axes both include
// their end points, so a global grid at resolution r has 180/r+1 latitudes
// (-90..90) and 360/r+1 longitudes (-180..180).
type TargetGrid struct {
	Resolution float64 // degrees

	Lat []float64 // ascending, degrees north
	Lon []float64 // ascending, degrees east

	sinLat, cosLat []float64
	sinLon, cosLon []float64
}

// NewTargetGrid creates a global grid with the given resolution in degrees.
// The resolution must evenly divide 180.
func NewTargetGrid(resolution float64) (*TargetGrid, error) {
	if !(resolution > 0) || resolution > 180 {
		return nil, fmt.Errorf("dustgrid: invalid grid resolution %g", resolution)
	}
	nlat, ok := divides(180, resolution)
	if !ok {
		return nil, fmt.Errorf("dustgrid: grid resolution %g does not evenly divide 180 degrees", resolution)
	}
	nlon := 2 * nlat
	g := &TargetGrid{
		Resolution: resolution,
		Lat:        linspace(-90, 90, nlat+1),
		Lon:        linspace(-180, 180, nlon+1),
	}
	g.sinLat, g.cosLat = sincos(g.Lat)
	g.sinLon, g.cosLon = sincos(g.Lon)
	return g, nil
}

// Shape returns the number of latitudes and longitudes in the grid.
func (g *TargetGrid) Shape() (nlat, nlon int) { return len(g.Lat), len(g.Lon) }

// Suffix returns the label used in output file names, e.g. "0.25dgrid".
func (g *TargetGrid) Suffix() string {
	return strconv.FormatFloat(g.Resolution, 'f', -1, 64) + "dgrid"
}

// divides returns total/step when step divides total to within rounding
// error.
func divides(total, step float64) (int, bool) {
	n := math.Round(total / step)
	if n < 1 || math.Abs(n*step-total) > 1e-9*total {
		return 0, false
	}
	return int(n), true
}

// linspace returns n evenly spaced values from start to end inclusive.
func linspace(start, end float64, n int) []float64 {
	o := make([]float64, n)
	if n == 1 {
		o[0] = start
		return o
	}
	step := (end - start) / float64(n-1)
	for i := range o {
		o[i] = start + float64(i)*step
	}
	o[n-1] = end
	return o
}

func sincos(deg []float64) (s, c []float64) {
	s, c = make([]float64, len(deg)), make([]float64, len(deg))
	for i, d := range deg {
		s[i], c[i] = math.Sincos(d * math.Pi / 180)
	}
	return s, c
}
