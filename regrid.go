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

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mapping associates the pixels of one swath with the nodes of a
// TargetGrid: each valid source pixel is assigned to the grid node nearest
// to it on the unit sphere, and many pixels may share a node. A Mapping
// holds no state beyond its assignment lists and is built per swath.
type Mapping struct {
	Grid        *TargetGrid
	SourceShape []int

	src []int // flat source indices
	dst []int // flat (lat, lon) destination indices
}

// BuildMapping assigns every source pixel with a valid coordinate to its
// nearest node of grid. Pixels with non-finite coordinates or latitudes
// beyond the poles are left out, so a degenerate swath gives an empty
// mapping rather than an error.
func BuildMapping(lon, lat *sparse.DenseArray, grid *TargetGrid) (*Mapping, error) {
	if err := sameShape("Longitude", lon, "Latitude", lat); err != nil {
		return nil, err
	}
	m := &Mapping{
		Grid:        grid,
		SourceShape: append([]int(nil), lon.Shape...),
	}
	for i, x := range lon.Elements {
		j, k, ok := grid.nearest(x, lat.Elements[i])
		if !ok {
			continue
		}
		m.src = append(m.src, i)
		m.dst = append(m.dst, j*len(grid.Lon)+k)
	}
	return m, nil
}

// Len returns the number of source pixels assigned to a grid node.
func (m *Mapping) Len() int { return len(m.src) }

// Apply returns, for every grid node, the sum of the values of the source
// pixels assigned to it. NaN values propagate into the sums.
func (m *Mapping) Apply(field *sparse.DenseArray) (*sparse.DenseArray, error) {
	if err := m.checkSource(field); err != nil {
		return nil, err
	}
	out := sparse.ZerosDense(m.Grid.Shape())
	for n, i := range m.src {
		out.Elements[m.dst[n]] += field.Elements[i]
	}
	return out, nil
}

// Regrid returns, for every grid node, the sum of the source values
// assigned to it divided by the number of valid ones. It applies the
// mapping twice: once to the field itself, giving sums in which a missing
// source makes the node missing, and once to an indicator that is 1 where
// the field is valid, giving counts. Nodes with a zero count are NaN, as
// are results that come out exactly zero.
func (m *Mapping) Regrid(field *sparse.DenseArray) (*sparse.DenseArray, error) {
	if err := m.checkSource(field); err != nil {
		return nil, err
	}
	valid := sparse.ZerosDense(field.Shape...)
	for i, v := range field.Elements {
		if !math.IsNaN(v) {
			valid.Elements[i] = 1
		}
	}
	sum, err := m.Apply(field)
	if err != nil {
		return nil, err
	}
	count, err := m.Apply(valid)
	if err != nil {
		return nil, err
	}
	for i, n := range count.Elements {
		if n == 0 {
			sum.Elements[i] = math.NaN()
			continue
		}
		v := sum.Elements[i] / n
		if v == 0 {
			v = math.NaN()
		}
		sum.Elements[i] = v
	}
	return sum, nil
}

func (m *Mapping) checkSource(field *sparse.DenseArray) error {
	if len(field.Shape) != len(m.SourceShape) {
		return fmt.Errorf("%w: field %v vs mapping source %v", ErrShapeMismatch, field.Shape, m.SourceShape)
	}
	for i, s := range field.Shape {
		if s != m.SourceShape[i] {
			return fmt.Errorf("%w: field %v vs mapping source %v", ErrShapeMismatch, field.Shape, m.SourceShape)
		}
	}
	return nil
}

// nearest returns the latitude and longitude indices of the grid node
// closest to (lon, lat) by chord distance on the unit sphere. The rounded
// index is nearest in degrees; its 3x3 neighbourhood is searched because
// meridians converge toward the poles.
func (g *TargetGrid) nearest(lon, lat float64) (j, i int, ok bool) {
	if !isFinite(lon) || !isFinite(lat) || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	if lon < -180 || lon > 180 {
		lon = math.Mod(lon+180, 360)
		if lon < 0 {
			lon += 360
		}
		lon -= 180
	}
	nlat, nlon := g.Shape()
	j0 := clamp(int(math.Round((lat-g.Lat[0])/g.Resolution)), 0, nlat-1)
	i0 := clamp(int(math.Round((lon-g.Lon[0])/g.Resolution)), 0, nlon-1)

	sinLat, cosLat := math.Sincos(lat * math.Pi / 180)
	sinLon, cosLon := math.Sincos(lon * math.Pi / 180)
	p := unitVec(sinLat, cosLat, sinLon, cosLon)
	best := math.Inf(1)
	for jj := j0 - 1; jj <= j0+1; jj++ {
		if jj < 0 || jj >= nlat {
			continue
		}
		for ii := i0 - 1; ii <= i0+1; ii++ {
			if ii < 0 || ii >= nlon {
				continue
			}
			q := unitVec(g.sinLat[jj], g.cosLat[jj], g.sinLon[ii], g.cosLon[ii])
			if d := r3.Norm2(r3.Sub(p, q)); d < best {
				best, j, i = d, jj, ii
			}
		}
	}
	return j, i, true
}

func unitVec(sinLat, cosLat, sinLon, cosLon float64) r3.Vec {
	return r3.Vec{X: cosLat * cosLon, Y: cosLat * sinLon, Z: sinLat}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
