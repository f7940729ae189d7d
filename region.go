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

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// BoundingBox is a longitude-latitude region of interest, in degrees.
type BoundingBox struct {
	LonMin, LonMax float64
	LatMin, LatMax float64
}

// Check returns an error if b does not describe a non-empty region.
func (b BoundingBox) Check() error {
	for _, v := range []float64{b.LonMin, b.LonMax, b.LatMin, b.LatMax} {
		if math.IsNaN(v) {
			return fmt.Errorf("dustgrid: bounding box %+v contains NaN", b)
		}
	}
	if b.LonMin >= b.LonMax || b.LatMin >= b.LatMax {
		return fmt.Errorf("dustgrid: bounding box %+v is empty", b)
	}
	return nil
}

// Bounds returns b as a geom.Bounds, with X holding longitude and Y
// latitude.
func (b BoundingBox) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.LonMin, Y: b.LatMin},
		Max: geom.Point{X: b.LonMax, Y: b.LatMax},
	}
}

// Contains reports whether a point lies strictly inside b. Points on an
// edge are outside.
func (b BoundingBox) Contains(lon, lat float64) bool {
	return lon > b.LonMin && lon < b.LonMax && lat > b.LatMin && lat < b.LatMax
}

// InBox returns a mask with the shape of lon and lat that is true for every
// pixel strictly inside b.
func InBox(lon, lat *sparse.DenseArray, b BoundingBox) ([]bool, error) {
	if err := sameShape("Longitude", lon, "Latitude", lat); err != nil {
		return nil, err
	}
	mask := make([]bool, len(lon.Elements))
	for i, x := range lon.Elements {
		mask[i] = b.Contains(x, lat.Elements[i])
	}
	return mask, nil
}

// CountInBox returns the number of the granule's pixels strictly inside b.
// A granule whose extent does not overlap b is rejected without testing
// individual pixels.
func CountInBox(g *Granule, b BoundingBox) (int, error) {
	if err := sameShape("Longitude", g.Lon, "Latitude", g.Lat); err != nil {
		return 0, err
	}
	ext := g.Extent()
	if ext.Empty() || !ext.Overlaps(b.Bounds()) {
		return 0, nil
	}
	mask, err := InBox(g.Lon, g.Lat, b)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, in := range mask {
		if in {
			n++
		}
	}
	return n, nil
}
