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
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// ErrShapeMismatch is returned when arrays that must be co-registered have
// different shapes.
var ErrShapeMismatch = errors.New("dustgrid: array shape mismatch")

// Coefficients of the Ångström-exponent polynomial that attributes aerosol
// optical depth to dust (Pu and Ginoux, 2018, doi:10.5194/acp-18-12491-2018).
const (
	dodC0 = 0.98
	dodC1 = -0.5089
	dodC2 = 0.0512
)

// ssaMax is the exclusive upper limit of a valid single-scattering albedo.
const ssaMax = 1.0

// DustOpticalDepth computes dust optical depth from aerosol optical depth
// (aod), Ångström exponent (ae), and single-scattering albedo (ssa), all of
// the same shape. Pixels with ssa >= 1 and pixels whose result is exactly
// zero are set to NaN; NaN inputs propagate.
func DustOpticalDepth(aod, ae, ssa *sparse.DenseArray) (*sparse.DenseArray, error) {
	if err := sameShape("AOD", aod, "Angstrom exponent", ae); err != nil {
		return nil, err
	}
	if err := sameShape("AOD", aod, "SSA", ssa); err != nil {
		return nil, err
	}
	dod := sparse.ZerosDense(aod.Shape...)
	for i, tau := range aod.Elements {
		if ssa.Elements[i] >= ssaMax {
			tau = math.NaN()
		}
		a := ae.Elements[i]
		v := tau * (dodC0 + dodC1*a + dodC2*a*a)
		if v == 0 {
			v = math.NaN()
		}
		dod.Elements[i] = v
	}
	return dod, nil
}

// Channel returns the 2-D slice at index c of the first dimension of a
// 3-D (channel, y, x) array.
func Channel(a *sparse.DenseArray, c int) (*sparse.DenseArray, error) {
	if len(a.Shape) != 3 {
		return nil, fmt.Errorf("%w: need a 3-d (channel, y, x) array, have shape %v", ErrShapeMismatch, a.Shape)
	}
	if c < 0 || c >= a.Shape[0] {
		return nil, fmt.Errorf("dustgrid: channel %d out of range [0, %d)", c, a.Shape[0])
	}
	ny, nx := a.Shape[1], a.Shape[2]
	o := sparse.ZerosDense(ny, nx)
	copy(o.Elements, a.Elements[c*ny*nx:(c+1)*ny*nx])
	return o, nil
}

func sameShape(aName string, a *sparse.DenseArray, bName string, b *sparse.DenseArray) error {
	if len(a.Shape) != len(b.Shape) {
		return fmt.Errorf("%w: %s %v vs %s %v", ErrShapeMismatch, aName, a.Shape, bName, b.Shape)
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return fmt.Errorf("%w: %s %v vs %s %v", ErrShapeMismatch, aName, a.Shape, bName, b.Shape)
		}
	}
	return nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
