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
	"math"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func oneDegreeGrid(t *testing.T) *TargetGrid {
	t.Helper()
	g, err := NewTargetGrid(1)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// filled returns the flat indices and values of the non-NaN cells of a.
func filled(a *sparse.DenseArray) map[int]float64 {
	o := make(map[int]float64)
	for i, v := range a.Elements {
		if !math.IsNaN(v) {
			o[i] = v
		}
	}
	return o
}

func TestNearest(t *testing.T) {
	g := oneDegreeGrid(t)
	tests := []struct {
		name     string
		lon, lat float64
		j, i     int
		ok       bool
	}{
		{name: "interior", lon: 10.2, lat: 20.3, j: 110, i: 190, ok: true},
		{name: "round up", lon: -0.6, lat: -0.6, j: 89, i: 179, ok: true},
		{name: "date line", lon: 179.9, lat: 0, j: 90, i: 360, ok: true},
		{name: "wrapped", lon: 359.6, lat: 0, j: 90, i: 180, ok: true},
		{name: "nan", lon: nan, lat: 0},
		{name: "beyond pole", lon: 0, lat: 91},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			j, i, ok := g.nearest(test.lon, test.lat)
			if ok != test.ok {
				t.Fatalf("ok = %v", ok)
			}
			if ok && (j != test.j || i != test.i) {
				t.Errorf("(%d, %d) != (%d, %d)", j, i, test.j, test.i)
			}
		})
	}

	if j, _, ok := g.nearest(100, 89.9); !ok || j != 180 {
		t.Errorf("near pole: j = %d, ok = %v", j, ok)
	}
}

func TestRegrid(t *testing.T) {
	g := oneDegreeGrid(t)
	_, nlon := g.Shape()
	node := func(lat, lon int) int { return (lat+90)*nlon + lon + 180 }

	lon := dense([]int{2, 3}, 10.2, 9.9, 30, -50, -50.1, nan)
	lat := dense([]int{2, 3}, 20.3, 19.8, 5, -10, -10.2, 0)
	m, err := BuildMapping(lon, lat, g)
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 5 {
		t.Errorf("mapped %d pixels, want 5", m.Len())
	}

	tests := []struct {
		name  string
		field []float64
		want  map[int]float64
	}{
		{
			name:  "mean of shared node",
			field: []float64{0.25, 0.75, 1, 0.5, 0.5, 3},
			want: map[int]float64{
				node(20, 10):   0.5,
				node(5, 30):    1,
				node(-10, -50): 0.5,
			},
		},
		{
			name:  "missing source blanks its node",
			field: []float64{nan, 0.75, 0.4, 0.5, 0.25, nan},
			want: map[int]float64{
				node(5, 30):    0.4,
				node(-10, -50): 0.375,
			},
		},
		{
			name:  "zero mean is missing",
			field: []float64{0.5, -0.5, 0, 0.5, 0.5, 0},
			want: map[int]float64{
				node(-10, -50): 0.5,
			},
		},
		{
			name:  "all missing",
			field: []float64{nan, nan, nan, nan, nan, nan},
			want:  map[int]float64{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := m.Regrid(dense([]int{2, 3}, test.field...))
			if err != nil {
				t.Fatal(err)
			}
			if nlat, nlon := g.Shape(); out.Shape[0] != nlat || out.Shape[1] != nlon {
				t.Errorf("shape = %v", out.Shape)
			}
			if diff := cmp.Diff(test.want, filled(out), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("filled cells (-want +have):\n%s", diff)
			}
		})
	}
}

func TestRegrid_missingPropagates(t *testing.T) {
	g, err := NewTargetGrid(0.25)
	if err != nil {
		t.Fatal(err)
	}
	lon := dense([]int{1, 2}, 10, 10.01)
	lat := dense([]int{1, 2}, 20, 20.01)
	m, err := BuildMapping(lon, lat, g)
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.Regrid(dense([]int{1, 2}, 0.5, nan))
	if err != nil {
		t.Fatal(err)
	}
	if v := out.Get(440, 760); !math.IsNaN(v) {
		t.Errorf("node with a missing source = %g, want NaN", v)
	}
	if f := filled(out); len(f) != 0 {
		t.Errorf("filled cells: %v", f)
	}

	out, err = m.Regrid(dense([]int{1, 2}, 0.5, 0.25))
	if err != nil {
		t.Fatal(err)
	}
	if v := out.Get(440, 760); math.Abs(v-0.375) > 1e-12 {
		t.Errorf("node mean = %g, want 0.375", v)
	}
}

func TestApply(t *testing.T) {
	g := oneDegreeGrid(t)
	lon := dense([]int{3}, 1, 1.1, 2)
	lat := dense([]int{3}, 1, 0.9, 1)
	m, err := BuildMapping(lon, lat, g)
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.Apply(dense([]int{3}, 1, nan, 2))
	if err != nil {
		t.Fatal(err)
	}
	_, nlon := g.Shape()
	want := map[int]float64{
		91*nlon + 181: nan,
		91*nlon + 182: 2,
	}
	have := map[int]float64{}
	for i, v := range out.Elements {
		if v != 0 {
			have[i] = v
		}
	}
	if diff := cmp.Diff(want, have, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("sums (-want +have):\n%s", diff)
	}
}

func TestRegrid_degenerate(t *testing.T) {
	g := oneDegreeGrid(t)
	lon := dense([]int{2, 2}, nan, nan, nan, nan)
	lat := dense([]int{2, 2}, nan, nan, nan, nan)
	m, err := BuildMapping(lon, lat, g)
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 {
		t.Errorf("mapped %d pixels", m.Len())
	}
	out, err := m.Regrid(dense([]int{2, 2}, 1, 2, 3, 4))
	if err != nil {
		t.Fatal(err)
	}
	if f := filled(out); len(f) != 0 {
		t.Errorf("filled cells: %v", f)
	}
}

func TestRegrid_shapeMismatch(t *testing.T) {
	g := oneDegreeGrid(t)
	m, err := BuildMapping(dense([]int{2, 2}), dense([]int{2, 2}), g)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Regrid(dense([]int{4})); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("error %v is not ErrShapeMismatch", err)
	}
	if _, err := BuildMapping(dense([]int{2, 2}), dense([]int{2, 3}), g); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("error %v is not ErrShapeMismatch", err)
	}
}
