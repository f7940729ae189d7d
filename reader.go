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
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/sparse"
	"github.com/spf13/cast"
)

// ErrMissingVariable is returned when a granule does not contain a
// requested array.
var ErrMissingVariable = errors.New("dustgrid: variable not in granule")

// Swath gives key-based access to the arrays of an opened granule.
type Swath interface {
	// Var returns the named array converted to float64, with fill values
	// and out-of-range values replaced by NaN.
	Var(name string) (*sparse.DenseArray, error)
	Close() error
}

// Opener opens a granule file.
type Opener func(path string) (Swath, error)

// OpenNetCDF opens a NetCDF classic or NetCDF-4/HDF5 granule.
func OpenNetCDF(path string) (Swath, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dustgrid: opening granule %s: %w", path, err)
	}
	return &ncSwath{path: path, nc: nc}, nil
}

type ncSwath struct {
	path string
	nc   api.Group
}

func (s *ncSwath) Close() error {
	s.nc.Close()
	return nil
}

func (s *ncSwath) Var(name string) (*sparse.DenseArray, error) {
	found := false
	for _, v := range s.nc.ListVariables() {
		if v == name {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q in %s", ErrMissingVariable, name, s.path)
	}
	v, err := s.nc.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("dustgrid: reading %q from %s: %w", name, s.path, err)
	}
	shape, data, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("dustgrid: reading %q from %s: %w", name, s.path, err)
	}
	p, err := packingFromAttributes(v.Attributes)
	if err != nil {
		return nil, fmt.Errorf("dustgrid: attributes of %q in %s: %w", name, s.path, err)
	}
	p.unpack(data)
	o := sparse.ZerosDense(shape...)
	copy(o.Elements, data)
	return o, nil
}

// packing holds the CF attributes that describe how stored values map to
// physical values.
type packing struct {
	fill               float64
	hasFill            bool
	validMin, validMax float64
	scale, offset      float64
}

func packingFromAttributes(attrs api.AttributeMap) (*packing, error) {
	p := &packing{
		validMin: math.Inf(-1),
		validMax: math.Inf(1),
		scale:    1,
	}
	if attrs == nil {
		return p, nil
	}
	first := func(key string) (float64, bool, error) {
		v, ok := attrs.Get(key)
		if !ok {
			return 0, false, nil
		}
		f, err := attrFloats(v)
		if err != nil {
			return 0, false, fmt.Errorf("%s: %w", key, err)
		}
		if len(f) == 0 {
			return 0, false, nil
		}
		return f[0], true, nil
	}
	var err error
	if p.fill, p.hasFill, err = first("_FillValue"); err != nil {
		return nil, err
	}
	if s, ok, err := first("scale_factor"); err != nil {
		return nil, err
	} else if ok {
		p.scale = s
	}
	if o, ok, err := first("add_offset"); err != nil {
		return nil, err
	} else if ok {
		p.offset = o
	}
	if v, ok := attrs.Get("valid_range"); ok {
		r, err := attrFloats(v)
		if err != nil {
			return nil, fmt.Errorf("valid_range: %w", err)
		}
		if len(r) == 2 {
			p.validMin, p.validMax = r[0], r[1]
		}
	}
	if m, ok, err := first("valid_min"); err != nil {
		return nil, err
	} else if ok {
		p.validMin = m
	}
	if m, ok, err := first("valid_max"); err != nil {
		return nil, err
	} else if ok {
		p.validMax = m
	}
	return p, nil
}

// unpack converts stored values in place to physical values.
func (p *packing) unpack(data []float64) {
	for i, v := range data {
		if (p.hasFill && v == p.fill) || v < p.validMin || v > p.validMax {
			data[i] = math.NaN()
			continue
		}
		data[i] = v*p.scale + p.offset
	}
}

// attrFloats converts a scalar or slice attribute value to float64s.
func attrFloats(v interface{}) ([]float64, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, err
		}
		return []float64{f}, nil
	}
	o := make([]float64, rv.Len())
	for i := range o {
		f, err := cast.ToFloat64E(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		o[i] = f
	}
	return o, nil
}

// flatten converts a rectangular nested slice of numbers, as returned by
// the NetCDF decoder, into its shape and row-major float64 values.
func flatten(values interface{}) ([]int, []float64, error) {
	rv := reflect.ValueOf(values)
	var shape []int
	for t := rv; t.Kind() == reflect.Slice; {
		shape = append(shape, t.Len())
		if t.Len() == 0 {
			break
		}
		t = t.Index(0)
	}
	if len(shape) == 0 {
		return nil, nil, fmt.Errorf("scalar or non-array value of type %T", values)
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	data := make([]float64, 0, n)
	var walk func(v reflect.Value, depth int) error
	walk = func(v reflect.Value, depth int) error {
		if depth == len(shape) {
			f, err := number(v)
			if err != nil {
				return err
			}
			data = append(data, f)
			return nil
		}
		if v.Kind() != reflect.Slice || v.Len() != shape[depth] {
			return fmt.Errorf("ragged array: dimension %d is not %d long", depth, shape[depth])
		}
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return shape, data, nil
}

func number(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return float64(v.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return float64(v.Uint()), nil
	}
	return 0, fmt.Errorf("unsupported element type %s", v.Type())
}
