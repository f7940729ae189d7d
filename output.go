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
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/klauspost/compress/gzip"
)

// Descriptive metadata stamped on every output file.
const (
	Title      = "Dust Optical Depth (DOD) derived from MODIS data"
	Summary    = "DOD calculated using MODIS AOD, SSA (470nm), and Angstrom exponent as described in Pu and Ginoux, 2018."
	References = "https://doi.org/10.5194/acp-18-12491-2018"
)

// DODVariable is the name of the gridded dust optical depth variable.
const DODVariable = "DOD"

const timeUnits = "minutes since 1970-01-01 00:00:00"

// OutputRecord is one regridded dust optical depth field at a single time.
type OutputRecord struct {
	Time time.Time
	Grid *TargetGrid
	DOD  *sparse.DenseArray // (lat, lon)
}

// Write writes r to w in NetCDF classic format, with DOD stored as
// (time, lat, lon) 32-bit floats and NaN as the fill value.
func (r *OutputRecord) Write(w *os.File) error {
	nlat, nlon := r.Grid.Shape()
	if len(r.DOD.Shape) != 2 || r.DOD.Shape[0] != nlat || r.DOD.Shape[1] != nlon {
		return fmt.Errorf("%w: DOD %v vs grid [%d %d]", ErrShapeMismatch, r.DOD.Shape, nlat, nlon)
	}
	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{1, nlat, nlon})
	h.AddAttribute("", "title", Title)
	h.AddAttribute("", "summary", Summary)
	h.AddAttribute("", "references", References)
	h.AddAttribute("", "Conventions", "CF-1.8")
	h.AddAttribute("", "source", "dustgrid v"+Version)

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "standard_name", "time")
	h.AddAttribute("time", "units", timeUnits)
	h.AddAttribute("time", "calendar", "proleptic_gregorian")

	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "standard_name", "latitude")
	h.AddAttribute("lat", "units", "degrees_north")

	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "standard_name", "longitude")
	h.AddAttribute("lon", "units", "degrees_east")

	h.AddVariable(DODVariable, []string{"time", "lat", "lon"}, []float32{0})
	h.AddAttribute(DODVariable, "long_name", "dust optical depth at 550 nm")
	h.AddAttribute(DODVariable, "units", "1")
	h.AddAttribute(DODVariable, "_FillValue", []float32{float32(math.NaN())})
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}
	minutes := float64(r.Time.UTC().Unix()) / 60
	if err := writeNCF(f, "time", []float64{minutes}); err != nil {
		return err
	}
	if err := writeNCF(f, "lat", r.Grid.Lat); err != nil {
		return err
	}
	if err := writeNCF(f, "lon", r.Grid.Lon); err != nil {
		return err
	}
	dod := make([]float32, len(r.DOD.Elements))
	for i, v := range r.DOD.Elements {
		dod[i] = float32(v)
	}
	if err := writeNCF(f, DODVariable, dod); err != nil {
		return err
	}
	return cdf.UpdateNumRecs(w)
}

// writeNCF writes the whole of variable v.
func writeNCF(f *cdf.File, v string, data interface{}) error {
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("dustgrid: writing variable %s to netcdf file: %w", v, err)
	}
	return nil
}

// WriteOutput writes r to path, creating the parent directory if needed.
// A gzipLevel between 1 and 9 compresses the whole file and appends ".gz"
// to path. The file appears at its final path only once it is complete.
// It returns the path written.
func WriteOutput(path string, r *OutputRecord, gzipLevel int) (string, error) {
	if gzipLevel < 0 || gzipLevel > 9 {
		return "", fmt.Errorf("dustgrid: invalid gzip level %d", gzipLevel)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("dustgrid: creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".dustgrid-*.nc")
	if err != nil {
		return "", fmt.Errorf("dustgrid: creating output file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if err := r.Write(tmp); err != nil {
		return "", fmt.Errorf("dustgrid: writing %s: %w", path, err)
	}

	final := tmp
	if gzipLevel > 0 {
		path += ".gz"
		if final, err = gzipFile(tmp, dir, gzipLevel); err != nil {
			return "", fmt.Errorf("dustgrid: compressing %s: %w", path, err)
		}
		defer os.Remove(final.Name())
		defer final.Close()
	}
	if err := final.Chmod(0o644); err != nil {
		return "", err
	}
	if err := final.Close(); err != nil {
		return "", fmt.Errorf("dustgrid: closing %s: %w", path, err)
	}
	if err := os.Rename(final.Name(), path); err != nil {
		return "", fmt.Errorf("dustgrid: saving %s: %w", path, err)
	}
	return path, nil
}

// gzipFile compresses the contents of src into a new temporary file in dir.
func gzipFile(src *os.File, dir string, level int) (*os.File, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	dst, err := os.CreateTemp(dir, ".dustgrid-*.nc.gz")
	if err != nil {
		return nil, err
	}
	zw, err := gzip.NewWriterLevel(dst, level)
	if err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return nil, err
	}
	if _, err := io.Copy(zw, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return nil, err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return nil, err
	}
	return dst, nil
}

// ReadOutput reads a file written by WriteOutput.
func ReadOutput(path string) (*OutputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.HasSuffix(path, ".gz") {
		if f, err = gunzipFile(f); err != nil {
			return nil, fmt.Errorf("dustgrid: decompressing %s: %w", path, err)
		}
		defer os.Remove(f.Name())
		defer f.Close()
	}
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("dustgrid: reading %s: %w", path, err)
	}
	dims := ff.Header.Lengths(DODVariable)
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("dustgrid: %s: DOD has shape %v, want (1, lat, lon)", path, dims)
	}
	lat, err := readNCF(ff, "lat")
	if err != nil {
		return nil, err
	}
	lon, err := readNCF(ff, "lon")
	if err != nil {
		return nil, err
	}
	t, err := readNCF(ff, "time")
	if err != nil {
		return nil, err
	}
	dod, err := readNCF(ff, DODVariable)
	if err != nil {
		return nil, err
	}
	o := &OutputRecord{
		Time: time.Unix(int64(math.Round(t.([]float64)[0]*60)), 0).UTC(),
		Grid: &TargetGrid{Lat: lat.([]float64), Lon: lon.([]float64)},
		DOD:  sparse.ZerosDense(dims[1], dims[2]),
	}
	if len(o.Grid.Lat) > 1 {
		o.Grid.Resolution = o.Grid.Lat[1] - o.Grid.Lat[0]
	}
	for i, v := range dod.([]float32) {
		o.DOD.Elements[i] = float64(v)
	}
	return o, nil
}

func readNCF(f *cdf.File, v string) (interface{}, error) {
	if len(f.Header.Lengths(v)) == 0 {
		return nil, fmt.Errorf("%w: %q in output file", ErrMissingVariable, v)
	}
	r := f.Reader(v, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("dustgrid: reading netcdf variable %s: %w", v, err)
	}
	return buf, nil
}

// gunzipFile decompresses src into a temporary file, which the NetCDF
// reader needs for random access.
func gunzipFile(src *os.File) (*os.File, error) {
	zr, err := gzip.NewReader(src)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	dst, err := os.CreateTemp("", "dustgrid-*.nc")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(dst, zr); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return nil, err
	}
	return dst, nil
}
