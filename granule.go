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
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// ErrGranuleName is returned when a granule file name does not follow the
// <product>.<series>.<HHMM>.<collection>.<identifier>.<ext> convention or
// when no acquisition date can be derived from it.
var ErrGranuleName = errors.New("dustgrid: unexpected granule name")

// GranuleName holds the identity tokens embedded in a granule's path,
// for example .../2024/07/30/MYD04_L2.A2024212.1235.061.2024213154817.hdf.
type GranuleName struct {
	Product    string // product short-name, e.g. MYD04_L2
	Series     string // e.g. A2024212
	HHMM       string // overpass start time of day
	Collection string // e.g. 061
	Identifier string // per-granule identifier, e.g. the production time

	Date time.Time // acquisition date, UTC midnight
}

var (
	hhmmRE   = regexp.MustCompile(`^[0-9]{4}$`)
	seriesRE = regexp.MustCompile(`^A([0-9]{4})([0-9]{3})$`)
)

// ParseGranuleName extracts identity tokens and the acquisition date from
// path. The date is taken from a trailing YYYY/MM/DD directory structure
// when present, and otherwise from a series token of the form AYYYYDDD.
func ParseGranuleName(path string) (GranuleName, error) {
	base := filepath.Base(path)
	tok := strings.Split(base, ".")
	if len(tok) < 5 {
		return GranuleName{}, fmt.Errorf("%w: %q has %d dot-separated fields, need at least 5", ErrGranuleName, base, len(tok))
	}
	n := GranuleName{
		Product:    tok[0],
		Series:     tok[1],
		HHMM:       tok[2],
		Collection: tok[3],
		Identifier: tok[4],
	}
	for _, t := range []string{n.Product, n.Series, n.Identifier} {
		if t == "" {
			return GranuleName{}, fmt.Errorf("%w: %q has an empty field", ErrGranuleName, base)
		}
	}
	if !hhmmRE.MatchString(n.HHMM) {
		return GranuleName{}, fmt.Errorf("%w: time field %q in %q is not HHMM", ErrGranuleName, n.HHMM, base)
	}
	hh, _ := strconv.Atoi(n.HHMM[:2])
	mm, _ := strconv.Atoi(n.HHMM[2:])
	if hh > 23 || mm > 59 {
		return GranuleName{}, fmt.Errorf("%w: time field %q in %q is out of range", ErrGranuleName, n.HHMM, base)
	}

	if d, ok := dateFromDirs(filepath.Dir(path)); ok {
		n.Date = d
	} else if d, ok := dateFromSeries(n.Series); ok {
		n.Date = d
	} else {
		return GranuleName{}, fmt.Errorf("%w: no YYYY/MM/DD directories or AYYYYDDD series in %q", ErrGranuleName, path)
	}
	return n, nil
}

// dateFromDirs interprets the last three components of dir as YYYY/MM/DD.
func dateFromDirs(dir string) (time.Time, bool) {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(dir)), "/")
	if len(parts) < 3 {
		return time.Time{}, false
	}
	ymd := strings.Join(parts[len(parts)-3:], "/")
	d, err := time.ParseInLocation("2006/01/02", ymd, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// dateFromSeries interprets an AYYYYDDD series token as year and day of year.
func dateFromSeries(series string) (time.Time, bool) {
	m := seriesRE.FindStringSubmatch(series)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	doy, _ := strconv.Atoi(m[2])
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
	if doy < 1 || d.Year() != year {
		return time.Time{}, false
	}
	return d, true
}

// Time returns the acquisition instant, YYYY-mm-ddTHH:MM:00 UTC.
func (n GranuleName) Time() time.Time {
	hh, _ := strconv.Atoi(n.HHMM[:2])
	mm, _ := strconv.Atoi(n.HHMM[2:])
	return n.Date.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
}

// FileName returns the output file name for the granule on a grid with
// the given suffix.
func (n GranuleName) FileName(gridSuffix string) string {
	return fmt.Sprintf("%s_%s_%s_%s_%s_DOD_%s.nc", n.Product, n.Series,
		n.Date.Format("20060102"), n.HHMM, n.Identifier, gridSuffix)
}

// OutputPath returns the path of the granule's output file under the
// per-year-month subdirectory of odir.
func (n GranuleName) OutputPath(odir, gridSuffix string) string {
	return filepath.Join(odir, n.Date.Format("200601"), n.FileName(gridSuffix))
}

// Granule is a swath granule whose geolocation has been loaded.
type Granule struct {
	Path string
	Name GranuleName

	Lon, Lat *sparse.DenseArray // degrees, same shape
}

// Extent returns the bounding box of the granule's finite coordinates,
// with X holding longitude and Y latitude.
func (g *Granule) Extent() *geom.Bounds {
	b := geom.NewBounds()
	for i, lon := range g.Lon.Elements {
		lat := g.Lat.Elements[i]
		if isFinite(lon) && isFinite(lat) {
			b.Extend(geom.Point{X: lon, Y: lat}.Bounds())
		}
	}
	return b
}
