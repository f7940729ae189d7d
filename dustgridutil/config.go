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

package dustgridutil

import (
	"fmt"
	"math"

	"github.com/spatialmodel/dustgrid"
	"github.com/spf13/viper"
)

// BoundingBoxConfig reads the region of interest from the configuration.
func BoundingBoxConfig(cfg *viper.Viper) (dustgrid.BoundingBox, error) {
	b := dustgrid.BoundingBox{
		LonMin: cfg.GetFloat64("BoundingBox.LonMin"),
		LonMax: cfg.GetFloat64("BoundingBox.LonMax"),
		LatMin: cfg.GetFloat64("BoundingBox.LatMin"),
		LatMax: cfg.GetFloat64("BoundingBox.LatMax"),
	}
	lons := []float64{b.LonMin, b.LonMax}
	lats := []float64{b.LatMin, b.LatMax}
	lonNames := []string{"BoundingBox.LonMin", "BoundingBox.LonMax"}
	latNames := []string{"BoundingBox.LatMin", "BoundingBox.LatMax"}
	for i, v := range lons {
		if v < -180 || v > 180 {
			return b, fmt.Errorf("dustgridutil: parsing bounding box: %s=%g but should be between -180 and 180", lonNames[i], v)
		}
	}
	for i, v := range lats {
		if v < -90 || v > 90 {
			return b, fmt.Errorf("dustgridutil: parsing bounding box: %s=%g but should be between -90 and 90", latNames[i], v)
		}
	}
	if err := b.Check(); err != nil {
		return b, fmt.Errorf("dustgridutil: parsing bounding box: %w", err)
	}
	return b, nil
}

// VariablesConfig reads the granule variable names from the configuration.
func VariablesConfig(cfg *viper.Viper) (dustgrid.Variables, error) {
	v := dustgrid.Variables{
		Longitude:  cfg.GetString("Variables.Longitude"),
		Latitude:   cfg.GetString("Variables.Latitude"),
		AOD:        cfg.GetString("Variables.AOD"),
		AE:         cfg.GetString("Variables.AE"),
		SSA:        cfg.GetString("Variables.SSA"),
		SSAChannel: cfg.GetInt("Variables.SSAChannel"),
	}
	names := []string{v.Longitude, v.Latitude, v.AOD, v.AE, v.SSA}
	keys := []string{"Variables.Longitude", "Variables.Latitude", "Variables.AOD", "Variables.AE", "Variables.SSA"}
	for i, n := range names {
		if n == "" {
			return v, fmt.Errorf("dustgridutil: parsing variable names: %s is empty", keys[i])
		}
	}
	if v.SSAChannel < 0 {
		return v, fmt.Errorf("dustgridutil: parsing variable names: Variables.SSAChannel=%d but should be >=0", v.SSAChannel)
	}
	return v, nil
}

// PipelineConfig builds a processing pipeline from the configuration.
// The output directory and logger are set by the caller.
func PipelineConfig(cfg *viper.Viper) (*dustgrid.Pipeline, error) {
	box, err := BoundingBoxConfig(cfg)
	if err != nil {
		return nil, err
	}
	vars, err := VariablesConfig(cfg)
	if err != nil {
		return nil, err
	}
	res := cfg.GetFloat64("Grid.Resolution")
	if !(res > 0) || math.IsInf(res, 0) {
		return nil, fmt.Errorf("dustgridutil: Grid.Resolution=%g but should be >0", res)
	}
	grid, err := dustgrid.NewTargetGrid(res)
	if err != nil {
		return nil, err
	}
	workers := cfg.GetInt("Workers")
	if workers < 1 {
		return nil, fmt.Errorf("dustgridutil: Workers=%d but should be >=1", workers)
	}
	gz := cfg.GetInt("Output.GzipLevel")
	if gz < 0 || gz > 9 {
		return nil, fmt.Errorf("dustgridutil: Output.GzipLevel=%d but should be between 0 and 9", gz)
	}
	return &dustgrid.Pipeline{
		Box:       box,
		Grid:      grid,
		Vars:      vars,
		GzipLevel: gz,
		Workers:   workers,
	}, nil
}
