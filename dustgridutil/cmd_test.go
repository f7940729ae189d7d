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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/dustgrid"
)

func TestVersion(t *testing.T) {
	cfg := InitializeConfig()
	var buf bytes.Buffer
	cfg.Root.SetOut(&buf)
	cfg.Root.SetArgs([]string{"version"})
	if err := cfg.Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "dustgrid v" + dustgrid.Version; !strings.Contains(buf.String(), want) {
		t.Errorf("output %q does not contain %q", buf.String(), want)
	}
}

func TestHelp(t *testing.T) {
	cfg := InitializeConfig()
	var buf bytes.Buffer
	cfg.Root.SetOut(&buf)
	cfg.Root.SetArgs([]string{"--help"})
	if err := cfg.Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"h4toh5", "'.nc.gz'", "--Output.GzipLevel int"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("help does not contain %q", want)
		}
	}
}

func TestRootArgs(t *testing.T) {
	cfg := InitializeConfig()
	cfg.Root.SetOut(new(bytes.Buffer))
	cfg.Root.SetErr(new(bytes.Buffer))
	cfg.Root.SetArgs([]string{t.TempDir()})
	if err := cfg.Root.Execute(); err == nil {
		t.Error("expected an error for a missing output directory argument")
	}
}

func TestRootEmptyInput(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	report := filepath.Join(t.TempDir(), "report", "run.toml")

	cfg := InitializeConfig()
	var buf bytes.Buffer
	cfg.Root.SetOut(&buf)
	cfg.Root.SetArgs([]string{"--ReportFile", report, "--Workers", "3", in, out})
	if err := cfg.Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "found granule files") {
		t.Errorf("log output does not list granule files:\n%s", buf.String())
	}

	var decoded struct {
		Report dustgrid.Report `toml:"report"`
	}
	if _, err := toml.DecodeFile(report, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Report.RunID == "" || decoded.Report.InputDir != in || decoded.Report.OutputDir != out {
		t.Errorf("report = %+v", decoded.Report)
	}
	if len(decoded.Report.Granules) != 0 {
		t.Errorf("report lists %d granules", len(decoded.Report.Granules))
	}
}

func TestRootMissingInput(t *testing.T) {
	cfg := InitializeConfig()
	cfg.Root.SetOut(new(bytes.Buffer))
	cfg.Root.SetArgs([]string{filepath.Join(t.TempDir(), "missing"), t.TempDir()})
	if err := cfg.Root.Execute(); err == nil {
		t.Error("expected an error for a missing input directory")
	}
}

func TestRootInvalidLogLevel(t *testing.T) {
	cfg := InitializeConfig()
	cfg.Root.SetOut(new(bytes.Buffer))
	cfg.Root.SetArgs([]string{"--LogLevel", "loud", t.TempDir(), t.TempDir()})
	if err := cfg.Root.Execute(); err == nil {
		t.Error("expected an error for an invalid log level")
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dustgrid.toml")
	const file = `
Workers = 4

[BoundingBox]
LonMin = -10.5
LonMax = 35
LatMin = 5
LatMax = 30

[Grid]
Resolution = 0.5

[Variables]
SSAChannel = 0
`
	if err := os.WriteFile(path, []byte(file), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := InitializeConfig()
	cfg.Set("config", path)
	if err := cfg.setConfig(); err != nil {
		t.Fatal(err)
	}
	p, err := PipelineConfig(cfg.Viper)
	if err != nil {
		t.Fatal(err)
	}
	want := dustgrid.BoundingBox{LonMin: -10.5, LonMax: 35, LatMin: 5, LatMax: 30}
	if p.Box != want {
		t.Errorf("box %+v != %+v", p.Box, want)
	}
	if p.Grid.Resolution != 0.5 || p.Grid.Suffix() != "0.5dgrid" {
		t.Errorf("grid resolution %g", p.Grid.Resolution)
	}
	if p.Workers != 4 {
		t.Errorf("workers = %d", p.Workers)
	}
	vars := dustgrid.DeepBlueVariables()
	vars.SSAChannel = 0
	if p.Vars != vars {
		t.Errorf("variables %+v != %+v", p.Vars, vars)
	}
}

func TestConfigMissingFile(t *testing.T) {
	cfg := InitializeConfig()
	cfg.Set("config", filepath.Join(t.TempDir(), "missing.toml"))
	if err := cfg.setConfig(); err == nil {
		t.Error("expected an error")
	}
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("DUSTGRID_GRID_RESOLUTION", "1")
	t.Setenv("DUSTGRID_BOUNDINGBOX_LATMAX", "35")
	cfg := InitializeConfig()
	p, err := PipelineConfig(cfg.Viper)
	if err != nil {
		t.Fatal(err)
	}
	if p.Grid.Resolution != 1 {
		t.Errorf("grid resolution %g", p.Grid.Resolution)
	}
	want := dustgrid.BoundingBox{LonMin: -20, LonMax: 50, LatMin: 0, LatMax: 35}
	if p.Box != want {
		t.Errorf("box %+v != %+v", p.Box, want)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := InitializeConfig()
	p, err := PipelineConfig(cfg.Viper)
	if err != nil {
		t.Fatal(err)
	}
	want := dustgrid.BoundingBox{LonMin: -20, LonMax: 50, LatMin: 0, LatMax: 40}
	if p.Box != want {
		t.Errorf("box %+v != %+v", p.Box, want)
	}
	if p.Grid.Suffix() != "0.25dgrid" || p.Workers != 1 || p.GzipLevel != 4 {
		t.Errorf("pipeline %+v", p)
	}
	if p.Vars != dustgrid.DeepBlueVariables() {
		t.Errorf("variables %+v", p.Vars)
	}
}

func TestConfigDateLineBox(t *testing.T) {
	cfg := InitializeConfig()
	cfg.Set("BoundingBox.LonMin", 170.0)
	cfg.Set("BoundingBox.LonMax", 200.0)
	if _, err := BoundingBoxConfig(cfg.Viper); err == nil {
		t.Error("box beyond 180 degrees east should be rejected")
	}
	cfg.Set("BoundingBox.LonMax", 180.0)
	if _, err := BoundingBoxConfig(cfg.Viper); err != nil {
		t.Error(err)
	}
}

func TestConfigInvalid(t *testing.T) {
	tests := []struct {
		key string
		val interface{}
	}{
		{"Grid.Resolution", 0.7},
		{"Grid.Resolution", 0.0},
		{"Workers", 0},
		{"Output.GzipLevel", 10},
		{"BoundingBox.LonMin", 60.0},
		{"BoundingBox.LatMax", 95.0},
		{"BoundingBox.LonMax", 200.0},
		{"BoundingBox.LonMin", -190.0},
		{"Variables.AOD", ""},
		{"Variables.SSAChannel", -1},
	}
	for _, test := range tests {
		cfg := InitializeConfig()
		cfg.Set(test.key, test.val)
		if _, err := PipelineConfig(cfg.Viper); err == nil {
			t.Errorf("%s=%v: expected an error", test.key, test.val)
		}
	}
}
