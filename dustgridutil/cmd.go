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
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/dustgrid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg holds configuration information.
type Cfg struct {
	*viper.Viper

	// Root is the main command.
	Root *cobra.Command

	versionCmd *cobra.Command
}

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig creates a new configuration holder with its command
// tree and options.
func InitializeConfig() *Cfg {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   "dustgrid <input directory> <output directory>",
		Short: "Grid satellite dust optical depth.",
		Long: `dustgrid finds the satellite aerosol swath granules in the input directory
that intersect a longitude-latitude bounding box, computes dust optical depth
(DOD) from their aerosol optical depth, Angstrom exponent, and single-scattering
albedo following Pu and Ginoux (2018), regrids each swath onto a regular global
latitude-longitude grid, and writes one NetCDF file per granule to
<output directory>/<YYYYmm>/.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'DUSTGRID_VAR' where 'VAR' is
the upper-case name of the variable to be set with '.' replaced by '_'
(for example DUSTGRID_BOUNDINGBOX_LONMIN).`,
		Args:              cobra.ExactArgs(2),
		DisableAutoGenTag: true,
		SilenceErrors:     true,
		PersistentPreRunE: func(*cobra.Command, []string) error { return cfg.setConfig() },
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			log, err := newLogger(cmd, cfg.GetString("LogLevel"))
			if err != nil {
				return err
			}
			p, err := PipelineConfig(cfg.Viper)
			if err != nil {
				return err
			}
			p.Log = log
			_, err = Run(cmd.Context(), p,
				os.ExpandEnv(args[0]),
				os.ExpandEnv(args[1]),
				cfg.GetString("InputSuffix"),
				cfg.GetBool("Recursive"),
				os.ExpandEnv(cfg.GetString("ReportFile")),
			)
			return err
		},
	}

	cfg.versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "version prints the version number of this version of dustgrid.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("dustgrid v%s\n", dustgrid.Version)
		},
		DisableAutoGenTag: true,
	}
	cfg.Root.AddCommand(cfg.versionCmd)

	deepBlue := dustgrid.DeepBlueVariables()

	// options are the configuration options available to dustgrid.
	options := []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "BoundingBox.LonMin",
			usage: `
              BoundingBox.LonMin is the western edge of the region of interest
              in degrees east. Only granules with at least one pixel strictly
              inside the region are processed.`,
			defaultVal: -20.0,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "BoundingBox.LonMax",
			usage: `
              BoundingBox.LonMax is the eastern edge of the region of interest
              in degrees east.`,
			defaultVal: 50.0,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "BoundingBox.LatMin",
			usage: `
              BoundingBox.LatMin is the southern edge of the region of interest
              in degrees north.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "BoundingBox.LatMax",
			usage: `
              BoundingBox.LatMax is the northern edge of the region of interest
              in degrees north.`,
			defaultVal: 40.0,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "Grid.Resolution",
			usage: `
              Grid.Resolution is the spacing in degrees of the global output grid,
              whose latitudes run from -90 to 90 and longitudes from -180 to 180,
              both inclusive. It must evenly divide 180.`,
			defaultVal: 0.25,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "InputSuffix",
			usage: `
              InputSuffix is the file name suffix of the granule files in the
              input directory. Granules must be NetCDF classic or NetCDF-4/HDF5;
              MODIS Collection 6.1 granules are HDF4 and must first be converted,
              for example with h4toh5, keeping their file names.`,
			defaultVal: ".hdf",
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "Recursive",
			usage: `
              Recursive specifies whether to search subdirectories of the input
              directory for granule files.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of granules to process at the same time.`,
			shorthand:  "j",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "Variables.Longitude",
			usage: `
              Variables.Longitude is the name of the pixel longitude array.
              The Variables.* defaults are the MODIS Deep Blue names as they
              appear in granules converted from HDF4 with h4toh5.`,
			defaultVal: deepBlue.Longitude,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "Variables.Latitude",
			usage: `
              Variables.Latitude is the name of the pixel latitude array.`,
			defaultVal: deepBlue.Latitude,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "Variables.AOD",
			usage: `
              Variables.AOD is the name of the aerosol optical depth array.`,
			defaultVal: deepBlue.AOD,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "Variables.AE",
			usage: `
              Variables.AE is the name of the Angstrom exponent array.`,
			defaultVal: deepBlue.AE,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "Variables.SSA",
			usage: `
              Variables.SSA is the name of the single-scattering albedo array,
              either (channel, y, x) or (y, x).`,
			defaultVal: deepBlue.SSA,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "Variables.SSAChannel",
			usage: `
              Variables.SSAChannel is the index of the single-scattering albedo
              channel used for quality screening. The default selects 470 nm in
              the MODIS Deep Blue product.`,
			defaultVal: deepBlue.SSAChannel,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "Output.GzipLevel",
			usage: `
              Output.GzipLevel is the deflate (gzip) compression level (1-9) applied
              to each output file. NetCDF classic files cannot be compressed
              internally, so a compressed file is gzipped whole and its name gets
              a '.nc.gz' suffix instead of '.nc'. 0 writes uncompressed NetCDF
              with the plain '.nc' name.`,
			defaultVal: 4,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "ReportFile",
			usage: `
              ReportFile is the path of a TOML file recording the outcome for
              every granule. No report is written if it is empty.
              The path can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages to print: one of
              debug, info, warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
	}

	// Set the prefix for configuration environment variables.
	cfg.SetEnvPrefix("DUSTGRID")
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
			case int:
				set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
			default:
				panic("invalid argument type")
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
	return cfg
}

// setConfig finds and reads in the configuration file, if there is one.
func (cfg *Cfg) setConfig() error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("dustgrid: problem reading configuration file: %w", err)
		}
	}
	return nil
}

// newLogger returns a logger that writes text to the command's standard
// output at the given level.
func newLogger(cmd *cobra.Command, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("dustgrid: LogLevel: %w", err)
	}
	log := logrus.New()
	log.SetOutput(cmd.OutOrStdout())
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		DisableSorting:  true,
	})
	return log, nil
}
