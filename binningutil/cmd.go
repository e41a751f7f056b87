/*
Copyright © 2018 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package binningutil contains the command-line interface of the binning
// tool.
package binningutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/binning"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to the binning tool.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "SourceProducts",
			usage: `
              SourceProducts is a list of glob patterns matching the NetCDF
              products to be binned. Products need "x" and "y" dimensions and
              either lat/lon variables or a proj4 attribute with x0, y0, dx
              and dy attributes. They can include environment variables.`,
			shorthand:  "i",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "StartDate",
			usage: `
              StartDate is the first day (YYYY-MM-DD) of the binning period.
              Products acquired before it are skipped.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "EndDate",
			usage: `
              EndDate is the last day (YYYY-MM-DD) of the binning period.
              Products acquired after it are skipped.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Region",
			usage: `
              Region is the region of interest, either as the path to a
              GeoJSON file or shapefile, as a WKT POLYGON or MULTIPOLYGON, or
              as "lonMin,latMin,lonMax,latMax".
              For run, the default is the union of the extents of the source
              products. For format, the default is the region of the binning
              run.`,
			shorthand:  "r",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), formatCmd.Flags()},
		},
		{
			name: "NumRows",
			usage: `
              NumRows is the number of rows of the global grid. It must be
              even and greater than 2.`,
			defaultVal: binning.DefaultNumRows,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "ResolutionKm",
			usage: `
              ResolutionKm, if positive, overrides NumRows with the number of
              rows that gives bins about ResolutionKm kilometers wide.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "SuperSampling",
			usage: `
              SuperSampling is the number of sub-pixel steps along each pixel
              axis. Each pixel is binned as SuperSampling^2 observations.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MaskExpr",
			usage: `
              MaskExpr is an expression of the product bands. Pixels where it
              evaluates to false or 0 are not binned.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Variables",
			usage: `
              Variables maps the names of computed variables to expressions
              of the product bands, for example {"ratio":"b1 / b2"}. Bands used
              directly by aggregators do not need to be listed.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Aggregators",
			usage: `
              Aggregators is a JSON list of aggregator configurations, for
              example [{"Type":"AVG","VarName":"chl"}]. Type is one of AVG,
              AVG_OUTLIER, MIN_MAX, ON_MAX_SET, PERCENTILE and SUM.`,
			shorthand:  "a",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DataPeriod.StartMJD",
			usage: `
              DataPeriod.StartMJD is the start of the data period as a
              modified Julian day. If it is 0, StartDate is used.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DataPeriod.Duration",
			usage: `
              DataPeriod.Duration is the length of the data period in days.
              If it is not positive, observations are not filtered by time.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DataPeriod.MinDataHour",
			usage: `
              DataPeriod.MinDataHour is the local solar hour at which the
              data period starts. If it is negative, the period has fixed
              UTC boundaries.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MaxDistanceKm",
			usage: `
              MaxDistanceKm, if positive, is the largest distance allowed
              between a super-sampled observation and its pixel center.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SliceHeight",
			usage: `
              SliceHeight is the number of product rows binned at a time.`,
			defaultVal: 64,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "CacheRows",
			usage: `
              CacheRows is the number of product rows held in memory for
              each product.`,
			defaultVal: 512,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Concurrency",
			usage: `
              Concurrency is the number of products binned at the same time.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RowsPerPart",
			usage: `
              RowsPerPart is the number of grid rows in each part of the
              spill files and binned files.`,
			defaultVal: 256,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), formatCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the NetCDF map to be written.
              It can include environment variables.`,
			shorthand:  "o",
			defaultVal: "binned.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), formatCmd.Flags()},
		},
		{
			name: "OutputBinnedData",
			usage: `
              OutputBinnedData specifies whether the temporal bins should be
              written to a binned file next to OutputFile, with the suffix
              "-bins.nc".`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputPNG",
			usage: `
              OutputPNG specifies whether a quick-look image and a legend
              should be written for each output feature.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), formatCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile will be saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), formatCmd.Flags()},
		},
		{
			name: "MetadataFile",
			usage: `
              MetadataFile is the path to an optional TOML file of properties
              to be added to the output metadata.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SpillDir",
			usage: `
              SpillDir, if set, is a directory where spatial bins are written
              during binning instead of being held in memory.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "BinnedFile",
			usage: `
              BinnedFile is the binned file to be formatted.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{formatCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("BINNING")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(formatCmd)
	Root.AddCommand(gridCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("binningutil: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "binning",
	Short: "A level-3 binning tool for satellite data.",
	Long: `binning aggregates the pixels of satellite products into the equal-area
bins of a global grid and maps the results.
Use the subcommands specified below to access the tool's functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'BINNING_var' where 'var' is the
name of the variable to be set. Paths are additionally allowed to contain
environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of the binning tool.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("binning v%s\n", binning.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that bins source products.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bin source products.",
	Long: `run spatially and temporally bins the source products and writes a map
of the aggregated values over the region of interest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(c, cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

// formatCmd is a command that maps a binned file.
var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Map a binned file.",
	Long: `format reads a binned file written by 'run' with OutputBinnedData and
writes a map of the aggregated values over the region of interest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		binnedFile := os.ExpandEnv(Cfg.GetString("BinnedFile"))
		if binnedFile == "" {
			return fmt.Errorf("binningutil: you need to specify a BinnedFile")
		}
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		return Format(
			binnedFile,
			os.ExpandEnv(Cfg.GetString("Region")),
			outputFile,
			checkLogFile(os.ExpandEnv(Cfg.GetString("LogFile")), outputFile),
			Cfg.GetBool("OutputPNG"),
			Cfg.GetInt("RowsPerPart"),
			cmd.OutOrStdout(),
		)
	},
	DisableAutoGenTag: true,
}

// gridCmd is a command that describes a grid.
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Describe the binning grid.",
	Long: `grid prints the number of rows and bins and the approximate bin size
of the grid specified by NumRows or ResolutionKm.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		numRows := Cfg.GetInt("NumRows")
		if res := Cfg.GetFloat64("ResolutionKm"); res > 0 {
			numRows = binning.NumRowsForResolution(res)
		}
		return Grid(numRows, cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}
