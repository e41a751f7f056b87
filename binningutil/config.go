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

package binningutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/binning"
	"github.com/spatialmodel/binning/aggregator"
	"github.com/spf13/cast"
)

// dateFormat is the layout of the StartDate and EndDate options.
const dateFormat = "2006-01-02"

// Config holds the settings of a binning run.
type Config struct {
	// SourceProducts are glob patterns matching the input products.
	SourceProducts []string

	// Start and End limit the acquisition times of the products that
	// are binned. Zero values do not limit.
	Start, End time.Time

	// Region is a GeoJSON or shapefile path or "lonMin,latMin,lonMax,latMax".
	// If it is empty, the region covers all source products.
	Region string

	NumRows       int
	SuperSampling int
	MaskExpr      string

	// Variables maps variable names to band-math expressions.
	Variables map[string]string

	Aggregators []aggregator.Config

	// StartMJD, Duration and MinDataHour configure the data period.
	// No data period is used if Duration is not positive. A negative
	// MinDataHour gives a period with fixed UTC boundaries.
	StartMJD, Duration, MinDataHour float64

	MaxDistanceKm float64

	SliceHeight int
	CacheRows   int
	Concurrency int
	RowsPerPart int

	OutputFile       string
	OutputBinnedData bool
	OutputPNG        bool
	LogFile          string
	MetadataFile     string

	// SpillDir, if set, is where spatial bins are written instead of
	// being held in memory.
	SpillDir string
}

// LoadConfig reads a Config from cfg.
func LoadConfig(cfg *viper.Viper) (*Config, error) {
	c := &Config{
		SourceProducts: expandStringSlice(cfg.GetStringSlice("SourceProducts")),
		Region:         os.ExpandEnv(cfg.GetString("Region")),
		NumRows:        cfg.GetInt("NumRows"),
		SuperSampling:  cfg.GetInt("SuperSampling"),
		MaskExpr:       cfg.GetString("MaskExpr"),
		StartMJD:       cfg.GetFloat64("DataPeriod.StartMJD"),
		Duration:       cfg.GetFloat64("DataPeriod.Duration"),
		MinDataHour:    cfg.GetFloat64("DataPeriod.MinDataHour"),
		MaxDistanceKm:  cfg.GetFloat64("MaxDistanceKm"),
		SliceHeight:    cfg.GetInt("SliceHeight"),
		CacheRows:      cfg.GetInt("CacheRows"),
		Concurrency:    cfg.GetInt("Concurrency"),
		RowsPerPart:    cfg.GetInt("RowsPerPart"),

		OutputBinnedData: cfg.GetBool("OutputBinnedData"),
		OutputPNG:        cfg.GetBool("OutputPNG"),
		MetadataFile:     os.ExpandEnv(cfg.GetString("MetadataFile")),
		SpillDir:         os.ExpandEnv(cfg.GetString("SpillDir")),
	}
	if len(c.SourceProducts) == 0 {
		return nil, fmt.Errorf("binningutil: no SourceProducts were specified")
	}
	var err error
	if c.Start, c.End, err = checkDates(cfg.GetString("StartDate"), cfg.GetString("EndDate")); err != nil {
		return nil, err
	}
	if res := cfg.GetFloat64("ResolutionKm"); res > 0 {
		c.NumRows = binning.NumRowsForResolution(res)
	}
	if c.SuperSampling < 1 {
		return nil, fmt.Errorf("binningutil: SuperSampling must be at least 1, but is %d", c.SuperSampling)
	}
	if c.SliceHeight < 1 {
		return nil, fmt.Errorf("binningutil: SliceHeight must be at least 1, but is %d", c.SliceHeight)
	}
	if c.RowsPerPart < 1 {
		return nil, fmt.Errorf("binningutil: RowsPerPart must be at least 1, but is %d", c.RowsPerPart)
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Variables, err = GetStringMapString("Variables", cfg); err != nil {
		return nil, err
	}
	if c.Aggregators, err = aggregatorConfigs(cfg.Get("Aggregators")); err != nil {
		return nil, err
	}
	if c.OutputFile, err = checkOutputFile(cfg.GetString("OutputFile")); err != nil {
		return nil, err
	}
	c.LogFile = checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), c.OutputFile)
	return c, nil
}

// Vars returns the variables to be binned: the configured expression
// variables sorted by name, followed by the bands used by the
// aggregators that are not expression variables.
func (c *Config) Vars() []binning.Variable {
	names := make([]string, 0, len(c.Variables))
	for name := range c.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	var vars []binning.Variable
	have := make(map[string]bool)
	for _, name := range names {
		vars = append(vars, binning.Variable{Name: name, Expr: c.Variables[name]})
		have[name] = true
	}
	add := func(name string) {
		if name != "" && !have[name] {
			vars = append(vars, binning.Variable{Name: name})
			have[name] = true
		}
	}
	for _, a := range c.Aggregators {
		add(a.VarName)
		for _, name := range a.SetVarNames {
			add(name)
		}
	}
	return vars
}

// DataPeriod returns the configured data period, or nil if there is none.
func (c *Config) DataPeriod() (binning.DataPeriod, error) {
	if c.Duration <= 0 {
		return nil, nil
	}
	start := c.StartMJD
	if start == 0 {
		if c.Start.IsZero() {
			return nil, fmt.Errorf("binningutil: the data period needs DataPeriod.StartMJD or StartDate")
		}
		start = binning.MJD(c.Start)
	}
	if c.MinDataHour < 0 {
		return &binning.TimeWindow{StartMJD: start, Duration: c.Duration}, nil
	}
	return &binning.SpatialDataPeriod{StartMJD: start, Duration: c.Duration, MinDataHour: c.MinDataHour}, nil
}

// BinningContext creates the context of a binning run over region.
func (c *Config) BinningContext(region binning.Region) (*binning.BinningContext, error) {
	ctx, err := newContext(c.NumRows, c.Vars(), c.MaskExpr, c.Aggregators)
	if err != nil {
		return nil, err
	}
	if ctx.DataPeriod, err = c.DataPeriod(); err != nil {
		return nil, err
	}
	ctx.SuperSampling = c.SuperSampling
	ctx.MaxDistanceKm = c.MaxDistanceKm
	ctx.Region = region
	return ctx, nil
}

// newContext creates a binning context with the grid, variables and
// aggregators shared by binning and formatting.
func newContext(numRows int, vars []binning.Variable, maskExpr string, aggs []aggregator.Config) (*binning.BinningContext, error) {
	grid, err := binning.NewSEAGrid(numRows)
	if err != nil {
		return nil, err
	}
	vs, err := binning.NewVariableSet(maskExpr, vars...)
	if err != nil {
		return nil, err
	}
	m, err := aggregator.NewManager(vs, aggs)
	if err != nil {
		return nil, err
	}
	return &binning.BinningContext{
		Grid:          grid,
		Variables:     vs,
		Manager:       m,
		SuperSampling: 1,
	}, nil
}

// checkDates parses the StartDate and EndDate options. End covers the
// whole of its day.
func checkDates(start, end string) (s, e time.Time, err error) {
	if start != "" {
		if s, err = time.Parse(dateFormat, start); err != nil {
			return s, e, fmt.Errorf("binningutil: invalid StartDate: %v", err)
		}
	}
	if end != "" {
		if e, err = time.Parse(dateFormat, end); err != nil {
			return s, e, fmt.Errorf("binningutil: invalid EndDate: %v", err)
		}
		e = e.Add(24*time.Hour - time.Nanosecond)
	}
	if !s.IsZero() && !e.IsZero() && e.Before(s) {
		return s, e, fmt.Errorf("binningutil: EndDate %s is before StartDate %s", end, start)
	}
	return s, e, nil
}

// aggregatorConfigs decodes the Aggregators option, which is either a
// JSON string or a list of tables from a configuration file.
func aggregatorConfigs(v interface{}) ([]aggregator.Config, error) {
	var b []byte
	switch t := v.(type) {
	case nil:
	case string:
		b = []byte(t)
	default:
		var err error
		if b, err = json.Marshal(t); err != nil {
			return nil, fmt.Errorf("binningutil: invalid Aggregators: %v", err)
		}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("binningutil: no Aggregators were specified")
	}
	aggs, err := aggregator.ParseConfigs(b)
	if err != nil {
		return nil, err
	}
	if len(aggs) == 0 {
		return nil, fmt.Errorf("binningutil: no Aggregators were specified")
	}
	return aggs, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`binningutil: you need to specify an output file configuration variable (for example: OutputFile="output.nc")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("binningutil: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch t := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return t, nil
	case map[string]interface{}:
		return cast.ToStringMapString(t), nil
	case string:
		o := make(map[string]string)
		if strings.TrimSpace(t) == "" {
			return o, nil
		}
		if err := json.NewDecoder(strings.NewReader(t)).Decode(&o); err != nil {
			return nil, fmt.Errorf("binningutil: invalid %s: %v", varName, err)
		}
		return o, nil
	}
	return nil, fmt.Errorf("binningutil: invalid type for %s: %#v", varName, i)
}
