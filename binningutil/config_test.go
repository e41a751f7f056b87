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
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ctessum/geom"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/binning"
	"github.com/spatialmodel/binning/aggregator"
)

func TestLoadConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "binningutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	Cfg.Set("SourceProducts", []string{filepath.Join(dir, "*.nc")})
	Cfg.Set("StartDate", "2020-01-01")
	Cfg.Set("EndDate", "2020-01-02")
	Cfg.Set("Variables", `{"twice":"chl * 2"}`)
	Cfg.Set("Aggregators", `[{"Type":"AVG","VarName":"twice"},{"Type":"ON_MAX_SET","VarName":"chl","SetVarNames":["sst"]}]`)
	Cfg.Set("OutputFile", filepath.Join(dir, "out.nc"))
	Cfg.Set("DataPeriod.Duration", 1.0)
	Cfg.Set("DataPeriod.MinDataHour", -1.0)
	Cfg.Set("NumRows", binning.DefaultNumRows)
	Cfg.Set("ResolutionKm", 0.0)

	c, err := LoadConfig(Cfg)
	if err != nil {
		t.Fatal(err)
	}
	wantVars := []binning.Variable{{Name: "twice", Expr: "chl * 2"}, {Name: "chl"}, {Name: "sst"}}
	if !reflect.DeepEqual(c.Vars(), wantVars) {
		t.Errorf("variables: have %v, want %v", c.Vars(), wantVars)
	}
	if c.NumRows != binning.DefaultNumRows {
		t.Errorf("rows: have %d, want %d", c.NumRows, binning.DefaultNumRows)
	}
	if want := filepath.Join(dir, "out.log"); c.LogFile != want {
		t.Errorf("log file: have %s, want %s", c.LogFile, want)
	}
	if !c.OutputBinnedData {
		t.Error("binned data output should be on by default")
	}
	if c.Aggregators[0].WeightCoeff != 1 {
		t.Errorf("default weight coefficient: have %g, want 1", c.Aggregators[0].WeightCoeff)
	}
	dp, err := c.DataPeriod()
	if err != nil {
		t.Fatal(err)
	}
	want := &binning.TimeWindow{StartMJD: binning.MJD(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)), Duration: 1}
	if !reflect.DeepEqual(dp, want) {
		t.Errorf("data period: have %#v, want %#v", dp, want)
	}
	ctx, err := c.BinningContext(nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := ctx.Grid.NumRows(); n != binning.DefaultNumRows {
		t.Errorf("grid rows: have %d, want %d", n, binning.DefaultNumRows)
	}

	Cfg.Set("ResolutionKm", 1000.0)
	c, err = LoadConfig(Cfg)
	Cfg.Set("ResolutionKm", 0.0)
	if err != nil {
		t.Fatal(err)
	}
	if c.NumRows != 20 {
		t.Errorf("rows for 1000 km: have %d, want 20", c.NumRows)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	for _, test := range []struct {
		name  string
		value interface{}
	}{
		{"SourceProducts", []string{}},
		{"Aggregators", ""},
		{"Aggregators", "[]"},
		{"Aggregators", "{"},
		{"OutputFile", "/does/not/exist/out.nc"},
		{"StartDate", "2020-13-01"},
		{"SuperSampling", 0},
		{"Variables", "{"},
	} {
		cfg := viper.New()
		cfg.Set("SourceProducts", []string{"*.nc"})
		cfg.Set("Aggregators", `[{"Type":"SUM","VarName":"chl"}]`)
		cfg.Set("OutputFile", "out.nc")
		cfg.Set("SuperSampling", 1)
		cfg.Set("SliceHeight", 1)
		cfg.Set("RowsPerPart", 1)
		cfg.Set(test.name, test.value)
		if _, err := LoadConfig(cfg); err == nil {
			t.Errorf("%s=%v: expected an error", test.name, test.value)
		}
	}
}

func TestCheckDates(t *testing.T) {
	for _, test := range []struct {
		start, end string
		ok         bool
	}{
		{"", "", true},
		{"2020-01-01", "", true},
		{"2020-01-01", "2020-01-01", true},
		{"2020-01-02", "2020-01-01", false},
		{"01/02/2020", "", false},
		{"", "2020-02-30", false},
	} {
		s, e, err := checkDates(test.start, test.end)
		if (err == nil) != test.ok {
			t.Errorf("%q, %q: have error %v, want ok %v", test.start, test.end, err, test.ok)
			continue
		}
		if err == nil && test.end != "" && e.Sub(s) < 0 {
			t.Errorf("%q, %q: end %v is before start %v", test.start, test.end, e, s)
		}
	}
	_, e, err := checkDates("", "2020-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2020, 1, 1, 23, 59, 59, 999999999, time.UTC); !e.Equal(want) {
		t.Errorf("end: have %v, want %v", e, want)
	}
}

func TestGetStringMapString(t *testing.T) {
	want := map[string]string{"a": "b + 1"}
	for _, v := range []interface{}{
		map[string]string{"a": "b + 1"},
		map[string]interface{}{"a": "b + 1"},
		`{"a":"b + 1"}`,
	} {
		cfg := viper.New()
		cfg.Set("Variables", v)
		have, err := GetStringMapString("Variables", cfg)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(have, want) {
			t.Errorf("%#v: have %v, want %v", v, have, want)
		}
	}
	cfg := viper.New()
	cfg.Set("Variables", 3)
	if _, err := GetStringMapString("Variables", cfg); err == nil {
		t.Error("expected an error")
	}
}

func TestAggregatorConfigs(t *testing.T) {
	have, err := aggregatorConfigs([]interface{}{
		map[string]interface{}{"type": "PERCENTILE", "varname": "chl", "percentage": 50},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := aggregator.DefaultConfig()
	want.Type = "PERCENTILE"
	want.VarName = "chl"
	want.Percentage = 50
	if !reflect.DeepEqual(have, []aggregator.Config{want}) {
		t.Errorf("have %+v, want %+v", have, want)
	}
}

func TestMetadata(t *testing.T) {
	dir, err := ioutil.TempDir("", "binningutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	meta := filepath.Join(dir, "meta.toml")
	if err := ioutil.WriteFile(meta, []byte("institution = \"Example\"\nlevel = 3\nsoftware_name = \"other\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c := &Config{
		OutputFile:   filepath.Join(dir, "out.nc"),
		MetadataFile: meta,
		Aggregators:  []aggregator.Config{{Type: "SUM", VarName: "chl"}},
	}
	b := &geom.Bounds{Min: geom.Point{X: -10, Y: 5}, Max: geom.Point{X: 20.5, Y: 30}}
	attrs, err := c.metadata(b, 2)
	if err != nil {
		t.Fatal(err)
	}
	for k, want := range map[string]string{
		"institution":    "Example",
		"level":          "3",
		"software_name":  SoftwareName,
		"num_products":   "2",
		attrRegionBounds: "-10,5,20.5,30",
		attrVariables:    `[{"Name":"chl","Expr":""}]`,
	} {
		if attrs[k] != want {
			t.Errorf("%s: have %q, want %q", k, attrs[k], want)
		}
	}
	if _, ok := attrs[attrMaskExpr]; ok {
		t.Errorf("empty mask expression should not be written")
	}
	again, err := c.metadata(b, 2)
	if err != nil {
		t.Fatal(err)
	}
	if attrs["config_hash"] != again["config_hash"] {
		t.Errorf("config hash changed: %s, %s", attrs["config_hash"], again["config_hash"])
	}
}

func TestGrid(t *testing.T) {
	var buf bytes.Buffer
	Cfg.Set("NumRows", 18)
	Cfg.Set("ResolutionKm", 0.0)
	Root.SetOutput(&buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"grid"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	g, err := binning.NewSEAGrid(18)
	if err != nil {
		t.Fatal(err)
	}
	if want := fmt.Sprintf("bins: %d\n", g.NumBins()); !strings.Contains(buf.String(), want) {
		t.Errorf("have %q, want it to contain %q", buf.String(), want)
	}
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	Root.SetOutput(&buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "binning v" + binning.Version + "\n"; buf.String() != want {
		t.Errorf("have %q, want %q", buf.String(), want)
	}
}
