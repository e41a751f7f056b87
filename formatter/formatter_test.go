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

package formatter

import (
	"bytes"
	"image"
	"image/png"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/spatialmodel/binning"
	"github.com/spatialmodel/binning/aggregator"
	"github.com/spatialmodel/binning/binio"
)

func testContext(t *testing.T) *binning.BinningContext {
	vars, err := binning.NewVariableSet("", binning.Variable{Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	grid, err := binning.NewSEAGrid(18)
	if err != nil {
		t.Fatal(err)
	}
	avg, err := aggregator.NewAverage(vars, "x", "x", 1, false)
	if err != nil {
		t.Fatal(err)
	}
	m, err := binning.NewBinManager(avg)
	if err != nil {
		t.Fatal(err)
	}
	return &binning.BinningContext{Grid: grid, Variables: vars, Manager: m, SuperSampling: 1}
}

// render bins a value of 10+i at the i-th of points (lat, lon pairs) and
// renders the result over the whole globe.
func render(t *testing.T, ctx *binning.BinningContext, points ...[2]float64) (*RasterRenderer, map[uint64]float32) {
	want := make(map[uint64]float32)
	c := binio.NewSpatialBinCollector()
	for i, p := range points {
		idx := ctx.Grid.BinIndex(p[0], p[1])
		want[idx] = float32(10 + i)
		b := ctx.Manager.NewSpatialBin(idx)
		ctx.Manager.AggregateSpatialBin(&binning.Observation{FloatVector: binning.FloatVector{want[idx]}}, b)
		ctx.Manager.CompleteSpatialBin(b)
		if err := c.ConsumeSpatialBins(ctx, []*binning.SpatialBin{b}); err != nil {
			t.Fatal(err)
		}
	}
	bins, err := c.BinTemporally(binning.NewTemporalBinner(ctx))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRasterRendererForBounds(ctx, nil)
	src := &binio.ListSource{Parts: [][]*binning.TemporalBin{bins}}
	if err := binning.Reproject(ctx, src, r); err != nil {
		t.Fatal(err)
	}
	return r, want
}

func TestRasterRenderer(t *testing.T) {
	ctx := testContext(t)
	r, want := render(t, ctx, [2]float64{45, 10}, [2]float64{-20, -100})
	if r.Region != image.Rect(0, 0, 36, 18) {
		t.Fatalf("region: have %v, want the global raster", r.Region)
	}
	if want := []string{"x_mean", "x_sigma"}; !reflect.DeepEqual(r.Names, want) {
		t.Errorf("names: have %v, want %v", r.Names, want)
	}
	mean, err := r.Band("x_mean")
	if err != nil {
		t.Fatal(err)
	}
	found := 0
	for i := 0; i < 18; i++ {
		for j := 0; j < 36; j++ {
			v := mean.Get(i, j)
			idx := ctx.Grid.BinIndex(r.Lat(i), r.Lon(j))
			if w, ok := want[idx]; ok {
				found++
				if v != float64(w) {
					t.Errorf("(%d, %d): have %g, want %g", i, j, v, w)
				}
				if n := r.NumObs.Get(i, j); n != 1 {
					t.Errorf("(%d, %d): have %g observations, want 1", i, j, n)
				}
			} else if !math.IsNaN(v) {
				t.Errorf("(%d, %d): have %g, want NaN", i, j, v)
			}
		}
	}
	if found < 2 {
		t.Errorf("found %d pixels with data, want at least 2", found)
	}
	if _, err := r.Band("nope"); err == nil {
		t.Error("expected an error for an unknown band")
	}
}

func TestRasterRendererBounds(t *testing.T) {
	ctx := testContext(t)
	b := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 20, Y: 30}}
	r := NewRasterRendererForBounds(ctx, b)
	if want := image.Rect(18, 6, 20, 9); r.Region != want {
		t.Errorf("have %v, want %v", r.Region, want)
	}
	if lat := r.Lat(0); lat != 25 {
		t.Errorf("lat: have %g, want 25", lat)
	}
	if lon := r.Lon(0); lon != 5 {
		t.Errorf("lon: have %g, want 5", lon)
	}
}

func TestWriteNetCDF(t *testing.T) {
	ctx := testContext(t)
	r, _ := render(t, ctx, [2]float64{45, 10})
	dir, err := ioutil.TempDir("", "formatter")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "map.nc")
	if err := WriteNetCDF(path, r, map[string]string{"product_name": "map.nc"}); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cf, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	if l := cf.Header.Lengths("x_mean"); !reflect.DeepEqual(l, []int{18, 36}) {
		t.Errorf("lengths: have %v, want [18 36]", l)
	}
	if a := cf.Header.GetAttribute("", "product_name"); a != "map.nc" {
		t.Errorf("attribute: have %v, want map.nc", a)
	}
	rd := cf.Reader("lat", nil, nil)
	lat := rd.Zero(18).([]float64)
	if _, err := rd.Read(lat); err != nil {
		t.Fatal(err)
	}
	if lat[0] != 85 || lat[17] != -85 {
		t.Errorf("lat: have %v, want 85 to -85", lat)
	}
	rd = cf.Reader("x_mean", nil, nil)
	mean := rd.Zero(18 * 36).([]float32)
	if _, err := rd.Read(mean); err != nil {
		t.Fatal(err)
	}
	band, _ := r.Band("x_mean")
	for i, v := range band.Elements {
		if float64(mean[i]) != v && !(math.IsNaN(v) && math.IsNaN(float64(mean[i]))) {
			t.Fatalf("element %d: have %g, want %g", i, mean[i], v)
		}
	}
}

func TestWritePNG(t *testing.T) {
	ctx := testContext(t)
	r, _ := render(t, ctx, [2]float64{45, 10}, [2]float64{-20, -100})
	band, _ := r.Band("x_mean")
	var buf bytes.Buffer
	if err := WritePNG(&buf, band); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 36, 18) {
		t.Errorf("bounds: have %v, want 36x18", img.Bounds())
	}
	for i := 0; i < 18; i++ {
		for j := 0; j < 36; j++ {
			_, _, _, a := img.At(j, i).RGBA()
			if math.IsNaN(band.Get(i, j)) != (a == 0) {
				t.Fatalf("(%d, %d): alpha %d does not match value %g", i, j, a, band.Get(i, j))
			}
		}
	}
	cm := ColorMap(band)
	if cm.Min() != 10 || cm.Max() != 11 {
		t.Errorf("color map range: have [%g, %g], want [10, 11]", cm.Min(), cm.Max())
	}
}

func TestWriteLegend(t *testing.T) {
	ctx := testContext(t)
	r, _ := render(t, ctx, [2]float64{45, 10})
	band, _ := r.Band("x_mean")
	dir, err := ioutil.TempDir("", "formatter")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "legend.png")
	if err := WriteLegend(path, "x_mean", ColorMap(band)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}
}
