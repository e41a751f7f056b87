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

package product

import (
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/wkt"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/binning"
)

func testProduct() *Product {
	p := New("test", 4, 3, AffineGeoCoding{Lon0: 0, Lat0: 3, DLon: 1, DLat: -1})
	a := p.AddBand("a")
	b := p.AddBand("b")
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			a.SetValue(x, y, float64(y*4+x))
			b.SetValue(x, y, float64(x%2))
		}
	}
	return p
}

func TestSource(t *testing.T) {
	p := testProduct()
	vars, err := binning.NewVariableSet("b > 0",
		binning.Variable{Name: "a"},
		binning.Variable{Name: "c", Expr: "a * 2 + b"},
	)
	if err != nil {
		t.Fatal(err)
	}
	src, err := p.Source(vars)
	if err != nil {
		t.Fatal(err)
	}
	if len(src.Variables) != 2 {
		t.Fatalf("have %d variables, want 2", len(src.Variables))
	}
	v, err := src.Variables[1].Value(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if v != 23 {
		t.Errorf("c(3, 2): have %g, want 23", v)
	}
	for _, test := range []struct {
		x    int
		want bool
	}{{0, false}, {1, true}, {2, false}, {3, true}} {
		valid, err := src.Mask.Valid(test.x, 1)
		if err != nil {
			t.Fatal(err)
		}
		if valid != test.want {
			t.Errorf("mask(%d, 1): have %v, want %v", test.x, valid, test.want)
		}
	}
	valid, err := src.Mask.Valid(10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if valid {
		t.Error("pixel outside of the product should be invalid")
	}
}

func TestSourceMissingBand(t *testing.T) {
	p := testProduct()
	vars, err := binning.NewVariableSet("", binning.Variable{Name: "z"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Source(vars); err == nil {
		t.Error("expected an error for a missing band")
	}
	vars, err = binning.NewVariableSet("", binning.Variable{Name: "z", Expr: "q + 1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Source(vars); err == nil {
		t.Error("expected an error for an unknown band in an expression")
	}
}

func TestExprRaster(t *testing.T) {
	p := testProduct()
	for _, test := range []struct {
		expr string
		want float32
	}{
		{expr: "sqrt(a)", want: 3},
		{expr: "abs(0 - a)", want: 9},
		{expr: "a > 5", want: 1},
		{expr: "isnan(a)", want: 0},
		{expr: "2.5", want: 2.5},
	} {
		t.Run(test.expr, func(t *testing.T) {
			r, err := NewExprRaster(test.expr, p.Bands)
			if err != nil {
				t.Fatal(err)
			}
			v, err := r.Value(1, 2)
			if err != nil {
				t.Fatal(err)
			}
			if v != test.want {
				t.Errorf("have %g, want %g", v, test.want)
			}
		})
	}
	if _, err := NewExprRaster("a +", p.Bands); err == nil {
		t.Error("expected a parse error")
	}
}

func TestInPeriod(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC) }
	p := testProduct()
	if !p.InPeriod(day(1), day(2)) {
		t.Error("products without times should always be included")
	}
	p.StartTime, p.StopTime = day(5), day(6)
	for _, test := range []struct {
		start, end time.Time
		want       bool
	}{
		{day(1), day(4), false},
		{day(7), day(9), false},
		{day(1), day(5), true},
		{day(6), day(9), true},
		{time.Time{}, time.Time{}, true},
	} {
		if have := p.InPeriod(test.start, test.end); have != test.want {
			t.Errorf("[%v, %v]: have %v, want %v", test.start, test.end, have, test.want)
		}
	}
}

func TestExtent(t *testing.T) {
	p := testProduct()
	b, err := p.Extent(1)
	if err != nil {
		t.Fatal(err)
	}
	if b.Min.X != 0 || b.Max.X != 4 || b.Min.Y != 0 || b.Max.Y != 3 {
		t.Errorf("have %+v, want lon 0 to 4 and lat 0 to 3", b)
	}
}

func TestTimes(t *testing.T) {
	lt := LinearTimes{Start: 100, Stop: 101, Height: 4}
	if mjd, ok := lt.ScanLineMJD(1); !ok || mjd != 100.375 {
		t.Errorf("have %g %v, want 100.375 true", mjd, ok)
	}
	st := ScanTimes{5, math.NaN()}
	if mjd, ok := st.ScanLineMJD(0); !ok || mjd != 5 {
		t.Errorf("have %g %v, want 5 true", mjd, ok)
	}
	if _, ok := st.ScanLineMJD(1); ok {
		t.Error("NaN scan time should be unknown")
	}
	if _, ok := st.ScanLineMJD(2); ok {
		t.Error("scan time beyond the product should be unknown")
	}
}

func TestAffineGeoCoding(t *testing.T) {
	g := AffineGeoCoding{Lon0: 179, Lat0: 10, DLon: 0.5, DLat: -0.5}
	lat, lon, err := g.LatLon(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if lat != 9 || lon != -179.5 {
		t.Errorf("have (%g, %g), want (9, -179.5)", lat, lon)
	}
}

func TestPixelGeoCoding(t *testing.T) {
	g := &PixelGeoCoding{Lat: sparse.ZerosDense(2, 2), Lon: sparse.ZerosDense(2, 2)}
	g.Lat.Set(10, 0, 0)
	g.Lat.Set(10, 0, 1)
	g.Lon.Set(179, 0, 0)
	g.Lon.Set(-179, 0, 1)
	g.Lon.Set(179, 1, 0)
	g.Lon.Set(-179, 1, 1)
	for _, test := range []struct {
		x, y, lat, lon float64
	}{
		{x: 0.5, y: 0.5, lat: 10, lon: 179},
		{x: 1.5, y: 0.5, lat: 10, lon: -179},
		{x: 1, y: 1, lat: 5, lon: 180},
	} {
		lat, lon, err := g.LatLon(test.x, test.y)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(lat-test.lat) > 1e-9 || math.Abs(lon-test.lon) > 1e-9 {
			t.Errorf("(%g, %g): have (%g, %g), want (%g, %g)", test.x, test.y, lat, lon, test.lat, test.lon)
		}
	}
	if _, _, err := g.LatLon(5, 5); err == nil {
		t.Error("expected an error outside of the geocoding")
	}
}

func TestReadRegion(t *testing.T) {
	r, err := ReadRegion("-10,-5,10,5")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Contains(0, 0) || r.Contains(6, 0) {
		t.Error("box region has the wrong extent")
	}
	for _, s := range []string{"1,2,3", "a,b,c,d", "10,0,-10,5"} {
		if _, err := ReadRegion(s); err == nil {
			t.Errorf("%s: expected an error", s)
		}
	}

	dir, err := ioutil.TempDir("", "region")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	f := filepath.Join(dir, "region.geojson")
	j := `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`
	if err := ioutil.WriteFile(f, []byte(j), 0644); err != nil {
		t.Fatal(err)
	}
	r, err = ReadRegion(f)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Contains(5, 5) || r.Contains(-5, 5) {
		t.Error("geojson region has the wrong extent")
	}
}

func TestReadRegionWKT(t *testing.T) {
	r, err := ReadRegion("polygon ((0 0, 10 0, 10 10, 0 10, 0 0))")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Contains(5, 5) || r.Contains(-5, 5) {
		t.Error("polygon region has the wrong extent")
	}

	mp := geom.MultiPolygon{
		{{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}, {X: 0, Y: 0}}},
		{{{X: 20, Y: -5}, {X: 30, Y: -5}, {X: 30, Y: 5}, {X: 20, Y: 5}, {X: 20, Y: -5}}},
	}
	b, err := wkt.Encode(mp)
	if err != nil {
		t.Fatal(err)
	}
	r, err = ReadRegion(string(b))
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		lat, lon float64
		want     bool
	}{
		{5, 5, true},
		{0, 25, true},
		{0, 15, false},
		{8, 25, false},
	} {
		if have := r.Contains(test.lat, test.lon); have != test.want {
			t.Errorf("%s contains lat %g lon %g: have %v, want %v", b, test.lat, test.lon, have, test.want)
		}
	}

	for _, s := range []string{
		"POLYGON EMPTY",
		"POLYGON ((0 0, 10 0, 0 0))",
		"POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0)",
		"POLYGON ((0 0, 10 0, 10 x, 0 10, 0 0))",
		"POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0)) extra",
	} {
		if _, err := ReadRegion(s); err == nil {
			t.Errorf("%s: expected an error", s)
		}
	}
	if isWKTPolygon("polygons.shp") {
		t.Error("polygons.shp should be read as a file name")
	}
}

func TestUnionRegion(t *testing.T) {
	p1 := New("a", 10, 5, AffineGeoCoding{Lon0: 0, Lat0: 5, DLon: 1, DLat: -1})
	p2 := New("b", 10, 5, AffineGeoCoding{Lon0: 50, Lat0: 5, DLon: 1, DLat: -1})
	r, err := UnionRegion([]*Product{p1, p2}, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		lat, lon float64
		want     bool
	}{
		{2, 2, true},
		{2, 55, true},
		{2, 30, false},
		{20, 2, false},
	} {
		if have := r.Contains(test.lat, test.lon); have != test.want {
			t.Errorf("(%g, %g): have %v, want %v", test.lat, test.lon, have, test.want)
		}
	}
	if _, err := UnionRegion(nil, 1); err == nil {
		t.Error("expected an error without products")
	}
}
