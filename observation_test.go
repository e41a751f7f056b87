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

package binning

import (
	"fmt"
	"image"
	"io"
	"math"
	"testing"
)

type testRaster struct {
	w, h int
	f    func(x, y int) float32
}

func (r testRaster) Bounds() image.Rectangle { return image.Rect(0, 0, r.w, r.h) }
func (r testRaster) Value(x, y int) (float32, error) {
	if !(image.Point{X: x, Y: y}).In(r.Bounds()) {
		return 0, fmt.Errorf("(%d, %d) out of bounds", x, y)
	}
	return r.f(x, y), nil
}

// testGeoCoding maps pixels to 0.5 degree cells with the top left
// corner at (10N, 0E).
type testGeoCoding struct{}

func (testGeoCoding) LatLon(x, y float64) (float64, float64, error) {
	return 10 - y*0.5, x * 0.5, nil
}

type testMask func(x, y int) bool

func (m testMask) Valid(x, y int) (bool, error) { return m(x, y), nil }

type testTimes []float64

func (t testTimes) ScanLineMJD(y int) (float64, bool) { return t[y], true }

func collect(t *testing.T, it *ObservationIterator) []*Observation {
	var o []*Observation
	for {
		obs, err := it.Next()
		if err == io.EOF {
			return o
		} else if err != nil {
			t.Fatal(err)
		}
		o = append(o, obs)
	}
}

func testSource() *Source {
	return &Source{
		Variables: []Raster{testRaster{w: 4, h: 3, f: func(x, y int) float32 { return float32(10*y + x) }}},
		GeoCoding: testGeoCoding{},
	}
}

func TestSamplePointer(t *testing.T) {
	p := NewSamplePointer(2, image.Rect(0, 0, 2, 1), image.Rect(5, 5, 6, 6))
	type pos struct {
		x, y, sub int
		px, py    float64
	}
	want := []pos{
		{0, 0, 0, 0.25, 0.25}, {0, 0, 1, 0.75, 0.25}, {0, 0, 2, 0.25, 0.75}, {0, 0, 3, 0.75, 0.75},
		{1, 0, 0, 1.25, 0.25}, {1, 0, 1, 1.75, 0.25}, {1, 0, 2, 1.25, 0.75}, {1, 0, 3, 1.75, 0.75},
		{5, 5, 0, 5.25, 5.25}, {5, 5, 1, 5.75, 5.25}, {5, 5, 2, 5.25, 5.75}, {5, 5, 3, 5.75, 5.75},
	}
	for i, w := range want {
		x, y, sub, pt, ok := p.Next()
		if !ok {
			t.Fatalf("position %d: pointer ended early", i)
		}
		have := pos{x, y, sub, pt.X, pt.Y}
		if have != w {
			t.Errorf("position %d: have %+v, want %+v", i, have, w)
		}
	}
	if _, _, _, _, ok := p.Next(); ok {
		t.Error("pointer should be exhausted")
	}
}

func TestObservationIteratorScanOrder(t *testing.T) {
	ctx := newTestContext(t, 180)
	it, err := NewObservationIterator(ctx, testSource(), image.Rect(0, 0, 4, 3))
	if err != nil {
		t.Fatal(err)
	}
	obs := collect(t, it)
	if len(obs) != 12 {
		t.Fatalf("observations: have %d, want 12", len(obs))
	}
	for i, o := range obs {
		x, y := i%4, i/4
		if o.Get(0) != float32(10*y+x) {
			t.Errorf("observation %d: have %g, want %d", i, o.Get(0), 10*y+x)
		}
		if o.Latitude != 10-(float64(y)+0.5)*0.5 || o.Longitude != (float64(x)+0.5)*0.5 {
			t.Errorf("observation %d: position (%g, %g)", i, o.Latitude, o.Longitude)
		}
		if !math.IsNaN(o.MJD) {
			t.Errorf("observation %d: time should be NaN without scan line times", i)
		}
	}
}

func TestObservationIteratorFilters(t *testing.T) {
	for _, test := range []struct {
		name   string
		setup  func(ctx *BinningContext, src *Source)
		rect   image.Rectangle
		expect int
	}{
		{
			name:   "out of bounds",
			setup:  func(ctx *BinningContext, src *Source) {},
			rect:   image.Rect(-2, 0, 6, 3),
			expect: 12,
		},
		{
			name: "mask",
			setup: func(ctx *BinningContext, src *Source) {
				src.Mask = testMask(func(x, y int) bool { return x != 1 })
			},
			rect:   image.Rect(0, 0, 4, 3),
			expect: 9,
		},
		{
			name: "region",
			setup: func(ctx *BinningContext, src *Source) {
				ctx.Region = BoxRegion(0, 9, 1, 10)
			},
			rect:   image.Rect(0, 0, 4, 3),
			expect: 4,
		},
		{
			name: "data period",
			setup: func(ctx *BinningContext, src *Source) {
				src.Times = testTimes{100.1, 100.5, 101.2}
				ctx.DataPeriod = &TimeWindow{StartMJD: 100.2, Duration: 0.5}
			},
			rect:   image.Rect(0, 0, 4, 3),
			expect: 4,
		},
		{
			name: "super-sampling",
			setup: func(ctx *BinningContext, src *Source) {
				ctx.SuperSampling = 3
			},
			rect:   image.Rect(0, 0, 4, 3),
			expect: 108,
		},
		{
			name: "max distance",
			setup: func(ctx *BinningContext, src *Source) {
				ctx.SuperSampling = 3
				// Sub-pixels are 1/3 pixel from the center, about 18.5 km.
				ctx.MaxDistanceKm = 10
			},
			rect:   image.Rect(0, 0, 4, 3),
			expect: 12,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			ctx := newTestContext(t, 180)
			src := testSource()
			test.setup(ctx, src)
			it, err := NewObservationIterator(ctx, src, test.rect)
			if err != nil {
				t.Fatal(err)
			}
			if have := len(collect(t, it)); have != test.expect {
				t.Errorf("have %d observations, want %d", have, test.expect)
			}
		})
	}
}

func TestObservationIteratorVariableCount(t *testing.T) {
	ctx := newTestContext(t, 180)
	src := testSource()
	src.Variables = append(src.Variables, src.Variables[0])
	if _, err := NewObservationIterator(ctx, src, image.Rect(0, 0, 1, 1)); err == nil {
		t.Error("expected an error for a variable count mismatch")
	}
}

func TestProcessProduct(t *testing.T) {
	ctx := newTestContext(t, 180)
	c := newCollector()
	binner := NewSpatialBinner(ctx, c)
	n, err := ProcessProduct(binner, testSource(), image.Rect(0, 0, 4, 3), 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 12 {
		t.Errorf("observations: have %d, want 12", n)
	}
	var total int
	for _, nobs := range c.nobs {
		total += nobs
	}
	if total != 12 {
		t.Errorf("binned observations: have %d, want 12", total)
	}
}

func TestGreatCircleDistance(t *testing.T) {
	d := GreatCircleDistance(0, 0, 0, 1)
	if want := 2 * math.Pi * EarthRadius / 360; math.Abs(d-want) > 1e-6 {
		t.Errorf("have %g, want %g", d, want)
	}
}
