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
	"image"
	"math"
	"testing"

	"github.com/ctessum/geom"
)

func TestSEAGrid(t *testing.T) {
	g, err := NewSEAGrid(180)
	if err != nil {
		t.Fatal(err)
	}
	if g.NumRows() != 180 {
		t.Errorf("rows: have %d, want 180", g.NumRows())
	}
	// Rows next to the equator have 2*numRows columns.
	if have, want := g.NumCols(89), 360; have != want {
		t.Errorf("equator columns: have %d, want %d", have, want)
	}
	if have, want := g.NumCols(0), g.NumCols(179); have != want {
		t.Errorf("polar columns are not symmetric: %d and %d", have, want)
	}
	var sum uint64
	for r := 0; r < g.NumRows(); r++ {
		if g.FirstBinIndex(r) != sum {
			t.Errorf("row %d: first bin %d, want %d", r, g.FirstBinIndex(r), sum)
		}
		sum += uint64(g.NumCols(r))
	}
	if g.NumBins() != sum {
		t.Errorf("bins: have %d, want %d", g.NumBins(), sum)
	}
	if _, err := NewSEAGrid(1); err == nil {
		t.Error("expected an error for a one-row grid")
	}
}

func TestSEAGridTotalInverse(t *testing.T) {
	g, err := NewSEAGrid(180)
	if err != nil {
		t.Fatal(err)
	}
	rowHeight := 180 / float64(g.NumRows())
	for lat := -90.0; lat <= 90; lat += 0.73 {
		for lon := -180.0; lon <= 180; lon += 1.37 {
			bin := g.BinIndex(lat, lon)
			if bin >= g.NumBins() {
				t.Fatalf("(%g, %g): bin %d out of range", lat, lon, bin)
			}
			row := g.RowIndex(bin)
			wantRow := int((90 - lat) * float64(g.NumRows()) / 180)
			if wantRow == g.NumRows() {
				wantRow--
			}
			if row != wantRow {
				t.Errorf("(%g, %g): row %d, want %d", lat, lon, row, wantRow)
			}
			clat, clon := g.CenterLatLon(bin)
			if math.Abs(clat-lat) > rowHeight/2+1e-9 {
				t.Errorf("(%g, %g): center latitude %g too far", lat, lon, clat)
			}
			colWidth := 360 / float64(g.NumCols(row))
			if math.Abs(clon-lon) > colWidth/2+1e-9 {
				t.Errorf("(%g, %g): center longitude %g too far", lat, lon, clon)
			}
		}
	}
}

func TestSEAGridRowIndexMonotonic(t *testing.T) {
	g, err := NewSEAGrid(36)
	if err != nil {
		t.Fatal(err)
	}
	prev := 0
	for b := uint64(0); b < g.NumBins(); b++ {
		r := g.RowIndex(b)
		if r < prev {
			t.Fatalf("bin %d: row %d after row %d", b, r, prev)
		}
		if b < g.FirstBinIndex(r) || (r+1 < g.NumRows() && b >= g.FirstBinIndex(r+1)) {
			t.Fatalf("bin %d is not in row %d", b, r)
		}
		prev = r
	}
}

func TestNumRowsForResolution(t *testing.T) {
	for _, test := range []struct {
		res  float64
		want int
	}{
		{res: 9.28, want: 2160},
		{res: 4.64, want: 4318},
		{res: 111.3, want: 180},
	} {
		if have := NumRowsForResolution(test.res); have != test.want {
			t.Errorf("%g km: have %d, want %d", test.res, have, test.want)
		}
	}
}

func TestPlateCarreeGrid(t *testing.T) {
	g, err := NewPlateCarreeGrid(90)
	if err != nil {
		t.Fatal(err)
	}
	if g.NumBins() != 90*180 {
		t.Errorf("bins: have %d, want %d", g.NumBins(), 90*180)
	}
	bin := g.BinIndex(0.5, 0.5)
	lat, lon := g.CenterLatLon(bin)
	if lat != 1 || lon != 1 {
		t.Errorf("center: have (%g, %g), want (1, 1)", lat, lon)
	}
	var mg MosaickingGrid = g
	r := mg.PixelRectangle(&geom.Bounds{Min: geom.Point{X: -10, Y: -4}, Max: geom.Point{X: 10, Y: 4}})
	if want := image.Rect(85, 43, 95, 47); r != want {
		t.Errorf("pixel rectangle: have %v, want %v", r, want)
	}
	slices := mg.SliceRectangles(r, 3)
	want := []image.Rectangle{image.Rect(85, 43, 95, 46), image.Rect(85, 46, 95, 47)}
	if len(slices) != len(want) {
		t.Fatalf("slices: have %v, want %v", slices, want)
	}
	for i := range want {
		if slices[i] != want[i] {
			t.Errorf("slice %d: have %v, want %v", i, slices[i], want[i])
		}
	}
}
