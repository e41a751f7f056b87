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
	"errors"
	"image"
	"testing"
)

type pixel struct {
	x, y int
	bin  uint64
	miss bool
	out  float32
}

type recorder struct {
	region       image.Rectangle
	pixels       []pixel
	began, ended bool
}

func (r *recorder) RasterRegion() image.Rectangle { return r.region }
func (r *recorder) Begin() error                  { r.began = true; return nil }
func (r *recorder) End() error                    { r.ended = true; return nil }
func (r *recorder) RenderBin(x, y int, b *TemporalBin, out Vector) error {
	r.pixels = append(r.pixels, pixel{x: x, y: y, bin: b.Index, out: out.Get(0)})
	return nil
}
func (r *recorder) RenderMissingBin(x, y int) error {
	r.pixels = append(r.pixels, pixel{x: x, y: y, miss: true})
	return nil
}

// partSource splits bins into parts at the given positions.
type partSource struct {
	parts     [][]*TemporalBin
	processed []int
	closed    bool
}

func (s *partSource) Open() (int, error) { return len(s.parts), nil }
func (s *partSource) Part(i int) (TemporalBinIterator, error) {
	return NewSliceIterator(s.parts[i]), nil
}
func (s *partSource) PartProcessed(i int, part TemporalBinIterator) error {
	s.processed = append(s.processed, i)
	return nil
}
func (s *partSource) Close() error { s.closed = true; return nil }

func temporalBins(ctx *BinningContext, indices ...uint64) []*TemporalBin {
	o := make([]*TemporalBin, len(indices))
	for i, idx := range indices {
		b := ctx.Manager.NewTemporalBin(idx)
		b.Features[0] = float32(idx)
		b.Features[1] = 1
		o[i] = b
	}
	return o
}

func TestReprojectorCompleteness(t *testing.T) {
	ctx := newTestContext(t, 18)
	g := ctx.Grid
	// Bins in rows 5, 6 and 9, with row 6 split across parts.
	var indices []uint64
	for _, row := range []int{5, 6, 9} {
		for c := 0; c < g.NumCols(row); c += 3 {
			indices = append(indices, g.FirstBinIndex(row)+uint64(c))
		}
	}
	bins := temporalBins(ctx, indices...)
	split := 0
	for i, b := range bins {
		if g.RowIndex(b.Index) == 6 && split == 0 {
			split = i + 2
		}
	}
	src := &partSource{parts: [][]*TemporalBin{bins[:split], bins[split:]}}

	region := image.Rect(4, 3, 30, 12)
	rec := &recorder{region: region}
	if err := Reproject(ctx, src, rec); err != nil {
		t.Fatal(err)
	}
	if !rec.began || !rec.ended || !src.closed {
		t.Errorf("lifecycle: began=%v ended=%v closed=%v", rec.began, rec.ended, src.closed)
	}
	if len(src.processed) != 2 {
		t.Errorf("processed parts: %v", src.processed)
	}
	if have, want := len(rec.pixels), region.Dx()*region.Dy(); have != want {
		t.Fatalf("pixels: have %d, want %d", have, want)
	}
	present := make(map[uint64]bool)
	for _, idx := range indices {
		present[idx] = true
	}
	i := 0
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			p := rec.pixels[i]
			i++
			if p.x != x || p.y != y {
				t.Fatalf("pixel %d: have (%d, %d), want (%d, %d)", i, p.x, p.y, x, y)
			}
			lon := -180 + (float64(x)+0.5)*360/float64(2*g.NumRows())
			idx := g.BinIndex(g.CenterLat(y), lon)
			if present[idx] == p.miss {
				t.Errorf("(%d, %d): bin %d present=%v but missing=%v", x, y, idx, present[idx], p.miss)
			}
			if !p.miss && (p.bin != idx || p.out != float32(idx)) {
				t.Errorf("(%d, %d): rendered bin %d with %g, want %d", x, y, p.bin, p.out, idx)
			}
		}
	}
}

func TestReprojectorEmptySource(t *testing.T) {
	ctx := newTestContext(t, 18)
	rec := &recorder{region: image.Rect(0, 0, 36, 18)}
	if err := Reproject(ctx, &partSource{}, rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.pixels) != 36*18 {
		t.Errorf("pixels: have %d, want %d", len(rec.pixels), 36*18)
	}
	for _, p := range rec.pixels {
		if !p.miss {
			t.Fatalf("(%d, %d) should be missing", p.x, p.y)
		}
	}
}

func TestReprojectorUnsorted(t *testing.T) {
	ctx := newTestContext(t, 18)
	g := ctx.Grid
	bins := temporalBins(ctx, g.FirstBinIndex(8), g.FirstBinIndex(3))
	rec := &recorder{region: image.Rect(0, 0, 36, 18)}
	err := Reproject(ctx, &partSource{parts: [][]*TemporalBin{bins}}, rec)
	if !errors.Is(err, ErrBinOrder) {
		t.Errorf("have %v, want %v", err, ErrBinOrder)
	}
}

func TestReprojectorRegionOutside(t *testing.T) {
	ctx := newTestContext(t, 18)
	if _, err := NewReprojector(ctx, &recorder{region: image.Rect(0, 0, 37, 18)}); err == nil {
		t.Error("expected an error for a region outside of the global raster")
	}
}
