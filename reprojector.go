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
	"fmt"
	"image"
	"io"
)

// TemporalBinRenderer draws temporal bins onto a raster. The raster is
// global, with 2*NumRows columns and NumRows rows, so raster row y is grid
// row y.
type TemporalBinRenderer interface {
	// RasterRegion returns the part of the global raster to render.
	RasterRegion() image.Rectangle
	Begin() error
	// RenderBin draws bin, whose output features are out, at (x, y).
	RenderBin(x, y int, bin *TemporalBin, out Vector) error
	// RenderMissingBin marks (x, y) as having no data.
	RenderMissingBin(x, y int) error
	End() error
}

// TemporalBinIterator is a sequence of temporal bins ending with io.EOF.
type TemporalBinIterator interface {
	Next() (*TemporalBin, error)
}

// TemporalBinSource supplies temporal bins in parts. Bins must be sorted
// by index, within and across parts.
type TemporalBinSource interface {
	// Open prepares the source and returns the number of parts.
	Open() (int, error)
	// Part returns an iterator over part i.
	Part(i int) (TemporalBinIterator, error)
	// PartProcessed is called after every bin of part i has been used.
	PartProcessed(i int, part TemporalBinIterator) error
	Close() error
}

// ErrBinOrder is returned when temporal bins are not sorted by index.
var ErrBinOrder = errors.New("binning: temporal bins are not sorted by index")

// Reprojector renders an index-sorted stream of temporal bins onto a
// raster. Every pixel of the renderer's region is drawn exactly once, in
// row-major order.
type Reprojector struct {
	ctx      *BinningContext
	renderer TemporalBinRenderer
	region   image.Rectangle
	width    int

	pendingRow int
	rowBins    []*TemporalBin
	nextRow    int
	lastIndex  uint64
	started    bool
}

// NewReprojector creates a Reprojector that draws with renderer.
func NewReprojector(ctx *BinningContext, renderer TemporalBinRenderer) (*Reprojector, error) {
	numRows := ctx.Grid.NumRows()
	global := image.Rect(0, 0, 2*numRows, numRows)
	region := renderer.RasterRegion()
	if !region.In(global) {
		return nil, fmt.Errorf("binning: raster region %v is outside of the global raster %v", region, global)
	}
	return &Reprojector{
		ctx:        ctx,
		renderer:   renderer,
		region:     region,
		width:      global.Dx(),
		pendingRow: -1,
		nextRow:    region.Min.Y,
	}, nil
}

// Begin starts rendering.
func (r *Reprojector) Begin() error { return r.renderer.Begin() }

// ProcessPart renders the bins of part. Rows are drawn once a bin of a
// later row arrives, so a row may span parts.
func (r *Reprojector) ProcessPart(part TemporalBinIterator) error {
	for {
		bin, err := part.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if r.started && bin.Index <= r.lastIndex {
			return fmt.Errorf("%w: %d after %d", ErrBinOrder, bin.Index, r.lastIndex)
		}
		r.started = true
		r.lastIndex = bin.Index
		row := r.ctx.Grid.RowIndex(bin.Index)
		if row != r.pendingRow {
			if err := r.flush(); err != nil {
				return err
			}
			r.pendingRow = row
		}
		r.rowBins = append(r.rowBins, bin)
	}
}

// End draws the remaining rows and finishes rendering.
func (r *Reprojector) End() error {
	if err := r.flush(); err != nil {
		return err
	}
	if err := r.renderMissingRows(r.region.Max.Y); err != nil {
		return err
	}
	return r.renderer.End()
}

// flush draws the pending row and any empty rows above it.
func (r *Reprojector) flush() error {
	if r.pendingRow < 0 {
		return nil
	}
	y := r.pendingRow
	if err := r.renderMissingRows(y); err != nil {
		return err
	}
	if y >= r.region.Min.Y && y < r.region.Max.Y {
		if err := r.renderRow(y, r.rowBins); err != nil {
			return err
		}
	}
	if y+1 > r.nextRow {
		r.nextRow = y + 1
	}
	r.pendingRow = -1
	r.rowBins = r.rowBins[:0]
	return nil
}

// renderMissingRows draws every row from nextRow up to, but not
// including, end as missing.
func (r *Reprojector) renderMissingRows(end int) error {
	if end > r.region.Max.Y {
		end = r.region.Max.Y
	}
	for ; r.nextRow < end; r.nextRow++ {
		for x := r.region.Min.X; x < r.region.Max.X; x++ {
			if err := r.renderer.RenderMissingBin(x, r.nextRow); err != nil {
				return err
			}
		}
	}
	return nil
}

// renderRow draws row y. Bin indices do not decrease as longitude
// increases within a row, so one cursor walks bins from west to east.
func (r *Reprojector) renderRow(y int, bins []*TemporalBin) error {
	lat := r.ctx.Grid.CenterLat(y)
	cursor := 0
	var out FloatVector
	var outBin *TemporalBin
	for x := r.region.Min.X; x < r.region.Max.X; x++ {
		lon := -180 + (float64(x)+0.5)*360/float64(r.width)
		idx := r.ctx.Grid.BinIndex(lat, lon)
		for cursor < len(bins) && bins[cursor].Index < idx {
			cursor++
		}
		if cursor == len(bins) || bins[cursor].Index != idx {
			if err := r.renderer.RenderMissingBin(x, y); err != nil {
				return err
			}
			continue
		}
		bin := bins[cursor]
		if bin != outBin {
			out = r.ctx.Manager.NewOutputVector()
			r.ctx.Manager.ComputeOutput(bin, out)
			outBin = bin
		}
		if err := r.renderer.RenderBin(x, y, bin, out); err != nil {
			return err
		}
	}
	return nil
}

// Reproject renders every bin of src with renderer.
func Reproject(ctx *BinningContext, src TemporalBinSource, renderer TemporalBinRenderer) (err error) {
	r, err := NewReprojector(ctx, renderer)
	if err != nil {
		return err
	}
	n, err := src.Open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); err == nil {
			err = cerr
		}
	}()
	if err := r.Begin(); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		part, err := src.Part(i)
		if err != nil {
			return err
		}
		if err := r.ProcessPart(part); err != nil {
			return err
		}
		if err := src.PartProcessed(i, part); err != nil {
			return err
		}
	}
	return r.End()
}

// SliceIterator iterates over a slice of temporal bins.
type SliceIterator struct {
	bins []*TemporalBin
	i    int
}

// NewSliceIterator returns an iterator over bins.
func NewSliceIterator(bins []*TemporalBin) *SliceIterator {
	return &SliceIterator{bins: bins}
}

// Next implements TemporalBinIterator.
func (s *SliceIterator) Next() (*TemporalBin, error) {
	if s.i >= len(s.bins) {
		return nil, io.EOF
	}
	b := s.bins[s.i]
	s.i++
	return b, nil
}
