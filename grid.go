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
	"math"
	"sort"

	"github.com/ctessum/geom"
)

// EarthRadius is the equatorial radius [km] used to size grids.
const EarthRadius = 6378.145

// DefaultNumRows is the number of rows of the standard SeaWiFS 9.28 km grid.
const DefaultNumRows = 2160

// PlanetaryGrid partitions the sphere into bins. Bins are numbered
// contiguously and row-major, starting at the northernmost row.
type PlanetaryGrid interface {
	// BinIndex returns the index of the bin that contains the given point.
	BinIndex(lat, lon float64) uint64
	// RowIndex returns the row containing bin.
	RowIndex(bin uint64) int
	NumBins() uint64
	NumRows() int
	NumCols(row int) int
	// FirstBinIndex returns the index of the first (westernmost) bin in row.
	FirstBinIndex(row int) uint64
	// CenterLat returns the latitude of the center of row.
	CenterLat(row int) float64
	// CenterLatLon returns the center coordinates of bin.
	CenterLatLon(bin uint64) (lat, lon float64)
}

// MosaickingGrid is a PlanetaryGrid whose bins line up with the pixels of
// a regular latitude/longitude raster, so that raster regions can be
// mapped into the grid and cut into work slices.
type MosaickingGrid interface {
	PlanetaryGrid

	// PixelRectangle returns the raster rectangle covering b, in a global
	// raster of 2*NumRows() columns and NumRows() rows.
	PixelRectangle(b *geom.Bounds) image.Rectangle

	// SliceRectangles divides r into horizontal slices of at most
	// sliceHeight rows.
	SliceRectangles(r image.Rectangle, sliceHeight int) []image.Rectangle
}

// SEAGrid is the equal-area "Integerized Sinusoidal" grid used by
// SeaWiFS and MODIS level 3 products. Every row covers 180/numRows degrees
// of latitude and holds a number of columns proportional to the cosine of
// its center latitude, so all bins have about the same area.
type SEAGrid struct {
	numRows int
	baseBin []uint64
	numBin  []int
	latBin  []float64
	numBins uint64
}

// NewSEAGrid creates a grid with numRows rows. numRows must be at least 2.
func NewSEAGrid(numRows int) (*SEAGrid, error) {
	if numRows < 2 {
		return nil, fmt.Errorf("binning: invalid number of grid rows %d", numRows)
	}
	g := &SEAGrid{
		numRows: numRows,
		baseBin: make([]uint64, numRows),
		numBin:  make([]int, numRows),
		latBin:  make([]float64, numRows),
	}
	var base uint64
	for row := 0; row < numRows; row++ {
		lat := 90 - (float64(row)+0.5)*180/float64(numRows)
		n := int(2*float64(numRows)*math.Cos(lat*math.Pi/180) + 0.5)
		if n < 1 {
			n = 1
		}
		g.latBin[row] = lat
		g.numBin[row] = n
		g.baseBin[row] = base
		base += uint64(n)
	}
	g.numBins = base
	return g, nil
}

// NumRowsForResolution returns the even number of rows that gives bins
// about resKm kilometers wide.
func NumRowsForResolution(resKm float64) int {
	n := int(math.Pi*EarthRadius/resKm + 0.5)
	if n%2 != 0 {
		n++
	}
	if n < 2 {
		n = 2
	}
	return n
}

// BinIndex implements PlanetaryGrid. Coordinates outside of the valid
// range are clamped to the edge bins.
func (g *SEAGrid) BinIndex(lat, lon float64) uint64 {
	row := g.latRow(lat)
	return g.baseBin[row] + uint64(g.lonCol(row, lon))
}

func (g *SEAGrid) latRow(lat float64) int {
	row := int((90 - lat) * float64(g.numRows) / 180)
	if row < 0 {
		return 0
	}
	if row >= g.numRows {
		return g.numRows - 1
	}
	return row
}

func (g *SEAGrid) lonCol(row int, lon float64) int {
	n := g.numBin[row]
	col := int((lon + 180) / 360 * float64(n))
	if col < 0 {
		return 0
	}
	if col >= n {
		return n - 1
	}
	return col
}

// RowIndex implements PlanetaryGrid. It is a binary search over the
// first bin index of each row.
func (g *SEAGrid) RowIndex(bin uint64) int {
	return sort.Search(g.numRows, func(i int) bool { return g.baseBin[i] > bin }) - 1
}

// NumBins implements PlanetaryGrid.
func (g *SEAGrid) NumBins() uint64 { return g.numBins }

// NumRows implements PlanetaryGrid.
func (g *SEAGrid) NumRows() int { return g.numRows }

// NumCols implements PlanetaryGrid.
func (g *SEAGrid) NumCols(row int) int { return g.numBin[row] }

// FirstBinIndex implements PlanetaryGrid.
func (g *SEAGrid) FirstBinIndex(row int) uint64 { return g.baseBin[row] }

// CenterLat implements PlanetaryGrid.
func (g *SEAGrid) CenterLat(row int) float64 { return g.latBin[row] }

// CenterLatLon implements PlanetaryGrid.
func (g *SEAGrid) CenterLatLon(bin uint64) (lat, lon float64) {
	row := g.RowIndex(bin)
	col := bin - g.baseBin[row]
	return g.latBin[row], -180 + (float64(col)+0.5)*360/float64(g.numBin[row])
}

// PlateCarreeGrid is a MosaickingGrid made of equal-angle cells: numRows
// rows and 2*numRows columns in every row.
type PlateCarreeGrid struct {
	numRows, numCols int
}

// NewPlateCarreeGrid creates a grid with numRows rows.
func NewPlateCarreeGrid(numRows int) (*PlateCarreeGrid, error) {
	if numRows < 2 {
		return nil, fmt.Errorf("binning: invalid number of grid rows %d", numRows)
	}
	return &PlateCarreeGrid{numRows: numRows, numCols: 2 * numRows}, nil
}

// BinIndex implements PlanetaryGrid.
func (g *PlateCarreeGrid) BinIndex(lat, lon float64) uint64 {
	row := clampInt(int((90-lat)*float64(g.numRows)/180), 0, g.numRows-1)
	col := clampInt(int((lon+180)*float64(g.numCols)/360), 0, g.numCols-1)
	return uint64(row*g.numCols + col)
}

// RowIndex implements PlanetaryGrid.
func (g *PlateCarreeGrid) RowIndex(bin uint64) int { return int(bin / uint64(g.numCols)) }

// NumBins implements PlanetaryGrid.
func (g *PlateCarreeGrid) NumBins() uint64 { return uint64(g.numRows * g.numCols) }

// NumRows implements PlanetaryGrid.
func (g *PlateCarreeGrid) NumRows() int { return g.numRows }

// NumCols implements PlanetaryGrid.
func (g *PlateCarreeGrid) NumCols(row int) int { return g.numCols }

// FirstBinIndex implements PlanetaryGrid.
func (g *PlateCarreeGrid) FirstBinIndex(row int) uint64 { return uint64(row * g.numCols) }

// CenterLat implements PlanetaryGrid.
func (g *PlateCarreeGrid) CenterLat(row int) float64 {
	return 90 - (float64(row)+0.5)*180/float64(g.numRows)
}

// CenterLatLon implements PlanetaryGrid.
func (g *PlateCarreeGrid) CenterLatLon(bin uint64) (lat, lon float64) {
	row := g.RowIndex(bin)
	col := int(bin % uint64(g.numCols))
	return g.CenterLat(row), -180 + (float64(col)+0.5)*360/float64(g.numCols)
}

// PixelRectangle implements MosaickingGrid.
func (g *PlateCarreeGrid) PixelRectangle(b *geom.Bounds) image.Rectangle {
	return GlobalPixelRectangle(g.numRows, b)
}

// SliceRectangles implements MosaickingGrid.
func (g *PlateCarreeGrid) SliceRectangles(r image.Rectangle, sliceHeight int) []image.Rectangle {
	return SliceRectangles(r, sliceHeight)
}

// GlobalPixelRectangle returns the pixels of a global raster with
// 2*numRows columns and numRows rows that intersect b, where b holds
// longitudes in X and latitudes in Y. A nil b selects the whole raster.
func GlobalPixelRectangle(numRows int, b *geom.Bounds) image.Rectangle {
	w, h := 2*numRows, numRows
	if b == nil {
		return image.Rect(0, 0, w, h)
	}
	x0 := int(math.Floor((b.Min.X + 180) / 360 * float64(w)))
	x1 := int(math.Ceil((b.Max.X + 180) / 360 * float64(w)))
	y0 := int(math.Floor((90 - b.Max.Y) / 180 * float64(h)))
	y1 := int(math.Ceil((90 - b.Min.Y) / 180 * float64(h)))
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, w, h))
}

// SliceRectangles divides r into horizontal slices of at most sliceHeight
// rows, top to bottom.
func SliceRectangles(r image.Rectangle, sliceHeight int) []image.Rectangle {
	if sliceHeight <= 0 {
		sliceHeight = r.Dy()
	}
	var o []image.Rectangle
	for y := r.Min.Y; y < r.Max.Y; y += sliceHeight {
		y1 := y + sliceHeight
		if y1 > r.Max.Y {
			y1 = r.Max.Y
		}
		o = append(o, image.Rect(r.Min.X, y, r.Max.X, y1))
	}
	return o
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
