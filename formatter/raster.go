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

// Package formatter renders temporal bins onto latitude/longitude rasters
// and writes them as NetCDF maps and PNG images.
package formatter

import (
	"fmt"
	"image"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/binning"
)

// RasterRenderer is a binning.TemporalBinRenderer that draws the output
// features of temporal bins into in-memory rasters. Pixels without data
// are NaN.
type RasterRenderer struct {
	// Region is the part of the global raster that is rendered.
	Region image.Rectangle

	// Names holds the output feature names, one per band.
	Names []string

	// Bands hold the rendered output features, indexed by [row][column]
	// relative to Region.Min.
	Bands []*sparse.DenseArray

	// NumObs and NumPasses hold the observation and pass counts of the
	// rendered bins.
	NumObs, NumPasses *sparse.DenseArray

	numRows int
}

// NewRasterRenderer creates a renderer for the output features of ctx over
// the pixels of the global raster within region.
func NewRasterRenderer(ctx *binning.BinningContext, region image.Rectangle) *RasterRenderer {
	return &RasterRenderer{
		Region:  region,
		Names:   ctx.Manager.OutputFeatureNames(),
		numRows: ctx.Grid.NumRows(),
	}
}

// NewRasterRendererForBounds creates a renderer covering the geographic
// bounds b, where X is longitude and Y is latitude.
func NewRasterRendererForBounds(ctx *binning.BinningContext, b *geom.Bounds) *RasterRenderer {
	return NewRasterRenderer(ctx, binning.GlobalPixelRectangle(ctx.Grid.NumRows(), b))
}

// RasterRegion implements binning.TemporalBinRenderer.
func (r *RasterRenderer) RasterRegion() image.Rectangle { return r.Region }

// Begin implements binning.TemporalBinRenderer.
func (r *RasterRenderer) Begin() error {
	w, h := r.Region.Dx(), r.Region.Dy()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("formatter: empty raster region %v", r.Region)
	}
	r.Bands = make([]*sparse.DenseArray, len(r.Names))
	for i := range r.Bands {
		r.Bands[i] = sparse.ZerosDense(h, w)
	}
	r.NumObs = sparse.ZerosDense(h, w)
	r.NumPasses = sparse.ZerosDense(h, w)
	return nil
}

// RenderBin implements binning.TemporalBinRenderer.
func (r *RasterRenderer) RenderBin(x, y int, bin *binning.TemporalBin, out binning.Vector) error {
	if out.Size() != len(r.Bands) {
		return fmt.Errorf("formatter: bin %d has %d output features, want %d", bin.Index, out.Size(), len(r.Bands))
	}
	i, j := y-r.Region.Min.Y, x-r.Region.Min.X
	for k, b := range r.Bands {
		b.Set(float64(out.Get(k)), i, j)
	}
	r.NumObs.Set(float64(bin.NumObs), i, j)
	r.NumPasses.Set(float64(bin.NumPasses), i, j)
	return nil
}

// RenderMissingBin implements binning.TemporalBinRenderer.
func (r *RasterRenderer) RenderMissingBin(x, y int) error {
	i, j := y-r.Region.Min.Y, x-r.Region.Min.X
	for _, b := range r.Bands {
		b.Set(math.NaN(), i, j)
	}
	return nil
}

// End implements binning.TemporalBinRenderer.
func (r *RasterRenderer) End() error { return nil }

// Band returns the rendered band of the named output feature.
func (r *RasterRenderer) Band(name string) (*sparse.DenseArray, error) {
	for i, n := range r.Names {
		if n == name {
			return r.Bands[i], nil
		}
	}
	return nil, fmt.Errorf("formatter: no output feature named %q", name)
}

// Lat returns the latitude of the center of rendered row i.
func (r *RasterRenderer) Lat(i int) float64 {
	return 90 - (float64(r.Region.Min.Y+i)+0.5)*180/float64(r.numRows)
}

// Lon returns the longitude of the center of rendered column j.
func (r *RasterRenderer) Lon(j int) float64 {
	return -180 + (float64(r.Region.Min.X+j)+0.5)*180/float64(r.numRows)
}
