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

	"github.com/ctessum/geom"
)

// Raster is one band of a product.
type Raster interface {
	// Bounds returns the pixel extent of the band.
	Bounds() image.Rectangle
	// Value returns the sample at pixel (x, y). No-data pixels are NaN.
	Value(x, y int) (float32, error)
}

// Mask selects the valid pixels of a product.
type Mask interface {
	Valid(x, y int) (bool, error)
}

// GeoCoding maps pixel coordinates to geographic coordinates. Pixel
// (x, y) covers [x, x+1) by [y, y+1), so its center is at (x+0.5, y+0.5).
type GeoCoding interface {
	LatLon(x, y float64) (lat, lon float64, err error)
}

// ScanLineTimer gives the acquisition time of a row of pixels.
type ScanLineTimer interface {
	// ScanLineMJD returns the time of row y as a modified Julian day.
	// ok is false if the time is unknown.
	ScanLineMJD(y int) (mjd float64, ok bool)
}

// Source holds the collaborators an ObservationIterator reads from.
type Source struct {
	// Variables holds one raster per variable of the VariableContext, in
	// the same order.
	Variables []Raster

	// Mask is optional.
	Mask Mask

	GeoCoding GeoCoding

	// Times is optional. Without it, observations have an MJD of NaN and
	// the data period is not checked.
	Times ScanLineTimer
}

// SamplePointer walks the pixels of one or more rectangles in raster-scan
// order, expanding each pixel into superSampling x superSampling
// sub-pixel positions.
type SamplePointer struct {
	rects   []image.Rectangle
	offsets []float64

	rect, x, y, sub int
}

// NewSamplePointer creates a SamplePointer. superSampling values below 1
// are treated as 1.
func NewSamplePointer(superSampling int, rects ...image.Rectangle) *SamplePointer {
	if superSampling < 1 {
		superSampling = 1
	}
	p := &SamplePointer{offsets: make([]float64, superSampling)}
	for i := range p.offsets {
		p.offsets[i] = (float64(i) + 0.5) / float64(superSampling)
	}
	for _, r := range rects {
		if !r.Empty() {
			p.rects = append(p.rects, r)
		}
	}
	if len(p.rects) > 0 {
		p.x, p.y = p.rects[0].Min.X, p.rects[0].Min.Y
	}
	return p
}

// NumSubPixels returns the number of positions per pixel.
func (p *SamplePointer) NumSubPixels() int { return len(p.offsets) * len(p.offsets) }

// Next returns the next pixel and sub-pixel position. ok is false once
// every rectangle has been walked. sub is the sub-pixel number; the first
// position of every pixel has sub == 0.
func (p *SamplePointer) Next() (x, y, sub int, pos geom.Point, ok bool) {
	if p.rect >= len(p.rects) {
		return 0, 0, 0, geom.Point{}, false
	}
	n := len(p.offsets)
	x, y, sub = p.x, p.y, p.sub
	pos = geom.Point{
		X: float64(x) + p.offsets[sub%n],
		Y: float64(y) + p.offsets[sub/n],
	}
	p.advance()
	return x, y, sub, pos, true
}

func (p *SamplePointer) advance() {
	p.sub++
	if p.sub < p.NumSubPixels() {
		return
	}
	p.sub = 0
	r := p.rects[p.rect]
	p.x++
	if p.x < r.Max.X {
		return
	}
	p.x = r.Min.X
	p.y++
	if p.y < r.Max.Y {
		return
	}
	p.rect++
	if p.rect < len(p.rects) {
		p.x, p.y = p.rects[p.rect].Min.X, p.rects[p.rect].Min.Y
	}
}

// ObservationIterator lazily produces the Observations of a product in
// raster-scan order. Pixels and sub-pixels that are masked out, fail to
// geolocate, fall outside of the region or the data period, or lie too
// far from their pixel center are skipped.
type ObservationIterator struct {
	ctx     *BinningContext
	src     *Source
	pointer *SamplePointer
	bounds  image.Rectangle

	// state of the current pixel
	pixelValid     bool
	values         FloatVector
	mjd            float64
	timeOK         bool
	centerLat      float64
	centerLon      float64
	centerComputed bool

	// Skipped is the number of sub-pixel positions that were dropped.
	Skipped int
}

// NewObservationIterator creates an iterator over the given pixel
// rectangles of src.
func NewObservationIterator(ctx *BinningContext, src *Source, rects ...image.Rectangle) (*ObservationIterator, error) {
	n := ctx.Variables.VariableCount()
	if len(src.Variables) != n {
		return nil, fmt.Errorf("binning: source has %d variable rasters, want %d", len(src.Variables), n)
	}
	if src.GeoCoding == nil {
		return nil, fmt.Errorf("binning: source has no geocoding")
	}
	var bounds image.Rectangle
	for i, r := range src.Variables {
		if i == 0 {
			bounds = r.Bounds()
		} else {
			bounds = bounds.Intersect(r.Bounds())
		}
	}
	return &ObservationIterator{
		ctx:     ctx,
		src:     src,
		pointer: NewSamplePointer(ctx.SuperSampling, rects...),
		bounds:  bounds,
	}, nil
}

// Next returns the next Observation, or io.EOF when there are no more.
// Other errors come from reading the source rasters.
func (it *ObservationIterator) Next() (*Observation, error) {
	for {
		x, y, sub, pos, ok := it.pointer.Next()
		if !ok {
			return nil, io.EOF
		}
		if sub == 0 {
			if err := it.loadPixel(x, y); err != nil {
				return nil, err
			}
		}
		if !it.pixelValid {
			it.Skipped++
			continue
		}
		obs, ok := it.observation(x, y, pos)
		if !ok {
			it.Skipped++
			continue
		}
		return obs, nil
	}
}

// loadPixel reads the mask, the samples and the time of pixel (x, y).
func (it *ObservationIterator) loadPixel(x, y int) error {
	it.pixelValid = false
	it.centerComputed = false
	if !(image.Point{X: x, Y: y}).In(it.bounds) {
		return nil
	}
	if it.src.Mask != nil {
		valid, err := it.src.Mask.Valid(x, y)
		if err != nil {
			return fmt.Errorf("binning: reading mask at (%d, %d): %v", x, y, err)
		}
		if !valid {
			return nil
		}
	}
	it.values = NewFloatVector(len(it.src.Variables))
	for i, r := range it.src.Variables {
		v, err := r.Value(x, y)
		if err != nil {
			return fmt.Errorf("binning: reading variable %s at (%d, %d): %v",
				it.ctx.Variables.VariableName(i), x, y, err)
		}
		it.values[i] = v
	}
	it.mjd, it.timeOK = math.NaN(), false
	if it.src.Times != nil {
		it.mjd, it.timeOK = it.src.Times.ScanLineMJD(y)
	}
	it.pixelValid = true
	return nil
}

func (it *ObservationIterator) observation(x, y int, pos geom.Point) (*Observation, bool) {
	lat, lon, err := it.src.GeoCoding.LatLon(pos.X, pos.Y)
	if err != nil || math.IsNaN(lat) || math.IsNaN(lon) {
		return nil, false
	}
	if it.ctx.Region != nil && !it.ctx.Region.Contains(lat, lon) {
		return nil, false
	}
	if it.timeOK && it.ctx.DataPeriod != nil &&
		it.ctx.DataPeriod.Membership(lon, it.mjd) != CurrentPeriod {
		return nil, false
	}
	if it.ctx.MaxDistanceKm > 0 && it.pointer.NumSubPixels() > 1 {
		if !it.centerComputed {
			it.centerLat, it.centerLon, err = it.src.GeoCoding.LatLon(float64(x)+0.5, float64(y)+0.5)
			if err != nil {
				return nil, false
			}
			it.centerComputed = true
		}
		if GreatCircleDistance(lat, lon, it.centerLat, it.centerLon) > it.ctx.MaxDistanceKm {
			return nil, false
		}
	}
	return &Observation{
		FloatVector: it.values,
		MJD:         it.mjd,
		Latitude:    lat,
		Longitude:   lon,
	}, true
}

// GreatCircleDistance returns the haversine distance [km] between two
// points given in degrees.
func GreatCircleDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(a)))
}
