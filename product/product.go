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

// Package product provides the raster products that the binning engine
// reads observations from.
package product

import (
	"fmt"
	"image"
	"io"
	"math"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/binning"
)

// Product is a set of co-registered raster bands with a geocoding.
type Product struct {
	Name string

	Width, Height int

	// Bands holds the rasters of the product by name.
	Bands map[string]binning.Raster

	GeoCoding binning.GeoCoding

	// Times is optional.
	Times binning.ScanLineTimer

	// StartTime and StopTime are the acquisition period of the product.
	// They are zero if unknown.
	StartTime, StopTime time.Time

	closer io.Closer
}

// New creates an empty product of the given size.
func New(name string, width, height int, gc binning.GeoCoding) *Product {
	return &Product{
		Name:      name,
		Width:     width,
		Height:    height,
		Bands:     make(map[string]binning.Raster),
		GeoCoding: gc,
	}
}

// Bounds returns the pixel extent of the product.
func (p *Product) Bounds() image.Rectangle { return image.Rect(0, 0, p.Width, p.Height) }

// AddBand adds an in-memory band to p and returns it.
func (p *Product) AddBand(name string) *Band {
	b := NewBand(p.Width, p.Height)
	p.Bands[name] = b
	return b
}

// Source returns the rasters of the variables in vars. Variables with an
// expression are computed from the bands of p; the others are read from
// the band of the same name.
func (p *Product) Source(vars binning.VariableContext) (*binning.Source, error) {
	src := &binning.Source{
		Variables: make([]binning.Raster, vars.VariableCount()),
		GeoCoding: p.GeoCoding,
		Times:     p.Times,
	}
	for i := range src.Variables {
		name := vars.VariableName(i)
		if expr := vars.VariableExpr(i); expr != "" {
			r, err := NewExprRaster(expr, p.Bands)
			if err != nil {
				return nil, fmt.Errorf("product: %s: variable %s: %v", p.Name, name, err)
			}
			src.Variables[i] = r
			continue
		}
		b, ok := p.Bands[name]
		if !ok {
			return nil, fmt.Errorf("product: %s has no band %q", p.Name, name)
		}
		src.Variables[i] = b
	}
	if expr := vars.ValidMaskExpr(); expr != "" {
		m, err := NewExprMask(expr, p.Bands)
		if err != nil {
			return nil, fmt.Errorf("product: %s: valid mask: %v", p.Name, err)
		}
		src.Mask = m
	}
	return src, nil
}

// InPeriod reports whether p was acquired, at least in part, between
// start and end. Products without a known acquisition time are always
// included, as are bounds that are zero.
func (p *Product) InPeriod(start, end time.Time) bool {
	if p.StartTime.IsZero() {
		return true
	}
	stop := p.StopTime
	if stop.IsZero() {
		stop = p.StartTime
	}
	if !end.IsZero() && p.StartTime.After(end) {
		return false
	}
	if !start.IsZero() && stop.Before(start) {
		return false
	}
	return true
}

// Extent returns the geographic bounding box of p, found by geolocating
// every step-th pixel along its edges. X holds longitudes and Y latitudes.
func (p *Product) Extent(step int) (*geom.Bounds, error) {
	if step < 1 {
		step = 1
	}
	b := geom.NewBounds()
	found := false
	add := func(x, y float64) {
		lat, lon, err := p.GeoCoding.LatLon(x, y)
		if err != nil || math.IsNaN(lat) || math.IsNaN(lon) {
			return
		}
		b.Extend(geom.NewBoundsPoint(geom.Point{X: lon, Y: lat}))
		found = true
	}
	w, h := float64(p.Width), float64(p.Height)
	for x := 0; x <= p.Width; x += step {
		add(float64(x), 0)
		add(float64(x), h)
	}
	for y := 0; y <= p.Height; y += step {
		add(0, float64(y))
		add(w, float64(y))
	}
	add(w, h)
	if !found {
		return nil, fmt.Errorf("product: %s: unable to geolocate any edge pixel", p.Name)
	}
	return b, nil
}

// Close releases the resources held by p.
func (p *Product) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Band is an in-memory raster band.
type Band struct {
	*sparse.DenseArray
}

// NewBand returns a band of the given size filled with zeros.
func NewBand(width, height int) *Band {
	return &Band{DenseArray: sparse.ZerosDense(height, width)}
}

// Bounds implements binning.Raster.
func (b *Band) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Shape[1], b.Shape[0])
}

// Value implements binning.Raster.
func (b *Band) Value(x, y int) (float32, error) {
	return float32(b.Get(y, x)), nil
}

// SetValue sets the value of pixel (x, y).
func (b *Band) SetValue(x, y int, v float64) { b.Set(v, y, x) }

// ScanTimes gives the time of every row as a modified Julian day. NaN
// entries are unknown.
type ScanTimes []float64

// ScanLineMJD implements binning.ScanLineTimer.
func (t ScanTimes) ScanLineMJD(y int) (float64, bool) {
	if y < 0 || y >= len(t) || math.IsNaN(t[y]) {
		return math.NaN(), false
	}
	return t[y], true
}

// LinearTimes interpolates row times between the start of the first row
// and the end of the last one.
type LinearTimes struct {
	Start, Stop float64
	Height      int
}

// ScanLineMJD implements binning.ScanLineTimer.
func (t LinearTimes) ScanLineMJD(y int) (float64, bool) {
	if t.Height <= 0 {
		return math.NaN(), false
	}
	return t.Start + (t.Stop-t.Start)*(float64(y)+0.5)/float64(t.Height), true
}
