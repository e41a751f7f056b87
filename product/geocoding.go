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
	"fmt"
	"math"

	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

// AffineGeoCoding geolocates a regular latitude/longitude raster. Pixel
// coordinate (0, 0) is at (Lat0, Lon0) and every pixel is DLat by DLon
// degrees. DLat is negative for north-up rasters.
type AffineGeoCoding struct {
	Lon0, Lat0 float64
	DLon, DLat float64
}

// LatLon implements binning.GeoCoding.
func (g AffineGeoCoding) LatLon(x, y float64) (lat, lon float64, err error) {
	return g.Lat0 + y*g.DLat, normalizeLon(g.Lon0 + x*g.DLon), nil
}

// WGS84 is the spatial reference of geographic coordinates.
const WGS84 = "+proj=longlat +datum=WGS84 +no_defs"

// ProjGeoCoding geolocates a raster in a projected coordinate system.
// Pixel coordinate (0, 0) is at projected (X0, Y0) and every pixel is DX
// by DY projected units.
type ProjGeoCoding struct {
	X0, Y0, DX, DY float64

	transform proj.Transformer
}

// NewProjGeoCoding creates a ProjGeoCoding for rasters in the projection
// described by srcProj, a proj4 string or WKT.
func NewProjGeoCoding(srcProj string, x0, y0, dx, dy float64) (*ProjGeoCoding, error) {
	src, err := proj.Parse(srcProj)
	if err != nil {
		return nil, fmt.Errorf("product: parsing projection: %v", err)
	}
	dst, err := proj.Parse(WGS84)
	if err != nil {
		return nil, fmt.Errorf("product: parsing projection: %v", err)
	}
	t, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("product: creating transform: %v", err)
	}
	return &ProjGeoCoding{X0: x0, Y0: y0, DX: dx, DY: dy, transform: t}, nil
}

// LatLon implements binning.GeoCoding.
func (g *ProjGeoCoding) LatLon(x, y float64) (lat, lon float64, err error) {
	lon, lat, err = g.transform(g.X0+x*g.DX, g.Y0+y*g.DY)
	if err != nil {
		return math.NaN(), math.NaN(), err
	}
	return lat, normalizeLon(lon), nil
}

// PixelGeoCoding geolocates a raster from the latitude and longitude of
// every pixel center, as found in swath products. Positions between
// pixel centers are interpolated bilinearly.
type PixelGeoCoding struct {
	Lat, Lon *sparse.DenseArray
}

// LatLon implements binning.GeoCoding.
func (g *PixelGeoCoding) LatLon(x, y float64) (lat, lon float64, err error) {
	h, w := g.Lat.Shape[0], g.Lat.Shape[1]
	fx, fy := x-0.5, y-0.5
	if fx < -0.5 || fy < -0.5 || fx > float64(w)-0.5 || fy > float64(h)-0.5 {
		return math.NaN(), math.NaN(), fmt.Errorf("product: pixel (%g, %g) is outside of the geocoding", x, y)
	}
	x0 := clamp(int(math.Floor(fx)), 0, w-1)
	y0 := clamp(int(math.Floor(fy)), 0, h-1)
	x1 := clamp(x0+1, 0, w-1)
	y1 := clamp(y0+1, 0, h-1)
	tx := clampF(fx-float64(x0), 0, 1)
	ty := clampF(fy-float64(y0), 0, 1)
	lat = bilinear(g.Lat, x0, y0, x1, y1, tx, ty)

	// Longitudes are unwrapped around the first corner so that the
	// interpolation does not cross the antimeridian the long way.
	ref := g.Lon.Get(y0, x0)
	unwrap := func(v float64) float64 {
		for v-ref > 180 {
			v -= 360
		}
		for ref-v > 180 {
			v += 360
		}
		return v
	}
	l00, l10 := ref, unwrap(g.Lon.Get(y0, x1))
	l01, l11 := unwrap(g.Lon.Get(y1, x0)), unwrap(g.Lon.Get(y1, x1))
	lon = (1-ty)*((1-tx)*l00+tx*l10) + ty*((1-tx)*l01+tx*l11)
	return lat, normalizeLon(lon), nil
}

func bilinear(a *sparse.DenseArray, x0, y0, x1, y1 int, tx, ty float64) float64 {
	return (1-ty)*((1-tx)*a.Get(y0, x0)+tx*a.Get(y0, x1)) +
		ty*((1-tx)*a.Get(y1, x0)+tx*a.Get(y1, x1))
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
