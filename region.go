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
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// Region is a region of interest. Observations outside of it are not binned.
type Region interface {
	Contains(lat, lon float64) bool
}

// PolygonRegion is a Region prepared from polygons in geographic
// coordinates (X = longitude, Y = latitude). Points on a polygon's edge
// are inside.
type PolygonRegion struct {
	index  *rtree.Rtree
	bounds *geom.Bounds
}

type regionPart struct {
	geom.Polygon
}

// NewPolygonRegion prepares a Region from p. Each polygon of p is indexed
// separately, so containment tests only consider nearby polygons.
func NewPolygonRegion(p geom.Polygonal) *PolygonRegion {
	r := &PolygonRegion{
		index:  rtree.NewTree(25, 50),
		bounds: geom.NewBounds(),
	}
	for _, poly := range p.Polygons() {
		r.index.Insert(regionPart{Polygon: poly})
		r.bounds.Extend(poly.Bounds())
	}
	return r
}

// BoxRegion returns the Region covering the given longitude and latitude
// limits.
func BoxRegion(lonMin, latMin, lonMax, latMax float64) *PolygonRegion {
	return NewPolygonRegion(BoxPolygon(lonMin, latMin, lonMax, latMax))
}

// BoxPolygon returns a rectangular polygon with the given limits.
func BoxPolygon(lonMin, latMin, lonMax, latMax float64) geom.Polygon {
	return geom.Polygon{{
		{X: lonMin, Y: latMin},
		{X: lonMax, Y: latMin},
		{X: lonMax, Y: latMax},
		{X: lonMin, Y: latMax},
	}}
}

// Contains implements Region.
func (r *PolygonRegion) Contains(lat, lon float64) bool {
	p := geom.Point{X: lon, Y: lat}
	for _, g := range r.index.SearchIntersect(p.Bounds()) {
		if p.Within(g.(regionPart).Polygon) != geom.Outside {
			return true
		}
	}
	return false
}

// Bounds returns the bounding box of the region.
func (r *PolygonRegion) Bounds() *geom.Bounds { return r.bounds }
