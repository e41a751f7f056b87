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
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/binning"
)

// ReadRegion creates a region of interest from s, which is either
// "lonMin,latMin,lonMax,latMax", a WKT POLYGON or MULTIPOLYGON, the path
// to a GeoJSON file holding a polygon or multipolygon in geographic
// coordinates, or the path to a shapefile of polygons. Shapefile geometry
// is projected to geographic coordinates.
func ReadRegion(s string) (*binning.PolygonRegion, error) {
	if isWKTPolygon(s) {
		g, err := decodeWKTPolygon(s)
		if err != nil {
			return nil, err
		}
		return binning.NewPolygonRegion(g), nil
	}
	switch strings.ToLower(filepath.Ext(s)) {
	case ".geojson", ".json":
		return readGeoJSONRegion(s)
	case ".shp":
		return readShapefileRegion(s)
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("product: invalid region %q; it should be lonMin,latMin,lonMax,latMax, WKT, or a .geojson or .shp file", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("product: invalid region %q: %v", s, err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return nil, fmt.Errorf("product: invalid region %q: minimum is not less than maximum", s)
	}
	return binning.BoxRegion(v[0], v[1], v[2], v[3]), nil
}

func readGeoJSONRegion(path string) (*binning.PolygonRegion, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("product: reading region: %v", err)
	}
	g, err := geojson.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("product: decoding region %s: %v", path, err)
	}
	p, ok := g.(geom.Polygonal)
	if !ok {
		return nil, fmt.Errorf("product: region %s is a %T, not a polygon", path, g)
	}
	return binning.NewPolygonRegion(p), nil
}

func readShapefileRegion(path string) (*binning.PolygonRegion, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("product: opening region shapefile: %v", err)
	}
	defer d.Close()
	src, err := d.SR()
	if err != nil {
		return nil, fmt.Errorf("product: region shapefile projection: %v", err)
	}
	dst, err := proj.Parse(WGS84)
	if err != nil {
		return nil, err
	}
	trans, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("product: region shapefile projection: %v", err)
	}
	var polys geom.MultiPolygon
	for {
		g, _, more := d.DecodeRowFields()
		if !more {
			break
		}
		gg, err := g.Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("product: projecting region: %v", err)
		}
		p, ok := gg.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("product: region shapefile %s needs to hold polygons", path)
		}
		polys = append(polys, p.Polygons()...)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("product: reading region shapefile: %v", err)
	}
	if len(polys) == 0 {
		return nil, fmt.Errorf("product: region shapefile %s is empty", path)
	}
	return binning.NewPolygonRegion(polys), nil
}

// UnionRegion returns the region covered by the geographic extents of
// products. step is the spacing of the edge pixels used to compute each
// extent.
func UnionRegion(products []*Product, step int) (*binning.PolygonRegion, error) {
	var polys geom.MultiPolygon
	for _, p := range products {
		b, err := p.Extent(step)
		if err != nil {
			return nil, err
		}
		polys = append(polys, binning.BoxPolygon(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y))
	}
	if len(polys) == 0 {
		return nil, fmt.Errorf("product: no products to compute a region from")
	}
	return binning.NewPolygonRegion(polys), nil
}
