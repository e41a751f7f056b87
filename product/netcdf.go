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
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/golang/groupcache/lru"
	"github.com/spatialmodel/binning"
)

// DefaultCacheRows is the default number of band rows kept in memory for
// each open NetCDF product.
const DefaultCacheRows = 512

// ncFile is an open NetCDF file whose rows are read on demand.
type ncFile struct {
	mu    sync.Mutex
	f     *os.File
	cf    *cdf.File
	cache *lru.Cache
	width int
}

type rowKey struct {
	band string
	y    int
}

func (n *ncFile) row(band string, y int) ([]float32, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if r, ok := n.cache.Get(rowKey{band, y}); ok {
		return r.([]float32), nil
	}
	r := n.cf.Reader(band, []int{y, 0}, []int{y, n.width - 1})
	buf := r.Zero(n.width)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("product: reading row %d of %s: %v", y, band, err)
	}
	row := toFloat32(buf, n.cf.Header.FillValue(band))
	n.cache.Add(rowKey{band, y}, row)
	return row, nil
}

func (n *ncFile) Close() error { return n.f.Close() }

// ncBand is a band of a NetCDF product.
type ncBand struct {
	file          *ncFile
	name          string
	width, height int
}

func (b *ncBand) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

func (b *ncBand) Value(x, y int) (float32, error) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return float32(math.NaN()), nil
	}
	r, err := b.file.row(b.name, y)
	if err != nil {
		return 0, err
	}
	return r[x], nil
}

// Open opens a NetCDF product. Bands are the variables with dimensions
// (y, x). The product is geolocated from, in order of preference:
//   - the global attributes proj4, x0, y0, dx and dy;
//   - two-dimensional lat and lon variables giving every pixel center;
//   - one-dimensional lat(y) and lon(x) variables.
//
// Row times are read from a scan_time(y) variable holding modified Julian
// days or interpolated between the start_time and stop_time global
// attributes (RFC 3339). cacheRows is the number of band rows to keep in
// memory.
func Open(path string, cacheRows int) (*Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("product: %v", err)
	}
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("product: opening %s: %v", path, err)
	}
	p, err := fromNetCDF(path, f, cf, cacheRows)
	if err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

func fromNetCDF(path string, f *os.File, cf *cdf.File, cacheRows int) (*Product, error) {
	h := cf.Header
	dims, lengths := h.Dimensions(""), h.Lengths("")
	var width, height int
	for i, d := range dims {
		switch d {
		case "x":
			width = lengths[i]
		case "y":
			height = lengths[i]
		}
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("product: %s has no x and y dimensions", path)
	}
	if cacheRows <= 0 {
		cacheRows = DefaultCacheRows
	}
	nf := &ncFile{f: f, cf: cf, cache: lru.New(cacheRows), width: width}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if s, ok := h.GetAttribute("", "product_name").(string); ok && s != "" {
		name = s
	}
	p := &Product{
		Name:   name,
		Width:  width,
		Height: height,
		Bands:  make(map[string]binning.Raster),
		closer: nf,
	}
	for _, v := range h.Variables() {
		vd := h.Dimensions(v)
		if len(vd) == 2 && vd[0] == "y" && vd[1] == "x" && v != "lat" && v != "lon" {
			p.Bands[v] = &ncBand{file: nf, name: v, width: width, height: height}
		}
	}

	gc, err := ncGeoCoding(cf, width, height)
	if err != nil {
		return nil, fmt.Errorf("product: %s: %v", path, err)
	}
	p.GeoCoding = gc

	if err := ncTimes(p, cf); err != nil {
		return nil, fmt.Errorf("product: %s: %v", path, err)
	}
	return p, nil
}

func ncGeoCoding(cf *cdf.File, width, height int) (binning.GeoCoding, error) {
	h := cf.Header
	if p4, ok := h.GetAttribute("", "proj4").(string); ok && p4 != "" {
		var v [4]float64
		for i, a := range []string{"x0", "y0", "dx", "dy"} {
			f, ok := h.GetAttribute("", a).([]float64)
			if !ok || len(f) == 0 {
				return nil, fmt.Errorf("missing attribute %s for projected geocoding", a)
			}
			v[i] = f[0]
		}
		return NewProjGeoCoding(p4, v[0], v[1], v[2], v[3])
	}
	latDims, lonDims := h.Dimensions("lat"), h.Dimensions("lon")
	switch {
	case len(latDims) == 2 && len(lonDims) == 2:
		lat, err := readVar(cf, "lat")
		if err != nil {
			return nil, err
		}
		lon, err := readVar(cf, "lon")
		if err != nil {
			return nil, err
		}
		g := &PixelGeoCoding{Lat: sparse.ZerosDense(height, width), Lon: sparse.ZerosDense(height, width)}
		copy(g.Lat.Elements, lat)
		copy(g.Lon.Elements, lon)
		return g, nil
	case len(latDims) == 1 && len(lonDims) == 1:
		lat, err := readVar(cf, "lat")
		if err != nil {
			return nil, err
		}
		lon, err := readVar(cf, "lon")
		if err != nil {
			return nil, err
		}
		if len(lat) < 2 || len(lon) < 2 {
			return nil, fmt.Errorf("lat and lon axes need at least two values")
		}
		dLat, dLon := lat[1]-lat[0], lon[1]-lon[0]
		return AffineGeoCoding{
			Lat0: lat[0] - dLat/2,
			Lon0: lon[0] - dLon/2,
			DLat: dLat,
			DLon: dLon,
		}, nil
	}
	return nil, fmt.Errorf("no geocoding information")
}

func ncTimes(p *Product, cf *cdf.File) error {
	h := cf.Header
	if d := h.Dimensions("scan_time"); len(d) == 1 && d[0] == "y" {
		t, err := readVar(cf, "scan_time")
		if err != nil {
			return err
		}
		p.Times = ScanTimes(t)
		first, last := math.NaN(), math.NaN()
		for _, v := range t {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(first) {
				first = v
			}
			last = v
		}
		if !math.IsNaN(first) {
			p.StartTime, p.StopTime = binning.TimeFromMJD(first), binning.TimeFromMJD(last)
		}
		return nil
	}
	start, ok1 := h.GetAttribute("", "start_time").(string)
	stop, ok2 := h.GetAttribute("", "stop_time").(string)
	if !ok1 || !ok2 {
		return nil
	}
	t0, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return fmt.Errorf("parsing start_time: %v", err)
	}
	t1, err := time.Parse(time.RFC3339, stop)
	if err != nil {
		return fmt.Errorf("parsing stop_time: %v", err)
	}
	p.StartTime, p.StopTime = t0, t1
	p.Times = LinearTimes{Start: binning.MJD(t0), Stop: binning.MJD(t1), Height: p.Height}
	return nil
}

// readVar reads all of variable v as float64 values.
func readVar(cf *cdf.File, v string) ([]float64, error) {
	n := 1
	for _, l := range cf.Header.Lengths(v) {
		n *= l
	}
	r := cf.Reader(v, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading %s: %v", v, err)
	}
	if f64, ok := buf.([]float64); ok {
		fv, _ := cf.Header.FillValue(v).(float64)
		for i, f := range f64 {
			if f == fv {
				f64[i] = math.NaN()
			}
		}
		return f64, nil
	}
	f32 := toFloat32(buf, cf.Header.FillValue(v))
	o := make([]float64, len(f32))
	for i, f := range f32 {
		o[i] = float64(f)
	}
	return o, nil
}

// toFloat32 converts a buffer read from a NetCDF file to float32 values,
// replacing the fill value with NaN.
func toFloat32(buf, fill interface{}) []float32 {
	switch t := buf.(type) {
	case []float32:
		fv, _ := fill.(float32)
		for i, v := range t {
			if v == fv {
				t[i] = float32(math.NaN())
			}
		}
		return t
	case []float64:
		fv, _ := fill.(float64)
		o := make([]float32, len(t))
		for i, v := range t {
			if v == fv {
				o[i] = float32(math.NaN())
			} else {
				o[i] = float32(v)
			}
		}
		return o
	case []int32:
		fv, _ := fill.(int32)
		o := make([]float32, len(t))
		for i, v := range t {
			if v == fv {
				o[i] = float32(math.NaN())
			} else {
				o[i] = float32(v)
			}
		}
		return o
	case []int16:
		fv, _ := fill.(int16)
		o := make([]float32, len(t))
		for i, v := range t {
			if v == fv {
				o[i] = float32(math.NaN())
			} else {
				o[i] = float32(v)
			}
		}
		return o
	case []uint8:
		o := make([]float32, len(t))
		for i, v := range t {
			o[i] = float32(v)
		}
		return o
	}
	return nil
}
