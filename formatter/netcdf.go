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

package formatter

import (
	"fmt"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// WriteNetCDF writes the rendered rasters of r to a NetCDF file at path,
// with lat and lon coordinate variables, one float variable per output
// feature and the num_obs and num_passes counts. attrs are written as
// global attributes.
func WriteNetCDF(path string, r *RasterRenderer, attrs map[string]string) error {
	if r.Bands == nil {
		return fmt.Errorf("formatter: nothing has been rendered")
	}
	h, w := r.Region.Dy(), r.Region.Dx()
	hdr := cdf.NewHeader([]string{"lat", "lon"}, []int{h, w})
	hdr.AddAttribute("", "comment", "Level-3 mapped data")
	hdr.AddAttribute("", "num_rows", []int32{int32(r.numRows)})
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		hdr.AddAttribute("", k, attrs[k])
	}

	hdr.AddVariable("lat", []string{"lat"}, []float64{0})
	hdr.AddAttribute("lat", "units", "degrees_north")
	hdr.AddVariable("lon", []string{"lon"}, []float64{0})
	hdr.AddAttribute("lon", "units", "degrees_east")
	for _, name := range r.Names {
		hdr.AddVariable(name, []string{"lat", "lon"}, []float32{0})
	}
	hdr.AddVariable("num_obs", []string{"lat", "lon"}, []int32{0})
	hdr.AddVariable("num_passes", []string{"lat", "lon"}, []int32{0})
	hdr.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("formatter: %v", err)
	}
	defer f.Close()
	cf, err := cdf.Create(f, hdr)
	if err != nil {
		return fmt.Errorf("formatter: creating %s: %v", path, err)
	}

	lat := make([]float64, h)
	for i := range lat {
		lat[i] = r.Lat(i)
	}
	lon := make([]float64, w)
	for j := range lon {
		lon[j] = r.Lon(j)
	}
	if err := writeVar(cf, "lat", lat); err != nil {
		return err
	}
	if err := writeVar(cf, "lon", lon); err != nil {
		return err
	}
	for i, name := range r.Names {
		if err := writeVar(cf, name, float32s(r.Bands[i])); err != nil {
			return err
		}
	}
	if err := writeVar(cf, "num_obs", int32s(r.NumObs)); err != nil {
		return err
	}
	if err := writeVar(cf, "num_passes", int32s(r.NumPasses)); err != nil {
		return err
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		return fmt.Errorf("formatter: %v", err)
	}
	return f.Close()
}

func writeVar(f *cdf.File, v string, data interface{}) error {
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	if _, err := f.Writer(v, start, end).Write(data); err != nil {
		return fmt.Errorf("formatter: writing variable %s: %v", v, err)
	}
	return nil
}

func float32s(a *sparse.DenseArray) []float32 {
	o := make([]float32, len(a.Elements))
	for i, e := range a.Elements {
		o[i] = float32(e)
	}
	return o
}

func int32s(a *sparse.DenseArray) []int32 {
	o := make([]int32, len(a.Elements))
	for i, e := range a.Elements {
		o[i] = int32(e)
	}
	return o
}
