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
	"strings"
)

// Vector is a read-only, fixed-size sequence of float32 values.
type Vector interface {
	Size() int
	Get(i int) float32
}

// WritableVector is a Vector whose elements can be changed in place.
type WritableVector interface {
	Vector
	Set(i int, v float32)
}

// FloatVector is a WritableVector backed by a slice. Sub-slices of
// a FloatVector share its storage, which is how the BinManager hands
// each Aggregator its own window of a bin's features.
type FloatVector []float32

// NewFloatVector returns a zeroed vector of length n.
func NewFloatVector(n int) FloatVector { return make(FloatVector, n) }

// Size returns the number of elements in v.
func (v FloatVector) Size() int { return len(v) }

// Get returns element i.
func (v FloatVector) Get(i int) float32 { return v[i] }

// Set sets element i to val.
func (v FloatVector) Set(i int, val float32) { v[i] = val }

// window returns the sub-vector [off, off+n) with its capacity
// capped so appends cannot spill into a neighbor's features.
func (v FloatVector) window(off, n int) FloatVector {
	return v[off : off+n : off+n]
}

func (v FloatVector) String() string {
	s := make([]string, len(v))
	for i, f := range v {
		s[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(s, ", ") + "]"
}

// GrowableVector is a per-bin buffer whose length is not known until the
// spatial pass over the bin ends. It is used by aggregators that must see
// every raw sample before they can compute their statistic.
type GrowableVector struct {
	Values []float32
}

// Add appends v to the buffer.
func (g *GrowableVector) Add(v float32) { g.Values = append(g.Values, v) }

// Size returns the current number of buffered values.
func (g *GrowableVector) Size() int { return len(g.Values) }

// Get returns the i-th buffered value.
func (g *GrowableVector) Get(i int) float32 { return g.Values[i] }

// Set overwrites the i-th buffered value.
func (g *GrowableVector) Set(i int, v float32) { g.Values[i] = v }

// Observation is one geolocated, possibly super-sampled pixel. The
// embedded vector holds one value per variable of the VariableContext.
type Observation struct {
	FloatVector

	// MJD is the observation time as a modified Julian day.
	MJD float64

	// Latitude and Longitude are WGS-84 degrees.
	Latitude, Longitude float64
}
