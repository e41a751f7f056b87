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

// Bin holds the aggregation state of one grid cell.
type Bin struct {
	// Index is the bin's index in the PlanetaryGrid.
	Index uint64

	// NumObs is the number of observations that went into the bin.
	NumObs int

	// Features is the concatenation of the feature windows of all
	// configured aggregators, in registration order.
	Features FloatVector
}

// SpatialBin is a Bin accumulated from the observations of a single
// pass (scene).
type SpatialBin struct {
	Bin

	// Vectors are the bin's growable buffers. Their number is fixed by the
	// aggregators but their lengths grow during the spatial pass.
	Vectors []*GrowableVector

	ctx *binContext
}

// TemporalBin is a Bin accumulated from the SpatialBins of many passes.
type TemporalBin struct {
	Bin

	// NumPasses is the number of spatial bins that were reduced into the bin.
	NumPasses int

	ctx *binContext
}

// BinContext is scratch space shared by all aggregators working on one bin
// during one phase. It must not be kept after the phase completes.
type BinContext interface {
	// Index returns the index of the bin being processed.
	Index() uint64

	// Get returns the value stored under name, or nil.
	Get(name string) interface{}

	// Put stores value under name, replacing any previous value.
	Put(name string, value interface{})

	// GrowableVector returns the i-th growable vector reserved by the
	// current aggregator, or nil if there is none in this phase.
	GrowableVector(i int) *GrowableVector
}

type binContext struct {
	index   uint64
	values  map[string]interface{}
	vectors []*GrowableVector
}

func newBinContext(index uint64) *binContext {
	return &binContext{index: index}
}

func (c *binContext) Index() uint64 { return c.index }

func (c *binContext) Get(name string) interface{} {
	if c.values == nil {
		return nil
	}
	return c.values[name]
}

func (c *binContext) Put(name string, value interface{}) {
	if c.values == nil {
		c.values = make(map[string]interface{})
	}
	c.values[name] = value
}

func (c *binContext) GrowableVector(i int) *GrowableVector {
	if i < 0 || i >= len(c.vectors) {
		return nil
	}
	return c.vectors[i]
}
