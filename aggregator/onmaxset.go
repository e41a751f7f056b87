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

package aggregator

import (
	"fmt"

	"github.com/spatialmodel/binning"
)

// OnMaxSet records, for the observation with the largest value of one
// variable, that value, its time and the values of a set of other
// variables.
type OnMaxSet struct {
	onMaxIndex int
	setIndices []int
	names      []string
}

// NewOnMaxSet creates an OnMaxSet keyed on variable onMaxVarName.
func NewOnMaxSet(vars binning.VariableContext, onMaxVarName, targetName string, setVarNames ...string) (*OnMaxSet, error) {
	idx, err := binning.ResolveVariable(vars, onMaxVarName)
	if err != nil {
		return nil, fmt.Errorf("aggregator: ON_MAX_SET: %v", err)
	}
	if targetName == "" {
		targetName = onMaxVarName
	}
	a := &OnMaxSet{
		onMaxIndex: idx,
		names:      suffixed(targetName, "_max", "_mjd"),
	}
	for _, n := range setVarNames {
		i, err := binning.ResolveVariable(vars, n)
		if err != nil {
			return nil, fmt.Errorf("aggregator: ON_MAX_SET: %v", err)
		}
		a.setIndices = append(a.setIndices, i)
		a.names = append(a.names, n)
	}
	return a, nil
}

// Name implements binning.Aggregator.
func (a *OnMaxSet) Name() string { return "ON_MAX_SET" }

// SpatialFeatureNames implements binning.Aggregator.
func (a *OnMaxSet) SpatialFeatureNames() []string { return a.names }

// TemporalFeatureNames implements binning.Aggregator.
func (a *OnMaxSet) TemporalFeatureNames() []string { return a.names }

// OutputFeatureNames implements binning.Aggregator.
func (a *OnMaxSet) OutputFeatureNames() []string { return a.names }

// InitSpatial implements binning.Aggregator. All features start as NaN,
// meaning no maximum has been found yet.
func (a *OnMaxSet) InitSpatial(ctx binning.BinContext, v binning.WritableVector) { fill(v, nan32) }

// AggregateSpatial implements binning.Aggregator.
func (a *OnMaxSet) AggregateSpatial(ctx binning.BinContext, obs *binning.Observation, v binning.WritableVector) {
	x := obs.Get(a.onMaxIndex)
	if isNaN(x) || !(isNaN(v.Get(0)) || x > v.Get(0)) {
		return
	}
	v.Set(0, x)
	v.Set(1, float32(obs.MJD))
	for i, idx := range a.setIndices {
		v.Set(i+2, obs.Get(idx))
	}
}

// CompleteSpatial implements binning.Aggregator.
func (a *OnMaxSet) CompleteSpatial(ctx binning.BinContext, numSpatialObs int, v binning.WritableVector) {
}

// InitTemporal implements binning.Aggregator.
func (a *OnMaxSet) InitTemporal(ctx binning.BinContext, v binning.WritableVector) { fill(v, nan32) }

// AggregateTemporal implements binning.Aggregator.
func (a *OnMaxSet) AggregateTemporal(ctx binning.BinContext, s binning.Vector, numSpatialObs int, v binning.WritableVector) {
	x := s.Get(0)
	if isNaN(x) || !(isNaN(v.Get(0)) || x > v.Get(0)) {
		return
	}
	for i := 0; i < v.Size(); i++ {
		v.Set(i, s.Get(i))
	}
}

// CompleteTemporal implements binning.Aggregator.
func (a *OnMaxSet) CompleteTemporal(ctx binning.BinContext, numTemporalObs int, v binning.WritableVector) {
}

// ComputeOutput implements binning.Aggregator.
func (a *OnMaxSet) ComputeOutput(t binning.Vector, out binning.WritableVector) {
	for i := 0; i < out.Size(); i++ {
		out.Set(i, t.Get(i))
	}
}
