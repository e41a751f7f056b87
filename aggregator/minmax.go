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
	"math"

	"github.com/spatialmodel/binning"
)

// MinMax tracks the smallest and largest valid sample of a variable.
type MinMax struct {
	varIndex int
	names    []string
}

// NewMinMax creates a MinMax of variable varName.
func NewMinMax(vars binning.VariableContext, varName, targetName string) (*MinMax, error) {
	idx, err := binning.ResolveVariable(vars, varName)
	if err != nil {
		return nil, fmt.Errorf("aggregator: MIN_MAX: %v", err)
	}
	if targetName == "" {
		targetName = varName
	}
	return &MinMax{varIndex: idx, names: suffixed(targetName, "_min", "_max")}, nil
}

// Name implements binning.Aggregator.
func (a *MinMax) Name() string { return "MIN_MAX" }

// SpatialFeatureNames implements binning.Aggregator.
func (a *MinMax) SpatialFeatureNames() []string { return a.names }

// TemporalFeatureNames implements binning.Aggregator.
func (a *MinMax) TemporalFeatureNames() []string { return a.names }

// OutputFeatureNames implements binning.Aggregator.
func (a *MinMax) OutputFeatureNames() []string { return a.names }

func (a *MinMax) init(v binning.WritableVector) {
	v.Set(0, float32(math.Inf(1)))
	v.Set(1, float32(math.Inf(-1)))
}

func (a *MinMax) extend(v binning.WritableVector, min, max float32) {
	if min < v.Get(0) {
		v.Set(0, min)
	}
	if max > v.Get(1) {
		v.Set(1, max)
	}
}

// InitSpatial implements binning.Aggregator.
func (a *MinMax) InitSpatial(ctx binning.BinContext, v binning.WritableVector) { a.init(v) }

// AggregateSpatial implements binning.Aggregator.
func (a *MinMax) AggregateSpatial(ctx binning.BinContext, obs *binning.Observation, v binning.WritableVector) {
	if x := obs.Get(a.varIndex); !isNaN(x) {
		a.extend(v, x, x)
	}
}

// CompleteSpatial implements binning.Aggregator.
func (a *MinMax) CompleteSpatial(ctx binning.BinContext, numSpatialObs int, v binning.WritableVector) {
}

// InitTemporal implements binning.Aggregator.
func (a *MinMax) InitTemporal(ctx binning.BinContext, v binning.WritableVector) { a.init(v) }

// AggregateTemporal implements binning.Aggregator.
func (a *MinMax) AggregateTemporal(ctx binning.BinContext, s binning.Vector, numSpatialObs int, v binning.WritableVector) {
	a.extend(v, s.Get(0), s.Get(1))
}

// CompleteTemporal implements binning.Aggregator.
func (a *MinMax) CompleteTemporal(ctx binning.BinContext, numTemporalObs int, v binning.WritableVector) {
}

// ComputeOutput implements binning.Aggregator. Bins without any valid
// sample are NaN.
func (a *MinMax) ComputeOutput(t binning.Vector, out binning.WritableVector) {
	if math.IsInf(float64(t.Get(0)), 1) {
		fill(out, nan32)
		return
	}
	out.Set(0, t.Get(0))
	out.Set(1, t.Get(1))
}
