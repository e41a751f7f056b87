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

// Sum adds up the valid samples of a variable.
type Sum struct {
	varIndex int
	names    []string
}

// NewSum creates a Sum of variable varName.
func NewSum(vars binning.VariableContext, varName, targetName string) (*Sum, error) {
	idx, err := binning.ResolveVariable(vars, varName)
	if err != nil {
		return nil, fmt.Errorf("aggregator: SUM: %v", err)
	}
	if targetName == "" {
		targetName = varName
	}
	return &Sum{varIndex: idx, names: suffixed(targetName, "_sum")}, nil
}

// Name implements binning.Aggregator.
func (a *Sum) Name() string { return "SUM" }

// SpatialFeatureNames implements binning.Aggregator.
func (a *Sum) SpatialFeatureNames() []string { return a.names }

// TemporalFeatureNames implements binning.Aggregator.
func (a *Sum) TemporalFeatureNames() []string { return a.names }

// OutputFeatureNames implements binning.Aggregator.
func (a *Sum) OutputFeatureNames() []string { return a.names }

// InitSpatial implements binning.Aggregator.
func (a *Sum) InitSpatial(ctx binning.BinContext, v binning.WritableVector) { zero(v) }

// AggregateSpatial implements binning.Aggregator.
func (a *Sum) AggregateSpatial(ctx binning.BinContext, obs *binning.Observation, v binning.WritableVector) {
	if x := obs.Get(a.varIndex); !isNaN(x) {
		v.Set(0, v.Get(0)+x)
	}
}

// CompleteSpatial implements binning.Aggregator.
func (a *Sum) CompleteSpatial(ctx binning.BinContext, numSpatialObs int, v binning.WritableVector) {}

// InitTemporal implements binning.Aggregator.
func (a *Sum) InitTemporal(ctx binning.BinContext, v binning.WritableVector) { zero(v) }

// AggregateTemporal implements binning.Aggregator.
func (a *Sum) AggregateTemporal(ctx binning.BinContext, s binning.Vector, numSpatialObs int, v binning.WritableVector) {
	v.Set(0, v.Get(0)+s.Get(0))
}

// CompleteTemporal implements binning.Aggregator.
func (a *Sum) CompleteTemporal(ctx binning.BinContext, numTemporalObs int, v binning.WritableVector) {
}

// ComputeOutput implements binning.Aggregator.
func (a *Sum) ComputeOutput(t binning.Vector, out binning.WritableVector) {
	out.Set(0, t.Get(0))
}
