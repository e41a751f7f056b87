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
	"sort"

	"github.com/spatialmodel/binning"
	"gonum.org/v1/gonum/stat"
)

// Percentile computes a percentile of the per-pass means of a variable.
// The pass means are collected in the BinContext during the temporal
// phase and reduced when the phase completes.
type Percentile struct {
	varIndex int
	p        float64
	key      string

	spatialNames, temporalNames []string
}

// NewPercentile creates a Percentile of variable varName. percentage must
// be within [0, 100].
func NewPercentile(vars binning.VariableContext, varName, targetName string, percentage int) (*Percentile, error) {
	idx, err := binning.ResolveVariable(vars, varName)
	if err != nil {
		return nil, fmt.Errorf("aggregator: PERCENTILE: %v", err)
	}
	if percentage < 0 || percentage > 100 {
		return nil, fmt.Errorf("aggregator: PERCENTILE: percentage %d is outside of [0, 100]", percentage)
	}
	if targetName == "" {
		targetName = varName
	}
	return &Percentile{
		varIndex:      idx,
		p:             float64(percentage) / 100,
		key:           "percentile." + targetName,
		spatialNames:  suffixed(targetName, "_sum", "_counts"),
		temporalNames: []string{fmt.Sprintf("%s_p%d", targetName, percentage)},
	}, nil
}

// Name implements binning.Aggregator.
func (a *Percentile) Name() string { return "PERCENTILE" }

// SpatialFeatureNames implements binning.Aggregator.
func (a *Percentile) SpatialFeatureNames() []string { return a.spatialNames }

// TemporalFeatureNames implements binning.Aggregator.
func (a *Percentile) TemporalFeatureNames() []string { return a.temporalNames }

// OutputFeatureNames implements binning.Aggregator.
func (a *Percentile) OutputFeatureNames() []string { return a.temporalNames }

// InitSpatial implements binning.Aggregator.
func (a *Percentile) InitSpatial(ctx binning.BinContext, v binning.WritableVector) { zero(v) }

// AggregateSpatial implements binning.Aggregator.
func (a *Percentile) AggregateSpatial(ctx binning.BinContext, obs *binning.Observation, v binning.WritableVector) {
	if x := obs.Get(a.varIndex); !isNaN(x) {
		v.Set(0, v.Get(0)+x)
		v.Set(1, v.Get(1)+1)
	}
}

// CompleteSpatial implements binning.Aggregator.
func (a *Percentile) CompleteSpatial(ctx binning.BinContext, numSpatialObs int, v binning.WritableVector) {
}

// InitTemporal implements binning.Aggregator.
func (a *Percentile) InitTemporal(ctx binning.BinContext, v binning.WritableVector) {
	v.Set(0, nan32)
	ctx.Put(a.key, []float64(nil))
}

// AggregateTemporal implements binning.Aggregator.
func (a *Percentile) AggregateTemporal(ctx binning.BinContext, s binning.Vector, numSpatialObs int, v binning.WritableVector) {
	n := s.Get(1)
	if n == 0 {
		return
	}
	means, _ := ctx.Get(a.key).([]float64)
	ctx.Put(a.key, append(means, float64(s.Get(0)/n)))
}

// CompleteTemporal implements binning.Aggregator.
func (a *Percentile) CompleteTemporal(ctx binning.BinContext, numTemporalObs int, v binning.WritableVector) {
	means, _ := ctx.Get(a.key).([]float64)
	if len(means) == 0 {
		v.Set(0, nan32)
		return
	}
	sort.Float64s(means)
	v.Set(0, float32(stat.Quantile(a.p, stat.Empirical, means, nil)))
}

// ComputeOutput implements binning.Aggregator.
func (a *Percentile) ComputeOutput(t binning.Vector, out binning.WritableVector) {
	out.Set(0, t.Get(0))
}
