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
	"gonum.org/v1/gonum/stat"
)

// AverageOutlierAware is an Average that drops, at the end of each pass,
// the samples lying more than DeviationFactor standard deviations from
// the pass mean. The raw samples are buffered in a growable vector until
// the pass is complete.
type AverageOutlierAware struct {
	*Average
	deviationFactor float64
}

// NewAverageOutlierAware creates an AverageOutlierAware of variable varName.
func NewAverageOutlierAware(vars binning.VariableContext, varName, targetName string, deviationFactor float64) (*AverageOutlierAware, error) {
	if deviationFactor <= 0 {
		return nil, fmt.Errorf("aggregator: AVG_OUTLIER: deviation factor must be positive, got %g", deviationFactor)
	}
	avg, err := NewAverage(vars, varName, targetName, 1, true)
	if err != nil {
		return nil, err
	}
	return &AverageOutlierAware{Average: avg, deviationFactor: deviationFactor}, nil
}

// Name implements binning.Aggregator.
func (a *AverageOutlierAware) Name() string { return "AVG_OUTLIER" }

// NumGrowableVectors implements binning.GrowableAggregator.
func (a *AverageOutlierAware) NumGrowableVectors() int { return 1 }

// AggregateSpatial implements binning.Aggregator.
func (a *AverageOutlierAware) AggregateSpatial(ctx binning.BinContext, obs *binning.Observation, v binning.WritableVector) {
	x := obs.Get(a.varIndex)
	if isNaN(x) {
		return
	}
	ctx.GrowableVector(0).Add(x)
}

// CompleteSpatial implements binning.Aggregator.
func (a *AverageOutlierAware) CompleteSpatial(ctx binning.BinContext, numSpatialObs int, v binning.WritableVector) {
	g := ctx.GrowableVector(0)
	if g == nil || g.Size() == 0 {
		return
	}
	x := make([]float64, g.Size())
	for i, f := range g.Values {
		x[i] = float64(f)
	}
	mean, std := stat.MeanStdDev(x, nil)
	limit := a.deviationFactor * std
	var sum, sumSq, n float64
	for _, f := range x {
		if len(x) > 2 && math.Abs(f-mean) > limit {
			continue
		}
		sum += f
		sumSq += f * f
		n++
	}
	v.Set(0, float32(sum))
	v.Set(1, float32(sumSq))
	v.Set(2, float32(n))
}
