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

// Package aggregator holds the statistics that can be computed by the
// binning engine.
package aggregator

import (
	"fmt"
	"math"

	"github.com/spatialmodel/binning"
)

// Average computes the mean and standard deviation of a variable.
//
// The spatial phase keeps the sum, sum of squares and number of valid
// samples of a pass. The temporal phase adds up the per-pass means, each
// weighted by the pass's sample count raised to WeightCoeff.
type Average struct {
	varIndex     int
	weightCoeff  float64
	outputCounts bool

	spatialNames, temporalNames, outputNames []string
}

// NewAverage creates an Average of variable varName. Features are named
// after targetName, which defaults to varName. With weightCoeff == 1
// passes are weighted by their sample counts; with weightCoeff == 0 every
// pass counts the same.
func NewAverage(vars binning.VariableContext, varName, targetName string, weightCoeff float64, outputCounts bool) (*Average, error) {
	idx, err := binning.ResolveVariable(vars, varName)
	if err != nil {
		return nil, fmt.Errorf("aggregator: AVG: %v", err)
	}
	if weightCoeff < 0 {
		return nil, fmt.Errorf("aggregator: AVG: negative weight coefficient %g", weightCoeff)
	}
	if targetName == "" {
		targetName = varName
	}
	a := &Average{
		varIndex:      idx,
		weightCoeff:   weightCoeff,
		outputCounts:  outputCounts,
		spatialNames:  suffixed(targetName, "_sum", "_sum_sq", "_counts"),
		temporalNames: suffixed(targetName, "_sum", "_sum_sq", "_weights", "_counts"),
		outputNames:   suffixed(targetName, "_mean", "_sigma"),
	}
	if outputCounts {
		a.outputNames = append(a.outputNames, targetName+"_counts")
	}
	return a, nil
}

// Name implements binning.Aggregator.
func (a *Average) Name() string { return "AVG" }

// SpatialFeatureNames implements binning.Aggregator.
func (a *Average) SpatialFeatureNames() []string { return a.spatialNames }

// TemporalFeatureNames implements binning.Aggregator.
func (a *Average) TemporalFeatureNames() []string { return a.temporalNames }

// OutputFeatureNames implements binning.Aggregator.
func (a *Average) OutputFeatureNames() []string { return a.outputNames }

// InitSpatial implements binning.Aggregator.
func (a *Average) InitSpatial(ctx binning.BinContext, v binning.WritableVector) { zero(v) }

// AggregateSpatial implements binning.Aggregator.
func (a *Average) AggregateSpatial(ctx binning.BinContext, obs *binning.Observation, v binning.WritableVector) {
	x := obs.Get(a.varIndex)
	if isNaN(x) {
		return
	}
	v.Set(0, v.Get(0)+x)
	v.Set(1, v.Get(1)+x*x)
	v.Set(2, v.Get(2)+1)
}

// CompleteSpatial implements binning.Aggregator. The sums are kept as
// they are.
func (a *Average) CompleteSpatial(ctx binning.BinContext, numSpatialObs int, v binning.WritableVector) {
}

// InitTemporal implements binning.Aggregator.
func (a *Average) InitTemporal(ctx binning.BinContext, v binning.WritableVector) { zero(v) }

// AggregateTemporal implements binning.Aggregator.
func (a *Average) AggregateTemporal(ctx binning.BinContext, s binning.Vector, numSpatialObs int, v binning.WritableVector) {
	counts := float64(s.Get(2))
	if counts == 0 {
		return
	}
	w := math.Pow(counts, a.weightCoeff)
	v.Set(0, v.Get(0)+float32(float64(s.Get(0))/counts*w))
	v.Set(1, v.Get(1)+float32(float64(s.Get(1))/counts*w))
	v.Set(2, v.Get(2)+float32(w))
	v.Set(3, v.Get(3)+float32(counts))
}

// CompleteTemporal implements binning.Aggregator.
func (a *Average) CompleteTemporal(ctx binning.BinContext, numTemporalObs int, v binning.WritableVector) {
}

// ComputeOutput implements binning.Aggregator. Bins without any valid
// sample have a NaN mean and sigma.
func (a *Average) ComputeOutput(t binning.Vector, out binning.WritableVector) {
	mean, sigma := meanSigma(float64(t.Get(0)), float64(t.Get(1)), float64(t.Get(2)))
	out.Set(0, float32(mean))
	out.Set(1, float32(sigma))
	if a.outputCounts {
		out.Set(2, t.Get(3))
	}
}

func meanSigma(sum, sumSq, weights float64) (mean, sigma float64) {
	if weights == 0 {
		return math.NaN(), math.NaN()
	}
	mean = sum / weights
	variance := sumSq/weights - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

func suffixed(name string, suffixes ...string) []string {
	o := make([]string, len(suffixes))
	for i, s := range suffixes {
		o[i] = name + s
	}
	return o
}

func zero(v binning.WritableVector) {
	for i := 0; i < v.Size(); i++ {
		v.Set(i, 0)
	}
}

func fill(v binning.WritableVector, x float32) {
	for i := 0; i < v.Size(); i++ {
		v.Set(i, x)
	}
}

func isNaN(x float32) bool { return x != x }

var nan32 = float32(math.NaN())
