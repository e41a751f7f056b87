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

// Aggregator is a statistic computed over the observations of a bin.
// An Aggregator works in three phases: spatial (observations of one pass),
// temporal (spatial bins of many passes) and output. The length of each of
// the feature name lists fixes the size of the vector the Aggregator is
// given in the corresponding phase.
//
// A single Aggregator instance serves every bin, so implementations must
// keep all per-bin state in the vectors and the BinContext they are handed.
type Aggregator interface {
	// Name returns the type name of the aggregator, e.g. "AVG".
	Name() string

	SpatialFeatureNames() []string
	TemporalFeatureNames() []string
	OutputFeatureNames() []string

	// InitSpatial seeds the spatial vector of a new bin.
	InitSpatial(ctx BinContext, spatial WritableVector)
	// AggregateSpatial adds obs to the spatial vector. NaN samples are
	// treated as missing and skipped.
	AggregateSpatial(ctx BinContext, obs *Observation, spatial WritableVector)
	// CompleteSpatial is called once after the last observation of the pass.
	CompleteSpatial(ctx BinContext, numSpatialObs int, spatial WritableVector)

	// InitTemporal seeds the temporal vector of a new bin.
	InitTemporal(ctx BinContext, temporal WritableVector)
	// AggregateTemporal adds a completed spatial vector to the temporal vector.
	AggregateTemporal(ctx BinContext, spatial Vector, numSpatialObs int, temporal WritableVector)
	// CompleteTemporal is called once after the last spatial vector.
	CompleteTemporal(ctx BinContext, numTemporalObs int, temporal WritableVector)

	// ComputeOutput derives the output features from a completed temporal
	// vector. It must not have side effects.
	ComputeOutput(temporal Vector, out WritableVector)
}

// GrowableAggregator is implemented by aggregators that need growable
// per-bin buffers during the spatial phase.
type GrowableAggregator interface {
	Aggregator

	// NumGrowableVectors returns the number of buffers to reserve per bin.
	NumGrowableVectors() int
}
