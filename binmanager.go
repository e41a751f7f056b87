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
)

type phase int

const (
	spatialPhase phase = iota
	temporalPhase
	outputPhase
)

func (p phase) String() string {
	return [...]string{"spatial", "temporal", "output"}[p]
}

// layout describes where each aggregator's window starts in a phase's
// feature vector.
type layout struct {
	offsets []int
	sizes   []int
	names   []string
}

func (l *layout) len() int { return len(l.names) }

// BinManager drives a list of Aggregators through the phases of the
// binning process, giving each of them its window of a bin's feature
// vectors.
type BinManager struct {
	aggregators []Aggregator
	layouts     [3]layout

	// growOffsets[i] is the first growable vector of aggregator i.
	growOffsets []int
	growSizes   []int
	numGrowable int
}

// NewBinManager creates a BinManager for the given aggregators. An error
// is returned if no aggregator is given or if two aggregators declare the
// same feature name within a phase.
func NewBinManager(aggregators ...Aggregator) (*BinManager, error) {
	if len(aggregators) == 0 {
		return nil, fmt.Errorf("binning: at least one aggregator is required")
	}
	m := &BinManager{
		aggregators: aggregators,
		growOffsets: make([]int, len(aggregators)),
		growSizes:   make([]int, len(aggregators)),
	}
	for p := spatialPhase; p <= outputPhase; p++ {
		seen := make(map[string]bool)
		l := &m.layouts[p]
		for _, a := range aggregators {
			names := featureNames(a, p)
			l.offsets = append(l.offsets, len(l.names))
			l.sizes = append(l.sizes, len(names))
			for _, n := range names {
				if seen[n] {
					return nil, fmt.Errorf("binning: duplicate %s feature name %q (aggregator %s)", p, n, a.Name())
				}
				seen[n] = true
				l.names = append(l.names, n)
			}
		}
	}
	for i, a := range aggregators {
		m.growOffsets[i] = m.numGrowable
		if g, ok := a.(GrowableAggregator); ok {
			m.growSizes[i] = g.NumGrowableVectors()
			m.numGrowable += m.growSizes[i]
		}
	}
	return m, nil
}

func featureNames(a Aggregator, p phase) []string {
	switch p {
	case spatialPhase:
		return a.SpatialFeatureNames()
	case temporalPhase:
		return a.TemporalFeatureNames()
	default:
		return a.OutputFeatureNames()
	}
}

// Aggregators returns the managed aggregators in registration order.
func (m *BinManager) Aggregators() []Aggregator { return m.aggregators }

// SpatialFeatureNames returns the feature names of a SpatialBin.
func (m *BinManager) SpatialFeatureNames() []string { return m.layouts[spatialPhase].names }

// TemporalFeatureNames returns the feature names of a TemporalBin.
func (m *BinManager) TemporalFeatureNames() []string { return m.layouts[temporalPhase].names }

// OutputFeatureNames returns the feature names of an output vector.
func (m *BinManager) OutputFeatureNames() []string { return m.layouts[outputPhase].names }

// NumGrowableVectors returns the number of growable vectors of a SpatialBin.
func (m *BinManager) NumGrowableVectors() int { return m.numGrowable }

// window returns aggregator i's view of v, panicking if v does not
// have the layout of phase p.
func (m *BinManager) window(p phase, i int, v FloatVector) FloatVector {
	l := &m.layouts[p]
	if len(v) != l.len() {
		panic(fmt.Errorf("binning: %s vector has %d features but the aggregators declare %d", p, len(v), l.len()))
	}
	return v.window(l.offsets[i], l.sizes[i])
}

func (m *BinManager) useVectors(ctx *binContext, b *SpatialBin, i int) {
	if len(b.Vectors) != m.numGrowable {
		panic(fmt.Errorf("binning: spatial bin %d has %d growable vectors but the aggregators declare %d", b.Index, len(b.Vectors), m.numGrowable))
	}
	ctx.vectors = b.Vectors[m.growOffsets[i] : m.growOffsets[i]+m.growSizes[i]]
}

// NewSpatialBin creates a SpatialBin and initializes every aggregator's
// window of it. Its BinContext lives until CompleteSpatialBin.
func (m *BinManager) NewSpatialBin(index uint64) *SpatialBin {
	b := &SpatialBin{
		Bin: Bin{
			Index:    index,
			Features: NewFloatVector(m.layouts[spatialPhase].len()),
		},
		ctx: newBinContext(index),
	}
	if m.numGrowable > 0 {
		b.Vectors = make([]*GrowableVector, m.numGrowable)
		for i := range b.Vectors {
			b.Vectors[i] = new(GrowableVector)
		}
	}
	for i, a := range m.aggregators {
		m.useVectors(b.ctx, b, i)
		a.InitSpatial(b.ctx, m.window(spatialPhase, i, b.Features))
	}
	return b
}

// AggregateSpatialBin adds obs to b.
func (m *BinManager) AggregateSpatialBin(obs *Observation, b *SpatialBin) {
	ctx := b.context()
	for i, a := range m.aggregators {
		m.useVectors(ctx, b, i)
		a.AggregateSpatial(ctx, obs, m.window(spatialPhase, i, b.Features))
	}
	b.NumObs++
}

// CompleteSpatialBin completes the spatial phase of b and releases its
// BinContext.
func (m *BinManager) CompleteSpatialBin(b *SpatialBin) {
	ctx := b.context()
	for i, a := range m.aggregators {
		m.useVectors(ctx, b, i)
		a.CompleteSpatial(ctx, b.NumObs, m.window(spatialPhase, i, b.Features))
	}
	b.ctx = nil
}

// context returns the bin's context, creating a new one for bins that
// were read back from storage.
func (b *SpatialBin) context() *binContext {
	if b.ctx == nil {
		b.ctx = newBinContext(b.Index)
	}
	return b.ctx
}

// NewTemporalBin creates a TemporalBin and initializes every aggregator's
// window of it. Its BinContext lives until CompleteTemporalBin.
func (m *BinManager) NewTemporalBin(index uint64) *TemporalBin {
	b := &TemporalBin{
		Bin: Bin{
			Index:    index,
			Features: NewFloatVector(m.layouts[temporalPhase].len()),
		},
		ctx: newBinContext(index),
	}
	for i, a := range m.aggregators {
		a.InitTemporal(b.ctx, m.window(temporalPhase, i, b.Features))
	}
	return b
}

// AggregateTemporalBin adds the completed spatial bin s to t.
func (m *BinManager) AggregateTemporalBin(s *SpatialBin, t *TemporalBin) {
	if t.ctx == nil {
		t.ctx = newBinContext(t.Index)
	}
	for i, a := range m.aggregators {
		a.AggregateTemporal(t.ctx, m.window(spatialPhase, i, s.Features), s.NumObs,
			m.window(temporalPhase, i, t.Features))
	}
	t.NumObs += s.NumObs
	t.NumPasses++
}

// CompleteTemporalBin completes the temporal phase of t and releases its
// BinContext.
func (m *BinManager) CompleteTemporalBin(t *TemporalBin) {
	if t.ctx == nil {
		t.ctx = newBinContext(t.Index)
	}
	for i, a := range m.aggregators {
		a.CompleteTemporal(t.ctx, t.NumObs, m.window(temporalPhase, i, t.Features))
	}
	t.ctx = nil
}

// NewOutputVector returns a vector sized for ComputeOutput.
func (m *BinManager) NewOutputVector() FloatVector {
	return NewFloatVector(m.layouts[outputPhase].len())
}

// ComputeOutput fills out with the output features of the completed
// temporal bin t.
func (m *BinManager) ComputeOutput(t *TemporalBin, out FloatVector) {
	for i, a := range m.aggregators {
		a.ComputeOutput(m.window(temporalPhase, i, t.Features), m.window(outputPhase, i, out))
	}
}
