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

import "fmt"

// TemporalBinner reduces the spatial bins of many passes into temporal
// bins.
type TemporalBinner struct {
	ctx *BinningContext
}

// NewTemporalBinner creates a TemporalBinner.
func NewTemporalBinner(ctx *BinningContext) *TemporalBinner {
	return &TemporalBinner{ctx: ctx}
}

// ProcessSpatialBins reduces spatial bins that all have the given index
// into a completed TemporalBin.
func (t *TemporalBinner) ProcessSpatialBins(index uint64, spatial []*SpatialBin) (*TemporalBin, error) {
	m := t.ctx.Manager
	tb := m.NewTemporalBin(index)
	for _, s := range spatial {
		if s.Index != index {
			return nil, fmt.Errorf("binning: spatial bin %d passed for temporal bin %d", s.Index, index)
		}
		m.AggregateTemporalBin(s, tb)
	}
	m.CompleteTemporalBin(tb)
	return tb, nil
}

// ComputeOutput returns the output features of a completed TemporalBin.
func (t *TemporalBinner) ComputeOutput(tb *TemporalBin) FloatVector {
	out := t.ctx.Manager.NewOutputVector()
	t.ctx.Manager.ComputeOutput(tb, out)
	return out
}

// GroupByIndex groups spatial bins by index, in increasing index order,
// and calls f for every group. It stops at the first error f returns.
// bins must already be sorted by index.
func GroupByIndex(bins []*SpatialBin, f func(index uint64, group []*SpatialBin) error) error {
	for i := 0; i < len(bins); {
		j := i + 1
		for j < len(bins) && bins[j].Index == bins[i].Index {
			j++
		}
		if j < len(bins) && bins[j].Index < bins[i].Index {
			return fmt.Errorf("binning: spatial bins are not sorted: %d after %d", bins[j].Index, bins[i].Index)
		}
		if err := f(bins[i].Index, bins[i:j]); err != nil {
			return err
		}
		i = j
	}
	return nil
}
