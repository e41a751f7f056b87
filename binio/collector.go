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

package binio

import (
	"sync"

	"github.com/google/btree"
	"github.com/spatialmodel/binning"
)

// group holds the spatial bins collected for one bin index.
type group struct {
	index uint64
	bins  []*binning.SpatialBin
}

func (g *group) Less(than btree.Item) bool { return g.index < than.(*group).index }

// SpatialBinCollector is a SpatialBinConsumer that keeps every spatial bin
// it receives in memory, grouped by bin index. It is safe for concurrent
// use, so several SpatialBinners may share it.
type SpatialBinCollector struct {
	mu      sync.Mutex
	groups  *btree.BTree
	numBins int
}

// NewSpatialBinCollector returns an empty collector.
func NewSpatialBinCollector() *SpatialBinCollector {
	return &SpatialBinCollector{groups: btree.New(32)}
}

// ConsumeSpatialBins implements binning.SpatialBinConsumer.
func (c *SpatialBinCollector) ConsumeSpatialBins(_ *binning.BinningContext, bins []*binning.SpatialBin) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range bins {
		c.add(b)
	}
	return nil
}

func (c *SpatialBinCollector) add(b *binning.SpatialBin) {
	key := &group{index: b.Index}
	if i := c.groups.Get(key); i != nil {
		g := i.(*group)
		g.bins = append(g.bins, b)
	} else {
		key.bins = []*binning.SpatialBin{b}
		c.groups.ReplaceOrInsert(key)
	}
	c.numBins++
}

// NumIndices returns the number of distinct bin indices collected.
func (c *SpatialBinCollector) NumIndices() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groups.Len()
}

// NumBins returns the number of spatial bins collected.
func (c *SpatialBinCollector) NumBins() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numBins
}

// ForEach calls f with the spatial bins of every index in increasing
// index order, stopping at the first error.
func (c *SpatialBinCollector) ForEach(f func(index uint64, bins []*binning.SpatialBin) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	c.groups.Ascend(func(i btree.Item) bool {
		g := i.(*group)
		err = f(g.index, g.bins)
		return err == nil
	})
	return err
}

// Clear removes all collected bins.
func (c *SpatialBinCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = btree.New(32)
	c.numBins = 0
}

// BinTemporally aggregates the collected spatial bins of every index into
// a temporal bin, in increasing index order.
func (c *SpatialBinCollector) BinTemporally(tb *binning.TemporalBinner) ([]*binning.TemporalBin, error) {
	var out []*binning.TemporalBin
	err := c.ForEach(func(index uint64, bins []*binning.SpatialBin) error {
		t, err := tb.ProcessSpatialBins(index, bins)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
