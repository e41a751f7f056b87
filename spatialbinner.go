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
	"image"
	"io"
	"time"

	"github.com/google/btree"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// BinningContext holds the configuration shared by all parts of a
// binning run.
type BinningContext struct {
	Grid      PlanetaryGrid
	Variables VariableContext
	Manager   *BinManager

	// SuperSampling is the number of sub-pixel steps per pixel axis.
	SuperSampling int

	// MaxDistanceKm, if positive, is the largest distance allowed between
	// a super-sampled position and its pixel center.
	MaxDistanceKm float64

	// DataPeriod and Region are optional.
	DataPeriod DataPeriod
	Region     Region
}

// SpatialBinConsumer receives the completed spatial bins of a slice.
type SpatialBinConsumer interface {
	ConsumeSpatialBins(ctx *BinningContext, bins []*SpatialBin) error
}

// SpatialBinConsumerFunc adapts a function to a SpatialBinConsumer.
type SpatialBinConsumerFunc func(ctx *BinningContext, bins []*SpatialBin) error

// ConsumeSpatialBins implements SpatialBinConsumer.
func (f SpatialBinConsumerFunc) ConsumeSpatialBins(ctx *BinningContext, bins []*SpatialBin) error {
	return f(ctx, bins)
}

// ObservationSource is a sequence of observations ending with io.EOF.
type ObservationSource interface {
	Next() (*Observation, error)
}

// binKey and activeBin are the items of the SpatialBinner's trees. Both
// are ordered by bin index, so a binKey can be used to look up an
// activeBin.
type binKey uint64

type activeBin struct {
	*SpatialBin
}

func itemIndex(i btree.Item) uint64 {
	switch t := i.(type) {
	case binKey:
		return uint64(t)
	case activeBin:
		return t.Index
	}
	panic(fmt.Errorf("binning: invalid tree item %T", i))
}

func (k binKey) Less(than btree.Item) bool    { return uint64(k) < itemIndex(than) }
func (b activeBin) Less(than btree.Item) bool { return b.Index < itemIndex(than) }

const treeDegree = 32

// SpatialBinner aggregates observations into spatial bins slice by slice.
// A bin is completed and passed to the consumer as soon as a slice goes
// by without touching it, so only the bins of the last two slices are
// held in memory. Observations must arrive in raster-scan order.
//
// A SpatialBinner must not be used from more than one goroutine at a time.
type SpatialBinner struct {
	ctx      *BinningContext
	consumer SpatialBinConsumer

	active    *btree.BTree
	finalized *btree.BTree

	errs      error
	numObs    int
	numSlices int
	maxActive int

	// Log receives progress messages. It defaults to the standard logger.
	Log logrus.FieldLogger
}

// NewSpatialBinner creates a SpatialBinner that emits completed bins to
// consumer.
func NewSpatialBinner(ctx *BinningContext, consumer SpatialBinConsumer) *SpatialBinner {
	return &SpatialBinner{
		ctx:       ctx,
		consumer:  consumer,
		active:    btree.New(treeDegree),
		finalized: btree.New(treeDegree),
		Log:       logrus.StandardLogger(),
	}
}

// ProcessObservationSlice bins one slice of observations.
func (b *SpatialBinner) ProcessObservationSlice(observations []*Observation) {
	b.beginSlice()
	for _, o := range observations {
		b.add(o)
	}
	b.endSlice()
}

// ProcessSlice bins the observations of src, which makes up one slice,
// and returns how many were read. An error reading src stops the slice;
// bins touched so far stay active.
func (b *SpatialBinner) ProcessSlice(src ObservationSource) (int, error) {
	b.beginSlice()
	n := 0
	for {
		o, err := src.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			b.endSlice()
			return n, err
		}
		b.add(o)
		n++
	}
	b.endSlice()
	return n, nil
}

func (b *SpatialBinner) beginSlice() {
	b.finalized = btree.New(treeDegree)
	b.active.Ascend(func(i btree.Item) bool {
		b.finalized.ReplaceOrInsert(binKey(itemIndex(i)))
		return true
	})
}

func (b *SpatialBinner) add(o *Observation) {
	idx := b.ctx.Grid.BinIndex(o.Latitude, o.Longitude)
	var bin *SpatialBin
	if i := b.active.Get(binKey(idx)); i != nil {
		bin = i.(activeBin).SpatialBin
	} else {
		bin = b.ctx.Manager.NewSpatialBin(idx)
		b.active.ReplaceOrInsert(activeBin{bin})
		if n := b.active.Len(); n > b.maxActive {
			b.maxActive = n
		}
	}
	b.ctx.Manager.AggregateSpatialBin(o, bin)
	b.finalized.Delete(binKey(idx))
	b.numObs++
}

func (b *SpatialBinner) endSlice() {
	var keys []binKey
	b.finalized.Ascend(func(i btree.Item) bool {
		keys = append(keys, i.(binKey))
		return true
	})
	b.finalized = btree.New(treeDegree)
	b.numSlices++
	b.emit(keys)
}

// emit completes the active bins with the given keys and hands them to
// the consumer.
func (b *SpatialBinner) emit(keys []binKey) {
	if len(keys) == 0 {
		return
	}
	bins := make([]*SpatialBin, 0, len(keys))
	for _, k := range keys {
		i := b.active.Delete(k)
		if i == nil {
			continue
		}
		bin := i.(activeBin).SpatialBin
		b.ctx.Manager.CompleteSpatialBin(bin)
		bins = append(bins, bin)
	}
	start := time.Now()
	err := b.consumer.ConsumeSpatialBins(b.ctx, bins)
	log := b.Log.WithFields(logrus.Fields{
		"slice": b.numSlices,
		"bins":  len(bins),
		"took":  time.Since(start),
	})
	if err != nil {
		log.WithError(err).Error("failed to consume spatial bins")
		b.errs = multierr.Append(b.errs, err)
		return
	}
	log.Debug("consumed spatial bins")
}

// Complete emits all bins that are still active. It returns the combined
// errors of every consumer call made by the binner.
func (b *SpatialBinner) Complete() error {
	var keys []binKey
	b.active.Ascend(func(i btree.Item) bool {
		keys = append(keys, binKey(itemIndex(i)))
		return true
	})
	b.emit(keys)
	b.Log.WithFields(logrus.Fields{
		"observations": b.numObs,
		"slices":       b.numSlices,
		"max_active":   b.maxActive,
	}).Debug("flushed active bins")
	return b.errs
}

// Errors returns the errors collected from the consumer so far.
func (b *SpatialBinner) Errors() []error { return multierr.Errors(b.errs) }

// NumObservations returns the number of observations binned so far.
func (b *SpatialBinner) NumObservations() int { return b.numObs }

// NumActive returns the number of bins currently held in memory.
func (b *SpatialBinner) NumActive() int { return b.active.Len() }

// MaxActive returns the largest number of bins held in memory at once.
func (b *SpatialBinner) MaxActive() int { return b.maxActive }

// Context returns the binning context.
func (b *SpatialBinner) Context() *BinningContext { return b.ctx }

// ProcessProduct bins the pixels of src within rect, sliceHeight rows at a
// time, and completes the binner. It returns the number of observations
// read. Consumer errors are returned after all slices have been
// processed; source errors stop processing immediately.
func ProcessProduct(b *SpatialBinner, src *Source, rect image.Rectangle, sliceHeight int) (int, error) {
	n := 0
	for _, r := range SliceRectangles(rect, sliceHeight) {
		it, err := NewObservationIterator(b.ctx, src, r)
		if err != nil {
			return n, err
		}
		nn, err := b.ProcessSlice(it)
		n += nn
		if err != nil {
			return n, err
		}
	}
	return n, b.Complete()
}
