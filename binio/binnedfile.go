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
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/binning"
)

// Names of the variables of a binned file that are not features.
const (
	BinNumVar    = "bin_num"
	NumObsVar    = "nobs"
	NumScenesVar = "nscenes"
	RowBeginVar  = "row_begin"
	RowExtentVar = "row_extent"
	RowStartVar  = "row_start_num"
	RowMaxVar    = "row_max"
)

var reservedVars = map[string]bool{
	BinNumVar: true, NumObsVar: true, NumScenesVar: true,
	RowBeginVar: true, RowExtentVar: true, RowStartVar: true, RowMaxVar: true,
}

// BinnedFileWriter writes temporal bins to a NetCDF file laid out like the
// SeaDAS level-3 binned format: one entry per bin that has data, sorted by
// bin number, and a row index giving where each grid row's bins are.
type BinnedFileWriter struct {
	f        *os.File
	cf       *cdf.File
	grid     binning.PlanetaryGrid
	features []string
	numBins  int
	n        int
	last     uint64
	begin    []int32
	extent   []int32
}

// CreateBinnedFile creates a binned file at path that will hold numBins
// temporal bins of the grid and temporal features of ctx. attrs are
// written as global attributes.
func CreateBinnedFile(path string, ctx *binning.BinningContext, numBins int, attrs map[string]string) (*BinnedFileWriter, error) {
	if numBins < 1 {
		return nil, fmt.Errorf("binio: a binned file needs at least one bin")
	}
	features := ctx.Manager.TemporalFeatureNames()
	for _, name := range features {
		if reservedVars[name] {
			return nil, fmt.Errorf("binio: feature name %q is reserved", name)
		}
		if strings.Contains(name, ",") {
			return nil, fmt.Errorf("binio: feature name %q contains a comma", name)
		}
	}
	numRows := ctx.Grid.NumRows()
	h := cdf.NewHeader([]string{"bins", "rows"}, []int{numBins, numRows})
	h.AddAttribute("", "comment", "Level-3 binned data")
	h.AddAttribute("", "num_rows", []int32{int32(numRows)})
	h.AddAttribute("", "features", strings.Join(features, ","))
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.AddAttribute("", k, attrs[k])
	}
	for _, v := range []string{BinNumVar, NumObsVar, NumScenesVar} {
		h.AddVariable(v, []string{"bins"}, []int32{0})
	}
	for _, name := range features {
		h.AddVariable(name, []string{"bins"}, []float32{0})
	}
	for _, v := range []string{RowBeginVar, RowExtentVar, RowStartVar, RowMaxVar} {
		h.AddVariable(v, []string{"rows"}, []int32{0})
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("binio: %v", err)
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("binio: creating binned file: %v", err)
	}
	w := &BinnedFileWriter{
		f:        f,
		cf:       cf,
		grid:     ctx.Grid,
		features: features,
		numBins:  numBins,
		begin:    make([]int32, numRows),
		extent:   make([]int32, numRows),
	}
	for i := range w.begin {
		w.begin[i] = -1
	}
	return w, nil
}

// Write appends bins to the file. Bins must be sorted by index, within and
// across calls.
func (w *BinnedFileWriter) Write(bins []*binning.TemporalBin) error {
	if len(bins) == 0 {
		return nil
	}
	if w.n+len(bins) > w.numBins {
		return fmt.Errorf("binio: binned file was created for %d bins but got %d", w.numBins, w.n+len(bins))
	}
	num := make([]int32, len(bins))
	nobs := make([]int32, len(bins))
	nscenes := make([]int32, len(bins))
	features := make([][]float32, len(w.features))
	for j := range features {
		features[j] = make([]float32, len(bins))
	}
	for i, b := range bins {
		if (w.n > 0 || i > 0) && b.Index <= w.last {
			return fmt.Errorf("%v: %d after %d", binning.ErrBinOrder, b.Index, w.last)
		}
		if len(b.Features) != len(w.features) {
			return fmt.Errorf("binio: bin %d has %d features, want %d", b.Index, len(b.Features), len(w.features))
		}
		w.last = b.Index
		row := w.grid.RowIndex(b.Index)
		if w.extent[row] == 0 {
			w.begin[row] = int32(w.n + i)
		}
		w.extent[row]++
		num[i] = int32(b.Index)
		nobs[i] = int32(b.NumObs)
		nscenes[i] = int32(b.NumPasses)
		for j, v := range b.Features {
			features[j][i] = v
		}
	}
	// The strider reports io.EOF once it reaches end, so end is exclusive.
	start, end := []int{w.n}, []int{w.n + len(bins)}
	write := func(v string, data interface{}) error {
		if _, err := w.cf.Writer(v, start, end).Write(data); err != nil {
			return fmt.Errorf("binio: writing %s: %v", v, err)
		}
		return nil
	}
	if err := write(BinNumVar, num); err != nil {
		return err
	}
	if err := write(NumObsVar, nobs); err != nil {
		return err
	}
	if err := write(NumScenesVar, nscenes); err != nil {
		return err
	}
	for j, name := range w.features {
		if err := write(name, features[j]); err != nil {
			return err
		}
	}
	w.n += len(bins)
	return nil
}

// Close writes the row index and closes the file.
func (w *BinnedFileWriter) Close() error {
	defer w.f.Close()
	if w.n != w.numBins {
		return fmt.Errorf("binio: binned file was created for %d bins but only %d were written", w.numBins, w.n)
	}
	numRows := len(w.begin)
	startNum := make([]int32, numRows)
	maxCols := make([]int32, numRows)
	for row := range startNum {
		startNum[row] = int32(w.grid.FirstBinIndex(row))
		maxCols[row] = int32(w.grid.NumCols(row))
	}
	for _, v := range []struct {
		name string
		data []int32
	}{
		{RowBeginVar, w.begin},
		{RowExtentVar, w.extent},
		{RowStartVar, startNum},
		{RowMaxVar, maxCols},
	} {
		end := w.cf.Header.Lengths(v.name)
		if _, err := w.cf.Writer(v.name, make([]int, len(end)), end).Write(v.data); err != nil {
			return fmt.Errorf("binio: writing %s: %v", v.name, err)
		}
	}
	if err := cdf.UpdateNumRecs(w.f); err != nil {
		return fmt.Errorf("binio: %v", err)
	}
	return w.f.Close()
}

// WriteBinnedFile writes bins, which must be sorted by index, to a new
// binned file at path.
func WriteBinnedFile(path string, ctx *binning.BinningContext, bins []*binning.TemporalBin, attrs map[string]string) error {
	w, err := CreateBinnedFile(path, ctx, len(bins), attrs)
	if err != nil {
		return err
	}
	if err := w.Write(bins); err != nil {
		w.f.Close()
		return err
	}
	return w.Close()
}

// BinnedFile is a binned file opened for reading. It is a
// TemporalBinSource whose parts each cover RowsPerPart grid rows.
type BinnedFile struct {
	NumRows      int
	NumBins      int
	FeatureNames []string

	// RowsPerPart is the number of grid rows read at a time.
	RowsPerPart int

	f      *os.File
	cf     *cdf.File
	begin  []int32
	extent []int32
	parts  [][2]int
}

// OpenBinnedFile opens a file written by a BinnedFileWriter.
func OpenBinnedFile(path string) (*BinnedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("binio: %v", err)
	}
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("binio: opening binned file %s: %v", path, err)
	}
	b := &BinnedFile{f: f, cf: cf, RowsPerPart: 256}
	h := cf.Header
	rows, ok := h.GetAttribute("", "num_rows").([]int32)
	if !ok || len(rows) != 1 {
		f.Close()
		return nil, fmt.Errorf("binio: %s is not a binned file: missing num_rows", path)
	}
	b.NumRows = int(rows[0])
	if l := h.Lengths(BinNumVar); len(l) == 1 {
		b.NumBins = l[0]
	} else {
		f.Close()
		return nil, fmt.Errorf("binio: %s is not a binned file: missing %s", path, BinNumVar)
	}
	if s, ok := h.GetAttribute("", "features").(string); ok && s != "" {
		b.FeatureNames = strings.Split(s, ",")
	}
	if b.begin, err = b.readInt32(RowBeginVar, 0, b.NumRows); err != nil {
		f.Close()
		return nil, err
	}
	if b.extent, err = b.readInt32(RowExtentVar, 0, b.NumRows); err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

// Attribute returns the global string attribute name, or "" if there is
// none.
func (b *BinnedFile) Attribute(name string) string {
	s, _ := b.cf.Header.GetAttribute("", name).(string)
	return s
}

func (b *BinnedFile) readInt32(v string, start, n int) ([]int32, error) {
	r := b.cf.Reader(v, []int{start}, []int{start + n - 1})
	if r == nil {
		return nil, fmt.Errorf("binio: binned file has no variable %s", v)
	}
	buf := make([]int32, n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("binio: reading %s: %v", v, err)
	}
	return buf, nil
}

func (b *BinnedFile) readFloat32(v string, start, n int) ([]float32, error) {
	r := b.cf.Reader(v, []int{start}, []int{start + n - 1})
	if r == nil {
		return nil, fmt.Errorf("binio: binned file has no variable %s", v)
	}
	buf := make([]float32, n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("binio: reading %s: %v", v, err)
	}
	return buf, nil
}

// Open implements binning.TemporalBinSource. Each part holds the bins of
// up to RowsPerPart consecutive grid rows; rows without bins are skipped.
func (b *BinnedFile) Open() (int, error) {
	step := b.RowsPerPart
	if step < 1 {
		step = 1
	}
	b.parts = nil
	for r0 := 0; r0 < b.NumRows; r0 += step {
		first, last := -1, -1
		for row := r0; row < r0+step && row < b.NumRows; row++ {
			if b.extent[row] == 0 {
				continue
			}
			if first < 0 {
				first = int(b.begin[row])
			}
			last = int(b.begin[row] + b.extent[row])
		}
		if first >= 0 {
			b.parts = append(b.parts, [2]int{first, last})
		}
	}
	return len(b.parts), nil
}

// Part implements binning.TemporalBinSource.
func (b *BinnedFile) Part(i int) (binning.TemporalBinIterator, error) {
	start, n := b.parts[i][0], b.parts[i][1]-b.parts[i][0]
	bins, err := b.ReadBins(start, n)
	if err != nil {
		return nil, err
	}
	return binning.NewSliceIterator(bins), nil
}

// ReadBins reads n bins starting at position start in the file.
func (b *BinnedFile) ReadBins(start, n int) ([]*binning.TemporalBin, error) {
	if n <= 0 {
		return nil, nil
	}
	num, err := b.readInt32(BinNumVar, start, n)
	if err != nil {
		return nil, err
	}
	nobs, err := b.readInt32(NumObsVar, start, n)
	if err != nil {
		return nil, err
	}
	nscenes, err := b.readInt32(NumScenesVar, start, n)
	if err != nil {
		return nil, err
	}
	bins := make([]*binning.TemporalBin, n)
	for i := range bins {
		bins[i] = &binning.TemporalBin{
			Bin: binning.Bin{
				Index:    uint64(num[i]),
				NumObs:   int(nobs[i]),
				Features: binning.NewFloatVector(len(b.FeatureNames)),
			},
			NumPasses: int(nscenes[i]),
		}
	}
	for j, name := range b.FeatureNames {
		v, err := b.readFloat32(name, start, n)
		if err != nil {
			return nil, err
		}
		for i, f := range v {
			bins[i].Features[j] = f
		}
	}
	return bins, nil
}

// PartProcessed implements binning.TemporalBinSource.
func (b *BinnedFile) PartProcessed(int, binning.TemporalBinIterator) error { return nil }

// Close implements binning.TemporalBinSource.
func (b *BinnedFile) Close() error { return b.f.Close() }
