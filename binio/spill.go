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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/spatialmodel/binning"
)

// SpillConsumer is a SpatialBinConsumer that writes spatial bins to
// compressed files in a directory instead of keeping them in memory. Bins
// are partitioned by grid row, RowsPerPart rows to a file, so that each
// partition can later be reduced to temporal bins on its own. It is safe
// for concurrent use.
type SpillConsumer struct {
	Dir         string
	RowsPerPart int

	grid  binning.PlanetaryGrid
	mu    sync.Mutex
	files map[int]*os.File
}

// NewSpillConsumer creates a SpillConsumer writing to dir, which is created
// if it does not exist.
func NewSpillConsumer(dir string, grid binning.PlanetaryGrid, rowsPerPart int) (*SpillConsumer, error) {
	if rowsPerPart < 1 {
		return nil, fmt.Errorf("binio: rows per part must be positive, got %d", rowsPerPart)
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("binio: creating spill directory: %v", err)
	}
	return &SpillConsumer{
		Dir:         dir,
		RowsPerPart: rowsPerPart,
		grid:        grid,
		files:       make(map[int]*os.File),
	}, nil
}

func (s *SpillConsumer) partPath(part int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("spatial-%06d.bin.zst", part))
}

// ConsumeSpatialBins implements binning.SpatialBinConsumer. Each call
// appends one compressed frame to every partition file it touches.
func (s *SpillConsumer) ConsumeSpatialBins(_ *binning.BinningContext, bins []*binning.SpatialBin) error {
	parts := make(map[int][]*binning.SpatialBin)
	for _, b := range bins {
		p := s.grid.RowIndex(b.Index) / s.RowsPerPart
		parts[p] = append(parts[p], b)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, pb := range parts {
		f, ok := s.files[p]
		if !ok {
			var err error
			f, err = os.Create(s.partPath(p))
			if err != nil {
				return fmt.Errorf("binio: creating spill file: %v", err)
			}
			s.files[p] = f
		}
		if err := writeFrame(f, func(w io.Writer) error {
			for _, b := range pb {
				if err := WriteSpatialBin(w, b); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the partition files. It returns the paths of the files in
// increasing row order.
func (s *SpillConsumer) Close() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := make([]int, 0, len(s.files))
	for p := range s.files {
		parts = append(parts, p)
	}
	sort.Ints(parts)
	paths := make([]string, len(parts))
	var err error
	for i, p := range parts {
		paths[i] = s.partPath(p)
		if cerr := s.files[p].Close(); cerr != nil && err == nil {
			err = fmt.Errorf("binio: closing spill file: %v", cerr)
		}
	}
	s.files = make(map[int]*os.File)
	return paths, err
}

// writeFrame writes one zstd frame to w holding whatever f writes.
func writeFrame(w io.Writer, f func(io.Writer) error) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("binio: %v", err)
	}
	bw := bufio.NewWriter(enc)
	if err := f(bw); err != nil {
		enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("binio: %v", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("binio: %v", err)
	}
	return nil
}

// ReadSpatialPart reads all spatial bins of a file written by a
// SpillConsumer, sorted by bin index.
func ReadSpatialPart(path string) ([]*binning.SpatialBin, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("binio: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("binio: %v", err)
	}
	defer dec.Close()
	r := bufio.NewReader(dec)
	var bins []*binning.SpatialBin
	for {
		b, err := ReadSpatialBin(r)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("binio: %s: %v", path, err)
		}
		bins = append(bins, b)
	}
	sort.SliceStable(bins, func(i, j int) bool { return bins[i].Index < bins[j].Index })
	return bins, nil
}

// BinSpatialPart reduces the spatial bins of a spill file to temporal
// bins in increasing index order.
func BinSpatialPart(path string, tb *binning.TemporalBinner) ([]*binning.TemporalBin, error) {
	bins, err := ReadSpatialPart(path)
	if err != nil {
		return nil, err
	}
	var out []*binning.TemporalBin
	err = binning.GroupByIndex(bins, func(index uint64, group []*binning.SpatialBin) error {
		t, err := tb.ProcessSpatialBins(index, group)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

// WriteTemporalPart writes bins to a compressed file at path.
func WriteTemporalPart(path string, bins []*binning.TemporalBin) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("binio: %v", err)
	}
	err = writeFrame(f, func(w io.Writer) error {
		for _, b := range bins {
			if err := WriteTemporalBin(w, b); err != nil {
				return err
			}
		}
		return nil
	})
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("binio: %v", cerr)
	}
	return err
}
