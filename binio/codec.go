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

// Package binio reads and writes spatial and temporal bins: a compact
// binary encoding for intermediate files and a binned NetCDF file format
// for the final temporal bins.
package binio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spatialmodel/binning"
)

var order = binary.BigEndian

// WriteSpatialBin writes b to w as
// [index][numObs][numFeatures][features...][numVectors][length, values...]...
func WriteSpatialBin(w io.Writer, b *binning.SpatialBin) error {
	if err := binary.Write(w, order, b.Index); err != nil {
		return fmt.Errorf("binio: writing spatial bin %d: %v", b.Index, err)
	}
	if err := writeFeatures(w, b.NumObs, b.Features); err != nil {
		return fmt.Errorf("binio: writing spatial bin %d: %v", b.Index, err)
	}
	if err := binary.Write(w, order, int32(len(b.Vectors))); err != nil {
		return fmt.Errorf("binio: writing spatial bin %d: %v", b.Index, err)
	}
	for _, v := range b.Vectors {
		if err := binary.Write(w, order, int32(len(v.Values))); err != nil {
			return fmt.Errorf("binio: writing spatial bin %d: %v", b.Index, err)
		}
		if err := binary.Write(w, order, v.Values); err != nil {
			return fmt.Errorf("binio: writing spatial bin %d: %v", b.Index, err)
		}
	}
	return nil
}

// ReadSpatialBin reads a bin written by WriteSpatialBin. It returns io.EOF
// if r is at its end before the bin starts.
func ReadSpatialBin(r io.Reader) (*binning.SpatialBin, error) {
	b := new(binning.SpatialBin)
	if err := binary.Read(r, order, &b.Index); err != nil {
		return nil, err
	}
	var err error
	b.NumObs, b.Features, err = readFeatures(r)
	if err != nil {
		return nil, fmt.Errorf("binio: reading spatial bin %d: %v", b.Index, err)
	}
	var n int32
	if err := binary.Read(r, order, &n); err != nil {
		return nil, fmt.Errorf("binio: reading spatial bin %d: %v", b.Index, unexpected(err))
	}
	if n < 0 {
		return nil, fmt.Errorf("binio: reading spatial bin %d: negative vector count", b.Index)
	}
	if n > 0 {
		b.Vectors = make([]*binning.GrowableVector, n)
	}
	for i := range b.Vectors {
		var l int32
		if err := binary.Read(r, order, &l); err != nil {
			return nil, fmt.Errorf("binio: reading spatial bin %d: %v", b.Index, unexpected(err))
		}
		if l < 0 {
			return nil, fmt.Errorf("binio: reading spatial bin %d: negative vector length", b.Index)
		}
		v := &binning.GrowableVector{Values: make([]float32, l)}
		if err := binary.Read(r, order, v.Values); err != nil {
			return nil, fmt.Errorf("binio: reading spatial bin %d: %v", b.Index, unexpected(err))
		}
		b.Vectors[i] = v
	}
	return b, nil
}

// WriteTemporalBin writes b to w as
// [index][numObs][numFeatures][features...][numPasses].
func WriteTemporalBin(w io.Writer, b *binning.TemporalBin) error {
	if err := binary.Write(w, order, b.Index); err != nil {
		return fmt.Errorf("binio: writing temporal bin %d: %v", b.Index, err)
	}
	if err := writeFeatures(w, b.NumObs, b.Features); err != nil {
		return fmt.Errorf("binio: writing temporal bin %d: %v", b.Index, err)
	}
	if err := binary.Write(w, order, int32(b.NumPasses)); err != nil {
		return fmt.Errorf("binio: writing temporal bin %d: %v", b.Index, err)
	}
	return nil
}

// ReadTemporalBin reads a bin written by WriteTemporalBin. It returns
// io.EOF if r is at its end before the bin starts.
func ReadTemporalBin(r io.Reader) (*binning.TemporalBin, error) {
	b := new(binning.TemporalBin)
	if err := binary.Read(r, order, &b.Index); err != nil {
		return nil, err
	}
	var err error
	b.NumObs, b.Features, err = readFeatures(r)
	if err != nil {
		return nil, fmt.Errorf("binio: reading temporal bin %d: %v", b.Index, err)
	}
	var n int32
	if err := binary.Read(r, order, &n); err != nil {
		return nil, fmt.Errorf("binio: reading temporal bin %d: %v", b.Index, unexpected(err))
	}
	b.NumPasses = int(n)
	return b, nil
}

func writeFeatures(w io.Writer, numObs int, f binning.FloatVector) error {
	if err := binary.Write(w, order, [2]int32{int32(numObs), int32(len(f))}); err != nil {
		return err
	}
	return binary.Write(w, order, []float32(f))
}

func readFeatures(r io.Reader) (int, binning.FloatVector, error) {
	var h [2]int32
	if err := binary.Read(r, order, &h); err != nil {
		return 0, nil, unexpected(err)
	}
	if h[1] < 0 {
		return 0, nil, fmt.Errorf("negative feature count")
	}
	f := make(binning.FloatVector, h[1])
	if err := binary.Read(r, order, []float32(f)); err != nil {
		return 0, nil, unexpected(err)
	}
	return int(h[0]), f, nil
}

// unexpected converts io.EOF in the middle of a bin to io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
