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
	"time"

	"github.com/cenkalti/backoff"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/binning"
)

// ListSource is a TemporalBinSource over parts held in memory.
type ListSource struct {
	Parts [][]*binning.TemporalBin
}

// Open implements binning.TemporalBinSource.
func (s *ListSource) Open() (int, error) { return len(s.Parts), nil }

// Part implements binning.TemporalBinSource.
func (s *ListSource) Part(i int) (binning.TemporalBinIterator, error) {
	return binning.NewSliceIterator(s.Parts[i]), nil
}

// PartProcessed implements binning.TemporalBinSource.
func (s *ListSource) PartProcessed(i int, _ binning.TemporalBinIterator) error { return nil }

// Close implements binning.TemporalBinSource.
func (s *ListSource) Close() error { return nil }

// FileSource is a TemporalBinSource over part files written by
// WriteTemporalPart, one part per file. Part files are removed once they
// have been processed if Remove is true.
type FileSource struct {
	Paths  []string
	Remove bool

	// MaxRetries is the number of times opening a part file is retried.
	MaxRetries uint64

	// Log receives retry messages. It defaults to the standard logger.
	Log logrus.FieldLogger

	open map[int]*filePart
}

// NewFileSource creates a FileSource over paths.
func NewFileSource(paths ...string) *FileSource {
	return &FileSource{
		Paths:      paths,
		MaxRetries: 3,
		Log:        logrus.StandardLogger(),
	}
}

// Open implements binning.TemporalBinSource.
func (s *FileSource) Open() (int, error) {
	s.open = make(map[int]*filePart)
	return len(s.Paths), nil
}

// Part implements binning.TemporalBinSource. Opening the file is retried
// with exponential backoff, except when it does not exist.
func (s *FileSource) Part(i int) (binning.TemporalBinIterator, error) {
	var f *os.File
	var permanent error
	err := backoff.RetryNotify(
		func() error {
			var err error
			f, err = os.Open(s.Paths[i])
			if os.IsNotExist(err) {
				permanent = err
				return nil
			}
			return err
		},
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.MaxRetries),
		func(err error, d time.Duration) {
			s.Log.WithError(err).Warnf("opening bin part %s: retrying in %v", s.Paths[i], d)
		},
	)
	if permanent != nil {
		err = permanent
	}
	if err != nil {
		return nil, fmt.Errorf("binio: opening part %d: %v", i, err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("binio: opening part %d: %v", i, err)
	}
	p := &filePart{f: f, dec: dec, r: bufio.NewReader(dec)}
	s.open[i] = p
	return p, nil
}

// PartProcessed implements binning.TemporalBinSource.
func (s *FileSource) PartProcessed(i int, _ binning.TemporalBinIterator) error {
	p, ok := s.open[i]
	if !ok {
		return nil
	}
	delete(s.open, i)
	if err := p.close(); err != nil {
		return err
	}
	if s.Remove {
		if err := os.Remove(s.Paths[i]); err != nil {
			return fmt.Errorf("binio: %v", err)
		}
	}
	return nil
}

// Close implements binning.TemporalBinSource.
func (s *FileSource) Close() error {
	var err error
	for i, p := range s.open {
		if cerr := p.close(); cerr != nil && err == nil {
			err = cerr
		}
		delete(s.open, i)
	}
	return err
}

type filePart struct {
	f   *os.File
	dec *zstd.Decoder
	r   *bufio.Reader
}

func (p *filePart) Next() (*binning.TemporalBin, error) {
	b, err := ReadTemporalBin(p.r)
	if err == io.EOF {
		return nil, io.EOF
	} else if err != nil {
		return nil, fmt.Errorf("binio: %s: %v", p.f.Name(), err)
	}
	return b, nil
}

func (p *filePart) close() error {
	p.dec.Close()
	if err := p.f.Close(); err != nil {
		return fmt.Errorf("binio: %v", err)
	}
	return nil
}
