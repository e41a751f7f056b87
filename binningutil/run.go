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

package binningutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/binning"
	"github.com/spatialmodel/binning/binio"
	"github.com/spatialmodel/binning/formatter"
	"github.com/spatialmodel/binning/product"
	"go.uber.org/multierr"
)

// extentStep is the spacing in pixels of the edge pixels used to compute
// product extents.
const extentStep = 16

// Run bins the source products of c and writes the results. Log messages
// are written to out and to c.LogFile.
//
// The output is a NetCDF map of the output features of every aggregator
// over the region's pixel rectangle of the global grid. If
// c.OutputBinnedData is true, the temporal bins are also written to a
// binned file next to the output file. If c.OutputPNG is true, a quick-look
// image and a legend are written for each output feature.
//
// Nothing is written if no bins were generated.
func Run(c *Config, out io.Writer) error {
	logfile, err := os.Create(c.LogFile)
	if err != nil {
		return fmt.Errorf("binningutil: problem creating log file: %v", err)
	}
	defer logfile.Close()
	log := logrus.New()
	log.Out = io.MultiWriter(out, logfile)

	start := time.Now()
	paths, err := globProducts(c.SourceProducts)
	if err != nil {
		return err
	}
	products, err := openProducts(paths, c, log)
	if err != nil {
		return err
	}
	defer func() {
		for _, p := range products {
			p.Close()
		}
	}()
	if len(products) == 0 {
		log.Warn("no source products were acquired in the requested period; nothing was written")
		return nil
	}

	var region *binning.PolygonRegion
	if c.Region != "" {
		region, err = product.ReadRegion(c.Region)
	} else {
		region, err = product.UnionRegion(products, extentStep)
	}
	if err != nil {
		return err
	}
	ctx, err := c.BinningContext(region)
	if err != nil {
		return err
	}

	var spill *binio.SpillConsumer
	collector := binio.NewSpatialBinCollector()
	var consumer binning.SpatialBinConsumer = collector
	if c.SpillDir != "" {
		if spill, err = binio.NewSpillConsumer(c.SpillDir, ctx.Grid, c.RowsPerPart); err != nil {
			return err
		}
		consumer = spill
	}
	if err := binProducts(ctx, products, consumer, c, log); err != nil {
		if spill != nil {
			removeFiles(spill.Close())
		}
		return err
	}

	var src binning.TemporalBinSource
	var numBins int
	if spill != nil {
		src, numBins, err = binSpilled(ctx, spill, log)
	} else {
		src, numBins, err = binCollected(ctx, collector)
	}
	if err != nil {
		return err
	}
	if numBins == 0 {
		src.Close()
		log.Warn("no bins were generated; nothing was written")
		return nil
	}
	log.WithFields(logrus.Fields{
		"bins": numBins,
		"took": time.Since(start),
	}).Info("temporal binning complete")

	attrs, err := c.metadata(region.Bounds(), len(products))
	if err != nil {
		src.Close()
		return err
	}
	if c.OutputBinnedData {
		binsPath := BinnedFilePath(c.OutputFile)
		if err := writeBinnedFile(binsPath, ctx, src, numBins, attrs); err != nil {
			return err
		}
		log.WithField("file", binsPath).Info("wrote binned data")
		bf, err := binio.OpenBinnedFile(binsPath)
		if err != nil {
			return err
		}
		bf.RowsPerPart = c.RowsPerPart
		src = bf
	}
	return format(ctx, src, region.Bounds(), attrs, c.OutputFile, c.OutputPNG, log)
}

// BinnedFilePath returns the path of the binned file written next to
// outputFile.
func BinnedFilePath(outputFile string) string {
	return strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + "-bins.nc"
}

// globProducts expands the glob patterns and returns the sorted list of
// matching files.
func globProducts(patterns []string) ([]string, error) {
	have := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("binningutil: invalid SourceProducts pattern %q: %v", pattern, err)
		}
		for _, m := range matches {
			if !have[m] {
				have[m] = true
				paths = append(paths, m)
			}
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("binningutil: no source products match %v", patterns)
	}
	sort.Strings(paths)
	return paths, nil
}

// openProducts opens the products at paths and keeps those acquired
// between c.Start and c.End.
func openProducts(paths []string, c *Config, log logrus.FieldLogger) ([]*product.Product, error) {
	var products []*product.Product
	for _, path := range paths {
		p, err := product.Open(path, c.CacheRows)
		if err != nil {
			for _, p := range products {
				p.Close()
			}
			return nil, err
		}
		if !p.InPeriod(c.Start, c.End) {
			log.WithField("product", p.Name).Info("skipping product outside of the requested period")
			p.Close()
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// binProducts spatially bins products concurrently, one SpatialBinner per
// product, sending the bins to consumer, which must be safe for
// concurrent use.
func binProducts(ctx *binning.BinningContext, products []*product.Product, consumer binning.SpatialBinConsumer, c *Config, log logrus.FieldLogger) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	sem := make(chan struct{}, c.Concurrency)
	for _, p := range products {
		wg.Add(1)
		sem <- struct{}{}
		go func(p *product.Product) {
			defer func() {
				<-sem
				wg.Done()
			}()
			plog := log.WithField("product", p.Name)
			start := time.Now()
			src, err := p.Source(ctx.Variables)
			if err == nil {
				b := binning.NewSpatialBinner(ctx, consumer)
				b.Log = plog
				var n int
				n, err = binning.ProcessProduct(b, src, p.Bounds(), c.SliceHeight)
				if err == nil {
					plog.WithFields(logrus.Fields{
						"observations": n,
						"max_active":   b.MaxActive(),
						"took":         time.Since(start),
					}).Info("spatial binning complete")
				}
			}
			if err != nil {
				plog.WithError(err).Error("spatial binning failed")
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("binningutil: %s: %v", p.Name, err))
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	return errs
}

// binCollected temporally bins the contents of collector.
func binCollected(ctx *binning.BinningContext, collector *binio.SpatialBinCollector) (binning.TemporalBinSource, int, error) {
	bins, err := collector.BinTemporally(binning.NewTemporalBinner(ctx))
	if err != nil {
		return nil, 0, err
	}
	collector.Clear()
	return &binio.ListSource{Parts: [][]*binning.TemporalBin{bins}}, len(bins), nil
}

// binSpilled temporally bins the spill files of spill one at a time,
// replacing each by a temporal part file.
func binSpilled(ctx *binning.BinningContext, spill *binio.SpillConsumer, log logrus.FieldLogger) (binning.TemporalBinSource, int, error) {
	paths, err := spill.Close()
	if err != nil {
		removeFiles(paths, nil)
		return nil, 0, err
	}
	tb := binning.NewTemporalBinner(ctx)
	var parts []string
	numBins := 0
	for i, path := range paths {
		bins, err := binio.BinSpatialPart(path, tb)
		if err == nil && len(bins) > 0 {
			part := filepath.Join(filepath.Dir(path), strings.Replace(filepath.Base(path), "spatial-", "temporal-", 1))
			if err = binio.WriteTemporalPart(part, bins); err == nil {
				parts = append(parts, part)
				numBins += len(bins)
			}
		}
		os.Remove(path)
		if err != nil {
			removeFiles(paths[i+1:], nil)
			removeFiles(parts, nil)
			return nil, 0, err
		}
	}
	src := binio.NewFileSource(parts...)
	src.Remove = true
	src.Log = log
	if numBins == 0 {
		removeFiles(parts, nil)
	}
	return src, numBins, nil
}

// writeBinnedFile copies the numBins bins of src to a new binned file at
// path.
func writeBinnedFile(path string, ctx *binning.BinningContext, src binning.TemporalBinSource, numBins int, attrs map[string]string) (err error) {
	w, err := binio.CreateBinnedFile(path, ctx, numBins, attrs)
	if err != nil {
		src.Close()
		return err
	}
	defer func() {
		if cerr := src.Close(); err == nil {
			err = cerr
		}
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	n, err := src.Open()
	if err != nil {
		return err
	}
	const batch = 4096
	for i := 0; i < n; i++ {
		part, err := src.Part(i)
		if err != nil {
			return err
		}
		bins := make([]*binning.TemporalBin, 0, batch)
		for {
			b, err := part.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return err
			}
			if bins = append(bins, b); len(bins) == batch {
				if err := w.Write(bins); err != nil {
					return err
				}
				bins = bins[:0]
			}
		}
		if err := w.Write(bins); err != nil {
			return err
		}
		if err := src.PartProcessed(i, part); err != nil {
			return err
		}
	}
	return nil
}

// format reprojects the bins of src onto the pixel rectangle of bounds and
// writes the output map, and optionally quick-look images, to outputFile.
func format(ctx *binning.BinningContext, src binning.TemporalBinSource, bounds *geom.Bounds, attrs map[string]string, outputFile string, png bool, log logrus.FieldLogger) error {
	start := time.Now()
	r := formatter.NewRasterRendererForBounds(ctx, bounds)
	if err := binning.Reproject(ctx, src, r); err != nil {
		return err
	}
	if err := formatter.WriteNetCDF(outputFile, r, attrs); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":   outputFile,
		"width":  r.Region.Dx(),
		"height": r.Region.Dy(),
		"took":   time.Since(start),
	}).Info("wrote output")
	if !png {
		return nil
	}
	base := strings.TrimSuffix(outputFile, filepath.Ext(outputFile))
	for i, name := range r.Names {
		band := r.Bands[i]
		imgPath := fmt.Sprintf("%s_%s.png", base, name)
		if err := formatter.WritePNGFile(imgPath, band); err != nil {
			return err
		}
		legendPath := fmt.Sprintf("%s_%s_legend.png", base, name)
		if err := formatter.WriteLegend(legendPath, name, formatter.ColorMap(band)); err != nil {
			return err
		}
		log.WithField("file", imgPath).Info("wrote image")
	}
	return nil
}

// removeFiles removes paths, ignoring err and any removal errors.
func removeFiles(paths []string, err error) {
	for _, p := range paths {
		os.Remove(p)
	}
}
