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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/binning"
	"github.com/spatialmodel/binning/aggregator"
	"github.com/spatialmodel/binning/binio"
	"github.com/spatialmodel/binning/product"
)

// Format reprojects the bins of a binned file written by Run and writes
// the output map, and optionally quick-look images, to outputFile.
// Log messages are written to out and to logFile.
//
// region is a GeoJSON or shapefile path or "lonMin,latMin,lonMax,latMax".
// If it is empty, the region of the run that created the binned file is
// used.
func Format(binnedFile, region, outputFile, logFile string, png bool, rowsPerPart int, out io.Writer) error {
	f, err := os.Create(logFile)
	if err != nil {
		return fmt.Errorf("binningutil: problem creating log file: %v", err)
	}
	defer f.Close()
	log := logrus.New()
	log.Out = io.MultiWriter(out, f)

	bf, err := binio.OpenBinnedFile(binnedFile)
	if err != nil {
		return err
	}
	if rowsPerPart > 0 {
		bf.RowsPerPart = rowsPerPart
	}
	ctx, err := binnedFileContext(bf)
	if err != nil {
		bf.Close()
		return err
	}
	if region == "" {
		region = bf.Attribute(attrRegionBounds)
	}
	if region == "" {
		bf.Close()
		return fmt.Errorf("binningutil: %s has no %s attribute; a Region must be specified", binnedFile, attrRegionBounds)
	}
	r, err := product.ReadRegion(region)
	if err != nil {
		bf.Close()
		return err
	}
	attrs := binnedFileAttributes(bf)
	attrs[attrRegionBounds] = fmt.Sprintf("%g,%g,%g,%g", r.Bounds().Min.X, r.Bounds().Min.Y, r.Bounds().Max.X, r.Bounds().Max.Y)
	attrs[attrProductName] = outputFile
	attrs["processing_time"] = time.Now().UTC().Format(time.RFC3339)
	attrs["software_version"] = binning.Version
	log.WithFields(logrus.Fields{
		"file": binnedFile,
		"bins": bf.NumBins,
		"rows": bf.NumRows,
	}).Info("formatting binned data")
	return format(ctx, bf, r.Bounds(), attrs, outputFile, png, log)
}

// binnedFileContext rebuilds the binning context of the run that wrote bf
// from its attributes.
func binnedFileContext(bf *binio.BinnedFile) (*binning.BinningContext, error) {
	var vars []binning.Variable
	if err := json.Unmarshal([]byte(bf.Attribute(attrVariables)), &vars); err != nil {
		return nil, fmt.Errorf("binningutil: binned file has invalid %s attribute: %v", attrVariables, err)
	}
	aggs, err := aggregator.ParseConfigs([]byte(bf.Attribute(attrAggregators)))
	if err != nil {
		return nil, fmt.Errorf("binningutil: binned file has invalid %s attribute: %v", attrAggregators, err)
	}
	ctx, err := newContext(bf.NumRows, vars, bf.Attribute(attrMaskExpr), aggs)
	if err != nil {
		return nil, err
	}
	if have, want := bf.FeatureNames, ctx.Manager.TemporalFeatureNames(); !reflect.DeepEqual(have, want) {
		return nil, fmt.Errorf("binningutil: binned file features %v do not match the aggregators' %v", have, want)
	}
	return ctx, nil
}

// binnedFileAttributes returns the metadata of bf that is carried over to
// the output map.
func binnedFileAttributes(bf *binio.BinnedFile) map[string]string {
	attrs := make(map[string]string)
	for _, name := range []string{"software_name", "config_hash", "num_products", attrVariables, attrMaskExpr, attrAggregators} {
		if v := bf.Attribute(name); v != "" {
			attrs[name] = v
		}
	}
	return attrs
}
