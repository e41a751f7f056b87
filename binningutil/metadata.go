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
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"
	"github.com/spatialmodel/binning"
	"github.com/spatialmodel/binning/internal/hash"
)

// SoftwareName is written to the metadata of output files.
const SoftwareName = "binning"

// Global attributes written by Run and read back by Format.
const (
	attrProductName  = "product_name"
	attrRegionBounds = "region_bounds"
	attrVariables    = "variables"
	attrMaskExpr     = "mask_expr"
	attrAggregators  = "aggregators"
)

// metadata returns the global attributes of the output files of a run
// over numProducts products within bounds. Properties read from
// c.MetadataFile are added; the standard attributes take precedence.
func (c *Config) metadata(bounds *geom.Bounds, numProducts int) (map[string]string, error) {
	attrs := make(map[string]string)
	if c.MetadataFile != "" {
		props := make(map[string]interface{})
		if _, err := toml.DecodeFile(c.MetadataFile, &props); err != nil {
			return nil, fmt.Errorf("binningutil: reading MetadataFile: %v", err)
		}
		for k, v := range props {
			attrs[k] = fmt.Sprint(v)
		}
	}
	vars, err := json.Marshal(c.Vars())
	if err != nil {
		return nil, fmt.Errorf("binningutil: %v", err)
	}
	aggs, err := json.Marshal(c.Aggregators)
	if err != nil {
		return nil, fmt.Errorf("binningutil: %v", err)
	}
	attrs[attrProductName] = c.OutputFile
	attrs["software_name"] = SoftwareName
	attrs["software_version"] = binning.Version
	attrs["processing_time"] = time.Now().UTC().Format(time.RFC3339)
	attrs["config_hash"] = hash.Hash(c)
	attrs["num_products"] = fmt.Sprint(numProducts)
	attrs[attrRegionBounds] = fmt.Sprintf("%g,%g,%g,%g", bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	attrs[attrVariables] = string(vars)
	if c.MaskExpr != "" {
		attrs[attrMaskExpr] = c.MaskExpr
	}
	attrs[attrAggregators] = string(aggs)
	return attrs, nil
}
