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

package aggregator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spatialmodel/binning"
)

// Config describes one aggregator.
type Config struct {
	// Type is one of AVG, AVG_OUTLIER, MIN_MAX, ON_MAX_SET, PERCENTILE or SUM.
	Type string

	// VarName is the variable to aggregate. For ON_MAX_SET it is the
	// variable whose maximum is tracked.
	VarName string

	// TargetName is the prefix of the feature names. It defaults to VarName.
	TargetName string

	// WeightCoeff is the exponent of the sample count used to weight
	// passes in AVG.
	WeightCoeff float64

	// OutputCounts adds the number of samples to the AVG output.
	OutputCounts bool

	// Percentage is the PERCENTILE to compute.
	Percentage int

	// DeviationFactor is the number of standard deviations beyond which
	// AVG_OUTLIER drops a sample.
	DeviationFactor float64

	// SetVarNames are the variables recorded by ON_MAX_SET.
	SetVarNames []string
}

// DefaultConfig returns a Config with the default parameters of every
// aggregator type.
func DefaultConfig() Config {
	return Config{
		WeightCoeff:     1,
		Percentage:      90,
		DeviationFactor: 3,
	}
}

// ParseConfigs decodes a JSON list of aggregator configurations. Fields
// that are not given keep the values of DefaultConfig.
func ParseConfigs(b []byte) ([]Config, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("aggregator: parsing configuration: %v", err)
	}
	o := make([]Config, len(raw))
	for i, r := range raw {
		o[i] = DefaultConfig()
		if err := json.Unmarshal(r, &o[i]); err != nil {
			return nil, fmt.Errorf("aggregator: parsing configuration %d: %v", i, err)
		}
	}
	return o, nil
}

// New creates the aggregator described by c.
func New(vars binning.VariableContext, c Config) (binning.Aggregator, error) {
	switch strings.ToUpper(c.Type) {
	case "AVG":
		return NewAverage(vars, c.VarName, c.TargetName, c.WeightCoeff, c.OutputCounts)
	case "AVG_OUTLIER":
		return NewAverageOutlierAware(vars, c.VarName, c.TargetName, c.DeviationFactor)
	case "MIN_MAX":
		return NewMinMax(vars, c.VarName, c.TargetName)
	case "ON_MAX_SET":
		return NewOnMaxSet(vars, c.VarName, c.TargetName, c.SetVarNames...)
	case "PERCENTILE":
		return NewPercentile(vars, c.VarName, c.TargetName, c.Percentage)
	case "SUM":
		return NewSum(vars, c.VarName, c.TargetName)
	}
	return nil, fmt.Errorf("aggregator: unknown aggregator type %q", c.Type)
}

// NewManager creates the aggregators described by configs and a
// BinManager that drives them.
func NewManager(vars binning.VariableContext, configs []Config) (*binning.BinManager, error) {
	aggs := make([]binning.Aggregator, len(configs))
	for i, c := range configs {
		a, err := New(vars, c)
		if err != nil {
			return nil, err
		}
		aggs[i] = a
	}
	return binning.NewBinManager(aggs...)
}
