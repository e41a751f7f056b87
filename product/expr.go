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

package product

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/spatialmodel/binning"
)

// ExpressionFunctions are the functions available in band expressions.
var ExpressionFunctions = map[string]govaluate.ExpressionFunction{
	"exp":   unaryFunc("exp", math.Exp),
	"log":   unaryFunc("log", math.Log),
	"log10": unaryFunc("log10", math.Log10),
	"sqrt":  unaryFunc("sqrt", math.Sqrt),
	"abs":   unaryFunc("abs", math.Abs),
	"isnan": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("product: got %d arguments for function 'isnan', but needs 1", len(arg))
		}
		f, ok := arg[0].(float64)
		return ok && math.IsNaN(f), nil
	},
}

func unaryFunc(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("product: got %d arguments for function '%s', but needs 1", len(arg), name)
		}
		x, ok := arg[0].(float64)
		if !ok {
			return nil, fmt.Errorf("product: function '%s' needs a number, got %v", name, arg[0])
		}
		return f(x), nil
	}
}

// ExprRaster is a raster computed pixel by pixel from an expression over
// other bands.
type ExprRaster struct {
	expr   *govaluate.EvaluableExpression
	names  []string
	bands  []binning.Raster
	bounds image.Rectangle
}

// NewExprRaster parses expr. Every variable in expr must name one of bands.
func NewExprRaster(expr string, bands map[string]binning.Raster) (*ExprRaster, error) {
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, ExpressionFunctions)
	if err != nil {
		return nil, fmt.Errorf("parsing expression %q: %v", expr, err)
	}
	r := &ExprRaster{expr: e}
	seen := make(map[string]bool)
	for _, v := range e.Vars() {
		if !seen[v] {
			seen[v] = true
			r.names = append(r.names, v)
		}
	}
	sort.Strings(r.names)
	first := true
	for _, n := range r.names {
		b, ok := bands[n]
		if !ok {
			return nil, fmt.Errorf("expression %q: unknown band %q", expr, n)
		}
		r.bands = append(r.bands, b)
		if first {
			r.bounds = b.Bounds()
			first = false
		} else {
			r.bounds = r.bounds.Intersect(b.Bounds())
		}
	}
	if first {
		// A constant expression covers any raster.
		r.bounds = image.Rect(math.MinInt32, math.MinInt32, math.MaxInt32, math.MaxInt32)
	}
	return r, nil
}

// Bounds implements binning.Raster.
func (r *ExprRaster) Bounds() image.Rectangle { return r.bounds }

// Value implements binning.Raster. Pixels where the expression cannot be
// evaluated are NaN. Boolean results are 1 or 0.
func (r *ExprRaster) Value(x, y int) (float32, error) {
	params := make(map[string]interface{}, len(r.names))
	for i, b := range r.bands {
		v, err := b.Value(x, y)
		if err != nil {
			return 0, err
		}
		params[r.names[i]] = float64(v)
	}
	result, err := r.expr.Evaluate(params)
	if err != nil {
		return float32(math.NaN()), nil
	}
	switch t := result.(type) {
	case float64:
		return float32(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return float32(math.NaN()), nil
}

// ExprMask is a binning.Mask selecting the pixels where an expression is
// true or non-zero.
type ExprMask struct {
	*ExprRaster
}

// NewExprMask parses expr. Every variable in expr must name one of bands.
func NewExprMask(expr string, bands map[string]binning.Raster) (*ExprMask, error) {
	r, err := NewExprRaster(expr, bands)
	if err != nil {
		return nil, err
	}
	return &ExprMask{ExprRaster: r}, nil
}

// Valid implements binning.Mask.
func (m *ExprMask) Valid(x, y int) (bool, error) {
	if !(image.Point{X: x, Y: y}).In(m.bounds) {
		return false, nil
	}
	v, err := m.Value(x, y)
	if err != nil {
		return false, err
	}
	return v != 0 && v == v, nil
}
