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
	"math"

	"github.com/spatialmodel/binning"
)

// Grid writes a description of the grid with numRows rows to w.
func Grid(numRows int, w io.Writer) error {
	g, err := binning.NewSEAGrid(numRows)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "rows: %d\nbins: %d\nresolution: %.3f km\n",
		g.NumRows(), g.NumBins(), math.Pi*binning.EarthRadius/float64(g.NumRows()))
	return err
}
