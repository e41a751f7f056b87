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

package formatter

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ColorMap returns the color map used for quick-look images of band,
// scaled to the range of its valid values.
func ColorMap(band *sparse.DenseArray) palette.ColorMap {
	valid := make([]float64, 0, len(band.Elements))
	for _, v := range band.Elements {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			valid = append(valid, v)
		}
	}
	cm := moreland.ExtendedBlackBody()
	min, max := 0.0, 1.0
	if len(valid) > 0 {
		min, max = floats.Min(valid), floats.Max(valid)
	}
	if max <= min {
		max = min + 1
	}
	cm.SetMin(min)
	cm.SetMax(max)
	return cm
}

// Image colors band with cm. Pixels without data are transparent.
func Image(band *sparse.DenseArray, cm palette.ColorMap) (image.Image, error) {
	h, w := band.Shape[0], band.Shape[1]
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := band.Get(y, x)
			if math.IsNaN(v) {
				img.Set(x, y, color.Transparent)
				continue
			}
			v = math.Max(cm.Min(), math.Min(cm.Max(), v))
			c, err := cm.At(v)
			if err != nil {
				return nil, fmt.Errorf("formatter: coloring %g: %v", v, err)
			}
			img.Set(x, y, c)
		}
	}
	return img, nil
}

// WritePNG writes a quick-look image of band to w.
func WritePNG(w io.Writer, band *sparse.DenseArray) error {
	img, err := Image(band, ColorMap(band))
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("formatter: %v", err)
	}
	return nil
}

// WritePNGFile writes a quick-look image of band to path.
func WritePNGFile(path string, band *sparse.DenseArray) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("formatter: %v", err)
	}
	if err := WritePNG(f, band); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteLegend writes a color bar for cm to path. The image format is
// chosen from the file extension.
func WriteLegend(path, title string, cm palette.ColorMap) error {
	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("formatter: %v", err)
	}
	p.Add(&plotter.ColorBar{ColorMap: cm})
	p.HideY()
	p.X.Padding = 0
	p.Title.Text = title
	if err := p.Save(4*vg.Inch, 1*vg.Inch, path); err != nil {
		return fmt.Errorf("formatter: writing legend: %v", err)
	}
	return nil
}
