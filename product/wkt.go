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
	"strconv"
	"strings"
	"unicode"

	"github.com/ctessum/geom"
)

// isWKTPolygon reports whether s looks like a WKT polygon or multipolygon
// rather than a file name.
func isWKTPolygon(s string) bool {
	p := &wktParser{s: s}
	switch strings.ToUpper(p.word()) {
	case "POLYGON", "MULTIPOLYGON":
	default:
		return false
	}
	p.skip()
	return strings.HasPrefix(p.s[p.i:], "(") || p.empty()
}

// decodeWKTPolygon parses a WKT POLYGON or MULTIPOLYGON. Z and M
// ordinates are not supported.
func decodeWKTPolygon(s string) (geom.Polygonal, error) {
	p := &wktParser{s: s}
	tag := strings.ToUpper(p.word())
	var g geom.Polygonal
	var err error
	switch tag {
	case "POLYGON":
		if p.empty() {
			return nil, fmt.Errorf("product: empty WKT polygon")
		}
		g, err = p.polygon()
	case "MULTIPOLYGON":
		if p.empty() {
			return nil, fmt.Errorf("product: empty WKT multipolygon")
		}
		var mp geom.MultiPolygon
		err = p.list(func() error {
			pg, err := p.polygon()
			mp = append(mp, pg)
			return err
		})
		g = mp
	default:
		return nil, fmt.Errorf("product: unsupported WKT geometry %q", tag)
	}
	if err != nil {
		return nil, err
	}
	if p.skip(); p.i != len(p.s) {
		return nil, p.errorf("trailing text")
	}
	return g, nil
}

type wktParser struct {
	s string
	i int
}

func (p *wktParser) errorf(msg string) error {
	return fmt.Errorf("product: invalid WKT at offset %d: %s", p.i, msg)
}

func (p *wktParser) skip() {
	for p.i < len(p.s) && unicode.IsSpace(rune(p.s[p.i])) {
		p.i++
	}
}

func (p *wktParser) word() string {
	p.skip()
	j := p.i
	for p.i < len(p.s) && unicode.IsLetter(rune(p.s[p.i])) {
		p.i++
	}
	return p.s[j:p.i]
}

func (p *wktParser) empty() bool {
	j := p.i
	if strings.EqualFold(p.word(), "EMPTY") {
		return true
	}
	p.i = j
	return false
}

func (p *wktParser) expect(c byte) error {
	p.skip()
	if p.i >= len(p.s) || p.s[p.i] != c {
		return p.errorf(fmt.Sprintf("expected %q", c))
	}
	p.i++
	return nil
}

// list parses a parenthesized, comma separated list, calling item for
// each element.
func (p *wktParser) list(item func() error) error {
	if err := p.expect('('); err != nil {
		return err
	}
	for {
		if err := item(); err != nil {
			return err
		}
		p.skip()
		if p.i < len(p.s) && p.s[p.i] == ',' {
			p.i++
			continue
		}
		return p.expect(')')
	}
}

func (p *wktParser) polygon() (geom.Polygon, error) {
	var pg geom.Polygon
	err := p.list(func() error {
		var path geom.Path
		err := p.list(func() error {
			pt, err := p.point()
			path = append(path, pt)
			return err
		})
		if err == nil && len(path) < 4 {
			return p.errorf("a ring needs at least four points")
		}
		pg = append(pg, path)
		return err
	})
	return pg, err
}

func (p *wktParser) point() (geom.Point, error) {
	x, err := p.number()
	if err != nil {
		return geom.Point{}, err
	}
	y, err := p.number()
	if err != nil {
		return geom.Point{}, err
	}
	return geom.Point{X: x, Y: y}, nil
}

func (p *wktParser) number() (float64, error) {
	p.skip()
	j := p.i
	for p.i < len(p.s) && strings.IndexByte("+-.0123456789eE", p.s[p.i]) >= 0 {
		p.i++
	}
	f, err := strconv.ParseFloat(p.s[j:p.i], 64)
	if err != nil {
		return 0, p.errorf(fmt.Sprintf("bad number %q", p.s[j:p.i]))
	}
	return f, nil
}
