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

package binning

import (
	"testing"
	"time"
)

func TestSpatialDataPeriod(t *testing.T) {
	p := &SpatialDataPeriod{StartMJD: 55000, Duration: 1, MinDataHour: 0}
	for _, test := range []struct {
		lon, mjd float64
		want     Membership
	}{
		{lon: 0, mjd: 54999.9, want: PreviousPeriod},
		{lon: 0, mjd: 55000.1, want: CurrentPeriod},
		{lon: 0, mjd: 55001.1, want: SubsequentPeriod},
		// Local midnight at 90E is six hours before UTC midnight.
		{lon: 90, mjd: 54999.8, want: CurrentPeriod},
		{lon: 90, mjd: 55000.8, want: SubsequentPeriod},
		// ...and six hours after it at 90W.
		{lon: -90, mjd: 55000.2, want: PreviousPeriod},
		{lon: -90, mjd: 55001.2, want: CurrentPeriod},
	} {
		if have := p.Membership(test.lon, test.mjd); have != test.want {
			t.Errorf("(%g, %g): have %v, want %v", test.lon, test.mjd, have, test.want)
		}
	}
}

func TestTimeWindow(t *testing.T) {
	w := &TimeWindow{StartMJD: 10, Duration: 2}
	if w.Membership(170, 9.99) != PreviousPeriod ||
		w.Membership(-170, 11) != CurrentPeriod ||
		w.Membership(0, 12.01) != SubsequentPeriod {
		t.Error("wrong membership")
	}
}

func TestMJD(t *testing.T) {
	tm := time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)
	if have, want := MJD(tm), 51544.5; have != want {
		t.Errorf("have %g, want %g", have, want)
	}
	if have := TimeFromMJD(51544.5); !have.Equal(tm) {
		t.Errorf("have %v, want %v", have, tm)
	}
}
