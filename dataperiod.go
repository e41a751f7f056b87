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
	"fmt"
	"time"
)

// Membership classifies an observation time relative to a DataPeriod.
type Membership int

// Membership values.
const (
	PreviousPeriod Membership = iota - 1
	CurrentPeriod
	SubsequentPeriod
)

func (m Membership) String() string {
	switch m {
	case PreviousPeriod:
		return "PREVIOUS_PERIOD"
	case CurrentPeriod:
		return "CURRENT_PERIOD"
	case SubsequentPeriod:
		return "SUBSEQUENT_PERIOD"
	}
	return fmt.Sprintf("Membership(%d)", int(m))
}

// DataPeriod is the time span that observations must fall in to be binned.
type DataPeriod interface {
	// Membership returns where an observation at longitude lon taken at
	// time mjd falls relative to the period.
	Membership(lon, mjd float64) Membership
}

// SpatialDataPeriod is a "data day" whose boundaries follow local solar
// time: a period starts at MinDataHour local time, so its UTC start moves
// earlier by one hour for every 15 degrees east.
type SpatialDataPeriod struct {
	// StartMJD is the UTC start of the period at the prime meridian.
	StartMJD float64
	// Duration is the period length in days.
	Duration float64
	// MinDataHour is the local solar hour at which the period starts.
	MinDataHour float64
}

// Membership implements DataPeriod.
func (p *SpatialDataPeriod) Membership(lon, mjd float64) Membership {
	t1 := p.StartMJD + p.MinDataHour/24 - lon/360
	t2 := t1 + p.Duration
	switch {
	case mjd < t1:
		return PreviousPeriod
	case mjd > t2:
		return SubsequentPeriod
	}
	return CurrentPeriod
}

// TimeWindow is a DataPeriod with fixed UTC boundaries.
type TimeWindow struct {
	StartMJD float64
	Duration float64
}

// Membership implements DataPeriod. lon is ignored.
func (w *TimeWindow) Membership(lon, mjd float64) Membership {
	switch {
	case mjd < w.StartMJD:
		return PreviousPeriod
	case mjd > w.StartMJD+w.Duration:
		return SubsequentPeriod
	}
	return CurrentPeriod
}

var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

// MJD converts t to a modified Julian day.
func MJD(t time.Time) float64 {
	return t.Sub(mjdEpoch).Hours() / 24
}

// TimeFromMJD converts a modified Julian day to a UTC time.
func TimeFromMJD(mjd float64) time.Time {
	return mjdEpoch.Add(time.Duration(mjd * 24 * float64(time.Hour)))
}
