/*
	Timelinize
	Copyright (c) 2013 Matthew Holt

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package locationhistory

import (
	"encoding/json"
	"time"
)

// Point is a location record in its canonical form: coordinates in degrees
// and a proper timestamp. Optional values that were absent in the record
// are nil.
type Point struct {
	Timestamp time.Time // UTC, millisecond precision
	Latitude  float64   // degrees, in [-90, 90]
	Longitude float64   // degrees, in [-180, 180]

	// The coordinates as integer degrees times 1e7, which is how
	// they were stored in the export (after any overflow fix).
	LatitudeE7  int64
	LongitudeE7 int64

	Accuracy         *float64 // meters
	Speed            *float64 // meters/second
	Altitude         *float64 // meters
	VerticalAccuracy *float64 // meters
	Heading          *float64 // degrees
	Activity         []ActivityRecord

	DeviceTag    *int64
	Platform     string
	PlatformType string

	// Original is the JSON of the record this point was made from.
	Original json.RawMessage
}

// Normalizer converts raw records into points.
type Normalizer struct {
	// Takeout exports sometimes store coordinates as if they were
	// unsigned 32-bit integers, so negative values show up as huge
	// positive ones. If set, values above 1800000000 are wrapped
	// back before validation instead of being dropped.
	// https://gis.stackexchange.com/questions/318918/latitude-and-longitude-values-in-google-takeout-location-history-data-sometimes
	FixE7Overflow bool
}

// Normalize returns the point for raw. The second return value is false
// if the coordinates are out of range, in which case the record must be
// dropped; out-of-range values are never corrected.
func (n Normalizer) Normalize(raw *RawRecord) (*Point, bool) {
	latE7, lonE7 := raw.LatitudeE7, raw.LongitudeE7
	if n.FixE7Overflow {
		latE7, lonE7 = fixE7Overflow(latE7), fixE7Overflow(lonE7)
	}

	lat := float64(latE7) / placesMult
	lon := float64(lonE7) / placesMult
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, false
	}

	return &Point{
		Timestamp:        time.UnixMilli(raw.TimestampMs).UTC(),
		Latitude:         lat,
		Longitude:        lon,
		LatitudeE7:       latE7,
		LongitudeE7:      lonE7,
		Accuracy:         raw.Accuracy,
		Speed:            raw.Speed,
		Altitude:         raw.Altitude,
		VerticalAccuracy: raw.VerticalAccuracy,
		Heading:          raw.Heading,
		Activity:         raw.Activity,
		DeviceTag:        raw.DeviceTag,
		Platform:         raw.Platform,
		PlatformType:     raw.PlatformType,
		Original:         raw.Original,
	}, true
}

func fixE7Overflow(coordE7 int64) int64 {
	const maxValidE7, uint32Range = 1800000000, 1 << 32
	if coordE7 > maxValidE7 {
		return coordE7 - uint32Range
	}
	return coordE7
}

// Activities returns the highest confidence seen for each activity type.
// Only a record with exactly one activity detection yields anything;
// with several detections it is unclear which one applies to the point.
func (p *Point) Activities() map[string]int {
	acts := make(map[string]int)
	if len(p.Activity) != 1 {
		return acts
	}
	for _, act := range p.Activity[0].Activity {
		if conf, ok := acts[act.Type]; !ok || act.Confidence > conf {
			acts[act.Type] = act.Confidence
		}
	}
	return acts
}

const placesMult = 1e7
