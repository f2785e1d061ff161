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

package emit

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/timelinize/lhconvert/locationhistory"
)

// jsonWriter writes the json, js, jsonfull and jsfull formats: an object
// with a single locations array, optionally assigned to a JavaScript
// variable. The full variants keep every field of the record.
type jsonWriter struct {
	textWriter
	js, full bool
	count    int
	buf      bytes.Buffer
}

func newJSONWriter(w io.Writer, format Format, opts Options) (*jsonWriter, error) {
	jw := &jsonWriter{
		textWriter: newTextWriter(w),
		js:         format == FormatJS || format == FormatJSFull,
		full:       format == FormatJSONFull || format == FormatJSFull,
	}
	if jw.js {
		jw.printf("window.%s = ", opts.Variable)
	}
	jw.print(`{"locations":[`)
	return jw, jw.err()
}

func (jw *jsonWriter) WritePoint(p *locationhistory.Point) error {
	jw.buf.Reset()
	if jw.full && originalCoordsMatch(p) {
		if err := json.Compact(&jw.buf, p.Original); err != nil {
			return err
		}
	} else {
		var loc any = shortLocation{
			TimestampMs: strconv.FormatInt(p.Timestamp.UnixMilli(), 10),
			LatitudeE7:  p.LatitudeE7,
			LongitudeE7: p.LongitudeE7,
		}
		if jw.full {
			loc = newFullLocation(p)
		}
		enc := json.NewEncoder(&jw.buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(loc); err != nil {
			return err
		}
		jw.buf.Truncate(jw.buf.Len() - 1) // newline from Encode
	}

	if jw.count > 0 {
		jw.print(",")
	}
	jw.count++
	jw.w.Write(jw.buf.Bytes()) //nolint:errcheck // sticky
	return jw.err()
}

func (jw *jsonWriter) Close() error {
	jw.print("]}")
	if jw.js {
		jw.print(";")
	}
	return jw.flush()
}

// shortLocation is a record with only the time and coordinates.
type shortLocation struct {
	TimestampMs string `json:"timestampMs"`
	LatitudeE7  int64  `json:"latitudeE7"`
	LongitudeE7 int64  `json:"longitudeE7"`
}

// fullLocation is a record with all the values a point can have, for
// points that don't carry the JSON they were read from.
type fullLocation struct {
	shortLocation
	Accuracy         *float64                         `json:"accuracy,omitempty"`
	Velocity         *float64                         `json:"velocity,omitempty"`
	Altitude         *float64                         `json:"altitude,omitempty"`
	VerticalAccuracy *float64                         `json:"verticalAccuracy,omitempty"`
	Heading          *float64                         `json:"heading,omitempty"`
	Activity         []locationhistory.ActivityRecord `json:"activity,omitempty"`
	DeviceTag        *int64                           `json:"deviceTag,omitempty"`
	Platform         string                           `json:"platform,omitempty"`
	PlatformType     string                           `json:"platformType,omitempty"`
}

func newFullLocation(p *locationhistory.Point) fullLocation {
	return fullLocation{
		shortLocation: shortLocation{
			TimestampMs: strconv.FormatInt(p.Timestamp.UnixMilli(), 10),
			LatitudeE7:  p.LatitudeE7,
			LongitudeE7: p.LongitudeE7,
		},
		Accuracy:         p.Accuracy,
		Velocity:         p.Speed,
		Altitude:         p.Altitude,
		VerticalAccuracy: p.VerticalAccuracy,
		Heading:          p.Heading,
		Activity:         p.Activity,
		DeviceTag:        p.DeviceTag,
		Platform:         p.Platform,
		PlatformType:     p.PlatformType,
	}
}

// originalCoordsMatch reports whether p.Original holds the coordinates p
// has. They differ once an overflow fix was applied, and then the
// original JSON must not be written as is.
func originalCoordsMatch(p *locationhistory.Point) bool {
	if len(p.Original) == 0 {
		return false
	}
	var coords struct {
		LatitudeE7  int64 `json:"latitudeE7"`
		LongitudeE7 int64 `json:"longitudeE7"`
	}
	if err := json.Unmarshal(p.Original, &coords); err != nil {
		return false
	}
	return coords.LatitudeE7 == p.LatitudeE7 && coords.LongitudeE7 == p.LongitudeE7
}
