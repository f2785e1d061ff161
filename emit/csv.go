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
	"encoding/csv"
	"io"
	"strconv"

	"github.com/timelinize/lhconvert/locationhistory"
)

// activityTypes are the activity columns of csvfullest, in order.
var activityTypes = []string{
	"UNKNOWN",
	"STILL",
	"TILTING",
	"ON_FOOT",
	"WALKING",
	"RUNNING",
	"IN_VEHICLE",
	"ON_BICYCLE",
	"IN_ROAD_VEHICLE",
	"IN_RAIL_VEHICLE",
	"IN_TWO_WHEELER_VEHICLE",
	"IN_FOUR_WHEELER_VEHICLE",
}

type csvWriter struct {
	w      *csv.Writer
	format Format
	row    []string
}

func newCSVWriter(w io.Writer, format Format, opts Options) (*csvWriter, error) {
	cw := &csvWriter{
		w:      csv.NewWriter(w),
		format: format,
	}
	cw.w.Comma = opts.Separator

	header := []string{"Time", "Latitude", "Longitude"}
	if format == FormatCSVFull || format == FormatCSVFullest {
		header = append(header, "Accuracy", "Altitude", "VerticalAccuracy", "Velocity", "Heading")
	}
	if format == FormatCSVFullest {
		header = append(header, "DetectedActivities")
		header = append(header, activityTypes...)
	}
	if err := cw.w.Write(header); err != nil {
		return nil, err
	}
	return cw, nil
}

func (cw *csvWriter) WritePoint(p *locationhistory.Point) error {
	cw.row = append(cw.row[:0],
		p.Timestamp.UTC().Format(textTimeFormat),
		strconv.FormatFloat(p.Latitude, 'f', 8, 64),
		strconv.FormatFloat(p.Longitude, 'f', 8, 64),
	)
	if cw.format == FormatCSVFull || cw.format == FormatCSVFullest {
		cw.row = append(cw.row,
			formatOptional(p.Accuracy),
			formatOptional(p.Altitude),
			formatOptional(p.VerticalAccuracy),
			formatOptional(p.Speed),
			formatOptional(p.Heading),
		)
	}
	if cw.format == FormatCSVFullest {
		acts := p.Activities()
		cw.row = append(cw.row, strconv.Itoa(len(acts)))
		for _, actType := range activityTypes {
			var conf string
			if c, ok := acts[actType]; ok {
				conf = strconv.Itoa(c)
			}
			cw.row = append(cw.row, conf)
		}
	}
	return cw.w.Write(cw.row)
}

func (cw *csvWriter) Close() error {
	cw.w.Flush()
	return cw.w.Error()
}
