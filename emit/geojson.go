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
	"io"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/timelinize/lhconvert/locationhistory"
)

// geoJSONWriter writes a FeatureCollection, one feature at a time so
// the collection is never held in memory. Points become Point features;
// tracks become LineString features with the time of each coordinate
// in the "coordTimes" property.
type geoJSONWriter struct {
	textWriter
	count int
}

func newGeoJSONWriter(w io.Writer) (*geoJSONWriter, error) {
	gw := &geoJSONWriter{textWriter: newTextWriter(w)}
	gw.print(`{"type":"FeatureCollection","features":[`)
	return gw, gw.err()
}

func (gw *geoJSONWriter) WritePoint(p *locationhistory.Point) error {
	f := geojson.NewFeature(orb.Point{p.Longitude, p.Latitude})
	f.Properties["time"] = formatGeoJSONTime(p.Timestamp)
	setOptional(f.Properties, "accuracy", p.Accuracy)
	setOptional(f.Properties, "speed", p.Speed)
	setOptional(f.Properties, "altitude", p.Altitude)
	setOptional(f.Properties, "verticalAccuracy", p.VerticalAccuracy)
	setOptional(f.Properties, "heading", p.Heading)
	if p.DeviceTag != nil {
		f.Properties["deviceTag"] = *p.DeviceTag
	}
	if acts := p.Activities(); len(acts) > 0 {
		f.Properties["activities"] = acts
	}
	return gw.writeFeature(f)
}

// WriteTrack writes t as a LineString. A LineString needs at least two
// positions, so a track of a single point is written as a Point.
func (gw *geoJSONWriter) WriteTrack(t *locationhistory.Track) error {
	coordTimes := make([]string, 0, len(t.Points))
	line := make(orb.LineString, 0, len(t.Points))
	for _, p := range t.Points {
		line = append(line, orb.Point{p.Longitude, p.Latitude})
		coordTimes = append(coordTimes, formatGeoJSONTime(p.Timestamp))
	}

	var geom orb.Geometry = line
	if len(line) == 1 {
		geom = line[0]
	}
	f := geojson.NewFeature(geom)
	f.Properties["time"] = formatGeoJSONTime(t.Start())
	f.Properties["endTime"] = formatGeoJSONTime(t.End())
	f.Properties["coordTimes"] = coordTimes
	return gw.writeFeature(f)
}

func (gw *geoJSONWriter) writeFeature(f *geojson.Feature) error {
	b, err := f.MarshalJSON()
	if err != nil {
		return err
	}
	if gw.count > 0 {
		gw.print(",")
	}
	gw.count++
	gw.w.Write(b) //nolint:errcheck // sticky
	return gw.err()
}

func (gw *geoJSONWriter) Close() error {
	gw.print("]}\n")
	return gw.flush()
}

func setOptional(props geojson.Properties, key string, v *float64) {
	if v != nil {
		props[key] = *v
	}
}

func formatGeoJSONTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
