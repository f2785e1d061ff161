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

	"github.com/timelinize/lhconvert/locationhistory"
)

// gpxHeader opens a GPX 1.1 document. It is the same for waypoints
// and tracks.
const gpxHeader = xmlHeader +
	`<gpx xmlns="http://www.topografix.com/GPX/1/1" version="1.1" creator="lhconvert"` +
	` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
	` xsi:schemaLocation="http://www.topografix.com/GPX/1/1 http://www.topografix.com/GPX/1/1/gpx.xsd">` + "\n" +
	"  <metadata>\n" +
	"    <name>Location History</name>\n" +
	"  </metadata>\n"

// gpxWriter writes each point as a waypoint.
type gpxWriter struct {
	textWriter
}

func newGPXWriter(w io.Writer) (*gpxWriter, error) {
	gw := &gpxWriter{newTextWriter(w)}
	gw.print(gpxHeader)
	return gw, gw.err()
}

func (gw *gpxWriter) WritePoint(p *locationhistory.Point) error {
	gw.printf("  <wpt lat=\"%s\" lon=\"%s\">\n", formatCoord(p.Latitude), formatCoord(p.Longitude))
	if p.Altitude != nil {
		gw.printf("    <ele>%d</ele>\n", int64(*p.Altitude))
	}
	ts := p.Timestamp.UTC()
	gw.printf("    <time>%s</time>\n", ts.Format(xmlTimeFormat))
	gw.printf("    <desc>%s", ts.Format(textTimeFormat))
	if p.Accuracy != nil || p.Speed != nil {
		gw.print(" (")
		if p.Accuracy != nil {
			gw.printf("Accuracy: %d", int64(*p.Accuracy))
		}
		if p.Accuracy != nil && p.Speed != nil {
			gw.print(", ")
		}
		if p.Speed != nil {
			gw.printf("Speed:%d", int64(*p.Speed))
		}
		gw.print(")")
	}
	gw.print("</desc>\n")
	gw.print("  </wpt>\n")
	return gw.err()
}

func (gw *gpxWriter) Close() error {
	gw.print("</gpx>\n")
	return gw.flush()
}

// gpxTrackWriter writes each track as a trk with a single trkseg.
type gpxTrackWriter struct {
	textWriter
}

func newGPXTrackWriter(w io.Writer) (*gpxTrackWriter, error) {
	gw := &gpxTrackWriter{newTextWriter(w)}
	gw.print(gpxHeader)
	return gw, gw.err()
}

func (gw *gpxTrackWriter) WriteTrack(t *locationhistory.Track) error {
	gw.print("  <trk>\n")
	gw.print("    <trkseg>\n")
	for _, p := range t.Points {
		gw.printf("      <trkpt lat=\"%s\" lon=\"%s\">\n", formatCoord(p.Latitude), formatCoord(p.Longitude))
		if p.Altitude != nil {
			gw.printf("        <ele>%d</ele>\n", int64(*p.Altitude))
		}
		gw.printf("        <time>%s</time>\n", p.Timestamp.UTC().Format(xmlTimeFormat))
		if p.Accuracy != nil || p.Speed != nil {
			gw.print("        <desc>\n")
			if p.Accuracy != nil {
				gw.printf("          Accuracy: %d\n", int64(*p.Accuracy))
			}
			if p.Speed != nil {
				gw.printf("          Speed:%d\n", int64(*p.Speed))
			}
			gw.print("        </desc>\n")
		}
		gw.print("      </trkpt>\n")
	}
	gw.print("    </trkseg>\n")
	gw.print("  </trk>\n")
	return gw.err()
}

func (gw *gpxTrackWriter) Close() error {
	gw.print("</gpx>\n")
	return gw.flush()
}
