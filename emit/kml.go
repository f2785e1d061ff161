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

// kmlWriter writes one placemark per point. Within a placemark the order
// TimeStamp, ExtendedData, Point is required for valid KML.
type kmlWriter struct {
	textWriter
}

func newKMLWriter(w io.Writer) (*kmlWriter, error) {
	kw := &kmlWriter{newTextWriter(w)}
	kw.print(xmlHeader)
	kw.print(`<kml xmlns="http://www.opengis.net/kml/2.2">` + "\n")
	kw.print("  <Document>\n")
	kw.print("    <name>Location History</name>\n")
	return kw, kw.err()
}

func (kw *kmlWriter) WritePoint(p *locationhistory.Point) error {
	kw.print("    <Placemark>\n")
	kw.printf("      <TimeStamp><when>%s</when></TimeStamp>\n", p.Timestamp.UTC().Format(xmlTimeFormat))
	if p.Accuracy != nil || p.Speed != nil || p.Altitude != nil {
		kw.print("      <ExtendedData>\n")
		kw.writeData("accuracy", p.Accuracy)
		kw.writeData("speed", p.Speed)
		kw.writeData("altitude", p.Altitude)
		kw.print("      </ExtendedData>\n")
	}
	kw.printf("      <Point><coordinates>%s,%s</coordinates></Point>\n",
		formatCoord(p.Longitude), formatCoord(p.Latitude))
	kw.print("    </Placemark>\n")
	return kw.err()
}

func (kw *kmlWriter) writeData(name string, v *float64) {
	if v == nil {
		return
	}
	kw.printf("        <Data name=%q>\n", name)
	kw.printf("          <value>%d</value>\n", int64(*v))
	kw.print("        </Data>\n")
}

func (kw *kmlWriter) Close() error {
	kw.print("  </Document>\n</kml>\n")
	return kw.flush()
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
