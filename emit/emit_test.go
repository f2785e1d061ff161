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
	"context"
	"database/sql"
	"encoding/xml"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelinize/lhconvert/locationhistory"
)

func float64Ptr(f float64) *float64 { return &f }
func int64Ptr(i int64) *int64       { return &i }

// testPoints returns a point with most optional values (and the JSON it
// came from) and a bare point.
func testPoints() []*locationhistory.Point {
	return []*locationhistory.Point{
		{
			Timestamp:   time.UnixMilli(1500000000000).UTC(),
			Latitude:    40.7128,
			Longitude:   -74.006,
			LatitudeE7:  407128000,
			LongitudeE7: -740060000,
			Accuracy:    float64Ptr(20),
			Speed:       float64Ptr(3),
			Altitude:    float64Ptr(10.5),
			DeviceTag:   int64Ptr(42),
			Platform:    "iPhone",
			Activity: []locationhistory.ActivityRecord{
				{Activity: []locationhistory.Activity{
					{Type: "STILL", Confidence: 80},
					{Type: "TILTING", Confidence: 10},
				}},
			},
			Original: []byte(`{"timestampMs": "1500000000000",
				"latitudeE7": 407128000, "longitudeE7": -740060000, "accuracy": 20}`),
		},
		{
			Timestamp:   time.UnixMilli(1500000060000).UTC(),
			Latitude:    40.7129,
			Longitude:   -74.0061,
			LatitudeE7:  407129000,
			LongitudeE7: -740061000,
		},
	}
}

func writePoints(t *testing.T, format Format, opts Options, points []*locationhistory.Point) string {
	t.Helper()
	var buf bytes.Buffer
	pw, err := NewPointWriter(&buf, format, opts)
	require.NoError(t, err)
	for _, p := range points {
		require.NoError(t, pw.WritePoint(p))
	}
	require.NoError(t, pw.Close())
	return buf.String()
}

func writeTracks(t *testing.T, format Format, tracks []*locationhistory.Track) string {
	t.Helper()
	var buf bytes.Buffer
	tw, err := NewTrackWriter(&buf, format, Options{})
	require.NoError(t, err)
	for _, tr := range tracks {
		require.NoError(t, tw.WriteTrack(tr))
	}
	require.NoError(t, tw.Close())
	return buf.String()
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats() {
		parsed, err := ParseFormat(strings.ToUpper(f.String()))
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}
	_, err := ParseFormat("shapefile")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.True(t, FormatGPXTracks.Tracks())
	assert.True(t, FormatGeoJSONTracks.Tracks())
	assert.False(t, FormatGPX.Tracks())
	assert.False(t, FormatKML.Tracks())
}

func TestNewWriterRejectsWrongShape(t *testing.T) {
	for _, f := range Formats() {
		_, err := NewPointWriter(io.Discard, f, Options{})
		if f.Tracks() {
			assert.ErrorIs(t, err, ErrUnsupportedFormat, f.String())
		} else {
			assert.NoError(t, err, f.String())
		}

		_, err = NewTrackWriter(io.Discard, f, Options{})
		if f.Tracks() && !f.ToFile() {
			assert.NoError(t, err, f.String())
		} else {
			assert.ErrorIs(t, err, ErrUnsupportedFormat, f.String())
		}
	}
}

func TestJSONFormats(t *testing.T) {
	const (
		short1 = `{"timestampMs":"1500000000000","latitudeE7":407128000,"longitudeE7":-740060000}`
		short2 = `{"timestampMs":"1500000060000","latitudeE7":407129000,"longitudeE7":-740061000}`
		full1  = `{"timestampMs":"1500000000000","latitudeE7":407128000,"longitudeE7":-740060000,"accuracy":20}`
	)
	for _, tc := range []struct {
		format Format
		opts   Options
		expect string
	}{
		{format: FormatJSON, expect: `{"locations":[` + short1 + `,` + short2 + `]}`},
		{format: FormatJS, expect: `window.locationJsonData = {"locations":[` + short1 + `,` + short2 + `]};`},
		{format: FormatJS, opts: Options{Variable: "lh"}, expect: `window.lh = {"locations":[` + short1 + `,` + short2 + `]};`},
		{format: FormatJSONFull, expect: `{"locations":[` + full1 + `,` + short2 + `]}`},
		{format: FormatJSFull, expect: `window.locationJsonData = {"locations":[` + full1 + `,` + short2 + `]};`},
	} {
		assert.Equal(t, tc.expect, writePoints(t, tc.format, tc.opts, testPoints()), tc.format.String())
	}
}

func TestJSONFullWithoutOriginal(t *testing.T) {
	p := testPoints()[0]
	p.Original = nil
	out := writePoints(t, FormatJSONFull, Options{}, []*locationhistory.Point{p})
	assert.Equal(t, `{"locations":[{"timestampMs":"1500000000000","latitudeE7":407128000,"longitudeE7":-740060000,`+
		`"accuracy":20,"velocity":3,"altitude":10.5,`+
		`"activity":[{"activity":[{"type":"STILL","confidence":80},{"type":"TILTING","confidence":10}]}],`+
		`"deviceTag":42,"platform":"iPhone"}]}`, out)
}

func TestJSONFullWritesFixedCoordinates(t *testing.T) {
	p := testPoints()[0]
	// longitude stored as an unsigned 32-bit value: -740060000 + 2^32
	p.Original = []byte(`{"timestampMs": "1500000000000", "latitudeE7": 407128000, "longitudeE7": 3554907296}`)

	for _, format := range []Format{FormatJSONFull, FormatJSFull} {
		out := writePoints(t, format, Options{}, []*locationhistory.Point{p})
		assert.Contains(t, out, `"longitudeE7":-740060000`, format.String())
		assert.NotContains(t, out, "3554907296", format.String())
		assert.Contains(t, out, `"deviceTag":42`, format.String())
	}
}

func TestJSONEmpty(t *testing.T) {
	assert.Equal(t, `{"locations":[]}`, writePoints(t, FormatJSON, Options{}, nil))
}

func TestCSVFormats(t *testing.T) {
	row1 := []string{"2017-07-14 02:40:00", "40.71280000", "-74.00600000"}
	row2 := []string{"2017-07-14 02:41:00", "40.71290000", "-74.00610000"}
	full1 := append(append([]string{}, row1...), "20", "10.5", "", "3", "")
	full2 := append(append([]string{}, row2...), "", "", "", "", "")
	fullest1 := append(append([]string{}, full1...), "2", "", "80", "10", "", "", "", "", "", "", "", "", "")
	fullest2 := append(append([]string{}, full2...), "0", "", "", "", "", "", "", "", "", "", "", "", "")

	lines := func(sep string, rows ...[]string) string {
		var sb strings.Builder
		for _, row := range rows {
			sb.WriteString(strings.Join(row, sep) + "\n")
		}
		return sb.String()
	}

	header := []string{"Time", "Latitude", "Longitude"}
	fullHeader := append(append([]string{}, header...), "Accuracy", "Altitude", "VerticalAccuracy", "Velocity", "Heading")
	fullestHeader := append(append([]string{}, fullHeader...), "DetectedActivities")
	fullestHeader = append(fullestHeader, activityTypes...)

	for _, tc := range []struct {
		format Format
		opts   Options
		expect string
	}{
		{format: FormatCSV, expect: lines(",", header, row1, row2)},
		{format: FormatCSV, opts: Options{Separator: ';'}, expect: lines(";", header, row1, row2)},
		{format: FormatCSVFull, expect: lines(",", fullHeader, full1, full2)},
		{format: FormatCSVFullest, opts: Options{Separator: '\t'}, expect: lines("\t", fullestHeader, fullest1, fullest2)},
	} {
		assert.Equal(t, tc.expect, writePoints(t, tc.format, tc.opts, testPoints()), tc.format.String())
	}
}

func TestCSVInvalidSeparator(t *testing.T) {
	_, err := NewPointWriter(io.Discard, FormatCSV, Options{Separator: '"'})
	assert.Error(t, err)
}

func TestKML(t *testing.T) {
	out := writePoints(t, FormatKML, Options{}, testPoints())
	assertWellFormedXML(t, out)

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+`<kml xmlns="http://www.opengis.net/kml/2.2">`))
	assert.Equal(t, 2, strings.Count(out, "<Placemark>"))
	assert.Equal(t, 1, strings.Count(out, "<ExtendedData>"), "only the first point has extended data")
	assert.Contains(t, out, "      <TimeStamp><when>2017-07-14T02:40:00Z</when></TimeStamp>\n"+
		"      <ExtendedData>\n"+
		"        <Data name=\"accuracy\">\n"+
		"          <value>20</value>\n"+
		"        </Data>\n"+
		"        <Data name=\"speed\">\n"+
		"          <value>3</value>\n"+
		"        </Data>\n"+
		"        <Data name=\"altitude\">\n"+
		"          <value>10</value>\n"+
		"        </Data>\n"+
		"      </ExtendedData>\n"+
		"      <Point><coordinates>-74.006,40.7128</coordinates></Point>\n")
	assert.Contains(t, out, "<Point><coordinates>-74.0061,40.7129</coordinates></Point>")
	assert.True(t, strings.HasSuffix(out, "  </Document>\n</kml>\n"))
}

func TestGPX(t *testing.T) {
	out := writePoints(t, FormatGPX, Options{}, testPoints())
	assertWellFormedXML(t, out)

	assert.Equal(t, 2, strings.Count(out, "<wpt "))
	assert.Contains(t, out, "  <wpt lat=\"40.7128\" lon=\"-74.006\">\n"+
		"    <ele>10</ele>\n"+
		"    <time>2017-07-14T02:40:00Z</time>\n"+
		"    <desc>2017-07-14 02:40:00 (Accuracy: 20, Speed:3)</desc>\n"+
		"  </wpt>\n")
	assert.Contains(t, out, "    <desc>2017-07-14 02:41:00</desc>\n")
	assert.True(t, strings.HasSuffix(out, "</gpx>\n"))
}

func TestGPXTracks(t *testing.T) {
	pts := testPoints()
	tracks := []*locationhistory.Track{
		{Points: pts},
		{Points: pts[1:]},
	}
	out := writeTracks(t, FormatGPXTracks, tracks)
	assertWellFormedXML(t, out)

	assert.Equal(t, 2, strings.Count(out, "<trk>"))
	assert.Equal(t, 2, strings.Count(out, "<trkseg>"))
	assert.Equal(t, 3, strings.Count(out, "<trkpt "))
	assert.Contains(t, out, "        <desc>\n          Accuracy: 20\n          Speed:3\n        </desc>\n")

	empty := writeTracks(t, FormatGPXTracks, nil)
	assertWellFormedXML(t, empty)
	assert.NotContains(t, empty, "<trk>")
}

func TestGeoJSONPoints(t *testing.T) {
	out := writePoints(t, FormatGeoJSON, Options{}, testPoints())

	fc, err := geojson.UnmarshalFeatureCollection([]byte(out))
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	first := fc.Features[0]
	assert.Equal(t, orb.Point{-74.006, 40.7128}, first.Geometry)
	assert.Equal(t, "2017-07-14T02:40:00Z", first.Properties.MustString("time"))
	assert.InDelta(t, 20, first.Properties.MustFloat64("accuracy"), 0)
	assert.InDelta(t, 42, first.Properties.MustFloat64("deviceTag"), 0)
	assert.Contains(t, first.Properties, "activities")

	second := fc.Features[1]
	assert.NotContains(t, second.Properties, "accuracy")
	assert.NotContains(t, second.Properties, "activities")
}

func TestGeoJSONTracks(t *testing.T) {
	pts := testPoints()
	out := writeTracks(t, FormatGeoJSONTracks, []*locationhistory.Track{
		{Points: pts},
		{Points: pts[:1]},
	})

	fc, err := geojson.UnmarshalFeatureCollection([]byte(out))
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	line, ok := fc.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Equal(t, orb.LineString{{-74.006, 40.7128}, {-74.0061, 40.7129}}, line)
	assert.Len(t, fc.Features[0].Properties["coordTimes"], 2)
	assert.Equal(t, "2017-07-14T02:41:00Z", fc.Features[0].Properties.MustString("endTime"))

	assert.Equal(t, orb.Point{-74.006, 40.7128}, fc.Features[1].Geometry, "single point track")
}

func TestSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "points.db")
	ctx := context.Background()

	sw, err := NewSQLiteWriter(ctx, dbPath)
	require.NoError(t, err)
	pts := testPoints()
	require.NoError(t, sw.WriteTrack(&locationhistory.Track{Points: pts}))
	require.NoError(t, sw.WriteTrack(&locationhistory.Track{Points: pts[1:]}))
	require.NoError(t, sw.WritePoint(pts[0]))
	require.NoError(t, sw.Close())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT count() FROM points`).Scan(&count))
	assert.Equal(t, 4, count)

	require.NoError(t, db.QueryRow(`SELECT count() FROM points WHERE track=2`).Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, db.QueryRow(`SELECT count() FROM points WHERE track IS NULL`).Scan(&count))
	assert.Equal(t, 1, count)

	var (
		ts       int64
		lat, lon float64
		accuracy sql.NullFloat64
		device   sql.NullInt64
		platform sql.NullString
	)
	require.NoError(t, db.QueryRow(`SELECT timestamp_ms, latitude, longitude, accuracy, device_tag, platform
		FROM points WHERE track=1 ORDER BY timestamp_ms LIMIT 1`).Scan(&ts, &lat, &lon, &accuracy, &device, &platform))
	assert.Equal(t, int64(1500000000000), ts)
	assert.InDelta(t, 40.7128, lat, 1e-12)
	assert.InDelta(t, -74.006, lon, 1e-12)
	assert.Equal(t, sql.NullFloat64{Float64: 20, Valid: true}, accuracy)
	assert.Equal(t, sql.NullInt64{Int64: 42, Valid: true}, device)
	assert.Equal(t, sql.NullString{String: "iPhone", Valid: true}, platform)

	require.NoError(t, db.QueryRow(`SELECT accuracy, device_tag, platform FROM points WHERE track=2`).Scan(&accuracy, &device, &platform))
	assert.False(t, accuracy.Valid)
	assert.False(t, device.Valid)
	assert.False(t, platform.Valid)
}

func TestSQLiteAbort(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "points.db")
	sw, err := NewSQLiteWriter(context.Background(), dbPath)
	require.NoError(t, err)
	require.NoError(t, sw.WritePoint(testPoints()[0]))
	require.NoError(t, sw.Abort())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT count() FROM points`).Scan(&count))
	assert.Zero(t, count)
}

// assertWellFormedXML fails the test if doc can't be tokenized to the end.
func assertWellFormedXML(t *testing.T, doc string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		require.NoError(t, err)
	}
}
