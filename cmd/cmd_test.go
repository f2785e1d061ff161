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

package lhcmd

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/timelinize/lhconvert/internal/testhelpers"
	"github.com/timelinize/lhconvert/locationhistory"
)

const emulator = `"deviceTag": 9, "platformType": "ANDROID", "platform": "android/google/sdk_gphone_x86/generic_x86:9"`

// testRecords are two journeys on 2020-01-01 and one point the next day.
var testRecords = []string{
	`{"timestampMs": "1577872800000", "latitudeE7": 481370000, "longitudeE7": 115750000, "accuracy": 10, "deviceTag": 1}`, // 10:00
	`{"timestampMs": "1577872860000", "latitudeE7": 481380000, "longitudeE7": 115760000, "accuracy": 15, "deviceTag": 1}`, // 10:01
	`{"timestampMs": "1577876400000", "latitudeE7": 481390000, "longitudeE7": 115770000, "accuracy": 500, "deviceTag": 1}`, // 11:00
	`{"timestampMs": "1577876460000", "latitudeE7": 481400000, "longitudeE7": 115780000, ` + emulator + `}`, // 11:01
	`{"timestampMs": "1577959200000", "latitudeE7": 481410000, "longitudeE7": 115790000, "deviceTag": 9}`, // 2020-01-02 10:00
}

func useTestLogger(t *testing.T) {
	t.Helper()
	orig := locationhistory.Log
	locationhistory.Log = zaptest.NewLogger(t)
	t.Cleanup(func() { locationhistory.Log = orig })
}

func writeInput(t *testing.T, records ...string) string {
	t.Helper()
	return testhelpers.WriteRecordsFile(t, testhelpers.LocationsDoc(records...))
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCommand()
	cmd.SetArgs(append(args, "--no-progress"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

// assertNoTempFiles fails if anything but the expected files is in dir.
func assertNoTempFiles(t *testing.T, dir string, expect ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, expect, names)
}

func TestConvertKML(t *testing.T) {
	useTestLogger(t)
	input := writeInput(t, testRecords...)
	outDir := t.TempDir()
	output := filepath.Join(outDir, "out.kml")

	require.NoError(t, runCommand(t, input, output))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	// the emulator point is left out by its platform
	assert.Equal(t, 4, strings.Count(string(data), "<Placemark>"))
	assertNoTempFiles(t, outDir, "out.kml")
}

func TestConvertFilters(t *testing.T) {
	useTestLogger(t)
	input := writeInput(t, testRecords...)
	output := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, runCommand(t, input, output,
		"-f", "json",
		"-s", "2020-01-01", "-e", "2020-01-01",
		"-a", "100",
	))

	var doc struct {
		Locations []struct {
			TimestampMs string `json:"timestampMs"`
		} `json:"locations"`
	}
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Locations, 2)
	assert.Equal(t, "1577872800000", doc.Locations[0].TimestampMs)
	assert.Equal(t, "1577872860000", doc.Locations[1].TimestampMs)
}

func TestConvertAutoDevices(t *testing.T) {
	useTestLogger(t)
	input := writeInput(t, testRecords...)
	output := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, runCommand(t, input, output, "-f", "csv", "-d", "auto", "-i"))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// header plus the three points of device 1
	assert.Len(t, lines, 4)
	assert.Equal(t, "Time,Latitude,Longitude", lines[0])
}

func TestConvertTracks(t *testing.T) {
	useTestLogger(t)
	input := writeInput(t, testRecords...)
	output := filepath.Join(t.TempDir(), "out.geojson")

	require.NoError(t, runCommand(t, input, output, "-f", "geojsontracks", "-c"))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	// 10:00-10:01, 11:00, and the next day; the gaps are over 10 minutes
	assert.Len(t, fc.Features, 3)
}

func TestConvertSQLite(t *testing.T) {
	useTestLogger(t)
	input := writeInput(t, testRecords...)
	outDir := t.TempDir()
	output := filepath.Join(outDir, "points.db")

	require.NoError(t, runCommand(t, input, output, "-f", "sqlite", "--max-gap", "2h"))
	assertNoTempFiles(t, outDir, "points.db")

	db, err := sql.Open("sqlite3", output)
	require.NoError(t, err)
	defer db.Close()

	var points, tracks int
	require.NoError(t, db.QueryRow(`SELECT count(), count(DISTINCT track) FROM points`).Scan(&points, &tracks))
	assert.Equal(t, 4, points)
	assert.Equal(t, 2, tracks)
}

func TestConvertConfigFileWithOverride(t *testing.T) {
	useTestLogger(t)
	input := writeInput(t, testRecords...)
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "lhconvert.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("format: gpx\nseparator: \";\"\nend_date: \"2020-01-01\"\n"), 0600))
	output := filepath.Join(dir, "out.csv")

	require.NoError(t, runCommand(t, input, output, "--config", cfgFile, "-f", "csv"))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "Time;Latitude;Longitude", lines[0], "separator from the file, format from the flag")
	assert.Len(t, lines, 4, "end date from the file")
}

func TestConvertSameFile(t *testing.T) {
	useTestLogger(t)
	input := writeInput(t, testRecords...)
	before, err := os.ReadFile(input)
	require.NoError(t, err)

	err = runCommand(t, input, input)
	require.ErrorIs(t, err, ErrSameFile)

	after, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestConvertInvalidInputLeavesNoOutput(t *testing.T) {
	useTestLogger(t)

	for _, doc := range []string{
		`{"something": "else"}`,
		`{"locations": [{"timestampMs": "1", "latitudeE7": 1, "longitudeE7": 1},`,
	} {
		input := testhelpers.WriteRecordsFile(t, doc)

		for _, iterative := range []string{"--iterative=false", "--iterative=true"} {
			outDir := t.TempDir()
			err := runCommand(t, input, filepath.Join(outDir, "out.gpx"), "-f", "gpx", iterative)
			require.ErrorIs(t, err, locationhistory.ErrInvalidDocument)
			assertNoTempFiles(t, outDir)
		}
	}
}

func TestConvertConfigErrors(t *testing.T) {
	useTestLogger(t)
	input := writeInput(t, testRecords...)

	for i, args := range [][]string{
		{"-f", "shapefile"},
		{"-s", "2020-13-01"},
		{"--starttime", "10:00"},
		{"-p", "1,1"},
		{"-d", "one,two"},
		{"--separator", ";;"},
		{"-a", "0"},
	} {
		outDir := t.TempDir()
		err := runCommand(t, append([]string{input, filepath.Join(outDir, "out")}, args...)...)
		assert.Error(t, err, "Test %d", i)
		assertNoTempFiles(t, outDir)
	}
}

func TestConvertMissingArguments(t *testing.T) {
	assert.Error(t, runCommand(t))
	assert.Error(t, runCommand(t, "only-input"))
}
