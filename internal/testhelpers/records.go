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

// Package testhelpers builds location history inputs for tests.
package testhelpers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// LocationsDoc wraps records (JSON objects) into a location
// history document.
func LocationsDoc(records ...string) string {
	return `{"locations": [` + strings.Join(records, ",\n") + `]}`
}

// Record returns the JSON of a record with the given time and
// coordinates. extra, if not empty, is appended to its members
// (e.g. `"accuracy": 10`).
func Record(timestampMs, latitudeE7, longitudeE7 int64, extra string) string {
	if extra != "" {
		extra = ", " + extra
	}
	return fmt.Sprintf(`{"timestampMs": "%d", "latitudeE7": %d, "longitudeE7": %d%s}`,
		timestampMs, latitudeE7, longitudeE7, extra)
}

// WriteRecordsFile writes doc to a Records.json file in a new temporary
// directory and returns its path.
func WriteRecordsFile(t *testing.T, doc string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "Records.json")
	if err := os.WriteFile(filename, []byte(doc), 0600); err != nil {
		t.Fatalf("writing test input: %v", err)
	}
	return filename
}
