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

// Package emit writes location history points and tracks in the
// supported output formats.
package emit

import (
	"fmt"
	"slices"
	"strings"
)

// Format is the name of an output format.
type Format string

// The output formats.
const (
	FormatKML           Format = "kml"
	FormatJSON          Format = "json"
	FormatJS            Format = "js"
	FormatJSONFull      Format = "jsonfull"
	FormatJSFull        Format = "jsfull"
	FormatCSV           Format = "csv"
	FormatCSVFull       Format = "csvfull"
	FormatCSVFullest    Format = "csvfullest"
	FormatGPX           Format = "gpx"
	FormatGPXTracks     Format = "gpxtracks"
	FormatGeoJSON       Format = "geojson"
	FormatGeoJSONTracks Format = "geojsontracks"
	FormatSQLite        Format = "sqlite"
)

var formats = []Format{
	FormatKML,
	FormatJSON,
	FormatJS,
	FormatJSONFull,
	FormatJSFull,
	FormatCSV,
	FormatCSVFull,
	FormatCSVFullest,
	FormatGPX,
	FormatGPXTracks,
	FormatGeoJSON,
	FormatGeoJSONTracks,
	FormatSQLite,
}

// Formats returns all supported formats.
func Formats() []Format { return slices.Clone(formats) }

// ParseFormat returns the format with the given name (case-insensitive).
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if !slices.Contains(formats, f) {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, name, strings.Join(formatNames(), ", "))
	}
	return f, nil
}

func formatNames() []string {
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, string(f))
	}
	return names
}

// Tracks returns true if the format is written from tracks
// rather than individual points.
func (f Format) Tracks() bool {
	switch f {
	case FormatGPXTracks, FormatGeoJSONTracks, FormatSQLite:
		return true
	}
	return false
}

// ToFile returns true if the format is written to a database file
// instead of a stream.
func (f Format) ToFile() bool {
	return f == FormatSQLite
}

func (f Format) String() string { return string(f) }

// DefaultVariable is the name of the JavaScript variable the js and
// jsfull formats assign the data to.
const DefaultVariable = "locationJsonData"

// Options customizes the output of some formats.
type Options struct {
	// Variable is the JavaScript variable name for js and jsfull.
	Variable string

	// Separator is the field separator for the CSV formats.
	Separator rune
}

func (o Options) withDefaults() Options {
	if o.Variable == "" {
		o.Variable = DefaultVariable
	}
	if o.Separator == 0 {
		o.Separator = ','
	}
	return o
}
