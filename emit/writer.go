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
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/timelinize/lhconvert/locationhistory"
)

// ErrUnsupportedFormat is returned for unknown formats, or for formats
// that can't be written in the requested way.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// PointWriter writes points one at a time. The header of the output is
// written when the writer is created; Close writes the footer. Close does
// not close the underlying writer.
type PointWriter interface {
	WritePoint(p *locationhistory.Point) error
	Close() error
}

// TrackWriter writes tracks one at a time, like PointWriter.
type TrackWriter interface {
	WriteTrack(t *locationhistory.Track) error
	Close() error
}

// NewPointWriter returns a writer that writes points to w in the given
// format. Formats that require tracks, or write to a file, can't be used.
func NewPointWriter(w io.Writer, format Format, opts Options) (PointWriter, error) {
	opts = opts.withDefaults()
	switch format {
	case FormatJSON, FormatJS, FormatJSONFull, FormatJSFull:
		return newJSONWriter(w, format, opts)
	case FormatCSV, FormatCSVFull, FormatCSVFullest:
		return newCSVWriter(w, format, opts)
	case FormatKML:
		return newKMLWriter(w)
	case FormatGPX:
		return newGPXWriter(w)
	case FormatGeoJSON:
		return newGeoJSONWriter(w)
	}
	return nil, fmt.Errorf("%w: %s cannot be written as a stream of points", ErrUnsupportedFormat, format)
}

// NewTrackWriter returns a writer that writes tracks to w in the given
// format. The sqlite format is written with NewSQLiteWriter.
func NewTrackWriter(w io.Writer, format Format, _ Options) (TrackWriter, error) {
	switch format {
	case FormatGPXTracks:
		return newGPXTrackWriter(w)
	case FormatGeoJSONTracks:
		return newGeoJSONWriter(w)
	}
	return nil, fmt.Errorf("%w: %s cannot be written as a stream of tracks", ErrUnsupportedFormat, format)
}

// textWriter buffers output for the formats written as plain text.
// Write errors are sticky; they surface at the latest in Close.
type textWriter struct {
	w *bufio.Writer
}

func newTextWriter(w io.Writer) textWriter {
	return textWriter{w: bufio.NewWriter(w)}
}

func (tw textWriter) printf(format string, a ...any) {
	fmt.Fprintf(tw.w, format, a...)
}

func (tw textWriter) print(s string) {
	tw.w.WriteString(s) //nolint:errcheck // sticky, checked in err()
}

// err returns the first write error, if any.
func (tw textWriter) err() error {
	// a zero-length write reports the sticky error without flushing
	_, err := tw.w.Write(nil)
	return err
}

func (tw textWriter) flush() error {
	return tw.w.Flush()
}

// formatCoord formats degrees with as many digits as needed.
func formatCoord(deg float64) string {
	return strconv.FormatFloat(deg, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

const (
	xmlTimeFormat  = "2006-01-02T15:04:05Z"
	textTimeFormat = "2006-01-02 15:04:05"
)
