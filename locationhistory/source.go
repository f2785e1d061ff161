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

package locationhistory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/mholt/archives"
	"go.uber.org/zap"
)

// RecordSource is a type that can get the next raw record to process.
type RecordSource interface {
	// NextRecord returns the next record that has a timestamp and
	// coordinates. When there are no more records, it returns (nil, nil).
	//
	// Implementations must honor context cancellation.
	NextRecord(ctx context.Context) (*RawRecord, error)
}

// Mode chooses how the input document is decoded.
type Mode int

const (
	// ModeBulk decodes the whole document into memory before the
	// first record is returned. Memory use is proportional to the
	// size of the input.
	ModeBulk Mode = iota

	// ModeStream decodes one record at a time. Memory use does not
	// depend on the size of the input.
	ModeStream
)

func (m Mode) String() string {
	switch m {
	case ModeBulk:
		return "bulk"
	case ModeStream:
		return "stream"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ErrInvalidDocument is returned when the input is not a JSON object with a
// "locations" array. It is fatal for the whole run.
var ErrInvalidDocument = errors.New("invalid location history document")

// locationsKey is the name of the top-level member holding the records.
const locationsKey = "locations"

// errDuplicateLocations is returned for a document with more than one
// "locations" member, since the records to convert would be ambiguous.
var errDuplicateLocations = fmt.Errorf("%w: more than one %q member", ErrInvalidDocument, locationsKey)

// NewRecordSource returns the record source for the given mode reading from r.
// Structural problems found before the first record is reached are returned
// here, so a caller can fail before producing any output.
func NewRecordSource(r io.Reader, mode Mode) (RecordSource, error) {
	switch mode {
	case ModeBulk:
		return NewBulkSource(r)
	case ModeStream:
		return NewStreamSource(r)
	}
	return nil, fmt.Errorf("unknown decoding mode: %v", mode)
}

// BulkSource holds the entire locations array in memory.
type BulkSource struct {
	recordDecoder
	records []json.RawMessage
}

// NewBulkSource reads and decodes all of r.
func NewBulkSource(r io.Reader) (*BulkSource, error) {
	dec := json.NewDecoder(r)
	if err := openObject(dec); err != nil {
		return nil, err
	}

	var records []json.RawMessage
	var found bool
	for dec.More() {
		key, err := memberName(dec)
		if err != nil {
			return nil, err
		}
		if key != locationsKey {
			if err := skipValue(dec); err != nil {
				return nil, fmt.Errorf("%w: skipping member %s: %w", ErrInvalidDocument, key, err)
			}
			continue
		}
		if found {
			return nil, errDuplicateLocations
		}
		found = true
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: decoding %s value: %w", ErrInvalidDocument, locationsKey, err)
		}
		if len(raw) == 0 || raw[0] != '[' {
			return nil, fmt.Errorf("%w: %q is not an array", ErrInvalidDocument, locationsKey)
		}
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: decoding closing token: %w", ErrInvalidDocument, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: no %q array", ErrInvalidDocument, locationsKey)
	}

	return &BulkSource{
		recordDecoder: recordDecoder{log: Log.Named("source.bulk")},
		records:       records,
	}, nil
}

// NextRecord implements RecordSource.
func (bs *BulkSource) NextRecord(ctx context.Context) (*RawRecord, error) {
	for len(bs.records) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := bs.records[0]
		bs.records[0] = nil // let the GC have it
		bs.records = bs.records[1:]
		if rec := bs.decode(raw); rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

// StreamSource decodes the locations array one element at a time.
// Other members of the top-level object are skipped token by token,
// so they are never held in memory either.
type StreamSource struct {
	recordDecoder
	dec  *json.Decoder
	done bool
}

// NewStreamSource positions a decoder at the start of the locations
// array in r. Members preceding the array are skipped.
func NewStreamSource(r io.Reader) (*StreamSource, error) {
	ss := &StreamSource{
		recordDecoder: recordDecoder{log: Log.Named("source.stream")},
		dec:           json.NewDecoder(r),
	}
	if err := ss.seekLocations(); err != nil {
		return nil, err
	}
	return ss, nil
}

// seekLocations reads the following opening tokens:
// 1. open brace '{'
// 2. member names up to and including "locations" (skipping their values)
// 3. the array value's opening bracket '['
func (ss *StreamSource) seekLocations() error {
	if err := openObject(ss.dec); err != nil {
		return err
	}

	for ss.dec.More() {
		key, err := memberName(ss.dec)
		if err != nil {
			return err
		}
		if key == locationsKey {
			token, err := ss.dec.Token()
			if err != nil {
				return fmt.Errorf("%w: decoding %s value: %w", ErrInvalidDocument, locationsKey, err)
			}
			if delim, ok := token.(json.Delim); !ok || delim != '[' {
				return fmt.Errorf("%w: %q is not an array", ErrInvalidDocument, locationsKey)
			}
			return nil
		}
		if err := skipValue(ss.dec); err != nil {
			return fmt.Errorf("%w: skipping member %s: %w", ErrInvalidDocument, key, err)
		}
	}

	return fmt.Errorf("%w: no %q array", ErrInvalidDocument, locationsKey)
}

// NextRecord implements RecordSource.
func (ss *StreamSource) NextRecord(ctx context.Context) (*RawRecord, error) {
	for !ss.done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ss.dec.More() {
			ss.done = true
			if err := ss.finish(); err != nil {
				return nil, err
			}
			break
		}
		var raw json.RawMessage
		if err := ss.dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: decoding location element: %w", ErrInvalidDocument, err)
		}
		if rec := ss.decode(raw); rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

// finish consumes the closing bracket of the locations array and the
// rest of the top-level object, so that a truncated document is
// reported the same way the bulk decoder reports it.
func (ss *StreamSource) finish() error {
	if _, err := ss.dec.Token(); err != nil {
		return fmt.Errorf("%w: decoding end of %s: %w", ErrInvalidDocument, locationsKey, err)
	}
	for ss.dec.More() {
		key, err := memberName(ss.dec)
		if err != nil {
			return err
		}
		if key == locationsKey {
			return errDuplicateLocations
		}
		if err := skipValue(ss.dec); err != nil {
			return fmt.Errorf("%w: skipping trailing member: %w", ErrInvalidDocument, err)
		}
	}
	if _, err := ss.dec.Token(); err != nil {
		return fmt.Errorf("%w: decoding closing token: %w", ErrInvalidDocument, err)
	}
	return nil
}

// openObject consumes the opening brace of the top-level object.
func openObject(dec *json.Decoder) error {
	token, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: decoding opening token: %w", ErrInvalidDocument, err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected top-level object, got %v", ErrInvalidDocument, token)
	}
	return nil
}

// memberName reads the next member name of the object dec is in.
// Names are matched exactly; "Locations" is not "locations".
func memberName(dec *json.Decoder) (string, error) {
	token, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: decoding member name: %w", ErrInvalidDocument, err)
	}
	key, ok := token.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected member name, got %v", ErrInvalidDocument, token)
	}
	return key, nil
}

// skipValue consumes the next JSON value from dec without keeping it.
func skipValue(dec *json.Decoder) error {
	var depth int
	for {
		token, err := dec.Token()
		if err != nil {
			return err
		}
		switch token {
		case json.Delim('{'), json.Delim('['):
			depth++
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
		if depth == 0 {
			return nil
		}
	}
}

// OpenInput opens the location history at filename. It may be the JSON
// file itself (optionally compressed, e.g. Records.json.gz), a folder, or
// a Takeout archive; for folders and archives, Records.json is located
// in the places Takeout has put it over the years.
func OpenInput(ctx context.Context, filename string) (io.ReadCloser, error) {
	fsys, err := archives.FileSystem(ctx, filename, nil)
	if err != nil {
		return nil, fmt.Errorf("opening input %s: %w", filename, err)
	}
	if _, ok := fsys.(archives.FileFS); ok {
		return fsys.Open(".")
	}

	file, err := openRecordsFile(fsys)
	if err != nil {
		return nil, fmt.Errorf("locating data file in %s: %w", filename, err)
	}
	Log.Named("source").Debug("found location history in container",
		zap.String("input", filename))
	return file, nil
}

// openRecordsFile tries the known locations of Records.json within
// fsys: the Takeout root, a folder extracted from it (with or without
// the "Takeout" top dir), or the Location History folder itself.
func openRecordsFile(fsys fs.FS) (fs.File, error) {
	for _, top := range []string{"Takeout", "."} {
		for _, dir := range []string{
			takeoutLocationHistoryPath2024,
			takeoutLocationHistoryPathPre2024,
			".",
		} {
			file, err := fsys.Open(path.Join(top, dir, recordsFilename))
			if err == nil {
				return file, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("no %s found: %w", recordsFilename, fs.ErrNotExist)
}

// The path within the Google Takeout archive of the location history records.
const (
	takeoutLocationHistoryPathPre2024 = "Location History"
	takeoutLocationHistoryPath2024    = "Location History (Timeline)"
	recordsFilename                   = "Records.json"
)
