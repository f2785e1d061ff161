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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// RawRecord is a single location record as it was read from the export.
// Coordinates are still integers scaled by 1e7; no validation other than
// the presence of the timestamp and both coordinates has been done.
type RawRecord struct {
	TimestampMs int64 // milliseconds since the Unix epoch
	LatitudeE7  int64 // latitude times 1e7
	LongitudeE7 int64 // longitude times 1e7

	Accuracy         *float64 // meters; higher values are less accurate
	Speed            *float64 // meters/second
	Altitude         *float64 // meters
	VerticalAccuracy *float64 // meters
	Heading          *float64 // degrees
	Activity         []ActivityRecord

	DeviceTag    *int64 // may correspond with a device in Settings.json
	Platform     string
	PlatformType string // ANDROID, IOS, or UNKNOWN

	// Original is the JSON of the record exactly as it was read.
	Original json.RawMessage
}

// ActivityRecord is one activity detection attached to a location.
type ActivityRecord struct {
	TimestampMs string     `json:"timestampMs,omitempty"`
	Timestamp   string     `json:"timestamp,omitempty"`
	Activity    []Activity `json:"activity"`
}

// Activity is a classified activity with its confidence (0-100).
type Activity struct {
	Type       string `json:"type"`
	Confidence int    `json:"confidence"`
}

// Awesome unofficial documentation: https://locationhistoryformat.com/
type record struct {
	TimestampMs      *msTimestamp     `json:"timestampMs"` // old exports, in milliseconds
	Timestamp        *time.Time       `json:"timestamp"`   // newer exports
	LatitudeE7       *int64           `json:"latitudeE7"`
	LongitudeE7      *int64           `json:"longitudeE7"`
	Accuracy         *float64         `json:"accuracy"`
	Velocity         *float64         `json:"velocity"`
	Speed            *float64         `json:"speed"` // some third-party exports
	Altitude         *float64         `json:"altitude"`
	VerticalAccuracy *float64         `json:"verticalAccuracy"`
	Heading          *float64         `json:"heading"`
	Activity         []ActivityRecord `json:"activity"`
	DeviceTag        *int64           `json:"deviceTag"`
	Platform         string           `json:"platform"`
	PlatformType     string           `json:"platformType"`
}

// msTimestamp is a millisecond timestamp that may be encoded
// either as a JSON number or as a string of digits.
type msTimestamp int64

func (ms *msTimestamp) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) > 0 && s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = unquoted
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid millisecond timestamp %s: %w", b, err)
	}
	*ms = msTimestamp(v)
	return nil
}

var (
	errMissingTimestamp   = errors.New("missing timestamp")
	errMissingCoordinates = errors.New("missing coordinates")
)

// parseRecord decodes one element of the locations array. An error
// means the record has to be skipped; it never says anything about
// the structure of the rest of the document.
func parseRecord(raw json.RawMessage) (*RawRecord, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}

	var tsMs int64
	switch {
	case rec.TimestampMs != nil:
		tsMs = int64(*rec.TimestampMs)
	case rec.Timestamp != nil:
		tsMs = rec.Timestamp.UnixMilli()
	default:
		return nil, errMissingTimestamp
	}
	if rec.LatitudeE7 == nil || rec.LongitudeE7 == nil {
		return nil, errMissingCoordinates
	}

	speed := rec.Velocity
	if speed == nil {
		speed = rec.Speed
	}

	return &RawRecord{
		TimestampMs:      tsMs,
		LatitudeE7:       *rec.LatitudeE7,
		LongitudeE7:      *rec.LongitudeE7,
		Accuracy:         rec.Accuracy,
		Speed:            speed,
		Altitude:         rec.Altitude,
		VerticalAccuracy: rec.VerticalAccuracy,
		Heading:          rec.Heading,
		Activity:         rec.Activity,
		DeviceTag:        rec.DeviceTag,
		Platform:         rec.Platform,
		PlatformType:     rec.PlatformType,
		Original:         raw,
	}, nil
}

// recordDecoder is shared by the record sources so that every mode
// skips exactly the same records.
type recordDecoder struct {
	log     *zap.Logger
	index   int // position in the locations array
	skipped int
}

// decode returns the record in raw, or nil if it must be skipped.
func (rd *recordDecoder) decode(raw json.RawMessage) *RawRecord {
	rd.index++
	rec, err := parseRecord(raw)
	if err != nil {
		rd.skipped++
		rd.log.Debug("skipping malformed record",
			zap.Int("index", rd.index-1),
			zap.Error(err))
		return nil
	}
	return rec
}

// Skipped returns how many records have been skipped so far because
// they could not be decoded or lacked required fields.
func (rd *recordDecoder) Skipped() int { return rd.skipped }
