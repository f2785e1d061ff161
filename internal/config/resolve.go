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

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/timelinize/lhconvert/emit"
	"github.com/timelinize/lhconvert/locationhistory"
)

// Run is a resolved configuration, ready to be used.
type Run struct {
	Format  emit.Format
	Mode    locationhistory.Mode
	Options locationhistory.Options
	Emit    emit.Options

	// If true, the input has to be scanned for devices to exclude
	// (see locationhistory.DetectIgnoredDevices) before it is processed.
	AutoDevices bool
}

// Resolve parses all values of cfg. Any error is a configuration error;
// nothing has been read from the input yet.
func (cfg *Config) Resolve() (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	format, err := emit.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	run := &Run{
		Format: format,
		Mode:   locationhistory.ModeBulk,
		Options: locationhistory.Options{
			Chronological: cfg.Chronological,
			Normalizer:    locationhistory.Normalizer{FixE7Overflow: cfg.FixOverflow},
			Segment: locationhistory.SegmentOptions{
				MaxGap:        cfg.MaxGap,
				MaxDistanceKm: cfg.MaxDistanceKm,
			},
		},
		Emit: emit.Options{Variable: cfg.Variable},
	}
	if cfg.Iterative {
		run.Mode = locationhistory.ModeStream
	}

	run.Options.Filter.Window, err = TimeWindow(cfg.StartDate, cfg.StartTime, cfg.EndDate, cfg.EndTime)
	if err != nil {
		return nil, err
	}

	if cfg.Accuracy != nil {
		maxAcc := *cfg.Accuracy
		run.Options.Filter.MaxAccuracy = &maxAcc
	}

	if len(cfg.Polygon) > 0 {
		vertices := make([]locationhistory.LatLon, 0, len(cfg.Polygon))
		for _, s := range cfg.Polygon {
			v, err := ParseLatLon(s)
			if err != nil {
				return nil, err
			}
			vertices = append(vertices, v)
		}
		run.Options.Filter.Polygon, err = locationhistory.NewPolygon(vertices)
		if err != nil {
			return nil, err
		}
	}

	var devices []int64
	devices, run.AutoDevices, err = ParseDevices(cfg.FilteredDevices)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		run.Options.Filter.ExcludeDevices = make(map[int64]struct{}, len(devices))
		for _, tag := range devices {
			run.Options.Filter.ExcludeDevices[tag] = struct{}{}
		}
	}

	run.Emit.Separator, err = ParseSeparator(cfg.Separator)
	if err != nil {
		return nil, err
	}

	return run, nil
}

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a valid date (YYYY-MM-DD): %q", s)
	}
	return t, nil
}

// ParseClock parses a HH:MM time of day as the duration since midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("not a valid time (HH:MM): %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Errors returned by TimeWindow.
var (
	ErrTimeWithoutDate = errors.New("a time of day requires the corresponding date")
	ErrEmptyWindow     = errors.New("start of the time window is not before its end")
)

// TimeWindow builds the time window from dates and times of day, all
// optional and in UTC. The start is the start date at the start time
// (or midnight). The end is exclusive: the end date at the end time if
// one is given, otherwise midnight after the end date, so that the whole
// end date is included.
func TimeWindow(startDate, startTime, endDate, endTime string) (locationhistory.TimeWindow, error) {
	var tw locationhistory.TimeWindow

	if startDate != "" {
		start, err := ParseDate(startDate)
		if err != nil {
			return tw, fmt.Errorf("start date: %w", err)
		}
		if startTime != "" {
			clock, err := ParseClock(startTime)
			if err != nil {
				return tw, fmt.Errorf("start time: %w", err)
			}
			start = start.Add(clock)
		}
		tw.Start = &start
	} else if startTime != "" {
		return tw, fmt.Errorf("start time: %w", ErrTimeWithoutDate)
	}

	if endDate != "" {
		end, err := ParseDate(endDate)
		if err != nil {
			return tw, fmt.Errorf("end date: %w", err)
		}
		if endTime != "" {
			clock, err := ParseClock(endTime)
			if err != nil {
				return tw, fmt.Errorf("end time: %w", err)
			}
			end = end.Add(clock)
		} else {
			end = end.AddDate(0, 0, 1)
		}
		tw.End = &end
	} else if endTime != "" {
		return tw, fmt.Errorf("end time: %w", ErrTimeWithoutDate)
	}

	if tw.Start != nil && tw.End != nil && !tw.Start.Before(*tw.End) {
		return tw, fmt.Errorf("%w: %s", ErrEmptyWindow, tw)
	}
	return tw, nil
}

// ParseLatLon parses a "lat,lon" pair in degrees.
func ParseLatLon(s string) (locationhistory.LatLon, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return locationhistory.LatLon{}, fmt.Errorf("polygon point must be lat,lon: %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return locationhistory.LatLon{}, fmt.Errorf("polygon point %q: latitude: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return locationhistory.LatLon{}, fmt.Errorf("polygon point %q: longitude: %w", s, err)
	}
	return locationhistory.LatLon{Lat: lat, Lon: lon}, nil
}

// AutoDevices is the value of the filtered devices setting that
// detects the devices to exclude from the input.
const AutoDevices = "auto"

// ParseDevices parses a comma-separated list of device tags, or "auto".
func ParseDevices(s string) (tags []int64, auto bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false, nil
	}
	if strings.EqualFold(s, AutoDevices) {
		return nil, true, nil
	}
	for _, field := range strings.Split(s, ",") {
		tag, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("filtered devices must be %q or a list of device tags: %q", AutoDevices, s)
		}
		tags = append(tags, tag)
	}
	return tags, false, nil
}

// ParseSeparator returns the single character in s. "\t" (backslash, t)
// and "tab" mean a tab.
func ParseSeparator(s string) (rune, error) {
	if s == `\t` || strings.EqualFold(s, "tab") {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) || r == utf8.RuneError {
		return 0, fmt.Errorf("separator must be a single character: %q", s)
	}
	switch r {
	case '"', '\r', '\n':
		return 0, fmt.Errorf("separator cannot be %q", r)
	}
	return r, nil
}
