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
	"math"
	"time"
)

// Default thresholds for splitting points into tracks: no points for 10
// minutes, or a jump of more than 40 km between two consecutive points,
// starts a new track.
const (
	DefaultMaxGap        = 10 * time.Minute
	DefaultMaxDistanceKm = 40
)

// SegmentOptions configures how points are grouped into tracks.
// Zero values mean the defaults.
type SegmentOptions struct {
	MaxGap        time.Duration `json:"max_gap,omitempty"`
	MaxDistanceKm float64       `json:"max_distance_km,omitempty"`
}

func (so SegmentOptions) withDefaults() SegmentOptions {
	if so.MaxGap <= 0 {
		so.MaxGap = DefaultMaxGap
	}
	if so.MaxDistanceKm <= 0 {
		so.MaxDistanceKm = DefaultMaxDistanceKm
	}
	return so
}

// Splits returns true if next must start a new track after prev, the last
// point of the current track. Either threshold being exceeded is enough.
func (so SegmentOptions) Splits(prev, next *Point) bool {
	so = so.withDefaults()
	elapsed := next.Timestamp.Sub(prev.Timestamp)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	if elapsed > so.MaxGap {
		return true
	}
	return HaversineKm(prev.Latitude, prev.Longitude, next.Latitude, next.Longitude) > so.MaxDistanceKm
}

// Track is a run of consecutive points that belong to one journey.
// It always has at least one point.
type Track struct {
	Points []*Point
}

// Start returns the time of the first point.
func (t *Track) Start() time.Time { return t.Points[0].Timestamp }

// End returns the time of the last point.
func (t *Track) End() time.Time { return t.Points[len(t.Points)-1].Timestamp }

// TrackSegmenter groups the points of a chronological source into tracks.
// It does not sort; points out of order produce meaningless tracks.
type TrackSegmenter struct {
	src     PointSource
	opts    SegmentOptions
	pending *Point // first point of the next track
	done    bool
}

// NewTrackSegmenter returns a segmenter reading points from src.
func NewTrackSegmenter(src PointSource, opts SegmentOptions) *TrackSegmenter {
	return &TrackSegmenter{src: src, opts: opts.withDefaults()}
}

// NextTrack returns the next track. When there are no more tracks,
// it returns (nil, nil).
func (ts *TrackSegmenter) NextTrack(ctx context.Context) (*Track, error) {
	if ts.done {
		return nil, nil
	}

	var track *Track
	if ts.pending != nil {
		track = &Track{Points: []*Point{ts.pending}}
		ts.pending = nil
	}

	for {
		p, err := ts.src.NextPoint(ctx)
		if err != nil {
			return nil, err
		}
		if p == nil {
			ts.done = true
			return track, nil
		}
		if track == nil {
			track = &Track{Points: []*Point{p}}
			continue
		}
		if ts.opts.Splits(track.Points[len(track.Points)-1], p) {
			ts.pending = p
			return track, nil
		}
		track.Points = append(track.Points, p)
	}
}

// HaversineKm computes the great-circle distance in kilometers between two
// points on Earth, given in degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := degreesToRadians(lat1)
	phi2 := degreesToRadians(lat2)
	lambda1 := degreesToRadians(lon1)
	lambda2 := degreesToRadians(lon2)

	h := haversin(phi2-phi1) + math.Cos(phi1)*math.Cos(phi2)*haversin(lambda2-lambda1)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(math.Min(h, 1))) // rounding can push h past 1 for antipodes
}

func haversin(theta float64) float64 {
	return 0.5 * (1 - math.Cos(theta)) //nolint:mnd
}

func degreesToRadians(d float64) float64 {
	return d * (math.Pi / 180) //nolint:mnd
}

const earthRadiusKm = 6371
