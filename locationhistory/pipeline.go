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

// Package locationhistory converts the location history of a Google
// Takeout export (Records.json) into a stream of points or tracks.
//
// The processing is a chain of pull-based stages:
//
//	decoding -> normalizing -> filtering -> ordering (optional) -> segmenting (tracks only)
//
// Each stage asks the one before it for the next value only when its
// own caller asks, so nothing is read ahead of what the output has
// consumed. The only exception is chronological ordering, which must
// see every point before it can return the first one.
//
// I found this website very helpful as documentation of the Takeout format:
// https://locationhistoryformat.com/
package locationhistory

import (
	"context"

	"go.uber.org/zap"
)

// Options configures a Pipeline.
type Options struct {
	Filter     Filter
	Normalizer Normalizer

	// Sort points by timestamp before returning them. This
	// buffers every point that passes the filter in memory.
	Chronological bool

	// Thresholds for grouping points into tracks.
	Segment SegmentOptions
}

// Stats counts what happened to the records of a run.
type Stats struct {
	Read     int // records with timestamp and coordinates
	Skipped  int // records that were malformed or lacked required fields
	Dropped  int // records with out-of-range coordinates
	Filtered int // points excluded by the filter
	Emitted  int // points returned from the pipeline
}

// Pipeline reads records from a RecordSource and turns them into
// points (NextPoint) or tracks (Tracks). Use one of the two per pipeline.
//
// A Pipeline is not safe for concurrent use.
type Pipeline struct {
	src   RecordSource
	opts  Options
	out   PointSource
	stats Stats
	log   *zap.Logger
}

// NewPipeline returns a new pipeline that processes the records of src.
func NewPipeline(src RecordSource, opts Options) *Pipeline {
	p := &Pipeline{
		src:  src,
		opts: opts,
		log:  Log.Named("pipeline"),
	}
	p.out = NewOrderer(PointSourceFunc(p.nextIncluded), opts.Chronological)
	return p
}

// NextPoint returns the next point that passed the filter, in
// chronological order if that option is enabled. It returns (nil, nil)
// when the input is exhausted.
func (p *Pipeline) NextPoint(ctx context.Context) (*Point, error) {
	pt, err := p.out.NextPoint(ctx)
	if pt != nil {
		p.stats.Emitted++
	}
	return pt, err
}

// Tracks returns a segmenter that groups the points of this pipeline
// into tracks. Enable the Chronological option unless the input is known
// to be sorted already.
func (p *Pipeline) Tracks() *TrackSegmenter {
	return NewTrackSegmenter(p, p.opts.Segment)
}

// nextIncluded returns the next normalized point that passes the filter.
func (p *Pipeline) nextIncluded(ctx context.Context) (*Point, error) {
	for {
		rec, err := p.src.NextRecord(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
		p.stats.Read++

		pt, ok := p.opts.Normalizer.Normalize(rec)
		if !ok {
			p.stats.Dropped++
			p.log.Debug("dropping record with out-of-range coordinates",
				zap.Int64("timestamp_ms", rec.TimestampMs),
				zap.Int64("latitude_e7", rec.LatitudeE7),
				zap.Int64("longitude_e7", rec.LongitudeE7))
			continue
		}

		if !p.opts.Filter.Include(pt) {
			p.stats.Filtered++
			continue
		}

		return pt, nil
	}
}

// Stats returns the counts for the records processed so far.
func (p *Pipeline) Stats() Stats {
	stats := p.stats
	if sk, ok := p.src.(interface{ Skipped() int }); ok {
		stats.Skipped = sk.Skipped()
	}
	return stats
}

// LogSummary logs the counts of the run at info level.
func (p *Pipeline) LogSummary() {
	stats := p.Stats()
	p.log.Info("finished processing location history",
		zap.Int("read", stats.Read),
		zap.Int("skipped", stats.Skipped),
		zap.Int("dropped", stats.Dropped),
		zap.Int("filtered", stats.Filtered),
		zap.Int("emitted", stats.Emitted))
}
