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
	"slices"
)

// PointSource is a type that can get the next point to process.
type PointSource interface {
	// NextPoint returns the next point. When there are no more
	// points, it returns (nil, nil).
	//
	// Implementations must honor context cancellation.
	NextPoint(ctx context.Context) (*Point, error)
}

// PointSourceFunc is an adapter to use an ordinary function as a PointSource.
type PointSourceFunc func(ctx context.Context) (*Point, error)

// NextPoint calls f(ctx).
func (f PointSourceFunc) NextPoint(ctx context.Context) (*Point, error) { return f(ctx) }

// NewOrderer returns a source that yields the points of src in
// chronological order if enabled is true; otherwise it returns src
// itself and points come in the order they were read.
//
// When enabled, ALL points of src are read into memory at the first call
// to NextPoint, no matter how the records were decoded; memory use is
// then proportional to the number of points that passed the filter.
func NewOrderer(src PointSource, enabled bool) PointSource {
	if !enabled {
		return src
	}
	return &orderer{src: src}
}

type orderer struct {
	src     PointSource
	sorted  bool
	pending []*Point
}

func (o *orderer) NextPoint(ctx context.Context) (*Point, error) {
	if !o.sorted {
		for {
			p, err := o.src.NextPoint(ctx)
			if err != nil {
				return nil, err
			}
			if p == nil {
				break
			}
			o.pending = append(o.pending, p)
		}
		// stable, so points with the same timestamp keep the order they were read in
		slices.SortStableFunc(o.pending, func(a, b *Point) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
		o.sorted = true
	}

	if len(o.pending) == 0 {
		return nil, nil
	}
	next := o.pending[0]
	o.pending[0] = nil
	o.pending = o.pending[1:]
	return next, nil
}
