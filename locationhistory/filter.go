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
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Filter decides which points are included in the output. The zero value
// includes every point that is not from an ignored platform. All rules
// must pass; they don't depend on each other or on the order of points.
type Filter struct {
	// Only points inside this window are included.
	Window TimeWindow

	// If set, points with a larger accuracy value (i.e. worse
	// accuracy) or without any accuracy value are excluded.
	MaxAccuracy *float64

	// If set, only points on or inside the polygon are included.
	Polygon *Polygon

	// Points from these devices are excluded.
	ExcludeDevices map[int64]struct{}
}

// Include returns true if p passes all the rules of the filter.
func (f Filter) Include(p *Point) bool {
	if !f.Window.Contains(p.Timestamp) {
		return false
	}
	if f.MaxAccuracy != nil && (p.Accuracy == nil || *p.Accuracy > *f.MaxAccuracy) {
		return false
	}
	if f.Polygon != nil && !f.Polygon.Contains(p.Latitude, p.Longitude) {
		return false
	}
	if p.DeviceTag != nil {
		if _, excluded := f.ExcludeDevices[*p.DeviceTag]; excluded {
			return false
		}
	}
	return validPlatform(p.PlatformType, p.Platform)
}

// TimeWindow represents a start and end time, where either value could be
// nil which means unbounded in that direction. Start is inclusive and End
// is exclusive.
type TimeWindow struct {
	Start *time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End   *time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

// IsEmpty returns true if the window is not bounded in any direction.
func (tw TimeWindow) IsEmpty() bool {
	return tw.Start == nil && tw.End == nil
}

// Contains returns true if ts is in the window: not before Start,
// and before End.
func (tw TimeWindow) Contains(ts time.Time) bool {
	afterStart := tw.Start == nil || !ts.Before(*tw.Start)
	beforeEnd := tw.End == nil || ts.Before(*tw.End)
	return afterStart && beforeEnd
}

func (tw TimeWindow) String() string {
	return fmt.Sprintf("{Start:%s End:%s}", tw.Start, tw.End)
}

// LatLon is a vertex of a Polygon, in degrees.
type LatLon struct {
	Lat, Lon float64
}

// Polygon is a region that points can be tested against. Edges are
// straight lines in the latitude/longitude plane.
type Polygon struct {
	vertices []LatLon
	poly     orb.Polygon
}

// Errors returned by NewPolygon.
var (
	ErrTooFewVertices = errors.New("polygon needs at least 2 points to create a rectangle (bottom left and top right)")
	ErrVertexRange    = errors.New("polygon vertex out of range")
)

// NewPolygon makes a polygon from the given vertices. If exactly two
// vertices are given, they are treated as opposite corners of an
// axis-aligned rectangle.
func NewPolygon(vertices []LatLon) (*Polygon, error) {
	if len(vertices) < 2 {
		return nil, ErrTooFewVertices
	}
	for _, v := range vertices {
		if math.IsNaN(v.Lat) || math.IsNaN(v.Lon) ||
			v.Lat < -90 || v.Lat > 90 || v.Lon < -180 || v.Lon > 180 {
			return nil, fmt.Errorf("%w: (%g, %g)", ErrVertexRange, v.Lat, v.Lon)
		}
	}

	if len(vertices) == 2 {
		vertices = rectangle(vertices[0], vertices[1])
	}

	// orb points are (x, y), so longitude comes first
	ring := make(orb.Ring, 0, len(vertices)+1)
	for _, v := range vertices {
		ring = append(ring, orb.Point{v.Lon, v.Lat})
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}

	return &Polygon{
		vertices: vertices,
		poly:     orb.Polygon{ring},
	}, nil
}

// rectangle returns the four corners of the axis-aligned rectangle
// that has a and b as opposite corners.
func rectangle(a, b LatLon) []LatLon {
	minLat, maxLat := math.Min(a.Lat, b.Lat), math.Max(a.Lat, b.Lat)
	minLon, maxLon := math.Min(a.Lon, b.Lon), math.Max(a.Lon, b.Lon)
	return []LatLon{
		{minLat, minLon},
		{maxLat, minLon},
		{maxLat, maxLon},
		{minLat, maxLon},
	}
}

// Contains returns true if the coordinate is inside the polygon or on
// its boundary.
func (p *Polygon) Contains(lat, lon float64) bool {
	return planar.PolygonContains(p.poly, orb.Point{lon, lat})
}

// Vertices returns the vertices of the polygon (four of them if it was
// made from two corners).
func (p *Polygon) Vertices() []LatLon {
	return p.vertices
}

// ignoredPlatforms are builds that report fake locations, keyed by
// platform type.
var ignoredPlatforms = map[string][]*regexp.Regexp{
	"ANDROID": {
		regexp.MustCompile(`^android/google/sdk_.*`), // emulator
	},
}

func validPlatform(platformType, platform string) bool {
	if platformType == "" || platform == "" {
		return true
	}
	for _, re := range ignoredPlatforms[platformType] {
		if re.MatchString(platform) {
			return false
		}
	}
	return true
}
