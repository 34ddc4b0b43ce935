package spatial

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultBufferMeters is the proximity distance around a trail
const DefaultBufferMeters = 50.0

// DefaultQuadrantSegments is the number of arc segments per quarter circle
const DefaultQuadrantSegments = 8

// Buffer geometry errors
var (
	ErrEmptyGeometry      = errors.New("empty geometry")
	ErrDegenerateGeometry = errors.New("degenerate geometry: no segment of positive length")
	ErrInvalidCoordinate  = errors.New("invalid coordinate")
)

// Buffer is the tolerance polygon around a line geometry. It is stored as
// the union of one capsule per segment; parts overlap, and a point is inside
// the buffer when any part contains it.
type Buffer struct {
	Parts  orb.MultiPolygon
	bounds []orb.Bound
	bound  orb.Bound
}

// Bound returns the bounding box of the whole buffer
func (b *Buffer) Bound() orb.Bound { return b.bound }

// Contains performs the exact point-in-polygon test
func (b *Buffer) Contains(p orb.Point) bool {
	if !b.bound.Contains(p) {
		return false
	}
	for i, part := range b.Parts {
		if !b.bounds[i].Contains(p) {
			continue
		}
		if planar.PolygonContains(part, p) {
			return true
		}
	}
	return false
}

// BufferBuilder offsets line geometries by a fixed distance in meters.
// Offsets are computed along great-circle bearings, so the distance holds
// regardless of the degree-based coordinates.
type BufferBuilder struct {
	DistanceMeters   float64
	QuadrantSegments int
}

// NewBufferBuilder returns a builder with the default resolution
func NewBufferBuilder(distanceMeters float64) BufferBuilder {
	if distanceMeters <= 0 {
		distanceMeters = DefaultBufferMeters
	}
	return BufferBuilder{
		DistanceMeters:   distanceMeters,
		QuadrantSegments: DefaultQuadrantSegments,
	}
}

// Build creates the buffer polygon for a multi-part line geometry
func (bb BufferBuilder) Build(mls orb.MultiLineString) (*Buffer, error) {
	if bb.DistanceMeters <= 0 {
		return nil, fmt.Errorf("buffer distance must be positive, got %v", bb.DistanceMeters)
	}
	if VertexCount(mls) == 0 {
		return nil, ErrEmptyGeometry
	}

	buf := &Buffer{}
	for partIdx, ls := range mls {
		for i, p := range ls {
			if !ValidPoint(p) {
				return nil, fmt.Errorf("%w: part %d vertex %d (%v, %v)", ErrInvalidCoordinate, partIdx, i, p.Lon(), p.Lat())
			}
		}

		for i := 1; i < len(ls); i++ {
			a, b := ls[i-1], ls[i]
			if a.Equal(b) {
				continue
			}
			capsule := orb.Polygon{bb.capsule(a, b)}
			bound := capsule.Bound()
			if len(buf.Parts) == 0 {
				buf.bound = bound
			} else {
				buf.bound = buf.bound.Union(bound)
			}
			buf.Parts = append(buf.Parts, capsule)
			buf.bounds = append(buf.bounds, bound)
		}
	}

	if len(buf.Parts) == 0 {
		return nil, ErrDegenerateGeometry
	}
	return buf, nil
}

// capsule builds the closed ring around segment a-b: a half circle around b
// from its left side to its right side, then a half circle around a back to
// the left side.
func (bb BufferBuilder) capsule(a, b orb.Point) orb.Ring {
	segs := bb.QuadrantSegments
	if segs <= 0 {
		segs = DefaultQuadrantSegments
	}
	steps := 2 * segs
	step := 180.0 / float64(steps)

	forward := Bearing(a, b)      // heading leaving a
	arrive := Bearing(b, a) + 180 // heading arriving at b

	ring := make(orb.Ring, 0, 2*(steps+1)+1)
	for i := 0; i <= steps; i++ {
		ring = append(ring, DestinationPoint(b, arrive-90+float64(i)*step, bb.DistanceMeters))
	}
	for i := 0; i <= steps; i++ {
		ring = append(ring, DestinationPoint(a, forward+90+float64(i)*step, bb.DistanceMeters))
	}
	ring = append(ring, ring[0])

	return ring
}
