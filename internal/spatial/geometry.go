package spatial

import (
	"math"

	"github.com/paulmach/orb"
)

// ValidPoint reports whether p holds finite, in-range WGS84 coordinates
func ValidPoint(p orb.Point) bool {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// PathLength calculates the total length of a line string in meters
func PathLength(ls orb.LineString) float64 {
	if len(ls) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(ls); i++ {
		total += HaversineDistance(ls[i-1], ls[i])
	}
	return total
}

// MultiPathLength sums PathLength over every part
func MultiPathLength(mls orb.MultiLineString) float64 {
	var total float64
	for _, ls := range mls {
		total += PathLength(ls)
	}
	return total
}

// VertexCount counts the vertices of every part
func VertexCount(mls orb.MultiLineString) int {
	n := 0
	for _, ls := range mls {
		n += len(ls)
	}
	return n
}
