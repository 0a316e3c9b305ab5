// Package geo holds small geometry helpers shared by the route engine, the
// UPES sampler, and the alerts engine: distance, bearing, and polyline
// resampling over WGS84 coordinates.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusM = 6371000.0

// HaversineM returns the great-circle distance in meters between two
// (lon, lat) points.
func HaversineM(a, b orb.Point) float64 {
	lat1, lon1 := a[1]*math.Pi/180, a[0]*math.Pi/180
	lat2, lon2 := b[1]*math.Pi/180, b[0]*math.Pi/180
	dLat := lat2 - lat1
	dLon := lon2 - lon1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// HaversineKM is HaversineM scaled to kilometers.
func HaversineKM(a, b orb.Point) float64 {
	return HaversineM(a, b) / 1000.0
}

// BearingDeg returns the initial bearing in degrees [0, 360) from a to b.
func BearingDeg(a, b orb.Point) float64 {
	lat1, lon1 := a[1]*math.Pi/180, a[0]*math.Pi/180
	lat2, lon2 := b[1]*math.Pi/180, b[0]*math.Pi/180
	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	theta := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(theta+360, 360)
}

// AngleDiffDeg returns the smallest absolute angular difference between two
// bearings in degrees, in [0, 180].
func AngleDiffDeg(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// ResampleLine walks the line defined by (a, b) at approximately stepM meter
// intervals and returns the sampled points, including both endpoints.
func ResampleLine(a, b orb.Point, stepM float64) []orb.Point {
	total := HaversineM(a, b)
	if total == 0 {
		return []orb.Point{a}
	}
	if stepM <= 0 {
		stepM = 50
	}
	n := int(math.Ceil(total / stepM))
	points := make([]orb.Point, 0, n+1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		points = append(points, orb.Point{
			a[0] + t*(b[0]-a[0]),
			a[1] + t*(b[1]-a[1]),
		})
	}
	return points
}

// ResamplePolyline resamples a multi-segment polyline at approximately stepM
// meter intervals, preserving order and dropping duplicate junction points.
func ResamplePolyline(line orb.LineString, stepM float64) []orb.Point {
	if len(line) == 0 {
		return nil
	}
	var out []orb.Point
	for i := 0; i+1 < len(line); i++ {
		seg := ResampleLine(line[i], line[i+1], stepM)
		if i > 0 && len(seg) > 0 {
			seg = seg[1:]
		}
		out = append(out, seg...)
	}
	if len(out) == 0 {
		out = append(out, line[0])
	}
	return out
}

// BoundingBox is an axis-aligned envelope in WGS84 degrees.
type BoundingBox struct {
	West, South, East, North float64
}

// Expand grows the box by bufferKM kilometers on every side.
func (b BoundingBox) Expand(bufferKM float64) BoundingBox {
	// ~111.32 km per degree of latitude; longitude degrees are scaled by
	// the cosine of the box's mean latitude.
	dLat := bufferKM / 111.32
	meanLat := (b.North + b.South) / 2
	cos := math.Cos(meanLat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	dLon := bufferKM / (111.32 * cos)
	return BoundingBox{
		West:  b.West - dLon,
		South: b.South - dLat,
		East:  b.East + dLon,
		North: b.North + dLat,
	}
}

// EnvelopeOf returns the axis-aligned bounding box of two points.
func EnvelopeOf(a, b orb.Point) BoundingBox {
	west, east := a[0], b[0]
	if west > east {
		west, east = east, west
	}
	south, north := a[1], b[1]
	if south > north {
		south, north = north, south
	}
	return BoundingBox{West: west, South: south, East: east, North: north}
}
