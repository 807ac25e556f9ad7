package fleet

import "math"

// Point is a [latitude, longitude] pair in decimal degrees.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// HeadingEpsilonDegrees is the minimum per-axis displacement before a new
// heading is computed. GPS jitter on a stationary vehicle stays below this.
const HeadingEpsilonDegrees = 0.0001

const earthRadiusMetres = 6371000

// Heading returns the screen rotation in degrees for a marker travelling
// from a to b. 0 points north, angles increase clockwise.
func Heading(a Point, b Point) float64 {
	return math.Atan2(b.Longitude-a.Longitude, b.Latitude-a.Latitude) * (180 / math.Pi)
}

// SignificantMove reports whether the displacement between a and b exceeds
// the heading epsilon on either axis.
func SignificantMove(a Point, b Point) bool {
	return math.Abs(a.Latitude-b.Latitude) > HeadingEpsilonDegrees ||
		math.Abs(a.Longitude-b.Longitude) > HeadingEpsilonDegrees
}

// Distance returns the haversine distance between two points in metres.
func Distance(a Point, b Point) float64 {
	latA := a.Latitude * (math.Pi / 180)
	latB := b.Latitude * (math.Pi / 180)
	dLat := (b.Latitude - a.Latitude) * (math.Pi / 180)
	dLon := (b.Longitude - a.Longitude) * (math.Pi / 180)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMetres * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Lerp linearly interpolates between a and b, with t clamped to [0, 1].
func Lerp(a Point, b Point, t float64) Point {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return Point{
		Latitude:  a.Latitude + (b.Latitude-a.Latitude)*t,
		Longitude: a.Longitude + (b.Longitude-a.Longitude)*t,
	}
}
