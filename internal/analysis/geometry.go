package analysis

import (
	"math"

	"github.com/ayusman/shotcoach/internal/detector"
)

// Point is a 2-D position in image coordinates.
type Point struct {
	X float64
	Y float64
}

// PointOf returns the position of a keypoint.
func PointOf(kp detector.Keypoint) Point {
	return Point{X: kp.X, Y: kp.Y}
}

// AngleBetween returns the angle at vertex b between rays b->a and b->c,
// in degrees within [0, 180]. ok is false when either ray has zero length.
func AngleBetween(a, b, c Point) (deg float64, ok bool) {
	abx, aby := a.X-b.X, a.Y-b.Y
	cbx, cby := c.X-b.X, c.Y-b.Y

	magA := math.Hypot(abx, aby)
	magC := math.Hypot(cbx, cby)
	if magA == 0 || magC == 0 {
		return 0, false
	}

	cos := (abx*cbx + aby*cby) / (magA * magC)
	cos = math.Max(-1, math.Min(1, cos))

	return math.Acos(cos) * 180 / math.Pi, true
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
