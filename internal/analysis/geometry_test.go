package analysis

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func TestAngleBetween(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c Point
		want    float64
	}{
		{"right angle", Point{1, 0}, Point{0, 0}, Point{0, 1}, 90},
		{"straight line", Point{-1, 0}, Point{0, 0}, Point{1, 0}, 180},
		{"same direction", Point{1, 0}, Point{0, 0}, Point{2, 0}, 0},
		{"forty five", Point{1, 0}, Point{0, 0}, Point{1, 1}, 45},
		{"offset vertex", Point{10, 5}, Point{5, 5}, Point{5, 10}, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AngleBetween(tt.a, tt.b, tt.c)
			if !ok {
				t.Fatal("expected a result")
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("AngleBetween() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestAngleBetween_Degenerate(t *testing.T) {
	p := Point{3, 4}
	q := Point{7, -2}

	cases := []struct {
		name    string
		a, b, c Point
	}{
		{"a equals b", p, p, q},
		{"c equals b", q, p, p},
		{"all coincident", p, p, p},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AngleBetween(tt.a, tt.b, tt.c)
			if ok {
				t.Errorf("expected no result, got %f", got)
			}
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Errorf("degenerate result must not be NaN or Inf, got %f", got)
			}
		})
	}
}

func TestAngleBetween_Range(t *testing.T) {
	// Nearly collinear points push the cosine past +/-1 without clamping.
	points := []Point{
		{0, 0}, {1e-9, 1e-9}, {1e9, 1e9}, {-3, 7}, {0.1, -0.2}, {5, 5}, {1, 1 + 1e-15}, {-1e6, 2},
	}

	for _, a := range points {
		for _, b := range points {
			for _, c := range points {
				got, ok := AngleBetween(a, b, c)
				if !ok {
					continue
				}
				if math.IsNaN(got) || got < 0 || got > 180 {
					t.Fatalf("AngleBetween(%v, %v, %v) = %f, out of [0,180]", a, b, c, got)
				}
			}
		}
	}
}

func TestDistance(t *testing.T) {
	a := Point{1, 2}
	b := Point{4, 6}

	if got := Distance(a, b); math.Abs(got-5) > epsilon {
		t.Errorf("Distance() = %f, want 5", got)
	}
	if Distance(a, a) != 0 {
		t.Error("distance from a point to itself should be 0")
	}
	if Distance(a, b) != Distance(b, a) {
		t.Error("distance should be symmetric")
	}
}
