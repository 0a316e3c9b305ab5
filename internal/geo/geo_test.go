package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestHaversineKMKnownDistance(t *testing.T) {
	// Los Angeles to San Francisco, approximately 559 km.
	la := orb.Point{-118.2437, 34.0522}
	sf := orb.Point{-122.4194, 37.7749}
	d := HaversineKM(la, sf)
	if d < 500 || d > 620 {
		t.Errorf("HaversineKM(LA, SF) = %v, want ~559", d)
	}
}

func TestHaversineZeroForSamePoint(t *testing.T) {
	p := orb.Point{10, 20}
	if d := HaversineM(p, p); d != 0 {
		t.Errorf("HaversineM(p, p) = %v, want 0", d)
	}
}

func TestAngleDiffDegWrapsAround(t *testing.T) {
	if d := AngleDiffDeg(350, 10); math.Abs(d-20) > 1e-6 {
		t.Errorf("AngleDiffDeg(350, 10) = %v, want 20", d)
	}
	if d := AngleDiffDeg(0, 180); math.Abs(d-180) > 1e-6 {
		t.Errorf("AngleDiffDeg(0, 180) = %v, want 180", d)
	}
}

func TestResampleLineIncludesEndpoints(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{0, 0.01}
	pts := ResampleLine(a, b, 50)
	if len(pts) < 2 {
		t.Fatalf("expected at least 2 points, got %d", len(pts))
	}
	if pts[0] != a || pts[len(pts)-1] != b {
		t.Errorf("ResampleLine should include both endpoints, got first=%v last=%v", pts[0], pts[len(pts)-1])
	}
}

func TestResampleLineDegenerate(t *testing.T) {
	p := orb.Point{5, 5}
	pts := ResampleLine(p, p, 50)
	if len(pts) != 1 {
		t.Errorf("degenerate line should yield one point, got %d", len(pts))
	}
}
