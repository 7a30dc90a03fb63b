package systems

import (
	"math"
	"math/rand"
	"testing"
)

func TestToroidalDelta(t *testing.T) {
	tests := []struct {
		name           string
		x1, y1, x2, y2 float64
		wantDX, wantDY float64
	}{
		{"direct", 10, 10, 20, 30, 10, 20},
		{"wrap x", 990, 50, 10, 50, 20, 0},
		{"wrap x negative", 10, 50, 990, 50, -20, 0},
		{"wrap y", 50, 790, 50, 10, 0, 20},
		{"wrap both", 995, 795, 5, 5, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dx, dy := ToroidalDelta(tt.x1, tt.y1, tt.x2, tt.y2, 1000, 800)
			if dx != tt.wantDX || dy != tt.wantDY {
				t.Errorf("got (%v, %v), want (%v, %v)", dx, dy, tt.wantDX, tt.wantDY)
			}
		})
	}
}

func TestWrapPosition(t *testing.T) {
	tests := []struct {
		x, y         float64
		wantX, wantY float64
	}{
		{50, 50, 50, 50},
		{-10, 50, 990, 50},
		{1010, 50, 10, 50},
		{50, -5, 50, 795},
		{50, 805, 50, 5},
		{1000, 800, 0, 0},
	}
	for _, tt := range tests {
		x, y := WrapPosition(tt.x, tt.y, 1000, 800)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("WrapPosition(%v, %v) = (%v, %v), want (%v, %v)", tt.x, tt.y, x, y, tt.wantX, tt.wantY)
		}
	}
}

// Queries must find every entry within the radius. Compare against a brute
// force scan over random populations, including radii larger than the world.
func TestQueryRadiusNoFalseNegatives(t *testing.T) {
	const w, h = 1000.0, 800.0
	rng := rand.New(rand.NewSource(7))

	grid := NewSpatialGrid(w, h, 50)

	type point struct{ x, y float64 }
	points := make([]point, 300)
	for i := range points {
		points[i] = point{rng.Float64() * w, rng.Float64() * h}
		grid.Insert(int32(i), points[i].x, points[i].y)
	}

	radii := []float64{10, 60, 150, 500, 2000}
	for _, radius := range radii {
		for trial := 0; trial < 20; trial++ {
			qx := rng.Float64() * w
			qy := rng.Float64() * h

			want := make(map[int32]bool)
			for i, p := range points {
				dx, dy := ToroidalDelta(qx, qy, p.x, p.y, w, h)
				if dx*dx+dy*dy <= radius*radius {
					want[int32(i)] = true
				}
			}

			got := grid.QueryRadiusInto(nil, qx, qy, radius, -1)
			seen := make(map[int32]bool)
			for _, n := range got {
				if seen[n.Idx] {
					t.Fatalf("radius %v: duplicate result %d", radius, n.Idx)
				}
				seen[n.Idx] = true
				if !want[n.Idx] {
					t.Fatalf("radius %v: result %d is outside the radius", radius, n.Idx)
				}
			}
			for idx := range want {
				if !seen[idx] {
					t.Fatalf("radius %v: missed entry %d", radius, idx)
				}
			}
		}
	}
}

func TestQueryRadiusExcludes(t *testing.T) {
	grid := NewSpatialGrid(100, 100, 10)
	grid.Insert(0, 50, 50)
	grid.Insert(1, 52, 50)

	got := grid.QueryRadiusInto(nil, 50, 50, 10, 0)
	if len(got) != 1 || got[0].Idx != 1 {
		t.Fatalf("got %v, want only entry 1", got)
	}
}

func TestQueryRadiusPrecomputedDelta(t *testing.T) {
	grid := NewSpatialGrid(100, 100, 10)
	grid.Insert(0, 95, 50)

	got := grid.QueryRadiusInto(nil, 5, 50, 20, -1)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].DX != -10 || got[0].DY != 0 {
		t.Errorf("delta = (%v, %v), want (-10, 0) across the seam", got[0].DX, got[0].DY)
	}
	if math.Abs(got[0].DistSq-100) > 1e-9 {
		t.Errorf("distSq = %v, want 100", got[0].DistSq)
	}
}
