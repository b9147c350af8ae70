package lod

import (
	"math"
	"testing"
)

func TestConvertCoarsenUsesFloor(t *testing.T) {
	tests := []struct {
		in   Address
		to   DetailLevel
		want Address
	}{
		{Address{0, 5, 7}, 1, Address{1, 2, 3}},
		{Address{0, -1, -1}, 1, Address{1, -1, -1}},
		{Address{0, -2, -3}, 1, Address{1, -1, -2}},
		{Address{0, -1, 0}, 9, Address{9, -1, 0}},
		{Address{0, 511, 512}, 9, Address{9, 0, 1}},
		{Address{3, -9, 4}, 5, Address{5, -3, 1}},
	}
	for _, tt := range tests {
		if got := tt.in.Convert(tt.to); got != tt.want {
			t.Errorf("%v.Convert(%d) = %v, want %v", tt.in, tt.to, got, tt.want)
		}
	}
}

func TestConvertRefine(t *testing.T) {
	a := Address{Level: 4, X: -3, Z: 2}
	got := a.Convert(1)
	want := Address{Level: 1, X: -24, Z: 16}
	if got != want {
		t.Fatalf("Convert refine = %v, want %v", got, want)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	for level := DetailLevel(0); level <= RegionLevel; level++ {
		for x := -40; x <= 40; x += 7 {
			for z := -40; z <= 40; z += 11 {
				a := Address{Level: level, X: x, Z: z}
				for up := level; up <= RegionLevel; up++ {
					coarse := a.Convert(up)
					back := coarse.Convert(level)
					if !coarse.Contains(a) {
						t.Fatalf("%v does not contain %v", coarse, a)
					}
					if back.Convert(up) != coarse {
						t.Fatalf("refine-then-coarsen of %v is not identity", coarse)
					}
				}
			}
		}
	}
}

func TestRegionAndLocal(t *testing.T) {
	tests := []struct {
		a      Address
		region RegionPos
		lx, lz int
	}{
		{Address{0, 0, 0}, RegionPos{0, 0}, 0, 0},
		{Address{0, 513, -1}, RegionPos{1, -1}, 1, 511},
		{Address{0, -512, -513}, RegionPos{-1, -2}, 0, 511},
		{Address{4, -1, 33}, RegionPos{-1, 1}, 31, 1},
		{Address{9, -4, 2}, RegionPos{-4, 2}, 0, 0},
	}
	for _, tt := range tests {
		if got := tt.a.Region(); got != tt.region {
			t.Errorf("%v.Region() = %v, want %v", tt.a, got, tt.region)
		}
		lx, lz := tt.a.RegionLocal()
		if lx != tt.lx || lz != tt.lz {
			t.Errorf("%v.RegionLocal() = (%d,%d), want (%d,%d)", tt.a, lx, lz, tt.lx, tt.lz)
		}
	}
}

func TestRegionOfColumn(t *testing.T) {
	if got := RegionOfColumn(-1, 512); got != (RegionPos{-1, 1}) {
		t.Fatalf("RegionOfColumn(-1,512) = %v", got)
	}
	x, z := ColumnOf(-0.5, 3.9)
	if x != -1 || z != 3 {
		t.Fatalf("ColumnOf(-0.5,3.9) = (%d,%d), want (-1,3)", x, z)
	}
}

func TestChildrenAndParent(t *testing.T) {
	a := Address{Level: 2, X: -1, Z: 3}
	children, ok := a.Children()
	if !ok {
		t.Fatal("level 2 should have children")
	}
	for _, c := range children {
		if c.Parent() != a {
			t.Errorf("%v.Parent() = %v, want %v", c, c.Parent(), a)
		}
		if !a.Contains(c) {
			t.Errorf("%v should contain %v", a, c)
		}
	}
	if _, ok := (Address{}).Children(); ok {
		t.Error("level 0 should have no children")
	}
	r := Address{Level: RegionLevel, X: 1, Z: 1}
	if r.Parent() != r {
		t.Error("region-level parent should be itself")
	}
}

func TestMinMaxDistance(t *testing.T) {
	a := Address{Level: 2, X: 1, Z: 1} // columns [4,8) x [4,8)
	tests := []struct {
		x, z     float64
		min, max float64
	}{
		{5, 5, 0, math.Hypot(3, 3)},
		{0, 5, 4, math.Hypot(8, 3)},
		{0, 0, math.Hypot(4, 4), math.Hypot(8, 8)},
		{10, 12, math.Hypot(2, 4), math.Hypot(6, 8)},
		{4, 8, 0, math.Hypot(4, 4)},
	}
	for _, tt := range tests {
		if got := a.MinDistance(tt.x, tt.z); math.Abs(got-tt.min) > 1e-9 {
			t.Errorf("MinDistance(%v,%v) = %v, want %v", tt.x, tt.z, got, tt.min)
		}
		if got := a.MaxDistance(tt.x, tt.z); math.Abs(got-tt.max) > 1e-9 {
			t.Errorf("MaxDistance(%v,%v) = %v, want %v", tt.x, tt.z, got, tt.max)
		}
	}
}

func TestMinDistanceNegativeFootprint(t *testing.T) {
	a := Address{Level: 0, X: -1, Z: -1} // column [-1,0) x [-1,0)
	if got := a.MinDistance(-0.5, -0.5); got != 0 {
		t.Fatalf("point inside footprint: MinDistance = %v, want 0", got)
	}
	if got := a.MinDistance(1, -0.5); got != 1 {
		t.Fatalf("MinDistance = %v, want 1", got)
	}
}

func TestCompareCoarseFirst(t *testing.T) {
	near := Address{Level: 0, X: 0, Z: 0}
	coarse := Address{Level: 5, X: 10, Z: 10}
	if CompareCoarseFirst(coarse, near, 0, 0) >= 0 {
		t.Error("coarser address should rank first")
	}
	a := Address{Level: 3, X: 1, Z: 0}
	b := Address{Level: 3, X: 5, Z: 0}
	if CompareCoarseFirst(a, b, 0, 0) >= 0 {
		t.Error("closer address should rank first within a level")
	}
	if CompareCoarseFirst(a, a, 0, 0) != 0 {
		t.Error("address should compare equal to itself")
	}
}

func TestCompareNearest(t *testing.T) {
	near := Address{Level: 0, X: 1, Z: 1}
	far := Address{Level: 5, X: 10, Z: 10}
	if CompareNearest(near, far, 0, 0) >= 0 {
		t.Error("nearer address should rank first")
	}
	fine := Address{Level: 0, X: 0, Z: 0}
	coarse := Address{Level: 1, X: 0, Z: 0}
	if CompareNearest(coarse, fine, 0, 0) >= 0 {
		t.Error("equal distance should prefer the coarser address")
	}
}

func TestDetailPolicy(t *testing.T) {
	p := DetailPolicy{BaseDistance: 32, Finest: 0}
	tests := []struct {
		dist float64
		want DetailLevel
	}{
		{0, 0},
		{31.9, 0},
		{32, 1},
		{63, 1},
		{64, 2},
		{128, 3},
		{1e9, RegionLevel},
	}
	for _, tt := range tests {
		if got := p.LevelAt(tt.dist); got != tt.want {
			t.Errorf("LevelAt(%v) = %d, want %d", tt.dist, got, tt.want)
		}
	}

	coarse := DetailPolicy{BaseDistance: 32, Finest: 3}
	if got := coarse.LevelAt(0); got != 3 {
		t.Errorf("Finest=3 LevelAt(0) = %d, want 3", got)
	}
	if got := coarse.LevelAt(40); got != 4 {
		t.Errorf("Finest=3 LevelAt(40) = %d, want 4", got)
	}
}
