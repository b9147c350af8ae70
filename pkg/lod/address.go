package lod

import (
	"cmp"
	"fmt"
	"math"
)

// DetailLevel is the log2 of an address footprint width in columns.
// Level 0 is a single column, level 9 a whole region.
type DetailLevel uint8

const (
	// RegionLevel is the coarsest level and the unit of windowing and persistence.
	RegionLevel DetailLevel = 9
	// LevelCount is the number of detail levels.
	LevelCount = int(RegionLevel) + 1
	// RegionWidth is the width of a region in columns.
	RegionWidth = 1 << RegionLevel
)

// Address names a square footprint of 2^Level columns. X and Z count
// footprints of that size, not columns.
type Address struct {
	Level DetailLevel
	X, Z  int
}

// RegionPos is the position of a region, i.e. an address at RegionLevel.
type RegionPos struct {
	X, Z int
}

func (a Address) String() string {
	return fmt.Sprintf("%d:%d,%d", a.Level, a.X, a.Z)
}

func (p RegionPos) String() string {
	return fmt.Sprintf("r.%d.%d", p.X, p.Z)
}

// Address returns the level-9 address of the region.
func (p RegionPos) Address() Address {
	return Address{Level: RegionLevel, X: p.X, Z: p.Z}
}

// Add offsets the region position.
func (p RegionPos) Add(o RegionPos) RegionPos {
	return RegionPos{X: p.X + o.X, Z: p.Z + o.Z}
}

// Sub returns p - o.
func (p RegionPos) Sub(o RegionPos) RegionPos {
	return RegionPos{X: p.X - o.X, Z: p.Z - o.Z}
}

// RegionOfColumn returns the region containing the column.
func RegionOfColumn(x, z int) RegionPos {
	return RegionPos{X: x >> RegionLevel, Z: z >> RegionLevel}
}

// ColumnOf returns the column containing a world position.
func ColumnOf(x, z float64) (int, int) {
	return int(math.Floor(x)), int(math.Floor(z))
}

// Convert expresses a at another level. Coarsening floor-divides and is
// lossy; refining picks the first covered child.
func (a Address) Convert(level DetailLevel) Address {
	if level >= a.Level {
		shift := level - a.Level
		return Address{Level: level, X: a.X >> shift, Z: a.Z >> shift}
	}
	shift := a.Level - level
	return Address{Level: level, X: a.X << shift, Z: a.Z << shift}
}

// Region returns the region containing a.
func (a Address) Region() RegionPos {
	r := a.Convert(RegionLevel)
	return RegionPos{X: r.X, Z: r.Z}
}

// RegionLocal returns a's indices inside its region's grid for a.Level.
func (a Address) RegionLocal() (int, int) {
	mask := GridWidth(a.Level) - 1
	return a.X & mask, a.Z & mask
}

// Parent returns the containing address one level up. The parent of a
// region-level address is itself.
func (a Address) Parent() Address {
	if a.Level >= RegionLevel {
		return a
	}
	return a.Convert(a.Level + 1)
}

// Children returns the four addresses one level down. ok is false at level 0.
func (a Address) Children() (children [4]Address, ok bool) {
	if a.Level == 0 {
		return children, false
	}
	l := a.Level - 1
	x, z := a.X<<1, a.Z<<1
	children[0] = Address{Level: l, X: x, Z: z}
	children[1] = Address{Level: l, X: x + 1, Z: z}
	children[2] = Address{Level: l, X: x, Z: z + 1}
	children[3] = Address{Level: l, X: x + 1, Z: z + 1}
	return children, true
}

// Contains reports whether b's footprint lies inside a's.
func (a Address) Contains(b Address) bool {
	return b.Level <= a.Level && b.Convert(a.Level) == a
}

// Width returns the footprint width in columns.
func (a Address) Width() int {
	return 1 << a.Level
}

// Origin returns the column of the footprint's minimum corner.
func (a Address) Origin() (int, int) {
	return a.X << a.Level, a.Z << a.Level
}

// Center returns the footprint center in world coordinates.
func (a Address) Center() (float64, float64) {
	x, z := a.Origin()
	half := float64(a.Width()) / 2
	return float64(x) + half, float64(z) + half
}

// MinDistance is the distance from (x, z) to the closest point of the
// footprint; 0 when the point lies inside it.
func (a Address) MinDistance(x, z float64) float64 {
	x0, z0, x1, z1 := a.bounds()
	dx := math.Max(math.Max(x0-x, 0), x-x1)
	dz := math.Max(math.Max(z0-z, 0), z-z1)
	return math.Hypot(dx, dz)
}

// MaxDistance is the distance from (x, z) to the farthest footprint corner.
func (a Address) MaxDistance(x, z float64) float64 {
	x0, z0, x1, z1 := a.bounds()
	dx := math.Max(math.Abs(x-x0), math.Abs(x-x1))
	dz := math.Max(math.Abs(z-z0), math.Abs(z-z1))
	return math.Hypot(dx, dz)
}

func (a Address) bounds() (x0, z0, x1, z1 float64) {
	ox, oz := a.Origin()
	w := float64(a.Width())
	return float64(ox), float64(oz), float64(ox) + w, float64(oz) + w
}

// GridWidth returns how many addresses of the level fit along a region edge.
func GridWidth(level DetailLevel) int {
	return 1 << (RegionLevel - level)
}

// CompareNearest orders addresses by distance to (x, z), closest first.
// Ties prefer the coarser address, then fall back to position.
func CompareNearest(a, b Address, x, z float64) int {
	if c := cmp.Compare(a.MinDistance(x, z), b.MinDistance(x, z)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Level, a.Level); c != 0 {
		return c
	}
	return comparePosition(a, b)
}

// CompareCoarseFirst orders coarser addresses first and, within a level,
// closer ones first.
func CompareCoarseFirst(a, b Address, x, z float64) int {
	if c := cmp.Compare(b.Level, a.Level); c != 0 {
		return c
	}
	if c := cmp.Compare(a.MinDistance(x, z), b.MinDistance(x, z)); c != 0 {
		return c
	}
	return comparePosition(a, b)
}

func comparePosition(a, b Address) int {
	if c := cmp.Compare(a.Z, b.Z); c != 0 {
		return c
	}
	return cmp.Compare(a.X, b.X)
}
