package lod

import "math"

// DetailPolicy maps a viewing distance to the detail level worth holding
// there. Each doubling of distance past BaseDistance coarsens by one level.
type DetailPolicy struct {
	BaseDistance float64
	Finest       DetailLevel
}

// LevelAt returns the wanted level at distance dist from the viewer.
func (p DetailPolicy) LevelAt(dist float64) DetailLevel {
	finest := min(p.Finest, RegionLevel)
	if p.BaseDistance <= 0 || dist < p.BaseDistance {
		return finest
	}
	steps := math.Floor(math.Log2(dist/p.BaseDistance)) + 1
	level := float64(finest) + steps
	if level >= float64(RegionLevel) {
		return RegionLevel
	}
	return DetailLevel(level)
}

// LevelFor returns the wanted level for an address footprint, measured at
// its closest point to (x, z).
func (p DetailPolicy) LevelFor(a Address, x, z float64) DetailLevel {
	return p.LevelAt(a.MinDistance(x, z))
}
