package tile

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// Tile holds the full detail hierarchy of one region as one dense grid per
// level, from minLevel up to lod.RegionLevel. Parent and child cells are
// related by index arithmetic only.
type Tile struct {
	pos lod.RegionPos

	mu       sync.RWMutex
	minLevel lod.DetailLevel
	grids    [lod.LevelCount]*LevelGrid // nil below minLevel

	dirty atomic.Bool
}

// New creates an empty tile holding levels minLevel..9.
func New(pos lod.RegionPos, minLevel lod.DetailLevel) *Tile {
	minLevel = min(minLevel, lod.RegionLevel)
	t := &Tile{pos: pos, minLevel: minLevel}
	for l := minLevel; l <= lod.RegionLevel; l++ {
		t.grids[l] = newLevelGrid(l)
	}
	return t
}

// Pos returns the region the tile covers.
func (t *Tile) Pos() lod.RegionPos { return t.pos }

// MinLevel returns the finest level currently held.
func (t *Tile) MinLevel() lod.DetailLevel {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.minLevel
}

// Dirty reports whether the tile changed since it was last saved.
func (t *Tile) Dirty() bool { return t.dirty.Load() }

// MarkDirty flags the tile for saving.
func (t *Tile) MarkDirty() { t.dirty.Store(true) }

// ClearDirty clears the flag and reports whether it was set.
func (t *Tile) ClearDirty() bool { return t.dirty.Swap(false) }

// Read returns the stored point, or the empty point when a lies outside
// the tile or below its finest level.
func (t *Tile) Read(a lod.Address) lod.DataPoint {
	if a.Region() != t.pos {
		return lod.DataPoint{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.read(a)
}

func (t *Tile) read(a lod.Address) lod.DataPoint {
	if a.Level < t.minLevel {
		return lod.DataPoint{}
	}
	x, z := a.RegionLocal()
	return t.grids[a.Level].get(x, z)
}

// Write stores d at a when d's tier is at least the stored tier (or the
// cell is empty), then re-aggregates every ancestor up to the region level.
// It reports whether the write was accepted.
func (t *Tile) Write(a lod.Address, d lod.DataPoint) bool {
	if d.Empty() || a.Region() != t.pos {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if a.Level < t.minLevel {
		return false
	}
	cur := t.read(a)
	if !cur.Empty() && d.Tier < cur.Tier {
		return false
	}
	d.Partial = false
	x, z := a.RegionLocal()
	t.grids[a.Level].set(x, z, d)
	t.update(a)
	t.dirty.Store(true)
	return true
}

// update recomputes ancestors of a bottom-up. A parent with four generated
// children always takes their aggregate; a parent with holes underneath only
// takes the partial aggregate if it is not itself a full value.
func (t *Tile) update(a lod.Address) {
	for a.Level < lod.RegionLevel {
		parent := a.Parent()
		children, _ := parent.Children()

		var (
			points    [4]lod.DataPoint
			generated = 0
		)
		for i, c := range children {
			points[i] = t.read(c)
			if !points[i].Empty() {
				generated++
			}
		}

		cur := t.read(parent)
		if generated < 4 && cur.Full() {
			return
		}
		next := lod.Aggregate(points)
		if next == cur {
			return
		}
		x, z := parent.RegionLocal()
		t.grids[parent.Level].set(x, z, next)
		a = parent
	}
}

// Expand allocates empty grids down to level. Newly exposed cells read as
// empty until generated.
func (t *Tile) Expand(level lod.DetailLevel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for l := level; l < t.minLevel; l++ {
		t.grids[l] = newLevelGrid(l)
	}
	if level < t.minLevel {
		t.minLevel = level
	}
}

// CutTree drops every grid finer than level. The dropped data is lost.
func (t *Tile) CutTree(level lod.DetailLevel) {
	level = min(level, lod.RegionLevel)
	t.mu.Lock()
	defer t.mu.Unlock()
	if level <= t.minLevel {
		return
	}
	for l := t.minLevel; l < level; l++ {
		t.grids[l] = nil
	}
	t.minLevel = level
	t.dirty.Store(true)
}

// Clear empties every held level so the whole region is generated again.
func (t *Tile) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for l := t.minLevel; l <= lod.RegionLevel; l++ {
		t.grids[l].clear()
	}
	t.dirty.Store(true)
}

// Snapshot is a copy of a tile's packed cells, one slice per held level.
type Snapshot struct {
	Pos      lod.RegionPos
	MinLevel lod.DetailLevel
	Levels   [lod.LevelCount][]uint64 // nil below MinLevel
}

// Snapshot copies the tile's contents for persistence.
func (t *Tile) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Snapshot{Pos: t.pos, MinLevel: t.minLevel}
	for l := t.minLevel; l <= lod.RegionLevel; l++ {
		s.Levels[l] = append([]uint64(nil), t.grids[l].cells...)
	}
	return s
}

// FromSnapshot rebuilds a tile from persisted cells. The result is clean.
func FromSnapshot(s Snapshot) (*Tile, error) {
	if s.MinLevel > lod.RegionLevel {
		return nil, fmt.Errorf("snapshot min level %d out of range", s.MinLevel)
	}
	t := &Tile{pos: s.Pos, minLevel: s.MinLevel}
	for l := s.MinLevel; l <= lod.RegionLevel; l++ {
		g := newLevelGrid(l)
		if len(s.Levels[l]) != len(g.cells) {
			return nil, fmt.Errorf("level %d: got %d cells, want %d", l, len(s.Levels[l]), len(g.cells))
		}
		copy(g.cells, s.Levels[l])
		t.grids[l] = g
	}
	return t, nil
}
