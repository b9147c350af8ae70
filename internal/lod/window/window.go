package window

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/OCharnyshevich/terrain-lod/internal/lod/tile"
	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// ErrInvalidWidth is returned for a window narrower than one region.
var ErrInvalidWidth = errors.New("window width must be positive")

// Loader restores persisted tiles. A nil tile with a nil error means
// nothing usable is stored for the region.
type Loader interface {
	Load(pos lod.RegionPos) (*tile.Tile, error)
}

// Window is a recenterable width×width grid of tiles around a center
// region, with dirty and needs-regen bits kept in the same shape.
// Slot index = (region - center) + width/2.
type Window struct {
	mu         sync.RWMutex
	width      int
	center     lod.RegionPos
	tiles      [][]*tile.Tile
	dirty      [][]bool
	needsRegen [][]bool

	loader Loader
	log    *slog.Logger
}

// Slot pairs an in-range region with its tile, nil when not loaded.
type Slot struct {
	Pos  lod.RegionPos
	Tile *tile.Tile
}

// New creates an empty window. loader may be nil.
func New(width int, center lod.RegionPos, loader Loader, log *slog.Logger) (*Window, error) {
	if width <= 0 {
		return nil, ErrInvalidWidth
	}
	w := &Window{
		width:  width,
		center: center,
		loader: loader,
		log:    log,
	}
	w.tiles, w.dirty, w.needsRegen = makeGrids(width)
	return w, nil
}

func makeGrids(width int) ([][]*tile.Tile, [][]bool, [][]bool) {
	tiles := make([][]*tile.Tile, width)
	dirty := make([][]bool, width)
	regen := make([][]bool, width)
	for i := range width {
		tiles[i] = make([]*tile.Tile, width)
		dirty[i] = make([]bool, width)
		regen[i] = make([]bool, width)
	}
	return tiles, dirty, regen
}

// Width returns the window width in regions.
func (w *Window) Width() int { return w.width }

// Center returns the current center region.
func (w *Window) Center() lod.RegionPos {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.center
}

func (w *Window) index(pos lod.RegionPos) (int, int, bool) {
	ix := pos.X - w.center.X + w.width/2
	iz := pos.Z - w.center.Z + w.width/2
	if ix < 0 || iz < 0 || ix >= w.width || iz >= w.width {
		return 0, 0, false
	}
	return ix, iz, true
}

func (w *Window) posAt(ix, iz int) lod.RegionPos {
	return lod.RegionPos{X: ix + w.center.X - w.width/2, Z: iz + w.center.Z - w.width/2}
}

// IsInRange reports whether pos currently maps to a slot.
func (w *Window) IsInRange(pos lod.RegionPos) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, _, ok := w.index(pos)
	return ok
}

// Move shifts the window center by offset. Slots that stay in range keep
// their tiles; the rest are dropped. Dropped tiles that still need saving
// are returned so the caller can flush them.
func (w *Window) Move(offset lod.RegionPos) []*tile.Tile {
	if offset == (lod.RegionPos{}) {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	tiles, dirty, regen := makeGrids(w.width)
	var dropped []*tile.Tile
	for ix := range w.width {
		for iz := range w.width {
			t := w.tiles[ix][iz]
			nx, nz := ix-offset.X, iz-offset.Z
			if nx < 0 || nz < 0 || nx >= w.width || nz >= w.width {
				if t != nil && (w.dirty[ix][iz] || t.Dirty()) {
					dropped = append(dropped, t)
				}
				continue
			}
			tiles[nx][nz] = t
			dirty[nx][nz] = w.dirty[ix][iz]
			regen[nx][nz] = w.needsRegen[ix][iz]
		}
	}
	w.tiles, w.dirty, w.needsRegen = tiles, dirty, regen
	w.center = w.center.Add(offset)
	return dropped
}

// MoveTo recenters the window on center.
func (w *Window) MoveTo(center lod.RegionPos) []*tile.Tile {
	return w.Move(center.Sub(w.Center()))
}

// Peek returns the loaded tile at pos without loading, or nil.
func (w *Window) Peek(pos lod.RegionPos) *tile.Tile {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ix, iz, ok := w.index(pos)
	if !ok {
		return nil
	}
	return w.tiles[ix][iz]
}

// Get returns the tile at pos, loading it from the Loader or allocating an
// empty one on first access. It returns nil when pos is out of range.
func (w *Window) Get(pos lod.RegionPos) *tile.Tile {
	if t := w.Peek(pos); t != nil {
		return t
	}
	if !w.IsInRange(pos) {
		return nil
	}

	// Load without holding the lock; another caller may race us here.
	var loaded *tile.Tile
	if w.loader != nil {
		t, err := w.loader.Load(pos)
		if err != nil {
			w.log.Warn("load region", "region", pos, "error", err)
		}
		loaded = t
	}
	if loaded == nil {
		loaded = tile.New(pos, lod.RegionLevel)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	ix, iz, ok := w.index(pos)
	if !ok {
		return nil
	}
	if existing := w.tiles[ix][iz]; existing != nil {
		return existing
	}
	w.tiles[ix][iz] = loaded
	return loaded
}

// MarkDirty flags the region for saving.
func (w *Window) MarkDirty(pos lod.RegionPos) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ix, iz, ok := w.index(pos)
	if !ok {
		return
	}
	w.dirty[ix][iz] = true
	if t := w.tiles[ix][iz]; t != nil {
		t.MarkDirty()
	}
}

// ClearDirty drops the window's dirty bit for pos.
func (w *Window) ClearDirty(pos lod.RegionPos) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ix, iz, ok := w.index(pos); ok {
		w.dirty[ix][iz] = false
	}
}

// IsDirty reports whether the region is flagged for saving.
func (w *Window) IsDirty(pos lod.RegionPos) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ix, iz, ok := w.index(pos)
	if !ok {
		return false
	}
	if t := w.tiles[ix][iz]; t != nil && t.Dirty() {
		return true
	}
	return w.dirty[ix][iz]
}

// DirtyTiles returns every loaded tile needing a save and clears the
// window's dirty bits. The tiles keep their own flag until saved.
func (w *Window) DirtyTiles() []*tile.Tile {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*tile.Tile
	for ix := range w.width {
		for iz := range w.width {
			t := w.tiles[ix][iz]
			if t == nil {
				w.dirty[ix][iz] = false
				continue
			}
			if w.dirty[ix][iz] || t.Dirty() {
				out = append(out, t)
			}
			w.dirty[ix][iz] = false
		}
	}
	return out
}

// MarkNeedsRegen requests that the region be generated again. It reports
// false when pos is out of range.
func (w *Window) MarkNeedsRegen(pos lod.RegionPos) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	ix, iz, ok := w.index(pos)
	if !ok {
		return false
	}
	w.needsRegen[ix][iz] = true
	return true
}

// TakeNeedsRegen returns and clears the regions flagged for regeneration.
func (w *Window) TakeNeedsRegen() []lod.RegionPos {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []lod.RegionPos
	for ix := range w.width {
		for iz := range w.width {
			if w.needsRegen[ix][iz] {
				w.needsRegen[ix][iz] = false
				out = append(out, w.posAt(ix, iz))
			}
		}
	}
	return out
}

// Slots returns every in-range region with its tile, nil when not loaded.
func (w *Window) Slots() []Slot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Slot, 0, w.width*w.width)
	for ix := range w.width {
		for iz := range w.width {
			out = append(out, Slot{Pos: w.posAt(ix, iz), Tile: w.tiles[ix][iz]})
		}
	}
	return out
}

// DataToRender returns the addresses to draw for the band around (x, z).
// Regions that are not loaded contribute their region-level address so
// the band has no gaps.
func (w *Window) DataToRender(x, z float64, band tile.Band, policy lod.DetailPolicy) []lod.Address {
	var out []lod.Address
	for _, s := range w.Slots() {
		if s.Tile == nil {
			if root := s.Pos.Address(); band.Intersects(root, x, z) {
				out = append(out, root)
			}
			continue
		}
		out = append(out, s.Tile.CollectRenderCandidates(x, z, band, policy)...)
	}
	return out
}
