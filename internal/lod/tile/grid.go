package tile

import "github.com/OCharnyshevich/terrain-lod/pkg/lod"

// LevelGrid is the dense width×width store of packed data points for one
// detail level of one tile. Index = z*width + x.
type LevelGrid struct {
	width int
	cells []uint64
}

func newLevelGrid(level lod.DetailLevel) *LevelGrid {
	w := lod.GridWidth(level)
	return &LevelGrid{width: w, cells: make([]uint64, w*w)}
}

func (g *LevelGrid) get(x, z int) lod.DataPoint {
	return lod.Unpack(g.cells[z*g.width+x])
}

func (g *LevelGrid) set(x, z int, d lod.DataPoint) {
	g.cells[z*g.width+x] = d.Pack()
}

func (g *LevelGrid) clear() {
	clear(g.cells)
}
