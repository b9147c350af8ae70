package engine

import (
	"github.com/OCharnyshevich/terrain-lod/internal/lod/tile"
	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// DataToRender returns non-overlapping addresses covering the distance band
// around the viewer at (x, z), each as fine as the data and policy allow.
func (e *Engine) DataToRender(x, z float64, band tile.Band) []lod.Address {
	return e.window.DataToRender(x, z, band, e.policy)
}

// Read returns the stored point at a, or the empty point when its region
// is not loaded.
func (e *Engine) Read(a lod.Address) lod.DataPoint {
	t := e.window.Peek(a.Region())
	if t == nil {
		return lod.DataPoint{}
	}
	return t.Read(a)
}
