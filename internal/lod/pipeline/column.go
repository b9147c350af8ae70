package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// snapshot is an immutable view of a column's progress. A column only
// ever moves to a snapshot with a higher stage or the failed flag set.
type snapshot struct {
	stage  int
	raw    any
	failed bool
}

var created = &snapshot{}

// column is the transient per-task state of one raw column. own is only
// ever taken with TryLock; readers go through snap.
type column struct {
	addr lod.Address
	own  sync.Mutex
	snap atomic.Pointer[snapshot]
	refs int // guarded by Pipeline.mu
}

func newColumn(addr lod.Address) *column {
	c := &column{addr: addr}
	c.snap.Store(created)
	return c
}

func (c *column) load() *snapshot { return c.snap.Load() }

// acquire returns the shared column for every address, creating missing
// ones, and takes one reference on each.
func (p *Pipeline) acquire(addrs []lod.Address) map[lod.Address]*column {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[lod.Address]*column, len(addrs))
	for _, a := range addrs {
		c, ok := p.columns[a]
		if !ok {
			c = newColumn(a)
			p.columns[a] = c
		}
		c.refs++
		out[a] = c
	}
	return out
}

// release drops one reference per column and evicts unused ones.
func (p *Pipeline) release(cols map[lod.Address]*column) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for a, c := range cols {
		c.refs--
		if c.refs == 0 {
			delete(p.columns, a)
		}
	}
}

func square(center lod.Address, radius int) []lod.Address {
	side := 2*radius + 1
	out := make([]lod.Address, 0, side*side)
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			out = append(out, lod.Address{Level: center.Level, X: center.X + dx, Z: center.Z + dz})
		}
	}
	return out
}
