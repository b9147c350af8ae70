package selector

import (
	"github.com/OCharnyshevich/terrain-lod/internal/lod/window"
	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// Request describes one selection round for a viewer at (X, Z).
type Request struct {
	X, Z   float64
	Floor  lod.Tier
	Policy lod.DetailPolicy

	// NearBudget addresses finer than NearLevelThreshold are ranked
	// purely by distance, whichever region they fall in.
	NearBudget         int
	NearLevelThreshold lod.DetailLevel

	// FarBudget addresses are ranked coarse level first, then distance.
	FarBudget int

	// Skip, when set, filters out addresses already being generated.
	Skip func(lod.Address) bool
}

// Select walks every tile of the window and returns at most
// NearBudget+FarBudget addresses that need generating: the near tier first,
// in ascending distance, then the far tier. Near capacity that goes unused
// is given to the far tier.
func Select(w *window.Window, req Request) []lod.Address {
	if req.NearBudget+req.FarBudget <= 0 {
		return nil
	}
	near := newRanked(req.NearBudget, func(a, b lod.Address) int {
		return lod.CompareNearest(a, b, req.X, req.Z)
	})
	// The far list is sized for both budgets so it can absorb donated slots.
	far := newRanked(req.NearBudget+req.FarBudget, func(a, b lod.Address) int {
		return lod.CompareCoarseFirst(a, b, req.X, req.Z)
	})

	for _, s := range w.Slots() {
		t := s.Tile
		if t == nil {
			t = w.Get(s.Pos)
			if t == nil {
				continue
			}
		}
		for _, a := range t.CollectGenerationCandidates(req.X, req.Z, req.Floor, req.Policy) {
			if req.Skip != nil && req.Skip(a) {
				continue
			}
			if a.Level < req.NearLevelThreshold {
				near.push(a)
				continue
			}
			far.push(a)
		}
	}

	far.truncate(req.FarBudget + req.NearBudget - near.len())
	out := make([]lod.Address, 0, near.len()+far.len())
	out = append(out, near.items...)
	return append(out, far.items...)
}
