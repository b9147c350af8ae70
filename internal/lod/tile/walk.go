package tile

import "github.com/OCharnyshevich/terrain-lod/pkg/lod"

// Band is a ring of viewing distances [Min, Max).
type Band struct {
	Min, Max float64
}

// Intersects reports whether a's footprint overlaps the band around (x, z).
func (b Band) Intersects(a lod.Address, x, z float64) bool {
	return a.MinDistance(x, z) < b.Max && a.MaxDistance(x, z) > b.Min
}

// wantedLevel is the policy level for a, never finer than what the tile holds.
func (t *Tile) wantedLevel(a lod.Address, x, z float64, policy lod.DetailPolicy) lod.DetailLevel {
	return max(policy.LevelFor(a, x, z), t.minLevel)
}

// CollectGenerationCandidates walks the tile depth-first and returns the
// addresses, each at its wanted level for a viewer at (x, z), whose data is
// below floor. A subtree is skipped once its four children are at their
// wanted level and meet the floor; parents of collected nodes are never
// returned themselves.
func (t *Tile) CollectGenerationCandidates(x, z float64, floor lod.Tier, policy lod.DetailPolicy) []lod.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []lod.Address
	t.collectGeneration(t.pos.Address(), x, z, floor, policy, &out)
	return out
}

func (t *Tile) collectGeneration(a lod.Address, x, z float64, floor lod.Tier, policy lod.DetailPolicy, out *[]lod.Address) {
	if a.Level <= t.wantedLevel(a, x, z, policy) {
		if !t.read(a).Tier.AtLeast(floor) {
			*out = append(*out, a)
		}
		return
	}

	children, _ := a.Children()
	settled := true
	for _, c := range children {
		if c.Level > t.wantedLevel(c, x, z, policy) || !t.read(c).Tier.AtLeast(floor) {
			settled = false
			break
		}
	}
	if settled {
		return
	}
	for _, c := range children {
		t.collectGeneration(c, x, z, floor, policy, out)
	}
}

// CollectRenderCandidates returns the non-overlapping addresses to draw for
// the part of the tile inside band. A node is replaced by its children only
// when it is coarser than wanted and all four children hold full data, so
// nothing finer than the real data is ever returned. Empty nodes are
// returned too, which keeps the band free of gaps.
func (t *Tile) CollectRenderCandidates(x, z float64, band Band, policy lod.DetailPolicy) []lod.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []lod.Address
	t.collectRender(t.pos.Address(), x, z, band, policy, &out)
	return out
}

func (t *Tile) collectRender(a lod.Address, x, z float64, band Band, policy lod.DetailPolicy, out *[]lod.Address) {
	if !band.Intersects(a, x, z) {
		return
	}
	if a.Level > t.wantedLevel(a, x, z, policy) {
		children, _ := a.Children()
		full := true
		for _, c := range children {
			if !t.read(c).Full() {
				full = false
				break
			}
		}
		if full {
			for _, c := range children {
				t.collectRender(c, x, z, band, policy, out)
			}
			return
		}
	}
	*out = append(*out, a)
}
