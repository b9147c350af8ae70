package gen

import (
	"github.com/OCharnyshevich/terrain-lod/internal/lod/pipeline"
	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

const flatHeight = 4

var flatStages = []pipeline.Stage{{Name: "flat", Radius: 0}}

// Flat generates a superflat plains world: every column has its grass
// surface at y=4 above three layers of soil.
type Flat struct{}

// NewFlat creates a Flat generator. The seed is ignored.
func NewFlat(_ int64) *Flat { return &Flat{} }

func (g *Flat) Stages() []pipeline.Stage { return flatStages }

func (g *Flat) TargetStage(tier lod.Tier) int {
	if tier == lod.TierEmpty {
		return 0
	}
	return 1
}

func (g *Flat) Generate(_ int, _ pipeline.Neighborhood) (any, error) {
	return &Column{Stage: 1, Biome: BiomePlains, Height: flatHeight, Depth: 3}, nil
}

func (g *Flat) Summarize(_ lod.Address, raw any, tier lod.Tier) lod.DataPoint {
	c, ok := raw.(*Column)
	if !ok || c == nil {
		return lod.Void(tier)
	}
	col := c.Biome.color()
	return lod.Solid(int16(c.Height), int16(c.Depth), col.r, col.g, col.b, tier)
}
