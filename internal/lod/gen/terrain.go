package gen

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/OCharnyshevich/terrain-lod/internal/lod/pipeline"
	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

const seaLevel = 62

// Stage numbers of the default generator.
const (
	StageBiome = iota + 1
	StageNoise
	StageSurface
	StageFeatures
)

var terrainStages = []pipeline.Stage{
	{Name: "biome", Radius: 0},
	{Name: "noise", Radius: 0},
	{Name: "surface", Radius: 1},
	{Name: "features", Radius: 2},
}

// Column is the raw state of one generated footprint. Each stage copies the
// previous value and fills in its own fields.
type Column struct {
	Stage int

	// biome
	Biome     Biome
	Continent float64
	Temp      float64
	Rain      float64

	// noise
	Elevation float64

	// surface
	Height int
	Depth  int

	// features
	Tree bool
}

// Ocean reports whether the surface lies below sea level.
func (c *Column) Ocean() bool { return c.Height < seaLevel }

// Terrain is the default generator: climate biomes, simplex height noise,
// smoothed surfaces and scattered trees.
type Terrain struct {
	seed      int64
	continent opensimplex.Noise
	detail    opensimplex.Noise
	temp      opensimplex.Noise
	rain      opensimplex.Noise
}

// NewTerrain creates a Terrain generator from a seed.
func NewTerrain(seed int64) *Terrain {
	return &Terrain{
		seed:      seed,
		continent: opensimplex.New(seed),
		detail:    opensimplex.New(seed + 1),
		temp:      opensimplex.New(seed + 100),
		rain:      opensimplex.New(seed + 200),
	}
}

// New returns the generator named kind: "default" or "flat".
func New(kind string, seed int64) (pipeline.Generator, error) {
	switch kind {
	case "default", "":
		return NewTerrain(seed), nil
	case "flat":
		return NewFlat(seed), nil
	default:
		return nil, fmt.Errorf("unknown generator %q", kind)
	}
}

func (g *Terrain) Stages() []pipeline.Stage { return terrainStages }

// TargetStage maps a quality tier to the last stage it needs.
func (g *Terrain) TargetStage(tier lod.Tier) int {
	switch tier {
	case lod.TierEmpty:
		return 0
	case lod.TierBiome:
		return StageBiome
	case lod.TierSurface:
		return StageSurface
	default:
		return StageFeatures
	}
}

func (g *Terrain) Generate(stage int, n pipeline.Neighborhood) (any, error) {
	if stage == StageBiome {
		return g.biome(n.Center), nil
	}
	self, ok := n.Self().(*Column)
	if !ok || self == nil {
		return nil, fmt.Errorf("stage %d of %v: missing column", stage, n.Center)
	}
	c := *self
	switch stage {
	case StageNoise:
		c.Elevation = g.elevation(n.Center, c.Continent, c.Biome)
	case StageSurface:
		g.surface(&c, n)
	case StageFeatures:
		c.Tree = g.tree(n)
	default:
		return nil, fmt.Errorf("unknown stage %d", stage)
	}
	c.Stage = stage
	return &c, nil
}

func (g *Terrain) biome(a lod.Address) *Column {
	x, z := a.Center()
	base := octave(g.continent, x/128, z/128, 6, 0.5)
	c := &Column{
		Stage:     StageBiome,
		Continent: base,
		Temp:      octave(g.temp, x/512, z/512, 4, 0.5)*0.8 + 0.75,
		Rain:      octave(g.rain, x/512+100, z/512+100, 4, 0.5)*0.5 + 0.5,
	}

	estimate := seaLevel + base*8
	switch {
	case estimate < seaLevel-8:
		c.Biome = BiomeOcean
	case estimate < seaLevel-2:
		c.Biome = BiomeBeach
	case base > 0.6:
		c.Biome = BiomeMountains
	default:
		c.Biome = selectBiome(c.Temp, c.Rain)
	}
	return c
}

func (g *Terrain) elevation(a lod.Address, continent float64, b Biome) float64 {
	x, z := a.Center()
	amp := 6.0
	switch b {
	case BiomeMountains:
		amp = 40
	case BiomeOcean:
		amp = 10
	case BiomePlains, BiomeDesert, BiomeBeach:
		amp = 3
	}
	return seaLevel + continent*8 + octave(g.detail, x/64, z/64, 4, 0.5)*amp
}

// surface smooths the elevation over the 3×3 neighborhood.
func (g *Terrain) surface(c *Column, n pipeline.Neighborhood) {
	var sum float64
	var count int
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			nc, ok := n.At(dx, dz).(*Column)
			if !ok || nc == nil {
				continue
			}
			sum += nc.Elevation
			count++
		}
	}
	c.Height = int(math.Round(sum / float64(count)))
	if c.Ocean() {
		c.Depth = seaLevel - c.Height
	} else {
		c.Depth = c.Biome.soilDepth()
	}
}

// tree places a tree unless a neighbor within the feature radius holds a
// stronger claim. Claims are derived from neighbor surfaces, so the result
// does not depend on which neighbor finished first.
func (g *Terrain) tree(n pipeline.Neighborhood) bool {
	self, _ := n.Self().(*Column)
	claim, ok := g.treeClaim(n.Center, self)
	if !ok {
		return false
	}
	for dz := -n.Radius; dz <= n.Radius; dz++ {
		for dx := -n.Radius; dx <= n.Radius; dx++ {
			if dx == 0 && dz == 0 {
				continue
			}
			other := lod.Address{Level: n.Center.Level, X: n.Center.X + dx, Z: n.Center.Z + dz}
			nc, _ := n.At(dx, dz).(*Column)
			if oc, ok := g.treeClaim(other, nc); ok && (oc < claim || oc == claim && (dz < 0 || dz == 0 && dx < 0)) {
				return false
			}
		}
	}
	return true
}

func (g *Terrain) treeClaim(a lod.Address, c *Column) (uint64, bool) {
	if c == nil || c.Stage < StageSurface || c.Height <= seaLevel {
		return 0, false
	}
	h := g.hash(a)
	return h, h%256 < c.Biome.treeChance()
}

func (g *Terrain) hash(a lod.Address) uint64 {
	var buf [25]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(g.seed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(a.X))
	binary.LittleEndian.PutUint64(buf[16:], uint64(a.Z))
	buf[24] = byte(a.Level)
	return xxhash.Sum64(buf[:])
}

var treeColor = rgb{34, 85, 34}

// Summarize turns a raw column into a data point. Height is the top of the
// visible surface (the water line over oceans) and Depth the thickness of
// the top layer.
func (g *Terrain) Summarize(_ lod.Address, raw any, tier lod.Tier) lod.DataPoint {
	c, ok := raw.(*Column)
	if !ok || c == nil {
		return lod.Void(tier)
	}
	col := c.Biome.color()

	height, depth := int(math.Round(seaLevel+c.Continent*8)), c.Biome.soilDepth()
	if c.Stage >= StageSurface {
		height, depth = c.Height, c.Depth
		if c.Ocean() {
			height = seaLevel
		}
	}
	if c.Tree {
		col = blend(col, treeColor)
	}
	return lod.Solid(int16(height), int16(depth), col.r, col.g, col.b, tier)
}

func blend(a, b rgb) rgb {
	return rgb{
		r: uint8((int(a.r) + int(b.r)) / 2),
		g: uint8((int(a.g) + int(b.g)) / 2),
		b: uint8((int(a.b) + int(b.b)) / 2),
	}
}

// octave sums octaves of simplex noise, normalized to [-1, 1].
func octave(noise opensimplex.Noise, x, z float64, octaves int, persistence float64) float64 {
	var total, maxVal float64
	amp, freq := 1.0, 1.0
	for range octaves {
		total += noise.Eval2(x*freq, z*freq) * amp
		maxVal += amp
		amp *= persistence
		freq *= 2
	}
	return total / maxVal
}
