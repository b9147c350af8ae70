package gen

// Biome classifies a column by climate.
type Biome uint8

const (
	BiomeOcean Biome = iota
	BiomeBeach
	BiomePlains
	BiomeForest
	BiomeDarkForest
	BiomeTaiga
	BiomeSnowyTaiga
	BiomeTundra
	BiomeSavanna
	BiomeDesert
	BiomeJungle
	BiomeMountains
)

var biomeNames = [...]string{
	BiomeOcean:      "ocean",
	BiomeBeach:      "beach",
	BiomePlains:     "plains",
	BiomeForest:     "forest",
	BiomeDarkForest: "dark_forest",
	BiomeTaiga:      "taiga",
	BiomeSnowyTaiga: "snowy_taiga",
	BiomeTundra:     "tundra",
	BiomeSavanna:    "savanna",
	BiomeDesert:     "desert",
	BiomeJungle:     "jungle",
	BiomeMountains:  "mountains",
}

func (b Biome) String() string {
	if int(b) < len(biomeNames) {
		return biomeNames[b]
	}
	return "unknown"
}

type rgb struct{ r, g, b uint8 }

// Ground color of each biome as seen from above.
var biomeColors = [...]rgb{
	BiomeOcean:      {38, 64, 160},
	BiomeBeach:      {218, 210, 158},
	BiomePlains:     {121, 178, 76},
	BiomeForest:     {86, 140, 52},
	BiomeDarkForest: {52, 92, 34},
	BiomeTaiga:      {92, 128, 96},
	BiomeSnowyTaiga: {214, 222, 226},
	BiomeTundra:     {236, 240, 242},
	BiomeSavanna:    {178, 170, 88},
	BiomeDesert:     {224, 204, 140},
	BiomeJungle:     {48, 152, 28},
	BiomeMountains:  {128, 128, 128},
}

func (b Biome) color() rgb {
	if int(b) < len(biomeColors) {
		return biomeColors[b]
	}
	return rgb{255, 0, 255}
}

// treeChance is the per-column probability, out of 256, that a tree
// is attempted.
func (b Biome) treeChance() uint64 {
	switch b {
	case BiomeOcean, BiomeBeach, BiomeDesert:
		return 0
	case BiomePlains, BiomeSavanna:
		return 3
	case BiomeTundra, BiomeSnowyTaiga:
		return 8
	case BiomeTaiga:
		return 14
	case BiomeForest:
		return 20
	case BiomeDarkForest:
		return 28
	case BiomeJungle:
		return 36
	default:
		return 5
	}
}

// soilDepth is how many columns of soil cover the stone below the surface.
func (b Biome) soilDepth() int {
	switch b {
	case BiomeDesert, BiomeBeach:
		return 5
	case BiomeMountains:
		return 1
	default:
		return 3
	}
}

// selectBiome maps temperature and rainfall to a biome.
//
//	Temp\Rain     | Dry (<0.3) | Medium (0.3-0.6) | Wet (>0.6)
//	Cold <0.3     | Tundra     | Snowy Taiga      | Taiga
//	Mild 0.3-0.7  | Plains     | Forest           | Dark Forest
//	Warm 0.7-1.2  | Savanna    | Plains           | Jungle
//	Hot >1.2      | Desert     | Desert           | Jungle
func selectBiome(temp, rain float64) Biome {
	switch {
	case temp < 0.3:
		switch {
		case rain < 0.3:
			return BiomeTundra
		case rain < 0.6:
			return BiomeSnowyTaiga
		default:
			return BiomeTaiga
		}
	case temp < 0.7:
		switch {
		case rain < 0.3:
			return BiomePlains
		case rain < 0.6:
			return BiomeForest
		default:
			return BiomeDarkForest
		}
	case temp < 1.2:
		switch {
		case rain < 0.3:
			return BiomeSavanna
		case rain < 0.6:
			return BiomePlains
		default:
			return BiomeJungle
		}
	default:
		if rain > 0.6 {
			return BiomeJungle
		}
		return BiomeDesert
	}
}
