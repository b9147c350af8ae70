package lod

// DataPoint summarizes one column footprint at some detail level.
//
// The zero value is the empty sentinel: nothing has been generated yet.
// A generated point with Exists=false is void (no solid terrain), which is
// distinct from empty.
type DataPoint struct {
	Height  int16
	Depth   int16
	R, G, B uint8
	Tier    Tier
	Exists  bool
	Partial bool // aggregated from fewer than four generated children
}

// Packed record layout, most significant bits first:
//
//	63     generated marker (set for every non-empty point)
//	62     exists
//	61     partial
//	56..58 tier
//	48..55 red, 40..47 green, 32..39 blue
//	16..31 height
//	0..15  depth
const (
	bitGenerated = 63
	bitExists    = 62
	bitPartial   = 61
	shiftTier    = 56
	shiftRed     = 48
	shiftGreen   = 40
	shiftBlue    = 32
	shiftHeight  = 16

	tierMask = 0x7
)

// Empty reports whether the point has never been generated.
func (d DataPoint) Empty() bool {
	return d.Tier == TierEmpty
}

// Void reports whether the point was generated and holds no solid terrain.
func (d DataPoint) Void() bool {
	return !d.Empty() && !d.Exists
}

// Full reports whether the point is generated and backed by complete data.
func (d DataPoint) Full() bool {
	return !d.Empty() && !d.Partial
}

// Void returns a void point produced at the given tier.
func Void(tier Tier) DataPoint {
	return DataPoint{Tier: tier}
}

// Solid returns an existing point produced at the given tier.
func Solid(height, depth int16, r, g, b uint8, tier Tier) DataPoint {
	return DataPoint{Height: height, Depth: depth, R: r, G: g, B: b, Tier: tier, Exists: true}
}

// Pack encodes d into a single word. The empty point packs to 0.
func (d DataPoint) Pack() uint64 {
	if d.Empty() {
		return 0
	}
	v := uint64(1) << bitGenerated
	if d.Exists {
		v |= 1 << bitExists
	}
	if d.Partial {
		v |= 1 << bitPartial
	}
	v |= uint64(d.Tier&tierMask) << shiftTier
	v |= uint64(d.R) << shiftRed
	v |= uint64(d.G) << shiftGreen
	v |= uint64(d.B) << shiftBlue
	v |= uint64(uint16(d.Height)) << shiftHeight
	v |= uint64(uint16(d.Depth))
	return v
}

// Unpack decodes a word produced by Pack.
func Unpack(v uint64) DataPoint {
	if v>>bitGenerated&1 == 0 {
		return DataPoint{}
	}
	return DataPoint{
		Height:  int16(uint16(v >> shiftHeight)),
		Depth:   int16(uint16(v)),
		R:       uint8(v >> shiftRed),
		G:       uint8(v >> shiftGreen),
		B:       uint8(v >> shiftBlue),
		Tier:    Tier(v>>shiftTier) & tierMask,
		Exists:  v>>bitExists&1 == 1,
		Partial: v>>bitPartial&1 == 1,
	}
}

// Aggregate combines four sibling points into their parent summary.
//
// Only generated children contribute. The parent is only as good as its
// worst input (minimum tier), its height is the lowest solid height, its
// depth the deepest solid depth, and its color the mean solid color. It is
// void when void children outnumber solid ones.
func Aggregate(children [4]DataPoint) DataPoint {
	var (
		contributors int
		solid        int
		void         int
		partial      bool
		tier         = TierAuthoritative
		height       int16
		depth        int16
		r, g, b      int
	)
	for _, c := range children {
		if c.Empty() {
			continue
		}
		contributors++
		tier = MinTier(tier, c.Tier)
		if c.Partial {
			partial = true
		}
		if !c.Exists {
			void++
			continue
		}
		if solid == 0 || c.Height < height {
			height = c.Height
		}
		if solid == 0 || c.Depth > depth {
			depth = c.Depth
		}
		r += int(c.R)
		g += int(c.G)
		b += int(c.B)
		solid++
	}

	if contributors == 0 {
		return DataPoint{}
	}

	out := DataPoint{Tier: tier, Partial: partial || contributors < 4}
	if void > solid {
		return out
	}
	out.Exists = true
	out.Height = height
	out.Depth = depth
	out.R = uint8(r / solid)
	out.G = uint8(g / solid)
	out.B = uint8(b / solid)
	return out
}
