package lod

import "fmt"

// Tier records how reliably a DataPoint was produced. Tiers are totally
// ordered: a higher tier is always at least as trustworthy as a lower one.
type Tier uint8

const (
	TierEmpty         Tier = iota // not generated yet
	TierBiome                     // estimated from biome parameters only
	TierSurface                   // surface height sampled
	TierFeatures                  // surface plus trees and other features
	TierAuthoritative             // copied from the live world

	tierCount
)

var tierNames = [tierCount]string{
	TierEmpty:         "empty",
	TierBiome:         "biome",
	TierSurface:       "surface",
	TierFeatures:      "features",
	TierAuthoritative: "authoritative",
}

func (t Tier) String() string {
	if t < tierCount {
		return tierNames[t]
	}
	return fmt.Sprintf("tier(%d)", uint8(t))
}

// AtLeast reports whether t meets the floor.
func (t Tier) AtLeast(floor Tier) bool {
	return t >= floor
}

// Compare returns -1, 0 or +1 following the tier order.
func (t Tier) Compare(o Tier) int {
	switch {
	case t < o:
		return -1
	case t > o:
		return 1
	default:
		return 0
	}
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	return t < tierCount
}

// ParseTier converts a tier name back into a Tier.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return TierEmpty, fmt.Errorf("unknown quality tier %q", s)
}

// MinTier returns the lower of two tiers.
func MinTier(a, b Tier) Tier {
	if a < b {
		return a
	}
	return b
}
