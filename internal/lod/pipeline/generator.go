package pipeline

import "github.com/OCharnyshevich/terrain-lod/pkg/lod"

// Stage is one step of raw column generation. Radius is how far around a
// column its neighbors must already have finished the previous stage.
type Stage struct {
	Name   string
	Radius int
}

// Generator produces raw columns one stage at a time. Stage numbers start
// at 1; stage 0 is a freshly created column with a nil raw value.
//
// Generate must not modify any raw value it reads: it returns a new value
// for the center column. Raw values of later stages must still carry
// everything earlier stages produced, since a neighbor may be further
// along than the stage being generated.
type Generator interface {
	Stages() []Stage
	Generate(stage int, n Neighborhood) (any, error)
	Summarize(addr lod.Address, raw any, tier lod.Tier) lod.DataPoint
	TargetStage(tier lod.Tier) int
}

// Sink receives finished data points.
type Sink interface {
	Commit(addr lod.Address, d lod.DataPoint) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(addr lod.Address, d lod.DataPoint) bool

func (f SinkFunc) Commit(addr lod.Address, d lod.DataPoint) bool { return f(addr, d) }

// Neighborhood is the read-only view a stage gets of the square of columns
// around Center. Neighbors are same-level addresses.
type Neighborhood struct {
	Center lod.Address
	Radius int
	raws   []any
}

func (n Neighborhood) side() int { return 2*n.Radius + 1 }

// At returns the raw value of the column offset by (dx, dz) from Center,
// or nil outside the radius.
func (n Neighborhood) At(dx, dz int) any {
	if dx < -n.Radius || dx > n.Radius || dz < -n.Radius || dz > n.Radius {
		return nil
	}
	return n.raws[(dz+n.Radius)*n.side()+dx+n.Radius]
}

// Self returns the center column's raw value from the previous stage.
func (n Neighborhood) Self() any { return n.At(0, 0) }

// NewNeighborhood builds a view from raws laid out row by row, z outer.
// It is meant for generator tests.
func NewNeighborhood(center lod.Address, radius int, raws []any) Neighborhood {
	side := 2*radius + 1
	if len(raws) != side*side {
		panic("pipeline: neighborhood size mismatch")
	}
	return Neighborhood{Center: center, Radius: radius, raws: raws}
}
