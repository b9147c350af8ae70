package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// ErrStageFailed is returned when a column the task depends on failed a
// generation stage. Failed columns are not retried by the same task.
var ErrStageFailed = errors.New("generation stage failed")

const retryDelay = time.Millisecond

// Pipeline advances raw columns through the generator's stages and
// commits the summarized result. Tasks for overlapping neighborhoods may
// run concurrently: each column is advanced by whichever task wins its
// try-lock, and the others skip it and retry.
type Pipeline struct {
	gen    Generator
	stages []Stage
	sink   Sink
	tier   lod.Tier
	log    *slog.Logger

	mu      sync.Mutex
	columns map[lod.Address]*column
}

// New creates a pipeline committing data points of the given tier.
func New(gen Generator, sink Sink, tier lod.Tier, log *slog.Logger) *Pipeline {
	return &Pipeline{
		gen:     gen,
		stages:  gen.Stages(),
		sink:    sink,
		tier:    tier,
		log:     log,
		columns: make(map[lod.Address]*column),
	}
}

// radius returns r(s) for stage s >= 1.
func (p *Pipeline) radius(s int) int { return p.stages[s-1].Radius }

// reach is how far from the target the task touches columns.
func (p *Pipeline) reach(target int) int {
	r := 0
	for s := 1; s <= target; s++ {
		r += p.radius(s)
	}
	return r
}

func (p *Pipeline) target() int {
	return min(max(p.gen.TargetStage(p.tier), 0), len(p.stages))
}

// Run generates addr up to the target stage for the pipeline's tier and
// commits it to the sink. It never blocks on another task: columns owned
// elsewhere are skipped and the pass is retried until addr is done.
func (p *Pipeline) Run(ctx context.Context, addr lod.Address) error {
	target := p.target()
	cols := p.acquire(square(addr, p.reach(target)))
	defer p.release(cols)

	self := cols[addr]
	for {
		if err := p.pass(cols, addr, target, 0); err != nil {
			return fmt.Errorf("generate %v: %w", addr, err)
		}
		if snap := self.load(); snap.stage >= target {
			d := p.gen.Summarize(addr, snap.raw, p.tier)
			if !p.sink.Commit(addr, d) {
				p.log.Debug("commit rejected", "address", addr, "tier", p.tier)
			}
			return nil
		}
		if err := sleep(ctx, retryDelay); err != nil {
			return err
		}
	}
}

// pass brings every column within radius of center to stage s where it
// can, after first bringing the wider square they depend on to s-1.
func (p *Pipeline) pass(cols map[lod.Address]*column, center lod.Address, s, radius int) error {
	if s == 0 {
		return nil
	}
	r := p.radius(s)
	if err := p.pass(cols, center, s-1, radius+r); err != nil {
		return err
	}
	for _, a := range square(center, radius) {
		if err := p.advance(cols, cols[a], s); err != nil {
			return err
		}
	}
	return nil
}

// advance runs stage s for c if it is ready and no one else owns it.
func (p *Pipeline) advance(cols map[lod.Address]*column, c *column, s int) error {
	snap := c.load()
	if snap.failed {
		return fmt.Errorf("%v at stage %d: %w", c.addr, snap.stage+1, ErrStageFailed)
	}
	if snap.stage >= s || snap.stage < s-1 {
		return nil
	}
	if !c.own.TryLock() {
		return nil
	}
	defer c.own.Unlock()

	// Re-read under ownership; another task may have finished it.
	snap = c.load()
	if snap.failed || snap.stage != s-1 {
		return nil
	}

	r := p.radius(s)
	area := square(c.addr, r)
	raws := make([]any, len(area))
	for i, a := range area {
		ns := cols[a].load()
		if ns.failed {
			return fmt.Errorf("%v at stage %d: %w", a, ns.stage+1, ErrStageFailed)
		}
		if ns.stage < s-1 {
			return nil
		}
		raws[i] = ns.raw
	}

	raw, err := p.gen.Generate(s, Neighborhood{Center: c.addr, Radius: r, raws: raws})
	if err != nil {
		c.snap.Store(&snapshot{stage: snap.stage, raw: snap.raw, failed: true})
		p.log.Warn("generation stage failed", "address", c.addr, "stage", p.stages[s-1].Name, "error", err)
		return fmt.Errorf("%v at stage %d: %w", c.addr, s, ErrStageFailed)
	}
	c.snap.Store(&snapshot{stage: s, raw: raw})
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
