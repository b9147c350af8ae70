package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/syncmap"
	"golang.org/x/time/rate"

	"github.com/OCharnyshevich/terrain-lod/internal/lod/config"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/pipeline"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/region"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/selector"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/tile"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/window"
	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// cutHysteresis is how many levels coarser than held a region's wanted
// level must become before its finer levels are dropped.
const cutHysteresis = 2

// Engine keeps the detail index around a moving viewer: it recenters the
// window, grows and trims tiles, schedules generation and saves changes.
type Engine struct {
	cfg    *config.Config
	tier   lod.Tier
	policy lod.DetailPolicy
	log    *slog.Logger

	window   *window.Window
	pipeline *pipeline.Pipeline
	pool     *pipeline.Pool
	limiter  *rate.Limiter
	saver    *region.Saver
	inFlight syncmap.Map // lod.Address -> struct{}

	tasks     context.Context
	stopTasks context.CancelFunc
	stopSaver context.CancelFunc
	saverDone chan struct{}

	mu        sync.Mutex // serializes Update, Flush and Close
	lastFlush time.Time
	closed    bool
}

// unsavedFirst loads regions from the saver's queue before the store, so a
// tile dropped by the window and reloaded before its save finished keeps
// its newer contents.
type unsavedFirst struct {
	saver *region.Saver
	store *region.Store
}

func (l unsavedFirst) Load(pos lod.RegionPos) (*tile.Tile, error) {
	if t := l.saver.Lookup(pos); t != nil {
		return t, nil
	}
	return l.store.Load(pos)
}

// New creates an engine persisting to store and generating with gen.
func New(cfg *config.Config, store *region.Store, gen pipeline.Generator, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	saver := region.NewSaver(store, cfg.SaveInterval(), log)
	w, err := window.New(cfg.WindowWidth, lod.RegionPos{}, unsavedFirst{saver: saver, store: store}, log)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		tier:      cfg.Tier(),
		policy:    cfg.Policy(),
		log:       log,
		window:    w,
		pool:      pipeline.NewPool(cfg.Workers),
		limiter:   rate.NewLimiter(rate.Limit(cfg.SelectorRate), 1),
		saver:     saver,
		saverDone: make(chan struct{}),
		lastFlush: time.Now(),
	}
	e.pipeline = pipeline.New(gen, pipeline.SinkFunc(e.commit), e.tier, log)

	e.tasks, e.stopTasks = context.WithCancel(context.Background())
	saverCtx, stopSaver := context.WithCancel(context.Background())
	e.stopSaver = stopSaver
	go func() {
		defer close(e.saverDone)
		e.saver.Run(saverCtx)
	}()
	return e, nil
}

// commit writes a finished data point into its tile. Points for regions
// that left the window are dropped.
func (e *Engine) commit(addr lod.Address, d lod.DataPoint) bool {
	t := e.window.Peek(addr.Region())
	if t == nil {
		return false
	}
	return t.Write(addr, d)
}

// Update runs one tick for a viewer at column coordinates (x, z). It does
// nothing after Close.
func (e *Engine) Update(x, z float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	cx, cz := lod.ColumnOf(x, z)
	for _, t := range e.window.MoveTo(lod.RegionOfColumn(cx, cz)) {
		e.saver.Enqueue(t)
	}

	for _, pos := range e.window.TakeNeedsRegen() {
		if t := e.window.Get(pos); t != nil {
			t.Clear()
			e.log.Info("region queued for regeneration", "region", pos)
		}
	}

	e.resize(x, z)

	if time.Since(e.lastFlush) >= e.cfg.SaveInterval() {
		e.flushDirty()
	}

	budget := e.cfg.NearBudget + e.cfg.FarBudget
	if e.pool.Waiting() >= budget || !e.limiter.Allow() {
		return
	}
	addrs := selector.Select(e.window, selector.Request{
		X:                  x,
		Z:                  z,
		Floor:              e.tier,
		Policy:             e.policy,
		NearBudget:         e.cfg.NearBudget,
		NearLevelThreshold: lod.DetailLevel(e.cfg.NearLevelThreshold),
		FarBudget:          e.cfg.FarBudget,
		Skip:               e.busy,
	})
	for _, a := range addrs {
		if !e.dispatch(a) {
			break
		}
	}
}

// resize grows every tile down to the finest level the viewer wants in it
// and trims tiles whose wanted level moved well past what they hold.
func (e *Engine) resize(x, z float64) {
	for _, s := range e.window.Slots() {
		t := s.Tile
		if t == nil {
			if t = e.window.Get(s.Pos); t == nil {
				continue
			}
		}
		want := e.policy.LevelFor(s.Pos.Address(), x, z)
		have := t.MinLevel()
		switch {
		case want < have:
			t.Expand(want)
		case want >= have+cutHysteresis:
			t.CutTree(want)
		}
	}
}

func (e *Engine) busy(a lod.Address) bool {
	_, ok := e.inFlight.Load(a)
	return ok
}

// dispatch starts a generation task for a unless one is running. It
// reports false when the pool has no free worker.
func (e *Engine) dispatch(a lod.Address) bool {
	if _, loaded := e.inFlight.LoadOrStore(a, struct{}{}); loaded {
		return true
	}
	ok := e.pool.TryGo(func() {
		defer e.inFlight.Delete(a)
		err := e.pipeline.Run(e.tasks, a)
		if err != nil && !errors.Is(err, context.Canceled) {
			e.log.Warn("generation task failed", "address", a, "error", err)
		}
	})
	if !ok {
		e.inFlight.Delete(a)
	}
	return ok
}

func (e *Engine) flushDirty() {
	for _, t := range e.window.DirtyTiles() {
		e.saver.Enqueue(t)
	}
	e.lastFlush = time.Now()
}

// RequestRegen schedules the region at pos to be generated again on the
// next Update. It reports false when pos is outside the window.
func (e *Engine) RequestRegen(pos lod.RegionPos) bool {
	return e.window.MarkNeedsRegen(pos)
}

// Waiting returns the number of generation tasks not yet finished.
func (e *Engine) Waiting() int { return e.pool.Waiting() }

// Stats is a snapshot of engine activity for logging.
type Stats struct {
	Center       lod.RegionPos
	LoadedTiles  int
	Waiting      int
	PendingSaves int
}

// Stats returns current activity counters.
func (e *Engine) Stats() Stats {
	loaded := 0
	for _, s := range e.window.Slots() {
		if s.Tile != nil {
			loaded++
		}
	}
	return Stats{
		Center:       e.window.Center(),
		LoadedTiles:  loaded,
		Waiting:      e.pool.Waiting(),
		PendingSaves: e.saver.Pending(),
	}
}

// Flush saves every dirty tile now.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flush()
}

func (e *Engine) flush() error {
	e.flushDirty()
	return e.saver.Flush()
}

// Close stops generation, waits for running tasks and saves every dirty
// tile before returning.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	e.stopTasks()
	e.pool.Wait()
	err := e.flush()

	e.stopSaver()
	<-e.saverDone
	return err
}
