package engine

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/OCharnyshevich/terrain-lod/internal/lod/config"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/gen"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/pipeline"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/region"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/tile"
	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

var discard = slog.New(slog.DiscardHandler)

var single = []pipeline.Stage{{Name: "only"}}

// failingGen fails every column, so nothing it touches is ever committed.
type failingGen struct{}

func (failingGen) Stages() []pipeline.Stage { return single }
func (failingGen) TargetStage(lod.Tier) int { return 1 }
func (failingGen) Generate(int, pipeline.Neighborhood) (any, error) {
	return nil, errors.New("boom")
}
func (failingGen) Summarize(_ lod.Address, _ any, tier lod.Tier) lod.DataPoint {
	return lod.Void(tier)
}

// blockingGen holds every task until release is closed.
type blockingGen struct{ release chan struct{} }

func (g *blockingGen) Stages() []pipeline.Stage { return single }
func (g *blockingGen) TargetStage(lod.Tier) int { return 1 }
func (g *blockingGen) Generate(int, pipeline.Neighborhood) (any, error) {
	<-g.release
	return struct{}{}, nil
}
func (g *blockingGen) Summarize(_ lod.Address, _ any, tier lod.Tier) lod.DataPoint {
	return lod.Solid(1, 1, 0, 0, 0, tier)
}

func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.SaveDir = dir
	cfg.GeneratorType = "flat"
	cfg.WindowWidth = 1
	cfg.BaseDistance = 16
	cfg.Workers = 2
	cfg.NearBudget = 8
	cfg.FarBudget = 8
	cfg.SelectorRate = 1000
	cfg.SaveIntervalSec = 1
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config, g pipeline.Generator) (*Engine, *region.Store) {
	t.Helper()
	store := region.NewStore(cfg.SaveDir, cfg.QualityMode, cfg.Tier(), discard)
	e, err := New(cfg, store, g, discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e, store
}

// waitFor runs Update until cond holds or the deadline passes.
func waitFor(t *testing.T, e *Engine, x, z float64, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for generation")
		}
		e.Update(x, z)
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.WindowWidth = 0
	store := region.NewStore(cfg.SaveDir, cfg.QualityMode, cfg.Tier(), discard)
	if _, err := New(cfg, store, gen.NewFlat(0), discard); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpdateGeneratesAroundViewer(t *testing.T) {
	e, _ := newEngine(t, testConfig(t.TempDir()), gen.NewFlat(0))

	origin := lod.Address{}
	waitFor(t, e, 0.5, 0.5, func() bool {
		return e.Read(origin).Tier == lod.TierSurface
	})

	d := e.Read(origin)
	if d.Height != 4 || d.Void() {
		t.Fatalf("Read(origin) = %+v, want flat ground at height 4", d)
	}
	if root := e.Read(lod.Address{Level: lod.RegionLevel}); root.Empty() {
		t.Error("region root should aggregate the generated column")
	}
	if got := e.DataToRender(0.5, 0.5, tile.Band{Min: 0, Max: 1 << 20}); len(got) == 0 {
		t.Error("DataToRender returned nothing")
	}
	if st := e.Stats(); st.LoadedTiles != 1 || st.Center != (lod.RegionPos{}) {
		t.Errorf("Stats = %+v", st)
	}
}

func TestCommitOutsideWindowRejected(t *testing.T) {
	e, _ := newEngine(t, testConfig(t.TempDir()), failingGen{})
	e.Update(0.5, 0.5)

	far := lod.Address{Level: 0, X: 5 * lod.RegionWidth, Z: 0}
	if e.commit(far, lod.Solid(1, 1, 0, 0, 0, lod.TierSurface)) {
		t.Fatal("commit outside the window should be rejected")
	}
	if !e.Read(far).Empty() {
		t.Fatal("Read outside the window should be empty")
	}
}

func TestClosePersistsGeneratedData(t *testing.T) {
	dir := t.TempDir()
	e, store := newEngine(t, testConfig(dir), gen.NewFlat(0))

	origin := lod.Address{}
	waitFor(t, e, 0.5, 0.5, func() bool {
		return e.Read(origin).Tier == lod.TierSurface
	})
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(store.Path(lod.RegionPos{}, 0)); err != nil {
		t.Fatalf("level 0 file not written: %v", err)
	}

	// Nothing can be generated now, so the point must come from disk.
	reopened, _ := newEngine(t, testConfig(dir), failingGen{})
	reopened.Update(0.5, 0.5)
	if got := reopened.Read(origin); got.Tier != lod.TierSurface || got.Height != 4 {
		t.Fatalf("Read after reopen = %+v", got)
	}
}

func TestRequestRegenClearsRegion(t *testing.T) {
	e, _ := newEngine(t, testConfig(t.TempDir()), failingGen{})
	e.Update(0.5, 0.5)

	origin := lod.Address{}
	if !e.commit(origin, lod.Solid(7, 1, 0, 0, 0, lod.TierSurface)) {
		t.Fatal("commit rejected")
	}
	if e.Read(origin).Empty() {
		t.Fatal("committed point missing")
	}

	if e.RequestRegen(lod.RegionPos{X: 3}) {
		t.Error("RequestRegen outside the window should report false")
	}
	if !e.RequestRegen(lod.RegionPos{}) {
		t.Fatal("RequestRegen inside the window should report true")
	}
	e.Update(0.5, 0.5)
	if got := e.Read(origin); !got.Empty() {
		t.Fatalf("Read after regen = %+v, want empty", got)
	}
}

func TestWaitingBoundedByWorkers(t *testing.T) {
	cfg := testConfig(t.TempDir())
	g := &blockingGen{release: make(chan struct{})}
	e, _ := newEngine(t, cfg, g)

	for range 20 {
		e.Update(0.5, 0.5)
		if n := e.Waiting(); n > cfg.Workers {
			close(g.release)
			t.Fatalf("Waiting = %d, want at most %d", n, cfg.Workers)
		}
		time.Sleep(time.Millisecond)
	}
	if n := e.Waiting(); n != cfg.Workers {
		close(g.release)
		t.Fatalf("Waiting = %d, want %d blocked tasks", n, cfg.Workers)
	}
	close(g.release)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := e.Waiting(); n != 0 {
		t.Fatalf("Waiting after Close = %d", n)
	}
}

func TestResizeExpandsAndCuts(t *testing.T) {
	tests := []struct {
		name   string
		stored lod.DetailLevel
		want   lod.DetailLevel
	}{
		// Region (1,0) is 256 columns from the viewer, which wants level 3.
		{"cut", 0, 3},
		{"within hysteresis", 2, 2},
		{"expand", 6, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t.TempDir())
			cfg.WindowWidth = 3
			cfg.BaseDistance = 64

			store := region.NewStore(cfg.SaveDir, cfg.QualityMode, cfg.Tier(), discard)
			east := lod.RegionPos{X: 1}
			if err := store.Save(tile.New(east, tt.stored)); err != nil {
				t.Fatalf("seed region: %v", err)
			}

			e, err := New(cfg, store, failingGen{}, discard)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			t.Cleanup(func() { _ = e.Close() })

			e.Update(256, 256)
			if got := e.window.Peek(east).MinLevel(); got != tt.want {
				t.Errorf("east MinLevel = %d, want %d", got, tt.want)
			}
			if got := e.window.Peek(lod.RegionPos{}).MinLevel(); got != 0 {
				t.Errorf("home MinLevel = %d, want 0", got)
			}
		})
	}
}

func TestLoadPrefersUnsavedTile(t *testing.T) {
	cfg := testConfig(t.TempDir())
	store := region.NewStore(cfg.SaveDir, cfg.QualityMode, cfg.Tier(), discard)
	pos := lod.RegionPos{X: 4}
	a := lod.Address{Level: lod.RegionLevel, X: 4}

	old := tile.New(pos, lod.RegionLevel)
	old.Write(a, lod.Solid(1, 1, 0, 0, 0, lod.TierSurface))
	if err := store.Save(old); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saver := region.NewSaver(store, time.Hour, discard)
	loader := unsavedFirst{saver: saver, store: store}

	got, err := loader.Load(pos)
	if err != nil || got == nil || got.Read(a).Height != 1 {
		t.Fatalf("Load without queued tile = %v, %v; want the stored tile", got, err)
	}

	fresh := tile.New(pos, lod.RegionLevel)
	fresh.Write(a, lod.Solid(9, 1, 0, 0, 0, lod.TierSurface))
	saver.Enqueue(fresh)
	if got, err := loader.Load(pos); err != nil || got != fresh {
		t.Fatalf("Load with queued tile = %v, %v; want the queued tile", got, err)
	}
}

func TestMoveAwayAndBackKeepsData(t *testing.T) {
	e, _ := newEngine(t, testConfig(t.TempDir()), failingGen{})
	e.Update(0.5, 0.5)

	origin := lod.Address{}
	if !e.commit(origin, lod.Solid(7, 1, 0, 0, 0, lod.TierSurface)) {
		t.Fatal("commit rejected")
	}

	e.Update(5*lod.RegionWidth+0.5, 0.5)
	if e.window.Peek(lod.RegionPos{}) != nil {
		t.Fatal("origin region should have left the window")
	}
	e.Update(0.5, 0.5)
	if got := e.Read(origin); got.Height != 7 || got.Tier != lod.TierSurface {
		t.Fatalf("Read after returning = %+v, want the committed point", got)
	}
}

func TestUpdateAfterCloseDoesNothing(t *testing.T) {
	e, _ := newEngine(t, testConfig(t.TempDir()), failingGen{})
	e.Update(0.5, 0.5)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e.Update(5*lod.RegionWidth+0.5, 0.5)
	if c := e.window.Center(); c != (lod.RegionPos{}) {
		t.Errorf("window moved to %v after Close", c)
	}
	if n := e.saver.Pending(); n != 0 {
		t.Errorf("Pending = %d after Close, want 0", n)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
