package window

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/OCharnyshevich/terrain-lod/internal/lod/tile"
	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

var discard = slog.New(slog.DiscardHandler)

type fakeLoader struct {
	mu    sync.Mutex
	calls map[lod.RegionPos]int
	tiles map[lod.RegionPos]*tile.Tile
	err   error
}

func (f *fakeLoader) Load(pos lod.RegionPos) (*tile.Tile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[lod.RegionPos]int)
	}
	f.calls[pos]++
	if f.err != nil {
		return nil, f.err
	}
	return f.tiles[pos], nil
}

func newWindow(t *testing.T, width int, loader Loader) *Window {
	t.Helper()
	w, err := New(width, lod.RegionPos{}, loader, discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestNewRejectsInvalidWidth(t *testing.T) {
	for _, width := range []int{0, -3} {
		if _, err := New(width, lod.RegionPos{}, nil, discard); !errors.Is(err, ErrInvalidWidth) {
			t.Errorf("New(%d) error = %v, want ErrInvalidWidth", width, err)
		}
	}
}

func TestRange(t *testing.T) {
	w := newWindow(t, 3, nil)
	tests := []struct {
		pos  lod.RegionPos
		want bool
	}{
		{lod.RegionPos{X: 0, Z: 0}, true},
		{lod.RegionPos{X: -1, Z: 1}, true},
		{lod.RegionPos{X: 2, Z: 0}, false},
		{lod.RegionPos{X: 0, Z: -2}, false},
	}
	for _, tt := range tests {
		if got := w.IsInRange(tt.pos); got != tt.want {
			t.Errorf("IsInRange(%v) = %v, want %v", tt.pos, got, tt.want)
		}
	}
	if got := w.Get(lod.RegionPos{X: 5, Z: 5}); got != nil {
		t.Errorf("Get out of range = %v, want nil", got)
	}
	if len(w.Slots()) != 9 {
		t.Errorf("Slots = %d, want 9", len(w.Slots()))
	}
}

func TestGetLoadsOnce(t *testing.T) {
	pos := lod.RegionPos{X: 1, Z: 0}
	stored := tile.New(pos, 5)
	loader := &fakeLoader{tiles: map[lod.RegionPos]*tile.Tile{pos: stored}}
	w := newWindow(t, 3, loader)

	if got := w.Peek(pos); got != nil {
		t.Fatal("Peek should not load")
	}
	if got := w.Get(pos); got != stored {
		t.Fatal("Get should return the stored tile")
	}
	if got := w.Get(pos); got != stored {
		t.Fatal("second Get should return the same tile")
	}
	if loader.calls[pos] != 1 {
		t.Errorf("loader called %d times, want 1", loader.calls[pos])
	}

	empty := w.Get(lod.RegionPos{})
	if empty == nil || empty.MinLevel() != lod.RegionLevel {
		t.Fatalf("missing region should allocate an empty region-level tile, got %v", empty)
	}
}

func TestGetLoaderErrorAllocatesEmpty(t *testing.T) {
	w := newWindow(t, 1, &fakeLoader{err: errors.New("disk on fire")})
	got := w.Get(lod.RegionPos{})
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if !got.Read(lod.RegionPos{}.Address()).Empty() {
		t.Error("tile after load error should be empty")
	}
}

func TestGetConcurrent(t *testing.T) {
	w := newWindow(t, 3, &fakeLoader{})
	pos := lod.RegionPos{X: -1, Z: -1}

	var wg sync.WaitGroup
	got := make([]*tile.Tile, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = w.Get(pos)
		}()
	}
	wg.Wait()
	for i, tl := range got {
		if tl != got[0] {
			t.Fatalf("goroutine %d got a different tile", i)
		}
	}
}

func TestMoveZeroIsNoop(t *testing.T) {
	w := newWindow(t, 3, nil)
	tl := w.Get(lod.RegionPos{X: 1, Z: 1})
	w.MarkDirty(lod.RegionPos{X: 1, Z: 1})
	if dropped := w.Move(lod.RegionPos{}); dropped != nil {
		t.Fatalf("Move(0,0) dropped %v", dropped)
	}
	if w.Peek(lod.RegionPos{X: 1, Z: 1}) != tl || w.Center() != (lod.RegionPos{}) {
		t.Fatal("Move(0,0) changed the window")
	}
}

func TestMoveKeepsOverlap(t *testing.T) {
	w := newWindow(t, 3, nil)
	keep := w.Get(lod.RegionPos{X: 1, Z: 0})
	lose := w.Get(lod.RegionPos{X: -1, Z: 0})
	clean := w.Get(lod.RegionPos{X: -1, Z: 1})
	lose.MarkDirty()
	w.MarkNeedsRegen(lod.RegionPos{X: 1, Z: 0})

	dropped := w.Move(lod.RegionPos{X: 1})
	if w.Center() != (lod.RegionPos{X: 1}) {
		t.Fatalf("center = %v, want r.1.0", w.Center())
	}
	if w.Peek(lod.RegionPos{X: 1, Z: 0}) != keep {
		t.Error("overlapping tile was not kept")
	}
	if w.Peek(lod.RegionPos{X: 2, Z: 0}) != nil {
		t.Error("newly exposed slot should be empty")
	}
	if !slices.Equal(dropped, []*tile.Tile{lose}) {
		t.Errorf("dropped = %v, want only the dirty tile", dropped)
	}
	if w.IsInRange(clean.Pos()) {
		t.Error("left column should be out of range")
	}
	if got := w.TakeNeedsRegen(); !slices.Equal(got, []lod.RegionPos{{X: 1, Z: 0}}) {
		t.Errorf("needs regen = %v, want r.1.0", got)
	}
}

func TestMoveComposes(t *testing.T) {
	populate := func(w *Window) map[lod.RegionPos]*tile.Tile {
		out := make(map[lod.RegionPos]*tile.Tile)
		for _, s := range w.Slots() {
			out[s.Pos] = w.Get(s.Pos)
		}
		return out
	}

	a := newWindow(t, 5, nil)
	b := newWindow(t, 5, nil)
	ta := populate(a)
	tb := populate(b)

	a.Move(lod.RegionPos{X: 1})
	a.Move(lod.RegionPos{X: 1, Z: 1})
	b.Move(lod.RegionPos{X: 2, Z: 1})

	if a.Center() != b.Center() {
		t.Fatalf("centers differ: %v vs %v", a.Center(), b.Center())
	}
	for _, s := range a.Slots() {
		other := b.Peek(s.Pos)
		switch {
		case s.Tile == nil && other == nil:
		case s.Tile == nil || other == nil:
			t.Fatalf("slot %v loaded in only one window", s.Pos)
		case s.Tile != ta[s.Pos] || other != tb[s.Pos]:
			t.Fatalf("slot %v holds the wrong tile", s.Pos)
		}
	}
}

func TestMoveBeyondWidthDropsAll(t *testing.T) {
	w := newWindow(t, 3, nil)
	for _, s := range w.Slots() {
		w.Get(s.Pos).MarkDirty()
	}
	dropped := w.MoveTo(lod.RegionPos{X: 10, Z: 10})
	if len(dropped) != 9 {
		t.Fatalf("dropped %d tiles, want 9", len(dropped))
	}
	for _, s := range w.Slots() {
		if s.Tile != nil {
			t.Fatalf("slot %v should be empty", s.Pos)
		}
	}
}

func TestDirtyTiles(t *testing.T) {
	w := newWindow(t, 3, nil)
	a := lod.RegionPos{X: 0, Z: 1}
	tl := w.Get(a)
	w.MarkDirty(a)
	if !w.IsDirty(a) {
		t.Fatal("region should be dirty")
	}
	if got := w.DirtyTiles(); !slices.Equal(got, []*tile.Tile{tl}) {
		t.Fatalf("DirtyTiles = %v, want the marked tile", got)
	}

	// The tile keeps its own flag until the saver clears it.
	if !w.IsDirty(a) {
		t.Fatal("tile flag should survive DirtyTiles")
	}
	tl.ClearDirty()
	if w.IsDirty(a) || len(w.DirtyTiles()) != 0 {
		t.Fatal("saved tile should be clean")
	}
}

func TestDataToRenderCoversUnloaded(t *testing.T) {
	w := newWindow(t, 3, nil)
	policy := lod.DetailPolicy{BaseDistance: 64, Finest: 0}
	band := tile.Band{Min: 0, Max: 1e9}

	got := w.DataToRender(256, 256, band, policy)
	if len(got) != 9 {
		t.Fatalf("got %d addresses, want 9 region roots", len(got))
	}
	for _, a := range got {
		if a.Level != lod.RegionLevel || !w.IsInRange(a.Region()) {
			t.Errorf("unexpected address %v", a)
		}
	}

	near := w.DataToRender(256, 256, tile.Band{Min: 0, Max: 100}, policy)
	if !slices.Equal(near, []lod.Address{{Level: lod.RegionLevel}}) {
		t.Errorf("near band = %v, want only the center region", near)
	}
}
