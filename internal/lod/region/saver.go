package region

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/OCharnyshevich/terrain-lod/internal/lod/tile"
	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// TileSaver persists one tile.
type TileSaver interface {
	Save(t *tile.Tile) error
}

// Saver is the single writer of region files. Tiles are queued by region,
// so a tile enqueued twice before a flush is saved once.
type Saver struct {
	store TileSaver
	retry time.Duration
	log   *slog.Logger

	mu      sync.Mutex
	pending map[lod.RegionPos]*tile.Tile
	saving  map[lod.RegionPos]*tile.Tile // batch of the running flush
	wake    chan struct{}

	flushMu sync.Mutex
}

// NewSaver creates a saver. Failed saves are retried every retry interval.
func NewSaver(store TileSaver, retry time.Duration, log *slog.Logger) *Saver {
	if retry <= 0 {
		retry = 5 * time.Second
	}
	return &Saver{
		store:   store,
		retry:   retry,
		log:     log,
		pending: make(map[lod.RegionPos]*tile.Tile),
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue schedules t for saving. It never blocks.
func (s *Saver) Enqueue(t *tile.Tile) {
	s.mu.Lock()
	s.pending[t.Pos()] = t
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued tiles.
func (s *Saver) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush saves every queued tile. A tile that fails to save stays dirty and
// queued for the next flush, except when its files belong to a newer
// version, which are never overwritten.
func (s *Saver) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[lod.RegionPos]*tile.Tile, len(batch))
	s.saving = batch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.saving = nil
		s.mu.Unlock()
	}()

	var errs []error
	for pos, t := range batch {
		t.ClearDirty()
		err := s.store.Save(t)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNewerVersion) {
			s.log.Warn("region not saved", "region", pos, "error", err)
			continue
		}
		s.log.Error("save region", "region", pos, "error", err)
		t.MarkDirty()
		s.requeue(t)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Lookup returns the tile queued or being saved for pos, or nil. A tile
// found here is newer than what the store holds on disk.
func (s *Saver) Lookup(pos lod.RegionPos) *tile.Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pending[pos]; ok {
		return t
	}
	return s.saving[pos]
}

func (s *Saver) requeue(t *tile.Tile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[t.Pos()]; !ok {
		s.pending[t.Pos()] = t
	}
}

// Run saves queued tiles until ctx is done, then flushes once more.
func (s *Saver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.retry)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = s.Flush()
			return
		case <-s.wake:
			_ = s.Flush()
		case <-ticker.C:
			_ = s.Flush()
		}
	}
}
