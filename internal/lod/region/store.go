package region

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/OCharnyshevich/terrain-lod/internal/lod/tile"
	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// Store persists tiles as one file per detail level under
// <root>/<quality>/<generation>/lvl<level>/r.<x>.<z>.lod.
type Store struct {
	root    string
	quality string
	tier    lod.Tier
	log     *slog.Logger
}

// NewStore creates a store for tiles generated at tier. The tier names the
// generation-mode directory and is the tier of decoded void sentinels.
func NewStore(root, quality string, tier lod.Tier, log *slog.Logger) *Store {
	return &Store{root: root, quality: quality, tier: tier, log: log}
}

// Path returns the file holding level of the region at pos.
func (s *Store) Path(pos lod.RegionPos, level lod.DetailLevel) string {
	return filepath.Join(s.root, s.quality, s.tier.String(),
		fmt.Sprintf("lvl%d", level), fmt.Sprintf("r.%d.%d.lod", pos.X, pos.Z))
}

// Load reads the region at pos from level 9 down to the finest level on
// disk. It returns nil, nil when nothing usable is stored. Outdated files
// are deleted; files from a newer version are left alone.
func (s *Store) Load(pos lod.RegionPos) (*tile.Tile, error) {
	snap := tile.Snapshot{Pos: pos, MinLevel: lod.RegionLevel}
	found := false

	for l := int(lod.RegionLevel); l >= 0; l-- {
		level := lod.DetailLevel(l)
		path := s.Path(pos, level)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			return nil, fmt.Errorf("read region %s: %w", path, err)
		}

		w := lod.GridWidth(level)
		cells, err := DecodeLevel(data, w*w, s.tier)
		if errors.Is(err, ErrOutdated) {
			s.log.Info("removing outdated region file", "path", path, "error", err)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.log.Warn("remove outdated region file", "path", path, "error", err)
			}
			break
		}
		if errors.Is(err, ErrNewerVersion) {
			s.log.Warn("skipping region file from a newer version", "path", path, "error", err)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode region %s: %w", path, err)
		}

		snap.Levels[level] = cells
		snap.MinLevel = level
		found = true
	}

	if !found {
		return nil, nil
	}
	t, err := tile.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("restore region %v: %w", pos, err)
	}
	return t, nil
}

// Save writes every level the tile holds and removes level files finer
// than its minimum level. Nothing is written when any file of the region
// comes from a newer version.
func (s *Store) Save(t *tile.Tile) error {
	snap := t.Snapshot()

	for l := lod.DetailLevel(0); l <= lod.RegionLevel; l++ {
		newer, err := s.hasNewer(s.Path(snap.Pos, l))
		if err != nil {
			return err
		}
		if newer {
			return fmt.Errorf("save region %v level %d: %w", snap.Pos, l, ErrNewerVersion)
		}
	}

	for l := snap.MinLevel; l <= lod.RegionLevel; l++ {
		path := s.Path(snap.Pos, l)
		if err := writeAtomic(path, EncodeLevel(snap.Levels[l], s.tier)); err != nil {
			return fmt.Errorf("save region %v level %d: %w", snap.Pos, l, err)
		}
	}
	for l := lod.DetailLevel(0); l < snap.MinLevel; l++ {
		if err := os.Remove(s.Path(snap.Pos, l)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cut level %d of %v: %w", l, snap.Pos, err)
		}
	}
	return nil
}

func (s *Store) hasNewer(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("open region %s: %w", path, err)
	}
	defer f.Close()

	var b [1]byte
	if _, err := f.Read(b[:]); err != nil {
		// Unreadable header: treat as ours and overwrite.
		return false, nil
	}
	return b[0] > FormatVersion, nil
}

// writeAtomic writes data to a temp file next to path, then renames it.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create region dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
