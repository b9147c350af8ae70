package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/OCharnyshevich/terrain-lod/internal/lod/config"
)

// WorldMeta identifies the world a save directory was generated for.
type WorldMeta struct {
	Seed          int64  `json:"seed"`
	GeneratorType string `json:"generator_type"`
	FormatVersion byte   `json:"format_version"`
}

// Storage handles file-based persistence for config and world metadata,
// and owns the directory region files live under.
type Storage struct {
	dir string
	log *slog.Logger
}

// New creates a new Storage rooted at dir, creating subdirectories as needed.
func New(dir string, log *slog.Logger) (*Storage, error) {
	dirs := []string{
		dir,
		filepath.Join(dir, "regions"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return &Storage{dir: dir, log: log}, nil
}

// RegionsDir returns the root directory for region files.
func (s *Storage) RegionsDir() string {
	return filepath.Join(s.dir, "regions")
}

// LoadConfig reads config.json into cfg. If the file does not exist, cfg is unchanged.
func (s *Storage) LoadConfig(cfg *config.Config) error {
	path := filepath.Join(s.dir, "config.json")
	ok, err := s.readJSON(path, cfg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if ok {
		s.log.Info("loaded config from file", "path", path)
	}
	return nil
}

// SaveConfig writes cfg to config.json atomically.
func (s *Storage) SaveConfig(cfg *config.Config) error {
	return s.atomicWriteJSON(filepath.Join(s.dir, "config.json"), cfg)
}

// LoadWorld reads world.json, or returns nil if the directory holds no world yet.
func (s *Storage) LoadWorld() (*WorldMeta, error) {
	var meta WorldMeta
	ok, err := s.readJSON(filepath.Join(s.dir, "world.json"), &meta)
	if err != nil {
		return nil, fmt.Errorf("load world: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

// SaveWorld writes world.json atomically.
func (s *Storage) SaveWorld(meta *WorldMeta) error {
	return s.atomicWriteJSON(filepath.Join(s.dir, "world.json"), meta)
}

func (s *Storage) readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// atomicWriteJSON marshals v to JSON and writes it atomically using a temp file + rename.
func (s *Storage) atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')

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
