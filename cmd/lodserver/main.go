package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OCharnyshevich/terrain-lod/internal/lod/config"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/engine"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/gen"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/region"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/storage"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/tile"
)

func main() {
	cfg := config.DefaultConfig()

	flag.StringVar(&cfg.SaveDir, "save-dir", cfg.SaveDir, "directory for config, world metadata and region files")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "world seed")
	flag.StringVar(&cfg.GeneratorType, "generator", cfg.GeneratorType, "terrain generator (default, flat)")
	flag.IntVar(&cfg.WindowWidth, "window-width", cfg.WindowWidth, "regions per side of the loaded window (odd)")
	target := flag.Uint("target-level", uint(cfg.TargetLevel), "finest detail level generated near the viewer")
	flag.Float64Var(&cfg.BaseDistance, "base-distance", cfg.BaseDistance, "distance in columns kept at the finest level")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent generation tasks")
	flag.IntVar(&cfg.NearBudget, "near-budget", cfg.NearBudget, "near addresses selected per round")
	flag.IntVar(&cfg.FarBudget, "far-budget", cfg.FarBudget, "far addresses selected per round")
	nearLevel := flag.Uint("near-level", uint(cfg.NearLevelThreshold), "levels below this in the viewer's region are near")
	flag.StringVar(&cfg.GenerationTier, "tier", cfg.GenerationTier, "generation quality tier (biome, surface, features)")
	flag.Float64Var(&cfg.SelectorRate, "selector-rate", cfg.SelectorRate, "selection rounds per second")
	flag.StringVar(&cfg.QualityMode, "quality", cfg.QualityMode, "quality mode directory name")
	flag.IntVar(&cfg.SaveIntervalSec, "save-interval", cfg.SaveIntervalSec, "seconds between dirty tile flushes")

	speed := flag.Float64("walk-speed", 32, "simulated viewer speed in columns per second")
	tick := flag.Duration("tick", 50*time.Millisecond, "update interval")
	flag.Parse()

	cfg.TargetLevel = uint8(min(*target, math.MaxUint8))
	cfg.NearLevelThreshold = uint8(min(*nearLevel, math.MaxUint8))

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, explicit, *speed, *tick, log); err != nil {
		log.Error("lod server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, explicit map[string]bool, speed float64, tick time.Duration, log *slog.Logger) error {
	store, err := storage.New(cfg.SaveDir, log)
	if err != nil {
		return err
	}

	fromFile := config.DefaultConfig()
	if err := store.LoadConfig(fromFile); err != nil {
		return err
	}
	fromFile.SaveDir = cfg.SaveDir
	config.Merge(cfg, fromFile, explicit)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := openWorld(store, cfg, log); err != nil {
		return err
	}
	if err := store.SaveConfig(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	g, err := gen.New(cfg.GeneratorType, cfg.Seed)
	if err != nil {
		return err
	}
	regions := region.NewStore(store.RegionsDir(), cfg.QualityMode, cfg.Tier(), log)
	eng, err := engine.New(cfg, regions, g, log)
	if err != nil {
		return err
	}

	log.Info("lod server started",
		"generator", cfg.GeneratorType,
		"seed", cfg.Seed,
		"tier", cfg.GenerationTier,
		"window", cfg.WindowWidth,
		"workers", cfg.Workers,
	)

	walk(ctx, eng, speed, tick, log)

	log.Info("lod server shutting down")
	if err := eng.Close(); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	return nil
}

// openWorld records the seed and generator the save directory belongs to.
// An existing world keeps its own seed and generator.
func openWorld(store *storage.Storage, cfg *config.Config, log *slog.Logger) error {
	meta, err := store.LoadWorld()
	if err != nil {
		return err
	}
	if meta == nil {
		meta = &storage.WorldMeta{
			Seed:          cfg.Seed,
			GeneratorType: cfg.GeneratorType,
			FormatVersion: region.FormatVersion,
		}
		if err := store.SaveWorld(meta); err != nil {
			return fmt.Errorf("save world: %w", err)
		}
		log.Info("created world", "seed", meta.Seed, "generator", meta.GeneratorType)
		return nil
	}
	if meta.Seed != cfg.Seed || meta.GeneratorType != cfg.GeneratorType {
		log.Warn("world was created with different settings, using stored values",
			"seed", meta.Seed,
			"generator", meta.GeneratorType,
		)
		cfg.Seed = meta.Seed
		cfg.GeneratorType = meta.GeneratorType
	}
	return nil
}

// walk moves a simulated viewer along the x axis until ctx is done.
func walk(ctx context.Context, eng *engine.Engine, speed float64, tick time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	report := time.NewTicker(time.Second)
	defer report.Stop()

	start := time.Now()
	var x, z float64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			x = speed * time.Since(start).Seconds()
			eng.Update(x, z)
		case <-report.C:
			st := eng.Stats()
			rendered := eng.DataToRender(x, z, tile.Band{Max: math.Inf(1)})
			log.Info("lod status",
				"x", int(x),
				"center", st.Center,
				"loaded", st.LoadedTiles,
				"waiting", st.Waiting,
				"pendingSaves", st.PendingSaves,
				"rendered", len(rendered),
			)
		}
	}
}
