// Command lodfetch downloads a pre-generated save directory (config, world
// metadata and region files) from any go-getter source: git, http archive,
// s3 or a local path.
package main

import (
	"flag"
	"log/slog"
	"os"

	get "github.com/hashicorp/go-getter"

	"github.com/OCharnyshevich/terrain-lod/internal/lod/region"
	"github.com/OCharnyshevich/terrain-lod/internal/lod/storage"
)

func main() {
	var (
		src   = flag.String("url", "", "source url, e.g. git::https://example.com/worlds.git//seed-42")
		out   = flag.String("save-dir", "./data", "destination save directory")
		clean = flag.Bool("clean", false, "remove the destination before downloading")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *src == "" {
		log.Error("source url required")
		os.Exit(2)
	}
	if *out == "" {
		log.Error("save dir required")
		os.Exit(2)
	}

	if *clean {
		if err := os.RemoveAll(*out); err != nil {
			log.Error("clean save dir", "path", *out, "error", err)
			os.Exit(1)
		}
	}

	log.Info("start downloading save", "url", *src, "path", *out)
	if err := get.Get(*out, *src); err != nil {
		log.Error("download save", "url", *src, "error", err)
		os.Exit(1)
	}

	store, err := storage.New(*out, log)
	if err != nil {
		log.Error("open save dir", "error", err)
		os.Exit(1)
	}
	meta, err := store.LoadWorld()
	if err != nil {
		log.Error("read world metadata", "error", err)
		os.Exit(1)
	}
	if meta == nil {
		log.Warn("download has no world.json, seed and generator come from flags on first run")
	} else {
		if meta.FormatVersion > region.FormatVersion {
			log.Warn("save was written by a newer version, its region files will be skipped",
				"saveVersion", meta.FormatVersion,
				"supported", region.FormatVersion,
			)
		}
		log.Info("world", "seed", meta.Seed, "generator", meta.GeneratorType, "formatVersion", meta.FormatVersion)
	}

	log.Info("done downloading save", "path", *out)
}
