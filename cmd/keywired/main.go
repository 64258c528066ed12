package main

import (
	"errors"
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/keywire/internal/config"
	"github.com/danmuck/keywire/internal/observability"
	"github.com/danmuck/keywire/internal/server"
	"github.com/danmuck/keywire/internal/store"
)

func main() {
	observability.InitLogger("keywired")

	configPath := flag.String("config", "cmd/keywired/config.toml", "path to keywired config")
	listenAddr := flag.String("listen", "", "override record listen address")
	adminAddr := flag.String("admin", "", "override admin listen address")
	flag.Parse()

	cfg := server.DefaultConfig()
	var seeds []config.SeedEntry
	loaded, loadedSeeds, err := loadServiceConfig(*configPath)
	switch {
	case err == nil:
		cfg = loaded
		seeds = loadedSeeds
		log.Info().Str("path", *configPath).Msg("loaded keywired config")
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", *configPath).Msg("config not found, using defaults")
	default:
		log.Fatal().Err(err).Msg("failed to load keywired config")
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}

	svc, err := server.NewService(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build keywire service")
	}
	for _, seed := range seeds {
		key, err := store.ParseKey(seed.Key)
		if err != nil {
			log.Fatal().Err(err).Str("key", seed.Key).Msg("invalid seed key")
		}
		svc.Store().Put(key, []byte(seed.Value))
	}
	if len(seeds) > 0 {
		log.Info().Int("keys", len(seeds)).Msg("store seeded")
	}

	if err := svc.Run(); err != nil {
		log.Fatal().Err(err).Msg("keywired stopped")
	}
}
