package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/keywire/internal/config"
	"github.com/danmuck/keywire/internal/server"
)

// keywired config.toml key mapping to server runtime settings.
type fileConfig struct {
	ID                string               `toml:"id"`
	ListenAddr        string               `toml:"listen_addr"`
	AdminAddr         string               `toml:"admin_addr"`
	AuthToken         string               `toml:"auth_token"`
	CorsOrigins       []string             `toml:"cors_origins"`
	MaxInFlight       int                  `toml:"max_in_flight"`
	CompressThreshold int                  `toml:"compress_threshold"`
	MaxPayloadBytes   int                  `toml:"max_payload_bytes"`
	Session           config.SessionConfig `toml:"session"`
	Seeds             []config.SeedEntry   `toml:"seeds"`
}

// keywired loader for TOML config with default overlay.
func loadServiceConfig(path string) (server.Config, []config.SeedEntry, error) {
	cfg := server.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return server.Config{}, nil, fmt.Errorf("load keywired config: %w", err)
	}

	if meta.IsDefined("id") {
		cfg.ID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("max_in_flight") {
		cfg.MaxInFlight = raw.MaxInFlight
	}
	if meta.IsDefined("compress_threshold") {
		cfg.CompressThreshold = raw.CompressThreshold
	}
	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes < 0 {
			return server.Config{}, nil, fmt.Errorf("load keywired config: max_payload_bytes must not be negative")
		}
		cfg.MaxPayloadBytes = uint32(raw.MaxPayloadBytes)
	}
	if meta.IsDefined("session") {
		cfg.Session = config.SessionSettings(raw.Session)
	}

	for i, seed := range raw.Seeds {
		if err := config.ValidateSeedEntry(seed); err != nil {
			return server.Config{}, nil, fmt.Errorf("load keywired config: seed[%d]: %w", i, err)
		}
	}
	return cfg, raw.Seeds, nil
}
