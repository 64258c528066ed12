// Package logging configures the process-wide zerolog logger once, with
// environment overrides layered on top of a runtime or test profile.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "KEYWIRE_LOG_LEVEL"
	EnvLogTimestamp = "KEYWIRE_LOG_TIMESTAMP"
	EnvLogNoColor   = "KEYWIRE_LOG_NOCOLOR"
	EnvLogBypass    = "KEYWIRE_LOG_BYPASS"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config mirrors the knobs the environment can override.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Bypass    bool
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		apply(cfg)
	})
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func apply(cfg Config) {
	if cfg.Bypass {
		zerolog.SetGlobalLevel(zerolog.Disabled)
		log.Logger = zerolog.New(io.Discard)
		return
	}
	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    cfg.NoColor,
	}
	logger := zerolog.New(writer)
	if cfg.Timestamp {
		logger = logger.With().Timestamp().Logger()
	}
	zerolog.SetGlobalLevel(cfg.Level)
	log.Logger = logger
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogBypass)); ok {
		cfg.Bypass = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
