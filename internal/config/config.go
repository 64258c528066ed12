package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/keywire/internal/store"
)

type ServerConfig struct {
	ID                string        `toml:"id"`
	ListenAddr        string        `toml:"listen_addr"`
	AdminAddr         string        `toml:"admin_addr"`
	AuthToken         string        `toml:"auth_token"`
	CorsOrigins       []string      `toml:"cors_origins"`
	MaxInFlight       int           `toml:"max_in_flight"`
	CompressThreshold int           `toml:"compress_threshold"`
	MaxPayloadBytes   int           `toml:"max_payload_bytes"`
	Session           SessionConfig `toml:"session"`
	Seeds             []SeedEntry   `toml:"seeds"`
}

type ClientConfig struct {
	ID          string        `toml:"id"`
	ServerAddr  string        `toml:"server_addr"`
	AdminAddr   string        `toml:"admin_addr"`
	AuthToken   string        `toml:"auth_token"`
	RecordKind  string        `toml:"record_kind"`
	MaxAttempts int           `toml:"max_attempts"`
	Session     SessionConfig `toml:"session"`
}

// SessionConfig carries transport knobs in TOML-friendly units; convert.go
// maps it onto session.Config.
type SessionConfig struct {
	ConnectTimeoutMS   int           `toml:"connect_timeout_ms"`
	HandshakeTimeoutMS int           `toml:"handshake_timeout_ms"`
	ReadTimeoutMS      int           `toml:"read_timeout_ms"`
	WriteTimeoutMS     int           `toml:"write_timeout_ms"`
	SecurityMode       string        `toml:"security_mode"`
	Backoff            BackoffConfig `toml:"backoff"`
	TLS                TLSConfig     `toml:"tls"`
}

type BackoffConfig struct {
	InitialDelayMS int     `toml:"initial_delay_ms"`
	MaxDelayMS     int     `toml:"max_delay_ms"`
	Multiplier     float64 `toml:"multiplier"`
	Jitter         bool    `toml:"jitter"`
}

type TLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// SeedEntry preloads one key/value pair into the store at startup. Key
// accepts decimal or 0x-prefixed hex.
type SeedEntry struct {
	Key   string `toml:"key"`
	Value string `toml:"value"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ID:          "keywired",
		ListenAddr:  ":7600",
		AdminAddr:   ":7601",
		MaxInFlight: 64,
	}
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ID:          "keyctl",
		ServerAddr:  "localhost:7600",
		AdminAddr:   "http://localhost:7601",
		RecordKind:  "key.lookup",
		MaxAttempts: 3,
	}
}

func LoadServerConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	def := DefaultServerConfig()
	if cfg.ID == "" {
		cfg.ID = def.ID
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = def.AdminAddr
	}
	if cfg.MaxInFlight == 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func LoadClientConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	def := DefaultClientConfig()
	if cfg.ID == "" {
		cfg.ID = def.ID
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = def.ServerAddr
	}
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = def.AdminAddr
	}
	if cfg.RecordKind == "" {
		cfg.RecordKind = def.RecordKind
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("server config missing id")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("server config missing listen_addr")
	}
	if strings.TrimSpace(cfg.AdminAddr) == "" {
		return fmt.Errorf("server config missing admin_addr")
	}
	if cfg.MaxInFlight < 0 {
		return fmt.Errorf("server config max_in_flight must not be negative")
	}
	if cfg.MaxPayloadBytes < 0 {
		return fmt.Errorf("server config max_payload_bytes must not be negative")
	}
	for i, seed := range cfg.Seeds {
		if err := ValidateSeedEntry(seed); err != nil {
			return fmt.Errorf("seed[%d] invalid: %w", i, err)
		}
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("client config missing id")
	}
	if strings.TrimSpace(cfg.ServerAddr) == "" {
		return fmt.Errorf("client config missing server_addr")
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("client config max_attempts must be at least 1")
	}
	return nil
}

func ValidateSeedEntry(seed SeedEntry) error {
	if _, err := store.ParseKey(seed.Key); err != nil {
		return fmt.Errorf("key is required: %w", err)
	}
	return nil
}
