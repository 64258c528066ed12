package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/keywire/internal/protocol/session"
)

func TestLoadServiceConfigOverrides(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.toml")
	content := `
id = "keywired.alpha"
listen_addr = "127.0.0.1:9600"
admin_addr = "127.0.0.1:9601"
auth_token = "sekrit"
max_in_flight = 8
compress_threshold = 128

[session]
read_timeout_ms = 2500
security_mode = "production"

[session.tls]
enabled = true
mutual = true
cert_file = "/etc/keywire/server.crt"
key_file = "/etc/keywire/server.key"
ca_file = "/etc/keywire/ca.crt"

[[seeds]]
key = "0x2a"
value = "forty-two"
	`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, seeds, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ID != "keywired.alpha" {
		t.Fatalf("unexpected id: %q", cfg.ID)
	}
	if cfg.ListenAddr != "127.0.0.1:9600" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.AdminAddr != "127.0.0.1:9601" {
		t.Fatalf("unexpected admin addr: %q", cfg.AdminAddr)
	}
	if cfg.AuthToken != "sekrit" {
		t.Fatalf("unexpected auth token: %q", cfg.AuthToken)
	}
	if cfg.MaxInFlight != 8 {
		t.Fatalf("unexpected max in flight: %d", cfg.MaxInFlight)
	}
	if cfg.CompressThreshold != 128 {
		t.Fatalf("unexpected compress threshold: %d", cfg.CompressThreshold)
	}
	if cfg.Session.ReadTimeout != 2500*time.Millisecond {
		t.Fatalf("unexpected read timeout: %v", cfg.Session.ReadTimeout)
	}
	if cfg.Session.SecurityMode != session.SecurityModeProduction {
		t.Fatalf("unexpected security mode: %q", cfg.Session.SecurityMode)
	}
	if !cfg.Session.TLS.Enabled || !cfg.Session.TLS.Mutual {
		t.Fatalf("expected tls enabled and mutual, got %+v", cfg.Session.TLS)
	}
	if cfg.Session.TLS.CertFile != "/etc/keywire/server.crt" {
		t.Fatalf("unexpected cert file: %q", cfg.Session.TLS.CertFile)
	}
	if len(seeds) != 1 || seeds[0].Key != "0x2a" || seeds[0].Value != "forty-two" {
		t.Fatalf("unexpected seeds: %+v", seeds)
	}
}

func TestLoadServiceConfigKeepsDefaultsForAbsentKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`
id = "keywired.alpha"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, seeds, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != ":7600" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.AdminAddr != ":7601" {
		t.Fatalf("expected default admin addr, got %q", cfg.AdminAddr)
	}
	if cfg.MaxInFlight != 64 {
		t.Fatalf("expected default max in flight, got %d", cfg.MaxInFlight)
	}
	if len(seeds) != 0 {
		t.Fatalf("expected no seeds, got %+v", seeds)
	}
}

func TestLoadServiceConfigRejectsBadSeedKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`
[[seeds]]
key = "not-a-key"
value = "x"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected bad seed key to fail")
	}
}
