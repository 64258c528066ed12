package config

import (
	"time"

	"github.com/danmuck/keywire/internal/protocol/session"
)

// SessionSettings maps TOML transport knobs onto a session.Config, filling
// anything left unset with the session defaults.
func SessionSettings(cfg SessionConfig) session.Config {
	out := session.Config{
		ConnectTimeout:   msDuration(cfg.ConnectTimeoutMS),
		HandshakeTimeout: msDuration(cfg.HandshakeTimeoutMS),
		ReadTimeout:      msDuration(cfg.ReadTimeoutMS),
		WriteTimeout:     msDuration(cfg.WriteTimeoutMS),
		SecurityMode:     session.NormalizeSecurityMode(session.SecurityMode(cfg.SecurityMode)),
		Backoff: session.BackoffConfig{
			InitialDelay: msDuration(cfg.Backoff.InitialDelayMS),
			MaxDelay:     msDuration(cfg.Backoff.MaxDelayMS),
			Multiplier:   cfg.Backoff.Multiplier,
			Jitter:       cfg.Backoff.Jitter,
		},
		TLS: session.TLSConfig{
			Enabled:            cfg.TLS.Enabled,
			Mutual:             cfg.TLS.Mutual,
			CertFile:           cfg.TLS.CertFile,
			KeyFile:            cfg.TLS.KeyFile,
			CAFile:             cfg.TLS.CAFile,
			ServerName:         cfg.TLS.ServerName,
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		},
	}
	return out.WithDefaults()
}

func msDuration(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
