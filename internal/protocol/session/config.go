package session

import "time"

// SecurityMode selects the transport enforcement profile. Production
// requires mutual TLS end to end; development permits plaintext.
type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

// TLSConfig carries the transport encryption material for one side.
type TLSConfig struct {
	Enabled            bool
	Mutual             bool
	CertFile           string
	KeyFile            string
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines transport/session reliability defaults.
type Config struct {
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	Backoff          BackoffConfig
	SecurityMode     SecurityMode
	TLS              TLSConfig
}

// DefaultConfig returns the contract-aligned reliability defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		SecurityMode: SecurityModeDevelopment,
	}
}

// WithDefaults fills zero-valued reliability fields from DefaultConfig,
// leaving explicit settings untouched.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	c.SecurityMode = NormalizeSecurityMode(c.SecurityMode)
	return c
}
