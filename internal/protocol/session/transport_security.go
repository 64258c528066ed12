package session

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

var (
	ErrInvalidSecurityMode     = errors.New("session: invalid security mode")
	ErrTLSRequired             = errors.New("session: tls required")
	ErrMTLSRequired            = errors.New("session: mtls required")
	ErrTLSCertFileRequired     = errors.New("session: tls cert file required")
	ErrTLSKeyFileRequired      = errors.New("session: tls key file required")
	ErrTLSCAFileRequired       = errors.New("session: tls ca file required")
	ErrTLSInsecureSkipNotAllow = errors.New("session: insecure skip verify not allowed")
)

func NormalizeSecurityMode(mode SecurityMode) SecurityMode {
	if strings.TrimSpace(string(mode)) == "" {
		return SecurityModeDevelopment
	}
	return SecurityMode(strings.ToLower(strings.TrimSpace(string(mode))))
}

func (c Config) ValidateClientTransport() error {
	mode := NormalizeSecurityMode(c.SecurityMode)
	switch mode {
	case SecurityModeDevelopment, SecurityModeProduction:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSecurityMode, c.SecurityMode)
	}

	if mode == SecurityModeProduction {
		if !c.TLS.Enabled {
			return ErrTLSRequired
		}
		if !c.TLS.Mutual {
			return ErrMTLSRequired
		}
		if c.TLS.InsecureSkipVerify {
			return ErrTLSInsecureSkipNotAllow
		}
	}
	if c.TLS.Mutual && !c.TLS.Enabled {
		return ErrTLSRequired
	}
	if c.TLS.Enabled && strings.TrimSpace(c.TLS.CAFile) == "" && !c.TLS.InsecureSkipVerify {
		return ErrTLSCAFileRequired
	}
	if c.TLS.Mutual {
		if strings.TrimSpace(c.TLS.CertFile) == "" {
			return ErrTLSCertFileRequired
		}
		if strings.TrimSpace(c.TLS.KeyFile) == "" {
			return ErrTLSKeyFileRequired
		}
	}
	return nil
}

func (c Config) ValidateServerTransport() error {
	mode := NormalizeSecurityMode(c.SecurityMode)
	switch mode {
	case SecurityModeDevelopment, SecurityModeProduction:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSecurityMode, c.SecurityMode)
	}

	if mode == SecurityModeProduction {
		if !c.TLS.Enabled {
			return ErrTLSRequired
		}
		if !c.TLS.Mutual {
			return ErrMTLSRequired
		}
	}
	if c.TLS.Mutual && !c.TLS.Enabled {
		return ErrTLSRequired
	}
	if c.TLS.Enabled {
		if strings.TrimSpace(c.TLS.CertFile) == "" {
			return ErrTLSCertFileRequired
		}
		if strings.TrimSpace(c.TLS.KeyFile) == "" {
			return ErrTLSKeyFileRequired
		}
	}
	if c.TLS.Mutual && strings.TrimSpace(c.TLS.CAFile) == "" {
		return ErrTLSCAFileRequired
	}
	return nil
}

// BuildClientTLS assembles the client-side tls.Config. addr supplies the
// server name when TLS.ServerName is unset.
func (c Config) BuildClientTLS(addr string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}

	serverName := strings.TrimSpace(c.TLS.ServerName)
	if serverName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(c.TLS.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("session: parse tls ca bundle: %s", caPath)
		}
		cfg.RootCAs = pool
	}

	if c.TLS.Mutual {
		cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// BuildServerTLS assembles the listener-side tls.Config, requiring client
// certificates under mutual TLS or production mode.
func (c Config) BuildServerTLS() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
	if err != nil {
		return nil, err
	}
	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}

	mode := NormalizeSecurityMode(c.SecurityMode)
	if c.TLS.Mutual || mode == SecurityModeProduction {
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		caPEM, err := os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("session: parse tls ca bundle: %s", c.TLS.CAFile)
		}
		cfg.ClientCAs = pool
	}
	return cfg, nil
}
