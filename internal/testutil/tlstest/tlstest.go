// Package tlstest mints throwaway PKI material for transport tests. Keys
// are P-256 and everything lands in the test's temp directory.
package tlstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const leafValidity = 12 * time.Hour

// Authority is a self-signed CA that signs per-test leaf certificates.
type Authority struct {
	caCert *x509.Certificate
	caKey  *ecdsa.PrivateKey
	caFile string
}

// NewAuthority mints a fresh CA and writes its certificate into dir.
func NewAuthority(t testing.TB, dir string, commonName string) *Authority {
	t.Helper()

	key := newKey(t)
	tmpl := &x509.Certificate{
		SerialNumber:          newSerial(t),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-5 * time.Minute),
		NotAfter:              time.Now().Add(2 * leafValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("self-sign ca: %v", err)
	}
	caCert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse ca: %v", err)
	}
	caFile := writePEM(t, filepath.Join(dir, "ca.crt"), "CERTIFICATE", der, 0o644)

	return &Authority{caCert: caCert, caKey: key, caFile: caFile}
}

// CAFile returns the path of the PEM-encoded CA certificate.
func (a *Authority) CAFile() string { return a.caFile }

// IssueServerCert signs a server leaf for the given names and writes the
// cert/key pair into dir, returning both paths.
func (a *Authority) IssueServerCert(t testing.TB, dir string, commonName string, dnsNames []string, ips []net.IP) (string, string) {
	t.Helper()
	return a.issue(t, dir, leafSpec{
		commonName: commonName,
		usage:      x509.ExtKeyUsageServerAuth,
		dnsNames:   dnsNames,
		ips:        ips,
	})
}

// IssueClientCert signs a client leaf for mutual TLS.
func (a *Authority) IssueClientCert(t testing.TB, dir string, commonName string) (string, string) {
	t.Helper()
	return a.issue(t, dir, leafSpec{commonName: commonName, usage: x509.ExtKeyUsageClientAuth})
}

type leafSpec struct {
	commonName string
	usage      x509.ExtKeyUsage
	dnsNames   []string
	ips        []net.IP
}

func (a *Authority) issue(t testing.TB, dir string, spec leafSpec) (string, string) {
	t.Helper()

	key := newKey(t)
	tmpl := &x509.Certificate{
		SerialNumber: newSerial(t),
		Subject:      pkix.Name{CommonName: spec.commonName},
		NotBefore:    time.Now().Add(-5 * time.Minute),
		NotAfter:     time.Now().Add(leafValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{spec.usage},
		DNSNames:     spec.dnsNames,
		IPAddresses:  spec.ips,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, a.caCert, &key.PublicKey, a.caKey)
	if err != nil {
		t.Fatalf("sign leaf %q: %v", spec.commonName, err)
	}

	stem := fileStem(spec.commonName)
	certFile := writePEM(t, filepath.Join(dir, stem+".crt"), "CERTIFICATE", der, 0o644)
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal leaf key: %v", err)
	}
	keyFile := writePEM(t, filepath.Join(dir, stem+".key"), "EC PRIVATE KEY", keyDER, 0o600)
	return certFile, keyFile
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func newSerial(t testing.TB) *big.Int {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		t.Fatalf("pick serial: %v", err)
	}
	return serial
}

func writePEM(t testing.TB, path string, blockType string, der []byte, perm os.FileMode) string {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// fileStem turns a common name into a safe file name.
func fileStem(commonName string) string {
	stem := strings.ToLower(strings.TrimSpace(commonName))
	if stem == "" {
		return "leaf"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, stem)
}
