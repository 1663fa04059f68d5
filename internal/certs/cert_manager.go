package certs

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoPair is returned when the directory holds no usable certificate pair.
var ErrNoPair = errors.New("certs: no certificate pair found")

// pairs are the file names tried, in order.
var pairs = [][2]string{
	{"server.crt", "server.key"},
	{"cert.pem", "key.pem"},
	{"fullchain.pem", "privkey.pem"},
}

// CertManager finds the asset server's TLS certificate in a directory.
type CertManager struct {
	certDir string
	now     func() time.Time
}

// NewCertManager creates a new CertManager for the given directory.
func NewCertManager(certDir string) *CertManager {
	return &CertManager{certDir: certDir, now: time.Now}
}

// Pair returns the first certificate and key files present in the directory.
func (cm *CertManager) Pair() (certFile, keyFile string, err error) {
	for _, p := range pairs {
		c, k := filepath.Join(cm.certDir, p[0]), filepath.Join(cm.certDir, p[1])
		if exists(c) && exists(k) {
			return c, k, nil
		}
	}
	return "", "", fmt.Errorf("%w in %s", ErrNoPair, cm.certDir)
}

// TLSConfig loads the pair and checks the leaf has not expired.
func (cm *CertManager) TLSConfig() (*tls.Config, *x509.Certificate, error) {
	certFile, keyFile, err := cm.Pair()
	if err != nil {
		return nil, nil, err
	}
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", certFile, err)
	}
	leaf, err := cm.loadCertificate(certFile)
	if err != nil {
		return nil, nil, err
	}
	if cm.IsExpired(leaf) {
		return nil, leaf, fmt.Errorf("certificate %s expired on %s", certFile, leaf.NotAfter.Format(time.DateOnly))
	}
	return &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}, leaf, nil
}

// loadCertificate loads the first certificate from a PEM file.
func (cm *CertManager) loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to parse certificate PEM")
	}
	return x509.ParseCertificate(block.Bytes)
}

// IsExpired checks if a certificate is expired.
func (cm *CertManager) IsExpired(cert *x509.Certificate) bool {
	return cert.NotAfter.Before(cm.now())
}

// ExpiresWithin reports whether cert expires in less than d.
func (cm *CertManager) ExpiresWithin(cert *x509.Certificate, d time.Duration) bool {
	return cert.NotAfter.Before(cm.now().Add(d))
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
