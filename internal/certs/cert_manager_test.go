package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePair(t *testing.T, dir, certName, keyName string, notAfter time.Time) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    notAfter.Add(-365 * 24 * time.Hour),
		NotAfter:     notAfter,
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, certName), pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyName), pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
}

func TestPair_NoneFound(t *testing.T) {
	_, _, err := NewCertManager(t.TempDir()).Pair()
	assert.ErrorIs(t, err, ErrNoPair)
}

func TestTLSConfig_Valid(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "cert.pem", "key.pem", time.Now().Add(10*24*time.Hour))
	cm := NewCertManager(dir)

	cfg, leaf, err := cm.TLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, "localhost", leaf.Subject.CommonName)
	assert.True(t, cm.ExpiresWithin(leaf, 30*24*time.Hour))
	assert.False(t, cm.ExpiresWithin(leaf, 24*time.Hour))
}

func TestTLSConfig_Expired(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "server.crt", "server.key", time.Now().Add(-time.Hour))
	cm := NewCertManager(dir)

	_, leaf, err := cm.TLSConfig()
	require.Error(t, err)
	require.NotNil(t, leaf)
	assert.True(t, cm.IsExpired(leaf))
}
