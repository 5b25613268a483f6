// SPDX-License-Identifier: MIT

package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func loadCertificate(t *testing.T, certPath string) *x509.Certificate {
	t.Helper()
	// #nosec G304 -- test file
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		t.Fatalf("read certificate: %v", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		t.Fatal("no PEM block in certificate file")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert
}

func TestGenerateSelfSigned(t *testing.T) {
	tmpDir := t.TempDir()
	certPath := filepath.Join(tmpDir, "test.crt")
	keyPath := filepath.Join(tmpDir, "test.key")

	if err := GenerateSelfSigned(certPath, keyPath, 1, nil); err != nil {
		t.Fatalf("GenerateSelfSigned failed: %v", err)
	}

	if !fileExists(certPath) {
		t.Error("certificate file was not created")
	}
	if !fileExists(keyPath) {
		t.Error("key file was not created")
	}

	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		t.Fatalf("failed to load generated certificate: %v", err)
	}
	if pair.Certificate == nil {
		t.Error("certificate is nil")
	}

	cert := loadCertificate(t, certPath)
	if err := cert.VerifyHostname("localhost"); err != nil {
		t.Errorf("certificate does not cover localhost: %v", err)
	}
	if !cert.NotAfter.After(time.Now().AddDate(0, 11, 0)) {
		t.Errorf("certificate expires too early: %v", cert.NotAfter)
	}
}

func TestGenerateSelfSigned_AdditionalIPs(t *testing.T) {
	tmpDir := t.TempDir()
	certPath := filepath.Join(tmpDir, "test.crt")
	keyPath := filepath.Join(tmpDir, "test.key")

	extra := net.ParseIP("192.0.2.10")
	if err := GenerateSelfSigned(certPath, keyPath, 1, []net.IP{extra, extra}); err != nil {
		t.Fatalf("GenerateSelfSigned failed: %v", err)
	}

	cert := loadCertificate(t, certPath)

	count := 0
	for _, ip := range cert.IPAddresses {
		if ip.Equal(extra) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected extra IP exactly once in SANs, got %d", count)
	}
}

func TestEnsureCertificates_Generate(t *testing.T) {
	tmpDir := t.TempDir()
	certPath := filepath.Join(tmpDir, "auto.crt")
	keyPath := filepath.Join(tmpDir, "auto.key")

	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	gotCert, gotKey, err := EnsureCertificates(Config{
		CertPath: certPath,
		KeyPath:  keyPath,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("EnsureCertificates failed: %v", err)
	}
	if gotCert != certPath || gotKey != keyPath {
		t.Errorf("EnsureCertificates returned (%q, %q), want (%q, %q)", gotCert, gotKey, certPath, keyPath)
	}
	if !fileExists(certPath) || !fileExists(keyPath) {
		t.Fatal("certificate pair was not generated")
	}

	// Second call finds the existing pair and leaves it untouched.
	before, err := os.Stat(certPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := EnsureCertificates(Config{CertPath: certPath, KeyPath: keyPath, Logger: logger}); err != nil {
		t.Fatalf("EnsureCertificates second call failed: %v", err)
	}
	after, err := os.Stat(certPath)
	if err != nil {
		t.Fatal(err)
	}
	if !before.ModTime().Equal(after.ModTime()) {
		t.Error("existing certificate was regenerated")
	}
}

func TestEnsureCertificates_RegeneratesIncompletePair(t *testing.T) {
	tmpDir := t.TempDir()
	certPath := filepath.Join(tmpDir, "auto.crt")
	keyPath := filepath.Join(tmpDir, "auto.key")

	if err := os.WriteFile(certPath, []byte("stale"), 0o600); err != nil {
		t.Fatal(err)
	}

	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	if _, _, err := EnsureCertificates(Config{CertPath: certPath, KeyPath: keyPath, Logger: logger}); err != nil {
		t.Fatalf("EnsureCertificates failed: %v", err)
	}

	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		t.Fatalf("regenerated pair does not load: %v", err)
	}
}
