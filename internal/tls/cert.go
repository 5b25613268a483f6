// SPDX-License-Identifier: MIT

// Package tls generates self-signed certificates for deployments without a
// provisioned certificate pair.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultCertPath is the default certificate location, relative to the
	// data dir.
	DefaultCertPath = "certs/docport.crt"
	// DefaultKeyPath is the default key location.
	DefaultKeyPath = "certs/docport.key"
	// DefaultValidityYears is the validity period for generated certificates.
	DefaultValidityYears = 10
)

// Config holds certificate generation settings.
type Config struct {
	CertPath string
	KeyPath  string
	Logger   zerolog.Logger
}

// EnsureCertificates returns the configured certificate pair, generating a
// self-signed one when either file is missing.
func EnsureCertificates(cfg Config) (certPath, keyPath string, err error) {
	certPath = cfg.CertPath
	keyPath = cfg.KeyPath

	if certPath == "" {
		certPath = DefaultCertPath
	}
	if keyPath == "" {
		keyPath = DefaultKeyPath
	}

	certExists := fileExists(certPath)
	keyExists := fileExists(keyPath)

	if certExists && keyExists {
		cfg.Logger.Debug().
			Str("cert", certPath).
			Str("key", keyPath).
			Msg("TLS certificates found")
		return certPath, keyPath, nil
	}

	if certExists || keyExists {
		cfg.Logger.Warn().
			Bool("cert_exists", certExists).
			Bool("key_exists", keyExists).
			Msg("incomplete TLS certificate pair found, regenerating both")
	}

	cfg.Logger.Info().
		Str("cert", certPath).
		Str("key", keyPath).
		Msg("generating self-signed TLS certificates")

	networkIPs, err := networkAddrs()
	if err != nil {
		cfg.Logger.Warn().
			Err(err).
			Msg("failed to detect network IPs, certificate will only work for localhost")
		networkIPs = nil
	}

	if err := GenerateSelfSigned(certPath, keyPath, DefaultValidityYears, networkIPs); err != nil {
		return "", "", fmt.Errorf("generate self-signed certificates: %w", err)
	}

	cfg.Logger.Info().
		Str("cert", certPath).
		Str("key", keyPath).
		Int("validity_years", DefaultValidityYears).
		Msg("self-signed TLS certificates generated")

	return certPath, keyPath, nil
}

// GenerateSelfSigned writes a self-signed ECDSA P-256 certificate pair.
// Additional IPs are merged with the localhost defaults.
func GenerateSelfSigned(certPath, keyPath string, validityYears int, additionalIPs []net.IP) error {
	if err := os.MkdirAll(filepath.Dir(certPath), 0o750); err != nil {
		return fmt.Errorf("create cert directory: %w", err)
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate private key: %w", err)
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return fmt.Errorf("generate serial number: %w", err)
	}

	notBefore := time.Now()
	notAfter := notBefore.AddDate(validityYears, 0, 0)

	ips := []net.IP{
		net.ParseIP("127.0.0.1"),
		net.ParseIP("::1"),
	}
	seen := make(map[string]bool, len(ips))
	for _, ip := range ips {
		seen[ip.String()] = true
	}
	for _, ip := range additionalIPs {
		if ip == nil || seen[ip.String()] {
			continue
		}
		seen[ip.String()] = true
		ips = append(ips, ip)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"docport Self-Signed"},
			CommonName:   "docport",
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           ips,
		DNSNames:              []string{"localhost", "localhost.localdomain", "docport"},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}

	// #nosec G304 -- operator-supplied path
	certOut, err := os.Create(certPath)
	if err != nil {
		return fmt.Errorf("create cert file: %w", err)
	}
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		_ = certOut.Close()
		return fmt.Errorf("encode certificate: %w", err)
	}
	if err := certOut.Close(); err != nil {
		return fmt.Errorf("close cert file: %w", err)
	}

	// #nosec G304 -- operator-supplied path
	keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	privBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		_ = keyOut.Close()
		return fmt.Errorf("marshal private key: %w", err)
	}
	if err := pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes}); err != nil {
		_ = keyOut.Close()
		return fmt.Errorf("encode private key: %w", err)
	}
	if err := keyOut.Close(); err != nil {
		return fmt.Errorf("close key file: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// networkAddrs returns the non-loopback, non-link-local addresses of all up
// interfaces so generated certificates cover the host's LAN addresses.
func networkAddrs() ([]net.IP, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("get network interfaces: %w", err)
	}

	var ips []net.IP
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
				continue
			}
			ips = append(ips, ip)
		}
	}

	return ips, nil
}
