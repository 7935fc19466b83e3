package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/voiceiq/viq-cli/config"
)

// LoadClientTLSConfig creates a tls.Config for https backends.
// Returns nil when no custom TLS material is configured and insecure is false.
func LoadClientTLSConfig(cfg *config.TLSConfig, insecure bool) (*tls.Config, error) {
	if !cfg.IsConfigured() && !insecure {
		return nil, nil
	}

	// Resolve paths (expands ~).
	cfg.ResolvePaths()

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.SkipVerify || insecure,
	}

	// Client certificate for mTLS, when both halves are set.
	if cfg.ClientCert != "" || cfg.ClientKey != "" {
		if cfg.ClientCert == "" || cfg.ClientKey == "" {
			return nil, fmt.Errorf("client_cert and client_key must be set together")
		}
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	// CA certificate for server verification (unless verification is off).
	if cfg.CACert != "" && !tlsConfig.InsecureSkipVerify {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}

		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA cert: invalid PEM")
		}

		tlsConfig.RootCAs = caPool
	}

	return tlsConfig, nil
}

// CheckCertsExist verifies the configured certificate files are present.
// This is useful for providing clear error messages before connecting.
func CheckCertsExist(cfg *config.TLSConfig) error {
	cfg.ResolvePaths()

	files := map[string]string{
		"CA certificate":     cfg.CACert,
		"Client certificate": cfg.ClientCert,
		"Client key":         cfg.ClientKey,
	}

	for name, path := range files {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("%s not found: %s", name, path)
		}
	}

	return nil
}
