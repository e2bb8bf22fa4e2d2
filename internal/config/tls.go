package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const defaultMinTLSVersion = tls.VersionTLS12

type TlsConfig struct {
	CAFile             string `yaml:"caFile"`
	CAPem              string `yaml:"caPem"`
	CertFile           string `yaml:"certFile"`
	KeyFile            string `yaml:"keyFile"`
	MinVersion         string `yaml:"minVersion"`
	Insecure           bool   `yaml:"insecure"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	ServerName         string `yaml:"serverNameOverride"`
}

func (c TlsConfig) Validate() error {
	if c.hasCAFile() && c.hasCAPem() {
		return errors.New("provide either a CA file or the PEM-encoded string, but not both")
	}
	if c.hasCertFile() != c.hasKeyFile() {
		return errors.New("for auth via TLS, provide both certificate and key, or neither")
	}
	if _, err := convertVersion(c.MinVersion, defaultMinTLSVersion); err != nil {
		return fmt.Errorf("invalid TLS min_version: %w", err)
	}
	return nil
}

// LoadTLSConfig returns nil when the connection should be plaintext.
func (c TlsConfig) LoadTLSConfig() (*tls.Config, error) {
	if c.Insecure && !c.hasCA() {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	minTLS, _ := convertVersion(c.MinVersion, defaultMinTLSVersion)
	tlsCfg := &tls.Config{
		MinVersion:         minTLS,
		ServerName:         c.ServerName,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}

	switch {
	case c.hasCAFile():
		pem, err := os.ReadFile(filepath.Clean(c.CAFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load CA CertPool File: %w", err)
		}
		if tlsCfg.RootCAs, err = certPool(pem); err != nil {
			return nil, err
		}
	case c.hasCAPem():
		var err error
		if tlsCfg.RootCAs, err = certPool([]byte(c.CAPem)); err != nil {
			return nil, err
		}
	}

	if c.hasCertFile() {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS cert and key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

func certPool(pem []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse cert")
	}
	return pool, nil
}

func (c TlsConfig) hasCA() bool       { return c.hasCAFile() || c.hasCAPem() }
func (c TlsConfig) hasCAFile() bool   { return c.CAFile != "" }
func (c TlsConfig) hasCAPem() bool    { return len(c.CAPem) != 0 }
func (c TlsConfig) hasCertFile() bool { return c.CertFile != "" }
func (c TlsConfig) hasKeyFile() bool  { return c.KeyFile != "" }

func convertVersion(v string, defaultVersion uint16) (uint16, error) {
	if v == "" {
		return defaultVersion, nil
	}
	val, ok := tlsVersions[v]
	if !ok {
		return 0, fmt.Errorf("unsupported TLS version: %q", v)
	}
	return val, nil
}

var tlsVersions = map[string]uint16{
	"1.0": tls.VersionTLS10,
	"1.1": tls.VersionTLS11,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}
