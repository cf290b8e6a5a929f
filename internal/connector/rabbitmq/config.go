package rabbitmq

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

const (
	defaultHeartbeat   = 10 * time.Second
	defaultDialTimeout = 30 * time.Second
)

type Config struct {
	// Side names the connection in logs ("source" or "target").
	Side string
	URL  string
	TLS  *TLSOptions
	// ConnectionName is advertised to the broker as connection_name.
	ConnectionName string

	// Prefetch, when > 0, sets basic.qos on the channel before consuming.
	Prefetch int
	// Confirm puts the channel in publisher-confirm mode.
	Confirm bool
	// Mandatory publishes with the mandatory flag; a returned message is
	// a failed publish. Requires Confirm.
	Mandatory bool
}

// TLSOptions loads CA/cert/key material from files.
type TLSOptions struct {
	RootCAPath         string
	ClientCertPath     string
	ClientKeyPath      string
	InsecureSkipVerify bool
}

func buildTLSConfig(opts *TLSOptions) (*tls.Config, error) {
	if opts == nil {
		return nil, nil
	}
	cfg := &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if opts.RootCAPath != "" {
		caBytes, err := os.ReadFile(opts.RootCAPath)
		if err != nil {
			return nil, fmt.Errorf("read root CA: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caBytes); !ok {
			return nil, fmt.Errorf("append root CA failed: no certificates in %s", opts.RootCAPath)
		}
		cfg.RootCAs = pool
	}
	if opts.ClientCertPath != "" && opts.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(opts.ClientCertPath, opts.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client cert/key: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
