// Package pki provides the optional TLS wrapping for the ARQ wire
// protocol. Unlike a production transport, the client never verifies
// the server's certificate — the server is expected to self-sign, and
// the only goal is to demonstrate the transport running over TLS, not
// to authenticate either peer.
package pki

import (
	"crypto/tls"
	"fmt"
)

// NewServerTLSConfig loads the server's certificate/key pair. No
// client certificate is requested.
func NewServerTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading server certificate: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
	}, nil
}

// NewClientTLSConfig returns a client-side TLS config that skips
// certificate verification, matching a self-signed server.
func NewClientTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true,
	}
}
