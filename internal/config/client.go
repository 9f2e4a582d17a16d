// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/arqgo/arqgo/internal/protocol"
	"gopkg.in/yaml.v3"
)

// ClientConfig represents the full arq-client configuration.
type ClientConfig struct {
	Client  ServerAddr   `yaml:"client"`
	TLS     TLSClient    `yaml:"tls"`
	Crypto  CryptoConfig `yaml:"crypto"`
	Logging LoggingInfo  `yaml:"logging"`
}

// ServerAddr is the endpoint to dial and the parameters requested in
// the opening syn (protocol, max_chars, packet_size) — the server is
// free to override each of these. WindowSize is not sent in the syn;
// the server decides W on its own.
type ServerAddr struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Protocol   string `yaml:"protocol"`    // gbn|sr
	MaxChars   int    `yaml:"max_chars"`   // requested cap
	PacketSize int    `yaml:"packet_size"` // requested P
	WindowSize int    `yaml:"window_size"` // not sent to the server
}

// TLSClient controls whether the client wraps its connection in TLS.
// Per this engine's threat model the client never verifies the
// server's certificate — the server is expected to self-sign.
type TLSClient struct {
	Enabled bool `yaml:"enabled"`
}

// LoadClientConfig reads and validates the client's YAML config file.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client config: %w", err)
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating client config: %w", err)
	}

	return &cfg, nil
}

func (c *ClientConfig) validate() error {
	if c.Client.Host == "" {
		c.Client.Host = defaultHost
	}
	if c.Client.Port == 0 {
		c.Client.Port = defaultPort
	}

	c.Client.Protocol = strings.ToLower(strings.TrimSpace(c.Client.Protocol))
	if c.Client.Protocol == "" {
		c.Client.Protocol = protocol.VariantGBN
	}
	if c.Client.Protocol != protocol.VariantGBN && c.Client.Protocol != protocol.VariantSR {
		return fmt.Errorf("client.protocol must be %q or %q, got %q", protocol.VariantGBN, protocol.VariantSR, c.Client.Protocol)
	}

	if c.Client.MaxChars <= 0 {
		c.Client.MaxChars = maxAllowedChars
	}
	if c.Client.PacketSize <= 0 {
		c.Client.PacketSize = minAllowedPayload
	}
	if c.Client.WindowSize <= 0 {
		c.Client.WindowSize = maxAllowedWindow
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	return nil
}
