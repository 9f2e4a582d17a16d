// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/arqgo/arqgo/internal/protocol"
	"github.com/arqgo/arqgo/internal/session"
	"gopkg.in/yaml.v3"
)

// ServerConfig represents the full arq-server configuration.
type ServerConfig struct {
	Server  ServerListen `yaml:"server"`
	TLS     TLSServer    `yaml:"tls"`
	Crypto  CryptoConfig `yaml:"crypto"`
	Logging LoggingInfo  `yaml:"logging"`
}

// ServerListen is the listener and negotiation-limit configuration.
type ServerListen struct {
	Host         string `yaml:"host"`          // default: 127.0.0.1
	Port         int    `yaml:"port"`          // default: 5005
	Protocol     string `yaml:"protocol"`      // gbn|sr, validated and logged at startup; the handshake does not read it (a syn with no known variant gets gbn)
	MaxChars     int    `yaml:"max_chars"`     // server-enforced cap on message length, <= 30
	MaxPayload   int    `yaml:"max_payload"`   // server-enforced cap on chunk size, 4..8
	WindowSize   int    `yaml:"window_size"`   // server's upper bound on W, <= 5
	ChecksumMode string `yaml:"checksum_mode"` // sha1|bytesum
}

// TLSServer controls optional TLS wrapping of the listener.
type TLSServer struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
}

// CryptoConfig carries the process-wide pre-shared Fernet key. An
// empty Key means the server mints an ephemeral one at startup and
// logs it once — convenient for a single local run, useless for a
// real client/server pair that must share the same key out of band.
type CryptoConfig struct {
	Key string `yaml:"key"`
}

// LoggingInfo controls slog output.
type LoggingInfo struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	defaultHost       = "127.0.0.1"
	defaultPort       = 5005
	maxAllowedChars   = 30
	minAllowedPayload = 4
	maxAllowedPayload = 8
	maxAllowedWindow  = 5
)

// LoadServerConfig reads and validates the server's YAML config file.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server config: %w", err)
	}

	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}

	return &cfg, nil
}

func (c *ServerConfig) validate() error {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}

	c.Server.Protocol = strings.ToLower(strings.TrimSpace(c.Server.Protocol))
	if c.Server.Protocol == "" {
		c.Server.Protocol = protocol.VariantGBN
	}
	if c.Server.Protocol != protocol.VariantGBN && c.Server.Protocol != protocol.VariantSR {
		return fmt.Errorf("server.protocol must be %q or %q, got %q", protocol.VariantGBN, protocol.VariantSR, c.Server.Protocol)
	}

	if c.Server.MaxChars <= 0 {
		c.Server.MaxChars = maxAllowedChars
	}
	if c.Server.MaxChars > maxAllowedChars {
		return fmt.Errorf("server.max_chars must be <= %d, got %d", maxAllowedChars, c.Server.MaxChars)
	}

	if c.Server.MaxPayload == 0 {
		c.Server.MaxPayload = minAllowedPayload
	}
	if c.Server.MaxPayload < minAllowedPayload || c.Server.MaxPayload > maxAllowedPayload {
		return fmt.Errorf("server.max_payload must be between %d and %d, got %d", minAllowedPayload, maxAllowedPayload, c.Server.MaxPayload)
	}

	if c.Server.WindowSize <= 0 {
		c.Server.WindowSize = maxAllowedWindow
	}
	if c.Server.WindowSize > maxAllowedWindow {
		return fmt.Errorf("server.window_size must be <= %d, got %d", maxAllowedWindow, c.Server.WindowSize)
	}

	c.Server.ChecksumMode = strings.ToLower(strings.TrimSpace(c.Server.ChecksumMode))
	if c.Server.ChecksumMode == "" {
		c.Server.ChecksumMode = protocol.ChecksumSHA1
	}
	if c.Server.ChecksumMode != protocol.ChecksumSHA1 && c.Server.ChecksumMode != protocol.ChecksumByteSum {
		return fmt.Errorf("server.checksum_mode must be %q or %q, got %q", protocol.ChecksumSHA1, protocol.ChecksumByteSum, c.Server.ChecksumMode)
	}

	if c.TLS.Enabled {
		if c.TLS.Cert == "" || c.TLS.Key == "" {
			return fmt.Errorf("tls.cert and tls.key are required when tls.enabled is true")
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	return nil
}

// Limits converts the listen configuration into the handshake
// negotiation bounds the session package enforces.
func (c *ServerConfig) Limits() session.Limits {
	return session.Limits{
		MaxChars:      c.Server.MaxChars,
		DefaultPacket: minAllowedPayload,
		MinPacket:     minAllowedPayload,
		MaxPacket:     c.Server.MaxPayload,
		DefaultWindow: c.Server.WindowSize,
		MaxWindow:     c.Server.WindowSize,
		ChecksumMode:  c.Server.ChecksumMode,
	}
}
