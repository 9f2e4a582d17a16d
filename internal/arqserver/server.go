// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package arqserver implements the ARQ server: a TLS-optional TCP
// listener handing each accepted connection to its own worker, which
// owns that connection's session state exclusively for its lifetime.
package arqserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/arqgo/arqgo/internal/config"
	"github.com/arqgo/arqgo/internal/pki"
	"github.com/arqgo/arqgo/internal/protocol"
)

// statsInterval is how often the aggregate stats reporter logs.
const statsInterval = 15 * time.Second

// Run starts the ARQ server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) error {
	key, err := resolveKey(cfg.Crypto.Key, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	ln, err := listen(addr, cfg)
	if err != nil {
		return err
	}
	defer ln.Close()

	logger.Info("server listening", "address", addr, "tls", cfg.TLS.Enabled, "protocol", cfg.Server.Protocol)

	sessions := &sync.Map{}
	handler := NewHandler(cfg, logger, key, sessions)

	go handler.StartStatsReporter(ctx, statsInterval)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		ln.Close()
	}()

	return acceptLoop(ctx, ln, handler, logger)
}

// RunWithListener starts the server against an already-open listener,
// for tests that want an in-process loopback instead of a real bind.
func RunWithListener(ctx context.Context, ln net.Listener, cfg *config.ServerConfig, logger *slog.Logger, key *protocol.Key) error {
	sessions := &sync.Map{}
	handler := NewHandler(cfg, logger, key, sessions)

	go handler.StartStatsReporter(ctx, statsInterval)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	return acceptLoop(ctx, ln, handler, logger)
}

func listen(addr string, cfg *config.ServerConfig) (net.Listener, error) {
	if !cfg.TLS.Enabled {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("listening on %s: %w", addr, err)
		}
		return ln, nil
	}

	tlsCfg, err := pki.NewServerTLSConfig(cfg.TLS.Cert, cfg.TLS.Key)
	if err != nil {
		return nil, fmt.Errorf("configuring TLS: %w", err)
	}
	ln, err := tls.Listen("tcp", addr, tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return ln, nil
}

func resolveKey(encoded string, logger *slog.Logger) (*protocol.Key, error) {
	if encoded != "" {
		key, err := protocol.NewKeyFromString(encoded)
		if err != nil {
			return nil, fmt.Errorf("loading pre-shared key: %w", err)
		}
		return key, nil
	}

	key, err := protocol.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating pre-shared key: %w", err)
	}
	logger.Warn("no crypto.key configured, generated an ephemeral one — clients must be given this value out of band", "key", key.Encode())
	return key, nil
}

// acceptLoop runs the accept-and-dispatch loop with a backoff on
// consecutive errors, so a transient resource exhaustion doesn't spin
// the loop hot.
func acceptLoop(ctx context.Context, ln net.Listener, handler *Handler, logger *slog.Logger) error {
	consecutiveErrors := 0
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				logger.Info("server shutdown complete")
				return nil
			default:
				consecutiveErrors++
				logger.Error("accepting connection", "error", err, "consecutive_errors", consecutiveErrors)
				if consecutiveErrors > 5 {
					delay := time.Duration(consecutiveErrors) * 100 * time.Millisecond
					if delay > 5*time.Second {
						delay = 5 * time.Second
					}
					time.Sleep(delay)
				}
				continue
			}
		}

		consecutiveErrors = 0
		go handler.HandleConnection(ctx, conn)
	}
}
