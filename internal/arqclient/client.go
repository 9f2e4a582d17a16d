// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package arqclient

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/arqgo/arqgo/internal/config"
	"github.com/arqgo/arqgo/internal/pki"
	"github.com/arqgo/arqgo/internal/protocol"
	"github.com/arqgo/arqgo/internal/sender"
	"github.com/arqgo/arqgo/internal/session"
)

// handshakeTimeout bounds each leg of the three-way exchange.
const handshakeTimeout = 5 * time.Second

// Client owns one negotiated session over one connection and drives
// the sender window engines against it.
type Client struct {
	conn   net.Conn
	tx     *connTransport
	sess   *session.Session
	key    *protocol.Key
	logger *slog.Logger
	cong   *sender.Congestion

	messageIndex int
}

// Dial opens a TCP (optionally TLS) connection to cfg.Client's
// address and runs the three-way handshake, grounded on
// original_source/client.py's connect(): a syn carrying the requested
// parameters, a syn-ack the server is free to clamp, and a closing
// handshake-ack before any data flows.
func Dial(cfg *config.ClientConfig, key *protocol.Key, logger *slog.Logger) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Client.Host, cfg.Client.Port)

	var conn net.Conn
	var err error
	if cfg.TLS.Enabled {
		conn, err = tls.Dial("tcp", addr, pki.NewClientTLSConfig())
	} else {
		conn, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	sess, err := handshake(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("session established", "session_id", sess.ID(), "protocol", sess.Params().Protocol,
		"max_chars", sess.Params().MaxChars, "packet_size", sess.Params().PacketSize, "window_size", sess.Params().WindowSize)

	return &Client{
		conn:   conn,
		tx:     newConnTransport(conn),
		sess:   sess,
		key:    key,
		logger: logger,
		cong:   sender.NewCongestion(sess.Params().WindowSize),
	}, nil
}

func handshake(conn net.Conn, cfg *config.ClientConfig) (*session.Session, error) {
	reader := protocol.NewReader(conn)

	syn := session.BuildSyn(cfg.Client.Protocol, cfg.Client.MaxChars, cfg.Client.PacketSize)
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	if err := protocol.WriteRecord(conn, syn); err != nil {
		return nil, fmt.Errorf("sending syn: %w", err)
	}

	synAck, err := reader.ReadRecord()
	if err != nil {
		return nil, fmt.Errorf("reading syn-ack: %w", err)
	}

	sess, err := session.AdoptClient(synAck)
	if err != nil {
		return nil, err
	}

	ack := session.BuildHandshakeAck(sess.ID())
	if err := protocol.WriteRecord(conn, ack); err != nil {
		return nil, fmt.Errorf("sending handshake-ack: %w", err)
	}
	conn.SetDeadline(time.Time{})

	return sess, nil
}

// Close sends a close record and releases the underlying connection.
func (c *Client) Close() error {
	_ = protocol.WriteRecord(c.conn, &protocol.Record{Type: string(protocol.KindClose), SessionID: c.sess.ID()})
	return c.conn.Close()
}

// SessionID returns the negotiated session identifier.
func (c *Client) SessionID() string { return c.sess.ID() }

// Send transmits message under the session's negotiated protocol
// variant, advancing the client's own message counter. fault may be
// nil for an uninstrumented send.
func (c *Client) Send(message string, fault *sender.Fault, sink sender.Sink) (sender.Outcome, error) {
	params := c.sess.Params()
	idx := c.messageIndex
	c.messageIndex++

	switch params.Protocol {
	case protocol.VariantSR:
		return sender.SendMessageSR(c.tx, c.sess, c.key, params.ChecksumMode, idx, message, params.PacketSize, params.WindowSize, fault, c.cong, sink)
	default:
		return sender.SendMessageGBN(c.tx, c.sess, c.key, params.ChecksumMode, idx, message, params.PacketSize, fault, sink)
	}
}
