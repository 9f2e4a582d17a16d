// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package session

import (
	"fmt"

	"github.com/arqgo/arqgo/internal/protocol"
)

// HandshakeCompleteMessage is the literal ack message spec.md §4.3
// names for the client's closing leg of the three-way exchange.
const HandshakeCompleteMessage = "handshake complete"

// Limits bounds what the server will grant during negotiation,
// regardless of what the client asks for in its syn.
type Limits struct {
	MaxChars      int // hard ceiling on message length (spec.md: 30)
	DefaultPacket int // packet size used if the client's request is out of range
	MinPacket     int
	MaxPacket     int
	DefaultWindow int // window size handed out by default (spec.md: 5)
	MaxWindow     int
	ChecksumMode  string
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NegotiateServer consumes a client syn and produces the session the
// server will track plus the syn-ack record to send back. The server
// always decides window size and clamps max_chars/packet_size into its
// configured bounds; the client is expected to accept whatever comes
// back, per spec.md §4.3.
func NegotiateServer(syn *protocol.Record, limits Limits) (*Session, *protocol.Record) {
	maxChars := clamp(syn.MaxChars, 1, limits.MaxChars)

	packetSize := syn.PacketSize
	if packetSize < limits.MinPacket || packetSize > limits.MaxPacket {
		packetSize = limits.DefaultPacket
	}

	variant := syn.Protocol
	if variant != protocol.VariantGBN && variant != protocol.VariantSR {
		variant = protocol.VariantGBN
	}

	params := Params{
		Protocol:     variant,
		MaxChars:     maxChars,
		PacketSize:   packetSize,
		WindowSize:   clamp(limits.DefaultWindow, 1, limits.MaxWindow),
		ChecksumMode: limits.ChecksumMode,
	}

	sess := New(params)
	sess.Transition(StateSynRcvd)

	synAck := &protocol.Record{
		Type:         string(protocol.KindSynAck),
		Status:       protocol.StatusOK,
		Protocol:     variant,
		SessionID:    sess.ID(),
		MaxChars:     maxChars,
		PacketSize:   packetSize,
		WindowSize:   params.WindowSize,
		ChecksumMode: params.ChecksumMode,
	}
	return sess, synAck
}

// CompleteServer validates the client's closing handshake-ack and
// transitions the session to established.
func CompleteServer(sess *Session, ack *protocol.Record) error {
	if ack.SessionID != sess.ID() {
		return fmt.Errorf("handshake: %w: ack for %q, session is %q", protocol.ErrSessionMismatch, ack.SessionID, sess.ID())
	}
	if !sess.Transition(StateEstablished) {
		return fmt.Errorf("handshake: session %q not awaiting ack (state %s)", sess.ID(), sess.State())
	}
	return nil
}

// BuildSyn constructs the client's opening syn record from its
// requested (not yet negotiated) parameters.
func BuildSyn(variant string, maxChars, packetSize int) *protocol.Record {
	return &protocol.Record{
		Protocol:   variant,
		MaxChars:   maxChars,
		PacketSize: packetSize,
	}
}

// AdoptClient builds the session the client will use from the
// server's syn-ack, honoring every negotiated field including a
// protocol variant switch the server may have imposed.
func AdoptClient(synAck *protocol.Record) (*Session, error) {
	if synAck.Status != protocol.StatusOK {
		return nil, fmt.Errorf("handshake: server rejected syn: %s", synAck.Message)
	}
	params := Params{
		Protocol:     synAck.Protocol,
		MaxChars:     synAck.MaxChars,
		PacketSize:   synAck.PacketSize,
		WindowSize:   synAck.WindowSize,
		ChecksumMode: synAck.ChecksumMode,
	}
	sess := NewWithID(synAck.SessionID, params)
	sess.Transition(StateSynRcvd)
	sess.Transition(StateEstablished)
	return sess, nil
}

// BuildHandshakeAck constructs the client's closing leg of the
// three-way exchange.
func BuildHandshakeAck(sessionID string) *protocol.Record {
	return &protocol.Record{
		SessionID: sessionID,
		Message:   HandshakeCompleteMessage,
	}
}
