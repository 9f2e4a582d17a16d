// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package session

import (
	"sync"
	"time"

	"github.com/arqgo/arqgo/internal/protocol"
)

// Params holds the handshake-negotiated parameters both ends agree to
// honor for the lifetime of the session.
type Params struct {
	Protocol     string
	MaxChars     int
	PacketSize   int
	WindowSize   int
	ChecksumMode string
}

// Session is the shared, mutex-guarded record of one client/server
// connection's negotiated parameters, state, and cumulative counters.
// The server keeps one Session per accepted connection in a sync.Map
// keyed by session ID, mirroring the teacher's PartialSession registry.
type Session struct {
	mu sync.Mutex

	id        string
	state     State
	params    Params
	startedAt time.Time

	nextSeq        uint64 // next sequence number this end will assign
	packetsRecv    int
	acksSent       int
	corruptedCount int
}

// New creates a session in StateListen with a freshly minted ID.
func New(params Params) *Session {
	return &Session{
		id:        NewID(),
		state:     StateListen,
		params:    params,
		startedAt: time.Now(),
	}
}

// NewWithID creates a session bound to an ID chosen by a peer (the
// client adopts the ID the server assigns in its syn-ack).
func NewWithID(id string, params Params) *Session {
	return &Session{
		id:        id,
		state:     StateListen,
		params:    params,
		startedAt: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *Session) SetParams(p Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next if legal, returning false
// (and leaving state unchanged) otherwise.
func (s *Session) Transition(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, next) {
		return false
	}
	s.state = next
	return true
}

// Established reports whether the handshake has completed.
func (s *Session) Established() bool {
	return s.State() == StateEstablished
}

// NextSequence returns the next sequence number this end will use and
// advances the counter. Sequence numbers are per-session monotonic
// across messages; they never reset between messages.
func (s *Session) NextSequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq
	s.nextSeq++
	return seq
}

// ReserveSequenceBlock reserves n consecutive sequence numbers for the
// chunks of one message, returning the base. The counter advances
// whether or not the message is ultimately confirmed — sequence
// numbers are never reused within a session.
func (s *Session) ReserveSequenceBlock(n int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.nextSeq
	s.nextSeq += uint64(n)
	return base
}

// RecordPacketReceived bumps the cumulative received-packet counter.
func (s *Session) RecordPacketReceived() {
	s.mu.Lock()
	s.packetsRecv++
	s.mu.Unlock()
}

// RecordAckSent bumps the cumulative ACK counter.
func (s *Session) RecordAckSent() {
	s.mu.Lock()
	s.acksSent++
	s.mu.Unlock()
}

// RecordCorruption bumps the cumulative corrupted-packet counter.
func (s *Session) RecordCorruption() {
	s.mu.Lock()
	s.corruptedCount++
	s.mu.Unlock()
}

// Stats is a point-in-time snapshot of the session's counters, safe to
// hand to a logger or a stats reporter without holding the lock.
type Stats struct {
	ID             string
	State          State
	PacketsRecv    int
	AcksSent       int
	CorruptedCount int
	Uptime         time.Duration
}

func (s *Session) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		ID:             s.id,
		State:          s.state,
		PacketsRecv:    s.packetsRecv,
		AcksSent:       s.acksSent,
		CorruptedCount: s.corruptedCount,
		Uptime:         time.Since(s.startedAt),
	}
}

// VariantConst maps a Params.Protocol string back to the protocol
// package's canonical constant, defaulting to GBN on anything unknown
// (the handshake step validates Protocol before this is ever reached).
func VariantConst(p string) string {
	if p == protocol.VariantSR {
		return protocol.VariantSR
	}
	return protocol.VariantGBN
}
