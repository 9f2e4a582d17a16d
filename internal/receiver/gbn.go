// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package receiver implements the ARQ receiver window engine: GBN's
// in-order buffer with a latched corruption flag, and SR's in-window
// buffer with duplicate-tolerant, out-of-order acceptance.
package receiver

import "github.com/arqgo/arqgo/internal/protocol"

// GBN holds the in-order reassembly state for one session's current
// message. Accepted chunks form a contiguous prefix; any packet whose
// sequence is not exactly the expected next one — corrupt or simply
// out of order — latches corrupted without emitting anything. Only
// the final, is_last packet produces a response.
type GBN struct {
	expected  uint64
	msgBase   uint64
	buffer    map[uint64][]byte
	corrupted bool
	started   bool
}

// NewGBN creates a GBN receiver expecting firstSeq as the first chunk
// of the next message.
func NewGBN(firstSeq uint64) *GBN {
	return &GBN{expected: firstSeq, buffer: make(map[uint64][]byte)}
}

// Outcome is what handling one data packet produced: whether a final
// ack is due (GBN) or a message has been fully reassembled (SR), and
// if so, its contents.
type Outcome struct {
	FinalAck        bool
	MessageComplete bool
	Status          string
	Reassembled     string
}

// Accept processes one already-validated (intact) data packet.
func (g *GBN) Accept(seq uint64, cleartext []byte, isLast bool) Outcome {
	g.markStarted(seq)
	if seq == g.expected {
		g.buffer[seq] = cleartext
		g.expected++
	} else {
		g.corrupted = true
	}
	return g.maybeFinish(isLast)
}

// Reject processes a packet that failed validation (corrupt or
// undecryptable): it always latches, regardless of sequence.
func (g *GBN) Reject(seq uint64, isLast bool) Outcome {
	g.markStarted(seq)
	g.corrupted = true
	return g.maybeFinish(isLast)
}

// markStarted records the sequence number a message's first packet
// opened at, so a rejected message's whole-message retransmission —
// which reuses that same base — is accepted fresh rather than judged
// against wherever the prior, abandoned attempt's expected counter
// had drifted to.
func (g *GBN) markStarted(seq uint64) {
	if g.started {
		return
	}
	g.started = true
	g.msgBase = seq
}

func (g *GBN) maybeFinish(isLast bool) Outcome {
	if !isLast {
		return Outcome{}
	}
	status := protocol.StatusOK
	var reassembled string
	if g.corrupted {
		status = protocol.StatusError
		g.expected = g.msgBase
	} else {
		reassembled = g.join()
	}
	g.reset()
	return Outcome{FinalAck: true, Status: status, Reassembled: reassembled}
}

func (g *GBN) join() string {
	var out []byte
	seq := g.expected - uint64(len(g.buffer))
	for i := 0; i < len(g.buffer); i++ {
		out = append(out, g.buffer[seq+uint64(i)]...)
	}
	return string(out)
}

func (g *GBN) reset() {
	g.buffer = make(map[uint64][]byte)
	g.corrupted = false
	g.started = false
}
