// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package receiver

import "github.com/arqgo/arqgo/internal/protocol"

// SR holds the in-window reassembly state for one session's current
// message. Unlike GBN, every intact packet gets an individual ack
// (including duplicates), and the buffer accepts chunks out of order
// as long as they fall in [E, E+W). The contiguous-front-advance
// logic is the chunk-sequence analogue of a byte-range gap tracker:
// E only moves past entries that are actually present, one at a time.
type SR struct {
	windowSize   int
	msgBase      uint64
	e            uint64 // window base / next fully-contiguous sequence
	buffer       map[uint64][]byte
	totalPackets uint32
}

// NewSR creates an SR receiver for a message starting at msgBase.
func NewSR(windowSize int, msgBase uint64) *SR {
	return &SR{windowSize: windowSize, msgBase: msgBase, e: msgBase, buffer: make(map[uint64][]byte)}
}

// Ack describes the response owed for one data packet. Emit is false
// only for the silently-dropped out-of-window case.
type Ack struct {
	Emit     bool
	Status   string
	Sequence uint64
}

// Accept processes one validated (intact) data packet, returning the
// ack to send and, when the message has just become fully buffered,
// a non-nil Outcome carrying the reassembled text.
func (s *SR) Accept(seq uint64, cleartext []byte, totalPackets uint32) (Ack, *Outcome) {
	s.totalPackets = totalPackets

	switch {
	case seq < s.e:
		return Ack{Emit: true, Status: protocol.StatusOK, Sequence: seq}, nil
	case seq >= s.e+uint64(s.windowSize):
		return Ack{}, nil
	default:
		if _, exists := s.buffer[seq]; !exists {
			s.buffer[seq] = cleartext
		}
		s.advance()
		return Ack{Emit: true, Status: protocol.StatusOK, Sequence: seq}, s.maybeFinish()
	}
}

// Reject processes a packet that failed validation: it is nacked
// immediately and never buffered.
func (s *SR) Reject(seq uint64) Ack {
	return Ack{Emit: true, Status: protocol.StatusError, Sequence: seq}
}

func (s *SR) advance() {
	for {
		if _, ok := s.buffer[s.e]; !ok {
			break
		}
		s.e++
	}
}

// maybeFinish checks whether the buffered contiguous run now spans
// the whole message (total_packets, not is_last, is the ground truth
// here — SR may finish an out-of-order chunk well before the
// numerically last one arrives).
func (s *SR) maybeFinish() *Outcome {
	if s.totalPackets == 0 || s.e < s.msgBase+uint64(s.totalPackets) {
		return nil
	}
	out := make([]byte, 0, s.totalPackets)
	for i := uint64(0); i < uint64(s.totalPackets); i++ {
		out = append(out, s.buffer[s.msgBase+i]...)
	}
	result := &Outcome{MessageComplete: true, Reassembled: string(out)}
	s.reset()
	return result
}

func (s *SR) reset() {
	s.msgBase = s.e
	s.buffer = make(map[uint64][]byte)
	s.totalPackets = 0
}
