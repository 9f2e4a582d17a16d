// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package sender

import (
	"time"

	"github.com/arqgo/arqgo/internal/protocol"
	"github.com/arqgo/arqgo/internal/session"
)

const (
	// GBNRetries is R, the whole-message retransmission budget.
	GBNRetries = 3
	// GBNAckTimeout bounds the wait for the single aggregate ack.
	GBNAckTimeout = 5 * time.Second
)

// SendMessageGBN transmits message as a back-to-back burst of chunks
// and waits for exactly one aggregate ack keyed on the last sequence
// number. A non-ok status or a timed-out wait retransmits the whole
// message, for at most GBNRetries attempts in all; after that the
// message is abandoned but the session's sequence counter has already
// advanced.
func SendMessageGBN(tx Transport, sess *session.Session, key *protocol.Key, checksumMode string, messageIndex int, message string, packetSize int, fault *Fault, sink Sink) (Outcome, error) {
	chunks := Segment(message, packetSize)
	base := sess.ReserveSequenceBlock(len(chunks))
	lastSeq := base + uint64(len(chunks)-1)

	out := Outcome{BaseSeq: base, TotalPackets: len(chunks)}

	for attempt := 1; attempt <= GBNRetries; attempt++ {
		out.Attempts = attempt

		for i, chunk := range chunks {
			rec, skip, err := buildDataRecord(sess.ID(), base+uint64(i), uint32(len(chunks)), i == len(chunks)-1,
				protocol.VariantGBN, checksumMode, key, []byte(chunk), fault, messageIndex, i)
			if err != nil {
				return out, err
			}
			if skip {
				continue
			}
			if err := tx.Send(rec); err != nil {
				return out, err
			}
		}

		ack, err := tx.AwaitFinalAck(GBNAckTimeout)
		if err == nil && ack.Status == protocol.StatusOK && ack.Sequence == lastSeq {
			out.Delivered = true
			out.Reassembled = ack.Message
			sink.emit(Event{Kind: KindMessageDelivered, Sequence: lastSeq, Attempt: attempt})
			return out, nil
		}

		sink.emit(Event{Kind: KindRetry, Sequence: lastSeq, Attempt: attempt, Detail: "gbn aggregate ack missing or negative"})
	}

	sink.emit(Event{Kind: KindAbandoned, Sequence: lastSeq, Attempt: out.Attempts})
	return out, nil
}

// buildDataRecord encrypts and checksums one chunk and consults fault
// for this (messageIndex, chunkIndex) pair. skip is true when the
// fault mode is "lose" and the caller should not write anything.
func buildDataRecord(sessionID string, seq uint64, totalPackets uint32, isLast bool, variant, checksumMode string, key *protocol.Key, cleartext []byte, fault *Fault, messageIndex, chunkIndex int) (rec *protocol.Record, skip bool, err error) {
	token, err := key.Encrypt(cleartext)
	if err != nil {
		return nil, false, err
	}
	checksum := protocol.Checksum(checksumMode, cleartext)

	rec = &protocol.Record{
		Type:         string(protocol.KindData),
		SessionID:    sessionID,
		Sequence:     seq,
		TotalPackets: totalPackets,
		IsLast:       isLast,
		Data:         token,
		Protocol:     variant,
		Checksum:     checksum,
		ChecksumMode: checksumMode,
	}

	if mode, fire := fault.Check(messageIndex, chunkIndex); fire {
		switch mode {
		case ModeLose:
			return rec, true, nil
		case ModeCorrupt:
			rec.Checksum = flipChecksum(rec.Checksum)
		}
	}

	return rec, false, nil
}

// flipChecksum produces a digest guaranteed to differ from s while
// keeping the same shape, so a corrupted packet still looks like a
// well-formed one on the wire.
func flipChecksum(s string) string {
	if s == "" {
		return "0"
	}
	b := []byte(s)
	if b[0] == '0' {
		b[0] = '1'
	} else {
		b[0] = '0'
	}
	return string(b)
}
