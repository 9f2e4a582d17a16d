// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package sender

import (
	"context"
	"time"

	"github.com/arqgo/arqgo/internal/protocol"
	"github.com/arqgo/arqgo/internal/session"
)

const (
	// SRRetries is R, the whole-message retry budget once the overall
	// deadline below is exceeded without full delivery.
	SRRetries = 3
	// SRChunkTimeout is T, the per-packet retransmission timer.
	SRChunkTimeout = 2 * time.Second
	// SRMessageDeadline bounds one attempt at delivering the message.
	SRMessageDeadline = 30 * time.Second
	// srPollInterval is how long TryDrainAcks is given per poll.
	srPollInterval = 100 * time.Millisecond
)

type srChunkState struct {
	cleartext []byte
	sent      bool
	acked     bool
	deadline  time.Time
}

// SendMessageSR drives the selective-repeat window over message,
// retransmitting only the specific chunks that time out or are
// explicitly nacked. cong may be nil to disable the congestion ramp.
func SendMessageSR(tx Transport, sess *session.Session, key *protocol.Key, checksumMode string, messageIndex int, message string, packetSize, windowSize int, fault *Fault, cong *Congestion, sink Sink) (Outcome, error) {
	chunks := Segment(message, packetSize)
	base := sess.ReserveSequenceBlock(len(chunks))
	lastSeq := base + uint64(len(chunks)-1)

	out := Outcome{BaseSeq: base, TotalPackets: len(chunks)}

	for attempt := 1; attempt <= SRRetries; attempt++ {
		out.Attempts = attempt

		states := make([]*srChunkState, len(chunks))
		for i, c := range chunks {
			states[i] = &srChunkState{cleartext: []byte(c)}
		}

		base_ := 0 // index of the window's base chunk within this message
		msgDeadline := time.Now().Add(SRMessageDeadline)

		for base_ < len(chunks) && time.Now().Before(msgDeadline) {
			eff := windowSize
			if cong != nil {
				if w := cong.EffectiveWindow(); w < eff {
					eff = w
				}
			}
			end := base_ + eff
			if end > len(chunks) {
				end = len(chunks)
			}
			burstStart := base_

			for i := base_; i < end; i++ {
				st := states[i]
				if st.acked {
					continue
				}
				now := time.Now()
				if st.sent && !now.After(st.deadline) {
					continue
				}

				rec, skip, err := buildDataRecord(sess.ID(), base+uint64(i), uint32(len(chunks)), i == len(chunks)-1,
					protocol.VariantSR, checksumMode, key, st.cleartext, fault, messageIndex, i)
				if err != nil {
					return out, err
				}
				if cong != nil {
					_ = cong.Pace(context.Background())
				}
				if !skip {
					if err := tx.Send(rec); err != nil {
						return out, err
					}
				}
				st.sent = true
				st.deadline = now.Add(SRChunkTimeout)
			}

			acks, err := tx.TryDrainAcks(srPollInterval)
			if err != nil {
				return out, err
			}
			for _, ack := range acks {
				idx := int(ack.Sequence - base)
				if idx < 0 || idx >= len(chunks) {
					continue
				}
				if ack.Status == protocol.StatusOK {
					states[idx].acked = true
				} else {
					sink.emit(Event{Kind: KindPacketNacked, Sequence: ack.Sequence, Attempt: attempt})
					states[idx].deadline = time.Time{} // force immediate retransmit next pass
				}
			}

			for base_ < len(chunks) && states[base_].acked {
				base_++
			}

			if cong != nil {
				allAcked := true
				for i := burstStart; i < end; i++ {
					if !states[i].acked {
						allAcked = false
						break
					}
				}
				cong.OnBurstResult(allAcked)
			}
		}

		if base_ >= len(chunks) {
			out.Delivered = true
			sink.emit(Event{Kind: KindMessageDelivered, Sequence: lastSeq, Attempt: attempt})
			return out, nil
		}

		sink.emit(Event{Kind: KindRetry, Sequence: lastSeq, Attempt: attempt, Detail: "sr message deadline exceeded"})
	}

	sink.emit(Event{Kind: KindAbandoned, Sequence: lastSeq, Attempt: out.Attempts})
	return out, nil
}
