// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package sender

import (
	"errors"
	"testing"
	"time"

	"github.com/arqgo/arqgo/internal/protocol"
	"github.com/arqgo/arqgo/internal/session"
)

func TestSegmentSplitsIntoFixedChunks(t *testing.T) {
	got := Segment("Hello World!", 4)
	want := []string{"Hell", "o Wo", "rld!"}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestSegmentShortMessageSingleChunk(t *testing.T) {
	got := Segment("hi", 4)
	if len(got) != 1 || got[0] != "hi" {
		t.Fatalf("got %v", got)
	}
}

func TestFaultFiresExactlyOnce(t *testing.T) {
	f := New(0, 1, ModeCorrupt)

	if _, fired := f.Check(0, 0); fired {
		t.Fatal("should not fire on non-matching chunk")
	}
	mode, fired := f.Check(0, 1)
	if !fired || mode != ModeCorrupt {
		t.Fatalf("expected corrupt fire, got mode=%q fired=%v", mode, fired)
	}
	if _, fired := f.Check(0, 1); fired {
		t.Fatal("fault should have disarmed itself after firing once")
	}
}

func TestNilFaultNeverFires(t *testing.T) {
	var f *Fault
	if _, fired := f.Check(0, 0); fired {
		t.Fatal("nil fault must never fire")
	}
}

func TestCongestionRampGrowsOnSuccessResetsOnFailure(t *testing.T) {
	c := NewCongestion(5)
	if w := c.EffectiveWindow(); w != 1 {
		t.Fatalf("expected cwnd=1 initially, got %d", w)
	}
	c.OnBurstResult(true)
	if w := c.EffectiveWindow(); w != 2 {
		t.Fatalf("expected cwnd=2 after success, got %d", w)
	}
	c.OnBurstResult(true)
	c.OnBurstResult(true)
	c.OnBurstResult(true)
	c.OnBurstResult(true)
	if w := c.EffectiveWindow(); w != 5 {
		t.Fatalf("expected cwnd capped at 5, got %d", w)
	}
	c.OnBurstResult(false)
	if w := c.EffectiveWindow(); w != 1 {
		t.Fatalf("expected cwnd reset to 1 on failure, got %d", w)
	}
}

// fakeTransport is a minimal in-memory Transport: Send records every
// outgoing packet, and both receive operations are driven by
// pre-scripted responders so sender logic can be exercised without a
// real socket or receiver.
type fakeTransport struct {
	sent         []*protocol.Record
	finalAck     func(sent []*protocol.Record) (*protocol.Record, error)
	drainAck     func(sent []*protocol.Record) ([]*protocol.Record, error)
}

func (f *fakeTransport) Send(rec *protocol.Record) error {
	f.sent = append(f.sent, rec)
	return nil
}

func (f *fakeTransport) AwaitFinalAck(time.Duration) (*protocol.Record, error) {
	return f.finalAck(f.sent)
}

func (f *fakeTransport) TryDrainAcks(time.Duration) ([]*protocol.Record, error) {
	return f.drainAck(f.sent)
}

func newTestSession() *session.Session {
	return session.New(session.Params{Protocol: protocol.VariantGBN, MaxChars: 30, PacketSize: 4, WindowSize: 5, ChecksumMode: protocol.ChecksumSHA1})
}

func TestSendMessageGBNDeliversOnOK(t *testing.T) {
	sess := newTestSession()
	key, _ := protocol.GenerateKey()

	tx := &fakeTransport{
		finalAck: func(sent []*protocol.Record) (*protocol.Record, error) {
			last := sent[len(sent)-1]
			return &protocol.Record{Type: string(protocol.KindAck), Status: protocol.StatusOK, Sequence: last.Sequence}, nil
		},
	}

	out, err := SendMessageGBN(tx, sess, key, protocol.ChecksumSHA1, 0, "Hello World!", 4, nil, nil)
	if err != nil {
		t.Fatalf("SendMessageGBN: %v", err)
	}
	if !out.Delivered {
		t.Fatal("expected message delivered")
	}
	if out.Attempts != 1 {
		t.Fatalf("expected delivery on first attempt, got %d", out.Attempts)
	}
	if len(tx.sent) != 3 {
		t.Fatalf("expected 3 chunks sent for a 12-char message at P=4, got %d", len(tx.sent))
	}
}

func TestSendMessageGBNRetriesThenAbandons(t *testing.T) {
	sess := newTestSession()
	key, _ := protocol.GenerateKey()

	tx := &fakeTransport{
		finalAck: func(sent []*protocol.Record) (*protocol.Record, error) {
			return nil, errors.New("timeout")
		},
	}

	out, err := SendMessageGBN(tx, sess, key, protocol.ChecksumSHA1, 0, "Hello World!", 4, nil, nil)
	if err != nil {
		t.Fatalf("SendMessageGBN: %v", err)
	}
	if out.Delivered {
		t.Fatal("expected abandonment, not delivery")
	}
	if out.Attempts != GBNRetries {
		t.Fatalf("expected %d attempts, got %d", GBNRetries, out.Attempts)
	}
	if len(tx.sent) != 3*GBNRetries {
		t.Fatalf("expected every attempt to resend all 3 chunks, got %d sends", len(tx.sent))
	}
}

func TestSendMessageSRDeliversWithImmediateAcks(t *testing.T) {
	sess := newTestSession()
	key, _ := protocol.GenerateKey()

	acked := map[uint64]bool{}
	tx := &fakeTransport{
		drainAck: func(sent []*protocol.Record) ([]*protocol.Record, error) {
			var acks []*protocol.Record
			for _, rec := range sent {
				if !acked[rec.Sequence] {
					acked[rec.Sequence] = true
					acks = append(acks, &protocol.Record{Type: string(protocol.KindAck), Status: protocol.StatusOK, Sequence: rec.Sequence})
				}
			}
			return acks, nil
		},
	}

	out, err := SendMessageSR(tx, sess, key, protocol.ChecksumSHA1, 0, "abcdefghij", 4, 3, nil, nil, nil)
	if err != nil {
		t.Fatalf("SendMessageSR: %v", err)
	}
	if !out.Delivered {
		t.Fatal("expected message delivered")
	}
	if out.TotalPackets != 3 {
		t.Fatalf("expected 3 chunks for a 10-char message at P=4, got %d", out.TotalPackets)
	}
}

func TestSendMessageSRGrowsCongestionWindowMidMessage(t *testing.T) {
	sess := newTestSession()
	key, _ := protocol.GenerateKey()
	cong := NewCongestion(5)

	acked := map[uint64]bool{}
	var sentCountAtPoll []int
	tx := &fakeTransport{
		drainAck: func(sent []*protocol.Record) ([]*protocol.Record, error) {
			sentCountAtPoll = append(sentCountAtPoll, len(sent))
			var acks []*protocol.Record
			for _, rec := range sent {
				if !acked[rec.Sequence] {
					acked[rec.Sequence] = true
					acks = append(acks, &protocol.Record{Type: string(protocol.KindAck), Status: protocol.StatusOK, Sequence: rec.Sequence})
				}
			}
			return acks, nil
		},
	}

	// 5 chunks at P=4, window_size=5, but cwnd starts at 1: every burst
	// round must be judged and ramped on its own, or the whole message
	// would crawl through the window one chunk at a time.
	out, err := SendMessageSR(tx, sess, key, protocol.ChecksumSHA1, 0, "abcdefghijklmnopqrst", 4, 5, nil, cong, nil)
	if err != nil {
		t.Fatalf("SendMessageSR: %v", err)
	}
	if !out.Delivered {
		t.Fatal("expected message delivered")
	}
	if len(sentCountAtPoll) < 2 {
		t.Fatalf("expected at least two burst rounds, got %d", len(sentCountAtPoll))
	}

	batchSizes := make([]int, len(sentCountAtPoll))
	prev := 0
	for i, total := range sentCountAtPoll {
		batchSizes[i] = total - prev
		prev = total
	}
	if batchSizes[0] != 1 {
		t.Fatalf("expected the first burst to send exactly 1 chunk (cwnd starts at 1), got %d", batchSizes[0])
	}
	if batchSizes[1] <= batchSizes[0] {
		t.Fatalf("expected the second burst to be larger than the first (cwnd ramped after the first burst), got batches %v", batchSizes)
	}
}

func TestSendMessageSRRetransmitsOnlyNackedChunk(t *testing.T) {
	sess := newTestSession()
	key, _ := protocol.GenerateKey()

	nackedOnce := false
	tx := &fakeTransport{
		drainAck: func(sent []*protocol.Record) ([]*protocol.Record, error) {
			var acks []*protocol.Record
			for _, rec := range sent {
				if rec.Sequence == 1 && !nackedOnce {
					nackedOnce = true
					acks = append(acks, &protocol.Record{Type: string(protocol.KindAck), Status: protocol.StatusError, Sequence: rec.Sequence})
					continue
				}
				acks = append(acks, &protocol.Record{Type: string(protocol.KindAck), Status: protocol.StatusOK, Sequence: rec.Sequence})
			}
			return acks, nil
		},
	}

	out, err := SendMessageSR(tx, sess, key, protocol.ChecksumSHA1, 0, "abcdefghij", 4, 3, nil, nil, nil)
	if err != nil {
		t.Fatalf("SendMessageSR: %v", err)
	}
	if !out.Delivered {
		t.Fatal("expected eventual delivery after one nack")
	}
	sends := map[uint64]int{}
	for _, rec := range tx.sent {
		sends[rec.Sequence]++
	}
	if sends[0] != 1 || sends[1] != 2 || sends[2] != 1 {
		t.Fatalf("expected only the nacked chunk (sequence 1) to be resent, got send counts %v", sends)
	}
}
