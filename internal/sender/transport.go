// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package sender

import (
	"time"

	"github.com/arqgo/arqgo/internal/protocol"
)

// Transport is the send/receive surface the window engines drive.
// Splitting the two receive operations mirrors the two distinct
// timeout regimes a real socket needs here: GBN blocks once per
// message for its aggregate ack, SR polls repeatedly between bursts.
// A single read loop alternating settimeout(0.1)/settimeout(5.0) on
// one socket, as the reference implementation does, is exactly the
// ambiguity this split removes.
type Transport interface {
	Send(rec *protocol.Record) error

	// AwaitFinalAck blocks up to deadline for the next ack record,
	// returning a timeout error if none arrives in time.
	AwaitFinalAck(deadline time.Duration) (*protocol.Record, error)

	// TryDrainAcks returns every ack record available within maxWait
	// without blocking past it; an empty, nil-error result means
	// nothing arrived in time, not a fatal condition.
	TryDrainAcks(maxWait time.Duration) ([]*protocol.Record, error)
}

// Outcome summarizes what happened to one SendMessage call.
type Outcome struct {
	Delivered    bool
	Attempts     int
	BaseSeq      uint64
	TotalPackets int
	Reassembled  string // GBN's echoed cleartext, when the aggregate ack carries one
}
