// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package session implements the ARQ session lifecycle: the three-way
// handshake, the LISTEN/SYN_RCVD/ESTABLISHED/CLOSING/CLOSED state
// machine, and the per-connection counters the sender and receiver
// packages build on.
package session

import (
	"encoding/hex"

	"github.com/rs/xid"
)

// NewID mints an opaque session identifier. xid encodes a timestamp,
// machine id, process id and process-local counter into a 12-byte
// value; the identifier is the hex form of its last 4 bytes (the low
// process-id byte and the 3-byte counter), 8 characters that differ
// for every ID one process mints, even within the same second.
func NewID() string {
	id := xid.New()
	return hex.EncodeToString(id[8:])
}
