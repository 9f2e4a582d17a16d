// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package sender

import "sync"

// Mode names the effect a Fault has on a matched chunk.
type Mode string

const (
	ModeCorrupt Mode = "corrupt"
	ModeLose    Mode = "lose"
)

// Fault is a single-shot injection descriptor targeting one chunk of
// one message. It fires at most once: the first matching Check call
// disarms it, so a subsequent retransmission of the same chunk goes
// out intact and recovery is observable. A nil *Fault never fires.
type Fault struct {
	mu           sync.Mutex
	armed        bool
	messageIndex int
	chunkIndex   int
	mode         Mode
}

// New builds an armed descriptor targeting messageIndex/chunkIndex.
func New(messageIndex, chunkIndex int, mode Mode) *Fault {
	return &Fault{armed: true, messageIndex: messageIndex, chunkIndex: chunkIndex, mode: mode}
}

// Check reports whether the fault should fire for the given
// coordinates. A firing disarms the descriptor permanently.
func (f *Fault) Check(messageIndex, chunkIndex int) (Mode, bool) {
	if f == nil {
		return "", false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.armed || messageIndex != f.messageIndex || chunkIndex != f.chunkIndex {
		return "", false
	}
	f.armed = false
	return f.mode, true
}
