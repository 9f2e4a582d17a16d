// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package session

import "fmt"

// State is a node in the session lifecycle. Sessions move strictly
// forward; there is no path back to an earlier state.
type State int

const (
	StateListen State = iota
	StateSynRcvd
	StateEstablished
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListen:
		return "LISTEN"
	case StateSynRcvd:
		return "SYN_RCVD"
	case StateEstablished:
		return "ESTABLISHED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// transitions enumerates every legal forward move. A session with no
// outgoing edge from its current state has no legal next move at all
// (StateClosed is terminal).
var transitions = map[State][]State{
	StateListen:      {StateSynRcvd},
	StateSynRcvd:     {StateEstablished, StateClosed},
	StateEstablished: {StateClosing, StateClosed},
	StateClosing:     {StateClosed},
}

// CanTransition reports whether moving from s to next is legal.
func CanTransition(s, next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
