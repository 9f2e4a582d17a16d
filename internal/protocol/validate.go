// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package protocol

import "fmt"

// Validated is the outcome of running a data Record through Validate: the
// decrypted, checksum-verified cleartext payload, or a non-nil Err
// classifying why the packet is corrupt.
type Validated struct {
	Cleartext []byte
	Err       error
}

// Validate runs the ordered check list of spec.md §4.2 against a data
// record: session match, decryption success, digest equality, payload
// length bound. The first failing check wins and classifies the packet
// as corrupt; callers never need to inspect more than Err == nil.
func Validate(rec *Record, sessionID string, key *Key, checksumMode string, maxPayload int) Validated {
	if rec.SessionID != sessionID {
		return Validated{Err: fmt.Errorf("%w: got %q want %q", ErrSessionMismatch, rec.SessionID, sessionID)}
	}

	cleartext := key.Decrypt(rec.Data)
	if cleartext == nil {
		return Validated{Err: ErrIntegrityFailure}
	}

	if Checksum(checksumMode, cleartext) != rec.Checksum {
		return Validated{Err: ErrIntegrityFailure}
	}

	if len(cleartext) > maxPayload {
		return Validated{Err: ErrPayloadTooLarge}
	}

	return Validated{Cleartext: cleartext}
}
