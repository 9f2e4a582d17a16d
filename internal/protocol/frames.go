// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package protocol implements the ARQ wire protocol: newline-delimited
// JSON records exchanged between arq-client and arq-server over TCP
// (optionally TLS-wrapped).
package protocol

import "errors"

// Kind discriminates the record variants on the wire. Handshake records
// are distinguished by field presence rather than an explicit Kind tag,
// matching spec.md's wire description (syn/handshake-ack carry no
// "type" field); Kind is still used internally, after decode, to route
// every record through a single tagged switch.
type Kind string

const (
	KindSyn          Kind = "syn"
	KindSynAck       Kind = "syn-ack"
	KindHandshakeAck Kind = "handshake-ack"
	KindData         Kind = "data"
	KindAck          Kind = "ack"
	KindClose        Kind = "close"
)

// Protocol variant names carried on the wire.
const (
	VariantGBN = "gbn"
	VariantSR  = "sr"
)

// Checksum mode names carried on the wire.
const (
	ChecksumSHA1    = "sha1"
	ChecksumByteSum = "bytesum"
)

// Status values carried on ack records.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Protocol-level errors. Decode errors are never fatal to a connection —
// the caller logs and discards the offending record.
var (
	ErrDecodeError      = errors.New("protocol: malformed record")
	ErrUnknownKind      = errors.New("protocol: unknown record kind")
	ErrSessionMismatch  = errors.New("protocol: session id mismatch")
	ErrIntegrityFailure = errors.New("protocol: checksum or decryption failure")
	ErrPayloadTooLarge  = errors.New("protocol: payload exceeds negotiated packet size")
)

// Record is the single wire envelope for every record kind. Fields not
// meaningful to a given kind are left at their zero value; Kind below
// resolves the concrete Kind from field presence for the two handshake
// records that carry no explicit "type", and validates the result is
// exactly one of the six known variants.
//
// Field names match spec.md §4.1 literally: type, session_id, sequence,
// total_packets, is_last, data, protocol, checksum, status, message,
// max_chars, packet_size, window_size. ChecksumMode is the one addition
// needed to make the checksum mode negotiable rather than a recompile
// (see SPEC_FULL.md §4.1).
type Record struct {
	Type         string `json:"type,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	Sequence     uint64 `json:"sequence"`
	TotalPackets uint32 `json:"total_packets,omitempty"`
	IsLast       bool   `json:"is_last,omitempty"`
	Data         string `json:"data,omitempty"`
	Protocol     string `json:"protocol,omitempty"`
	Checksum     string `json:"checksum,omitempty"`
	ChecksumMode string `json:"checksum_mode,omitempty"`
	Status       string `json:"status,omitempty"`
	Message      string `json:"message,omitempty"`
	MaxChars     int    `json:"max_chars,omitempty"`
	PacketSize   int    `json:"packet_size,omitempty"`
	WindowSize   int    `json:"window_size,omitempty"`
}

// Kind resolves the tagged-sum variant this record represents. Handshake
// syn/ack records carry no explicit "type"; they are told apart by which
// fields are populated, matching spec.md §6's "handshake records omit
// type" rule.
func (r *Record) Kind() (Kind, error) {
	switch r.Type {
	case string(KindData), string(KindAck), string(KindClose):
		return Kind(r.Type), nil
	case string(KindSynAck), string(KindHandshakeAck):
		return Kind(r.Type), nil
	case "":
		switch {
		case r.Protocol != "" && r.SessionID == "":
			return KindSyn, nil
		case r.SessionID != "" && r.Message != "":
			return KindHandshakeAck, nil
		}
	}
	return "", ErrUnknownKind
}
