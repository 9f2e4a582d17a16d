// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package protocol

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/fernet/fernet-go"
)

// Key is the process-wide pre-shared symmetric key, loaded once at
// startup and shared by every session — spec.md §4.1 explicitly accepts
// a fixed pre-shared key in place of authenticated key exchange.
type Key struct {
	fernet *fernet.Key
}

// NewKeyFromString decodes a base64-encoded 32-byte Fernet key, the
// format fernet.Key.Encode/DecodeKey use.
func NewKeyFromString(encoded string) (*Key, error) {
	k, err := fernet.DecodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding fernet key: %w", err)
	}
	return &Key{fernet: k}, nil
}

// GenerateKey mints a fresh random key, for standalone runs with no
// pre-shared key configured (both sides must still end up with the same
// key — the CLI surfaces this one, it is not regenerated per session).
func GenerateKey() (*Key, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return nil, fmt.Errorf("generating fernet key: %w", err)
	}
	return &Key{fernet: &k}, nil
}

// Encode returns the base64 form of the key, suitable for a config file.
func (k *Key) Encode() string {
	return k.fernet.Encode()
}

// Encrypt produces the Fernet token for cleartext under k.
func (k *Key) Encrypt(cleartext []byte) (string, error) {
	tok, err := fernet.EncryptAndSign(cleartext, k.fernet)
	if err != nil {
		return "", fmt.Errorf("encrypting payload: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts a Fernet token. A nil, non-error return
// means the token failed verification (bad MAC, malformed, or expired) —
// the caller treats that identically to a checksum mismatch, per
// spec.md §4.1's "decryption failure is treated as a corrupted packet".
// TTL is 0: tokens never expire in this engine, only integrity matters.
func (k *Key) Decrypt(token string) []byte {
	return fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{k.fernet})
}

// Checksum computes the negotiated digest over cleartext payload bytes.
// mode is one of ChecksumSHA1 (default) or ChecksumByteSum — the
// byte-sum-mod-256 degraded mode spec.md §4.1 allows as an alternative,
// selectable per session via the handshake's negotiated ChecksumMode.
func Checksum(mode string, cleartext []byte) string {
	switch mode {
	case ChecksumByteSum:
		sum := 0
		for _, b := range cleartext {
			sum = (sum + int(b)) % 256
		}
		return fmt.Sprintf("%d", sum)
	default:
		h := sha1.Sum(cleartext)
		return hex.EncodeToString(h[:])
	}
}
