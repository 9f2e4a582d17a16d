// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package protocol

import "testing"

func TestKeyEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	tok, err := key.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got := key.Decrypt(tok)
	if string(got) != "hello" {
		t.Fatalf("Decrypt: got %q want %q", got, "hello")
	}
}

func TestKeyDecryptRejectsForeignKey(t *testing.T) {
	k1, _ := GenerateKey()
	k2, _ := GenerateKey()

	tok, err := k1.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if got := k2.Decrypt(tok); got != nil {
		t.Fatalf("expected nil decrypting under the wrong key, got %q", got)
	}
}

func TestKeyEncodeDecode(t *testing.T) {
	key, _ := GenerateKey()
	encoded := key.Encode()

	restored, err := NewKeyFromString(encoded)
	if err != nil {
		t.Fatalf("NewKeyFromString: %v", err)
	}

	tok, err := key.Encrypt([]byte("roundtrip"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if got := restored.Decrypt(tok); string(got) != "roundtrip" {
		t.Fatalf("Decrypt with restored key: got %q", got)
	}
}

func TestChecksumSHA1Deterministic(t *testing.T) {
	a := Checksum(ChecksumSHA1, []byte("abc"))
	b := Checksum(ChecksumSHA1, []byte("abc"))
	if a != b {
		t.Fatalf("checksum not deterministic: %q vs %q", a, b)
	}
	if len(a) != 40 {
		t.Fatalf("expected 40 hex chars for sha1, got %d (%q)", len(a), a)
	}
}

func TestChecksumByteSumWraps(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = 1
	}
	got := Checksum(ChecksumByteSum, payload)
	if got != "44" {
		t.Fatalf("expected (300 mod 256) = 44, got %q", got)
	}
}

func TestChecksumModesDiffer(t *testing.T) {
	payload := []byte("distinguish me")
	if Checksum(ChecksumSHA1, payload) == Checksum(ChecksumByteSum, payload) {
		t.Fatal("sha1 and bytesum checksums should not collide on this input")
	}
}
