// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// maxRecordBytes bounds a single line; ARQ records are tiny (a chunk's
// payload is at most 8 cleartext bytes, inflated by JSON envelope,
// base64, and the Fernet token framing), so the scanner gets an explicit
// ceiling well below bufio.Scanner's 64KiB default.
const maxRecordBytes = 16 * 1024

// Reader reads newline-delimited Record values off a stream.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r for record-at-a-time reading.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxRecordBytes)
	return &Reader{scanner: s}
}

// ReadRecord reads and decodes the next line as a Record. It returns
// io.EOF when the stream ends cleanly, and ErrDecodeError (never a raw
// json error) when a line does not parse — callers should log and
// continue reading rather than treat this as fatal, per spec.md §7.
func (r *Reader) ReadRecord() (*Record, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}
		return nil, io.EOF
	}
	line := r.scanner.Bytes()
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeError, err)
	}
	return &rec, nil
}

// WriteRecord encodes rec as a single JSON line terminated by '\n'.
func WriteRecord(w io.Writer, rec *Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}
