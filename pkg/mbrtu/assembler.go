// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package mbrtu

import (
	"errors"
	"time"
)

// Assembler errors. CRC mismatches are counted and the frame dropped
// silently (the master retries); they are never answered.
var (
	ErrCRCMismatch  = errors.New("mbrtu: frame checksum mismatch")
	ErrMalformed    = errors.New("mbrtu: malformed frame")
	ErrFrameTooLong = errors.New("mbrtu: frame exceeds maximum size")
)

// Assembler reconstructs complete RTU frames from a byte stream. Frame
// length is derived from the function code: every request is 8 bytes
// except write-multiple, whose length follows from its byte-count field.
type Assembler struct {
	buffer   []byte
	expected int
}

// NewAssembler creates an assembler ready for the first frame byte.
func NewAssembler() *Assembler {
	return &Assembler{buffer: make([]byte, 0, rtuMaxFrameSize)}
}

// Reset discards any partially assembled frame.
func (a *Assembler) Reset() {
	a.buffer = a.buffer[:0]
	a.expected = 0
}

// Feed processes a single byte. It returns a parsed request when the byte
// completes a checksum-valid frame, or an error when the completed frame
// fails validation. Both outcomes reset the assembler for the next frame.
func (a *Assembler) Feed(b byte, now time.Time) (*Request, error) {
	a.buffer = append(a.buffer, b)

	switch len(a.buffer) {
	case 2:
		if a.buffer[1] == FuncWriteMultiple {
			a.expected = 0 // length known after the byte-count field
		} else {
			a.expected = fixedFrameSize
		}
	case 7:
		if a.buffer[1] == FuncWriteMultiple {
			a.expected = 9 + int(a.buffer[6])
			if a.expected > rtuMaxFrameSize {
				a.Reset()
				return nil, ErrFrameTooLong
			}
		}
	}

	if a.expected == 0 || len(a.buffer) < a.expected {
		return nil, nil
	}

	frame := a.buffer
	defer a.Reset()

	if !checkTrailer(frame) {
		return nil, ErrCRCMismatch
	}
	req := parseRequest(frame, now)
	if req == nil {
		return nil, ErrMalformed
	}
	return req, nil
}
