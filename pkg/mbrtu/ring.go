// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package mbrtu

import "sync/atomic"

// ringSize must be a power of two. 1024 bytes holds several maximum-size
// frames between ticks at 115200 baud.
const ringSize = 1024

// ByteRing is a lock-free single-producer single-consumer byte queue.
// The serial reader goroutine is the only writer; the cooperative tick
// is the only reader. Overflowing bytes are dropped, which surfaces as a
// CRC or framing error on the truncated frame.
type ByteRing struct {
	buf  [ringSize]byte
	head atomic.Uint64 // consumer position
	tail atomic.Uint64 // producer position
}

// Put appends bytes from the producer side, returning how many fit.
func (r *ByteRing) Put(p []byte) int {
	head := r.head.Load()
	tail := r.tail.Load()
	free := ringSize - int(tail-head)
	n := len(p)
	if n > free {
		n = free
	}
	for i := 0; i < n; i++ {
		r.buf[(tail+uint64(i))&(ringSize-1)] = p[i]
	}
	r.tail.Store(tail + uint64(n))
	return n
}

// Get removes one byte from the consumer side.
func (r *ByteRing) Get() (byte, bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return 0, false
	}
	b := r.buf[head&(ringSize-1)]
	r.head.Store(head + 1)
	return b, true
}

// Len reports the number of buffered bytes.
func (r *ByteRing) Len() int {
	return int(r.tail.Load() - r.head.Load())
}
