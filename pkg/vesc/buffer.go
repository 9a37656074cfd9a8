// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"encoding/binary"
	"fmt"
)

// Reader is a bounds-checked big-endian cursor over a payload.
// The first out-of-range read records an error; later reads return zero.
type Reader struct {
	data []byte
	pos  int
	err  error
}

// NewReader creates a cursor at the start of data
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrMalformedLength, n, r.pos, len(r.data))
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

// Uint8 reads one byte
func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Int16 reads a signed 16-bit value
func (r *Reader) Int16() int16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int16(binary.BigEndian.Uint16(b))
}

// Int32 reads a signed 32-bit value
func (r *Reader) Int32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

// Float16 reads a signed 16-bit fixed-point value divided by scale
func (r *Reader) Float16(scale float64) float64 {
	return float64(r.Int16()) / scale
}

// Float32 reads a signed 32-bit fixed-point value divided by scale
func (r *Reader) Float32(scale float64) float64 {
	return float64(r.Int32()) / scale
}

// Skip advances the cursor by n bytes
func (r *Reader) Skip(n int) {
	r.take(n)
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Err returns the first bounds error, if any
func (r *Reader) Err() error {
	return r.err
}
