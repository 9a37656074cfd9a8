// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"fmt"
)

// Decoder states
const (
	stateIdle = iota
	stateLength
	stateBody
)

// Decoder implements the frame decoder state machine.
// Bytes arriving outside a frame are skipped until a start marker is seen.
type Decoder struct {
	state     int
	buffer    []byte
	want      int
	skipped   int
	rawBuffer []byte
	rejected  []byte
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, 0, MaxFrameSize),
		rawBuffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset returns the decoder to idle, discarding any partial frame
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.buffer = d.buffer[:0]
	d.want = 0
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the raw bytes of the frame in progress
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// Rejected returns the raw bytes of the most recently rejected frame.
// The slice is reused by the next rejection.
func (d *Decoder) Rejected() []byte {
	return d.rejected
}

// Skipped returns the number of bytes discarded while hunting for a start
// marker and resets the count.
func (d *Decoder) Skipped() int {
	n := d.skipped
	d.skipped = 0
	return n
}

// InFrame reports whether a frame is partially received
func (d *Decoder) InFrame() bool {
	return d.state != stateIdle
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns an error if the frame is rejected; the decoder is then idle again.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateIdle:
		if b != StartShort && b != StartLong {
			d.skipped++
			return nil, nil
		}
		d.Reset()
		d.buffer = append(d.buffer, b)
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLength
		return nil, nil

	case stateLength:
		d.buffer = append(d.buffer, b)
		d.rawBuffer = append(d.rawBuffer, b)
		if d.buffer[0] == StartLong {
			return d.reject(fmt.Errorf("%w: long form frame", ErrUnsupportedFrame))
		}
		d.want = int(b) + frameOverhead
		d.state = stateBody
		return nil, nil

	case stateBody:
		d.buffer = append(d.buffer, b)
		d.rawBuffer = append(d.rawBuffer, b)
		if len(d.buffer) < d.want {
			return nil, nil
		}
		return d.finish()

	default:
		return d.reject(fmt.Errorf("invalid decoder state: %d", d.state))
	}
}

// reject keeps a copy of the frame bytes for Rejected and returns to idle
func (d *Decoder) reject(err error) (*Frame, error) {
	d.rejected = append(d.rejected[:0], d.rawBuffer...)
	d.Reset()
	return nil, err
}

// finish validates a frame once its declared length has arrived
func (d *Decoder) finish() (*Frame, error) {
	n := len(d.buffer)
	if d.buffer[n-1] != EndByte {
		return d.reject(fmt.Errorf("%w: expected end marker at offset %d, got 0x%02X",
			ErrMalformedLength, n-1, d.buffer[n-1]))
	}

	payload := d.buffer[2 : n-3]
	received := uint16(d.buffer[n-3])<<8 | uint16(d.buffer[n-2])
	computed := Checksum(payload)
	if received != computed {
		return d.reject(&ChecksumError{Computed: computed, Received: received})
	}

	out := make([]byte, len(payload))
	copy(out, payload)
	d.Reset()
	return NewFrame(out), nil
}

// DecodeAll feeds a byte slice through a fresh decoder and returns every
// complete frame. Errors stop decoding.
func DecodeAll(data []byte) ([]*Frame, error) {
	d := NewDecoder()
	var frames []*Frame
	for _, b := range data {
		f, err := d.DecodeByte(b)
		if err != nil {
			return frames, err
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
	return frames, nil
}
