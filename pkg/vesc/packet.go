// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"fmt"
	"time"
)

// Frame represents a decoded short-form frame
type Frame struct {
	payload   []byte
	crc       uint16
	timestamp time.Time
}

// NewFrame creates a frame around a payload, computing its checksum
func NewFrame(payload []byte) *Frame {
	return &Frame{
		payload:   payload,
		crc:       Checksum(payload),
		timestamp: time.Now(),
	}
}

// Payload returns the frame payload
func (f *Frame) Payload() []byte {
	return f.payload
}

// Command returns the command id carried in the first payload byte.
// Empty payloads report ok=false.
func (f *Frame) Command() (Command, bool) {
	if len(f.payload) == 0 {
		return 0, false
	}
	return Command(f.payload[0]), true
}

// CRC returns the frame checksum
func (f *Frame) CRC() uint16 {
	return f.crc
}

// Timestamp returns when the frame was decoded
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// EncodeFrame wraps a payload in a short-form frame.
// Payloads longer than MaxShortPayload would need the long form, which is not
// supported, so they are rejected instead of truncated.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxShortPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes needs the long form (max %d)",
			ErrUnsupportedFrame, len(payload), MaxShortPayload)
	}

	crc := Checksum(payload)

	frame := make([]byte, 0, len(payload)+frameOverhead)
	frame = append(frame, StartShort, byte(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, byte(crc>>8), byte(crc&0xFF), EndByte)
	return frame, nil
}

// MustEncodeFrame is EncodeFrame for payloads known to fit.
// Panics on encoding error.
func MustEncodeFrame(payload []byte) []byte {
	data, err := EncodeFrame(payload)
	if err != nil {
		panic(fmt.Sprintf("vesc: encode error: %v", err))
	}
	return data
}
