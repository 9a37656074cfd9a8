// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"errors"
	"fmt"
)

// Receive and parse errors. All of them are recoverable.
var (
	ErrTimeout            = errors.New("vesc: receive timed out")
	ErrUnsupportedFrame   = errors.New("vesc: unsupported frame format")
	ErrMalformedLength    = errors.New("vesc: malformed frame length")
	ErrChecksumMismatch   = errors.New("vesc: checksum mismatch")
	ErrUnexpectedResponse = errors.New("vesc: unexpected response")
)

// ChecksumError carries both checksums of a rejected frame
type ChecksumError struct {
	Computed uint16
	Received uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("vesc: checksum mismatch: computed 0x%04X, received 0x%04X", e.Computed, e.Received)
}

// Is reports ChecksumError as ErrChecksumMismatch
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}
