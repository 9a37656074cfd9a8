// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of link statistics
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Requests          uint64
	ValidResponses    uint64
	Timeouts          uint64
	ChecksumErrors    uint64
	UnsupportedFrames uint64
	MalformedFrames   uint64
	UnexpectedReplies uint64
	TransportErrors   uint64
	SkippedBytes      uint64

	// Failed fire-and-forget writes; not part of Requests
	WriteErrors uint64

	// Rates (calculated)
	RequestRate float64 // requests/sec
	ErrorRate   float64 // errors/sec
}

// Errors returns the total number of failed requests
func (c Counters) Errors() uint64 {
	return c.Timeouts + c.ChecksumErrors + c.UnsupportedFrames + c.MalformedFrames +
		c.UnexpectedReplies + c.TransportErrors
}

// Statistics tracks request outcomes on a link. Safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{c: Counters{
		StartTime:      now,
		LastUpdateTime: now,
	}}
}

// Record counts one request and classifies its outcome
func (s *Statistics) Record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.Requests++
	s.c.LastUpdateTime = time.Now()

	switch {
	case err == nil:
		s.c.ValidResponses++
	case errors.Is(err, ErrTimeout):
		s.c.Timeouts++
	case errors.Is(err, ErrChecksumMismatch):
		s.c.ChecksumErrors++
	case errors.Is(err, ErrUnsupportedFrame):
		s.c.UnsupportedFrames++
	case errors.Is(err, ErrMalformedLength):
		s.c.MalformedFrames++
	case errors.Is(err, ErrUnexpectedResponse):
		s.c.UnexpectedReplies++
	default:
		s.c.TransportErrors++
	}
}

// RecordWriteError counts a command write that never reached the port
func (s *Statistics) RecordWriteError() {
	s.mu.Lock()
	s.c.WriteErrors++
	s.c.LastUpdateTime = time.Now()
	s.mu.Unlock()
}

// AddSkipped counts bytes discarded outside of frames
func (s *Statistics) AddSkipped(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.c.SkippedBytes += uint64(n)
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Since(s.c.StartTime).Seconds()
	if elapsed > 0 {
		s.c.RequestRate = float64(s.c.Requests) / elapsed
		s.c.ErrorRate = float64(s.c.Errors()) / elapsed
	}
	return s.c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var validPercent float64
	if snap.Requests > 0 {
		validPercent = float64(snap.ValidResponses) * 100.0 / float64(snap.Requests)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Requests:        %8d\n", snap.Requests)
	result += fmt.Sprintf("Valid Responses: %8d (%.1f%%)\n", snap.ValidResponses, validPercent)

	if snap.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", snap.Timeouts)
	}
	if snap.ChecksumErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", snap.ChecksumErrors)
	}
	if snap.UnsupportedFrames > 0 {
		result += fmt.Sprintf("Unsupported:     %8d\n", snap.UnsupportedFrames)
	}
	if snap.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d\n", snap.MalformedFrames)
	}
	if snap.UnexpectedReplies > 0 {
		result += fmt.Sprintf("Unexpected:      %8d\n", snap.UnexpectedReplies)
	}
	if snap.TransportErrors > 0 {
		result += fmt.Sprintf("Transport:       %8d\n", snap.TransportErrors)
	}
	if snap.SkippedBytes > 0 {
		result += fmt.Sprintf("Skipped Bytes:   %8d\n", snap.SkippedBytes)
	}
	if snap.WriteErrors > 0 {
		result += fmt.Sprintf("Send Errors:     %8d\n", snap.WriteErrors)
	}

	result += fmt.Sprintf("Request Rate:    %8.1f req/sec\n", snap.RequestRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", snap.ErrorRate)
	result += "=====================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.c = Counters{StartTime: now, LastUpdateTime: now}
}
