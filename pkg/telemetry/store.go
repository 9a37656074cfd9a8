// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry polls the motor unit for realtime values and publishes
// them as immutable snapshots.
package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/Thermoquad/stickctl/pkg/vesc"
)

// Snapshot is one complete, successfully decoded values response.
// Generation increments on every publish, so readers can tell a fresh
// snapshot from a repeat.
type Snapshot struct {
	vesc.Values
	Generation uint64    `json:"generation" cbor:"generation"`
	UpdatedAt  time.Time `json:"updated_at" cbor:"updated_at"`
}

// Store holds the latest snapshot and link state. One writer (the poller),
// any number of readers.
type Store struct {
	snap     atomic.Pointer[Snapshot]
	alive    atomic.Bool
	firmware atomic.Pointer[vesc.FirmwareVersion]
}

// NewStore creates an empty store; the link starts as not alive
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the latest published snapshot. Before the first
// successful poll it returns the zero Snapshot with Generation 0.
func (s *Store) Snapshot() Snapshot {
	if p := s.snap.Load(); p != nil {
		return *p
	}
	return Snapshot{}
}

// Alive reports whether the most recent poll succeeded
func (s *Store) Alive() bool {
	return s.alive.Load()
}

// Firmware returns the probed firmware version, if known
func (s *Store) Firmware() (vesc.FirmwareVersion, bool) {
	if p := s.firmware.Load(); p != nil {
		return *p, true
	}
	return vesc.FirmwareVersion{}, false
}

func (s *Store) publish(v vesc.Values, now time.Time) Snapshot {
	next := &Snapshot{
		Values:     v,
		Generation: s.Snapshot().Generation + 1,
		UpdatedAt:  now,
	}
	s.snap.Store(next)
	return *next
}

// setAlive stores the link state and returns the previous one
func (s *Store) setAlive(alive bool) bool {
	return s.alive.Swap(alive)
}

func (s *Store) setFirmware(fw vesc.FirmwareVersion) {
	s.firmware.Store(&fw)
}
