// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gpio

import "sync/atomic"

// VirtualButton behaves like a pulled-up button line: it reads high while
// released and low while pressed.
type VirtualButton struct {
	pressed atomic.Bool
}

// Read returns the simulated electrical level
func (b *VirtualButton) Read() bool {
	return !b.pressed.Load()
}

// Press asserts the button
func (b *VirtualButton) Press() {
	b.pressed.Store(true)
}

// Release deasserts the button
func (b *VirtualButton) Release() {
	b.pressed.Store(false)
}

// Toggle flips the button and returns the new pressed state
func (b *VirtualButton) Toggle() bool {
	for {
		old := b.pressed.Load()
		if b.pressed.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Pressed reports whether the button is held
func (b *VirtualButton) Pressed() bool {
	return b.pressed.Load()
}

// VirtualOutput records the level written to it
type VirtualOutput struct {
	high atomic.Bool
}

// Set stores the level
func (o *VirtualOutput) Set(high bool) error {
	o.high.Store(high)
	return nil
}

// High reports the last level written
func (o *VirtualOutput) High() bool {
	return o.high.Load()
}
