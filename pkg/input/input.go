// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package input turns the three speed buttons into a commanded power level.
package input

// PowerLevel is the commanded speed step
type PowerLevel uint8

// Power levels in ascending priority
const (
	Off PowerLevel = iota
	Slow
	Medium
	Fast
)

// String returns the level name shown on indicators and logs
func (p PowerLevel) String() string {
	switch p {
	case Off:
		return "OFF"
	case Slow:
		return "SLOW"
	case Medium:
		return "MEDIUM"
	case Fast:
		return "FAST"
	default:
		return "UNKNOWN"
	}
}

// RawState holds which buttons are asserted during one sample
type RawState struct {
	Slow   bool
	Medium bool
	Fast   bool
}

// AllAsserted reports whether every button is held
func (r RawState) AllAsserted() bool {
	return r.Slow && r.Medium && r.Fast
}

// Resolve picks the highest-priority asserted button: Fast over Medium over
// Slow, Off when none is held.
func Resolve(r RawState) PowerLevel {
	switch {
	case r.Fast:
		return Fast
	case r.Medium:
		return Medium
	case r.Slow:
		return Slow
	default:
		return Off
	}
}

// Line is a digital input; Read reports the electrical level
type Line interface {
	Read() (high bool)
}

// Panel samples the three button lines. Buttons pull their line low when
// pressed.
type Panel struct {
	slow   Line
	medium Line
	fast   Line
}

// NewPanel creates a panel over the given lines
func NewPanel(slow, medium, fast Line) *Panel {
	return &Panel{slow: slow, medium: medium, fast: fast}
}

// Sample reads all three lines once
func (p *Panel) Sample() RawState {
	return RawState{
		Slow:   !p.slow.Read(),
		Medium: !p.medium.Read(),
		Fast:   !p.fast.Read(),
	}
}
