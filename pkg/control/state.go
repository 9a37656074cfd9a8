// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package control

import (
	"fmt"
	"math"
	"time"

	"github.com/Thermoquad/stickctl/pkg/input"
)

// Mode is the top-level controller mode
type Mode uint8

const (
	Normal Mode = iota
	EmergencyStop
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "NORMAL"
	case EmergencyStop:
		return "EMERGENCY_STOP"
	default:
		return "UNKNOWN"
	}
}

// State is the published control state. Level and Current always belong to
// the same command.
type State struct {
	Mode     Mode             `json:"mode" cbor:"mode"`
	Level    input.PowerLevel `json:"level" cbor:"level"`
	Current  float64          `json:"current" cbor:"current"`
	ExitStep int              `json:"exit_step" cbor:"exit_step"`
}

// Button identifies one of the three speed buttons
type Button uint8

const (
	ButtonSlow Button = iota
	ButtonMedium
	ButtonFast
)

func (b Button) String() string {
	switch b {
	case ButtonSlow:
		return "SLOW"
	case ButtonMedium:
		return "MEDIUM"
	case ButtonFast:
		return "FAST"
	default:
		return "UNKNOWN"
	}
}

// Edge is a press or release of one button between two samples
type Edge struct {
	Button  Button
	Pressed bool
}

func (e Edge) String() string {
	if e.Pressed {
		return e.Button.String() + " press"
	}
	return e.Button.String() + " release"
}

// ExitSequence is the ordered list of edges that leaves emergency stop
var ExitSequence = []Edge{
	{ButtonSlow, true},
	{ButtonSlow, false},
	{ButtonMedium, true},
	{ButtonMedium, false},
	{ButtonFast, true},
	{ButtonFast, false},
}

// settled is the only button state in which e counts as an exit step: the
// edge's own button pressed alone, or nothing held after a release.
func (e Edge) settled() input.RawState {
	var raw input.RawState
	if !e.Pressed {
		return raw
	}
	switch e.Button {
	case ButtonSlow:
		raw.Slow = true
	case ButtonMedium:
		raw.Medium = true
	case ButtonFast:
		raw.Fast = true
	}
	return raw
}

// edges lists the transitions from prev to cur in slow, medium, fast order
func edges(prev, cur input.RawState) []Edge {
	var out []Edge
	if prev.Slow != cur.Slow {
		out = append(out, Edge{ButtonSlow, cur.Slow})
	}
	if prev.Medium != cur.Medium {
		out = append(out, Edge{ButtonMedium, cur.Medium})
	}
	if prev.Fast != cur.Fast {
		out = append(out, Edge{ButtonFast, cur.Fast})
	}
	return out
}

// Config holds the control loop tuning
type Config struct {
	SlowCurrent   float64       `yaml:"slow_current"`
	MediumCurrent float64       `yaml:"medium_current"`
	FastCurrent   float64       `yaml:"fast_current"`
	HoldDwell     time.Duration `yaml:"hold_dwell"`
	BlinkInterval time.Duration `yaml:"blink_interval"`
	// ExitTimeout resets a partially entered exit sequence after this long
	// without progress. Zero disables the reset.
	ExitTimeout time.Duration `yaml:"exit_timeout"`
}

// DefaultConfig returns the stock tuning
func DefaultConfig() Config {
	return Config{
		SlowCurrent:   5,
		MediumCurrent: 10,
		FastCurrent:   20,
		HoldDwell:     2 * time.Second,
		BlinkInterval: 500 * time.Millisecond,
		ExitTimeout:   5 * time.Second,
	}
}

// CurrentFor maps a power level to its motor current in amps
func (c Config) CurrentFor(level input.PowerLevel) float64 {
	switch level {
	case input.Slow:
		return c.SlowCurrent
	case input.Medium:
		return c.MediumCurrent
	case input.Fast:
		return c.FastCurrent
	default:
		return 0
	}
}

// Validate rejects tuning that would make the interlock misbehave
func (c Config) Validate() error {
	for _, cur := range []struct {
		name  string
		value float64
	}{
		{"slow_current", c.SlowCurrent},
		{"medium_current", c.MediumCurrent},
		{"fast_current", c.FastCurrent},
	} {
		if math.IsNaN(cur.value) || math.IsInf(cur.value, 0) || cur.value < 0 {
			return fmt.Errorf("%s must be a non-negative amperage, got %v", cur.name, cur.value)
		}
	}
	if c.HoldDwell <= 0 {
		return fmt.Errorf("hold_dwell must be positive, got %v", c.HoldDwell)
	}
	if c.BlinkInterval <= 0 {
		return fmt.Errorf("blink_interval must be positive, got %v", c.BlinkInterval)
	}
	if c.ExitTimeout < 0 {
		return fmt.Errorf("exit_timeout must not be negative, got %v", c.ExitTimeout)
	}
	return nil
}
