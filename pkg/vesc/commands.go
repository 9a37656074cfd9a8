// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"encoding/binary"
	"math"
)

// Command payload builders. Each returns an unframed payload; wrap it with
// EncodeFrame (or hand it to a transport) before sending.

// NewFirmwareVersionCommand requests the firmware version
func NewFirmwareVersionCommand() []byte {
	return []byte{byte(CmdFirmwareVersion)}
}

// NewGetValuesCommand requests the realtime values block
func NewGetValuesCommand() []byte {
	return []byte{byte(CmdGetValues)}
}

// NewAliveCommand keeps the motor unit's command timeout from expiring
func NewAliveCommand() []byte {
	return []byte{byte(CmdAlive)}
}

// NewSetDutyCommand sets the duty cycle (-1.0 to 1.0)
func NewSetDutyCommand(duty float64) []byte {
	return scaledCommand(CmdSetDuty, duty, 100000)
}

// NewSetCurrentCommand sets the motor current in amps
func NewSetCurrentCommand(amps float64) []byte {
	return scaledCommand(CmdSetCurrent, amps, 1000)
}

// NewSetBrakeCurrentCommand sets the brake current in amps
func NewSetBrakeCurrentCommand(amps float64) []byte {
	return scaledCommand(CmdSetCurrentBrake, amps, 1000)
}

// NewSetRPMCommand sets the electrical RPM
func NewSetRPMCommand(rpm int32) []byte {
	return int32Command(CmdSetRPM, rpm)
}

func scaledCommand(cmd Command, value, scale float64) []byte {
	return int32Command(cmd, clampInt32(value*scale))
}

func int32Command(cmd Command, value int32) []byte {
	payload := make([]byte, 5)
	payload[0] = byte(cmd)
	binary.BigEndian.PutUint32(payload[1:], uint32(value))
	return payload
}

// clampInt32 truncates toward zero and saturates at the int32 range.
// NaN maps to zero.
func clampInt32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	default:
		return int32(v)
	}
}
