// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vesc implements the subset of the VESC UART protocol used by the
// stick controller: frame encoding, an incremental frame decoder, command
// payload builders and response parsers.
//
// Frames on the wire are [start][length][payload][crc16 BE][end]. Only the
// short form (start 0x02, one length byte) is produced or accepted; frames
// using the long form (start 0x03, two length bytes) are reported as
// unsupported.
package vesc

// Protocol framing bytes
const (
	StartShort = 0x02
	StartLong  = 0x03
	EndByte    = 0x03
)

// Frame size limits
const (
	MaxShortPayload = 255
	frameOverhead   = 5 // start + length + crc(2) + end
	MaxFrameSize    = MaxShortPayload + frameOverhead
)

// Command identifies a request or response payload by its first byte.
type Command uint8

// Command ids understood by the motor unit
const (
	CmdFirmwareVersion Command = 0
	CmdGetValues       Command = 4
	CmdSetDuty         Command = 5
	CmdSetCurrent      Command = 6
	CmdSetCurrentBrake Command = 7
	CmdSetRPM          Command = 8
	CmdSetPos          Command = 9
	CmdSetHandbrake    Command = 10
	CmdAlive           Command = 30
	CmdForwardCAN      Command = 34
)

// String returns the command name
func (c Command) String() string {
	switch c {
	case CmdFirmwareVersion:
		return "FW_VERSION"
	case CmdGetValues:
		return "GET_VALUES"
	case CmdSetDuty:
		return "SET_DUTY"
	case CmdSetCurrent:
		return "SET_CURRENT"
	case CmdSetCurrentBrake:
		return "SET_CURRENT_BRAKE"
	case CmdSetRPM:
		return "SET_RPM"
	case CmdSetPos:
		return "SET_POS"
	case CmdSetHandbrake:
		return "SET_HANDBRAKE"
	case CmdAlive:
		return "ALIVE"
	case CmdForwardCAN:
		return "FORWARD_CAN"
	default:
		return "UNKNOWN"
	}
}

// FaultCode is the fault byte reported in the values response.
type FaultCode uint8

// Fault codes reported by the motor unit
const (
	FaultNone FaultCode = iota
	FaultOverVoltage
	FaultUnderVoltage
	FaultDRV
	FaultAbsOverCurrent
	FaultOverTempFET
	FaultOverTempMotor
	FaultGateDriverOverVoltage
	FaultGateDriverUnderVoltage
	FaultMCUUnderVoltage
	FaultBootingFromWatchdogReset
	FaultEncoderSPI
	FaultEncoderSinCosBelowMinAmplitude
	FaultEncoderSinCosAboveMaxAmplitude
	FaultFlashCorruption
	FaultHighOffsetCurrentSensor1
	FaultHighOffsetCurrentSensor2
	FaultHighOffsetCurrentSensor3
	FaultUnbalancedCurrents
	FaultBRK
	FaultResolverLOT
	FaultResolverDOS
	FaultResolverLOS
	FaultFlashCorruptionAppCfg
	FaultFlashCorruptionMCCfg
	FaultEncoderNoMagnet
	FaultEncoderMagnetTooStrong
	FaultPhaseFilter
)

var faultNames = map[FaultCode]string{
	FaultNone:                           "None",
	FaultOverVoltage:                    "Over Voltage",
	FaultUnderVoltage:                   "Under Voltage",
	FaultDRV:                            "DRV Fault",
	FaultAbsOverCurrent:                 "Over Current",
	FaultOverTempFET:                    "FET Over Temp",
	FaultOverTempMotor:                  "Motor Over Temp",
	FaultGateDriverOverVoltage:          "Gate OV",
	FaultGateDriverUnderVoltage:         "Gate UV",
	FaultMCUUnderVoltage:                "MCU UV",
	FaultBootingFromWatchdogReset:       "Watchdog Reset",
	FaultEncoderSPI:                     "Encoder SPI",
	FaultEncoderSinCosBelowMinAmplitude: "Encoder SinCos Low",
	FaultEncoderSinCosAboveMaxAmplitude: "Encoder SinCos High",
	FaultFlashCorruption:                "Flash Corruption",
	FaultHighOffsetCurrentSensor1:       "Current Sensor 1 Offset",
	FaultHighOffsetCurrentSensor2:       "Current Sensor 2 Offset",
	FaultHighOffsetCurrentSensor3:       "Current Sensor 3 Offset",
	FaultUnbalancedCurrents:             "Unbalanced Currents",
	FaultBRK:                            "BRK",
	FaultResolverLOT:                    "Resolver LOT",
	FaultResolverDOS:                    "Resolver DOS",
	FaultResolverLOS:                    "Resolver LOS",
	FaultFlashCorruptionAppCfg:          "App Config Corruption",
	FaultFlashCorruptionMCCfg:           "Motor Config Corruption",
	FaultEncoderNoMagnet:                "Encoder No Magnet",
	FaultEncoderMagnetTooStrong:         "Encoder Magnet Too Strong",
	FaultPhaseFilter:                    "Phase Filter",
}

// String returns a short human readable fault description
func (f FaultCode) String() string {
	if name, ok := faultNames[f]; ok {
		return name
	}
	return "Unknown"
}
