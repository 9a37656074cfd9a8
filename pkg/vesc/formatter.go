// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")

	cmd, ok := f.Command()
	if !ok {
		return fmt.Sprintf("[%s] EMPTY len=0\n", timestamp)
	}

	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d crc=0x%04X\n",
		timestamp, cmd, uint8(cmd), len(f.Payload()), f.CRC())
	result += FormatPayload(f.Payload())
	return result
}

// FormatPayload decodes known response payloads into indented lines.
// Unknown payloads are shown as a hex dump.
func FormatPayload(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}

	switch Command(payload[0]) {
	case CmdGetValues:
		v, err := ParseValues(payload)
		if err != nil {
			return fmt.Sprintf("  error: %v\n", err)
		}
		return FormatValues(v)

	case CmdFirmwareVersion:
		fw, err := ParseFirmwareVersion(payload)
		if err != nil {
			return fmt.Sprintf("  error: %v\n", err)
		}
		return fmt.Sprintf("  firmware: %s\n", fw)

	default:
		if len(payload) > 1 {
			return fmt.Sprintf("  data: %s\n", FormatHex(payload[1:]))
		}
		return ""
	}
}

// FormatValues renders a values block one field per line
func FormatValues(v Values) string {
	var s strings.Builder
	fmt.Fprintf(&s, "  input:   %.1f V, %.2f A\n", v.InputVoltage, v.AvgInputCurrent)
	fmt.Fprintf(&s, "  motor:   %.2f A, %.0f erpm, duty %.1f%%\n", v.AvgMotorCurrent, v.RPM, v.DutyCycle*100)
	fmt.Fprintf(&s, "  temp:    fet %.1f°C, motor %.1f°C\n", v.TempMOSFET, v.TempMotor)
	fmt.Fprintf(&s, "  energy:  %.4f Ah (%.4f Ah charged), %.4f Wh (%.4f Wh charged)\n",
		v.AmpHours, v.AmpHoursCharged, v.WattHours, v.WattHoursCharged)
	fmt.Fprintf(&s, "  tach:    %d (abs %d)\n", v.Tachometer, v.TachometerAbs)
	fmt.Fprintf(&s, "  fault:   %s (%d)\n", v.Fault, uint8(v.Fault))
	fmt.Fprintf(&s, "  pid pos: %.6f, controller id %d\n", v.PIDPos, v.ControllerID)
	return s.String()
}

// FormatHex formats bytes as space-separated hex pairs
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
