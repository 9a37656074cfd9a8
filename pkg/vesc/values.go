// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import "fmt"

// valuesPayloadSize is the GET_VALUES response length including the id byte
const valuesPayloadSize = 59

// Values is the decoded GET_VALUES response
type Values struct {
	TempMOSFET        float64   `json:"temp_mosfet" cbor:"temp_mosfet"`
	TempMotor         float64   `json:"temp_motor" cbor:"temp_motor"`
	AvgMotorCurrent   float64   `json:"avg_motor_current" cbor:"avg_motor_current"`
	AvgInputCurrent   float64   `json:"avg_input_current" cbor:"avg_input_current"`
	DutyCycle         float64   `json:"duty_cycle" cbor:"duty_cycle"`
	RPM               float64   `json:"rpm" cbor:"rpm"`
	InputVoltage      float64   `json:"input_voltage" cbor:"input_voltage"`
	AmpHours          float64   `json:"amp_hours" cbor:"amp_hours"`
	AmpHoursCharged   float64   `json:"amp_hours_charged" cbor:"amp_hours_charged"`
	WattHours         float64   `json:"watt_hours" cbor:"watt_hours"`
	WattHoursCharged  float64   `json:"watt_hours_charged" cbor:"watt_hours_charged"`
	Tachometer        int32     `json:"tachometer" cbor:"tachometer"`
	TachometerAbs     int32     `json:"tachometer_abs" cbor:"tachometer_abs"`
	Fault             FaultCode `json:"fault" cbor:"fault"`
	PIDPos            float64   `json:"pid_pos" cbor:"pid_pos"`
	ControllerID      uint8     `json:"controller_id" cbor:"controller_id"`
}

// ParseValues decodes a GET_VALUES response payload.
// Fields appended by newer firmware after controller_id are ignored.
func ParseValues(payload []byte) (Values, error) {
	var v Values

	r := NewReader(payload)
	if id := Command(r.Uint8()); r.Err() == nil && id != CmdGetValues {
		return v, fmt.Errorf("%w: got %s (%d), want %s", ErrUnexpectedResponse, id, uint8(id), CmdGetValues)
	}

	v.TempMOSFET = r.Float16(10)
	v.TempMotor = r.Float16(10)
	v.AvgMotorCurrent = r.Float32(100)
	v.AvgInputCurrent = r.Float32(100)
	r.Skip(4) // avg_id
	r.Skip(4) // avg_iq
	v.DutyCycle = r.Float16(1000)
	v.RPM = r.Float32(1)
	v.InputVoltage = r.Float16(10)
	v.AmpHours = r.Float32(10000)
	v.AmpHoursCharged = r.Float32(10000)
	v.WattHours = r.Float32(10000)
	v.WattHoursCharged = r.Float32(10000)
	v.Tachometer = r.Int32()
	v.TachometerAbs = r.Int32()
	v.Fault = FaultCode(r.Uint8())
	v.PIDPos = r.Float32(1000000)
	v.ControllerID = r.Uint8()

	if err := r.Err(); err != nil {
		return Values{}, fmt.Errorf("values response: %w", err)
	}
	return v, nil
}

// FirmwareVersion is the decoded FW_VERSION response
type FirmwareVersion struct {
	Major uint8 `json:"major" cbor:"major"`
	Minor uint8 `json:"minor" cbor:"minor"`
}

func (f FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%02d", f.Major, f.Minor)
}

// ParseFirmwareVersion decodes a FW_VERSION response payload.
// Hardware name and UUID fields sent by newer firmware are ignored.
func ParseFirmwareVersion(payload []byte) (FirmwareVersion, error) {
	var fw FirmwareVersion

	r := NewReader(payload)
	if id := Command(r.Uint8()); r.Err() == nil && id != CmdFirmwareVersion {
		return fw, fmt.Errorf("%w: got %s (%d), want %s", ErrUnexpectedResponse, id, uint8(id), CmdFirmwareVersion)
	}
	fw.Major = r.Uint8()
	fw.Minor = r.Uint8()

	if err := r.Err(); err != nil {
		return FirmwareVersion{}, fmt.Errorf("firmware version response: %w", err)
	}
	return fw, nil
}
