// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import "fmt"

// AnomalyType represents the kinds of implausible realtime values
type AnomalyType int

const (
	AnomalyInvalidVoltage AnomalyType = iota
	AnomalyInvalidTemp
	AnomalyInvalidDuty
	AnomalyUnknownFault
)

// Plausibility limits for a values block. Readings outside them point at a
// misparsed frame or a failing sensor, not at real operating conditions.
const (
	MaxInputVoltage = 120.0
	MinTemperature  = -40.0
	MaxTemperature  = 150.0
	MaxDutyCycle    = 1.0
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyInvalidVoltage:
		return "invalid voltage"
	case AnomalyInvalidTemp:
		return "invalid temperature"
	case AnomalyInvalidDuty:
		return "invalid duty"
	case AnomalyUnknownFault:
		return "unknown fault"
	default:
		return "unknown anomaly"
	}
}

// ValidationError describes one implausible value
type ValidationError struct {
	Type    AnomalyType
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateValues checks a values block against the plausibility limits.
// Returns an empty slice when every field is plausible.
func ValidateValues(v Values) []ValidationError {
	errors := []ValidationError{}

	if v.InputVoltage < 0 || v.InputVoltage > MaxInputVoltage {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidVoltage,
			Message: fmt.Sprintf("Input voltage %.1f V outside 0..%.0f V", v.InputVoltage, MaxInputVoltage),
		})
	}

	for _, t := range []struct {
		name  string
		value float64
	}{
		{"MOSFET", v.TempMOSFET},
		{"motor", v.TempMotor},
	} {
		if t.value < MinTemperature || t.value > MaxTemperature {
			errors = append(errors, ValidationError{
				Type: AnomalyInvalidTemp,
				Message: fmt.Sprintf("%s temperature %.1f°C outside %.0f..%.0f°C",
					t.name, t.value, MinTemperature, MaxTemperature),
			})
		}
	}

	if v.DutyCycle < -MaxDutyCycle || v.DutyCycle > MaxDutyCycle {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidDuty,
			Message: fmt.Sprintf("Duty cycle %.3f outside -1..1", v.DutyCycle),
		})
	}

	if _, known := faultNames[v.Fault]; !known {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownFault,
			Message: fmt.Sprintf("Unknown fault code %d", uint8(v.Fault)),
		})
	}

	return errors
}
