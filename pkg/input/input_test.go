// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package input

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type levelLine bool

func (l levelLine) Read() bool {
	return bool(l)
}

func TestResolve_AllCombinations(t *testing.T) {
	tests := []struct {
		raw      RawState
		expected PowerLevel
	}{
		{RawState{}, Off},
		{RawState{Slow: true}, Slow},
		{RawState{Medium: true}, Medium},
		{RawState{Fast: true}, Fast},
		{RawState{Slow: true, Medium: true}, Medium},
		{RawState{Slow: true, Fast: true}, Fast},
		{RawState{Medium: true, Fast: true}, Fast},
		{RawState{Slow: true, Medium: true, Fast: true}, Fast},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, Resolve(tt.raw), "%+v", tt.raw)
	}
}

func TestRawState_AllAsserted(t *testing.T) {
	require.True(t, RawState{Slow: true, Medium: true, Fast: true}.AllAsserted())
	require.False(t, RawState{Slow: true, Medium: true}.AllAsserted())
	require.False(t, RawState{}.AllAsserted())
}

func TestPowerLevel_String(t *testing.T) {
	require.Equal(t, "OFF", Off.String())
	require.Equal(t, "SLOW", Slow.String())
	require.Equal(t, "MEDIUM", Medium.String())
	require.Equal(t, "FAST", Fast.String())
	require.Equal(t, "UNKNOWN", PowerLevel(9).String())
}

func TestPanel_ActiveLow(t *testing.T) {
	// Pulled-up lines read high when released
	p := NewPanel(levelLine(false), levelLine(true), levelLine(true))
	require.Equal(t, RawState{Slow: true}, p.Sample())

	p = NewPanel(levelLine(true), levelLine(true), levelLine(true))
	require.Equal(t, RawState{}, p.Sample())

	p = NewPanel(levelLine(false), levelLine(false), levelLine(false))
	require.True(t, p.Sample().AllAsserted())
}
