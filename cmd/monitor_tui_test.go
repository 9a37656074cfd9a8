// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"strings"
	"testing"

	"github.com/Thermoquad/stickctl/pkg/control"
	"github.com/Thermoquad/stickctl/pkg/gpio"
	"github.com/Thermoquad/stickctl/pkg/input"
	"github.com/Thermoquad/stickctl/pkg/telemetry"
	"github.com/Thermoquad/stickctl/pkg/vesc"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

type stubState struct {
	state control.State
}

func (s *stubState) State() control.State {
	return s.state
}

func newTestMonitor() (monitorModel, *stubState) {
	ctl := &stubState{}
	var buttons [3]*gpio.VirtualButton
	for i := range buttons {
		buttons[i] = &gpio.VirtualButton{}
	}
	ind := gpio.NewIndicatorBank(&gpio.VirtualOutput{}, &gpio.VirtualOutput{}, &gpio.VirtualOutput{}, gpio.ActiveHigh)
	m := initialMonitorModel("Serial: test", ctl, telemetry.NewStore(), ind, vesc.NewStatistics(), buttons)
	return m, ctl
}

func press(t *testing.T, m monitorModel, keys string) monitorModel {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	return next.(monitorModel)
}

func TestMonitor_KeysToggleButtons(t *testing.T) {
	m, _ := newTestMonitor()

	m = press(t, m, "1")
	require.True(t, m.buttons[0].Pressed())
	m = press(t, m, "3")
	require.True(t, m.buttons[2].Pressed())
	m = press(t, m, "1")
	require.False(t, m.buttons[0].Pressed())

	panel := input.NewPanel(m.buttons[0], m.buttons[1], m.buttons[2])
	require.Equal(t, input.RawState{Fast: true}, panel.Sample())

	m = press(t, m, "a")
	require.True(t, panel.Sample().AllAsserted())
	m = press(t, m, "r")
	require.Equal(t, input.RawState{}, panel.Sample())
	require.Len(t, m.eventLog, 5)
}

func TestMonitor_QuitKey(t *testing.T) {
	m, _ := newTestMonitor()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	require.True(t, next.(monitorModel).quitting)
}

func TestMonitor_ObserveLogsTransitions(t *testing.T) {
	m, ctl := newTestMonitor()

	m.observe()
	require.Len(t, m.eventLog, 2) // initial mode and link state
	require.Contains(t, m.eventLog[0].message, "NORMAL")
	require.True(t, m.eventLog[1].isError)

	m.observe()
	require.Len(t, m.eventLog, 2)

	ctl.state = control.State{Mode: control.Normal, Level: input.Medium, Current: 10}
	m.observe()
	require.Len(t, m.eventLog, 3)
	require.Contains(t, m.eventLog[2].message, "MEDIUM")

	ctl.state = control.State{Mode: control.EmergencyStop}
	m.observe()
	last := m.eventLog[len(m.eventLog)-1]
	require.True(t, strings.Contains(last.message, "EMERGENCY_STOP") || strings.Contains(last.message, "OFF"))

	ctl.state.ExitStep = 1
	m.observe()
	require.Contains(t, m.eventLog[len(m.eventLog)-1].message, "step 1/3")
}

func TestMonitor_LogLinesBecomeEvents(t *testing.T) {
	m, _ := newTestMonitor()
	next, _ := m.Update(logLineMsg("WARN\tmotor unit link lost"))
	m = next.(monitorModel)
	next, _ = m.Update(logLineMsg("INFO\tmotor unit link up"))
	m = next.(monitorModel)

	require.Len(t, m.eventLog, 2)
	require.True(t, m.eventLog[0].isError)
	require.False(t, m.eventLog[1].isError)
}

func TestMonitor_EventLogBounded(t *testing.T) {
	m, _ := newTestMonitor()
	for i := 0; i < 250; i++ {
		m.addLogEntry("event", false)
	}
	require.Len(t, m.eventLog, m.maxLogEntries)
}

func TestMonitor_ViewRenders(t *testing.T) {
	m, ctl := newTestMonitor()
	ctl.state = control.State{Mode: control.EmergencyStop, ExitStep: 2}
	view := m.View()
	require.Contains(t, view, "EMERGENCY_STOP")
	require.Contains(t, view, "2/3")
	require.Contains(t, view, "Waiting for first values")
}

func TestProgramWriter_DropsBeforeAttach(t *testing.T) {
	w := &programWriter{}
	n, err := w.Write([]byte("INFO\tstarting\n"))
	require.NoError(t, err)
	require.Equal(t, 14, n)
}

func TestMonitor_StatsShowSendErrors(t *testing.T) {
	m, _ := newTestMonitor()
	require.NotContains(t, m.statsView(), "send errors")

	m.stats.RecordWriteError()
	view := m.statsView()
	require.Contains(t, view, "send errors")
}
