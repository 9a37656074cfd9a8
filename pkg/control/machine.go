// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package control implements the button-driven motor control loop and its
// emergency-stop interlock.
//
// In Normal mode the resolved button level is translated into a motor
// current. Holding all three buttons for the hold dwell enters
// EmergencyStop, which commands zero current every cycle and blinks the
// indicators until the exit sequence (press and release slow, then medium,
// then fast) is entered.
package control

import (
	"sync/atomic"
	"time"

	"github.com/Thermoquad/stickctl/pkg/input"
	"github.com/Thermoquad/stickctl/pkg/vesc"
	"go.uber.org/zap"
)

// Sender transmits a command payload to the motor unit
type Sender interface {
	Send(payload []byte) error
}

// Indicators shows the commanded level
type Indicators interface {
	Show(level input.PowerLevel) error
	SetAll(on bool) error
}

// Machine is the control state machine. Step must be called from a single
// goroutine; State may be read from any.
type Machine struct {
	cfg  Config
	link Sender
	ind  Indicators
	log  *zap.SugaredLogger

	published atomic.Pointer[State]

	mode     Mode
	level    input.PowerLevel
	current  float64
	exitStep int

	prevRaw    input.RawState
	holding    bool
	holdStart  time.Time
	sendFailed bool

	blinkOn      bool
	lastBlink    time.Time
	lastExitEdge time.Time
}

// NewMachine creates a machine in Normal mode with level Off. A nil logger
// disables logging.
func NewMachine(cfg Config, link Sender, ind Indicators, log *zap.SugaredLogger) *Machine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := &Machine{
		cfg:  cfg,
		link: link,
		ind:  ind,
		log:  log,
	}
	m.publish()
	return m
}

// State returns the last published control state
func (m *Machine) State() State {
	return *m.published.Load()
}

func (m *Machine) publish() {
	m.published.Store(&State{
		Mode:     m.mode,
		Level:    m.level,
		Current:  m.current,
		ExitStep: m.exitStep,
	})
}

// Step runs one control cycle against a fresh button sample
func (m *Machine) Step(now time.Time, raw input.RawState) {
	switch m.mode {
	case Normal:
		m.stepNormal(now, raw)
	case EmergencyStop:
		m.stepEmergencyStop(now, raw)
	}
	m.prevRaw = raw
}

func (m *Machine) stepNormal(now time.Time, raw input.RawState) {
	if raw.AllAsserted() {
		if !m.holding {
			m.holding = true
			m.holdStart = now
		}
		if now.Sub(m.holdStart) >= m.cfg.HoldDwell {
			m.enterEmergencyStop(now)
			return
		}
	} else {
		m.holding = false
	}

	level := input.Resolve(raw)
	if level == m.level && !m.sendFailed {
		return
	}

	m.level = level
	m.current = m.cfg.CurrentFor(level)
	m.publish()

	m.sendCurrent(m.current)
	if err := m.ind.Show(level); err != nil {
		m.log.Debugw("indicator update failed", "error", err)
	}
	m.log.Debugw("level commanded", "level", level.String(), "current", m.current)
}

func (m *Machine) enterEmergencyStop(now time.Time) {
	m.mode = EmergencyStop
	m.level = input.Off
	m.current = 0
	m.exitStep = 0
	m.holding = false
	m.publish()

	m.log.Warnw("emergency stop engaged", "hold", now.Sub(m.holdStart))

	m.sendCurrent(0)
	m.blinkOn = true
	m.lastBlink = now
	if err := m.ind.SetAll(true); err != nil {
		m.log.Debugw("indicator update failed", "error", err)
	}
}

func (m *Machine) stepEmergencyStop(now time.Time, raw input.RawState) {
	m.sendCurrent(0)

	if now.Sub(m.lastBlink) >= m.cfg.BlinkInterval {
		m.blinkOn = !m.blinkOn
		m.lastBlink = now
		if err := m.ind.SetAll(m.blinkOn); err != nil {
			m.log.Debugw("indicator update failed", "error", err)
		}
	}

	if m.exitStep > 0 && m.cfg.ExitTimeout > 0 && now.Sub(m.lastExitEdge) >= m.cfg.ExitTimeout {
		m.log.Infow("exit sequence timed out", "step", m.exitStep)
		m.exitStep = 0
		m.publish()
	}

	changed := edges(m.prevRaw, raw)
	if len(changed) == 0 {
		return
	}

	// A step counts only as the single edge of its cycle with no other
	// button held. Chords restart the sequence.
	if len(changed) > 1 || raw != changed[0].settled() {
		if m.exitStep > 0 {
			m.log.Infow("exit sequence restarted", "step", m.exitStep,
				"slow", raw.Slow, "medium", raw.Medium, "fast", raw.Fast)
			m.exitStep = 0
			m.publish()
		}
		return
	}
	if changed[0] != ExitSequence[m.exitStep] {
		return
	}

	m.exitStep++
	m.lastExitEdge = now
	if m.exitStep == len(ExitSequence) {
		m.exitEmergencyStop()
		return
	}
	m.publish()
}

func (m *Machine) exitEmergencyStop() {
	m.mode = Normal
	m.level = input.Off
	m.current = 0
	m.exitStep = 0
	m.holding = false
	m.publish()

	m.log.Infow("emergency stop released")

	m.blinkOn = false
	if err := m.ind.SetAll(false); err != nil {
		m.log.Debugw("indicator update failed", "error", err)
	}
}

// sendCurrent commands a motor current. Failures are not retried within the
// cycle; Normal mode resends on the next cycle.
func (m *Machine) sendCurrent(amps float64) {
	err := m.link.Send(vesc.NewSetCurrentCommand(amps))
	switch {
	case err != nil && !m.sendFailed:
		m.log.Warnw("current command failed", "current", amps, "error", err)
	case err != nil:
		m.log.Debugw("current command failed", "current", amps, "error", err)
	case m.sendFailed:
		m.log.Infow("current command delivered again", "current", amps)
	}
	m.sendFailed = err != nil
}

// Shutdown commands zero current and clears the indicators
func (m *Machine) Shutdown() {
	m.level = input.Off
	m.current = 0
	m.publish()
	m.sendCurrent(0)
	if err := m.ind.SetAll(false); err != nil {
		m.log.Debugw("indicator update failed", "error", err)
	}
}
