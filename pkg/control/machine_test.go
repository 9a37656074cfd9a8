// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package control

import (
	"context"
	"encoding/binary"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/stickctl/pkg/gpio"
	"github.com/Thermoquad/stickctl/pkg/input"
	"github.com/Thermoquad/stickctl/pkg/vesc"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Test Helpers
// ============================================================

type fakeSender struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (f *fakeSender) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.err
}

// currents decodes every SET_CURRENT sent so far and clears the record
func (f *fakeSender) currents(t *testing.T) []float64 {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []float64
	for _, p := range f.payloads {
		require.Len(t, p, 5)
		require.Equal(t, byte(vesc.CmdSetCurrent), p[0])
		out = append(out, float64(int32(binary.BigEndian.Uint32(p[1:])))/1000)
	}
	f.payloads = nil
	return out
}

type fakeIndicators struct {
	shown  []input.PowerLevel
	allOn  []bool
	lastOn *bool
}

func (f *fakeIndicators) Show(level input.PowerLevel) error {
	f.shown = append(f.shown, level)
	return nil
}

func (f *fakeIndicators) SetAll(on bool) error {
	f.allOn = append(f.allOn, on)
	f.lastOn = &on
	return nil
}

var (
	none   = input.RawState{}
	slow   = input.RawState{Slow: true}
	medium = input.RawState{Medium: true}
	fast   = input.RawState{Fast: true}
	all    = input.RawState{Slow: true, Medium: true, Fast: true}
)

// newRng seeds from FUZZ_SEED when set and logs the seed for reproducibility
func newRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Time {
	return t0.Add(time.Duration(n) * time.Millisecond)
}

func newTestMachine(cfg Config) (*Machine, *fakeSender, *fakeIndicators) {
	sender := &fakeSender{}
	ind := &fakeIndicators{}
	return NewMachine(cfg, sender, ind, nil), sender, ind
}

// engage runs the machine into emergency stop and releases all buttons
func engage(t *testing.T, m *Machine, sender *fakeSender) time.Time {
	t.Helper()
	m.Step(ms(0), all)
	m.Step(ms(2000), all)
	require.Equal(t, EmergencyStop, m.State().Mode)
	m.Step(ms(2020), none)
	sender.currents(t)
	return ms(2020)
}

// ============================================================
// Normal Mode Tests
// ============================================================

func TestMachine_InitialState(t *testing.T) {
	m, _, _ := newTestMachine(DefaultConfig())
	require.Equal(t, State{Mode: Normal, Level: input.Off}, m.State())
}

func TestMachine_CommandsLevelOnChange(t *testing.T) {
	m, sender, ind := newTestMachine(DefaultConfig())

	m.Step(ms(0), slow)
	require.Equal(t, []float64{5}, sender.currents(t))
	require.Equal(t, State{Mode: Normal, Level: input.Slow, Current: 5}, m.State())

	// Unchanged level sends nothing
	m.Step(ms(20), slow)
	m.Step(ms(40), slow)
	require.Empty(t, sender.currents(t))

	m.Step(ms(60), input.RawState{Slow: true, Fast: true})
	require.Equal(t, []float64{20}, sender.currents(t))
	require.Equal(t, input.Fast, m.State().Level)

	m.Step(ms(80), none)
	require.Equal(t, []float64{0}, sender.currents(t))
	require.Equal(t, State{Mode: Normal, Level: input.Off, Current: 0}, m.State())

	require.Equal(t, []input.PowerLevel{input.Slow, input.Fast, input.Off}, ind.shown)
}

func TestMachine_ResendsAfterFailedSend(t *testing.T) {
	m, sender, _ := newTestMachine(DefaultConfig())
	sender.err = errors.New("uart busy")

	m.Step(ms(0), medium)
	require.Equal(t, []float64{10}, sender.currents(t))

	// Level unchanged but the previous command never went out
	m.Step(ms(20), medium)
	require.Equal(t, []float64{10}, sender.currents(t))

	sender.err = nil
	m.Step(ms(40), medium)
	require.Equal(t, []float64{10}, sender.currents(t))

	m.Step(ms(60), medium)
	require.Empty(t, sender.currents(t))
}

// ============================================================
// Trigger Tests
// ============================================================

func TestMachine_TriggerDwellBoundary(t *testing.T) {
	m, _, _ := newTestMachine(DefaultConfig())
	m.Step(ms(0), all)
	m.Step(ms(1999), all)
	require.Equal(t, Normal, m.State().Mode)

	m.Step(ms(2000), all)
	require.Equal(t, EmergencyStop, m.State().Mode)
	require.Equal(t, input.Off, m.State().Level)
	require.Equal(t, 0.0, m.State().Current)
}

func TestMachine_ReleaseCancelsHold(t *testing.T) {
	m, _, _ := newTestMachine(DefaultConfig())
	m.Step(ms(0), all)
	m.Step(ms(1500), all)
	m.Step(ms(1520), input.RawState{Slow: true, Medium: true})
	m.Step(ms(1540), all)
	m.Step(ms(3000), all)
	require.Equal(t, Normal, m.State().Mode)

	m.Step(ms(3540), all)
	require.Equal(t, EmergencyStop, m.State().Mode)
}

func TestMachine_TriggerCommandsZeroAndLightsAll(t *testing.T) {
	m, sender, ind := newTestMachine(DefaultConfig())
	m.Step(ms(0), all)
	require.Equal(t, []float64{20}, sender.currents(t))

	m.Step(ms(2000), all)
	require.Equal(t, []float64{0}, sender.currents(t))
	require.NotNil(t, ind.lastOn)
	require.True(t, *ind.lastOn)
}

// ============================================================
// Emergency Stop Tests
// ============================================================

func TestMachine_ZeroCurrentEveryCycle(t *testing.T) {
	m, sender, _ := newTestMachine(DefaultConfig())
	now := engage(t, m, sender)

	samples := []input.RawState{none, fast, all, medium, none, slow, all, fast}
	for i, raw := range samples {
		m.Step(now.Add(time.Duration(i+1)*20*time.Millisecond), raw)
	}

	currents := sender.currents(t)
	require.Len(t, currents, len(samples))
	for _, c := range currents {
		require.Equal(t, 0.0, c)
	}
	require.Equal(t, EmergencyStop, m.State().Mode)
	require.Equal(t, 0.0, m.State().Current)
}

func TestMachine_ZeroCurrentEvenWhenSendFails(t *testing.T) {
	m, sender, _ := newTestMachine(DefaultConfig())
	now := engage(t, m, sender)
	sender.err = errors.New("uart busy")

	for i := 1; i <= 5; i++ {
		m.Step(now.Add(time.Duration(i)*20*time.Millisecond), fast)
	}
	require.Equal(t, []float64{0, 0, 0, 0, 0}, sender.currents(t))
}

func TestMachine_FullExitSequence(t *testing.T) {
	m, sender, ind := newTestMachine(DefaultConfig())
	now := engage(t, m, sender)

	sequence := []input.RawState{slow, none, medium, none, fast, none}
	for i, raw := range sequence {
		now = now.Add(20 * time.Millisecond)
		m.Step(now, raw)
		if i < len(sequence)-1 {
			require.Equal(t, EmergencyStop, m.State().Mode, "step %d", i)
			require.Equal(t, i+1, m.State().ExitStep, "step %d", i)
		}
	}

	require.Equal(t, State{Mode: Normal, Level: input.Off, Current: 0, ExitStep: 0}, m.State())
	require.NotNil(t, ind.lastOn)
	require.False(t, *ind.lastOn)

	// Back in Normal the buttons drive the motor again
	sender.currents(t)
	m.Step(now.Add(20*time.Millisecond), medium)
	require.Equal(t, []float64{10}, sender.currents(t))
}

func TestMachine_ExitSequenceIgnoresWrongEdges(t *testing.T) {
	m, sender, _ := newTestMachine(DefaultConfig())
	now := engage(t, m, sender)
	step := func(raw input.RawState) {
		now = now.Add(20 * time.Millisecond)
		m.Step(now, raw)
	}

	// Wrong first button: no progress
	step(medium)
	step(none)
	step(fast)
	step(none)
	require.Equal(t, 0, m.State().ExitStep)

	step(slow)
	require.Equal(t, 1, m.State().ExitStep)

	// Fast press before slow release restarts the sequence
	step(input.RawState{Slow: true, Fast: true})
	require.Equal(t, 0, m.State().ExitStep)
	step(fast)
	require.Equal(t, 0, m.State().ExitStep)
	step(none)
	require.Equal(t, 0, m.State().ExitStep)

	step(slow)
	step(none)
	require.Equal(t, 2, m.State().ExitStep)

	// Skipping medium never exits
	step(fast)
	step(none)
	require.Equal(t, EmergencyStop, m.State().Mode)
	require.Equal(t, 2, m.State().ExitStep)

	step(medium)
	step(none)
	step(fast)
	step(none)
	require.Equal(t, Normal, m.State().Mode)
}

func TestMachine_RepeatedGripsNeverExit(t *testing.T) {
	m, sender, _ := newTestMachine(DefaultConfig())
	now := engage(t, m, sender)
	step := func(raw input.RawState) {
		now = now.Add(20 * time.Millisecond)
		m.Step(now, raw)
	}

	for i := 0; i < 10; i++ {
		step(all)
		step(none)
		require.Equal(t, EmergencyStop, m.State().Mode, "grip %d", i)
		require.Equal(t, 0, m.State().ExitStep, "grip %d", i)
	}

	// Two-button chords are not steps either
	step(input.RawState{Slow: true, Medium: true})
	step(none)
	step(input.RawState{Medium: true, Fast: true})
	step(none)
	require.Equal(t, 0, m.State().ExitStep)

	// A grip part way through throws away the progress
	step(slow)
	step(none)
	require.Equal(t, 2, m.State().ExitStep)
	step(all)
	require.Equal(t, 0, m.State().ExitStep)
	step(none)
	require.Equal(t, 0, m.State().ExitStep)

	for _, c := range sender.currents(t) {
		require.Equal(t, 0.0, c)
	}

	for _, raw := range []input.RawState{slow, none, medium, none, fast, none} {
		step(raw)
	}
	require.Equal(t, Normal, m.State().Mode)
}

func TestMachine_ReleasesAfterTriggerDoNotCount(t *testing.T) {
	m, _, _ := newTestMachine(DefaultConfig())
	m.Step(ms(0), all)
	m.Step(ms(2000), all)

	// Letting go of the buttons in any order produces release edges only
	m.Step(ms(2020), input.RawState{Medium: true, Fast: true})
	m.Step(ms(2040), input.RawState{Fast: true})
	m.Step(ms(2060), none)
	require.Equal(t, 0, m.State().ExitStep)
	require.Equal(t, EmergencyStop, m.State().Mode)
}

func TestMachine_ExitTimeoutResetsCursor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExitTimeout = time.Second
	m, sender, _ := newTestMachine(cfg)
	now := engage(t, m, sender)

	m.Step(now.Add(20*time.Millisecond), slow)
	m.Step(now.Add(40*time.Millisecond), none)
	require.Equal(t, 2, m.State().ExitStep)

	m.Step(now.Add(1039*time.Millisecond), none)
	require.Equal(t, 2, m.State().ExitStep)

	m.Step(now.Add(1040*time.Millisecond), none)
	require.Equal(t, 0, m.State().ExitStep)

	// Continuing from the old position no longer works
	m.Step(now.Add(1060*time.Millisecond), medium)
	require.Equal(t, 0, m.State().ExitStep)
}

func TestMachine_ExitTimeoutDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExitTimeout = 0
	m, sender, _ := newTestMachine(cfg)
	now := engage(t, m, sender)

	m.Step(now.Add(20*time.Millisecond), slow)
	m.Step(now.Add(time.Hour), none)
	require.Equal(t, 2, m.State().ExitStep)
}

func TestMachine_BlinkToggles(t *testing.T) {
	m, _, ind := newTestMachine(DefaultConfig())
	m.Step(ms(0), all)
	m.Step(ms(2000), all)
	require.Equal(t, []bool{true}, ind.allOn)

	for tms := 2020; tms <= 3500; tms += 20 {
		m.Step(ms(tms), none)
	}
	// Toggles at 2500, 3000 and 3500
	require.Equal(t, []bool{true, false, true, false}, ind.allOn)
}

func TestMachine_NoNonzeroCurrentUntilExit(t *testing.T) {
	rng := newRng(t)
	m, sender, _ := newTestMachine(DefaultConfig())
	now := engage(t, m, sender)

	states := []input.RawState{none, slow, medium, fast, all,
		{Slow: true, Medium: true}, {Medium: true, Fast: true}, {Slow: true, Fast: true}}

	for i := 0; i < 2000 && m.State().Mode == EmergencyStop; i++ {
		now = now.Add(20 * time.Millisecond)
		m.Step(now, states[rng.Intn(len(states))])
		if m.State().Mode == EmergencyStop {
			for _, c := range sender.currents(t) {
				require.Equal(t, 0.0, c)
			}
		}
	}
}

func TestMachine_Shutdown(t *testing.T) {
	m, sender, ind := newTestMachine(DefaultConfig())
	m.Step(ms(0), fast)
	sender.currents(t)

	m.Shutdown()
	require.Equal(t, []float64{0}, sender.currents(t))
	require.Equal(t, input.Off, m.State().Level)
	require.False(t, *ind.lastOn)
}

// ============================================================
// Config Tests
// ============================================================

func TestConfig_CurrentFor(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 0.0, cfg.CurrentFor(input.Off))
	require.Equal(t, 5.0, cfg.CurrentFor(input.Slow))
	require.Equal(t, 10.0, cfg.CurrentFor(input.Medium))
	require.Equal(t, 20.0, cfg.CurrentFor(input.Fast))
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.FastCurrent = -1
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.HoldDwell = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.BlinkInterval = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ExitTimeout = -time.Second
	require.Error(t, cfg.Validate())
}

func TestExitSequence_Names(t *testing.T) {
	require.Equal(t, "SLOW press", ExitSequence[0].String())
	require.Equal(t, "FAST release", ExitSequence[5].String())
	require.Equal(t, "EMERGENCY_STOP", EmergencyStop.String())
}

// ============================================================
// Controller Tests
// ============================================================

func TestController_RunWithVirtualPanel(t *testing.T) {
	var bSlow, bMedium, bFast gpio.VirtualButton
	var lSlow, lMedium, lFast gpio.VirtualOutput
	bank := gpio.NewIndicatorBank(&lSlow, &lMedium, &lFast, gpio.ActiveHigh)

	sender := &fakeSender{}
	m := NewMachine(DefaultConfig(), sender, bank, nil)
	c := NewController(m, input.NewPanel(&bSlow, &bMedium, &bFast), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	bMedium.Press()
	require.Eventually(t, func() bool {
		return c.Machine().State().Level == input.Medium
	}, time.Second, 5*time.Millisecond)
	require.True(t, lMedium.High())

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, input.Off, m.State().Level)
	require.False(t, lMedium.High())
}
