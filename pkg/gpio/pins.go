// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gpio adapts host GPIO lines (through periph.io) and virtual lines
// to the button panel and indicator bank.
package gpio

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	hostOnce sync.Once
	hostErr  error
)

// Init loads the host GPIO drivers. Safe to call more than once.
func Init() error {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	return hostErr
}

// InputPin is a button line configured with the internal pull-up
type InputPin struct {
	pin gpio.PinIO
}

// NewInputPin configures pin as a pulled-up input
func NewInputPin(pin gpio.PinIO) (*InputPin, error) {
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s as input: %w", pin.Name(), err)
	}
	return &InputPin{pin: pin}, nil
}

// Read returns the electrical level of the line
func (p *InputPin) Read() bool {
	return p.pin.Read() == gpio.High
}

// Name returns the pin name
func (p *InputPin) Name() string {
	return p.pin.Name()
}

// OutputPin drives an indicator line
type OutputPin struct {
	pin gpio.PinIO
}

// NewOutputPin configures pin as an output at the initial level
func NewOutputPin(pin gpio.PinIO, initial bool) (*OutputPin, error) {
	if err := pin.Out(gpio.Level(initial)); err != nil {
		return nil, fmt.Errorf("configure %s as output: %w", pin.Name(), err)
	}
	return &OutputPin{pin: pin}, nil
}

// Set drives the line high or low
func (p *OutputPin) Set(high bool) error {
	return p.pin.Out(gpio.Level(high))
}

// Name returns the pin name
func (p *OutputPin) Name() string {
	return p.pin.Name()
}

// OpenInput looks up a registered pin by name (e.g. "GPIO2") and configures
// it as a pulled-up input
func OpenInput(name string) (*InputPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return NewInputPin(pin)
}

// OpenOutput looks up a registered pin by name and configures it as an
// output at the initial level
func OpenOutput(name string, initial bool) (*OutputPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return NewOutputPin(pin, initial)
}
