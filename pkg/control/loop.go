// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package control

import (
	"context"
	"time"

	"github.com/Thermoquad/stickctl/pkg/input"
)

// DefaultInterval is the control cycle period
const DefaultInterval = 20 * time.Millisecond

// Sampler reads the button panel
type Sampler interface {
	Sample() input.RawState
}

// Controller drives a Machine from a button sampler at a fixed period
type Controller struct {
	machine  *Machine
	panel    Sampler
	interval time.Duration
}

// NewController creates a controller. A zero interval selects
// DefaultInterval.
func NewController(machine *Machine, panel Sampler, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{machine: machine, panel: panel, interval: interval}
}

// Machine returns the driven state machine
func (c *Controller) Machine() *Machine {
	return c.machine
}

// Run samples and steps until ctx is cancelled, then commands zero current
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.machine.Shutdown()
			return nil
		case now := <-ticker.C:
			c.machine.Step(now, c.panel.Sample())
		}
	}
}
