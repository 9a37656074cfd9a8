// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gpio

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Thermoquad/stickctl/pkg/input"
)

// Output is a digital output line
type Output interface {
	Set(high bool) error
}

// Polarity selects which electrical level lights an indicator
type Polarity int

const (
	ActiveHigh Polarity = iota
	ActiveLow
)

// ParsePolarity accepts "active-high" / "high" and "active-low" / "low"
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active-high", "high":
		return ActiveHigh, nil
	case "active-low", "low":
		return ActiveLow, nil
	default:
		return ActiveHigh, fmt.Errorf("unknown indicator polarity %q", s)
	}
}

func (p Polarity) String() string {
	if p == ActiveLow {
		return "active-low"
	}
	return "active-high"
}

// IndicatorBank drives the three level indicators
type IndicatorBank struct {
	outputs  [3]Output
	polarity Polarity

	mu  sync.Mutex
	lit [3]bool
}

// NewIndicatorBank creates a bank over the slow, medium and fast outputs
func NewIndicatorBank(slow, medium, fast Output, polarity Polarity) *IndicatorBank {
	return &IndicatorBank{
		outputs:  [3]Output{slow, medium, fast},
		polarity: polarity,
	}
}

// Show lights exactly the indicator for level; Off lights none
func (b *IndicatorBank) Show(level input.PowerLevel) error {
	return b.set([3]bool{
		level == input.Slow,
		level == input.Medium,
		level == input.Fast,
	})
}

// SetAll lights or clears every indicator
func (b *IndicatorBank) SetAll(on bool) error {
	return b.set([3]bool{on, on, on})
}

// Lit returns which indicators are lit (slow, medium, fast)
func (b *IndicatorBank) Lit() [3]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lit
}

func (b *IndicatorBank) set(lit [3]bool) error {
	var errs []error
	for i, out := range b.outputs {
		level := lit[i]
		if b.polarity == ActiveLow {
			level = !level
		}
		if err := out.Set(level); err != nil {
			errs = append(errs, err)
		}
	}
	b.mu.Lock()
	b.lit = lit
	b.mu.Unlock()
	return errors.Join(errs...)
}
