// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/stickctl/pkg/vesc"
	"go.uber.org/zap"
)

// DefaultInterval is the telemetry polling period
const DefaultInterval = 200 * time.Millisecond

// Link is the part of the transport the poller needs
type Link interface {
	Request(payload []byte) ([]byte, error)
	Send(payload []byte) error
}

// Poller requests values from the motor unit once per interval and keeps
// its command timeout alive while the link is healthy.
type Poller struct {
	link     Link
	store    *Store
	interval time.Duration
	log      *zap.SugaredLogger
	now      func() time.Time

	// Last reported plausibility problems, to log only on change
	anomalies string
}

// NewPoller creates a poller publishing into store. A zero interval selects
// DefaultInterval and a nil logger disables logging.
func NewPoller(link Link, store *Store, interval time.Duration, log *zap.SugaredLogger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Poller{
		link:     link,
		store:    store,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Store returns the store the poller publishes into
func (p *Poller) Store() *Store {
	return p.store
}

// Probe reads the firmware version and records it in the store
func (p *Poller) Probe() (vesc.FirmwareVersion, error) {
	resp, err := p.link.Request(vesc.NewFirmwareVersionCommand())
	if err != nil {
		return vesc.FirmwareVersion{}, fmt.Errorf("firmware version request: %w", err)
	}
	fw, err := vesc.ParseFirmwareVersion(resp)
	if err != nil {
		return vesc.FirmwareVersion{}, err
	}
	p.store.setFirmware(fw)
	return fw, nil
}

// Poll runs one cycle. On success the snapshot is replaced, the link is
// marked alive and a keepalive follows. On any failure the link is marked
// down, the previous snapshot stays in place and no keepalive is sent.
func (p *Poller) Poll() error {
	values, err := p.fetch()
	if err != nil {
		if wasAlive := p.store.setAlive(false); wasAlive {
			p.log.Warnw("motor unit link lost", "error", err)
		} else {
			p.log.Debugw("values poll failed", "error", err)
		}
		return err
	}

	snap := p.store.publish(values, p.now())
	if wasAlive := p.store.setAlive(true); !wasAlive {
		p.log.Infow("motor unit link up",
			"input_voltage", snap.InputVoltage,
			"fault", snap.Fault.String())
	}
	p.checkPlausibility(snap.Values)

	if err := p.link.Send(vesc.NewAliveCommand()); err != nil {
		p.log.Debugw("keepalive failed", "error", err)
	}
	return nil
}

func (p *Poller) checkPlausibility(v vesc.Values) {
	problems := vesc.ValidateValues(v)
	msgs := make([]string, len(problems))
	for i, problem := range problems {
		msgs[i] = problem.Message
	}
	summary := strings.Join(msgs, "; ")
	if summary == p.anomalies {
		return
	}
	p.anomalies = summary
	if summary == "" {
		p.log.Infow("values plausible again")
		return
	}
	p.log.Warnw("implausible values", "problems", summary)
}

func (p *Poller) fetch() (vesc.Values, error) {
	resp, err := p.link.Request(vesc.NewGetValuesCommand())
	if err != nil {
		return vesc.Values{}, err
	}
	return vesc.ParseValues(resp)
}

// Run polls until ctx is cancelled
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Errors are already reflected in the alive flag
			_ = p.Poll()
		}
	}
}
