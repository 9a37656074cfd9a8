// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/stickctl/pkg/config"
	"github.com/Thermoquad/stickctl/pkg/control"
	"github.com/Thermoquad/stickctl/pkg/gpio"
	"github.com/Thermoquad/stickctl/pkg/input"
	"github.com/Thermoquad/stickctl/pkg/publish"
	"github.com/Thermoquad/stickctl/pkg/telemetry"
	"github.com/Thermoquad/stickctl/pkg/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// session holds everything the controller runs: the link, the periodic
// tasks and, when configured, the MQTT publisher.
type session struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	link     *transport.Link
	connInfo string

	poller     *telemetry.Poller
	controller *control.Controller
	indicators *gpio.IndicatorBank
	publisher  *publish.Publisher
	mqtt       *publish.MQTTClient

	// Set when the panel is keyboard or test driven instead of GPIO
	buttons [3]*gpio.VirtualButton
}

// newSession opens the link and builds the tasks. With virtual set, or when
// GPIO is disabled in the configuration, buttons and indicators are simulated.
func newSession(virtual bool) (*session, error) {
	cfg, log, link, connInfo, err := setup()
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, log: log, link: link, connInfo: connInfo}

	panel, err := s.buildPanel(virtual || !cfg.GPIO.Enabled)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.poller = telemetry.NewPoller(link, telemetry.NewStore(), cfg.Telemetry.Interval, log.Named("telemetry"))
	machine := control.NewMachine(cfg.Control.Config, link, s.indicators, log.Named("control"))
	s.controller = control.NewController(machine, panel, cfg.Control.Interval)

	if cfg.MQTT.Broker != "" {
		client, err := publish.DialMQTT(publish.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, log.Named("mqtt"))
		if err != nil {
			s.Close()
			return nil, err
		}
		s.mqtt = client
		s.publisher = publish.NewPublisher(client, cfg.MQTT.Topic, publish.Encoding(cfg.MQTT.Encoding),
			cfg.MQTT.Interval, s.poller.Store(), machine, log.Named("publish"))
	}

	return s, nil
}

func (s *session) buildPanel(virtual bool) (*input.Panel, error) {
	polarity, err := gpio.ParsePolarity(s.cfg.GPIO.Polarity)
	if err != nil {
		return nil, err
	}

	if virtual {
		for i := range s.buttons {
			s.buttons[i] = &gpio.VirtualButton{}
		}
		s.indicators = gpio.NewIndicatorBank(&gpio.VirtualOutput{}, &gpio.VirtualOutput{}, &gpio.VirtualOutput{}, polarity)
		return input.NewPanel(s.buttons[0], s.buttons[1], s.buttons[2]), nil
	}

	if err := gpio.Init(); err != nil {
		return nil, fmt.Errorf("gpio init: %w", err)
	}

	pins := s.cfg.GPIO
	var lines [3]input.Line
	for i, name := range []string{pins.Buttons.Slow, pins.Buttons.Medium, pins.Buttons.Fast} {
		pin, err := gpio.OpenInput(name)
		if err != nil {
			return nil, err
		}
		lines[i] = pin
	}

	// Indicators start dark whatever the polarity
	dark := polarity == gpio.ActiveLow
	var outputs [3]gpio.Output
	for i, name := range []string{pins.Indicators.Slow, pins.Indicators.Medium, pins.Indicators.Fast} {
		pin, err := gpio.OpenOutput(name, dark)
		if err != nil {
			return nil, err
		}
		outputs[i] = pin
	}

	s.indicators = gpio.NewIndicatorBank(outputs[0], outputs[1], outputs[2], polarity)
	s.log.Infow("gpio ready",
		"buttons", []string{pins.Buttons.Slow, pins.Buttons.Medium, pins.Buttons.Fast},
		"indicators", []string{pins.Indicators.Slow, pins.Indicators.Medium, pins.Indicators.Fast},
		"polarity", polarity.String())
	return input.NewPanel(lines[0], lines[1], lines[2]), nil
}

// Virtual reports whether the panel is simulated
func (s *session) Virtual() bool {
	return s.buttons[0] != nil
}

// Machine returns the control state machine
func (s *session) Machine() *control.Machine {
	return s.controller.Machine()
}

// Store returns the telemetry store
func (s *session) Store() *telemetry.Store {
	return s.poller.Store()
}

// probe reads the firmware version once. The controller runs without it.
func (s *session) probe() {
	fw, err := s.poller.Probe()
	if err != nil {
		s.log.Warnw("firmware version probe failed", "error", err)
		return
	}
	s.log.Infow("motor unit firmware", "version", fw.String())
}

// Run probes the motor unit and runs every task until ctx is cancelled.
// The control task commands zero current on its way out.
func (s *session) Run(ctx context.Context) error {
	s.probe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.poller.Run(gctx) })
	g.Go(func() error { return s.controller.Run(gctx) })
	if s.publisher != nil {
		g.Go(func() error { return s.publisher.Run(gctx) })
	}
	return g.Wait()
}

// Close releases the link, broker connection and logger
func (s *session) Close() {
	if s.mqtt != nil {
		_ = s.mqtt.Close()
	}
	if s.link != nil {
		if err := s.link.Close(); err != nil {
			s.log.Debugw("link close", "error", err)
		}
	}
	_ = s.log.Sync()
}
