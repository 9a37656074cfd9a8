// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"context"
	"time"

	"github.com/Thermoquad/stickctl/pkg/control"
	"github.com/Thermoquad/stickctl/pkg/telemetry"
	"go.uber.org/zap"
)

// Client delivers an encoded payload to a topic
type Client interface {
	Publish(topic string, payload []byte) error
}

// StateSource exposes the published control state
type StateSource interface {
	State() control.State
}

// Publisher sends a status message whenever telemetry or control state
// changes, checked once per interval.
type Publisher struct {
	client   Client
	topic    string
	encoding Encoding
	interval time.Duration
	store    *telemetry.Store
	control  StateSource
	log      *zap.SugaredLogger
	now      func() time.Time

	sent     bool
	lastGen  uint64
	lastCtl  control.State
	lastLive bool
}

// NewPublisher creates a publisher. A nil logger disables logging.
func NewPublisher(client Client, topic string, enc Encoding, interval time.Duration,
	store *telemetry.Store, ctl StateSource, log *zap.SugaredLogger) *Publisher {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Publisher{
		client:   client,
		topic:    topic,
		encoding: enc,
		interval: interval,
		store:    store,
		control:  ctl,
		log:      log,
		now:      time.Now,
	}
}

// PublishIfChanged sends one message when anything changed since the last
// successful publish. Returns whether a message was sent.
func (p *Publisher) PublishIfChanged() (bool, error) {
	gen := p.store.Snapshot().Generation
	ctl := p.control.State()
	live := p.store.Alive()

	if p.sent && gen == p.lastGen && ctl == p.lastCtl && live == p.lastLive {
		return false, nil
	}

	payload, err := Marshal(NewMessage(p.now(), p.store, ctl), p.encoding)
	if err != nil {
		return false, err
	}
	if err := p.client.Publish(p.topic, payload); err != nil {
		return false, err
	}

	p.sent = true
	p.lastGen = gen
	p.lastCtl = ctl
	p.lastLive = live
	return true, nil
}

// Run publishes until ctx is cancelled
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.PublishIfChanged(); err != nil {
				p.log.Debugw("publish failed", "topic", p.topic, "error", err)
			}
		}
	}
}
