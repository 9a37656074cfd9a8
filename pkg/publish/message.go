// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish forwards controller state to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Thermoquad/stickctl/pkg/control"
	"github.com/Thermoquad/stickctl/pkg/telemetry"
	"github.com/Thermoquad/stickctl/pkg/vesc"
	"github.com/fxamacker/cbor/v2"
)

// Encoding selects the wire format of published messages
type Encoding string

const (
	EncodingCBOR Encoding = "cbor"
	EncodingJSON Encoding = "json"
)

// Message is one published status record
type Message struct {
	Timestamp time.Time             `json:"timestamp" cbor:"timestamp"`
	Alive     bool                  `json:"alive" cbor:"alive"`
	Firmware  *vesc.FirmwareVersion `json:"firmware,omitempty" cbor:"firmware,omitempty"`
	Telemetry *telemetry.Snapshot   `json:"telemetry,omitempty" cbor:"telemetry,omitempty"`
	Control   control.State         `json:"control" cbor:"control"`
	Level     string                `json:"level" cbor:"level"`
	Mode      string                `json:"mode" cbor:"mode"`
	Fault     string                `json:"fault,omitempty" cbor:"fault,omitempty"`
}

// NewMessage assembles a message from the current store and control state.
// Telemetry is omitted until the first successful poll.
func NewMessage(now time.Time, store *telemetry.Store, state control.State) Message {
	msg := Message{
		Timestamp: now,
		Alive:     store.Alive(),
		Control:   state,
		Level:     state.Level.String(),
		Mode:      state.Mode.String(),
	}
	if fw, ok := store.Firmware(); ok {
		msg.Firmware = &fw
	}
	if snap := store.Snapshot(); snap.Generation > 0 {
		msg.Telemetry = &snap
		msg.Fault = snap.Fault.String()
	}
	return msg
}

// Marshal encodes a message in the requested format
func Marshal(msg Message, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingCBOR, "":
		return cbor.Marshal(msg)
	case EncodingJSON:
		return json.Marshal(msg)
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
}
