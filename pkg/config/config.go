// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the controller configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/stickctl/pkg/control"
	"github.com/Thermoquad/stickctl/pkg/gpio"
	"github.com/Thermoquad/stickctl/pkg/telemetry"
	"github.com/Thermoquad/stickctl/pkg/transport"
	"gopkg.in/yaml.v3"
)

// Config is the complete controller configuration
type Config struct {
	Serial    Serial    `yaml:"serial"`
	Bridge    Bridge    `yaml:"bridge"`
	Telemetry Telemetry `yaml:"telemetry"`
	Control   Control   `yaml:"control"`
	GPIO      GPIO      `yaml:"gpio"`
	MQTT      MQTT      `yaml:"mqtt"`
	Log       Log       `yaml:"log"`
}

// Serial configures the UART to the motor unit
type Serial struct {
	Port    string        `yaml:"port"`
	Baud    int           `yaml:"baud"`
	Timeout time.Duration `yaml:"timeout"`
}

// Bridge configures an optional WebSocket serial bridge used instead of a
// local port
type Bridge struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

// Telemetry configures the values poller
type Telemetry struct {
	Interval time.Duration `yaml:"interval"`
}

// Control configures the control loop
type Control struct {
	Interval       time.Duration `yaml:"interval"`
	control.Config `yaml:",inline"`
}

// PinSet names the slow, medium and fast lines
type PinSet struct {
	Slow   string `yaml:"slow"`
	Medium string `yaml:"medium"`
	Fast   string `yaml:"fast"`
}

// GPIO configures the button and indicator lines
type GPIO struct {
	Enabled    bool   `yaml:"enabled"`
	Buttons    PinSet `yaml:"buttons"`
	Indicators PinSet `yaml:"indicators"`
	Polarity   string `yaml:"polarity"`
}

// MQTT configures the optional telemetry publisher. An empty broker
// disables publishing.
type MQTT struct {
	Broker   string        `yaml:"broker"`
	Topic    string        `yaml:"topic"`
	ClientID string        `yaml:"client_id"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Interval time.Duration `yaml:"interval"`
	Encoding string        `yaml:"encoding"`
}

// Log configures the logger
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the stock configuration
func Default() Config {
	return Config{
		Serial: Serial{
			Baud:    transport.DefaultBaudRate,
			Timeout: transport.DefaultTimeout,
		},
		Telemetry: Telemetry{
			Interval: telemetry.DefaultInterval,
		},
		Control: Control{
			Interval: control.DefaultInterval,
			Config:   control.DefaultConfig(),
		},
		GPIO: GPIO{
			Buttons:    PinSet{Slow: "GPIO2", Medium: "GPIO3", Fast: "GPIO4"},
			Indicators: PinSet{Slow: "GPIO7", Medium: "GPIO8", Fast: "GPIO9"},
			Polarity:   "active-high",
		},
		MQTT: MQTT{
			Topic:    "stickctl/telemetry",
			Interval: time.Second,
			Encoding: "cbor",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, rejecting unknown keys
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the controller cannot run with
func (c Config) Validate() error {
	var errs []error

	if c.Serial.Port == "" && c.Bridge.URL == "" {
		errs = append(errs, errors.New("serial.port or bridge.url must be set"))
	}
	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}
	if c.Serial.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("serial.timeout must be positive, got %v", c.Serial.Timeout))
	}
	if c.Telemetry.Interval <= 0 {
		errs = append(errs, fmt.Errorf("telemetry.interval must be positive, got %v", c.Telemetry.Interval))
	}
	if c.Control.Interval <= 0 {
		errs = append(errs, fmt.Errorf("control.interval must be positive, got %v", c.Control.Interval))
	}
	if err := c.Control.Config.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("control: %w", err))
	}

	if c.GPIO.Enabled {
		pins := []struct{ key, name string }{
			{"gpio.buttons.slow", c.GPIO.Buttons.Slow},
			{"gpio.buttons.medium", c.GPIO.Buttons.Medium},
			{"gpio.buttons.fast", c.GPIO.Buttons.Fast},
			{"gpio.indicators.slow", c.GPIO.Indicators.Slow},
			{"gpio.indicators.medium", c.GPIO.Indicators.Medium},
			{"gpio.indicators.fast", c.GPIO.Indicators.Fast},
		}
		for _, pin := range pins {
			if strings.TrimSpace(pin.name) == "" {
				errs = append(errs, fmt.Errorf("%s must name a pin", pin.key))
			}
		}
	}
	if _, err := gpio.ParsePolarity(c.GPIO.Polarity); err != nil {
		errs = append(errs, fmt.Errorf("gpio.polarity: %w", err))
	}

	if c.MQTT.Broker != "" {
		if c.MQTT.Topic == "" {
			errs = append(errs, errors.New("mqtt.topic must be set when mqtt.broker is set"))
		}
		if c.MQTT.Interval <= 0 {
			errs = append(errs, fmt.Errorf("mqtt.interval must be positive, got %v", c.MQTT.Interval))
		}
		switch c.MQTT.Encoding {
		case "cbor", "json":
		default:
			errs = append(errs, fmt.Errorf("mqtt.encoding must be cbor or json, got %q", c.MQTT.Encoding))
		}
	}

	return errors.Join(errs...)
}
